package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"

	tea "github.com/charmbracelet/bubbletea"
	"gopkg.in/yaml.v3"

	"github.com/kingrea/weekflow/internal/config"
	"github.com/kingrea/weekflow/internal/logbook"
	"github.com/kingrea/weekflow/internal/orchestrator"
	"github.com/kingrea/weekflow/internal/tasktype"
	"github.com/kingrea/weekflow/internal/tracker"
	"github.com/kingrea/weekflow/internal/tui"
)

func newFlagSet(env *cliEnv, name string) *flag.FlagSet {
	fs := flag.NewFlagSet("weekflow "+name, flag.ContinueOnError)
	fs.SetOutput(env.out)
	return fs
}

func runInit(env *cliEnv, args []string) error {
	fs := newFlagSet(env, "init")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if err := config.Init(env.projectDir); err != nil {
		return err
	}
	fmt.Fprintf(env.out, "Initialized %s\n", filepath.Join(env.projectDir, config.Dir, "config.yaml"))
	return nil
}

func runSync(env *cliEnv, args []string) error {
	fs := newFlagSet(env, "sync")
	var groups stringsFlag
	fs.Var(&groups, "group", "group to sync (repeatable, defaults to every group the feed knows)")
	export := fs.Bool("export", false, "write tasks.yaml for every landscape group before syncing")
	if err := fs.Parse(args); err != nil {
		return err
	}
	a, err := openApp(env.projectDir)
	if err != nil {
		return err
	}
	defer a.Close()

	feed := a.feed()
	if *export {
		exported, err := feed.Export()
		if err != nil {
			return err
		}
		fmt.Fprintf(env.out, "Exported item lists for %d group(s)\n", len(exported))
	}
	if len(groups) == 0 {
		groups, err = feed.Groups()
		if err != nil {
			return err
		}
	}
	if len(groups) == 0 {
		fmt.Fprintln(env.out, "No upstream groups found.")
		return nil
	}

	var errs []error
	for _, group := range groups {
		names, err := feed.Items(group)
		if err != nil {
			errs = append(errs, fmt.Errorf("%s: %w", group, err))
			continue
		}
		if a.sqlite != nil {
			if err := a.sqlite.Seed(group, names); err != nil {
				errs = append(errs, err)
				continue
			}
		}
		res, err := a.tracker.Sync(group, names)
		if err != nil {
			errs = append(errs, err)
			continue
		}
		fmt.Fprintln(env.out, describeSync(res))
		a.book.Append(logbook.LevelInfo, "group synced", logbook.Fields{
			"group":     group,
			"items":     res.ItemCount,
			"added":     len(res.Added),
			"removed":   len(res.Removed),
			"restored":  len(res.Restored),
			"persisted": res.Persisted,
		})
	}
	return errors.Join(errs...)
}

func describeSync(res tracker.SyncResult) string {
	var b strings.Builder
	fmt.Fprintf(&b, "%s: %d item(s)", res.Group, res.ItemCount)
	if res.Created {
		b.WriteString(", created")
	}
	for _, part := range []struct {
		label string
		names []string
	}{{"added", res.Added}, {"removed", res.Removed}, {"restored", res.Restored}} {
		if len(part.names) > 0 {
			fmt.Fprintf(&b, ", %s %s", part.label, strings.Join(part.names, ", "))
		}
	}
	if !res.Persisted {
		b.WriteString(" (unchanged)")
	}
	return b.String()
}

func runStatus(env *cliEnv, args []string) error {
	fs := newFlagSet(env, "status")
	group := fs.String("group", "", "report a single group")
	taskType := fs.String("type", "", "with --group, count only this task type")
	if err := fs.Parse(args); err != nil {
		return err
	}
	a, err := openApp(env.projectDir)
	if err != nil {
		return err
	}
	defer a.Close()

	if *group != "" {
		p, err := a.tracker.Progress(*group, *taskType)
		if err != nil {
			return err
		}
		label := *taskType
		if label == "" {
			label = "all tasks"
		}
		fmt.Fprintf(env.out, "%s (%s): %d/%d completed, %d in progress, %d pending, %d failed, %d skipped · %.1f%%\n",
			*group, label, p.Completed, p.Total, p.InProgress, p.Pending, p.Failed, p.Skipped, p.CompletionPercentage())
		return nil
	}
	summaries, err := a.tracker.Summaries()
	if err != nil {
		return err
	}
	fmt.Fprintln(env.out, tui.RenderStatus(summaries, a.registry.Names()))
	return nil
}

func runReady(env *cliEnv, args []string) error {
	fs := newFlagSet(env, "ready")
	role := fs.String("role", "", "only tasks owned by this role (case-insensitive)")
	limit := fs.Int("limit", 0, "maximum tasks to list (0 = all)")
	if err := fs.Parse(args); err != nil {
		return err
	}
	a, err := openApp(env.projectDir)
	if err != nil {
		return err
	}
	defer a.Close()

	res, err := a.tracker.ReadyTasks(tracker.ReadyQuery{Role: *role, Limit: *limit})
	if err != nil {
		return err
	}
	fmt.Fprintln(env.out, tui.RenderReady(res.Tasks, res.Total))
	for _, skipped := range res.Skipped {
		fmt.Fprintf(env.out, "skipped %s: %v\n", skipped.Group, skipped.Err)
	}
	return nil
}

func runPending(env *cliEnv, args []string) error {
	fs := newFlagSet(env, "pending")
	group := fs.String("group", "", "group key (required)")
	taskType := fs.String("type", "", "item-level task type (required)")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if *group == "" || *taskType == "" {
		return fmt.Errorf("--group and --type are required")
	}
	a, err := openApp(env.projectDir)
	if err != nil {
		return err
	}
	defer a.Close()

	items, err := a.tracker.PendingItems(*group, *taskType)
	if err != nil {
		return err
	}
	for _, item := range items {
		fmt.Fprintln(env.out, item)
	}
	return nil
}

func runUpdate(env *cliEnv, args []string) error {
	fs := newFlagSet(env, "update")
	group := fs.String("group", "", "group key (required)")
	item := fs.String("item", "", "item name (ignored for group-level tasks)")
	taskType := fs.String("type", "", "task type (required)")
	status := fs.String("status", "", "pending | in_progress | completed | failed | skipped")
	output := fs.String("output", "", "shorthand for --set output_file=...")
	errMsg := fs.String("error", "", "shorthand for --set error_message=...")
	sets := keyValueFlag{}
	fs.Var(&sets, "set", "record field (key=value, repeatable; value null clears)")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if *group == "" || *taskType == "" || *status == "" {
		return fmt.Errorf("--group, --type and --status are required")
	}
	st, ok := tracker.ParseStatus(*status)
	if !ok {
		return fmt.Errorf("invalid status %q", *status)
	}
	fields := tracker.Fields{}
	for key, value := range sets {
		if value == "null" {
			fields[key] = nil
			continue
		}
		fields[key] = value
	}
	if *output != "" {
		fields[tracker.FieldOutputFile] = *output
	}
	if *errMsg != "" {
		fields[tracker.FieldErrorMessage] = *errMsg
	}

	a, err := openApp(env.projectDir)
	if err != nil {
		return err
	}
	defer a.Close()

	rec, err := a.tracker.Update(tracker.UpdateRequest{
		Group:    *group,
		Item:     *item,
		TaskType: *taskType,
		Status:   st,
		Fields:   fields,
	})
	if err != nil {
		return err
	}
	a.book.Append(logbook.LevelInfo, "task updated", logbook.Fields{
		"task":   taskLabel(*group, *item, *taskType),
		"status": string(rec.Status),
	})
	return printRecord(env, rec)
}

func runReset(env *cliEnv, args []string) error {
	fs := newFlagSet(env, "reset")
	group := fs.String("group", "", "group key (required)")
	item := fs.String("item", "", "item name (ignored for group-level tasks)")
	taskType := fs.String("type", "", "task type (required)")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if *group == "" || *taskType == "" {
		return fmt.Errorf("--group and --type are required")
	}
	a, err := openApp(env.projectDir)
	if err != nil {
		return err
	}
	defer a.Close()

	rec, err := a.tracker.Reset(*group, *item, *taskType)
	if err != nil {
		return err
	}
	a.book.Append(logbook.LevelInfo, "task reset", logbook.Fields{
		"task":        taskLabel(*group, *item, *taskType),
		"retry_count": rec.RetryCount,
	})
	return printRecord(env, rec)
}

func printRecord(env *cliEnv, rec tracker.TaskRecord) error {
	data, err := yaml.Marshal(rec)
	if err != nil {
		return err
	}
	_, err = env.out.Write(data)
	return err
}

func taskLabel(group, item, taskType string) string {
	return tracker.ReadyTask{Group: group, Item: item, TaskType: taskType}.String()
}

type runOptions struct {
	limits orchestrator.Limits
	dryRun bool
}

func parseRunFlags(env *cliEnv, name string, args []string, cfg *config.Config, roles int) (runOptions, error) {
	fs := newFlagSet(env, name)
	maxRounds := fs.Int("max-rounds", cfg.MaxRounds(), "hard cap on rounds")
	batchSize := fs.Int("batch-size", cfg.BatchSize(), "tasks per role per round")
	budget := fs.Int("budget", cfg.Project.Orchestrator.BudgetTokens, "token budget; picks limits unless they are set explicitly")
	dryRun := fs.Bool("dry-run", false, "use the static worker for every role")
	if err := fs.Parse(args); err != nil {
		return runOptions{}, err
	}
	explicit := map[string]bool{}
	fs.Visit(func(f *flag.Flag) { explicit[f.Name] = true })

	limits := orchestrator.Limits{MaxRounds: *maxRounds, BatchSize: *batchSize}
	if *budget > 0 && !explicit["max-rounds"] && !explicit["batch-size"] {
		recommended, fits := orchestrator.RecommendLimits(*budget, roles)
		if !fits {
			fmt.Fprintf(env.out, "budget of %d tokens is too small; using conservative limits\n", *budget)
		}
		limits = recommended
	}
	return runOptions{limits: limits, dryRun: *dryRun}, limits.Validate()
}

func runRun(env *cliEnv, args []string) error {
	a, err := openApp(env.projectDir)
	if err != nil {
		return err
	}
	defer a.Close()
	opts, err := parseRunFlags(env, "run", args, a.cfg, len(a.registry.Roles()))
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	orch, err := a.orchestrator(ctx, opts.dryRun, orchestrator.ObserverFunc(func(e orchestrator.Event) {
		if e.Kind == orchestrator.EventRoundFinished && e.Summary != nil {
			fmt.Fprintf(env.out, "round %d: %d dispatched, %d completed, %d failed\n",
				e.Round, e.Summary.Dispatched, e.Summary.Completed, e.Summary.Failed)
		}
	}))
	if err != nil {
		return err
	}
	report, err := orch.Run(ctx, opts.limits)
	fmt.Fprintln(env.out, tui.RenderReport(report))
	return err
}

func runWatch(env *cliEnv, args []string) error {
	a, err := openApp(env.projectDir)
	if err != nil {
		return err
	}
	defer a.Close()
	opts, err := parseRunFlags(env, "watch", args, a.cfg, len(a.registry.Roles()))
	if err != nil {
		return err
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	stream := tui.NewEventStream(256)
	orch, err := a.orchestrator(ctx, opts.dryRun, stream)
	if err != nil {
		return err
	}

	type outcome struct {
		report orchestrator.Report
		err    error
	}
	done := make(chan outcome, 1)
	go func() {
		report, err := orch.Run(ctx, opts.limits)
		stream.Close()
		done <- outcome{report: report, err: err}
	}()

	model := tui.NewWatch(stream, opts.limits.MaxRounds, tui.WithLogbook(a.book), tui.WithStop(cancel))
	if _, err := tea.NewProgram(model, tea.WithAltScreen()).Run(); err != nil {
		cancel()
		stream.Detach()
		<-done
		return fmt.Errorf("watch: %w", err)
	}
	stream.Detach()
	res := <-done
	fmt.Fprintln(env.out, tui.RenderReport(res.report))
	return res.err
}

func (a *app) orchestrator(ctx context.Context, dryRun bool, observers ...orchestrator.Observer) (*orchestrator.Orchestrator, error) {
	caps, err := a.capabilities(ctx, dryRun)
	if err != nil {
		return nil, err
	}
	observers = append([]orchestrator.Observer{orchestrator.NewLogObserver(a.book)}, observers...)
	return orchestrator.New(a.tracker, caps, a.writer(), orchestrator.WithObserver(observers...))
}

func runBudget(env *cliEnv, args []string) error {
	cfg, err := config.Load(env.projectDir)
	if err != nil {
		return err
	}
	fs := newFlagSet(env, "budget")
	tokens := fs.Int("tokens", cfg.Project.Orchestrator.BudgetTokens, "token budget to fit (0 = unlimited)")
	price := fs.Float64("usd-per-million", cfg.Project.Orchestrator.USDPerMillion, "price per million tokens")
	maxRounds := fs.Int("max-rounds", cfg.MaxRounds(), "rounds to estimate")
	batchSize := fs.Int("batch-size", cfg.BatchSize(), "batch size to estimate")
	if err := fs.Parse(args); err != nil {
		return err
	}
	roles := len(tasktype.Default().Roles())
	estimate := orchestrator.EstimateTokens(*maxRounds, *batchSize, roles)
	fmt.Fprintf(env.out, "%d round(s) × %d task(s) × %d role(s) × %d tokens = %d tokens worst case\n",
		*maxRounds, *batchSize, roles, orchestrator.TokensPerTask, estimate)
	if *price > 0 {
		fmt.Fprintf(env.out, "estimated cost: $%.2f\n", orchestrator.EstimateCost(estimate, *price))
	}
	recommended, fits := orchestrator.RecommendLimits(*tokens, roles)
	switch {
	case *tokens <= 0:
		fmt.Fprintf(env.out, "no budget set; default limits: --max-rounds %d --batch-size %d\n", recommended.MaxRounds, recommended.BatchSize)
	case fits:
		fmt.Fprintf(env.out, "budget %d tokens fits --max-rounds %d --batch-size %d\n", *tokens, recommended.MaxRounds, recommended.BatchSize)
	default:
		fmt.Fprintf(env.out, "budget %d tokens is too small for %d rounds; conservative limits: --max-rounds %d --batch-size %d\n",
			*tokens, orchestrator.MinRecommendedRounds, recommended.MaxRounds, recommended.BatchSize)
	}
	return nil
}
