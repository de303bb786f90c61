// Command weekflow tracks and runs the weekly research, content and publish
// pipeline for catalog items grouped by letter.
package main

import (
	"flag"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strings"
)

type command struct {
	summary string
	run     func(env *cliEnv, args []string) error
}

// cliEnv is what every subcommand receives.
type cliEnv struct {
	projectDir string
	out        io.Writer
}

var commands = map[string]command{
	"init":    {summary: "create .weekflow/config.yaml", run: runInit},
	"sync":    {summary: "reconcile trackers with the upstream item lists", run: runSync},
	"status":  {summary: "show completion per group and task type", run: runStatus},
	"ready":   {summary: "list tasks whose dependencies are met", run: runReady},
	"pending": {summary: "list items with a pending task of one type", run: runPending},
	"update":  {summary: "set a task's status and fields", run: runUpdate},
	"reset":   {summary: "return a task to pending for another attempt", run: runReset},
	"run":     {summary: "dispatch ready tasks in rounds until done", run: runRun},
	"watch":   {summary: "run with a live terminal view", run: runWatch},
	"budget":  {summary: "estimate token usage and recommend limits", run: runBudget},
}

func main() {
	global := flag.NewFlagSet("weekflow", flag.ExitOnError)
	projectDir := global.String("project", "", "path to the project directory (defaults to cwd)")
	global.Usage = func() { usage(global.Output()) }
	_ = global.Parse(os.Args[1:])

	args := global.Args()
	if len(args) == 0 {
		usage(os.Stderr)
		os.Exit(2)
	}
	name := args[0]
	cmd, ok := commands[name]
	if !ok {
		fmt.Fprintf(os.Stderr, "unknown command %q\n\n", name)
		usage(os.Stderr)
		os.Exit(2)
	}

	project := *projectDir
	if project == "" {
		var err error
		project, err = os.Getwd()
		if err != nil {
			die("determine working directory: %v", err)
		}
	}
	absoluteProject, err := filepath.Abs(project)
	if err != nil {
		die("resolve project dir: %v", err)
	}
	env := &cliEnv{projectDir: absoluteProject, out: os.Stdout}
	if err := cmd.run(env, args[1:]); err != nil {
		die("%s: %v", name, err)
	}
}

func usage(w io.Writer) {
	fmt.Fprintln(w, "usage: weekflow [--project DIR] <command> [flags]")
	fmt.Fprintln(w)
	names := make([]string, 0, len(commands))
	for name := range commands {
		names = append(names, name)
	}
	sort.Strings(names)
	for _, name := range names {
		fmt.Fprintf(w, "  %-8s %s\n", name, commands[name].summary)
	}
}

func die(format string, args ...any) {
	fmt.Fprintf(os.Stderr, format+"\n", args...)
	os.Exit(1)
}

// keyValueFlag collects repeatable key=value pairs.
type keyValueFlag map[string]string

func (kv *keyValueFlag) String() string {
	if kv == nil || len(*kv) == 0 {
		return ""
	}
	var pairs []string
	for key, value := range *kv {
		pairs = append(pairs, fmt.Sprintf("%s=%s", key, value))
	}
	sort.Strings(pairs)
	return strings.Join(pairs, ", ")
}

func (kv *keyValueFlag) Set(value string) error {
	parts := strings.SplitN(value, "=", 2)
	if len(parts) != 2 {
		return fmt.Errorf("expected key=value, got %q", value)
	}
	key := strings.TrimSpace(parts[0])
	if key == "" {
		return fmt.Errorf("field name is empty in %q", value)
	}
	if *kv == nil {
		*kv = keyValueFlag{}
	}
	(*kv)[key] = parts[1]
	return nil
}

// stringsFlag collects a repeatable string flag.
type stringsFlag []string

func (s *stringsFlag) String() string {
	return strings.Join(*s, ",")
}

func (s *stringsFlag) Set(value string) error {
	for _, part := range strings.Split(value, ",") {
		if part = strings.TrimSpace(part); part != "" {
			*s = append(*s, part)
		}
	}
	return nil
}
