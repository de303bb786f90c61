package main

import (
	"context"
	"errors"
	"fmt"

	"github.com/kingrea/weekflow/internal/artifact"
	"github.com/kingrea/weekflow/internal/catalog"
	"github.com/kingrea/weekflow/internal/config"
	"github.com/kingrea/weekflow/internal/logbook"
	"github.com/kingrea/weekflow/internal/storage/filestore"
	"github.com/kingrea/weekflow/internal/storage/sqlstore"
	"github.com/kingrea/weekflow/internal/tasktype"
	"github.com/kingrea/weekflow/internal/tracker"
	"github.com/kingrea/weekflow/internal/worker"
)

// app bundles everything a subcommand needs, opened from the project config.
type app struct {
	cfg      *config.Config
	registry *tasktype.Registry
	tracker  *tracker.Tracker
	sqlite   *sqlstore.Store
	book     *logbook.Logbook
	closers  []func() error
}

func openApp(projectDir string, opts ...config.Option) (*app, error) {
	cfg, err := config.Load(projectDir, opts...)
	if err != nil {
		return nil, err
	}
	a := &app{cfg: cfg, registry: tasktype.Default()}

	var store tracker.Store
	switch cfg.Backend() {
	case config.BackendSQLite:
		db, err := sqlstore.Open(cfg.StoragePath(), sqlstore.WithRegistry(a.registry))
		if err != nil {
			return nil, err
		}
		a.sqlite = db
		a.closers = append(a.closers, db.Close)
		store = db
	default:
		store = filestore.New(cfg.DataDir(), a.registry)
	}
	a.tracker, err = tracker.New(a.registry, store)
	if err != nil {
		_ = a.Close()
		return nil, err
	}
	a.book, err = logbook.New(cfg.LogPath())
	if err != nil {
		_ = a.Close()
		return nil, fmt.Errorf("open log: %w", err)
	}
	return a, nil
}

// Close releases the store and any worker clients.
func (a *app) Close() error {
	var errs []error
	for i := len(a.closers) - 1; i >= 0; i-- {
		if err := a.closers[i](); err != nil {
			errs = append(errs, err)
		}
	}
	a.closers = nil
	return errors.Join(errs...)
}

func (a *app) feed() *catalog.Feed {
	var opts []catalog.FeedOption
	if path := a.cfg.LandscapePath(); path != "" {
		opts = append(opts, catalog.WithLandscape(path))
	}
	return catalog.NewFeed(a.cfg.DataDir(), opts...)
}

func (a *app) writer() *artifact.Writer {
	return artifact.NewWriter(a.cfg.DataDir())
}

// capabilities builds one capability per registry role. Roles without a
// configured worker, and every role in dry-run mode, get the static worker.
func (a *app) capabilities(ctx context.Context, dryRun bool) (worker.Set, error) {
	set := worker.Set{}
	for _, role := range a.registry.Roles() {
		wc, ok := a.cfg.Worker(role)
		if !ok || dryRun {
			set[role] = worker.Static{Note: "dry run"}
			continue
		}
		switch wc.Kind {
		case config.WorkerGemini:
			g, closeFn, err := worker.DialGemini(ctx, a.cfg.GoogleAPIKey, wc.Model)
			if err != nil {
				return nil, fmt.Errorf("worker %s: %w", role, err)
			}
			a.closers = append(a.closers, closeFn)
			set[role] = g
		case config.WorkerScript:
			s, err := worker.LoadScript(wc.Script)
			if err != nil {
				return nil, fmt.Errorf("worker %s: %w", role, err)
			}
			set[role] = s
		default:
			set[role] = worker.Static{Note: wc.Note}
		}
	}
	return set, nil
}
