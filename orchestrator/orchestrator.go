// Package orchestrator is the composition root: it wires the document
// store, search index, job queue, change processor and asr-completion
// watcher together and runs them as a group of goroutines that stop cleanly
// when their context is cancelled. It does not run RSS feed watchers; feeds
// are fetched or crawled only through the cli's one-shot commands.
package orchestrator

import (
	"context"
	"fmt"

	"golang.org/x/sync/errgroup"

	"oasgo.dev/core/changeproc"
	"oasgo.dev/core/durable"
	"oasgo.dev/core/index"
	"oasgo.dev/core/jobs"
	"oasgo.dev/core/jobs/jobtypes"
	"oasgo.dev/core/store"
)

// Config gathers every connection setting the orchestrator needs to bring
// its components up.
type Config struct {
	CouchDB    store.Config
	Elastic    index.Config
	Jobs       jobs.Config
	MetaDBName string // database the durable subscribers store their cursors in
}

// State holds every long-lived component the core runs: the document
// store, the search index client, the job queue, and the background
// processors that connect them.
type State struct {
	Main  *store.Store
	Meta  *store.Store
	Index *index.Client
	Jobs  *jobs.Manager

	indexManager *index.Manager
	changeProc   *changeproc.Processor
	jobWatcher   *jobtypes.Watcher
}

// New connects every backing service and wires the processors that watch
// the main store's changes feed, but does not start them running.
func New(ctx context.Context, cfg Config) (*State, error) {
	main, err := store.New(ctx, cfg.CouchDB)
	if err != nil {
		return nil, fmt.Errorf("orchestrator: opening main store: %w", err)
	}
	if err := main.Init(ctx); err != nil {
		return nil, fmt.Errorf("orchestrator: initializing main store: %w", err)
	}

	metaCfg := cfg.CouchDB
	if cfg.MetaDBName != "" {
		metaCfg.DBName = cfg.MetaDBName
	} else {
		metaCfg.DBName = cfg.CouchDB.DBName + "_meta"
	}
	meta, err := store.New(ctx, metaCfg)
	if err != nil {
		return nil, fmt.Errorf("orchestrator: opening meta store: %w", err)
	}
	if err := meta.Init(ctx); err != nil {
		return nil, fmt.Errorf("orchestrator: initializing meta store: %w", err)
	}

	esClient, err := index.New(cfg.Elastic, searchFields())
	if err != nil {
		return nil, fmt.Errorf("orchestrator: building elasticsearch client: %w", err)
	}
	if err := esClient.EnsureIndex(ctx, false); err != nil {
		return nil, fmt.Errorf("orchestrator: ensuring index: %w", err)
	}

	jobManager, err := jobs.New(ctx, cfg.Jobs, main)
	if err != nil {
		return nil, fmt.Errorf("orchestrator: connecting job queue: %w", err)
	}

	indexSub := durable.NewSubscriber(main, meta, "core.index")
	indexManager := index.NewManager(indexSub, main, esClient)

	changeProc := changeproc.New(main, meta, jobManager)
	jobWatcher := jobtypes.NewWatcher(main, jobManager)

	return &State{
		Main:         main,
		Meta:         meta,
		Index:        esClient,
		Jobs:         jobManager,
		indexManager: indexManager,
		changeProc:   changeProc,
		jobWatcher:   jobWatcher,
	}, nil
}

// Run starts the indexer, the job-derivation processor, and the
// asr-completion watcher that fans derived jobs back out, and blocks until
// ctx is cancelled or any of them fails.
func (s *State) Run(ctx context.Context) error {
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error { return s.indexManager.Run(gctx) })
	g.Go(func() error { return s.changeProc.Run(gctx) })
	g.Go(func() error { return s.jobWatcher.Run(gctx) })
	return g.Wait()
}

// WaitForReady blocks until the main document store answers requests.
func (s *State) WaitForReady(ctx context.Context) error {
	return s.Main.WaitForReady(ctx)
}

// Close releases every connection the state holds.
func (s *State) Close() error {
	var firstErr error
	if err := s.Jobs.Close(); err != nil && firstErr == nil {
		firstErr = err
	}
	if err := s.Main.Close(); err != nil && firstErr == nil {
		firstErr = err
	}
	if err := s.Meta.Close(); err != nil && firstErr == nil {
		firstErr = err
	}
	return firstErr
}
