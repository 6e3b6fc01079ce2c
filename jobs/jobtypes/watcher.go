package jobtypes

import (
	"context"

	"oasgo.dev/core/jobs"
	"oasgo.dev/core/store"
)

// Watcher drains the asr queue's completion notifications and reacts to
// each one by fanning out nlp jobs for whatever posts embed the newly
// transcribed media. It's the piece that closes the asr-to-nlp loop: the
// job queue itself has no notion of what a completed asr job should
// trigger next.
type Watcher struct {
	main    *store.Store
	manager *jobs.Manager
}

// NewWatcher builds a Watcher over main and manager.
func NewWatcher(main *store.Store, manager *jobs.Manager) *Watcher {
	return &Watcher{main: main, manager: manager}
}

// Run consumes completed asr jobs until ctx is cancelled or the manager
// reports an error popping the next one.
func (w *Watcher) Run(ctx context.Context) error {
	for {
		job, err := w.manager.NextCompleted(ctx, ASR)
		if err != nil {
			return err
		}
		if job == nil {
			return nil
		}
		if err := OnAsrComplete(ctx, w.main, w.manager, *job); err != nil {
			// One job's fan-out failing (missing media, decode error) isn't
			// fatal to the watcher; the next completed job still gets
			// processed.
			continue
		}
	}
}
