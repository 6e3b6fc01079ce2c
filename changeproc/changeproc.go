// Package changeproc watches the document store's changes feed through a
// durable subscription and derives background jobs from what it sees: a
// post that asks for nlp processing gets an nlp job once, and a media
// without a transcript gets an asr job once. "Once" is enforced by
// checking the job queue for a job already tagged with the record's guid
// before creating another.
package changeproc

import (
	"context"

	"oasgo.dev/core/durable"
	"oasgo.dev/core/jobs"
	"oasgo.dev/core/jobs/jobtypes"
	"oasgo.dev/core/record"
	"oasgo.dev/core/resolver"
	"oasgo.dev/core/reference"
	"oasgo.dev/core/store"
	"oasgo.dev/core/types"
)

// durableID is the subscriber identity this processor uses against the
// changes feed, kept stable across restarts so it resumes where it left
// off rather than rescanning the whole store.
const durableID = "core.jobs"

// Processor drives job creation off the changes feed.
type Processor struct {
	sub     *durable.Subscriber
	main    *store.Store
	manager *jobs.Manager
}

// New builds a Processor. main is used both to read the changes feed and
// to resolve post<->media references while deciding what to enqueue; meta
// holds the subscriber's durable cursor.
func New(main, meta *store.Store, manager *jobs.Manager) *Processor {
	sub := durable.NewSubscriber(main, meta, durableID)
	return &Processor{sub: sub, main: main, manager: manager}
}

// Close releases the processor's durable subscriber.
func (p *Processor) Close() error {
	return p.sub.Close()
}

// Run processes changes until ctx is cancelled or the feed ends.
func (p *Processor) Run(ctx context.Context) error {
	for {
		change, ok, err := p.sub.Next(ctx)
		if err != nil {
			return err
		}
		if !ok {
			return nil
		}
		if change.Deleted {
			continue
		}
		if err := p.processChange(ctx, change.Record); err != nil {
			// A single record failing to schedule a job should not stop the
			// feed from advancing past it.
			continue
		}
	}
}

func (p *Processor) processChange(ctx context.Context, rec record.UntypedRecord) error {
	switch rec.Typ() {
	case types.PostTypeName:
		typed, err := record.DecodeTyped[types.Post](rec)
		if err != nil {
			return err
		}
		if err := resolver.ResolveAll(ctx, reference.ResolverFunc(p.main.Resolve), typed.Value.Media); err != nil {
			// Missing media references don't block the nlp decision, which
			// only looks at the post's own settings.
		}
		return p.processPost(ctx, typed)
	case types.MediaTypeName:
		typed, err := record.DecodeTyped[types.Media](rec)
		if err != nil {
			return err
		}
		return p.processMedia(ctx, typed)
	default:
		return nil
	}
}

func (p *Processor) processPost(ctx context.Context, rec record.TypedRecord[types.Post]) error {
	if _, wants := rec.Meta.Jobs.Settings[jobtypes.NLP]; !wants {
		return nil
	}
	pending, err := p.manager.PendingForTag(ctx, jobtypes.NLP, string(rec.Guid()))
	if err != nil {
		return err
	}
	if len(pending) > 0 {
		return nil
	}
	req, err := jobtypes.NlpJob(rec)
	if err != nil {
		return err
	}
	_, err = p.manager.CreateJob(ctx, req)
	return err
}

func (p *Processor) processMedia(ctx context.Context, rec record.TypedRecord[types.Media]) error {
	if rec.Value.Transcript != nil {
		return nil
	}
	pending, err := p.manager.PendingForTag(ctx, jobtypes.ASR, string(rec.Guid()))
	if err != nil {
		return err
	}
	if len(pending) > 0 {
		return nil
	}
	req, err := jobtypes.AsrJob(rec)
	if err != nil {
		return err
	}
	_, err = p.manager.CreateJob(ctx, req)
	return err
}
