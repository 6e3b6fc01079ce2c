package index

import (
	"context"
	"fmt"
	"strings"
	"time"

	"oasgo.dev/core/durable"
	"oasgo.dev/core/reference"
	"oasgo.dev/core/record"
	"oasgo.dev/core/resolver"
	"oasgo.dev/core/store"
	"oasgo.dev/core/types"
)

// batchMaxLen and batchTimeout bound how long the manager waits to fill a
// batch before indexing whatever it has: at most 1000 changes, or 200ms of
// waiting, whichever comes first.
const (
	batchMaxLen  = 1000
	batchTimeout = 200 * time.Millisecond
)

// Manager keeps an Elasticsearch index in sync with the document store: it
// follows the store's changes feed through a durable subscriber, batches
// the changes it sees, and writes them into the index. Posts are indexed
// directly; Media records update the nested "media" sub-documents of every
// Post that embeds them, via Elasticsearch's update_by_query.
type Manager struct {
	sub    *durable.Subscriber
	main   *store.Store
	client *Client
}

// NewManager builds a Manager over a durable subscription to main's changes
// feed, writing into client.
func NewManager(sub *durable.Subscriber, main *store.Store, client *Client) *Manager {
	return &Manager{sub: sub, main: main, client: client}
}

// Run streams changes and indexes them until ctx is cancelled or the
// changes feed ends.
func (m *Manager) Run(ctx context.Context) error {
	for {
		batch, err := m.nextBatch(ctx)
		if err != nil {
			return err
		}
		if len(batch) == 0 {
			return nil
		}
		if err := m.indexBatch(ctx, batch); err != nil {
			return err
		}
	}
}

// nextBatch collects up to batchMaxLen changes, or whatever arrives within
// batchTimeout of the first change, whichever is smaller. An empty result
// with a nil error means the feed ended cleanly.
func (m *Manager) nextBatch(ctx context.Context) ([]store.Change, error) {
	first, ok, err := m.sub.Next(ctx)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, nil
	}
	batch := []store.Change{first}

	deadline := time.NewTimer(batchTimeout)
	defer deadline.Stop()

	for len(batch) < batchMaxLen {
		type result struct {
			change store.Change
			ok     bool
			err    error
		}
		resCh := make(chan result, 1)
		go func() {
			c, ok, err := m.sub.Next(ctx)
			resCh <- result{c, ok, err}
		}()

		select {
		case res := <-resCh:
			if res.err != nil {
				return nil, res.err
			}
			if !res.ok {
				return batch, nil
			}
			batch = append(batch, res.change)
		case <-deadline.C:
			return batch, nil
		case <-ctx.Done():
			return batch, ctx.Err()
		}
	}
	return batch, nil
}

// indexBatch splits a batch of changes by record type and applies each
// half: posts are resolved, have their composite transcript rebuilt, and
// are bulk-indexed; non-first-revision media changes are propagated into
// every post that embeds them via a nested update, never indexed as a
// standalone top-level document.
func (m *Manager) indexBatch(ctx context.Context, changes []store.Change) error {
	var posts, mediaUpdates []record.UntypedRecord
	for _, change := range changes {
		if change.Deleted {
			continue
		}
		switch change.Record.Typ() {
		case types.PostTypeName:
			posts = append(posts, change.Record)
		case types.MediaTypeName:
			if isFirstRevision(change.Record) {
				// The post, if any, will pick up this media when it is
				// itself (re-)indexed; a bare first write has nothing for
				// a nested update to patch in yet.
				continue
			}
			mediaUpdates = append(mediaUpdates, change.Record)
		default:
			posts = append(posts, change.Record)
		}
	}

	if len(posts) > 0 {
		resolved, err := resolvePosts(ctx, m.main, posts)
		if err != nil {
			return err
		}
		if _, err := m.client.PutMany(ctx, resolved); err != nil {
			return err
		}
	}

	for _, rec := range mediaUpdates {
		if err := m.client.UpdateNested(ctx, "media", rec); err != nil {
			return err
		}
	}

	return nil
}

// isFirstRevision reports whether rec's CouchDB revision is the first one
// ("1-..."), the generation that can't yet be the target of a nested
// update on any post.
func isFirstRevision(rec record.UntypedRecord) bool {
	gen, _, ok := strings.Cut(rec.Rev, "-")
	return ok && gen == "1"
}

// resolvePosts decodes a batch of untyped Post records, resolves their
// media references against the store, rebuilds the composite transcript
// from whatever media resolved with one, and re-encodes them so the
// indexed document carries the full embedded media rather than bare ids.
func resolvePosts(ctx context.Context, main *store.Store, recs []record.UntypedRecord) ([]record.UntypedRecord, error) {
	out := make([]record.UntypedRecord, 0, len(recs))
	for _, rec := range recs {
		typed, err := record.DecodeTyped[types.Post](rec)
		if err != nil {
			continue
		}
		if err := resolver.ResolveAll(ctx, reference.ResolverFunc(main.Resolve), typed.Value.Media); err != nil {
			// Missing media is not fatal to indexing the post: index what
			// resolved and leave the rest as bare ids.
		}
		typed.Value.Transcript = generateTranscriptForPost(typed)
		untyped, err := typed.IntoUntyped()
		if err != nil {
			continue
		}
		out = append(out, untyped)
	}
	return out, nil
}

// generateTranscriptForPost concatenates the transcript tokens of every
// resolved media on the post into a single composite transcript, in media
// order. Media that didn't resolve, or has no transcript, contributes
// nothing.
func generateTranscriptForPost(post record.TypedRecord[types.Post]) string {
	var segments []string
	for i, mediaRef := range post.Value.Media {
		mediaRecord, ok := mediaRef.Record()
		if !ok || mediaRecord.Value.Transcript == nil {
			continue
		}
		segments = append(segments, transcriptTokenString(mediaRecord.Value.Transcript, i))
	}
	return strings.Join(segments, " ")
}

// transcriptTokenString renders one media's transcript as space-joined
// tokens of the form "word|start:end:conf:media_index", carrying enough
// positional metadata for hits to be attributed back to the media that
// produced them.
func transcriptTokenString(transcript *types.Transcript, mediaIndex int) string {
	tokens := make([]string, len(transcript.Parts))
	for i, part := range transcript.Parts {
		tokens[i] = fmt.Sprintf("%v|%v:%v:%v:%d", part.Word, part.Start, part.End, part.Conf, mediaIndex)
	}
	return strings.Join(tokens, " ")
}
