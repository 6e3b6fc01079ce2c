package store

import (
	"context"
	"encoding/json"

	"oasgo.dev/core/record"
)

// Change is a single entry from the CouchDB changes feed: which document
// changed, to which revision, and whether it was deleted.
type Change struct {
	Seq     string
	Guid    record.Guid
	Deleted bool
	Record  record.UntypedRecord
}

// ChangesFeed streams document changes starting from a given sequence. It
// wraps kivik's changes rows with guid parsing and record decoding, and
// skips documents whose id isn't a well-formed guid (CouchDB's own
// "_design/..." documents, most commonly) rather than erroring the whole
// feed over them.
type ChangesFeed struct {
	rows lastSeqRows
}

// lastSeqRows is the subset of *kivik.ChangesIterator the feed needs,
// narrowed to ease testing with a fake.
type lastSeqRows interface {
	Next() bool
	Err() error
	Changes() []string
	ID() string
	Deleted() bool
	Seq() string
	ScanDoc(dest interface{}) error
	Close() error
}

// Changes opens a changes feed starting after the given sequence. Pass the
// empty string to start from the beginning of the database. The feed is
// continuous: once it reaches the current tail it waits for new changes
// rather than ending, with a heartbeat keeping the idle connection open.
func (s *Store) Changes(ctx context.Context, since string) (*ChangesFeed, error) {
	opts := map[string]interface{}{
		"include_docs": true,
		"feed":         "continuous",
		"heartbeat":    10000,
	}
	if since != "" {
		opts["since"] = since
	}
	rows := s.db.Changes(ctx, opts)
	return &ChangesFeed{rows: rows}, nil
}

// Next advances the feed and reports whether a change is available. It
// returns false at the end of the feed or on error; call Err to
// distinguish the two.
func (f *ChangesFeed) Next() (Change, bool) {
	for f.rows.Next() {
		guid, err := record.ParseGuid(f.rows.ID())
		if err != nil {
			continue
		}
		change := Change{Seq: f.rows.Seq(), Guid: guid, Deleted: f.rows.Deleted()}
		if !change.Deleted {
			var raw json.RawMessage
			if err := f.rows.ScanDoc(&raw); err != nil {
				continue
			}
			rec, err := record.UntypedRecordFromJSONObject(raw)
			if err != nil {
				continue
			}
			change.Record = rec
		}
		return change, true
	}
	return Change{}, false
}

// Err returns the error that stopped the feed, if any.
func (f *ChangesFeed) Err() error {
	if err := f.rows.Err(); err != nil {
		return &TransportError{Op: "changes", Err: err}
	}
	return nil
}

// Close releases the feed's underlying connection.
func (f *ChangesFeed) Close() error {
	return f.rows.Close()
}
