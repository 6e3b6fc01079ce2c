// Package durable implements a changes-feed subscriber whose cursor
// survives process restarts: the sequence of the last acknowledged change
// is persisted as its own record in a metadata database, so a crashed
// consumer resumes where it left off instead of replaying the whole feed.
package durable

import (
	"context"
	"encoding/json"
	"fmt"

	"oasgo.dev/core/record"
	"oasgo.dev/core/store"
)

// pointerTypeName is the record type under which a subscriber's cursor is
// stored, one record per subscriber id.
const pointerTypeName = "durablepointer"

type pointerValue struct {
	Seq string `json:"seq"`
}

// Subscriber streams changes from a main store, acknowledging its position
// into a (possibly separate) metadata store after each batch is consumed.
type Subscriber struct {
	id   string
	main *store.Store
	meta *store.Store

	feed     *store.ChangesFeed
	seq      string
	needsAck bool
}

// NewSubscriber builds a Subscriber identified by id, reading changes from
// main and persisting its cursor into meta. main and meta may be the same
// store; keeping them separate lets the cursor live in a small
// administrative database instead of polluting the main one.
func NewSubscriber(main, meta *store.Store, id string) *Subscriber {
	return &Subscriber{id: id, main: main, meta: meta}
}

func (s *Subscriber) pointerGuid() record.Guid {
	guid, _ := record.NewGuid(pointerTypeName, s.id)
	return guid
}

// init loads the persisted cursor, if any, and opens the underlying changes
// feed starting right after it.
func (s *Subscriber) init(ctx context.Context) error {
	seq := ""
	if rec, err := s.meta.GetOne(ctx, s.pointerGuid()); err == nil {
		var ptr pointerValue
		if err := json.Unmarshal(rec.Value, &ptr); err == nil {
			seq = ptr.Seq
		}
	}
	s.seq = seq

	feed, err := s.main.Changes(ctx, seq)
	if err != nil {
		return fmt.Errorf("durable: opening changes feed for %q: %w", s.id, err)
	}
	s.feed = feed
	return nil
}

// Ack persists the subscriber's current position, so a future Next (in this
// process or a new one) resumes after the last change consumed.
func (s *Subscriber) Ack(ctx context.Context) error {
	if s.seq == "" {
		return nil
	}
	raw, err := json.Marshal(pointerValue{Seq: s.seq})
	if err != nil {
		return err
	}
	guid := s.pointerGuid()
	rec := record.UntypedRecord{Meta: record.NewMeta(guid), Value: raw}
	if _, err := s.meta.PutOne(ctx, rec); err != nil {
		return fmt.Errorf("durable: acking %q at %s: %w", s.id, s.seq, err)
	}
	s.needsAck = false
	return nil
}

// Next returns the next change from the feed. On the first call it loads
// the persisted cursor and opens the feed; on every call after the first it
// first acknowledges the previous change's sequence, so that a consumer
// that only ever calls Next (never Ack directly) still advances its cursor
// one change behind what it's currently processing.
func (s *Subscriber) Next(ctx context.Context) (store.Change, bool, error) {
	if s.feed == nil {
		if err := s.init(ctx); err != nil {
			return store.Change{}, false, err
		}
	}
	if s.needsAck {
		if err := s.Ack(ctx); err != nil {
			return store.Change{}, false, err
		}
	}

	change, ok := s.feed.Next()
	if !ok {
		if err := s.feed.Err(); err != nil {
			return store.Change{}, false, err
		}
		return store.Change{}, false, nil
	}
	s.seq = change.Seq
	s.needsAck = true
	return change, true, nil
}

// Close releases the underlying feed.
func (s *Subscriber) Close() error {
	if s.feed == nil {
		return nil
	}
	return s.feed.Close()
}
