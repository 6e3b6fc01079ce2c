package store

import (
	"context"
	"encoding/json"
	"fmt"

	"oasgo.dev/core/record"
)

// PutOne writes a single record, creating it or updating it in place
// depending on whether the record's guid already has a revision on file.
// It returns the new revision.
//
// If rec carries no revision, one is looked up first: CouchDB otherwise
// treats a write against an existing guid with no "_rev" as a conflicting
// create rather than an update.
func (s *Store) PutOne(ctx context.Context, rec record.UntypedRecord) (string, error) {
	if rec.Rev == "" {
		if existing, err := s.GetOne(ctx, rec.Guid()); err == nil {
			rec.Rev = existing.Rev
		} else if _, notFound := err.(*NotFoundError); !notFound {
			return "", err
		}
	}
	doc, err := rec.IntoJSONObject()
	if err != nil {
		return "", err
	}
	rev, err := s.db.Put(ctx, string(rec.Guid()), doc)
	if err != nil {
		return "", classify(rec.Guid(), "put", err)
	}
	return rev, nil
}

// GetOne reads a single record by guid.
func (s *Store) GetOne(ctx context.Context, guid record.Guid) (record.UntypedRecord, error) {
	row := s.db.Get(ctx, string(guid))
	if row.Err() != nil {
		return record.UntypedRecord{}, classify(guid, "get", row.Err())
	}
	var raw json.RawMessage
	if err := row.ScanDoc(&raw); err != nil {
		return record.UntypedRecord{}, &TransportError{Op: "scan", Err: err}
	}
	return record.UntypedRecordFromJSONObject(raw)
}

// Resolve implements record.ResolveFunc (and, through reference.ResolverFunc,
// reference.Resolver), letting the store act directly as the fetch backend
// for reference resolution.
func (s *Store) Resolve(ctx context.Context, guid record.Guid) (record.UntypedRecord, error) {
	return s.GetOne(ctx, guid)
}

// GetMany reads a batch of records by guid, fetching them concurrently
// through CouchDB's bulk _all_docs endpoint rather than one request per
// guid.
func (s *Store) GetMany(ctx context.Context, guids []record.Guid) ([]record.UntypedRecord, error) {
	if len(guids) == 0 {
		return nil, nil
	}
	keys := make([]string, len(guids))
	for i, g := range guids {
		keys[i] = string(g)
	}
	rows := s.db.AllDocs(ctx, map[string]interface{}{
		"keys":         keys,
		"include_docs": true,
	})
	defer rows.Close()

	out := make([]record.UntypedRecord, 0, len(guids))
	for rows.Next() {
		if rows.Err() != nil {
			continue
		}
		var raw json.RawMessage
		if err := rows.ScanDoc(&raw); err != nil {
			continue
		}
		rec, err := record.UntypedRecordFromJSONObject(raw)
		if err != nil {
			continue
		}
		out = append(out, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, &TransportError{Op: "all_docs", Err: err}
	}
	return out, nil
}

// GetAllWithPrefix reads every record whose guid starts with the given type
// prefix (e.g. "post_"), using CouchDB's startkey/endkey range query over
// the default _all_docs index, which is ordered lexicographically by id.
func (s *Store) GetAllWithPrefix(ctx context.Context, prefix string) ([]record.UntypedRecord, error) {
	rows := s.db.AllDocs(ctx, map[string]interface{}{
		"include_docs": true,
		"startkey":     fmt.Sprintf("%q", prefix),
		"endkey":       fmt.Sprintf("%q", prefix+"￰"),
	})
	defer rows.Close()

	var out []record.UntypedRecord
	for rows.Next() {
		var raw json.RawMessage
		if err := rows.ScanDoc(&raw); err != nil {
			continue
		}
		rec, err := record.UntypedRecordFromJSONObject(raw)
		if err != nil {
			continue
		}
		out = append(out, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, &TransportError{Op: "all_docs", Err: err}
	}
	return out, nil
}

// Delete removes a record by guid and revision.
func (s *Store) Delete(ctx context.Context, guid record.Guid, rev string) error {
	if _, err := s.db.Delete(ctx, string(guid), rev); err != nil {
		return classify(guid, "delete", err)
	}
	return nil
}
