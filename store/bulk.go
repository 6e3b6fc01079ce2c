package store

import (
	"context"
	"encoding/json"

	jsonpatch "github.com/evanphx/json-patch/v5"

	"oasgo.dev/core/record"
)

// BulkResult reports the outcome of one document in a PutBulk call.
type BulkResult struct {
	Guid  record.Guid
	Rev   string
	Error error
}

// PutBulk writes many records in a single request via CouchDB's _bulk_docs
// endpoint. Results are returned in the same order as the input records;
// a per-document failure (most commonly a conflict) doesn't fail the whole
// batch, it's reported in that document's BulkResult.
func (s *Store) PutBulk(ctx context.Context, recs []record.UntypedRecord) ([]BulkResult, error) {
	if len(recs) == 0 {
		return nil, nil
	}
	docs := make([]interface{}, len(recs))
	for i, rec := range recs {
		doc, err := rec.IntoJSONObject()
		if err != nil {
			docs[i] = nil
			continue
		}
		idRaw, _ := json.Marshal(string(rec.Guid()))
		doc["_id"] = idRaw
		docs[i] = doc
	}

	results, err := s.db.BulkDocs(ctx, docs)
	if err != nil {
		return nil, &TransportError{Op: "bulk_docs", Err: err}
	}

	out := make([]BulkResult, len(recs))
	indexByID := make(map[string]int, len(recs))
	for i, rec := range recs {
		out[i] = BulkResult{Guid: rec.Guid()}
		indexByID[string(rec.Guid())] = i
	}
	for _, res := range results {
		idx, ok := indexByID[res.ID]
		if !ok {
			continue
		}
		if res.Error != nil {
			out[idx].Error = classify(recs[idx].Guid(), "bulk_docs", res.Error)
			continue
		}
		out[idx].Rev = res.Rev
	}
	return out, nil
}

// Patch describes one record's share of a PutBulkUpdate call: an optional
// RFC 6902 JSON Patch to apply to its value, and an optional job-log entry
// to append once the patch lands.
type Patch struct {
	// Ops is an RFC 6902 JSON Patch document. A nil or empty Ops applies no
	// change to the value itself, so a job can still append a log entry
	// against a record it didn't need to mutate.
	Ops json.RawMessage
	// JobCompleted, if set, is appended to the record's meta.jobs.completed
	// log.
	JobCompleted *record.JobTypID
	// JobFailed, if set, is appended to the record's meta.jobs.failed log.
	JobFailed *record.JobTypID
}

// PutBulkUpdate applies a batch of patches to existing records in a single
// round trip: it pre-fetches the current revision of every targeted guid
// (so callers need not track revisions themselves), applies each patch's
// JSON Patch ops and job-log entries, and commits the result via PutBulk.
// A per-record failure (missing guid, bad patch, lost write race) excludes
// that guid from the returned list without failing the others.
func (s *Store) PutBulkUpdate(ctx context.Context, updates map[record.Guid]Patch) ([]record.Guid, error) {
	if len(updates) == 0 {
		return nil, nil
	}

	guids := make([]record.Guid, 0, len(updates))
	for guid := range updates {
		guids = append(guids, guid)
	}
	current, err := s.GetMany(ctx, guids)
	if err != nil {
		return nil, err
	}

	recs := make([]record.UntypedRecord, 0, len(current))
	for _, rec := range current {
		patch, ok := updates[rec.Guid()]
		if !ok {
			continue
		}
		if len(patch.Ops) > 0 {
			decoded, err := jsonpatch.DecodePatch(patch.Ops)
			if err != nil {
				continue
			}
			value, err := decoded.Apply(rec.Value)
			if err != nil {
				continue
			}
			rec.Value = value
		}
		if patch.JobCompleted != nil {
			rec.Meta.Jobs.InsertCompleted(patch.JobCompleted.Type, patch.JobCompleted.JobID)
		}
		if patch.JobFailed != nil {
			rec.Meta.Jobs.InsertFailed(patch.JobFailed.Type, patch.JobFailed.JobID)
		}
		recs = append(recs, rec)
	}

	results, err := s.PutBulk(ctx, recs)
	if err != nil {
		return nil, err
	}

	mutated := make([]record.Guid, 0, len(results))
	for _, res := range results {
		if res.Error != nil {
			continue
		}
		mutated = append(mutated, res.Guid)
	}
	return mutated, nil
}
