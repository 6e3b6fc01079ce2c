// Package reference implements the two-state reference type that lets a
// record point at another record by guid without forcing every reader to
// load the target: a Reference is either a bare id, or a fully resolved
// record.
package reference

import (
	"context"
	"encoding/json"
	"fmt"

	"oasgo.dev/core/record"
)

// Resolver fetches the record named by a guid. The store package provides
// the implementation (Store.Resolve, wrapped in ResolverFunc); reference
// itself has no storage dependency.
type Resolver interface {
	Resolve(ctx context.Context, guid record.Guid) (record.UntypedRecord, error)
}

// ResolverFunc adapts a record.ResolveFunc (or any matching function value)
// to the Resolver interface.
type ResolverFunc func(ctx context.Context, guid record.Guid) (record.UntypedRecord, error)

// Resolve implements Resolver.
func (f ResolverFunc) Resolve(ctx context.Context, guid record.Guid) (record.UntypedRecord, error) {
	return f(ctx, guid)
}

// ResolveError wraps a Resolver failure with the guid that caused it.
type ResolveError struct {
	Guid record.Guid
	Err  error
}

func (e *ResolveError) Error() string {
	return fmt.Sprintf("reference: resolving %s: %v", e.Guid, e.Err)
}

func (e *ResolveError) Unwrap() error { return e.Err }

// Reference is a value that is either an unresolved guid or a fully loaded
// record. It serializes as a bare JSON string while unresolved, and as the
// full record object once resolved, matching the untagged wire
// representation every other client of the API already expects.
type Reference[T any] struct {
	id       record.Guid
	resolved *record.TypedRecord[T]
}

// NewReferenceID builds an unresolved reference from a guid.
func NewReferenceID[T any](guid record.Guid) Reference[T] {
	return Reference[T]{id: guid}
}

// NewReferenceResolved builds an already-resolved reference from a record.
func NewReferenceResolved[T any](rec record.TypedRecord[T]) Reference[T] {
	return Reference[T]{id: rec.Guid(), resolved: &rec}
}

// Guid returns the target guid, whether or not the reference is resolved.
func (r Reference[T]) Guid() record.Guid {
	if r.resolved != nil {
		return r.resolved.Guid()
	}
	return r.id
}

// Record returns the loaded record, and whether the reference is resolved.
func (r Reference[T]) Record() (record.TypedRecord[T], bool) {
	if r.resolved == nil {
		return record.TypedRecord[T]{}, false
	}
	return *r.resolved, true
}

// Resolved reports whether the reference currently holds a loaded record.
func (r Reference[T]) Resolved() bool {
	return r.resolved != nil
}

// IntoRecord consumes the reference and returns the loaded record, if any.
func (r Reference[T]) IntoRecord() (record.TypedRecord[T], bool) {
	return r.Record()
}

// ExtractRecord detaches the loaded record from the reference, leaving it
// as an unresolved id pointing at the same guid: the parent keeps a plain
// id, and the detached child record can be written out on its own.
func (r *Reference[T]) ExtractRecord() (record.TypedRecord[T], bool) {
	if r.resolved == nil {
		return record.TypedRecord[T]{}, false
	}
	rec := *r.resolved
	r.id = rec.Guid()
	r.resolved = nil
	return rec, true
}

// SetResolved sets the reference to the resolved state, attaching the given
// record.
func (r *Reference[T]) SetResolved(rec record.TypedRecord[T]) {
	r.id = rec.Guid()
	r.resolved = &rec
}

// Resolve resolves the reference against the given Resolver if it isn't
// already resolved. Already-resolved references are left untouched.
func (r *Reference[T]) Resolve(ctx context.Context, resolver Resolver) error {
	if r.Resolved() {
		return nil
	}
	return r.ForceResolve(ctx, resolver)
}

// ForceResolve resolves the reference against the given Resolver even if it
// is already resolved, overwriting any previously loaded record.
func (r *Reference[T]) ForceResolve(ctx context.Context, resolver Resolver) error {
	untyped, err := resolver.Resolve(ctx, r.id)
	if err != nil {
		return &ResolveError{Guid: r.id, Err: err}
	}
	typed, err := record.DecodeTyped[T](untyped)
	if err != nil {
		return &ResolveError{Guid: r.id, Err: err}
	}
	r.resolved = &typed
	return nil
}

// MarshalJSON implements the untagged enum: an unresolved reference
// serializes as its bare guid string, a resolved one as the full record
// object (envelope merged with value fields).
func (r Reference[T]) MarshalJSON() ([]byte, error) {
	if r.resolved == nil {
		return json.Marshal(string(r.id))
	}
	obj, err := r.resolved.IntoJSONObject()
	if err != nil {
		return nil, err
	}
	return json.Marshal(obj)
}

// UnmarshalJSON implements the untagged enum: a bare JSON string decodes to
// an unresolved reference, a JSON object decodes to a resolved record.
func (r *Reference[T]) UnmarshalJSON(data []byte) error {
	var id string
	if err := json.Unmarshal(data, &id); err == nil {
		guid, err := record.ParseGuid(id)
		if err != nil {
			return err
		}
		r.id = guid
		r.resolved = nil
		return nil
	}

	untyped, err := record.UntypedRecordFromJSONObject(data)
	if err != nil {
		return fmt.Errorf("reference: neither a guid string nor a record object: %w", err)
	}
	typed, err := record.DecodeTyped[T](untyped)
	if err != nil {
		return err
	}
	r.id = typed.Guid()
	r.resolved = &typed
	return nil
}

// ExtractRefs detaches every loaded record from a slice of references,
// turning each into a bare id, and returns the detached records as untyped
// records ready to be written out on their own. References that were
// already unresolved, or whose detached record fails to serialize, are
// skipped.
func ExtractRefs[T any](refs []Reference[T]) []record.UntypedRecord {
	out := make([]record.UntypedRecord, 0, len(refs))
	for i := range refs {
		rec, ok := refs[i].ExtractRecord()
		if !ok {
			continue
		}
		untyped, err := rec.IntoUntyped()
		if err != nil {
			continue
		}
		out = append(out, untyped)
	}
	return out
}
