package record

import (
	"context"
	"encoding/json"
	"fmt"
)

// TypedRecord pairs a record's envelope with a strongly typed value. Callers
// that know the concrete Go type of a record (because they just decoded it,
// or constructed it themselves) work with TypedRecord directly; everything
// that crosses a storage or transport boundary goes through UntypedRecord
// instead, since Go generics can't express "any T the registry knows about"
// on the wire.
type TypedRecord[T any] struct {
	Meta  Meta
	Value T
}

// NewTypedRecord builds a TypedRecord from a guid and a value.
func NewTypedRecord[T any](guid Guid, value T) TypedRecord[T] {
	return TypedRecord[T]{Meta: NewMeta(guid), Value: value}
}

// FromIDAndValue builds a TypedRecord from a type discriminator and a bare
// id, deriving the guid from the two.
func FromIDAndValue[T any](typ, id string, value T) (TypedRecord[T], error) {
	guid, err := NewGuid(typ, id)
	if err != nil {
		return TypedRecord[T]{}, err
	}
	return NewTypedRecord(guid, value), nil
}

// Guid returns the record's guid.
func (r TypedRecord[T]) Guid() Guid { return r.Meta.Guid }

// ID returns the record's bare id.
func (r TypedRecord[T]) ID() string { return r.Meta.ID }

// Type returns the record's type discriminator.
func (r TypedRecord[T]) Type() string { return r.Meta.Typ }

// IntoUntyped serializes the typed value to JSON and wraps it, together with
// the envelope, into an UntypedRecord. The value must serialize to a JSON
// object; anything else (an array, a scalar) is rejected with
// NotAnObjectError, since the envelope is merged into the value's own
// top-level object under "$meta".
func (r TypedRecord[T]) IntoUntyped() (UntypedRecord, error) {
	raw, err := json.Marshal(r.Value)
	if err != nil {
		return UntypedRecord{}, &EncodingError{Guid: r.Meta.Guid, Err: err}
	}
	var probe map[string]json.RawMessage
	if err := json.Unmarshal(raw, &probe); err != nil {
		return UntypedRecord{}, &NotAnObjectError{Guid: r.Meta.Guid}
	}
	return UntypedRecord{Meta: r.Meta, Value: raw}, nil
}

// IntoJSONObject renders the record as a single flat JSON object, merging
// "$meta" alongside the value's own fields, the shape every record takes
// once it reaches CouchDB or Elasticsearch.
func (r TypedRecord[T]) IntoJSONObject() (map[string]json.RawMessage, error) {
	u, err := r.IntoUntyped()
	if err != nil {
		return nil, err
	}
	return u.IntoJSONObject()
}

// UntypedRecord is a record whose value hasn't been decoded into a concrete
// Go type yet: just the envelope plus the raw JSON bytes of the value. This
// is what the store and index packages pass around, since they never need
// to know the concrete type of what they're persisting.
//
// Rev is CouchDB's opaque revision marker ("1-abc..."). It's empty for a
// record that hasn't been read back from the store yet; the store fills it
// in on read and consults it on write to detect conflicting updates.
type UntypedRecord struct {
	Meta  Meta
	Value json.RawMessage
	Rev   string
}

// Typ returns the record's type discriminator.
func (u UntypedRecord) Typ() string { return u.Meta.Typ }

// Guid returns the record's guid.
func (u UntypedRecord) Guid() Guid { return u.Meta.Guid }

// IntoJSONObject renders the record as a single flat JSON object, with the
// envelope under "$meta" alongside the value's own top-level fields. When
// Rev is set, it's carried along as "_rev" so a write against an existing
// guid is treated as an update of that revision rather than a conflicting
// create.
func (u UntypedRecord) IntoJSONObject() (map[string]json.RawMessage, error) {
	var obj map[string]json.RawMessage
	if err := json.Unmarshal(u.Value, &obj); err != nil {
		return nil, &NotAnObjectError{Guid: u.Meta.Guid}
	}
	metaRaw, err := json.Marshal(u.Meta)
	if err != nil {
		return nil, &EncodingError{Guid: u.Meta.Guid, Err: err}
	}
	if obj == nil {
		obj = map[string]json.RawMessage{}
	}
	obj[MetaKey] = metaRaw
	if u.Rev != "" {
		revRaw, err := json.Marshal(u.Rev)
		if err != nil {
			return nil, &EncodingError{Guid: u.Meta.Guid, Err: err}
		}
		obj["_rev"] = revRaw
	}
	return obj, nil
}

// UntypedRecordFromJSONObject parses a flat JSON object (as read back from
// CouchDB or Elasticsearch) into an UntypedRecord, splitting out the "$meta"
// envelope and CouchDB's own "_id"/"_rev" fields from the rest of the
// value's fields.
func UntypedRecordFromJSONObject(raw json.RawMessage) (UntypedRecord, error) {
	var obj map[string]json.RawMessage
	if err := json.Unmarshal(raw, &obj); err != nil {
		return UntypedRecord{}, fmt.Errorf("record: not a JSON object: %w", err)
	}
	metaRaw, ok := obj[MetaKey]
	if !ok {
		return UntypedRecord{}, fmt.Errorf("record: missing %q envelope", MetaKey)
	}
	var meta Meta
	if err := json.Unmarshal(metaRaw, &meta); err != nil {
		return UntypedRecord{}, fmt.Errorf("record: invalid %q envelope: %w", MetaKey, err)
	}
	var rev string
	if revRaw, ok := obj["_rev"]; ok {
		if err := json.Unmarshal(revRaw, &rev); err != nil {
			return UntypedRecord{}, fmt.Errorf("record: invalid %q: %w", "_rev", err)
		}
	}
	delete(obj, MetaKey)
	delete(obj, "_rev")
	delete(obj, "_id")
	valueRaw, err := json.Marshal(obj)
	if err != nil {
		return UntypedRecord{}, &EncodingError{Guid: meta.Guid, Err: err}
	}
	return UntypedRecord{Meta: meta, Value: valueRaw, Rev: rev}, nil
}

// DecodeTyped decodes an UntypedRecord's value into a TypedRecord of the
// given Go type. Callers that already know the concrete type (because
// they're about to use it) call this directly instead of going through the
// registry; DecodeViaRegistry below is for code that only knows the type
// discriminator at runtime.
func DecodeTyped[T any](u UntypedRecord) (TypedRecord[T], error) {
	var value T
	if err := json.Unmarshal(u.Value, &value); err != nil {
		return TypedRecord[T]{}, &DecodingError{Guid: u.Meta.Guid, Err: err}
	}
	return TypedRecord[T]{Meta: u.Meta, Value: value}, nil
}

// DecodeViaRegistry decodes an UntypedRecord's value using the Decode
// function registered for its type discriminator, returning the decoded
// value as an any. Validate, ExtractRefs and ResolveRefs use it to handle
// records of any registered type without knowing the type at compile time.
func DecodeViaRegistry(u UntypedRecord) (any, error) {
	info, ok := Lookup(u.Typ())
	if !ok {
		return nil, &UnknownTypeError{Type: u.Typ()}
	}
	value, err := info.Decode(u.Value)
	if err != nil {
		return nil, &DecodingError{Guid: u.Meta.Guid, Err: err}
	}
	return value, nil
}

// Validate runs the type-specific validator registered for the record's
// type against its decoded value. Records whose type has no registered
// Validate are always considered valid.
func Validate(u UntypedRecord) error {
	info, ok := Lookup(u.Typ())
	if !ok {
		return &UnknownTypeError{Type: u.Typ()}
	}
	if info.Validate == nil {
		return nil
	}
	value, err := DecodeViaRegistry(u)
	if err != nil {
		return err
	}
	if err := info.Validate(value); err != nil {
		return &ValidationError{Guid: u.Meta.Guid, Reason: err.Error()}
	}
	return nil
}

// ExtractRefs returns the guids referenced by a record's value, using the
// ExtractRefs function registered for its type. Types with no references,
// or unregistered types, yield an empty slice.
func ExtractRefs(u UntypedRecord) []Guid {
	info, ok := Lookup(u.Typ())
	if !ok || info.ExtractRefs == nil {
		return nil
	}
	value, err := DecodeViaRegistry(u)
	if err != nil {
		return nil
	}
	return info.ExtractRefs(value)
}

// ResolveRefs resolves every reference.Reference embedded in a record's
// value using the given fetch function, re-encoding the resolved value back
// into the UntypedRecord. Types with no ResolveRefs registered, or no
// references present, are returned unchanged.
func ResolveRefs(ctx context.Context, u UntypedRecord, resolve ResolveFunc) (UntypedRecord, error) {
	info, ok := Lookup(u.Typ())
	if !ok {
		return UntypedRecord{}, &UnknownTypeError{Type: u.Typ()}
	}
	if info.ResolveRefs == nil {
		return u, nil
	}
	value, err := DecodeViaRegistry(u)
	if err != nil {
		return UntypedRecord{}, err
	}
	if err := info.ResolveRefs(ctx, value, resolve); err != nil {
		return UntypedRecord{}, err
	}
	raw, err := json.Marshal(value)
	if err != nil {
		return UntypedRecord{}, &EncodingError{Guid: u.Meta.Guid, Err: err}
	}
	u.Value = raw
	return u, nil
}
