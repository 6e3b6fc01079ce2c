package record

import (
	"context"
	"encoding/json"
)

// ResolveFunc fetches a single record by guid. The reference package wraps
// a ResolveFunc to satisfy its own Resolver interface, and the store
// package provides the concrete implementation; record itself stays
// storage-agnostic.
type ResolveFunc func(ctx context.Context, guid Guid) (UntypedRecord, error)

// TypeInfo is everything the registry needs to treat a Go type as a record
// value type: how to decode it, validate it, index it, and walk its
// references.
type TypeInfo struct {
	// Decode parses a raw JSON value into a value of this type, returning it
	// as an any so the registry can stay generic over Go's type parameters.
	Decode func(raw json.RawMessage) (any, error)

	// Validate runs type-specific invariant checks beyond what Decode's JSON
	// unmarshaling already enforces. A nil Validate means "always valid".
	Validate func(value any) error

	// IndexMapping is the Elasticsearch field mapping fragment for this
	// type. The registry only stores it; index creation does not read it
	// from here.
	IndexMapping map[string]any

	// ExtractRefs returns the guids of every reference.Reference field
	// embedded in the value, resolved or not.
	ExtractRefs func(value any) []Guid

	// ResolveRefs walks the value's reference.Reference fields in place,
	// resolving each against the given fetch function. Types with no
	// references may leave this nil.
	ResolveRefs func(ctx context.Context, value any, resolve ResolveFunc) error
}

// registry holds one TypeInfo per registered type discriminator, keyed by
// the string used as a guid's type prefix ("post", "media", "feed", ...).
var registry = map[string]TypeInfo{}

// Register adds a type to the registry under the given discriminator. It is
// meant to be called from an init() function in the types package, one call
// per concrete record type, so that importing the types package is enough
// to make every record type it defines available by guid prefix.
//
// Register panics on a duplicate discriminator: two types fighting over the
// same prefix is a programming error, not a runtime condition to recover
// from.
func Register(discriminator string, info TypeInfo) {
	if _, exists := registry[discriminator]; exists {
		panic("record: duplicate type registered for " + discriminator)
	}
	registry[discriminator] = info
}

// Lookup returns the TypeInfo registered for a discriminator, and whether
// one was found.
func Lookup(discriminator string) (TypeInfo, bool) {
	info, ok := registry[discriminator]
	return info, ok
}

// RegisteredTypes returns the discriminators of every registered type, in no
// particular order. Useful for building the Elasticsearch index template
// and for CLI introspection commands.
func RegisteredTypes() []string {
	names := make([]string, 0, len(registry))
	for name := range registry {
		names = append(names, name)
	}
	return names
}
