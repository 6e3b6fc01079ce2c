// Package record implements the typed/untyped record duality that sits at the
// center of the ingestion core: every stored entity carries a Guid, a small
// RecordMeta envelope, and a value of some registered type.
package record

import (
	"encoding/json"
	"fmt"
	"strings"
)

// Guid identifies a record across the whole system. It is always of the form
// "<type>_<id>", e.g. "media_pic1312" or "post_a1b2c3". The type prefix lets
// callers route a bare guid to the right decoder without a side lookup.
type Guid string

// NewGuid builds a Guid from a type name and an id, validating both parts.
func NewGuid(typ, id string) (Guid, error) {
	if typ == "" {
		return "", fmt.Errorf("guid: type part must not be empty")
	}
	if id == "" {
		return "", fmt.Errorf("guid: id part must not be empty")
	}
	if strings.Contains(typ, "_") {
		return "", fmt.Errorf("guid: type part %q must not contain '_'", typ)
	}
	if strings.Contains(id, "_") {
		return "", fmt.Errorf("guid: id part %q must not contain '_'", id)
	}
	return Guid(typ + "_" + id), nil
}

// ParseGuid parses and validates a raw guid string.
//
// A valid guid contains exactly one '_' separator with non-empty parts on
// both sides: "media_abc" is valid, "_abc", "media_", "media__abc", and
// "abc" (no separator) are not.
func ParseGuid(s string) (Guid, error) {
	typ, id, err := SplitGuid(s)
	if err != nil {
		return "", err
	}
	return NewGuid(typ, id)
}

// SplitGuid splits a raw guid string into its type and id parts without
// constructing a Guid, returning an error for any malformed input.
//
// A valid guid contains exactly one '_' in the whole string, with non-empty
// parts on both sides. "foo_bar" is valid; "foo_bar_boo" is not, since it
// contains two separators.
func SplitGuid(s string) (typ string, id string, err error) {
	parts := strings.Split(s, "_")
	if len(parts) != 2 {
		return "", "", fmt.Errorf("guid: %q must contain exactly one '_' separator", s)
	}
	typ, id = parts[0], parts[1]
	if typ == "" || id == "" {
		return "", "", fmt.Errorf("guid: empty type or id part in %q", s)
	}
	return typ, id, nil
}

// Type returns the type prefix of the guid.
func (g Guid) Type() string {
	typ, _, _ := SplitGuid(string(g))
	return typ
}

// ID returns the id suffix of the guid.
func (g Guid) ID() string {
	_, id, _ := SplitGuid(string(g))
	return id
}

// Valid reports whether the guid is well-formed.
func (g Guid) Valid() bool {
	_, _, err := SplitGuid(string(g))
	return err == nil
}

// String implements fmt.Stringer.
func (g Guid) String() string {
	return string(g)
}

// MarshalJSON implements json.Marshaler, encoding the guid as a plain string.
func (g Guid) MarshalJSON() ([]byte, error) {
	return json.Marshal(string(g))
}

// UnmarshalJSON implements json.Unmarshaler, validating the decoded guid.
func (g *Guid) UnmarshalJSON(data []byte) error {
	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		return err
	}
	parsed, err := ParseGuid(s)
	if err != nil {
		return err
	}
	*g = parsed
	return nil
}
