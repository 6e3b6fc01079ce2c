package record

// Meta is the envelope every record carries alongside its typed value: the
// guid, the bare id, the type discriminator, and the jobs log.
//
// Meta is embedded into the JSON representation of a record under the
// reserved "$meta" key, the same place the wire format has always put it,
// so that untyped and typed decodes agree on where the envelope lives.
type Meta struct {
	Guid Guid    `json:"guid"`
	Typ  string  `json:"type"`
	ID   string  `json:"id"`
	Jobs JobsLog `json:"jobs,omitempty"`
}

// MetaKey is the reserved JSON key an encoded record's envelope lives under.
const MetaKey = "$meta"

// NewMeta builds a Meta from a guid, deriving type and id from it.
func NewMeta(guid Guid) Meta {
	return Meta{
		Guid: guid,
		Typ:  guid.Type(),
		ID:   guid.ID(),
	}
}
