package orchestrator

import "oasgo.dev/core/types"

// searchFields merges every record type's field mapping into the single
// set of top-level properties the index is created with: posts, media and
// feeds all live in the same index, distinguished by their "$meta.type".
func searchFields() map[string]any {
	fields := map[string]any{
		"$meta": map[string]any{
			"properties": map[string]any{
				"guid": map[string]any{"type": "keyword"},
				"type": map[string]any{"type": "keyword"},
				"id":   map[string]any{"type": "keyword"},
			},
		},
	}
	for k, v := range types.PostIndexMapping {
		fields[k] = v
	}
	for k, v := range types.FeedIndexMapping {
		if _, exists := fields[k]; !exists {
			fields[k] = v
		}
	}
	return fields
}
