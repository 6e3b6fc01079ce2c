package types

import "encoding/json"

// extractOther returns every top-level field of a JSON object not named in
// known, implementing the "serde(flatten)" catch-all field the original
// record types carried for forward compatibility with unrecognized
// producer fields.
func extractOther(data []byte, known []string) map[string]json.RawMessage {
	var obj map[string]json.RawMessage
	if err := json.Unmarshal(data, &obj); err != nil {
		return nil
	}
	knownSet := make(map[string]struct{}, len(known))
	for _, k := range known {
		knownSet[k] = struct{}{}
	}
	other := make(map[string]json.RawMessage)
	for k, v := range obj {
		if _, ok := knownSet[k]; ok {
			continue
		}
		other[k] = v
	}
	if len(other) == 0 {
		return nil
	}
	return other
}

// mergeOther merges extra fields back into an already-serialized JSON
// object, the inverse of extractOther.
func mergeOther(raw []byte, other map[string]json.RawMessage) ([]byte, error) {
	if len(other) == 0 {
		return raw, nil
	}
	var obj map[string]json.RawMessage
	if err := json.Unmarshal(raw, &obj); err != nil {
		return nil, err
	}
	for k, v := range other {
		if _, exists := obj[k]; !exists {
			obj[k] = v
		}
	}
	return json.Marshal(obj)
}
