package types

import (
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
)

// Duration is a media duration in seconds. It decodes from any of the shapes
// producers in the wild actually send: a plain number, a numeric string
// ("123", "562.5011"), or a colon-separated clock ("02:03", "02:03:01").
// A zero value decodes to nil rather than Some(0), since feeds that omit a
// duration tend to send an empty string or literal 0 rather than leaving
// the field out.
type Duration float64

// ParseDurationString parses a duration given as a string, supporting plain
// floats and HH:MM:SS / MM:SS / SS colon-separated clocks. An empty string
// parses to zero.
func ParseDurationString(s string) (float64, error) {
	if s == "" {
		return 0, nil
	}
	if f, err := strconv.ParseFloat(s, 64); err == nil {
		return f, nil
	}

	parts := strings.Split(s, ":")
	var result, factor float64 = 0, 1
	for i := len(parts) - 1; i >= 0; i-- {
		part, err := strconv.ParseFloat(parts[i], 64)
		if err != nil {
			return 0, fmt.Errorf("types: invalid duration clock %q: %w", s, err)
		}
		result += part * factor
		factor *= 60
	}
	return result, nil
}

// UnmarshalDuration decodes a raw JSON duration value (number or string)
// into an optional seconds value, per ParseDurationString's rules. A value
// of exactly zero decodes to nil.
func UnmarshalDuration(raw json.RawMessage) (*Duration, error) {
	if len(raw) == 0 || string(raw) == "null" {
		return nil, nil
	}

	var f float64
	if err := json.Unmarshal(raw, &f); err == nil {
		if f == 0 {
			return nil, nil
		}
		d := Duration(f)
		return &d, nil
	}

	var s string
	if err := json.Unmarshal(raw, &s); err != nil {
		return nil, fmt.Errorf("types: duration must be a number or a string: %w", err)
	}
	f, err := ParseDurationString(s)
	if err != nil {
		return nil, err
	}
	if f == 0 {
		return nil, nil
	}
	d := Duration(f)
	return &d, nil
}
