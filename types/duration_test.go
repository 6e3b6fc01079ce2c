package types

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestUnmarshalDuration(t *testing.T) {
	tests := []struct {
		name string
		raw  string
		want *Duration
	}{
		{name: "clock mm:ss", raw: `"02:03"`, want: durationPtr(123)},
		{name: "clock hh:mm:ss", raw: `"02:03:01"`, want: durationPtr(7381)},
		{name: "numeric string", raw: `"64"`, want: durationPtr(64)},
		{name: "integer", raw: `123`, want: durationPtr(123)},
		{name: "float", raw: `562.5011`, want: durationPtr(562.5011)},
		{name: "absent field zero", raw: ``, want: nil},
		{name: "explicit zero", raw: `0`, want: nil},
		{name: "null", raw: `null`, want: nil},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := UnmarshalDuration(json.RawMessage(tt.raw))
			require.NoError(t, err)
			if tt.want == nil {
				assert.Nil(t, got)
				return
			}
			require.NotNil(t, got)
			assert.InDelta(t, float64(*tt.want), float64(*got), 0.0001)
		})
	}
}

func durationPtr(f float64) *Duration {
	d := Duration(f)
	return &d
}
