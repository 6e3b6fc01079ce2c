package types

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"oasgo.dev/core/record"
)

func TestMediaUnmarshalDuration(t *testing.T) {
	source := `{"contentUrl": "foo", "duration": "02:03"}`
	var m Media
	require.NoError(t, json.Unmarshal([]byte(source), &m))
	require.NotNil(t, m.Duration)
	assert.InDelta(t, 123.0, float64(*m.Duration), 0.0001)
}

func TestMediaUnmarshalKeepsUnknownFields(t *testing.T) {
	source := `{"contentUrl": "foo", "customField": "bar"}`
	var m Media
	require.NoError(t, json.Unmarshal([]byte(source), &m))
	require.Contains(t, m.Other, "customField")

	raw, err := json.Marshal(m)
	require.NoError(t, err)
	var roundtrip map[string]json.RawMessage
	require.NoError(t, json.Unmarshal(raw, &roundtrip))
	assert.Contains(t, roundtrip, "customField")
}

func TestMediaTypeIsRegistered(t *testing.T) {
	_, ok := record.Lookup(MediaTypeName)
	assert.True(t, ok)
}
