package record

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestUntypedRecordRevRoundTrip(t *testing.T) {
	guid, err := NewGuid("media", "pic1")
	require.NoError(t, err)

	rec := UntypedRecord{Meta: NewMeta(guid), Value: json.RawMessage(`{"contentUrl":"http://x"}`), Rev: "3-abc"}
	obj, err := rec.IntoJSONObject()
	require.NoError(t, err)

	revRaw, ok := obj["_rev"]
	require.True(t, ok, "_rev must be carried into the flat document")
	var rev string
	require.NoError(t, json.Unmarshal(revRaw, &rev))
	assert.Equal(t, "3-abc", rev)

	flat, err := json.Marshal(obj)
	require.NoError(t, err)

	back, err := UntypedRecordFromJSONObject(flat)
	require.NoError(t, err)
	assert.Equal(t, "3-abc", back.Rev)

	var value map[string]any
	require.NoError(t, json.Unmarshal(back.Value, &value))
	_, leaked := value["_rev"]
	assert.False(t, leaked, "_rev must not leak into the decoded value")
	_, leaked = value["_id"]
	assert.False(t, leaked, "_id must not leak into the decoded value")
}

func TestUntypedRecordWithoutRev(t *testing.T) {
	guid, err := NewGuid("media", "pic1")
	require.NoError(t, err)

	rec := UntypedRecord{Meta: NewMeta(guid), Value: json.RawMessage(`{}`)}
	obj, err := rec.IntoJSONObject()
	require.NoError(t, err)
	_, ok := obj["_rev"]
	assert.False(t, ok, "an unset revision must not be written out")
}
