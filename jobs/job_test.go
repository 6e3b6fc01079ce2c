package jobs

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestStatusPending(t *testing.T) {
	assert.True(t, StatusQueued.Pending())
	assert.True(t, StatusRunning.Pending())
	assert.False(t, StatusCompleted.Pending())
	assert.False(t, StatusFailed.Pending())
}

func TestStatusFailed(t *testing.T) {
	assert.True(t, StatusFailed.Failed())
	assert.True(t, StatusCanceled.Failed())
	assert.True(t, StatusTimedOut.Failed())
	assert.False(t, StatusCompleted.Failed())
	assert.False(t, StatusQueued.Failed())
}

func TestStatusCompleted(t *testing.T) {
	assert.True(t, StatusCompleted.Completed())
	assert.False(t, StatusQueued.Completed())
}

func TestMergeOutput(t *testing.T) {
	merged, err := mergeOutput(nil, []byte(`{"a":1}`))
	assert.NoError(t, err)
	assert.JSONEq(t, `{"a":1}`, string(merged))

	merged, err = mergeOutput([]byte(`{"a":1}`), []byte(`{"b":2}`))
	assert.NoError(t, err)
	assert.JSONEq(t, `{"a":1,"b":2}`, string(merged))

	merged, err = mergeOutput([]byte(`{"a":1}`), nil)
	assert.NoError(t, err)
	assert.JSONEq(t, `{"a":1}`, string(merged))
}

func TestErrorMessages(t *testing.T) {
	assert.Contains(t, (&QueueNotFoundError{Queue: "asr"}).Error(), "asr")
	assert.Contains(t, (&JobNotFoundError{ID: 7}).Error(), "7")
}
