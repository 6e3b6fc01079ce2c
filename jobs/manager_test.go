package jobs

import (
	"context"
	"testing"

	"github.com/alicebob/miniredis/v2"
	"github.com/stretchr/testify/require"
)

func newTestManager(t *testing.T) *Manager {
	t.Helper()
	mr := miniredis.RunT(t)
	m, err := New(context.Background(), Config{RedisURL: "redis://" + mr.Addr()}, nil)
	require.NoError(t, err)
	t.Cleanup(func() { m.Close() })
	return m
}

func TestCreateAndPopJob(t *testing.T) {
	ctx := context.Background()
	m := newTestManager(t)

	id, err := m.CreateJob(ctx, CreateRequest{Queue: "asr", Input: []byte(`{"media_id":"pic1"}`)})
	require.NoError(t, err)

	input, err := m.NextJob(ctx, "asr")
	require.NoError(t, err)
	require.NotNil(t, input)
	require.Equal(t, id, input.ID)

	info, err := m.Job(ctx, id)
	require.NoError(t, err)
	require.Equal(t, StatusRunning, info.Status)
}

// Leased jobs must still show up as pending: a job already popped by a
// worker (Running) isn't in the Redis list NextJob drains any more, only
// in the running set PendingJobs also consults.
func TestPendingJobsIncludesRunning(t *testing.T) {
	ctx := context.Background()
	m := newTestManager(t)

	id, err := m.CreateJob(ctx, CreateRequest{Queue: "asr", Input: []byte(`{}`), Tags: []string{"media_pic1"}})
	require.NoError(t, err)

	pending, err := m.PendingJobs(ctx, "asr")
	require.NoError(t, err)
	require.ElementsMatch(t, []uint64{id}, pending)

	_, err = m.NextJob(ctx, "asr")
	require.NoError(t, err)

	pending, err = m.PendingJobs(ctx, "asr")
	require.NoError(t, err)
	require.ElementsMatch(t, []uint64{id}, pending, "a leased job must still be pending")

	tagged, err := m.PendingForTag(ctx, "asr", "media_pic1")
	require.NoError(t, err)
	require.Len(t, tagged, 1)
}

// Once a job completes, it drops out of PendingJobs and is pushed onto the
// queue's completion notification list.
func TestSetCompletedClearsPendingAndNotifies(t *testing.T) {
	ctx := context.Background()
	m := newTestManager(t)

	id, err := m.CreateJob(ctx, CreateRequest{Queue: "asr", Input: []byte(`{}`)})
	require.NoError(t, err)
	_, err = m.NextJob(ctx, "asr")
	require.NoError(t, err)

	mutated, err := m.SetCompleted(ctx, id, CompletedRequest{})
	require.NoError(t, err)
	require.Empty(t, mutated, "an untagged job has no target record to patch")

	pending, err := m.PendingJobs(ctx, "asr")
	require.NoError(t, err)
	require.Empty(t, pending)

	completed, err := m.NextCompleted(ctx, "asr")
	require.NoError(t, err)
	require.NotNil(t, completed)
	require.Equal(t, id, completed.ID)
	require.Equal(t, StatusCompleted, completed.Status)
}

func TestSetFailedClearsRunning(t *testing.T) {
	ctx := context.Background()
	m := newTestManager(t)

	id, err := m.CreateJob(ctx, CreateRequest{Queue: "nlp", Input: []byte(`{}`)})
	require.NoError(t, err)
	_, err = m.NextJob(ctx, "nlp")
	require.NoError(t, err)

	require.NoError(t, m.SetFailed(ctx, id, FailedRequest{Reason: "boom"}))

	pending, err := m.PendingJobs(ctx, "nlp")
	require.NoError(t, err)
	require.Empty(t, pending)

	info, err := m.Job(ctx, id)
	require.NoError(t, err)
	require.Equal(t, StatusFailed, info.Status)
}
