package jobs

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"
	"time"

	jsonpatch "github.com/evanphx/json-patch/v5"
	"github.com/redis/go-redis/v9"

	"oasgo.dev/core/record"
	"oasgo.dev/core/store"
)

// Manager is a Redis-backed job queue. Queues are created implicitly the
// first time a job is pushed to them; there is no separate queue
// registration step and no per-queue policy: no timeout, heartbeat
// timeout, expiry or retry limit is applied to jobs, and
// CreateRequest.Timeout is not stored.
//
// store is the document store a completed job's result patches are applied
// to: job tags name the guids a job ran against, and completion needs to
// mutate those records directly, not just the job's own bookkeeping.
type Manager struct {
	client *redis.Client
	prefix string
	store  *store.Store
}

// Config configures a Manager's Redis connection.
type Config struct {
	// RedisURL is a redis:// connection string, e.g. "redis://localhost:6379/0".
	RedisURL string
	// KeyPrefix namespaces every key the manager writes. Defaults to "jobs:".
	KeyPrefix string
}

// New connects to Redis and returns a Manager. st is the document store
// completed jobs apply their result patches to.
func New(ctx context.Context, cfg Config, st *store.Store) (*Manager, error) {
	opts, err := redis.ParseURL(cfg.RedisURL)
	if err != nil {
		return nil, fmt.Errorf("jobs: parsing redis url: %w", err)
	}
	client := redis.NewClient(opts)
	if err := client.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("jobs: connecting to redis: %w", err)
	}

	prefix := cfg.KeyPrefix
	if prefix == "" {
		prefix = "jobs:"
	}
	return &Manager{client: client, prefix: prefix, store: st}, nil
}

// Close closes the manager's Redis connection.
func (m *Manager) Close() error {
	return m.client.Close()
}

func (m *Manager) queueKey(queue string) string     { return m.prefix + "queue:" + queue + ":pending" }
func (m *Manager) runningKey(queue string) string   { return m.prefix + "queue:" + queue + ":running" }
func (m *Manager) completedKey(queue string) string { return m.prefix + "queue:" + queue + ":completed" }
func (m *Manager) queueSetKey() string              { return m.prefix + "queues" }
func (m *Manager) jobKey(id uint64) string          { return fmt.Sprintf("%sjob:%d", m.prefix, id) }
func (m *Manager) seqKey() string                   { return m.prefix + "seq" }

// jobRecord is the on-the-wire shape of a job stored in its Redis hash.
type jobRecord struct {
	ID        uint64          `json:"id"`
	Queue     string          `json:"queue"`
	Status    Status          `json:"status"`
	Tags      []string        `json:"tags,omitempty"`
	Input     json.RawMessage `json:"input"`
	Output    json.RawMessage `json:"output,omitempty"`
	CreatedAt time.Time       `json:"createdAt"`
	EndedAt   *time.Time      `json:"endedAt,omitempty"`
}

func (r jobRecord) info() Info {
	return Info{
		ID: r.ID, Queue: r.Queue, Status: r.Status, Tags: r.Tags,
		Input: r.Input, Output: r.Output, CreatedAt: r.CreatedAt, EndedAt: r.EndedAt,
	}
}

// CreateJob enqueues a job on the named queue, creating the queue if this
// is the first job pushed to it, and returns its id.
func (m *Manager) CreateJob(ctx context.Context, req CreateRequest) (uint64, error) {
	id, err := m.client.Incr(ctx, m.seqKey()).Result()
	if err != nil {
		return 0, fmt.Errorf("jobs: allocating job id: %w", err)
	}
	jobID := uint64(id)

	rec := jobRecord{
		ID: jobID, Queue: req.Queue, Status: StatusQueued, Tags: req.Tags,
		Input: req.Input, CreatedAt: time.Now(),
	}
	raw, err := json.Marshal(rec)
	if err != nil {
		return 0, err
	}

	pipe := m.client.TxPipeline()
	pipe.Set(ctx, m.jobKey(jobID), raw, 0)
	pipe.SAdd(ctx, m.queueSetKey(), req.Queue)
	pipe.RPush(ctx, m.queueKey(req.Queue), jobID)
	if _, err := pipe.Exec(ctx); err != nil {
		return 0, fmt.Errorf("jobs: creating job: %w", err)
	}
	return jobID, nil
}

// NextJob blocks until a job is available on the named queue, or the
// context is cancelled, marking the popped job running.
func (m *Manager) NextJob(ctx context.Context, queue string) (*Input, error) {
	result, err := m.client.BLPop(ctx, 0, m.queueKey(queue)).Result()
	if err != nil {
		if err == redis.Nil {
			return nil, nil
		}
		return nil, fmt.Errorf("jobs: popping from %q: %w", queue, err)
	}
	if len(result) < 2 {
		return nil, nil
	}
	var jobID uint64
	if _, err := fmt.Sscanf(result[1], "%d", &jobID); err != nil {
		return nil, fmt.Errorf("jobs: parsing popped job id: %w", err)
	}

	rec, err := m.getRecord(ctx, jobID)
	if err != nil {
		return nil, err
	}
	rec.Status = StatusRunning
	if err := m.putRecord(ctx, *rec); err != nil {
		return nil, err
	}
	if err := m.client.SAdd(ctx, m.runningKey(queue), jobID).Err(); err != nil {
		return nil, fmt.Errorf("jobs: marking job %d running: %w", jobID, err)
	}
	return &Input{ID: jobID, Input: rec.Input}, nil
}

func (m *Manager) getRecord(ctx context.Context, id uint64) (*jobRecord, error) {
	raw, err := m.client.Get(ctx, m.jobKey(id)).Bytes()
	if err != nil {
		if err == redis.Nil {
			return nil, &JobNotFoundError{ID: id}
		}
		return nil, fmt.Errorf("jobs: reading job %d: %w", id, err)
	}
	var rec jobRecord
	if err := json.Unmarshal(raw, &rec); err != nil {
		return nil, fmt.Errorf("jobs: decoding job %d: %w", id, err)
	}
	return &rec, nil
}

func (m *Manager) putRecord(ctx context.Context, rec jobRecord) error {
	raw, err := json.Marshal(rec)
	if err != nil {
		return err
	}
	return m.client.Set(ctx, m.jobKey(rec.ID), raw, 0).Err()
}

// Job returns the current state of a job by id.
func (m *Manager) Job(ctx context.Context, id uint64) (*Info, error) {
	rec, err := m.getRecord(ctx, id)
	if err != nil {
		return nil, err
	}
	info := rec.info()
	return &info, nil
}

// PendingJobs returns the ids that are queued-or-running in a queue: still
// waiting to be popped, or already leased by a worker but not yet
// terminal. Status Pending (Queued or Running) is the authoritative test;
// the two Redis collections are just how each state is tracked.
func (m *Manager) PendingJobs(ctx context.Context, queue string) ([]uint64, error) {
	queued, err := m.client.LRange(ctx, m.queueKey(queue), 0, -1).Result()
	if err != nil {
		return nil, fmt.Errorf("jobs: listing %q: %w", queue, err)
	}
	running, err := m.client.SMembers(ctx, m.runningKey(queue)).Result()
	if err != nil {
		return nil, fmt.Errorf("jobs: listing running %q: %w", queue, err)
	}

	seen := make(map[uint64]struct{}, len(queued)+len(running))
	ids := make([]uint64, 0, len(queued)+len(running))
	for _, s := range append(queued, running...) {
		var id uint64
		if _, err := fmt.Sscanf(s, "%d", &id); err != nil {
			continue
		}
		if _, dup := seen[id]; dup {
			continue
		}
		seen[id] = struct{}{}
		ids = append(ids, id)
	}
	return ids, nil
}

// clearRunning removes id from its queue's running set, called once a job
// reaches a terminal status.
func (m *Manager) clearRunning(ctx context.Context, queue string, id uint64) error {
	if err := m.client.SRem(ctx, m.runningKey(queue), id).Err(); err != nil {
		return fmt.Errorf("jobs: clearing running job %d: %w", id, err)
	}
	return nil
}

// AllQueues returns every queue name a job has ever been created against.
func (m *Manager) AllQueues(ctx context.Context) ([]string, error) {
	return m.client.SMembers(ctx, m.queueSetKey()).Result()
}

// SetProgress merges a JSON Merge Patch (RFC 7396) into a running job's
// output, letting a worker report partial results without waiting for
// completion.
func (m *Manager) SetProgress(ctx context.Context, id uint64, req ProgressRequest) error {
	rec, err := m.getRecord(ctx, id)
	if err != nil {
		return err
	}
	merged, err := mergeOutput(rec.Output, req.Output)
	if err != nil {
		return err
	}
	rec.Output = merged
	return m.putRecord(ctx, *rec)
}

// SetCompleted marks a job completed: each entry in req.Patches applies an
// RFC 6902 JSON Patch to the named record in the store, and every guid the
// job was tagged against (whether or not it had a patch supplied) gets a
// (queue, job id) entry appended to its meta.jobs.completed log. It returns
// the guids successfully mutated. Patch application is serialized through
// the store's bulk-update path, which pre-fetches each target's revision.
func (m *Manager) SetCompleted(ctx context.Context, id uint64, req CompletedRequest) ([]string, error) {
	rec, err := m.getRecord(ctx, id)
	if err != nil {
		return nil, err
	}

	jobTyp := record.JobTypID{Type: rec.Queue, JobID: strconv.FormatUint(id, 10)}
	updates := make(map[record.Guid]store.Patch, len(rec.Tags))
	for _, tag := range rec.Tags {
		guid, err := record.ParseGuid(tag)
		if err != nil {
			continue
		}
		entry := jobTyp
		updates[guid] = store.Patch{Ops: req.Patches[tag], JobCompleted: &entry}
	}
	for target, ops := range req.Patches {
		guid, err := record.ParseGuid(target)
		if err != nil {
			continue
		}
		if _, tagged := updates[guid]; !tagged {
			updates[guid] = store.Patch{Ops: ops}
		}
	}

	var mutated []string
	if len(updates) > 0 {
		guids, err := m.store.PutBulkUpdate(ctx, updates)
		if err != nil {
			return nil, fmt.Errorf("jobs: applying result patches for job %d: %w", id, err)
		}
		mutated = make([]string, len(guids))
		for i, g := range guids {
			mutated[i] = string(g)
		}
	}

	meta := map[string]any{"duration": req.Duration.String()}
	if req.Meta != nil {
		var extra map[string]any
		if err := json.Unmarshal(req.Meta, &extra); err == nil {
			for k, v := range extra {
				meta[k] = v
			}
		}
	}
	metaRaw, err := json.Marshal(meta)
	if err != nil {
		return nil, err
	}
	output, err := mergeOutput(rec.Output, metaRaw)
	if err != nil {
		return nil, err
	}

	now := time.Now()
	rec.Status = StatusCompleted
	rec.Output = output
	rec.EndedAt = &now
	if err := m.putRecord(ctx, *rec); err != nil {
		return nil, err
	}
	if err := m.clearRunning(ctx, rec.Queue, id); err != nil {
		return nil, err
	}
	if err := m.client.RPush(ctx, m.completedKey(rec.Queue), id).Err(); err != nil {
		return nil, fmt.Errorf("jobs: notifying completion of job %d: %w", id, err)
	}
	return mutated, nil
}

// NextCompleted blocks until a job on queue completes, returning its info.
// Watchers use this to react to completions (e.g. fanning out a derived
// job) instead of polling every job on the queue.
func (m *Manager) NextCompleted(ctx context.Context, queue string) (*Info, error) {
	result, err := m.client.BLPop(ctx, 0, m.completedKey(queue)).Result()
	if err != nil {
		if err == redis.Nil {
			return nil, nil
		}
		return nil, fmt.Errorf("jobs: popping completed from %q: %w", queue, err)
	}
	if len(result) < 2 {
		return nil, nil
	}
	var jobID uint64
	if _, err := fmt.Sscanf(result[1], "%d", &jobID); err != nil {
		return nil, fmt.Errorf("jobs: parsing completed job id: %w", err)
	}
	return m.Job(ctx, jobID)
}

// SetFailed marks a job failed, recording the failure reason in its output.
func (m *Manager) SetFailed(ctx context.Context, id uint64, req FailedRequest) error {
	rec, err := m.getRecord(ctx, id)
	if err != nil {
		return err
	}
	reasonRaw, err := json.Marshal(map[string]string{"error": req.Reason})
	if err != nil {
		return err
	}
	merged, err := mergeOutput(rec.Output, reasonRaw)
	if err != nil {
		return err
	}
	now := time.Now()
	rec.Status = StatusFailed
	rec.Output = merged
	rec.EndedAt = &now
	if err := m.putRecord(ctx, *rec); err != nil {
		return err
	}
	return m.clearRunning(ctx, rec.Queue, id)
}

func mergeOutput(current, patch json.RawMessage) (json.RawMessage, error) {
	if len(patch) == 0 {
		return current, nil
	}
	if len(current) == 0 {
		return patch, nil
	}
	merged, err := jsonpatch.MergePatch(current, patch)
	if err != nil {
		return nil, fmt.Errorf("jobs: merging output: %w", err)
	}
	return merged, nil
}
