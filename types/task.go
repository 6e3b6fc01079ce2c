package types

import (
	"encoding/json"
	"fmt"
)

// TaskPhase names the state a task can be in.
type TaskPhase string

const (
	TaskNone     TaskPhase = "none"
	TaskWanted   TaskPhase = "wanted"
	TaskRunning  TaskPhase = "running"
	TaskFinished TaskPhase = "finished"
)

// TaskState tracks the lifecycle of a single background task (an ASR or NLP
// run) attached to a record. It mirrors a tagged union: None and Wanted
// carry no data, Running and Finished carry the id of the job that ran or
// is running.
//
// On the wire, None/Wanted encode as a bare string ("none"/"wanted") and
// Running/Finished encode as a single-key object ({"running": "<job id>"}),
// matching the externally tagged representation every existing client of
// the record format already expects.
type TaskState struct {
	Phase TaskPhase
	JobID string
}

// MarshalJSON implements the tagged union wire format.
func (t TaskState) MarshalJSON() ([]byte, error) {
	switch t.Phase {
	case "", TaskNone:
		return json.Marshal(string(TaskNone))
	case TaskWanted:
		return json.Marshal(string(TaskWanted))
	case TaskRunning, TaskFinished:
		return json.Marshal(map[string]string{string(t.Phase): t.JobID})
	default:
		return nil, fmt.Errorf("types: unknown task phase %q", t.Phase)
	}
}

// UnmarshalJSON implements the tagged union wire format.
func (t *TaskState) UnmarshalJSON(data []byte) error {
	var s string
	if err := json.Unmarshal(data, &s); err == nil {
		switch TaskPhase(s) {
		case TaskNone, TaskWanted:
			*t = TaskState{Phase: TaskPhase(s)}
			return nil
		default:
			return fmt.Errorf("types: unknown task state %q", s)
		}
	}

	var obj map[string]string
	if err := json.Unmarshal(data, &obj); err != nil {
		return fmt.Errorf("types: invalid task state: %w", err)
	}
	for k, v := range obj {
		switch TaskPhase(k) {
		case TaskRunning, TaskFinished:
			*t = TaskState{Phase: TaskPhase(k), JobID: v}
			return nil
		default:
			return fmt.Errorf("types: unknown task state key %q", k)
		}
	}
	return fmt.Errorf("types: empty task state object")
}
