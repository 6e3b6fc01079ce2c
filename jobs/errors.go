package jobs

import "fmt"

// QueueNotFoundError describes an operation naming a queue that has never
// had CreateJob called against it. No Manager method returns it: queues are
// created implicitly, and an unknown queue reads as empty.
type QueueNotFoundError struct {
	Queue string
}

func (e *QueueNotFoundError) Error() string {
	return fmt.Sprintf("jobs: queue %q not found", e.Queue)
}

// JobNotFoundError is returned when an operation names a job id that
// doesn't exist.
type JobNotFoundError struct {
	ID uint64
}

func (e *JobNotFoundError) Error() string {
	return fmt.Sprintf("jobs: job %d not found", e.ID)
}
