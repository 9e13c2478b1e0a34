// Package queue drives download tasks from pending to a terminal state: it
// selects batches of owners, runs a bounded pool of fetch workers, resolves
// file extensions and exports a manifest of downloaded files.
package queue

import (
	"errors"
	"fmt"

	"github.com/jonathan/tender-ingest/internal/types"
)

// ErrInvalidTransition is returned for a state change the lifecycle forbids.
var ErrInvalidTransition = errors.New("invalid task state transition")

// CanTransition reports whether a task may move from one state to another.
// pending is the only state with outgoing transitions.
func CanTransition(from, to types.TaskState) bool {
	if from != types.TaskStatePending {
		return false
	}
	return to == types.TaskStateDownloaded || to == types.TaskStateFailed
}

// checkTransition wraps ErrInvalidTransition with the offending states.
func checkTransition(task types.DownloadTask, to types.TaskState) error {
	if !CanTransition(task.State, to) {
		return fmt.Errorf("%w: task %d %s -> %s", ErrInvalidTransition, task.ID, task.State, to)
	}
	return nil
}

// TaskError describes why a task ended in the failed state.
type TaskError struct {
	TaskID  int64
	Message string
	Cause   error
}

func (e *TaskError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("task %d: %s: %v", e.TaskID, e.Message, e.Cause)
	}
	return fmt.Sprintf("task %d: %s", e.TaskID, e.Message)
}

func (e *TaskError) Unwrap() error {
	return e.Cause
}
