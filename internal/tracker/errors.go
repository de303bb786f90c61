package tracker

import (
	"errors"
	"fmt"
	"strings"
)

var (
	// ErrInvalidTaskType is returned when a task type is not in the registry.
	ErrInvalidTaskType = errors.New("tracker: invalid task type")
	// ErrItemNotFound is returned for item-scoped operations on unknown items.
	ErrItemNotFound = errors.New("tracker: item not found")
	// ErrDependencyNotMet is returned when a task is started before its prerequisites complete.
	ErrDependencyNotMet = errors.New("tracker: dependencies not met")
	// ErrGroupNotFound is returned when neither a tracker document nor a bootstrap list exists.
	ErrGroupNotFound = errors.New("tracker: group not found")
	// ErrInvalidGroup is returned for group keys that cannot be stored safely.
	ErrInvalidGroup = errors.New("tracker: invalid group key")
)

// TaskError attaches the task coordinates to one of the sentinel errors.
type TaskError struct {
	Group    string
	Item     string
	TaskType string
	Detail   string
	Err      error
}

func (e *TaskError) Error() string {
	target := e.Group
	if e.Item != "" {
		target += "/" + e.Item
	}
	msg := fmt.Sprintf("%v: %s %s", e.Err, target, e.TaskType)
	if e.Detail != "" {
		msg += " (" + e.Detail + ")"
	}
	return msg
}

func (e *TaskError) Unwrap() error {
	return e.Err
}

func taskError(err error, group, item, taskType, detail string) error {
	return &TaskError{Group: group, Item: item, TaskType: taskType, Detail: detail, Err: err}
}

// ValidateGroup rejects keys that would escape a storage directory.
func ValidateGroup(group string) error {
	trimmed := strings.TrimSpace(group)
	if trimmed == "" {
		return fmt.Errorf("%w: empty", ErrInvalidGroup)
	}
	if trimmed != group || strings.ContainsAny(group, `/\`) || strings.Contains(group, "..") {
		return fmt.Errorf("%w: %q", ErrInvalidGroup, group)
	}
	return nil
}
