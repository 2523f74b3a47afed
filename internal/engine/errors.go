package engine

import (
	"errors"
	"fmt"
)

// ErrConflict is returned when a stage move loses the race against another
// writer: the application's current stage changed between read and write.
var ErrConflict = errors.New("application stage changed concurrently")

// ErrDuplicate is returned when an insert collides with an existing record,
// such as a second application with the same email for one job or a second
// tag with the same label.
var ErrDuplicate = errors.New("already exists")

// InvalidStageError rejects a stage that cannot be used where it was given:
// it does not belong to the job, is inactive, or its definition is malformed.
type InvalidStageError struct {
	StageID string
	Reason  string
}

func (e InvalidStageError) Error() string {
	if e.StageID == "" {
		return fmt.Sprintf("invalid stage: %s", e.Reason)
	}
	return fmt.Sprintf("invalid stage %s: %s", e.StageID, e.Reason)
}

// InvalidTagError rejects a tag that is not in the company's catalog or has a
// malformed definition.
type InvalidTagError struct {
	TagID  string
	Reason string
}

func (e InvalidTagError) Error() string {
	if e.TagID == "" {
		return fmt.Sprintf("invalid tag: %s", e.Reason)
	}
	return fmt.Sprintf("invalid tag %s: %s", e.TagID, e.Reason)
}
