package lifecycle

import (
	"errors"
	"fmt"

	"postdeck/internal/failure"
)

// ErrNotFound is returned for unknown open posts, drafts and failed records.
var ErrNotFound = errors.New("not found")

func notFound(what, id string) error {
	return fmt.Errorf("%s %s: %w", what, id, ErrNotFound)
}

// ContentIssueError means the post must be edited before resubmitting.
// Retry returns it together with the open post it routed the content to.
type ContentIssueError struct {
	PostID         string
	Classification failure.Classification
}

func (e *ContentIssueError) Error() string {
	return fmt.Sprintf("content issue (%s): %s", e.Classification.Type, e.Classification.Message)
}

func (e *ContentIssueError) Kind() string { return "content_issue" }

// TransientError is a failure that a later retry or reschedule may fix.
type TransientError struct {
	PostID         string
	Classification failure.Classification
	Err            error
}

func (e *TransientError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("transient failure (%s): %v", e.Classification.Type, e.Err)
	}
	return fmt.Sprintf("transient failure (%s): %s", e.Classification.Type, e.Classification.Message)
}

func (e *TransientError) Unwrap() error { return e.Err }

func (e *TransientError) Kind() string { return "transient" }
