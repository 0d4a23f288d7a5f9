package jobs

import (
	"errors"
	"fmt"
)

var (
	// ErrSubmit wraps failures of the creation call
	ErrSubmit = errors.New("job submission failed")

	// ErrJobPoll matches every *PollError
	ErrJobPoll = errors.New("job status check failed")

	// ErrPollLimit is reported when a job is still running after the configured number of checks
	ErrPollLimit = errors.New("job did not finish within the poll limit")

	// ErrNoSource is returned when an extension is requested without a finished video
	ErrNoSource = errors.New("no previous video to extend")
)

// PollError wraps a transport or service failure during a status check
type PollError struct {
	Job string
	Err error
}

func (e *PollError) Error() string {
	return fmt.Sprintf("status check for %s failed: %v", e.Job, e.Err)
}

func (e *PollError) Unwrap() error { return e.Err }

// Is lets errors.Is(err, ErrJobPoll) match regardless of the wrapped cause
func (e *PollError) Is(target error) bool { return target == ErrJobPoll }

// JobFailedError is reported when the provider finished the job with an error of its own
type JobFailedError struct {
	Job     string
	Message string
}

func (e *JobFailedError) Error() string {
	return fmt.Sprintf("job %s failed: %s", e.Job, e.Message)
}
