package studio

import (
	"errors"
	"fmt"
)

var (
	// ErrEmptyResult is the soft "nothing was produced" outcome
	ErrEmptyResult = errors.New("nothing was generated")

	// ErrInvalidInput marks requests rejected before any remote call
	ErrInvalidInput = errors.New("invalid input")

	// ErrBusy is returned while the panel is still handling a previous request
	ErrBusy = errors.New("a request is already in progress")

	// ErrNoArtifact is returned when a download is requested before anything was generated
	ErrNoArtifact = errors.New("artifact not available")
)

// PanelError carries the status text a panel shows for a failed action
type PanelError struct {
	Panel   string
	Message string
	Err     error
}

func (e *PanelError) Error() string {
	return fmt.Sprintf("%s: %s: %v", e.Panel, e.Message, e.Err)
}

func (e *PanelError) Unwrap() error { return e.Err }

func invalid(format string, args ...any) error {
	return fmt.Errorf("%w: %s", ErrInvalidInput, fmt.Sprintf(format, args...))
}
