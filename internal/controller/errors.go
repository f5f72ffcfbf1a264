package controller

import (
	"errors"
	"fmt"

	"noise-cleaner/internal/domain"
	"noise-cleaner/internal/engine"
	"noise-cleaner/internal/intake"
	"noise-cleaner/internal/jobs"
	"noise-cleaner/internal/runner"
)

// ErrStopped is returned by actions dispatched after Run has exited.
var ErrStopped = errors.New("controller stopped")

// ErrAlreadyRunning is returned when Run is called twice.
var ErrAlreadyRunning = errors.New("controller already running")

// ActionError rejects an action that is not valid in the current state.
type ActionError struct {
	Action domain.Action
	State  domain.StateKind
}

// Error formats the rejected action.
func (e *ActionError) Error() string {
	return fmt.Sprintf("action %s is not available in state %s", e.Action, e.State)
}

// classify maps a component error onto the user-facing failure taxonomy.
func classify(err error, cause domain.Action) domain.Failure {
	failure := domain.Failure{Message: err.Error(), Cause: cause}

	var dlErr *engine.DownloadError
	var invalid *intake.InvalidFileError
	var procErr *runner.ProcessError

	switch {
	case errors.As(err, &dlErr):
		failure.Kind = dlErr.Kind
	case errors.As(err, &invalid):
		failure.Kind = domain.ErrorKindInvalidFile
	case errors.As(err, &procErr):
		failure.Kind = procErr.Kind
		failure.Message = procErr.Message
		failure.ExitCode = procErr.ExitCode
		failure.Stderr = procErr.Stderr
	case errors.Is(err, jobs.ErrJobAlreadyRunning):
		failure.Kind = domain.ErrorKindProcess
	case cause == domain.ActionDownload:
		failure.Kind = domain.ErrorKindNetwork
	case cause == domain.ActionSelectFile:
		failure.Kind = domain.ErrorKindInvalidFile
	default:
		failure.Kind = domain.ErrorKindProcess
	}

	if failure.Kind == "" {
		failure.Kind = domain.ErrorKindProcess
	}
	return failure
}
