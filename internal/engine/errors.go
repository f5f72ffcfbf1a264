package engine

import (
	"errors"
	"fmt"

	"noise-cleaner/internal/domain"
)

// ErrDownloadInProgress is returned when another process holds the install lock.
var ErrDownloadInProgress = errors.New("engine download already in progress")

// DownloadError classifies a failed download as network or filesystem trouble.
type DownloadError struct {
	Kind domain.ErrorKind
	Op   string
	Err  error
}

// Error formats download failures for logs and UI.
func (e *DownloadError) Error() string {
	if e == nil {
		return ""
	}
	if e.Err == nil {
		return e.Op
	}
	return fmt.Sprintf("%s: %v", e.Op, e.Err)
}

// Unwrap exposes the underlying error for errors.Is / errors.As.
func (e *DownloadError) Unwrap() error {
	if e == nil {
		return nil
	}
	return e.Err
}

func networkError(op string, err error) error {
	return &DownloadError{Kind: domain.ErrorKindNetwork, Op: op, Err: err}
}

func fileSystemError(op string, err error) error {
	return &DownloadError{Kind: domain.ErrorKindFileSystem, Op: op, Err: err}
}
