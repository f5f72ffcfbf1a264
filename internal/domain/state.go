package domain

import "fmt"

// StateKind enumerates the application states the UI renders against.
type StateKind string

const (
	StateIdle          StateKind = "idle"
	StateEngineMissing StateKind = "engine_missing"
	StateDownloading   StateKind = "downloading"
	StateReady         StateKind = "ready"
	StateProcessing    StateKind = "processing"
	StateDone          StateKind = "done"
	StateError         StateKind = "error"
)

// ErrorKind classifies failures surfaced to the user.
type ErrorKind string

const (
	ErrorKindNetwork     ErrorKind = "network"
	ErrorKindFileSystem  ErrorKind = "filesystem"
	ErrorKindInvalidFile ErrorKind = "invalid_file"
	ErrorKindProcess     ErrorKind = "process"
)

// Action is a user intent entering the controller.
type Action string

const (
	ActionDownload         Action = "download"
	ActionSelectFile       Action = "select_file"
	ActionStartProcessing  Action = "start_processing"
	ActionRetry            Action = "retry"
	ActionContinue         Action = "continue"
	ActionCancel           Action = "cancel"
	ActionOpenFileLocation Action = "open_file_location"
)

// Progress reports bytes transferred for the engine download.
type Progress struct {
	BytesDone  int64 `json:"bytesDone"`
	BytesTotal int64 `json:"bytesTotal"`
}

// Fraction returns completion in [0, 1], or 0 when the total is unknown.
func (p Progress) Fraction() float64 {
	if p.BytesTotal <= 0 {
		return 0
	}
	f := float64(p.BytesDone) / float64(p.BytesTotal)
	switch {
	case f < 0:
		return 0
	case f > 1:
		return 1
	}
	return f
}

// Failure describes why the application entered the error state.
type Failure struct {
	Kind     ErrorKind `json:"kind"`
	Message  string    `json:"message"`
	ExitCode int       `json:"exitCode,omitempty"`
	Stderr   string    `json:"stderr,omitempty"`
	Cause    Action    `json:"cause"`
}

// Error formats the failure for logs and UI.
func (f Failure) Error() string {
	if f.Kind == ErrorKindProcess && f.ExitCode != 0 {
		return fmt.Sprintf("%s error: %s (exit=%d)", f.Kind, f.Message, f.ExitCode)
	}
	return fmt.Sprintf("%s error: %s", f.Kind, f.Message)
}

// AppState is the controller-owned state. Only Kind-relevant fields are set.
type AppState struct {
	Kind       StateKind `json:"kind"`
	Progress   Progress  `json:"progress"`
	OutputPath string    `json:"outputPath,omitempty"`
	Failure    *Failure  `json:"failure,omitempty"`
}

// String renders a compact state label for logs.
func (s AppState) String() string {
	switch s.Kind {
	case StateDownloading:
		return fmt.Sprintf("%s(%.2f)", s.Kind, s.Progress.Fraction())
	case StateDone:
		return fmt.Sprintf("%s(%s)", s.Kind, s.OutputPath)
	case StateError:
		if s.Failure != nil {
			return fmt.Sprintf("%s(%s)", s.Kind, s.Failure.Kind)
		}
	}
	return string(s.Kind)
}
