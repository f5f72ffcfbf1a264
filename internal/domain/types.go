package domain

// JobStatus tracks the lifecycle of one engine invocation.
type JobStatus string

const (
	JobStatusPending   JobStatus = "pending"
	JobStatusRunning   JobStatus = "running"
	JobStatusSucceeded JobStatus = "succeeded"
	JobStatusFailed    JobStatus = "failed"
	JobStatusCancelled JobStatus = "cancelled"
)

// Settings contains runtime configuration resolved at startup.
type Settings struct {
	EngineURL       string `json:"engineUrl" toml:"engine_url"`
	EngineDir       string `json:"engineDir" toml:"engine_dir"`
	OutputSubdir    string `json:"outputSubdir" toml:"output_subdir"`
	DownloadTimeout int    `json:"downloadTimeout" toml:"download_timeout"`
	LogLevel        string `json:"logLevel" toml:"log_level"`
	LogFormat       string `json:"logFormat" toml:"log_format"`
}

// EngineBinary is the locally installed noise-suppression executable.
type EngineBinary struct {
	Path    string `json:"path"`
	Present bool   `json:"present"`
}

// SelectedFile is the validated input chosen by drop or dialog.
type SelectedFile struct {
	Path string `json:"path"`
	Name string `json:"name"`
	Size int64  `json:"size"`
}

// ProcessingJob is one invocation of the engine against a selected file.
type ProcessingJob struct {
	ID         string    `json:"id"`
	InputPath  string    `json:"inputPath"`
	OutputPath string    `json:"outputPath"`
	Status     JobStatus `json:"status"`
}
