package runner

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/exec"
	"path/filepath"
	"strings"

	"github.com/google/uuid"

	"noise-cleaner/internal/domain"
	"noise-cleaner/internal/jobs"
	"noise-cleaner/internal/logging"
)

// DefaultOutputSubdir is created next to the input file to hold cleaned audio.
const DefaultOutputSubdir = "dnf_clean"

const maxStderrBytes = 4096

// CommandLog captures one engine invocation result.
type CommandLog struct {
	Command  string   `json:"command"`
	Args     []string `json:"args"`
	ExitCode int      `json:"exitCode"`
	Stdout   string   `json:"stdout"`
	Stderr   string   `json:"stderr"`
}

// ProcessError reports a failed engine run with its exit code and stderr.
// ExitCode is -1 when the process never ran to completion.
type ProcessError struct {
	Kind       domain.ErrorKind `json:"kind"`
	ExitCode   int              `json:"exitCode"`
	Stderr     string           `json:"stderr"`
	Message    string           `json:"message"`
	CommandLog CommandLog       `json:"commandLog"`
	Err        error            `json:"-"`
}

// Error formats engine failures for logs and UI.
func (e *ProcessError) Error() string {
	if e == nil {
		return ""
	}
	msg := e.Message
	if e.ExitCode > 0 {
		msg = fmt.Sprintf("%s (exit=%d)", msg, e.ExitCode)
	}
	if e.Stderr != "" {
		msg = fmt.Sprintf("%s: %s", msg, e.Stderr)
	}
	return msg
}

// Unwrap exposes underlying error for errors.Is / errors.As.
func (e *ProcessError) Unwrap() error {
	if e == nil {
		return nil
	}
	return e.Err
}

// commandResult is an internal process execution response.
type commandResult struct {
	Stdout   string
	Stderr   string
	ExitCode int
}

// commandRunner abstracts process execution for testability.
type commandRunner interface {
	Run(ctx context.Context, name string, args ...string) (commandResult, error)
}

// execRunner executes commands via os/exec. The child is killed when ctx ends.
type execRunner struct{}

// Run executes one command and captures stdout/stderr and exit code.
func (r *execRunner) Run(ctx context.Context, name string, args ...string) (commandResult, error) {
	cmd := exec.CommandContext(ctx, name, args...)
	var stdout bytes.Buffer
	var stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	err := cmd.Run()
	result := commandResult{
		Stdout:   stdout.String(),
		Stderr:   stderr.String(),
		ExitCode: 0,
	}
	if err != nil {
		result.ExitCode = -1
		var exitErr *exec.ExitError
		if errors.As(err, &exitErr) {
			result.ExitCode = exitErr.ExitCode()
		}
		return result, err
	}

	return result, nil
}

// Options configures a Runner.
type Options struct {
	OutputSubdir string
	Logger       *slog.Logger
	OnLog        func(CommandLog)
}

// Runner invokes the engine binary against one selected file at a time.
type Runner struct {
	outputSubdir string
	runner       commandRunner
	jobs         *jobs.Manager
	stat         func(name string) (os.FileInfo, error)
	mkdirAll     func(path string, perm os.FileMode) error
	newID        func() string
	onLog        func(CommandLog)
	logger       *slog.Logger
}

// New constructs the production runner with OS dependencies.
func New(opts Options) *Runner {
	subdir := strings.TrimSpace(opts.OutputSubdir)
	if subdir == "" {
		subdir = DefaultOutputSubdir
	}
	return &Runner{
		outputSubdir: subdir,
		runner:       &execRunner{},
		jobs:         jobs.NewManager(),
		stat:         os.Stat,
		mkdirAll:     os.MkdirAll,
		newID:        uuid.NewString,
		onLog:        opts.OnLog,
		logger:       logging.OrNop(opts.Logger).With(slog.String("component", "runner")),
	}
}

// OutputPaths derives the output directory and file for an input path.
func OutputPaths(inputPath, subdir string) (dir, path string) {
	dir = filepath.Join(filepath.Dir(inputPath), subdir)
	return dir, filepath.Join(dir, filepath.Base(inputPath))
}

// BuildArgs returns the engine argument list: <input> -o <output_dir>.
func BuildArgs(inputPath, outputDir string) []string {
	return []string{inputPath, "-o", outputDir}
}

// CurrentJob returns the most recent processing job.
func (r *Runner) CurrentJob() domain.ProcessingJob {
	return r.jobs.Current()
}

// Run cleans selected with engine and returns the output file path. It blocks
// until the engine exits. A second call while one is active fails with
// jobs.ErrJobAlreadyRunning. Cancellation kills the child and returns ctx.Err().
func (r *Runner) Run(ctx context.Context, selected domain.SelectedFile, engine domain.EngineBinary) (string, error) {
	if strings.TrimSpace(selected.Path) == "" {
		return "", &ProcessError{
			Kind:     domain.ErrorKindInvalidFile,
			ExitCode: -1,
			Message:  "no input file selected",
		}
	}
	if !engine.Present || strings.TrimSpace(engine.Path) == "" {
		return "", &ProcessError{
			Kind:     domain.ErrorKindProcess,
			ExitCode: -1,
			Message:  "engine binary is missing",
		}
	}
	if _, err := r.stat(engine.Path); err != nil {
		return "", &ProcessError{
			Kind:     domain.ErrorKindProcess,
			ExitCode: -1,
			Message:  fmt.Sprintf("engine binary is missing: %s", engine.Path),
			Err:      err,
		}
	}

	outputDir, outputPath := OutputPaths(selected.Path, r.outputSubdir)
	job := domain.ProcessingJob{
		ID:         r.newID(),
		InputPath:  selected.Path,
		OutputPath: outputPath,
	}
	if err := r.jobs.Start(job); err != nil {
		return "", err
	}

	logger := r.logger.With(slog.String("job_id", job.ID), slog.String("input", selected.Path))

	if err := r.mkdirAll(outputDir, 0o755); err != nil {
		_ = r.jobs.Transition(domain.JobStatusFailed)
		return "", &ProcessError{
			Kind:     domain.ErrorKindFileSystem,
			ExitCode: -1,
			Message:  fmt.Sprintf("cannot create output directory: %s", outputDir),
			Err:      err,
		}
	}

	if err := r.jobs.Transition(domain.JobStatusRunning); err != nil {
		return "", err
	}

	args := BuildArgs(selected.Path, outputDir)
	logger.Info("engine started", slog.String("engine", engine.Path), slog.Any("args", args))

	result, runErr := r.runner.Run(ctx, engine.Path, args...)
	log := CommandLog{
		Command:  engine.Path,
		Args:     args,
		ExitCode: result.ExitCode,
		Stdout:   result.Stdout,
		Stderr:   result.Stderr,
	}
	if r.onLog != nil {
		r.onLog(log)
	}

	if runErr != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			_ = r.jobs.Cancel()
			logger.Info("engine cancelled")
			return "", ctxErr
		}
		_ = r.jobs.Transition(domain.JobStatusFailed)

		procErr := &ProcessError{
			Kind:       domain.ErrorKindProcess,
			ExitCode:   result.ExitCode,
			Stderr:     trimStderr(result.Stderr),
			Message:    "engine failed to process the file",
			CommandLog: log,
			Err:        runErr,
		}
		if result.ExitCode < 0 {
			procErr.Message = "failed to start engine"
		}
		logger.Warn("engine failed", slog.Int("exit_code", result.ExitCode), logging.Error(procErr))
		return "", procErr
	}

	if _, err := r.stat(outputPath); err != nil {
		_ = r.jobs.Transition(domain.JobStatusFailed)
		return "", &ProcessError{
			Kind:       domain.ErrorKindProcess,
			Stderr:     trimStderr(result.Stderr),
			Message:    fmt.Sprintf("engine finished but output file is missing: %s", outputPath),
			CommandLog: log,
			Err:        err,
		}
	}

	if err := r.jobs.Transition(domain.JobStatusSucceeded); err != nil {
		return "", err
	}
	logger.Info("engine finished", slog.String("output", outputPath))
	return outputPath, nil
}

// trimStderr keeps the tail of stderr, where engines print the fatal error.
func trimStderr(stderr string) string {
	trimmed := strings.TrimSpace(stderr)
	if len(trimmed) > maxStderrBytes {
		trimmed = "..." + trimmed[len(trimmed)-maxStderrBytes:]
	}
	return trimmed
}

// NewForTests constructs a runner with injectable dependencies.
func NewForTests(
	runner commandRunner,
	stat func(name string) (os.FileInfo, error),
	newID func() string,
) *Runner {
	return &Runner{
		outputSubdir: DefaultOutputSubdir,
		runner:       runner,
		jobs:         jobs.NewManager(),
		stat:         stat,
		mkdirAll:     os.MkdirAll,
		newID:        newID,
		logger:       logging.NewNop(),
	}
}
