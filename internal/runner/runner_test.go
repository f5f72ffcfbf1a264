package runner

import (
	"context"
	"errors"
	"os"
	"os/exec"
	"path/filepath"
	goruntime "runtime"
	"strings"
	"sync"
	"testing"
	"time"

	"noise-cleaner/internal/domain"
	"noise-cleaner/internal/jobs"
)

// fakeRunner simulates engine execution outcomes.
type fakeRunner struct {
	run func(ctx context.Context, name string, args ...string) (commandResult, error)
}

// Run delegates to injected behavior.
func (f *fakeRunner) Run(ctx context.Context, name string, args ...string) (commandResult, error) {
	if f.run == nil {
		return commandResult{}, nil
	}
	return f.run(ctx, name, args...)
}

type fixture struct {
	input  domain.SelectedFile
	engine domain.EngineBinary
	outDir string
}

func newFixture(t *testing.T) fixture {
	t.Helper()
	root := t.TempDir()
	inputPath := filepath.Join(root, "input.wav")
	enginePath := filepath.Join(root, "deep-filter")
	mustWriteFile(t, inputPath, "RIFF")
	mustWriteFile(t, enginePath, "bin")
	return fixture{
		input:  domain.SelectedFile{Path: inputPath, Name: "input.wav"},
		engine: domain.EngineBinary{Path: enginePath, Present: true},
		outDir: filepath.Join(root, DefaultOutputSubdir),
	}
}

func mustWriteFile(t *testing.T, path, content string) {
	t.Helper()
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		t.Fatalf("mkdir: %v", err)
	}
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("write %s: %v", path, err)
	}
}

func fixedID() string { return "job-1" }

// TestRunSuccessReturnsOutputPath checks argument shape and output derivation.
func TestRunSuccessReturnsOutputPath(t *testing.T) {
	fx := newFixture(t)

	var gotName string
	var gotArgs []string
	runner := &fakeRunner{run: func(ctx context.Context, name string, args ...string) (commandResult, error) {
		gotName = name
		gotArgs = append([]string{}, args...)
		mustWriteFile(t, filepath.Join(args[2], "input.wav"), "clean")
		return commandResult{Stdout: "ok"}, nil
	}}

	r := NewForTests(runner, os.Stat, fixedID)
	var logs []CommandLog
	r.onLog = func(log CommandLog) { logs = append(logs, log) }

	out, err := r.Run(context.Background(), fx.input, fx.engine)
	if err != nil {
		t.Fatalf("Run() error = %v", err)
	}

	want := filepath.Join(fx.outDir, "input.wav")
	if out != want {
		t.Fatalf("output = %q, want %q", out, want)
	}
	if gotName != fx.engine.Path {
		t.Fatalf("command = %q, want %q", gotName, fx.engine.Path)
	}
	wantArgs := []string{fx.input.Path, "-o", fx.outDir}
	if strings.Join(gotArgs, "|") != strings.Join(wantArgs, "|") {
		t.Fatalf("args = %v, want %v", gotArgs, wantArgs)
	}
	if len(logs) != 1 || logs[0].Stdout != "ok" {
		t.Fatalf("logs = %+v", logs)
	}

	job := r.CurrentJob()
	if job.Status != domain.JobStatusSucceeded || job.ID != "job-1" || job.OutputPath != want {
		t.Fatalf("job = %+v", job)
	}
}

// TestRunNonZeroExitReturnsProcessError checks exit code and stderr capture.
func TestRunNonZeroExitReturnsProcessError(t *testing.T) {
	fx := newFixture(t)
	runner := &fakeRunner{run: func(ctx context.Context, name string, args ...string) (commandResult, error) {
		return commandResult{Stderr: "model load failed\n", ExitCode: 1}, errors.New("exit status 1")
	}}

	r := NewForTests(runner, os.Stat, fixedID)
	_, err := r.Run(context.Background(), fx.input, fx.engine)

	var procErr *ProcessError
	if !errors.As(err, &procErr) {
		t.Fatalf("error = %v, want ProcessError", err)
	}
	if procErr.ExitCode != 1 || procErr.Stderr != "model load failed" {
		t.Fatalf("process error = %+v", procErr)
	}
	if procErr.Kind != domain.ErrorKindProcess {
		t.Fatalf("kind = %s, want process", procErr.Kind)
	}
	if r.CurrentJob().Status != domain.JobStatusFailed {
		t.Fatalf("job status = %s, want failed", r.CurrentJob().Status)
	}
}

// TestRunMissingEngine fails before spawning anything.
func TestRunMissingEngine(t *testing.T) {
	fx := newFixture(t)
	runner := &fakeRunner{run: func(ctx context.Context, name string, args ...string) (commandResult, error) {
		t.Fatal("engine must not be spawned")
		return commandResult{}, nil
	}}
	r := NewForTests(runner, os.Stat, fixedID)

	for _, engine := range []domain.EngineBinary{
		{},
		{Path: filepath.Join(t.TempDir(), "gone"), Present: true},
	} {
		_, err := r.Run(context.Background(), fx.input, engine)
		var procErr *ProcessError
		if !errors.As(err, &procErr) || procErr.ExitCode != -1 {
			t.Fatalf("engine %+v: error = %v", engine, err)
		}
	}
}

// TestRunMissingOutput treats a silent engine as a failure.
func TestRunMissingOutput(t *testing.T) {
	fx := newFixture(t)
	r := NewForTests(&fakeRunner{}, os.Stat, fixedID)

	_, err := r.Run(context.Background(), fx.input, fx.engine)
	var procErr *ProcessError
	if !errors.As(err, &procErr) {
		t.Fatalf("error = %v, want ProcessError", err)
	}
	if !strings.Contains(procErr.Message, "output file is missing") {
		t.Fatalf("message = %q", procErr.Message)
	}
}

// TestRunRejectsConcurrentJob checks at most one engine runs at a time.
func TestRunRejectsConcurrentJob(t *testing.T) {
	fx := newFixture(t)
	started := make(chan struct{})
	release := make(chan struct{})
	var calls int
	var mu sync.Mutex
	runner := &fakeRunner{run: func(ctx context.Context, name string, args ...string) (commandResult, error) {
		mu.Lock()
		calls++
		mu.Unlock()
		close(started)
		<-release
		mustWriteFile(t, filepath.Join(args[2], "input.wav"), "clean")
		return commandResult{}, nil
	}}
	r := NewForTests(runner, os.Stat, fixedID)

	done := make(chan error, 1)
	go func() {
		_, err := r.Run(context.Background(), fx.input, fx.engine)
		done <- err
	}()
	<-started

	if _, err := r.Run(context.Background(), fx.input, fx.engine); !errors.Is(err, jobs.ErrJobAlreadyRunning) {
		t.Fatalf("second run error = %v, want %v", err, jobs.ErrJobAlreadyRunning)
	}

	close(release)
	if err := <-done; err != nil {
		t.Fatalf("first run: %v", err)
	}
	mu.Lock()
	defer mu.Unlock()
	if calls != 1 {
		t.Fatalf("engine calls = %d, want 1", calls)
	}
}

// TestRunCancelled returns the context error and marks the job cancelled.
func TestRunCancelled(t *testing.T) {
	fx := newFixture(t)
	runner := &fakeRunner{run: func(ctx context.Context, name string, args ...string) (commandResult, error) {
		<-ctx.Done()
		return commandResult{ExitCode: -1}, ctx.Err()
	}}
	r := NewForTests(runner, os.Stat, fixedID)

	ctx, cancel := context.WithCancel(context.Background())
	go func() {
		time.Sleep(10 * time.Millisecond)
		cancel()
	}()

	_, err := r.Run(ctx, fx.input, fx.engine)
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("error = %v, want context.Canceled", err)
	}
	if r.CurrentJob().Status != domain.JobStatusCancelled {
		t.Fatalf("job status = %s, want cancelled", r.CurrentJob().Status)
	}
}

// TestExecRunnerCapturesExitCode runs a real shell to check exit plumbing.
func TestExecRunnerCapturesExitCode(t *testing.T) {
	if goruntime.GOOS == "windows" {
		t.Skip("uses sh")
	}
	if _, err := exec.LookPath("sh"); err != nil {
		t.Skip("sh not available")
	}

	res, err := (&execRunner{}).Run(context.Background(), "sh", "-c", "echo model load failed >&2; exit 3")
	if err == nil {
		t.Fatal("expected error for exit 3")
	}
	if res.ExitCode != 3 {
		t.Fatalf("exit code = %d, want 3", res.ExitCode)
	}
	if strings.TrimSpace(res.Stderr) != "model load failed" {
		t.Fatalf("stderr = %q", res.Stderr)
	}

	res, err = (&execRunner{}).Run(context.Background(), filepath.Join(t.TempDir(), "nope"))
	if err == nil || res.ExitCode != -1 {
		t.Fatalf("spawn failure: exit=%d err=%v", res.ExitCode, err)
	}
}

// TestOutputPaths derives the output file under the fixed subdirectory.
func TestOutputPaths(t *testing.T) {
	in := filepath.Join("/audio", "talk.wav")
	dir, path := OutputPaths(in, "dnf_clean")
	if dir != filepath.Join("/audio", "dnf_clean") {
		t.Fatalf("dir = %q", dir)
	}
	if path != filepath.Join("/audio", "dnf_clean", "talk.wav") {
		t.Fatalf("path = %q", path)
	}
}
