package diagnostics

import (
	"errors"
	"fmt"
	"os"
	"os/exec"
	goruntime "runtime"
	"strings"
	"time"

	"noise-cleaner/internal/domain"
	"noise-cleaner/internal/engine"
)

// Target is what the checker inspects: where the engine lives and where it
// would be fetched from.
type Target struct {
	EnginePath string
	EngineDir  string
	EngineURL  string
	GOOS       string
	GOARCH     string
}

// Checker validates the engine install and the host helpers the app relies on.
type Checker struct {
	lookPath   func(string) (string, error)
	stat       func(string) (os.FileInfo, error)
	mkdirAll   func(string, os.FileMode) error
	createTemp func(string, string) (*os.File, error)
	remove     func(string) error
}

// NewChecker builds a checker using real OS dependencies.
func NewChecker() *Checker {
	return &Checker{
		lookPath:   exec.LookPath,
		stat:       os.Stat,
		mkdirAll:   os.MkdirAll,
		createTemp: os.CreateTemp,
		remove:     os.Remove,
	}
}

// Run executes all startup checks and returns a combined report.
func (c *Checker) Run(target Target) domain.DiagnosticReport {
	if target.GOOS == "" {
		target.GOOS = goruntime.GOOS
	}
	if target.GOARCH == "" {
		target.GOARCH = goruntime.GOARCH
	}

	items := []domain.DiagnosticItem{
		c.checkEngineBinary(target.EnginePath),
		c.checkEngineDir(target.EngineDir),
		checkRelease(target),
		c.checkFileManager(target.GOOS),
	}

	hasFailures := false
	for _, item := range items {
		if item.Status == domain.DiagnosticStatusFail {
			hasFailures = true
			break
		}
	}

	return domain.DiagnosticReport{
		GeneratedAt: time.Now().UTC(),
		HasFailures: hasFailures,
		Items:       items,
	}
}

// checkEngineBinary reports whether the engine is installed. A missing engine
// is a warning because the app offers to download it.
func (c *Checker) checkEngineBinary(path string) domain.DiagnosticItem {
	item := domain.DiagnosticItem{
		ID:   "engine_binary",
		Name: "Noise-suppression engine",
	}

	info, err := c.stat(path)
	switch {
	case err != nil && errors.Is(err, os.ErrNotExist):
		item.Status = domain.DiagnosticStatusWarn
		item.Message = fmt.Sprintf("Engine is not installed: %s", path)
		item.Hint = "Use Download Engine to fetch it once."
	case err != nil:
		item.Status = domain.DiagnosticStatusFail
		item.Message = fmt.Sprintf("Cannot access engine: %s", path)
		item.Hint = "Check permissions for the engine directory."
	case info.IsDir():
		item.Status = domain.DiagnosticStatusFail
		item.Message = fmt.Sprintf("Engine path is a directory: %s", path)
		item.Hint = "Remove the directory so the engine can be downloaded."
	default:
		item.Status = domain.DiagnosticStatusPass
		item.Message = fmt.Sprintf("Engine found at %s", path)
	}
	return item
}

// checkEngineDir validates that the install directory exists and is writable.
func (c *Checker) checkEngineDir(dir string) domain.DiagnosticItem {
	item := domain.DiagnosticItem{
		ID:   "engine_dir",
		Name: "Engine directory",
	}

	if strings.TrimSpace(dir) == "" {
		item.Status = domain.DiagnosticStatusFail
		item.Message = "Engine directory is empty."
		item.Hint = "Set engine_dir in config.toml or remove it to use the default."
		return item
	}

	if err := c.mkdirAll(dir, 0o755); err != nil {
		item.Status = domain.DiagnosticStatusFail
		item.Message = fmt.Sprintf("Cannot create engine directory: %s", dir)
		item.Hint = "Choose a writable location or adjust filesystem permissions."
		return item
	}

	tmpFile, err := c.createTemp(dir, ".write-check-*")
	if err != nil {
		item.Status = domain.DiagnosticStatusFail
		item.Message = fmt.Sprintf("Engine directory is not writable: %s", dir)
		item.Hint = "The engine download needs write access to this directory."
		return item
	}

	tmpPath := tmpFile.Name()
	_ = tmpFile.Close()
	_ = c.remove(tmpPath)

	item.Status = domain.DiagnosticStatusPass
	item.Message = fmt.Sprintf("Writable directory: %s", dir)
	return item
}

// checkRelease verifies an engine build can be fetched for this host.
func checkRelease(target Target) domain.DiagnosticItem {
	item := domain.DiagnosticItem{
		ID:   "engine_release",
		Name: "Engine download",
	}

	if url := strings.TrimSpace(target.EngineURL); url != "" {
		item.Status = domain.DiagnosticStatusPass
		item.Message = fmt.Sprintf("Using configured URL: %s", url)
		return item
	}

	release, err := engine.LookupRelease(target.GOOS, target.GOARCH)
	if err != nil {
		item.Status = domain.DiagnosticStatusFail
		item.Message = fmt.Sprintf("No engine build for %s/%s.", target.GOOS, target.GOARCH)
		item.Hint = "Set engine_url in config.toml to a compatible deep-filter build."
		return item
	}

	item.Status = domain.DiagnosticStatusPass
	item.Message = fmt.Sprintf("Release available: %s", release.URL)
	return item
}

// checkFileManager verifies the command used by Open File Location exists.
func (c *Checker) checkFileManager(goos string) domain.DiagnosticItem {
	name := FileManagerCommand(goos)
	item := domain.DiagnosticItem{
		ID:   "file_manager",
		Name: "File manager",
	}

	path, err := c.lookPath(name)
	if err != nil {
		item.Status = domain.DiagnosticStatusWarn
		item.Message = fmt.Sprintf("Command not found in PATH: %s", name)
		item.Hint = "Open File Location will not work until it is installed."
		return item
	}

	item.Status = domain.DiagnosticStatusPass
	item.Message = fmt.Sprintf("Found at %s", path)
	return item
}

// FileManagerCommand returns the program that reveals folders on goos.
func FileManagerCommand(goos string) string {
	switch goos {
	case "darwin":
		return "open"
	case "windows":
		return "explorer"
	default:
		return "xdg-open"
	}
}

// NewCheckerForTests creates checker with injectable dependencies.
func NewCheckerForTests(
	lookPath func(string) (string, error),
	stat func(string) (os.FileInfo, error),
	mkdirAll func(string, os.FileMode) error,
	createTemp func(string, string) (*os.File, error),
	remove func(string) error,
) *Checker {
	return &Checker{
		lookPath:   lookPath,
		stat:       stat,
		mkdirAll:   mkdirAll,
		createTemp: createTemp,
		remove:     remove,
	}
}
