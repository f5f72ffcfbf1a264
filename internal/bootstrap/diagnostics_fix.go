package bootstrap

import (
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	goruntime "runtime"
	"strings"

	"noise-cleaner/internal/diagnostics"
	"noise-cleaner/internal/domain"
)

// InstallOrFixDiagnostic applies the remediation for one failed or warning
// diagnostic item, then returns a fresh report.
func (a *App) InstallOrFixDiagnostic(itemID string) (domain.DiagnosticReport, error) {
	id := strings.TrimSpace(itemID)
	if id == "" {
		return domain.DiagnosticReport{}, fmt.Errorf("diagnostic item id is required")
	}

	var fixErr error
	switch id {
	case "engine_binary":
		// The download finishes asynchronously; diagnostics refresh on Ready.
		fixErr = a.DownloadEngine()
	case "engine_dir":
		fixErr = ensureDir(a.target.EngineDir)
	default:
		return domain.DiagnosticReport{}, fmt.Errorf("unsupported diagnostic item id: %s", id)
	}

	report := a.RefreshDiagnostics()
	if fixErr != nil {
		return report, fixErr
	}
	return report, nil
}

func ensureDir(dir string) error {
	if strings.TrimSpace(dir) == "" {
		return fmt.Errorf("engine directory is empty")
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("create engine directory: %w", err)
	}
	return nil
}

// openInFileManager launches the platform file explorer for the provided path.
func openInFileManager(path string) error {
	name := diagnostics.FileManagerCommand(goruntime.GOOS)
	if goruntime.GOOS == "windows" {
		path = filepath.Clean(path)
	}

	cmd := exec.Command(name, path)
	if err := cmd.Start(); err != nil {
		return fmt.Errorf("launch file manager: %w", err)
	}
	go func() {
		_ = cmd.Wait()
	}()
	return nil
}
