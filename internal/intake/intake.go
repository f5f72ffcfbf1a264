package intake

import (
	"bytes"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"noise-cleaner/internal/domain"
)

// SupportedExtension is the only audio extension the engine accepts.
const SupportedExtension = ".wav"

// InvalidFileError explains why a dropped or picked path was rejected.
type InvalidFileError struct {
	Path   string
	Reason string
	Err    error
}

// Error formats intake failures for logs and UI.
func (e *InvalidFileError) Error() string {
	if e == nil {
		return ""
	}
	if e.Path == "" {
		return e.Reason
	}
	return fmt.Sprintf("%s: %s", e.Reason, e.Path)
}

// Unwrap exposes the underlying filesystem error, if any.
func (e *InvalidFileError) Unwrap() error {
	if e == nil {
		return nil
	}
	return e.Err
}

// Intake validates input paths and holds the current selection. Drops and
// dialog picks both go through Select.
type Intake struct {
	stat     func(string) (os.FileInfo, error)
	open     func(string) (io.ReadCloser, error)
	abs      func(string) (string, error)
	current  domain.SelectedFile
	selected bool
}

// New builds an intake backed by the real filesystem.
func New() *Intake {
	return &Intake{
		stat: os.Stat,
		open: func(name string) (io.ReadCloser, error) {
			return os.Open(name)
		},
		abs: filepath.Abs,
	}
}

// Select validates path and, on success, replaces the current selection.
// On failure the previous selection is kept.
func (in *Intake) Select(path string) (domain.SelectedFile, error) {
	file, err := in.validate(path)
	if err != nil {
		return domain.SelectedFile{}, err
	}
	in.current = file
	in.selected = true
	return file, nil
}

// Current returns the selected file, if any.
func (in *Intake) Current() (domain.SelectedFile, bool) {
	return in.current, in.selected
}

// Clear drops the current selection.
func (in *Intake) Clear() {
	in.current = domain.SelectedFile{}
	in.selected = false
}

func (in *Intake) validate(raw string) (domain.SelectedFile, error) {
	path := strings.TrimSpace(raw)
	if path == "" {
		return domain.SelectedFile{}, &InvalidFileError{Reason: "no file given"}
	}

	if !strings.EqualFold(filepath.Ext(path), SupportedExtension) {
		return domain.SelectedFile{}, &InvalidFileError{Path: path, Reason: "only .wav files are supported"}
	}

	absPath, err := in.abs(path)
	if err != nil {
		return domain.SelectedFile{}, &InvalidFileError{Path: path, Reason: "cannot resolve path", Err: err}
	}

	info, err := in.stat(absPath)
	if err != nil {
		return domain.SelectedFile{}, &InvalidFileError{Path: absPath, Reason: "file does not exist", Err: err}
	}
	if !info.Mode().IsRegular() {
		return domain.SelectedFile{}, &InvalidFileError{Path: absPath, Reason: "not a regular file"}
	}

	if err := in.checkHeader(absPath); err != nil {
		return domain.SelectedFile{}, err
	}

	return domain.SelectedFile{
		Path: absPath,
		Name: filepath.Base(absPath),
		Size: info.Size(),
	}, nil
}

// checkHeader requires a RIFF or RF64 container with a WAVE form type.
func (in *Intake) checkHeader(path string) error {
	f, err := in.open(path)
	if err != nil {
		return &InvalidFileError{Path: path, Reason: "cannot open file", Err: err}
	}
	defer f.Close()

	header := make([]byte, 12)
	if _, err := io.ReadFull(f, header); err != nil {
		return &InvalidFileError{Path: path, Reason: "file is too short to be WAV audio", Err: err}
	}

	container := header[0:4]
	if !bytes.Equal(container, []byte("RIFF")) && !bytes.Equal(container, []byte("RF64")) {
		return &InvalidFileError{Path: path, Reason: "file is not a RIFF container"}
	}
	if !bytes.Equal(header[8:12], []byte("WAVE")) {
		return &InvalidFileError{Path: path, Reason: "file is not WAVE audio"}
	}
	return nil
}
