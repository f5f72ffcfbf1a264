//go:build unix

package engine

import (
	"os"

	"golang.org/x/sys/unix"
)

func isExecutable(path string, _ os.FileInfo) bool {
	return unix.Access(path, unix.X_OK) == nil
}

func makeExecutable(path string) error {
	return os.Chmod(path, 0o755)
}
