//go:build !unix

package engine

import "os"

func isExecutable(_ string, info os.FileInfo) bool {
	return info.Mode().IsRegular()
}

func makeExecutable(string) error {
	return nil
}
