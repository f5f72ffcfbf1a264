package engine

import (
	"errors"
	"fmt"
)

// ErrUnsupportedPlatform is returned when no engine build exists for the host.
var ErrUnsupportedPlatform = errors.New("no engine build for this platform")

const releaseVersion = "0.5.6"

// Release describes one downloadable engine build.
type Release struct {
	GOOS     string
	GOARCH   string
	URL      string
	FileName string
}

var releaseCatalog = []Release{
	{
		GOOS:     "linux",
		GOARCH:   "amd64",
		URL:      releaseURL("deep-filter-" + releaseVersion + "-x86_64-unknown-linux-musl"),
		FileName: "deep-filter",
	},
	{
		GOOS:     "linux",
		GOARCH:   "arm64",
		URL:      releaseURL("deep-filter-" + releaseVersion + "-aarch64-unknown-linux-gnu"),
		FileName: "deep-filter",
	},
	{
		GOOS:     "darwin",
		GOARCH:   "arm64",
		URL:      releaseURL("deep-filter-" + releaseVersion + "-aarch64-apple-darwin"),
		FileName: "deep-filter",
	},
	{
		GOOS:     "windows",
		GOARCH:   "amd64",
		URL:      releaseURL("deep-filter-" + releaseVersion + "-x86_64-pc-windows-msvc.exe"),
		FileName: "deep-filter.exe",
	},
}

func releaseURL(asset string) string {
	return fmt.Sprintf("https://github.com/Rikorose/DeepFilterNet/releases/download/v%s/%s", releaseVersion, asset)
}

// LookupRelease returns the engine build for goos/goarch.
func LookupRelease(goos, goarch string) (Release, error) {
	for _, release := range releaseCatalog {
		if release.GOOS == goos && release.GOARCH == goarch {
			return release, nil
		}
	}
	return Release{}, fmt.Errorf("%w: %s/%s", ErrUnsupportedPlatform, goos, goarch)
}

// BinaryName returns the engine file name used on goos.
func BinaryName(goos string) string {
	if goos == "windows" {
		return "deep-filter.exe"
	}
	return "deep-filter"
}
