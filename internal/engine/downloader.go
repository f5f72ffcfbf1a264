package engine

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"path/filepath"
	goruntime "runtime"
	"strings"
	"time"

	"github.com/gofrs/flock"
	"github.com/google/uuid"

	"noise-cleaner/internal/domain"
	"noise-cleaner/internal/logging"
)

const (
	defaultDownloadTimeout = 30 * time.Minute
	lockFileName           = ".engine.lock"
	userAgent              = "noise-cleaner"
)

// Event is one step of a streamed download. The final event has Done set and
// carries either Engine or Err.
type Event struct {
	Progress domain.Progress
	Done     bool
	Engine   domain.EngineBinary
	Err      error
}

// Options configures a Downloader. Zero values select production defaults.
type Options struct {
	Dir     string
	URL     string
	GOOS    string
	GOARCH  string
	Timeout time.Duration
	Client  *http.Client
	Logger  *slog.Logger
}

// Downloader fetches and installs the engine binary into a fixed directory.
type Downloader struct {
	dir     string
	url     string
	path    string
	goos    string
	goarch  string
	timeout time.Duration
	client  *http.Client
	logger  *slog.Logger
}

// NewDownloader resolves the engine location and release URL. A missing
// catalog entry is not an error here; Download reports it.
func NewDownloader(opts Options) *Downloader {
	goos := opts.GOOS
	if goos == "" {
		goos = goruntime.GOOS
	}
	goarch := opts.GOARCH
	if goarch == "" {
		goarch = goruntime.GOARCH
	}

	url := strings.TrimSpace(opts.URL)
	if url == "" {
		if release, err := LookupRelease(goos, goarch); err == nil {
			url = release.URL
		}
	}

	timeout := opts.Timeout
	if timeout <= 0 {
		timeout = defaultDownloadTimeout
	}
	client := opts.Client
	if client == nil {
		client = http.DefaultClient
	}

	return &Downloader{
		dir:     opts.Dir,
		url:     url,
		path:    filepath.Join(opts.Dir, BinaryName(goos)),
		goos:    goos,
		goarch:  goarch,
		timeout: timeout,
		client:  client,
		logger:  logging.OrNop(opts.Logger).With(slog.String("component", "engine")),
	}
}

// Path returns where the engine binary lives once installed.
func (d *Downloader) Path() string {
	return d.path
}

// URL returns the release URL, empty when the platform is unsupported.
func (d *Downloader) URL() string {
	return d.url
}

// Locate reports whether an executable engine binary is installed.
func (d *Downloader) Locate() (domain.EngineBinary, bool) {
	info, err := os.Stat(d.path)
	if err != nil || info.IsDir() || !isExecutable(d.path, info) {
		return domain.EngineBinary{Path: d.path}, false
	}
	return domain.EngineBinary{Path: d.path, Present: true}, true
}

// Begin starts Download on a new goroutine and streams its progress. The
// channel ends with a single Done event and is then closed. If ctx is
// cancelled before the consumer reads, pending events are dropped.
func (d *Downloader) Begin(ctx context.Context) <-chan Event {
	events := make(chan Event)
	go func() {
		defer close(events)

		send := func(event Event) bool {
			select {
			case events <- event:
				return true
			case <-ctx.Done():
				return false
			}
		}

		engine, err := d.Download(ctx, func(p domain.Progress) {
			send(Event{Progress: p})
		})
		send(Event{Done: true, Engine: engine, Err: err})
	}()
	return events
}

// Download installs the engine binary, calling report after each received
// chunk. It is a no-op when the engine is already present. Cancellation is
// returned as ctx.Err() unwrapped.
func (d *Downloader) Download(ctx context.Context, report func(domain.Progress)) (domain.EngineBinary, error) {
	if engine, ok := d.Locate(); ok {
		return engine, nil
	}
	if d.url == "" {
		return domain.EngineBinary{}, networkError("resolve engine release", fmt.Errorf("%w: %s/%s", ErrUnsupportedPlatform, d.goos, d.goarch))
	}

	if err := os.MkdirAll(d.dir, 0o755); err != nil {
		return domain.EngineBinary{}, fileSystemError("prepare engine directory", err)
	}

	lock := flock.New(filepath.Join(d.dir, lockFileName))
	locked, err := lock.TryLock()
	if err != nil {
		return domain.EngineBinary{}, fileSystemError("lock engine directory", err)
	}
	if !locked {
		return domain.EngineBinary{}, fileSystemError("lock engine directory", ErrDownloadInProgress)
	}
	defer func() {
		_ = lock.Unlock()
	}()

	// Another instance may have finished between the first check and the lock.
	if engine, ok := d.Locate(); ok {
		return engine, nil
	}

	opID := uuid.NewString()
	logger := d.logger.With(slog.String("op_id", opID), slog.String("url", d.url))
	logger.Info("engine download started", slog.String("path", d.path))

	started := time.Now()
	if err := d.fetch(ctx, logger, report); err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil && errors.Is(err, ctxErr) {
			logger.Info("engine download cancelled")
			return domain.EngineBinary{}, ctxErr
		}
		logger.Warn("engine download failed", logging.Error(err))
		return domain.EngineBinary{}, err
	}

	logger.Info("engine download finished", slog.Duration("elapsed", time.Since(started)))
	return domain.EngineBinary{Path: d.path, Present: true}, nil
}

func (d *Downloader) fetch(parent context.Context, logger *slog.Logger, report func(domain.Progress)) error {
	ctx, cancel := context.WithTimeout(parent, d.timeout)
	defer cancel()

	tmpPath := d.path + ".download"
	if err := os.Remove(tmpPath); err != nil && !errors.Is(err, os.ErrNotExist) {
		return fileSystemError("remove stale temp file", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, d.url, nil)
	if err != nil {
		return networkError("build request", err)
	}
	req.Header.Set("User-Agent", userAgent)

	resp, err := d.client.Do(req)
	if err != nil {
		if parent.Err() != nil {
			return parent.Err()
		}
		return networkError("request download", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return networkError("request download", fmt.Errorf("unexpected HTTP status: %s", resp.Status))
	}

	file, err := os.OpenFile(tmpPath, os.O_CREATE|os.O_TRUNC|os.O_WRONLY, 0o644)
	if err != nil {
		return fileSystemError("create temporary file", err)
	}

	body := &progressReader{
		r:       resp.Body,
		total:   resp.ContentLength,
		report:  report,
		logger:  logger,
		sampler: logging.NewProgressSampler(10),
	}
	_, copyErr := io.Copy(file, body)
	closeErr := file.Close()
	if copyErr != nil {
		_ = os.Remove(tmpPath)
		if parent.Err() != nil {
			return parent.Err()
		}
		if body.readErr != nil {
			return networkError("receive engine binary", body.readErr)
		}
		return fileSystemError("write engine binary", copyErr)
	}
	if closeErr != nil {
		_ = os.Remove(tmpPath)
		return fileSystemError("close engine binary", closeErr)
	}
	if resp.ContentLength > 0 && body.done != resp.ContentLength {
		_ = os.Remove(tmpPath)
		return networkError("receive engine binary", fmt.Errorf("short body: got %d of %d bytes", body.done, resp.ContentLength))
	}

	if err := makeExecutable(tmpPath); err != nil {
		_ = os.Remove(tmpPath)
		return fileSystemError("set executable permission", err)
	}
	if err := os.Remove(d.path); err != nil && !errors.Is(err, os.ErrNotExist) {
		_ = os.Remove(tmpPath)
		return fileSystemError("remove old engine binary", err)
	}
	if err := os.Rename(tmpPath, d.path); err != nil {
		_ = os.Remove(tmpPath)
		return fileSystemError("move engine binary into place", err)
	}
	return nil
}

// progressReader counts body bytes and reports after every non-empty read.
type progressReader struct {
	r       io.Reader
	total   int64
	done    int64
	readErr error
	report  func(domain.Progress)
	logger  *slog.Logger
	sampler *logging.ProgressSampler
}

func (p *progressReader) Read(buf []byte) (int, error) {
	n, err := p.r.Read(buf)
	if n > 0 {
		p.done += int64(n)
		progress := domain.Progress{BytesDone: p.done, BytesTotal: p.total}
		if p.report != nil {
			p.report(progress)
		}
		if p.total > 0 && p.sampler.ShouldLog(progress.Fraction()*100) {
			p.logger.Debug("engine download progress",
				slog.Int64("bytes_done", p.done),
				slog.Int64("bytes_total", p.total),
			)
		}
	}
	if err != nil && !errors.Is(err, io.EOF) {
		p.readErr = err
	}
	return n, err
}
