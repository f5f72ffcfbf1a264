// Command engine-fetch installs the noise-suppression engine from a terminal,
// for machines provisioned before the desktop app first runs.
package main

import (
	"context"
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/schollz/progressbar/v3"

	"noise-cleaner/internal/config"
	"noise-cleaner/internal/engine"
	"noise-cleaner/internal/logging"
)

func main() {
	if err := run(); err != nil {
		log.Fatalf("engine-fetch: %v", err)
	}
}

func run() error {
	settings, err := config.NewTOMLStore(config.DefaultPath()).Load()
	if err != nil {
		return fmt.Errorf("load settings: %w", err)
	}
	logger, err := logging.New(logging.Options{
		Level:  settings.LogLevel,
		Format: settings.LogFormat,
		Output: os.Stderr,
	})
	if err != nil {
		return fmt.Errorf("build logger: %w", err)
	}

	downloader := engine.NewDownloader(engine.Options{
		Dir:     settings.EngineDir,
		URL:     settings.EngineURL,
		Timeout: time.Duration(settings.DownloadTimeout) * time.Second,
		Logger:  logger,
	})
	if existing, ok := downloader.Locate(); ok {
		fmt.Printf("engine already installed at %s\n", existing.Path)
		return nil
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	bar := progressbar.NewOptions64(
		-1,
		progressbar.OptionSetDescription("deep-filter"),
		progressbar.OptionShowBytes(true),
		progressbar.OptionSetWriter(os.Stderr),
		progressbar.OptionOnCompletion(func() { fmt.Fprintln(os.Stderr) }),
		progressbar.OptionSetTheme(progressbar.Theme{
			Saucer:        "=",
			SaucerHead:    ">",
			SaucerPadding: " ",
			BarStart:      "[",
			BarEnd:        "]",
		}),
	)

	for event := range downloader.Begin(ctx) {
		if !event.Done {
			if event.Progress.BytesTotal > 0 && bar.GetMax64() != event.Progress.BytesTotal {
				bar.ChangeMax64(event.Progress.BytesTotal)
			}
			_ = bar.Set64(event.Progress.BytesDone)
			continue
		}
		if event.Err != nil {
			return event.Err
		}
		_ = bar.Finish()
		fmt.Printf("engine installed at %s\n", event.Engine.Path)
		return nil
	}
	return ctx.Err()
}
