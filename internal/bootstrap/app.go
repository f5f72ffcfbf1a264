package bootstrap

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"net/http"
	"os"
	"strings"
	"sync"
	"time"

	"github.com/wailsapp/wails/v2"
	"github.com/wailsapp/wails/v2/pkg/options"
	"github.com/wailsapp/wails/v2/pkg/options/assetserver"

	"noise-cleaner/internal/config"
	"noise-cleaner/internal/controller"
	"noise-cleaner/internal/diagnostics"
	"noise-cleaner/internal/domain"
	"noise-cleaner/internal/engine"
	"noise-cleaner/internal/intake"
	"noise-cleaner/internal/jobs"
	"noise-cleaner/internal/logging"
	"noise-cleaner/internal/runner"
	"noise-cleaner/internal/view"

	wailsruntime "github.com/wailsapp/wails/v2/pkg/runtime"
)

// StateEventName is the push event carrying the rendered view.
const StateEventName = "app:state"

const (
	actionTimeout   = 5 * time.Second
	shutdownTimeout = 3 * time.Second
)

var wavDialogFilter = []wailsruntime.FileFilter{
	{
		DisplayName: "WAV audio",
		Pattern:     "*.wav;*.WAV",
	},
}

// App wires configuration, the controller, and UI runtime callbacks.
type App struct {
	Settings    domain.Settings
	Diagnostics domain.DiagnosticReport
	Controller  *controller.Controller
	assets      fs.FS
	checker     *diagnostics.Checker
	target      diagnostics.Target
	logger      *slog.Logger
	events      *jobs.EventBus

	mu         sync.Mutex
	runtimeCtx context.Context
	stopLoop   context.CancelFunc
	lastKind   domain.StateKind
}

// New builds the application with file settings and startup diagnostics.
func New() (*App, error) {
	return NewWithAssets(nil)
}

// NewWithAssets builds the application and optionally configures embedded frontend assets.
func NewWithAssets(assets fs.FS) (*App, error) {
	store := config.NewTOMLStore(config.DefaultPath())
	settings, err := store.Load()
	if err != nil {
		return nil, fmt.Errorf("load settings: %w", err)
	}

	logger, err := logging.New(logging.Options{
		Level:  settings.LogLevel,
		Format: settings.LogFormat,
		Output: os.Stderr,
	})
	if err != nil {
		return nil, fmt.Errorf("build logger: %w", err)
	}
	logger.Info("settings loaded", slog.String("path", store.Path()), slog.String("engine_dir", settings.EngineDir))

	downloader := engine.NewDownloader(engine.Options{
		Dir:     settings.EngineDir,
		URL:     settings.EngineURL,
		Timeout: time.Duration(settings.DownloadTimeout) * time.Second,
		Logger:  logger,
	})

	app := newApp(settings, logger, diagnostics.NewChecker(), diagnostics.Target{
		EnginePath: downloader.Path(),
		EngineDir:  settings.EngineDir,
		EngineURL:  settings.EngineURL,
	})
	app.assets = assets

	processRunner := runner.New(runner.Options{
		OutputSubdir: settings.OutputSubdir,
		Logger:       logger,
		OnLog:        app.publishCommandLog,
	})

	app.attach(controller.New(controller.Options{
		Downloader: downloader,
		Intake:     intake.New(),
		Runner:     processRunner,
		Opener:     openInFileManager,
		Logger:     logger,
	}))
	return app, nil
}

// newApp builds an App without a controller; attach completes wiring.
func newApp(settings domain.Settings, logger *slog.Logger, checker *diagnostics.Checker, target diagnostics.Target) *App {
	app := &App{
		Settings: settings,
		checker:  checker,
		target:   target,
		logger:   logging.OrNop(logger).With(slog.String("component", "app")),
		events:   jobs.NewEventBus(1000),
	}
	if checker != nil {
		app.Diagnostics = checker.Run(target)
	}
	return app
}

// attach subscribes the app to controller snapshots.
func (a *App) attach(ctrl *controller.Controller) {
	a.Controller = ctrl
	ctrl.Subscribe(a.onSnapshot)
}

// Run starts the Wails desktop application and binds backend methods.
func (a *App) Run() error {
	assetOptions := &assetserver.Options{}
	if a.assets != nil {
		assetOptions.Assets = a.assets
	} else {
		assetOptions.Handler = http.FileServer(http.Dir("./frontend"))
	}

	return wails.Run(&options.App{
		Title:       view.Title,
		Width:       720,
		Height:      540,
		AssetServer: assetOptions,
		DragAndDrop: &options.DragAndDrop{
			EnableFileDrop: true,
		},
		OnStartup:  a.Startup,
		OnShutdown: a.Shutdown,
		Bind:       []interface{}{a},
	})
}

// Startup stores the Wails runtime context, starts the controller loop, and
// registers the file drop handler.
func (a *App) Startup(ctx context.Context) {
	a.mu.Lock()
	a.runtimeCtx = ctx
	a.mu.Unlock()

	a.startController(context.Background())
	wailsruntime.OnFileDrop(ctx, func(_, _ int, paths []string) {
		a.HandleFileDrop(paths)
	})
}

// Shutdown stops the controller loop and drops the runtime context.
func (a *App) Shutdown(context.Context) {
	a.mu.Lock()
	stop := a.stopLoop
	a.stopLoop = nil
	a.runtimeCtx = nil
	a.mu.Unlock()

	if stop == nil {
		return
	}
	stop()
	select {
	case <-a.Controller.Done():
	case <-time.After(shutdownTimeout):
		a.logger.Warn("controller did not stop in time")
	}
}

// startController runs the controller loop until Shutdown.
func (a *App) startController(parent context.Context) {
	ctx, cancel := context.WithCancel(parent)
	a.mu.Lock()
	a.stopLoop = cancel
	a.mu.Unlock()

	go func() {
		if err := a.Controller.Run(ctx); err != nil {
			a.logger.Error("controller stopped", logging.Error(err))
		}
	}()
}

// GetView renders the current controller state.
func (a *App) GetView() view.View {
	return view.Render(a.Controller.Snapshot())
}

// SelectFile validates path and makes it the current input.
func (a *App) SelectFile(path string) (view.View, error) {
	err := a.dispatch(func(ctx context.Context) error {
		return a.Controller.SelectFile(ctx, path)
	})
	return a.GetView(), err
}

// PickInputFile opens a native file dialog filtered to WAV files. A cancelled
// dialog leaves the selection unchanged.
func (a *App) PickInputFile() (view.View, error) {
	ctx, err := a.runtimeContext()
	if err != nil {
		return a.GetView(), err
	}

	path, err := wailsruntime.OpenFileDialog(ctx, wailsruntime.OpenDialogOptions{
		Title:   "Select WAV file",
		Filters: wavDialogFilter,
	})
	if err != nil {
		return a.GetView(), err
	}

	path = strings.TrimSpace(path)
	if path == "" {
		return a.GetView(), nil
	}
	return a.SelectFile(path)
}

// HandleFileDrop selects the first dropped path. Drops in states that do not
// accept a file are ignored.
func (a *App) HandleFileDrop(paths []string) {
	if len(paths) == 0 {
		return
	}
	if len(paths) > 1 {
		a.logger.Info("multiple files dropped, using the first", slog.Int("count", len(paths)))
	}

	err := a.dispatch(func(ctx context.Context) error {
		return a.Controller.SelectFile(ctx, paths[0])
	})
	var actionErr *controller.ActionError
	switch {
	case err == nil:
	case errors.As(err, &actionErr):
		a.logger.Debug("file drop ignored", slog.String("state", string(actionErr.State)))
	default:
		a.logger.Info("file drop rejected", slog.String("path", paths[0]), logging.Error(err))
	}
}

// DownloadEngine starts the one-time engine download.
func (a *App) DownloadEngine() error {
	return a.dispatch(a.Controller.DownloadEngine)
}

// StartProcessing cleans the selected file.
func (a *App) StartProcessing() error {
	return a.dispatch(a.Controller.StartProcessing)
}

// Retry leaves the error state.
func (a *App) Retry() error {
	return a.dispatch(a.Controller.Retry)
}

// Continue returns from a finished run to the ready state.
func (a *App) Continue() error {
	return a.dispatch(a.Controller.Continue)
}

// Cancel stops the running download or engine process.
func (a *App) Cancel() error {
	return a.dispatch(a.Controller.Cancel)
}

// OpenFileLocation opens the folder holding the cleaned file.
func (a *App) OpenFileLocation() error {
	return a.dispatch(a.Controller.OpenFileLocation)
}

// StateEvents returns all events with sequence greater than sinceSeq.
func (a *App) StateEvents(sinceSeq int64) []jobs.Event {
	return a.events.Since(sinceSeq)
}

// GetDiagnostics returns the latest cached diagnostics report.
func (a *App) GetDiagnostics() domain.DiagnosticReport {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.Diagnostics
}

// RefreshDiagnostics reruns the startup checks.
func (a *App) RefreshDiagnostics() domain.DiagnosticReport {
	if a.checker == nil {
		return a.GetDiagnostics()
	}
	report := a.checker.Run(a.target)

	a.mu.Lock()
	a.Diagnostics = report
	a.mu.Unlock()
	return report
}

// dispatch sends one controller action with a bounded acknowledgement wait.
func (a *App) dispatch(action func(context.Context) error) error {
	ctx, cancel := context.WithTimeout(context.Background(), actionTimeout)
	defer cancel()
	return action(ctx)
}

// onSnapshot runs on the controller goroutine for every state change.
func (a *App) onSnapshot(s controller.Snapshot) {
	rendered := view.Render(s)
	a.publishEvent(jobs.StateEvent(s.State, s.Generation), &rendered)

	a.mu.Lock()
	previous := a.lastKind
	a.lastKind = s.State.Kind
	a.mu.Unlock()

	if previous == domain.StateDownloading && s.State.Kind == domain.StateReady {
		a.RefreshDiagnostics()
	}
}

// publishCommandLog records one engine invocation in the event history.
func (a *App) publishCommandLog(log runner.CommandLog) {
	a.publishEvent(jobs.Event{
		Type:     jobs.EventTypeLog,
		Message:  "Engine command completed",
		Command:  log.Command,
		Args:     log.Args,
		ExitCode: log.ExitCode,
		Stderr:   log.Stderr,
	}, nil)
}

// publishEvent stores event history and emits the rendered view when given.
func (a *App) publishEvent(event jobs.Event, rendered *view.View) {
	a.events.Publish(event)

	a.mu.Lock()
	ctx := a.runtimeCtx
	a.mu.Unlock()
	if ctx != nil && rendered != nil {
		wailsruntime.EventsEmit(ctx, StateEventName, *rendered)
	}
}

// runtimeContext returns current Wails runtime context for dialog APIs.
func (a *App) runtimeContext() (context.Context, error) {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.runtimeCtx == nil {
		return nil, fmt.Errorf("runtime context is not initialized")
	}
	return a.runtimeCtx, nil
}
