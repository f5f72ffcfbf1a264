package controller

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"path/filepath"
	"sync"
	"sync/atomic"

	"noise-cleaner/internal/domain"
	"noise-cleaner/internal/engine"
	"noise-cleaner/internal/logging"
)

const defaultInboxSize = 64

// Downloader installs the engine binary and streams progress.
type Downloader interface {
	Locate() (domain.EngineBinary, bool)
	Begin(ctx context.Context) <-chan engine.Event
}

// Selector validates input files and holds the current selection.
type Selector interface {
	Select(path string) (domain.SelectedFile, error)
	Current() (domain.SelectedFile, bool)
}

// ProcessRunner invokes the engine against one file and blocks until it exits.
type ProcessRunner interface {
	Run(ctx context.Context, selected domain.SelectedFile, bin domain.EngineBinary) (string, error)
}

// Opener reveals a directory in the platform file manager.
type Opener func(dir string) error

// Snapshot is an immutable copy of controller state for readers and views.
type Snapshot struct {
	State        domain.AppState     `json:"state"`
	Selected     domain.SelectedFile `json:"selected"`
	HasSelection bool                `json:"hasSelection"`
	Engine       domain.EngineBinary `json:"engine"`
	Generation   uint64              `json:"generation"`
	Allowed      []domain.Action     `json:"allowed"`
}

// Can reports whether action is currently enabled.
func (s Snapshot) Can(action domain.Action) bool {
	for _, a := range s.Allowed {
		if a == action {
			return true
		}
	}
	return false
}

// Options wires the controller to its collaborators.
type Options struct {
	Downloader Downloader
	Intake     Selector
	Runner     ProcessRunner
	Opener     Opener
	Logger     *slog.Logger
}

// Controller is the application state machine. All state changes happen on
// the goroutine running Run; other goroutines talk to it through messages.
type Controller struct {
	downloader Downloader
	intake     Selector
	runner     ProcessRunner
	opener     Opener
	logger     *slog.Logger

	inbox   chan message
	done    chan struct{}
	running atomic.Bool

	// Owned by the Run goroutine.
	baseCtx    context.Context
	state      domain.AppState
	retryTo    domain.AppState
	engine     domain.EngineBinary
	generation uint64
	cancelOp   context.CancelFunc

	mu          sync.RWMutex
	snapshot    Snapshot
	subscribers []func(Snapshot)
}

// New builds a controller in the Idle state. Run resolves the startup state.
func New(opts Options) *Controller {
	c := &Controller{
		downloader: opts.Downloader,
		intake:     opts.Intake,
		runner:     opts.Runner,
		opener:     opts.Opener,
		logger:     logging.OrNop(opts.Logger).With(slog.String("component", "controller")),
		inbox:      make(chan message, defaultInboxSize),
		done:       make(chan struct{}),
		baseCtx:    context.Background(),
		state:      domain.AppState{Kind: domain.StateIdle},
	}
	c.snapshot = c.buildSnapshot()
	return c
}

// Subscribe registers fn to receive every published snapshot. fn runs on the
// controller goroutine and must not block or call back into the controller.
func (c *Controller) Subscribe(fn func(Snapshot)) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.subscribers = append(c.subscribers, fn)
}

// Snapshot returns the latest published state.
func (c *Controller) Snapshot() Snapshot {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.snapshot
}

// State returns the latest published AppState.
func (c *Controller) State() domain.AppState {
	return c.Snapshot().State
}

// Run resolves the startup state, then processes messages until ctx ends.
// In-flight operations are cancelled on exit and their results dropped.
func (c *Controller) Run(ctx context.Context) error {
	if !c.running.CompareAndSwap(false, true) {
		return ErrAlreadyRunning
	}
	c.baseCtx = ctx
	defer func() {
		c.cancelInFlight()
		close(c.done)
	}()

	c.resolveStartup()

	for {
		select {
		case <-ctx.Done():
			c.logger.Info("controller stopping", slog.String("state", c.state.String()))
			return nil
		case msg := <-c.inbox:
			if err := c.handle(msg); err != nil {
				return err
			}
		}
	}
}

// Done is closed once Run has returned.
func (c *Controller) Done() <-chan struct{} {
	return c.done
}

// DownloadEngine starts the engine download.
func (c *Controller) DownloadEngine(ctx context.Context) error {
	return c.dispatch(ctx, domain.ActionDownload, "")
}

// SelectFile validates path and makes it the current selection. Drops and
// dialog picks both land here.
func (c *Controller) SelectFile(ctx context.Context, path string) error {
	return c.dispatch(ctx, domain.ActionSelectFile, path)
}

// StartProcessing runs the engine on the selected file.
func (c *Controller) StartProcessing(ctx context.Context) error {
	return c.dispatch(ctx, domain.ActionStartProcessing, "")
}

// Retry returns from Error to the state that preceded the failure.
func (c *Controller) Retry(ctx context.Context) error {
	return c.dispatch(ctx, domain.ActionRetry, "")
}

// Continue leaves Done for Ready so another file can be processed.
func (c *Controller) Continue(ctx context.Context) error {
	return c.dispatch(ctx, domain.ActionContinue, "")
}

// Cancel abandons the in-flight download or engine run.
func (c *Controller) Cancel(ctx context.Context) error {
	return c.dispatch(ctx, domain.ActionCancel, "")
}

// OpenFileLocation reveals the folder holding the cleaned file.
func (c *Controller) OpenFileLocation(ctx context.Context) error {
	return c.dispatch(ctx, domain.ActionOpenFileLocation, "")
}

// dispatch hands an action to the loop and waits only for its acknowledgement.
func (c *Controller) dispatch(ctx context.Context, action domain.Action, path string) error {
	msg := actionMsg{action: action, path: path, reply: make(chan error, 1)}
	select {
	case c.inbox <- msg:
	case <-c.done:
		return ErrStopped
	case <-ctx.Done():
		return ctx.Err()
	}

	select {
	case err := <-msg.reply:
		return err
	case <-c.done:
		return ErrStopped
	case <-ctx.Done():
		return ctx.Err()
	}
}

// post delivers a background result, giving up once the loop has exited.
func (c *Controller) post(msg message) bool {
	select {
	case c.inbox <- msg:
		return true
	case <-c.done:
		return false
	}
}

func (c *Controller) resolveStartup() {
	bin, ok := c.downloader.Locate()
	c.engine = bin
	if ok {
		c.logger.Info("engine found", slog.String("path", bin.Path))
		c.transition(domain.AppState{Kind: domain.StateReady})
		return
	}
	c.logger.Info("engine missing", slog.String("path", bin.Path))
	c.transition(domain.AppState{Kind: domain.StateEngineMissing})
}

func (c *Controller) handle(msg message) error {
	if !knownKind(c.state.Kind) {
		return fmt.Errorf("controller in unknown state %q", c.state.Kind)
	}

	switch m := msg.(type) {
	case actionMsg:
		m.reply <- c.handleAction(m)
	case progressMsg:
		if c.stale(m.gen, domain.StateDownloading) {
			return nil
		}
		if m.progress.BytesDone < c.state.Progress.BytesDone {
			return nil
		}
		c.transition(domain.AppState{Kind: domain.StateDownloading, Progress: m.progress})
	case downloadDoneMsg:
		if c.stale(m.gen, domain.StateDownloading) {
			return nil
		}
		c.cancelInFlight()
		if m.err != nil {
			failure := classify(m.err, domain.ActionDownload)
			c.logger.Warn("engine download failed", logging.Error(m.err), slog.String("kind", string(failure.Kind)))
			c.fail(failure, domain.AppState{Kind: domain.StateEngineMissing})
			return nil
		}
		c.engine = m.engine
		c.transition(domain.AppState{Kind: domain.StateReady})
	case processDoneMsg:
		if c.stale(m.gen, domain.StateProcessing) {
			return nil
		}
		c.cancelInFlight()
		if m.err != nil {
			failure := classify(m.err, domain.ActionStartProcessing)
			c.logger.Warn("processing failed", logging.Error(m.err), slog.Int("exit_code", failure.ExitCode))
			c.fail(failure, domain.AppState{Kind: domain.StateReady})
			return nil
		}
		c.transition(domain.AppState{Kind: domain.StateDone, OutputPath: m.output})
	default:
		return fmt.Errorf("unknown controller message %T", msg)
	}
	return nil
}

// stale reports whether a background message belongs to a superseded
// operation and must be dropped.
func (c *Controller) stale(gen uint64, want domain.StateKind) bool {
	if gen == c.generation && c.state.Kind == want {
		return false
	}
	c.logger.Debug("dropping stale result",
		slog.Uint64("generation", gen),
		slog.Uint64("current_generation", c.generation),
		slog.String("state", c.state.String()),
	)
	return true
}

func (c *Controller) handleAction(m actionMsg) error {
	_, hasSelection := c.intake.Current()
	if !Allowed(c.state, m.action, hasSelection) {
		return &ActionError{Action: m.action, State: c.state.Kind}
	}

	switch m.action {
	case domain.ActionDownload:
		c.startDownload()
	case domain.ActionSelectFile:
		return c.selectFile(m.path)
	case domain.ActionStartProcessing:
		c.startProcessing()
	case domain.ActionRetry:
		c.retry()
	case domain.ActionContinue:
		c.transition(domain.AppState{Kind: domain.StateReady})
	case domain.ActionCancel:
		c.cancel()
	case domain.ActionOpenFileLocation:
		return c.openFileLocation()
	}
	return nil
}

func (c *Controller) startDownload() {
	ctx := c.beginOperation()
	gen := c.generation
	c.logger.Info("engine download requested", slog.Uint64("generation", gen))
	c.transition(domain.AppState{Kind: domain.StateDownloading})

	events := c.downloader.Begin(ctx)
	go func() {
		for event := range events {
			if event.Done {
				c.post(downloadDoneMsg{gen: gen, engine: event.Engine, err: event.Err})
				return
			}
			if !c.post(progressMsg{gen: gen, progress: event.Progress}) {
				return
			}
		}
		// Stream closed without a result: the operation was cancelled.
		c.post(downloadDoneMsg{gen: gen, err: context.Canceled})
	}()
}

func (c *Controller) selectFile(path string) error {
	file, err := c.intake.Select(path)
	if err != nil {
		retryTo := c.state
		if c.state.Kind == domain.StateError {
			retryTo = c.retryTo
		}
		c.logger.Info("file rejected", slog.String("path", path), logging.Error(err))
		c.fail(classify(err, domain.ActionSelectFile), retryTo)
		return err
	}
	c.logger.Info("file selected", slog.String("path", file.Path))
	c.transition(domain.AppState{Kind: domain.StateReady})
	return nil
}

func (c *Controller) startProcessing() {
	selected, _ := c.intake.Current()
	bin := c.engine
	ctx := c.beginOperation()
	gen := c.generation
	c.logger.Info("processing requested", slog.Uint64("generation", gen), slog.String("input", selected.Path))
	c.transition(domain.AppState{Kind: domain.StateProcessing})

	go func() {
		output, err := c.runner.Run(ctx, selected, bin)
		c.post(processDoneMsg{gen: gen, output: output, err: err})
	}()
}

func (c *Controller) retry() {
	target := c.retryTo
	switch target.Kind {
	case domain.StateReady, domain.StateDone:
		bin, ok := c.downloader.Locate()
		c.engine = bin
		if !ok {
			target = domain.AppState{Kind: domain.StateEngineMissing}
		}
	case domain.StateIdle, "":
		c.resolveStartup()
		return
	}
	c.transition(target)
}

func (c *Controller) cancel() {
	previous := c.state.Kind
	c.cancelInFlight()
	c.generation++
	c.logger.Info("operation cancelled", slog.String("state", string(previous)))

	switch previous {
	case domain.StateDownloading:
		c.transition(domain.AppState{Kind: domain.StateEngineMissing})
	case domain.StateProcessing:
		c.transition(domain.AppState{Kind: domain.StateReady})
	}
}

func (c *Controller) openFileLocation() error {
	if c.opener == nil {
		return errors.New("no file manager configured")
	}
	dir := filepath.Dir(c.state.OutputPath)
	if err := c.opener(dir); err != nil {
		c.logger.Warn("open file location failed", slog.String("dir", dir), logging.Error(err))
		return fmt.Errorf("open %s: %w", dir, err)
	}
	return nil
}

// beginOperation bumps the generation and returns a context for the new
// background operation, cancelled on Cancel or shutdown.
func (c *Controller) beginOperation() context.Context {
	c.cancelInFlight()
	c.generation++
	ctx, cancel := context.WithCancel(c.baseCtx)
	c.cancelOp = cancel
	return ctx
}

func (c *Controller) cancelInFlight() {
	if c.cancelOp != nil {
		c.cancelOp()
		c.cancelOp = nil
	}
}

func (c *Controller) fail(failure domain.Failure, retryTo domain.AppState) {
	c.retryTo = retryTo
	c.transition(domain.AppState{Kind: domain.StateError, Failure: &failure})
}

// transition is the only place AppState changes.
func (c *Controller) transition(next domain.AppState) {
	c.state = next

	c.mu.Lock()
	c.snapshot = c.buildSnapshot()
	snapshot := c.snapshot
	subscribers := append([]func(Snapshot){}, c.subscribers...)
	c.mu.Unlock()

	for _, fn := range subscribers {
		fn(snapshot)
	}
}

func (c *Controller) buildSnapshot() Snapshot {
	var selected domain.SelectedFile
	hasSelection := false
	if c.intake != nil {
		selected, hasSelection = c.intake.Current()
	}
	return Snapshot{
		State:        c.state,
		Selected:     selected,
		HasSelection: hasSelection,
		Engine:       c.engine,
		Generation:   c.generation,
		Allowed:      AllowedActions(c.state, hasSelection),
	}
}
