package daemon

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/gofrs/flock"

	"scribe/internal/config"
	"scribe/internal/deps"
	"scribe/internal/logging"
	"scribe/internal/logs"
	"scribe/internal/metacache"
	"scribe/internal/orchestrator"
	"scribe/internal/preflight"
	"scribe/internal/services"
	"scribe/internal/services/ytdlp"
	"scribe/internal/task"
)

// metadataTTL bounds how long cached probe results stay valid. The config
// keeps no knob for this; stale titles are harmless and re-probed on miss.
const metadataTTL = 7 * 24 * time.Hour

// janitorInterval spaces the periodic task-log and cache sweeps.
const janitorInterval = 12 * time.Hour

// Daemon coordinates the task engine, IPC surfaces, and housekeeping, and
// enforces single-instance execution through a lock file.
type Daemon struct {
	cfg      *config.Config
	logger   *slog.Logger
	store    *task.Store
	registry *task.Registry
	metrics  *Metrics

	lockPath string
	lock     *flock.Flock

	prober  orchestrator.Prober
	checker *deps.Checker

	mu      sync.RWMutex
	orch    *orchestrator.Orchestrator
	cache   *metacache.Cache
	api     *apiServer
	ctx     context.Context
	cancel  context.CancelFunc
	janitor sync.WaitGroup

	running atomic.Bool
	pid     int
}

// Option customizes daemon construction, mostly for tests.
type Option func(*Daemon)

// WithProber overrides the metadata prober shared by the task engine and the
// probe operation.
func WithProber(p orchestrator.Prober) Option {
	return func(d *Daemon) {
		if p != nil {
			d.prober = p
		}
	}
}

// WithChecker overrides the binary availability checker handed to the task
// engine.
func WithChecker(c *deps.Checker) Option {
	return func(d *Daemon) {
		if c != nil {
			d.checker = c
		}
	}
}

// New constructs a daemon around the given store. Background machinery is
// not live until Start.
func New(cfg *config.Config, store *task.Store, logger *slog.Logger, opts ...Option) (*Daemon, error) {
	if cfg == nil || store == nil {
		return nil, errors.New("daemon requires config and store")
	}
	if logger == nil {
		logger = logging.NewNop()
	}

	lockPath := cfg.LockFile()
	d := &Daemon{
		cfg:      cfg,
		logger:   logging.NewComponentLogger(logger, "daemon"),
		store:    store,
		registry: task.NewRegistry(),
		lockPath: lockPath,
		lock:     flock.New(lockPath),
		pid:      os.Getpid(),
	}
	d.metrics = newMetrics(d.registry)
	for _, opt := range opts {
		opt(d)
	}
	return d, nil
}

// Start acquires the instance lock, settles records orphaned by a previous
// run, and brings up the task engine and optional HTTP API.
func (d *Daemon) Start(ctx context.Context) error {
	if d.running.Load() {
		return errors.New("daemon already running")
	}
	if err := d.cfg.EnsureDirectories(); err != nil {
		return fmt.Errorf("prepare directories: %w", err)
	}

	ok, err := d.lock.TryLock()
	if err != nil {
		return fmt.Errorf("acquire lock: %w", err)
	}
	if !ok {
		return errors.New("another scribe daemon instance is already running")
	}

	d.mu.Lock()
	d.ctx, d.cancel = context.WithCancel(ctx)

	if d.cfg.Metadata.CacheEnabled {
		cache, cacheErr := metacache.Open(d.cfg.Metadata.CachePath, metadataTTL, d.logger)
		if cacheErr != nil {
			d.logger.Warn("metadata cache unavailable", logging.Error(cacheErr))
		} else {
			d.cache = cache
		}
	}

	orchOpts := []orchestrator.Option{orchestrator.WithObserver(d.metrics)}
	if d.cache != nil {
		orchOpts = append(orchOpts, orchestrator.WithCache(d.cache))
	}
	if d.prober != nil {
		orchOpts = append(orchOpts, orchestrator.WithProber(d.prober))
	}
	if d.checker != nil {
		orchOpts = append(orchOpts, orchestrator.WithChecker(d.checker))
	}
	d.orch = orchestrator.New(d.ctx, d.cfg, d.store, d.registry, d.logger, orchOpts...)
	if d.prober == nil {
		timeout := time.Duration(d.cfg.Metadata.ProbeTimeoutSeconds) * time.Second
		d.prober = ytdlp.NewProber(d.cfg.Tools.YtDlpBinary, timeout)
	}

	recovered, err := d.orch.RecoverInterrupted()
	if err != nil {
		d.teardownLocked()
		d.mu.Unlock()
		return fmt.Errorf("recover interrupted tasks: %w", err)
	}

	api, err := newAPIServer(d.cfg, d, d.logger)
	if err != nil {
		d.teardownLocked()
		d.mu.Unlock()
		return err
	}
	if api != nil {
		if err := api.start(d.ctx); err != nil {
			d.teardownLocked()
			d.mu.Unlock()
			return err
		}
		d.api = api
	}

	d.janitor.Add(1)
	go d.runJanitor(d.ctx, d.cache)
	d.mu.Unlock()

	d.running.Store(true)
	d.logger.Info("scribe daemon started",
		logging.String("lock", d.lockPath),
		logging.Int("recovered_tasks", recovered),
	)
	return nil
}

// teardownLocked unwinds a partial Start. Callers hold d.mu.
func (d *Daemon) teardownLocked() {
	if d.cancel != nil {
		d.cancel()
	}
	if d.cache != nil {
		_ = d.cache.Close()
		d.cache = nil
	}
	d.orch = nil
	d.api = nil
	d.ctx = nil
	d.cancel = nil
	_ = d.lock.Unlock()
}

// Stop terminates running child processes, waits for their records to
// settle, and releases the daemon lock.
func (d *Daemon) Stop() {
	if !d.running.Load() {
		return
	}

	d.mu.Lock()
	orch := d.orch
	cache := d.cache
	api := d.api
	if d.cancel != nil {
		d.cancel()
		d.cancel = nil
	}
	d.orch = nil
	d.cache = nil
	d.api = nil
	d.ctx = nil
	d.mu.Unlock()

	if orch != nil {
		orch.Wait()
	}
	if api != nil {
		api.stop()
	}
	d.janitor.Wait()
	if cache != nil {
		_ = cache.Close()
	}
	if err := d.lock.Unlock(); err != nil {
		d.logger.Warn("failed to release daemon lock", logging.Error(err))
	}
	d.running.Store(false)
	d.logger.Info("scribe daemon stopped")
}

// Close releases resources held by the daemon.
func (d *Daemon) Close() error {
	d.Stop()
	return nil
}

func (d *Daemon) engine() *orchestrator.Orchestrator {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return d.orch
}

func (d *Daemon) metaCache() *metacache.Cache {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return d.cache
}

// APIAddr reports the bound HTTP API address, empty when the API is disabled
// or the daemon is stopped.
func (d *Daemon) APIAddr() string {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return d.api.addr()
}

// StartTask validates and launches a background task.
func (d *Daemon) StartTask(ctx context.Context, req orchestrator.StartRequest) (*orchestrator.StartResult, error) {
	orch := d.engine()
	if orch == nil {
		return nil, services.Wrap(services.ErrUnavailable, "daemon", "start task", "daemon is not running", nil)
	}
	return orch.StartTask(ctx, req)
}

// ListTasks returns task records, optionally filtered by status names.
func (d *Daemon) ListTasks(ctx context.Context, statuses []string) ([]task.Record, error) {
	var filter map[task.Status]struct{}
	if len(statuses) > 0 {
		filter = make(map[task.Status]struct{}, len(statuses))
		for _, value := range statuses {
			trimmed := strings.TrimSpace(value)
			if trimmed == "" {
				continue
			}
			status, ok := task.ParseStatus(trimmed)
			if !ok {
				return nil, services.Wrap(services.ErrValidation, "daemon", "list tasks", fmt.Sprintf("unknown status %q", trimmed), nil)
			}
			filter[status] = struct{}{}
		}
	}

	records, err := d.store.ListAll()
	if err != nil {
		return nil, err
	}
	if len(filter) == 0 {
		return records, nil
	}
	out := records[:0]
	for _, rec := range records {
		if _, keep := filter[rec.Status]; keep {
			out = append(out, rec)
		}
	}
	return out, nil
}

// GetTask returns the record with the given id.
func (d *Daemon) GetTask(ctx context.Context, id string) (*task.Record, error) {
	trimmed := strings.TrimSpace(id)
	if trimmed == "" {
		return nil, services.Wrap(services.ErrValidation, "daemon", "get task", "task id is required", nil)
	}
	rec, err := d.store.FindByID(trimmed)
	if err != nil {
		return nil, err
	}
	if rec == nil {
		return nil, services.Wrap(services.ErrNotFound, "daemon", "get task", fmt.Sprintf("no task with id %q", trimmed), nil)
	}
	return rec, nil
}

// TaskLogPath resolves the per-task log file for the given id.
func (d *Daemon) TaskLogPath(ctx context.Context, id string) (string, error) {
	rec, err := d.GetTask(ctx, id)
	if err != nil {
		return "", err
	}
	if rec.LogPath != "" {
		return rec.LogPath, nil
	}
	return filepath.Join(d.cfg.TaskLogDir(), rec.ID+".log"), nil
}

// TailTaskLog reads a page of the per-task log.
func (d *Daemon) TailTaskLog(ctx context.Context, id string, opts logs.Options) (logs.Page, error) {
	path, err := d.TaskLogPath(ctx, id)
	if err != nil {
		return logs.Page{}, err
	}
	return logs.Read(ctx, path, opts)
}

// ProbeSource fetches source metadata, consulting the cache first.
func (d *Daemon) ProbeSource(ctx context.Context, source string) (*ytdlp.Metadata, error) {
	trimmed := strings.TrimSpace(source)
	if trimmed == "" {
		return nil, services.Wrap(services.ErrValidation, "daemon", "probe source", "source is required", nil)
	}
	if !d.running.Load() || d.prober == nil {
		return nil, services.Wrap(services.ErrUnavailable, "daemon", "probe source", "daemon is not running", nil)
	}

	cache := d.metaCache()
	if cache != nil {
		if meta, hit, err := cache.Lookup(ctx, trimmed); err == nil && hit {
			return meta, nil
		}
	}
	meta, err := d.prober.Probe(ctx, trimmed)
	if err != nil {
		return nil, err
	}
	if cache != nil && meta != nil {
		if err := cache.Store(ctx, trimmed, *meta); err != nil {
			d.logger.Debug("metadata cache store failed", logging.Error(err))
		}
	}
	return meta, nil
}

// Status describes daemon runtime information.
type Status struct {
	Running      bool               `json:"running"`
	PID          int                `json:"pid"`
	TasksFile    string             `json:"tasks_file"`
	LockFile     string             `json:"lock_file"`
	SocketPath   string             `json:"socket_path"`
	RunningTasks int                `json:"running_tasks"`
	TaskCounts   map[string]int     `json:"task_counts"`
	Dependencies []deps.Status      `json:"dependencies"`
	Checks       []preflight.Result `json:"checks"`
}

// Status reports the current daemon state, task tallies, and environment
// health.
func (d *Daemon) Status(ctx context.Context) Status {
	counts := make(map[string]int)
	if records, err := d.store.ListAll(); err == nil {
		for _, rec := range records {
			counts[string(rec.Status)]++
		}
	}

	return Status{
		Running:      d.running.Load(),
		PID:          d.pid,
		TasksFile:    d.cfg.TasksFile(),
		LockFile:     d.lockPath,
		SocketPath:   d.cfg.Paths.SocketPath,
		RunningTasks: d.registry.Len(),
		TaskCounts:   counts,
		Dependencies: preflight.CheckSystemDeps(d.cfg),
		Checks:       preflight.RunAll(d.cfg),
	}
}

// runJanitor prunes aged task logs and expired cache rows until ctx ends.
func (d *Daemon) runJanitor(ctx context.Context, cache *metacache.Cache) {
	defer d.janitor.Done()

	ticker := time.NewTicker(janitorInterval)
	defer ticker.Stop()

	d.sweep(ctx, cache)
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			d.sweep(ctx, cache)
		}
	}
}

func (d *Daemon) sweep(ctx context.Context, cache *metacache.Cache) {
	logging.CleanupOldLogs(d.logger, d.cfg.Logging.RetentionDays,
		logging.RetentionTarget{Dir: d.cfg.TaskLogDir(), Pattern: "*.log"},
	)
	if cache != nil {
		if pruned, err := cache.Prune(ctx); err != nil {
			d.logger.Debug("metadata cache prune failed", logging.Error(err))
		} else if pruned > 0 {
			d.logger.Debug("metadata cache pruned", logging.Int64("rows", pruned))
		}
	}
}
