package orchestrator

import (
	"context"
	"fmt"
	"log/slog"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"scribe/internal/config"
	"scribe/internal/deps"
	"scribe/internal/language"
	"scribe/internal/logging"
	"scribe/internal/metacache"
	"scribe/internal/preflight"
	"scribe/internal/progress"
	"scribe/internal/services"
	"scribe/internal/services/whisper"
	"scribe/internal/services/ytdlp"
	"scribe/internal/task"
)

// Observer receives task lifecycle notifications, typically to feed metrics.
type Observer interface {
	TaskStarted(kind task.Kind)
	TaskFinished(kind task.Kind, status task.Status)
}

// Prober looks up metadata for a media URL. Satisfied by ytdlp.Prober.
type Prober interface {
	Probe(ctx context.Context, source string) (*ytdlp.Metadata, error)
}

// Orchestrator accepts task submissions, runs each one as a child process,
// and keeps the durable record in sync with what the process reports. It is
// the only component that mutates records after insertion.
type Orchestrator struct {
	ctx      context.Context
	cfg      *config.Config
	store    *task.Store
	registry *task.Registry
	logger   *slog.Logger
	checker  *deps.Checker
	prober   Prober
	cache    *metacache.Cache
	observer Observer
	flush    time.Duration
	wg       sync.WaitGroup
}

// Option configures optional Orchestrator collaborators.
type Option func(*Orchestrator)

// WithProber injects a metadata prober (used in tests).
func WithProber(p Prober) Option {
	return func(o *Orchestrator) {
		if p != nil {
			o.prober = p
		}
	}
}

// WithCache attaches a probe metadata cache.
func WithCache(c *metacache.Cache) Option {
	return func(o *Orchestrator) { o.cache = c }
}

// WithObserver attaches a lifecycle observer.
func WithObserver(obs Observer) Option {
	return func(o *Orchestrator) { o.observer = obs }
}

// WithChecker injects a shared binary checker.
func WithChecker(c *deps.Checker) Option {
	return func(o *Orchestrator) {
		if c != nil {
			o.checker = c
		}
	}
}

// New constructs an orchestrator. The context bounds every child process it
// spawns: cancelling it kills running tools, and their exit events settle the
// corresponding records before Wait returns.
func New(ctx context.Context, cfg *config.Config, store *task.Store, registry *task.Registry, logger *slog.Logger, opts ...Option) *Orchestrator {
	o := &Orchestrator{
		ctx:      ctx,
		cfg:      cfg,
		store:    store,
		registry: registry,
		logger:   logging.NewComponentLogger(logger, "orchestrator"),
		checker:  deps.NewChecker(),
		flush:    time.Duration(cfg.Workflow.FlushIntervalSeconds) * time.Second,
	}
	if o.flush <= 0 {
		o.flush = progress.DefaultFlushInterval
	}
	for _, opt := range opts {
		opt(o)
	}
	if o.prober == nil {
		timeout := time.Duration(cfg.Metadata.ProbeTimeoutSeconds) * time.Second
		o.prober = ytdlp.NewProber(cfg.Tools.YtDlpBinary, timeout)
	}
	return o
}

// StartRequest carries one task submission from a client.
type StartRequest struct {
	Kind task.Kind `json:"kind"`
	// Source is a media URL for downloads and subtitle fetches, or a local
	// file path for transcriptions.
	Source string `json:"source"`
	// OutputDir overrides the configured destination directory.
	OutputDir string `json:"output_dir,omitempty"`
	// Language is a language hint: a comma-separated track list for
	// subtitles, a single code for transcriptions.
	Language string `json:"language,omitempty"`
}

// StartResult reports an accepted task back to the caller.
type StartResult struct {
	TaskID  string `json:"task_id"`
	Title   string `json:"title,omitempty"`
	LogPath string `json:"log_path,omitempty"`
}

// launchPlan is everything prepare resolved for spawning one task process.
type launchPlan struct {
	source    string
	binary    string
	args      []string
	parse     parseFunc
	title     string
	outputDir string
	// probeSource is set when the record title should be fetched
	// asynchronously after the process starts.
	probeSource string
}

// StartTask validates a submission, inserts the initial record, and spawns
// the task process. Validation problems are returned to the caller and leave
// no record behind; once the record exists, any later failure is recorded on
// it instead.
func (o *Orchestrator) StartTask(ctx context.Context, req StartRequest) (*StartResult, error) {
	kind, ok := task.ParseKind(string(req.Kind))
	if !ok {
		return nil, services.Wrap(services.ErrValidation, "orchestrator", "start", fmt.Sprintf("unknown task kind %q", req.Kind), nil)
	}
	source := strings.TrimSpace(req.Source)
	if source == "" {
		return nil, services.Wrap(services.ErrValidation, "orchestrator", "start", "source required", nil)
	}
	req.Source = source

	var (
		plan *launchPlan
		err  error
	)
	switch kind {
	case task.KindDownload:
		plan, err = o.prepareDownload(req)
	case task.KindSubtitle:
		plan, err = o.prepareSubtitle(req)
	case task.KindTranscription:
		plan, err = o.prepareTranscription(req)
	}
	if err != nil {
		return nil, err
	}

	if plan.probeSource != "" && o.cache != nil {
		if meta, ok, err := o.cache.Lookup(ctx, plan.probeSource); err == nil && ok {
			plan.title = meta.Title
			plan.probeSource = ""
		}
	}

	rec := task.NewRecord(kind, plan.source)
	rec.OutputDir = plan.outputDir
	rec.Title = plan.title

	tlog, logPath, err := openTaskLog(o.cfg.TaskLogDir(), rec.ID)
	if err != nil {
		return nil, services.Wrap(services.ErrConfiguration, "orchestrator", "start", "task log unavailable", err)
	}
	rec.LogPath = logPath
	if err := o.store.Insert(rec); err != nil {
		_ = tlog.Close()
		return nil, err
	}
	if o.observer != nil {
		o.observer.TaskStarted(kind)
	}
	ctx = services.WithTaskKind(services.WithTaskID(ctx, rec.ID), string(kind))
	logging.WithContext(ctx, o.logger).Info("task accepted", logging.String("source", source))

	o.launch(rec, plan, tlog)

	if plan.probeSource != "" {
		o.wg.Add(1)
		go func() {
			defer o.wg.Done()
			o.enrichTitle(rec.ID, plan.probeSource)
		}()
	}
	return &StartResult{TaskID: rec.ID, Title: rec.Title, LogPath: logPath}, nil
}

func (o *Orchestrator) prepareDownload(req StartRequest) (*launchPlan, error) {
	if err := o.checker.Ensure(o.cfg.Tools.YtDlpBinary); err != nil {
		return nil, err
	}
	outputDir, err := o.resolveOutputDir(req.OutputDir, o.cfg.Paths.DownloadDir)
	if err != nil {
		return nil, err
	}
	if err := preflight.EnsureFreeSpace(outputDir, o.cfg.Download.MinFreeSpaceGiB); err != nil {
		return nil, err
	}
	opts := ytdlp.Options{
		Format:              o.cfg.Download.Format,
		RateLimit:           o.cfg.Download.RateLimit,
		RestrictFilenames:   o.cfg.Download.RestrictFilenames,
		EmbedMetadata:       o.cfg.Download.EmbedMetadata,
		ConcurrentFragments: o.cfg.Download.ConcurrentFragment,
	}
	return &launchPlan{
		source:      req.Source,
		binary:      o.cfg.Tools.YtDlpBinary,
		args:        ytdlp.DownloadArgs(req.Source, outputDir, opts),
		parse:       ytdlp.ParseLine,
		outputDir:   outputDir,
		probeSource: req.Source,
	}, nil
}

func (o *Orchestrator) prepareSubtitle(req StartRequest) (*launchPlan, error) {
	if err := o.checker.Ensure(o.cfg.Tools.YtDlpBinary); err != nil {
		return nil, err
	}
	outputDir, err := o.resolveOutputDir(req.OutputDir, o.cfg.Paths.DownloadDir)
	if err != nil {
		return nil, err
	}
	languages := o.cfg.Download.SubtitleLanguages
	if strings.TrimSpace(req.Language) != "" {
		languages = strings.Split(req.Language, ",")
	}
	languages = language.NormalizeList(languages)
	if len(languages) == 0 {
		languages = []string{"en"}
	}
	opts := ytdlp.SubtitleOptions{
		Languages:         languages,
		Format:            o.cfg.Download.SubtitleFormat,
		RestrictFilenames: o.cfg.Download.RestrictFilenames,
	}
	return &launchPlan{
		source:      req.Source,
		binary:      o.cfg.Tools.YtDlpBinary,
		args:        ytdlp.SubtitleArgs(req.Source, outputDir, opts),
		parse:       ytdlp.ParseLine,
		outputDir:   outputDir,
		probeSource: req.Source,
	}, nil
}

func (o *Orchestrator) prepareTranscription(req StartRequest) (*launchPlan, error) {
	if err := o.checker.Ensure(o.cfg.Tools.UvBinary); err != nil {
		return nil, err
	}
	input, err := config.ExpandPath(req.Source)
	if err != nil {
		return nil, services.Wrap(services.ErrValidation, "orchestrator", "start", "resolve input path", err)
	}
	if err := preflight.EnsureInputFile(input); err != nil {
		return nil, err
	}
	script := o.cfg.Tools.TranscriberScript
	if err := whisper.EnsureScript(script); err != nil {
		return nil, err
	}
	outputDir, err := o.resolveOutputDir(req.OutputDir, o.cfg.Paths.TranscriptDir)
	if err != nil {
		return nil, err
	}
	stem := strings.TrimSuffix(filepath.Base(input), filepath.Ext(input))
	format := strings.TrimPrefix(strings.TrimSpace(o.cfg.Transcription.OutputFormat), ".")
	if format == "" {
		format = "txt"
	}
	lang := language.Normalize(req.Language)
	if lang == "" {
		lang = language.Normalize(o.cfg.Transcription.Language)
	}
	if lang == "" {
		lang = language.FromTitle(stem)
	}
	opts := whisper.Options{
		Script:   script,
		Input:    input,
		Output:   filepath.Join(outputDir, stem+"."+format),
		Language: lang,
		Model:    o.cfg.Transcription.Model,
	}
	return &launchPlan{
		source:    input,
		binary:    o.cfg.Tools.UvBinary,
		args:      whisper.Args(opts),
		parse:     whisper.ParseLine,
		title:     stem,
		outputDir: outputDir,
	}, nil
}

func (o *Orchestrator) resolveOutputDir(override, fallback string) (string, error) {
	dir := strings.TrimSpace(override)
	if dir == "" {
		dir = fallback
	}
	expanded, err := config.ExpandPath(dir)
	if err != nil {
		return "", services.Wrap(services.ErrValidation, "orchestrator", "start", "resolve output directory", err)
	}
	if err := preflight.EnsureWritableDir(expanded); err != nil {
		return "", err
	}
	return expanded, nil
}

// enrichTitle runs the metadata probe off the submission path and writes the
// title straight to the store. Only the title moves, so it cannot collide
// with anything the task's own writer batches.
func (o *Orchestrator) enrichTitle(id, source string) {
	meta, err := o.prober.Probe(o.ctx, source)
	if err != nil {
		o.logger.Debug("metadata probe failed",
			logging.String(logging.FieldTaskID, id),
			logging.Error(err))
		return
	}
	if o.cache != nil {
		if err := o.cache.Store(o.ctx, source, *meta); err != nil {
			o.logger.Debug("probe cache store failed", logging.Error(err))
		}
	}
	title := strings.TrimSpace(meta.Title)
	if title == "" {
		return
	}
	if _, err := o.store.Update(id, task.Patch{Title: &title}); err != nil {
		o.logger.Warn("record title update failed",
			logging.String(logging.FieldTaskID, id),
			logging.Error(err))
	}
}

// FindByID returns one record, or nil when the id is unknown.
func (o *Orchestrator) FindByID(id string) (*task.Record, error) {
	return o.store.FindByID(id)
}

// ListAll returns every record in insertion order.
func (o *Orchestrator) ListAll() ([]task.Record, error) {
	return o.store.ListAll()
}

// ListActive returns the records not yet in a terminal state.
func (o *Orchestrator) ListActive() ([]task.Record, error) {
	return o.store.ListActive()
}

// Running reports how many task processes are currently attached.
func (o *Orchestrator) Running() int {
	return o.registry.Len()
}

// RecoverInterrupted fails every non-terminal record left behind by an
// earlier daemon run. Call it before accepting submissions; nothing in the
// registry can be racing these writes yet.
func (o *Orchestrator) RecoverInterrupted() (int, error) {
	active, err := o.store.ListActive()
	if err != nil {
		return 0, err
	}
	for _, rec := range active {
		patch := task.FailurePatch(task.InterruptedReason)
		now := time.Now().UTC()
		patch.FinishedAt = &now
		if _, err := o.store.Update(rec.ID, patch); err != nil {
			return 0, err
		}
		o.logger.Warn("interrupted task failed during recovery",
			logging.String(logging.FieldTaskID, rec.ID),
			logging.String(logging.FieldTaskKind, string(rec.Kind)))
	}
	return len(active), nil
}

// Wait blocks until every launched task goroutine has settled its record.
// Cancel the constructor context first so child processes exit promptly.
func (o *Orchestrator) Wait() {
	o.wg.Wait()
}
