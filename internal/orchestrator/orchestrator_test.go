package orchestrator_test

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"scribe/internal/config"
	"scribe/internal/deps"
	"scribe/internal/logging"
	"scribe/internal/metacache"
	"scribe/internal/orchestrator"
	"scribe/internal/services"
	"scribe/internal/services/ytdlp"
	"scribe/internal/task"
)

func testConfig(t *testing.T) *config.Config {
	t.Helper()
	root := t.TempDir()
	cfg := config.Default()
	cfg.Paths.StateDir = filepath.Join(root, "state")
	cfg.Paths.DownloadDir = filepath.Join(root, "downloads")
	cfg.Paths.TranscriptDir = filepath.Join(root, "transcripts")
	cfg.Paths.LogDir = filepath.Join(root, "logs")
	cfg.Tools.TranscriberScript = filepath.Join(root, "state", "transcribe.py")
	cfg.Download.MinFreeSpaceGiB = 0
	cfg.Workflow.FlushIntervalSeconds = 1
	return &cfg
}

func writeStub(t *testing.T, dir, name, body string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	script := "#!/bin/sh\n" + body + "\n"
	if err := os.WriteFile(path, []byte(script), 0o755); err != nil {
		t.Fatalf("write stub %s: %v", name, err)
	}
	return path
}

type stubProber struct {
	meta *ytdlp.Metadata
	err  error
}

func (p stubProber) Probe(ctx context.Context, source string) (*ytdlp.Metadata, error) {
	if p.err != nil {
		return nil, p.err
	}
	return p.meta, nil
}

// offlineProber keeps tests deterministic: no title enrichment runs.
var offlineProber = stubProber{err: errors.New("probe disabled")}

func newOrchestrator(t *testing.T, cfg *config.Config, opts ...orchestrator.Option) (*orchestrator.Orchestrator, *task.Store, *task.Registry) {
	t.Helper()
	store := task.NewStore(cfg.TasksFile(), logging.NewNop())
	registry := task.NewRegistry()
	ctx, cancel := context.WithCancel(context.Background())
	orch := orchestrator.New(ctx, cfg, store, registry, logging.NewNop(), opts...)
	t.Cleanup(orch.Wait)
	t.Cleanup(cancel)
	return orch, store, registry
}

func waitForRecord(t *testing.T, store *task.Store, id string, cond func(task.Record) bool) task.Record {
	t.Helper()
	deadline := time.Now().Add(10 * time.Second)
	for time.Now().Before(deadline) {
		rec, err := store.FindByID(id)
		if err != nil {
			t.Fatalf("find task: %v", err)
		}
		if rec != nil && cond(*rec) {
			return *rec
		}
		time.Sleep(10 * time.Millisecond)
	}
	rec, _ := store.FindByID(id)
	t.Fatalf("task %s never reached expected state, last: %+v", id, rec)
	return task.Record{}
}

func waitForDrain(t *testing.T, registry *task.Registry) {
	t.Helper()
	deadline := time.Now().Add(10 * time.Second)
	for time.Now().Before(deadline) {
		if registry.Len() == 0 {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatalf("registry still holds %d entries", registry.Len())
}

func TestStartTaskDownloadRunsToCompletion(t *testing.T) {
	cfg := testConfig(t)
	cfg.Tools.YtDlpBinary = writeStub(t, t.TempDir(), "yt-dlp", strings.Join([]string{
		`echo "[download] Destination: /media/video.mp4"`,
		`echo "[download]  50.0% of 10.00MiB at 1.00MiB/s ETA 00:05"`,
		`echo "[download] 100% of 10.00MiB in 00:10"`,
		`exit 0`,
	}, "\n"))

	orch, store, registry := newOrchestrator(t, cfg, orchestrator.WithProber(offlineProber))
	res, err := orch.StartTask(context.Background(), orchestrator.StartRequest{
		Kind:   task.KindDownload,
		Source: "https://example.com/watch?v=abc",
	})
	if err != nil {
		t.Fatalf("StartTask: %v", err)
	}
	if res.TaskID == "" {
		t.Fatal("empty task id")
	}

	// The record must be resolvable as soon as the submission returns.
	rec, err := store.FindByID(res.TaskID)
	if err != nil || rec == nil {
		t.Fatalf("record not resolvable immediately: rec=%v err=%v", rec, err)
	}
	if rec.Kind != task.KindDownload {
		t.Fatalf("kind = %s, want download", rec.Kind)
	}

	final := waitForRecord(t, store, res.TaskID, task.Record.IsTerminal)
	if final.Status != task.StatusCompleted {
		t.Fatalf("status = %s (error %q), want completed", final.Status, final.Error)
	}
	if final.Percentage != 100 {
		t.Errorf("percentage = %v, want 100", final.Percentage)
	}
	if final.OutputPath != "/media/video.mp4" {
		t.Errorf("output path = %q, want /media/video.mp4", final.OutputPath)
	}
	if final.Filename != "video.mp4" {
		t.Errorf("filename = %q, want video.mp4", final.Filename)
	}
	if final.ExitCode == nil || *final.ExitCode != 0 {
		t.Errorf("exit code = %v, want 0", final.ExitCode)
	}
	if final.FinishedAt == nil {
		t.Error("finished_at not stamped")
	}
	if final.PID == 0 {
		t.Error("pid never recorded")
	}

	waitForDrain(t, registry)

	data, err := os.ReadFile(res.LogPath)
	if err != nil {
		t.Fatalf("read task log: %v", err)
	}
	if !strings.Contains(string(data), "[stdout] [download] Destination: /media/video.mp4") {
		t.Errorf("task log missing raw output, got:\n%s", data)
	}
	if !strings.Contains(string(data), "exit code 0") {
		t.Errorf("task log missing exit note, got:\n%s", data)
	}
}

func TestStartTaskParserCompletionSurvivesNonZeroExit(t *testing.T) {
	cfg := testConfig(t)
	cfg.Tools.YtDlpBinary = writeStub(t, t.TempDir(), "yt-dlp", strings.Join([]string{
		`echo "[download] /media/cached.mp4 has already been downloaded"`,
		`exit 3`,
	}, "\n"))

	orch, store, registry := newOrchestrator(t, cfg, orchestrator.WithProber(offlineProber))
	res, err := orch.StartTask(context.Background(), orchestrator.StartRequest{
		Kind:   task.KindDownload,
		Source: "https://example.com/watch?v=cached",
	})
	if err != nil {
		t.Fatalf("StartTask: %v", err)
	}

	final := waitForRecord(t, store, res.TaskID, task.Record.IsTerminal)
	waitForDrain(t, registry)
	if final.Status != task.StatusCompleted {
		t.Fatalf("status = %s, want completed despite exit 3", final.Status)
	}
	if final.Percentage != 100 {
		t.Errorf("percentage = %v, want 100", final.Percentage)
	}
	if final.OutputPath != "/media/cached.mp4" {
		t.Errorf("output path = %q", final.OutputPath)
	}

	// The exit code still lands even though the outcome was already settled.
	settled := waitForRecord(t, store, res.TaskID, func(r task.Record) bool { return r.ExitCode != nil })
	if *settled.ExitCode != 3 {
		t.Errorf("exit code = %d, want 3", *settled.ExitCode)
	}
}

func TestStartTaskErrorLineFailsTask(t *testing.T) {
	cfg := testConfig(t)
	cfg.Tools.YtDlpBinary = writeStub(t, t.TempDir(), "yt-dlp", strings.Join([]string{
		`echo "ERROR: unable to download video data: HTTP Error 403" >&2`,
		`exit 1`,
	}, "\n"))

	orch, store, registry := newOrchestrator(t, cfg, orchestrator.WithProber(offlineProber))
	res, err := orch.StartTask(context.Background(), orchestrator.StartRequest{
		Kind:   task.KindDownload,
		Source: "https://example.com/watch?v=forbidden",
	})
	if err != nil {
		t.Fatalf("StartTask: %v", err)
	}

	final := waitForRecord(t, store, res.TaskID, task.Record.IsTerminal)
	waitForDrain(t, registry)
	if final.Status != task.StatusFailed {
		t.Fatalf("status = %s, want failed", final.Status)
	}
	if !strings.Contains(final.Error, "unable to download video data") {
		t.Errorf("error = %q, want tool message", final.Error)
	}
	if final.Percentage == 100 {
		t.Error("failed task shows full percentage")
	}
	if final.FinishedAt == nil {
		t.Error("finished_at not stamped")
	}

	settled := waitForRecord(t, store, res.TaskID, func(r task.Record) bool { return r.ExitCode != nil })
	if *settled.ExitCode != 1 {
		t.Errorf("exit code = %d, want 1", *settled.ExitCode)
	}
}

func TestStartTaskSpawnFailureLandsOnRecord(t *testing.T) {
	cfg := testConfig(t)
	stubDir := t.TempDir()
	stub := writeStub(t, stubDir, "yt-dlp", `exit 0`)
	cfg.Tools.YtDlpBinary = stub

	// Warm the checker so the submission passes validation, then remove the
	// binary: the spawn itself now fails after the record exists.
	checker := deps.NewChecker()
	if err := checker.Ensure(stub); err != nil {
		t.Fatalf("warm checker: %v", err)
	}
	if err := os.Remove(stub); err != nil {
		t.Fatalf("remove stub: %v", err)
	}

	orch, store, registry := newOrchestrator(t, cfg,
		orchestrator.WithProber(offlineProber),
		orchestrator.WithChecker(checker))
	res, err := orch.StartTask(context.Background(), orchestrator.StartRequest{
		Kind:   task.KindDownload,
		Source: "https://example.com/watch?v=gone",
	})
	if err != nil {
		t.Fatalf("StartTask should accept the submission, got %v", err)
	}

	final := waitForRecord(t, store, res.TaskID, task.Record.IsTerminal)
	waitForDrain(t, registry)
	if final.Status != task.StatusFailed {
		t.Fatalf("status = %s, want failed", final.Status)
	}
	if !strings.Contains(final.Error, "start") {
		t.Errorf("error = %q, want spawn failure detail", final.Error)
	}
	if final.ExitCode != nil {
		t.Errorf("exit code = %v, want unset for a process that never ran", *final.ExitCode)
	}
}

func TestStartTaskValidationFailuresLeaveNoRecord(t *testing.T) {
	cfg := testConfig(t)
	cfg.Tools.YtDlpBinary = filepath.Join(t.TempDir(), "missing-yt-dlp")
	cfg.Tools.UvBinary = writeStub(t, t.TempDir(), "uv", `exit 0`)

	orch, store, _ := newOrchestrator(t, cfg, orchestrator.WithProber(offlineProber))

	tests := []struct {
		name   string
		req    orchestrator.StartRequest
		marker error
	}{
		{
			"empty source",
			orchestrator.StartRequest{Kind: task.KindDownload, Source: "   "},
			services.ErrValidation,
		},
		{
			"unknown kind",
			orchestrator.StartRequest{Kind: task.Kind("compress"), Source: "https://example.com"},
			services.ErrValidation,
		},
		{
			"missing binary",
			orchestrator.StartRequest{Kind: task.KindDownload, Source: "https://example.com"},
			services.ErrExternalTool,
		},
		{
			"transcription input missing",
			orchestrator.StartRequest{Kind: task.KindTranscription, Source: filepath.Join(t.TempDir(), "nope.mp3")},
			services.ErrValidation,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := orch.StartTask(context.Background(), tt.req); !errors.Is(err, tt.marker) {
				t.Fatalf("err = %v, want %v", err, tt.marker)
			}
		})
	}

	all, err := store.ListAll()
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(all) != 0 {
		t.Fatalf("validation failures created %d records", len(all))
	}
}

func TestStartTaskTranscriptionRunsToCompletion(t *testing.T) {
	cfg := testConfig(t)
	root := t.TempDir()
	input := filepath.Join(root, "interview.mp3")
	if err := os.WriteFile(input, []byte("not really audio"), 0o644); err != nil {
		t.Fatalf("write input: %v", err)
	}
	cfg.Tools.UvBinary = writeStub(t, root, "uv", strings.Join([]string{
		`echo '{"status": "loading_model", "progress": 0}' >&2`,
		`echo '{"status": "transcribing", "progress": 0.5}' >&2`,
		`echo '{"status": "completed", "progress": 1.0, "language": "en", "transcript_path": "/out/interview.txt", "segments_path": "/out/interview.segments.json", "elapsed_seconds": 2.5}' >&2`,
		`exit 0`,
	}, "\n"))

	orch, store, registry := newOrchestrator(t, cfg, orchestrator.WithProber(offlineProber))
	res, err := orch.StartTask(context.Background(), orchestrator.StartRequest{
		Kind:   task.KindTranscription,
		Source: input,
	})
	if err != nil {
		t.Fatalf("StartTask: %v", err)
	}
	if res.Title != "interview" {
		t.Errorf("title = %q, want input stem", res.Title)
	}
	if _, err := os.Stat(cfg.Tools.TranscriberScript); err != nil {
		t.Errorf("transcriber script not installed: %v", err)
	}

	final := waitForRecord(t, store, res.TaskID, task.Record.IsTerminal)
	waitForDrain(t, registry)
	if final.Status != task.StatusCompleted {
		t.Fatalf("status = %s (error %q), want completed", final.Status, final.Error)
	}
	if final.OutputPath != "/out/interview.txt" {
		t.Errorf("output path = %q", final.OutputPath)
	}
	if final.SegmentsPath != "/out/interview.segments.json" {
		t.Errorf("segments path = %q", final.SegmentsPath)
	}
	if final.DetectedLanguage != "en" {
		t.Errorf("detected language = %q", final.DetectedLanguage)
	}
	if final.ElapsedSeconds != 2.5 {
		t.Errorf("elapsed seconds = %v", final.ElapsedSeconds)
	}
	if final.Percentage != 100 {
		t.Errorf("percentage = %v, want 100", final.Percentage)
	}
}

func TestStartTaskSubtitlePassesLanguageSelection(t *testing.T) {
	cfg := testConfig(t)
	root := t.TempDir()
	argsFile := filepath.Join(root, "args.txt")
	cfg.Tools.YtDlpBinary = writeStub(t, root, "yt-dlp", strings.Join([]string{
		`echo "$@" > ` + argsFile,
		`echo "[info] Writing video subtitles to: /media/video.en.vtt"`,
		`exit 0`,
	}, "\n"))

	orch, store, registry := newOrchestrator(t, cfg, orchestrator.WithProber(offlineProber))
	res, err := orch.StartTask(context.Background(), orchestrator.StartRequest{
		Kind:     task.KindSubtitle,
		Source:   "https://example.com/watch?v=subs",
		Language: "english, ja",
	})
	if err != nil {
		t.Fatalf("StartTask: %v", err)
	}

	final := waitForRecord(t, store, res.TaskID, task.Record.IsTerminal)
	waitForDrain(t, registry)
	if final.Status != task.StatusCompleted {
		t.Fatalf("status = %s (error %q), want completed", final.Status, final.Error)
	}
	if final.OutputPath != "/media/video.en.vtt" {
		t.Errorf("output path = %q", final.OutputPath)
	}

	argv, err := os.ReadFile(argsFile)
	if err != nil {
		t.Fatalf("stub never ran: %v", err)
	}
	for _, want := range []string{"--skip-download", "--write-subs", "--sub-langs en,ja"} {
		if !strings.Contains(string(argv), want) {
			t.Errorf("argv %q missing %q", argv, want)
		}
	}
}

func TestStartTaskConcurrentTasksStayIndependent(t *testing.T) {
	cfg := testConfig(t)
	root := t.TempDir()
	slow := writeStub(t, root, "yt-dlp-slow", strings.Join([]string{
		`sleep 0.3`,
		`echo "[download] Destination: /media/slow.mp4"`,
		`exit 0`,
	}, "\n"))
	fast := writeStub(t, root, "yt-dlp-fast", strings.Join([]string{
		`echo "[download] Destination: /media/fast.mp4"`,
		`exit 0`,
	}, "\n"))

	orch, store, registry := newOrchestrator(t, cfg, orchestrator.WithProber(offlineProber))

	cfg.Tools.YtDlpBinary = slow
	slowRes, err := orch.StartTask(context.Background(), orchestrator.StartRequest{
		Kind:   task.KindDownload,
		Source: "https://example.com/watch?v=slow",
	})
	if err != nil {
		t.Fatalf("start slow: %v", err)
	}
	cfg.Tools.YtDlpBinary = fast
	fastRes, err := orch.StartTask(context.Background(), orchestrator.StartRequest{
		Kind:   task.KindDownload,
		Source: "https://example.com/watch?v=fast",
	})
	if err != nil {
		t.Fatalf("start fast: %v", err)
	}
	if slowRes.TaskID == fastRes.TaskID {
		t.Fatal("task ids collide")
	}

	fastFinal := waitForRecord(t, store, fastRes.TaskID, task.Record.IsTerminal)
	slowFinal := waitForRecord(t, store, slowRes.TaskID, task.Record.IsTerminal)
	waitForDrain(t, registry)
	if fastFinal.OutputPath != "/media/fast.mp4" {
		t.Errorf("fast output = %q", fastFinal.OutputPath)
	}
	if slowFinal.OutputPath != "/media/slow.mp4" {
		t.Errorf("slow output = %q", slowFinal.OutputPath)
	}
	if fastFinal.Status != task.StatusCompleted || slowFinal.Status != task.StatusCompleted {
		t.Errorf("statuses = %s / %s, want completed for both", fastFinal.Status, slowFinal.Status)
	}
}

func TestTitleEnrichmentThroughProbeAndCache(t *testing.T) {
	cfg := testConfig(t)
	cfg.Tools.YtDlpBinary = writeStub(t, t.TempDir(), "yt-dlp", `exit 0`)

	cache, err := metacache.Open(filepath.Join(cfg.Paths.StateDir, "probe.db"), time.Hour, logging.NewNop())
	if err != nil {
		t.Fatalf("open cache: %v", err)
	}
	t.Cleanup(func() { cache.Close() })

	prober := stubProber{meta: &ytdlp.Metadata{ID: "abc", Title: "Probing the Depths"}}
	orch, store, _ := newOrchestrator(t, cfg,
		orchestrator.WithProber(prober),
		orchestrator.WithCache(cache))

	const source = "https://example.com/watch?v=depths"
	res, err := orch.StartTask(context.Background(), orchestrator.StartRequest{
		Kind:   task.KindDownload,
		Source: source,
	})
	if err != nil {
		t.Fatalf("StartTask: %v", err)
	}

	enriched := waitForRecord(t, store, res.TaskID, func(r task.Record) bool { return r.Title != "" })
	if enriched.Title != "Probing the Depths" {
		t.Fatalf("title = %q", enriched.Title)
	}

	// The probe result must now be cached, so a second submission for the
	// same source carries the title synchronously.
	deadline := time.Now().Add(5 * time.Second)
	for {
		if _, ok, err := cache.Lookup(context.Background(), source); err == nil && ok {
			break
		}
		if time.Now().After(deadline) {
			t.Fatal("probe result never cached")
		}
		time.Sleep(10 * time.Millisecond)
	}
	second, err := orch.StartTask(context.Background(), orchestrator.StartRequest{
		Kind:   task.KindDownload,
		Source: source,
	})
	if err != nil {
		t.Fatalf("second StartTask: %v", err)
	}
	if second.Title != "Probing the Depths" {
		t.Errorf("cached title = %q, want synchronous hit", second.Title)
	}
}

func TestRecoverInterrupted(t *testing.T) {
	cfg := testConfig(t)
	store := task.NewStore(cfg.TasksFile(), logging.NewNop())

	stuck := task.NewRecord(task.KindDownload, "https://example.com/stuck")
	stuck.Status = task.StatusDownloading
	stuck.Percentage = 40
	if err := store.Insert(stuck); err != nil {
		t.Fatalf("insert stuck: %v", err)
	}
	done := task.NewRecord(task.KindTranscription, "/media/done.mp3")
	done.Status = task.StatusCompleted
	done.Percentage = 100
	if err := store.Insert(done); err != nil {
		t.Fatalf("insert done: %v", err)
	}

	orch := orchestrator.New(context.Background(), cfg, store, task.NewRegistry(), logging.NewNop(),
		orchestrator.WithProber(offlineProber))
	recovered, err := orch.RecoverInterrupted()
	if err != nil {
		t.Fatalf("RecoverInterrupted: %v", err)
	}
	if recovered != 1 {
		t.Fatalf("recovered = %d, want 1", recovered)
	}

	failed, err := store.FindByID(stuck.ID)
	if err != nil || failed == nil {
		t.Fatalf("find stuck: %v", err)
	}
	if failed.Status != task.StatusFailed {
		t.Errorf("status = %s, want failed", failed.Status)
	}
	if failed.Error != task.InterruptedReason {
		t.Errorf("error = %q, want %q", failed.Error, task.InterruptedReason)
	}
	if failed.FinishedAt == nil {
		t.Error("finished_at not stamped")
	}
	if failed.Percentage != 40 {
		t.Errorf("percentage = %v, want preserved 40", failed.Percentage)
	}

	untouched, err := store.FindByID(done.ID)
	if err != nil || untouched == nil {
		t.Fatalf("find done: %v", err)
	}
	if untouched.Status != task.StatusCompleted || untouched.Error != "" {
		t.Errorf("completed record modified: %+v", untouched)
	}
}
