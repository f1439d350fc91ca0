package ytdlp_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"scribe/internal/services"
	"scribe/internal/services/ytdlp"
)

func TestProbeParsesMetadata(t *testing.T) {
	var gotBinary string
	var gotArgs []string
	runner := func(ctx context.Context, binary string, args []string) ([]byte, error) {
		gotBinary = binary
		gotArgs = append([]string(nil), args...)
		payload := `{"id":"dQw4w9WgXcQ","title":"Some Video","uploader":"someone","duration":212.5,"webpage_url":"https://example.com/v","extractor":"youtube"}` + "\n"
		return []byte(payload), nil
	}
	prober := ytdlp.NewProber("yt-dlp", time.Minute, ytdlp.WithProbeRunner(runner))

	meta, err := prober.Probe(context.Background(), "https://example.com/v")
	if err != nil {
		t.Fatalf("Probe failed: %v", err)
	}
	if meta.Title != "Some Video" || meta.ID != "dQw4w9WgXcQ" || meta.Duration != 212.5 {
		t.Fatalf("unexpected metadata: %+v", meta)
	}
	if gotBinary != "yt-dlp" {
		t.Fatalf("binary = %q", gotBinary)
	}
	joined := ""
	for _, arg := range gotArgs {
		joined += arg + " "
	}
	for _, fragment := range []string{"--dump-json", "--no-playlist", "--skip-download", "https://example.com/v"} {
		if !contains(gotArgs, fragment) {
			t.Fatalf("args missing %q: %v", fragment, joined)
		}
	}
}

func TestProbeEmptySource(t *testing.T) {
	prober := ytdlp.NewProber("yt-dlp", 0)
	if _, err := prober.Probe(context.Background(), "  "); !errors.Is(err, services.ErrValidation) {
		t.Fatalf("expected validation error, got %v", err)
	}
}

func TestProbeToolFailure(t *testing.T) {
	runner := func(ctx context.Context, binary string, args []string) ([]byte, error) {
		return nil, errors.New("exit status 1: ERROR: Unsupported URL")
	}
	prober := ytdlp.NewProber("yt-dlp", 0, ytdlp.WithProbeRunner(runner))
	_, err := prober.Probe(context.Background(), "https://example.com/v")
	if !errors.Is(err, services.ErrExternalTool) {
		t.Fatalf("expected external tool error, got %v", err)
	}
}

func TestProbeRejectsGarbagePayload(t *testing.T) {
	runner := func(ctx context.Context, binary string, args []string) ([]byte, error) {
		return []byte("not json\n"), nil
	}
	prober := ytdlp.NewProber("", 0, ytdlp.WithProbeRunner(runner))
	if _, err := prober.Probe(context.Background(), "https://example.com/v"); !errors.Is(err, services.ErrExternalTool) {
		t.Fatalf("expected external tool error, got %v", err)
	}
}

func TestProbeAppliesTimeout(t *testing.T) {
	sawDeadline := false
	runner := func(ctx context.Context, binary string, args []string) ([]byte, error) {
		_, sawDeadline = ctx.Deadline()
		return []byte(`{"id":"x","title":"t"}`), nil
	}
	prober := ytdlp.NewProber("yt-dlp", time.Second, ytdlp.WithProbeRunner(runner))
	if _, err := prober.Probe(context.Background(), "https://example.com/v"); err != nil {
		t.Fatalf("Probe failed: %v", err)
	}
	if !sawDeadline {
		t.Fatal("expected the probe context to carry a deadline")
	}
}

func contains(values []string, want string) bool {
	for _, v := range values {
		if v == want {
			return true
		}
	}
	return false
}
