package ytdlp

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"os/exec"
	"strings"
	"time"

	"scribe/internal/services"
)

// Metadata is the slice of yt-dlp's --dump-json payload the daemon keeps.
type Metadata struct {
	ID         string  `json:"id"`
	Title      string  `json:"title"`
	Uploader   string  `json:"uploader"`
	Duration   float64 `json:"duration"`
	WebpageURL string  `json:"webpage_url"`
	Extractor  string  `json:"extractor"`
}

// Runner executes a command and returns its standard output.
type Runner func(ctx context.Context, binary string, args []string) ([]byte, error)

// Prober performs blocking metadata lookups against yt-dlp.
type Prober struct {
	binary  string
	timeout time.Duration
	run     Runner
}

// ProbeOption configures a Prober.
type ProbeOption func(*Prober)

// WithProbeRunner injects a command runner (primarily for tests).
func WithProbeRunner(run Runner) ProbeOption {
	return func(p *Prober) {
		if run != nil {
			p.run = run
		}
	}
}

// NewProber constructs a metadata prober. An empty binary falls back to the
// default executable name.
func NewProber(binary string, timeout time.Duration, opts ...ProbeOption) *Prober {
	binary = strings.TrimSpace(binary)
	if binary == "" {
		binary = Binary
	}
	p := &Prober{binary: binary, timeout: timeout, run: runCapture}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// ProbeArgs builds the argument vector for a metadata lookup.
func ProbeArgs(source string) []string {
	return []string{"--dump-json", "--no-playlist", "--skip-download", source}
}

// Probe fetches metadata for a source URL. It blocks for up to the configured
// timeout and must stay off a task's streaming path.
func (p *Prober) Probe(ctx context.Context, source string) (*Metadata, error) {
	source = strings.TrimSpace(source)
	if source == "" {
		return nil, services.Wrap(services.ErrValidation, "ytdlp", "probe", "source required", nil)
	}
	if p.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, p.timeout)
		defer cancel()
	}
	output, err := p.run(ctx, p.binary, ProbeArgs(source))
	if err != nil {
		return nil, services.Wrap(services.ErrExternalTool, "ytdlp", "probe", "", err)
	}
	payload := firstJSONLine(output)
	if len(payload) == 0 {
		return nil, services.Wrap(services.ErrExternalTool, "ytdlp", "probe", "empty metadata payload", nil)
	}
	var meta Metadata
	if err := json.Unmarshal(payload, &meta); err != nil {
		return nil, services.Wrap(services.ErrExternalTool, "ytdlp", "probe", "unexpected metadata payload", err)
	}
	return &meta, nil
}

func runCapture(ctx context.Context, binary string, args []string) ([]byte, error) {
	cmd := exec.CommandContext(ctx, binary, args...) //nolint:gosec
	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr
	if err := cmd.Run(); err != nil {
		if msg := strings.TrimSpace(stderr.String()); msg != "" {
			return nil, fmt.Errorf("%w: %s", err, msg)
		}
		return nil, err
	}
	return stdout.Bytes(), nil
}

// firstJSONLine returns the first non-empty line. --dump-json payloads can
// run far past bufio.Scanner's default token size, so split manually.
func firstJSONLine(output []byte) []byte {
	for len(output) > 0 {
		var line []byte
		if idx := bytes.IndexByte(output, '\n'); idx >= 0 {
			line, output = output[:idx], output[idx+1:]
		} else {
			line, output = output, nil
		}
		if line = bytes.TrimSpace(line); len(line) > 0 {
			return line
		}
	}
	return nil
}
