package whisper

import (
	"bytes"
	_ "embed"
	"errors"
	"os"
	"path/filepath"

	"scribe/internal/services"
)

// Binary is the launcher used when the configuration does not name one. The
// transcriber itself is a Python script resolved and run through uv so its
// dependencies never pollute the host environment.
const Binary = "uv"

//go:embed transcribe.py
var transcriberScript []byte

// Options carries one transcription invocation.
type Options struct {
	Script   string
	Input    string
	Output   string
	Language string
	Model    string
}

// Args builds the uv argument vector for a transcription run.
func Args(opts Options) []string {
	args := []string{"run", opts.Script, "--input", opts.Input, "--output", opts.Output}
	if opts.Language != "" && opts.Language != "auto" {
		args = append(args, "--language", opts.Language)
	}
	if opts.Model != "" {
		args = append(args, "--model", opts.Model)
	}
	return args
}

// EnsureScript writes the bundled transcriber to path when it is missing or
// stale, so upgrades of the daemon also upgrade the script it spawns.
func EnsureScript(path string) error {
	existing, err := os.ReadFile(path)
	if err == nil && bytes.Equal(existing, transcriberScript) {
		return nil
	}
	if err != nil && !errors.Is(err, os.ErrNotExist) {
		return services.Wrap(services.ErrConfiguration, "whisper", "provision script", path, err)
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return services.Wrap(services.ErrConfiguration, "whisper", "provision script", "create directory", err)
	}
	if err := os.WriteFile(path, transcriberScript, 0o755); err != nil {
		return services.Wrap(services.ErrConfiguration, "whisper", "provision script", path, err)
	}
	return nil
}
