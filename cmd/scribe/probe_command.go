package main

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"scribe/internal/ipc"
)

func newProbeCommand(ctx *commandContext) *cobra.Command {
	var asJSON bool

	cmd := &cobra.Command{
		Use:   "probe <url>",
		Short: "Look up source metadata without starting a task",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			source := strings.TrimSpace(args[0])
			return ctx.withClient(func(client *ipc.Client) error {
				resp, err := client.Probe(source)
				if err != nil {
					return err
				}
				if asJSON {
					return writeJSON(cmd, resp.Metadata)
				}
				for _, line := range buildProbeLines(resp.Metadata) {
					fmt.Fprintln(cmd.OutOrStdout(), line)
				}
				return nil
			})
		},
	}

	cmd.Flags().BoolVar(&asJSON, "json", false, "Emit metadata as JSON")
	return cmd
}

func buildProbeLines(meta ipc.Metadata) []string {
	pairs := [][2]string{
		{"Title", strings.TrimSpace(meta.Title)},
		{"Uploader", strings.TrimSpace(meta.Uploader)},
		{"Duration", formatProbeDuration(meta.Duration)},
		{"Extractor", strings.TrimSpace(meta.Extractor)},
		{"URL", strings.TrimSpace(meta.WebpageURL)},
	}
	lines := make([]string, 0, len(pairs))
	for _, pair := range pairs {
		if pair[1] == "" {
			continue
		}
		lines = append(lines, fmt.Sprintf("%-10s %s", pair[0]+":", pair[1]))
	}
	if len(lines) == 0 {
		lines = append(lines, "No metadata available")
	}
	return lines
}

func formatProbeDuration(seconds float64) string {
	if seconds <= 0 {
		return ""
	}
	return time.Duration(seconds * float64(time.Second)).Round(time.Second).String()
}
