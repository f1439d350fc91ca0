package main

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/schollz/progressbar/v3"
	"github.com/spf13/cobra"

	"scribe/internal/ipc"
	"scribe/internal/task"
)

type taskSubmitOptions struct {
	outputDir string
	language  string
	wait      bool
}

func newDownloadCommand(ctx *commandContext) *cobra.Command {
	var opts taskSubmitOptions
	cmd := &cobra.Command{
		Use:   "download <url>",
		Short: "Download media from a URL in the background",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return submitTask(cmd, ctx, task.KindDownload, args[0], opts)
		},
	}
	cmd.Flags().StringVarP(&opts.outputDir, "output", "o", "", "Output directory (default: download_dir from config)")
	cmd.Flags().BoolVarP(&opts.wait, "wait", "w", false, "Wait for completion and show progress")
	return cmd
}

func newSubsCommand(ctx *commandContext) *cobra.Command {
	var opts taskSubmitOptions
	cmd := &cobra.Command{
		Use:   "subs <url>",
		Short: "Download subtitles for a URL without the media",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return submitTask(cmd, ctx, task.KindSubtitle, args[0], opts)
		},
	}
	cmd.Flags().StringVarP(&opts.outputDir, "output", "o", "", "Output directory (default: download_dir from config)")
	cmd.Flags().StringVarP(&opts.language, "language", "l", "", "Subtitle languages, comma separated (default: sub_languages from config)")
	cmd.Flags().BoolVarP(&opts.wait, "wait", "w", false, "Wait for completion and show progress")
	return cmd
}

func newTranscribeCommand(ctx *commandContext) *cobra.Command {
	var opts taskSubmitOptions
	cmd := &cobra.Command{
		Use:   "transcribe <file>",
		Short: "Transcribe a local media file in the background",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return submitTask(cmd, ctx, task.KindTranscription, args[0], opts)
		},
	}
	cmd.Flags().StringVarP(&opts.outputDir, "output", "o", "", "Output directory (default: transcript_dir from config)")
	cmd.Flags().StringVarP(&opts.language, "language", "l", "", "Language hint for the transcriber (default: detected)")
	cmd.Flags().BoolVarP(&opts.wait, "wait", "w", false, "Wait for completion and show progress")
	return cmd
}

func submitTask(cmd *cobra.Command, ctx *commandContext, kind task.Kind, source string, opts taskSubmitOptions) error {
	source = strings.TrimSpace(source)
	if source == "" {
		return fmt.Errorf("source is required")
	}
	return ctx.withClient(func(client *ipc.Client) error {
		resp, err := client.TaskStart(ipc.TaskStartRequest{
			Kind:      string(kind),
			Source:    source,
			OutputDir: strings.TrimSpace(opts.outputDir),
			Language:  strings.TrimSpace(opts.language),
		})
		if err != nil {
			return err
		}
		if resp == nil {
			return errors.New("empty response from daemon")
		}

		stdout := cmd.OutOrStdout()
		label := strings.TrimSpace(resp.Title)
		if label == "" {
			label = source
		}
		fmt.Fprintf(stdout, "Started %s task %s (%s)\n", kind, resp.TaskID, label)
		if !opts.wait {
			fmt.Fprintf(stdout, "Follow progress with `scribe logs --follow %s`\n", resp.TaskID)
			return nil
		}
		return waitForTaskCompletion(cmd, client, resp.TaskID, string(kind))
	})
}

// waitForTaskCompletion polls the task record and drives a progress bar until
// the record turns terminal.
func waitForTaskCompletion(cmd *cobra.Command, client *ipc.Client, taskID, description string) error {
	stdout := cmd.OutOrStdout()
	bar := progressbar.NewOptions(100,
		progressbar.OptionSetWriter(stdout),
		progressbar.OptionSetDescription(description),
		progressbar.OptionSetWidth(30),
		progressbar.OptionSetPredictTime(false),
		progressbar.OptionClearOnFinish(),
	)

	ticker := time.NewTicker(300 * time.Millisecond)
	defer ticker.Stop()
	for {
		resp, err := client.TaskDescribe(taskID)
		if err != nil {
			_ = bar.Clear()
			return err
		}
		rec := resp.Task
		_ = bar.Set(int(rec.Percentage))

		switch rec.Status {
		case task.StatusCompleted:
			_ = bar.Finish()
			target := strings.TrimSpace(rec.OutputPath)
			if target == "" {
				target = strings.TrimSpace(rec.OutputDir)
			}
			if target != "" {
				fmt.Fprintf(stdout, "Completed: %s\n", target)
			} else {
				fmt.Fprintln(stdout, "Completed")
			}
			return nil
		case task.StatusFailed:
			_ = bar.Clear()
			reason := strings.TrimSpace(rec.Error)
			if reason == "" {
				reason = "unknown error"
			}
			return fmt.Errorf("task %s failed: %s", taskID, reason)
		}

		select {
		case <-cmd.Context().Done():
			_ = bar.Clear()
			return cmd.Context().Err()
		case <-ticker.C:
		}
	}
}
