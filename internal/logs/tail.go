package logs

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"time"
)

// Options control how much of a task log one Read returns.
type Options struct {
	// Offset is the byte position to resume from. A negative offset means
	// start from the end of the file and return at most Limit trailing lines.
	Offset int64
	// Limit bounds the number of trailing lines when Offset is negative.
	// Zero skips straight to the end of the file.
	Limit int
	// Follow keeps the call open for up to Wait when no new lines are
	// available yet, so pollers do not spin on an idle file.
	Follow bool
	Wait   time.Duration
}

// Page is one read of a log file: the lines scanned plus the byte offset
// where the next Read should resume.
type Page struct {
	Lines      []string `json:"lines"`
	NextOffset int64    `json:"next_offset"`
}

const maxLineBytes = 1 << 20

// pollInterval paces follow-mode rechecks of an idle file.
const pollInterval = 250 * time.Millisecond

// Read returns a page of complete lines from a task log. A file that does not
// exist yet reads as empty rather than erroring: records can be listed before
// their process has produced any output.
func Read(ctx context.Context, path string, opts Options) (Page, error) {
	if opts.Wait < 0 {
		opts.Wait = 0
	}

	info, err := os.Stat(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return Page{}, nil
		}
		return Page{}, fmt.Errorf("stat log: %w", err)
	}
	if info.IsDir() {
		return Page{}, fmt.Errorf("log path %q is a directory", path)
	}

	var page Page
	if opts.Offset < 0 {
		page, err = readTail(path, opts.Limit)
	} else {
		offset := opts.Offset
		if offset > info.Size() {
			offset = info.Size()
		}
		page, err = readFrom(path, offset)
	}
	if err != nil {
		return page, err
	}
	if opts.Follow && opts.Wait > 0 && len(page.Lines) == 0 {
		return await(ctx, path, page.NextOffset, opts.Wait)
	}
	return page, nil
}

// readTail scans the whole file through a fixed ring so "last N lines" never
// holds more than N strings, and reports the end-of-file offset.
func readTail(path string, limit int) (Page, error) {
	file, err := os.Open(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return Page{}, nil
		}
		return Page{}, fmt.Errorf("open log: %w", err)
	}
	defer file.Close()

	if limit <= 0 {
		end, err := file.Seek(0, io.SeekEnd)
		if err != nil {
			return Page{}, fmt.Errorf("seek log: %w", err)
		}
		return Page{NextOffset: end}, nil
	}

	ring := make([]string, limit)
	count, next := 0, 0
	scanner := bufio.NewScanner(file)
	scanner.Buffer(make([]byte, 0, 64*1024), maxLineBytes)
	for scanner.Scan() {
		ring[next] = scanner.Text()
		next = (next + 1) % limit
		if count < limit {
			count++
		}
	}
	if err := scanner.Err(); err != nil {
		return Page{}, fmt.Errorf("read log: %w", err)
	}
	end, err := file.Seek(0, io.SeekCurrent)
	if err != nil {
		return Page{}, fmt.Errorf("seek log: %w", err)
	}

	lines := make([]string, count)
	if count == limit {
		for i := range lines {
			lines[i] = ring[(next+i)%limit]
		}
	} else {
		copy(lines, ring[:count])
	}
	return Page{Lines: lines, NextOffset: end}, nil
}

// readFrom scans complete lines starting at a byte offset.
func readFrom(path string, offset int64) (Page, error) {
	file, err := os.Open(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return Page{}, nil
		}
		return Page{}, fmt.Errorf("open log: %w", err)
	}
	defer file.Close()

	if _, err := file.Seek(offset, io.SeekStart); err != nil {
		return Page{}, fmt.Errorf("seek log: %w", err)
	}
	var lines []string
	scanner := bufio.NewScanner(file)
	scanner.Buffer(make([]byte, 0, 64*1024), maxLineBytes)
	for scanner.Scan() {
		lines = append(lines, scanner.Text())
	}
	if err := scanner.Err(); err != nil {
		return Page{}, fmt.Errorf("read log: %w", err)
	}
	end, err := file.Seek(0, io.SeekCurrent)
	if err != nil {
		return Page{}, fmt.Errorf("seek log: %w", err)
	}
	return Page{Lines: lines, NextOffset: end}, nil
}

// await polls for fresh lines until something arrives, the wait elapses, or
// the context ends. The last known offset is always reported back so the
// caller can resume.
func await(ctx context.Context, path string, offset int64, wait time.Duration) (Page, error) {
	deadline := time.Now().Add(wait)
	ticker := time.NewTicker(pollInterval)
	defer ticker.Stop()

	for {
		page, err := readFrom(path, offset)
		if err != nil {
			return page, err
		}
		if len(page.Lines) > 0 || time.Now().After(deadline) {
			return page, nil
		}
		offset = page.NextOffset

		select {
		case <-ctx.Done():
			return Page{NextOffset: offset}, ctx.Err()
		case <-ticker.C:
		}
	}
}
