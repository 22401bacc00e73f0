package logs

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"
	"time"
)

const defaultPoll = 250 * time.Millisecond

// TailOptions controls how much of the log file Tail prints and whether it
// keeps watching for more.
type TailOptions struct {
	// Limit is the number of trailing lines to print first. Zero or
	// negative prints the whole file.
	Limit int
	// Follow keeps Tail running after the initial read, emitting lines as
	// they are appended, until the context is canceled.
	Follow bool
	// Poll is the interval between reads in follow mode. Zero uses a
	// 250ms default.
	Poll time.Duration
}

// Tail emits the trailing lines of the log file at path, one call per line.
// In follow mode it then polls for appended lines until ctx is canceled and
// returns the context error. A missing file yields no lines; in follow mode
// the file is picked up once it appears.
func Tail(ctx context.Context, path string, opts TailOptions, emit func(line string)) error {
	if info, err := os.Stat(path); err == nil && info.IsDir() {
		return fmt.Errorf("log path %q is a directory", path)
	}

	lines, offset, err := lastLines(path, opts.Limit)
	if err != nil {
		return err
	}
	for _, line := range lines {
		emit(line)
	}
	if !opts.Follow {
		return nil
	}

	poll := opts.Poll
	if poll <= 0 {
		poll = defaultPoll
	}
	ticker := time.NewTicker(poll)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
		}

		lines, offset, err = readAppended(path, offset)
		if err != nil {
			return err
		}
		for _, line := range lines {
			emit(line)
		}
	}
}

// openLog opens the log file for reading. A missing file comes back as a nil
// handle with no error; podhaul may simply not have logged anything yet.
func openLog(path string) (*os.File, error) {
	file, err := os.Open(path)
	if errors.Is(err, os.ErrNotExist) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", path, err)
	}
	return file, nil
}

// lastLines reads the final limit lines of the file and reports the offset of
// its end, so follow mode can resume where the initial read stopped. A ring
// buffer keeps memory bounded regardless of file size.
func lastLines(path string, limit int) ([]string, int64, error) {
	file, err := openLog(path)
	if file == nil || err != nil {
		return nil, 0, err
	}
	defer file.Close()

	var (
		lines       []string
		ring        []string
		count, next int
	)
	if limit > 0 {
		ring = make([]string, limit)
	}
	sc := bufio.NewScanner(file)
	sc.Buffer(make([]byte, 0, 64<<10), 1<<20)
	for sc.Scan() {
		if ring == nil {
			lines = append(lines, sc.Text())
			continue
		}
		ring[next] = sc.Text()
		next = (next + 1) % limit
		if count < limit {
			count++
		}
	}
	if err := sc.Err(); err != nil {
		return nil, 0, fmt.Errorf("read %s: %w", path, err)
	}
	if ring != nil {
		start := 0
		if count == limit {
			start = next
		}
		lines = make([]string, 0, count)
		for i := 0; i < count; i++ {
			lines = append(lines, ring[(start+i)%limit])
		}
	}

	end, err := file.Seek(0, io.SeekEnd)
	if err != nil {
		return nil, 0, fmt.Errorf("seek %s: %w", path, err)
	}
	return lines, end, nil
}

// readAppended returns the complete lines written after offset along with the
// offset consumed so far. A file shorter than offset was truncated or
// replaced, so the read restarts from the beginning.
func readAppended(path string, offset int64) ([]string, int64, error) {
	file, err := openLog(path)
	if file == nil || err != nil {
		return nil, 0, err
	}
	defer file.Close()

	info, err := file.Stat()
	if err != nil {
		return nil, 0, fmt.Errorf("stat %s: %w", path, err)
	}
	if info.Size() < offset {
		offset = 0
	}
	if _, err := file.Seek(offset, io.SeekStart); err != nil {
		return nil, 0, fmt.Errorf("seek %s: %w", path, err)
	}

	var lines []string
	reader := bufio.NewReader(file)
	for {
		line, err := reader.ReadString('\n')
		switch {
		case err == nil:
			lines = append(lines, strings.TrimSuffix(line, "\n"))
			offset += int64(len(line))
		case errors.Is(err, io.EOF):
			// A line still being written has no newline yet; it waits
			// for a later poll.
			return lines, offset, nil
		default:
			return nil, 0, fmt.Errorf("read %s: %w", path, err)
		}
	}
}
