package fetch

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"os"
	"path/filepath"
	"strconv"
	"sync/atomic"
	"time"

	"github.com/go-resty/resty/v2"

	"podhaul/internal/logging"
	"podhaul/internal/safename"
)

const copyBufferSize = 256 * 1024

// Fetcher streams media URLs to disk with byte-range resume.
type Fetcher struct {
	client      *resty.Client
	idleTimeout time.Duration
	logger      *slog.Logger
}

// New returns a Fetcher using the provided stream client. idleTimeout
// bounds how long a single body read may stall before the transfer is
// aborted; zero disables the watchdog.
func New(client *resty.Client, idleTimeout time.Duration, logger *slog.Logger) *Fetcher {
	return &Fetcher{
		client:      client,
		idleTimeout: idleTimeout,
		logger:      logging.NewComponentLogger(logger, "fetch"),
	}
}

// Option adjusts a single fetch.
type Option func(*request)

type request struct {
	referer string
}

// WithReferer sends a Referer header with the transfer request.
func WithReferer(referer string) Option {
	return func(r *request) {
		r.referer = referer
	}
}

// Fetch streams url into destPath. A partial sibling (destPath + ".part")
// left by an earlier interrupted call is resumed with a byte-range request;
// servers that ignore or reject the range trigger a clean restart from
// zero. On success the partial is renamed atomically onto destPath and the
// number of bytes written by this call is returned. The Fetcher never
// checks whether destPath already exists; skipping complete episodes is the
// ledger's job.
func (f *Fetcher) Fetch(ctx context.Context, url, destPath string, opts ...Option) (int64, error) {
	var req request
	for _, opt := range opts {
		opt(&req)
	}

	if dir := filepath.Dir(destPath); dir != "" && dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return 0, &FilesystemError{Op: "create directory", Path: dir, Err: err}
		}
	}

	partPath := destPath + safename.PartSuffix
	offset, err := partOffset(partPath)
	if err != nil {
		return 0, err
	}

	for {
		written, retry, err := f.transfer(ctx, url, partPath, destPath, offset, req)
		if retry {
			offset = 0
			continue
		}
		return written, err
	}
}

// transfer performs one request/stream cycle. retry is true only when the
// server rejected a resume range and the call should be reissued from zero.
func (f *Fetcher) transfer(ctx context.Context, url, partPath, destPath string, offset int64, req request) (written int64, retry bool, err error) {
	r := f.client.R().SetContext(ctx)
	if req.referer != "" {
		r.SetHeader("Referer", req.referer)
	}
	if offset > 0 {
		r.SetHeader("Range", "bytes="+strconv.FormatInt(offset, 10)+"-")
	}

	resp, err := r.Get(url)
	if err != nil {
		return 0, false, &TransportError{URL: url, Err: err}
	}
	body := resp.RawBody()

	var file *os.File
	switch resp.StatusCode() {
	case http.StatusPartialContent:
		if offset > 0 {
			f.logger.Info("resuming transfer", slog.String("url", url), slog.Int64("offset", offset))
		}
		file, err = os.OpenFile(partPath, os.O_WRONLY|os.O_CREATE|os.O_APPEND, 0o644)
	case http.StatusOK:
		if offset > 0 {
			f.logger.Info("server ignored range, restarting transfer", slog.String("url", url))
		}
		file, err = os.OpenFile(partPath, os.O_WRONLY|os.O_CREATE|os.O_TRUNC, 0o644)
	case http.StatusRequestedRangeNotSatisfiable:
		body.Close()
		if offset > 0 {
			f.logger.Info("server rejected range, restarting transfer", slog.String("url", url))
			if err := os.Remove(partPath); err != nil && !os.IsNotExist(err) {
				return 0, false, &FilesystemError{Op: "remove partial", Path: partPath, Err: err}
			}
			return 0, true, nil
		}
		return 0, false, &TransportError{URL: url, StatusCode: resp.StatusCode()}
	default:
		body.Close()
		return 0, false, &TransportError{URL: url, StatusCode: resp.StatusCode()}
	}
	if err != nil {
		body.Close()
		return 0, false, &FilesystemError{Op: "open partial", Path: partPath, Err: err}
	}

	reader := newIdleReader(body, f.idleTimeout)
	defer reader.stop()

	written, err = copyStream(file, reader, url, partPath)
	body.Close()
	if err != nil {
		file.Close()
		return written, false, err
	}

	if err := file.Close(); err != nil {
		return written, false, &FilesystemError{Op: "close partial", Path: partPath, Err: err}
	}
	if err := os.Rename(partPath, destPath); err != nil {
		return written, false, &FilesystemError{Op: "rename", Path: destPath, Err: err}
	}
	return written, false, nil
}

// copyStream pumps the body into the partial file through a fixed-size
// buffer, classifying read failures as transport errors and write failures
// as filesystem errors.
func copyStream(file *os.File, reader io.Reader, url, partPath string) (int64, error) {
	buf := make([]byte, copyBufferSize)
	var written int64
	for {
		n, rerr := reader.Read(buf)
		if n > 0 {
			if _, werr := file.Write(buf[:n]); werr != nil {
				return written, &FilesystemError{Op: "write partial", Path: partPath, Err: werr}
			}
			written += int64(n)
		}
		if rerr == io.EOF {
			return written, nil
		}
		if rerr != nil {
			return written, &TransportError{URL: url, Err: rerr}
		}
	}
}

func partOffset(partPath string) (int64, error) {
	info, err := os.Stat(partPath)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return 0, nil
		}
		return 0, &FilesystemError{Op: "stat partial", Path: partPath, Err: err}
	}
	return info.Size(), nil
}

// idleReader aborts a stalled stream by closing the underlying body when no
// bytes arrive within the timeout, which forces the blocked Read to return.
type idleReader struct {
	body     io.ReadCloser
	timeout  time.Duration
	timer    *time.Timer
	timedOut atomic.Bool
}

func newIdleReader(body io.ReadCloser, timeout time.Duration) *idleReader {
	r := &idleReader{body: body, timeout: timeout}
	if timeout > 0 {
		r.timer = time.AfterFunc(timeout, func() {
			r.timedOut.Store(true)
			body.Close()
		})
	}
	return r
}

func (r *idleReader) Read(p []byte) (int, error) {
	n, err := r.body.Read(p)
	if r.timedOut.Load() {
		if err != nil && err != io.EOF {
			err = &idleTimeoutError{timeout: r.timeout, cause: err}
		}
		return n, err
	}
	if r.timer != nil {
		r.timer.Reset(r.timeout)
	}
	return n, err
}

func (r *idleReader) stop() {
	if r.timer != nil {
		r.timer.Stop()
	}
}

type idleTimeoutError struct {
	timeout time.Duration
	cause   error
}

func (e *idleTimeoutError) Error() string {
	return "stream stalled for " + e.timeout.String()
}

func (e *idleTimeoutError) Unwrap() error { return e.cause }

func (e *idleTimeoutError) Timeout() bool { return true }
