package fetch

import (
	"fmt"
)

// TransportError reports a network or HTTP failure. The partial file, if
// any, is left on disk so a later call can resume.
type TransportError struct {
	URL        string
	StatusCode int // zero when the failure happened before a response arrived
	Err        error
}

func (e *TransportError) Error() string {
	if e.StatusCode != 0 {
		return fmt.Sprintf("fetch %s: unexpected status %d", e.URL, e.StatusCode)
	}
	return fmt.Sprintf("fetch %s: %v", e.URL, e.Err)
}

func (e *TransportError) Unwrap() error { return e.Err }

// FilesystemError reports a local filesystem failure while writing the
// transfer. It wraps the underlying syscall error, so name-too-long
// conditions stay detectable with errors.Is(err, syscall.ENAMETOOLONG).
type FilesystemError struct {
	Op   string
	Path string
	Err  error
}

func (e *FilesystemError) Error() string {
	return fmt.Sprintf("%s %s: %v", e.Op, e.Path, e.Err)
}

func (e *FilesystemError) Unwrap() error { return e.Err }
