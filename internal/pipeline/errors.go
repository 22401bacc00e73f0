package pipeline

import (
	"errors"
	"fmt"

	"podhaul/internal/ledger"
)

// Failure classes for run-time errors. Enumeration failures abort the whole
// run; the other classes fail one episode and let the run continue.
var (
	ErrEnumeration = errors.New("enumeration failed")
	ErrResolution  = errors.New("no media located")
	ErrTransfer    = errors.New("transfer failed")
	ErrNaming      = errors.New("filename construction failed")
)

// Wrap tags err with a failure class for later status classification while
// keeping the original cause unwrappable.
func Wrap(class error, err error) error {
	if err == nil {
		return nil
	}
	if class == nil {
		return err
	}
	return fmt.Errorf("%w: %w", class, err)
}

// FailureStatus maps a classified per-episode failure onto the ledger status
// it leaves behind. Only a resolution dead end becomes no_media; every other
// failure stays retryable.
func FailureStatus(err error) ledger.Status {
	if errors.Is(err, ErrResolution) {
		return ledger.StatusNoMedia
	}
	return ledger.StatusError
}
