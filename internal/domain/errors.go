package domain

import (
	"errors"
	"fmt"
	"strings"
)

var (
	// Board errors
	ErrMalformedResponse = errors.New("malformed board response")
	ErrItemNotFound      = errors.New("item not found on board")
	ErrBoardBusy         = errors.New("board is being reconciled by another event")

	// Write-back errors
	ErrWriteFailure = errors.New("balance write-back failed")

	// Inbound errors
	ErrInvalidEvent        = errors.New("invalid change event")
	ErrInvalidSignature    = errors.New("invalid webhook signature")
	ErrRollupNotConfigured = errors.New("rollup is not configured")
)

// WriteError reports the items whose balance could not be written.
// Writes issued before the failure are not undone.
type WriteError struct {
	FailedItemIDs []string
	Cause         error
}

func (e *WriteError) Error() string {
	msg := fmt.Sprintf("%s for %d item(s): %s", ErrWriteFailure, len(e.FailedItemIDs), strings.Join(e.FailedItemIDs, ","))
	if e.Cause != nil {
		msg += ": " + e.Cause.Error()
	}
	return msg
}

// Unwrap lets errors.Is match both ErrWriteFailure and the underlying cause.
func (e *WriteError) Unwrap() []error {
	if e.Cause == nil {
		return []error{ErrWriteFailure}
	}
	return []error{ErrWriteFailure, e.Cause}
}
