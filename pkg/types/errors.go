package types

import (
	"errors"
	"fmt"
)

var (
	// ErrNoValidInput means none of the meter file slots yielded samples, so
	// there is nothing to merge.
	ErrNoValidInput = errors.New("no meter file produced any samples")

	// ErrEndBeforeStart means the selected export end date precedes the start
	// date. It blocks the export step only.
	ErrEndBeforeStart = errors.New("end date precedes start date")

	// ErrPriceFileNotFound means the bundled price file is absent from the
	// deployment. Price defaults to 0 for the whole run.
	ErrPriceFileNotFound = errors.New("bundled price file not found")
)

// ParseError reports a source file whose required columns are absent or fail
// to convert as a whole. The file contributes an empty series; sibling files
// are unaffected.
type ParseError struct {
	File   string
	Reason string
	Err    error
}

func (e *ParseError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("parse %s: %s: %v", e.File, e.Reason, e.Err)
	}
	return fmt.Sprintf("parse %s: %s", e.File, e.Reason)
}

func (e *ParseError) Unwrap() error { return e.Err }

// EmptyFilterWarning reports a structurally valid file that matched zero
// rows. It is a warning: the file contributes an empty series and processing
// continues.
type EmptyFilterWarning struct {
	File   string
	Filter string
}

func (e *EmptyFilterWarning) Error() string {
	return fmt.Sprintf("%s: no rows match %q", e.File, e.Filter)
}

// RemoteFetchError reports a failed or timed-out estimator network call.
type RemoteFetchError struct {
	Endpoint string
	Status   int
	Err      error
}

func (e *RemoteFetchError) Error() string {
	if e.Status != 0 {
		return fmt.Sprintf("fetch %s: unexpected status %d", e.Endpoint, e.Status)
	}
	return fmt.Sprintf("fetch %s: %v", e.Endpoint, e.Err)
}

func (e *RemoteFetchError) Unwrap() error { return e.Err }
