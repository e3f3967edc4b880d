package weather

import (
	"errors"
	"fmt"
)

var (
	// ErrDataUnavailable is returned when a response has the expected structure
	// but carries no usable data (e.g. an empty observations list).
	ErrDataUnavailable = errors.New("weather data unavailable")

	// ErrCycleInProgress is returned when Refresh is called while another cycle
	// for the same station is still running.
	ErrCycleInProgress = errors.New("refresh already in progress")

	// ErrUnknownStation is returned by Service for names that were never configured.
	ErrUnknownStation = errors.New("unknown station")
)

// FetchError reports a transport or HTTP-status failure for a single URL.
type FetchError struct {
	URL string
	Err error
}

func (e *FetchError) Error() string {
	return fmt.Sprintf("fetch %s: %v", e.URL, e.Err)
}

func (e *FetchError) Unwrap() error { return e.Err }

// ParseError reports a page whose structure or embedded JSON could not be decoded.
type ParseError struct {
	Reason string
	Err    error
}

func (e *ParseError) Error() string {
	if e.Err == nil {
		return "parse: " + e.Reason
	}
	return fmt.Sprintf("parse: %s: %v", e.Reason, e.Err)
}

func (e *ParseError) Unwrap() error { return e.Err }

// UpdateFailedError is what the host sees when a refresh cycle fails.
// Previously stored attributes are untouched.
type UpdateFailedError struct {
	Station string
	Err     error
}

func (e *UpdateFailedError) Error() string {
	return fmt.Sprintf("update failed for station %s: %v", e.Station, e.Err)
}

func (e *UpdateFailedError) Unwrap() error { return e.Err }
