package feed

import (
	"errors"
	"fmt"
)

var (
	ErrTimeout    = errors.New("fetch timed out")
	ErrNetwork    = errors.New("network error")
	ErrParse      = errors.New("parse error")
	// ErrMissingKey is a per-entry parse failure; the rest of the feed is
	// still ingested.
	ErrMissingKey = fmt.Errorf("%w: entry has no link, title or publish date", ErrParse)
)

// FetchError describes a failed fetch. Kind is one of ErrTimeout, ErrNetwork
// or ErrParse and matches with errors.Is.
type FetchError struct {
	Kind       error
	URL        string
	StatusCode int
	Err        error
}

func (e *FetchError) Error() string {
	switch {
	case e.StatusCode != 0:
		return fmt.Sprintf("%v: %s returned HTTP %d", e.Kind, e.URL, e.StatusCode)
	case e.Err != nil:
		return fmt.Sprintf("%v: %s: %v", e.Kind, e.URL, e.Err)
	default:
		return fmt.Sprintf("%v: %s", e.Kind, e.URL)
	}
}

func (e *FetchError) Unwrap() []error {
	if e.Err == nil {
		return []error{e.Kind}
	}
	return []error{e.Kind, e.Err}
}
