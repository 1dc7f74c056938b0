package scraper

import (
	"errors"
	"fmt"
)

// SetupError marks failures that make a crawl impossible to start:
// browser launch, configuration, or initial navigation. Callers treat it
// as fatal for the run.
type SetupError struct {
	Stage string
	Err   error
}

func (e *SetupError) Error() string {
	return fmt.Sprintf("setup %s: %v", e.Stage, e.Err)
}

func (e *SetupError) Unwrap() error { return e.Err }

func setupErr(stage string, err error) *SetupError {
	return &SetupError{Stage: stage, Err: err}
}

// IsSetup reports whether err is (or wraps) a SetupError.
func IsSetup(err error) bool {
	var se *SetupError
	return errors.As(err, &se)
}

// ExtractionError covers a single detail page that could not be turned
// into a listing. It never aborts the session; the URL is recorded as
// failed and the crawl moves on.
type ExtractionError struct {
	URL string
	Err error
}

func (e *ExtractionError) Error() string {
	return fmt.Sprintf("extract %s: %v", e.URL, e.Err)
}

func (e *ExtractionError) Unwrap() error { return e.Err }

// ErrChallengeTimeout means the anti-bot interstitial did not clear
// within the polling window. The page may still be usable, so callers
// log it and proceed.
var ErrChallengeTimeout = errors.New("challenge did not clear within polling window")

// ErrNoDiscovery means discovery produced zero listing URLs, which is
// indistinguishable from a blocked or restructured portal.
var ErrNoDiscovery = errors.New("discovery yielded no listing urls")
