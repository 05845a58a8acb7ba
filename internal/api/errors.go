package api

import (
	"fmt"

	"github.com/rickgao/mse-data/internal/model"
)

// FetchError reports a history window that could not be fetched.
// It is scoped to the window: callers log it and move on.
type FetchError struct {
	Window   model.FetchWindow
	Attempts int
	Err      error
}

func (e *FetchError) Error() string {
	return fmt.Sprintf("fetch %s failed after %d attempts: %v", e.Window, e.Attempts, e.Err)
}

func (e *FetchError) Unwrap() error {
	return e.Err
}

// DiscoveryError reports that the security list could not be read.
// Without it no work can proceed, so it is fatal to a run.
type DiscoveryError struct {
	URL string
	Err error
}

func (e *DiscoveryError) Error() string {
	return fmt.Sprintf("discover securities from %s: %v", e.URL, e.Err)
}

func (e *DiscoveryError) Unwrap() error {
	return e.Err
}
