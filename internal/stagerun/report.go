package stagerun

import (
	"errors"
	"fmt"
	"path/filepath"

	"photoprep/internal/imageset"
	"photoprep/internal/services"
)

// ItemFailure records one image that could not be processed.
type ItemFailure struct {
	Path string
	Err  error
}

func (f ItemFailure) Error() string {
	return fmt.Sprintf("%s: %v", filepath.Base(f.Path), f.Err)
}

func (f ItemFailure) Unwrap() []error { return []error{services.ErrItemFailure, f.Err} }

// Report summarises a batch stage.
type Report struct {
	Stage    string
	Folder   string
	Output   imageset.Set
	Failures []ItemFailure
}

// Processed returns the number of inputs the stage attempted.
func (r Report) Processed() int { return len(r.Output) + len(r.Failures) }

// Err joins all item failures, or returns nil when every item succeeded.
func (r Report) Err() error {
	if len(r.Failures) == 0 {
		return nil
	}
	errs := make([]error, len(r.Failures))
	for i, f := range r.Failures {
		errs[i] = f
	}
	return errors.Join(errs...)
}
