package vrc

import "errors"

// ErrNoPages is returned when a run is started with an empty page set.
// This is the only fatal condition in the core: everything else degrades to
// a per-page outcome.
var ErrNoPages = errors.New("vrc: no pages configured")
