package repository

import "errors"

// ErrNotFound is returned when a named entity or document does not exist in
// the backing store. Callers treat it as "no expansion possible", not as a
// system failure.
var ErrNotFound = errors.New("not found")
