package domain

import "errors"

var (
	// ErrSourceMissing means a declared input file does not exist.
	ErrSourceMissing = errors.New("source file missing")
	// ErrShapeMismatch means structured input did not have the expected nesting.
	ErrShapeMismatch = errors.New("unexpected source shape")
	// ErrStoreUnavailable means the document store could not be reached.
	ErrStoreUnavailable = errors.New("document store unavailable")
	// ErrCountMismatch means the store holds a different number of documents than were submitted.
	ErrCountMismatch = errors.New("stored document count mismatch")
	// ErrEmptyCollection means an audit found nothing to inspect.
	ErrEmptyCollection = errors.New("collection is empty")
)
