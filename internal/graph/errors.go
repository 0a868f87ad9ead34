package graph

import "github.com/maxbolgarin/errm"

var (
	// ErrDuplicateCommit is returned when the reader yields one sha twice.
	ErrDuplicateCommit = errm.New("duplicate commit sha")

	// ErrEmptySHA is returned for a commit record without a sha.
	ErrEmptySHA = errm.New("commit without sha")

	// ErrInvalidGraph is returned by Validate when an invariant is broken.
	ErrInvalidGraph = errm.New("invalid graph")
)
