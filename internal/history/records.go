// Package history reads raw commit, branch and tag records out of a
// repository. Readers materialize full lists before a graph build starts.
package history

import (
	"context"
	"time"
)

// RawChange is one file touched by a commit, as reported by the reader.
type RawChange struct {
	// Kind is the single-letter modification code (A, M, D, ...).
	Kind string
	Path string
}

// RawCommit is a commit record. Author is empty when the commit carries no
// ident. Parents lists shas in declaration order; the first one is primary.
type RawCommit struct {
	SHA     string
	Author  string
	Message string
	Date    time.Time
	Parents []string
	Changes []RawChange
}

// RawBranch is a ref path such as refs/heads/main with its head sha.
type RawBranch struct {
	Ref     string
	HeadSHA string
}

// RawTag is a ref path such as refs/tags/v1.0 with the sha it points at.
type RawTag struct {
	Ref       string
	TargetSHA string
}

// Reader yields the three raw sequences of a repository. Order within a
// sequence does not respect parent-before-child.
type Reader interface {
	ListCommits(ctx context.Context) ([]RawCommit, error)
	ListBranches(ctx context.Context) ([]RawBranch, error)
	ListTags(ctx context.Context) ([]RawTag, error)
}

// StaticReader serves records held in memory.
type StaticReader struct {
	Commits  []RawCommit
	Branches []RawBranch
	Tags     []RawTag
}

func (r *StaticReader) ListCommits(ctx context.Context) ([]RawCommit, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	return append([]RawCommit(nil), r.Commits...), nil
}

func (r *StaticReader) ListBranches(ctx context.Context) ([]RawBranch, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	return append([]RawBranch(nil), r.Branches...), nil
}

func (r *StaticReader) ListTags(ctx context.Context) ([]RawTag, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	return append([]RawTag(nil), r.Tags...), nil
}
