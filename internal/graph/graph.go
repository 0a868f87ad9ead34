package graph

import (
	"fmt"

	"github.com/maxbolgarin/errm"

	"github.com/onexay/gitgraph/internal/types"
)

// DiagnosticKind classifies a reference the builder could not resolve.
type DiagnosticKind string

const (
	DiagnosticMissingParent     DiagnosticKind = "missing_parent"
	DiagnosticMissingBranchHead DiagnosticKind = "missing_branch_head"
	DiagnosticMissingTagTarget  DiagnosticKind = "missing_tag_target"
)

// Diagnostic records a non-fatal unresolved reference.
type Diagnostic struct {
	Kind DiagnosticKind `json:"kind"`
	// Subject is the commit sha, branch name or tag label holding the reference.
	Subject string `json:"subject"`
	// Target is the sha that was not part of the scan.
	Target string `json:"target"`
}

func (d Diagnostic) String() string {
	return fmt.Sprintf("%s: %s -> %s", d.Kind, d.Subject, d.Target)
}

// Link is a directed relationship between two entities of the same graph.
type Link struct {
	From     types.Entity
	Relation types.Relation
	To       types.Entity
}

// Graph is the fully resolved result of one scan. It is built by Builder and
// not modified afterwards.
type Graph struct {
	Repository *types.Repository

	commits  *Registry[string, *types.Commit]
	authors  *Registry[string, *types.Author]
	files    *Registry[string, *types.File]
	branches *Registry[string, *types.Branch]
	tags     *Registry[string, *types.Tag]
	changes  []*types.CommitFileChange

	created     []types.Entity
	links       []Link
	diagnostics []Diagnostic
}

func newGraph(repo types.Repository) *Graph {
	root := repo
	g := &Graph{
		Repository: &root,
		commits:    NewRegistry[string, *types.Commit](),
		authors:    NewRegistry[string, *types.Author](),
		files:      NewRegistry[string, *types.File](),
		branches:   NewRegistry[string, *types.Branch](),
		tags:       NewRegistry[string, *types.Tag](),
	}
	g.created = append(g.created, g.Repository)
	return g
}

func (g *Graph) record(e types.Entity) {
	g.created = append(g.created, e)
}

func (g *Graph) link(from types.Entity, rel types.Relation, to types.Entity) {
	g.links = append(g.links, Link{From: from, Relation: rel, To: to})
}

// Commits returns commits in raw sequence order.
func (g *Graph) Commits() []*types.Commit { return g.commits.Values() }

// Commit looks a commit up by sha.
func (g *Graph) Commit(sha string) (*types.Commit, bool) { return g.commits.Get(sha) }

// Authors returns authors in first-seen order.
func (g *Graph) Authors() []*types.Author { return g.authors.Values() }

// Author looks an author up by its exact ident string.
func (g *Graph) Author(ident string) (*types.Author, bool) { return g.authors.Get(ident) }

// Files returns files in first-seen order.
func (g *Graph) Files() []*types.File { return g.files.Values() }

// File looks a file up by relative path.
func (g *Graph) File(path string) (*types.File, bool) { return g.files.Get(path) }

// Changes returns every change record in creation order.
func (g *Graph) Changes() []*types.CommitFileChange {
	return append([]*types.CommitFileChange(nil), g.changes...)
}

func (g *Graph) Branches() []*types.Branch { return g.branches.Values() }

func (g *Graph) Branch(name string) (*types.Branch, bool) { return g.branches.Get(name) }

func (g *Graph) Tags() []*types.Tag { return g.tags.Values() }

func (g *Graph) Tag(label string) (*types.Tag, bool) { return g.tags.Get(label) }

// Diagnostics returns unresolved references in the order they were found.
func (g *Graph) Diagnostics() []Diagnostic {
	return append([]Diagnostic(nil), g.diagnostics...)
}

// Entities returns every entity in creation order, starting with the root.
func (g *Graph) Entities() []types.Entity {
	return append([]types.Entity(nil), g.created...)
}

// Links returns every relationship in the order it was established.
func (g *Graph) Links() []Link {
	return append([]Link(nil), g.links...)
}

// Stats summarises a graph.
type Stats struct {
	Commits     int `json:"commits"`
	Authors     int `json:"authors"`
	Files       int `json:"files"`
	Changes     int `json:"changes"`
	Branches    int `json:"branches"`
	Tags        int `json:"tags"`
	Links       int `json:"links"`
	Diagnostics int `json:"diagnostics"`
}

func (g *Graph) Stats() Stats {
	return Stats{
		Commits:     g.commits.Len(),
		Authors:     g.authors.Len(),
		Files:       g.files.Len(),
		Changes:     len(g.changes),
		Branches:    g.branches.Len(),
		Tags:        g.tags.Len(),
		Links:       len(g.links),
		Diagnostics: len(g.diagnostics),
	}
}

// Validate checks the invariants a finished graph must hold before it is
// handed to a sink.
func (g *Graph) Validate() error {
	if g.Repository == nil {
		return errm.Wrap(ErrInvalidGraph, "missing repository root")
	}

	seen := make(map[types.Entity]struct{}, len(g.created))
	keys := make(map[types.EntityKind]map[string]struct{})
	for _, e := range g.created {
		if _, dup := seen[e]; dup {
			return errm.Wrap(ErrInvalidGraph, fmt.Sprintf("%s %s created twice", e.EntityKind(), e.EntityKey()))
		}
		seen[e] = struct{}{}
		byKind, ok := keys[e.EntityKind()]
		if !ok {
			byKind = make(map[string]struct{})
			keys[e.EntityKind()] = byKind
		}
		if _, dup := byKind[e.EntityKey()]; dup {
			return errm.Wrap(ErrInvalidGraph, fmt.Sprintf("duplicate %s key %q", e.EntityKind(), e.EntityKey()))
		}
		byKind[e.EntityKey()] = struct{}{}
	}

	for _, l := range g.links {
		if _, ok := seen[l.From]; !ok {
			return errm.Wrap(ErrInvalidGraph, fmt.Sprintf("%s link from unknown %s", l.Relation, l.From.EntityKind()))
		}
		if _, ok := seen[l.To]; !ok {
			return errm.Wrap(ErrInvalidGraph, fmt.Sprintf("%s link to unknown %s", l.Relation, l.To.EntityKind()))
		}
	}

	for _, c := range g.commits.Values() {
		parents := make(map[string]struct{}, len(c.Parents))
		for _, p := range c.Parents {
			if own, ok := g.commits.Get(p.SHA); !ok || own != p {
				return errm.Wrap(ErrInvalidGraph, fmt.Sprintf("commit %s has parent %s outside the scan", c.SHA, p.SHA))
			}
			if _, dup := parents[p.SHA]; dup {
				return errm.Wrap(ErrInvalidGraph, fmt.Sprintf("commit %s lists parent %s twice", c.SHA, p.SHA))
			}
			parents[p.SHA] = struct{}{}
		}
	}

	owned := 0
	for _, f := range g.files.Values() {
		for _, ch := range f.Changes {
			if ch.File != f || ch.RelativePath != f.RelativePath {
				return errm.Wrap(ErrInvalidGraph, fmt.Sprintf("change %s attached to wrong file", ch.EntityKey()))
			}
			owned++
		}
	}
	if owned != len(g.changes) {
		return errm.Wrap(ErrInvalidGraph, fmt.Sprintf("%d changes, %d attached to files", len(g.changes), owned))
	}
	return nil
}
