package graph

import (
	"context"
	"strings"
	"time"

	"github.com/maxbolgarin/errm"
	"github.com/maxbolgarin/logze/v2"

	"github.com/onexay/gitgraph/internal/history"
	"github.com/onexay/gitgraph/internal/types"
)

const (
	branchPrefix = "refs/"
	tagPrefix    = "refs/tags/"
)

type options struct {
	location *time.Location
	suffixes []string
	log      logze.Logger
	hasLog   bool
}

// Option configures a Builder.
type Option func(*options)

// WithLocation sets the zone timestamps are formatted in. The process local
// zone is used by default.
func WithLocation(loc *time.Location) Option {
	return func(o *options) {
		o.location = loc
	}
}

// WithAcceptedSuffixes restricts change records to paths ending in one of
// the suffixes. Without suffixes every path is accepted.
func WithAcceptedSuffixes(suffixes ...string) Option {
	return func(o *options) {
		o.suffixes = o.suffixes[:0]
		for _, s := range suffixes {
			if s = strings.TrimSpace(s); s != "" {
				o.suffixes = append(o.suffixes, s)
			}
		}
	}
}

// WithLogger replaces the component logger.
func WithLogger(log logze.Logger) Option {
	return func(o *options) {
		o.log = log
		o.hasLog = true
	}
}

// Builder turns raw history records into a Graph. A Builder holds only
// configuration; every Build call works on private state, so one Builder may
// serve consecutive scans.
type Builder struct {
	opts options
	log  logze.Logger
}

// NewBuilder returns a Builder configured by opts.
func NewBuilder(opts ...Option) *Builder {
	o := options{location: time.Local}
	for _, opt := range opts {
		opt(&o)
	}
	if o.location == nil {
		o.location = time.Local
	}
	log := o.log
	if !o.hasLog {
		log = logze.With("component", "graph")
	}
	return &Builder{opts: o, log: log}
}

// BuildFrom reads every sequence from reader and builds the graph. A reader
// failure aborts the scan before anything is built.
func (b *Builder) BuildFrom(ctx context.Context, repo types.Repository, reader history.Reader) (*Graph, error) {
	commits, err := reader.ListCommits(ctx)
	if err != nil {
		buildsTotal.WithLabelValues(outcomeReadError).Inc()
		return nil, errm.Wrap(err, "list commits")
	}
	branches, err := reader.ListBranches(ctx)
	if err != nil {
		buildsTotal.WithLabelValues(outcomeReadError).Inc()
		return nil, errm.Wrap(err, "list branches")
	}
	tags, err := reader.ListTags(ctx)
	if err != nil {
		buildsTotal.WithLabelValues(outcomeReadError).Inc()
		return nil, errm.Wrap(err, "list tags")
	}
	return b.Build(repo, commits, branches, tags)
}

// Build constructs and validates the graph of one scan.
func (b *Builder) Build(repo types.Repository, commits []history.RawCommit, branches []history.RawBranch, tags []history.RawTag) (*Graph, error) {
	start := time.Now()
	s := &scan{
		Builder: b,
		graph:   newGraph(repo),
		log:     b.log.WithFields("repository", repo.Name),
	}

	if err := s.addCommits(commits); err != nil {
		buildsTotal.WithLabelValues(outcomeInvalid).Inc()
		return nil, err
	}
	s.resolveParents(commits)
	s.addBranches(branches)
	s.addTags(tags)

	if err := s.graph.Validate(); err != nil {
		buildsTotal.WithLabelValues(outcomeInvalid).Inc()
		return nil, err
	}

	observeBuild(s.graph, time.Since(start))
	st := s.graph.Stats()
	s.log.Info("graph built",
		"commits", st.Commits, "authors", st.Authors, "files", st.Files,
		"branches", st.Branches, "tags", st.Tags, "diagnostics", st.Diagnostics)
	return s.graph, nil
}

// scan is the working state of one Build call.
type scan struct {
	*Builder
	graph *Graph
	log   logze.Logger
}

// addCommits is the first pass: commits, authors, changes and files, plus
// file lifecycle derivation.
func (s *scan) addCommits(raw []history.RawCommit) error {
	g := s.graph
	for _, rc := range raw {
		if rc.SHA == "" {
			return ErrEmptySHA
		}
		commit, created := g.commits.GetOrCreate(rc.SHA, func() *types.Commit {
			return &types.Commit{
				SHA:       rc.SHA,
				Author:    rc.Author,
				Message:   rc.Message,
				Timestamp: FormatTimestamp(rc.Date, s.opts.location),
			}
		})
		if !created {
			return errm.Wrap(ErrDuplicateCommit, rc.SHA)
		}
		g.record(commit)
		g.link(g.Repository, types.RelHasCommit, commit)

		if rc.Author != "" {
			author, isNew := g.authors.GetOrCreate(rc.Author, func() *types.Author {
				name, email := ParseIdent(rc.Author)
				return &types.Author{Ident: rc.Author, Name: name, Email: email}
			})
			if isNew {
				g.record(author)
				g.link(g.Repository, types.RelHasAuthor, author)
			}
			author.Commits = append(author.Commits, commit)
			g.link(author, types.RelCommitted, commit)
		}

		for _, rch := range rc.Changes {
			if !s.accepts(rch.Path) {
				continue
			}
			s.addChange(commit, rch)
		}
	}
	return nil
}

func (s *scan) addChange(commit *types.Commit, rch history.RawChange) {
	g := s.graph
	kind := types.ParseModificationKind(rch.Kind)
	change := &types.CommitFileChange{
		Kind:         kind,
		Code:         strings.ToUpper(strings.TrimSpace(rch.Kind)),
		RelativePath: rch.Path,
		Index:        len(commit.Changes),
		Commit:       commit,
	}
	commit.Changes = append(commit.Changes, change)
	g.changes = append(g.changes, change)
	g.record(change)
	g.link(commit, types.RelContainsChange, change)

	file, isNew := g.files.GetOrCreate(rch.Path, func() *types.File {
		return &types.File{RelativePath: rch.Path}
	})
	if isNew {
		g.record(file)
		g.link(g.Repository, types.RelHasFile, file)
	}
	change.File = file
	file.Changes = append(file.Changes, change)
	g.link(change, types.RelModifies, file)

	switch kind {
	case types.ChangeAdded:
		file.CreatedAt = types.StampOf(commit.Timestamp)
	case types.ChangeModified:
		file.LastModifiedAt = types.StampOf(commit.Timestamp)
	case types.ChangeDeleted:
		file.DeletedAt = types.StampOf(commit.Timestamp)
	case types.ChangeUnknown:
		s.log.Debug("unknown modification kind", "commit", commit.SHA, "path", rch.Path, "code", rch.Kind)
	}
}

func (s *scan) accepts(path string) bool {
	if len(s.opts.suffixes) == 0 {
		return true
	}
	for _, suffix := range s.opts.suffixes {
		if strings.HasSuffix(path, suffix) {
			return true
		}
	}
	return false
}

// resolveParents is the second pass. Every commit is indexed by now, so the
// raw order does not matter.
func (s *scan) resolveParents(raw []history.RawCommit) {
	g := s.graph
	for _, rc := range raw {
		commit, _ := g.commits.Get(rc.SHA)
		seen := make(map[string]struct{}, len(rc.Parents))
		for _, sha := range rc.Parents {
			if _, dup := seen[sha]; dup {
				continue
			}
			seen[sha] = struct{}{}
			parent, ok := g.commits.Get(sha)
			if !ok {
				s.unresolved(DiagnosticMissingParent, rc.SHA, sha)
				continue
			}
			commit.Parents = append(commit.Parents, parent)
			g.link(commit, types.RelHasParent, parent)
		}
	}
}

func (s *scan) addBranches(raw []history.RawBranch) {
	g := s.graph
	for _, rb := range raw {
		name := strings.TrimPrefix(rb.Ref, branchPrefix)
		branch, isNew := g.branches.GetOrCreate(name, func() *types.Branch {
			return &types.Branch{Name: name}
		})
		if !isNew {
			s.log.Warn("branch listed twice", "branch", name)
			continue
		}
		g.record(branch)
		g.link(g.Repository, types.RelHasBranch, branch)

		head, ok := g.commits.Get(rb.HeadSHA)
		if !ok {
			s.unresolved(DiagnosticMissingBranchHead, name, rb.HeadSHA)
			continue
		}
		branch.Head = head
		g.link(branch, types.RelHasHead, head)
	}
}

func (s *scan) addTags(raw []history.RawTag) {
	g := s.graph
	for _, rt := range raw {
		label := strings.TrimPrefix(rt.Ref, tagPrefix)
		tag, isNew := g.tags.GetOrCreate(label, func() *types.Tag {
			return &types.Tag{Label: label}
		})
		if !isNew {
			s.log.Warn("tag listed twice", "tag", label)
			continue
		}
		g.record(tag)
		g.link(g.Repository, types.RelHasTag, tag)

		target, ok := g.commits.Get(rt.TargetSHA)
		if !ok {
			s.unresolved(DiagnosticMissingTagTarget, label, rt.TargetSHA)
			continue
		}
		tag.Commit = target
		g.link(tag, types.RelOnCommit, target)
	}
}

func (s *scan) unresolved(kind DiagnosticKind, subject, target string) {
	s.graph.diagnostics = append(s.graph.diagnostics, Diagnostic{Kind: kind, Subject: subject, Target: target})
	unresolvedTotal.WithLabelValues(string(kind)).Inc()
	s.log.Warn("unresolved reference", "kind", string(kind), "subject", subject, "target", target)
}
