package service

import (
	"github.com/onexay/gitgraph/internal/graph"
	"github.com/onexay/gitgraph/internal/storage"
	"github.com/onexay/gitgraph/internal/types"
)

// Entities hold pointers to each other; the API returns flat views keyed by
// sha, ident and path instead.

type ChangeView struct {
	Kind string `json:"kind"`
	Code string `json:"code"`
	Path string `json:"path"`
}

type CommitView struct {
	SHA       string          `json:"sha"`
	Author    string          `json:"author,omitempty"`
	Message   string          `json:"message,omitempty"`
	Timestamp types.Timestamp `json:"timestamp"`
	Parents   []string        `json:"parents"`
	Changes   []ChangeView    `json:"changes"`
}

type AuthorView struct {
	Ident   string   `json:"ident"`
	Name    string   `json:"name"`
	Email   string   `json:"email"`
	Commits []string `json:"commits"`
}

type FileView struct {
	Path           string       `json:"path"`
	Commits        []string     `json:"commits"`
	CreatedAt      *types.Stamp `json:"createdAt,omitempty"`
	LastModifiedAt *types.Stamp `json:"lastModifiedAt,omitempty"`
	DeletedAt      *types.Stamp `json:"deletedAt,omitempty"`
}

// RefView is a branch or tag. Commit is empty when unresolved.
type RefView struct {
	Name   string `json:"name"`
	Commit string `json:"commit,omitempty"`
}

func commitView(c *types.Commit) CommitView {
	v := CommitView{
		SHA:       c.SHA,
		Author:    c.Author,
		Message:   c.Message,
		Timestamp: c.Timestamp,
		Parents:   c.ParentSHAs(),
		Changes:   make([]ChangeView, 0, len(c.Changes)),
	}
	for _, ch := range c.Changes {
		v.Changes = append(v.Changes, ChangeView{Kind: ch.Kind.String(), Code: ch.Code, Path: ch.RelativePath})
	}
	return v
}

func shas(commits []*types.Commit) []string {
	out := make([]string, 0, len(commits))
	for _, c := range commits {
		out = append(out, c.SHA)
	}
	return out
}

func refView(name string, c *types.Commit) RefView {
	v := RefView{Name: name}
	if c != nil {
		v.Commit = c.SHA
	}
	return v
}

// Commits lists the commits of name in scan order.
func (s *Service) Commits(name string) ([]CommitView, error) {
	g, err := s.Graph(name)
	if err != nil {
		return nil, err
	}
	out := make([]CommitView, 0)
	for _, c := range g.Commits() {
		out = append(out, commitView(c))
	}
	return out, nil
}

// Commit returns one commit of name.
func (s *Service) Commit(name, sha string) (CommitView, error) {
	g, err := s.Graph(name)
	if err != nil {
		return CommitView{}, err
	}
	c, ok := g.Commit(sha)
	if !ok {
		return CommitView{}, &storage.NotFoundError{Resource: "commit", Key: sha}
	}
	return commitView(c), nil
}

func (s *Service) Authors(name string) ([]AuthorView, error) {
	g, err := s.Graph(name)
	if err != nil {
		return nil, err
	}
	out := make([]AuthorView, 0)
	for _, a := range g.Authors() {
		out = append(out, AuthorView{Ident: a.Ident, Name: a.Name, Email: a.Email, Commits: shas(a.Commits)})
	}
	return out, nil
}

func (s *Service) Files(name string) ([]FileView, error) {
	g, err := s.Graph(name)
	if err != nil {
		return nil, err
	}
	out := make([]FileView, 0)
	for _, f := range g.Files() {
		v := FileView{
			Path:           f.RelativePath,
			Commits:        make([]string, 0, len(f.Changes)),
			CreatedAt:      f.CreatedAt,
			LastModifiedAt: f.LastModifiedAt,
			DeletedAt:      f.DeletedAt,
		}
		for _, ch := range f.Changes {
			v.Commits = append(v.Commits, ch.Commit.SHA)
		}
		out = append(out, v)
	}
	return out, nil
}

func (s *Service) Branches(name string) ([]RefView, error) {
	g, err := s.Graph(name)
	if err != nil {
		return nil, err
	}
	out := make([]RefView, 0)
	for _, b := range g.Branches() {
		out = append(out, refView(b.Name, b.Head))
	}
	return out, nil
}

func (s *Service) Tags(name string) ([]RefView, error) {
	g, err := s.Graph(name)
	if err != nil {
		return nil, err
	}
	out := make([]RefView, 0)
	for _, t := range g.Tags() {
		out = append(out, refView(t.Label, t.Commit))
	}
	return out, nil
}

func (s *Service) Diagnostics(name string) ([]graph.Diagnostic, error) {
	g, err := s.Graph(name)
	if err != nil {
		return nil, err
	}
	diags := g.Diagnostics()
	if diags == nil {
		diags = []graph.Diagnostic{}
	}
	return diags, nil
}
