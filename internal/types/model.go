package types

import (
	"strconv"
	"strings"
)

// EntityKind names the label an entity is persisted under.
type EntityKind string

const (
	EntityRepository EntityKind = "Repository"
	EntityCommit     EntityKind = "Commit"
	EntityAuthor     EntityKind = "Author"
	EntityFile       EntityKind = "File"
	EntityChange     EntityKind = "Change"
	EntityBranch     EntityKind = "Branch"
	EntityTag        EntityKind = "Tag"
)

// Relation names a directed edge between two entities.
type Relation string

const (
	RelHasCommit      Relation = "HAS_COMMIT"
	RelHasAuthor      Relation = "HAS_AUTHOR"
	RelHasFile        Relation = "HAS_FILE"
	RelHasBranch      Relation = "HAS_BRANCH"
	RelHasTag         Relation = "HAS_TAG"
	RelCommitted      Relation = "COMMITTED"
	RelHasParent      Relation = "HAS_PARENT"
	RelContainsChange Relation = "CONTAINS_CHANGE"
	RelModifies       Relation = "MODIFIES"
	RelHasHead        Relation = "HAS_HEAD"
	RelOnCommit       Relation = "ON_COMMIT"
)

// Entity is anything that can be handed to an entity sink.
type Entity interface {
	EntityKind() EntityKind
	// EntityKey is unique per kind within one scan.
	EntityKey() string
	Properties() map[string]any
}

// ModificationKind is the decoded nature of a file change.
type ModificationKind int

const (
	ChangeUnknown ModificationKind = iota
	ChangeAdded
	ChangeModified
	ChangeDeleted
)

// ParseModificationKind decodes a single-letter change code, ignoring case.
func ParseModificationKind(code string) ModificationKind {
	switch strings.ToUpper(strings.TrimSpace(code)) {
	case "A":
		return ChangeAdded
	case "M":
		return ChangeModified
	case "D":
		return ChangeDeleted
	default:
		return ChangeUnknown
	}
}

// Code returns the canonical single-letter code, or "" for unknown kinds.
func (k ModificationKind) Code() string {
	switch k {
	case ChangeAdded:
		return "A"
	case ChangeModified:
		return "M"
	case ChangeDeleted:
		return "D"
	default:
		return ""
	}
}

func (k ModificationKind) String() string {
	switch k {
	case ChangeAdded:
		return "added"
	case ChangeModified:
		return "modified"
	case ChangeDeleted:
		return "deleted"
	default:
		return "unknown"
	}
}

// Timestamp carries every persisted representation of a commit instant.
type Timestamp struct {
	Date     string `json:"date"`
	Time     string `json:"time"`
	DateTime string `json:"dateTime"`
	Epoch    int64  `json:"epoch"`
}

// Stamp is a combined-format timestamp together with its epoch millis.
type Stamp struct {
	Formatted string `json:"formatted"`
	Epoch     int64  `json:"epoch"`
}

// StampOf reduces a commit timestamp to the form stored on files.
func StampOf(ts Timestamp) *Stamp {
	return &Stamp{Formatted: ts.DateTime, Epoch: ts.Epoch}
}

// Repository is the root every scanned entity hangs off.
type Repository struct {
	Name string `json:"name"`
	Path string `json:"path"`
}

// Commit captures one recorded change in history. Back references are not
// serialized; callers build flat views instead.
type Commit struct {
	SHA       string              `json:"sha"`
	Author    string              `json:"author,omitempty"`
	Message   string              `json:"message,omitempty"`
	Timestamp Timestamp           `json:"timestamp"`
	Parents   []*Commit           `json:"-"`
	Changes   []*CommitFileChange `json:"-"`
}

// ParentSHAs lists parent shas in declaration order.
func (c *Commit) ParentSHAs() []string {
	out := make([]string, 0, len(c.Parents))
	for _, p := range c.Parents {
		out = append(out, p.SHA)
	}
	return out
}

// Author aggregates every commit made under one exact ident string.
type Author struct {
	Ident   string    `json:"ident"`
	Name    string    `json:"name"`
	Email   string    `json:"email"`
	Commits []*Commit `json:"-"`
}

// File aggregates all change events applied to a relative path.
type File struct {
	RelativePath   string              `json:"relativePath"`
	Changes        []*CommitFileChange `json:"-"`
	CreatedAt      *Stamp              `json:"createdAt,omitempty"`
	LastModifiedAt *Stamp              `json:"lastModifiedAt,omitempty"`
	DeletedAt      *Stamp              `json:"deletedAt,omitempty"`
}

// CommitFileChange is one (commit, path) occurrence.
type CommitFileChange struct {
	Kind         ModificationKind `json:"kind"`
	Code         string           `json:"code"`
	RelativePath string           `json:"relativePath"`
	// Index is the position of the change within its commit.
	Index  int     `json:"index"`
	Commit *Commit `json:"-"`
	File   *File   `json:"-"`
}

// Branch points at its head commit, nil when outside the scanned range.
type Branch struct {
	Name string  `json:"name"`
	Head *Commit `json:"-"`
}

// Tag anchors a label to a commit, nil when outside the scanned range.
type Tag struct {
	Label  string  `json:"label"`
	Commit *Commit `json:"-"`
}

func (r *Repository) EntityKind() EntityKind { return EntityRepository }
func (r *Repository) EntityKey() string      { return r.Name }
func (r *Repository) Properties() map[string]any {
	return map[string]any{"name": r.Name, "fileName": r.Path}
}

func (c *Commit) EntityKind() EntityKind { return EntityCommit }
func (c *Commit) EntityKey() string      { return c.SHA }
func (c *Commit) Properties() map[string]any {
	return map[string]any{
		"sha":      c.SHA,
		"author":   c.Author,
		"message":  c.Message,
		"date":     c.Timestamp.Date,
		"time":     c.Timestamp.Time,
		"dateTime": c.Timestamp.DateTime,
		"epoch":    c.Timestamp.Epoch,
	}
}

func (a *Author) EntityKind() EntityKind { return EntityAuthor }
func (a *Author) EntityKey() string      { return a.Ident }
func (a *Author) Properties() map[string]any {
	return map[string]any{"identString": a.Ident, "name": a.Name, "email": a.Email}
}

func (f *File) EntityKind() EntityKind { return EntityFile }
func (f *File) EntityKey() string      { return f.RelativePath }
func (f *File) Properties() map[string]any {
	props := map[string]any{"relativePath": f.RelativePath}
	putStamp(props, "createdAt", f.CreatedAt)
	putStamp(props, "lastModificationAt", f.LastModifiedAt)
	putStamp(props, "deletedAt", f.DeletedAt)
	return props
}

func (c *CommitFileChange) EntityKind() EntityKind { return EntityChange }

func (c *CommitFileChange) EntityKey() string {
	sha := ""
	if c.Commit != nil {
		sha = c.Commit.SHA
	}
	return sha + ":" + strconv.Itoa(c.Index) + ":" + c.RelativePath
}

func (c *CommitFileChange) Properties() map[string]any {
	return map[string]any{"modificationKind": c.Code, "relativePath": c.RelativePath}
}

func (b *Branch) EntityKind() EntityKind { return EntityBranch }
func (b *Branch) EntityKey() string      { return b.Name }
func (b *Branch) Properties() map[string]any {
	return map[string]any{"name": b.Name}
}

func (t *Tag) EntityKind() EntityKind { return EntityTag }
func (t *Tag) EntityKey() string      { return t.Label }
func (t *Tag) Properties() map[string]any {
	return map[string]any{"label": t.Label}
}

func putStamp(props map[string]any, name string, s *Stamp) {
	if s == nil {
		return
	}
	props[name] = s.Formatted
	props[name+"Epoch"] = s.Epoch
}
