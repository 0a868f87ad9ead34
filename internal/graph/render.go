package graph

import (
	"fmt"
	"io"
	"strings"

	"github.com/onexay/gitgraph/internal/types"
)

const unresolvedRef = "(unresolved)"

// Render writes a line-oriented dump of g. The output depends only on the
// graph contents, so dumps of consecutive scans can be diffed.
func Render(w io.Writer, g *Graph) error {
	p := &printer{w: w}
	p.printf("repository %s %s\n", g.Repository.Name, g.Repository.Path)
	for _, c := range g.Commits() {
		p.printf("commit %s %s %s\n", c.SHA, c.Timestamp.DateTime, c.Author)
		for _, parent := range c.Parents {
			p.printf("  parent %s\n", parent.SHA)
		}
		for _, ch := range c.Changes {
			p.printf("  change %s %s\n", changeCode(ch), ch.RelativePath)
		}
	}
	for _, a := range g.Authors() {
		p.printf("author %s commits=%d\n", a.Ident, len(a.Commits))
	}
	for _, f := range g.Files() {
		p.printf("file %s changes=%d created=%s modified=%s deleted=%s\n",
			f.RelativePath, len(f.Changes), stamp(f.CreatedAt), stamp(f.LastModifiedAt), stamp(f.DeletedAt))
	}
	for _, b := range g.Branches() {
		p.printf("branch %s -> %s\n", b.Name, commitRef(b.Head))
	}
	for _, t := range g.Tags() {
		p.printf("tag %s -> %s\n", t.Label, commitRef(t.Commit))
	}
	for _, d := range g.Diagnostics() {
		p.printf("diagnostic %s\n", d)
	}
	return p.err
}

// RenderString is Render into a string.
func RenderString(g *Graph) string {
	var sb strings.Builder
	_ = Render(&sb, g)
	return sb.String()
}

type printer struct {
	w   io.Writer
	err error
}

func (p *printer) printf(format string, args ...any) {
	if p.err != nil {
		return
	}
	_, p.err = fmt.Fprintf(p.w, format, args...)
}

func changeCode(ch *types.CommitFileChange) string {
	if ch.Code == "" {
		return "?"
	}
	return ch.Code
}

func stamp(s *types.Stamp) string {
	if s == nil {
		return "-"
	}
	return fmt.Sprintf("%q", s.Formatted)
}

func commitRef(c *types.Commit) string {
	if c == nil {
		return unresolvedRef
	}
	return c.SHA
}
