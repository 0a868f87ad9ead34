package storage

import (
	"strings"

	"github.com/pmezard/go-difflib/difflib"
)

// DumpDiff describes how a graph dump changed between two archived scans.
type DumpDiff struct {
	From    string `json:"from,omitempty"`
	To      string `json:"to"`
	Added   int    `json:"added"`
	Removed int    `json:"removed"`
	// Text is a unified diff, empty when nothing changed.
	Text string `json:"text,omitempty"`
}

// Changed reports whether any line differs.
func (d DumpDiff) Changed() bool {
	return d.Added > 0 || d.Removed > 0
}

// DiffDumps compares the dump archived under fromKey with the one about to be
// archived under toKey. An empty fromKey means there is no previous scan.
func DiffDumps(fromKey, previous, toKey, current string) DumpDiff {
	out := DumpDiff{From: fromKey, To: toKey}
	if previous == current {
		return out
	}

	a := splitLines(previous)
	b := splitLines(current)

	for _, op := range difflib.NewMatcher(a, b).GetOpCodes() {
		switch op.Tag {
		case 'r':
			out.Removed += op.I2 - op.I1
			out.Added += op.J2 - op.J1
		case 'd':
			out.Removed += op.I2 - op.I1
		case 'i':
			out.Added += op.J2 - op.J1
		}
	}

	fromFile := fromKey
	if fromFile == "" {
		fromFile = "/dev/null"
	}
	text, err := difflib.GetUnifiedDiffString(difflib.UnifiedDiff{
		A:        a,
		B:        b,
		FromFile: fromFile,
		ToFile:   toKey,
		Context:  3,
	})
	if err != nil {
		text = current
	}
	out.Text = strings.TrimSpace(text)
	return out
}

func splitLines(s string) []string {
	if s == "" {
		return nil
	}
	return difflib.SplitLines(strings.TrimSuffix(s, "\n"))
}
