package storage

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/onexay/gitgraph/internal/types"
)

// exerciseStore runs the behaviour every Store must share.
func exerciseStore(t *testing.T, store Store) {
	t.Helper()
	ctx := context.Background()

	if _, err := store.Sink(ctx, ""); err == nil {
		t.Fatalf("expected validation error for empty namespace")
	}

	sink, err := store.Sink(ctx, "project")
	if err != nil {
		t.Fatalf("Sink: %v", err)
	}

	repo := &types.Repository{Name: "project", Path: "/work/project/.git"}
	commit := &types.Commit{SHA: "c1", Author: "A <a@x>", Timestamp: types.Timestamp{Date: "2024-03-01", Epoch: 1709287200000}}
	author := &types.Author{Ident: "A <a@x>", Name: "A", Email: "a@x"}

	var handles []Handle
	for _, e := range []types.Entity{repo, commit, author} {
		h, err := sink.Create(ctx, e)
		if err != nil {
			t.Fatalf("Create %s: %v", e.EntityKind(), err)
		}
		if h == "" {
			t.Fatalf("expected handle for %s", e.EntityKind())
		}
		handles = append(handles, h)
	}

	var conflict *ConflictError
	if _, err := sink.Create(ctx, commit); !errors.As(err, &conflict) {
		t.Fatalf("expected conflict on duplicate commit, got %v", err)
	}

	if err := sink.Link(ctx, handles[0], types.RelHasCommit, handles[1]); err != nil {
		t.Fatalf("Link: %v", err)
	}
	if err := sink.Link(ctx, handles[2], types.RelCommitted, handles[1]); err != nil {
		t.Fatalf("Link: %v", err)
	}

	var notFound *NotFoundError
	if err := sink.Link(ctx, handles[0], types.RelHasCommit, Handle("missing")); !errors.As(err, &notFound) {
		t.Fatalf("expected not found for unknown handle, got %v", err)
	}

	snap, ok := sink.(Snapshotter)
	if !ok {
		return
	}
	got, err := snap.Snapshot(ctx)
	if err != nil {
		t.Fatalf("Snapshot: %v", err)
	}
	if len(got.Nodes) != 3 {
		t.Fatalf("expected 3 nodes, got %d", len(got.Nodes))
	}
	for i, h := range handles {
		if got.Nodes[i].Handle != h {
			t.Fatalf("node %d: expected handle %s, got %s", i, h, got.Nodes[i].Handle)
		}
	}
	if got.Nodes[1].Kind != types.EntityCommit || got.Nodes[1].Key != "c1" {
		t.Fatalf("unexpected commit node %+v", got.Nodes[1])
	}
	if got.Nodes[1].Properties["sha"] != "c1" {
		t.Fatalf("expected sha property, got %v", got.Nodes[1].Properties["sha"])
	}
	if len(got.Edges) != 2 || got.Edges[1].Relation != types.RelCommitted {
		t.Fatalf("unexpected edges %+v", got.Edges)
	}

	// Opening the namespace again starts from an empty graph.
	sink, err = store.Sink(ctx, "project")
	if err != nil {
		t.Fatalf("Sink (reset): %v", err)
	}
	if _, err := sink.Create(ctx, commit); err != nil {
		t.Fatalf("Create after reset: %v", err)
	}
	got, err = sink.(Snapshotter).Snapshot(ctx)
	if err != nil {
		t.Fatalf("Snapshot after reset: %v", err)
	}
	if len(got.Nodes) != 1 || len(got.Edges) != 0 {
		t.Fatalf("expected reset namespace, got %d nodes %d edges", len(got.Nodes), len(got.Edges))
	}
}

func TestMemoryStore(t *testing.T) {
	store := NewMemoryStore()
	exerciseStore(t, store)

	sink, err := store.Namespace("project")
	if err != nil {
		t.Fatalf("Namespace: %v", err)
	}
	snap, _ := sink.Snapshot(context.Background())
	if snap.CountByKind()[types.EntityCommit] != 1 {
		t.Fatalf("expected the latest sink to be tracked")
	}

	var notFound *NotFoundError
	if _, err := store.Namespace("other"); !errors.As(err, &notFound) {
		t.Fatalf("expected not found for unknown namespace, got %v", err)
	}
}

func TestMemorySinkCancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	sink := NewMemorySink("project")
	if _, err := sink.Create(ctx, &types.Tag{Label: "v1"}); !errors.Is(err, context.Canceled) {
		t.Fatalf("expected context error, got %v", err)
	}
}

func TestMemorySinkRejectsEmptyKey(t *testing.T) {
	var validation *ValidationError
	if _, err := NewMemorySink("project").Create(context.Background(), &types.Commit{}); !errors.As(err, &validation) {
		t.Fatalf("expected validation error, got %v", err)
	}
}

func TestHandleFor(t *testing.T) {
	a, err := HandleFor("project", types.EntityCommit, "c1")
	if err != nil {
		t.Fatalf("HandleFor: %v", err)
	}
	b, _ := HandleFor("project", types.EntityCommit, "c1")
	if a != b {
		t.Fatalf("expected stable handle, got %s and %s", a, b)
	}
	if a[0] != 'b' {
		t.Fatalf("expected base32 multibase prefix, got %s", a)
	}
	for _, other := range []struct {
		ns   string
		kind types.EntityKind
		key  string
	}{
		{"other", types.EntityCommit, "c1"},
		{"project", types.EntityTag, "c1"},
		{"project", types.EntityCommit, "c2"},
	} {
		h, _ := HandleFor(other.ns, other.kind, other.key)
		if h == a {
			t.Fatalf("expected distinct handle for %+v", other)
		}
	}
}

func TestHandleForSeparatorsInKeys(t *testing.T) {
	a, err := HandleFor("a\nFile", types.EntityFile, "b")
	if err != nil {
		t.Fatalf("HandleFor: %v", err)
	}
	b, err := HandleFor("a", types.EntityFile, "File\nb")
	if err != nil {
		t.Fatalf("HandleFor: %v", err)
	}
	if a == b {
		t.Fatalf("expected distinct handles for shifted newline, got %s", a)
	}

	c, _ := HandleFor("a", types.EntityFile, "1:b")
	d, _ := HandleFor("a1:", types.EntityFile, "b")
	if c == d {
		t.Fatalf("expected distinct handles for shifted length prefix, got %s", c)
	}
}

func TestDiffDumps(t *testing.T) {
	if diff := DiffDumps("k1", "a\nb\n", "k2", "a\nb\n"); diff.Changed() || diff.Text != "" {
		t.Fatalf("expected empty diff, got %+v", diff)
	}

	diff := DiffDumps("k1", "commit c1\ncommit c0\n", "k2", "commit c1\ncommit c2\n")
	if diff.Added != 1 || diff.Removed != 1 {
		t.Fatalf("unexpected counts %+v", diff)
	}
	for _, want := range []string{"--- k1", "+++ k2", "+commit c2", "-commit c0"} {
		if !strings.Contains(diff.Text, want) {
			t.Fatalf("diff %q missing %q", diff.Text, want)
		}
	}

	first := DiffDumps("", "", "k1", "repository r\ncommit c1\n")
	if first.Added != 2 || first.Removed != 0 || !strings.Contains(first.Text, "--- /dev/null") {
		t.Fatalf("unexpected first diff %+v", first)
	}
}
