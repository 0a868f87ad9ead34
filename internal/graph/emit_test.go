package graph

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/onexay/gitgraph/internal/history"
	"github.com/onexay/gitgraph/internal/storage"
	"github.com/onexay/gitgraph/internal/types"
)

type failingSink struct {
	storage.Sink
	failOn types.EntityKind
}

func (f failingSink) Create(ctx context.Context, e types.Entity) (storage.Handle, error) {
	if e.EntityKind() == f.failOn {
		return "", errors.New("disk full")
	}
	return f.Sink.Create(ctx, e)
}

type flushingSink struct {
	storage.Sink
	flushes int
}

func (f *flushingSink) Flush(context.Context) error {
	f.flushes++
	return nil
}

func TestEmitFlushesSink(t *testing.T) {
	g, err := newTestBuilder().Build(repo, threeCommits(), nil, nil)
	require.NoError(t, err)

	sink := &flushingSink{Sink: storage.NewMemorySink(repo.Name)}
	_, err = Emit(context.Background(), g, sink)
	require.NoError(t, err)
	require.Equal(t, 1, sink.flushes)

	failing := &flushingSink{Sink: failingSink{Sink: storage.NewMemorySink(repo.Name), failOn: types.EntityFile}}
	_, err = Emit(context.Background(), g, failing)
	require.Error(t, err)
	require.Equal(t, 1, failing.flushes)
}

func TestEmit(t *testing.T) {
	g, err := newTestBuilder().Build(repo, threeCommits(),
		[]history.RawBranch{{Ref: "refs/heads/main", HeadSHA: "c3"}}, nil)
	require.NoError(t, err)

	sink := storage.NewMemorySink(repo.Name)
	stats, err := Emit(context.Background(), g, sink)
	require.NoError(t, err)
	require.Equal(t, EmitStats{Entities: len(g.Entities()), Links: len(g.Links())}, stats)

	snap, err := sink.Snapshot(context.Background())
	require.NoError(t, err)
	require.Len(t, snap.Nodes, len(g.Entities()))
	for i, e := range g.Entities() {
		require.Equal(t, e.EntityKind(), snap.Nodes[i].Kind)
		require.Equal(t, e.EntityKey(), snap.Nodes[i].Key)
	}
	require.Equal(t, types.EntityRepository, snap.Nodes[0].Kind)

	byHandle := make(map[storage.Handle]storage.Node)
	for _, n := range snap.Nodes {
		byHandle[n.Handle] = n
	}
	var heads []string
	for _, e := range snap.Edges {
		if e.Relation == types.RelHasHead {
			heads = append(heads, byHandle[e.From].Key+"->"+byHandle[e.To].Key)
		}
	}
	require.Equal(t, []string{"heads/main->c3"}, heads)

	commit := snap.Nodes[1]
	require.Equal(t, types.EntityCommit, commit.Kind)
	c1, _ := g.Commit("c1")
	require.Equal(t, c1.Timestamp.DateTime, commit.Properties["dateTime"])
	require.Equal(t, c1.Timestamp.Date, commit.Properties["date"])
	require.Equal(t, c1.Timestamp.Time, commit.Properties["time"])
	require.Equal(t, c1.Timestamp.Epoch, commit.Properties["epoch"])

	file := snap.Nodes[4]
	require.Equal(t, types.EntityFile, file.Kind)
	require.Equal(t, "f.txt", file.Properties["relativePath"])
	require.Contains(t, file.Properties, "createdAt")
	require.Contains(t, file.Properties, "deletedAtEpoch")
}

func TestEmitSinkFailure(t *testing.T) {
	g, err := newTestBuilder().Build(repo, threeCommits(), nil, nil)
	require.NoError(t, err)

	sink := failingSink{Sink: storage.NewMemorySink(repo.Name), failOn: types.EntityFile}
	stats, err := Emit(context.Background(), g, sink)
	require.Error(t, err)
	require.True(t, strings.Contains(err.Error(), "File f.txt"), err.Error())
	require.Equal(t, 4, stats.Entities)
	require.Zero(t, stats.Links)
}

func TestEmitCancelled(t *testing.T) {
	g, err := newTestBuilder().Build(repo, threeCommits(), nil, nil)
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err = Emit(ctx, g, storage.NewMemorySink(repo.Name))
	require.ErrorIs(t, err, context.Canceled)
}

func TestRender(t *testing.T) {
	g, err := newTestBuilder().Build(repo, threeCommits()[1:],
		[]history.RawBranch{{Ref: "refs/heads/main", HeadSHA: "c3"}},
		[]history.RawTag{{Ref: "refs/tags/v1", TargetSHA: "c1"}})
	require.NoError(t, err)

	want := strings.Join([]string{
		"repository project /work/project/.git",
		"commit c2 2024-03-01 13:00:00 +0200 A <a@x>",
		"  change M f.txt",
		"commit c3 2024-03-01 14:00:00 +0200 B <b@y>",
		"  parent c2",
		"  change D f.txt",
		"author A <a@x> commits=1",
		"author B <b@y> commits=1",
		`file f.txt changes=2 created=- modified="2024-03-01 13:00:00 +0200" deleted="2024-03-01 14:00:00 +0200"`,
		"branch heads/main -> c3",
		"tag v1 -> (unresolved)",
		"diagnostic missing_parent: c2 -> c1",
		"diagnostic missing_tag_target: v1 -> c1",
		"",
	}, "\n")
	require.Equal(t, want, RenderString(g))
}
