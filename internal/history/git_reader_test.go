package history

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/go-git/go-git/v5"
	"github.com/go-git/go-git/v5/plumbing"
	"github.com/go-git/go-git/v5/plumbing/object"
	"github.com/stretchr/testify/require"
)

type fixture struct {
	dir  string
	repo *git.Repository
	c1   plumbing.Hash
	c2   plumbing.Hash
	c3   plumbing.Hash
}

// newFixture creates c1 (adds f.txt), c2 (modifies f.txt) and c3 (deletes
// f.txt, adds g.txt) on master, a "dev" branch at c2, a lightweight tag v1.0
// at c1 and an annotated tag v2.0 at c3.
func newFixture(t *testing.T) fixture {
	t.Helper()
	dir := filepath.Join(t.TempDir(), "project")
	repo, err := git.PlainInit(dir, false)
	require.NoError(t, err)
	wt, err := repo.Worktree()
	require.NoError(t, err)

	base := time.Date(2024, 3, 1, 10, 0, 0, 0, time.UTC)
	commit := func(msg string, name, email string, at time.Time) plumbing.Hash {
		hash, err := wt.Commit(msg, &git.CommitOptions{
			Author: &object.Signature{Name: name, Email: email, When: at},
		})
		require.NoError(t, err)
		return hash
	}
	write := func(name, content string) {
		require.NoError(t, os.WriteFile(filepath.Join(dir, name), []byte(content), 0o644))
		_, err := wt.Add(name)
		require.NoError(t, err)
	}

	write("f.txt", "one\n")
	c1 := commit("add f", "A", "a@x", base)
	write("f.txt", "two\n")
	c2 := commit("change f", "A", "a@x", base.Add(time.Hour))
	_, err = wt.Remove("f.txt")
	require.NoError(t, err)
	write("g.txt", "three\n")
	c3 := commit("drop f", "B", "b@y", base.Add(2*time.Hour))

	require.NoError(t, repo.Storer.SetReference(plumbing.NewHashReference(plumbing.NewBranchReferenceName("dev"), c2)))
	_, err = repo.CreateTag("v1.0", c1, nil)
	require.NoError(t, err)
	_, err = repo.CreateTag("v2.0", c3, &git.CreateTagOptions{
		Message: "release",
		Tagger:  &object.Signature{Name: "B", Email: "b@y", When: base.Add(3 * time.Hour)},
	})
	require.NoError(t, err)

	return fixture{dir: dir, repo: repo, c1: c1, c2: c2, c3: c3}
}

func openFixture(t *testing.T, f fixture, rng string) *GitReader {
	t.Helper()
	loc, err := Locate(f.dir)
	require.NoError(t, err)
	reader, err := OpenGitReader(loc, rng)
	require.NoError(t, err)
	return reader
}

func TestGitReaderListCommits(t *testing.T) {
	f := newFixture(t)
	reader := openFixture(t, f, "")

	commits, err := reader.ListCommits(context.Background())
	require.NoError(t, err)
	require.Len(t, commits, 3)

	bySHA := make(map[string]RawCommit, len(commits))
	for _, c := range commits {
		bySHA[c.SHA] = c
	}

	first := bySHA[f.c1.String()]
	require.Equal(t, "A <a@x>", first.Author)
	require.Equal(t, "add f", first.Message)
	require.Empty(t, first.Parents)
	require.Equal(t, []RawChange{{Kind: "A", Path: "f.txt"}}, first.Changes)

	second := bySHA[f.c2.String()]
	require.Equal(t, []string{f.c1.String()}, second.Parents)
	require.Equal(t, []RawChange{{Kind: "M", Path: "f.txt"}}, second.Changes)

	third := bySHA[f.c3.String()]
	require.Equal(t, "B <b@y>", third.Author)
	require.ElementsMatch(t, []RawChange{{Kind: "D", Path: "f.txt"}, {Kind: "A", Path: "g.txt"}}, third.Changes)
	require.True(t, third.Date.Equal(time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)))
}

func TestGitReaderRange(t *testing.T) {
	f := newFixture(t)

	reader := openFixture(t, f, f.c1.String()+"..HEAD")
	commits, err := reader.ListCommits(context.Background())
	require.NoError(t, err)
	require.Len(t, commits, 2)
	for _, c := range commits {
		require.NotEqual(t, f.c1.String(), c.SHA)
	}

	reader = openFixture(t, f, "dev")
	commits, err = reader.ListCommits(context.Background())
	require.NoError(t, err)
	require.Len(t, commits, 2)

	reader = openFixture(t, f, "no-such-rev")
	_, err = reader.ListCommits(context.Background())
	require.Error(t, err)
}

func TestGitReaderBranchesAndTags(t *testing.T) {
	f := newFixture(t)
	reader := openFixture(t, f, "")
	ctx := context.Background()

	branches, err := reader.ListBranches(ctx)
	require.NoError(t, err)
	require.Equal(t, []RawBranch{
		{Ref: "refs/heads/dev", HeadSHA: f.c2.String()},
		{Ref: "refs/heads/master", HeadSHA: f.c3.String()},
	}, branches)

	tags, err := reader.ListTags(ctx)
	require.NoError(t, err)
	require.Equal(t, []RawTag{
		{Ref: "refs/tags/v1.0", TargetSHA: f.c1.String()},
		{Ref: "refs/tags/v2.0", TargetSHA: f.c3.String()},
	}, tags)
}

func TestGitReaderEmptyRepository(t *testing.T) {
	dir := t.TempDir()
	_, err := git.PlainInit(dir, false)
	require.NoError(t, err)

	loc, err := Locate(dir)
	require.NoError(t, err)
	reader, err := OpenGitReader(loc, "")
	require.NoError(t, err)

	commits, err := reader.ListCommits(context.Background())
	require.NoError(t, err)
	require.Empty(t, commits)
}

func TestStaticReaderCopies(t *testing.T) {
	reader := &StaticReader{Commits: []RawCommit{{SHA: "c1"}}}
	commits, err := reader.ListCommits(context.Background())
	require.NoError(t, err)
	commits[0].SHA = "changed"
	require.Equal(t, "c1", reader.Commits[0].SHA)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err = reader.ListBranches(ctx)
	require.ErrorIs(t, err, context.Canceled)
}
