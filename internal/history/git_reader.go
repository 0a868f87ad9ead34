package history

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"

	"github.com/go-git/go-git/v5"
	"github.com/go-git/go-git/v5/plumbing"
	"github.com/go-git/go-git/v5/plumbing/object"
	"github.com/go-git/go-git/v5/utils/merkletrie"
	"github.com/maxbolgarin/errm"
	"github.com/maxbolgarin/logze/v2"
)

// GitReader reads history from a local repository with go-git.
//
// The range bounds which commits are visited:
//
//	""           every commit reachable from any ref
//	"<rev>"      commits reachable from rev
//	"<a>..<b>"   commits reachable from b but not from a (b defaults to HEAD)
type GitReader struct {
	repo *git.Repository
	rng  string
	log  logze.Logger
}

// OpenGitReader opens the repository at loc.
func OpenGitReader(loc Location, rng string) (*GitReader, error) {
	repo, err := git.PlainOpen(loc.GitDir)
	if err != nil {
		return nil, errm.Wrap(err, "open repository")
	}
	log := logze.With("component", "history", "repository", loc.Name)
	rng = strings.TrimSpace(rng)
	if rng != "" {
		log.Info("reading with configured range", "range", rng)
	}
	return &GitReader{repo: repo, rng: rng, log: log}, nil
}

func (r *GitReader) ListCommits(ctx context.Context) ([]RawCommit, error) {
	iter, excluded, err := r.commitIter(ctx)
	if err != nil {
		return nil, err
	}
	if iter == nil {
		return []RawCommit{}, nil
	}
	defer iter.Close()

	var out []RawCommit
	err = iter.ForEach(func(c *object.Commit) error {
		if err := ctx.Err(); err != nil {
			return err
		}
		if _, skip := excluded[c.Hash]; skip {
			return nil
		}
		raw, err := r.toRaw(c)
		if err != nil {
			return errm.Wrap(err, "read commit "+c.Hash.String())
		}
		out = append(out, raw)
		return nil
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

// ListBranches returns local and remote-tracking branches sorted by ref.
func (r *GitReader) ListBranches(ctx context.Context) ([]RawBranch, error) {
	refs, err := r.repo.References()
	if err != nil {
		return nil, errm.Wrap(err, "list references")
	}
	defer refs.Close()

	var out []RawBranch
	err = refs.ForEach(func(ref *plumbing.Reference) error {
		if err := ctx.Err(); err != nil {
			return err
		}
		if ref.Type() != plumbing.HashReference {
			return nil
		}
		if !ref.Name().IsBranch() && !ref.Name().IsRemote() {
			return nil
		}
		out = append(out, RawBranch{Ref: ref.Name().String(), HeadSHA: ref.Hash().String()})
		return nil
	})
	if err != nil {
		return nil, err
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Ref < out[j].Ref })
	return out, nil
}

// ListTags returns tags sorted by ref. Annotated tags are peeled to the
// commit they point at.
func (r *GitReader) ListTags(ctx context.Context) ([]RawTag, error) {
	tags, err := r.repo.Tags()
	if err != nil {
		return nil, errm.Wrap(err, "list tags")
	}
	defer tags.Close()

	var out []RawTag
	err = tags.ForEach(func(ref *plumbing.Reference) error {
		if err := ctx.Err(); err != nil {
			return err
		}
		target := ref.Hash()
		if tag, err := r.repo.TagObject(target); err == nil {
			commit, err := tag.Commit()
			if err != nil {
				r.log.Warn("cannot peel annotated tag", "tag", ref.Name().String(), "error", err)
			} else {
				target = commit.Hash
			}
		}
		out = append(out, RawTag{Ref: ref.Name().String(), TargetSHA: target.String()})
		return nil
	})
	if err != nil {
		return nil, err
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Ref < out[j].Ref })
	return out, nil
}

// commitIter returns a nil iterator for a repository without commits.
func (r *GitReader) commitIter(ctx context.Context) (object.CommitIter, map[plumbing.Hash]struct{}, error) {
	if r.rng == "" {
		iter, err := r.repo.Log(&git.LogOptions{All: true, Order: git.LogOrderCommitterTime})
		if errors.Is(err, plumbing.ErrReferenceNotFound) {
			return nil, nil, nil
		}
		if err != nil {
			return nil, nil, errm.Wrap(err, "walk history")
		}
		return iter, nil, nil
	}

	from, to, isRange := strings.Cut(r.rng, "..")
	if !isRange {
		start, err := r.resolve(r.rng)
		if err != nil {
			return nil, nil, err
		}
		iter, err := r.repo.Log(&git.LogOptions{From: start, Order: git.LogOrderCommitterTime})
		if err != nil {
			return nil, nil, errm.Wrap(err, "walk history")
		}
		return iter, nil, nil
	}

	if strings.TrimSpace(to) == "" {
		to = "HEAD"
	}
	end, err := r.resolve(to)
	if err != nil {
		return nil, nil, err
	}
	excluded := make(map[plumbing.Hash]struct{})
	if strings.TrimSpace(from) != "" {
		start, err := r.resolve(from)
		if err != nil {
			return nil, nil, err
		}
		if err := r.reachable(ctx, start, excluded); err != nil {
			return nil, nil, err
		}
	}
	iter, err := r.repo.Log(&git.LogOptions{From: end, Order: git.LogOrderCommitterTime})
	if err != nil {
		return nil, nil, errm.Wrap(err, "walk history")
	}
	return iter, excluded, nil
}

func (r *GitReader) resolve(rev string) (plumbing.Hash, error) {
	hash, err := r.repo.ResolveRevision(plumbing.Revision(strings.TrimSpace(rev)))
	if err != nil {
		return plumbing.ZeroHash, errm.Wrap(err, fmt.Sprintf("resolve revision %q", rev))
	}
	return *hash, nil
}

func (r *GitReader) reachable(ctx context.Context, start plumbing.Hash, into map[plumbing.Hash]struct{}) error {
	iter, err := r.repo.Log(&git.LogOptions{From: start})
	if err != nil {
		return errm.Wrap(err, "walk excluded history")
	}
	defer iter.Close()
	return iter.ForEach(func(c *object.Commit) error {
		if err := ctx.Err(); err != nil {
			return err
		}
		into[c.Hash] = struct{}{}
		return nil
	})
}

func (r *GitReader) toRaw(c *object.Commit) (RawCommit, error) {
	parents := make([]string, 0, len(c.ParentHashes))
	for _, p := range c.ParentHashes {
		parents = append(parents, p.String())
	}
	changes, err := r.changes(c)
	if err != nil {
		return RawCommit{}, err
	}
	return RawCommit{
		SHA:     c.Hash.String(),
		Author:  ident(c.Author),
		Message: c.Message,
		Date:    c.Author.When,
		Parents: parents,
		Changes: changes,
	}, nil
}

// changes diffs a commit against its first parent, or the empty tree.
func (r *GitReader) changes(c *object.Commit) ([]RawChange, error) {
	tree, err := c.Tree()
	if err != nil {
		return nil, errm.Wrap(err, "load tree")
	}
	parentTree := &object.Tree{}
	if c.NumParents() > 0 {
		parent, err := c.Parent(0)
		switch {
		case errors.Is(err, plumbing.ErrObjectNotFound):
			// shallow history, treat as a root commit
		case err != nil:
			return nil, errm.Wrap(err, "load parent")
		default:
			if parentTree, err = parent.Tree(); err != nil {
				return nil, errm.Wrap(err, "load parent tree")
			}
		}
	}

	diff, err := object.DiffTree(parentTree, tree)
	if err != nil {
		return nil, errm.Wrap(err, "diff trees")
	}
	out := make([]RawChange, 0, len(diff))
	for _, change := range diff {
		action, err := change.Action()
		if err != nil {
			return nil, errm.Wrap(err, "classify change")
		}
		switch action {
		case merkletrie.Insert:
			out = append(out, RawChange{Kind: "A", Path: change.To.Name})
		case merkletrie.Delete:
			out = append(out, RawChange{Kind: "D", Path: change.From.Name})
		case merkletrie.Modify:
			out = append(out, RawChange{Kind: "M", Path: change.To.Name})
		}
	}
	return out, nil
}

func ident(sig object.Signature) string {
	if sig.Name == "" && sig.Email == "" {
		return ""
	}
	return fmt.Sprintf("%s <%s>", sig.Name, sig.Email)
}
