package history

import (
	"os"
	"path/filepath"
	"strings"

	"github.com/maxbolgarin/errm"
)

// ErrNotRepository is returned when a path holds no git repository.
var ErrNotRepository = errm.New("not a git repository")

// Location identifies a repository on disk.
type Location struct {
	// GitDir is the directory holding HEAD and the object store.
	GitDir string
	// Name is the project name: the directory that contains .git, or the
	// bare repository directory without its .git suffix.
	Name string
}

// Accepts reports whether path is the HEAD file of a .git directory. A scan
// is started for exactly that file.
func Accepts(path string) bool {
	if filepath.Base(path) != "HEAD" {
		return false
	}
	abs, err := filepath.Abs(path)
	if err != nil {
		return false
	}
	return filepath.Base(filepath.Dir(abs)) == ".git"
}

// Locate resolves a working tree, a .git directory, a .git/HEAD file or a
// bare repository directory to its Location.
func Locate(path string) (Location, error) {
	abs, err := filepath.Abs(path)
	if err != nil {
		return Location{}, errm.Wrap(err, "resolve path")
	}
	abs = filepath.Clean(abs)

	if Accepts(abs) {
		gitDir := filepath.Dir(abs)
		return Location{GitDir: gitDir, Name: filepath.Base(filepath.Dir(gitDir))}, nil
	}

	info, err := os.Stat(abs)
	if err != nil {
		return Location{}, errm.Wrap(err, "stat repository path")
	}
	if !info.IsDir() {
		return Location{}, errm.Wrap(ErrNotRepository, abs)
	}

	if filepath.Base(abs) == ".git" && isGitDir(abs) {
		return Location{GitDir: abs, Name: filepath.Base(filepath.Dir(abs))}, nil
	}

	dotGit := filepath.Join(abs, ".git")
	if isGitDir(dotGit) {
		return Location{GitDir: dotGit, Name: filepath.Base(abs)}, nil
	}

	if isGitDir(abs) {
		return Location{GitDir: abs, Name: strings.TrimSuffix(filepath.Base(abs), ".git")}, nil
	}

	return Location{}, errm.Wrap(ErrNotRepository, abs)
}

func isGitDir(dir string) bool {
	head, err := os.Stat(filepath.Join(dir, "HEAD"))
	if err != nil || head.IsDir() {
		return false
	}
	objects, err := os.Stat(filepath.Join(dir, "objects"))
	return err == nil && objects.IsDir()
}
