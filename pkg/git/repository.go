/*
Copyright 2022 Adolfo García Veytia

Licensed under the Apache License, Version 2.0 (the "License");
you may not use this file except in compliance with the License.
You may obtain a copy of the License at

    http://www.apache.org/licenses/LICENSE-2.0

Unless required by applicable law or agreed to in writing, software
distributed under the License is distributed on an "AS IS" BASIS,
WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
See the License for the specific language governing permissions and
limitations under the License.
*/

package git

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"strings"

	gogit "github.com/go-git/go-git/v5"
	"github.com/go-git/go-git/v5/plumbing"
	"github.com/go-git/go-git/v5/plumbing/object"
	"github.com/sirupsen/logrus"
	"sigs.k8s.io/release-utils/util"

	"sigs.k8s.io/ccanywhere/pkg/run"
)

const defaultRemote = "origin"

type Repository struct {
	Options Options
}

func NewRepository(dir string) *Repository {
	return &Repository{
		Options: Options{
			CWD:    dir,
			Remote: defaultRemote,
		},
	}
}

type Options struct {
	CWD    string
	Remote string
}

func (r *Repository) open() (*gogit.Repository, error) {
	repo, err := gogit.PlainOpenWithOptions(r.Options.CWD, &gogit.PlainOpenOptions{
		DetectDotGit: true,
	})
	if err != nil {
		return nil, fmt.Errorf("opening git repo at %s: %w", r.Options.CWD, err)
	}
	return repo, nil
}

func (r *Repository) remote() string {
	if r.Options.Remote == "" {
		return defaultRemote
	}
	return r.Options.Remote
}

// SourceURL returns the repository URL
func (r *Repository) SourceURL() (string, error) {
	if !util.Exists(filepath.Join(r.Options.CWD, "/.git")) {
		logrus.Debugf("Directory %s is not a git repository", r.Options.CWD)
		return "", nil
	}

	repo, err := r.open()
	if err != nil {
		return "", err
	}

	remote, err := repo.Remote(r.remote())
	if err != nil {
		return "", fmt.Errorf("getting repository remote: %w", err)
	}

	if len(remote.Config().URLs) == 0 {
		return "", errors.New("repo remote does not have URLs")
	}

	return remote.Config().URLs[0], nil
}

// Head returns the commit sha HEAD points to and the checked out branch.
// The branch is empty when HEAD is detached.
func (r *Repository) Head() (revision, branch string, err error) {
	repo, err := r.open()
	if err != nil {
		return "", "", err
	}
	ref, err := repo.Head()
	if err != nil {
		return "", "", fmt.Errorf("reading HEAD: %w", err)
	}
	if ref.Name().IsBranch() {
		branch = ref.Name().Short()
	}
	return ref.Hash().String(), branch, nil
}

// Fetch updates the remote tracking refs. Being up to date is not an error.
func (r *Repository) Fetch(ctx context.Context) error {
	repo, err := r.open()
	if err != nil {
		return err
	}
	err = repo.FetchContext(ctx, &gogit.FetchOptions{RemoteName: r.remote()})
	if err != nil && !errors.Is(err, gogit.NoErrAlreadyUpToDate) {
		return fmt.Errorf("fetching from %s: %w", r.remote(), err)
	}
	return nil
}

// CommitInfo returns the metadata of a revision
func (r *Repository) CommitInfo(rev string) (*run.CommitInfo, error) {
	repo, err := r.open()
	if err != nil {
		return nil, err
	}
	commit, err := resolveCommit(repo, rev)
	if err != nil {
		return nil, err
	}
	return commitInfo(commit), nil
}

func commitInfo(c *object.Commit) *run.CommitInfo {
	return &run.CommitInfo{
		SHA:     c.Hash.String(),
		Author:  c.Author.Name,
		Email:   c.Author.Email,
		Message: strings.TrimSpace(c.Message),
		Time:    c.Author.When,
	}
}

func resolveCommit(repo *gogit.Repository, rev string) (*object.Commit, error) {
	if rev == "" {
		rev = "HEAD"
	}
	hash, err := repo.ResolveRevision(plumbing.Revision(rev))
	if err != nil {
		return nil, fmt.Errorf("resolving revision %q: %w", rev, err)
	}
	commit, err := repo.CommitObject(*hash)
	if err != nil {
		return nil, fmt.Errorf("reading commit %s: %w", hash, err)
	}
	return commit, nil
}

// FileChange summarizes the lines changed in one file
type FileChange struct {
	Path      string
	Additions int
	Deletions int
}

// Diff is the set of changes between two commits
type Diff struct {
	Base  string
	Head  *run.CommitInfo
	Files []FileChange
	Patch string
}

// Additions returns the lines added across all files
func (d *Diff) Additions() (n int) {
	for _, f := range d.Files {
		n += f.Additions
	}
	return n
}

// Deletions returns the lines removed across all files
func (d *Diff) Deletions() (n int) {
	for _, f := range d.Files {
		n += f.Deletions
	}
	return n
}

// Diff computes the changes from base to head. An empty head means HEAD,
// an empty base means the first parent of head. Root commits are diffed
// against the empty tree.
func (r *Repository) Diff(base, head string) (*Diff, error) {
	repo, err := r.open()
	if err != nil {
		return nil, err
	}

	headCommit, err := resolveCommit(repo, head)
	if err != nil {
		return nil, err
	}
	headTree, err := headCommit.Tree()
	if err != nil {
		return nil, fmt.Errorf("reading tree of %s: %w", headCommit.Hash, err)
	}

	var baseTree *object.Tree
	baseRev := ""
	switch {
	case base != "":
		baseCommit, err := resolveCommit(repo, base)
		if err != nil {
			return nil, err
		}
		baseRev = baseCommit.Hash.String()
		if baseTree, err = baseCommit.Tree(); err != nil {
			return nil, fmt.Errorf("reading tree of %s: %w", baseCommit.Hash, err)
		}
	case headCommit.NumParents() > 0:
		parent, err := headCommit.Parent(0)
		if err != nil {
			return nil, fmt.Errorf("reading parent of %s: %w", headCommit.Hash, err)
		}
		baseRev = parent.Hash.String()
		if baseTree, err = parent.Tree(); err != nil {
			return nil, fmt.Errorf("reading tree of %s: %w", parent.Hash, err)
		}
	default:
		logrus.Debugf("Commit %s has no parents, diffing against the empty tree", headCommit.Hash)
	}

	changes, err := object.DiffTree(baseTree, headTree)
	if err != nil {
		return nil, fmt.Errorf("diffing trees: %w", err)
	}
	patch, err := changes.Patch()
	if err != nil {
		return nil, fmt.Errorf("generating patch: %w", err)
	}

	d := &Diff{
		Base:  baseRev,
		Head:  commitInfo(headCommit),
		Files: []FileChange{},
		Patch: patch.String(),
	}
	for _, s := range patch.Stats() {
		d.Files = append(d.Files, FileChange{
			Path: s.Name, Additions: s.Addition, Deletions: s.Deletion,
		})
	}
	logrus.Infof(
		"Diff %s..%s: %d files, +%d -%d", run.ShortSHA(baseRev), run.ShortSHA(d.Head.SHA),
		len(d.Files), d.Additions(), d.Deletions(),
	)
	return d, nil
}
