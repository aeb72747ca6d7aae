// Package reposync provisions repository working trees at a given
// commit: shallow clone, fetch-if-missing, detached-HEAD checkout,
// idempotent and safe for concurrent cases against different repos.
package reposync

import (
	"context"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"sync"

	"github.com/cockroachdb/errors"
)

// Locker serializes provisioning of one repo_id across processes. The
// in-process implementation (mutexLocker) is always available; a
// Redis-SETNX-backed implementation is used instead when the caller
// configures one, so multiple runner processes sharing one artifacts
// root don't race on the same clone.
type Locker interface {
	Lock(ctx context.Context, repoID string) (unlock func(), err error)
}

// Provisioner ensures a repository is cloned and checked out to a
// given commit beneath Dir, the configurable artifacts root's "repos"
// subdirectory.
type Provisioner struct {
	Dir    string
	Locker Locker

	runGit func(ctx context.Context, dir string, args ...string) (string, error)
}

// NewProvisioner builds a Provisioner rooted at dir. If locker is nil,
// an in-process per-repo mutex is used.
func NewProvisioner(dir string, locker Locker) *Provisioner {
	if locker == nil {
		locker = newMutexLocker()
	}
	return &Provisioner{Dir: dir, Locker: locker, runGit: runGit}
}

// Ensure clones repo (owner/name) if its local directory does not yet
// exist, fetches commit if missing locally, and checks it out in
// detached-HEAD mode. It is a no-op on steps 1-3 if the working tree
// already has commit checked out as HEAD. Returns the local path.
func (p *Provisioner) Ensure(ctx context.Context, repo, commit string) (string, error) {
	unlock, err := p.Locker.Lock(ctx, repo)
	if err != nil {
		return "", errors.Wrapf(err, "reposync: acquire lock for %s", repo)
	}
	defer unlock()

	localPath := filepath.Join(p.Dir, strings.ReplaceAll(repo, "/", "__"))

	if _, statErr := os.Stat(localPath); statErr != nil {
		if !os.IsNotExist(statErr) {
			return "", errors.Wrapf(statErr, "reposync: stat %s", localPath)
		}
		url := fmt.Sprintf("https://github.com/%s.git", repo)
		if _, err := p.runGit(ctx, "", "clone", "--depth", "1", url, localPath); err != nil {
			return "", errors.Wrapf(err, "reposync: clone %s", repo)
		}
	}

	head, _ := p.runGit(ctx, localPath, "rev-parse", "HEAD")
	if strings.TrimSpace(head) == commit {
		return localPath, nil
	}

	if !p.hasCommit(ctx, localPath, commit) {
		if _, err := p.runGit(ctx, localPath, "fetch", "--depth", "1", "origin", commit); err != nil {
			return "", errors.Wrapf(err, "reposync: fetch %s@%s", repo, commit)
		}
	}

	if _, err := p.runGit(ctx, localPath, "checkout", commit); err != nil {
		return "", errors.Wrapf(err, "reposync: checkout %s@%s", repo, commit)
	}

	return localPath, nil
}

func (p *Provisioner) hasCommit(ctx context.Context, localPath, commit string) bool {
	_, err := p.runGit(ctx, localPath, "cat-file", "-e", commit+"^{commit}")
	return err == nil
}

func runGit(ctx context.Context, dir string, args ...string) (string, error) {
	full := append([]string{}, args...)
	if dir != "" {
		full = append([]string{"-C", dir}, full...)
	}
	cmd := exec.CommandContext(ctx, "git", full...)
	out, err := cmd.CombinedOutput()
	if err != nil {
		return string(out), fmt.Errorf("git %s failed: %w: %s", strings.Join(args, " "), err, strings.TrimSpace(string(out)))
	}
	return string(out), nil
}

// mutexLocker is the in-process Locker used when no distributed lock
// is configured.
type mutexLocker struct {
	mu    sync.Mutex
	locks map[string]*sync.Mutex
}

func newMutexLocker() *mutexLocker {
	return &mutexLocker{locks: make(map[string]*sync.Mutex)}
}

func (m *mutexLocker) Lock(_ context.Context, repoID string) (func(), error) {
	m.mu.Lock()
	l, ok := m.locks[repoID]
	if !ok {
		l = &sync.Mutex{}
		m.locks[repoID] = l
	}
	m.mu.Unlock()

	l.Lock()
	return l.Unlock, nil
}
