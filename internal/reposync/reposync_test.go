package reposync

import (
	"context"
	"os/exec"
	"path/filepath"
	"strings"
	"testing"
)

// setupLocalOrigin creates a tiny local git repository with two
// commits, used as a stand-in for a GitHub remote so the test suite
// never touches the network.
func setupLocalOrigin(t *testing.T) (dir string, firstCommit, secondCommit string) {
	t.Helper()
	dir = t.TempDir()

	run := func(args ...string) string {
		t.Helper()
		cmd := exec.Command("git", args...)
		cmd.Dir = dir
		out, err := cmd.CombinedOutput()
		if err != nil {
			t.Fatalf("git %v failed: %v: %s", args, err, out)
		}
		return string(out)
	}

	run("init", "-q")
	run("config", "user.email", "test@example.com")
	run("config", "user.name", "test")
	run("commit", "--allow-empty", "-q", "-m", "first")
	firstCommit = strings.TrimSpace(run("rev-parse", "HEAD"))
	run("commit", "--allow-empty", "-q", "-m", "second")
	secondCommit = strings.TrimSpace(run("rev-parse", "HEAD"))

	return dir, firstCommit, secondCommit
}

func TestProvisionerEnsureClonesAndCheckouts(t *testing.T) {
	if _, err := exec.LookPath("git"); err != nil {
		t.Skip("git not available")
	}

	originDir, firstCommit, _ := setupLocalOrigin(t)
	artifactsRoot := t.TempDir()

	p := NewProvisioner(artifactsRoot, nil)
	// Swap the GitHub-URL clone step for a local filesystem clone so
	// the test is hermetic; production use always clones from
	// https://github.com/<repo>.git.
	p.runGit = func(ctx context.Context, dir string, args ...string) (string, error) {
		if len(args) > 0 && args[0] == "clone" {
			args = []string{"clone", "--depth", "1", originDir, args[len(args)-1]}
		}
		return runGit(ctx, dir, args...)
	}

	localPath, err := p.Ensure(context.Background(), "acme/widgets", firstCommit)
	if err != nil {
		t.Fatalf("Ensure failed: %v", err)
	}

	wantPath := filepath.Join(artifactsRoot, "acme__widgets")
	if localPath != wantPath {
		t.Fatalf("localPath = %q, want %q", localPath, wantPath)
	}

	head, err := runGit(context.Background(), localPath, "rev-parse", "HEAD")
	if err != nil {
		t.Fatalf("rev-parse failed: %v", err)
	}
	if strings.TrimSpace(head) != firstCommit {
		t.Fatalf("HEAD = %q, want %q", strings.TrimSpace(head), firstCommit)
	}
}

func TestProvisionerEnsureIsIdempotent(t *testing.T) {
	if _, err := exec.LookPath("git"); err != nil {
		t.Skip("git not available")
	}

	originDir, firstCommit, _ := setupLocalOrigin(t)
	artifactsRoot := t.TempDir()

	p := NewProvisioner(artifactsRoot, nil)
	p.runGit = func(ctx context.Context, dir string, args ...string) (string, error) {
		if len(args) > 0 && args[0] == "clone" {
			args = []string{"clone", "--depth", "1", originDir, args[len(args)-1]}
		}
		return runGit(ctx, dir, args...)
	}

	if _, err := p.Ensure(context.Background(), "acme/widgets", firstCommit); err != nil {
		t.Fatalf("first Ensure failed: %v", err)
	}
	if _, err := p.Ensure(context.Background(), "acme/widgets", firstCommit); err != nil {
		t.Fatalf("second Ensure (no-op path) failed: %v", err)
	}
}

func TestMutexLockerSerializesSameRepo(t *testing.T) {
	locker := newMutexLocker()
	unlock, err := locker.Lock(context.Background(), "acme/widgets")
	if err != nil {
		t.Fatalf("Lock failed: %v", err)
	}

	acquired := make(chan struct{})
	go func() {
		u2, err := locker.Lock(context.Background(), "acme/widgets")
		if err != nil {
			t.Errorf("second Lock failed: %v", err)
			return
		}
		u2()
		close(acquired)
	}()

	select {
	case <-acquired:
		t.Fatal("second Lock acquired before first was released")
	default:
	}

	unlock()
	<-acquired
}
