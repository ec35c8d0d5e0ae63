// Package gitrepo commits exported files when the export directory lives in a
// git repository.
package gitrepo

import (
	"context"
	"fmt"
	"os/exec"
	"path/filepath"
	"strings"
)

type CommitResult struct {
	IsRepo    bool   `json:"isRepo"`
	Committed bool   `json:"committed"`
	Head      string `json:"head,omitempty"`
}

// CommitPaths stages paths and commits them with message. Outside a repository it
// does nothing. Committed is false when the paths carry no change.
func CommitPaths(ctx context.Context, dir string, paths []string, message string) (CommitResult, error) {
	dir = filepath.Clean(dir)
	if _, ok, err := findGitDir(absOr(dir)); err != nil || !ok {
		return CommitResult{}, err
	}
	root, err := runGit(ctx, dir, "rev-parse", "--show-toplevel")
	if err != nil {
		return CommitResult{}, nil
	}
	root = strings.TrimSpace(root)

	kind, err := inProgress(dir)
	if err != nil {
		return CommitResult{IsRepo: true}, err
	}
	if kind != "" {
		return CommitResult{IsRepo: true}, fmt.Errorf("git repo has a %s in progress; resolve it first", kind)
	}
	if len(paths) == 0 {
		return CommitResult{IsRepo: true}, nil
	}

	args := []string{"add", "--"}
	for _, p := range paths {
		args = append(args, absOr(p))
	}
	if _, err := runGit(ctx, root, args...); err != nil {
		return CommitResult{IsRepo: true}, err
	}

	// Commit only what we staged.
	diffArgs := append([]string{"diff", "--cached", "--name-only", "--"}, args[2:]...)
	staged, err := runGit(ctx, root, diffArgs...)
	if err != nil {
		return CommitResult{IsRepo: true}, err
	}
	if strings.TrimSpace(staged) == "" {
		return CommitResult{IsRepo: true}, nil
	}

	msg := strings.TrimSpace(message)
	if msg == "" {
		msg = "north: export"
	}
	commitArgs := append([]string{"commit", "-m", msg, "--"}, args[2:]...)
	if _, err := runGit(ctx, root, commitArgs...); err != nil {
		return CommitResult{IsRepo: true}, err
	}
	head, _ := runGit(ctx, root, "rev-parse", "--short", "HEAD")
	return CommitResult{IsRepo: true, Committed: true, Head: strings.TrimSpace(head)}, nil
}

func runGit(ctx context.Context, dir string, args ...string) (string, error) {
	cmd := exec.CommandContext(ctx, "git", args...)
	cmd.Dir = dir
	out, err := cmd.CombinedOutput()
	if err != nil {
		msg := strings.TrimSpace(string(out))
		if msg == "" {
			msg = err.Error()
		}
		return "", fmt.Errorf("git %s: %s", strings.Join(args, " "), msg)
	}
	return string(out), nil
}

// absOr resolves p to an absolute, symlink-free path where it can, so it matches
// the root git reports.
func absOr(p string) string {
	abs, err := filepath.Abs(p)
	if err != nil {
		return p
	}
	if resolved, err := filepath.EvalSymlinks(abs); err == nil {
		return resolved
	}
	return abs
}
