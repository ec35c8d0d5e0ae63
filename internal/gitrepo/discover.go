package gitrepo

import (
	"bufio"
	"errors"
	"os"
	"path/filepath"
	"strings"
)

// findGitDir walks up from start to the nearest .git directory, following
// "gitdir:" files used by worktrees and submodules. It does not run git.
func findGitDir(start string) (string, bool, error) {
	dir := filepath.Clean(strings.TrimSpace(start))
	if dir == "" || dir == "." {
		return "", false, errors.New("empty start dir")
	}
	for {
		candidate := filepath.Join(dir, ".git")
		if st, err := os.Stat(candidate); err == nil {
			if st.IsDir() {
				return candidate, true, nil
			}
			target, err := readGitdirFile(candidate)
			if err != nil {
				return "", false, err
			}
			if target != "" {
				return target, true, nil
			}
		}
		parent := filepath.Dir(dir)
		if parent == dir {
			return "", false, nil
		}
		dir = parent
	}
}

func readGitdirFile(path string) (string, error) {
	f, err := os.Open(path)
	if err != nil {
		return "", err
	}
	defer f.Close()

	sc := bufio.NewScanner(f)
	for sc.Scan() {
		ln := strings.TrimSpace(sc.Text())
		if ln == "" {
			continue
		}
		if !strings.HasPrefix(strings.ToLower(ln), "gitdir:") {
			break
		}
		p := strings.TrimSpace(ln[len("gitdir:"):])
		if p == "" {
			return "", nil
		}
		if !filepath.IsAbs(p) {
			p = filepath.Join(filepath.Dir(path), p)
		}
		return filepath.Clean(p), nil
	}
	return "", sc.Err()
}

// inProgress reports a merge, rebase, cherry-pick or revert left open in the
// repository containing dir.
func inProgress(dir string) (string, error) {
	gitDir, ok, err := findGitDir(dir)
	if err != nil || !ok {
		return "", err
	}
	markers := []struct{ path, kind string }{
		{"MERGE_HEAD", "merge"},
		{"rebase-apply", "rebase"},
		{"rebase-merge", "rebase"},
		{"CHERRY_PICK_HEAD", "cherry-pick"},
		{"REVERT_HEAD", "revert"},
	}
	for _, m := range markers {
		if _, err := os.Stat(filepath.Join(gitDir, m.path)); err == nil {
			return m.kind, nil
		}
	}
	return "", nil
}
