package publish

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"north/internal/service"
	"north/internal/view"
)

type WriteOptions struct {
	IncludeCompleted bool
	Overwrite        bool
}

type WriteResult struct {
	Project string   `json:"project"`
	Written []string `json:"written"`
}

// WriteProject exports a project as <toDir>/<slug>/index.md plus one page per
// task under <toDir>/<slug>/tasks/.
func WriteProject(ctx context.Context, svc *service.Service, projectRef string, toDir string, opt WriteOptions) (WriteResult, error) {
	if svc == nil {
		return WriteResult{}, errors.New("missing service")
	}
	toDir = strings.TrimSpace(toDir)
	if toDir == "" {
		return WriteResult{}, errors.New("missing --to")
	}
	toDir = filepath.Clean(toDir)

	p, err := svc.ResolveProject(ctx, projectRef)
	if err != nil {
		return WriteResult{}, err
	}
	tasks, err := svc.List(ctx, service.ListRequest{
		Page:          view.PageProject,
		ProjectID:     &p.ID,
		ShowCompleted: opt.IncludeCompleted,
	})
	if err != nil {
		return WriteResult{}, err
	}

	projectDir := filepath.Join(toDir, slug(p.Title, p.ID))
	tasksDir := filepath.Join(projectDir, "tasks")
	if err := os.MkdirAll(tasksDir, 0o755); err != nil {
		return WriteResult{}, err
	}

	indexPath := filepath.Join(projectDir, "index.md")
	if err := writeFile(indexPath, []byte(RenderProjectIndexMarkdown(p, tasks)), opt.Overwrite); err != nil {
		return WriteResult{}, err
	}

	// Stop on first error.
	written := []string{indexPath}
	for _, t := range tasks {
		d, err := svc.Task(ctx, t.ID)
		if err != nil {
			return WriteResult{}, err
		}
		path := filepath.Join(tasksDir, fmt.Sprintf("%d.md", t.ID))
		if err := writeFile(path, []byte(RenderTaskMarkdown(d)), opt.Overwrite); err != nil {
			return WriteResult{}, err
		}
		written = append(written, path)
	}

	return WriteResult{Project: p.Title, Written: written}, nil
}

// slug keeps letters and digits, folds the rest to "-", and falls back to the id.
func slug(title string, id int64) string {
	var b strings.Builder
	dash := false
	for _, r := range strings.ToLower(strings.TrimSpace(title)) {
		switch {
		case r >= 'a' && r <= 'z', r >= '0' && r <= '9':
			b.WriteRune(r)
			dash = false
		case !dash && b.Len() > 0:
			b.WriteByte('-')
			dash = true
		}
	}
	s := strings.TrimSuffix(b.String(), "-")
	if s == "" {
		return fmt.Sprintf("project-%d", id)
	}
	return s
}

func writeFile(path string, b []byte, overwrite bool) error {
	if !overwrite {
		if _, err := os.Stat(path); err == nil {
			return errors.New("file exists (use --overwrite): " + path)
		}
	}
	return os.WriteFile(path, b, 0o644)
}
