package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"north/internal/model"
)

type queryer interface {
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

func migrate(ctx context.Context, db *sql.DB) error {
	stmts := []string{
		`CREATE TABLE IF NOT EXISTS state_meta (
			k TEXT PRIMARY KEY,
			v TEXT NOT NULL
		);`,
		`CREATE TABLE IF NOT EXISTS settings (
			k TEXT PRIMARY KEY,
			v TEXT NOT NULL
		);`,
		`CREATE TABLE IF NOT EXISTS projects (
			id INTEGER PRIMARY KEY,
			title TEXT NOT NULL,
			archived INTEGER NOT NULL,
			json TEXT NOT NULL,
			updated_at_unixms INTEGER NOT NULL
		);`,
		`CREATE TABLE IF NOT EXISTS tasks (
			id INTEGER PRIMARY KEY,
			parent_id INTEGER,
			project_id INTEGER,
			sort_key TEXT NOT NULL,
			completed INTEGER NOT NULL,
			json TEXT NOT NULL,
			updated_at_unixms INTEGER NOT NULL
		);`,
		`CREATE INDEX IF NOT EXISTS idx_tasks_scope ON tasks(parent_id, project_id, sort_key);`,
		`CREATE INDEX IF NOT EXISTS idx_tasks_completed ON tasks(completed);`,
		`CREATE TABLE IF NOT EXISTS saved_filters (
			id TEXT PRIMARY KEY,
			position INTEGER NOT NULL,
			json TEXT NOT NULL,
			updated_at_unixms INTEGER NOT NULL
		);`,
	}
	for _, st := range stmts {
		if _, err := db.ExecContext(ctx, st); err != nil {
			return err
		}
	}
	return nil
}

const (
	metaNextTaskID    = "next_task_id"
	metaNextProjectID = "next_project_id"

	settingReviewInterval = "review_interval_days"
)

func loadState(ctx context.Context, q queryer) (*State, error) {
	out := &State{}
	var err error
	if out.Tasks, err = readJSONRows[model.Task](ctx, q, `SELECT json FROM tasks`); err != nil {
		return nil, fmt.Errorf("load tasks: %w", err)
	}
	if out.Projects, err = readJSONRows[model.Project](ctx, q, `SELECT json FROM projects`); err != nil {
		return nil, fmt.Errorf("load projects: %w", err)
	}
	if out.Filters, err = readJSONRows[model.SavedFilter](ctx, q, `SELECT json FROM saved_filters`); err != nil {
		return nil, fmt.Errorf("load saved filters: %w", err)
	}
	if out.Tasks == nil {
		out.Tasks = []model.Task{}
	}
	if out.Projects == nil {
		out.Projects = []model.Project{}
	}
	if out.Filters == nil {
		out.Filters = []model.SavedFilter{}
	}
	sortState(out)

	meta, err := readKV(ctx, q, `SELECT k, v FROM state_meta`)
	if err != nil {
		return nil, fmt.Errorf("load meta: %w", err)
	}
	out.nextTaskID = parseInt64(meta[metaNextTaskID])
	out.nextProjectID = parseInt64(meta[metaNextProjectID])
	for _, t := range out.Tasks {
		if t.ID >= out.nextTaskID {
			out.nextTaskID = t.ID + 1
		}
	}
	for _, p := range out.Projects {
		if p.ID >= out.nextProjectID {
			out.nextProjectID = p.ID + 1
		}
	}

	settings, err := readKV(ctx, q, `SELECT k, v FROM settings`)
	if err != nil {
		return nil, fmt.Errorf("load settings: %w", err)
	}
	out.Settings.ReviewIntervalDays = int(parseInt64(settings[settingReviewInterval]))
	return out, nil
}

// rowSet holds the serialized form of every row, keyed by primary key.
type rowSet struct {
	tasks    map[int64]string
	projects map[int64]string
	filters  map[string]string
	meta     map[string]string
	settings map[string]string
}

func snapshotRows(st *State) (rowSet, error) {
	rs := rowSet{
		tasks:    make(map[int64]string, len(st.Tasks)),
		projects: make(map[int64]string, len(st.Projects)),
		filters:  make(map[string]string, len(st.Filters)),
		meta: map[string]string{
			metaNextTaskID:    strconv.FormatInt(st.nextTaskID, 10),
			metaNextProjectID: strconv.FormatInt(st.nextProjectID, 10),
		},
		settings: map[string]string{},
	}
	for _, t := range st.Tasks {
		raw, err := json.Marshal(t)
		if err != nil {
			return rowSet{}, err
		}
		rs.tasks[t.ID] = string(raw)
	}
	for _, p := range st.Projects {
		raw, err := json.Marshal(p)
		if err != nil {
			return rowSet{}, err
		}
		rs.projects[p.ID] = string(raw)
	}
	for _, f := range st.Filters {
		raw, err := json.Marshal(f)
		if err != nil {
			return rowSet{}, err
		}
		rs.filters[f.ID] = string(raw)
	}
	if st.Settings.ReviewIntervalDays > 0 {
		rs.settings[settingReviewInterval] = strconv.Itoa(st.Settings.ReviewIntervalDays)
	}
	return rs, nil
}

// writeChanges persists the difference between before and the current state.
func writeChanges(ctx context.Context, tx *sql.Tx, before rowSet, st *State) error {
	after, err := snapshotRows(st)
	if err != nil {
		return err
	}
	nowMs := time.Now().UTC().UnixMilli()

	for _, t := range st.Tasks {
		raw := after.tasks[t.ID]
		if before.tasks[t.ID] == raw {
			continue
		}
		if _, err := tx.ExecContext(ctx, `INSERT OR REPLACE INTO tasks(id, parent_id, project_id, sort_key, completed, json, updated_at_unixms) VALUES(?, ?, ?, ?, ?, ?, ?)`,
			t.ID, nullableID(t.ParentID), nullableID(t.ProjectID), t.SortKey, boolToInt(t.Completed()), raw, nowMs); err != nil {
			return fmt.Errorf("write task %d: %w", t.ID, err)
		}
	}
	for id := range before.tasks {
		if _, ok := after.tasks[id]; !ok {
			if _, err := tx.ExecContext(ctx, `DELETE FROM tasks WHERE id = ?`, id); err != nil {
				return fmt.Errorf("delete task %d: %w", id, err)
			}
		}
	}

	for _, p := range st.Projects {
		raw := after.projects[p.ID]
		if before.projects[p.ID] == raw {
			continue
		}
		if _, err := tx.ExecContext(ctx, `INSERT OR REPLACE INTO projects(id, title, archived, json, updated_at_unixms) VALUES(?, ?, ?, ?, ?)`,
			p.ID, p.Title, boolToInt(p.Archived()), raw, nowMs); err != nil {
			return fmt.Errorf("write project %d: %w", p.ID, err)
		}
	}
	for id := range before.projects {
		if _, ok := after.projects[id]; !ok {
			if _, err := tx.ExecContext(ctx, `DELETE FROM projects WHERE id = ?`, id); err != nil {
				return fmt.Errorf("delete project %d: %w", id, err)
			}
		}
	}

	for _, f := range st.Filters {
		raw := after.filters[f.ID]
		if before.filters[f.ID] == raw {
			continue
		}
		if _, err := tx.ExecContext(ctx, `INSERT OR REPLACE INTO saved_filters(id, position, json, updated_at_unixms) VALUES(?, ?, ?, ?)`,
			f.ID, f.Position, raw, nowMs); err != nil {
			return fmt.Errorf("write saved filter %s: %w", f.ID, err)
		}
	}
	for id := range before.filters {
		if _, ok := after.filters[id]; !ok {
			if _, err := tx.ExecContext(ctx, `DELETE FROM saved_filters WHERE id = ?`, id); err != nil {
				return fmt.Errorf("delete saved filter %s: %w", id, err)
			}
		}
	}

	if err := writeKV(ctx, tx, "state_meta", before.meta, after.meta); err != nil {
		return err
	}
	return writeKV(ctx, tx, "settings", before.settings, after.settings)
}

func writeKV(ctx context.Context, tx *sql.Tx, table string, before, after map[string]string) error {
	for k, v := range after {
		if before[k] == v {
			continue
		}
		if _, err := tx.ExecContext(ctx, `INSERT OR REPLACE INTO `+table+`(k, v) VALUES(?, ?)`, k, v); err != nil {
			return fmt.Errorf("write %s.%s: %w", table, k, err)
		}
	}
	for k := range before {
		if _, ok := after[k]; !ok {
			if _, err := tx.ExecContext(ctx, `DELETE FROM `+table+` WHERE k = ?`, k); err != nil {
				return fmt.Errorf("delete %s.%s: %w", table, k, err)
			}
		}
	}
	return nil
}

func readJSONRows[T any](ctx context.Context, q queryer, query string) ([]T, error) {
	rows, err := q.QueryContext(ctx, query)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []T
	for rows.Next() {
		var js string
		if err := rows.Scan(&js); err != nil {
			return nil, err
		}
		var v T
		if err := json.Unmarshal([]byte(js), &v); err != nil {
			return nil, err
		}
		out = append(out, v)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return out, nil
}

func readKV(ctx context.Context, q queryer, query string) (map[string]string, error) {
	rows, err := q.QueryContext(ctx, query)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := map[string]string{}
	for rows.Next() {
		var k, v string
		if err := rows.Scan(&k, &v); err != nil {
			return nil, err
		}
		out[k] = v
	}
	return out, rows.Err()
}

func parseInt64(s string) int64 {
	n, err := strconv.ParseInt(strings.TrimSpace(s), 10, 64)
	if err != nil {
		return 0
	}
	return n
}

func nullableID(id *int64) any {
	if id == nil {
		return nil
	}
	return *id
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}

// IsBusy reports whether err is SQLite refusing the write lock after busy_timeout.
func IsBusy(err error) bool {
	if err == nil {
		return false
	}
	var se interface{ Code() int }
	if errors.As(err, &se) {
		// SQLITE_BUSY and SQLITE_LOCKED, including extended codes.
		switch se.Code() & 0xff {
		case 5, 6:
			return true
		}
	}
	return strings.Contains(err.Error(), "database is locked")
}
