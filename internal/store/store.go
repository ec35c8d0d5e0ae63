// Package store persists north state in a local SQLite database.
package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"north/internal/model"

	_ "modernc.org/sqlite"
)

// State is a full in-memory copy of the database. Update hands a State to its
// callback and writes back whatever changed.
type State struct {
	Tasks    []model.Task
	Projects []model.Project
	Filters  []model.SavedFilter
	Settings model.Settings

	nextTaskID    int64
	nextProjectID int64
}

// NewTaskID reserves the next task id. Ids are never reused.
func (st *State) NewTaskID() int64 {
	if st.nextTaskID <= 0 {
		st.nextTaskID = 1
	}
	id := st.nextTaskID
	st.nextTaskID++
	return id
}

func (st *State) NewProjectID() int64 {
	if st.nextProjectID <= 0 {
		st.nextProjectID = 1
	}
	id := st.nextProjectID
	st.nextProjectID++
	return id
}

// Task returns a pointer into st.Tasks, valid until the slice is modified.
func (st *State) Task(id int64) (*model.Task, bool) {
	for i := range st.Tasks {
		if st.Tasks[i].ID == id {
			return &st.Tasks[i], true
		}
	}
	return nil, false
}

func (st *State) Project(id int64) (*model.Project, bool) {
	for i := range st.Projects {
		if st.Projects[i].ID == id {
			return &st.Projects[i], true
		}
	}
	return nil, false
}

func (st *State) Filter(id string) (*model.SavedFilter, bool) {
	for i := range st.Filters {
		if st.Filters[i].ID == id {
			return &st.Filters[i], true
		}
	}
	return nil, false
}

// ProjectTitle returns the title of the task's project, or "" for inbox tasks.
func (st *State) ProjectTitle(id *int64) string {
	if id == nil {
		return ""
	}
	if p, ok := st.Project(*id); ok {
		return p.Title
	}
	return ""
}

type Store struct {
	db   *sql.DB
	path string
}

// Open opens (creating if needed) the database at path and applies migrations.
func Open(ctx context.Context, path string) (*Store, error) {
	path = strings.TrimSpace(path)
	if path == "" {
		return nil, errors.New("missing database path")
	}
	if path != ":memory:" {
		if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
			return nil, err
		}
	}
	// modernc.org/sqlite driver name is "sqlite". _txlock=immediate makes every
	// transaction take the write lock up front, so read-plan-write cycles are serialized.
	db, err := sql.Open("sqlite", "file:"+path+"?_txlock=immediate")
	if err != nil {
		return nil, err
	}
	// A single connection keeps the pragmas below in effect for every statement.
	db.SetMaxOpenConns(1)

	// WAL enables one writer + many readers; busy_timeout helps avoid "database is locked" flakiness.
	pragmas := []string{
		"PRAGMA journal_mode=WAL;",
		"PRAGMA synchronous=NORMAL;",
		"PRAGMA foreign_keys=ON;",
		"PRAGMA busy_timeout=5000;",
	}
	for _, p := range pragmas {
		if _, err := db.ExecContext(ctx, p); err != nil {
			_ = db.Close()
			return nil, fmt.Errorf("%s: %w", strings.TrimSuffix(p, ";"), err)
		}
	}
	if err := migrate(ctx, db); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("migrate %s: %w", path, err)
	}
	return &Store{db: db, path: path}, nil
}

func (s *Store) Path() string { return s.path }

func (s *Store) Close() error {
	if s == nil || s.db == nil {
		return nil
	}
	return s.db.Close()
}

// Load reads a consistent snapshot of the whole state.
func (s *Store) Load(ctx context.Context) (*State, error) {
	tx, err := s.db.BeginTx(ctx, &sql.TxOptions{ReadOnly: true})
	if err != nil {
		return nil, err
	}
	defer func() { _ = tx.Rollback() }()
	return loadState(ctx, tx)
}

// Update runs fn against the current state inside one write transaction and persists
// the rows fn added, changed or removed. If fn returns an error nothing is written.
func (s *Store) Update(ctx context.Context, fn func(*State) error) error {
	tx, err := s.db.BeginTx(ctx, &sql.TxOptions{})
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback() }()

	st, err := loadState(ctx, tx)
	if err != nil {
		return err
	}
	before, err := snapshotRows(st)
	if err != nil {
		return err
	}
	if err := fn(st); err != nil {
		return err
	}
	if err := validateState(st); err != nil {
		return err
	}
	if err := writeChanges(ctx, tx, before, st); err != nil {
		return err
	}
	return tx.Commit()
}

func validateState(st *State) error {
	seen := map[int64]bool{}
	for _, t := range st.Tasks {
		if t.ID <= 0 {
			return fmt.Errorf("task %q has no id", t.Title)
		}
		if seen[t.ID] {
			return fmt.Errorf("duplicate task id %d", t.ID)
		}
		seen[t.ID] = true
	}
	seen = map[int64]bool{}
	for _, p := range st.Projects {
		if p.ID <= 0 {
			return fmt.Errorf("project %q has no id", p.Title)
		}
		if seen[p.ID] {
			return fmt.Errorf("duplicate project id %d", p.ID)
		}
		seen[p.ID] = true
	}
	ids := map[string]bool{}
	for _, f := range st.Filters {
		if strings.TrimSpace(f.ID) == "" {
			return fmt.Errorf("saved filter %q has no id", f.Title)
		}
		if ids[f.ID] {
			return fmt.Errorf("duplicate saved filter id %s", f.ID)
		}
		ids[f.ID] = true
	}
	return nil
}

func sortState(st *State) {
	sort.Slice(st.Tasks, func(i, j int) bool { return st.Tasks[i].ID < st.Tasks[j].ID })
	sort.Slice(st.Projects, func(i, j int) bool { return st.Projects[i].ID < st.Projects[j].ID })
	sort.SliceStable(st.Filters, func(i, j int) bool {
		if st.Filters[i].Position != st.Filters[j].Position {
			return st.Filters[i].Position < st.Filters[j].Position
		}
		return st.Filters[i].ID < st.Filters[j].ID
	})
}
