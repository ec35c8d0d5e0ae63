package cli

import (
	"bytes"
	"encoding/json"
	"strconv"
	"strings"
	"testing"
)

func runCLI(t *testing.T, args []string) (stdout []byte, stderr []byte, err error) {
	t.Helper()

	cmd := NewRootCmd()

	var outBuf bytes.Buffer
	var errBuf bytes.Buffer
	cmd.SetOut(&outBuf)
	cmd.SetErr(&errBuf)
	cmd.SetArgs(args)

	e := cmd.Execute()
	return outBuf.Bytes(), errBuf.Bytes(), e
}

// testEnv isolates the config dir (and with it the default database) under t.TempDir
// and returns a runner that decodes the JSON envelope.
func testEnv(t *testing.T) func(args ...string) map[string]any {
	t.Helper()
	t.Setenv("NORTH_CONFIG_DIR", t.TempDir())
	t.Setenv("NORTH_CONFIG", "")
	t.Setenv("NORTH_DB", "")
	t.Setenv("NORTH_FORMAT", "")

	return func(args ...string) map[string]any {
		t.Helper()
		stdout, stderr, err := runCLI(t, args)
		if err != nil {
			t.Fatalf("command failed: north %v\nerr: %v\nstderr:\n%s\nstdout:\n%s", args, err, stderr, stdout)
		}
		var env map[string]any
		if err := json.Unmarshal(stdout, &env); err != nil {
			t.Fatalf("unmarshal stdout as json envelope: %v\nstdout:\n%s\nargs: %v", err, stdout, args)
		}
		if _, ok := env["data"]; !ok {
			t.Fatalf("expected JSON envelope to contain data key; got: %v", env)
		}
		return env
	}
}

func firstTask(t *testing.T, env map[string]any) map[string]any {
	t.Helper()
	xs, ok := env["data"].([]any)
	if !ok || len(xs) == 0 {
		t.Fatalf("expected a task list; got %#v", env["data"])
	}
	return xs[0].(map[string]any)
}

func TestTasksAddAppliesTitleTokens(t *testing.T) {
	mustRun := testEnv(t)

	mustRun("projects", "add", "Errands")
	task := firstTask(t, mustRun("tasks", "add", "Buy", "milk", "@errands", "#shop"))
	if task["title"] != "Buy milk" || task["projectTitle"] != "Errands" {
		t.Fatalf("unexpected task: %#v", task)
	}
	if tags, _ := task["tags"].([]any); len(tags) != 1 || tags[0] != "shop" {
		t.Fatalf("unexpected tags: %#v", task["tags"])
	}

	list := mustRun("tasks", "ls", "--project", "Errands")
	if xs := list["data"].([]any); len(xs) != 1 {
		t.Fatalf("expected 1 task in project, got %d", len(xs))
	}
	meta, _ := list["meta"].(map[string]any)
	if meta["page"] != "project" {
		t.Fatalf("expected project page, got %#v", meta)
	}
}

func TestTasksOrderingCommands(t *testing.T) {
	mustRun := testEnv(t)

	mustRun("tasks", "add", "a")
	mustRun("tasks", "add", "b")
	mustRun("tasks", "add", "c", "--above", "1")

	titles := func() []string {
		var out []string
		for _, x := range mustRun("tasks", "ls")["data"].([]any) {
			out = append(out, x.(map[string]any)["title"].(string))
		}
		return out
	}
	if got := strings.Join(titles(), ","); got != "c,a,b" {
		t.Fatalf("order = %s", got)
	}

	mustRun("tasks", "move", "3", "down")
	if got := strings.Join(titles(), ","); got != "a,c,b" {
		t.Fatalf("order after move = %s", got)
	}

	moved := mustRun("tasks", "indent", "3")
	if p := moved["data"].(map[string]any); p["parentId"] != float64(1) {
		t.Fatalf("expected parent 1, got %#v", p)
	}
	detail := mustRun("tasks", "show", "1")["data"].(map[string]any)
	if children := detail["children"].([]any); len(children) != 1 {
		t.Fatalf("expected one child, got %#v", detail["children"])
	}

	if _, _, err := runCLI(t, []string{"tasks", "set-parent", "1", "3"}); err == nil {
		t.Fatalf("expected moving a task under its child to fail")
	}
}

func TestFilterRunAndCheck(t *testing.T) {
	mustRun := testEnv(t)

	mustRun("tasks", "add", "a #home")
	mustRun("tasks", "add", "b")
	res := mustRun("filter", "run", "tags = home")
	if xs := res["data"].([]any); len(xs) != 1 {
		t.Fatalf("expected 1 match, got %d", len(xs))
	}

	chk := mustRun("filter", "check", "STATUS = active")
	if d := chk["data"].(map[string]any); d["valid"] != true || d["canonical"] == "" {
		t.Fatalf("unexpected check result: %#v", d)
	}

	stdout, stderr, err := runCLI(t, []string{"filter", "check", "status ="})
	if err == nil {
		t.Fatalf("expected invalid query to fail")
	}
	if !strings.Contains(string(stderr), "^") || !strings.Contains(string(stderr), "invalid query") {
		t.Fatalf("expected caret and message on stderr:\n%s", stderr)
	}
	var env map[string]any
	if jerr := json.Unmarshal(stdout, &env); jerr != nil {
		t.Fatalf("expected JSON result on stdout: %v\n%s", jerr, stdout)
	}
}

func TestFilterSaveAndRunSaved(t *testing.T) {
	mustRun := testEnv(t)

	mustRun("tasks", "add", "a")
	mustRun("filter", "save", "--title", "Open", "status = active")
	res := mustRun("filter", "run", "--saved", "open")
	if meta := res["meta"].(map[string]any); meta["filter"] != "Open" {
		t.Fatalf("unexpected meta: %#v", meta)
	}
	list := mustRun("filter", "ls")
	if xs := list["data"].([]any); len(xs) != 1 {
		t.Fatalf("expected 1 saved filter, got %d", len(xs))
	}
	mustRun("filter", "rm", "Open")
}

func TestTokensCommand(t *testing.T) {
	mustRun := testEnv(t)

	out := mustRun("tasks", "tokens", "Read https://go.dev/doc @Reading #go.")
	d := out["data"].(map[string]any)
	if d["project"] != "Reading" || d["url"] != "https://go.dev/doc" {
		t.Fatalf("unexpected intake: %#v", d)
	}

	segs := mustRun("tasks", "tokens", "--segments", "C#sharp #tag")
	xs := segs["data"].([]any)
	last := xs[len(xs)-1].(map[string]any)
	if last["kind"] != "tag" || last["value"] != "tag" {
		t.Fatalf("unexpected segments: %#v", xs)
	}
}

func TestTextFormatRendersTable(t *testing.T) {
	t.Setenv("NO_COLOR", "1")
	mustRun := testEnv(t)
	mustRun("tasks", "add", "Write report")

	stdout, _, err := runCLI(t, []string{"--format", "text", "tasks", "ls"})
	if err != nil {
		t.Fatalf("tasks ls: %v", err)
	}
	for _, want := range []string{"ID", "TITLE", "Write report"} {
		if !strings.Contains(string(stdout), want) {
			t.Fatalf("missing %q in:\n%s", want, stdout)
		}
	}
}

func TestSettingsAndStats(t *testing.T) {
	mustRun := testEnv(t)

	s := mustRun("settings", "show")["data"].(map[string]any)
	if s["reviewIntervalDays"] != float64(7) {
		t.Fatalf("unexpected default settings: %#v", s)
	}
	s = mustRun("settings", "set-review-interval", "14")["data"].(map[string]any)
	if s["reviewIntervalDays"] != float64(14) {
		t.Fatalf("unexpected settings: %#v", s)
	}
	mustRun("tasks", "add", "a")
	st := mustRun("stats")["data"].(map[string]any)
	if st["totalOpen"] != float64(1) {
		t.Fatalf("unexpected stats: %#v", st)
	}
}

func TestUnknownTaskFails(t *testing.T) {
	testEnv(t)
	_, stderr, err := runCLI(t, []string{"tasks", "show", "99"})
	if err == nil || !strings.Contains(string(stderr), "not found") {
		t.Fatalf("expected not found; err=%v stderr=%s", err, stderr)
	}
}

func TestExportWritesMarkdown(t *testing.T) {
	mustRun := testEnv(t)
	mustRun("projects", "add", "Errands")
	mustRun("tasks", "add", "Buy milk @errands")

	dir := t.TempDir()
	out := mustRun("export", "errands", "--to", dir)
	d := out["data"].(map[string]any)
	if written, _ := d["written"].([]any); len(written) != 2 {
		t.Fatalf("unexpected export result: %#v", d)
	}
	if _, _, err := runCLI(t, []string{"export", "errands", "--to", dir}); err == nil {
		t.Fatalf("expected a second export without --overwrite to fail")
	}
}

func TestTasksDoneSpawnsRepeatingTask(t *testing.T) {
	mustRun := testEnv(t)

	task := firstTask(t, mustRun("tasks", "add", "Water plants", "--repeat", "weekly", "--due", "2026-10-16"))
	if task["recurrenceRule"] != "FREQ=WEEKLY;INTERVAL=1" || task["recurrenceType"] != "scheduled" {
		t.Fatalf("unexpected recurrence: %#v", task)
	}
	id := strconv.FormatFloat(task["id"].(float64), 'f', -1, 64)
	mustRun("tasks", "add", "Check soil", "--parent", id)

	xs, _ := mustRun("tasks", "done", id)["data"].([]any)
	if len(xs) != 2 {
		t.Fatalf("expected the completed task and its next instance, got %#v", xs)
	}
	next := xs[1].(map[string]any)
	if next["title"] != "Water plants" || next["completedAt"] != nil || next["startAt"] == nil {
		t.Fatalf("unexpected next instance: %#v", next)
	}
	nextID := strconv.FormatFloat(next["id"].(float64), 'f', -1, 64)

	shown, _ := mustRun("tasks", "show", nextID)["data"].(map[string]any)
	children, _ := shown["children"].([]any)
	if len(children) != 1 || children[0].(map[string]any)["title"] != "Check soil" {
		t.Fatalf("expected the subtask to be cloned, got %#v", shown["children"])
	}

	edited := firstTask(t, mustRun("tasks", "edit", nextID, "--no-repeat"))
	if _, ok := edited["recurrenceRule"]; ok {
		t.Fatalf("expected the repeat rule to be cleared: %#v", edited)
	}
}
