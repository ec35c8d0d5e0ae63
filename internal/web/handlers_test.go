package web

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/labstack/echo/v4"
	log "github.com/sirupsen/logrus"
	"github.com/sirupsen/logrus/hooks/test"

	"north/internal/rank"
	"north/internal/service"
	"north/internal/store"
)

func newTestServer(t *testing.T, cfg ServerConfig) (*echo.Echo, *test.Hook) {
	t.Helper()
	st, err := store.Open(context.Background(), filepath.Join(t.TempDir(), "north.db"))
	if err != nil {
		t.Fatalf("store.Open: %v", err)
	}
	t.Cleanup(func() { _ = st.Close() })
	logger, hook := test.NewNullLogger()
	logger.SetLevel(log.DebugLevel)
	now := time.Date(2026, 10, 16, 10, 0, 0, 0, time.UTC)
	svc := service.New(st, service.Options{Logger: logger, Now: func() time.Time { return now }})
	return New(svc, cfg, logger), hook
}

func do(t *testing.T, e *echo.Echo, method, target, body string) *httptest.ResponseRecorder {
	t.Helper()
	var req *http.Request
	if body != "" {
		req = httptest.NewRequest(method, target, strings.NewReader(body))
		req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	} else {
		req = httptest.NewRequest(method, target, nil)
	}
	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, req)
	return rec
}

func decodeBody(t *testing.T, rec *httptest.ResponseRecorder, v any) {
	t.Helper()
	if err := json.Unmarshal(rec.Body.Bytes(), v); err != nil {
		t.Fatalf("decode %q: %v", rec.Body.String(), err)
	}
}

func TestHealthz(t *testing.T) {
	e, _ := newTestServer(t, ServerConfig{})
	rec := do(t, e, http.MethodGet, "/healthz", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	if rec.Header().Get(echo.HeaderXRequestID) == "" {
		t.Fatalf("expected a request id header")
	}
}

func TestCreateAndListTasks(t *testing.T) {
	e, _ := newTestServer(t, ServerConfig{})

	if rec := do(t, e, http.MethodPost, "/api/projects", `{"title":"Home"}`); rec.Code != http.StatusCreated {
		t.Fatalf("create project: %d %s", rec.Code, rec.Body.String())
	}
	rec := do(t, e, http.MethodPost, "/api/tasks", `{"title":"Fix sink @home #diy","body":"**soon**"}`)
	if rec.Code != http.StatusCreated {
		t.Fatalf("create task: %d %s", rec.Code, rec.Body.String())
	}
	var created service.TaskView
	decodeBody(t, rec, &created)
	if created.Title != "Fix sink" || created.ProjectTitle != "Home" || len(created.Tags) != 1 || created.Tags[0] != "diy" {
		t.Fatalf("unexpected task: %+v", created)
	}

	rec = do(t, e, http.MethodGet, "/api/tasks?project=home", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("list: %d %s", rec.Code, rec.Body.String())
	}
	var list tasksResponse
	decodeBody(t, rec, &list)
	if len(list.Tasks) != 1 || list.Tasks[0].ID != created.ID {
		t.Fatalf("unexpected list: %+v", list.Tasks)
	}

	rec = do(t, e, http.MethodGet, "/api/tasks/1", "")
	var detail map[string]any
	decodeBody(t, rec, &detail)
	if html, _ := detail["bodyHtml"].(string); !strings.Contains(html, "<strong>soon</strong>") {
		t.Fatalf("bodyHtml = %q", html)
	}
}

func TestCreateTask_UnknownFieldRejected(t *testing.T) {
	e, _ := newTestServer(t, ServerConfig{})
	rec := do(t, e, http.MethodPost, "/api/tasks", `{"title":"x","colour":"red"}`)
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", rec.Code)
	}
}

func TestFilter_ParseErrorIs400WithPosition(t *testing.T) {
	e, _ := newTestServer(t, ServerConfig{})
	rec := do(t, e, http.MethodGet, "/api/filter?q="+urlEscape("status = "), "")
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d: %s", rec.Code, rec.Body.String())
	}
	var body errorBody
	decodeBody(t, rec, &body)
	if body.Error.Kind == "" || body.Error.Message == "" || body.Error.Pos == nil || body.Error.End == nil {
		t.Fatalf("unexpected error body: %s", rec.Body.String())
	}
}

func TestFilter_RunAndCheck(t *testing.T) {
	e, _ := newTestServer(t, ServerConfig{})
	do(t, e, http.MethodPost, "/api/tasks", `{"title":"a #x"}`)
	do(t, e, http.MethodPost, "/api/tasks", `{"title":"b"}`)

	rec := do(t, e, http.MethodGet, "/api/filter?q="+urlEscape("tags = x"), "")
	var res tasksResponse
	decodeBody(t, rec, &res)
	if len(res.Tasks) != 1 || res.Tasks[0].Title != "a" {
		t.Fatalf("unexpected result: %s", rec.Body.String())
	}

	rec = do(t, e, http.MethodPost, "/api/filter/check", `{"query":"status = active"}`)
	var chk checkResponse
	decodeBody(t, rec, &chk)
	if rec.Code != http.StatusOK || !chk.Valid || chk.Canonical == "" {
		t.Fatalf("check: %d %s", rec.Code, rec.Body.String())
	}
}

func TestSavedFilters(t *testing.T) {
	e, _ := newTestServer(t, ServerConfig{})
	rec := do(t, e, http.MethodPost, "/api/saved-filters", `{"title":"Open","query":"status = active"}`)
	if rec.Code != http.StatusCreated {
		t.Fatalf("create: %d %s", rec.Code, rec.Body.String())
	}
	if rec := do(t, e, http.MethodPost, "/api/saved-filters", `{"title":"Bad","query":"status ="}`); rec.Code != http.StatusBadRequest {
		t.Fatalf("expected invalid query to be rejected, got %d", rec.Code)
	}
	if rec := do(t, e, http.MethodGet, "/api/saved-filters/open/run", ""); rec.Code != http.StatusOK {
		t.Fatalf("run: %d %s", rec.Code, rec.Body.String())
	}
	if rec := do(t, e, http.MethodDelete, "/api/saved-filters/open", ""); rec.Code != http.StatusNoContent {
		t.Fatalf("delete: %d %s", rec.Code, rec.Body.String())
	}
	if rec := do(t, e, http.MethodDelete, "/api/saved-filters/open", ""); rec.Code != http.StatusNotFound {
		t.Fatalf("expected 404, got %d", rec.Code)
	}
}

func TestMoveTask(t *testing.T) {
	e, _ := newTestServer(t, ServerConfig{})
	do(t, e, http.MethodPost, "/api/tasks", `{"title":"parent"}`)
	do(t, e, http.MethodPost, "/api/tasks", `{"title":"child"}`)

	rec := do(t, e, http.MethodPost, "/api/tasks/2/move", `{"kind":"indent"}`)
	if rec.Code != http.StatusOK {
		t.Fatalf("indent: %d %s", rec.Code, rec.Body.String())
	}
	rec = do(t, e, http.MethodPost, "/api/tasks/1/move", `{"kind":"reparent","parentId":2}`)
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("expected cycle to be rejected, got %d: %s", rec.Code, rec.Body.String())
	}
	rec = do(t, e, http.MethodPost, "/api/tasks/9/move", `{"kind":"move-up"}`)
	if rec.Code != http.StatusNotFound {
		t.Fatalf("expected 404, got %d", rec.Code)
	}
	rec = do(t, e, http.MethodPost, "/api/tasks/1/move", `{"kind":"sideways"}`)
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", rec.Code)
	}
}

func TestPatchTask_CompleteAndReview(t *testing.T) {
	e, _ := newTestServer(t, ServerConfig{})
	do(t, e, http.MethodPost, "/api/tasks", `{"title":"a"}`)

	rec := do(t, e, http.MethodPatch, "/api/tasks/1", `{"title":"renamed","dueDate":"2026-11-01","completed":true,"reviewed":true}`)
	if rec.Code != http.StatusOK {
		t.Fatalf("patch: %d %s", rec.Code, rec.Body.String())
	}
	var tv service.TaskView
	decodeBody(t, rec, &tv)
	if tv.Title != "renamed" || tv.CompletedAt == nil || tv.ReviewedAt == nil || tv.DueDate == nil {
		t.Fatalf("unexpected task: %+v", tv)
	}
	if rec := do(t, e, http.MethodPatch, "/api/tasks/1", `{"dueDate":"tomorrow"}`); rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 for a bad date, got %d", rec.Code)
	}
}

func TestReadOnlyRejectsWrites(t *testing.T) {
	e, _ := newTestServer(t, ServerConfig{ReadOnly: true})
	if rec := do(t, e, http.MethodPost, "/api/tasks", `{"title":"a"}`); rec.Code != http.StatusForbidden {
		t.Fatalf("expected 403, got %d", rec.Code)
	}
	if rec := do(t, e, http.MethodPost, "/api/filter/check", `{"query":"status = done"}`); rec.Code != http.StatusOK {
		t.Fatalf("expected check to be allowed, got %d", rec.Code)
	}
	if rec := do(t, e, http.MethodGet, "/api/tasks", ""); rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
}

func TestRequestsAreLogged(t *testing.T) {
	e, hook := newTestServer(t, ServerConfig{})
	do(t, e, http.MethodGet, "/api/tags", "")
	var found bool
	for _, entry := range hook.AllEntries() {
		if entry.Message == "request" && entry.Data["path"] == "/api/tags" && entry.Data["status"] == http.StatusOK {
			found = true
		}
	}
	if !found {
		t.Fatalf("expected a request log entry")
	}
}

func urlEscape(s string) string {
	return strings.NewReplacer(" ", "%20", "=", "%3D").Replace(s)
}

func TestFail_IntegrityErrorIsLoggedAndHidden(t *testing.T) {
	e := echo.New()
	logger, hook := test.NewNullLogger()
	req := httptest.NewRequest(http.MethodPost, "/api/tasks/1/move", nil)
	rec := httptest.NewRecorder()
	c := e.NewContext(req, rec)

	err := &service.IntegrityError{Op: "move-up", Err: rank.ErrOrderingInvariant}
	if ferr := fail(c, logger, err); ferr != nil {
		t.Fatalf("fail: %v", ferr)
	}
	if rec.Code != http.StatusInternalServerError {
		t.Fatalf("expected 500, got %d", rec.Code)
	}
	if strings.Contains(rec.Body.String(), "ordering") {
		t.Fatalf("internal detail leaked: %s", rec.Body.String())
	}
	entry := hook.LastEntry()
	if entry == nil || entry.Level != log.ErrorLevel || entry.Message != "data integrity defect" {
		t.Fatalf("expected an error log, got %+v", entry)
	}
}

func TestPatchTask_CompletingRepeatingTaskReturnsNext(t *testing.T) {
	e, _ := newTestServer(t, ServerConfig{})
	rec := do(t, e, http.MethodPost, "/api/tasks", `{"title":"Pay rent","repeat":"FREQ=MONTHLY;BYMONTHDAY=1","startAt":"2026-10-01"}`)
	if rec.Code != http.StatusCreated && rec.Code != http.StatusOK {
		t.Fatalf("create: %d %s", rec.Code, rec.Body.String())
	}

	if rec := do(t, e, http.MethodPatch, "/api/tasks/1", `{"repeat":"FREQ=HOURLY"}`); rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 for an unsupported rule, got %d", rec.Code)
	}

	rec = do(t, e, http.MethodPatch, "/api/tasks/1", `{"completed":true}`)
	if rec.Code != http.StatusOK {
		t.Fatalf("patch: %d %s", rec.Code, rec.Body.String())
	}
	var res service.CompleteResult
	decodeBody(t, rec, &res)
	if res.CompletedAt == nil || res.Next == nil {
		t.Fatalf("expected the next instance in the response: %s", rec.Body.String())
	}
	if res.Next.Title != "Pay rent" || res.Next.StartAt == nil || res.Next.StartAt.Day() != 1 || res.Next.StartAt.Month() != time.November {
		t.Fatalf("unexpected next instance: %+v", res.Next.Task)
	}
}
