package web

import (
	"io"
	"net/http"
	"strconv"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/bytedance/sonic"
	"github.com/labstack/echo/v4"
	log "github.com/sirupsen/logrus"

	"north/internal/model"
	"north/internal/mutate"
	"north/internal/service"
	"north/internal/view"
)

const maxBodySize = 64 * 1024 // 64 KiB

// Register wires up all API routes on the provided Echo instance.
func Register(e *echo.Echo, svc *service.Service, logger *log.Logger) {
	e.GET("/healthz", healthz(svc))

	e.GET("/api/tasks", listTasks(svc, logger))
	e.POST("/api/tasks", createTask(svc, logger))
	e.GET("/api/tasks/:id", getTask(svc, logger))
	e.PATCH("/api/tasks/:id", patchTask(svc, logger))
	e.POST("/api/tasks/:id/move", moveTask(svc, logger))
	e.DELETE("/api/tasks/:id", deleteTask(svc, logger))

	e.GET("/api/filter", runFilter(svc, logger))
	e.POST("/api/filter/check", checkFilter(svc, logger))
	e.GET("/api/filter/suggest", suggestFilter(svc, logger))

	e.GET("/api/saved-filters", listSavedFilters(svc, logger))
	e.POST("/api/saved-filters", createSavedFilter(svc, logger))
	e.GET("/api/saved-filters/:id/run", runSavedFilter(svc, logger))
	e.DELETE("/api/saved-filters/:id", deleteSavedFilter(svc, logger))

	e.GET("/api/projects", listProjects(svc, logger))
	e.POST("/api/projects", createProject(svc, logger))
	e.GET("/api/tags", listTags(svc, logger))
	e.GET("/api/stats", stats(svc, logger))
}

// decode reads a JSON body, rejecting unknown fields.
func decode(c echo.Context, v any) error {
	lr := io.LimitReader(c.Request().Body, maxBodySize)
	dec := sonic.ConfigStd.NewDecoder(lr)
	dec.DisallowUnknownFields()
	if err := dec.Decode(v); err != nil {
		return badRequest("body", "invalid JSON body")
	}
	return nil
}

func idParam(c echo.Context) (int64, error) {
	id, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil || id <= 0 {
		return 0, badRequest("id", "not a task id: "+c.Param("id"))
	}
	return id, nil
}

func boolQuery(c echo.Context, name string) bool {
	v, _ := strconv.ParseBool(c.QueryParam(name))
	return v
}

func dateField(name string, s *string) (*time.Time, error) {
	if s == nil {
		return nil, nil
	}
	t, err := model.ParseDate(*s)
	if err != nil {
		return nil, badRequest(name, err.Error())
	}
	return &t, nil
}

type tasksResponse struct {
	Tasks []service.TaskView `json:"tasks"`
	Query string             `json:"query,omitempty"`
}

func healthz(svc *service.Service) echo.HandlerFunc {
	return func(c echo.Context) error {
		if _, err := svc.Settings(c.Request().Context()); err != nil {
			return c.String(http.StatusServiceUnavailable, "unavailable\n")
		}
		return c.String(http.StatusOK, "ok\n")
	}
}

func listTasks(svc *service.Service, logger *log.Logger) echo.HandlerFunc {
	return func(c echo.Context) error {
		ctx := c.Request().Context()
		page, err := view.ParsePage(c.QueryParam("page"))
		if err != nil {
			return fail(c, logger, badRequest("page", err.Error()))
		}
		req := service.ListRequest{
			Page:                 page,
			HideNonActionable:    boolQuery(c, "actionable"),
			ShowCompleted:        boolQuery(c, "completed"),
			ShowRecentlyReviewed: boolQuery(c, "reviewed"),
		}
		if ref := strings.TrimSpace(c.QueryParam("project")); ref != "" {
			p, err := svc.ResolveProject(ctx, ref)
			if err != nil {
				return fail(c, logger, err)
			}
			req.ProjectID = model.Ref(p.ID)
			if c.QueryParam("page") == "" {
				req.Page = view.PageProject
			}
		}
		tasks, err := svc.List(ctx, req)
		if err != nil {
			return fail(c, logger, err)
		}
		return c.JSON(http.StatusOK, tasksResponse{Tasks: tasks})
	}
}

type createTaskRequest struct {
	Title           string   `json:"title"`
	Body            string   `json:"body"`
	ParentID        *int64   `json:"parentId"`
	ProjectID       *int64   `json:"projectId"`
	Position        string   `json:"position"`
	AnchorID        int64    `json:"anchorId"`
	StartAt         *string  `json:"startAt"`
	DueDate         *string  `json:"dueDate"`
	Someday         bool     `json:"someday"`
	SequentialLimit int      `json:"sequentialLimit"`
	Tags            []string `json:"tags"`
	Repeat          string   `json:"repeat"`
	RepeatType      string   `json:"repeatType"`
}

func createTask(svc *service.Service, logger *log.Logger) echo.HandlerFunc {
	return func(c echo.Context) error {
		var body createTaskRequest
		if err := decode(c, &body); err != nil {
			return fail(c, logger, err)
		}
		in := service.CreateTaskInput{
			Title:           body.Title,
			Body:            body.Body,
			ParentID:        body.ParentID,
			ProjectID:       body.ProjectID,
			AnchorID:        body.AnchorID,
			Someday:         body.Someday,
			SequentialLimit: body.SequentialLimit,
			Tags:            body.Tags,
			Repeat:          body.Repeat,
			RepeatType:      body.RepeatType,
		}
		if body.Position != "" {
			kind, err := mutate.ParseKind(body.Position)
			if err != nil {
				return fail(c, logger, badRequest("position", err.Error()))
			}
			in.Position = kind
		}
		var err error
		if in.StartAt, err = dateField("startAt", body.StartAt); err != nil {
			return fail(c, logger, err)
		}
		if in.DueDate, err = dateField("dueDate", body.DueDate); err != nil {
			return fail(c, logger, err)
		}
		t, err := svc.CreateTask(c.Request().Context(), in)
		if err != nil {
			return fail(c, logger, err)
		}
		return c.JSON(http.StatusCreated, t)
	}
}

type taskResponse struct {
	service.TaskDetail
	BodyHTML string `json:"bodyHtml,omitempty"`
}

func getTask(svc *service.Service, logger *log.Logger) echo.HandlerFunc {
	return func(c echo.Context) error {
		id, err := idParam(c)
		if err != nil {
			return fail(c, logger, err)
		}
		d, err := svc.Task(c.Request().Context(), id)
		if err != nil {
			return fail(c, logger, err)
		}
		return c.JSON(http.StatusOK, taskResponse{TaskDetail: d, BodyHTML: bodyHTML(d.Body)})
	}
}

type patchTaskRequest struct {
	Title           *string   `json:"title"`
	Body            *string   `json:"body"`
	ProjectID       *int64    `json:"projectId"`
	ClearProject    bool      `json:"clearProject"`
	StartAt         *string   `json:"startAt"`
	ClearStartAt    bool      `json:"clearStartAt"`
	DueDate         *string   `json:"dueDate"`
	ClearDueDate    bool      `json:"clearDueDate"`
	Someday         *bool     `json:"someday"`
	SequentialLimit *int      `json:"sequentialLimit"`
	Tags            *[]string `json:"tags"`
	AddTags         []string  `json:"addTags"`
	RemoveTags      []string  `json:"removeTags"`
	Repeat          *string   `json:"repeat"`
	RepeatType      *string   `json:"repeatType"`
	ClearRepeat     bool      `json:"clearRepeat"`

	// Completed completes (true) or reopens (false) the task after the field changes.
	Completed *bool `json:"completed"`
	// Reviewed marks the task as reviewed now.
	Reviewed bool `json:"reviewed"`
}

func patchTask(svc *service.Service, logger *log.Logger) echo.HandlerFunc {
	return func(c echo.Context) error {
		ctx := c.Request().Context()
		id, err := idParam(c)
		if err != nil {
			return fail(c, logger, err)
		}
		var body patchTaskRequest
		if err := decode(c, &body); err != nil {
			return fail(c, logger, err)
		}
		patch := service.TaskPatch{
			Title:           body.Title,
			Body:            body.Body,
			ProjectID:       body.ProjectID,
			ClearProject:    body.ClearProject,
			ClearStartAt:    body.ClearStartAt,
			ClearDueDate:    body.ClearDueDate,
			Someday:         body.Someday,
			SequentialLimit: body.SequentialLimit,
			Tags:            body.Tags,
			AddTags:         body.AddTags,
			RemoveTags:      body.RemoveTags,
			Repeat:          body.Repeat,
			RepeatType:      body.RepeatType,
			ClearRepeat:     body.ClearRepeat,
		}
		if patch.StartAt, err = dateField("startAt", body.StartAt); err != nil {
			return fail(c, logger, err)
		}
		if patch.DueDate, err = dateField("dueDate", body.DueDate); err != nil {
			return fail(c, logger, err)
		}

		t, err := svc.UpdateTask(ctx, id, patch)
		if err != nil {
			return fail(c, logger, err)
		}
		// next is the spawned instance when completing a recurring task.
		var next *service.TaskView
		if body.Completed != nil {
			if *body.Completed {
				var r service.CompleteResult
				r, err = svc.CompleteTask(ctx, id)
				t, next = r.TaskView, r.Next
			} else {
				t, err = svc.ReopenTask(ctx, id)
			}
			if err != nil {
				return fail(c, logger, err)
			}
		}
		if body.Reviewed {
			if t, err = svc.ReviewTask(ctx, id); err != nil {
				return fail(c, logger, err)
			}
		}
		return c.JSON(http.StatusOK, service.CompleteResult{TaskView: t, Next: next})
	}
}

type moveRequest struct {
	Kind      string `json:"kind"`
	AnchorID  int64  `json:"anchorId"`
	ParentID  *int64 `json:"parentId"`
	ProjectID *int64 `json:"projectId"`
}

func moveTask(svc *service.Service, logger *log.Logger) echo.HandlerFunc {
	return func(c echo.Context) error {
		id, err := idParam(c)
		if err != nil {
			return fail(c, logger, err)
		}
		var body moveRequest
		if err := decode(c, &body); err != nil {
			return fail(c, logger, err)
		}
		kind, err := mutate.ParseKind(body.Kind)
		if err != nil {
			return fail(c, logger, badRequest("kind", err.Error()))
		}
		p, err := svc.Move(c.Request().Context(), mutate.Request{
			Kind:      kind,
			TaskID:    id,
			AnchorID:  body.AnchorID,
			ParentID:  body.ParentID,
			ProjectID: body.ProjectID,
		})
		if err != nil {
			return fail(c, logger, err)
		}
		return c.JSON(http.StatusOK, p)
	}
}

func deleteTask(svc *service.Service, logger *log.Logger) echo.HandlerFunc {
	return func(c echo.Context) error {
		id, err := idParam(c)
		if err != nil {
			return fail(c, logger, err)
		}
		removed, err := svc.DeleteTask(c.Request().Context(), id)
		if err != nil {
			return fail(c, logger, err)
		}
		return c.JSON(http.StatusOK, map[string]any{"deleted": removed})
	}
}

func runFilter(svc *service.Service, logger *log.Logger) echo.HandlerFunc {
	return func(c echo.Context) error {
		q := c.QueryParam("q")
		tasks, err := svc.RunFilter(c.Request().Context(), q)
		if err != nil {
			return fail(c, logger, err)
		}
		return c.JSON(http.StatusOK, tasksResponse{Tasks: tasks, Query: q})
	}
}

type checkRequest struct {
	Query string `json:"query"`
}

type checkResponse struct {
	Valid     bool   `json:"valid"`
	Canonical string `json:"canonical"`
}

func checkFilter(svc *service.Service, logger *log.Logger) echo.HandlerFunc {
	return func(c echo.Context) error {
		var body checkRequest
		if err := decode(c, &body); err != nil {
			return fail(c, logger, err)
		}
		canonical, err := svc.CheckFilter(body.Query)
		if err != nil {
			return fail(c, logger, err)
		}
		return c.JSON(http.StatusOK, checkResponse{Valid: true, Canonical: canonical})
	}
}

func suggestFilter(svc *service.Service, logger *log.Logger) echo.HandlerFunc {
	return func(c echo.Context) error {
		q := c.QueryParam("q")
		cursor := utf8.RuneCountInString(q)
		if v := c.QueryParam("cursor"); v != "" {
			n, err := strconv.Atoi(v)
			if err != nil || n < 0 {
				return fail(c, logger, badRequest("cursor", "must be a non-negative number"))
			}
			cursor = n
		}
		out, err := svc.SuggestFilter(c.Request().Context(), q, cursor)
		if err != nil {
			return fail(c, logger, err)
		}
		return c.JSON(http.StatusOK, map[string]any{"suggestions": out})
	}
}

func listSavedFilters(svc *service.Service, logger *log.Logger) echo.HandlerFunc {
	return func(c echo.Context) error {
		fs, err := svc.Filters(c.Request().Context())
		if err != nil {
			return fail(c, logger, err)
		}
		if fs == nil {
			fs = []model.SavedFilter{}
		}
		return c.JSON(http.StatusOK, map[string]any{"filters": fs})
	}
}

type savedFilterRequest struct {
	Title string `json:"title"`
	Query string `json:"query"`
}

func createSavedFilter(svc *service.Service, logger *log.Logger) echo.HandlerFunc {
	return func(c echo.Context) error {
		var body savedFilterRequest
		if err := decode(c, &body); err != nil {
			return fail(c, logger, err)
		}
		f, err := svc.SaveFilter(c.Request().Context(), body.Title, body.Query)
		if err != nil {
			return fail(c, logger, err)
		}
		return c.JSON(http.StatusCreated, f)
	}
}

func runSavedFilter(svc *service.Service, logger *log.Logger) echo.HandlerFunc {
	return func(c echo.Context) error {
		f, tasks, err := svc.RunSavedFilter(c.Request().Context(), c.Param("id"))
		if err != nil {
			return fail(c, logger, err)
		}
		return c.JSON(http.StatusOK, tasksResponse{Tasks: tasks, Query: f.Query})
	}
}

func deleteSavedFilter(svc *service.Service, logger *log.Logger) echo.HandlerFunc {
	return func(c echo.Context) error {
		if err := svc.DeleteFilter(c.Request().Context(), c.Param("id")); err != nil {
			return fail(c, logger, err)
		}
		return c.NoContent(http.StatusNoContent)
	}
}

func listProjects(svc *service.Service, logger *log.Logger) echo.HandlerFunc {
	return func(c echo.Context) error {
		ps, err := svc.Projects(c.Request().Context(), boolQuery(c, "all"))
		if err != nil {
			return fail(c, logger, err)
		}
		return c.JSON(http.StatusOK, map[string]any{"projects": ps})
	}
}

type projectRequest struct {
	Title string `json:"title"`
	Color string `json:"color"`
}

func createProject(svc *service.Service, logger *log.Logger) echo.HandlerFunc {
	return func(c echo.Context) error {
		var body projectRequest
		if err := decode(c, &body); err != nil {
			return fail(c, logger, err)
		}
		p, err := svc.CreateProject(c.Request().Context(), body.Title, body.Color)
		if err != nil {
			return fail(c, logger, err)
		}
		return c.JSON(http.StatusCreated, p)
	}
}

func listTags(svc *service.Service, logger *log.Logger) echo.HandlerFunc {
	return func(c echo.Context) error {
		tags, err := svc.Tags(c.Request().Context())
		if err != nil {
			return fail(c, logger, err)
		}
		return c.JSON(http.StatusOK, map[string]any{"tags": tags})
	}
}

func stats(svc *service.Service, logger *log.Logger) echo.HandlerFunc {
	return func(c echo.Context) error {
		s, err := svc.Stats(c.Request().Context())
		if err != nil {
			return fail(c, logger, err)
		}
		return c.JSON(http.StatusOK, s)
	}
}
