package cli

import (
	"fmt"
	"io"
	"strconv"
	"strings"
	"time"

	"north/internal/format"
	"north/internal/model"
	"north/internal/recurrence"
	"north/internal/service"
	"north/internal/titletoken"
)

// Text renderings of command results. JSON and YAML output use the values directly.

type taskList []service.TaskView

func (taskList) Columns() []string {
	return []string{"ID", "TITLE", "PROJECT", "TAGS", "START", "DUE", "STATE"}
}

func (l taskList) Rows() [][]string {
	rows := make([][]string, 0, len(l))
	for _, t := range l {
		rows = append(rows, []string{
			strconv.FormatInt(t.ID, 10),
			strings.Repeat("  ", t.Depth) + t.Title,
			t.ProjectTitle,
			tagText(t.Tags),
			dateText(t.StartAt),
			dateText(t.DueDate),
			taskState(t),
		})
	}
	return rows
}

func taskState(t service.TaskView) string {
	switch {
	case t.Completed():
		return "done"
	case t.Someday:
		return "someday"
	case !t.Actionable:
		return "waiting"
	}
	return ""
}

func tagText(tags []string) string {
	if len(tags) == 0 {
		return ""
	}
	return "#" + strings.Join(tags, " #")
}

func dateText(t *time.Time) string {
	if t == nil {
		return ""
	}
	lt := t.Local()
	if lt.Hour() == 0 && lt.Minute() == 0 && lt.Second() == 0 {
		return lt.Format("2006-01-02")
	}
	return lt.Format("2006-01-02 15:04")
}

type taskDetail service.TaskDetail

func (d taskDetail) Text() string {
	var b strings.Builder
	fmt.Fprintf(&b, "#%d %s\n", d.ID, d.Title)
	if len(d.Ancestors) > 0 {
		path := make([]string, 0, len(d.Ancestors))
		for _, a := range d.Ancestors {
			path = append(path, a.Title)
		}
		fmt.Fprintf(&b, "in: %s\n", strings.Join(path, " > "))
	}
	field := func(name, v string) {
		if v != "" {
			fmt.Fprintf(&b, "%s: %s\n", name, v)
		}
	}
	field("project", d.ProjectTitle)
	field("tags", tagText(d.Tags))
	field("start", dateText(d.StartAt))
	field("due", dateText(d.DueDate))
	field("reviewed", dateText(d.ReviewedAt))
	field("state", taskState(d.TaskView))
	if d.SequentialLimit > 0 {
		field("sequential", strconv.Itoa(d.SequentialLimit))
	}
	field("repeat", repeatText(d.Task))
	if body := format.RenderMarkdown(d.Body, 80); body != "" {
		b.WriteString("\n" + body + "\n")
	}
	if len(d.Children) > 0 {
		b.WriteString("\n")
		b.WriteString(format.RenderTable(format.Renderer(io.Discard), taskList(d.Children)))
	}
	return b.String()
}

func repeatText(t model.Task) string {
	if !t.Recurring() {
		return ""
	}
	r, err := recurrence.Parse(t.RecurrenceRule)
	if err != nil {
		return t.RecurrenceRule
	}
	if recurrence.Type(t.RecurrenceType) == recurrence.AfterCompletion {
		return r.Summary() + " after completion"
	}
	return r.Summary()
}

type projectList []service.ProjectView

func (projectList) Columns() []string { return []string{"ID", "TITLE", "STATUS", "OPEN"} }

func (l projectList) Rows() [][]string {
	rows := make([][]string, 0, len(l))
	for _, p := range l {
		rows = append(rows, []string{strconv.FormatInt(p.ID, 10), p.Title, string(p.Status), strconv.Itoa(p.OpenTasks)})
	}
	return rows
}

type tagList []service.TagCount

func (tagList) Columns() []string { return []string{"TAG", "TASKS", "OPEN"} }

func (l tagList) Rows() [][]string {
	rows := make([][]string, 0, len(l))
	for _, t := range l {
		rows = append(rows, []string{"#" + t.Name, strconv.Itoa(t.Count), strconv.Itoa(t.Open)})
	}
	return rows
}

type filterList []model.SavedFilter

func (filterList) Columns() []string { return []string{"ID", "TITLE", "QUERY"} }

func (l filterList) Rows() [][]string {
	rows := make([][]string, 0, len(l))
	for _, f := range l {
		rows = append(rows, []string{f.ID, f.Title, f.Query})
	}
	return rows
}

type segmentList []titletoken.Segment

func (segmentList) Columns() []string { return []string{"KIND", "TEXT", "VALUE"} }

func (l segmentList) Rows() [][]string {
	rows := make([][]string, 0, len(l))
	for _, s := range l {
		rows = append(rows, []string{s.Kind.String(), strconv.Quote(s.Raw), s.Value})
	}
	return rows
}
