package publish

import (
	"bytes"
	"fmt"
	"strings"
	"time"

	"north/internal/model"
	"north/internal/recurrence"
	"north/internal/service"
)

// RenderTaskMarkdown renders a single task page.
func RenderTaskMarkdown(d service.TaskDetail) string {
	var buf bytes.Buffer
	writeLn := func(s string) {
		buf.WriteString(s)
		buf.WriteString("\n")
	}

	writeLn("# " + strings.TrimSpace(d.Title))
	writeLn("")

	writeLn("## Meta")
	writeLn("")
	writeLn(fmt.Sprintf("- ID: #%d", d.ID))
	if d.ProjectTitle != "" {
		writeLn("- Project: " + d.ProjectTitle)
	}
	if len(d.Ancestors) > 0 {
		path := make([]string, 0, len(d.Ancestors))
		for _, a := range d.Ancestors {
			path = append(path, a.Title)
		}
		writeLn("- Parent: " + strings.Join(path, " / "))
	}
	switch {
	case d.Completed():
		writeLn("- Completed: " + formatDate(d.CompletedAt))
	case d.Someday:
		writeLn("- Someday: true")
	}
	if d.StartAt != nil {
		writeLn("- Start: " + formatDate(d.StartAt))
	}
	if d.DueDate != nil {
		writeLn("- Due: " + formatDate(d.DueDate))
	}
	if d.SequentialLimit > 0 {
		writeLn(fmt.Sprintf("- Sequential: %d at a time", d.SequentialLimit))
	}
	if len(d.Tags) > 0 {
		writeLn("- Tags: " + strings.Join(d.Tags, ", "))
	}
	if d.Recurring() {
		repeat := d.RecurrenceRule
		if r, err := recurrence.Parse(d.RecurrenceRule); err == nil {
			repeat = r.Summary()
		}
		writeLn(fmt.Sprintf("- Repeats: %s (%s)", repeat, d.RecurrenceType))
	}
	if d.ReviewedAt != nil {
		writeLn("- Reviewed: " + d.ReviewedAt.UTC().Format(time.RFC3339))
	}
	writeLn("- Created: " + d.CreatedAt.UTC().Format(time.RFC3339))
	writeLn("- Updated: " + d.UpdatedAt.UTC().Format(time.RFC3339))

	if body := strings.TrimSpace(d.Body); body != "" {
		writeLn("")
		writeLn("## Notes")
		writeLn("")
		writeLn(body)
	}

	if len(d.Children) > 0 {
		writeLn("")
		writeLn("## Subtasks")
		writeLn("")
		for _, c := range d.Children {
			writeLn(fmt.Sprintf("- %s [%s](%d.md)", checkbox(c), strings.TrimSpace(c.Title), c.ID))
		}
	}

	return buf.String()
}

// RenderProjectIndexMarkdown renders the project outline. tasks must be in
// outline order with Depth set, as the project page returns them.
func RenderProjectIndexMarkdown(p model.Project, tasks []service.TaskView) string {
	var buf bytes.Buffer
	writeLn := func(s string) {
		buf.WriteString(s)
		buf.WriteString("\n")
	}

	writeLn("# " + strings.TrimSpace(p.Title))
	writeLn("")
	if p.Archived() {
		writeLn("_Archived._")
		writeLn("")
	}
	writeLn("## Tasks")
	writeLn("")
	if len(tasks) == 0 {
		writeLn("(none)")
		return buf.String()
	}
	for _, t := range tasks {
		prefix := strings.Repeat("  ", t.Depth)
		fmt.Fprintf(&buf, "%s- %s [%s](tasks/%d.md)%s\n", prefix, checkbox(t), strings.TrimSpace(t.Title), t.ID, dueSuffix(t))
	}
	return buf.String()
}

func checkbox(t service.TaskView) string {
	if t.Completed() {
		return "[x]"
	}
	return "[ ]"
}

func dueSuffix(t service.TaskView) string {
	if t.DueDate == nil {
		return ""
	}
	return " (due " + formatDate(t.DueDate) + ")"
}

func formatDate(t *time.Time) string {
	if t == nil {
		return ""
	}
	lt := t.In(time.Local)
	if lt.Hour() == 0 && lt.Minute() == 0 {
		return lt.Format("2006-01-02")
	}
	return lt.Format("2006-01-02 15:04")
}
