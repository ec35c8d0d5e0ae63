package filter

import (
	"regexp"
	"sort"
	"strings"
	"time"

	"north/internal/model"
)

// Record is the read-only view of a task the evaluator works on.
type Record struct {
	ID         int64
	SortKey    string
	Title      string
	Body       string
	Project    string
	HasProject bool
	Tags       []string
	Completed  bool
	Someday    bool
	DueDate    *time.Time
	StartAt    *time.Time
	ReviewedAt *time.Time
	CreatedAt  time.Time
	UpdatedAt  time.Time
}

// RecordOf snapshots t. projectTitle is the title of t's project, if any.
func RecordOf(t model.Task, projectTitle string) Record {
	return Record{
		ID:         t.ID,
		SortKey:    t.SortKey,
		Title:      t.Title,
		Body:       t.Body,
		Project:    projectTitle,
		HasProject: t.ProjectID != nil,
		Tags:       model.NormalizeTags(t.Tags),
		Completed:  t.Completed(),
		Someday:    t.Someday,
		DueDate:    t.DueDate,
		StartAt:    t.StartAt,
		ReviewedAt: t.ReviewedAt,
		CreatedAt:  t.CreatedAt,
		UpdatedAt:  t.UpdatedAt,
	}
}

// Match reports whether r satisfies the query. A nil query matches everything.
func (q *Query) Match(r Record) bool {
	if q == nil || q.Expr == nil {
		return true
	}
	return eval(q.Expr, &r)
}

func eval(e Expr, r *Record) bool {
	switch e := e.(type) {
	case *And:
		for _, t := range e.Terms {
			if !eval(t, r) {
				return false
			}
		}
		return true
	case *Or:
		for _, t := range e.Terms {
			if eval(t, r) {
				return true
			}
		}
		return false
	case *Not:
		return !eval(e.X, r)
	case *Condition:
		return e.match(r)
	}
	return false
}

func (c *Condition) match(r *Record) bool {
	d := descriptor(c.Field)
	switch d.Kind {
	case KindStatus:
		return c.matchStatus(r)
	case KindBool:
		return c.matchBool(r.Someday)
	case KindTags:
		return c.matchTags(r.Tags)
	case KindDate:
		return c.matchDate(dateOf(c.Field, r))
	case KindProject:
		return c.matchText(r.Project, r.HasProject)
	}
	if c.Field == FieldBody {
		return c.matchText(r.Body, strings.TrimSpace(r.Body) != "")
	}
	return c.matchText(r.Title, strings.TrimSpace(r.Title) != "")
}

func (c *Condition) matchStatus(r *Record) bool {
	status := statusActive
	if r.Completed {
		status = statusCompleted
	}
	switch c.Op {
	case OpEq:
		return status == c.Value.Text
	case OpNe:
		return status != c.Value.Text
	case OpIn, OpNotIn:
		in := false
		for _, v := range c.Value.List {
			if v.Text == status {
				in = true
				break
			}
		}
		return in == (c.Op == OpIn)
	}
	return false
}

func (c *Condition) matchBool(b bool) bool {
	switch c.Op {
	case OpEq:
		return b == c.Value.Bool
	case OpNe:
		return b != c.Value.Bool
	}
	return false
}

// matchText compares a single text value. present is false for a missing project or an
// empty title/body; a missing value never equals or globs anything.
func (c *Condition) matchText(s string, present bool) bool {
	switch c.Op {
	case OpIs:
		return !present
	case OpIsNot:
		return present
	case OpEq:
		return present && strings.EqualFold(s, c.Value.Text)
	case OpNe:
		return !present || !strings.EqualFold(s, c.Value.Text)
	case OpMatch:
		return present && c.glob().MatchString(s)
	case OpNotMatch:
		return !present || !c.glob().MatchString(s)
	case OpIn, OpNotIn:
		in := false
		if present {
			for _, v := range c.Value.List {
				if strings.EqualFold(s, v.Text) {
					in = true
					break
				}
			}
		}
		return in == (c.Op == OpIn)
	}
	return false
}

// glob returns the compiled =~ pattern. Conditions built without Parse have none
// cached and compile it per call.
func (c *Condition) glob() *regexp.Regexp {
	if len(c.globs) > 0 {
		return c.globs[0]
	}
	return globRegexp(c.Value.Text)
}

func (c *Condition) matchTags(tags []string) bool {
	has := func(pred func(string) bool) bool {
		for _, t := range tags {
			if pred(t) {
				return true
			}
		}
		return false
	}
	switch c.Op {
	case OpIs:
		return len(tags) == 0
	case OpIsNot:
		return len(tags) > 0
	case OpEq:
		return has(func(t string) bool { return strings.EqualFold(t, c.Value.Text) })
	case OpNe:
		return !has(func(t string) bool { return strings.EqualFold(t, c.Value.Text) })
	case OpMatch:
		return has(c.glob().MatchString)
	case OpNotMatch:
		return !has(c.glob().MatchString)
	case OpIn, OpNotIn:
		in := has(func(t string) bool {
			for _, v := range c.Value.List {
				if strings.EqualFold(t, v.Text) {
					return true
				}
			}
			return false
		})
		return in == (c.Op == OpIn)
	}
	return false
}

func dateOf(f Field, r *Record) *time.Time {
	switch f {
	case FieldDue:
		return r.DueDate
	case FieldStart:
		return r.StartAt
	case FieldReviewed:
		return r.ReviewedAt
	case FieldCreated:
		return timeRef(r.CreatedAt)
	case FieldUpdated:
		return timeRef(r.UpdatedAt)
	}
	return nil
}

func timeRef(t time.Time) *time.Time {
	if t.IsZero() {
		return nil
	}
	return &t
}

// matchDate compares by calendar day for date-only values and exactly for date-times.
// A missing date only satisfies != and IS NULL.
func (c *Condition) matchDate(t *time.Time) bool {
	switch c.Op {
	case OpIs:
		return t == nil
	case OpIsNot:
		return t != nil
	}
	if t == nil {
		return c.Op == OpNe
	}
	var cmp int
	if c.Value.Kind == ValDate {
		cmp = compareInts(civil(t.In(c.Value.Time.Location())), civil(c.Value.Time))
	} else {
		cmp = t.Compare(c.Value.Time)
	}
	switch c.Op {
	case OpEq:
		return cmp == 0
	case OpNe:
		return cmp != 0
	case OpGt:
		return cmp > 0
	case OpLt:
		return cmp < 0
	case OpGe:
		return cmp >= 0
	case OpLe:
		return cmp <= 0
	}
	return false
}

func civil(t time.Time) int {
	y, m, d := t.Date()
	return y*10000 + int(m)*100 + d
}

func compareInts(a, b int) int {
	switch {
	case a < b:
		return -1
	case a > b:
		return 1
	}
	return 0
}

// Sort orders records by the query's ORDER BY clause, then by sort key and id. Missing
// values sort last in both directions.
func (q *Query) Sort(recs []Record) {
	var order *Order
	if q != nil {
		order = q.Order
	}
	sort.SliceStable(recs, func(i, j int) bool {
		a, b := &recs[i], &recs[j]
		if order != nil {
			if c := compareField(order.Field, a, b, order.Desc); c != 0 {
				return c < 0
			}
		}
		if a.SortKey != b.SortKey {
			return a.SortKey < b.SortKey
		}
		return a.ID < b.ID
	})
}

func compareField(f Field, a, b *Record, desc bool) int {
	flip := func(c int) int {
		if desc {
			return -c
		}
		return c
	}
	switch descriptor(f).Kind {
	case KindDate:
		ta, tb := dateOf(f, a), dateOf(f, b)
		switch {
		case ta == nil && tb == nil:
			return 0
		case ta == nil:
			return 1
		case tb == nil:
			return -1
		}
		return flip(ta.Compare(*tb))
	case KindStatus:
		return flip(compareBools(a.Completed, b.Completed))
	case KindBool:
		return flip(compareBools(a.Someday, b.Someday))
	case KindProject:
		switch {
		case !a.HasProject && !b.HasProject:
			return 0
		case !a.HasProject:
			return 1
		case !b.HasProject:
			return -1
		}
		return flip(strings.Compare(strings.ToLower(a.Project), strings.ToLower(b.Project)))
	}
	return flip(strings.Compare(strings.ToLower(a.Title), strings.ToLower(b.Title)))
}

func compareBools(a, b bool) int {
	switch {
	case a == b:
		return 0
	case !a:
		return -1
	}
	return 1
}
