package filter

import (
	"errors"
	"testing"
	"time"
)

func day(y int, m time.Month, d, hour int) *time.Time {
	t := time.Date(y, m, d, hour, 0, 0, 0, time.Local)
	return &t
}

func mustParse(t *testing.T, text string) *Query {
	t.Helper()
	q, err := Parse(text)
	if err != nil {
		t.Fatalf("Parse(%q): unexpected err: %v", text, err)
	}
	return q
}

func parseErr(t *testing.T, text string) *ParseError {
	t.Helper()
	_, err := Parse(text)
	if err == nil {
		t.Fatalf("Parse(%q): expected error", text)
	}
	var pe *ParseError
	if !errors.As(err, &pe) {
		t.Fatalf("Parse(%q): expected *ParseError, got %T", text, err)
	}
	if pe.Message == "" {
		t.Fatalf("Parse(%q): empty error message", text)
	}
	return pe
}

func sampleRecords() []Record {
	return []Record{
		{ID: 1, SortKey: "a", Title: "Call mom", Tags: []string{"family"}, DueDate: day(2026, 10, 16, 18)},
		{ID: 2, SortKey: "b", Title: "Write report", Project: "Work", HasProject: true, Tags: []string{"urgent", "writing"}},
		{ID: 3, SortKey: "c", Title: "Plan trip", Project: "Home", HasProject: true, Completed: true, DueDate: day(2026, 10, 1, 9)},
		{ID: 4, SortKey: "d", Title: "Learn piano", Someday: true, StartAt: day(2026, 9, 30, 8)},
		{ID: 5, SortKey: "e", Title: "it's done", Body: "notes", Project: "work", HasProject: true},
	}
}

func matching(q *Query, recs []Record) []int64 {
	var out []int64
	for _, r := range recs {
		if q.Match(r) {
			out = append(out, r.ID)
		}
	}
	return out
}

func sameIDs(a, b []int64) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}

func TestParse_StatusActive(t *testing.T) {
	q := mustParse(t, "status = active")
	if got, want := matching(q, sampleRecords()), []int64{1, 2, 4, 5}; !sameIDs(got, want) {
		t.Fatalf("matches = %v, want %v", got, want)
	}
	q = mustParse(t, "STATUS = Done")
	if got, want := matching(q, sampleRecords()), []int64{3}; !sameIDs(got, want) {
		t.Fatalf("matches = %v, want %v", got, want)
	}
}

func TestParse_UnknownFieldIsReportedAtFirstToken(t *testing.T) {
	pe := parseErr(t, "invalid ??? query")
	if pe.Kind != UnknownField || pe.Pos != 0 || pe.End != 7 {
		t.Fatalf("unexpected error: %#v", pe)
	}
}

func TestParse_EmptyQueryMatchesEverything(t *testing.T) {
	for _, text := range []string{"", "   \t"} {
		q := mustParse(t, text)
		if q.Expr != nil || q.Order != nil {
			t.Fatalf("Parse(%q): expected empty query, got %#v", text, q)
		}
		if got := matching(q, sampleRecords()); len(got) != 5 {
			t.Fatalf("Parse(%q): matched %v, want all", text, got)
		}
	}
}

func TestParse_ErrorKindsAndSpans(t *testing.T) {
	cases := []struct {
		text     string
		kind     ErrorKind
		pos, end int
	}{
		{"title = 'abc", Syntax, 8, 12},
		{"status == active", UnknownOperator, 7, 9},
		{"status ~ active", UnknownOperator, 7, 8},
		{"status = maybe", InvalidValue, 9, 14},
		{"due > tomorrow", InvalidValue, 6, 14},
		{"someday =~ true", UnknownOperator, 8, 10},
		{"(status = active", Syntax, 0, 1},
		{"status = active)", Syntax, 15, 16},
		{"tags IN 'x'", InvalidValue, 8, 11},
		{"project = NULL", InvalidValue, 10, 14},
		{"status =", Syntax, 8, 8},
		{"status = active AND", Syntax, 19, 19},
		{"ORDER BY tags", InvalidValue, 9, 13},
		{"title = 'x' ORDER title", Syntax, 12, 23},
		{"tags IN [a, b", Syntax, 8, 13},
	}
	for _, tc := range cases {
		pe := parseErr(t, tc.text)
		if pe.Kind != tc.kind || pe.Pos != tc.pos || pe.End != tc.end {
			t.Fatalf("Parse(%q): got %s %d..%d (%s), want %s %d..%d",
				tc.text, pe.Kind, pe.Pos, pe.End, pe.Message, tc.kind, tc.pos, tc.end)
		}
	}
}

func TestParse_ImplicitConjunctionAndPrecedence(t *testing.T) {
	q := mustParse(t, "status = active tags = Urgent")
	if got, want := q.String(), "status = active AND tags = 'urgent'"; got != want {
		t.Fatalf("String() = %q, want %q", got, want)
	}
	if got, want := matching(q, sampleRecords()), []int64{2}; !sameIDs(got, want) {
		t.Fatalf("matches = %v, want %v", got, want)
	}

	q = mustParse(t, "status = done or tag = urgent and someday = false")
	if _, ok := q.Expr.(*Or); !ok {
		t.Fatalf("expected OR at the top, got %T", q.Expr)
	}
	if got, want := q.String(), "status = completed OR tags = 'urgent' AND someday = false"; got != want {
		t.Fatalf("String() = %q, want %q", got, want)
	}
}

func TestQuery_StringRoundTripEvaluatesIdentically(t *testing.T) {
	queries := []string{
		"(project = Work OR project IS NULL) AND NOT tags IN [urgent, 'later']",
		"title =~ 'call*' ORDER BY due DESC",
		"due <= 2026-10-16 AND start_at > 2026-09-01T09:30",
		"NOT (status = done OR someday = true)",
		`title = 'it\'s done'`,
		"body IS NOT NULL OR project !~ 'h?me'",
		"status NOT IN [completed] tags !~ urg*",
		"ORDER BY title",
	}
	recs := sampleRecords()
	for _, text := range queries {
		q := mustParse(t, text)
		canonical := q.String()
		q2 := mustParse(t, canonical)
		if q2.String() != canonical {
			t.Fatalf("canonical form not stable: %q -> %q", canonical, q2.String())
		}
		if a, b := matching(q, recs), matching(q2, recs); !sameIDs(a, b) {
			t.Fatalf("%q: original matched %v, reparsed %q matched %v", text, a, canonical, b)
		}
	}
}

func TestQuery_CanonicalForm(t *testing.T) {
	q := mustParse(t, "(project = Work OR project IS NULL) and not tags in [Urgent, 'later'] order by DUE desc")
	want := "(project = 'Work' OR project IS NULL) AND NOT tags IN ['urgent', 'later'] ORDER BY due_date DESC"
	if got := q.String(); got != want {
		t.Fatalf("String() = %q, want %q", got, want)
	}
}

func TestMatch_TextProjectAndTags(t *testing.T) {
	recs := sampleRecords()
	cases := []struct {
		text string
		want []int64
	}{
		{"project = work", []int64{2, 5}},
		{"project IS NULL", []int64{1, 4}},
		{"project != work", []int64{1, 3, 4}},
		{"project IN [home, nowhere]", []int64{3}},
		{"title =~ '*re*'", []int64{2}},
		{"title !~ '*o*'", []int64{3}},
		{"tags = urgent", []int64{2}},
		{"tags != urgent", []int64{1, 3, 4, 5}},
		{"tags =~ 'wri*'", []int64{2}},
		{"tags IN [family, writing]", []int64{1, 2}},
		{"tags NOT IN [family, writing]", []int64{3, 4, 5}},
		{"tags IS NULL", []int64{3, 4, 5}},
		{"body = NOTES", []int64{5}},
		{"body IS NULL", []int64{1, 2, 3, 4}},
		{"someday = true", []int64{4}},
		{"title = 'it\\'s done'", []int64{5}},
	}
	for _, tc := range cases {
		q := mustParse(t, tc.text)
		if got := matching(q, recs); !sameIDs(got, tc.want) {
			t.Fatalf("%q: matches = %v, want %v", tc.text, got, tc.want)
		}
	}
}

func TestMatch_HandBuiltGlobConditions(t *testing.T) {
	recs := sampleRecords()
	cases := []struct {
		cond *Condition
		want []int64
	}{
		{&Condition{Field: FieldTitle, Op: OpMatch, Value: Value{Text: "*re*"}}, []int64{2}},
		{&Condition{Field: FieldTitle, Op: OpNotMatch, Value: Value{Text: "*o*"}}, []int64{3}},
		{&Condition{Field: FieldTags, Op: OpMatch, Value: Value{Text: "wri*"}}, []int64{2}},
		{&Condition{Field: FieldTags, Op: OpNotMatch, Value: Value{Text: "wri*"}}, []int64{1, 3, 4, 5}},
	}
	for _, tc := range cases {
		q := &Query{Expr: tc.cond}
		if got := matching(q, recs); !sameIDs(got, tc.want) {
			t.Fatalf("%s %s %q: matches = %v, want %v", tc.cond.Field, tc.cond.Op, tc.cond.Value.Text, got, tc.want)
		}
	}
}

func TestMatch_DatesCompareByCalendarDay(t *testing.T) {
	recs := sampleRecords()
	cases := []struct {
		text string
		want []int64
	}{
		{"due = 2026-10-16", []int64{1}},
		{"due < 2026-10-17", []int64{1, 3}},
		{"due > 2026-10-16", nil},
		{"due >= 2026-10-01", []int64{1, 3}},
		{"due != 2026-10-16", []int64{2, 3, 4, 5}},
		{"due IS NULL", []int64{2, 4, 5}},
		{"due < 2026-10-16T12:00", []int64{3}},
		{"start <= 2026-09-30", []int64{4}},
	}
	for _, tc := range cases {
		q := mustParse(t, tc.text)
		if got := matching(q, recs); !sameIDs(got, tc.want) {
			t.Fatalf("%q: matches = %v, want %v", tc.text, got, tc.want)
		}
	}
}

func TestMatch_IsIdempotent(t *testing.T) {
	q := mustParse(t, "status = active AND (tags = urgent OR project IS NULL)")
	recs := sampleRecords()
	first := matching(q, recs)
	for i := 0; i < 3; i++ {
		if got := matching(q, recs); !sameIDs(got, first) {
			t.Fatalf("evaluation changed between runs: %v vs %v", first, got)
		}
	}
}

func TestSort_OrderByWithMissingValuesLast(t *testing.T) {
	recs := sampleRecords()
	mustParse(t, "ORDER BY due ASC").Sort(recs)
	if got := []int64{recs[0].ID, recs[1].ID}; !sameIDs(got, []int64{3, 1}) {
		t.Fatalf("ascending head = %v", got)
	}
	mustParse(t, "ORDER BY due DESC").Sort(recs)
	if got := []int64{recs[0].ID, recs[1].ID, recs[2].ID}; !sameIDs(got, []int64{1, 3, 2}) {
		t.Fatalf("descending head = %v", got)
	}
	mustParse(t, "").Sort(recs)
	for i, r := range recs {
		if r.ID != int64(i+1) {
			t.Fatalf("default order broken at %d: %v", i, r.ID)
		}
	}
}

func TestParse_PartialInputNeverPanics(t *testing.T) {
	full := []rune(`(project = 'Wo"rk' OR tags IN [a, "b"]) AND NOT due <= 2026-10-16T08:00 ORDER BY title DESC`)
	for i := 0; i <= len(full); i++ {
		prefix := string(full[:i])
		_, _ = Parse(prefix)
		for c := 0; c <= i; c++ {
			_ = Suggest(prefix, c, Vocabulary{Projects: []string{"Work"}, Tags: []string{"a"}})
		}
	}
}
