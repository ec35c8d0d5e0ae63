package titletoken

import (
	"reflect"
	"testing"
)

func kinds(segs []Segment) []Kind {
	out := make([]Kind, 0, len(segs))
	for _, s := range segs {
		out = append(out, s.Kind)
	}
	return out
}

func TestExtract_NoTokens(t *testing.T) {
	in := Extract("Buy groceries")
	if in.Title != "Buy groceries" || in.Project != "" || len(in.Tags) != 0 || in.URL != "" {
		t.Fatalf("unexpected intake: %#v", in)
	}
}

func TestExtract_TagAndProject(t *testing.T) {
	in := Extract("Buy groceries #shopping @Personal")
	if in.Title != "Buy groceries" {
		t.Fatalf("title = %q", in.Title)
	}
	if in.Project != "Personal" {
		t.Fatalf("project = %q", in.Project)
	}
	if !reflect.DeepEqual(in.Tags, []string{"shopping"}) {
		t.Fatalf("tags = %v", in.Tags)
	}
}

func TestExtract_TagsWithSpecialSeparators(t *testing.T) {
	in := Extract("Deploy #colon:separated:tag #dot.tag #dash-tag #under_score")
	want := []string{"colon:separated:tag", "dot.tag", "dash-tag", "under_score"}
	if !reflect.DeepEqual(in.Tags, want) {
		t.Fatalf("tags = %v, want %v", in.Tags, want)
	}
	if in.Title != "Deploy" {
		t.Fatalf("title = %q", in.Title)
	}
}

func TestExtract_TrailingSeparatorIsNotPartOfTag(t *testing.T) {
	in := Extract("Ship it #release.")
	if !reflect.DeepEqual(in.Tags, []string{"release"}) {
		t.Fatalf("tags = %v", in.Tags)
	}
	if in.Title != "Ship it ." {
		t.Fatalf("title = %q", in.Title)
	}
}

func TestExtract_TrailingDashAndUnderscoreStayInTag(t *testing.T) {
	in := Extract("#my-")
	if !reflect.DeepEqual(in.Tags, []string{"my-"}) || in.Title != "" {
		t.Fatalf("unexpected intake: %#v", in)
	}
	in = Extract("Plan #q4_ #wip-:")
	if !reflect.DeepEqual(in.Tags, []string{"q4_", "wip-"}) {
		t.Fatalf("tags = %v", in.Tags)
	}
	if in.Title != "Plan :" {
		t.Fatalf("title = %q", in.Title)
	}
}

func TestExtract_DuplicateTagsAndLastProjectWins(t *testing.T) {
	in := Extract("Test #foo #FOO @First @Second #foo")
	if !reflect.DeepEqual(in.Tags, []string{"foo"}) {
		t.Fatalf("tags = %v", in.Tags)
	}
	if in.Project != "Second" {
		t.Fatalf("project = %q", in.Project)
	}
	if in.Title != "Test" {
		t.Fatalf("title = %q", in.Title)
	}
}

func TestExtract_BareSymbolsStayText(t *testing.T) {
	in := Extract("Test # nothing @ here")
	if in.Title != "Test # nothing @ here" || len(in.Tags) != 0 || in.Project != "" {
		t.Fatalf("unexpected intake: %#v", in)
	}
	for _, seg := range Collect("# @") {
		if seg.Kind != Text {
			t.Fatalf("expected only text segments, got %#v", seg)
		}
	}
}

func TestExtract_MidWordSymbolsStayText(t *testing.T) {
	in := Extract("C#sharp mail me@example.com")
	if in.Title != "C#sharp mail me@example.com" || len(in.Tags) != 0 || in.Project != "" {
		t.Fatalf("unexpected intake: %#v", in)
	}
}

func TestExtract_BareURLKeptInTitle(t *testing.T) {
	in := Extract("Read https://example.com/a?b=1. later #reading")
	if in.URL != "https://example.com/a?b=1" {
		t.Fatalf("url = %q", in.URL)
	}
	if in.Title != "Read https://example.com/a?b=1. later" {
		t.Fatalf("title = %q", in.Title)
	}
}

func TestSegments_MarkdownLinkIsNotDoubleExtracted(t *testing.T) {
	segs := Collect("See [docs](https://example.com/docs) and https://go.dev")
	got := kinds(segs)
	want := []Kind{Text, URL}
	if !reflect.DeepEqual(got, want) {
		t.Fatalf("kinds = %v, want %v (%#v)", got, want, segs)
	}
	if segs[0].Raw != "See [docs](https://example.com/docs) and " {
		t.Fatalf("text = %q", segs[0].Raw)
	}
	if segs[1].Value != "https://go.dev" {
		t.Fatalf("url = %q", segs[1].Value)
	}
}

func TestSegments_OffsetsCoverInput(t *testing.T) {
	title := "Plan @Work trip #travel:2025 https://maps.example.com"
	prev := 0
	for seg := range Segments(title) {
		if seg.Start != prev {
			t.Fatalf("gap before %#v", seg)
		}
		if title[seg.Start:seg.End] != seg.Raw {
			t.Fatalf("raw mismatch for %#v", seg)
		}
		prev = seg.End
	}
	if prev != len(title) {
		t.Fatalf("segments end at %d, want %d", prev, len(title))
	}
}

func TestSegments_IsRestartableAndStopsEarly(t *testing.T) {
	seq := Segments("a #b c #d")
	first := 0
	for range seq {
		first++
	}
	second := 0
	for range seq {
		second++
	}
	if first != second || first != 4 {
		t.Fatalf("expected 4 segments on both passes, got %d and %d", first, second)
	}
	n := 0
	for range seq {
		n++
		break
	}
	if n != 1 {
		t.Fatalf("expected early stop after 1 segment, got %d", n)
	}
}
