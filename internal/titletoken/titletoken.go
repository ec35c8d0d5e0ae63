// Package titletoken splits free-text task titles into plain text and inline tokens:
// @project references, #tags and bare URLs.
package titletoken

import (
	"iter"
	"regexp"
	"strings"
	"unicode"
	"unicode/utf8"

	"north/internal/model"
)

type Kind int

const (
	Text Kind = iota
	Project
	Tag
	URL
)

func (k Kind) String() string {
	switch k {
	case Project:
		return "project"
	case Tag:
		return "tag"
	case URL:
		return "url"
	default:
		return "text"
	}
}

func (k Kind) MarshalText() ([]byte, error) { return []byte(k.String()), nil }

// Segment is one run of a title. Raw is the exact source text; Value is the extracted
// name (without the leading symbol) or URL. Start and End are byte offsets.
type Segment struct {
	Kind  Kind   `json:"kind"`
	Raw   string `json:"raw"`
	Value string `json:"value,omitempty"`
	Start int    `json:"start"`
	End   int    `json:"end"`
}

var (
	urlRE    = regexp.MustCompile(`^[a-zA-Z][a-zA-Z0-9+.\-]*://[^\s)<>\[\]]+`)
	mdLinkRE = regexp.MustCompile(`\[[^\]]*\]\([^)]+\)`)
)

const urlTrailingPunct = ".,;:!?'\""

// Segments returns a lazy sequence over the segments of title. Adjacent text is merged
// into a single Text segment. The sequence can be ranged over any number of times.
func Segments(title string) iter.Seq[Segment] {
	return func(yield func(Segment) bool) {
		s := scanner{src: title, links: mdLinkRE.FindAllStringIndex(title, -1)}
		s.run(yield)
	}
}

type scanner struct {
	src   string
	links [][]int

	textStart int
	stopped   bool
}

func (s *scanner) run(yield func(Segment) bool) {
	pos := 0
	for pos < len(s.src) && !s.stopped {
		if end, ok := s.linkAt(pos); ok {
			pos = end
			continue
		}
		if seg, ok := s.urlAt(pos); ok {
			s.emit(yield, seg)
			pos = seg.End
			continue
		}
		if s.wordStart(pos) {
			if seg, ok := s.symbolAt(pos); ok {
				s.emit(yield, seg)
				pos = seg.End
				continue
			}
		}
		_, w := utf8.DecodeRuneInString(s.src[pos:])
		pos += w
	}
	if !s.stopped && s.textStart < len(s.src) {
		yield(Segment{Kind: Text, Raw: s.src[s.textStart:], Start: s.textStart, End: len(s.src)})
	}
}

// emit flushes pending text before seg and yields seg.
func (s *scanner) emit(yield func(Segment) bool, seg Segment) {
	if s.textStart < seg.Start {
		txt := Segment{Kind: Text, Raw: s.src[s.textStart:seg.Start], Start: s.textStart, End: seg.Start}
		if !yield(txt) {
			s.stopped = true
			return
		}
	}
	if !yield(seg) {
		s.stopped = true
		return
	}
	s.textStart = seg.End
}

// linkAt reports the end of a markdown link starting at pos. Links stay text.
func (s *scanner) linkAt(pos int) (int, bool) {
	for _, l := range s.links {
		if l[0] == pos {
			return l[1], true
		}
	}
	return 0, false
}

func (s *scanner) urlAt(pos int) (Segment, bool) {
	loc := urlRE.FindStringIndex(s.src[pos:])
	if loc == nil {
		return Segment{}, false
	}
	// A scheme is only recognized at its start, not in the middle of a word.
	if pos > 0 {
		prev, _ := utf8.DecodeLastRuneInString(s.src[:pos])
		if unicode.IsLetter(prev) || unicode.IsDigit(prev) {
			return Segment{}, false
		}
	}
	raw := strings.TrimRight(s.src[pos:pos+loc[1]], urlTrailingPunct)
	if !strings.Contains(raw, "://") || strings.HasSuffix(raw, "://") {
		return Segment{}, false
	}
	return Segment{Kind: URL, Raw: raw, Value: raw, Start: pos, End: pos + len(raw)}, true
}

func (s *scanner) wordStart(pos int) bool {
	if pos == 0 {
		return true
	}
	prev, _ := utf8.DecodeLastRuneInString(s.src[:pos])
	return unicode.IsSpace(prev)
}

func (s *scanner) symbolAt(pos int) (Segment, bool) {
	switch s.src[pos] {
	case '@':
		end := pos + 1
		for end < len(s.src) {
			r, w := utf8.DecodeRuneInString(s.src[end:])
			if unicode.IsSpace(r) {
				break
			}
			end += w
		}
		if end == pos+1 {
			return Segment{}, false
		}
		return Segment{Kind: Project, Raw: s.src[pos:end], Value: s.src[pos+1 : end], Start: pos, End: end}, true
	case '#':
		end := pos + 1
		for end < len(s.src) {
			r, w := utf8.DecodeRuneInString(s.src[end:])
			if !isTagRune(r) {
				break
			}
			end += w
		}
		// A trailing ':' or '.' is sentence punctuation; '-' and '_' stay in the tag.
		for end > pos+1 && (s.src[end-1] == ':' || s.src[end-1] == '.') {
			end--
		}
		if end == pos+1 {
			return Segment{}, false
		}
		return Segment{Kind: Tag, Raw: s.src[pos:end], Value: s.src[pos+1 : end], Start: pos, End: end}, true
	}
	return Segment{}, false
}

func isTagRune(r rune) bool {
	return unicode.IsLetter(r) || unicode.IsDigit(r) || (r < utf8.RuneSelf && isTagSeparator(byte(r)))
}

func isTagSeparator(c byte) bool {
	return c == ':' || c == '.' || c == '-' || c == '_'
}

// Intake is what task creation stores from a raw title.
type Intake struct {
	Title   string   `json:"title"`
	Project string   `json:"project,omitempty"`
	Tags    []string `json:"tags,omitempty"`
	URL     string   `json:"url,omitempty"`
}

// Extract removes @project and #tag tokens from title. Bare URLs stay in the title.
// The last @project wins; tags are normalized and de-duplicated.
func Extract(title string) Intake {
	var (
		b    strings.Builder
		out  Intake
		tags []string
	)
	for seg := range Segments(title) {
		switch seg.Kind {
		case Project:
			out.Project = seg.Value
			b.WriteByte(' ')
		case Tag:
			tags = append(tags, seg.Value)
			b.WriteByte(' ')
		case URL:
			if out.URL == "" {
				out.URL = seg.Value
			}
			b.WriteString(seg.Raw)
		default:
			b.WriteString(seg.Raw)
		}
	}
	out.Title = strings.Join(strings.Fields(b.String()), " ")
	out.Tags = model.NormalizeTags(tags)
	return out
}

// Collect materializes a title's segments.
func Collect(title string) []Segment {
	var out []Segment
	for seg := range Segments(title) {
		out = append(out, seg)
	}
	return out
}
