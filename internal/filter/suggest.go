package filter

import (
	"strings"
	"unicode"
)

// Vocabulary supplies the data-dependent completion candidates.
type Vocabulary struct {
	Projects []string
	Tags     []string
}

type SuggestionKind string

const (
	SuggestField    SuggestionKind = "field"
	SuggestOperator SuggestionKind = "operator"
	SuggestValue    SuggestionKind = "value"
	SuggestKeyword  SuggestionKind = "keyword"
)

// Suggestion replaces the query text between Start and the cursor (rune offsets) with
// Value.
type Suggestion struct {
	Label string         `json:"label"`
	Value string         `json:"value"`
	Kind  SuggestionKind `json:"kind"`
	Start int            `json:"start"`
}

type completion struct {
	kind       SuggestionKind
	field      FieldDescriptor
	op         Op
	partial    string
	start      int
	orderBy    bool
	afterOrder bool
}

// Suggest returns completions for the query text at cursor (a rune offset). It works
// on any partial input.
func Suggest(text string, cursor int, vocab Vocabulary) []Suggestion {
	c, ok := detect(text, cursor)
	if !ok {
		return nil
	}
	lower := strings.ToLower(c.partial)
	var out []Suggestion
	add := func(label, value string) {
		if strings.HasPrefix(strings.ToLower(label), lower) {
			out = append(out, Suggestion{Label: label, Value: value, Kind: c.kind, Start: c.start})
		}
	}
	switch c.kind {
	case SuggestField:
		for _, d := range registry {
			if c.orderBy && !d.Sortable {
				continue
			}
			add(d.Name(), d.Name())
		}
	case SuggestOperator:
		for _, op := range c.field.Ops {
			add(string(op), string(op))
		}
	case SuggestKeyword:
		kws := []string{"AND", "OR", "NOT", "ORDER BY"}
		switch {
		case c.afterOrder:
			kws = []string{"BY"}
		case c.orderBy:
			kws = []string{"ASC", "DESC"}
		}
		for _, kw := range kws {
			add(kw, kw)
		}
	case SuggestValue:
		if c.op == OpIs || c.op == OpIsNot {
			add("NULL", "NULL")
			break
		}
		switch c.field.Kind {
		case KindStatus:
			for _, s := range []string{"active", "open", "completed", "done"} {
				add(s, s)
			}
		case KindBool:
			add("true", "true")
			add("false", "false")
		case KindProject:
			for _, p := range vocab.Projects {
				add(p, quote(p))
			}
		case KindTags:
			for _, t := range vocab.Tags {
				add(t, quote(t))
			}
		}
	}
	return out
}

func quote(s string) string {
	var b strings.Builder
	writeValue(&b, Value{Kind: ValText, Text: s})
	return b.String()
}

func detect(text string, cursor int) (completion, bool) {
	rs := []rune(text)
	if cursor < 0 || cursor > len(rs) {
		cursor = len(rs)
	}
	prefix := string(rs[:cursor])
	toks, lexErr := lex(prefix)
	if n := len(toks); n > 0 && toks[n-1].kind == tokEOF {
		toks = toks[:n-1]
	}

	c := completion{start: cursor}
	if lexErr != nil {
		// Inside an open quote: the quoted text is the partial value.
		c.start = lexErr.Pos
		c.partial = string(rs[lexErr.Pos+1 : cursor])
	} else if n := len(toks); n > 0 && toks[n-1].end == cursor && (toks[n-1].kind == tokWord || toks[n-1].kind == tokOp) {
		if cursor > 0 && !unicode.IsSpace(rs[cursor-1]) {
			c.partial = toks[n-1].text
			c.start = toks[n-1].pos
			toks = toks[:n-1]
		}
	}

	n := len(toks)
	last := func(i int) token {
		if n-i < 0 {
			return token{kind: tokEOF}
		}
		return toks[n-i]
	}

	switch {
	case n == 0, last(1).is("AND"), last(1).is("OR"), last(1).kind == tokLParen:
		c.kind = SuggestField
		return c, true
	case last(1).is("NOT") && !last(2).is("IS") && !isFieldToken(last(2)):
		c.kind = SuggestField
		return c, true
	case last(1).is("ORDER"):
		c.kind, c.afterOrder = SuggestKeyword, true
		return c, true
	case last(1).is("BY") && last(2).is("ORDER"):
		c.kind, c.orderBy = SuggestField, true
		return c, true
	case isFieldToken(last(1)) && last(2).is("BY") && last(3).is("ORDER"):
		c.kind, c.orderBy = SuggestKeyword, true
		return c, true
	case isFieldToken(last(1)) && !isOperatorToken(last(2)):
		c.kind = SuggestOperator
		c.field, _ = LookupField(last(1).text)
		return c, true
	}

	if d, op, ok := valueContext(toks); ok {
		c.kind, c.field, c.op = SuggestValue, d, op
		return c, true
	}
	if isValueEnd(last(1)) {
		c.kind = SuggestKeyword
		return c, true
	}
	return c, false
}

func isFieldToken(t token) bool {
	if t.kind != tokWord {
		return false
	}
	_, ok := LookupField(t.text)
	return ok
}

func isOperatorToken(t token) bool {
	return t.kind == tokOp || t.is("IN") || t.is("IS")
}

func isValueEnd(t token) bool {
	switch t.kind {
	case tokString, tokRBracket, tokRParen:
		return true
	case tokWord:
		return !isReserved(t.text)
	}
	return false
}

// valueContext reports the field and operator whose value is being typed, including
// positions inside a list literal.
func valueContext(toks []token) (FieldDescriptor, Op, bool) {
	n := len(toks)
	if n == 0 {
		return FieldDescriptor{}, "", false
	}
	// Walk back over an open list.
	i := n - 1
	if toks[i].kind == tokLBracket || toks[i].kind == tokComma {
		for i >= 0 && toks[i].kind != tokLBracket {
			if toks[i].kind == tokRBracket {
				return FieldDescriptor{}, "", false
			}
			i--
		}
		if i < 0 {
			return FieldDescriptor{}, "", false
		}
		i--
	}
	if i < 1 {
		return FieldDescriptor{}, "", false
	}
	t := toks[i]
	var op Op
	fieldIdx := i - 1
	switch {
	case t.kind == tokOp:
		o, ok := symbolOps[t.text]
		if !ok {
			return FieldDescriptor{}, "", false
		}
		op = o
	case t.is("IN"):
		op = OpIn
		if toks[i-1].is("NOT") {
			op, fieldIdx = OpNotIn, i-2
		}
	case t.is("IS"):
		op = OpIs
	case t.is("NOT") && toks[i-1].is("IS"):
		op, fieldIdx = OpIsNot, i-2
	default:
		return FieldDescriptor{}, "", false
	}
	if fieldIdx < 0 || !isFieldToken(toks[fieldIdx]) {
		return FieldDescriptor{}, "", false
	}
	d, _ := LookupField(toks[fieldIdx].text)
	return d, op, true
}
