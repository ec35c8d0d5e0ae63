package filter

import (
	"strings"
	"unicode"
)

type tokenKind int

const (
	tokEOF tokenKind = iota
	tokWord
	tokString
	tokOp
	tokLParen
	tokRParen
	tokLBracket
	tokRBracket
	tokComma
)

type token struct {
	kind tokenKind
	text string // unquoted for strings
	pos  int
	end  int
}

func (t token) is(keyword string) bool {
	return t.kind == tokWord && strings.EqualFold(t.text, keyword)
}

func (t token) describe() string {
	if t.kind == tokEOF {
		return "end of query"
	}
	return "'" + t.text + "'"
}

var punct = map[rune]tokenKind{'(': tokLParen, ')': tokRParen, '[': tokLBracket, ']': tokRBracket, ',': tokComma}

func isOpRune(r rune) bool {
	switch r {
	case '=', '!', '<', '>', '~':
		return true
	}
	return false
}

func isWordRune(r rune) bool {
	if unicode.IsSpace(r) || isOpRune(r) {
		return false
	}
	switch r {
	case '(', ')', '[', ']', ',', '\'', '"':
		return false
	}
	return true
}

// lex splits src into tokens. On an unterminated string it returns the tokens read so
// far together with the error, so completion can still inspect the prefix.
func lex(src string) ([]token, *ParseError) {
	rs := []rune(src)
	var toks []token
	pos := 0
	for pos < len(rs) {
		r := rs[pos]
		if unicode.IsSpace(r) {
			pos++
			continue
		}
		start := pos
		switch {
		case r == '(' || r == ')' || r == '[' || r == ']' || r == ',':
			toks = append(toks, token{kind: punct[r], text: string(r), pos: start, end: start + 1})
			pos++
		case r == '\'' || r == '"':
			var b strings.Builder
			pos++
			closed := false
			for pos < len(rs) {
				c := rs[pos]
				if c == '\\' && pos+1 < len(rs) {
					b.WriteRune(rs[pos+1])
					pos += 2
					continue
				}
				if c == r {
					closed = true
					pos++
					break
				}
				b.WriteRune(c)
				pos++
			}
			if !closed {
				return toks, errAt(Syntax, start, len(rs), "unterminated string")
			}
			toks = append(toks, token{kind: tokString, text: b.String(), pos: start, end: pos})
		case isOpRune(r):
			for pos < len(rs) && isOpRune(rs[pos]) {
				pos++
			}
			toks = append(toks, token{kind: tokOp, text: string(rs[start:pos]), pos: start, end: pos})
		default:
			for pos < len(rs) && isWordRune(rs[pos]) {
				pos++
			}
			toks = append(toks, token{kind: tokWord, text: string(rs[start:pos]), pos: start, end: pos})
		}
	}
	toks = append(toks, token{kind: tokEOF, pos: len(rs), end: len(rs)})
	return toks, nil
}
