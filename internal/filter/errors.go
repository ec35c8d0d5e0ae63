package filter

import "fmt"

type ErrorKind int

const (
	Syntax ErrorKind = iota
	UnknownField
	UnknownOperator
	InvalidValue
)

func (k ErrorKind) String() string {
	switch k {
	case UnknownField:
		return "unknown_field"
	case UnknownOperator:
		return "unknown_operator"
	case InvalidValue:
		return "invalid_value"
	default:
		return "syntax"
	}
}

func (k ErrorKind) MarshalText() ([]byte, error) { return []byte(k.String()), nil }

// ParseError reports the first offending token of a query. Pos and End are rune offsets
// into the query text, End exclusive.
type ParseError struct {
	Kind    ErrorKind `json:"kind"`
	Pos     int       `json:"pos"`
	End     int       `json:"end"`
	Message string    `json:"message"`
}

func (e *ParseError) Error() string {
	return fmt.Sprintf("%s (at position %d..%d)", e.Message, e.Pos, e.End)
}

func errAt(kind ErrorKind, pos, end int, format string, args ...any) *ParseError {
	if end < pos {
		end = pos
	}
	return &ParseError{Kind: kind, Pos: pos, End: end, Message: fmt.Sprintf(format, args...)}
}
