package filter

import (
	"regexp"
	"strings"
	"time"
)

// Query is a parsed filter. It is immutable and safe for concurrent use.
// A nil Expr matches every task.
type Query struct {
	Expr  Expr
	Order *Order
}

type Order struct {
	Field Field
	Desc  bool
}

// Expr is one of *And, *Or, *Not or *Condition.
type Expr interface {
	precedence() int
}

const (
	precOr = iota + 1
	precAnd
	precNot
	precCond
)

type And struct{ Terms []Expr }
type Or struct{ Terms []Expr }
type Not struct{ X Expr }

type Condition struct {
	Field Field
	Op    Op
	Value Value

	globs []*regexp.Regexp
}

func (*And) precedence() int       { return precAnd }
func (*Or) precedence() int        { return precOr }
func (*Not) precedence() int       { return precNot }
func (*Condition) precedence() int { return precCond }

type ValueKind int

const (
	ValText ValueKind = iota
	ValStatus
	ValDate
	ValDateTime
	ValBool
	ValNull
	ValList
)

// Value is a typed literal. Text holds text and status values, Time dates, Bool
// booleans and List list elements.
type Value struct {
	Kind ValueKind
	Text string
	Time time.Time
	Bool bool
	List []Value
}

const (
	dateLayout     = "2006-01-02"
	dateTimeLayout = "2006-01-02T15:04:05"
)

// String renders the query in canonical form: upper-case keywords, canonical field
// names, quoted text, and only the parentheses precedence requires.
func (q *Query) String() string {
	if q == nil {
		return ""
	}
	var b strings.Builder
	if q.Expr != nil {
		writeExpr(&b, q.Expr, precOr)
	}
	if q.Order != nil {
		if b.Len() > 0 {
			b.WriteByte(' ')
		}
		b.WriteString("ORDER BY ")
		b.WriteString(descriptor(q.Order.Field).Name())
		if q.Order.Desc {
			b.WriteString(" DESC")
		} else {
			b.WriteString(" ASC")
		}
	}
	return b.String()
}

func writeExpr(b *strings.Builder, e Expr, ctx int) {
	if e.precedence() < ctx {
		b.WriteByte('(')
		defer b.WriteByte(')')
	}
	switch e := e.(type) {
	case *Or:
		for i, t := range e.Terms {
			if i > 0 {
				b.WriteString(" OR ")
			}
			writeExpr(b, t, precAnd)
		}
	case *And:
		for i, t := range e.Terms {
			if i > 0 {
				b.WriteString(" AND ")
			}
			writeExpr(b, t, precNot)
		}
	case *Not:
		b.WriteString("NOT ")
		writeExpr(b, e.X, precNot)
	case *Condition:
		b.WriteString(descriptor(e.Field).Name())
		b.WriteByte(' ')
		b.WriteString(string(e.Op))
		b.WriteByte(' ')
		writeValue(b, e.Value)
	}
}

func writeValue(b *strings.Builder, v Value) {
	switch v.Kind {
	case ValStatus:
		b.WriteString(v.Text)
	case ValDate:
		b.WriteString(v.Time.Format(dateLayout))
	case ValDateTime:
		b.WriteString(v.Time.Format(dateTimeLayout))
	case ValBool:
		if v.Bool {
			b.WriteString("true")
		} else {
			b.WriteString("false")
		}
	case ValNull:
		b.WriteString("NULL")
	case ValList:
		b.WriteByte('[')
		for i, el := range v.List {
			if i > 0 {
				b.WriteString(", ")
			}
			writeValue(b, el)
		}
		b.WriteByte(']')
	default:
		b.WriteByte('\'')
		for _, r := range v.Text {
			if r == '\'' || r == '\\' {
				b.WriteByte('\\')
			}
			b.WriteRune(r)
		}
		b.WriteByte('\'')
	}
}
