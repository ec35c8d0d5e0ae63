package filter

import (
	"regexp"
	"strings"
	"time"
)

// Parse parses filter DSL text. Empty or whitespace-only text yields a query that
// matches every task. Errors are always *ParseError.
func Parse(text string) (*Query, error) {
	toks, lexErr := lex(text)
	if lexErr != nil {
		return nil, lexErr
	}
	p := &parser{toks: toks}
	q, err := p.parseQuery()
	if err != nil {
		return nil, err
	}
	return q, nil
}

type parser struct {
	toks []token
	i    int
}

func (p *parser) peek() token { return p.toks[p.i] }

func (p *parser) next() token {
	t := p.toks[p.i]
	if t.kind != tokEOF {
		p.i++
	}
	return t
}

func (p *parser) parseQuery() (*Query, *ParseError) {
	q := &Query{}
	if t := p.peek(); t.kind != tokEOF && !t.is("ORDER") {
		e, err := p.parseOr()
		if err != nil {
			return nil, err
		}
		q.Expr = e
	}
	if p.peek().is("ORDER") {
		o, err := p.parseOrder()
		if err != nil {
			return nil, err
		}
		q.Order = o
	}
	if t := p.peek(); t.kind != tokEOF {
		if t.kind == tokRParen {
			return nil, errAt(Syntax, t.pos, t.end, "unmatched closing parenthesis")
		}
		return nil, errAt(Syntax, t.pos, t.end, "unexpected %s", t.describe())
	}
	return q, nil
}

func (p *parser) parseOrder() (*Order, *ParseError) {
	order := p.next()
	by := p.next()
	if !by.is("BY") {
		return nil, errAt(Syntax, order.pos, by.end, "expected BY after ORDER")
	}
	ft := p.next()
	if ft.kind != tokWord {
		return nil, errAt(Syntax, ft.pos, ft.end, "expected field name after ORDER BY")
	}
	d, ok := LookupField(ft.text)
	if !ok {
		return nil, errAt(UnknownField, ft.pos, ft.end, "unknown field '%s'", ft.text)
	}
	if !d.Sortable {
		return nil, errAt(InvalidValue, ft.pos, ft.end, "cannot order by %s", d.Name())
	}
	o := &Order{Field: d.Field}
	switch t := p.peek(); {
	case t.is("ASC"):
		p.next()
	case t.is("DESC"):
		p.next()
		o.Desc = true
	}
	return o, nil
}

func (p *parser) parseOr() (Expr, *ParseError) {
	first, err := p.parseAnd()
	if err != nil {
		return nil, err
	}
	terms := []Expr{first}
	for p.peek().is("OR") {
		p.next()
		e, err := p.parseAnd()
		if err != nil {
			return nil, err
		}
		terms = append(terms, e)
	}
	if len(terms) == 1 {
		return first, nil
	}
	return &Or{Terms: terms}, nil
}

func (p *parser) parseAnd() (Expr, *ParseError) {
	first, err := p.parseUnary()
	if err != nil {
		return nil, err
	}
	terms := []Expr{first}
	for {
		t := p.peek()
		if t.is("AND") {
			p.next()
		} else if !p.startsUnary() {
			break
		}
		e, err := p.parseUnary()
		if err != nil {
			return nil, err
		}
		terms = append(terms, e)
	}
	if len(terms) == 1 {
		return first, nil
	}
	return &And{Terms: terms}, nil
}

// startsUnary reports whether the next token can begin a clause joined by implicit
// conjunction.
func (p *parser) startsUnary() bool {
	t := p.peek()
	switch t.kind {
	case tokLParen:
		return true
	case tokWord:
		return !t.is("OR") && !t.is("ORDER") && !t.is("AND")
	}
	return false
}

func (p *parser) parseUnary() (Expr, *ParseError) {
	t := p.peek()
	switch {
	case t.is("NOT"):
		p.next()
		x, err := p.parseUnary()
		if err != nil {
			return nil, err
		}
		return &Not{X: x}, nil
	case t.kind == tokLParen:
		p.next()
		if p.peek().kind == tokRParen {
			r := p.next()
			return nil, errAt(Syntax, t.pos, r.end, "empty parentheses")
		}
		e, err := p.parseOr()
		if err != nil {
			return nil, err
		}
		if r := p.peek(); r.kind != tokRParen {
			if r.kind == tokEOF {
				return nil, errAt(Syntax, t.pos, t.end, "missing closing parenthesis")
			}
			return nil, errAt(Syntax, r.pos, r.end, "expected ')' but found %s", r.describe())
		}
		p.next()
		return e, nil
	}
	return p.parseCondition()
}

func (p *parser) parseCondition() (Expr, *ParseError) {
	ft := p.next()
	switch ft.kind {
	case tokWord:
	case tokEOF:
		return nil, errAt(Syntax, ft.pos, ft.end, "expected field name")
	default:
		return nil, errAt(Syntax, ft.pos, ft.end, "expected field name but found %s", ft.describe())
	}
	d, ok := LookupField(ft.text)
	if !ok {
		return nil, errAt(UnknownField, ft.pos, ft.end, "unknown field '%s'", ft.text)
	}

	op, opPos, opEnd, err := p.parseOp(d)
	if err != nil {
		return nil, err
	}
	if !d.Allows(op) {
		return nil, errAt(UnknownOperator, opPos, opEnd, "operator %s is not supported for %s", op, d.Name())
	}

	vt := p.peek()
	raw, err := p.parseValue(d)
	if err != nil {
		return nil, err
	}
	c := &Condition{Field: d.Field, Op: op}
	if c.Value, err = coerce(d, op, raw, vt.pos, p.toks[p.i-1].end); err != nil {
		return nil, err
	}
	if op == OpMatch || op == OpNotMatch {
		c.globs = []*regexp.Regexp{globRegexp(c.Value.Text)}
	}
	return c, nil
}

func (p *parser) parseOp(d FieldDescriptor) (Op, int, int, *ParseError) {
	t := p.next()
	switch {
	case t.kind == tokOp:
		op, ok := symbolOps[t.text]
		if !ok {
			return "", 0, 0, errAt(UnknownOperator, t.pos, t.end, "unknown operator '%s'", t.text)
		}
		return op, t.pos, t.end, nil
	case t.is("IS"):
		if p.peek().is("NOT") {
			n := p.next()
			return OpIsNot, t.pos, n.end, nil
		}
		return OpIs, t.pos, t.end, nil
	case t.is("NOT"):
		n := p.next()
		if !n.is("IN") {
			return "", 0, 0, errAt(UnknownOperator, t.pos, n.end, "expected IN after NOT")
		}
		return OpNotIn, t.pos, n.end, nil
	case t.is("IN"):
		return OpIn, t.pos, t.end, nil
	case t.kind == tokEOF:
		return "", 0, 0, errAt(Syntax, t.pos, t.end, "expected operator after %s", d.Name())
	}
	return "", 0, 0, errAt(UnknownOperator, t.pos, t.end, "unknown operator %s", t.describe())
}

type rawValue struct {
	tok    token
	null   bool
	list   []rawValue
	isList bool
}

func (p *parser) parseValue(d FieldDescriptor) (rawValue, *ParseError) {
	t := p.next()
	switch t.kind {
	case tokString:
		return rawValue{tok: t}, nil
	case tokWord:
		if isReserved(t.text) {
			return rawValue{}, errAt(Syntax, t.pos, t.end, "expected value but found keyword %s", strings.ToUpper(t.text))
		}
		return rawValue{tok: t, null: strings.EqualFold(t.text, "null")}, nil
	case tokLBracket:
		v := rawValue{tok: t, isList: true}
		if p.peek().kind == tokRBracket {
			p.next()
			return v, nil
		}
		for {
			el := p.next()
			switch el.kind {
			case tokString:
				v.list = append(v.list, rawValue{tok: el})
			case tokWord:
				if isReserved(el.text) {
					return rawValue{}, errAt(Syntax, el.pos, el.end, "expected value but found keyword %s", strings.ToUpper(el.text))
				}
				v.list = append(v.list, rawValue{tok: el, null: strings.EqualFold(el.text, "null")})
			case tokEOF:
				return rawValue{}, errAt(Syntax, t.pos, el.end, "unterminated list")
			default:
				return rawValue{}, errAt(Syntax, el.pos, el.end, "expected list element but found %s", el.describe())
			}
			sep := p.next()
			switch sep.kind {
			case tokComma:
				continue
			case tokRBracket:
				return v, nil
			case tokEOF:
				return rawValue{}, errAt(Syntax, t.pos, sep.end, "unterminated list")
			default:
				return rawValue{}, errAt(Syntax, sep.pos, sep.end, "expected ',' or ']' but found %s", sep.describe())
			}
		}
	case tokEOF:
		return rawValue{}, errAt(Syntax, t.pos, t.end, "expected value after %s", d.Name())
	}
	return rawValue{}, errAt(Syntax, t.pos, t.end, "expected value but found %s", t.describe())
}

func coerce(d FieldDescriptor, op Op, raw rawValue, pos, end int) (Value, *ParseError) {
	switch op {
	case OpIs, OpIsNot:
		if !raw.null {
			return Value{}, errAt(InvalidValue, pos, end, "%s expects NULL", op)
		}
		return Value{Kind: ValNull}, nil
	case OpIn, OpNotIn:
		if !raw.isList {
			return Value{}, errAt(InvalidValue, pos, end, "%s expects a list like ['a', 'b']", op)
		}
		out := Value{Kind: ValList}
		for _, el := range raw.list {
			v, err := coerceScalar(d, el)
			if err != nil {
				return Value{}, err
			}
			out.List = append(out.List, v)
		}
		return out, nil
	}
	if raw.isList {
		return Value{}, errAt(InvalidValue, pos, end, "lists are only allowed with IN and NOT IN")
	}
	if raw.null {
		return Value{}, errAt(InvalidValue, pos, end, "use IS NULL or IS NOT NULL to test for missing values")
	}
	return coerceScalar(d, raw)
}

func coerceScalar(d FieldDescriptor, raw rawValue) (Value, *ParseError) {
	t := raw.tok
	if raw.null {
		return Value{}, errAt(InvalidValue, t.pos, t.end, "NULL is not allowed in a list")
	}
	switch d.Kind {
	case KindStatus:
		s, ok := statusValues[strings.ToLower(t.text)]
		if !ok {
			return Value{}, errAt(InvalidValue, t.pos, t.end, "invalid status '%s' (want active, open, completed or done)", t.text)
		}
		return Value{Kind: ValStatus, Text: s}, nil
	case KindDate:
		for _, layout := range []string{dateLayout, "2006-01-02T15:04", dateTimeLayout} {
			tm, err := time.ParseInLocation(layout, t.text, time.Local)
			if err != nil {
				continue
			}
			if layout == dateLayout {
				return Value{Kind: ValDate, Time: tm}, nil
			}
			return Value{Kind: ValDateTime, Time: tm}, nil
		}
		return Value{}, errAt(InvalidValue, t.pos, t.end, "invalid date '%s' (want YYYY-MM-DD or YYYY-MM-DDTHH:MM[:SS])", t.text)
	case KindBool:
		if t.kind == tokWord {
			switch strings.ToLower(t.text) {
			case "true":
				return Value{Kind: ValBool, Bool: true}, nil
			case "false":
				return Value{Kind: ValBool}, nil
			}
		}
		return Value{}, errAt(InvalidValue, t.pos, t.end, "%s expects true or false", d.Name())
	case KindTags:
		return Value{Kind: ValText, Text: strings.ToLower(t.text)}, nil
	}
	return Value{Kind: ValText, Text: t.text}, nil
}

// globRegexp compiles a case-insensitive glob where * matches any run and ? one rune.
func globRegexp(pattern string) *regexp.Regexp {
	var b strings.Builder
	b.WriteString(`(?is)^`)
	for _, r := range pattern {
		switch r {
		case '*':
			b.WriteString(".*")
		case '?':
			b.WriteByte('.')
		default:
			b.WriteString(regexp.QuoteMeta(string(r)))
		}
	}
	b.WriteByte('$')
	return regexp.MustCompile(b.String())
}
