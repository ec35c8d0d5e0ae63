package filter

import "strings"

type Field string

const (
	FieldStatus   Field = "status"
	FieldTitle    Field = "title"
	FieldBody     Field = "body"
	FieldProject  Field = "project"
	FieldTags     Field = "tags"
	FieldDue      Field = "due_date"
	FieldStart    Field = "start_at"
	FieldReviewed Field = "reviewed_at"
	FieldCreated  Field = "created"
	FieldUpdated  Field = "updated"
	FieldSomeday  Field = "someday"
)

type FieldKind int

const (
	KindStatus FieldKind = iota
	KindText
	KindProject
	KindTags
	KindDate
	KindBool
)

type Op string

const (
	OpEq       Op = "="
	OpNe       Op = "!="
	OpMatch    Op = "=~"
	OpNotMatch Op = "!~"
	OpGt       Op = ">"
	OpLt       Op = "<"
	OpGe       Op = ">="
	OpLe       Op = "<="
	OpIs       Op = "IS"
	OpIsNot    Op = "IS NOT"
	OpIn       Op = "IN"
	OpNotIn    Op = "NOT IN"
)

var symbolOps = map[string]Op{
	"=": OpEq, "!=": OpNe, "=~": OpMatch, "!~": OpNotMatch,
	">": OpGt, "<": OpLt, ">=": OpGe, "<=": OpLe,
}

// FieldDescriptor describes one filterable task field. Names[0] is the canonical name.
type FieldDescriptor struct {
	Field    Field
	Names    []string
	Kind     FieldKind
	Ops      []Op
	Sortable bool
	Doc      string
}

func (d FieldDescriptor) Name() string { return d.Names[0] }

func (d FieldDescriptor) Allows(op Op) bool {
	for _, o := range d.Ops {
		if o == op {
			return true
		}
	}
	return false
}

var (
	textOps = []Op{OpEq, OpNe, OpMatch, OpNotMatch, OpIn, OpNotIn, OpIs, OpIsNot}
	dateOps = []Op{OpEq, OpNe, OpGt, OpLt, OpGe, OpLe, OpIs, OpIsNot}
)

var registry = []FieldDescriptor{
	{Field: FieldStatus, Names: []string{"status"}, Kind: KindStatus, Ops: []Op{OpEq, OpNe, OpIn, OpNotIn}, Sortable: true,
		Doc: "active (open) or completed (done)"},
	{Field: FieldTitle, Names: []string{"title"}, Kind: KindText, Ops: textOps, Sortable: true,
		Doc: "task title"},
	{Field: FieldBody, Names: []string{"body"}, Kind: KindText, Ops: textOps,
		Doc: "task notes"},
	{Field: FieldProject, Names: []string{"project"}, Kind: KindProject, Ops: textOps, Sortable: true,
		Doc: "project title; IS NULL for the inbox"},
	{Field: FieldTags, Names: []string{"tags", "tag"}, Kind: KindTags, Ops: textOps,
		Doc: "tag names"},
	{Field: FieldDue, Names: []string{"due_date", "due"}, Kind: KindDate, Ops: dateOps, Sortable: true,
		Doc: "due date"},
	{Field: FieldStart, Names: []string{"start_at", "start"}, Kind: KindDate, Ops: dateOps, Sortable: true,
		Doc: "start date"},
	{Field: FieldReviewed, Names: []string{"reviewed_at", "reviewed"}, Kind: KindDate, Ops: dateOps, Sortable: true,
		Doc: "last review"},
	{Field: FieldCreated, Names: []string{"created", "created_at"}, Kind: KindDate, Ops: dateOps, Sortable: true,
		Doc: "creation time"},
	{Field: FieldUpdated, Names: []string{"updated", "updated_at"}, Kind: KindDate, Ops: dateOps, Sortable: true,
		Doc: "last modification"},
	{Field: FieldSomeday, Names: []string{"someday"}, Kind: KindBool, Ops: []Op{OpEq, OpNe}, Sortable: true,
		Doc: "deferred to someday (true/false)"},
}

// Fields returns the field registry in display order.
func Fields() []FieldDescriptor {
	return append([]FieldDescriptor(nil), registry...)
}

// LookupField resolves a field name or alias, case-insensitively.
func LookupField(name string) (FieldDescriptor, bool) {
	for _, d := range registry {
		for _, n := range d.Names {
			if strings.EqualFold(n, name) {
				return d, true
			}
		}
	}
	return FieldDescriptor{}, false
}

func descriptor(f Field) FieldDescriptor {
	for _, d := range registry {
		if d.Field == f {
			return d
		}
	}
	return FieldDescriptor{Field: f, Names: []string{string(f)}}
}

const (
	statusActive    = "active"
	statusCompleted = "completed"
)

var statusValues = map[string]string{
	"active":    statusActive,
	"open":      statusActive,
	"completed": statusCompleted,
	"done":      statusCompleted,
}

// reserved words cannot be used as bare values.
var reserved = []string{"AND", "OR", "NOT", "IN", "IS", "ORDER", "BY"}

func isReserved(word string) bool {
	for _, k := range reserved {
		if strings.EqualFold(k, word) {
			return true
		}
	}
	return false
}
