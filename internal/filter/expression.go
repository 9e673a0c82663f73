// Package filter models commit filter expressions and evaluates them.
//
// An Expression is in disjunctive normal form: it matches a commit when any of
// its groups matches, and a group matches when its clauses do (see GroupMode).
// A Clause tests a pattern against one or more commit fields.
package filter

import (
	"fmt"
	"strings"
)

// Field selects a commit field a clause is tested against.
type Field uint8

const (
	FieldSHA Field = 1 << iota
	FieldAuthor
	FieldMessage
	FieldTags
)

// FieldSet is a set of fields. Fields within one clause combine with OR.
type FieldSet uint8

// DefaultFields is used when a clause names no field.
const DefaultFields = FieldSet(FieldSHA | FieldAuthor | FieldMessage)

// Fields builds a FieldSet.
func Fields(fields ...Field) FieldSet {
	var s FieldSet
	for _, f := range fields {
		s |= FieldSet(f)
	}
	return s
}

// Has reports whether f is in the set.
func (s FieldSet) Has(f Field) bool { return s&FieldSet(f) != 0 }

// IsEmpty reports whether no field is selected.
func (s FieldSet) IsEmpty() bool { return s == 0 }

func (s FieldSet) flags() string {
	var b strings.Builder
	if s.Has(FieldSHA) {
		b.WriteByte('s')
	}
	if s.Has(FieldAuthor) {
		b.WriteByte('a')
	}
	if s.Has(FieldMessage) {
		b.WriteByte('m')
	}
	if s.Has(FieldTags) {
		b.WriteByte('t')
	}
	return b.String()
}

// Modifier changes how a clause compares.
type Modifier uint8

const (
	ModNot Modifier = 1 << iota
	ModCaseSensitive
)

// ModifierSet is a set of modifiers.
type ModifierSet uint8

// Modifiers builds a ModifierSet.
func Modifiers(mods ...Modifier) ModifierSet {
	var s ModifierSet
	for _, m := range mods {
		s |= ModifierSet(m)
	}
	return s
}

// Has reports whether m is in the set.
func (s ModifierSet) Has(m Modifier) bool { return s&ModifierSet(m) != 0 }

func (s ModifierSet) flags() string {
	var b strings.Builder
	if s.Has(ModNot) {
		b.WriteByte('!')
	}
	if s.Has(ModCaseSensitive) {
		b.WriteByte('c')
	}
	return b.String()
}

// Clause is one pattern test.
type Clause struct {
	Pattern   string
	Fields    FieldSet
	Modifiers ModifierSet
}

// NewClause returns a clause over the default fields.
func NewClause(pattern string) Clause {
	return Clause{Pattern: pattern, Fields: DefaultFields}
}

// String renders the clause in query syntax.
func (c Clause) String() string {
	if c.Fields == DefaultFields && c.Modifiers == 0 && !strings.HasPrefix(c.Pattern, ":") {
		return c.Pattern
	}
	return ":" + c.Fields.flags() + c.Modifiers.flags() + " " + c.Pattern
}

// Group is a conjunction of clauses.
type Group []Clause

// Expression is a disjunction of groups.
type Expression []Group

// IsEmpty reports whether the expression has no groups. An empty expression
// matches nothing.
func (e Expression) IsEmpty() bool { return len(e) == 0 }

// NeedsTags reports whether any clause selects the tags field, which is the
// only case where a tag snapshot has to be loaded.
func (e Expression) NeedsTags() bool {
	for _, g := range e {
		for _, c := range g {
			if c.Fields.Has(FieldTags) {
				return true
			}
		}
	}
	return false
}

// String renders the expression in query syntax. Parse(e.String()) yields e
// as long as no pattern is empty or contains "&&" or "||".
func (e Expression) String() string {
	groups := make([]string, len(e))
	for i, g := range e {
		clauses := make([]string, len(g))
		for j, c := range g {
			clauses[j] = c.String()
		}
		groups[i] = strings.Join(clauses, " && ")
	}
	return strings.Join(groups, " || ")
}

// GroupMode decides how the clauses of a group combine.
type GroupMode uint8

const (
	// GroupAll requires every clause of a group to match.
	GroupAll GroupMode = iota
	// GroupLastClause takes the value of the last clause in the group and
	// ignores the others. Kept for users relying on the historical behaviour.
	GroupLastClause
)

// ParseGroupMode maps the config spelling to a GroupMode.
func ParseGroupMode(s string) (GroupMode, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "all", "and":
		return GroupAll, nil
	case "last", "last_clause":
		return GroupLastClause, nil
	default:
		return GroupAll, fmt.Errorf("unknown group mode %q (want \"all\" or \"last\")", s)
	}
}

func (m GroupMode) String() string {
	if m == GroupLastClause {
		return "last"
	}
	return "all"
}
