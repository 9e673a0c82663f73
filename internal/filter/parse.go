package filter

import (
	"fmt"
	"strings"
)

// ParseError reports an unknown flag character in a query.
type ParseError struct {
	Term string
	Flag rune
}

func (e *ParseError) Error() string {
	return fmt.Sprintf("unknown filter flag %q in %q (valid: s a m t ! c)", e.Flag, e.Term)
}

// Parse turns a query string into an Expression.
//
//	fix && :a alice || :t! v1
//
// "||" separates groups and "&&" separates clauses. A clause is either a bare
// pattern over the default fields, or ":<flags> <pattern>" where flags are
//
//	s  sha          a  author      m  message     t  tags
//	!  negate       c  case-sensitive
//
// Flags that name only modifiers keep the default fields.
func Parse(query string) (Expression, error) {
	var expr Expression
	for _, or := range strings.Split(query, "||") {
		var group Group
		for _, term := range strings.Split(or, "&&") {
			term = strings.TrimSpace(term)
			if term == "" {
				continue
			}
			clause, err := parseTerm(term)
			if err != nil {
				return nil, err
			}
			group = append(group, clause)
		}
		if len(group) > 0 {
			expr = append(expr, group)
		}
	}
	return expr, nil
}

func parseTerm(term string) (Clause, error) {
	if !strings.HasPrefix(term, ":") {
		return NewClause(term), nil
	}

	flags, pattern, _ := strings.Cut(term, " ")
	var c Clause
	for _, r := range flags[1:] {
		switch r {
		case 's':
			c.Fields |= FieldSet(FieldSHA)
		case 'a':
			c.Fields |= FieldSet(FieldAuthor)
		case 'm':
			c.Fields |= FieldSet(FieldMessage)
		case 't':
			c.Fields |= FieldSet(FieldTags)
		case '!':
			c.Modifiers |= ModifierSet(ModNot)
		case 'c':
			c.Modifiers |= ModifierSet(ModCaseSensitive)
		default:
			return Clause{}, &ParseError{Term: term, Flag: r}
		}
	}
	if c.Fields.IsEmpty() {
		c.Fields = DefaultFields
	}
	c.Pattern = strings.TrimSpace(pattern)
	return c, nil
}
