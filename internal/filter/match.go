package filter

import (
	"strings"

	"github.com/asheshgoplani/revlog/internal/git"
)

// Matcher is a compiled Expression. Case-insensitive patterns are folded once
// here instead of once per commit.
type Matcher struct {
	groups [][]compiledClause
	mode   GroupMode
}

type compiledClause struct {
	pattern   string // folded unless caseSensitive
	fields    FieldSet
	negate    bool
	sensitive bool
}

// Compile prepares e for repeated evaluation.
func Compile(e Expression, mode GroupMode) *Matcher {
	m := &Matcher{mode: mode, groups: make([][]compiledClause, len(e))}
	for i, g := range e {
		cg := make([]compiledClause, len(g))
		for j, c := range g {
			cc := compiledClause{
				pattern:   c.Pattern,
				fields:    c.Fields,
				negate:    c.Modifiers.Has(ModNot),
				sensitive: c.Modifiers.Has(ModCaseSensitive),
			}
			if !cc.sensitive {
				cc.pattern = strings.ToLower(cc.pattern)
			}
			cg[j] = cc
		}
		m.groups[i] = cg
	}
	return m
}

// Matches evaluates e against c with every clause of a group required.
// tags may be nil when no snapshot is available.
func Matches(c git.CommitInfo, tags git.Tags, e Expression) bool {
	return Compile(e, GroupAll).Match(c, tags)
}

// Match reports whether any group matches c.
func (m *Matcher) Match(c git.CommitInfo, tags git.Tags) bool {
	for _, g := range m.groups {
		if m.matchGroup(g, c, tags) {
			return true
		}
	}
	return false
}

// Filter returns the commits that match, in their original order.
func (m *Matcher) Filter(commits []git.CommitInfo, tags git.Tags) []git.CommitInfo {
	var out []git.CommitInfo
	for _, c := range commits {
		if m.Match(c, tags) {
			out = append(out, c)
		}
	}
	return out
}

func (m *Matcher) matchGroup(g []compiledClause, c git.CommitInfo, tags git.Tags) bool {
	if m.mode == GroupLastClause {
		if len(g) == 0 {
			return true
		}
		return g[len(g)-1].match(c, tags)
	}
	for _, cl := range g {
		if !cl.match(c, tags) {
			return false
		}
	}
	return true
}

func (cl compiledClause) match(c git.CommitInfo, tags git.Tags) bool {
	if cl.fields.Has(FieldTags) && cl.matchTags(c.ID, tags) {
		return true
	}
	if cl.fields.Has(FieldSHA) && cl.matchScalar(c.ID.String()) {
		return true
	}
	if cl.fields.Has(FieldAuthor) && cl.matchScalar(c.Author) {
		return true
	}
	if cl.fields.Has(FieldMessage) && cl.matchScalar(c.Message) {
		return true
	}
	return false
}

func (cl compiledClause) contains(s string) bool {
	if !cl.sensitive {
		s = strings.ToLower(s)
	}
	return strings.Contains(s, cl.pattern)
}

func (cl compiledClause) matchScalar(s string) bool {
	return cl.contains(s) != cl.negate
}

// matchTags is false without a snapshot. With one, a plain clause needs some
// tag name to contain the pattern; a negated clause needs some tag name not
// to contain it, and also holds for commits without tags.
func (cl compiledClause) matchTags(id git.CommitID, tags git.Tags) bool {
	if tags == nil {
		return false
	}
	commitTags, ok := tags[id]
	if !ok {
		return cl.negate
	}
	for _, t := range commitTags {
		if cl.contains(t.Name) != cl.negate {
			return true
		}
	}
	return false
}
