// Package typer implements the schema-aware static SQL typer (spec §4.8):
// given a schema snapshot and a parsed statement, it infers argument
// types, result-column types, and nullability, accumulating diagnostics
// into an issue.Collector rather than failing outright.
package typer

import "github.com/sqly-go/sqly/ast"

// frameColumn is one column visible in a reference frame.
type frameColumn struct {
	qualifier string // table/alias name, empty if the frame has none
	name      string
	typ       ast.FullType
}

// frame is one relation in scope: a base table, a derived table
// (subquery), or a CTE (spec §4.8 "Reference frames").
type frame struct {
	qualifier string
	columns   []frameColumn
	// binding marks a CTE's own definition frame: it names a result set
	// for later FROM clauses to reference by name, but is not itself a
	// queryable relation, so resolve skips it.
	binding bool
}

// frameStack is the typer's stack of reference frames. Subqueries push a
// frame; JOIN extends the current (topmost) frame; CTEs push then pop
// across the subordinate query they scope.
type frameStack struct {
	frames []frame
}

func (s *frameStack) push(f frame) { s.frames = append(s.frames, f) }

func (s *frameStack) pop() {
	s.frames = s.frames[:len(s.frames)-1]
}

// extendTop appends columns to the most recently pushed frame, modeling a
// JOIN's effect on the current FROM clause's frame.
func (s *frameStack) extendTop(cols []frameColumn) {
	top := &s.frames[len(s.frames)-1]
	top.columns = append(top.columns, cols...)
}

// resolve looks up a column reference across every frame currently in
// scope. An unqualified name must be unambiguous across all frames; a
// qualified name matches only columns carrying that table/alias qualifier,
// so columns a JOIN added to a frame resolve under the joined table's name.
func (s *frameStack) resolve(qualifier, name string) (ast.FullType, bool, bool) {
	var found ast.FullType
	count := 0
	for _, f := range s.frames {
		if f.binding {
			continue
		}
		for _, c := range f.columns {
			if c.name != name {
				continue
			}
			if qualifier != "" && c.qualifier != qualifier {
				continue
			}
			found = c.typ
			count++
		}
	}
	if count == 0 {
		return ast.FullType{}, false, false
	}
	return found, true, count > 1
}
