package pda

import (
	"fmt"

	"github.com/dhamidi/backscan/tree"
)

// ParseError reports the furthest point the parser reached before it ran
// out of alternatives.
type ParseError struct {
	Loc tree.Location
}

func (e *ParseError) Error() string {
	return fmt.Sprintf("PARSE ERROR at %d:%d", e.Loc.Line, e.Loc.Column)
}

// btPoint is the text around which the parser had to backtrack.
type btPoint struct {
	loc  tree.Location
	text []byte
}

func (s *Session) pushBtPoint() {
	var h *tree.Head
	switch {
	case s.accumIgnore != nil && s.accumIgnore.tree != nil:
		h = s.accumIgnore.tree.Text
	case len(s.tokenList) > 0:
		h = s.tokenList[len(s.tokenList)-1].text
	}
	if h == nil || h.Loc == nil {
		return
	}
	s.btPoints = append(s.btPoints, btPoint{loc: *h.Loc, text: h.Data})
}

// errorLocation is the end of the deepest backtracking point.
func (s *Session) errorLocation() tree.Location {
	loc := tree.Location{Name: s.input.Name(), Line: 1, Column: 1}
	var deepest *btPoint
	for i := range s.btPoints {
		if deepest == nil || s.btPoints[i].loc.Byte > deepest.loc.Byte {
			deepest = &s.btPoints[i]
		}
	}
	if deepest == nil {
		return loc
	}
	loc = deepest.loc
	for _, c := range deepest.text {
		loc.Byte++
		if c == '\n' {
			loc.Line++
			loc.Column = 1
		} else {
			loc.Column++
		}
	}
	return loc
}

func (s *Session) reportParseError() {
	s.err = &ParseError{Loc: s.errorLocation()}
	log.Errorf("%s: %s", s.input.Name(), s.err)
}

// MisuseError reports a session driven out of order.
type MisuseError struct {
	Msg string
}

func (e *MisuseError) Error() string { return "parser misuse: " + e.Msg }
