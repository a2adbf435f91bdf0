package stream

import "github.com/dhamidi/backscan/tree"

// position tracks the line, column and byte offset of the next unconsumed
// byte. The column of every line left behind is kept so that undoing a
// newline lands exactly where the line ended.
type position struct {
	line   int
	column int
	byte   int
	widths []int
}

func newPosition() position {
	return position{line: 1, column: 1}
}

func (p *position) advance(data []byte) {
	for _, c := range data {
		p.byte++
		if c == '\n' {
			p.widths = append(p.widths, p.column)
			p.line++
			p.column = 1
		} else {
			p.column++
		}
	}
}

func (p *position) retreat(data []byte) {
	for i := len(data) - 1; i >= 0; i-- {
		p.byte--
		if data[i] != '\n' {
			p.column--
			continue
		}
		p.line--
		p.column = 1
		if n := len(p.widths); n > 0 {
			p.column = p.widths[n-1]
			p.widths = p.widths[:n-1]
		}
	}
}

func (p *position) location(name string) tree.Location {
	return tree.Location{Name: name, Line: p.line, Column: p.column, Byte: p.byte}
}
