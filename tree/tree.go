// Package tree implements the reference-counted, copy-on-write node store
// shared by the scanner, the parser and semantic actions.
//
// Every Tree carries a reference count. A tree with more than one owner is
// immutable; writers call Store.Split first and continue with the tree it
// returns. Trees are reclaimed when the last reference is dropped.
package tree

import (
	"bytes"
	"fmt"
)

// Kind selects the payload carried by a Tree.
type Kind uint8

const (
	KindTree Kind = iota
	KindIgnore
	KindList
	KindMap
	KindString
)

var kindNames = map[Kind]string{
	KindTree:   "Tree",
	KindIgnore: "Ignore",
	KindList:   "List",
	KindMap:    "Map",
	KindString: "String",
}

func (k Kind) String() string {
	if name, ok := kindNames[k]; ok {
		return name
	}
	return fmt.Sprintf("Kind(%d)", int(k))
}

// Flags describe the shape and origin of a tree.
type Flags uint16

const (
	FlagLeftIgnore Flags = 1 << iota
	FlagRightIgnore
	FlagParseNode
	FlagArtificial
	FlagHasInverse
	FlagNamed
)

// Location is a position in an input stream.
type Location struct {
	Name   string
	Line   int
	Column int
	Byte   int
}

func (l Location) String() string {
	name := l.Name
	if name == "" {
		name = "<input>"
	}
	return fmt.Sprintf("%s:%d:%d", name, l.Line, l.Column)
}

// Head is the text of a token and where it was found. Data may alias a
// stream block until Own is called.
type Head struct {
	Data  []byte
	Loc   *Location
	owned bool
}

// NewHead returns a head holding a private copy of data.
func NewHead(data []byte, loc *Location) *Head {
	h := &Head{Data: data, Loc: loc}
	return h.Own()
}

// Own moves the text into storage private to the head.
func (h *Head) Own() *Head {
	if h == nil || h.owned {
		return h
	}
	h.Data = bytes.Clone(h.Data)
	h.owned = true
	return h
}

func (h *Head) Len() int {
	if h == nil {
		return 0
	}
	return len(h.Data)
}

func (h *Head) String() string {
	if h == nil {
		return ""
	}
	return string(h.Data)
}

func (h *Head) clone() *Head {
	if h == nil {
		return nil
	}
	c := &Head{Data: bytes.Clone(h.Data), owned: true}
	if h.Loc != nil {
		loc := *h.Loc
		c.Loc = &loc
	}
	return c
}

// Kid is a cell of a child list. A nil Tree is allowed in attribute slots.
type Kid struct {
	Tree *Tree
	Next *Kid
}

// Tree is a node of the parse forest. The child list is laid out as
// [left ignore][right ignore][attributes...][children...], where the ignore
// cells are present only when the matching flag is set.
type Tree struct {
	ID    int
	Kind  Kind
	Flags Flags
	Prod  int
	Text  *Head

	refs  int
	attrs int
	child *Kid
	list  *listBody
	m     *mapBody
}

// Refs reports the current reference count.
func (t *Tree) Refs() int { return t.refs }

// NumAttrs reports the number of attribute slots.
func (t *Tree) NumAttrs() int { return t.attrs }

// Kids returns the raw child list, ignore cells included.
func (t *Tree) Kids() *Kid { return t.child }

func (t *Tree) String() string {
	if t == nil {
		return "<nil>"
	}
	switch t.Kind {
	case KindTree:
		if t.Text != nil {
			return fmt.Sprintf("%d(%q)", t.ID, t.Text.Data)
		}
		return fmt.Sprintf("%d", t.ID)
	case KindString:
		return fmt.Sprintf("%q", t.Text.String())
	default:
		return t.Kind.String()
	}
}

// IntegrityError reports a violation of the ownership discipline, such as
// writing to a shared tree or popping an empty ignore slot. It is raised by
// panic and is not recoverable.
type IntegrityError struct {
	Op   string
	Tree *Tree
	Msg  string
}

func (e *IntegrityError) Error() string {
	return fmt.Sprintf("tree integrity: %s on %v: %s", e.Op, e.Tree, e.Msg)
}

func violate(op string, t *Tree, msg string) {
	panic(&IntegrityError{Op: op, Tree: t, Msg: msg})
}

func mustOwn(op string, t *Tree) {
	if t.refs > 1 {
		violate(op, t, "tree is shared, split it first")
	}
}
