package format

import (
	"encoding/json"
	"io"

	"github.com/dhamidi/backscan/tree"
)

// JSONEncoder prints a tree as nested JSON objects.
type JSONEncoder struct {
	IncludeIgnore bool

	w    io.Writer
	lang Elements
	tree *tree.Tree
}

func NewJSONEncoder(w io.Writer, lang Elements) *JSONEncoder {
	return &JSONEncoder{w: w, lang: lang}
}

func (e *JSONEncoder) Encode(t *tree.Tree) error {
	e.tree = t
	text, err := e.MarshalText()
	if err != nil {
		return err
	}
	_, err = e.w.Write(text)
	return err
}

func (e *JSONEncoder) MarshalText() ([]byte, error) {
	v := &jsonVisitor{lang: e.lang, stack: []*jsonNode{{}}}
	if err := Walk(e.lang, e.tree, v, Options{IncludeIgnore: e.IncludeIgnore}); err != nil {
		return nil, err
	}
	var out interface{} = v.stack[0].Children
	if len(v.stack[0].Children) == 1 {
		out = v.stack[0].Children[0]
	}
	return json.MarshalIndent(out, "", "  ")
}

type jsonNode struct {
	Kind     string        `json:"kind"`
	Prod     int           `json:"prod,omitempty"`
	Text     *string       `json:"text,omitempty"`
	Ignore   bool          `json:"ignore,omitempty"`
	Loc      *jsonLocation `json:"loc,omitempty"`
	Children []*jsonNode   `json:"children,omitempty"`
}

type jsonLocation struct {
	Line   int `json:"line"`
	Column int `json:"column"`
	Byte   int `json:"byte"`
}

type jsonVisitor struct {
	lang  Elements
	stack []*jsonNode
}

func (v *jsonVisitor) add(n *jsonNode) {
	top := v.stack[len(v.stack)-1]
	top.Children = append(top.Children, n)
}

func (v *jsonVisitor) leaf(t *tree.Tree, ignore bool) *jsonNode {
	n := &jsonNode{Kind: name(v.lang, t), Ignore: ignore}
	if t.Text != nil {
		text := t.Text.String()
		n.Text = &text
		if loc := t.Text.Loc; loc != nil {
			n.Loc = &jsonLocation{Line: loc.Line, Column: loc.Column, Byte: loc.Byte}
		}
	}
	return n
}

func (v *jsonVisitor) Open(parent, t *tree.Tree) error {
	n := &jsonNode{Kind: name(v.lang, t), Prod: t.Prod}
	v.add(n)
	v.stack = append(v.stack, n)
	return nil
}

func (v *jsonVisitor) Close(parent, t *tree.Tree) error {
	v.stack = v.stack[:len(v.stack)-1]
	return nil
}

func (v *jsonVisitor) Terminal(t *tree.Tree) error {
	v.add(v.leaf(t, false))
	return nil
}

func (v *jsonVisitor) Ignore(t *tree.Tree) error {
	v.add(v.leaf(t, true))
	return nil
}
