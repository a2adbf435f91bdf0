package format

import (
	"io"

	"github.com/dhamidi/backscan/tree"
)

// TextEncoder prints the text a tree was parsed from, ignored text
// included. With Trim set, ignored text before the first token and after
// the last one is left out.
type TextEncoder struct {
	Trim bool

	w    io.Writer
	lang Elements
	tree *tree.Tree
}

func NewTextEncoder(w io.Writer, lang Elements) *TextEncoder {
	return &TextEncoder{w: w, lang: lang}
}

func (e *TextEncoder) Encode(t *tree.Tree) error {
	e.tree = t
	text, err := e.MarshalText()
	if err != nil {
		return err
	}
	_, err = e.w.Write(text)
	return err
}

func (e *TextEncoder) MarshalText() ([]byte, error) {
	v := &textVisitor{}
	if err := Walk(e.lang, e.tree, v, Options{IncludeIgnore: true}); err != nil {
		return nil, err
	}
	pieces := v.pieces
	if e.Trim {
		for len(pieces) > 0 && pieces[0].ignore {
			pieces = pieces[1:]
		}
		for len(pieces) > 0 && pieces[len(pieces)-1].ignore {
			pieces = pieces[:len(pieces)-1]
		}
	}
	var out []byte
	for _, p := range pieces {
		out = append(out, p.text...)
	}
	return out, nil
}

// Text returns the source text of t.
func Text(lang Elements, t *tree.Tree) string {
	e := &TextEncoder{lang: lang, tree: t}
	text, _ := e.MarshalText()
	return string(text)
}

type piece struct {
	text   []byte
	ignore bool
}

type textVisitor struct {
	pieces []piece
}

func (v *textVisitor) Open(parent, t *tree.Tree) error  { return nil }
func (v *textVisitor) Close(parent, t *tree.Tree) error { return nil }

func (v *textVisitor) Terminal(t *tree.Tree) error {
	if t.Text != nil {
		v.pieces = append(v.pieces, piece{text: t.Text.Data})
	}
	return nil
}

func (v *textVisitor) Ignore(t *tree.Tree) error {
	if t.Text != nil {
		v.pieces = append(v.pieces, piece{text: t.Text.Data, ignore: true})
	}
	return nil
}
