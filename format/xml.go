package format

import (
	"bytes"
	"encoding/xml"
	"io"
	"strings"

	"github.com/dhamidi/backscan/tree"
)

// XMLEncoder prints a tree as nested elements named after the language
// elements. Repeat and list chains print as a single element.
type XMLEncoder struct {
	IncludeIgnore bool

	w    io.Writer
	lang Elements
	tree *tree.Tree
}

func NewXMLEncoder(w io.Writer, lang Elements) *XMLEncoder {
	return &XMLEncoder{w: w, lang: lang}
}

func (e *XMLEncoder) Encode(t *tree.Tree) error {
	e.tree = t
	text, err := e.MarshalText()
	if err != nil {
		return err
	}
	_, err = e.w.Write(text)
	return err
}

func (e *XMLEncoder) MarshalText() ([]byte, error) {
	v := &xmlVisitor{lang: e.lang}
	if err := Walk(e.lang, e.tree, v, Options{IncludeIgnore: e.IncludeIgnore}); err != nil {
		return nil, err
	}
	return v.buf.Bytes(), nil
}

type xmlVisitor struct {
	lang  Elements
	buf   bytes.Buffer
	depth int
}

func (v *xmlVisitor) tag(t *tree.Tree) string {
	if tag := v.lang.Element(t.ID).XMLTag; tag != "" {
		return tag
	}
	return name(v.lang, t)
}

func (v *xmlVisitor) indent() {
	v.buf.WriteString(strings.Repeat("  ", v.depth))
}

func (v *xmlVisitor) Open(parent, t *tree.Tree) error {
	v.indent()
	v.buf.WriteString("<" + v.tag(t) + ">\n")
	v.depth++
	return nil
}

func (v *xmlVisitor) Close(parent, t *tree.Tree) error {
	v.depth--
	v.indent()
	v.buf.WriteString("</" + v.tag(t) + ">\n")
	return nil
}

func (v *xmlVisitor) Terminal(t *tree.Tree) error {
	return v.leaf(v.tag(t), t)
}

func (v *xmlVisitor) Ignore(t *tree.Tree) error {
	return v.leaf("ignore", t)
}

func (v *xmlVisitor) leaf(tag string, t *tree.Tree) error {
	v.indent()
	if t.Text.Len() == 0 {
		v.buf.WriteString("<" + tag + "/>\n")
		return nil
	}
	v.buf.WriteString("<" + tag + ">")
	if err := xml.EscapeText(&v.buf, t.Text.Data); err != nil {
		return err
	}
	v.buf.WriteString("</" + tag + ">\n")
	return nil
}
