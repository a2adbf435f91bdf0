// Package format serializes parse trees as source text, XML or JSON.
package format

import (
	"encoding"

	"github.com/dhamidi/backscan/tree"
)

type Encoder interface {
	encoding.TextMarshaler
	Encode(t *tree.Tree) error
}

func name(lang Elements, t *tree.Tree) string {
	if n := lang.Element(t.ID).Name; n != "" {
		return n
	}
	return t.Kind.String()
}
