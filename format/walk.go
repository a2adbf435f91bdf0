package format

import (
	"github.com/dhamidi/backscan/pda"
	"github.com/dhamidi/backscan/tree"
)

// Elements describes the language elements of the trees being walked.
// pda.Tables and grammar.Language implement it.
type Elements interface {
	Element(id int) pda.LangEl
	FirstNonTerm() int
}

// Visitor receives the nodes of a tree in source order.
type Visitor interface {
	Open(parent, t *tree.Tree) error
	Terminal(t *tree.Tree) error
	// Ignore is called for each ignored token when ignore text is
	// requested.
	Ignore(t *tree.Tree) error
	Close(parent, t *tree.Tree) error
}

// Options control a walk.
type Options struct {
	IncludeIgnore bool
}

type op int

const (
	opEnter op = iota
	opOpen
	opTerminal
	opIgnore
	opClose
)

type step struct {
	op     op
	parent *tree.Tree
	t      *tree.Tree
	// flat marks a repeat or list link printed as part of its parent.
	flat bool
}

// Walk visits t without recursion. The last child of a repeat or list
// nonterminal with the same id as its parent is flattened into the parent:
// its children are visited as if they belonged to the parent.
func Walk(lang Elements, t *tree.Tree, v Visitor, opts Options) error {
	if t == nil {
		return nil
	}
	stack := []step{{op: opEnter, t: t}}
	var seq []step
	for len(stack) > 0 {
		st := stack[len(stack)-1]
		stack = stack[:len(stack)-1]

		var err error
		switch st.op {
		case opOpen:
			err = v.Open(st.parent, st.t)
		case opTerminal:
			err = v.Terminal(st.t)
		case opIgnore:
			err = v.Ignore(st.t)
		case opClose:
			err = v.Close(st.parent, st.t)
		case opEnter:
			seq = expand(lang, st, opts, seq[:0])
			for i := len(seq) - 1; i >= 0; i-- {
				stack = append(stack, seq[i])
			}
			continue
		}
		if err != nil {
			return err
		}
	}
	return nil
}

// expand appends the steps that visit st.t, in order.
func expand(lang Elements, st step, opts Options, seq []step) []step {
	t := st.t
	if t.Kind == tree.KindIgnore {
		if l := t.LeftIgnore(); l != nil {
			seq = append(seq, step{op: opEnter, t: l})
		}
		for _, tok := range t.IgnoreTokens() {
			seq = append(seq, step{op: opIgnore, t: tok})
		}
		if r := t.RightIgnore(); r != nil {
			seq = append(seq, step{op: opEnter, t: r})
		}
		return seq
	}
	if t.Kind != tree.KindTree {
		return seq
	}

	if opts.IncludeIgnore {
		if l := t.LeftIgnore(); l != nil {
			seq = append(seq, step{op: opEnter, t: l})
		}
	}
	if t.ID < lang.FirstNonTerm() {
		seq = append(seq, step{op: opTerminal, parent: st.parent, t: t})
	} else {
		owner := t
		if st.flat {
			owner = st.parent
		} else {
			seq = append(seq, step{op: opOpen, parent: st.parent, t: t})
		}
		el := lang.Element(t.ID)
		kids := t.Children()
		for i, c := range kids {
			if c == nil {
				continue
			}
			flat := (el.Repeat || el.List) && c.ID == t.ID && i == len(kids)-1
			seq = append(seq, step{op: opEnter, parent: owner, t: c, flat: flat})
		}
		if !st.flat {
			seq = append(seq, step{op: opClose, parent: st.parent, t: t})
		}
	}
	if opts.IncludeIgnore {
		if r := t.RightIgnore(); r != nil {
			seq = append(seq, step{op: opEnter, t: r})
		}
	}
	return seq
}
