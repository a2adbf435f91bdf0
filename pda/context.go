package pda

import (
	"github.com/dhamidi/backscan/stream"
	"github.com/dhamidi/backscan/tree"
)

// Context is handed to semantic actions and inverses. Changes made through
// it record their own inverse.
type Context struct {
	s *Session
}

// ID is the token or nonterminal of the frame.
func (c *Context) ID() int { return c.s.frame.ID }

// Prod is the production reduced, for reduction frames.
func (c *Context) Prod() int { return c.s.frame.Prod }

// Text is the matched text of a generation token.
func (c *Context) Text() *tree.Head { return c.s.frame.Text }

func (c *Context) Store() *tree.Store { return c.s.store }

func (c *Context) Input() stream.Stream { return c.s.input }

// Location is the position of the next unconsumed input byte.
func (c *Context) Location() tree.Location { return c.s.input.Location() }

// LHS is the tree built by the reduction. The session keeps the
// reference.
func (c *Context) LHS() *tree.Tree {
	if c.s.redLel == nil {
		return nil
	}
	return c.s.redLel.tree
}

// SetLHS replaces the tree built by the reduction, taking over the
// caller's reference to t. The original comes back if the reduction is
// undone.
func (c *Context) SetLHS(t *tree.Tree) {
	s := c.s
	red := s.redLel
	if red == nil {
		panic(&MisuseError{Msg: "SetLHS outside a reduction"})
	}
	if t == red.tree {
		s.store.Downref(t)
		return
	}
	if s.parsed == nil {
		s.parsed = red.tree
	} else {
		s.store.Downref(red.tree)
	}
	red.tree = t
	red.text = t.Text
}

// SetAttr stores v in an attribute slot of the reduced tree.
func (c *Context) SetAttr(pos int, v *tree.Tree) {
	red := c.s.redLel
	if red == nil {
		panic(&MisuseError{Msg: "SetAttr outside a reduction"})
	}
	red.tree = c.s.store.SetAttr(red.tree, pos, v)
}

// Reject makes the parser treat the reduction as a parse error and
// backtrack.
func (c *Context) Reject() { c.s.reject = true }

// Stop ends the run once the current frame is done.
func (c *Context) Stop() { c.s.halt = true }

// Pull consumes up to n bytes of input.
func (c *Context) Pull(n int) []byte {
	data := stream.Pull(c.s.input, n)
	c.s.journal.record(pulled{data: data})
	return data
}

// PushText puts text at the front of the input, to be scanned next.
func (c *Context) PushText(data []byte) {
	if len(data) == 0 {
		return
	}
	c.s.input.PrependData(data)
	c.s.journal.record(pushedText{n: len(data)})
}

// PushTree puts t at the front of the input, taking over the caller's
// reference. With ignore set the tree is delivered as ignored text.
func (c *Context) PushTree(t *tree.Tree, ignore bool) {
	c.s.input.PrependTree(t, ignore)
	c.s.journal.record(pushedTree{})
}

// PushIgnore puts t at the front of the input as ignored text.
func (c *Context) PushIgnore(t *tree.Tree) { c.PushTree(t, true) }

// PushStream makes sub the next source of input.
func (c *Context) PushStream(sub stream.Stream) {
	c.s.input.PrependStream(sub)
	c.s.journal.record(pushedStream{})
}

// Record adds inv to the inverse code of the running action.
func (c *Context) Record(inv Inverse) { c.s.journal.record(inv) }

// Binding returns the i-th bound token, counting from 1.
func (c *Context) Binding(i int) *tree.Tree {
	if i <= 0 || i >= len(c.s.bindings) {
		return nil
	}
	return c.s.bindings[i].t
}

// Reversing reports whether the context belongs to a reverse frame.
func (c *Context) Reversing() bool { return c.s.await == ResumeReverse }
