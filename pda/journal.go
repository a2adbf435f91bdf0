package pda

import "github.com/dhamidi/backscan/tree"

// Inverse undoes one effect of a semantic action when the parser
// backtracks over the action.
type Inverse interface {
	Undo(c *Context)
}

// Releaser is implemented by inverses that hold trees. Release is called
// when the inverse is discarded without running.
type Releaser interface {
	Release(store *tree.Store)
}

// InverseFunc adapts a function to Inverse.
type InverseFunc func(c *Context)

func (f InverseFunc) Undo(c *Context) { f(c) }

// block is the inverse code of one action run. A deck is the run of blocks
// recorded since the last parse input was sent; it is undone as a whole
// when that input is sent back.
type block struct {
	entries   []Inverse
	deckStart bool
}

type journal struct {
	blocks  []block
	collect []Inverse
	// pending counts blocks not yet attached to a parse input.
	pending int
}

func (j *journal) record(inv Inverse) {
	j.collect = append(j.collect, inv)
}

// seal closes the block collected during an action. It reports whether a
// block was made.
func (j *journal) seal() bool {
	if len(j.collect) == 0 {
		return false
	}
	j.blocks = append(j.blocks, block{entries: j.collect, deckStart: j.pending == 0})
	j.collect = nil
	j.pending++
	return true
}

// transfer reports whether blocks are waiting for a parse input, and
// hands them to it.
func (j *journal) transfer() bool {
	if j.pending == 0 {
		return false
	}
	j.pending = 0
	return true
}

// reopen makes the blocks of the topmost deck pending again.
func (j *journal) reopen() {
	j.pending = 0
	for i := len(j.blocks) - 1; i >= 0; i-- {
		j.pending++
		if j.blocks[i].deckStart {
			return
		}
	}
}

func (j *journal) pop() block {
	b := j.blocks[len(j.blocks)-1]
	j.blocks = j.blocks[:len(j.blocks)-1]
	return b
}

func (j *journal) drop(store *tree.Store) {
	for _, b := range j.blocks {
		releaseEntries(store, b.entries)
	}
	releaseEntries(store, j.collect)
	j.blocks = nil
	j.collect = nil
	j.pending = 0
}

func releaseEntries(store *tree.Store, entries []Inverse) {
	for _, inv := range entries {
		if r, ok := inv.(Releaser); ok {
			r.Release(store)
		}
	}
}

// pulled puts consumed text back at the front of the input.
type pulled struct{ data []byte }

func (p pulled) Undo(c *Context) { c.s.input.UndoConsume(p.data) }

type pushedText struct{ n int }

func (p pushedText) Undo(c *Context) { c.s.input.UndoPrependData(p.n) }

type pushedTree struct{}

func (pushedTree) Undo(c *Context) {
	if t := c.s.input.UndoPrependTree(); t != nil {
		c.s.store.Downref(t)
	}
}

type pushedStream struct{}

func (pushedStream) Undo(c *Context) { c.s.input.UndoPrependStream() }

// restoreLHS puts back the tree a reduction action replaced.
type restoreLHS struct{ t *tree.Tree }

func (r restoreLHS) Undo(c *Context) {
	in := c.s.parseInput
	c.s.store.Downref(in.tree)
	in.tree = r.t
	in.text = r.t.Text
}

func (r restoreLHS) Release(store *tree.Store) { store.Downref(r.t) }
