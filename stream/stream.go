// Package stream implements the buffered, composable input that feeds the
// scanner. A stream is a queue of run buffers: blocks of bytes, whole trees
// waiting to be delivered to the parser, and nested streams. Everything
// consumed can be pushed back, so the parser can rewind arbitrarily far.
package stream

import (
	"github.com/dhamidi/backscan/tree"
	"github.com/tliron/commonlog"
)

var log = commonlog.GetLogger("backscan.stream")

// Block classifies what ParseBlock found at the requested offset.
type Block int

const (
	BlockData Block = iota
	// BlockEOD means no data is available yet; more may arrive later.
	BlockEOD
	BlockEOF
	BlockTree
	BlockIgnore
)

var blockNames = [...]string{"Data", "EOD", "EOF", "Tree", "Ignore"}

func (b Block) String() string {
	if int(b) < len(blockNames) {
		return blockNames[b]
	}
	return "Block(?)"
}

// Holder is a consumer with scanning state derived from a stream's data.
type Holder interface {
	// TakeBack discards any partially read input so that another consumer
	// can read the stream from its current position.
	TakeBack()
}

// Stream is the input interface shared by source streams and generic
// streams. The set of implementations is closed: New, NewReader, Open,
// NewText and NewCollector.
type Stream interface {
	Name() string

	// ParseBlock classifies the input skip bytes past the current position.
	// For BlockData it returns the contiguous run of bytes found there. The
	// slice aliases stream storage and is valid until the stream changes.
	ParseBlock(skip int) (Block, []byte)
	// Data copies buffered bytes into dest without consuming them, stopping
	// at the first tree.
	Data(dest []byte) int
	// Consume advances past n bytes. When loc is non-nil and loc.Line is
	// zero it receives the position of the first consumed byte.
	Consume(n int, loc *tree.Location) int
	// UndoConsume returns data, which must be the most recently consumed
	// bytes, to the front of the stream and rewinds the location.
	UndoConsume(data []byte)
	// ConsumeTree removes the tree at the current position. It returns nil
	// when the stream is not positioned at a tree.
	ConsumeTree() *tree.Tree
	UndoConsumeTree(t *tree.Tree, ignore bool)

	PrependData(data []byte)
	PrependTree(t *tree.Tree, ignore bool)
	PrependStream(s Stream)
	UndoPrependData(n int)
	UndoPrependTree() *tree.Tree
	UndoPrependStream() Stream

	AppendData(data []byte)
	AppendTree(t *tree.Tree, ignore bool)
	AppendStream(s Stream)
	UndoAppendData(n int)
	UndoAppendTree() *tree.Tree
	UndoAppendStream() Stream

	SetEOF()
	UnsetEOF()
	// Location is the position of the next unconsumed byte.
	Location() tree.Location
	// Claim hands the stream to h, taking it back from the previous holder.
	Claim(h Holder)
	// Err returns the read error that ended the stream or one of its
	// nested streams, if any. A stream with an error reports EOF.
	Err() error

	base() *core
}

// Pull claims s and consumes up to n bytes, returning a copy of them.
func Pull(s Stream, n int) []byte {
	s.Claim(nil)
	buf := make([]byte, n)
	got := s.Data(buf)
	s.Consume(got, nil)
	return buf[:got]
}

// segment records who supplied a run of consumed input: the stream itself
// when sub is nil, otherwise a nested stream.
type segment struct {
	sub  *core
	n    int
	tree bool
}

// core holds the queue shared by every stream implementation.
type core struct {
	name  string
	queue Queue
	pos   position
	eof   bool

	// more is called when the queue is exhausted. It may add buffers and
	// returns the first one added, or nil.
	more func() *RunBuf
	// done reports whether more can never add anything again.
	done func() bool
	// appendQueue receives appended buffers.
	appendQueue func() *Queue

	consumed []segment
	holder   Holder
	err      error
}

func newCore(name string) *core {
	c := &core{name: name, pos: newPosition()}
	c.appendQueue = func() *Queue { return &c.queue }
	return c
}

func (c *core) base() *core  { return c }
func (c *core) Name() string { return c.name }

func (c *core) Err() error { return c.err }

func (c *core) SetEOF()   { c.eof = true }
func (c *core) UnsetEOF() { c.eof = false }

func (c *core) Claim(h Holder) {
	if c.holder != nil && c.holder != h {
		c.holder.TakeBack()
	}
	c.holder = h
}

func (c *core) ParseBlock(skip int) (Block, []byte) {
	blk, data, _ := c.parseBlock(skip)
	return blk, data
}

// parseBlock also returns the part of skip left over when the stream ran
// out, so a parent stream can continue skipping in its next buffer.
func (c *core) parseBlock(skip int) (Block, []byte, int) {
	b := c.queue.head
	for {
		if b == nil {
			if c.more != nil {
				b = c.more()
				if b != nil {
					continue
				}
			}
			if c.eof || (c.done != nil && c.done()) {
				return BlockEOF, nil, skip
			}
			return BlockEOD, nil, skip
		}

		switch b.Kind {
		case BufToken:
			return BlockTree, nil, skip
		case BufIgnore:
			return BlockIgnore, nil, skip
		case BufSource:
			sub := b.Source.base()
			blk, data, rest := sub.parseBlock(skip)
			if blk != BlockEOD && blk != BlockEOF {
				return blk, data, 0
			}
			if c.err == nil && sub.err != nil {
				c.err = sub.err
			}
			skip = rest
		case BufData:
			avail := b.Avail()
			if skip < len(avail) {
				return BlockData, avail[skip:], 0
			}
			skip -= len(avail)
		}
		b = b.next
	}
}

func (c *core) Data(dest []byte) int {
	n := 0
	for n < len(dest) {
		blk, data := c.ParseBlock(n)
		if blk != BlockData {
			break
		}
		n += copy(dest[n:], data)
	}
	return n
}

func (c *core) Consume(n int, loc *tree.Location) int {
	got := 0
	b := c.queue.head
	for got < n && b != nil {
		next := b.next
		switch b.Kind {
		case BufToken, BufIgnore:
			return got
		case BufSource:
			sub := b.Source.base()
			if k := sub.Consume(n-got, loc); k > 0 {
				got += k
				c.record(sub, k)
			}
			if got < n {
				if blk, _, _ := sub.parseBlock(0); blk != BlockEOD && blk != BlockEOF {
					return got
				}
			}
		case BufData:
			avail := b.Avail()
			k := min(len(avail), n-got)
			if k > 0 {
				if loc != nil && loc.Line == 0 {
					*loc = c.pos.location(c.name)
				}
				c.pos.advance(avail[:k])
				b.Offset += k
				got += k
				c.record(nil, k)
			}
			if b.Offset == len(b.Data) {
				c.queue.Remove(b)
			}
		}
		b = next
	}
	return got
}

func (c *core) record(sub *core, n int) {
	if last := len(c.consumed) - 1; last >= 0 {
		s := &c.consumed[last]
		if s.sub == sub && !s.tree {
			s.n += n
			return
		}
	}
	c.consumed = append(c.consumed, segment{sub: sub, n: n})
}

func (c *core) UndoConsume(data []byte) {
	log.Debugf("%s: undo consume of %d bytes", c.name, len(data))
	for len(data) > 0 {
		last := len(c.consumed) - 1
		if last < 0 || c.consumed[last].tree {
			c.unread(data)
			return
		}
		s := &c.consumed[last]
		k := min(len(data), s.n)
		part := data[len(data)-k:]
		data = data[:len(data)-k]
		sub := s.sub
		if s.n -= k; s.n == 0 {
			c.consumed = c.consumed[:last]
		}
		if sub != nil {
			sub.UndoConsume(part)
		} else {
			c.unread(part)
		}
	}
}

func (c *core) unread(data []byte) {
	if at := c.front(); at != nil && at.Kind == BufData && at.Offset >= len(data) {
		at.Offset -= len(data)
	} else {
		c.queue.InsertBefore(at, dataBuf(data))
	}
	c.pos.retreat(data)
}

// front returns the first buffer that is not an exhausted nested stream.
// Input pushed back lands before it.
func (c *core) front() *RunBuf {
	b := c.queue.head
	for b != nil && b.Kind == BufSource {
		if blk, _, _ := b.Source.base().parseBlock(0); blk != BlockEOD && blk != BlockEOF {
			break
		}
		b = b.next
	}
	return b
}

func (c *core) ConsumeTree() *tree.Tree {
	b := c.queue.head
	for b != nil {
		next := b.next
		switch b.Kind {
		case BufData:
			if len(b.Avail()) > 0 {
				return nil
			}
			c.queue.Remove(b)
		case BufToken, BufIgnore:
			c.queue.Remove(b)
			c.consumed = append(c.consumed, segment{tree: true})
			return b.Tree
		case BufSource:
			sub := b.Source.base()
			switch blk, _, _ := sub.parseBlock(0); blk {
			case BlockData:
				return nil
			case BlockTree, BlockIgnore:
				t := sub.ConsumeTree()
				c.consumed = append(c.consumed, segment{sub: sub, tree: true})
				return t
			}
		}
		b = next
	}
	return nil
}

func (c *core) UndoConsumeTree(t *tree.Tree, ignore bool) {
	if last := len(c.consumed) - 1; last >= 0 && c.consumed[last].tree {
		sub := c.consumed[last].sub
		c.consumed = c.consumed[:last]
		if sub != nil {
			sub.UndoConsumeTree(t, ignore)
			return
		}
	}
	c.queue.InsertBefore(c.front(), treeBuf(t, ignore))
}

func (c *core) PrependData(data []byte) {
	if len(data) > 0 {
		c.queue.PushHead(dataBuf(data))
	}
}

func (c *core) PrependTree(t *tree.Tree, ignore bool) {
	c.queue.PushHead(treeBuf(t, ignore))
}

func (c *core) PrependStream(s Stream) {
	c.queue.PushHead(&RunBuf{Kind: BufSource, Source: s})
}

func (c *core) UndoPrependData(n int) {
	for n > 0 {
		b := c.queue.head
		if b == nil || b.Kind != BufData {
			violate("undo prepend data", "stream does not start with data")
		}
		k := min(len(b.Avail()), n)
		b.Offset += k
		n -= k
		if b.Offset == len(b.Data) {
			c.queue.Remove(b)
		}
	}
}

func (c *core) UndoPrependTree() *tree.Tree {
	c.dropConsumedHead()
	b := c.queue.head
	if b == nil || (b.Kind != BufToken && b.Kind != BufIgnore) {
		violate("undo prepend tree", "stream does not start with a tree")
	}
	c.queue.Remove(b)
	return b.Tree
}

func (c *core) UndoPrependStream() Stream {
	c.dropConsumedHead()
	b := c.queue.head
	if b == nil || b.Kind != BufSource {
		violate("undo prepend stream", "stream does not start with a stream")
	}
	c.queue.Remove(b)
	return b.Source
}

func (c *core) dropConsumedHead() {
	for b := c.queue.head; b != nil && b.Kind == BufData && len(b.Avail()) == 0; b = c.queue.head {
		c.queue.Remove(b)
	}
}

func (c *core) AppendData(data []byte) {
	if len(data) > 0 {
		c.appendQueue().PushTail(dataBuf(data))
	}
}

func (c *core) AppendTree(t *tree.Tree, ignore bool) {
	c.appendQueue().PushTail(treeBuf(t, ignore))
}

func (c *core) AppendStream(s Stream) {
	c.appendQueue().PushTail(&RunBuf{Kind: BufSource, Source: s})
}

func (c *core) UndoAppendData(n int) {
	q := c.appendQueue()
	for n > 0 {
		b := q.tail
		if b == nil || b.Kind != BufData || len(b.Avail()) == 0 {
			violate("undo append data", "stream does not end with data")
		}
		k := min(len(b.Avail()), n)
		b.Data = b.Data[:len(b.Data)-k]
		n -= k
		if b.Offset == len(b.Data) {
			q.Remove(b)
		}
	}
}

func (c *core) UndoAppendTree() *tree.Tree {
	q := c.appendQueue()
	b := q.tail
	if b == nil || (b.Kind != BufToken && b.Kind != BufIgnore) {
		violate("undo append tree", "stream does not end with a tree")
	}
	q.Remove(b)
	return b.Tree
}

func (c *core) UndoAppendStream() Stream {
	q := c.appendQueue()
	b := q.tail
	if b == nil || b.Kind != BufSource {
		violate("undo append stream", "stream does not end with a stream")
	}
	q.Remove(b)
	return b.Source
}

func (c *core) Location() tree.Location {
	for b := c.queue.head; b != nil; b = b.next {
		switch b.Kind {
		case BufData:
			if len(b.Avail()) > 0 {
				return c.pos.location(c.name)
			}
		case BufToken, BufIgnore:
			return c.pos.location(c.name)
		case BufSource:
			sub := b.Source.base()
			if blk, _, _ := sub.parseBlock(0); blk != BlockEOD && blk != BlockEOF {
				return sub.Location()
			}
		}
	}
	return c.pos.location(c.name)
}

// Buffers returns the queued run buffers, head first.
func (c *core) Buffers() []*RunBuf {
	out := make([]*RunBuf, 0, c.queue.Len())
	for b := c.queue.head; b != nil; b = b.next {
		out = append(out, b)
	}
	return out
}

// Release drops the trees still queued in the stream and its nested
// streams.
func (c *core) Release(store *tree.Store) {
	for b := c.queue.PopHead(); b != nil; b = c.queue.PopHead() {
		switch b.Kind {
		case BufToken, BufIgnore:
			store.Downref(b.Tree)
		case BufSource:
			b.Source.base().Release(store)
		}
	}
}

// MisuseError reports an undo that does not match the stream contents.
// Like tree.IntegrityError it is raised by panic.
type MisuseError struct {
	Op  string
	Msg string
}

func (e *MisuseError) Error() string {
	return "stream: " + e.Op + ": " + e.Msg
}

func violate(op, msg string) {
	panic(&MisuseError{Op: op, Msg: msg})
}
