package stream

import "github.com/dhamidi/backscan/tree"

// BufSize is the size of the blocks read from a source.
const BufSize = 8192

// BufKind selects what a RunBuf holds.
type BufKind uint8

const (
	BufData BufKind = iota
	BufToken
	BufIgnore
	BufSource
)

// RunBuf is one element of a stream queue: a block of bytes with a consumed
// prefix, a tree waiting to be delivered whole, or a nested stream.
type RunBuf struct {
	Kind   BufKind
	Data   []byte
	Offset int
	Tree   *tree.Tree
	Source Stream

	next, prev *RunBuf
}

// Avail returns the unconsumed bytes of a data block.
func (b *RunBuf) Avail() []byte {
	return b.Data[b.Offset:]
}

func (b *RunBuf) Next() *RunBuf { return b.next }
func (b *RunBuf) Prev() *RunBuf { return b.prev }

func dataBuf(data []byte) *RunBuf {
	return &RunBuf{Kind: BufData, Data: append([]byte(nil), data...)}
}

func treeBuf(t *tree.Tree, ignore bool) *RunBuf {
	kind := BufToken
	if ignore {
		kind = BufIgnore
	}
	return &RunBuf{Kind: kind, Tree: t}
}

// Queue is a doubly linked list of run buffers.
type Queue struct {
	head, tail *RunBuf
	n          int
}

func (q *Queue) Head() *RunBuf { return q.head }
func (q *Queue) Tail() *RunBuf { return q.tail }
func (q *Queue) Len() int      { return q.n }

func (q *Queue) PushHead(b *RunBuf) {
	b.prev = nil
	b.next = q.head
	if q.head != nil {
		q.head.prev = b
	} else {
		q.tail = b
	}
	q.head = b
	q.n++
}

func (q *Queue) PushTail(b *RunBuf) {
	b.next = nil
	b.prev = q.tail
	if q.tail != nil {
		q.tail.next = b
	} else {
		q.head = b
	}
	q.tail = b
	q.n++
}

func (q *Queue) PopHead() *RunBuf {
	b := q.head
	if b != nil {
		q.Remove(b)
	}
	return b
}

func (q *Queue) PopTail() *RunBuf {
	b := q.tail
	if b != nil {
		q.Remove(b)
	}
	return b
}

// InsertBefore links b in front of at, or at the tail when at is nil.
func (q *Queue) InsertBefore(at, b *RunBuf) {
	if at == nil {
		q.PushTail(b)
		return
	}
	if at.prev == nil {
		q.PushHead(b)
		return
	}
	b.prev = at.prev
	b.next = at
	at.prev.next = b
	at.prev = b
	q.n++
}

// Remove unlinks b, which must be in q.
func (q *Queue) Remove(b *RunBuf) {
	if b.prev != nil {
		b.prev.next = b.next
	} else {
		q.head = b.next
	}
	if b.next != nil {
		b.next.prev = b.prev
	} else {
		q.tail = b.prev
	}
	b.next, b.prev = nil, nil
	q.n--
}

// moveAll appends every buffer of from to q and returns the first one moved.
func (q *Queue) moveAll(from *Queue) *RunBuf {
	first := from.head
	for b := from.PopHead(); b != nil; b = from.PopHead() {
		q.PushTail(b)
	}
	return first
}
