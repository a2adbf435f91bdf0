package tree

type listBody struct {
	head *Kid
	tail *Kid
	n    int
}

func (l *listBody) pushTail(v *Tree) {
	k := &Kid{Tree: v}
	if l.tail == nil {
		l.head = k
	} else {
		l.tail.Next = k
	}
	l.tail = k
	l.n++
}

func (l *listBody) pushHead(v *Tree) {
	l.head = &Kid{Tree: v, Next: l.head}
	if l.tail == nil {
		l.tail = l.head
	}
	l.n++
}

func (l *listBody) at(i int) *Kid {
	if i < 0 || i >= l.n {
		return nil
	}
	k := l.head
	for ; i > 0; i-- {
		k = k.Next
	}
	return k
}

// NewList returns an empty list value.
func (s *Store) NewList() *Tree {
	t := s.alloc(KindList, 0)
	t.list = &listBody{}
	return t
}

func checkList(op string, l *Tree) {
	if l == nil || l.Kind != KindList {
		violate(op, l, "not a list")
	}
}

// ListLen reports the number of elements.
func ListLen(l *Tree) int {
	checkList("list len", l)
	return l.list.n
}

// ListGet returns element i without taking a reference, or nil when i is
// out of range.
func ListGet(l *Tree, i int) *Tree {
	checkList("list get", l)
	if k := l.list.at(i); k != nil {
		return k.Tree
	}
	return nil
}

// ListValues returns the elements in order without taking references.
func ListValues(l *Tree) []*Tree {
	checkList("list values", l)
	out := make([]*Tree, 0, l.list.n)
	for k := l.list.head; k != nil; k = k.Next {
		out = append(out, k.Tree)
	}
	return out
}

// ListAppend adds v at the end and returns the list that now holds it. The
// list takes its own reference to v.
func (s *Store) ListAppend(l, v *Tree) *Tree {
	checkList("list append", l)
	l = s.Split(l)
	s.Upref(v)
	l.list.pushTail(v)
	return l
}

// ListPrepend adds v at the front.
func (s *Store) ListPrepend(l, v *Tree) *Tree {
	checkList("list prepend", l)
	l = s.Split(l)
	s.Upref(v)
	l.list.pushHead(v)
	return l
}

// ListRemoveHead removes the first element. The element's reference is
// handed to the caller. Removing from an empty list returns a nil element.
func (s *Store) ListRemoveHead(l *Tree) (*Tree, *Tree) {
	checkList("list remove head", l)
	if l.list.n == 0 {
		return l, nil
	}
	l = s.Split(l)
	k := l.list.head
	l.list.head = k.Next
	if l.list.head == nil {
		l.list.tail = nil
	}
	l.list.n--
	return l, k.Tree
}

// ListRemoveTail removes the last element.
func (s *Store) ListRemoveTail(l *Tree) (*Tree, *Tree) {
	checkList("list remove tail", l)
	if l.list.n == 0 {
		return l, nil
	}
	l = s.Split(l)
	k := l.list.tail
	if l.list.n == 1 {
		l.list.head, l.list.tail = nil, nil
	} else {
		prev := l.list.at(l.list.n - 2)
		prev.Next = nil
		l.list.tail = prev
	}
	l.list.n--
	return l, k.Tree
}

// ListSet replaces element i.
func (s *Store) ListSet(l *Tree, i int, v *Tree) *Tree {
	checkList("list set", l)
	if i < 0 || i >= l.list.n {
		violate("list set", l, "index out of range")
	}
	l = s.Split(l)
	k := l.list.at(i)
	s.Upref(v)
	old := k.Tree
	k.Tree = v
	s.Downref(old)
	return l
}
