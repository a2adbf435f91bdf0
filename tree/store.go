package tree

// Store allocates trees and tracks how many are alive.
type Store struct {
	live int
	work []*Tree
	els  []*mapEl
}

func NewStore() *Store {
	return &Store{}
}

// Live reports the number of allocated trees that have not been freed.
func (s *Store) Live() int { return s.live }

func (s *Store) alloc(kind Kind, id int) *Tree {
	s.live++
	return &Tree{Kind: kind, ID: id, refs: 1}
}

// Upref records a new owner of t.
func (s *Store) Upref(t *Tree) {
	if t != nil {
		t.refs++
	}
}

// Downref drops one owner of t and frees it when none remain.
func (s *Store) Downref(t *Tree) {
	if t == nil {
		return
	}
	if t.refs <= 0 {
		violate("downref", t, "reference count is already zero")
	}
	t.refs--
	if t.refs == 0 {
		s.free(t)
	}
}

// free dismantles t and everything only it kept alive. The traversal uses an
// explicit work list so deep or wide trees never grow the call stack.
func (s *Store) free(t *Tree) {
	work := append(s.work[:0], t)
	for len(work) > 0 {
		t := work[len(work)-1]
		work = work[:len(work)-1]

		switch t.Kind {
		case KindList:
			for c := t.list.head; c != nil; c = c.Next {
				work = s.release(work, c.Tree)
			}
		case KindMap:
			els := append(s.els[:0], t.m.root)
			for len(els) > 0 {
				el := els[len(els)-1]
				els = els[:len(els)-1]
				if el == nil {
					continue
				}
				work = s.release(work, el.key)
				work = s.release(work, el.value)
				els = append(els, el.left, el.right)
			}
			s.els = els[:0]
		default:
			for k := t.child; k != nil; k = k.Next {
				work = s.release(work, k.Tree)
			}
		}

		t.Text = nil
		t.child = nil
		t.list = nil
		t.m = nil
		s.live--
	}
	s.work = work[:0]
}

func (s *Store) release(work []*Tree, t *Tree) []*Tree {
	if t == nil {
		return work
	}
	if t.refs <= 0 {
		violate("free", t, "reference count is already zero")
	}
	t.refs--
	if t.refs == 0 {
		work = append(work, t)
	}
	return work
}

// Split makes t safe to write. A tree with at most one owner is returned
// as is. A shared tree is copied one level deep, the caller's reference
// moves to the copy, and the copy is returned.
func (s *Store) Split(t *Tree) *Tree {
	if t == nil || t.refs <= 1 {
		return t
	}
	c := s.copy(t)
	t.refs--
	return c
}

func (s *Store) copy(t *Tree) *Tree {
	c := s.alloc(t.Kind, t.ID)
	c.Flags = t.Flags
	c.Prod = t.Prod
	c.attrs = t.attrs
	c.Text = t.Text.clone()

	switch t.Kind {
	case KindList:
		c.list = &listBody{}
		for k := t.list.head; k != nil; k = k.Next {
			s.Upref(k.Tree)
			c.list.pushTail(k.Tree)
		}
	case KindMap:
		c.m = t.m.copy()
		c.m.each(func(el *mapEl) bool {
			s.Upref(el.key)
			s.Upref(el.value)
			return true
		})
	default:
		c.child = s.copyKids(t.child)
	}
	return c
}

func (s *Store) copyKids(k *Kid) *Kid {
	var first, last *Kid
	for ; k != nil; k = k.Next {
		s.Upref(k.Tree)
		n := &Kid{Tree: k.Tree}
		if last == nil {
			first = n
		} else {
			last.Next = n
		}
		last = n
	}
	return first
}

// NewToken returns a terminal with the given text and attrs empty
// attribute slots.
func (s *Store) NewToken(id int, text *Head, attrs int) *Tree {
	t := s.alloc(KindTree, id)
	t.Text = text
	t.attrs = attrs
	t.child = allocAttrs(attrs)
	return t
}

// NewTree returns a nonterminal. It takes over the caller's references to
// children.
func (s *Store) NewTree(id, prod, attrs int, children []*Tree) *Tree {
	var first, last *Kid
	for _, c := range children {
		n := &Kid{Tree: c}
		if last == nil {
			first = n
		} else {
			last.Next = n
		}
		last = n
	}
	return s.NewReduced(id, prod, attrs, first)
}

// NewReduced returns a nonterminal whose grammar children are the cells of
// kids, which the tree takes over.
func (s *Store) NewReduced(id, prod, attrs int, kids *Kid) *Tree {
	t := s.alloc(KindTree, id)
	t.Prod = prod
	t.attrs = attrs
	t.child = concatKids(allocAttrs(attrs), kids)
	return t
}

// NewString returns a string value.
func (s *Store) NewString(text *Head) *Tree {
	t := s.alloc(KindString, 0)
	t.Text = text
	return t
}

// NewIgnoreList returns an ignore list holding tokens in source order. It
// takes over the caller's references.
func (s *Store) NewIgnoreList(tokens []*Tree) *Tree {
	t := s.alloc(KindIgnore, 0)
	var last *Kid
	for _, tok := range tokens {
		n := &Kid{Tree: tok}
		if last == nil {
			t.child = n
		} else {
			last.Next = n
		}
		last = n
	}
	return t
}

func allocAttrs(n int) *Kid {
	var first *Kid
	for i := 0; i < n; i++ {
		first = &Kid{Next: first}
	}
	return first
}

func concatKids(a, b *Kid) *Kid {
	if a == nil {
		return b
	}
	last := a
	for last.Next != nil {
		last = last.Next
	}
	last.Next = b
	return a
}
