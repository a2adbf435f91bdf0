package tree

func (t *Tree) ignoreCells() int {
	n := 0
	if t.Flags&FlagLeftIgnore != 0 {
		n++
	}
	if t.Flags&FlagRightIgnore != 0 {
		n++
	}
	return n
}

func (t *Tree) skipIgnore() *Kid {
	k := t.child
	for i := t.ignoreCells(); i > 0 && k != nil; i-- {
		k = k.Next
	}
	return k
}

func (t *Tree) attrKid(pos int) *Kid {
	if pos < 0 || pos >= t.attrs {
		return nil
	}
	k := t.skipIgnore()
	for ; pos > 0 && k != nil; pos-- {
		k = k.Next
	}
	return k
}

// Attr returns the value in attribute slot pos without taking a reference.
func (t *Tree) Attr(pos int) *Tree {
	if k := t.attrKid(pos); k != nil {
		return k.Tree
	}
	return nil
}

// SetAttr stores v in attribute slot pos and returns the tree that now
// holds it, which differs from t when t was shared. The slot takes its own
// reference to v; the previous value is released.
func (s *Store) SetAttr(t *Tree, pos int, v *Tree) *Tree {
	t = s.Split(t)
	k := t.attrKid(pos)
	if k == nil {
		violate("set attr", t, "attribute slot out of range")
	}
	s.Upref(v)
	old := k.Tree
	k.Tree = v
	s.Downref(old)
	return t
}

// Child returns the first grammar child cell.
func (t *Tree) Child() *Kid {
	k := t.skipIgnore()
	for i := t.attrs; i > 0 && k != nil; i-- {
		k = k.Next
	}
	return k
}

// Children returns the grammar children in order.
func (t *Tree) Children() []*Tree {
	var out []*Tree
	for k := t.Child(); k != nil; k = k.Next {
		out = append(out, k.Tree)
	}
	return out
}

// ExtractChild detaches the grammar children of t and hands their cells,
// with the references they hold, to the caller. t must not be shared.
func (s *Store) ExtractChild(t *Tree) *Kid {
	mustOwn("extract child", t)
	skip := t.ignoreCells() + t.attrs
	if skip == 0 {
		k := t.child
		t.child = nil
		return k
	}
	k := t.child
	for i := 1; i < skip && k != nil; i++ {
		k = k.Next
	}
	if k == nil {
		return nil
	}
	rest := k.Next
	k.Next = nil
	return rest
}

// LeftIgnore returns the left ignore list, if any.
func (t *Tree) LeftIgnore() *Tree {
	if t.Flags&FlagLeftIgnore != 0 {
		return t.child.Tree
	}
	return nil
}

// RightIgnore returns the right ignore list, if any.
func (t *Tree) RightIgnore() *Tree {
	if k := t.rightIgnoreKid(); k != nil {
		return k.Tree
	}
	return nil
}

func (t *Tree) leftIgnoreKid() *Kid {
	if t.Flags&FlagLeftIgnore != 0 {
		return t.child
	}
	return nil
}

func (t *Tree) rightIgnoreKid() *Kid {
	if t.Flags&FlagRightIgnore == 0 {
		return nil
	}
	if t.Flags&FlagLeftIgnore != 0 {
		return t.child.Next
	}
	return t.child
}

// IgnoreTokens returns the tokens held by an ignore list, excluding nested
// lists in its own ignore cells.
func (t *Tree) IgnoreTokens() []*Tree {
	var out []*Tree
	for k := t.skipIgnore(); k != nil; k = k.Next {
		out = append(out, k.Tree)
	}
	return out
}

// TakeIgnoreTokens empties the ignore list il and returns its tokens with
// their references. The caller's reference to il is consumed.
func (s *Store) TakeIgnoreTokens(il *Tree) []*Tree {
	if il == nil {
		return nil
	}
	il = s.Split(il)
	k := il.skipIgnore()
	var out []*Tree
	for ; k != nil; k = k.Next {
		out = append(out, k.Tree)
		k.Tree = nil
	}
	s.Downref(il)
	return out
}
