package tree

func insLeftIgnore(t, il *Tree) {
	if t.Flags&FlagLeftIgnore != 0 {
		violate("insert left ignore", t, "left ignore already attached")
	}
	t.child = &Kid{Tree: il, Next: t.child}
	t.Flags |= FlagLeftIgnore
}

func insRightIgnore(t, il *Tree) {
	if t.Flags&FlagRightIgnore != 0 {
		violate("insert right ignore", t, "right ignore already attached")
	}
	if t.Flags&FlagLeftIgnore != 0 {
		t.child.Next = &Kid{Tree: il, Next: t.child.Next}
	} else {
		t.child = &Kid{Tree: il, Next: t.child}
	}
	t.Flags |= FlagRightIgnore
}

// remLeftIgnore unlinks the left ignore cell and returns the list with the
// cell's reference.
func remLeftIgnore(t *Tree) *Tree {
	k := t.child
	t.child = k.Next
	t.Flags &^= FlagLeftIgnore
	return k.Tree
}

func remRightIgnore(t *Tree) *Tree {
	var k *Kid
	if t.Flags&FlagLeftIgnore != 0 {
		k = t.child.Next
		t.child.Next = k.Next
	} else {
		k = t.child
		t.child = k.Next
	}
	t.Flags &^= FlagRightIgnore
	return k.Tree
}

// PushLeftIgnore attaches il as the left ignore of t and returns the tree
// that now holds it. The caller's reference to il moves into t. If t
// already has a left ignore, that list becomes the right ignore of il so no
// ignored text is lost.
func (s *Store) PushLeftIgnore(t, il *Tree) *Tree {
	t = s.Split(t)
	il = s.Split(il)
	if cur := t.leftIgnoreKid(); cur != nil {
		insRightIgnore(il, cur.Tree)
		cur.Tree = il
	} else {
		insLeftIgnore(t, il)
	}
	return t
}

// PushRightIgnore is the mirror of PushLeftIgnore. An existing right ignore
// becomes the left ignore of il.
func (s *Store) PushRightIgnore(t, il *Tree) *Tree {
	t = s.Split(t)
	il = s.Split(il)
	if cur := t.rightIgnoreKid(); cur != nil {
		insLeftIgnore(il, cur.Tree)
		cur.Tree = il
	} else {
		insRightIgnore(t, il)
	}
	return t
}

// PopLeftIgnore undoes the most recent PushLeftIgnore. It returns the tree
// that held the list and the list itself, owned by the caller. Calling it
// on a tree without a left ignore is an integrity violation.
func (s *Store) PopLeftIgnore(t *Tree) (*Tree, *Tree) {
	if t == nil || t.Flags&FlagLeftIgnore == 0 {
		violate("pop left ignore", t, "no left ignore attached")
	}
	t = s.Split(t)
	cur := t.leftIgnoreKid()
	if cur.Tree.Flags&FlagRightIgnore != 0 {
		il := s.Split(cur.Tree)
		cur.Tree = remRightIgnore(il)
		return t, il
	}
	return t, remLeftIgnore(t)
}

// PopRightIgnore undoes the most recent PushRightIgnore.
func (s *Store) PopRightIgnore(t *Tree) (*Tree, *Tree) {
	if t == nil || t.Flags&FlagRightIgnore == 0 {
		violate("pop right ignore", t, "no right ignore attached")
	}
	t = s.Split(t)
	cur := t.rightIgnoreKid()
	if cur.Tree.Flags&FlagLeftIgnore != 0 {
		il := s.Split(cur.Tree)
		cur.Tree = remLeftIgnore(il)
		return t, il
	}
	return t, remRightIgnore(t)
}
