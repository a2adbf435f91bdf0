package pda

import "github.com/dhamidi/backscan/tree"

// sendToken makes the matched token the next parse input.
func (s *Session) sendToken(id int) {
	emptyIgnore := s.accumIgnore == nil
	head, caps := s.sc.Take(s.input)

	t := s.store.NewToken(id, head, s.tables.Element(id).Attrs)
	for _, c := range caps {
		v := s.store.NewString(c.Text)
		t = s.store.SetAttr(t, c.Attr, v)
		s.store.Downref(v)
	}
	s.steps++
	s.tokens++

	nd := newNode(id, t)
	s.parseInput = nd
	if s.cs >= 0 {
		s.setRegion(emptyIgnore, nd)
	}
	s.pushBinding(nd)
}

// sendTree makes a tree found in the input the next parse input.
func (s *Session) sendTree() {
	emptyIgnore := s.accumIgnore == nil
	t := s.input.ConsumeTree()
	s.steps++
	s.tokens++

	nd := newNode(t.ID, t)
	nd.flags |= nodeArtificial
	s.parseInput = nd
	s.setRegion(emptyIgnore, nd)
}

// sendCollectIgnore sends an empty token so that collected ignore text is
// attached before the scanner switches regions.
func (s *Session) sendCollectIgnore(id int) {
	emptyIgnore := s.accumIgnore == nil
	loc := s.input.Location()
	t := s.store.NewToken(id, tree.NewHead(nil, &loc), s.tables.Element(id).Attrs)
	s.steps++
	s.tokens++

	nd := newNode(id, t)
	s.parseInput = nd
	s.setRegion(emptyIgnore, nd)
}

func (s *Session) sendEOF() {
	loc := s.input.Location()
	id := s.tables.EOF()
	t := s.store.NewToken(id, tree.NewHead(nil, &loc), 0)
	s.steps++

	nd := newNode(id, t)
	s.parseInput = nd
}

func (s *Session) sendIgnore(id int) {
	head, _ := s.sc.Take(s.input)
	log.Debugf("ignoring %q", head.Data)
	s.ignoreTree(s.store.NewToken(id, head, 0), false)
}

func (s *Session) sendIgnoreTree() {
	s.ignoreTree(s.input.ConsumeTree(), true)
}

// ignoreTree adds an ignore token to the accumulator. Ignored text scanned
// in a pre-region belongs to the token before it.
func (s *Session) ignoreTree(t *tree.Tree, artificial bool) {
	emptyIgnore := s.accumIgnore == nil
	s.steps++

	nd := newNode(t.ID, t)
	nd.next = s.accumIgnore
	s.accumIgnore = nd
	s.transferInverse(nd)

	if artificial {
		nd.flags |= nodeArtificial
	} else if s.sc.PreRegion >= 0 {
		nd.flags |= nodeRightIgnore
	}
	s.setRegion(emptyIgnore, nd)
}

// sourceOrder reverses an accumulator list, which is newest first.
func sourceOrder(list *node) (*node, []*tree.Tree) {
	var first *node
	for list != nil {
		next := list.next
		list.next = first
		first = list
		list = next
	}
	var trees []*tree.Tree
	for nd := first; nd != nil; nd = nd.next {
		trees = append(trees, nd.tree)
		nd.tree = nil
	}
	return first, trees
}

// attachRightIgnore moves the ignore tokens scanned in a pre-region after
// the terminal on top of the stack into its right ignore list.
func (s *Session) attachRightIgnore(top *node) {
	if s.accumIgnore == nil || top.id <= 0 || !s.isTerminal(top.id) {
		return
	}

	// Everything older than the oldest ignore scanned outside a
	// pre-region belongs to top.
	var stopAt *node
	for nd := s.accumIgnore; nd != nil; nd = nd.next {
		if nd.flags&nodeRightIgnore == 0 {
			stopAt = nd
		}
	}
	var take *node
	if stopAt != nil {
		take = stopAt.next
		stopAt.next = nil
	} else {
		take = s.accumIgnore
		s.accumIgnore = nil
	}
	if take == nil {
		return
	}

	first, trees := sourceOrder(take)
	top.rightIgnore = first
	top.tree = s.store.PushRightIgnore(top.tree, s.store.NewIgnoreList(trees))
	top.flags |= nodeRightAttached
}

// attachLeftIgnore moves every accumulated ignore token into the left
// ignore list of a freshly shifted terminal.
func (s *Session) attachLeftIgnore(nd *node) {
	if s.accumIgnore == nil {
		return
	}
	take := s.accumIgnore
	s.accumIgnore = nil

	first, trees := sourceOrder(take)
	nd.leftIgnore = first
	nd.tree = s.store.PushLeftIgnore(nd.tree, s.store.NewIgnoreList(trees))
	nd.flags |= nodeLeftAttached
}

// restoreIgnore hands the tokens of il back to the ignore nodes in list and
// returns the nodes newest first.
func (s *Session) restoreIgnore(list *node, il *tree.Tree) *node {
	toks := s.store.TakeIgnoreTokens(il)
	var last *node
	i := 0
	for nd := list; nd != nil; i++ {
		next := nd.next
		if i < len(toks) {
			nd.tree = toks[i]
		}
		nd.next = last
		last = nd
		nd = next
	}
	for ; i < len(toks); i++ {
		s.store.Downref(toks[i])
	}
	return last
}

func (s *Session) detachLeftIgnore(nd *node) {
	if nd.flags&nodeLeftAttached == 0 {
		return
	}
	var il *tree.Tree
	nd.tree, il = s.store.PopLeftIgnore(nd.tree)
	nd.flags &^= nodeLeftAttached

	restored := s.restoreIgnore(nd.leftIgnore, il)
	nd.leftIgnore = nil
	if restored == nil {
		return
	}
	tail := restored
	for tail.next != nil {
		tail = tail.next
	}
	tail.next = s.accumIgnore
	s.accumIgnore = restored
}

func (s *Session) detachRightIgnore(nd *node) {
	if nd.flags&nodeRightAttached == 0 {
		return
	}
	var il *tree.Tree
	nd.tree, il = s.store.PopRightIgnore(nd.tree)
	nd.flags &^= nodeRightAttached

	restored := s.restoreIgnore(nd.rightIgnore, il)
	nd.rightIgnore = nil
	if restored == nil {
		return
	}
	// Right ignore was scanned before anything still accumulated.
	if s.accumIgnore == nil {
		s.accumIgnore = restored
		return
	}
	tail := s.accumIgnore
	for tail.next != nil {
		tail = tail.next
	}
	tail.next = restored
}
