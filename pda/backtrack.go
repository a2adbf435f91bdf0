package pda

// backtrack undoes one unit of parsing. It stops when an alternative is
// found, a new lexer region can be tried, the undo target is reached, or
// there is nothing left to undo.
func (s *Session) backtrack() (Resume, bool) {
	switch {
	case s.onDeck:
		if s.stop || len(s.journal.blocks) == 0 {
			// The rest of the deck stays applied and waits for the
			// next parse input.
			s.journal.reopen()
			s.onDeck = false
			return 0, false
		}
		b := s.journal.pop()
		if b.deckStart {
			s.onDeck = false
		}
		s.frame = Frame{Kind: ResumeReverse, entries: b.entries}
		return ResumeReverse, true

	case s.checkNext:
		s.checkNext = false
		if r := s.nextRetry; r.idx >= 0 && r.idx < len(s.tables.Regions(r.state)) {
			log.Debugf("retrying in region %d", s.tables.Regions(r.state)[r.idx].Scan)
			s.numRetry--
			s.cs = s.stackTopTarget()
			s.next = r
			s.pc = pcParseDone
		}

	case s.checkStop:
		s.checkStop = false
		if s.stop {
			log.Debugf("undo target reached at step %d", s.steps)
			s.cs = s.stackTopTarget()
			s.pc = pcOut
		}

	case s.parseInput != nil:
		in := s.parseInput
		switch {
		case s.isTerminal(in.id):
			switch {
			case in.retryLower != 0:
				log.Debugf("retrying %s", s.tables.Element(in.id).Name)
				s.numRetry--
				s.cs = in.state
				s.pc = pcAgain
			case in.causeReduce != 0:
				undo := s.stackTop
				if undo.next == nil || s.pinned(undo) {
					s.pc = pcFail
					return 0, false
				}
				s.stackTop = undo.next
				undo.next = in
				s.parseInput = undo
			default:
				s.nextRetry = nextRegion(in.region)
				s.checkNext = true
				s.checkStop = true
				s.parseInput = in.next
				in.next = nil
				s.sendBack(in)
			}
		case in.flags&nodeHasInverse != 0:
			s.onDeck = true
			s.parsed = nil
			in.flags &^= nodeHasInverse
		default:
			s.unreduce()
		}

	case s.accumIgnore != nil:
		ig := s.accumIgnore
		s.accumIgnore = ig.next
		ig.next = nil
		s.nextRetry = nextRegion(ig.region)
		s.checkNext = true
		s.checkStop = true
		s.sendBackIgnore(ig)

	default:
		undo := s.stackTop
		if undo.next == nil || s.pinned(undo) {
			s.pc = pcFail
			return 0, false
		}
		s.stackTop = undo.next
		undo.next = s.parseInput
		s.parseInput = undo
		if s.isTerminal(undo.id) {
			log.Debugf("backing up over %s", s.tables.Element(undo.id).Name)
			s.tokenList = s.tokenList[:len(s.tokenList)-1]
			s.detachLeftIgnore(undo)
		}
		if s.stackTop.flags&nodeRightAttached != 0 {
			s.detachRightIgnore(s.stackTop)
		}
	}
	return 0, false
}

func nextRegion(r regionRef) regionRef {
	if r.idx < 0 {
		return noRegion
	}
	return regionRef{state: r.state, idx: r.idx + 1}
}

// unreduce replaces the nonterminal at the head of the input with its
// children, pushed back on the stack.
func (s *Session) unreduce() {
	undo := s.parseInput
	s.parseInput = undo.next
	log.Debugf("unreducing %s", s.tables.Element(undo.id).Name)

	first := undo.child
	undo.child = nil
	undo.tree = s.store.Split(undo.tree)
	kid := s.store.ExtractChild(undo.tree)
	for first != nil {
		next := first.next
		first.next = s.stackTop
		s.stackTop = first
		if kid != nil {
			first.tree = kid.Tree
			kid = kid.Next
		}
		first = next
	}

	if s.parseInput != nil {
		s.parseInput.causeReduce--
	}
	if undo.retryUpper != 0 {
		s.parseInput.retryLower = undo.retryUpper
		s.parseInput.retryUpper = 0
		s.parseInput.state = s.stackTopTarget()
	}
	s.store.Downref(undo.tree)
	undo.tree = nil

	if s.stackTop.flags&nodeRightAttached != 0 {
		s.detachRightIgnore(s.stackTop)
	}
}

// sendBack returns a terminal to the input stream.
func (s *Session) sendBack(nd *node) {
	log.Debugf("sending back %s", s.tables.Element(nd.id).Name)
	s.steps--
	if nd.id != s.tables.EOF() {
		s.tokens--
	}
	if nd.flags&nodeHasInverse != 0 {
		s.onDeck = true
		nd.flags &^= nodeHasInverse
	}
	if nd.flags&nodeArtificial != 0 {
		s.input.UndoConsumeTree(nd.tree, false)
		nd.tree = nil
	} else {
		if nd.tree.Text != nil {
			s.input.UndoConsume(nd.tree.Text.Data)
		}
		if nd.id == s.tables.EOF() {
			s.eofSent = false
		}
		s.popBinding(nd)
		s.store.Downref(nd.tree)
		nd.tree = nil
	}
	if s.steps == s.targetSteps {
		s.stop = true
	}
}

// sendBackIgnore returns an ignore token to the input stream.
func (s *Session) sendBackIgnore(nd *node) {
	if nd.flags&nodeArtificial != 0 {
		s.input.UndoConsumeTree(nd.tree, true)
	} else {
		if nd.tree.Text != nil {
			s.input.UndoConsume(nd.tree.Text.Data)
		}
		s.store.Downref(nd.tree)
	}
	nd.tree = nil
	s.steps--
	if nd.flags&nodeHasInverse != 0 {
		s.onDeck = true
	}
	if s.steps == s.targetSteps {
		s.stop = true
	}
}
