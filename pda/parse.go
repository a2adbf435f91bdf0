package pda

import "github.com/dhamidi/backscan/tree"

// parseNext takes one transition on the parse input at the head of the
// queue: a shift, a reduction, or both.
func (s *Session) parseNext() (Resume, bool) {
	if s.parseInput == nil {
		s.pc = pcOut
		return 0, false
	}
	s.lel = s.parseInput
	s.curState = s.cs

	tr, ok := s.tables.Lookup(s.curState, s.lel.id)
	if !ok || s.lel.retryLower >= len(tr.Actions) {
		log.Debugf("no transition on %s in state %d", s.tables.Element(s.lel.id).Name, s.curState)
		s.pushBtPoint()
		s.pc = pcParseError
		return 0, false
	}

	s.cs = tr.Target
	s.alt = s.lel.retryLower
	act := tr.Actions[s.alt]
	more := s.alt+1 < len(tr.Actions)

	if act.Shift {
		s.shift(more)
	}
	if tr.Commit {
		s.commit()
	}
	if !act.Reduce {
		return 0, false
	}

	if !act.Shift && s.isTerminal(s.lel.id) {
		s.attachRightIgnore(s.stackTop)
	}
	if s.parseInput != nil {
		s.parseInput.causeReduce++
	}

	prod := s.tables.Production(act.Prod)
	red := &node{id: prod.LHS, region: noRegion}
	red.retryUpper = s.lel.retryLower
	s.lel.retryLower = 0

	var first *node
	children := make([]*tree.Tree, prod.Length)
	for i := prod.Length - 1; i >= 0; i-- {
		c := s.stackTop
		s.stackTop = c.next
		c.next = first
		first = c
		children[i] = c.tree
		c.tree = nil
	}
	red.child = first
	red.tree = s.store.NewTree(prod.LHS, act.Prod, s.tables.Element(prod.LHS).Attrs, children)
	red.text = red.tree.Text

	log.Debugf("reduced %s, %d children", prod.Name, prod.Length)
	if more {
		red.retryUpper++
		s.numRetry++
	} else {
		red.retryUpper = 0
	}
	if prod.Length == 0 {
		s.cs = s.curState
	} else {
		s.cs = first.state
	}
	s.redLel = red

	if prod.Action {
		s.parsed = nil
		s.reject = false
		s.frame = Frame{Kind: ResumeReduction, ID: prod.LHS, Prod: act.Prod}
		s.pc = pcReduced
		return ResumeReduction, true
	}
	s.finishReduction(false)
	return 0, false
}

// finishReduction queues the reduced node as the next parse input, or
// backtracks if the reduction action rejected it.
func (s *Session) finishReduction(ranAction bool) {
	red := s.redLel
	reject := false
	if ranAction {
		if s.parsed != nil {
			log.Debugf("lhs replaced, recording restore")
			s.journal.record(restoreLHS{t: s.parsed})
			s.parsed = nil
		}
		s.sealInverse()
		s.transferInverse(red)
		reject = s.reject
	}
	s.redLel = nil

	if reject {
		log.Debugf("reduction of %s rejected", s.tables.Element(red.id).Name)
		red.state = s.curState
		red.next = s.stackTop
		s.stackTop = red
		s.pushBtPoint()
		s.pc = pcParseError
		return
	}
	red.next = s.parseInput
	s.parseInput = red
	s.pc = pcAgain
}

func (s *Session) shift(more bool) {
	lel := s.lel
	s.parseInput = lel.next
	lel.state = s.curState
	log.Debugf("shifted %s", s.tables.Element(lel.id).Name)

	terminal := s.isTerminal(lel.id)
	if terminal && lel.causeReduce == 0 {
		s.attachRightIgnore(s.stackTop)
	}
	lel.next = s.stackTop
	s.stackTop = lel
	if terminal {
		s.attachLeftIgnore(lel)
		s.tokenList = append(s.tokenList, lel)
	}

	if more {
		lel.retryLower++
		s.numRetry++
	} else {
		lel.retryLower = 0
	}
}
