// Package pda drives a backtracking pushdown automaton over tokens produced
// by a scan.Scanner. The session alternates between scanning and parsing,
// suspends whenever a semantic action must run or input runs dry, and can
// undo any amount of parsing by replaying inverse actions and pushing
// tokens back into the stream.
package pda

import (
	"context"

	"github.com/dhamidi/backscan/scan"
	"github.com/dhamidi/backscan/stream"
	"github.com/dhamidi/backscan/tree"
	"github.com/tliron/commonlog"
)

var log = commonlog.GetLogger("backscan.pda")

// Status is the state a session is left in when Run returns.
type Status int

const (
	// StatusDone means end of input was parsed, or the stop target was
	// reached.
	StatusDone Status = iota
	// StatusStalled means the input ran dry; Run continues once more data
	// is written.
	StatusStalled
	// StatusStopped means Stop, a step limit, an undo target, or
	// cancellation ended the run early.
	StatusStopped
	StatusFailed
)

var statusNames = [...]string{"done", "stalled", "stopped", "failed"}

func (st Status) String() string {
	if int(st) < len(statusNames) {
		return statusNames[st]
	}
	return "unknown"
}

// Actions are the semantic actions of a grammar. Each receives a Context
// that records inverses for whatever it changes.
type Actions interface {
	// Generate runs when a token marked Generate is matched. Its text is
	// already consumed.
	Generate(c *Context) error
	// Reduce runs after a production marked Action is reduced.
	Reduce(c *Context) error
	// PreEOF runs before end of input is parsed in a region that asks
	// for it.
	PreEOF(c *Context) error
}

// Options configure a session.
type Options struct {
	Actions Actions
	// Revert keeps inverse code across commits so that committed
	// parsing can still be undone with UndoTo.
	Revert bool
	// StopAt ends parsing as soon as a tree of this nonterminal is the
	// only thing on the stack.
	StopAt int
	// Limit ends the run once this many steps have been taken.
	Limit int
}

// Session is the state of one parse.
type Session struct {
	tables  Tables
	store   *tree.Store
	input   stream.Stream
	sc      *scan.Scanner
	lexer   scan.Lexer
	actions Actions
	revert  bool

	cs    int
	next  regionRef
	pc    pc
	await Resume
	frame Frame

	stackTop    *node
	parseInput  *node
	accumIgnore *node
	tokenList   []*node
	redLel      *node
	curState    int
	lel         *node
	alt         int
	parsed      *tree.Tree
	reject      bool

	numRetry    int
	steps       int
	tokens      int
	targetSteps int
	committed   int
	limit       int
	stopTarget  int

	onDeck      bool
	checkNext   bool
	checkStop   bool
	nextRetry   regionRef
	stop        bool
	stopParsing bool
	halt        bool
	triggerUndo bool
	eofSent     bool
	stalled     bool
	parseError  bool

	journal  journal
	btPoints []btPoint
	bindings []binding
	err      error
	broken   error
	ctx      context.Context
}

// New starts a session parsing input with the given tables and lexer.
// Trees are allocated in store.
func New(tables Tables, lexer scan.Lexer, store *tree.Store, input stream.Stream, opts Options) *Session {
	s := &Session{
		tables:      tables,
		store:       store,
		input:       input,
		sc:          scan.New(lexer),
		lexer:       lexer,
		actions:     opts.Actions,
		revert:      opts.Revert,
		cs:          tables.Start(),
		targetSteps: -1,
		limit:       opts.Limit,
		stopTarget:  opts.StopAt,
		await:       ResumeStart,
	}
	s.stackTop = &node{state: -1, region: noRegion}
	s.next = regionRef{state: s.cs}
	s.bindings = []binding{{}}
	s.newToken()
	return s
}

// Steps is the number of units of input and inverse code currently
// applied. UndoTo takes a value previously returned by Steps.
func (s *Session) Steps() int { return s.steps }

// Tokens counts the significant tokens currently consumed.
func (s *Session) Tokens() int { return s.tokens }

// Err returns the parse error, if any.
func (s *Session) Err() error { return s.err }

// SetLimit ends future runs once the session reaches n steps. Zero
// removes the limit.
func (s *Session) SetLimit(n int) { s.limit = n }

// StopAt sets the nonterminal whose completion ends parsing.
func (s *Session) StopAt(id int) { s.stopTarget = id }

// Stop ends the current run at the next token boundary.
func (s *Session) Stop() { s.halt = true }

// Result returns the parsed tree once parsing is done. The session keeps
// its reference; Upref the tree to keep it past Close.
func (s *Session) Result() *tree.Tree {
	if s.parseError || s.stackTop.next == nil || s.stackTop.next.next != nil {
		return nil
	}
	return s.stackTop.tree
}

// Pending returns the ignore tokens scanned but not yet attached to a
// tree, in source order.
func (s *Session) Pending() []*tree.Tree {
	var out []*tree.Tree
	for nd := s.accumIgnore; nd != nil; nd = nd.next {
		out = append([]*tree.Tree{nd.tree}, out...)
	}
	return out
}

// Close releases every tree held by the session.
func (s *Session) Close() {
	release(s.store, s.stackTop)
	release(s.store, s.parseInput)
	release(s.store, s.accumIgnore)
	if s.redLel != nil && s.redLel != s.parseInput {
		release(s.store, s.redLel)
	}
	s.stackTop = &node{state: -1, region: noRegion}
	s.parseInput, s.accumIgnore, s.redLel = nil, nil, nil
	s.tokenList = nil
	if s.parsed != nil {
		s.store.Downref(s.parsed)
		s.parsed = nil
	}
	for _, b := range s.bindings {
		s.store.Downref(b.t)
	}
	s.bindings = []binding{{}}
	s.journal.drop(s.store)
}

func (s *Session) region() scan.RegionInfo { return s.lexer.Region(s.sc.Region) }

func (s *Session) currentRegion() Region {
	regions := s.tables.Regions(s.next.state)
	if s.next.idx < 0 || s.next.idx >= len(regions) {
		return Region{Scan: -1, Pre: -1}
	}
	return regions[s.next.idx]
}

func (s *Session) hasNextRegion(r regionRef) bool {
	return r.idx >= 0 && r.idx+1 < len(s.tables.Regions(r.state))
}

func (s *Session) newToken() {
	r := s.currentRegion()
	s.sc.Start(r.Scan, r.Pre)
}

// setRegion records the region a unit was scanned in when it starts a
// fresh run of input, so that backtracking over it can retry the next
// region.
func (s *Session) setRegion(emptyIgnore bool, nd *node) {
	if !emptyIgnore {
		return
	}
	nd.region = s.next
	if s.hasNextRegion(s.next) {
		s.numRetry++
	}
}

func (s *Session) stackTopTarget() int {
	if s.stackTop.state < 0 {
		return s.tables.Start()
	}
	tr, _ := s.tables.Lookup(s.stackTop.state, s.stackTop.id)
	return tr.Target
}

// pinned reports whether backtracking must stop at nd. Committed nodes
// can only be undone by UndoTo when inverse code was kept.
func (s *Session) pinned(nd *node) bool {
	return nd.flags&nodeCommitted != 0 && !(s.triggerUndo && s.revert)
}

func (s *Session) isTerminal(id int) bool { return id < s.tables.FirstNonTerm() }

func (s *Session) stopFinished() bool {
	return s.stopTarget > 0 && s.stackTop.next != nil && s.stackTop.next.next == nil &&
		s.stackTop.id == s.stopTarget
}

// binding is a token recorded for lookup by position. Slot 0 is unused.
type binding struct {
	nd *node
	t  *tree.Tree
}

func (s *Session) pushBinding(nd *node) {
	if !s.tables.Element(nd.id).Bind {
		return
	}
	s.store.Upref(nd.tree)
	s.bindings = append(s.bindings, binding{nd: nd, t: nd.tree})
}

func (s *Session) popBinding(nd *node) {
	last := len(s.bindings) - 1
	if last > 0 && s.bindings[last].nd == nd {
		s.store.Downref(s.bindings[last].t)
		s.bindings = s.bindings[:last]
	}
}

// commit makes everything on the stack permanent. Without revert the
// inverse code is dropped and UndoTo may not go below the current step.
func (s *Session) commit() {
	for nd := s.stackTop; nd != nil && nd.flags&nodeCommitted == 0; nd = nd.next {
		work := []*node{nd}
		for len(work) > 0 {
			n := work[len(work)-1]
			work = work[:len(work)-1]
			n.flags |= nodeCommitted
			if !s.revert {
				n.flags &^= nodeHasInverse
			}
			for c := n.child; c != nil; c = c.next {
				work = append(work, c)
			}
		}
	}
	s.numRetry = 0
	if !s.revert {
		s.journal.drop(s.store)
		s.onDeck = false
		s.committed = s.steps
	}
	log.Debugf("committed at step %d", s.steps)
}
