package pda

import (
	"fmt"

	"github.com/dhamidi/backscan/scan"
	"github.com/dhamidi/backscan/tree"
)

// Resume is a suspension point of the parse loop. Step returns the point
// it stopped at and must be called with the same value to continue.
type Resume int

const (
	ResumeStart Resume = iota
	ResumeDone
	ResumeReduction
	ResumeGeneration
	ResumePreEOF
	ResumeReverse
)

var resumeNames = [...]string{"start", "done", "reduction", "generation", "pre-eof", "reverse"}

func (r Resume) String() string {
	if int(r) < len(resumeNames) {
		return resumeNames[r]
	}
	return fmt.Sprintf("Resume(%d)", int(r))
}

// Frame describes the work the session is suspended on.
type Frame struct {
	Kind Resume
	// ID is the token or nonterminal the frame is about.
	ID   int
	Prod int
	// Region is the lexer region for pre-EOF frames.
	Region int
	// Text is the matched text of a generation token.
	Text *tree.Head

	entries []Inverse
}

// Frame returns the frame of the current suspension.
func (s *Session) Frame() Frame { return s.frame }

// pc is a position inside the parse loop.
type pc int

const (
	pcScan pc = iota
	pcAfterPreEOF
	pcAfterGeneration
	pcYes
	pcSkipSend
	pcParseStart
	pcAgain
	pcReduced
	pcParseError
	pcBacktrack
	pcFail
	pcOut
	pcParseDone
	pcDone
)

// Step runs the parse loop from the given suspension point until the next
// one. Every return other than ResumeDone leaves a frame to execute with
// Exec before calling Step again with the returned value.
func (s *Session) Step(entry Resume) Resume {
	if s.broken != nil {
		panic(&MisuseError{Msg: "session aborted: " + s.broken.Error()})
	}
	if entry != s.await {
		panic(&MisuseError{Msg: fmt.Sprintf("resumed at %s, suspended at %s", entry, s.await)})
	}
	switch entry {
	case ResumeStart:
		s.stop = false
		s.stalled = false
		s.pc = pcScan
	case ResumeReverse:
		s.steps--
		if s.steps == s.targetSteps {
			s.stop = true
			s.checkStop = true
		}
		s.pc = pcBacktrack
	}
	r := s.loop()
	s.await = r
	if r == ResumeDone {
		s.await = ResumeStart
	}
	return r
}

func (s *Session) loop() Resume {
	for {
		switch s.pc {
		case pcScan:
			if r, ok := s.scanNext(); ok {
				return r
			}

		case pcAfterPreEOF:
			s.sealInverse()
			s.pc = pcYes

		case pcAfterGeneration:
			s.sealInverse()
			s.pc = pcSkipSend

		case pcYes:
			if in := s.parseInput; in != nil {
				s.transferInverse(in)
				if !s.isTerminal(in.id) {
					if dup := s.tables.Element(in.id).TermDup; dup > 0 {
						in.id = dup
						in.flags |= nodeTermDup
					}
				}
			}
			s.pc = pcParseStart

		case pcSkipSend:
			s.newToken()
			if s.triggerUndo || s.eofSent || s.stopParsing || s.stop || s.halt ||
				s.parseError || s.limitReached() || s.cancelled() {
				s.pc = pcDone
				return ResumeDone
			}
			s.pc = pcScan

		case pcParseStart:
			switch {
			case s.parseInput == nil:
				s.pc = pcParseError
			case s.cs < 0:
				s.pc = pcParseDone
			default:
				s.parseInput.state = s.cs
				s.pc = pcAgain
			}

		case pcAgain:
			if r, ok := s.parseNext(); ok {
				return r
			}

		case pcReduced:
			s.finishReduction(true)

		case pcParseError:
			if s.numRetry == 0 {
				log.Debugf("out of alternatives")
				s.pc = pcFail
			} else {
				log.Debugf("hit error, backtracking")
				s.pc = pcBacktrack
			}

		case pcBacktrack:
			if r, ok := s.backtrack(); ok {
				return r
			}

		case pcFail:
			s.cs = -1
			s.parseError = true
			if s.parseInput != nil {
				release(s.store, s.parseInput)
				s.parseInput = nil
			}
			s.pc = pcParseDone

		case pcOut:
			if s.cs >= 0 {
				s.next = regionRef{state: s.cs}
			}
			s.pc = pcParseDone

		case pcParseDone:
			if s.parseError {
				s.reportParseError()
			} else if s.stopFinished() {
				log.Debugf("stop target %d reached", s.stopTarget)
				s.stopParsing = true
			}
			s.pc = pcSkipSend

		case pcDone:
			return ResumeDone
		}
	}
}

func (s *Session) limitReached() bool { return s.limit > 0 && s.steps >= s.limit }

func (s *Session) cancelled() bool { return s.ctx != nil && s.ctx.Err() != nil }

// scanNext scans one unit of input and sends it to the parser.
func (s *Session) scanNext() (Resume, bool) {
	tok := s.sc.Scan(s.input)

	if tok == scan.Error && s.sc.DropPreRegion() {
		return 0, false
	}
	if tok == scan.Error {
		if ci := s.region().CollectIgnore; ci > 0 {
			s.sendCollectIgnore(ci)
			s.pc = pcYes
			return 0, false
		}
	}
	if tok == scan.TryAgainLater {
		log.Debugf("%s: out of input, stalling", s.input.Name())
		s.stalled = true
		s.pc = pcDone
		return ResumeDone, true
	}

	s.parseInput = nil
	switch tok {
	case scan.EOF:
		s.eofSent = true
		s.sendEOF()
		if region := s.sc.Region; region >= 0 && s.tables.PreEOF(region) {
			s.frame = Frame{Kind: ResumePreEOF, ID: s.tables.EOF(), Region: region}
			s.pc = pcAfterPreEOF
			return ResumePreEOF, true
		}
		s.pc = pcYes

	case scan.Undo:
		s.pc = pcYes

	case scan.Error:
		switch {
		case s.accumIgnore == nil && s.hasNextRegion(s.next):
			s.next.idx++
			log.Debugf("scan error, trying region %d", s.currentRegion().Scan)
			s.pc = pcSkipSend
		case s.numRetry > 0:
			s.pushBtPoint()
			s.pc = pcYes
		default:
			s.pushBtPoint()
			s.reportParseError()
			s.parseError = true
			s.pc = pcSkipSend
		}

	case scan.Tree:
		s.sendTree()
		s.pc = pcYes

	case scan.Ignore:
		s.sendIgnoreTree()
		s.pc = pcSkipSend

	default:
		el := s.tables.Element(tok)
		switch {
		case el.Generate:
			head, _ := s.sc.Take(s.input)
			s.journal.record(pulled{data: head.Data})
			s.frame = Frame{Kind: ResumeGeneration, ID: tok, Text: head}
			s.pc = pcAfterGeneration
			return ResumeGeneration, true
		case el.Ignore:
			s.sendIgnore(tok)
			s.pc = pcSkipSend
		default:
			s.sendToken(tok)
			s.pc = pcYes
		}
	}
	return 0, false
}

func (s *Session) sealInverse() {
	if s.journal.seal() {
		s.steps++
	}
}

func (s *Session) transferInverse(nd *node) {
	if s.journal.transfer() {
		nd.flags |= nodeHasInverse
	}
}
