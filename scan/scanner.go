// Package scan runs a Lexer over a stream, one token at a time. The scanner
// never consumes input while matching: it reads ahead with
// stream.ParseBlock and the caller consumes the matched text once it
// decides what to do with the token.
package scan

import (
	"github.com/dhamidi/backscan/stream"
	"github.com/dhamidi/backscan/tree"
	"github.com/tliron/commonlog"
)

var log = commonlog.GetLogger("backscan.scan")

// Results of Scan other than a token id. Token ids are positive.
const (
	Undo          = -7
	Ignore        = -6
	Tree          = -5
	TryAgainLater = -4
	Error         = -3
	EOF           = -1
)

// NumMarks is the number of capture mark slots.
const NumMarks = 32

// Scanner holds the lexer cursor for the token being scanned. It survives
// TryAgainLater: calling Scan again continues the same token.
type Scanner struct {
	lexer  Lexer
	marker Marker

	// Region is the region tokens are scanned in. PreRegion, when not -1,
	// is tried first.
	Region    int
	PreRegion int

	cs       int
	toklen   int
	started  bool
	eof      bool
	act      int
	tokend   int
	marks    [NumMarks]int
	matched  int
	matchLen int
	undo     bool
}

func New(lexer Lexer) *Scanner {
	sc := &Scanner{lexer: lexer, Region: -1, PreRegion: -1}
	sc.marker, _ = lexer.(Marker)
	return sc
}

// Start resets the scanner for a new token in the given regions.
func (sc *Scanner) Start(region, preRegion int) {
	sc.Region = region
	sc.PreRegion = preRegion
	sc.Reset()
}

// Reset restarts the current token in the scanner's regions.
func (sc *Scanner) Reset() {
	sc.toklen = 0
	sc.started = false
	sc.eof = false
	sc.act = 0
	sc.tokend = 0
	sc.matched = 0
	sc.matchLen = 0
	sc.marks = [NumMarks]int{}
	switch {
	case sc.PreRegion >= 0:
		sc.cs = sc.lexer.Entry(sc.PreRegion)
	case sc.Region >= 0:
		sc.cs = sc.lexer.Entry(sc.Region)
	default:
		sc.cs = sc.lexer.ErrorState()
	}
}

// DropPreRegion abandons the pre-region and restarts the token in the main
// region. It reports whether a pre-region was active.
func (sc *Scanner) DropPreRegion() bool {
	if sc.PreRegion < 0 {
		return false
	}
	sc.PreRegion = -1
	sc.Reset()
	return true
}

// TakeBack drops the lookahead of a partially scanned token. The token is
// rescanned from its start by the next Scan.
func (sc *Scanner) TakeBack() {
	if sc.started {
		log.Debugf("taking back %d bytes of lookahead", sc.toklen)
	}
	sc.Reset()
}

// SetUndo makes Scan report Undo until it is cleared.
func (sc *Scanner) SetUndo(on bool) { sc.undo = on }

// Scan runs the lexer from the current stream position. It returns the id
// of the longest matching token, or one of the negative results. Trees
// queued in the stream are reported without running the lexer.
func (sc *Scanner) Scan(s stream.Stream) int {
	if sc.undo {
		return Undo
	}
	s.Claim(sc)
	for {
		blk, data := s.ParseBlock(sc.toklen)
		switch blk {
		case stream.BlockEOD:
			return TryAgainLater
		case stream.BlockEOF:
			if !sc.started {
				return EOF
			}
			sc.eof = true
		case stream.BlockTree:
			if !sc.started {
				return Tree
			}
			sc.eof = true
		case stream.BlockIgnore:
			if !sc.started {
				return Ignore
			}
			sc.eof = true
		}
		if tok := sc.exec(data); tok != 0 {
			return tok
		}
	}
}

// exec advances the lexer over data. It returns 0 when it needs more input.
func (sc *Scanner) exec(data []byte) int {
	errState := sc.lexer.ErrorState()
	for _, c := range data {
		next := sc.lexer.Step(sc.cs, c)
		if next == errState {
			return sc.finish()
		}
		sc.cs = next
		sc.toklen++
		sc.started = true
		if sc.marker != nil {
			for _, m := range sc.marker.Marks(next) {
				sc.marks[m] = sc.toklen
			}
		}
		if tok, ok := sc.lexer.Accept(next); ok {
			sc.act = tok
			sc.tokend = sc.toklen
		}
	}
	if sc.eof {
		return sc.finish()
	}
	return 0
}

func (sc *Scanner) finish() int {
	if sc.act > 0 {
		sc.matched = sc.act
		sc.matchLen = sc.tokend
		if id := sc.lexer.Token(sc.act).MarkID; id >= 0 {
			sc.matchLen = sc.marks[id]
		}
		log.Debugf("matched token %d, %d bytes", sc.matched, sc.matchLen)
		return sc.matched
	}

	// Back to the start of the token.
	sc.toklen = 0
	sc.started = false
	if def := sc.lexer.Region(sc.Region).DefaultToken; def > 0 {
		sc.matched = def
		sc.matchLen = 0
		return def
	}
	sc.cs = sc.lexer.ErrorState()
	return Error
}

// Matched returns the id and text length of the token last returned by
// Scan.
func (sc *Scanner) Matched() (token, length int) {
	return sc.matched, sc.matchLen
}

// Captured is the text of a capture, to be stored in attribute Attr.
type Captured struct {
	Attr int
	Text *tree.Head
}

// Take consumes the text of the matched token from s and returns it along
// with its captures.
func (sc *Scanner) Take(s stream.Stream) (*tree.Head, []Captured) {
	data := make([]byte, sc.matchLen)
	n := s.Data(data)
	data = data[:n]

	var loc tree.Location
	if n == 0 {
		loc = s.Location()
	}
	s.Consume(n, &loc)
	head := tree.NewHead(data, &loc)

	var caps []Captured
	for _, c := range sc.lexer.Token(sc.matched).Captures {
		start, end := sc.marks[c.Start], sc.marks[c.End]
		if start > end || end > n {
			continue
		}
		caps = append(caps, Captured{Attr: c.Attr, Text: tree.NewHead(data[start:end], nil)})
	}
	return head, caps
}
