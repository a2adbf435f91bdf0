// Package ebnflex builds scanner tables from the token productions of an
// EBNF grammar. Token productions are the ones whose name starts with an
// uppercase letter; lowercase productions they reference are inlined.
// Each region is a subset of the tokens, compiled to its own DFA.
package ebnflex

import (
	"fmt"
	"os"
	"sort"
	"strconv"
	"strings"
	"text/scanner"

	"github.com/dhamidi/backscan/scan"
	"github.com/dhamidi/backscan/stream"
	"github.com/dhamidi/backscan/tree"
	"github.com/tliron/commonlog"
	"golang.org/x/exp/ebnf"
)

var log = commonlog.GetLogger("backscan.ebnflex")

// LoadGrammar loads an EBNF grammar from a file.
func LoadGrammar(filename string) (ebnf.Grammar, error) {
	f, err := os.Open(filename)
	if err != nil {
		return nil, fmt.Errorf("open grammar: %w", err)
	}
	defer f.Close()

	grammar, err := ebnf.Parse(filename, f)
	if err != nil {
		return nil, fmt.Errorf("parse grammar: %w", err)
	}
	return grammar, nil
}

// IsToken reports whether a production name denotes a token.
func IsToken(name string) bool {
	return name != "" && name[0] >= 'A' && name[0] <= 'Z'
}

// Token is a token to compile. Expr is matched against the input; when
// two tokens match the same length the one listed first wins.
type Token struct {
	Name string
	ID   int
	Expr ebnf.Expression
}

// Literal returns a token matching text exactly.
func Literal(text string, id int) Token {
	return Token{Name: strconv.Quote(text), ID: id, Expr: &ebnf.Token{String: text}}
}

// Region is a named subset of the tokens.
type Region struct {
	Name string
	// Tokens are the ids of the tokens scanned in the region.
	Tokens []int
	// DefaultToken and CollectIgnore are token ids, or -1.
	DefaultToken  int
	CollectIgnore int
}

type dfaState struct {
	next   [256]int32
	accept int
}

// Machine is a set of compiled regions. It implements scan.Lexer.
type Machine struct {
	states  []dfaState
	entries []int
	regions []Region
	names   map[int]string
}

// Compile builds a machine for the given tokens and regions. Token
// expressions may reference other productions of g.
func Compile(g ebnf.Grammar, tokens []Token, regions []Region) (*Machine, error) {
	n := &nfa{grammar: g, expanding: map[string]bool{}}
	starts := make(map[int]int, len(tokens))
	m := &Machine{names: make(map[int]string, len(tokens))}

	for i, tok := range tokens {
		if tok.ID <= 0 {
			return nil, &GrammarError{Msg: fmt.Sprintf("token %s has no id", tok.Name)}
		}
		start := n.state()
		end, err := n.build(start, tok.Expr)
		if err != nil {
			return nil, fmt.Errorf("token %s: %w", tok.Name, err)
		}
		if acceptsEmpty(n, start, end) {
			return nil, &GrammarError{Pos: pos(tok.Expr), Msg: fmt.Sprintf("token %s matches the empty string", tok.Name)}
		}
		n.states[end].accept = i
		starts[tok.ID] = start
		m.names[tok.ID] = tok.Name
	}

	for _, r := range regions {
		var set []int
		for _, id := range r.Tokens {
			start, ok := starts[id]
			if !ok {
				return nil, &GrammarError{Msg: fmt.Sprintf("region %s: unknown token %d", r.Name, id)}
			}
			set = append(set, start)
		}
		m.entries = append(m.entries, m.determinize(n, set, tokens))
		m.regions = append(m.regions, r)
	}
	log.Debugf("compiled %d tokens into %d DFA states over %d regions", len(tokens), len(m.states), len(regions))
	return m, nil
}

func pos(expr ebnf.Expression) scanner.Position {
	if expr == nil {
		return scanner.Position{}
	}
	return expr.Pos()
}

func acceptsEmpty(n *nfa, start, end int) bool {
	for _, s := range n.closure([]int{start}) {
		if s == end {
			return true
		}
	}
	return false
}

func setKey(set []int) string {
	sort.Ints(set)
	var b strings.Builder
	for _, s := range set {
		b.WriteString(strconv.Itoa(s))
		b.WriteByte(',')
	}
	return b.String()
}

// determinize runs the subset construction from the closure of set and
// returns the DFA start state.
func (m *Machine) determinize(n *nfa, set []int, tokens []Token) int {
	index := map[string]int{}
	var pending [][]int

	add := func(set []int) int {
		key := setKey(set)
		if id, ok := index[key]; ok {
			return id
		}
		id := len(m.states)
		index[key] = id
		st := dfaState{accept: -1}
		best := -1
		for _, s := range set {
			if a := n.states[s].accept; a >= 0 && (best < 0 || a < best) {
				best = a
			}
		}
		if best >= 0 {
			st.accept = tokens[best].ID
		}
		m.states = append(m.states, st)
		pending = append(pending, set)
		return id
	}

	entry := add(n.closure(set))
	for done := entry; len(pending) > 0; done++ {
		cur := pending[0]
		pending = pending[1:]
		for c := 0; c < 256; c++ {
			var move []int
			for _, s := range cur {
				for _, e := range n.states[s].edges {
					if byte(c) >= e.lo && byte(c) <= e.hi {
						move = append(move, e.to)
					}
				}
			}
			if len(move) == 0 {
				m.states[done].next[c] = -1
				continue
			}
			m.states[done].next[c] = int32(add(n.closure(move)))
		}
	}
	return entry
}

func (m *Machine) Entry(region int) int {
	if region < 0 || region >= len(m.entries) {
		return -1
	}
	return m.entries[region]
}

func (m *Machine) Step(state int, c byte) int {
	if state < 0 {
		return -1
	}
	return int(m.states[state].next[c])
}

func (m *Machine) Accept(state int) (int, bool) {
	if state < 0 || m.states[state].accept < 0 {
		return 0, false
	}
	return m.states[state].accept, true
}

func (m *Machine) ErrorState() int { return -1 }

func (m *Machine) Region(region int) scan.RegionInfo {
	if region < 0 || region >= len(m.regions) {
		return scan.RegionInfo{DefaultToken: -1, CollectIgnore: -1}
	}
	r := m.regions[region]
	return scan.RegionInfo{Name: r.Name, DefaultToken: r.DefaultToken, CollectIgnore: r.CollectIgnore}
}

func (m *Machine) Token(token int) scan.TokenInfo { return scan.TokenInfo{MarkID: -1} }

// NumRegions reports how many regions the machine has.
func (m *Machine) NumRegions() int { return len(m.regions) }

// Name returns the name of a token.
func (m *Machine) Name(token int) string { return m.names[token] }

// Lexeme is a scanned token.
type Lexeme struct {
	Kind string
	Text string
	Loc  tree.Location
}

func (l Lexeme) String() string {
	return fmt.Sprintf("%s %s %q", l.Loc, l.Kind, l.Text)
}

// ScanError reports input that no token of the region matches.
type ScanError struct {
	Loc tree.Location
}

func (e *ScanError) Error() string {
	return fmt.Sprintf("%s: no token matches", e.Loc)
}

// Tokenize scans s to the end in a single region. A read error of s is
// returned along with the lexemes scanned before it.
func (m *Machine) Tokenize(region int, s stream.Stream) ([]Lexeme, error) {
	sc := scan.New(m)
	var out []Lexeme
	for {
		sc.Start(region, -1)
		switch tok := sc.Scan(s); tok {
		case scan.EOF:
			return out, s.Err()
		case scan.TryAgainLater:
			return out, fmt.Errorf("%s: input stalled", s.Name())
		case scan.Error:
			return out, &ScanError{Loc: s.Location()}
		case scan.Tree, scan.Ignore:
			return out, fmt.Errorf("%s: cannot tokenize embedded trees", s.Name())
		default:
			head, _ := sc.Take(s)
			if head.Len() == 0 {
				return out, &ScanError{Loc: s.Location()}
			}
			lx := Lexeme{Kind: m.Name(tok), Text: head.String()}
			if head.Loc != nil {
				lx.Loc = *head.Loc
			}
			out = append(out, lx)
		}
	}
}
