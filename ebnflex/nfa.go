package ebnflex

import (
	"fmt"
	"text/scanner"
	"unicode/utf8"

	"golang.org/x/exp/ebnf"
)

// GrammarError reports a token production that cannot be compiled.
type GrammarError struct {
	Pos scanner.Position
	Msg string
}

func (e *GrammarError) Error() string {
	if e.Pos.IsValid() {
		return fmt.Sprintf("%s: %s", e.Pos, e.Msg)
	}
	return e.Msg
}

type edge struct {
	lo, hi byte
	to     int
}

type nfaState struct {
	edges []edge
	eps   []int
	// accept is the index of the token accepted here, or -1.
	accept int
}

// nfa is a Thompson automaton over bytes.
type nfa struct {
	states  []nfaState
	grammar ebnf.Grammar
	// expanding guards against recursive token productions.
	expanding map[string]bool
}

func (n *nfa) state() int {
	n.states = append(n.states, nfaState{accept: -1})
	return len(n.states) - 1
}

func (n *nfa) epsilon(from, to int) {
	n.states[from].eps = append(n.states[from].eps, to)
}

func (n *nfa) byteEdge(from, to int, lo, hi byte) {
	n.states[from].edges = append(n.states[from].edges, edge{lo: lo, hi: hi, to: to})
}

// literal adds a path spelling s and returns its end state.
func (n *nfa) literal(from int, s string) int {
	for i := 0; i < len(s); i++ {
		next := n.state()
		n.byteEdge(from, next, s[i], s[i])
		from = next
	}
	return from
}

// build adds the fragment for expr starting at from and returns its end
// state.
func (n *nfa) build(from int, expr ebnf.Expression) (int, error) {
	switch e := expr.(type) {
	case nil:
		return from, nil

	case *ebnf.Token:
		return n.literal(from, e.String), nil

	case *ebnf.Range:
		lo, hi, err := byteRange(e)
		if err != nil {
			return 0, err
		}
		to := n.state()
		n.byteEdge(from, to, lo, hi)
		return to, nil

	case ebnf.Sequence:
		var err error
		for _, item := range e {
			if from, err = n.build(from, item); err != nil {
				return 0, err
			}
		}
		return from, nil

	case ebnf.Alternative:
		end := n.state()
		for _, alt := range e {
			start := n.state()
			n.epsilon(from, start)
			last, err := n.build(start, alt)
			if err != nil {
				return 0, err
			}
			n.epsilon(last, end)
		}
		return end, nil

	case *ebnf.Group:
		return n.build(from, e.Body)

	case *ebnf.Option:
		last, err := n.build(from, e.Body)
		if err != nil {
			return 0, err
		}
		n.epsilon(from, last)
		return last, nil

	case *ebnf.Repetition:
		start := n.state()
		n.epsilon(from, start)
		last, err := n.build(start, e.Body)
		if err != nil {
			return 0, err
		}
		n.epsilon(last, start)
		return start, nil

	case *ebnf.Name:
		prod, ok := n.grammar[e.String]
		if !ok || prod.Expr == nil {
			return 0, &GrammarError{Pos: e.Pos(), Msg: fmt.Sprintf("undefined token production %q", e.String)}
		}
		if n.expanding[e.String] {
			return 0, &GrammarError{Pos: e.Pos(), Msg: fmt.Sprintf("token production %q is recursive", e.String)}
		}
		n.expanding[e.String] = true
		defer delete(n.expanding, e.String)
		return n.build(from, prod.Expr)
	}
	return 0, &GrammarError{Pos: expr.Pos(), Msg: fmt.Sprintf("unsupported expression %T", expr)}
}

func byteRange(r *ebnf.Range) (byte, byte, error) {
	lo, lsize := utf8.DecodeRuneInString(r.Begin.String)
	hi, hsize := utf8.DecodeRuneInString(r.End.String)
	if lsize != len(r.Begin.String) || hsize != len(r.End.String) {
		return 0, 0, &GrammarError{Pos: r.Pos(), Msg: "range bounds must be single characters"}
	}
	if lo >= utf8.RuneSelf || hi >= utf8.RuneSelf {
		return 0, 0, &GrammarError{Pos: r.Pos(), Msg: "range bounds must be ASCII"}
	}
	if lo > hi {
		return 0, 0, &GrammarError{Pos: r.Pos(), Msg: fmt.Sprintf("empty range %q … %q", lo, hi)}
	}
	return byte(lo), byte(hi), nil
}

// closure extends set with every state reachable by epsilon moves.
func (n *nfa) closure(set []int) []int {
	seen := make(map[int]bool, len(set))
	work := append([]int(nil), set...)
	var out []int
	for len(work) > 0 {
		s := work[len(work)-1]
		work = work[:len(work)-1]
		if seen[s] {
			continue
		}
		seen[s] = true
		out = append(out, s)
		work = append(work, n.states[s].eps...)
	}
	return out
}
