package grammar

import (
	"fmt"
	"sort"
	"strconv"

	"github.com/dhamidi/backscan/ebnflex"
	"golang.org/x/exp/ebnf"
)

// symbolKind tells how a grammar symbol came to exist.
type symbolKind int

const (
	symEOF symbolKind = iota
	symLiteral
	symToken
	symTermDup
	symStart
	symRule
	symGroup
	symOption
	symRepeat
)

type symbol struct {
	name string
	kind symbolKind
	expr ebnf.Expression
	// text is the spelling of a literal token.
	text string
}

type rule struct {
	lhs  int
	rhs  []int
	name string
}

// rules is a grammar in plain BNF. Terminals come first; id 0 is unused.
type rules struct {
	g       ebnf.Grammar
	symbols []symbol
	ids     map[string]int
	prods   []rule

	firstNonTerm int
	eof          int
	start        int

	literals map[string]int
	synth    map[string]int
	pending  []string
}

func (r *rules) add(s symbol) int {
	r.symbols = append(r.symbols, s)
	id := len(r.symbols) - 1
	r.ids[s.name] = id
	return id
}

func (r *rules) terminal(id int) bool { return id < r.firstNonTerm }

// lower converts the productions reachable from start into BNF. Named
// tokens are ordered by their position in the source so that earlier
// declarations win ties; literals come before them.
func lower(g ebnf.Grammar, start string) (*rules, error) {
	if _, ok := g[start]; !ok {
		return nil, &ebnflex.GrammarError{Msg: fmt.Sprintf("start production %q not found", start)}
	}
	if ebnflex.IsToken(start) {
		return nil, &ebnflex.GrammarError{Msg: fmt.Sprintf("start production %q is a token", start)}
	}

	r := &rules{g: g, ids: map[string]int{}, literals: map[string]int{}, synth: map[string]int{}}
	r.symbols = []symbol{{name: "_sentinel"}}
	r.eof = r.add(symbol{name: "EOF", kind: symEOF})

	for _, text := range collectLiterals(g, start) {
		r.literals[text] = r.add(symbol{name: strconv.Quote(text), kind: symLiteral, text: text})
	}
	var tokens []*ebnf.Production
	for name, prod := range g {
		if ebnflex.IsToken(name) && prod.Expr != nil {
			tokens = append(tokens, prod)
		}
	}
	sort.Slice(tokens, func(i, j int) bool {
		return tokens[i].Name.Pos().Offset < tokens[j].Name.Pos().Offset
	})
	for _, prod := range tokens {
		r.add(symbol{name: prod.Name.String, kind: symToken, expr: prod.Expr})
	}

	nonterms := reachable(g, start)
	for _, name := range nonterms {
		r.add(symbol{name: "_" + name, kind: symTermDup})
	}
	r.firstNonTerm = len(r.symbols)

	r.start = r.add(symbol{name: "$start", kind: symStart})
	for _, name := range nonterms {
		r.add(symbol{name: name, kind: symRule, expr: g[name].Expr})
	}

	r.prods = append(r.prods, rule{lhs: r.start, rhs: []int{r.ids[start], r.eof}, name: "$start"})
	for _, name := range nonterms {
		alts, err := r.expand(name, g[name].Expr)
		if err != nil {
			return nil, err
		}
		r.addAlternatives(r.ids[name], name, alts)
	}
	for len(r.pending) > 0 {
		name := r.pending[0]
		r.pending = r.pending[1:]
		sym := r.symbols[r.ids[name]]
		alts, err := r.expand(name, sym.expr)
		if err != nil {
			return nil, err
		}
		id := r.ids[name]
		switch sym.kind {
		case symOption:
			alts = append(alts, nil)
		case symRepeat:
			for i := range alts {
				alts[i] = append(alts[i], id)
			}
			alts = append(alts, nil)
		}
		r.addAlternatives(id, name, alts)
	}
	for _, name := range nonterms {
		r.prods = append(r.prods, rule{lhs: r.ids[name], rhs: []int{r.ids["_"+name]}, name: name + "/dup"})
	}
	return r, nil
}

func (r *rules) addAlternatives(lhs int, name string, alts [][]int) {
	for i, rhs := range alts {
		n := name
		if len(alts) > 1 {
			n = fmt.Sprintf("%s/%d", name, i+1)
		}
		r.prods = append(r.prods, rule{lhs: lhs, rhs: rhs, name: n})
	}
}

// expand returns the alternatives of expr.
func (r *rules) expand(owner string, expr ebnf.Expression) ([][]int, error) {
	if alt, ok := expr.(ebnf.Alternative); ok {
		var out [][]int
		for _, e := range alt {
			seq, err := r.sequence(owner, e)
			if err != nil {
				return nil, err
			}
			out = append(out, seq)
		}
		return out, nil
	}
	seq, err := r.sequence(owner, expr)
	if err != nil {
		return nil, err
	}
	return [][]int{seq}, nil
}

func (r *rules) sequence(owner string, expr ebnf.Expression) ([]int, error) {
	items, ok := expr.(ebnf.Sequence)
	if !ok {
		return r.symbolsOf(owner, expr)
	}
	var out []int
	for _, e := range items {
		syms, err := r.symbolsOf(owner, e)
		if err != nil {
			return nil, err
		}
		out = append(out, syms...)
	}
	return out, nil
}

func (r *rules) symbolsOf(owner string, expr ebnf.Expression) ([]int, error) {
	switch e := expr.(type) {
	case nil:
		return nil, nil
	case *ebnf.Token:
		return []int{r.literals[e.String]}, nil
	case *ebnf.Name:
		id, ok := r.ids[e.String]
		if !ok {
			return nil, &ebnflex.GrammarError{Pos: e.Pos(), Msg: fmt.Sprintf("undefined production %q", e.String)}
		}
		return []int{id}, nil
	case *ebnf.Group:
		if _, ok := e.Body.(ebnf.Alternative); !ok {
			return r.sequence(owner, e.Body)
		}
		return []int{r.synthetic(owner, "group", symGroup, e.Body)}, nil
	case *ebnf.Option:
		return []int{r.synthetic(owner, "opt", symOption, e.Body)}, nil
	case *ebnf.Repetition:
		return []int{r.synthetic(owner, "rep", symRepeat, e.Body)}, nil
	case ebnf.Sequence, ebnf.Alternative:
		return []int{r.synthetic(owner, "group", symGroup, e)}, nil
	case *ebnf.Range:
		return nil, &ebnflex.GrammarError{Pos: e.Pos(), Msg: fmt.Sprintf("character range in production %q; move it into a token", owner)}
	}
	return nil, &ebnflex.GrammarError{Pos: expr.Pos(), Msg: fmt.Sprintf("unsupported expression %T", expr)}
}

// synthetic names a nonterminal standing for part of a production.
func (r *rules) synthetic(owner, what string, kind symbolKind, body ebnf.Expression) int {
	key := owner + "_" + what
	r.synth[key]++
	name := fmt.Sprintf("%s%d", key, r.synth[key])
	id := r.add(symbol{name: name, kind: kind, expr: body})
	r.pending = append(r.pending, name)
	return id
}

// reachable lists the nonterminal productions reachable from start, in
// breadth-first order.
func reachable(g ebnf.Grammar, start string) []string {
	seen := map[string]bool{start: true}
	order := []string{start}
	for i := 0; i < len(order); i++ {
		walk(g[order[i]].Expr, func(e ebnf.Expression) {
			name, ok := e.(*ebnf.Name)
			if !ok || ebnflex.IsToken(name.String) || seen[name.String] {
				return
			}
			if _, ok := g[name.String]; ok {
				seen[name.String] = true
				order = append(order, name.String)
			}
		})
	}
	return order
}

// collectLiterals returns the quoted strings used by nonterminal
// productions reachable from start, sorted.
func collectLiterals(g ebnf.Grammar, start string) []string {
	set := map[string]bool{}
	for _, name := range reachable(g, start) {
		walk(g[name].Expr, func(e ebnf.Expression) {
			if tok, ok := e.(*ebnf.Token); ok {
				set[tok.String] = true
			}
		})
	}
	out := make([]string, 0, len(set))
	for s := range set {
		out = append(out, s)
	}
	sort.Strings(out)
	return out
}

func walk(expr ebnf.Expression, fn func(ebnf.Expression)) {
	if expr == nil {
		return
	}
	fn(expr)
	switch e := expr.(type) {
	case ebnf.Sequence:
		for _, x := range e {
			walk(x, fn)
		}
	case ebnf.Alternative:
		for _, x := range e {
			walk(x, fn)
		}
	case *ebnf.Group:
		walk(e.Body, fn)
	case *ebnf.Option:
		walk(e.Body, fn)
	case *ebnf.Repetition:
		walk(e.Body, fn)
	}
}
