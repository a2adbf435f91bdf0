// Package grammar turns an EBNF grammar into a Language: scanner tables
// built by ebnflex and backtracking parser tables for pda. Productions
// whose name starts with an uppercase letter are tokens, the rest are
// nonterminals. Conflicts in the LR automaton are not errors; they become
// alternatives the parser tries in order when it backtracks.
package grammar

import (
	"fmt"
	"regexp"
	"sort"
	"strings"

	"github.com/dhamidi/backscan/ebnflex"
	"github.com/dhamidi/backscan/pda"
	"github.com/dhamidi/backscan/scan"
	"github.com/tliron/commonlog"
	"golang.org/x/exp/ebnf"
)

var log = commonlog.GetLogger("backscan.grammar")

// DefaultIgnore are the token names ignored when Config.Ignore is nil.
var DefaultIgnore = []string{"WhiteSpace", "Comment"}

// Config selects what to build from a grammar.
type Config struct {
	// Start is the start nonterminal.
	Start string
	// Ignore names the tokens collected as ignored text. Names not defined
	// by the grammar are skipped.
	Ignore []string
	// Trailing names ignore tokens that attach to the token before them
	// when they follow it directly.
	Trailing []string
	// Actions names the nonterminals whose reductions run the reduction
	// action.
	Actions []string
	// Generate names the tokens handled by the generation action.
	Generate []string
	// Bind names the tokens recorded in the bindings stack.
	Bind []string
	// Attrs gives the number of attribute slots of a token or
	// nonterminal.
	Attrs map[string]int
	// PreEOF runs the pre-EOF action in every region.
	PreEOF bool
}

// Conflict is a transition with more than one action.
type Conflict struct {
	State   int
	Symbol  string
	Actions []pda.Action
}

// Language is a compiled grammar. It implements pda.Language.
type Language struct {
	rules    *rules
	auto     *automaton
	machine  *ebnflex.Machine
	elements []pda.LangEl
	prods    []pda.Production
	regions  [][]pda.Region
	preEOF   bool
}

var _ pda.Language = (*Language)(nil)

// Build compiles g.
func Build(g ebnf.Grammar, cfg Config) (*Language, error) {
	r, err := lower(g, cfg.Start)
	if err != nil {
		return nil, err
	}
	auto := buildAutomaton(r)
	lang := &Language{rules: r, auto: auto, preEOF: cfg.PreEOF}

	lang.elements = make([]pda.LangEl, len(r.symbols))
	for id, sym := range r.symbols {
		el := pda.LangEl{
			Name:   sym.name,
			XMLTag: xmlTag(sym),
			Repeat: sym.kind == symRepeat,
			Attrs:  cfg.Attrs[sym.name],
		}
		if sym.kind == symRule {
			el.TermDup = r.ids["_"+sym.name]
		}
		lang.elements[id] = el
	}
	if err := lang.mark(cfg.Ignore, DefaultIgnore, func(el *pda.LangEl) { el.Ignore = true }); err != nil {
		return nil, err
	}
	if err := lang.mark(cfg.Generate, nil, func(el *pda.LangEl) { el.Generate = true }); err != nil {
		return nil, err
	}
	if err := lang.mark(cfg.Bind, nil, func(el *pda.LangEl) { el.Bind = true }); err != nil {
		return nil, err
	}

	actions := map[int]bool{}
	for _, name := range cfg.Actions {
		id, ok := r.ids[name]
		if !ok || r.terminal(id) {
			return nil, &ebnflex.GrammarError{Msg: fmt.Sprintf("action on unknown nonterminal %q", name)}
		}
		actions[id] = true
	}
	for _, pr := range r.prods {
		lang.prods = append(lang.prods, pda.Production{
			Name:   pr.name,
			LHS:    pr.lhs,
			Length: len(pr.rhs),
			Action: actions[pr.lhs],
		})
	}

	if err := lang.buildLexer(g, cfg); err != nil {
		return nil, err
	}
	log.Debugf("%s: %d symbols, %d productions, %d states, %d conflicts",
		cfg.Start, len(r.symbols), len(r.prods), len(auto.states), len(auto.conflicts()))
	return lang, nil
}

// mark applies fn to the named tokens. Names from defaults that the
// grammar does not define are skipped.
func (l *Language) mark(names, defaults []string, fn func(*pda.LangEl)) error {
	strict := true
	if names == nil {
		names, strict = defaults, false
	}
	for _, name := range names {
		id, ok := l.rules.ids[name]
		if !ok || !l.rules.terminal(id) || id == l.rules.eof {
			if strict {
				return &ebnflex.GrammarError{Msg: fmt.Sprintf("unknown token %q", name)}
			}
			continue
		}
		fn(&l.elements[id])
	}
	return nil
}

func (l *Language) lexable(id int) bool {
	k := l.rules.symbols[id].kind
	return k == symLiteral || k == symToken
}

// buildLexer makes one region per distinct set of tokens the parser can
// accept, so that tokens are only recognized where the grammar allows
// them.
func (l *Language) buildLexer(g ebnf.Grammar, cfg Config) error {
	var tokens []ebnflex.Token
	// Ignore and generation tokens are scanned in every region.
	var always []int
	for id, sym := range l.rules.symbols {
		if !l.lexable(id) {
			continue
		}
		tok := ebnflex.Token{Name: sym.name, ID: id, Expr: sym.expr}
		if sym.kind == symLiteral {
			tok = ebnflex.Literal(sym.text, id)
		}
		tokens = append(tokens, tok)
		if el := l.elements[id]; el.Ignore || el.Generate {
			always = append(always, id)
		}
	}

	var regions []ebnflex.Region
	index := map[string]int{}
	region := func(name string, ids []int) int {
		key := fmt.Sprint(ids)
		if r, ok := index[key]; ok {
			return r
		}
		index[key] = len(regions)
		regions = append(regions, ebnflex.Region{Name: name, Tokens: ids, DefaultToken: -1, CollectIgnore: -1})
		return len(regions) - 1
	}

	// Region 0 scans every token.
	var all []int
	for _, tok := range tokens {
		all = append(all, tok.ID)
	}
	region("all", all)

	pre := -1
	if len(cfg.Trailing) > 0 {
		var ids []int
		for _, name := range cfg.Trailing {
			id, ok := l.rules.ids[name]
			if !ok || !l.elements[id].Ignore {
				return &ebnflex.GrammarError{Msg: fmt.Sprintf("trailing token %q is not an ignore token", name)}
			}
			ids = append(ids, id)
		}
		sort.Ints(ids)
		pre = region("trailing", ids)
	}

	l.regions = make([][]pda.Region, len(l.auto.states))
	for sid, st := range l.auto.states {
		if sid == l.auto.final {
			continue
		}
		ids := append([]int(nil), always...)
		for _, id := range st.expect {
			if el := l.elements[id]; l.lexable(id) && !el.Ignore && !el.Generate {
				ids = append(ids, id)
			}
		}
		sort.Ints(ids)
		r := pda.Region{Scan: region(fmt.Sprintf("state%d", sid), ids), Pre: -1}
		if sid != 0 {
			r.Pre = pre
		}
		l.regions[sid] = []pda.Region{r}
	}

	m, err := ebnflex.Compile(g, tokens, regions)
	if err != nil {
		return err
	}
	l.machine = m
	return nil
}

var xmlUnsafe = regexp.MustCompile(`[^A-Za-z0-9_]`)

func xmlTag(sym symbol) string {
	switch sym.kind {
	case symLiteral:
		var b strings.Builder
		b.WriteString("lit")
		for i := 0; i < len(sym.text); i++ {
			fmt.Fprintf(&b, "_%02x", sym.text[i])
		}
		return b.String()
	case symEOF:
		return "EOF"
	}
	return xmlUnsafe.ReplaceAllString(sym.name, "_")
}

func (l *Language) Start() int { return 0 }

func (l *Language) Lookup(state, id int) (pda.Transition, bool) {
	if state < 0 || state >= len(l.auto.states) {
		return pda.Transition{}, false
	}
	tr, ok := l.auto.states[state].trans[id]
	return tr, ok
}

func (l *Language) Regions(state int) []pda.Region {
	if state < 0 || state >= len(l.regions) {
		return nil
	}
	return l.regions[state]
}

func (l *Language) Production(prod int) pda.Production { return l.prods[prod] }

func (l *Language) Element(id int) pda.LangEl {
	if id < 0 || id >= len(l.elements) {
		return pda.LangEl{}
	}
	return l.elements[id]
}

func (l *Language) FirstNonTerm() int { return l.rules.firstNonTerm }

func (l *Language) EOF() int { return l.rules.eof }

func (l *Language) PreEOF(region int) bool { return l.preEOF }

// Lexer returns the scanner tables.
func (l *Language) Lexer() scan.Lexer { return l.machine }

// Machine returns the scanner tables with their token names.
func (l *Language) Machine() *ebnflex.Machine { return l.machine }

// ID returns the id of a token or nonterminal.
func (l *Language) ID(name string) (int, bool) {
	id, ok := l.rules.ids[name]
	return id, ok
}

// Name returns the name of a token or nonterminal.
func (l *Language) Name(id int) string { return l.Element(id).Name }

// NumStates reports the size of the parser automaton.
func (l *Language) NumStates() int { return len(l.auto.states) }

// Conflicts lists the transitions resolved by backtracking.
func (l *Language) Conflicts() []Conflict { return l.auto.conflicts() }

// Productions lists the BNF productions in table order.
func (l *Language) Productions() []string {
	out := make([]string, len(l.rules.prods))
	for i, pr := range l.rules.prods {
		var b strings.Builder
		b.WriteString(l.rules.symbols[pr.lhs].name)
		b.WriteString(" →")
		for _, sym := range pr.rhs {
			b.WriteByte(' ')
			b.WriteString(l.rules.symbols[sym].name)
		}
		out[i] = b.String()
	}
	return out
}
