package grammar

import (
	"sort"
	"strconv"
	"strings"

	mapset "github.com/deckarep/golang-set"
	"github.com/dhamidi/backscan/pda"
)

type item struct {
	prod int
	dot  int
}

type lrState struct {
	kernel []item
	items  []item
	gotos  map[int]int
	trans  map[int]pda.Transition
	// expect lists the terminals with a transition, sorted.
	expect []int
}

type automaton struct {
	r       *rules
	states  []*lrState
	index   map[string]int
	first   []mapset.Set
	follow  []mapset.Set
	nulls   []bool
	byLHS   map[int][]int
	final   int
	symbols int
}

func kernelKey(items []item) string {
	var b strings.Builder
	for _, it := range items {
		b.WriteString(strconv.Itoa(it.prod))
		b.WriteByte('.')
		b.WriteString(strconv.Itoa(it.dot))
		b.WriteByte(' ')
	}
	return b.String()
}

func sortItems(items []item) {
	sort.Slice(items, func(i, j int) bool {
		if items[i].prod != items[j].prod {
			return items[i].prod < items[j].prod
		}
		return items[i].dot < items[j].dot
	})
}

func buildAutomaton(r *rules) *automaton {
	a := &automaton{r: r, index: map[string]int{}, byLHS: map[int][]int{}, symbols: len(r.symbols)}
	for p, pr := range r.prods {
		a.byLHS[pr.lhs] = append(a.byLHS[pr.lhs], p)
	}
	a.computeFirst()
	a.computeFollow()

	a.state([]item{{prod: 0, dot: 0}})
	for i := 0; i < len(a.states); i++ {
		a.expandState(i)
	}

	// Accepting the start symbol shifts into a state without items.
	a.final = len(a.states)
	a.states = append(a.states, &lrState{gotos: map[int]int{}, trans: map[int]pda.Transition{}})
	a.states[0].trans[r.start] = pda.Transition{Target: a.final, Actions: []pda.Action{{Shift: true}}}

	for _, st := range a.states {
		a.fillActions(st)
	}
	return a
}

func (a *automaton) state(kernel []item) int {
	sortItems(kernel)
	key := kernelKey(kernel)
	if id, ok := a.index[key]; ok {
		return id
	}
	id := len(a.states)
	a.index[key] = id
	a.states = append(a.states, &lrState{
		kernel: kernel,
		items:  a.closure(kernel),
		gotos:  map[int]int{},
		trans:  map[int]pda.Transition{},
	})
	return id
}

func (a *automaton) closure(kernel []item) []item {
	seen := map[item]bool{}
	out := append([]item(nil), kernel...)
	for _, it := range out {
		seen[it] = true
	}
	for i := 0; i < len(out); i++ {
		rhs := a.r.prods[out[i].prod].rhs
		if out[i].dot >= len(rhs) || a.r.terminal(rhs[out[i].dot]) {
			continue
		}
		for _, p := range a.byLHS[rhs[out[i].dot]] {
			it := item{prod: p}
			if !seen[it] {
				seen[it] = true
				out = append(out, it)
			}
		}
	}
	return out
}

func (a *automaton) expandState(i int) {
	next := map[int][]item{}
	var order []int
	for _, it := range a.states[i].items {
		rhs := a.r.prods[it.prod].rhs
		if it.dot >= len(rhs) {
			continue
		}
		sym := rhs[it.dot]
		if _, ok := next[sym]; !ok {
			order = append(order, sym)
		}
		next[sym] = append(next[sym], item{prod: it.prod, dot: it.dot + 1})
	}
	for _, sym := range order {
		a.states[i].gotos[sym] = a.state(next[sym])
	}
}

// reduceOnly returns the production completed in a state whose only item
// is complete, so that shifting into it can reduce straight away.
func (a *automaton) reduceOnly(state int) (int, bool) {
	items := a.states[state].items
	if len(items) != 1 {
		return 0, false
	}
	it := items[0]
	if it.dot != len(a.r.prods[it.prod].rhs) {
		return 0, false
	}
	return it.prod, true
}

// fillActions builds the action table row of a state. A symbol with both
// a shift and reductions, or several reductions, keeps all of them as
// ordered alternatives: shift first, then reductions by production.
func (a *automaton) fillActions(st *lrState) {
	acts := map[int][]pda.Action{}
	targets := map[int]int{}
	for sym, to := range st.gotos {
		act := pda.Action{Shift: true}
		if p, ok := a.reduceOnly(to); ok {
			act.Reduce = true
			act.Prod = p
		}
		acts[sym] = append(acts[sym], act)
		targets[sym] = to
	}

	var complete []int
	for _, it := range st.items {
		if it.dot == len(a.r.prods[it.prod].rhs) {
			complete = append(complete, it.prod)
		}
	}
	sort.Ints(complete)
	for _, p := range complete {
		for _, sym := range setInts(a.follow[a.r.prods[p].lhs]) {
			acts[sym] = append(acts[sym], pda.Action{Reduce: true, Prod: p})
		}
	}

	for sym, list := range acts {
		tr := pda.Transition{Actions: list}
		if to, ok := targets[sym]; ok {
			tr.Target = to
		}
		st.trans[sym] = tr
		if a.r.terminal(sym) {
			st.expect = append(st.expect, sym)
		}
	}
	sort.Ints(st.expect)
}

func setInts(s mapset.Set) []int {
	var out []int
	for _, v := range s.ToSlice() {
		out = append(out, v.(int))
	}
	sort.Ints(out)
	return out
}

func (a *automaton) computeFirst() {
	n := len(a.r.symbols)
	a.first = make([]mapset.Set, n)
	a.nulls = make([]bool, n)
	for id := range a.first {
		a.first[id] = mapset.NewThreadUnsafeSet()
		if id > 0 && a.r.terminal(id) {
			a.first[id].Add(id)
		}
	}
	for changed := true; changed; {
		changed = false
		for _, pr := range a.r.prods {
			nullable := true
			for _, sym := range pr.rhs {
				before := a.first[pr.lhs].Cardinality()
				a.first[pr.lhs] = a.first[pr.lhs].Union(a.first[sym])
				if a.first[pr.lhs].Cardinality() != before {
					changed = true
				}
				if !a.nulls[sym] {
					nullable = false
					break
				}
			}
			if nullable && !a.nulls[pr.lhs] {
				a.nulls[pr.lhs] = true
				changed = true
			}
		}
	}
}

func (a *automaton) computeFollow() {
	n := len(a.r.symbols)
	a.follow = make([]mapset.Set, n)
	for id := range a.follow {
		a.follow[id] = mapset.NewThreadUnsafeSet()
	}
	for changed := true; changed; {
		changed = false
		for _, pr := range a.r.prods {
			for i, sym := range pr.rhs {
				if a.r.terminal(sym) {
					continue
				}
				before := a.follow[sym].Cardinality()
				restNullable := true
				for _, next := range pr.rhs[i+1:] {
					a.follow[sym] = a.follow[sym].Union(a.first[next])
					if !a.nulls[next] {
						restNullable = false
						break
					}
				}
				if restNullable {
					a.follow[sym] = a.follow[sym].Union(a.follow[pr.lhs])
				}
				if a.follow[sym].Cardinality() != before {
					changed = true
				}
			}
		}
	}
}

// conflicts lists the transitions with more than one action.
func (a *automaton) conflicts() []Conflict {
	var out []Conflict
	for id, st := range a.states {
		for sym, tr := range st.trans {
			if len(tr.Actions) > 1 {
				out = append(out, Conflict{State: id, Symbol: a.r.symbols[sym].name, Actions: tr.Actions})
			}
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].State != out[j].State {
			return out[i].State < out[j].State
		}
		return out[i].Symbol < out[j].Symbol
	})
	return out
}
