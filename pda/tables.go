package pda

// Tables is a parser automaton with backtracking alternatives. Language
// element ids are positive; terminals are below FirstNonTerm.
type Tables interface {
	Start() int
	// Lookup returns the transition on id from state.
	Lookup(state, id int) (Transition, bool)
	// Regions lists the lexer regions to try, in order, for the next token
	// when the parser is in state.
	Regions(state int) []Region
	Production(prod int) Production
	Element(id int) LangEl
	FirstNonTerm() int
	EOF() int
	// PreEOF reports whether a lexer region has an action to run before
	// the end of input is parsed.
	PreEOF(region int) bool
}

// Transition is the entry of the action table for a state and element.
type Transition struct {
	Target int
	// Actions are alternatives tried in order on backtracking.
	Actions []Action
	// Commit clears all backtracking state once the transition is taken.
	Commit bool
}

// Action shifts the element, reduces a production, or both.
type Action struct {
	Shift  bool
	Reduce bool
	Prod   int
}

// Region is a lexer region to scan in, optionally preceded by a
// pre-region. Pre is -1 when there is none.
type Region struct {
	Scan int
	Pre  int
}

// Production describes a grammar rule.
type Production struct {
	Name   string
	LHS    int
	Length int
	// Action reports whether reducing runs a reduction action.
	Action bool
}

// LangEl describes a terminal or nonterminal.
type LangEl struct {
	Name   string
	XMLTag string
	// Ignore marks tokens collected into ignore lists.
	Ignore bool
	// Repeat and List mark nonterminals produced by repetition; their
	// right-recursive chains print flattened.
	Repeat bool
	List   bool
	// Generate marks tokens whose match runs a generation action instead
	// of being parsed.
	Generate bool
	// Bind marks tokens recorded in the bindings stack.
	Bind bool
	// Attrs is the number of attribute slots.
	Attrs int
	// TermDup is the terminal standing in for this nonterminal when a
	// prebuilt tree of it is sent to the parser.
	TermDup int
}
