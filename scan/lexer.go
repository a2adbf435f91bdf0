package scan

// Lexer is a deterministic scanner table. States are small integers; a
// region is a set of tokens that may start at the current position and is
// selected by the parser before every token.
type Lexer interface {
	// Entry returns the start state of a region.
	Entry(region int) int
	// Step returns the state reached from state on byte c, or ErrorState.
	Step(state int, c byte) int
	// Accept reports the token recognized when scanning stops in state.
	Accept(state int) (token int, ok bool)
	ErrorState() int
	Region(region int) RegionInfo
	Token(token int) TokenInfo
}

// Marker is implemented by lexers with capture or trailing context marks.
type Marker interface {
	// Marks returns the mark slots set on entering state.
	Marks(state int) []int
}

// RegionInfo describes a lexer region. Token fields are -1 when unset.
type RegionInfo struct {
	Name string
	// DefaultToken is sent with empty text when nothing in the region
	// matches.
	DefaultToken int
	// CollectIgnore is sent when nothing matches so that ignored text
	// collected so far can be delivered under another region.
	CollectIgnore int
}

// TokenInfo describes how a matched token is cut from the input.
type TokenInfo struct {
	// MarkID is the mark slot ending the token text when the token has
	// trailing context, or -1.
	MarkID   int
	Captures []Capture
}

// Capture copies the text between two marks into an attribute of the token.
type Capture struct {
	Attr       int
	Start, End int
}
