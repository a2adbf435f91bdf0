package pda_test

import (
	"context"
	"errors"
	"io"
	"strconv"
	"strings"
	"testing"
	"testing/iotest"

	"github.com/dhamidi/backscan/ebnflex"
	"github.com/dhamidi/backscan/format"
	"github.com/dhamidi/backscan/grammar"
	"github.com/dhamidi/backscan/pda"
	"github.com/dhamidi/backscan/scan"
	"github.com/dhamidi/backscan/stream"
	"github.com/dhamidi/backscan/tree"
	"github.com/google/go-cmp/cmp"
	"golang.org/x/exp/ebnf"
)

const wordsGrammar = `
words = { Ident } .
Ident = letter { letter } .
WhiteSpace = " " { " " } .
letter = "a" … "z" .
`

func parseGrammar(t *testing.T, src string) ebnf.Grammar {
	t.Helper()
	g, err := ebnf.Parse("test.ebnf", strings.NewReader(src))
	if err != nil {
		t.Fatalf("ebnf.Parse() error = %v", err)
	}
	return g
}

func language(t *testing.T, src string, cfg grammar.Config) *grammar.Language {
	t.Helper()
	lang, err := grammar.Build(parseGrammar(t, src), cfg)
	if err != nil {
		t.Fatalf("grammar.Build() error = %v", err)
	}
	return lang
}

func mustID(t *testing.T, lang *grammar.Language, name string) int {
	t.Helper()
	id, ok := lang.ID(name)
	if !ok {
		t.Fatalf("ID(%q) not found", name)
	}
	return id
}

func checkNoLeaks(t *testing.T, store *tree.Store) {
	t.Helper()
	if n := store.Live(); n != 0 {
		t.Errorf("store.Live() = %d after release, want 0", n)
	}
}

func texts(trees []*tree.Tree) []string {
	var out []string
	for _, t := range trees {
		out = append(out, t.Text.String())
	}
	return out
}

func ignoreText(il *tree.Tree) string {
	if il == nil {
		return ""
	}
	return strings.Join(texts(il.IgnoreTokens()), "")
}

// actions adapts functions to pda.Actions.
type actions struct {
	generate func(c *pda.Context) error
	reduce   func(c *pda.Context) error
	preEOF   func(c *pda.Context) error
}

func (a *actions) Generate(c *pda.Context) error {
	if a.generate == nil {
		return nil
	}
	return a.generate(c)
}

func (a *actions) Reduce(c *pda.Context) error {
	if a.reduce == nil {
		return nil
	}
	return a.reduce(c)
}

func (a *actions) PreEOF(c *pda.Context) error {
	if a.preEOF == nil {
		return nil
	}
	return a.preEOF(c)
}

func TestIgnoreAroundSingleToken(t *testing.T) {
	src := `
name = Ident .
Ident = letter { letter } .
WhiteSpace = " " { " " } .
letter = "a" … "z" .
`
	lang := language(t, src, grammar.Config{Start: "name"})
	store := tree.NewStore()
	s := pda.New(lang, lang.Lexer(), store, stream.NewText("t", []byte("  foo  ")), pda.Options{})

	st, err := s.Finish(context.Background())
	if err != nil || st != pda.StatusDone {
		t.Fatalf("Finish() = %v, %v, want done", st, err)
	}
	if s.Tokens() != 1 {
		t.Errorf("Tokens() = %d, want 1", s.Tokens())
	}
	if s.Steps() != 4 {
		t.Errorf("Steps() = %d, want 4", s.Steps())
	}

	root := s.Result()
	if root == nil {
		t.Fatal("Result() = nil")
	}
	if got := format.Text(lang, root); got != "  foo  " {
		t.Errorf("Text() = %q, want %q", got, "  foo  ")
	}

	kids := root.Children()
	if len(kids) != 2 {
		t.Fatalf("root children = %v, want name and EOF", kids)
	}
	ident := kids[0].Children()[0]
	if got := ignoreText(ident.LeftIgnore()); got != "  " {
		t.Errorf("left ignore of foo = %q, want two spaces", got)
	}
	if kids[1].ID != lang.EOF() {
		t.Fatalf("last child id = %d, want EOF", kids[1].ID)
	}
	if got := ignoreText(kids[1].LeftIgnore()); got != "  " {
		t.Errorf("ignore before EOF = %q, want two spaces", got)
	}

	store.Upref(root)
	s.Close()
	store.Downref(root)
	checkNoLeaks(t, store)
}

func TestParse(t *testing.T) {
	lang := language(t, wordsGrammar, grammar.Config{Start: "words"})
	store := tree.NewStore()

	root, err := pda.Parse(context.Background(), lang, store, stream.NewText("t", []byte("ab cd  ef")), pda.Options{})
	if err != nil {
		t.Fatalf("Parse() error = %v", err)
	}
	if got := format.Text(lang, root); got != "ab cd  ef" {
		t.Errorf("Text() = %q, want %q", got, "ab cd  ef")
	}
	store.Downref(root)
	checkNoLeaks(t, store)
}

func TestScanErrorLocation(t *testing.T) {
	src := `
items = { Ident | Str } .
Ident = letter { letter } .
Str = "'" letter { letter } "'" .
WhiteSpace = " " { " " } .
letter = "a" … "z" .
`
	tests := []struct {
		name  string
		input string
		want  tree.Location
	}{
		{
			name:  "mid-token failure reports token start",
			input: "ab 'cd!",
			want:  tree.Location{Name: "t", Line: 1, Column: 4, Byte: 3},
		},
		{
			name:  "after a newline",
			input: "ab cd\n  'x",
			want:  tree.Location{Name: "t", Line: 2, Column: 3, Byte: 8},
		},
		{
			name:  "first token",
			input: "!",
			want:  tree.Location{Name: "t", Line: 1, Column: 1},
		},
	}
	lang := language(t, strings.Replace(src, `" " { " " }`, `( " " | "\n" ) { " " | "\n" }`, 1), grammar.Config{Start: "items"})
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			store := tree.NewStore()
			_, err := pda.Parse(context.Background(), lang, store, stream.NewText("t", []byte(tt.input)), pda.Options{})
			var pe *pda.ParseError
			if !errors.As(err, &pe) {
				t.Fatalf("Parse() error = %v, want *ParseError", err)
			}
			if diff := cmp.Diff(tt.want, pe.Loc); diff != "" {
				t.Errorf("error location mismatch (-want +got):\n%s", diff)
			}
			checkNoLeaks(t, store)
		})
	}
}

func TestParseErrorMessage(t *testing.T) {
	err := &pda.ParseError{Loc: tree.Location{Line: 3, Column: 7}}
	if got := err.Error(); got != "PARSE ERROR at 3:7" {
		t.Errorf("Error() = %q, want %q", got, "PARSE ERROR at 3:7")
	}
}

func TestBacktrackingTriesAlternatives(t *testing.T) {
	src := `
s = x Ident "!" | y Ident "?" .
x = .
y = .
Ident = letter { letter } .
letter = "a" … "z" .
`
	lang := language(t, src, grammar.Config{Start: "s"})
	tests := []struct {
		input string
		prod  string
	}{
		{input: "foo!", prod: "s/1"},
		{input: "foo?", prod: "s/2"},
	}
	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			store := tree.NewStore()
			s := pda.New(lang, lang.Lexer(), store, stream.NewText("t", []byte(tt.input)), pda.Options{})
			st, err := s.Finish(context.Background())
			if err != nil || st != pda.StatusDone {
				t.Fatalf("Finish() = %v, %v, want done", st, err)
			}
			root := s.Result()
			if got := lang.Production(root.Children()[0].Prod).Name; got != tt.prod {
				t.Errorf("reduced %s, want %s", got, tt.prod)
			}
			if got := format.Text(lang, root); got != tt.input {
				t.Errorf("Text() = %q, want %q", got, tt.input)
			}
			if s.Tokens() != 2 {
				t.Errorf("Tokens() = %d, want 2", s.Tokens())
			}
			s.Close()
			checkNoLeaks(t, store)
		})
	}
}

type snapshot struct {
	Tokens  int
	Steps   int
	Loc     tree.Location
	Pending []string
}

func snap(s *pda.Session, in stream.Stream) snapshot {
	return snapshot{Tokens: s.Tokens(), Steps: s.Steps(), Loc: in.Location(), Pending: texts(s.Pending())}
}

func TestUndoToMatchesLimitedParse(t *testing.T) {
	lang := language(t, wordsGrammar, grammar.Config{Start: "words"})
	const input = "a b c"
	ctx := context.Background()

	for _, target := range []int{1, 2, 3, 4} {
		t.Run(strconv.Itoa(target), func(t *testing.T) {
			limitedIn := stream.NewText("t", []byte(input))
			limited := pda.New(lang, lang.Lexer(), tree.NewStore(), limitedIn, pda.Options{Limit: target})
			if st, err := limited.Run(ctx); err != nil || st != pda.StatusStopped {
				t.Fatalf("Run() with limit = %v, %v, want stopped", st, err)
			}

			undoneIn := stream.NewText("t", []byte(input))
			undone := pda.New(lang, lang.Lexer(), tree.NewStore(), undoneIn, pda.Options{})
			if st, err := undone.Run(ctx); err != nil || st != pda.StatusDone {
				t.Fatalf("Run() = %v, %v, want done", st, err)
			}
			if undone.Steps() != 6 {
				t.Errorf("Steps() after full parse = %d, want 6", undone.Steps())
			}
			if st, err := undone.UndoTo(ctx, target); err != nil || st != pda.StatusStopped {
				t.Fatalf("UndoTo(%d) = %v, %v, want stopped", target, st, err)
			}

			want := snap(limited, limitedIn)
			if diff := cmp.Diff(want, snap(undone, undoneIn)); diff != "" {
				t.Errorf("state after UndoTo(%d) mismatch (-limited +undone):\n%s", target, diff)
			}

			limited.SetLimit(0)
			for _, s := range []*pda.Session{limited, undone} {
				if st, err := s.Run(ctx); err != nil || st != pda.StatusDone {
					t.Fatalf("Run() after stop = %v, %v, want done", st, err)
				}
				if got := format.Text(lang, s.Result()); got != input {
					t.Errorf("Text() = %q, want %q", got, input)
				}
				if s.Tokens() != 3 {
					t.Errorf("Tokens() = %d, want 3", s.Tokens())
				}
			}
		})
	}
}

func TestStallAndResume(t *testing.T) {
	lang := language(t, wordsGrammar, grammar.Config{Start: "words"})
	store := tree.NewStore()
	in, col := stream.NewCollector("c")
	s := pda.New(lang, lang.Lexer(), store, in, pda.Options{})
	ctx := context.Background()

	steps := []struct {
		write  string
		tokens int
	}{
		{write: "foo ", tokens: 1},
		{write: "bar", tokens: 1},
		{write: "", tokens: 1},
	}
	for _, step := range steps {
		if _, err := col.Write([]byte(step.write)); err != nil {
			t.Fatalf("Write() error = %v", err)
		}
		st, err := s.Run(ctx)
		if err != nil || st != pda.StatusStalled {
			t.Fatalf("Run() after %q = %v, %v, want stalled", step.write, st, err)
		}
		if s.Tokens() != step.tokens {
			t.Errorf("Tokens() after %q = %d, want %d", step.write, s.Tokens(), step.tokens)
		}
	}

	col.Close()
	st, err := s.Finish(ctx)
	if err != nil || st != pda.StatusDone {
		t.Fatalf("Finish() = %v, %v, want done", st, err)
	}
	if s.Tokens() != 2 {
		t.Errorf("Tokens() = %d, want 2", s.Tokens())
	}
	if got := format.Text(lang, s.Result()); got != "foo bar" {
		t.Errorf("Text() = %q, want %q", got, "foo bar")
	}
	s.Close()
	checkNoLeaks(t, store)
}

const macroGrammar = `
words = { Ident } .
Ident = letter { letter } .
Macro = "@" letter { letter } .
WhiteSpace = " " { " " } .
letter = "a" … "z" .
`

func TestGenerationAndUndo(t *testing.T) {
	lang := language(t, macroGrammar, grammar.Config{Start: "words", Generate: []string{"Macro"}})
	macro := mustID(t, lang, "Macro")
	store := tree.NewStore()
	ctx := context.Background()

	var generated []string
	undone := 0
	acts := &actions{generate: func(c *pda.Context) error {
		if c.ID() != macro {
			t.Errorf("Generate() id = %d, want Macro", c.ID())
		}
		generated = append(generated, c.Text().String())
		c.PushText([]byte("x "))
		c.Record(pda.InverseFunc(func(c *pda.Context) {
			if !c.Reversing() {
				t.Error("inverse ran outside a reverse frame")
			}
			undone++
		}))
		return nil
	}}

	in := stream.NewText("t", []byte("@ab c"))
	s := pda.New(lang, lang.Lexer(), store, in, pda.Options{Actions: acts})
	if st, err := s.Run(ctx); err != nil || st != pda.StatusDone {
		t.Fatalf("Run() = %v, %v, want done", st, err)
	}
	if got := format.Text(lang, s.Result()); got != "x  c" {
		t.Errorf("Text() = %q, want %q", got, "x  c")
	}
	if s.Tokens() != 2 || s.Steps() != 5 {
		t.Errorf("Tokens(), Steps() = %d, %d, want 2, 5", s.Tokens(), s.Steps())
	}

	if st, err := s.UndoTo(ctx, 0); err != nil || st != pda.StatusStopped {
		t.Fatalf("UndoTo(0) = %v, %v, want stopped", st, err)
	}
	if undone != 1 {
		t.Errorf("inverse ran %d times, want 1", undone)
	}
	if s.Steps() != 0 || s.Tokens() != 0 {
		t.Errorf("Steps(), Tokens() after undo = %d, %d, want 0, 0", s.Steps(), s.Tokens())
	}
	if loc := in.Location(); loc.Byte != 0 {
		t.Errorf("input location after undo = %v, want the start", loc)
	}

	st, err := s.Finish(ctx)
	if err != nil || st != pda.StatusDone {
		t.Fatalf("Finish() = %v, %v, want done", st, err)
	}
	if diff := cmp.Diff([]string{"@ab", "@ab"}, generated); diff != "" {
		t.Errorf("generated mismatch (-want +got):\n%s", diff)
	}
	if got := format.Text(lang, s.Result()); got != "x  c" {
		t.Errorf("Text() after reparse = %q, want %q", got, "x  c")
	}
	s.Close()
	checkNoLeaks(t, store)
}

func TestActionStop(t *testing.T) {
	lang := language(t, macroGrammar, grammar.Config{Start: "words", Generate: []string{"Macro"}})
	acts := &actions{generate: func(c *pda.Context) error {
		c.Stop()
		return nil
	}}
	s := pda.New(lang, lang.Lexer(), tree.NewStore(), stream.NewText("t", []byte("@a b")), pda.Options{Actions: acts})
	ctx := context.Background()

	if st, err := s.Run(ctx); err != nil || st != pda.StatusStopped {
		t.Fatalf("Run() = %v, %v, want stopped", st, err)
	}
	if s.Tokens() != 0 {
		t.Errorf("Tokens() = %d, want 0", s.Tokens())
	}
	if st, err := s.Run(ctx); err != nil || st != pda.StatusDone {
		t.Fatalf("second Run() = %v, %v, want done", st, err)
	}
	if got := format.Text(lang, s.Result()); got != " b" {
		t.Errorf("Text() = %q, want %q", got, " b")
	}
}

func TestReductionActions(t *testing.T) {
	src := `
s = a | b .
a = Ident .
b = Ident .
Ident = letter { letter } .
letter = "a" … "z" .
`
	lang := language(t, src, grammar.Config{Start: "s", Actions: []string{"a", "b"}})
	ident := mustID(t, lang, "Ident")
	store := tree.NewStore()
	ctx := context.Background()

	var calls []string
	acts := &actions{reduce: func(c *pda.Context) error {
		name := lang.Name(c.ID())
		calls = append(calls, name)
		switch name {
		case "a":
			c.Reject()
		case "b":
			if got := format.Text(lang, c.LHS()); got != "x" {
				t.Errorf("LHS() text = %q, want x", got)
			}
			tok := c.Store().NewToken(ident, tree.NewHead([]byte("replaced"), nil), 0)
			c.SetLHS(c.Store().NewTree(c.ID(), c.Prod(), 0, []*tree.Tree{tok}))
		}
		return nil
	}}

	s := pda.New(lang, lang.Lexer(), store, stream.NewText("t", []byte("x")), pda.Options{Actions: acts})
	if st, err := s.Run(ctx); err != nil || st != pda.StatusDone {
		t.Fatalf("Run() = %v, %v, want done", st, err)
	}
	if got := format.Text(lang, s.Result()); got != "replaced" {
		t.Errorf("Text() = %q, want %q", got, "replaced")
	}
	if s.Steps() != 3 {
		t.Errorf("Steps() = %d, want 3", s.Steps())
	}

	if st, err := s.UndoTo(ctx, 0); err != nil || st != pda.StatusStopped {
		t.Fatalf("UndoTo(0) = %v, %v, want stopped", st, err)
	}
	st, err := s.Finish(ctx)
	if err != nil || st != pda.StatusDone {
		t.Fatalf("Finish() = %v, %v, want done", st, err)
	}
	if diff := cmp.Diff([]string{"a", "b", "a", "b"}, calls); diff != "" {
		t.Errorf("reductions mismatch (-want +got):\n%s", diff)
	}
	if got := format.Text(lang, s.Result()); got != "replaced" {
		t.Errorf("Text() after reparse = %q, want %q", got, "replaced")
	}
	s.Close()
	checkNoLeaks(t, store)
}

func TestActionErrorAbortsSession(t *testing.T) {
	src := `
name = Ident .
Ident = letter { letter } .
letter = "a" … "z" .
`
	lang := language(t, src, grammar.Config{Start: "name", Actions: []string{"name"}})
	boom := errors.New("boom")
	acts := &actions{reduce: func(c *pda.Context) error { return boom }}
	store := tree.NewStore()
	s := pda.New(lang, lang.Lexer(), store, stream.NewText("t", []byte("x")), pda.Options{Actions: acts})

	st, err := s.Run(context.Background())
	if st != pda.StatusFailed || !errors.Is(err, boom) {
		t.Fatalf("Run() = %v, %v, want failed with boom", st, err)
	}
	if _, err := s.Run(context.Background()); !errors.Is(err, boom) {
		t.Errorf("second Run() error = %v, want boom", err)
	}
	s.Close()
	checkNoLeaks(t, store)
}

func TestBindings(t *testing.T) {
	src := `
pair = Ident Ident .
Ident = letter { letter } .
WhiteSpace = " " { " " } .
letter = "a" … "z" .
`
	lang := language(t, src, grammar.Config{Start: "pair", Actions: []string{"pair"}, Bind: []string{"Ident"}})
	store := tree.NewStore()
	var got []string
	acts := &actions{reduce: func(c *pda.Context) error {
		for i := 0; i <= 3; i++ {
			if b := c.Binding(i); b != nil {
				got = append(got, b.Text.String())
			} else {
				got = append(got, "-")
			}
		}
		return nil
	}}

	root, err := pda.Parse(context.Background(), lang, store, stream.NewText("t", []byte("key value")), pda.Options{Actions: acts})
	if err != nil {
		t.Fatalf("Parse() error = %v", err)
	}
	if diff := cmp.Diff([]string{"-", "key", "value", "-"}, got); diff != "" {
		t.Errorf("bindings mismatch (-want +got):\n%s", diff)
	}
	store.Downref(root)
	checkNoLeaks(t, store)
}

func TestStopAt(t *testing.T) {
	src := `
items = item { item } .
item = "(" Ident ")" .
Ident = letter { letter } .
letter = "a" … "z" .
`
	lang := language(t, src, grammar.Config{Start: "items"})
	in := stream.NewText("t", []byte("(a)(b)"))
	s := pda.New(lang, lang.Lexer(), tree.NewStore(), in, pda.Options{StopAt: mustID(t, lang, "item")})

	st, err := s.Run(context.Background())
	if err != nil || st != pda.StatusDone {
		t.Fatalf("Run() = %v, %v, want done", st, err)
	}
	if got := format.Text(lang, s.Result()); got != "(a)" {
		t.Errorf("Text() = %q, want %q", got, "(a)")
	}
	if s.Tokens() != 3 || in.Location().Byte != 3 {
		t.Errorf("Tokens(), input byte = %d, %d, want 3, 3", s.Tokens(), in.Location().Byte)
	}
}

func TestTrailingIgnoreAttachesRight(t *testing.T) {
	src := wordsGrammar + "Newline = \"\\n\" .\n"
	lang := language(t, src, grammar.Config{
		Start:    "words",
		Ignore:   []string{"WhiteSpace", "Newline"},
		Trailing: []string{"WhiteSpace"},
	})
	store := tree.NewStore()
	root, err := pda.Parse(context.Background(), lang, store, stream.NewText("t", []byte("a  \nb")), pda.Options{})
	if err != nil {
		t.Fatalf("Parse() error = %v", err)
	}
	defer store.Downref(root)

	if got := format.Text(lang, root); got != "a  \nb" {
		t.Errorf("Text() = %q, want %q", got, "a  \nb")
	}
	rep := root.Children()[0].Children()[0]
	a, rest := rep.Children()[0], rep.Children()[1]
	b := rest.Children()[0]
	if got := ignoreText(a.RightIgnore()); got != "  " {
		t.Errorf("right ignore of a = %q, want two spaces", got)
	}
	if got := ignoreText(b.LeftIgnore()); got != "\n" {
		t.Errorf("left ignore of b = %q, want newline", got)
	}
}

func TestEmbeddedTree(t *testing.T) {
	src := `
list = item { "," item } .
item = Ident .
Ident = letter { letter } .
letter = "a" … "z" .
`
	lang := language(t, src, grammar.Config{Start: "list"})
	store := tree.NewStore()

	tok := store.NewToken(mustID(t, lang, "Ident"), tree.NewHead([]byte("zz"), nil), 0)
	item := store.NewTree(mustID(t, lang, "item"), 0, 0, []*tree.Tree{tok})
	in := stream.New("g")
	in.AppendData([]byte("a,"))
	in.AppendTree(item, false)

	s := pda.New(lang, lang.Lexer(), store, in, pda.Options{})
	st, err := s.Finish(context.Background())
	if err != nil || st != pda.StatusDone {
		t.Fatalf("Finish() = %v, %v, want done", st, err)
	}
	if got := format.Text(lang, s.Result()); got != "a,zz" {
		t.Errorf("Text() = %q, want %q", got, "a,zz")
	}
	if s.Tokens() != 3 {
		t.Errorf("Tokens() = %d, want 3", s.Tokens())
	}
	s.Close()
	checkNoLeaks(t, store)
}

func TestPreEOFAction(t *testing.T) {
	lang := language(t, wordsGrammar, grammar.Config{Start: "words", PreEOF: true})
	calls := 0
	acts := &actions{preEOF: func(c *pda.Context) error {
		calls++
		if c.ID() != lang.EOF() {
			t.Errorf("PreEOF() id = %d, want EOF", c.ID())
		}
		return nil
	}}
	_, err := pda.Parse(context.Background(), lang, tree.NewStore(), stream.NewText("t", []byte("a b")), pda.Options{Actions: acts})
	if err != nil {
		t.Fatalf("Parse() error = %v", err)
	}
	if calls != 1 {
		t.Errorf("PreEOF ran %d times, want 1", calls)
	}
}

// regionTables puts a numbers-only region in front of a words region in
// every state, so that words are only found after backtracking.
type regionTables struct {
	*grammar.Language
	m *ebnflex.Machine
}

func (r regionTables) Regions(state int) []pda.Region {
	if len(r.Language.Regions(state)) == 0 {
		return nil
	}
	return []pda.Region{{Scan: 0, Pre: -1}, {Scan: 1, Pre: -1}}
}

func (r regionTables) Lexer() scan.Lexer { return r.m }

func TestAlternateRegions(t *testing.T) {
	src := `
s = Word .
Word = ( letter | digit ) { letter | digit } .
Number = digit { digit } .
letter = "a" … "z" .
digit = "0" … "9" .
`
	g := parseGrammar(t, src)
	lang, err := grammar.Build(g, grammar.Config{Start: "s"})
	if err != nil {
		t.Fatalf("grammar.Build() error = %v", err)
	}
	word, number := mustID(t, lang, "Word"), mustID(t, lang, "Number")
	m, err := ebnflex.Compile(g, []ebnflex.Token{
		{Name: "Number", ID: number, Expr: g["Number"].Expr},
		{Name: "Word", ID: word, Expr: g["Word"].Expr},
	}, []ebnflex.Region{
		{Name: "numbers", Tokens: []int{number}, DefaultToken: -1, CollectIgnore: -1},
		{Name: "words", Tokens: []int{word}, DefaultToken: -1, CollectIgnore: -1},
	})
	if err != nil {
		t.Fatalf("ebnflex.Compile() error = %v", err)
	}
	tables := regionTables{Language: lang, m: m}

	tests := []struct {
		name  string
		input string
		steps int
	}{
		{name: "scan error moves on", input: "abc", steps: 2},
		{name: "parse error retries", input: "42", steps: 2},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			store := tree.NewStore()
			s := pda.New(tables, tables.Lexer(), store, stream.NewText("t", []byte(tt.input)), pda.Options{})
			st, err := s.Finish(context.Background())
			if err != nil || st != pda.StatusDone {
				t.Fatalf("Finish() = %v, %v, want done", st, err)
			}
			tok := s.Result().Children()[0].Children()[0]
			if tok.ID != word || tok.Text.String() != tt.input {
				t.Errorf("token = %v, want Word %q", tok, tt.input)
			}
			if s.Steps() != tt.steps {
				t.Errorf("Steps() = %d, want %d", s.Steps(), tt.steps)
			}
			s.Close()
			checkNoLeaks(t, store)
		})
	}
}

func TestStatusString(t *testing.T) {
	tests := []struct {
		st   pda.Status
		want string
	}{
		{pda.StatusDone, "done"},
		{pda.StatusStalled, "stalled"},
		{pda.StatusStopped, "stopped"},
		{pda.StatusFailed, "failed"},
		{pda.Status(9), "unknown"},
	}
	for _, tt := range tests {
		if got := tt.st.String(); got != tt.want {
			t.Errorf("Status(%d).String() = %q, want %q", int(tt.st), got, tt.want)
		}
	}
}

// remaining returns the unconsumed input up to the first tree.
func remaining(in stream.Stream) string {
	buf := make([]byte, 64)
	n := in.Data(buf)
	return string(buf[:n])
}

func TestReadErrorFailsSession(t *testing.T) {
	lang := language(t, wordsGrammar, grammar.Config{Start: "words"})
	boom := errors.New("cable unplugged")

	tests := []struct {
		name string
		open func(t *testing.T) stream.Stream
		want error
	}{
		{
			name: "reader",
			open: func(t *testing.T) stream.Stream {
				return stream.NewReader("r", io.MultiReader(strings.NewReader("a b"), iotest.ErrReader(boom)))
			},
			want: boom,
		},
		{
			name: "directory",
			open: func(t *testing.T) stream.Stream {
				src, err := stream.Open(t.TempDir())
				if err != nil {
					t.Fatalf("Open() error = %v", err)
				}
				t.Cleanup(func() { src.Close() })
				return src
			},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			store := tree.NewStore()
			s := pda.New(lang, lang.Lexer(), store, tt.open(t), pda.Options{})
			st, err := s.Finish(context.Background())
			if st != pda.StatusFailed || err == nil {
				t.Fatalf("Finish() = %v, %v, want failed", st, err)
			}
			if tt.want != nil && !errors.Is(err, tt.want) {
				t.Errorf("Finish() error = %v, want %v", err, tt.want)
			}
			var pe *pda.ParseError
			if errors.As(err, &pe) {
				t.Errorf("Finish() error = %v, want a read error, not a parse error", err)
			}
			if _, again := s.Run(context.Background()); again == nil {
				t.Error("Run() after a read error succeeded")
			}
			s.Close()
			checkNoLeaks(t, store)
		})
	}

	_, err := pda.Parse(context.Background(), lang, tree.NewStore(), tests[0].open(t), pda.Options{})
	if !errors.Is(err, boom) {
		t.Errorf("Parse() error = %v, want %v", err, boom)
	}
}

func TestUndoAfterFinish(t *testing.T) {
	lang := language(t, macroGrammar, grammar.Config{Start: "words", Generate: []string{"Macro"}})
	ctx := context.Background()

	tests := []struct {
		name   string
		revert bool
	}{
		{name: "committed", revert: false},
		{name: "revert", revert: true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			store := tree.NewStore()
			undone := 0
			acts := &actions{generate: func(c *pda.Context) error {
				c.PushText([]byte("x "))
				c.Record(pda.InverseFunc(func(c *pda.Context) { undone++ }))
				return nil
			}}
			in := stream.NewText("t", []byte("@ab c"))
			s := pda.New(lang, lang.Lexer(), store, in, pda.Options{Actions: acts, Revert: tt.revert})

			if st, err := s.Finish(ctx); err != nil || st != pda.StatusDone {
				t.Fatalf("Finish() = %v, %v, want done", st, err)
			}
			if s.Steps() != 5 {
				t.Fatalf("Steps() = %d, want 5", s.Steps())
			}

			st, err := s.UndoTo(ctx, 0)
			if tt.revert {
				if err != nil || st != pda.StatusStopped {
					t.Fatalf("UndoTo(0) = %v, %v, want stopped", st, err)
				}
				if s.Steps() != 0 || undone != 1 {
					t.Errorf("Steps(), inverse runs = %d, %d, want 0, 1", s.Steps(), undone)
				}
				if got := remaining(in); got != "@ab c" {
					t.Errorf("input after undo = %q, want %q", got, "@ab c")
				}
			} else {
				var me *pda.MisuseError
				if !errors.As(err, &me) || st != pda.StatusStopped {
					t.Fatalf("UndoTo(0) = %v, %v, want stopped with *MisuseError", st, err)
				}
				if s.Steps() != 5 || undone != 0 {
					t.Errorf("Steps(), inverse runs = %d, %d, want 5, 0", s.Steps(), undone)
				}
				if got := format.Text(lang, s.Result()); got != "x  c" {
					t.Errorf("Text() after refused undo = %q, want %q", got, "x  c")
				}
				if got := remaining(in); got != "" {
					t.Errorf("input after refused undo = %q, want it consumed", got)
				}
			}
			s.Close()
			checkNoLeaks(t, store)
		})
	}
}

// commitTables commits every transition that shifts the token on.
type commitTables struct {
	*grammar.Language
	on int
}

func (c commitTables) Lookup(state, id int) (pda.Transition, bool) {
	tr, ok := c.Language.Lookup(state, id)
	if id == c.on {
		for _, a := range tr.Actions {
			if a.Shift {
				tr.Commit = true
			}
		}
	}
	return tr, ok
}

func TestCommitStopsBacktracking(t *testing.T) {
	src := `
s = x Ident "!" | y Ident "?" .
x = .
y = .
Ident = letter { letter } .
letter = "a" … "z" .
`
	lang := language(t, src, grammar.Config{Start: "s"})
	tables := commitTables{Language: lang, on: mustID(t, lang, "Ident")}

	tests := []struct {
		input string
		ok    bool
	}{
		{input: "foo!", ok: true},
		{input: "foo?", ok: false},
	}
	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			store := tree.NewStore()
			s := pda.New(tables, lang.Lexer(), store, stream.NewText("t", []byte(tt.input)), pda.Options{})
			st, err := s.Finish(context.Background())
			if tt.ok {
				if err != nil || st != pda.StatusDone {
					t.Fatalf("Finish() = %v, %v, want done", st, err)
				}
				if got := format.Text(lang, s.Result()); got != tt.input {
					t.Errorf("Text() = %q, want %q", got, tt.input)
				}
			} else {
				var pe *pda.ParseError
				if st != pda.StatusFailed || !errors.As(err, &pe) {
					t.Fatalf("Finish() = %v, %v, want a parse error past the commit", st, err)
				}
			}
			s.Close()
			checkNoLeaks(t, store)
		})
	}
}

func TestUndoStopsAtCommit(t *testing.T) {
	lang := language(t, wordsGrammar, grammar.Config{Start: "words"})
	tables := commitTables{Language: lang, on: mustID(t, lang, "Ident")}
	store := tree.NewStore()
	ctx := context.Background()
	s := pda.New(tables, lang.Lexer(), store, stream.NewText("t", []byte("a b c")), pda.Options{})

	if st, err := s.Run(ctx); err != nil || st != pda.StatusDone {
		t.Fatalf("Run() = %v, %v, want done", st, err)
	}
	if s.Steps() != 6 {
		t.Fatalf("Steps() = %d, want 6", s.Steps())
	}

	st, err := s.UndoTo(ctx, 4)
	var me *pda.MisuseError
	if !errors.As(err, &me) || st != pda.StatusStopped {
		t.Fatalf("UndoTo(4) = %v, %v, want stopped with *MisuseError", st, err)
	}
	if s.Steps() != 6 || s.Tokens() != 3 {
		t.Errorf("Steps(), Tokens() after refused undo = %d, %d, want 6, 3", s.Steps(), s.Tokens())
	}

	if st, err := s.UndoTo(ctx, 5); err != nil || st != pda.StatusStopped {
		t.Fatalf("UndoTo(5) = %v, %v, want stopped", st, err)
	}
	if s.Steps() != 5 || s.Tokens() != 3 {
		t.Errorf("Steps(), Tokens() after undo = %d, %d, want 5, 3", s.Steps(), s.Tokens())
	}
	if st, err := s.Run(ctx); err != nil || st != pda.StatusDone {
		t.Fatalf("Run() after undo = %v, %v, want done", st, err)
	}
	if got := format.Text(lang, s.Result()); got != "a b c" {
		t.Errorf("Text() = %q, want %q", got, "a b c")
	}
	s.Close()
	checkNoLeaks(t, store)
}

func TestEmptyTokensFromRegion(t *testing.T) {
	src := `
s = Ident Gap Number .
Ident = letter { letter } .
Number = digit { digit } .
Gap = "#" .
WhiteSpace = " " { " " } .
letter = "a" … "z" .
digit = "0" … "9" .
`
	g := parseGrammar(t, src)
	lang, err := grammar.Build(g, grammar.Config{Start: "s"})
	if err != nil {
		t.Fatalf("grammar.Build() error = %v", err)
	}
	ident, number := mustID(t, lang, "Ident"), mustID(t, lang, "Number")
	space, gap := mustID(t, lang, "WhiteSpace"), mustID(t, lang, "Gap")
	tokens := []ebnflex.Token{
		{Name: "Ident", ID: ident, Expr: g["Ident"].Expr},
		{Name: "Number", ID: number, Expr: g["Number"].Expr},
		{Name: "WhiteSpace", ID: space, Expr: g["WhiteSpace"].Expr},
	}
	numbers := ebnflex.Region{Name: "numbers", Tokens: []int{number}, DefaultToken: -1, CollectIgnore: -1}

	tests := []struct {
		name   string
		words  ebnflex.Region
		input  string
		ignore string
		steps  int
	}{
		{
			name:  "default token",
			words: ebnflex.Region{Name: "words", Tokens: []int{ident}, DefaultToken: gap, CollectIgnore: -1},
			input: "ab12",
			steps: 4,
		},
		{
			name:   "collect ignore",
			words:  ebnflex.Region{Name: "words", Tokens: []int{ident, space}, DefaultToken: -1, CollectIgnore: gap},
			input:  "ab 12",
			ignore: " ",
			steps:  5,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			m, err := ebnflex.Compile(g, tokens, []ebnflex.Region{tt.words, numbers})
			if err != nil {
				t.Fatalf("ebnflex.Compile() error = %v", err)
			}
			tables := regionTables{Language: lang, m: m}
			store := tree.NewStore()
			s := pda.New(tables, tables.Lexer(), store, stream.NewText("t", []byte(tt.input)), pda.Options{})

			st, err := s.Finish(context.Background())
			if err != nil || st != pda.StatusDone {
				t.Fatalf("Finish() = %v, %v, want done", st, err)
			}
			kids := s.Result().Children()[0].Children()
			if len(kids) != 3 {
				t.Fatalf("s children = %v, want Ident Gap Number", kids)
			}
			if kids[1].ID != gap || kids[1].Text.Len() != 0 {
				t.Errorf("second child = %v, want an empty Gap", kids[1])
			}
			if got := ignoreText(kids[1].LeftIgnore()); got != tt.ignore {
				t.Errorf("ignore before Gap = %q, want %q", got, tt.ignore)
			}
			if got := format.Text(lang, s.Result()); got != tt.input {
				t.Errorf("Text() = %q, want %q", got, tt.input)
			}
			if s.Tokens() != 3 || s.Steps() != tt.steps {
				t.Errorf("Tokens(), Steps() = %d, %d, want 3, %d", s.Tokens(), s.Steps(), tt.steps)
			}
			s.Close()
			checkNoLeaks(t, store)
		})
	}
}
