package project

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/google/go-cmp/cmp/cmpopts"
)

const calcGrammar = `
expr = Number { "+" Number } .
Number = digit { digit } .
WhiteSpace = " " { " " } .
digit = "0" … "9" .
`

const calcProject = `
[[Language]]
Name = "calc"
Grammar = "grammar/calc.ebnf"
Start = "expr"
Extensions = [".calc"]
SrcDir = "src"

[[Language]]
Name = "args"
Grammar = "args.ebnf"
Start = "list"
Ignore = ["WhiteSpace"]
Extensions = [".args"]
`

func writeFiles(t *testing.T, root string, files map[string]string) {
	t.Helper()
	for name, content := range files {
		path := filepath.Join(root, name)
		if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
			t.Fatal(err)
		}
		if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
			t.Fatal(err)
		}
	}
}

func TestLoadFromSubdirectory(t *testing.T) {
	root := t.TempDir()
	writeFiles(t, root, map[string]string{
		FileName:            calcProject,
		"src/nested/a.calc": "1 + 2",
	})

	p, err := LoadFrom(filepath.Join(root, "src", "nested"))
	if err != nil {
		t.Fatalf("LoadFrom() error = %v", err)
	}
	want := &Project{
		RootDir: root,
		File:    filepath.Join(root, FileName),
		Languages: []*Language{
			{Name: "args", Grammar: "args.ebnf", Start: "list", Ignore: []string{"WhiteSpace"}, Extensions: []string{".args"}, SrcDir: "."},
			{Name: "calc", Grammar: "grammar/calc.ebnf", Start: "expr", Extensions: []string{".calc"}, SrcDir: "src"},
		},
	}
	if diff := cmp.Diff(want, p, cmpopts.IgnoreUnexported(Language{})); diff != "" {
		t.Errorf("LoadFrom() mismatch (-want +got):\n%s", diff)
	}
	for _, l := range p.Languages {
		if l.Project() != p {
			t.Errorf("%s.Project not linked", l.Name)
		}
	}
}

func TestLookup(t *testing.T) {
	root := t.TempDir()
	writeFiles(t, root, map[string]string{FileName: calcProject})
	p, err := LoadFrom(root)
	if err != nil {
		t.Fatalf("LoadFrom() error = %v", err)
	}

	tests := []struct {
		path string
		want string
	}{
		{path: "x/y.calc", want: "calc"},
		{path: "z.args", want: "args"},
		{path: "z.txt", want: ""},
	}
	for _, tt := range tests {
		got := ""
		if l := p.ForFile(tt.path); l != nil {
			got = l.Name
		}
		if got != tt.want {
			t.Errorf("ForFile(%q) = %q, want %q", tt.path, got, tt.want)
		}
	}
	if p.Language("calc") == nil || p.Language("nope") != nil {
		t.Error("Language() lookup by name failed")
	}
	if got, want := p.Language("calc").GrammarPath(), filepath.Join(root, "grammar", "calc.ebnf"); got != want {
		t.Errorf("GrammarPath() = %q, want %q", got, want)
	}
}

func TestLoadErrors(t *testing.T) {
	tests := []struct {
		name    string
		content string
		want    string
	}{
		{name: "unknown field", content: "[[Language]]\nName = \"a\"\nColour = 1\n", want: "not defined"},
		{name: "missing start", content: "[[Language]]\nName = \"a\"\nGrammar = \"a.ebnf\"\n", want: "needs Grammar and Start"},
		{name: "duplicate", content: calcProject + "[[Language]]\nName = \"calc\"\n", want: "defined twice"},
		{name: "no name", content: "[[Language]]\nGrammar = \"a.ebnf\"\n", want: "without a Name"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			root := t.TempDir()
			writeFiles(t, root, map[string]string{FileName: tt.content})
			_, err := LoadFrom(root)
			if err == nil || !strings.Contains(err.Error(), tt.want) {
				t.Errorf("LoadFrom() error = %v, want it to mention %q", err, tt.want)
			}
		})
	}
}

func TestLoadWithoutProject(t *testing.T) {
	if _, err := LoadFrom(t.TempDir()); err == nil {
		t.Error("LoadFrom() succeeded without a project file")
	}
}

func TestBuildAndSourceFiles(t *testing.T) {
	root := t.TempDir()
	writeFiles(t, root, map[string]string{
		FileName:             calcProject,
		"grammar/calc.ebnf":  calcGrammar,
		"src/b.calc":         "1",
		"src/sub/a.calc":     "2",
		"src/.hidden/c.calc": "3",
		"src/notes.txt":      "",
	})
	p, err := LoadFrom(root)
	if err != nil {
		t.Fatalf("LoadFrom() error = %v", err)
	}
	calc := p.Language("calc")

	lang, err := calc.Build()
	if err != nil {
		t.Fatalf("Build() error = %v", err)
	}
	if _, ok := lang.ID("Number"); !ok {
		t.Error("built language has no Number token")
	}

	files, err := calc.SourceFiles()
	if err != nil {
		t.Fatalf("SourceFiles() error = %v", err)
	}
	want := []string{filepath.Join(root, "src", "b.calc"), filepath.Join(root, "src", "sub", "a.calc")}
	if diff := cmp.Diff(want, files); diff != "" {
		t.Errorf("SourceFiles() mismatch (-want +got):\n%s", diff)
	}

	if _, err := p.Language("args").Build(); err == nil {
		t.Error("Build() succeeded with a missing grammar file")
	}
}
