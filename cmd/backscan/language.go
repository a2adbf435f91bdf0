package main

import (
	"fmt"

	"github.com/dhamidi/backscan/ebnflex"
	"github.com/dhamidi/backscan/grammar"
	"github.com/dhamidi/backscan/project"
	"github.com/spf13/cobra"
)

// languageFlags select the grammar a command parses with: an explicit
// grammar file, or a language of the enclosing backscan.toml.
type languageFlags struct {
	grammarFile string
	start       string
	ignore      []string
	trailing    []string
	name        string
}

func (f *languageFlags) register(cmd *cobra.Command) {
	cmd.Flags().StringVarP(&f.grammarFile, "grammar", "g", "", "EBNF grammar file (default: from "+project.FileName+")")
	cmd.Flags().StringVarP(&f.start, "start", "s", "", "start production, required with --grammar")
	cmd.Flags().StringSliceVar(&f.ignore, "ignore", nil, "tokens to ignore (default WhiteSpace,Comment)")
	cmd.Flags().StringSliceVar(&f.trailing, "trailing", nil, "ignore tokens that attach to the token before them")
	cmd.Flags().StringVarP(&f.name, "lang", "l", "", "language of "+project.FileName+" to use")
}

// load compiles the language used for file.
func (f *languageFlags) load(file string) (*grammar.Language, error) {
	if f.grammarFile != "" {
		if f.start == "" {
			return nil, fmt.Errorf("--start is required with --grammar")
		}
		g, err := ebnflex.LoadGrammar(f.grammarFile)
		if err != nil {
			return nil, err
		}
		lang, err := grammar.Build(g, grammar.Config{Start: f.start, Ignore: f.ignore, Trailing: f.trailing})
		if err != nil {
			return nil, fmt.Errorf("%s: %w", f.grammarFile, err)
		}
		return lang, nil
	}
	l, err := f.projectLanguage(file)
	if err != nil {
		return nil, err
	}
	return l.Build()
}

func (f *languageFlags) projectLanguage(file string) (*project.Language, error) {
	p, err := project.Load()
	if err != nil {
		return nil, err
	}
	if f.name != "" {
		l := p.Language(f.name)
		if l == nil {
			return nil, fmt.Errorf("no language %q in %s", f.name, p.File)
		}
		return l, nil
	}
	l := p.ForFile(file)
	if l == nil {
		return nil, fmt.Errorf("no language for %s in %s; use --lang or --grammar", file, p.File)
	}
	return l, nil
}
