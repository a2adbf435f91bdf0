package main

import (
	"fmt"
	"io"
	"reflect"
	"strings"

	"github.com/dhamidi/backscan/ebnflex"
	"github.com/dhamidi/backscan/grammar"
	"github.com/fatih/color"
	"github.com/spf13/cobra"
)

func newGrammarCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "grammar",
		Short: "EBNF grammar tools",
	}

	cmd.AddCommand(newGrammarCheckCmd())

	return cmd
}

func newGrammarCheckCmd() *cobra.Command {
	var startProduction string
	var ignore []string
	var showProductions bool
	var showConflicts bool

	cmd := &cobra.Command{
		Use:   "check <file>",
		Short: "Parse an EBNF grammar and build its scanner and parser tables",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			w := cmd.OutOrStdout()
			filename := args[0]

			g, err := ebnflex.LoadGrammar(filename)
			if err != nil {
				printErrors(w, err)
				return fmt.Errorf("%s: invalid grammar", filename)
			}
			if startProduction == "" {
				fmt.Fprintf(w, "%s: %d productions\n", filename, len(g))
				return nil
			}

			lang, err := grammar.Build(g, grammar.Config{Start: startProduction, Ignore: ignore})
			if err != nil {
				printErrors(w, err)
				return fmt.Errorf("%s: invalid grammar", filename)
			}

			prods := lang.Productions()
			conflicts := lang.Conflicts()
			fmt.Fprintf(w, "%s: %d productions, %d states, %d conflicts\n",
				filename, len(prods), lang.NumStates(), len(conflicts))
			if showProductions {
				for i, p := range prods {
					fmt.Fprintf(w, "%4d  %s\n", i, p)
				}
			}
			if showConflicts {
				for _, c := range conflicts {
					fmt.Fprintf(w, "state %d on %s: %s\n", c.State, c.Symbol, describeActions(lang, c))
				}
			}
			return nil
		},
	}

	cmd.Flags().StringVar(&startProduction, "start", "", "start production; when empty only the syntax is checked")
	cmd.Flags().StringSliceVar(&ignore, "ignore", nil, "tokens to ignore (default WhiteSpace,Comment)")
	cmd.Flags().BoolVar(&showProductions, "productions", false, "list the productions")
	cmd.Flags().BoolVar(&showConflicts, "conflicts", false, "list the conflicts resolved by backtracking")

	return cmd
}

func describeActions(lang *grammar.Language, c grammar.Conflict) string {
	var parts []string
	for _, a := range c.Actions {
		switch {
		case a.Shift && a.Reduce:
			parts = append(parts, "shift-reduce "+lang.Production(a.Prod).Name)
		case a.Shift:
			parts = append(parts, "shift")
		default:
			parts = append(parts, "reduce "+lang.Production(a.Prod).Name)
		}
	}
	return strings.Join(parts, ", ")
}

// printErrors prints each error of an error list on its own line.
func printErrors(w io.Writer, err error) {
	red := color.New(color.FgRed)
	v := reflect.ValueOf(err)
	if v.Kind() == reflect.Slice {
		for i := 0; i < v.Len(); i++ {
			red.Fprintln(w, v.Index(i).Interface())
		}
	} else {
		red.Fprintln(w, err)
	}
}
