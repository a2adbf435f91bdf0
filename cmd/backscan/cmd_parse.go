package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"time"

	"github.com/dhamidi/backscan/grammar"
	"github.com/dhamidi/backscan/pda"
	"github.com/dhamidi/backscan/project"
	"github.com/dhamidi/backscan/stream"
	"github.com/dhamidi/backscan/tree"
	"github.com/fatih/color"
	"github.com/spf13/cobra"
)

func newParseCmd() *cobra.Command {
	var lf languageFlags
	var timeout time.Duration

	cmd := &cobra.Command{
		Use:   "parse [file...]",
		Short: "Parse files and report errors; without arguments parse every source file of the project",
		RunE: func(cmd *cobra.Command, args []string) error {
			files := args
			if len(files) == 0 {
				if lf.grammarFile != "" {
					return fmt.Errorf("files are required with --grammar")
				}
				var err error
				files, err = projectFiles(lf.name)
				if err != nil {
					return err
				}
			}
			return runParse(cmd.Context(), cmd.OutOrStdout(), &lf, files, timeout)
		},
	}

	lf.register(cmd)
	cmd.Flags().DurationVarP(&timeout, "timeout", "t", 10*time.Second, "timeout per file")

	return cmd
}

// projectFiles lists the source files of one or all project languages.
func projectFiles(name string) ([]string, error) {
	p, err := project.Load()
	if err != nil {
		return nil, err
	}
	langs := p.Languages
	if name != "" {
		l := p.Language(name)
		if l == nil {
			return nil, fmt.Errorf("no language %q in %s", name, p.File)
		}
		langs = []*project.Language{l}
	}
	var files []string
	for _, l := range langs {
		fs, err := l.SourceFiles()
		if err != nil {
			return nil, err
		}
		files = append(files, fs...)
	}
	return files, nil
}

func runParse(ctx context.Context, w io.Writer, lf *languageFlags, files []string, timeout time.Duration) error {
	if ctx == nil {
		ctx = context.Background()
	}
	ok := color.New(color.FgGreen).SprintFunc()
	fail := color.New(color.FgRed).SprintFunc()

	// Languages are compiled once per grammar.
	langs := map[string]*grammar.Language{}
	var failures []string
	for _, file := range files {
		key := lf.grammarFile
		if key == "" {
			l, err := lf.projectLanguage(file)
			if err != nil {
				failures = append(failures, err.Error())
				fmt.Fprintf(w, "%s %s: %v\n", fail("[FAIL]"), file, err)
				continue
			}
			key = l.Name
		}
		lang, found := langs[key]
		if !found {
			var err error
			if lang, err = lf.load(file); err != nil {
				return err
			}
			langs[key] = lang
		}

		if err := parseFile(ctx, lang, file, timeout); err != nil {
			failures = append(failures, err.Error())
			fmt.Fprintf(w, "%s %v\n", fail("[FAIL]"), err)
			continue
		}
		fmt.Fprintf(w, "%s %s\n", ok("[OK]"), file)
	}

	fmt.Fprintf(w, "\n=== PARSE COMPLETE ===\n")
	fmt.Fprintf(w, "Files parsed: %d\n", len(files))
	fmt.Fprintf(w, "Errors: %d\n", len(failures))
	if len(failures) > 0 {
		return fmt.Errorf("%d of %d files failed to parse", len(failures), len(files))
	}
	return nil
}

func parseFile(ctx context.Context, lang *grammar.Language, file string, timeout time.Duration) error {
	src, err := stream.Open(file)
	if err != nil {
		return err
	}
	defer src.Close()

	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	store := tree.NewStore()
	root, err := pda.Parse(ctx, lang, store, src, pda.Options{})
	if err != nil {
		return describe(file, err)
	}
	store.Downref(root)
	return nil
}

// describe prefixes err with the position it refers to.
func describe(file string, err error) error {
	var pe *pda.ParseError
	if errors.As(err, &pe) {
		return fmt.Errorf("%s: %w", pe.Loc, err)
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return fmt.Errorf("%s: timeout", file)
	}
	return fmt.Errorf("%s: %w", file, err)
}
