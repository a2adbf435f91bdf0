package main

import (
	"context"
	"fmt"

	"github.com/dhamidi/backscan/format"
	"github.com/dhamidi/backscan/pda"
	"github.com/dhamidi/backscan/stream"
	"github.com/dhamidi/backscan/tree"
	"github.com/spf13/cobra"
)

func newPrintCmd() *cobra.Command {
	var lf languageFlags
	var outputFormat string
	var includeIgnore bool
	var trim bool
	var stopAt string

	cmd := &cobra.Command{
		Use:   "print <file>",
		Short: "Parse a file and print its tree",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			file := args[0]
			lang, err := lf.load(file)
			if err != nil {
				return err
			}

			var opts pda.Options
			if stopAt != "" {
				id, ok := lang.ID(stopAt)
				if !ok || id < lang.FirstNonTerm() {
					return fmt.Errorf("unknown nonterminal: %s", stopAt)
				}
				opts.StopAt = id
			}

			src, err := stream.Open(file)
			if err != nil {
				return err
			}
			defer src.Close()

			store := tree.NewStore()
			ctx := cmd.Context()
			if ctx == nil {
				ctx = context.Background()
			}
			root, err := pda.Parse(ctx, lang, store, src, opts)
			if err != nil {
				return describe(file, err)
			}
			defer store.Downref(root)

			w := cmd.OutOrStdout()
			var encoder format.Encoder
			switch outputFormat {
			case "text":
				enc := format.NewTextEncoder(w, lang)
				enc.Trim = trim
				encoder = enc
			case "xml":
				enc := format.NewXMLEncoder(w, lang)
				enc.IncludeIgnore = includeIgnore
				encoder = enc
			case "json":
				enc := format.NewJSONEncoder(w, lang)
				enc.IncludeIgnore = includeIgnore
				encoder = enc
			default:
				return fmt.Errorf("unknown format: %s", outputFormat)
			}

			if err := encoder.Encode(root); err != nil {
				return fmt.Errorf("encode: %w", err)
			}
			return nil
		},
	}

	lf.register(cmd)
	cmd.Flags().StringVarP(&outputFormat, "format", "f", "xml", "output format (xml, json, text)")
	cmd.Flags().BoolVar(&includeIgnore, "ignore-text", false, "include ignored text in xml and json output")
	cmd.Flags().BoolVar(&trim, "trim", false, "drop leading and trailing ignored text in text output")
	cmd.Flags().StringVar(&stopAt, "stop-at", "", "stop after the first complete tree of this nonterminal")

	return cmd
}
