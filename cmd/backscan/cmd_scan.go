package main

import (
	"fmt"

	"github.com/dhamidi/backscan/stream"
	"github.com/spf13/cobra"
)

func newScanCmd() *cobra.Command {
	var lf languageFlags

	cmd := &cobra.Command{
		Use:   "scan <file>",
		Short: "Print the tokens of a file, scanning with every token of the grammar",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			lang, err := lf.load(args[0])
			if err != nil {
				return err
			}
			src, err := stream.Open(args[0])
			if err != nil {
				return err
			}
			defer src.Close()

			lexemes, err := lang.Machine().Tokenize(0, src)
			for _, lx := range lexemes {
				fmt.Fprintln(cmd.OutOrStdout(), lx)
			}
			if err != nil {
				return fmt.Errorf("scan: %w", err)
			}
			return nil
		},
	}

	lf.register(cmd)

	return cmd
}
