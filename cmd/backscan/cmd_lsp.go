package main

import (
	"github.com/dhamidi/backscan/lsp"
	"github.com/spf13/cobra"
	"github.com/tliron/commonlog"
)

func newLSPCmd() *cobra.Command {
	var logFile string

	cmd := &cobra.Command{
		Use:   "lsp",
		Short: "Start the Language Server Protocol server",
		RunE: func(cmd *cobra.Command, args []string) error {
			if logFile != "" {
				commonlog.Configure(2, &logFile)
			}
			server := lsp.NewServer(version)
			return server.RunStdio()
		},
	}

	cmd.Flags().StringVar(&logFile, "log", "", "write logs to this file")

	return cmd
}
