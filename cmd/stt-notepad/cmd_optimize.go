package main

import (
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/chaz8081/stt-notepad/internal/optimize"
)

func newOptimizeCommand(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "optimize [file]",
		Short: "Clean up text with the configured language model",
		Long: `Fix punctuation, casing and obvious recognition slips in a transcript.
Reads the named file, or standard input when no file or "-" is given, and
prints the result.`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			store, err := opts.store()
			if err != nil {
				return err
			}

			var in io.Reader = cmd.InOrStdin()
			if len(args) == 1 && args[0] != "-" {
				f, err := os.Open(args[0])
				if err != nil {
					return err
				}
				defer f.Close()
				in = f
			}
			data, err := io.ReadAll(in)
			if err != nil {
				return fmt.Errorf("reading input: %w", err)
			}

			opt, err := optimize.New(store.Config().Optimize)
			if err != nil {
				return err
			}

			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			text, err := opt.Optimize(ctx, string(data))
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), text)
			return nil
		},
	}
}
