package main

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/spf13/cobra"
	"golang.org/x/term"

	"github.com/chaz8081/stt-notepad/internal/config"
)

func newConfigCommand(opts *rootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "config",
		Short: "Show and change settings",
		Long: `Show and change settings stored in the settings file.
Every change is validated and saved immediately.`,
	}

	cmd.AddCommand(&cobra.Command{
		Use:   "path",
		Short: "Print the settings file location",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			fmt.Fprintln(cmd.OutOrStdout(), opts.path())
			return nil
		},
	})

	cmd.AddCommand(&cobra.Command{
		Use:   "init",
		Short: "Write a settings file with the defaults",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			path := opts.path()
			if _, err := os.Stat(path); err == nil {
				fmt.Fprintf(cmd.OutOrStdout(), "%s already exists\n", path)
				return nil
			}
			if err := config.Default().Save(path); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Wrote %s\n", path)
			return nil
		},
	})

	cmd.AddCommand(&cobra.Command{
		Use:   "list",
		Short: "List all settings",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			store, err := opts.store()
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			for _, key := range store.Keys() {
				v, err := store.Get(key)
				if err != nil {
					return err
				}
				fmt.Fprintf(out, "%s = %s\n", key, displayValue(key, v))
			}
			return nil
		},
	})

	cmd.AddCommand(&cobra.Command{
		Use:   "get <key>",
		Short: "Print one setting",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			store, err := opts.store()
			if err != nil {
				return err
			}
			v, err := store.Get(args[0])
			if err != nil {
				return keyError(err)
			}
			fmt.Fprintln(cmd.OutOrStdout(), v)
			return nil
		},
	})

	cmd.AddCommand(&cobra.Command{
		Use:   "set <key> [value]",
		Short: "Change one setting",
		Long: `Change one setting. API keys may be entered at a hidden prompt by
leaving out the value.`,
		Args: cobra.RangeArgs(1, 2),
		RunE: func(cmd *cobra.Command, args []string) error {
			store, err := opts.store()
			if err != nil {
				return err
			}
			key := args[0]
			var value string
			if len(args) == 2 {
				value = args[1]
			} else {
				if !config.IsSecret(key) {
					return fmt.Errorf("missing value for %s", key)
				}
				if value, err = promptSecret(cmd.InOrStdin(), cmd.ErrOrStderr(), key); err != nil {
					return err
				}
			}
			if err := store.Set(key, value); err != nil {
				return keyError(err)
			}
			fmt.Fprintf(cmd.OutOrStdout(), "%s = %s\n", key, displayValue(key, value))
			return nil
		},
	})

	return cmd
}

// displayValue masks API keys down to their last four characters.
func displayValue(key, value string) string {
	if value == "" {
		return `""`
	}
	if !config.IsSecret(key) {
		return value
	}
	if len(value) <= 8 {
		return "********"
	}
	return "****" + value[len(value)-4:]
}

func keyError(err error) error {
	if errors.Is(err, config.ErrUnknownKey) {
		return fmt.Errorf("%w (see: stt-notepad config list)", err)
	}
	return err
}

// promptSecret reads a value without echo when in is a terminal, otherwise
// a single line.
func promptSecret(in io.Reader, prompt io.Writer, key string) (string, error) {
	if f, ok := in.(*os.File); ok && term.IsTerminal(int(f.Fd())) {
		fmt.Fprintf(prompt, "%s: ", key)
		b, err := term.ReadPassword(int(f.Fd()))
		fmt.Fprintln(prompt)
		if err != nil {
			return "", fmt.Errorf("reading %s: %w", key, err)
		}
		return strings.TrimSpace(string(b)), nil
	}
	line, err := bufio.NewReader(in).ReadString('\n')
	if err != nil && !errors.Is(err, io.EOF) {
		return "", fmt.Errorf("reading %s: %w", key, err)
	}
	return strings.TrimSpace(line), nil
}
