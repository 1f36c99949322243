package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"github.com/vango-dev/memval/internal/errors"
	"github.com/vango-dev/memval/pkg/exprupdate"
	"github.com/vango-dev/memval/pkg/memval"
)

// operationTimeout bounds a whole command: hydration plus write-back.
func (a *app) operationTimeout(cmd *cobra.Command) (context.Context, context.CancelFunc) {
	if a.cfg.Storage.Timeout <= 0 {
		return context.WithCancel(cmd.Context())
	}
	return context.WithTimeout(cmd.Context(), 2*a.cfg.Storage.Timeout)
}

// withValue hydrates key, runs fn and settles the write-back.
func (a *app) withValue(cmd *cobra.Command, key string, fn func(*memval.StoredValue[any]) error) error {
	ctx, cancel := a.operationTimeout(cmd)
	defer cancel()

	h, err := a.openValue(ctx, key)
	if err != nil {
		return err
	}
	fnErr := fn(h.value)
	if err := h.close(ctx); err != nil && fnErr == nil {
		fnErr = err
	}
	return fnErr
}

func getCmd(a *app) *cobra.Command {
	var showState bool

	cmd := &cobra.Command{
		Use:   "get KEY",
		Short: "Print the value stored at KEY",
		Long: `Print the value stored at KEY as JSON. A missing slot prints null.

Examples:
  memval get theme
  memval get --state visits`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return a.withValue(cmd, args[0], func(v *memval.StoredValue[any]) error {
				snap := v.Snapshot()
				if showState {
					fmt.Fprintf(cmd.OutOrStdout(), "%s v%d\n", snap.State(), snap.Version())
				}
				return printValue(cmd.OutOrStdout(), snap)
			})
		},
	}

	cmd.Flags().BoolVar(&showState, "state", false, "Also print state and version")

	return cmd
}

func setCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "set KEY JSON",
		Short: "Store a JSON value at KEY",
		Long: `Store a JSON value at KEY. Setting null keeps the slot as null;
use delete to remove it.

Examples:
  memval set theme '"dark"'
  memval set limits '{"max": 10}'`,
		Args: cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			value, err := parseValue(args[1])
			if err != nil {
				return err
			}
			return a.withValue(cmd, args[0], func(v *memval.StoredValue[any]) error {
				return printValue(cmd.OutOrStdout(), v.Emit(literal(value)))
			})
		},
	}
}

func updateCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "update KEY EXPR",
		Short: "Replace the value at KEY with the result of an expression",
		Long: `Evaluate EXPR against the current value and store the result.

The expression sees value, present, state and version. Besides the
expr builtins, merge(a, b) combines maps and without(m, keys...) drops
keys. A nil result stores null.

Examples:
  memval update visits '(value ?? 0) + 1'
  memval update limits 'merge(value, {"min": 1})'`,
		Args: cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			program, err := exprupdate.Compile(args[1])
			if err != nil {
				return errors.New("M301").Wrap(err)
			}
			return a.withValue(cmd, args[0], func(v *memval.StoredValue[any]) error {
				snap, err := program.Apply(v)
				if err != nil {
					return errors.New("M301").Wrap(err)
				}
				return printValue(cmd.OutOrStdout(), snap)
			})
		},
	}
}

func deleteCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:     "delete KEY",
		Aliases: []string{"rm"},
		Short:   "Remove the slot at KEY",
		Args:    cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return a.withValue(cmd, args[0], func(v *memval.StoredValue[any]) error {
				v.Emit(memval.Absent[any]())
				success(cmd.OutOrStdout(), "Deleted %s", args[0])
				return nil
			})
		},
	}
}

// parseValue decodes a JSON argument.
func parseValue(raw string) (any, error) {
	var v any
	if err := json.Unmarshal([]byte(raw), &v); err != nil {
		return nil, errors.New("M300").
			WithExample(`memval set greeting '"hello"'`).
			Wrap(err)
	}
	return v, nil
}

// literal maps a decoded JSON value to an update; JSON null means Null.
func literal(v any) memval.Update[any] {
	if v == nil {
		return memval.Clear[any]()
	}
	return memval.Literal(v)
}

func printValue(w io.Writer, snap memval.Snapshot[any]) error {
	data, err := json.MarshalIndent(snap, "", "  ")
	if err != nil {
		return errors.New("M300").Wrap(err)
	}
	fmt.Fprintln(w, string(data))
	return nil
}
