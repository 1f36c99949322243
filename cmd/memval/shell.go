package main

import (
	"fmt"
	"io"
	"strings"

	"github.com/chzyer/readline"
	"github.com/spf13/cobra"

	"github.com/vango-dev/memval/internal/errors"
	"github.com/vango-dev/memval/pkg/binding"
	"github.com/vango-dev/memval/pkg/exprupdate"
	"github.com/vango-dev/memval/pkg/memval"
)

func shellCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "shell KEY",
		Short: "Edit a value interactively",
		Long: `Open an interactive prompt on KEY. Every change is printed as it
is committed and written back to storage.

Commands:
  get             print the current value
  set JSON        store a JSON value
  update EXPR     apply an update expression
  null            store null
  delete          remove the slot
  help            show commands
  quit            leave the shell`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return a.shell(cmd, args[0])
		},
	}
}

func (a *app) shell(cmd *cobra.Command, key string) error {
	ctx, cancel := a.operationTimeout(cmd)
	h, err := a.openValue(ctx, key)
	cancel()
	if err != nil {
		return err
	}

	rl, err := readline.NewEx(&readline.Config{
		Prompt:          key + "> ",
		InterruptPrompt: "^C",
		EOFPrompt:       "exit",
	})
	if err != nil {
		h.store.Close()
		return errors.New("M140").Wrap(err)
	}
	defer rl.Close()

	out := rl.Stdout()
	stop := binding.For[any](h.value).Observe(func(snap memval.Snapshot[any]) {
		fmt.Fprintf(out, "v%d %s: ", snap.Version(), snap.State())
		printValue(out, snap)
	})

	runShell(rl, out, h.value)
	stop()

	settleCtx, cancel := a.operationTimeout(cmd)
	defer cancel()
	return h.close(settleCtx)
}

// runShell reads commands until quit or EOF.
func runShell(rl *readline.Instance, out io.Writer, value memval.Observable[any]) {
	for {
		line, err := rl.Readline()
		if err != nil {
			if err == readline.ErrInterrupt {
				continue
			}
			return
		}
		if quit := shellCommand(out, value, strings.TrimSpace(line)); quit {
			return
		}
	}
}

// shellCommand runs one shell line and reports whether the shell should exit.
func shellCommand(out io.Writer, value memval.Observable[any], line string) bool {
	if line == "" {
		return false
	}
	name, rest, _ := strings.Cut(line, " ")
	rest = strings.TrimSpace(rest)

	switch name {
	case "get":
		printValue(out, value.Snapshot())
	case "set":
		v, err := parseValue(rest)
		if err != nil {
			fmt.Fprintln(out, err)
			return false
		}
		value.Emit(literal(v))
	case "update":
		if _, err := exprupdate.Run(value, rest); err != nil {
			fmt.Fprintln(out, errors.New("M301").Wrap(err).FormatCompact())
		}
	case "null":
		value.Emit(memval.Clear[any]())
	case "delete":
		value.Emit(memval.Absent[any]())
	case "help", "?":
		printShellHelp(out)
	case "quit", "exit", "q":
		return true
	default:
		fmt.Fprintf(out, "Unknown command: %s (type 'help' for commands)\n", name)
	}
	return false
}

func printShellHelp(out io.Writer) {
	fmt.Fprintln(out, "Commands:")
	info(out, "get             print the current value")
	info(out, "set JSON        store a JSON value")
	info(out, "update EXPR     apply an update expression")
	info(out, "null            store null")
	info(out, "delete          remove the slot")
	info(out, "quit            leave the shell")
}
