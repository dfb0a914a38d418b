package main

import (
	"context"
	"encoding/json"
	"io"
	"os"
	"strings"

	"github.com/chzyer/readline"
	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/johanventer/jsonata-go/pkg/evaluator"
	"github.com/johanventer/jsonata-go/pkg/parser"
)

// newREPLCmd builds the "jsonata repl" subcommand: an interactive session
// bound to the same -i/--input-file (or stdin) data the top-level command
// accepts.
func newREPLCmd() *cobra.Command {
	return &cobra.Command{
		Use:           "repl",
		Short:         "Start an interactive JSONata session",
		SilenceUsage:  true,
		SilenceErrors: true,
		Args:          cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			data, err := resolveInput(nil)
			if err != nil {
				return err
			}
			return runREPL(os.Stdout, data)
		},
	}
}

// Color definitions for REPL output: separators and prompts in blue,
// results in yellow, errors in red, informational text in cyan.
var (
	blueColor   = color.New(color.FgBlue)
	yellowColor = color.New(color.FgYellow)
	redColor    = color.New(color.FgRed)
	cyanColor   = color.New(color.FgCyan)
)

// runREPL starts an interactive read-eval-print loop against data, which is
// re-bound as the context for every expression the user enters. It exits on
// ".exit" or EOF (Ctrl+D).
func runREPL(w io.Writer, data interface{}) error {
	cyanColor.Fprintln(w, "jsonata REPL — enter an expression, \".exit\" or Ctrl+D to quit")

	rl, err := readline.New(promptString())
	if err != nil {
		return err
	}
	defer rl.Close()

	eval := evaluator.New()
	ctx := context.Background()

	for {
		line, err := rl.Readline()
		if err != nil {
			// EOF (Ctrl+D) or interrupt: leave quietly.
			return nil
		}

		line = strings.TrimSpace(line)
		if line == "" {
			continue
		}
		if line == ".exit" {
			return nil
		}
		rl.SaveHistory(line)

		runREPLLine(w, eval, ctx, line, data)
	}
}

func runREPLLine(w io.Writer, eval *evaluator.Evaluator, ctx context.Context, line string, data interface{}) {
	expr, err := parser.Compile(line)
	if err != nil {
		redColor.Fprintf(w, "%v\n", err)
		return
	}

	result, err := eval.Eval(ctx, expr, data)
	if err != nil {
		redColor.Fprintf(w, "%v\n", err)
		return
	}

	out, err := json.MarshalIndent(result, "", "  ")
	if err != nil {
		redColor.Fprintf(w, "%v\n", err)
		return
	}
	yellowColor.Fprintf(w, "%s\n", out)
}

func promptString() string {
	return blueColor.Sprint("jsonata> ")
}
