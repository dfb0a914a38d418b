// Command jsonata is a command-line front end for the engine in
// github.com/johanventer/jsonata-go: it compiles a JSONata expression,
// evaluates it against a JSON input, and prints the result.
//
//	jsonata '$.items[price > 100].name' '{"items":[{"name":"a","price":50}]}'
//	jsonata -a '$sum(items.price)'
//	jsonata repl
package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/mattn/go-isatty"
	"github.com/spf13/cobra"

	"github.com/johanventer/jsonata-go/pkg/evaluator"
	"github.com/johanventer/jsonata-go/pkg/parser"
	"github.com/johanventer/jsonata-go/pkg/types"
)

// cliError carries the process exit code alongside the error message, per
// spec.md §6: 0 success, 1 I/O error, 2 parse error, 3 runtime error, 4
// usage error.
type cliError struct {
	code int
	err  error
}

func (e *cliError) Error() string { return e.err.Error() }
func (e *cliError) Unwrap() error { return e.err }

func ioErr(err error) error     { return &cliError{code: 1, err: err} }
func usageErr(msg string) error { return &cliError{code: 4, err: errors.New(msg)} }

var (
	astFlag     bool
	exprFile    string
	inputFile   string
	versionFlag bool
)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		var ce *cliError
		code := 3
		if errors.As(err, &ce) {
			code = ce.code
		}
		fmt.Fprintln(os.Stderr, err)
		os.Exit(code)
	}
}

func newRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:           "jsonata [flags] [<expr>] [<input>]",
		Short:         "Evaluate JSONata expressions against JSON data",
		SilenceUsage:  true,
		SilenceErrors: true,
		Args:          cobra.MaximumNArgs(2),
		RunE:          runEval,
	}

	root.Flags().BoolVarP(&astFlag, "ast", "a", false, "print the parsed AST and exit")
	root.Flags().StringVarP(&exprFile, "expr-file", "e", "", "read the expression from a file")
	root.PersistentFlags().StringVarP(&inputFile, "input-file", "i", "", "read the input JSON from a file (else stdin)")
	root.Flags().BoolVarP(&versionFlag, "version", "V", false, "print the version and exit")

	root.AddCommand(newREPLCmd())

	return root
}

func runEval(cmd *cobra.Command, args []string) error {
	if versionFlag {
		fmt.Fprintln(cmd.OutOrStdout(), engineVersion())
		return nil
	}

	exprText, err := resolveExpr(args)
	if err != nil {
		return err
	}

	expr, err := parser.Compile(exprText)
	if err != nil {
		return formatCompileErr(err)
	}

	if astFlag {
		printAST(cmd.OutOrStdout(), expr.AST())
		return nil
	}

	data, err := resolveInput(args)
	if err != nil {
		return err
	}

	eval := evaluator.New()
	result, err := eval.Eval(context.Background(), expr, data)
	if err != nil {
		return formatEvalErr(err)
	}

	return printResult(cmd.OutOrStdout(), result)
}

func resolveExpr(args []string) (string, error) {
	if exprFile != "" {
		b, err := os.ReadFile(exprFile)
		if err != nil {
			return "", ioErr(err)
		}
		return string(b), nil
	}
	if len(args) >= 1 {
		return args[0], nil
	}
	return "", usageErr("an expression is required (positional argument or --expr-file)")
}

// resolveInput returns the decoded JSON input, or nil (JSONata's undefined
// context) when no input was given at all and stdin is an interactive
// terminal rather than a pipe.
func resolveInput(args []string) (interface{}, error) {
	var raw []byte
	var err error

	switch {
	case inputFile != "":
		raw, err = os.ReadFile(inputFile)
		if err != nil {
			return nil, ioErr(err)
		}
	case len(args) >= 2:
		raw = []byte(args[1])
	case !isatty.IsTerminal(os.Stdin.Fd()) && !isatty.IsCygwinTerminal(os.Stdin.Fd()):
		raw, err = io.ReadAll(os.Stdin)
		if err != nil {
			return nil, ioErr(err)
		}
	default:
		return nil, nil
	}

	if len(raw) == 0 {
		return nil, nil
	}

	var data interface{}
	if err := json.Unmarshal(raw, &data); err != nil {
		return nil, ioErr(fmt.Errorf("invalid input JSON: %w", err))
	}
	return data, nil
}

func printResult(w io.Writer, result interface{}) error {
	if result == nil {
		// spec.md §6: Undefined serializes as the empty string at the top level.
		return nil
	}
	out, err := json.MarshalIndent(result, "", "  ")
	if err != nil {
		return &cliError{code: 3, err: err}
	}
	fmt.Fprintln(w, string(out))
	return nil
}

func formatCompileErr(err error) error {
	var jerr *types.Error
	if errors.As(err, &jerr) {
		return &cliError{code: 2, err: jerr}
	}
	return &cliError{code: 2, err: err}
}

func formatEvalErr(err error) error {
	var jerr *types.Error
	if errors.As(err, &jerr) {
		return &cliError{code: 3, err: jerr}
	}
	return &cliError{code: 3, err: err}
}

func engineVersion() string {
	return "jsonata-go dev"
}
