package main

import (
	"fmt"
	"io"
	"strings"

	"github.com/johanventer/jsonata-go/pkg/types"
)

// printAST writes an indented tree representation of node to w, one node
// per line, annotated with the flags the rewriter and parser set along the
// way (keep_singleton, cons, sequence, tail-call). It exists purely for the
// CLI's -a/--ast flag; nothing else in the module depends on this format.
func printAST(w io.Writer, node *types.ASTNode) {
	dumpNode(w, node, 0)
}

func dumpNode(w io.Writer, node *types.ASTNode, depth int) {
	if node == nil {
		return
	}
	indent := strings.Repeat("  ", depth)
	fmt.Fprintf(w, "%s%s%s @%d\n", indent, node.Type, flagSuffix(node), node.Position)

	switch {
	case node.Type == types.NodeNumber:
		fmt.Fprintf(w, "%s  value: %g\n", indent, node.NumValue)
	case node.StrValue != "":
		fmt.Fprintf(w, "%s  value: %q\n", indent, node.StrValue)
	case node.Value != nil:
		fmt.Fprintf(w, "%s  value: %v\n", indent, node.Value)
	}

	if node.LHS != nil {
		fmt.Fprintf(w, "%slhs:\n", indent)
		dumpNode(w, node.LHS, depth+1)
	}
	if node.RHS != nil {
		fmt.Fprintf(w, "%srhs:\n", indent)
		dumpNode(w, node.RHS, depth+1)
	}
	for i, step := range node.Steps {
		fmt.Fprintf(w, "%sstep[%d]:\n", indent, i)
		dumpNode(w, step, depth+1)
	}
	for i, arg := range node.Arguments {
		fmt.Fprintf(w, "%sarg[%d]:\n", indent, i)
		dumpNode(w, arg, depth+1)
	}
	for i, expr := range node.Expressions {
		fmt.Fprintf(w, "%sexpr[%d]:\n", indent, i)
		dumpNode(w, expr, depth+1)
	}
	for i, pair := range node.GroupPairs {
		fmt.Fprintf(w, "%spair[%d].key:\n", indent, i)
		dumpNode(w, pair.Key, depth+1)
		fmt.Fprintf(w, "%spair[%d].value:\n", indent, i)
		dumpNode(w, pair.Value, depth+1)
	}
}

func flagSuffix(node *types.ASTNode) string {
	var flags []string
	if node.KeepSingleton {
		flags = append(flags, "keep_singleton")
	}
	if node.ConsArray {
		flags = append(flags, "cons")
	}
	if node.ProducesSequence {
		flags = append(flags, "sequence")
	}
	if node.IsTailCall {
		flags = append(flags, "tail_call")
	}
	if node.IsGrouping {
		flags = append(flags, "grouping")
	}
	if len(flags) == 0 {
		return ""
	}
	return " [" + strings.Join(flags, ",") + "]"
}
