// Package functions defines the contract by which host applications register
// user-defined functions with the evaluator: a simple form (CustomFunctionDef)
// for ordinary functions, and an advanced form (AdvancedCustomFunctionDef) for
// higher-order functions that need to invoke a function value passed to them
// from JSONata (e.g. $pipe(value, fn1, fn2)).
package functions

import "context"

// CustomFunc is the signature for a simple user-defined function registered
// with WithCustomFunction or WithFunctions. It receives already-evaluated
// arguments and returns a single JSONata-compatible value.
type CustomFunc func(ctx context.Context, args ...interface{}) (interface{}, error)

// Caller lets an AdvancedCustomFunc invoke a function value handed to it from
// a JSONata expression — a lambda, a built-in, or another registered custom
// function — the same way the evaluator invokes the second argument of
// $map/$filter/$reduce.
type Caller interface {
	Call(ctx context.Context, fn interface{}, args ...interface{}) (interface{}, error)
}

// AdvancedCustomFunc is the signature for a higher-order user-defined
// function. Unlike CustomFunc, it receives a Caller so it can apply
// function-valued arguments itself (see extfunc.Pipe).
type AdvancedCustomFunc func(ctx context.Context, caller Caller, args ...interface{}) (interface{}, error)

// FunctionEntry is the common interface implemented by CustomFunctionDef and
// AdvancedCustomFunctionDef, letting both kinds be registered together in a
// single WithFunctions call.
type FunctionEntry interface {
	// entryName returns the JSONata name (without the leading "$") this
	// entry registers.
	entryName() string
	// isAdvanced reports whether the entry requires a Caller.
	isAdvanced() bool
}

// CustomFunctionDef defines a simple user-defined function, registered under
// Name (without the leading "$"). Signature is a JSONata type-signature
// string (e.g. "<s-s:b>"); if set, the evaluator parses it once at
// registration and enforces arity and per-argument types on every call,
// the same way it does for a lambda written with a built-in's dispatch
// contract. Leave it empty to accept any arguments and validate in Fn.
type CustomFunctionDef struct {
	Name      string
	Signature string
	Fn        CustomFunc
}

func (d CustomFunctionDef) entryName() string { return d.Name }
func (d CustomFunctionDef) isAdvanced() bool   { return false }

// AdvancedCustomFunctionDef defines a higher-order user-defined function that
// needs to call back into one of its own arguments. Signature is enforced
// the same way as on CustomFunctionDef.
type AdvancedCustomFunctionDef struct {
	Name      string
	Signature string
	Fn        AdvancedCustomFunc
}

func (d AdvancedCustomFunctionDef) entryName() string { return d.Name }
func (d AdvancedCustomFunctionDef) isAdvanced() bool   { return true }
