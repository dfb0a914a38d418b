package evaluator

// Aggregation and core array built-ins: reduction functions ($sum, $count,
// $average, $min, $max), the higher-order array functions ($map, $filter,
// $reduce, $single), and the remaining array primitives registered in
// functions.go's initBuiltinFunctions table.

import (
	"context"
	"fmt"
	"math/rand"
	"sort"

	"github.com/johanventer/jsonata-go/pkg/types"
)

// --- Aggregation Functions ---

func fnSum(ctx context.Context, e *Evaluator, evalCtx *EvalContext, args []interface{}) (interface{}, error) {
	if args[0] == nil {
		return nil, nil
	}

	arr, err := e.toArray(args[0])
	if err != nil {
		return nil, err
	}

	sum := 0.0
	for _, v := range arr {
		num, err := e.toNumber(v)
		if err != nil {
			return nil, err
		}
		sum += num
	}

	return sum, nil
}

func fnCount(ctx context.Context, e *Evaluator, evalCtx *EvalContext, args []interface{}) (interface{}, error) {
	if args[0] == nil {
		return 0.0, nil
	}

	arr, err := e.toArray(args[0])
	if err != nil {
		return nil, err
	}

	return float64(len(arr)), nil
}

func fnAverage(ctx context.Context, e *Evaluator, evalCtx *EvalContext, args []interface{}) (interface{}, error) {
	arr, err := e.toArray(args[0])
	if err != nil {
		return nil, err
	}

	if len(arr) == 0 {
		return nil, nil
	}

	// Type checking: all elements must be numbers
	for _, v := range arr {
		if _, ok := v.(float64); !ok {
			return nil, types.NewError("T0412", "Argument of function 'average' must be an array of numbers", -1)
		}
	}

	sum := 0.0
	for _, v := range arr {
		num, err := e.toNumber(v)
		if err != nil {
			return nil, err
		}
		sum += num
	}

	return sum / float64(len(arr)), nil
}

func fnMin(ctx context.Context, e *Evaluator, evalCtx *EvalContext, args []interface{}) (interface{}, error) {
	arr, err := e.toArray(args[0])
	if err != nil {
		return nil, err
	}

	if len(arr) == 0 {
		return nil, nil
	}

	// Type checking: all elements must be numbers
	for _, v := range arr {
		if _, ok := v.(float64); !ok {
			return nil, types.NewError("T0412", "Argument of function 'min' must be an array of numbers", -1)
		}
	}

	min, err := e.toNumber(arr[0])
	if err != nil {
		return nil, err
	}

	for i := 1; i < len(arr); i++ {
		num, err := e.toNumber(arr[i])
		if err != nil {
			return nil, err
		}
		if num < min {
			min = num
		}
	}

	return min, nil
}

func fnMax(ctx context.Context, e *Evaluator, evalCtx *EvalContext, args []interface{}) (interface{}, error) {
	arr, err := e.toArray(args[0])
	if err != nil {
		return nil, err
	}

	if len(arr) == 0 {
		return nil, nil
	}

	// Type checking: all elements must be numbers
	for _, v := range arr {
		if _, ok := v.(float64); !ok {
			return nil, types.NewError("T0412", "Argument of function 'max' must be an array of numbers", -1)
		}
	}

	max, err := e.toNumber(arr[0])
	if err != nil {
		return nil, err
	}

	for i := 1; i < len(arr); i++ {
		num, err := e.toNumber(arr[i])
		if err != nil {
			return nil, err
		}
		if num > max {
			max = num
		}
	}

	return max, nil
}

// --- Array Functions ---

// callHOFFn calls a HOF function (Lambda or FunctionDef) with the provided args.
// For Lambda: trims args to match the number of lambda params.
// For FunctionDef: passes all args.
func (e *Evaluator) callHOFFn(ctx context.Context, evalCtx *EvalContext, fn interface{}, args []interface{}) (interface{}, error) {
	switch f := fn.(type) {
	case *Lambda:
		callArgs := args
		if len(f.Params) > 0 && len(f.Params) < len(args) {
			callArgs = args[:len(f.Params)]
		}
		return e.callLambda(ctx, f, callArgs)
	case *FunctionDef:
		// Trim to MaxArgs if specified
		callArgs := args
		if f.MaxArgs > 0 && len(callArgs) > f.MaxArgs {
			callArgs = callArgs[:f.MaxArgs]
		}
		return f.Impl(ctx, e, evalCtx, callArgs)
	default:
		return nil, fmt.Errorf("expected a function, got %T", fn)
	}
}

func fnMap(ctx context.Context, e *Evaluator, evalCtx *EvalContext, args []interface{}) (interface{}, error) {
	if args[0] == nil {
		return nil, nil
	}
	arr, err := e.toArray(args[0])
	if err != nil {
		return nil, err
	}
	if args[1] == nil {
		return nil, fmt.Errorf("second argument to $map must be a function")
	}

	result := make([]interface{}, 0, len(arr))
	for i, item := range arr {
		value, err := e.callHOFFn(ctx, evalCtx, args[1], []interface{}{item, float64(i), arr})
		if err != nil {
			return nil, err
		}
		// Exclude undefined (nil) results - JSONata sequence semantics
		if value != nil {
			result = append(result, value)
		}
	}

	if len(result) == 0 {
		return nil, nil
	}
	if len(result) == 1 {
		return result[0], nil
	}
	return result, nil
}

func fnFilter(ctx context.Context, e *Evaluator, evalCtx *EvalContext, args []interface{}) (interface{}, error) {
	if args[0] == nil {
		return nil, nil
	}
	arr, err := e.toArray(args[0])
	if err != nil {
		return nil, err
	}
	if args[1] == nil {
		return nil, fmt.Errorf("second argument to $filter must be a function")
	}

	result := make([]interface{}, 0)
	for i, item := range arr {
		value, err := e.callHOFFn(ctx, evalCtx, args[1], []interface{}{item, float64(i), arr})
		if err != nil {
			return nil, err
		}
		if e.isTruthy(value) {
			result = append(result, item)
		}
	}

	if len(result) == 0 {
		return nil, nil
	}
	if len(result) == 1 {
		return result[0], nil
	}
	return result, nil
}

func fnReduce(ctx context.Context, e *Evaluator, evalCtx *EvalContext, args []interface{}) (interface{}, error) {
	if args[0] == nil {
		if len(args) >= 3 {
			return args[2], nil
		}
		return nil, nil
	}
	arr, err := e.toArray(args[0])
	if err != nil {
		return nil, err
	}
	if args[1] == nil {
		return nil, fmt.Errorf("second argument to $reduce must be a function")
	}
	// D3050: callback must accept at least 2 args
	switch f := args[1].(type) {
	case *Lambda:
		if len(f.Params) < 2 {
			return nil, types.NewError(types.ErrReduceInsufficientArgs,
				"The second argument of reduce function must be a function with at least two arguments", -1)
		}
	case *FunctionDef:
		if f.MinArgs < 2 {
			return nil, types.NewError(types.ErrReduceInsufficientArgs,
				"The second argument of reduce function must be a function with at least two arguments", -1)
		}
	}

	if len(arr) == 0 {
		if len(args) >= 3 {
			return args[2], nil
		}
		return nil, nil
	}

	var accumulator interface{}
	startIdx := 0

	if len(args) >= 3 && args[2] != nil {
		accumulator = args[2]
	} else {
		accumulator = arr[0]
		startIdx = 1
	}

	for i := startIdx; i < len(arr); i++ {
		value, err := e.callHOFFn(ctx, evalCtx, args[1], []interface{}{accumulator, arr[i], float64(i), arr})
		if err != nil {
			return nil, err
		}
		accumulator = value
	}

	return accumulator, nil
}

// fnSingle finds the single element in an array matching an optional predicate.
// Throws D3138 if more than one element matches, D3139 if no element matches.
func fnSingle(ctx context.Context, e *Evaluator, evalCtx *EvalContext, args []interface{}) (interface{}, error) {
	if args[0] == nil {
		return nil, nil
	}
	arr, err := e.toArray(args[0])
	if err != nil {
		return nil, err
	}

	var fn interface{}
	if len(args) >= 2 {
		fn = args[1]
	}

	hasFoundMatch := false
	var result interface{}

	for i, entry := range arr {
		positiveResult := true
		if fn != nil {
			res, err := e.callHOFFn(ctx, evalCtx, fn, []interface{}{entry, float64(i), arr})
			if err != nil {
				return nil, err
			}
			positiveResult = e.isTruthy(res)
		}
		if positiveResult {
			if !hasFoundMatch {
				result = entry
				hasFoundMatch = true
			} else {
				return nil, types.NewError(types.ErrSingleMultipleMatches,
					"The $single() function expected exactly 1 matching result. Instead it matched more.", -1)
			}
		}
	}

	if !hasFoundMatch {
		return nil, types.NewError(types.ErrSingleNoMatch,
			"The $single() function expected exactly 1 matching result. Instead it matched 0.", -1)
	}

	return result, nil
}

func fnSort(ctx context.Context, e *Evaluator, evalCtx *EvalContext, args []interface{}) (interface{}, error) {
	if args[0] == nil {
		return nil, nil
	}

	arr, err := e.toArray(args[0])
	if err != nil {
		return nil, err
	}

	if len(arr) == 0 {
		return nil, nil
	}

	// Make a copy to avoid modifying the original
	result := make([]interface{}, len(arr))
	copy(result, arr)

	if len(args) == 1 || args[1] == nil {
		// Default sort: all elements must be the same type (all numbers OR all strings)
		// Otherwise return D3070
		var sortErr error
		sort.SliceStable(result, func(i, j int) bool {
			if sortErr != nil {
				return false
			}
			ni, isNi := result[i].(float64)
			nj, isNj := result[j].(float64)
			si, isSi := result[i].(string)
			sj, isSj := result[j].(string)

			if isNi && isNj {
				return ni < nj
			}
			if isSi && isSj {
				return si < sj
			}
			// Mixed types or non-comparable types (objects, booleans, etc.)
			sortErr = types.NewError(types.ErrTypeMismatch, "D3070 $sort: mixed types in array", -1)
			return false
		})
		if sortErr != nil {
			return nil, sortErr
		}
	} else {
		// Custom sort with comparator function.
		// JSONata convention: fn($a, $b) returns true when $a > $b (a comes AFTER b).
		// Go sort convention: less(i,j) returns true when arr[i] comes BEFORE arr[j].
		// Logic: less(i,j) = true iff $a < $b, i.e. !fn($a,$b) && fn($b,$a)
		var sortErr error
		sort.SliceStable(result, func(i, j int) bool {
			if sortErr != nil {
				return false
			}
			callFn := func(a, b interface{}) (bool, error) {
				var value interface{}
				var err error
				switch fn := args[1].(type) {
				case *Lambda:
					value, err = e.callLambda(ctx, fn, []interface{}{a, b})
				case *FunctionDef:
					value, err = fn.Impl(ctx, e, evalCtx, []interface{}{a, b})
				default:
					return false, fmt.Errorf("second argument to $sort must be a function")
				}
				if err != nil {
					return false, err
				}
				return e.isTruthy(value), nil
			}
			// Check fn($a, $b): if true, a > b → a comes AFTER b → less = false
			fwd, err := callFn(result[i], result[j])
			if err != nil {
				sortErr = err
				return false
			}
			if fwd {
				return false // a > b: a comes after b
			}
			// Check fn($b, $a): if true, b > a → a comes BEFORE b → less = true
			bwd, err := callFn(result[j], result[i])
			if err != nil {
				sortErr = err
				return false
			}
			return bwd // a < b: a comes before b; if equal (both false) → stable
		})
		if sortErr != nil {
			return nil, sortErr
		}
	}

	return result, nil
}

func fnAppend(ctx context.Context, e *Evaluator, evalCtx *EvalContext, args []interface{}) (interface{}, error) {
	// If second argument is undefined, return first as-is
	if args[1] == nil {
		return args[0], nil
	}

	arr1, err := e.toArray(args[0])
	if err != nil {
		return nil, err
	}

	arr2, err := e.toArray(args[1])
	if err != nil {
		return nil, err
	}

	result := make([]interface{}, 0, len(arr1)+len(arr2))
	result = append(result, arr1...)
	result = append(result, arr2...)

	return result, nil
}

func fnReverse(ctx context.Context, e *Evaluator, evalCtx *EvalContext, args []interface{}) (interface{}, error) {
	// Handle undefined
	if args[0] == nil {
		return nil, nil
	}

	arr, err := e.toArray(args[0])
	if err != nil {
		return nil, err
	}

	result := make([]interface{}, len(arr))
	for i := 0; i < len(arr); i++ {
		result[i] = arr[len(arr)-1-i]
	}

	return result, nil
}

// --- Array Functions (extended) ---

// fnDistinct removes duplicate values from an array.
// Signature: $distinct(array)
func fnDistinct(ctx context.Context, e *Evaluator, evalCtx *EvalContext, args []interface{}) (interface{}, error) {
	if args[0] == nil {
		return nil, nil
	}

	arr, err := e.toArray(args[0])
	if err != nil {
		return nil, err
	}

	// Use a map to track seen values
	// Note: This uses string representation for comparison, which may not be perfect
	// for complex objects but works for primitive types
	seen := make(map[string]bool)
	result := make([]interface{}, 0)

	for _, item := range arr {
		// Serialize item to string for comparison
		key := fmt.Sprintf("%v", item)
		if !seen[key] {
			seen[key] = true
			result = append(result, item)
		}
	}

	if len(result) == 0 {
		return nil, nil
	}
	return result, nil
}

// fnShuffle randomly shuffles an array.
// Signature: $shuffle(array)
func fnShuffle(ctx context.Context, e *Evaluator, evalCtx *EvalContext, args []interface{}) (interface{}, error) {
	if args[0] == nil {
		return nil, nil
	}

	arr, err := e.toArray(args[0])
	if err != nil {
		return nil, err
	}

	// Make a copy to avoid modifying the original
	result := make([]interface{}, len(arr))
	copy(result, arr)

	// Fisher-Yates shuffle
	rand.Shuffle(len(result), func(i, j int) {
		result[i], result[j] = result[j], result[i]
	})

	return result, nil
}

// fnZip convolves multiple arrays into an array of tuples.
// Signature: $zip(array1, array2, ...)
// Returns array of arrays, where each sub-array contains one element from each input array.
func fnZip(ctx context.Context, e *Evaluator, evalCtx *EvalContext, args []interface{}) (interface{}, error) {
	if len(args) == 0 {
		return []interface{}{}, nil
	}

	// If any argument is undefined, return empty array
	for _, arg := range args {
		if arg == nil {
			return []interface{}{}, nil
		}
	}

	// Convert all args to arrays
	arrays := make([][]interface{}, len(args))
	minLen := -1

	for i, arg := range args {
		arr, err := e.toArray(arg)
		if err != nil {
			return nil, err
		}
		arrays[i] = arr
		// Track minimum length
		if minLen == -1 || len(arr) < minLen {
			minLen = len(arr)
		}
	}

	// If any array is empty, return empty array
	if minLen == 0 {
		return []interface{}{}, nil
	}

	// Zip arrays together, stopping at shortest array length
	result := make([]interface{}, minLen)
	for i := 0; i < minLen; i++ {
		tuple := make([]interface{}, len(arrays))
		for j, arr := range arrays {
			tuple[j] = arr[i]
		}
		result[i] = tuple
	}

	return result, nil
}
