package evaluator

// Type-coercion and arithmetic built-ins: $type, $exists, $number,
// $boolean, $not, and the Math functions ($abs, $floor, $ceil, $round,
// $sqrt, $power).

import (
	"context"
	"fmt"
	"math"
	"strconv"
	"strings"

	"github.com/johanventer/jsonata-go/pkg/types"
)

// --- Type Functions ---

func fnType(ctx context.Context, e *Evaluator, evalCtx *EvalContext, args []interface{}) (interface{}, error) {
	value := args[0]

	// undefined (nil) returns undefined (not "null")
	if value == nil {
		return nil, nil
	}

	// Check for JSONata null (types.Null) - returns "null"
	if _, ok := value.(types.Null); ok {
		return "null", nil
	}

	switch value.(type) {
	case string:
		return "string", nil
	case float64:
		return "number", nil
	case bool:
		return "boolean", nil
	case []interface{}:
		return "array", nil
	case map[string]interface{}:
		return "object", nil
	case *OrderedObject:
		return "object", nil
	case *Lambda:
		return "function", nil
	default:
		return "unknown", nil
	}
}

func fnExists(ctx context.Context, e *Evaluator, evalCtx *EvalContext, args []interface{}) (interface{}, error) {
	return args[0] != nil, nil
}

func fnNumber(ctx context.Context, e *Evaluator, evalCtx *EvalContext, args []interface{}) (interface{}, error) {
	// undefined inputs return undefined
	if args[0] == nil {
		return nil, nil
	}
	if str, ok := args[0].(string); ok {
		if num, err := strconv.ParseFloat(str, 64); err == nil {
			return num, nil
		}
		if strings.HasPrefix(str, "0x") || strings.HasPrefix(str, "0X") {
			if num, err := strconv.ParseInt(str[2:], 16, 64); err == nil {
				return float64(num), nil
			}
		}
		if strings.HasPrefix(str, "0o") || strings.HasPrefix(str, "0O") {
			if num, err := strconv.ParseInt(str[2:], 8, 64); err == nil {
				return float64(num), nil
			}
		}
		if strings.HasPrefix(str, "0b") || strings.HasPrefix(str, "0B") {
			if num, err := strconv.ParseInt(str[2:], 2, 64); err == nil {
				return float64(num), nil
			}
		}
	}

	return e.toNumber(args[0])
}

func fnBoolean(ctx context.Context, e *Evaluator, evalCtx *EvalContext, args []interface{}) (interface{}, error) {
	// Per JSONata spec for $boolean():
	// - undefined → undefined
	// - functions → false
	// - arrays → true only if at least one truthy element (recursively)
	if args[0] == nil {
		return nil, nil // undefined → undefined
	}
	return e.isTruthyBoolean(args[0]), nil
}

func fnNot(ctx context.Context, e *Evaluator, evalCtx *EvalContext, args []interface{}) (interface{}, error) {
	// Special case: not(undefined) → undefined (per JSONata spec)
	if args[0] == nil {
		return nil, nil
	}
	return !e.isTruthy(args[0]), nil
}

// --- Math Functions ---

func fnAbs(ctx context.Context, e *Evaluator, evalCtx *EvalContext, args []interface{}) (interface{}, error) {
	if args[0] == nil {
		return nil, nil
	}
	num, err := e.toNumber(args[0])
	if err != nil {
		return nil, err
	}
	return math.Abs(num), nil
}

func fnFloor(ctx context.Context, e *Evaluator, evalCtx *EvalContext, args []interface{}) (interface{}, error) {
	if args[0] == nil {
		return nil, nil
	}
	num, err := e.toNumber(args[0])
	if err != nil {
		return nil, err
	}
	return math.Floor(num), nil
}

func fnCeil(ctx context.Context, e *Evaluator, evalCtx *EvalContext, args []interface{}) (interface{}, error) {
	if args[0] == nil {
		return nil, nil
	}
	num, err := e.toNumber(args[0])
	if err != nil {
		return nil, err
	}
	return math.Ceil(num), nil
}

// roundBankers implements banker's rounding (round half to even)
// This matches JSONata's rounding behavior
func roundBankers(num float64, decimals int) float64 {
	if math.IsNaN(num) || math.IsInf(num, 0) {
		return num
	}

	shift := math.Pow(10, float64(decimals))
	shifted := num * shift

	// Get the integer and fractional parts
	floor := math.Floor(shifted)
	frac := shifted - floor

	// Check if we're exactly at 0.5
	if math.Abs(frac-0.5) < 1e-10 {
		// Round to nearest even
		if int64(floor)%2 == 0 {
			return floor / shift
		}
		return (floor + 1) / shift
	}

	// For other cases, use standard rounding (round half away from zero)
	return math.Round(shifted) / shift
}

func fnRound(ctx context.Context, e *Evaluator, evalCtx *EvalContext, args []interface{}) (interface{}, error) {
	if args[0] == nil {
		return nil, nil
	}
	num, err := e.toNumber(args[0])
	if err != nil {
		return nil, err
	}

	if len(args) == 1 {
		return roundBankers(num, 0), nil
	}

	if args[1] == nil {
		return nil, nil
	}
	precision, err := e.toNumber(args[1])
	if err != nil {
		return nil, err
	}

	decimals := int(precision)
	return roundBankers(num, decimals), nil
}

func fnSqrt(ctx context.Context, e *Evaluator, evalCtx *EvalContext, args []interface{}) (interface{}, error) {
	if args[0] == nil {
		return nil, nil
	}
	num, err := e.toNumber(args[0])
	if err != nil {
		return nil, err
	}
	result := math.Sqrt(num)
	if math.IsNaN(result) {
		return nil, fmt.Errorf("D3060: Sqrt function: out of domain (num=%v)", num)
	}
	return result, nil
}

func fnPower(ctx context.Context, e *Evaluator, evalCtx *EvalContext, args []interface{}) (interface{}, error) {
	if args[0] == nil || args[1] == nil {
		return nil, nil
	}
	base, err := e.toNumber(args[0])
	if err != nil {
		return nil, err
	}

	exponent, err := e.toNumber(args[1])
	if err != nil {
		return nil, err
	}

	result := math.Pow(base, exponent)

	// Check for domain errors (NaN or Inf)
	if math.IsNaN(result) || math.IsInf(result, 0) {
		return nil, fmt.Errorf("D3061: Power function: out of domain (base=%v, exponent=%v)", base, exponent)
	}

	return result, nil
}

