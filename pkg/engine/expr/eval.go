package expr

import (
	"context"
	"fmt"
	"strconv"
	"strings"
)

type binaryNode struct {
	op    tokenKind
	left  node
	right node
}

type notNode struct{ operand node }

type negNode struct{ operand node }

type identNode struct{ name string }

type literalNode struct{ value any }

func (n *binaryNode) eval(ctx context.Context, lookup LookupFunc) (any, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	left, err := n.left.eval(ctx, lookup)
	if err != nil {
		return nil, err
	}

	// && and || short-circuit; the right operand is only evaluated when
	// needed.
	switch n.op {
	case tokAnd, tokOr:
		lb, err := asBool(left)
		if err != nil {
			return nil, err
		}
		if n.op == tokAnd && !lb {
			return false, nil
		}
		if n.op == tokOr && lb {
			return true, nil
		}
		right, err := n.right.eval(ctx, lookup)
		if err != nil {
			return nil, err
		}
		return asBool(right)
	}

	right, err := n.right.eval(ctx, lookup)
	if err != nil {
		return nil, err
	}

	switch n.op {
	case tokEq:
		return valuesEqual(left, right)
	case tokNeq:
		eq, err := valuesEqual(left, right)
		if err != nil {
			return nil, err
		}
		return !eq, nil
	default:
		return order(left, right, n.op)
	}
}

func (n *notNode) eval(ctx context.Context, lookup LookupFunc) (any, error) {
	value, err := n.operand.eval(ctx, lookup)
	if err != nil {
		return nil, err
	}
	b, err := asBool(value)
	if err != nil {
		return nil, err
	}
	return !b, nil
}

func (n *negNode) eval(ctx context.Context, lookup LookupFunc) (any, error) {
	value, err := n.operand.eval(ctx, lookup)
	if err != nil {
		return nil, err
	}
	f, ok := asFloat(value)
	if !ok {
		return nil, fmt.Errorf("%w: unary - expects a numeric operand", ErrTypeMismatch)
	}
	return -f, nil
}

func (n *identNode) eval(ctx context.Context, lookup LookupFunc) (any, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	value, ok := lookup(n.name)
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnknownIdentifier, n.name)
	}
	return value, nil
}

func (n *literalNode) eval(context.Context, LookupFunc) (any, error) {
	return n.value, nil
}

func asBool(value any) (bool, error) {
	b, ok := value.(bool)
	if !ok {
		return false, fmt.Errorf("%w: expected boolean, got %T", ErrTypeMismatch, value)
	}
	return b, nil
}

func asFloat(value any) (float64, bool) {
	switch v := value.(type) {
	case float64:
		return v, true
	case float32:
		return float64(v), true
	case int:
		return float64(v), true
	case int32:
		return float64(v), true
	case int64:
		return float64(v), true
	case uint:
		return float64(v), true
	case uint32:
		return float64(v), true
	case uint64:
		return float64(v), true
	case string:
		if f, err := strconv.ParseFloat(strings.TrimSpace(v), 64); err == nil {
			return f, true
		}
	}
	return 0, false
}

func valuesEqual(left, right any) (bool, error) {
	if left == nil || right == nil {
		return left == right, nil
	}
	if lf, ok := asFloat(left); ok {
		if rf, ok := asFloat(right); ok {
			return lf == rf, nil
		}
	}
	switch l := left.(type) {
	case string:
		if r, ok := right.(string); ok {
			return l == r, nil
		}
	case bool:
		if r, ok := right.(bool); ok {
			return l == r, nil
		}
	}
	return false, fmt.Errorf("%w: cannot compare %T and %T", ErrTypeMismatch, left, right)
}

func order(left, right any, op tokenKind) (bool, error) {
	if lf, ok := asFloat(left); ok {
		if rf, ok := asFloat(right); ok {
			switch op {
			case tokGt:
				return lf > rf, nil
			case tokGte:
				return lf >= rf, nil
			case tokLt:
				return lf < rf, nil
			case tokLte:
				return lf <= rf, nil
			}
		}
	}
	if ls, ok := left.(string); ok {
		if rs, ok := right.(string); ok {
			switch op {
			case tokGt:
				return ls > rs, nil
			case tokGte:
				return ls >= rs, nil
			case tokLt:
				return ls < rs, nil
			case tokLte:
				return ls <= rs, nil
			}
		}
	}
	return false, fmt.Errorf("%w: cannot order %T and %T", ErrTypeMismatch, left, right)
}
