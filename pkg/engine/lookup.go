package engine

import (
	"strconv"
	"strings"

	"github.com/conduitai/conduit-oss/pkg/domain"
	"github.com/conduitai/conduit-oss/pkg/engine/expr"
)

// scopeLookup exposes a run scope to the expression evaluator. Supported
// roots:
//
//	data          current payload, with dotted descent into maps and slices
//	metadata      per-run annotations written by preserve steps
//	steps.count   number of completed step results
//	result        output of the most recent step, with dotted descent
func scopeLookup(scope domain.Scope) expr.LookupFunc {
	return func(path string) (any, bool) {
		root, rest, _ := strings.Cut(path, ".")
		switch root {
		case "data":
			if rest == "" {
				return scope.Data, true
			}
			return dig(scope.Data, rest)
		case "metadata":
			if rest == "" {
				return nil, false
			}
			key, tail, _ := strings.Cut(rest, ".")
			value, ok := scope.Metadata[key]
			if !ok {
				return nil, false
			}
			if tail == "" {
				return value, true
			}
			return dig(value, tail)
		case "steps":
			if rest == "count" {
				return len(scope.StepResults), true
			}
			return nil, false
		case "result":
			if len(scope.StepResults) == 0 {
				return nil, false
			}
			last := scope.StepResults[len(scope.StepResults)-1].Output
			if rest == "" {
				return last, true
			}
			return dig(last, rest)
		default:
			return nil, false
		}
	}
}

// dig descends a dotted path through nested maps and slices.
func dig(value any, path string) (any, bool) {
	for path != "" {
		var key string
		key, path, _ = strings.Cut(path, ".")
		switch v := value.(type) {
		case map[string]any:
			next, ok := v[key]
			if !ok {
				return nil, false
			}
			value = next
		case []any:
			idx, err := strconv.Atoi(key)
			if err != nil || idx < 0 || idx >= len(v) {
				return nil, false
			}
			value = v[idx]
		default:
			return nil, false
		}
	}
	return value, true
}
