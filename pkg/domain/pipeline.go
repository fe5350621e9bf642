package domain

// Definition is a named, ordered composition of steps executed against an
// evolving context. Definitions are immutable once loaded; a running pipeline
// never writes back into its definition.
type Definition struct {
	Name  string
	Steps []Step
}

// StepKind discriminates the closed set of step variants.
type StepKind string

const (
	KindSimple      StepKind = "simple"
	KindParallel    StepKind = "parallel"
	KindConditional StepKind = "conditional"
	KindLoop        StepKind = "loop"
	KindBatch       StepKind = "batch"
)

// Step is the closed union of pipeline step variants. Each variant carries
// only the fields valid for its kind; there is no generic options bag shared
// across kinds.
type Step interface {
	Kind() StepKind
}

// Option keys recognized on a SimpleStep's Options map. Everything else in
// Options is passed through untouched to the provider.
const (
	// OptionProvider names the primary provider, overriding configured and
	// capability-based routing.
	OptionProvider = "provider"
	// OptionFallbacks lists alternate providers tried in order after the
	// primary is exhausted.
	OptionFallbacks = "fallbacks"
	// OptionPreserve keeps context data unchanged; the step output is stored
	// under a metadata key instead of replacing data.
	OptionPreserve = "preserve"
	// OptionResultKey sets the metadata key used when OptionPreserve is set.
	// Defaults to the step's task type.
	OptionResultKey = "result_key"
)

// SimpleStep invokes one task type against a provider resolved at execution
// time. Options hold provider-specific knobs plus the routing keys above.
type SimpleStep struct {
	Type    string
	Options map[string]any
}

func (SimpleStep) Kind() StepKind { return KindSimple }

// Providers returns the caller-declared provider precedence (primary first,
// then explicit fallbacks), or nil when the step declares none.
func (s SimpleStep) Providers() []string {
	var names []string
	if primary, ok := s.Options[OptionProvider].(string); ok && primary != "" {
		names = append(names, primary)
	}
	switch fallbacks := s.Options[OptionFallbacks].(type) {
	case []string:
		names = append(names, fallbacks...)
	case []any:
		for _, f := range fallbacks {
			if name, ok := f.(string); ok && name != "" {
				names = append(names, name)
			}
		}
	}
	return names
}

// Preserve reports whether the step keeps data unchanged and annotates
// metadata with its output instead.
func (s SimpleStep) Preserve() bool {
	preserve, _ := s.Options[OptionPreserve].(bool)
	return preserve
}

// ResultKey returns the metadata key used when Preserve is set.
func (s SimpleStep) ResultKey() string {
	if key, ok := s.Options[OptionResultKey].(string); ok && key != "" {
		return key
	}
	return s.Type
}

// ParallelStep runs each branch concurrently against a fork of the pre-step
// context. Branches are mutually independent: no branch sees another branch's
// intermediate output, and merging happens only after every branch finished.
type ParallelStep struct {
	Branches [][]Step
}

func (ParallelStep) Kind() StepKind { return KindParallel }

// ConditionalStep evaluates When against the current context and executes
// Then or Else as a nested sequence. A predicate evaluation failure is a step
// failure, never a silent false.
type ConditionalStep struct {
	When Predicate
	Then []Step
	Else []Step
}

func (ConditionalStep) Kind() StepKind { return KindConditional }

// LoopStep re-evaluates While before every iteration (zero iterations is
// valid) and executes Steps each pass. The engine enforces a hard iteration
// ceiling so a buggy predicate terminates instead of hanging.
type LoopStep struct {
	While Predicate
	Steps []Step
}

func (LoopStep) Kind() StepKind { return KindLoop }

// BatchStep partitions an input sequence into chunks of Size and executes
// Steps once per chunk, reassembling outputs in input order. Items is a
// dotted accessor into data locating the sequence; empty means data itself.
type BatchStep struct {
	Size  int
	Items string
	Steps []Step
}

func (BatchStep) Kind() StepKind { return KindBatch }

// StepTypeName returns a human-readable type label for a step, used in logs
// and errors.
func StepTypeName(step Step) string {
	if simple, ok := step.(SimpleStep); ok {
		return simple.Type
	}
	return string(step.Kind())
}

// Scope is the read-only view of a context exposed to predicates.
type Scope struct {
	Data        any
	StepResults []StepResult
	Metadata    map[string]any
}

// PredicateFunc is a caller-supplied predicate over the current scope.
type PredicateFunc func(Scope) (bool, error)

// Predicate decides conditional and loop branching. Exactly one of Expr
// (evaluated by the engine's expression evaluator) or Fn should be set;
// Fn wins when both are present. Arbitrary code evaluation is deliberately
// not supported.
type Predicate struct {
	Expr string
	Fn   PredicateFunc
}

// IsZero reports whether the predicate is unset.
func (p Predicate) IsZero() bool { return p.Expr == "" && p.Fn == nil }
