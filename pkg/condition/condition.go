// Package condition defines the contract used by validation rules and field
// bindings to decide whether a rule applies to the current draft values.
package condition

// Evaluator reports whether a rule holds for the supplied context. An empty
// rule always holds.
type Evaluator interface {
	Eval(rule string, ctx Context) (bool, error)
}

// Context provides the inputs to an Evaluator. Values is the draft being
// edited; Extras carries caller-supplied data such as the current user and is
// reachable through the `extras.` prefix.
type Context struct {
	Values map[string]any
	Extras map[string]any
}

// EvaluatorFunc adapts a function into an Evaluator.
type EvaluatorFunc func(rule string, ctx Context) (bool, error)

// Eval delegates to the underlying function.
func (fn EvaluatorFunc) Eval(rule string, ctx Context) (bool, error) {
	return fn(rule, ctx)
}

// Always is an Evaluator that treats every rule as satisfied.
var Always Evaluator = EvaluatorFunc(func(string, Context) (bool, error) { return true, nil })
