// Package expression provides a sandboxed boolean-expression evaluator used
// by the conditional step executor. It evaluates short expressions against a
// flat variable namespace with no attribute access, no imports, and a hard
// wall-clock timeout, so a malicious or buggy "when" clause in a workflow
// definition can't escape into the host process.
package expression

import (
	"context"
	"fmt"
	"regexp"
	"strings"
	"sync"
	"time"

	"github.com/expr-lang/expr"
	"github.com/expr-lang/expr/ast"
	"github.com/expr-lang/expr/parser"
	"github.com/expr-lang/expr/vm"
	"github.com/tombarlow/stepwise/pkg/errors"
)

// MaxExpressionLength bounds the source text of a single expression.
// Expressions longer than this are rejected before parsing.
const MaxExpressionLength = 256

// EvalTimeout bounds how long a single Evaluate call may run the compiled
// program before it is abandoned as a timeout.
const EvalTimeout = 100 * time.Millisecond

var attributeAccessPattern = regexp.MustCompile(`[A-Za-z_]\.`)

// Evaluator evaluates boolean expressions against a flat namespace of
// context variables. It caches compiled programs, keyed by expression text.
type Evaluator struct {
	mu    sync.RWMutex
	cache map[string]*vm.Program
	names map[string][]string
}

// New creates a new expression evaluator.
func New() *Evaluator {
	return &Evaluator{
		cache: make(map[string]*vm.Program),
		names: make(map[string][]string),
	}
}

// whitelistedFuncs are the only callable names an expression may use beyond
// the variables supplied in its namespace.
func whitelistedFuncs() map[string]interface{} {
	return map[string]interface{}{
		"min": func(a, b float64) float64 {
			if a < b {
				return a
			}
			return b
		},
		"max": func(a, b float64) float64 {
			if a > b {
				return a
			}
			return b
		},
		"abs": func(a float64) float64 {
			if a < 0 {
				return -a
			}
			return a
		},
		"len": func(v interface{}) int {
			switch x := v.(type) {
			case string:
				return len(x)
			case []interface{}:
				return len(x)
			case map[string]interface{}:
				return len(x)
			default:
				return 0
			}
		},
		"str":   func(v interface{}) string { return fmt.Sprintf("%v", v) },
		"int":   toInt,
		"float": toFloat,
		"bool":  toBool,
	}
}

func toInt(v interface{}) int {
	switch x := v.(type) {
	case int:
		return x
	case int64:
		return int(x)
	case float64:
		return int(x)
	case string:
		var i int
		fmt.Sscanf(x, "%d", &i)
		return i
	case bool:
		if x {
			return 1
		}
		return 0
	default:
		return 0
	}
}

func toFloat(v interface{}) float64 {
	switch x := v.(type) {
	case float64:
		return x
	case int:
		return float64(x)
	case int64:
		return float64(x)
	case string:
		var f float64
		fmt.Sscanf(x, "%g", &f)
		return f
	default:
		return 0
	}
}

func toBool(v interface{}) bool {
	switch x := v.(type) {
	case bool:
		return x
	case string:
		return x != "" && x != "false"
	case float64:
		return x != 0
	case int:
		return x != 0
	default:
		return v != nil
	}
}

// Evaluate evaluates expression against ns, the flat namespace of context
// variables visible to it. An empty expression is invalid: a conditional
// step must say what it's testing.
//
// Errors returned are always one of *errors.SecurityError (disallowed
// construct), *errors.NameError (unresolved identifier), *errors.TimeoutError
// (exceeded EvalTimeout), or *errors.ValidationError (parse failure, empty
// expression, or non-boolean result).
func (e *Evaluator) Evaluate(ctx context.Context, expression string, ns map[string]interface{}) (bool, error) {
	if expression == "" {
		return false, &errors.ValidationError{
			Field:      "expression",
			Message:    "expression cannot be empty",
			Suggestion: "provide a boolean expression for the conditional step's \"when\" clause",
		}
	}

	if err := checkSecurity(expression); err != nil {
		return false, err
	}

	program, names, err := e.compile(expression)
	if err != nil {
		return false, &errors.ValidationError{
			Field:      "expression",
			Message:    fmt.Sprintf("failed to compile expression: %s", err.Error()),
			Suggestion: "check expression syntax",
		}
	}

	funcs := whitelistedFuncs()
	for _, name := range names {
		if _, isFunc := funcs[name]; isFunc {
			continue
		}
		if _, exists := ns[name]; !exists {
			return false, &errors.NameError{Name: name}
		}
	}

	evalCtx := make(map[string]interface{}, len(ns)+len(funcs))
	for k, v := range ns {
		evalCtx[k] = v
	}
	for k, v := range funcs {
		evalCtx[k] = v
	}

	resultCh := make(chan interface{}, 1)
	errCh := make(chan error, 1)
	timeoutCtx, cancel := context.WithTimeout(ctx, EvalTimeout)
	defer cancel()

	go func() {
		result, err := expr.Run(program, evalCtx)
		if err != nil {
			errCh <- err
			return
		}
		resultCh <- result
	}()

	select {
	case result := <-resultCh:
		boolResult, ok := result.(bool)
		if !ok {
			return false, &errors.ValidationError{
				Field:   "expression",
				Message: fmt.Sprintf("expression must return boolean, got %T", result),
			}
		}
		return boolResult, nil
	case err := <-errCh:
		return false, &errors.ValidationError{
			Field:   "expression",
			Message: fmt.Sprintf("expression evaluation failed: %s", err.Error()),
		}
	case <-timeoutCtx.Done():
		return false, &errors.TimeoutError{Operation: "expression evaluation", Duration: EvalTimeout}
	}
}

// checkSecurity rejects expressions before they ever reach the parser.
// The four checks are intentionally independent: an expression that dodges
// one must still clear the others.
func checkSecurity(expression string) error {
	if len(expression) > MaxExpressionLength {
		return &errors.SecurityError{Rule: "length", Message: fmt.Sprintf("expression exceeds %d characters", MaxExpressionLength)}
	}
	if strings.Contains(expression, "__") {
		return &errors.SecurityError{Rule: "dunder", Message: "double-underscore identifiers are not allowed"}
	}
	if strings.Contains(expression, "import") {
		return &errors.SecurityError{Rule: "import", Message: "import is not allowed"}
	}
	if attributeAccessPattern.MatchString(expression) {
		return &errors.SecurityError{Rule: "attribute-access", Message: "attribute access is not allowed; use the flat variable namespace"}
	}
	return nil
}

// compile parses and compiles expression, caching the program and the set
// of free identifiers it references (excluding whitelisted function names)
// for the namespace check in Evaluate.
func (e *Evaluator) compile(expression string) (*vm.Program, []string, error) {
	e.mu.RLock()
	if prog, ok := e.cache[expression]; ok {
		names := e.names[expression]
		e.mu.RUnlock()
		return prog, names, nil
	}
	e.mu.RUnlock()

	tree, err := parser.Parse(expression)
	if err != nil {
		return nil, nil, err
	}
	names := identifiers(tree.Node)

	env := make(map[string]interface{})
	for k, v := range whitelistedFuncs() {
		env[k] = v
	}
	for _, n := range names {
		if _, isFunc := env[n]; !isFunc {
			env[n] = nil
		}
	}

	program, err := expr.Compile(expression, expr.Env(env), expr.AllowUndefinedVariables(), expr.AsBool())
	if err != nil {
		return nil, nil, err
	}

	e.mu.Lock()
	e.cache[expression] = program
	if e.names == nil {
		e.names = make(map[string][]string)
	}
	e.names[expression] = names
	e.mu.Unlock()

	return program, names, nil
}

// identifiers walks the AST collecting every free identifier referenced,
// deduplicated, in first-seen order.
func identifiers(node ast.Node) []string {
	seen := make(map[string]bool)
	var names []string
	ast.Walk(&node, visitorFunc(func(n ast.Node) {
		if id, ok := n.(*ast.IdentifierNode); ok {
			if !seen[id.Value] {
				seen[id.Value] = true
				names = append(names, id.Value)
			}
		}
	}))
	return names
}

type visitorFunc func(ast.Node)

func (f visitorFunc) Visit(node *ast.Node) {
	f(*node)
}

// ClearCache clears the expression cache. Mainly useful for tests.
func (e *Evaluator) ClearCache() {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.cache = make(map[string]*vm.Program)
	e.names = make(map[string][]string)
}
