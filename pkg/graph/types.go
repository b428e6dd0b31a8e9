package graph

import (
	"fmt"
	"strings"

	"github.com/expr-lang/expr"
	"github.com/expr-lang/expr/vm"
)

// TypeMatcher decides whether an output of type from may feed an input of
// type to.
type TypeMatcher interface {
	Match(from, to string) bool
}

// DefaultMatcher treats an empty type and "*" as wildcards, compares
// case-insensitively and accepts comma-separated alternatives.
type DefaultMatcher struct{}

func (DefaultMatcher) Match(from, to string) bool {
	if isWildcard(from) || isWildcard(to) {
		return true
	}
	from, to = strings.ToLower(from), strings.ToLower(to)
	if from == to {
		return true
	}
	if !strings.Contains(from, ",") && !strings.Contains(to, ",") {
		return false
	}
	for _, a := range strings.Split(from, ",") {
		for _, b := range strings.Split(to, ",") {
			a, b = strings.TrimSpace(a), strings.TrimSpace(b)
			if isWildcard(a) || isWildcard(b) || a == b {
				return true
			}
		}
	}
	return false
}

func isWildcard(t string) bool {
	return t == "" || t == "*"
}

// exactMatch compares types without wildcards.
func exactMatch(a, b string) bool {
	if isWildcard(a) || isWildcard(b) {
		return false
	}
	for _, x := range strings.Split(strings.ToLower(a), ",") {
		for _, y := range strings.Split(strings.ToLower(b), ",") {
			x, y = strings.TrimSpace(x), strings.TrimSpace(y)
			if !isWildcard(x) && x == y {
				return true
			}
		}
	}
	return false
}

// ExprMatcher evaluates a boolean expression over from and to, e.g.
//
//	from == to || to == "any" || (from == "int" && to == "float")
type ExprMatcher struct {
	rule    string
	program *vm.Program
}

// NewExprMatcher compiles rule.
func NewExprMatcher(rule string) (*ExprMatcher, error) {
	program, err := expr.Compile(rule, expr.Env(matchEnv("", "")), expr.AsBool())
	if err != nil {
		return nil, fmt.Errorf("compile type rule: %w", err)
	}
	return &ExprMatcher{rule: rule, program: program}, nil
}

func matchEnv(from, to string) map[string]any {
	return map[string]any{"from": from, "to": to}
}

// Rule returns the source expression.
func (m *ExprMatcher) Rule() string { return m.rule }

// Match runs the rule. Evaluation errors count as a mismatch.
func (m *ExprMatcher) Match(from, to string) bool {
	out, err := expr.Run(m.program, matchEnv(from, to))
	if err != nil {
		return false
	}
	ok, _ := out.(bool)
	return ok
}
