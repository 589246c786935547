// Package guard evaluates configurable line-level guard rules before a
// movement touches storage. Rules are CEL expressions over the line's plain
// fields (qty ceilings per kind, warehouse allow-lists and the like), loaded
// from configuration and compiled once at startup.
package guard

import (
	"fmt"

	"github.com/google/cel-go/cel"

	"boxledger/internal/core/apperror"
)

// Rule is one named guard expression. The expression must evaluate to bool;
// false rejects the line.
type Rule struct {
	Name       string
	Expression string
}

// LineInput is the flattened view of a movement line a rule sees.
type LineInput struct {
	Kind          string
	Warehouse     string
	DestWarehouse string
	BoxID         string
	ItemCode      string
	Qty           int64
	Defect        bool
}

type compiledRule struct {
	name    string
	program cel.Program
}

// Guard holds the compiled rule set. A nil Guard accepts everything.
type Guard struct {
	rules []compiledRule
}

// New compiles the rule set. Compilation errors are configuration errors and
// fail startup.
func New(rules []Rule) (*Guard, error) {
	env, err := cel.NewEnv(
		cel.Variable("kind", cel.StringType),
		cel.Variable("warehouse", cel.StringType),
		cel.Variable("destWarehouse", cel.StringType),
		cel.Variable("boxId", cel.StringType),
		cel.Variable("itemCode", cel.StringType),
		cel.Variable("qty", cel.IntType),
		cel.Variable("defect", cel.BoolType),
	)
	if err != nil {
		return nil, fmt.Errorf("create guard env: %w", err)
	}

	g := &Guard{}
	for _, r := range rules {
		ast, iss := env.Compile(r.Expression)
		if iss.Err() != nil {
			return nil, fmt.Errorf("compile guard rule %q: %w", r.Name, iss.Err())
		}
		if ast.OutputType() != cel.BoolType {
			return nil, fmt.Errorf("guard rule %q must evaluate to bool, got %s", r.Name, ast.OutputType())
		}
		program, err := env.Program(ast)
		if err != nil {
			return nil, fmt.Errorf("program guard rule %q: %w", r.Name, err)
		}
		g.rules = append(g.rules, compiledRule{name: r.Name, program: program})
	}
	return g, nil
}

// CheckLine evaluates all rules against one line. The first failing rule
// rejects the line with a validation error naming the rule.
func (g *Guard) CheckLine(in LineInput) error {
	if g == nil {
		return nil
	}

	vars := map[string]any{
		"kind":          in.Kind,
		"warehouse":     in.Warehouse,
		"destWarehouse": in.DestWarehouse,
		"boxId":         in.BoxID,
		"itemCode":      in.ItemCode,
		"qty":           in.Qty,
		"defect":        in.Defect,
	}

	for _, r := range g.rules {
		out, _, err := r.program.Eval(vars)
		if err != nil {
			return apperror.NewValidation("guard rule evaluation failed").
				WithDetail("rule", r.name).
				WithCause(err)
		}
		allowed, ok := out.Value().(bool)
		if !ok || !allowed {
			return apperror.NewValidation("guard rule rejected the line").
				WithDetail("rule", r.name).
				WithDetail("box_id", in.BoxID)
		}
	}
	return nil
}
