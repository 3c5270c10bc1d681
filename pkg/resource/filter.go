package resource

import (
	"fmt"
	"strings"

	"github.com/expr-lang/expr"
)

// Filter returns the items for which the boolean expression holds. Entity
// fields are exposed as variables alongside "id"; unknown names evaluate to
// nil. An empty expression returns every item.
//
//	resource.Filter(items, `status == "pending" && total > 10`)
func Filter(items []Entity, expression string) ([]Entity, error) {
	if strings.TrimSpace(expression) == "" {
		return items, nil
	}
	program, err := expr.Compile(expression, expr.AsBool(), expr.AllowUndefinedVariables())
	if err != nil {
		return nil, fmt.Errorf("compile filter %q: %w", expression, err)
	}
	out := make([]Entity, 0, len(items))
	for _, e := range items {
		env := make(map[string]any, len(e.Fields)+1)
		for k, v := range e.Fields {
			env[k] = v
		}
		env[DefaultIDField] = e.ID.Value()
		result, err := expr.Run(program, env)
		if err != nil {
			return nil, fmt.Errorf("eval filter on %s: %w", e.ID, err)
		}
		if ok, _ := result.(bool); ok {
			out = append(out, e)
		}
	}
	return out, nil
}
