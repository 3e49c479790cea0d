package resource

import (
	"context"
	"fmt"

	"github.com/imgaoyue/squealy/internal/engine"
	"github.com/imgaoyue/squealy/internal/querysql"
)

// Rule is a compiled authorization predicate.
type Rule struct {
	ID    string
	query *querysql.Template
}

// Authorizer evaluates rules in declaration order against one engine.
type Authorizer struct {
	Rules  []Rule
	Engine engine.Engine
}

// Authorize renders and runs each rule with the engine's bind style. The
// first rule returning zero rows yields *ForbiddenError; later rules are not
// evaluated. No rules permits.
func (a Authorizer) Authorize(ctx context.Context, data map[string]any) error {
	for _, rule := range a.Rules {
		q, err := rule.query.Render(data, a.Engine.BindStyle())
		if err != nil {
			return fmt.Errorf("authorization rule %q: %w", rule.ID, err)
		}
		tbl, err := a.Engine.Execute(ctx, q.SQL, q.Args)
		if err != nil {
			return fmt.Errorf("authorization rule %q: %w", rule.ID, err)
		}
		if tbl.Len() == 0 {
			return &ForbiddenError{RuleID: rule.ID}
		}
	}
	return nil
}
