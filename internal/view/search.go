package view

import (
	"fmt"
	"strings"

	"github.com/expr-lang/expr"

	"rhystmorgan/mira/internal/models"
)

// MatchTerm matches contacts having any serialized value that contains term,
// ignoring case. Lists match when any element does; unset values are skipped.
// An empty term matches everything.
func MatchTerm(term string) Predicate {
	kw := strings.ToLower(strings.TrimSpace(term))
	if kw == "" {
		return acceptAll
	}

	matches := func(s string) bool {
		return strings.Contains(strings.ToLower(s), kw)
	}

	return func(c *models.Contact) bool {
		for _, v := range c.Serialize() {
			switch t := v.(type) {
			case nil:
				continue
			case string:
				if matches(t) {
					return true
				}
			case []string:
				for _, item := range t {
					if matches(item) {
						return true
					}
				}
			case []any:
				for _, item := range t {
					if item != nil && matches(fmt.Sprint(item)) {
						return true
					}
				}
			default:
				if matches(fmt.Sprint(t)) {
					return true
				}
			}
		}
		return false
	}
}

// Compile turns a boolean expr-lang expression into a predicate. Every schema
// key is defined in the environment, with singles as strings and multis as
// string lists, along with id. Unknown names fail to compile; evaluation
// errors count as no match.
func Compile(expression string) (Predicate, error) {
	program, err := expr.Compile(expression, expr.Env(environment(models.NewContact("", nil))), expr.AsBool())
	if err != nil {
		return nil, fmt.Errorf("invalid filter expression: %w", err)
	}

	return func(c *models.Contact) bool {
		out, err := expr.Run(program, environment(c))
		if err != nil {
			return false
		}
		ok, _ := out.(bool)
		return ok
	}, nil
}

func environment(c *models.Contact) map[string]any {
	env := make(map[string]any)
	for _, p := range models.SingleProperties() {
		env[p.Key] = c.String(p.Key)
	}
	for _, p := range models.MultiProperties() {
		list := c.List(p.Key)
		if list == nil {
			list = []string{}
		}
		env[p.Key] = list
	}
	env[models.IDKey] = c.ID()
	return env
}
