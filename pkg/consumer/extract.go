package consumer

import (
	"fmt"

	"github.com/pact-foundation/pact-go/pkg/matchers"
)

// extractValueSites walks a value tree built from plain JSON values,
// []any, map[string]any, and matchers.ValueSite leaves, and splits it into
// a plain example tree plus the sibling selector-keyed matching-rule and
// generator trees described in §9: the builder walks the tree and extracts
// rules/generators into sibling selector-keyed maps, rather than having
// the matcher engine type-switch on embedded matcher objects at match
// time.
func extractValueSites(selector string, v any) (content any, rules matchers.RuleTree, gens matchers.GeneratorTree) {
	rules = matchers.RuleTree{}
	gens = matchers.GeneratorTree{}
	content = extractInto(selector, v, rules, gens)
	if len(rules) == 0 {
		rules = nil
	}
	if len(gens) == 0 {
		gens = nil
	}
	return content, rules, gens
}

func extractInto(selector string, v any, rules matchers.RuleTree, gens matchers.GeneratorTree) any {
	switch vv := v.(type) {
	case matchers.ValueSite:
		if vv.Rule != nil {
			rules[selector] = matchers.And(*vv.Rule)
		}
		if vv.Generator != nil {
			gens[selector] = *vv.Generator
		}
		return extractInto(selector, vv.Example, rules, gens)

	case map[string]any:
		out := make(map[string]any, len(vv))
		for k, child := range vv {
			out[k] = extractInto(childSelector(selector, k), child, rules, gens)
		}
		return out

	case []any:
		out := make([]any, len(vv))
		for i, child := range vv {
			out[i] = extractInto(indexSelector(selector, i), child, rules, gens)
		}
		return out

	default:
		return v
	}
}

func childSelector(parent, key string) string {
	if parent == "$" {
		return "$." + key
	}
	return parent + "." + key
}

func indexSelector(parent string, i int) string {
	return fmt.Sprintf("%s[%d]", parent, i)
}
