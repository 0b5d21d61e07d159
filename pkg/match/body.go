package match

import (
	"fmt"

	"github.com/pact-foundation/pact-go/pkg/matchers"
)

// matchNode walks expected/actual in lockstep, applying whatever RuleSet
// governs selector (if any) and otherwise falling back to structural
// equality: object keys present in expected must be present in actual with
// matching values (extra actual keys are ignored), array elements are
// compared position by position, and scalars compare by value and type.
func matchNode(tree matchers.RuleTree, selector string, expected, actual any) []Mismatch {
	rs, ok := lookupRule(tree, selector)
	if !ok {
		return structuralCompare(tree, selector, expected, actual)
	}

	if ms := evaluateRuleSet(rs, BodyMismatch, selector, expected, actual); len(ms) > 0 {
		return ms
	}

	var out []Mismatch
	replaced := false
	for _, r := range rs.Rules {
		switch r.Kind {
		case matchers.KindValues:
			out = append(out, valuesRecurse(tree, selector, expected, actual, r)...)
			replaced = true
		case matchers.KindEachValue:
			out = append(out, eachValueRecurse(tree, selector, actual, r)...)
			replaced = true
		case matchers.KindArrayContains:
			out = append(out, arrayContainsRecurse(selector, actual, r)...)
			replaced = true
		case matchers.KindEachKey:
			out = append(out, eachKeyRecurse(selector, actual, r)...)
		case matchers.KindType:
			out = append(out, typeRecurse(tree, selector, expected, actual)...)
			replaced = true
		}
	}
	if replaced {
		return out
	}

	// A min/max/minMax rule on an array selector makes expected's first
	// element a template matched structurally against every actual element,
	// rather than requiring actual to have exactly len(expected) elements
	// (the array is a "some number of things shaped like this" matcher).
	if e, isArr := expected.([]any); isArr && len(e) > 0 && hasLengthRule(rs) {
		a, ok := actual.([]any)
		if !ok {
			return append(out, mismatch(BodyTypeMismatch, selector, "array", actual, "", "expected an array"))
		}
		template := e[0]
		for i, av := range a {
			out = append(out, matchNode(tree, indexSelector(selector, i), template, av)...)
		}
		return out
	}

	return append(out, structuralCompare(tree, selector, expected, actual)...)
}

// typeRecurse implements the "type" rule's documented recursive semantics
// (§3.1): for arrays, recurse per actual element against expected's first
// element as a template; for objects, recurse per known key; scalars
// compare by type only, never by value. A descendant governed by its own
// more specific rule still takes over via matchNodeTyped.
func typeRecurse(tree matchers.RuleTree, selector string, expected, actual any) []Mismatch {
	switch e := expected.(type) {
	case map[string]any:
		a, ok := actual.(map[string]any)
		if !ok {
			return []Mismatch{mismatch(BodyTypeMismatch, selector, "object", actual, matchers.KindType, "expected an object")}
		}
		var out []Mismatch
		for k, ev := range e {
			av, present := a[k]
			if !present {
				out = append(out, mismatch(BodyMismatch, childSelector(selector, k), ev, nil, matchers.KindType, fmt.Sprintf("missing key %q", k)))
				continue
			}
			out = append(out, matchNodeTyped(tree, childSelector(selector, k), ev, av)...)
		}
		return out

	case []any:
		a, ok := actual.([]any)
		if !ok {
			return []Mismatch{mismatch(BodyTypeMismatch, selector, "array", actual, matchers.KindType, "expected an array")}
		}
		if len(e) == 0 {
			return nil
		}
		template := e[0]
		var out []Mismatch
		for i, av := range a {
			out = append(out, matchNodeTyped(tree, indexSelector(selector, i), template, av)...)
		}
		return out

	default:
		if !sameJSONType(expected, actual) {
			return []Mismatch{mismatch(BodyMismatch, selector, expected, actual, matchers.KindType, fmt.Sprintf("expected %v to be the same type as %v", actual, expected))}
		}
		return nil
	}
}

// matchNodeTyped behaves like matchNode, but a node with no explicit rule
// of its own falls back to typeRecurse's type-equivalence comparison
// instead of structuralCompare's exact-value comparison, so type
// governance carries all the way down a recursion instead of only
// applying one level deep.
func matchNodeTyped(tree matchers.RuleTree, selector string, expected, actual any) []Mismatch {
	if _, ok := lookupRule(tree, selector); ok {
		return matchNode(tree, selector, expected, actual)
	}
	return typeRecurse(tree, selector, expected, actual)
}

func hasLengthRule(rs matchers.RuleSet) bool {
	for _, r := range rs.Rules {
		switch r.Kind {
		case matchers.KindMin, matchers.KindMax, matchers.KindMinMax:
			return true
		}
	}
	return false
}

func structuralCompare(tree matchers.RuleTree, selector string, expected, actual any) []Mismatch {
	switch e := expected.(type) {
	case map[string]any:
		a, ok := actual.(map[string]any)
		if !ok {
			return []Mismatch{mismatch(BodyTypeMismatch, selector, "object", actual, "", "expected an object")}
		}
		var out []Mismatch
		for k, ev := range e {
			av, present := a[k]
			if !present {
				out = append(out, mismatch(BodyMismatch, childSelector(selector, k), ev, nil, "", fmt.Sprintf("missing key %q", k)))
				continue
			}
			out = append(out, matchNode(tree, childSelector(selector, k), ev, av)...)
		}
		return out

	case []any:
		a, ok := actual.([]any)
		if !ok {
			return []Mismatch{mismatch(BodyTypeMismatch, selector, "array", actual, "", "expected an array")}
		}
		var out []Mismatch
		if len(e) != len(a) {
			out = append(out, mismatch(BodyMismatch, selector, len(e), len(a), "", fmt.Sprintf("expected %d elements, got %d", len(e), len(a))))
		}
		n := len(e)
		if len(a) < n {
			n = len(a)
		}
		for i := 0; i < n; i++ {
			out = append(out, matchNode(tree, indexSelector(selector, i), e[i], a[i])...)
		}
		return out

	default:
		if !deepEqual(expected, actual) {
			return []Mismatch{mismatch(BodyMismatch, selector, expected, actual, "", fmt.Sprintf("expected %v, got %v", expected, actual))}
		}
		return nil
	}
}

// valuesRecurse applies rule's Sub RuleSet (or structural comparison when
// Sub is nil) to every value of an expected object, tolerating any actual
// key set superset of expected's.
func valuesRecurse(tree matchers.RuleTree, selector string, expected, actual any, rule matchers.Rule) []Mismatch {
	e, ok := expected.(map[string]any)
	if !ok {
		return nil
	}
	a, ok := actual.(map[string]any)
	if !ok {
		return []Mismatch{mismatch(BodyTypeMismatch, selector, "object", actual, rule.Kind, "expected an object")}
	}
	var out []Mismatch
	for k, ev := range e {
		av, present := a[k]
		if !present {
			out = append(out, mismatch(BodyMismatch, childSelector(selector, k), ev, nil, rule.Kind, fmt.Sprintf("missing key %q", k)))
			continue
		}
		if rule.Sub != nil {
			out = append(out, evaluateRuleSet(*rule.Sub, BodyMismatch, childSelector(selector, k), ev, av)...)
		} else {
			out = append(out, structuralCompare(tree, childSelector(selector, k), ev, av)...)
		}
	}
	return out
}

// eachKeyRecurse checks every key of the actual object against rule's Sub
// RuleSet (e.g. a regex every property name must satisfy).
func eachKeyRecurse(selector string, actual any, rule matchers.Rule) []Mismatch {
	a, ok := actual.(map[string]any)
	if !ok || rule.Sub == nil {
		return nil
	}
	var out []Mismatch
	for k := range a {
		out = append(out, evaluateRuleSet(*rule.Sub, BodyMismatch, childSelector(selector, k), nil, k)...)
	}
	return out
}

// eachValueRecurse checks every value of the actual object or array against
// rule's Sub RuleSet.
func eachValueRecurse(tree matchers.RuleTree, selector string, actual any, rule matchers.Rule) []Mismatch {
	if rule.Sub == nil {
		return nil
	}
	var out []Mismatch
	switch a := actual.(type) {
	case map[string]any:
		for k, v := range a {
			out = append(out, evaluateRuleSet(*rule.Sub, BodyMismatch, childSelector(selector, k), nil, v)...)
		}
	case []any:
		for i, v := range a {
			out = append(out, evaluateRuleSet(*rule.Sub, BodyMismatch, indexSelector(selector, i), nil, v)...)
		}
	}
	return out
}

// arrayContainsRecurse checks that each variant RuleSet matches at least one
// element of the actual array, regardless of position.
func arrayContainsRecurse(selector string, actual any, rule matchers.Rule) []Mismatch {
	a, ok := actual.([]any)
	if !ok {
		return []Mismatch{mismatch(BodyTypeMismatch, selector, "array", actual, rule.Kind, "expected an array")}
	}
	var out []Mismatch
	for vi, variant := range rule.Variants {
		matched := false
		for _, elem := range a {
			if len(evaluateRuleSet(variant, BodyMismatch, selector, nil, elem)) == 0 {
				matched = true
				break
			}
		}
		if !matched {
			out = append(out, mismatch(BodyMismatch, selector, vi, actual, rule.Kind, fmt.Sprintf("no element satisfies variant %d", vi)))
		}
	}
	return out
}
