package match

import (
	"fmt"
	"sort"
	"strings"

	"github.com/pact-foundation/pact-go/pkg/matchers"
)

// matchValues compares header or query values: case-insensitive string
// equality by default (per §4.1's per-context default behaviors), or
// whatever RuleSet governs the selector.
func matchValues(tree matchers.RuleTree, kind MismatchKind, selector string, expected, actual []string) []Mismatch {
	if rs, ok := lookupRule(tree, selector); ok {
		joined := strings.Join(actual, ", ")
		expectedAny := any(strings.Join(expected, ", "))
		if len(expected) == 1 {
			expectedAny = expected[0]
		}
		var actualAny any = joined
		if len(actual) == 1 {
			actualAny = actual[0]
		}
		return evaluateRuleSet(rs, kind, selector, expectedAny, actualAny)
	}
	if len(expected) != len(actual) {
		return []Mismatch{mismatch(kind, selector, expected, actual, "", fmt.Sprintf("expected %d value(s), got %d", len(expected), len(actual)))}
	}
	for i := range expected {
		if !strings.EqualFold(expected[i], actual[i]) {
			return []Mismatch{mismatch(kind, selector, expected, actual, "", fmt.Sprintf("expected %q, got %q", expected[i], actual[i]))}
		}
	}
	return nil
}

// matchHeaders checks that every header named in expected is present in
// actual (case-insensitively keyed, as HTTP requires) and satisfies its
// matching rule or the default case-insensitive equality. Extra headers on
// actual are ignored.
func matchHeaders(tree matchers.RuleTree, expected, actual map[string][]string) []Mismatch {
	actualFolded := make(map[string][]string, len(actual))
	for k, v := range actual {
		actualFolded[strings.ToLower(k)] = v
	}
	var out []Mismatch
	for name, values := range expected {
		av, present := actualFolded[strings.ToLower(name)]
		if !present {
			out = append(out, mismatch(HeaderMismatch, name, values, nil, "", fmt.Sprintf("missing header %q", name)))
			continue
		}
		out = append(out, matchValues(tree, HeaderMismatch, name, values, av)...)
	}
	return out
}

// matchQuery checks every query parameter named in expected against actual,
// by default requiring case-insensitive string equality of values (§4.1's
// documented default for both headers and query), or whatever RuleSet
// governs the parameter name. Extra query parameters on actual are ignored.
func matchQuery(tree matchers.RuleTree, expected, actual map[string][]string) []Mismatch {
	var out []Mismatch
	names := make([]string, 0, len(expected))
	for name := range expected {
		names = append(names, name)
	}
	sort.Strings(names)
	for _, name := range names {
		values := expected[name]
		av, present := actual[name]
		if !present {
			out = append(out, mismatch(QueryMismatch, name, values, nil, "", fmt.Sprintf("missing query parameter %q", name)))
			continue
		}
		out = append(out, matchValues(tree, QueryMismatch, name, values, av)...)
	}
	return out
}
