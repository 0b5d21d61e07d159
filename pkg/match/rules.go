package match

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/pact-foundation/pact-go/internal/dateformat"
	"github.com/pact-foundation/pact-go/pkg/matchers"
)

// evaluateRule checks a single rule against (expected, actual) at selector,
// returning nil on acceptance or a single Mismatch on rejection. Kinds that
// require recursing into children (type, values, eachKey, eachValue,
// arrayContains) are handled by the caller (body.go); this function only
// judges the node itself.
func evaluateRule(rule matchers.Rule, ctxKind MismatchKind, selector string, expected, actual any) *Mismatch {
	switch rule.Kind {
	case matchers.KindEquality:
		if !deepEqual(expected, actual) {
			m := mismatch(ctxKind, selector, expected, actual, rule.Kind, fmt.Sprintf("expected %v to equal %v", actual, expected))
			return &m
		}
		return nil

	case matchers.KindType:
		if !sameJSONType(expected, actual) {
			m := mismatch(ctxKind, selector, expected, actual, rule.Kind, fmt.Sprintf("expected %v to be the same type as %v", actual, expected))
			return &m
		}
		return nil

	case matchers.KindRegex:
		s, ok := actual.(string)
		if !ok {
			m := mismatch(ctxKind, selector, rule.Pattern, actual, rule.Kind, "expected a string to match regex")
			return &m
		}
		re, err := regexp.Compile(rule.Pattern)
		if err != nil {
			m := mismatch(ctxKind, selector, rule.Pattern, actual, rule.Kind, fmt.Sprintf("invalid regex: %v", err))
			return &m
		}
		if !re.MatchString(s) {
			m := mismatch(ctxKind, selector, rule.Pattern, actual, rule.Kind, fmt.Sprintf("%q does not match pattern %q", s, rule.Pattern))
			return &m
		}
		return nil

	case matchers.KindInclude:
		s, ok := actual.(string)
		if !ok || !strings.Contains(s, rule.Pattern) {
			m := mismatch(ctxKind, selector, rule.Pattern, actual, rule.Kind, fmt.Sprintf("expected %v to include %q", actual, rule.Pattern))
			return &m
		}
		return nil

	case matchers.KindInteger:
		if !isInteger(actual) {
			m := mismatch(ctxKind, selector, "integer", actual, rule.Kind, fmt.Sprintf("expected %v to be an integer", actual))
			return &m
		}
		return nil

	case matchers.KindDecimal:
		if !isNumber(actual) {
			m := mismatch(ctxKind, selector, "decimal", actual, rule.Kind, fmt.Sprintf("expected %v to be a decimal", actual))
			return &m
		}
		return nil

	case matchers.KindNumber:
		if !isNumber(actual) {
			m := mismatch(ctxKind, selector, "number", actual, rule.Kind, fmt.Sprintf("expected %v to be a number", actual))
			return &m
		}
		return nil

	case matchers.KindBoolean:
		if _, ok := actual.(bool); !ok {
			m := mismatch(ctxKind, selector, "boolean", actual, rule.Kind, fmt.Sprintf("expected %v to be a boolean", actual))
			return &m
		}
		return nil

	case matchers.KindNull:
		if actual != nil {
			m := mismatch(ctxKind, selector, nil, actual, rule.Kind, fmt.Sprintf("expected %v to be null", actual))
			return &m
		}
		return nil

	case matchers.KindTimestamp, matchers.KindDate, matchers.KindTime:
		s, ok := actual.(string)
		if !ok {
			m := mismatch(ctxKind, selector, rule.Format, actual, rule.Kind, "expected a string to parse")
			return &m
		}
		layout := defaultLayoutFor(rule.Kind)
		if rule.Format != "" {
			layout = dateformat.ToGoLayout(rule.Format)
		}
		if _, err := time.Parse(layout, s); err != nil {
			m := mismatch(ctxKind, selector, rule.Format, actual, rule.Kind, fmt.Sprintf("%q does not parse with format %q: %v", s, rule.Format, err))
			return &m
		}
		return nil

	case matchers.KindContentType:
		s, _ := actual.(string)
		if !strings.HasPrefix(strings.ToLower(s), strings.ToLower(rule.MIME)) {
			m := mismatch(BodyTypeMismatch, selector, rule.MIME, actual, rule.Kind, fmt.Sprintf("expected content type %q, got %q", rule.MIME, s))
			return &m
		}
		return nil

	case matchers.KindNotEmpty:
		if isEmptyValue(actual) {
			m := mismatch(ctxKind, selector, "notEmpty", actual, rule.Kind, "expected a non-empty value")
			return &m
		}
		return nil

	case matchers.KindSemver:
		s, ok := actual.(string)
		if !ok || !semverPattern.MatchString(s) {
			m := mismatch(ctxKind, selector, "semver", actual, rule.Kind, fmt.Sprintf("%v is not a valid semantic version", actual))
			return &m
		}
		return nil

	case matchers.KindStatusCode:
		code, ok := toInt(actual)
		if !ok {
			m := mismatch(StatusMismatch, selector, rule.Class, actual, rule.Kind, "expected a numeric status code")
			return &m
		}
		if rule.Class != "" {
			if !statusInClass(code, rule.Class) {
				m := mismatch(StatusMismatch, selector, rule.Class, actual, rule.Kind, fmt.Sprintf("status %d is not in class %q", code, rule.Class))
				return &m
			}
			return nil
		}
		if code != rule.Min {
			m := mismatch(StatusMismatch, selector, rule.Min, actual, rule.Kind, fmt.Sprintf("expected status %d, got %d", rule.Min, code))
			return &m
		}
		return nil

	case matchers.KindMin:
		n, ok := lengthOf(actual)
		if !ok || n < rule.Min {
			m := mismatch(ctxKind, selector, rule.Min, actual, rule.Kind, fmt.Sprintf("expected at least %d elements", rule.Min))
			return &m
		}
		return nil

	case matchers.KindMax:
		n, ok := lengthOf(actual)
		if !ok || n > rule.Max {
			m := mismatch(ctxKind, selector, rule.Max, actual, rule.Kind, fmt.Sprintf("expected at most %d elements", rule.Max))
			return &m
		}
		return nil

	case matchers.KindMinMax:
		n, ok := lengthOf(actual)
		if !ok || n < rule.Min || n > rule.Max {
			m := mismatch(ctxKind, selector, [2]int{rule.Min, rule.Max}, actual, rule.Kind, fmt.Sprintf("expected between %d and %d elements", rule.Min, rule.Max))
			return &m
		}
		return nil

	// values/eachKey/eachValue/arrayContains recurse over children and are
	// evaluated by the caller (body.go), which has access to the actual
	// container; reaching here means the container shape itself was wrong.
	case matchers.KindValues, matchers.KindEachKey, matchers.KindEachValue, matchers.KindArrayContains:
		return nil

	default:
		m := mismatch(ctxKind, selector, nil, actual, rule.Kind, fmt.Sprintf("unknown matching rule kind %q", rule.Kind))
		return &m
	}
}

// evaluateRuleSet applies a RuleSet's combination mode. AND reports only
// the first failing rule (§4.1's "only the first failing rule of an AND
// set is reported to keep output bounded"); OR reports nothing if any rule
// accepts, and otherwise reports every rule's mismatch in rule order (the
// documented resolution of the open AND/OR ordering question).
func evaluateRuleSet(rs matchers.RuleSet, ctxKind MismatchKind, selector string, expected, actual any) []Mismatch {
	switch rs.EffectiveCombine() {
	case matchers.CombineOR:
		var all []Mismatch
		for _, r := range rs.Rules {
			if m := evaluateRule(r, ctxKind, selector, expected, actual); m == nil {
				return nil
			} else {
				all = append(all, *m)
			}
		}
		return all
	default: // AND
		for _, r := range rs.Rules {
			if m := evaluateRule(r, ctxKind, selector, expected, actual); m != nil {
				return []Mismatch{*m}
			}
		}
		return nil
	}
}

func defaultLayoutFor(kind matchers.Kind) string {
	switch kind {
	case matchers.KindDate:
		return dateformat.DefaultDate
	case matchers.KindTime:
		return dateformat.DefaultTime
	default:
		return dateformat.DefaultDateTime
	}
}

var semverPattern = regexp.MustCompile(`^\d+\.\d+\.\d+(-[0-9A-Za-z.-]+)?(\+[0-9A-Za-z.-]+)?$`)

func isInteger(v any) bool {
	switch n := v.(type) {
	case float64:
		return n == float64(int64(n))
	case int, int32, int64:
		return true
	}
	return false
}

func isNumber(v any) bool {
	switch v.(type) {
	case float64, int, int32, int64:
		return true
	}
	return false
}

func toInt(v any) (int, bool) {
	switch n := v.(type) {
	case float64:
		return int(n), true
	case int:
		return n, true
	case int64:
		return int(n), true
	case string:
		i, err := strconv.Atoi(n)
		return i, err == nil
	}
	return 0, false
}

func statusInClass(code int, class string) bool {
	switch class {
	case "informational":
		return code >= 100 && code < 200
	case "success":
		return code >= 200 && code < 300
	case "redirect":
		return code >= 300 && code < 400
	case "clientError":
		return code >= 400 && code < 500
	case "serverError":
		return code >= 500 && code < 600
	default:
		return false
	}
}

func lengthOf(v any) (int, bool) {
	switch t := v.(type) {
	case []any:
		return len(t), true
	case string:
		return len(t), true
	case map[string]any:
		return len(t), true
	}
	return 0, false
}

func isEmptyValue(v any) bool {
	n, ok := lengthOf(v)
	return ok && n == 0
}

func deepEqual(expected, actual any) bool {
	switch e := expected.(type) {
	case map[string]any:
		a, ok := actual.(map[string]any)
		if !ok || len(e) != len(a) {
			return false
		}
		for k, ev := range e {
			av, ok := a[k]
			if !ok || !deepEqual(ev, av) {
				return false
			}
		}
		return true
	case []any:
		a, ok := actual.([]any)
		if !ok || len(e) != len(a) {
			return false
		}
		for i := range e {
			if !deepEqual(e[i], a[i]) {
				return false
			}
		}
		return true
	default:
		return fmt.Sprint(expected) == fmt.Sprint(actual) && sameJSONType(expected, actual)
	}
}

func sameJSONType(expected, actual any) bool {
	if expected == nil || actual == nil {
		return expected == nil && actual == nil
	}
	switch expected.(type) {
	case map[string]any:
		_, ok := actual.(map[string]any)
		return ok
	case []any:
		_, ok := actual.([]any)
		return ok
	case string:
		_, ok := actual.(string)
		return ok
	case bool:
		_, ok := actual.(bool)
		return ok
	case float64, int, int32, int64:
		return isNumber(actual)
	default:
		return fmt.Sprintf("%T", expected) == fmt.Sprintf("%T", actual)
	}
}
