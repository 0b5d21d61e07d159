package match

import (
	"encoding/json"
	"fmt"
	"net/url"
	"strings"

	"github.com/pact-foundation/pact-go/pkg/matchers"
	"github.com/pact-foundation/pact-go/pkg/pact"
)

func emptyTree(rules matchers.MatchingRules, cat matchers.Category) matchers.RuleTree {
	if rules == nil {
		return nil
	}
	return rules[cat]
}

// MatchRequest compares an actual request against an expected one, per
// §4.1: method by exact (case-insensitive) match, path by exact match
// (unless a rule overrides it), query parameters, headers, and body.
func MatchRequest(expected, actual *pact.Request) []Mismatch {
	var out []Mismatch

	if rs, ok := lookupRule(emptyTree(expected.Rules, matchers.CategoryMethod), "$.method"); ok {
		out = append(out, evaluateRuleSet(rs, MethodMismatch, "$.method", expected.Method, actual.Method)...)
	} else if !strings.EqualFold(expected.Method, actual.Method) {
		out = append(out, mismatch(MethodMismatch, "$.method", expected.Method, actual.Method, "", fmt.Sprintf("expected method %q, got %q", expected.Method, actual.Method)))
	}

	if rs, ok := lookupRule(emptyTree(expected.Rules, matchers.CategoryPath), "$.path"); ok {
		out = append(out, evaluateRuleSet(rs, PathMismatch, "$.path", expected.Path, actual.Path)...)
	} else if expected.Path != actual.Path {
		out = append(out, mismatch(PathMismatch, "$.path", expected.Path, actual.Path, "", fmt.Sprintf("expected path %q, got %q", expected.Path, actual.Path)))
	}

	out = append(out, matchQuery(emptyTree(expected.Rules, matchers.CategoryQuery), expected.Query, actual.Query)...)
	out = append(out, matchHeaders(emptyTree(expected.Rules, matchers.CategoryHeader), expected.Headers, actual.Headers)...)
	out = append(out, matchBody(emptyTree(expected.Rules, matchers.CategoryBody), expected.Body, actual.Body)...)

	return out
}

// MatchResponse compares an actual response against an expected one: status
// code, headers, and body.
func MatchResponse(expected, actual *pact.Response) []Mismatch {
	var out []Mismatch

	if rs, ok := lookupRule(emptyTree(expected.Rules, matchers.CategoryStatus), "$.status"); ok {
		out = append(out, evaluateRuleSet(rs, StatusMismatch, "$.status", expected.Status, actual.Status)...)
	} else if expected.Status != actual.Status {
		out = append(out, mismatch(StatusMismatch, "$.status", expected.Status, actual.Status, "", fmt.Sprintf("expected status %d, got %d", expected.Status, actual.Status)))
	}

	out = append(out, matchHeaders(emptyTree(expected.Rules, matchers.CategoryHeader), expected.Headers, actual.Headers)...)
	out = append(out, matchBody(emptyTree(expected.Rules, matchers.CategoryBody), expected.Body, actual.Body)...)

	return out
}

// MatchMessage compares the contents of an asynchronous or synchronous
// message against what was actually relayed: metadata then the body, using
// the same content-type-aware body matching as HTTP interactions.
func MatchMessage(expected, actual *pact.MessageContents) []Mismatch {
	var out []Mismatch
	tree := emptyTree(expected.Rules, matchers.CategoryMetadata)
	for k, ev := range expected.Metadata {
		av, present := actual.Metadata[k]
		selector := childSelector("$.metadata", k)
		if !present {
			out = append(out, mismatch(MetadataMismatch, selector, ev, nil, "", fmt.Sprintf("missing metadata key %q", k)))
			continue
		}
		for _, m := range matchNode(tree, selector, ev, av) {
			m.Kind = MetadataMismatch
			out = append(out, m)
		}
	}

	if len(expected.Contents) > 0 {
		body := &pact.Body{ContentType: expected.ContentType, Bytes: expected.Contents}
		_ = decodeIfJSON(body)
		actualBody := &pact.Body{ContentType: actual.ContentType, Bytes: actual.Contents}
		_ = decodeIfJSON(actualBody)
		out = append(out, matchBody(emptyTree(expected.Rules, matchers.CategoryBody), body, actualBody)...)
	}
	return out
}

// matchBody dispatches on content type: JSON bodies get the structural
// selector-based walk, XML bodies are compared element by element, and
// anything else (binary, plain text, form-encoded) falls back to byte or
// decoded-form comparison.
func matchBody(tree matchers.RuleTree, expected, actual *pact.Body) []Mismatch {
	if expected == nil {
		return nil
	}
	if actual == nil {
		return []Mismatch{mismatch(BodyMismatch, "$", "a body", nil, "", "expected a body")}
	}

	ct := strings.ToLower(expected.ContentType)
	switch {
	case strings.Contains(ct, "json"):
		return matchNode(tree, "$", expected.Content, actual.Content)

	case strings.Contains(ct, "xml"):
		ms, err := matchXML(tree, expected.Bytes, actual.Bytes)
		if err != nil {
			return []Mismatch{mismatch(BodyTypeMismatch, "$", nil, nil, "", err.Error())}
		}
		return ms

	case strings.Contains(ct, "x-www-form-urlencoded"):
		return matchForm(tree, expected.Bytes, actual.Bytes)

	case strings.Contains(ct, "multipart/"):
		// Multipart bodies are matched as opaque byte streams: a full
		// MIME-part walk is out of scope for this engine.
		if len(expected.Bytes) > 0 && string(expected.Bytes) != string(actual.Bytes) {
			return []Mismatch{mismatch(BodyMismatch, "$", "<multipart body>", "<multipart body>", "", "multipart body differs")}
		}
		return nil

	default:
		if rs, ok := lookupRule(tree, "$"); ok {
			return evaluateRuleSet(rs, BodyMismatch, "$", string(expected.Bytes), string(actual.Bytes))
		}
		if len(expected.Bytes) > 0 && string(expected.Bytes) != string(actual.Bytes) {
			return []Mismatch{mismatch(BodyMismatch, "$", string(expected.Bytes), string(actual.Bytes), "", "body bytes differ")}
		}
		return nil
	}
}

func matchForm(tree matchers.RuleTree, expectedBytes, actualBytes []byte) []Mismatch {
	expected, err := url.ParseQuery(string(expectedBytes))
	if err != nil {
		return []Mismatch{mismatch(BodyTypeMismatch, "$", nil, nil, "", fmt.Sprintf("invalid expected form body: %v", err))}
	}
	actual, err := url.ParseQuery(string(actualBytes))
	if err != nil {
		return []Mismatch{mismatch(BodyTypeMismatch, "$", nil, nil, "", fmt.Sprintf("invalid actual form body: %v", err))}
	}
	var out []Mismatch
	for field, values := range expected {
		av, present := actual[field]
		selector := childSelector("$", field)
		if !present {
			out = append(out, mismatch(BodyMismatch, selector, values, nil, "", fmt.Sprintf("missing form field %q", field)))
			continue
		}
		out = append(out, matchValues(tree, BodyMismatch, selector, values, av)...)
	}
	return out
}

func decodeIfJSON(b *pact.Body) error {
	if !strings.Contains(strings.ToLower(b.ContentType), "json") || len(b.Bytes) == 0 {
		return fmt.Errorf("not json")
	}
	return json.Unmarshal(b.Bytes, &b.Content)
}
