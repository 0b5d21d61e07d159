package match

import (
	"fmt"

	"github.com/beevik/etree"

	"github.com/pact-foundation/pact-go/pkg/matchers"
)

// matchXML compares two XML documents element by element, honoring the
// same RuleTree selectors used for JSON bodies (the root element is "$"
// and its child element "child" is "$.child", each addressing that
// element's text content; "['@attr']" appended to an element selector
// addresses one attribute). This is a structural
// comparison only — it does not attempt XML-Schema-level validation.
func matchXML(tree matchers.RuleTree, expectedBytes, actualBytes []byte) ([]Mismatch, error) {
	expectedDoc := etree.NewDocument()
	if err := expectedDoc.ReadFromBytes(expectedBytes); err != nil {
		return nil, fmt.Errorf("match: parsing expected XML: %w", err)
	}
	actualDoc := etree.NewDocument()
	if err := actualDoc.ReadFromBytes(actualBytes); err != nil {
		return []Mismatch{mismatch(BodyTypeMismatch, "$", nil, nil, "", fmt.Sprintf("invalid XML: %v", err))}, nil
	}
	if expectedDoc.Root() == nil {
		return nil, nil
	}
	if actualDoc.Root() == nil {
		return []Mismatch{mismatch(BodyMismatch, "$", expectedDoc.Root().Tag, nil, "", "expected a root element")}, nil
	}
	return matchElement(tree, "$", expectedDoc.Root(), actualDoc.Root()), nil
}

func matchElement(tree matchers.RuleTree, selector string, expected, actual *etree.Element) []Mismatch {
	var out []Mismatch
	if expected.Tag != actual.Tag {
		out = append(out, mismatch(BodyMismatch, selector, expected.Tag, actual.Tag, "", fmt.Sprintf("expected element %q, got %q", expected.Tag, actual.Tag)))
		return out
	}

	for _, attr := range expected.Attr {
		attrSelector := selector + "['@" + attr.Key + "']"
		actualVal := actual.SelectAttrValue(attr.Key, "")
		if rs, ok := lookupRule(tree, attrSelector); ok {
			out = append(out, evaluateRuleSet(rs, BodyMismatch, attrSelector, attr.Value, actualVal)...)
			continue
		}
		if actual.SelectAttr(attr.Key) == nil {
			out = append(out, mismatch(BodyMismatch, attrSelector, attr.Value, nil, "", fmt.Sprintf("missing attribute %q", attr.Key)))
			continue
		}
		if attr.Value != actualVal {
			out = append(out, mismatch(BodyMismatch, attrSelector, attr.Value, actualVal, "", fmt.Sprintf("expected %q, got %q", attr.Value, actualVal)))
		}
	}

	expectedChildren := expected.ChildElements()
	actualChildren := actual.ChildElements()
	if len(expectedChildren) == 0 {
		expectedText, actualText := expected.Text(), actual.Text()
		if rs, ok := lookupRule(tree, selector); ok {
			out = append(out, evaluateRuleSet(rs, BodyMismatch, selector, expectedText, actualText)...)
		} else if expectedText != actualText {
			out = append(out, mismatch(BodyMismatch, selector, expectedText, actualText, "", fmt.Sprintf("expected text %q, got %q", expectedText, actualText)))
		}
		return out
	}

	if rs, ok := lookupRule(tree, selector); ok {
		if len(evaluateRuleSet(rs, BodyMismatch, selector, len(expectedChildren), len(actualChildren))) > 0 {
			out = append(out, mismatch(BodyMismatch, selector, len(expectedChildren), len(actualChildren), "", "child element count mismatch"))
			return out
		}
	} else if len(expectedChildren) != len(actualChildren) {
		out = append(out, mismatch(BodyMismatch, selector, len(expectedChildren), len(actualChildren), "", fmt.Sprintf("expected %d child elements, got %d", len(expectedChildren), len(actualChildren))))
	}

	n := len(expectedChildren)
	if len(actualChildren) < n {
		n = len(actualChildren)
	}
	for i := 0; i < n; i++ {
		childSel := childSelector(selector, expectedChildren[i].Tag)
		out = append(out, matchElement(tree, childSel, expectedChildren[i], actualChildren[i])...)
	}
	return out
}
