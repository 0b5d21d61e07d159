package match

import "github.com/pact-foundation/pact-go/pkg/matchers"

// MismatchKind discriminates the mismatch taxonomy named in §3.1.
type MismatchKind string

const (
	MethodMismatch     MismatchKind = "MethodMismatch"
	PathMismatch       MismatchKind = "PathMismatch"
	StatusMismatch     MismatchKind = "StatusMismatch"
	QueryMismatch      MismatchKind = "QueryMismatch"
	HeaderMismatch     MismatchKind = "HeaderMismatch"
	BodyTypeMismatch   MismatchKind = "BodyTypeMismatch"
	BodyMismatch       MismatchKind = "BodyMismatch"
	MetadataMismatch   MismatchKind = "MetadataMismatch"
	MissingRequest     MismatchKind = "MissingRequest"
	UnexpectedRequest  MismatchKind = "UnexpectedRequest"
)

// Mismatch is one failure of an actual value against an expected value at
// a given selector.
type Mismatch struct {
	Kind     MismatchKind  `json:"kind"`
	Selector string        `json:"selector,omitempty"`
	Expected any           `json:"expected,omitempty"`
	Actual   any           `json:"actual,omitempty"`
	Rule     matchers.Kind `json:"matcher,omitempty"`
	Message  string        `json:"message"`
}

func mismatch(kind MismatchKind, selector string, expected, actual any, rule matchers.Kind, message string) Mismatch {
	return Mismatch{Kind: kind, Selector: selector, Expected: expected, Actual: actual, Rule: rule, Message: message}
}
