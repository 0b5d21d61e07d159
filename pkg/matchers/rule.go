package matchers

import "fmt"

// Kind identifies a matching rule's predicate, one entry per kind named in
// the wire format's "matchingRules" tree.
type Kind string

const (
	KindEquality      Kind = "equality"
	KindType          Kind = "type"
	KindRegex         Kind = "regex"
	KindInclude       Kind = "include"
	KindInteger       Kind = "integer"
	KindDecimal       Kind = "decimal"
	KindNumber        Kind = "number"
	KindBoolean       Kind = "boolean"
	KindNull          Kind = "null"
	KindTimestamp     Kind = "timestamp"
	KindDate          Kind = "date"
	KindTime          Kind = "time"
	KindContentType   Kind = "contentType"
	KindValues        Kind = "values"
	KindEachKey       Kind = "eachKey"
	KindEachValue     Kind = "eachValue"
	KindArrayContains Kind = "arrayContains"
	KindMin           Kind = "min"
	KindMax           Kind = "max"
	KindMinMax        Kind = "minMax"
	KindNotEmpty      Kind = "notEmpty"
	KindSemver        Kind = "semver"
	KindStatusCode    Kind = "statusCode"
)

// Combine is the combination mode of a RuleSet: AND requires every rule to
// accept; OR requires at least one.
type Combine string

const (
	CombineAND Combine = "AND"
	CombineOR  Combine = "OR"
)

// Rule is a single matching predicate plus its kind-specific parameters.
// Only the fields relevant to Kind are populated; the rest are zero.
type Rule struct {
	Kind Kind `json:"match"`

	// Regex/Include
	Pattern string `json:"regex,omitempty"`

	// Timestamp/Date/Time
	Format string `json:"format,omitempty"`

	// ContentType
	MIME string `json:"contentType,omitempty"`

	// min / max / minMax
	Min int `json:"min,omitempty"`
	Max int `json:"max,omitempty"`

	// arrayContains: one sub-rule-set per expected variant index
	Variants []RuleSet `json:"variants,omitempty"`

	// values / eachKey / eachValue: the rule applied to every key/value
	Sub *RuleSet `json:"rules,omitempty"`

	// statusCode: a named class ("success","clientError",...) or, when
	// Class is empty, an exact code carried in Min.
	Class string `json:"status,omitempty"`
}

// RuleSet is a non-empty ordered sequence of rules plus a combination mode.
type RuleSet struct {
	Combine Combine `json:"combine,omitempty"`
	Rules   []Rule  `json:"matchers"`
}

// EffectiveCombine returns rs.Combine, defaulting to CombineAND when unset.
func (rs RuleSet) EffectiveCombine() Combine {
	if rs.Combine == "" {
		return CombineAND
	}
	return rs.Combine
}

// RuleTree maps JSON-path-like selectors to the RuleSet that governs that
// node. Lookup (see pkg/match) is not prefix-based: a key matches only a
// path with the same number of segments, "[*]" matching any index, and the
// key with the fewest wildcards wins. A key is never looked up for paths
// nested below it.
type RuleTree map[string]RuleSet

// Category identifies which section of a request/response/message a
// RuleTree governs, mirroring the wire format's
// "matchingRules": {"body": {...}, "header": {...}} grouping (§6.1).
type Category string

const (
	CategoryMethod   Category = "method"
	CategoryPath     Category = "path"
	CategoryQuery    Category = "query"
	CategoryHeader   Category = "header"
	CategoryBody     Category = "body"
	CategoryStatus   Category = "status"
	CategoryMetadata Category = "metadata"
)

// MatchingRules is the top-level matching-rule container attached to a
// request, response, or message: one RuleTree per category.
type MatchingRules map[Category]RuleTree

// Validate runs RuleTree.Validate over every category except header and
// query, whose trees are keyed by bare parameter names rather than "$"
// selectors; for those only a non-empty name and RuleSet are required.
func (m MatchingRules) Validate() error {
	for cat, tree := range m {
		if cat == CategoryHeader || cat == CategoryQuery {
			for name, rs := range tree {
				if name == "" || len(rs.Rules) == 0 {
					return fmt.Errorf("matchers: invalid %s rule at %q", cat, name)
				}
			}
			continue
		}
		if err := tree.Validate(); err != nil {
			return err
		}
	}
	return nil
}

// Validate checks that every selector is syntactically a JSON-path
// expression (starts with "$") and that every RuleSet is non-empty, per
// PactModel's §4.3 invariant that "every matching-rule selector is
// syntactically valid".
func (t RuleTree) Validate() error {
	for selector, rs := range t {
		if len(selector) == 0 || selector[0] != '$' {
			return fmt.Errorf("matchers: invalid selector %q: must start with \"$\"", selector)
		}
		if len(rs.Rules) == 0 {
			return fmt.Errorf("matchers: empty rule set at selector %q", selector)
		}
	}
	return nil
}

// Fluent constructors, one per Kind, mirroring the wire vocabulary.

func Equality() Rule                { return Rule{Kind: KindEquality} }
func Type() Rule                    { return Rule{Kind: KindType} }
func Regex(pattern string) Rule     { return Rule{Kind: KindRegex, Pattern: pattern} }
func Include(needle string) Rule    { return Rule{Kind: KindInclude, Pattern: needle} }
func Integer() Rule                 { return Rule{Kind: KindInteger} }
func Decimal() Rule                 { return Rule{Kind: KindDecimal} }
func Number() Rule                  { return Rule{Kind: KindNumber} }
func Boolean() Rule                 { return Rule{Kind: KindBoolean} }
func Null() Rule                    { return Rule{Kind: KindNull} }
func Timestamp(format string) Rule  { return Rule{Kind: KindTimestamp, Format: format} }
func Date(format string) Rule       { return Rule{Kind: KindDate, Format: format} }
func Time(format string) Rule       { return Rule{Kind: KindTime, Format: format} }
func ContentType(mime string) Rule  { return Rule{Kind: KindContentType, MIME: mime} }
func Values(sub RuleSet) Rule       { return Rule{Kind: KindValues, Sub: &sub} }
func EachKey(sub RuleSet) Rule      { return Rule{Kind: KindEachKey, Sub: &sub} }
func EachValue(sub RuleSet) Rule    { return Rule{Kind: KindEachValue, Sub: &sub} }
func ArrayContains(variants ...RuleSet) Rule {
	return Rule{Kind: KindArrayContains, Variants: variants}
}
func Min(n int) Rule      { return Rule{Kind: KindMin, Min: n} }
func Max(n int) Rule      { return Rule{Kind: KindMax, Max: n} }
func MinMax(lo, hi int) Rule { return Rule{Kind: KindMinMax, Min: lo, Max: hi} }
func NotEmpty() Rule      { return Rule{Kind: KindNotEmpty} }
func Semver() Rule        { return Rule{Kind: KindSemver} }
func StatusCodeClass(class string) Rule { return Rule{Kind: KindStatusCode, Class: class} }
func StatusCodeExact(code int) Rule     { return Rule{Kind: KindStatusCode, Min: code} }

// And builds an AND-combined RuleSet (the default).
func And(rules ...Rule) RuleSet { return RuleSet{Combine: CombineAND, Rules: rules} }

// Or builds an OR-combined RuleSet.
func Or(rules ...Rule) RuleSet { return RuleSet{Combine: CombineOR, Rules: rules} }
