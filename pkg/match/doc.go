// Package match implements MatchEngine: given an expected value (request,
// response, or body) with an attached matching-rule tree and an actual
// value, it returns an ordered list of Mismatches — empty means match.
//
// The engine is a pure function of its inputs: the same pair of values
// yields the same mismatch set regardless of call order or wall clock,
// satisfying the round-trip/match-purity properties described for this
// component.
package match
