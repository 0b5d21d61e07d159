// Package generate implements GenEngine: materializing concrete example
// values from a matchers.Generator, for two purposes — the mock server's
// replies to the consumer (so the consumer sees plausible data) and
// provider-state substitution during verification (e.g. "${userId}"
// injected from state parameters).
//
// Random generators draw from a seeded PRNG held in Context so that a
// single mock-server or verifier session is reproducible, following the
// nil-fallback-to-package-rand pattern used throughout the teacher's
// template engine.
package generate
