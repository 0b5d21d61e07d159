// Package matchers defines the matching-rule and generator data language
// used to describe a pact interaction's value sites: what a request or
// response field must look like (a Rule) and, for the mock server's side of
// the conversation, how to manufacture an example value for it (a
// Generator).
//
// Rules and generators never evaluate themselves; pkg/match and
// pkg/generate do that against this package's types.
package matchers
