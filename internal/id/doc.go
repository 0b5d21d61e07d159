// Package id provides unique identifier generation utilities used for
// pact-file lock tokens and naming temporary pact-file writes.
//
//   - Short: 16-character hex IDs (lock-file tokens, temporary pact-file
//     name suffixes)
//   - Alphanumeric: configurable-length random alphanumeric strings
//
// UUID values (pkg/generate's Uuid generator) use github.com/google/uuid instead; this
// package is reserved for lighter-weight, internal-only tokens.
package id
