// Package provider implements the provider side of the contract-testing
// engine: a fluent Verifier that loads pacts from files, directories, URLs
// or a broker, replays their interactions against a real provider, and
// aggregates the results. StateRelay gives a remote provider process a
// callback endpoint for state changes and message production.
package provider
