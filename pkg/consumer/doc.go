// Package consumer implements the consumer side of the contract-testing
// engine: a fluent InteractionBuilder for describing expected requests and
// responses (or messages), and an embedded MockServer that serves them to
// a consumer's real HTTP client while recording actual traffic.
package consumer
