// Package broker is a minimal Pact Broker HTTP client (§4.8): fetching
// pacts for verification by consumer-version selectors, publishing
// verification results, and publishing pacts from the consumer side.
package broker
