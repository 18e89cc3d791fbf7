// Package resilience guards outbound calls the service makes on the request
// path, such as fetching a JSON Web Key Set.
//
// Retry re-runs a failing operation with capped exponential backoff. Breaker
// stops calling a dependency after repeated failures and probes it again
// after a cool-down. Guard stacks the two so a dependency that is down costs
// one fast ErrCircuitOpen instead of a full retry cycle per request.
package resilience
