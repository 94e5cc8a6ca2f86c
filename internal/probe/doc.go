// Package probe issues single HTTP requests and classifies what happened.
//
// Every call to Prober.Probe returns exactly one Outcome:
//
//   - success: a response with status 200-299
//   - http_error: any other response status (body kept as text)
//   - connection_refused: the target refused the TCP connection
//   - timeout: the per-probe deadline expired; the request is cancelled
//   - unknown_failure: anything else (DNS, malformed URL or response)
//
// Errors never escape a probe. There are no retries: each Request is sent
// at most once.
package probe
