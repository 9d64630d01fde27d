// Package client provides the `mcd` command-line client.
//
// The CLI talks to the dispatch HTTP API to submit flow requests, read
// gas-in-store views, and stream notifications from a terminal. It is
// primarily intended for developers and operators.
//
// # Address configuration
//
// The HTTP base URL is discovered by the application that embeds the
// commands via a BaseURLFunc. When using the standalone binary, it
// defaults to http://127.0.0.1:8080 and can be overridden with the
// MCD_HTTP environment variable.
//
// Usage
//
//	mcd submit --customer 7f9c3a52-... --direction inject --amount 10
//	mcd submit --customer 7f9c3a52-... --direction withdraw --amount 5
//
//	mcd gis --customer 7f9c3a52-...
//	mcd gis --overall
//	mcd gis --max
//
//	# Stream notifications over SSE; filter runs server side (CEL)
//	mcd watch
//	mcd watch --filter 'success && direction == "inject"'
//	mcd watch --last-event-id 42
package client
