// Package dispatchrun boots the dispatch process: runtime, relays, bus
// loops, and the HTTP API, with graceful shutdown on SIGINT/SIGTERM.
package dispatchrun
