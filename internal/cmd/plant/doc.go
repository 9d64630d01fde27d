// Package plantrun boots the plant process: runtime, the request-processing
// bus loop, and the HTTP API, with graceful shutdown on SIGINT/SIGTERM.
package plantrun
