// Package notify fans ledger status updates out to connected clients. Every
// update is appended to a durable journal before broadcast, so a stream
// client can replay events it missed via its last seen sequence. Slow
// subscribers are dropped rather than allowed to block the pipeline.
package notify
