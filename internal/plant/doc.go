// Package plant models the gas plant: one overall gas-in-store record with a
// fixed maximum fill level, plus the processor that consumes flow requests
// from the bus and answers with flow responses.
package plant
