// Package inbox implements the dispatch-side incoming relay. Flow responses
// delivered by the bus are persisted first, then a background worker applies
// them to the ledger and fans out status notifications. Processing is
// at-least-once; consumers of the resulting state must tolerate replays.
package inbox
