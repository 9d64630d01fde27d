// Package ledger holds the dispatch-side view of gas in store: one quantity
// per customer account plus cached aggregate fill levels reported by the
// plant.
//
// The per-account quantity is authoritative only after the plant confirms a
// flow; at submission time the ledger is consulted for an advisory invariant
// check (a stale read at admission is an accepted trade-off, the plant's
// response is what actually mutates the balance).
package ledger
