// Package pebblestore wraps Pebble as the durable key-value store behind the
// ledger, the relays, and the plant inventory.
//
// The wrapper deliberately exposes the narrow contract the relays are built
// against: point lookups, point writes, deletes, and an all-or-nothing
// transactional Apply. Enumeration is not part of that contract; components
// that need to list pending work maintain their own index record (see
// internal/relay). Iterators are available for the notification journal only.
//
//	db, err := pebblestore.Open(pebblestore.Options{
//	    DataDir: "./data",
//	    Fsync:   pebblestore.FsyncModeAlways,
//	})
//	if err != nil { /* handle */ }
//	defer db.Close()
//
//	_ = db.Apply(ctx, []pebblestore.Op{
//	    pebblestore.PutOp([]byte("item/1"), payload),
//	    pebblestore.PutOp([]byte("index"), index),
//	})
package pebblestore
