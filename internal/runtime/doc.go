// Package runtime wires storage, config, and facades into a single process
// instance. It exposes Open/Close, basic health checks, and helpers to open
// the ledger, relay queues, plant store, and notification service.
//
// Example:
//
//	cfg := config.Default()
//	rt, _ := runtime.Open(runtime.Options{DataDir: "./data", Fsync: pebblestore.FsyncModeAlways, Config: cfg})
//	defer rt.Close()
//	_ = rt.CheckHealth(context.Background())
//	led := rt.Ledger()
//	_ = led
package runtime
