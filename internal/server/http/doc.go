// Package httpserver provides the REST surfaces of the dispatch and plant
// processes, including the flow-response webhook and SSE notifications with
// Last-Event-ID replay.
//
// Example:
//
//	rt, _ := runtime.Open(runtime.Options{DataDir: "./data", Fsync: pebblestore.FsyncModeAlways, Config: config.Default()})
//	s := httpserver.New(rt, out, in, rt.Ledger(), ns, logger)
//	ctx, cancel := context.WithCancel(context.Background())
//	defer cancel()
//	_ = s.ListenAndServe(ctx, ":8080")
package httpserver
