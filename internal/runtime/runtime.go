package runtime

import (
	"context"
	"errors"
	"time"

	cfgpkg "github.com/loekd/MissionCriticalDemo/internal/config"
	"github.com/loekd/MissionCriticalDemo/internal/ledger"
	"github.com/loekd/MissionCriticalDemo/internal/notify"
	"github.com/loekd/MissionCriticalDemo/internal/plant"
	"github.com/loekd/MissionCriticalDemo/internal/relay"
	pebblestore "github.com/loekd/MissionCriticalDemo/internal/storage/pebble"
	"github.com/loekd/MissionCriticalDemo/pkg/log"
)

// Relay queue names within the shared store.
const (
	OutboxName = "outbox"
	InboxName  = "inbox"
)

// Options for building the Runtime.
type Options struct {
	DataDir       string
	Fsync         pebblestore.FsyncMode
	FsyncInterval time.Duration
	Config        cfgpkg.Config
	Logger        log.Logger
}

// Runtime wires storage, config, and facades for a single process.
type Runtime struct {
	db     *pebblestore.DB
	config cfgpkg.Config
	logger log.Logger
}

// ParseFsync maps the config string onto a storage fsync mode. Unknown
// values select the interval default.
func ParseFsync(s string) pebblestore.FsyncMode {
	switch s {
	case "always":
		return pebblestore.FsyncModeAlways
	case "never":
		return pebblestore.FsyncModeNever
	case "interval":
		return pebblestore.FsyncModeInterval
	default:
		return pebblestore.FsyncModeUnspecified
	}
}

// Open initializes the underlying storage and returns a Runtime.
func Open(opts Options) (*Runtime, error) {
	db, err := pebblestore.Open(pebblestore.Options{DataDir: opts.DataDir, Fsync: opts.Fsync, FsyncInterval: opts.FsyncInterval})
	if err != nil {
		return nil, err
	}
	logger := opts.Logger
	if logger == nil {
		logger = log.NewTestLogger()
	}
	return &Runtime{db: db, config: opts.Config, logger: logger}, nil
}

// Close closes underlying resources.
func (r *Runtime) Close() error {
	if r.db == nil {
		return nil
	}
	return r.db.Close()
}

// CheckHealth performs a simple health check.
func (r *Runtime) CheckHealth(ctx context.Context) error {
	if r.db == nil {
		return errors.New("db not open")
	}
	return r.db.Check(ctx)
}

// Ledger opens the customer inventory ledger on the shared store.
func (r *Runtime) Ledger() *ledger.Ledger {
	return ledger.New(r.db)
}

// OutboxQueue opens the outgoing relay queue.
func (r *Runtime) OutboxQueue() *relay.Queue {
	return relay.New(r.db, OutboxName)
}

// InboxQueue opens the incoming relay queue.
func (r *Runtime) InboxQueue() *relay.Queue {
	return relay.New(r.db, InboxName)
}

// Notify opens the notification service (journal plus live hub).
func (r *Runtime) Notify() (*notify.Service, error) {
	return notify.New(r.db, r.logger)
}

// PlantStore opens the plant-side gas store.
func (r *Runtime) PlantStore() *plant.Store {
	return plant.NewStore(r.db, plant.WithMaxFillLevel(r.config.Plant.MaxFillLevel))
}

// DB exposes the underlying DB for advanced operations (internal use only).
func (r *Runtime) DB() *pebblestore.DB { return r.db }

// Config returns the runtime configuration.
func (r *Runtime) Config() cfgpkg.Config { return r.config }

// Logger returns the process logger.
func (r *Runtime) Logger() log.Logger { return r.logger }
