package dispatchrun

import (
	"context"
	"os"
	"os/signal"
	"path/filepath"
	"sync"
	"syscall"
	"time"

	"github.com/loekd/MissionCriticalDemo/internal/bus"
	cfgpkg "github.com/loekd/MissionCriticalDemo/internal/config"
	"github.com/loekd/MissionCriticalDemo/internal/inbox"
	"github.com/loekd/MissionCriticalDemo/internal/messages"
	"github.com/loekd/MissionCriticalDemo/internal/outbox"
	"github.com/loekd/MissionCriticalDemo/internal/runtime"
	httpserver "github.com/loekd/MissionCriticalDemo/internal/server/http"
	"github.com/loekd/MissionCriticalDemo/internal/tracing"
	logpkg "github.com/loekd/MissionCriticalDemo/pkg/log"
)

// Options configure the dispatch process.
type Options struct {
	Config cfgpkg.Config
	Logger logpkg.Logger
}

// Run starts the dispatch side: HTTP API, outbox/inbox workers, and the bus
// loops. It blocks until ctx is cancelled.
func Run(ctx context.Context, opts Options) error {
	sctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()
	cfg := opts.Config
	logger := opts.Logger

	shutdownTracing, err := tracing.Setup(sctx, tracing.Config{
		ServiceName:  "dispatch",
		OTLPEndpoint: cfg.Tracing.OTLPEndpoint,
		Insecure:     cfg.Tracing.Insecure,
	})
	if err != nil {
		return err
	}
	defer func() {
		cctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = shutdownTracing(cctx)
	}()

	rt, err := runtime.Open(runtime.Options{
		DataDir:       filepath.Join(cfg.DataDir, "dispatch"),
		Fsync:         runtime.ParseFsync(cfg.Fsync),
		FsyncInterval: cfg.FsyncInterval(),
		Config:        cfg,
		Logger:        logger,
	})
	if err != nil {
		return err
	}
	defer rt.Close()

	logger.Info("starting dispatch",
		logpkg.Str("http", cfg.HTTPAddr),
		logpkg.Str("data_dir", cfg.DataDir),
		logpkg.Any("brokers", cfg.Kafka.Brokers))

	led := rt.Ledger()
	notifySvc, err := rt.Notify()
	if err != nil {
		return err
	}

	outboxRelay := outbox.NewRelay(led, rt.OutboxQueue(), logger)
	inboxRelay := inbox.NewRelay(rt.InboxQueue(), logger)

	publisher, err := bus.NewPublisher(bus.Config{Brokers: cfg.Kafka.Brokers, ClientID: "dispatch"}, bus.TopicFlowRequests)
	if err != nil {
		return err
	}
	defer publisher.Close()

	subscriber, err := bus.NewSubscriber(bus.Config{Brokers: cfg.Kafka.Brokers}, bus.TopicFlowResponses, cfg.Kafka.GroupID, logger)
	if err != nil {
		return err
	}
	defer subscriber.Close()

	outWorker := outbox.NewWorker(rt.OutboxQueue(), publisher, logger, outbox.WorkerConfig{
		WarmUp:         cfg.Worker.WarmUp(),
		PollInterval:   cfg.Worker.Poll(),
		FailureBackoff: cfg.Worker.Backoff(),
	})
	inWorker := inbox.NewWorker(rt.InboxQueue(), led, notifySvc, logger, inbox.WorkerConfig{
		WarmUp:         cfg.Worker.WarmUp(),
		PollInterval:   cfg.Worker.Poll(),
		FailureBackoff: cfg.Worker.Backoff(),
		DedupWindow:    cfg.Worker.DedupWindow,
	})

	hsrv := httpserver.New(rt, outboxRelay, inboxRelay, led, notifySvc, logger)

	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		if err := hsrv.ListenAndServe(sctx, cfg.HTTPAddr); err != nil && sctx.Err() == nil {
			logger.Error("http server failed", logpkg.Err(err))
		}
	}()
	wg.Add(1)
	go func() {
		defer wg.Done()
		_ = outWorker.Run(sctx)
	}()
	wg.Add(1)
	go func() {
		defer wg.Done()
		_ = inWorker.Run(sctx)
	}()
	wg.Add(1)
	go func() {
		defer wg.Done()
		// Bus deliveries land in the inbox; the worker applies them later.
		_ = subscriber.Run(sctx, func(mctx context.Context, payload []byte) error {
			resp, err := messages.DecodeResponse(payload)
			if err != nil {
				return err
			}
			return inboxRelay.Receive(mctx, resp, tracing.FromContext(mctx))
		})
	}()

	<-sctx.Done()
	hsrv.Close()
	wg.Wait()
	return nil
}
