package plantrun

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
	"github.com/loekd/MissionCriticalDemo/internal/plant"
	"github.com/loekd/MissionCriticalDemo/internal/runtime"
	httpserver "github.com/loekd/MissionCriticalDemo/internal/server/http"
	"github.com/loekd/MissionCriticalDemo/internal/tracing"
	logpkg "github.com/loekd/MissionCriticalDemo/pkg/log"
)

// Options configure the plant process.
type Options struct {
	Config cfgpkg.Config
	Logger logpkg.Logger
}

// Run starts the plant side: HTTP API plus the request-processing bus loop.
// It blocks until ctx is cancelled.
func Run(ctx context.Context, opts Options) error {
	sctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()
	cfg := opts.Config
	logger := opts.Logger

	shutdownTracing, err := tracing.Setup(sctx, tracing.Config{
		ServiceName:  "plant",
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
		DataDir:       filepath.Join(cfg.DataDir, "plant"),
		Fsync:         runtime.ParseFsync(cfg.Fsync),
		FsyncInterval: cfg.FsyncInterval(),
		Config:        cfg,
		Logger:        logger,
	})
	if err != nil {
		return err
	}
	defer rt.Close()

	logger.Info("starting plant",
		logpkg.Str("http", cfg.HTTPAddr),
		logpkg.Str("data_dir", cfg.DataDir),
		logpkg.Int("max_fill_level", cfg.Plant.MaxFillLevel),
		logpkg.Any("brokers", cfg.Kafka.Brokers))

	store := rt.PlantStore()

	publisher, err := bus.NewPublisher(bus.Config{Brokers: cfg.Kafka.Brokers, ClientID: "plant"}, bus.TopicFlowResponses)
	if err != nil {
		return err
	}
	defer publisher.Close()

	subscriber, err := bus.NewSubscriber(bus.Config{Brokers: cfg.Kafka.Brokers}, bus.TopicFlowRequests, cfg.Kafka.GroupID, logger)
	if err != nil {
		return err
	}
	defer subscriber.Close()

	processor := plant.NewProcessor(store, publisher, logger,
		plant.WithProcessingDelay(cfg.Plant.ProcessingDelay()))

	hsrv := httpserver.NewPlant(rt, store, logger)

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
		_ = subscriber.Run(sctx, processor.Handle)
	}()

	<-sctx.Done()
	hsrv.Close()
	wg.Wait()
	return nil
}
