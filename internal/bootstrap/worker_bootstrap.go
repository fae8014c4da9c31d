package bootstrap

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/BrohansCoding/GoogleWorkplaceAssistant-sub000/adapter/in/worker"
	"github.com/BrohansCoding/GoogleWorkplaceAssistant-sub000/adapter/out/messaging"
	"github.com/BrohansCoding/GoogleWorkplaceAssistant-sub000/config"
	"github.com/BrohansCoding/GoogleWorkplaceAssistant-sub000/pkg/logger"
)

const workerStopTimeout = 25 * time.Second

// Worker consumes classify jobs from the job stream.
type Worker struct {
	consumer *messaging.Consumer
	ctx      context.Context
	cancel   context.CancelFunc
	wg       sync.WaitGroup
	log      *logger.Logger
}

func NewWorker(cfg *config.Config) (*Worker, func(), error) {
	if cfg.RedisURL == "" {
		return nil, nil, errors.New("worker mode requires REDIS_URL")
	}

	deps, cleanup, err := NewDependencies(cfg)
	if err != nil {
		return nil, nil, err
	}

	log := logger.WithField("component", "worker")
	processor := worker.NewClassifyProcessor(deps.Service, cfg.ClassifyRunTimeout)

	consumer := messaging.NewConsumer(deps.Redis, &messaging.ConsumerConfig{
		Group:       cfg.ConsumerGroup,
		Consumer:    cfg.WorkerID,
		Streams:     []string{cfg.JobStream},
		Handler:     processor,
		Logger:      log.Zerolog(),
		Concurrency: cfg.WorkerConcurrency,
		Block:       time.Duration(cfg.ConsumerBlockMS) * time.Millisecond,
	})

	ctx, cancel := context.WithCancel(context.Background())
	return &Worker{
		consumer: consumer,
		ctx:      ctx,
		cancel:   cancel,
		log:      log,
	}, cleanup, nil
}

// Start blocks until Stop is called.
func (w *Worker) Start() {
	w.wg.Add(1)
	defer w.wg.Done()

	w.log.Info("worker started")
	if err := w.consumer.Run(w.ctx); err != nil && !errors.Is(err, context.Canceled) {
		w.log.WithError(err).Error("consumer stopped")
	}
}

// Stop cancels consumption and waits for in-flight jobs to be acked.
func (w *Worker) Stop() {
	w.cancel()

	done := make(chan struct{})
	go func() {
		w.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		w.log.Info("worker stopped")
	case <-time.After(workerStopTimeout):
		w.log.Warn("worker stop timed out")
	}
}
