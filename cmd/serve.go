package cmd

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/BrohansCoding/GoogleWorkplaceAssistant-sub000/internal/bootstrap"
	"github.com/BrohansCoding/GoogleWorkplaceAssistant-sub000/pkg/logger"

	"github.com/spf13/cobra"
)

// shutdownTimeout bounds graceful shutdown of the API and worker.
const shutdownTimeout = 30 * time.Second

func newServeCmd() *cobra.Command {
	var withWorker bool

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the HTTP API",
		Long: `Run the HTTP API on $PORT. With --with-worker the classify job
consumer runs in the same process.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			if withWorker && cfg.RedisURL != "" {
				go runWorker()
			} else if withWorker {
				logger.Warn("REDIS_URL not set, running without a job worker")
			}
			return runAPI()
		},
	}

	cmd.Flags().BoolVar(&withWorker, "with-worker", false, "Also consume classify jobs")
	return cmd
}

func newWorkerCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "worker",
		Short: "Consume queued classify jobs",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runWorker()
		},
	}
}

func runAPI() error {
	app, cleanup, err := bootstrap.NewAPI(cfg)
	if err != nil {
		return err
	}
	defer cleanup()

	go func() {
		sigChan := make(chan os.Signal, 1)
		signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
		<-sigChan

		logger.Info("Shutting down API server (timeout: %v)...", shutdownTimeout)
		if err := app.ShutdownWithTimeout(shutdownTimeout); err != nil {
			logger.Error("Error shutting down: %v", err)
			return
		}
		logger.Info("API server shut down gracefully")
	}()

	addr := ":" + cfg.Port
	logger.Info("Starting API server on %s", addr)
	return app.Listen(addr)
}

func runWorker() error {
	w, cleanup, err := bootstrap.NewWorker(cfg)
	if err != nil {
		logger.WithError(err).Error("Failed to initialize worker")
		return err
	}
	defer cleanup()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	go func() {
		<-ctx.Done()
		logger.Info("Shutting down worker (timeout: %v)...", shutdownTimeout)
		w.Stop()
	}()

	logger.Info("Starting worker...")
	w.Start()
	return nil
}
