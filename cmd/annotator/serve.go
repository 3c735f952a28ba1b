package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	httptransport "annotation-service/internal/transport/http"
	"annotation-service/internal/worker"
)

const reaperWorkers = 4

func newServeCommand(cc *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Migrate the store, then serve the HTTP API and the idle reaper",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, logger, err := cc.ensureConfig()
			if err != nil {
				return err
			}
			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			a, err := openApp(ctx, cfg, logger)
			if err != nil {
				return err
			}
			defer a.Close()

			logger.Info("config",
				"addr", cfg.Server.Addr,
				"engine", cfg.Storage.Engine,
				"data_dir", cfg.Storage.DataDir,
				"postgres_dsn", redactDSN(cfg.Storage.PostgresDSN),
				"redis_addr", cfg.Redis.Addr,
				"idle_timeout", cfg.Jobs.IdleTimeout(),
				"batch_max_bytes", cfg.Batch.MaxBytes,
			)
			for _, step := range a.applied {
				logger.Info("schema migrated", "from", step.From, "to", step.To, "written", step.Written)
			}

			h := httptransport.NewHandler(httptransport.Services{
				Tasks:   a.tasks,
				Jobs:    a.jobs,
				Results: a.results,
				Labels:  a.labels,
				Users:   a.users,
			}, logger.With("component", "http"))
			srv := &http.Server{
				Addr: cfg.Server.Addr,
				Handler: httptransport.Routes(h, httptransport.RouterOptions{
					Metrics:  a.metrics.Handler(),
					Observer: a.metrics,
					Swagger:  cfg.Server.EnableSwagger,
				}),
				ReadHeaderTimeout: 10 * time.Second,
			}
			reaper := worker.NewReaper(a.jobs, cfg.Jobs.IdleTimeout(), cfg.Jobs.ReapInterval(), reaperWorkers,
				logger.With("component", "reaper"))

			g, gctx := errgroup.WithContext(ctx)
			g.Go(func() error {
				logger.Info("http server started", "addr", cfg.Server.Addr)
				if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
					return err
				}
				return nil
			})
			g.Go(func() error {
				<-gctx.Done()
				shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout())
				defer cancel()
				return srv.Shutdown(shutdownCtx)
			})
			g.Go(func() error {
				return reaper.Run(gctx)
			})

			err = g.Wait()
			logger.Info("server stopped")
			return err
		},
	}
}
