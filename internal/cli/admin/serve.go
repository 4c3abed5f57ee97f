package admin

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/cloo-solutions/reelrag/internal/api/handlers"
	"github.com/cloo-solutions/reelrag/internal/config"
	"github.com/cloo-solutions/reelrag/internal/database"
	"github.com/cloo-solutions/reelrag/internal/jobs"
	"github.com/cloo-solutions/reelrag/internal/server"
	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"
)

const shutdownTimeout = 30 * time.Second

// ServeCmd returns the serve command
func ServeCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Start the API server",
		Long: `Start the reelrag API server on the specified port.

When PIPELINE_INTERVAL is set, the ingestion pipeline also runs on that
interval in the same process.`,
		RunE: runServe,
	}

	cmd.Flags().StringP("port", "p", "", "Port to listen on (defaults to PORT)")
	cmd.Flags().Bool("no-migrate", false, "Skip automatic database migrations on startup")
	cmd.Flags().String("migrations", database.DefaultMigrationsDir, "Directory containing migration files")
	cmd.Flags().Bool("run-on-start", false, "Run the pipeline once immediately when scheduling is enabled")

	return cmd
}

func runServe(cmd *cobra.Command, args []string) error {
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}

	shutdownTelemetry := initTelemetry(cfg)
	defer shutdownTelemetry()

	if portFlag, _ := cmd.Flags().GetString("port"); portFlag != "" {
		cfg.Port = portFlag
	}

	noMigrate, _ := cmd.Flags().GetBool("no-migrate")
	if !noMigrate {
		dir, _ := cmd.Flags().GetString("migrations")
		if err := database.Migrate(cfg.DatabaseURL, dir, database.MigrateUp); err != nil {
			return fmt.Errorf("failed to run migrations: %w", err)
		}
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	a, err := newApp(ctx, cfg)
	if err != nil {
		return err
	}
	defer a.Close()

	router := server.NewRouter(server.RouterConfig{
		RetrievalHandler: handlers.NewRetrievalHandler(a.retrieval),
		PipelineHandler:  handlers.NewPipelineHandler(a.pipeline),
	})

	srv := &http.Server{
		Addr:              ":" + cfg.Port,
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	g, gCtx := errgroup.WithContext(ctx)

	g.Go(func() error {
		log.Printf("starting server on port %s", cfg.Port)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("server failed: %w", err)
		}
		return nil
	})

	if cfg.PipelineInterval > 0 {
		var opts []jobs.WorkerOption
		if runOnStart, _ := cmd.Flags().GetBool("run-on-start"); runOnStart {
			opts = append(opts, jobs.WithRunOnStart())
		}
		scheduler := jobs.NewWorker("scheduler", a.pipeline, cfg.PipelineInterval, opts...)
		g.Go(func() error {
			scheduler.Start(gCtx)
			return nil
		})
	} else {
		log.Println("PIPELINE_INTERVAL not set: pipeline runs only on demand")
	}

	g.Go(func() error {
		<-gCtx.Done()
		log.Println("shutting down...")

		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			return fmt.Errorf("server forced to shutdown: %w", err)
		}
		return nil
	})

	if err := g.Wait(); err != nil {
		return err
	}

	log.Println("server exited")
	return nil
}
