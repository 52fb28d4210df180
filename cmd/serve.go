package cmd

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"storefront/repository"
	"storefront/telemetry"

	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"
)

const shutdownTimeout = 10 * time.Second

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the storefront HTTP API",
	RunE:  runServe,
}

func init() {
	serveCmd.Flags().String("port", "", "HTTP port (default from $PORT or 8080)")
	serveCmd.Flags().Bool("migrate", true, "Apply the schema before serving")
	serveCmd.Flags().String("admin-email", "", "Create this admin account on start unless it exists (password from $STORE_ADMIN_PASSWORD)")
	rootCmd.AddCommand(serveCmd)
}

func runServe(cmd *cobra.Command, args []string) error {
	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	port := cfg.HTTPPort
	if p, _ := cmd.Flags().GetString("port"); p != "" {
		port = p
	}

	shutdownTracing, err := telemetry.Setup(ctx, telemetry.Options{
		ServiceName:  "storefront",
		OTLPEndpoint: cfg.OTLPEndpoint,
		Stdout:       cfg.TraceStdout,
	})
	if err != nil {
		return err
	}
	defer func() {
		sctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		if err := shutdownTracing(sctx); err != nil {
			log.Printf("tracing shutdown: %v", err)
		}
	}()

	b, err := openBackend(ctx)
	if err != nil {
		return err
	}
	defer b.Close()

	if m, _ := cmd.Flags().GetBool("migrate"); m {
		if err = repository.Migrate(ctx, b.db, cfg.DBDriver); err != nil {
			return err
		}
	}
	if email, _ := cmd.Flags().GetString("admin-email"); email != "" {
		password := os.Getenv("STORE_ADMIN_PASSWORD")
		if password == "" {
			return errors.New("STORE_ADMIN_PASSWORD is required with --admin-email")
		}
		created, err := b.users.EnsureAdmin(ctx, email, password, "Administrator")
		if err != nil {
			return fmt.Errorf("create admin: %w", err)
		}
		if created {
			log.Printf("admin %s created", email)
		}
	}

	srv := &http.Server{
		Addr:              ":" + port,
		Handler:           telemetry.Handler(b.handler().Server(cfg.CORSOrigins, os.Stdout), "storefront"),
		ReadHeaderTimeout: 10 * time.Second,
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		log.Printf("starting server on %s...", srv.Addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		log.Printf("shutting down...")
		sctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		// hijacked feed connections are not tracked by Shutdown
		b.hub.Close()
		return srv.Shutdown(sctx)
	})
	return g.Wait()
}
