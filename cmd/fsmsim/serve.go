package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	httpAdapter "github.com/aretw0/fsmsim/pkg/adapters/http"
	"github.com/aretw0/fsmsim/pkg/adapters/file"
	"github.com/aretw0/fsmsim/pkg/adapters/memory"
	"github.com/aretw0/fsmsim/pkg/adapters/redis"
	"github.com/aretw0/fsmsim/pkg/observability"
	"github.com/aretw0/fsmsim/pkg/ports"
	"github.com/aretw0/fsmsim/pkg/session"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/spf13/cobra"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the simulation HTTP server",
	Long: `Hosts simulation sessions over a JSON API. Sessions live in memory unless
--redis is given, in which case they are persisted in Redis and guarded by
distributed locks so several replicas can serve them.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		port, _ := cmd.Flags().GetString("port")
		redisAddr, _ := cmd.Flags().GetString("redis")
		ttl, _ := cmd.Flags().GetDuration("session-ttl")
		machinesDir, _ := cmd.Flags().GetString("machines")

		reg := prometheus.NewRegistry()
		reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
		metrics := observability.NewMetrics(reg)
		hooks := metrics.Hooks()
		if logger.Enabled(cmd.Context(), slog.LevelDebug) {
			hooks = hooks.Merge(observability.LoggingHooks(logger))
		}

		var (
			store ports.SessionStore
			opts  = []session.Option{session.WithLogger(logger), session.WithHooks(hooks)}
		)
		if redisAddr != "" {
			rs := redis.New(redisAddr, redis.WithTTL(ttl))
			if err := rs.Ping(cmd.Context()); err != nil {
				return fmt.Errorf("redis unreachable at %s: %w", redisAddr, err)
			}
			store = rs
			opts = append(opts, session.WithLocker(redis.NewLocker(rs.Client(), "fsmsim:")))
		} else {
			store = memory.NewStore()
		}
		store, err := encrypted(cmd, store)
		if err != nil {
			return err
		}

		serverOpts := []httpAdapter.Option{httpAdapter.WithLogger(logger), httpAdapter.WithMetrics(reg)}
		if machinesDir != "" {
			serverOpts = append(serverOpts, httpAdapter.WithLoader(file.NewLoader(machinesDir)))
		}
		handler := httpAdapter.NewHandler(session.NewManager(store, opts...), serverOpts...)

		srv := &http.Server{
			Addr:              ":" + port,
			Handler:           handler,
			ReadHeaderTimeout: 10 * time.Second,
		}

		// Channel to listen for errors coming from the listener.
		serverErrors := make(chan error, 1)

		go func() {
			logger.Info("starting fsmsim server", "addr", srv.Addr, "redis", redisAddr, "machines", machinesDir)
			fmt.Fprintf(cmd.OutOrStdout(), "fsmsim server listening on %s\n", srv.Addr)
			serverErrors <- srv.ListenAndServe()
		}()

		// Channel to listen for interrupt or terminate signals.
		shutdown := make(chan os.Signal, 1)
		signal.Notify(shutdown, os.Interrupt, syscall.SIGTERM)

		// Blocking main and waiting for shutdown.
		select {
		case err := <-serverErrors:
			if errors.Is(err, http.ErrServerClosed) {
				return nil
			}
			return fmt.Errorf("server error: %w", err)

		case sig := <-shutdown:
			logger.Info("shutdown requested", "signal", sig.String())

			// Give outstanding requests a deadline for completion.
			ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()

			// Asking listener to shut down and shed load.
			if err := srv.Shutdown(ctx); err != nil {
				logger.Warn("graceful shutdown did not complete", "timeout", 5*time.Second, "err", err)
				if err := srv.Close(); err != nil {
					return fmt.Errorf("error killing server: %w", err)
				}
			}
			fmt.Fprintln(cmd.OutOrStdout(), "fsmsim server stopped gracefully")
			return nil
		}
	},
}

func init() {
	rootCmd.AddCommand(serveCmd)
	serveCmd.Flags().StringP("port", "p", "8080", "Port to listen on")
	serveCmd.Flags().String("redis", "", "Redis address (host:port) for persistent sessions")
	serveCmd.Flags().Duration("session-ttl", 0, "Expire idle sessions after this duration (Redis only, 0 keeps them)")
	serveCmd.Flags().String("machines", "", "Directory of machine files clients may reference by path")
	addEncryptionFlags(serveCmd.Flags())
}
