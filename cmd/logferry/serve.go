package main

import (
	"fmt"
	"net"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/logferry/logferry/internal/mux"
	"github.com/logferry/logferry/internal/security"
	"github.com/logferry/logferry/internal/server"
	"github.com/logferry/logferry/internal/store"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the server under the configured multiplexing strategy",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()

		strategy, err := mux.New(cfg.Strategy, logger, mux.Config{
			Workers:      cfg.Workers,
			DrainTimeout: cfg.DrainTimeout,
		})
		if err != nil {
			return err
		}

		ln, err := net.Listen("tcp", fmt.Sprintf(":%d", cfg.Port))
		if err != nil {
			return fmt.Errorf("listen on port %d: %w", cfg.Port, err)
		}

		// Transport security stays off until configuration provides
		// material; the config object is still built and passed here
		// so enabling it is a wiring change, not a rewrite.
		sec := security.New()
		ln = sec.WrapListener(ln)

		handler := server.NewHandler(store.NewRecordStore(), logger)

		logger.Info("server listening",
			zap.String("addr", ln.Addr().String()),
			zap.String("strategy", strategy.Name()))

		if err := strategy.Serve(ctx, ln, handler); err != nil {
			return fmt.Errorf("serve: %w", err)
		}
		logger.Info("server stopped")
		return nil
	},
}
