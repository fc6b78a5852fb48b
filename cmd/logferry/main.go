package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/logferry/logferry/internal/config"
	"github.com/logferry/logferry/internal/logging"
)

var (
	cfg    config.Config
	logger *zap.Logger
)

var rootCmd = &cobra.Command{
	Use:   "logferry",
	Short: "logferry - access-log upload and query over a binary protocol",
	Long: `logferry ships structured access-log records from clients to a
server over a compact binary protocol and answers filter queries
against the records the server has seen.

The server multiplexes connections under a configurable strategy
(sequential, threaded, readiness or pool); the client keeps an
undoable, durably mirrored history of every filter it applies.`,
	SilenceUsage: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		var err error
		logger, err = logging.New(cfg.Debug)
		if err != nil {
			return fmt.Errorf("initialize logger: %w", err)
		}
		return nil
	},
	PersistentPostRun: func(cmd *cobra.Command, args []string) {
		if logger != nil {
			_ = logger.Sync()
		}
	},
}

func main() {
	cfg = config.Load()

	rootCmd.PersistentFlags().StringVar(&cfg.Host, "host", cfg.Host, "server host")
	rootCmd.PersistentFlags().IntVarP(&cfg.Port, "port", "p", cfg.Port, "server port")
	rootCmd.PersistentFlags().BoolVar(&cfg.Debug, "debug", cfg.Debug, "verbose development logging")

	serveCmd.Flags().StringVar(&cfg.Strategy, "strategy", cfg.Strategy,
		"connection strategy: sequential, threaded, readiness or pool")
	serveCmd.Flags().IntVar(&cfg.Workers, "workers", cfg.Workers,
		"worker count for the pool strategy")
	serveCmd.Flags().DurationVar(&cfg.DrainTimeout, "drain-timeout", cfg.DrainTimeout,
		"how long in-flight connections may drain during shutdown")

	for _, c := range []*cobra.Command{queryCmd, undoCmd, historyCmd} {
		c.Flags().StringVar(&cfg.HistoryFile, "history-file", cfg.HistoryFile,
			"path of the query-history mirror file")
	}

	rootCmd.AddCommand(serveCmd, uploadCmd, queryCmd, undoCmd, historyCmd)

	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func serverAddr() string {
	return fmt.Sprintf("%s:%d", cfg.Host, cfg.Port)
}
