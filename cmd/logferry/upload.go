package main

import (
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/logferry/logferry/internal/client"
	"github.com/logferry/logferry/internal/security"
	"github.com/logferry/logferry/internal/store"
)

var uploadCmd = &cobra.Command{
	Use:   "upload [source log file]",
	Short: "Load a source log file and upload its records to the server",
	Long: `Parses the source file (comma-separated, JSON-Lines or either
zstd-compressed), skips malformed lines with a diagnostic, and uploads
the valid records in ascending accessTime order.`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		loader := store.NewLoader(logger)
		queue, skipped, err := loader.LoadFile(args[0])
		if err != nil {
			return err
		}
		logger.Info("source log loaded",
			zap.String("file", args[0]),
			zap.Int("records", queue.Len()),
			zap.Int("skipped", skipped))

		c, err := client.Dial(cmd.Context(), serverAddr(), security.New(), nil, logger)
		if err != nil {
			return err
		}
		defer c.Close()

		_, err = c.Upload(queue)
		return err
	},
}
