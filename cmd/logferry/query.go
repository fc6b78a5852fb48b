package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/logferry/logferry/internal/client"
	"github.com/logferry/logferry/internal/history"
	"github.com/logferry/logferry/internal/model"
	"github.com/logferry/logferry/internal/security"
)

var queryLocal bool

var queryCmd = &cobra.Command{
	Use:   "query [filter]",
	Short: "Query the server (or the cached view) with a filter string",
	Long: `Submits a comma-separated filter query such as
"server=srvA,accessTime<75" and pushes the result onto the query
history. With --local the filter narrows the current cached view
instead of asking the server.`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		hist, err := history.Open(cfg.HistoryFile)
		if err != nil {
			return err
		}
		defer hist.Close()

		var results []model.LogEntry
		if queryLocal {
			c := client.NewLocal(hist, logger)
			results, err = c.FilterLocal(args[0])
		} else {
			var c *client.Client
			c, err = client.Dial(cmd.Context(), serverAddr(), security.New(), hist, logger)
			if err != nil {
				return err
			}
			defer c.Close()
			results, err = c.Query(args[0])
		}
		if err != nil {
			return err
		}

		printEntries(results)
		return nil
	},
}

var undoCmd = &cobra.Command{
	Use:   "undo",
	Short: "Undo the most recent filter/query action",
	RunE: func(cmd *cobra.Command, args []string) error {
		hist, err := history.Open(cfg.HistoryFile)
		if err != nil {
			return err
		}
		defer hist.Close()

		c := client.NewLocal(hist, logger)
		view, err := c.Undo()
		if err != nil {
			return err
		}
		printEntries(view)
		return nil
	},
}

var historyCmd = &cobra.Command{
	Use:   "history",
	Short: "Show the filter strings on the query-history stack",
	RunE: func(cmd *cobra.Command, args []string) error {
		hist, err := history.Open(cfg.HistoryFile)
		if err != nil {
			return err
		}
		defer hist.Close()

		filters := hist.Filters()
		fmt.Printf("Total filters: %d\n", len(filters))
		for _, f := range filters {
			fmt.Println(f)
		}
		return nil
	},
}

func printEntries(entries []model.LogEntry) {
	fmt.Printf("%d record(s)\n", len(entries))
	for _, e := range entries {
		fmt.Printf("%s %s %s port=%d time=%d sent=%d recv=%d score=%g\n",
			e.Username, e.IP, e.Server, e.Port, e.AccessTime,
			e.DataSent, e.DataReceived, e.Score)
	}
}

func init() {
	queryCmd.Flags().BoolVar(&queryLocal, "local", false,
		"filter the cached view instead of querying the server")
}
