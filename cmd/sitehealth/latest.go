package main

import (
	"context"

	"github.com/spf13/cobra"

	"github.com/jonwraymond/sitehealth/report"
	"github.com/jonwraymond/sitehealth/store"
)

var latestCmd = &cobra.Command{
	Use:   "latest",
	Short: "Print the latest stored report",
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := newApp(cmd.Context())
		if err != nil {
			return err
		}
		defer a.close(context.WithoutCancel(cmd.Context()))

		data, err := a.store.LatestBytes()
		if err != nil {
			return err
		}
		_, err = cmd.OutOrStdout().Write(data)
		return err
	},
}

var showCmd = &cobra.Command{
	Use:   "show <run-id>",
	Short: "Print a stored report by run id",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := newApp(cmd.Context())
		if err != nil {
			return err
		}
		defer a.close(context.WithoutCancel(cmd.Context()))

		rep, err := a.store.Get(args[0])
		if err != nil {
			return err
		}
		return report.Encode(cmd.OutOrStdout(), rep)
	},
}

var historyCmd = &cobra.Command{
	Use:   "history",
	Short: "List stored runs, newest first",
	RunE: func(cmd *cobra.Command, args []string) error {
		limit, _ := cmd.Flags().GetInt("limit")

		a, err := newApp(cmd.Context())
		if err != nil {
			return err
		}
		defer a.close(context.WithoutCancel(cmd.Context()))

		entries, err := a.store.List()
		if err != nil {
			return err
		}
		if limit > 0 && limit < len(entries) {
			entries = entries[:limit]
		}
		printHistory(cmd.OutOrStdout(), store.Summarize(entries))
		return nil
	},
}

func init() {
	historyCmd.Flags().Int("limit", 20, "number of runs to show (0 for all)")
	rootCmd.AddCommand(latestCmd, showCmd, historyCmd)
}
