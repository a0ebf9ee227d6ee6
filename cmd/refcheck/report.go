// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/pdiddy/refcheck/internal/report"
)

var reportCmd = &cobra.Command{
	Use:   "report",
	Short: "List and inspect recorded verification runs",
}

var reportListCmd = &cobra.Command{
	Use:   "list",
	Short: "List recorded verification runs, newest first",
	RunE:  runReportList,
}

var reportShowCmd = &cobra.Command{
	Use:   "show [run-id]",
	Short: "Show the references recorded for one run",
	Args:  cobra.ExactArgs(1),
	RunE:  runReportShow,
}

func init() {
	reportCmd.PersistentFlags().Bool("json", false, "output as JSON")

	reportCmd.AddCommand(reportListCmd)
	reportCmd.AddCommand(reportShowCmd)
	rootCmd.AddCommand(reportCmd)
}

func runReportList(cmd *cobra.Command, args []string) error {
	cfg := pipelineConfig()
	store, err := report.NewStore(cfg.Report)
	if err != nil {
		return err
	}
	defer store.Close()

	runs, err := store.ListRuns(context.Background())
	if err != nil {
		return err
	}

	if jsonOutput, _ := cmd.Flags().GetBool("json"); jsonOutput {
		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		return enc.Encode(runs)
	}

	if len(runs) == 0 {
		fmt.Println("No recorded runs.")
		return nil
	}

	fmt.Fprintf(os.Stdout, "%-36s  %-20s  %-24s  %-5s  %-8s  %-10s  %-5s  %s\n",
		"Run", "Started", "Source", "Total", "Verified", "Unverified", "Error", "Needs-human")
	fmt.Fprintln(os.Stdout, strings.Repeat("-", 120))
	for _, run := range runs {
		source := run.Source
		if len(source) > 24 {
			source = source[:21] + "..."
		}
		fmt.Fprintf(os.Stdout, "%-36s  %-20s  %-24s  %-5d  %-8d  %-10d  %-5d  %d\n",
			run.ID, run.StartedAt.Local().Format(time.DateTime), source,
			run.Total, run.Verified, run.Unverified, run.Errors, run.NeedsHuman)
	}
	return nil
}

func runReportShow(cmd *cobra.Command, args []string) error {
	cfg := pipelineConfig()
	store, err := report.NewStore(cfg.Report)
	if err != nil {
		return err
	}
	defer store.Close()

	refs, err := store.RunReferences(context.Background(), args[0])
	if err != nil {
		return err
	}

	jsonOutput, _ := cmd.Flags().GetBool("json")
	return formatVerifyOutput(refs, jsonOutput)
}
