// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package main is the entry point for the refcheck CLI.
package main

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/pdiddy/refcheck/internal/secrets"
	"github.com/pdiddy/refcheck/pkg/types"
)

// version is set at build time via ldflags.
var version = "dev"

// loadedSecrets holds API keys loaded from .secrets/ at startup.
var loadedSecrets map[string]string

// rootCmd is the base command for the refcheck CLI.
var rootCmd = &cobra.Command{
	Use:   "refcheck",
	Short: "Verify that document references cite real, reachable works",
	Long: `refcheck checks the references cited by a document against the public
record. Each reference is searched on the web, judged by a language model
against the search evidence, and optionally cross-checked against its URL,
DOI registration, or an investigative agent session.

Use extract to pull a reference list out of a document, verify to run the
verification pipeline over a references file, and report to revisit past
runs.`,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		s, err := secrets.Load(".secrets/")
		if err != nil {
			return err
		}
		loadedSecrets = s
		if len(s) > 0 {
			keys := make([]string, 0, len(s))
			for k := range s {
				keys = append(keys, k)
			}
			sort.Strings(keys)
			fmt.Fprintf(os.Stderr, "Loaded secrets: %v\n", keys)
		}
		return nil
	},
}

func init() {
	cobra.OnInitialize(initConfig)

	rootCmd.PersistentFlags().String("config", "", "config file (default: ./refcheck.yaml or ~/.config/refcheck/config.yaml)")
}

func initConfig() {
	cfgFile, _ := rootCmd.PersistentFlags().GetString("config")
	if cfgFile != "" {
		viper.SetConfigFile(cfgFile)
	} else {
		viper.SetConfigName("refcheck")
		viper.SetConfigType("yaml")
		viper.AddConfigPath(".")

		home, err := os.UserHomeDir()
		if err == nil {
			viper.AddConfigPath(filepath.Join(home, ".config", "refcheck"))
		}
	}

	viper.SetEnvPrefix("REFCHECK")
	viper.AutomaticEnv()

	if err := viper.ReadInConfig(); err == nil {
		fmt.Fprintln(os.Stderr, "Using config file:", viper.ConfigFileUsed())
	}
}

// pipelineConfig assembles the effective configuration: built-in defaults,
// overlaid with config file and environment values, overlaid with loaded
// secrets.
func pipelineConfig() types.PipelineConfig {
	cfg := types.DefaultPipelineConfig()

	if v := viper.GetString("completion.model"); v != "" {
		cfg.Completion.Model = v
	}
	if v := viper.GetString("completion.base_url"); v != "" {
		cfg.Completion.BaseURL = v
	}
	if viper.IsSet("completion.max_tokens") {
		cfg.Completion.MaxTokens = viper.GetInt("completion.max_tokens")
	}
	if viper.IsSet("web_search.max_results") {
		cfg.WebSearch.MaxResults = viper.GetInt("web_search.max_results")
	}
	if viper.IsSet("fetch.max_content_bytes") {
		cfg.Fetch.MaxContentBytes = viper.GetInt("fetch.max_content_bytes")
	}
	if viper.IsSet("verify.max_retries") {
		cfg.Verify.MaxRetries = viper.GetInt("verify.max_retries")
	}
	if viper.IsSet("verify.retry_base_delay") {
		cfg.Verify.RetryBaseDelay = viper.GetDuration("verify.retry_base_delay")
	}
	if viper.IsSet("verify.strict_no_results") {
		cfg.Verify.StrictNoResults = viper.GetBool("verify.strict_no_results")
	}
	if viper.IsSet("verify.enable_url_check") {
		cfg.Verify.EnableURLCheck = viper.GetBool("verify.enable_url_check")
	}
	if viper.IsSet("agent.enabled") {
		cfg.Agent.Enabled = viper.GetBool("agent.enabled")
	}
	if viper.IsSet("agent.max_iterations") {
		cfg.Agent.MaxIterations = viper.GetInt("agent.max_iterations")
	}
	if viper.IsSet("batch.search_batch_size") {
		cfg.Batch.SearchBatchSize = viper.GetInt("batch.search_batch_size")
	}
	if viper.IsSet("batch.verify_batch_size") {
		cfg.Batch.VerifyBatchSize = viper.GetInt("batch.verify_batch_size")
	}
	if viper.IsSet("batch.search_window_delay") {
		cfg.Batch.SearchWindowDelay = viper.GetDuration("batch.search_window_delay")
	}
	if viper.IsSet("batch.verify_window_delay") {
		cfg.Batch.VerifyWindowDelay = viper.GetDuration("batch.verify_window_delay")
	}
	if v := viper.GetString("report.dir"); v != "" {
		cfg.Report.Dir = v
	}
	if viper.IsSet("report.max_runs") {
		cfg.Report.MaxRuns = viper.GetInt("report.max_runs")
	}

	cfg.Completion.APIKeys = secrets.CompletionKeys(loadedSecrets)
	cfg.WebSearch.APIKey = loadedSecrets[secrets.SerperKey]
	cfg.DOI.MailTo = loadedSecrets[secrets.CrossrefKey]

	return cfg
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}
