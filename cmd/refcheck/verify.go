// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package main

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/cobra"
	"go.yaml.in/yaml/v3"

	"github.com/pdiddy/refcheck/internal/agent"
	"github.com/pdiddy/refcheck/internal/doi"
	"github.com/pdiddy/refcheck/internal/fetch"
	"github.com/pdiddy/refcheck/internal/llm"
	"github.com/pdiddy/refcheck/internal/report"
	"github.com/pdiddy/refcheck/internal/verify"
	"github.com/pdiddy/refcheck/internal/websearch"
	"github.com/pdiddy/refcheck/pkg/types"
)

var verifyCmd = &cobra.Command{
	Use:   "verify [references-file]",
	Short: "Verify a references file against the public record",
	Long: `Verify reads a references file (YAML or JSON), runs every reference
through the verification pipeline, and writes back the outcomes. Each
reference ends verified, unverified, error, or needs-human, with a one-line
rationale and the stage that decided it.

The run is recorded in the report database so it can be revisited with
"refcheck report".`,
	Args: cobra.ExactArgs(1),
	RunE: runVerify,
}

func init() {
	verifyCmd.Flags().String("output", "", "write processed references to this file (default: overwrite input)")
	verifyCmd.Flags().Bool("agent", false, "escalate unresolved references to the investigative agent")
	verifyCmd.Flags().Bool("no-save", false, "do not record the run in the report database")
	verifyCmd.Flags().Bool("json", false, "print outcomes as JSON instead of a table")

	rootCmd.AddCommand(verifyCmd)
}

func runVerify(cmd *cobra.Command, args []string) error {
	cfg := pipelineConfig()
	if agentFlag, _ := cmd.Flags().GetBool("agent"); agentFlag {
		cfg.Agent.Enabled = true
	}

	if len(cfg.Completion.APIKeys) == 0 {
		return fmt.Errorf("no completion API key: add .secrets/%s or set one in the config", "openai-api-key")
	}
	if cfg.WebSearch.APIKey == "" {
		return fmt.Errorf("no web search API key: add .secrets/serper-api-key")
	}

	refsFile, err := readReferencesFile(args[0])
	if err != nil {
		return err
	}
	if len(refsFile.References) == 0 {
		return fmt.Errorf("%s contains no references", args[0])
	}

	pipeline, err := buildPipeline(cfg)
	if err != nil {
		return err
	}

	started := time.Now()
	processed, err := pipeline.Run(context.Background(), refsFile.References)
	if err != nil {
		return err
	}
	finished := time.Now()

	outPath, _ := cmd.Flags().GetString("output")
	if outPath == "" {
		outPath = args[0]
	}
	if err := writeReferencesFile(outPath, types.ReferencesFile{References: processed}); err != nil {
		return err
	}

	if noSave, _ := cmd.Flags().GetBool("no-save"); !noSave {
		store, err := report.NewStore(cfg.Report)
		if err != nil {
			return err
		}
		defer store.Close()
		run, err := store.Save(context.Background(), args[0], started, finished, processed)
		if err != nil {
			return err
		}
		fmt.Fprintf(os.Stderr, "recorded run %s\n", run.ID)
	}

	jsonOutput, _ := cmd.Flags().GetBool("json")
	if err := formatVerifyOutput(processed, jsonOutput); err != nil {
		return err
	}

	summary := report.Summarize(processed)
	if summary.Errors > 0 {
		return fmt.Errorf("%d reference(s) ended in error", summary.Errors)
	}
	return nil
}

// buildPipeline wires the collaborators into the verification pipeline.
func buildPipeline(cfg types.PipelineConfig) (*verify.Pipeline, error) {
	pool, err := llm.NewPool(cfg.Completion)
	if err != nil {
		return nil, err
	}

	searchClient := &websearch.Client{
		HTTP: &http.Client{Timeout: cfg.WebSearch.Timeout},
		Cfg:  cfg.WebSearch,
	}
	fetchClient := &fetch.Client{
		HTTP: &http.Client{Timeout: cfg.Fetch.Timeout},
		Cfg:  cfg.Fetch,
	}
	doiClient := &doi.Client{
		HTTP: &http.Client{Timeout: cfg.DOI.Timeout},
		Cfg:  cfg.DOI,
	}

	chain := &verify.Chain{
		Pool:   pool,
		Search: searchClient,
		Fetch:  fetchClient,
		Cfg:    cfg.Verify,
	}

	pipeline := &verify.Pipeline{
		Chain:  chain,
		Search: searchClient,
		Cfg:    cfg,
		Out:    os.Stdout,
	}

	if cfg.Agent.Enabled {
		pipeline.Agent = &agent.Loop{
			Pool: pool,
			Tools: &agent.Toolset{
				Search:         searchClient,
				DOI:            doiClient,
				Fetch:          fetchClient,
				MaxRetries:     cfg.Verify.MaxRetries,
				RetryBaseDelay: cfg.Verify.RetryBaseDelay,
			},
			Cfg:            cfg.Agent,
			MaxRetries:     cfg.Verify.MaxRetries,
			RetryBaseDelay: cfg.Verify.RetryBaseDelay,
		}
	}

	return pipeline, nil
}

// readReferencesFile parses a YAML or JSON references file, picking the
// codec by extension.
func readReferencesFile(path string) (types.ReferencesFile, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return types.ReferencesFile{}, fmt.Errorf("reading %s: %w", path, err)
	}

	var refsFile types.ReferencesFile
	if strings.EqualFold(filepath.Ext(path), ".json") {
		if err := json.Unmarshal(data, &refsFile); err != nil {
			return types.ReferencesFile{}, fmt.Errorf("parsing %s: %w", path, err)
		}
	} else {
		if err := yaml.Unmarshal(data, &refsFile); err != nil {
			return types.ReferencesFile{}, fmt.Errorf("parsing %s: %w", path, err)
		}
	}
	return refsFile, nil
}

func writeReferencesFile(path string, refsFile types.ReferencesFile) error {
	var data []byte
	var err error
	if strings.EqualFold(filepath.Ext(path), ".json") {
		data, err = json.MarshalIndent(refsFile, "", "  ")
	} else {
		data, err = yaml.Marshal(refsFile)
	}
	if err != nil {
		return fmt.Errorf("encoding references: %w", err)
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("writing %s: %w", path, err)
	}
	return nil
}

func formatVerifyOutput(refs []types.Reference, jsonOutput bool) error {
	if jsonOutput {
		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		return enc.Encode(refs)
	}

	fmt.Fprintf(os.Stdout, "%-4s  %-12s  %-44s  %-10s  %s\n",
		"#", "Status", "Title", "Source", "Message")
	fmt.Fprintln(os.Stdout, strings.Repeat("-", 110))

	for i, ref := range refs {
		title := ref.Title
		if title == "" {
			title = ref.Raw
		}
		if len(title) > 44 {
			title = title[:41] + "..."
		}
		message := ref.Message
		if len(message) > 40 {
			message = message[:37] + "..."
		}
		fmt.Fprintf(os.Stdout, "%-4d  %-12s  %-44s  %-10s  %s\n",
			i+1, ref.Status, title, ref.VerificationSource, message)
	}

	summary := report.Summarize(refs)
	fmt.Fprintf(os.Stdout, "\n%d references: %d verified, %d unverified, %d error, %d needs-human\n",
		summary.Total, summary.Verified, summary.Unverified, summary.Errors, summary.NeedsHuman)
	return nil
}
