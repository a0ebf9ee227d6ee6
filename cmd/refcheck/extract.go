// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"go.yaml.in/yaml/v3"

	"github.com/pdiddy/refcheck/internal/extract"
	"github.com/pdiddy/refcheck/pkg/types"
)

var extractCmd = &cobra.Command{
	Use:   "extract [document]",
	Short: "Extract the reference list from a document",
	Long: `Extract parses the References or Bibliography section of a Markdown or
plain-text document into a references file ready for "refcheck verify".
Fields the heuristics cannot pick out stay empty; the raw entry text is
always preserved and the verification stages work from it.`,
	Args: cobra.ExactArgs(1),
	RunE: runExtract,
}

func init() {
	extractCmd.Flags().String("output", "", "write the references file here (default: stdout)")

	rootCmd.AddCommand(extractCmd)
}

func runExtract(cmd *cobra.Command, args []string) error {
	data, err := os.ReadFile(args[0])
	if err != nil {
		return fmt.Errorf("reading %s: %w", args[0], err)
	}

	refs := extract.Bibliography(string(data))
	if len(refs) == 0 {
		return fmt.Errorf("no references section found in %s", args[0])
	}

	outPath, _ := cmd.Flags().GetString("output")
	if outPath != "" {
		if err := writeReferencesFile(outPath, types.ReferencesFile{References: refs}); err != nil {
			return err
		}
		fmt.Fprintf(os.Stderr, "extracted %d references to %s\n", len(refs), outPath)
		return nil
	}

	out, err := yaml.Marshal(types.ReferencesFile{References: refs})
	if err != nil {
		return fmt.Errorf("encoding references: %w", err)
	}
	fmt.Print(string(out))
	return nil
}
