package cli

import (
	"context"
	"encoding/json"
	"time"

	"github.com/spf13/cobra"
)

var (
	verifyTimeout time.Duration
	verifyCompact bool
)

// verifyCmd represents the verify command
var verifyCmd = &cobra.Command{
	Use:   "verify <claim>",
	Short: "Verify a single claim and print the result as JSON",
	Long: `Verify loads the corpus, checks one claim and prints the verification
result as JSON to stdout.

Example:
  factual verify "The unlimited meal plan costs 3000 dollars."
  factual verify "CS 1110 has four credits." --corpus classes.jsonl --backend openai`,
	Args: cobra.ExactArgs(1),
	RunE: runVerify,
}

func init() {
	rootCmd.AddCommand(verifyCmd)

	verifyCmd.Flags().DurationVar(&verifyTimeout, "timeout", 5*time.Minute, "overall timeout including model loading")
	verifyCmd.Flags().BoolVar(&verifyCompact, "compact", false, "print compact JSON")
}

func runVerify(cmd *cobra.Command, args []string) error {
	settings, err := loadSettings()
	if err != nil {
		return err
	}
	logger := settings.logger(cmd.ErrOrStderr())

	ctx, cancel := context.WithTimeout(cmd.Context(), verifyTimeout)
	defer cancel()

	verifier, err := settings.buildVerifier(ctx, logger, nil)
	if err != nil {
		return err
	}
	defer verifier.Close()

	result, err := verifier.Verify(ctx, args[0])
	if err != nil {
		return err
	}

	encoder := json.NewEncoder(cmd.OutOrStdout())
	if !verifyCompact {
		encoder.SetIndent("", "  ")
	}
	encoder.SetEscapeHTML(false)
	return encoder.Encode(result)
}
