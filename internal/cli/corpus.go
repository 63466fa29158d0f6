package cli

import (
	"fmt"
	"sort"

	"github.com/siherrmann/factual/core/corpus"
	"github.com/siherrmann/factual/helper"
	"github.com/siherrmann/factual/model"
	"github.com/spf13/cobra"
)

// corpusCmd represents the corpus command
var corpusCmd = &cobra.Command{
	Use:   "corpus",
	Short: "Inspect corpus files",
}

var corpusCheckCmd = &cobra.Command{
	Use:   "check <file>...",
	Short: "Validate corpus files and report their contents",
	Long: `Check parses every file the way the verifier does, reports schema errors
and prints the number of facts per file, label and topic.

Example:
  factual corpus check financial_aid_facts.json cornell_classes_2025.json`,
	Args: cobra.MinimumNArgs(1),
	RunE: runCorpusCheck,
}

func init() {
	rootCmd.AddCommand(corpusCmd)
	corpusCmd.AddCommand(corpusCheckCmd)
}

// CorpusReport summarizes one corpus file
type CorpusReport struct {
	File    string
	Facts   int
	Labels  map[string]int
	Topics  map[string]int
	Invalid error
}

// checkCorpus loads every file on its own so one broken file does not hide the others
func checkCorpus(files []string) []CorpusReport {
	loader := corpus.NewLoader(helper.DiscardLogger())

	reports := []CorpusReport{}
	for _, file := range files {
		report := CorpusReport{File: file, Labels: map[string]int{}, Topics: map[string]int{}}

		facts, err := loader.LoadFiles(file)
		if err != nil {
			report.Invalid = err
			reports = append(reports, report)
			continue
		}

		report.Facts = len(facts)
		for _, fact := range facts {
			report.Labels[fact.Label]++
			report.Topics[fact.Topic]++
		}
		reports = append(reports, report)
	}
	return reports
}

func runCorpusCheck(cmd *cobra.Command, args []string) error {
	out := cmd.OutOrStdout()
	invalid := 0
	total := 0

	for _, report := range checkCorpus(args) {
		if report.Invalid != nil {
			invalid++
			fmt.Fprintf(out, "✗ %s: %v\n", report.File, report.Invalid)
			continue
		}

		total += report.Facts
		fmt.Fprintf(out, "✓ %s: %d facts\n", report.File, report.Facts)
		for _, label := range sortedKeys(report.Labels) {
			marker := ""
			if label != model.LabelTrue && label != model.LabelFalse {
				marker = " (unrecognized label)"
			}
			fmt.Fprintf(out, "    label %-12s %d%s\n", label, report.Labels[label], marker)
		}
		for _, topic := range sortedKeys(report.Topics) {
			fmt.Fprintf(out, "    topic %-12s %d\n", topic, report.Topics[topic])
		}
	}

	fmt.Fprintf(out, "\n%d facts in %d files\n", total, len(args)-invalid)
	if invalid > 0 {
		return fmt.Errorf("%d of %d corpus files are invalid", invalid, len(args))
	}
	return nil
}

func sortedKeys(m map[string]int) []string {
	keys := make([]string, 0, len(m))
	for key := range m {
		keys = append(keys, key)
	}
	sort.Strings(keys)
	return keys
}
