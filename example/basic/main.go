package main

import (
	"context"
	"encoding/json"
	"fmt"
	"log"

	"github.com/siherrmann/factual"
	"github.com/siherrmann/factual/core/corpus"
	"github.com/siherrmann/factual/database"
	"github.com/siherrmann/factual/helper"
)

const sampleCorpus = `{"text": "The unlimited meal plan costs $3,000 per semester.", "label": "true", "source": "example", "date": "2025-08-01", "topic": "meal plans"}
{"text": "CS 1110 is worth four credits.", "label": "true", "source": "example", "date": "2025-08-01", "topic": "classes"}
{"text": "Financial aid applications are due on February 15.", "label": "true", "source": "example", "date": "2025-08-01", "topic": "financial aid"}
{"text": "Freshmen are not required to buy a meal plan.", "label": "false", "source": "example", "date": "2025-08-01", "topic": "meal plans"}`

func main() {
	ctx := context.Background()

	// Start a test PostgreSQL container to mirror the corpus into pgvector
	teardown, dbPort, err := helper.MustStartPostgresContainer()
	if err != nil {
		log.Fatalf("Failed to start PostgreSQL container: %v", err)
	}
	defer teardown(ctx)

	dbConfig := &helper.DatabaseConfiguration{
		Host:     "localhost",
		Port:     dbPort,
		Database: "database",
		Username: "user",
		Password: "password",
		Schema:   "public",
		SSLMode:  "disable",
	}

	facts, err := corpus.Parse([]byte(sampleCorpus), "example.jsonl")
	if err != nil {
		log.Fatalf("Failed to parse corpus: %v", err)
	}

	// Local models: all-MiniLM-L6-v2 embeddings, roberta-large-mnli and VADER
	v, err := factual.NewDefaultVerifier(ctx, facts, factual.WithDatabase(dbConfig, database.IndexHNSW))
	if err != nil {
		log.Fatalf("Failed to create verifier: %v", err)
	}
	defer v.Close()

	fmt.Printf("Loaded %d facts\n\n", v.Len())

	claims := []string{
		"The unlimited meal plan costs 3000 dollars a semester.",
		"CS 1110 is worth two credits.",
		"The library opens at 7am.",
	}

	for _, claim := range claims {
		result, err := v.Verify(ctx, claim)
		if err != nil {
			log.Fatalf("Failed to verify claim: %v", err)
		}

		fmt.Printf("Claim: %s\n", claim)
		fmt.Printf("Verdict: %s (true %.2f, false %.2f), tone %s\n", result.Verdict, result.Probabilities.True, result.Probabilities.False, result.Tone.Summary)
		for _, source := range result.NearestConsidered {
			fmt.Printf("  %.3f  %s\n", source.Similarity, source.Text)
		}

		out, err := json.MarshalIndent(result, "", "  ")
		if err != nil {
			log.Fatalf("Failed to marshal result: %v", err)
		}
		fmt.Println(string(out))
		fmt.Println()
	}
}
