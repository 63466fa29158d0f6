package corpus

import (
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/siherrmann/factual/helper"
	"github.com/siherrmann/factual/model"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const arrayCorpus = `[
	{"text": "The unlimited meal plan costs $3,800 per semester.", "label": "1", "source": "dining.cornell.edu", "date": "2025", "topic": "Meal Plans"},
	{"text": "   ", "label": "1", "source": "dining.cornell.edu", "date": "2025", "topic": "Meal Plans"},
	{"text": "CS 1110 is offered in the fall.", "label": "T", "source": "classes.cornell.edu", "date": "2025", "topic": "Classes"}
]`

const linesCorpus = `{"text": "FAFSA opens in October.", "label": 0, "source": "finaid", "date": "2025", "topic": "Aid"}

{"text": "Tuition is charged per semester.", "label": "yes", "source": "finaid", "date": "2025", "topic": "Aid"}
`

func TestParse(t *testing.T) {
	t.Run("Parses a JSON array", func(t *testing.T) {
		facts, err := Parse([]byte(arrayCorpus), "array.json")

		require.NoError(t, err)
		require.Len(t, facts, 2, "Blank text should be dropped")
		assert.Equal(t, "The unlimited meal plan costs $3,800 per semester.", facts[0].Text)
		assert.Equal(t, model.LabelTrue, facts[0].Label)
		assert.Equal(t, "dining.cornell.edu", facts[0].Source)
		assert.Equal(t, "2025", facts[0].Date)
		assert.Equal(t, "Meal Plans", facts[0].Topic)
		assert.Equal(t, 0, facts[0].Position)
		assert.Equal(t, model.LabelTrue, facts[1].Label)
		assert.Equal(t, 1, facts[1].Position)
	})

	t.Run("Parses newline delimited JSON", func(t *testing.T) {
		facts, err := Parse([]byte(linesCorpus), "lines.jsonl")

		require.NoError(t, err)
		require.Len(t, facts, 2)
		assert.Equal(t, model.LabelFalse, facts[0].Label, "Numeric label should be stringified and aliased")
		assert.Equal(t, "yes", facts[1].Label, "Unknown label should pass through")
	})

	t.Run("Single line without array is one object per line", func(t *testing.T) {
		_, err := Parse([]byte(`{"text": "a", "label": "1", "source": "s", "date": "d", "topic": "t"}`), "single.json")
		assert.Error(t, err, "A single object without newline is parsed as array and must fail")
	})

	t.Run("Assigns deterministic IDs", func(t *testing.T) {
		first, err := Parse([]byte(arrayCorpus), "array.json")
		require.NoError(t, err)
		second, err := Parse([]byte(arrayCorpus), "array.json")
		require.NoError(t, err)

		assert.Equal(t, first[0].ID, second[0].ID)
		assert.NotEqual(t, first[0].ID, first[1].ID)
	})

	t.Run("Trims text", func(t *testing.T) {
		facts, err := Parse([]byte(`[{"text": "  padded  ", "label": "1", "source": "s", "date": "d", "topic": "t"}]`), "pad.json")

		require.NoError(t, err)
		require.Len(t, facts, 1)
		assert.Equal(t, "padded", facts[0].Text)
	})

	t.Run("Drops null text", func(t *testing.T) {
		facts, err := Parse([]byte(`[{"text": null, "label": "1", "source": "s", "date": "d", "topic": "t"}]`), "null.json")

		require.NoError(t, err)
		assert.Empty(t, facts)
	})

	t.Run("Field present in one record satisfies the schema", func(t *testing.T) {
		data := `[
			{"text": "a", "label": "1", "source": "s", "date": "d", "topic": "t"},
			{"text": "b", "label": "1", "source": "s"}
		]`
		facts, err := Parse([]byte(data), "partial.json")

		require.NoError(t, err)
		require.Len(t, facts, 2)
		assert.Equal(t, "", facts[1].Date)
		assert.Equal(t, "", facts[1].Topic)
	})

	t.Run("Missing field fails with schema error", func(t *testing.T) {
		data := `[{"text": "a", "label": "1", "source": "s"}]`
		_, err := Parse([]byte(data), "broken.json")

		var schemaErr *model.SchemaError
		require.True(t, errors.As(err, &schemaErr))
		assert.Equal(t, "broken.json", schemaErr.Source)
		assert.Equal(t, []string{"date", "topic"}, schemaErr.Missing)
	})

	t.Run("Empty payload yields no facts", func(t *testing.T) {
		facts, err := Parse([]byte("  \n "), "empty.json")

		require.NoError(t, err)
		assert.Empty(t, facts)
	})

	t.Run("Invalid JSON fails", func(t *testing.T) {
		_, err := Parse([]byte(`[{"text": }]`), "invalid.json")

		require.Error(t, err)
		var traced *helper.Error
		assert.True(t, errors.As(err, &traced))
	})

	t.Run("Invalid JSONL line reports line number", func(t *testing.T) {
		_, err := Parse([]byte("{\"text\": \"a\"}\nnot json"), "invalid.jsonl")

		require.Error(t, err)
		assert.Contains(t, err.Error(), "line 2")
	})
}

func TestNormalizeLabel(t *testing.T) {
	tests := []struct {
		raw      string
		expected string
	}{
		{"1", "true"},
		{" T ", "true"},
		{"TRUE", "true"},
		{"0", "false"},
		{"f", "false"},
		{"False", "false"},
		{"Maybe", "maybe"},
		{"", ""},
	}

	for _, tt := range tests {
		t.Run("Normalizes "+tt.raw, func(t *testing.T) {
			assert.Equal(t, tt.expected, NormalizeLabel(tt.raw))
		})
	}
}

func TestLoadFiles(t *testing.T) {
	dir := t.TempDir()
	arrayPath := filepath.Join(dir, "array.json")
	linesPath := filepath.Join(dir, "lines.jsonl")
	require.NoError(t, os.WriteFile(arrayPath, []byte(arrayCorpus), 0600))
	require.NoError(t, os.WriteFile(linesPath, []byte(linesCorpus), 0600))

	t.Run("Concatenates sources in order", func(t *testing.T) {
		loader := NewLoader(helper.DiscardLogger())
		facts, err := loader.LoadFiles(arrayPath, linesPath)

		require.NoError(t, err)
		require.Len(t, facts, 4)
		assert.Equal(t, "CS 1110 is offered in the fall.", facts[1].Text)
		assert.Equal(t, "FAFSA opens in October.", facts[2].Text)
		for i, fact := range facts {
			assert.Equal(t, i, fact.Position, "Positions should be reassigned over the whole corpus")
		}
	})

	t.Run("Load single file", func(t *testing.T) {
		facts, err := LoadFile(linesPath)

		require.NoError(t, err)
		assert.Len(t, facts, 2)
	})

	t.Run("Missing file fails", func(t *testing.T) {
		_, err := LoadFiles(filepath.Join(dir, "missing.json"))
		assert.Error(t, err)
	})
}
