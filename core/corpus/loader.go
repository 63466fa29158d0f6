package corpus

import (
	"bytes"
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"

	"github.com/siherrmann/factual/helper"
	"github.com/siherrmann/factual/model"
)

// RequiredFields are the keys every corpus source has to provide
var RequiredFields = []string{"text", "label", "source", "date", "topic"}

// labelAliases maps normalized raw label values to the canonical labels
var labelAliases = map[string]string{
	"1":     model.LabelTrue,
	"t":     model.LabelTrue,
	"true":  model.LabelTrue,
	"0":     model.LabelFalse,
	"f":     model.LabelFalse,
	"false": model.LabelFalse,
}

// Loader reads corpus sources into fact records
type Loader struct {
	logger *slog.Logger
}

// NewLoader creates a new corpus loader
func NewLoader(logger *slog.Logger) *Loader {
	if logger == nil {
		logger = slog.Default()
	}
	return &Loader{logger: logger}
}

// LoadFile reads a single JSON or JSONL file with slog.Default as logger
func LoadFile(path string) ([]model.FactRecord, error) {
	return NewLoader(nil).LoadFiles(path)
}

// LoadFiles reads several files with slog.Default as logger
func LoadFiles(paths ...string) ([]model.FactRecord, error) {
	return NewLoader(nil).LoadFiles(paths...)
}

// LoadFiles reads all files in order and concatenates their records.
// Positions and IDs are assigned over the whole corpus.
func (l *Loader) LoadFiles(paths ...string) ([]model.FactRecord, error) {
	facts := []model.FactRecord{}
	for _, path := range paths {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, helper.NewError("read corpus file", err)
		}

		records, dropped, err := parse(data, filepath.Base(path))
		if err != nil {
			return nil, err
		}

		l.logger.Info("Loaded corpus source", slog.String("source", path), slog.Int("kept", len(records)), slog.Int("dropped", dropped))
		facts = append(facts, records...)
	}

	reposition(facts)
	l.logger.Info("Corpus loaded", slog.Int("sources", len(paths)), slog.Int("facts", len(facts)))

	return facts, nil
}

// Parse converts a JSON array or newline delimited JSON payload into fact records.
// name identifies the source in errors.
func Parse(data []byte, name string) ([]model.FactRecord, error) {
	records, _, err := parse(data, name)
	if err != nil {
		return nil, err
	}
	reposition(records)
	return records, nil
}

// NormalizeLabel lower-cases and trims a raw label and resolves the boolean aliases.
// Unknown values are returned normalized but otherwise unchanged.
func NormalizeLabel(raw string) string {
	label := strings.TrimSpace(strings.ToLower(raw))
	if alias, ok := labelAliases[label]; ok {
		return alias
	}
	return label
}

func parse(data []byte, name string) ([]model.FactRecord, int, error) {
	raw := bytes.TrimSpace(data)
	if len(raw) == 0 {
		return []model.FactRecord{}, 0, nil
	}

	var rows []map[string]json.RawMessage
	if bytes.Contains(raw, []byte("\n")) && raw[0] != '[' {
		for i, line := range bytes.Split(raw, []byte("\n")) {
			line = bytes.TrimSpace(line)
			if len(line) == 0 {
				continue
			}

			row := map[string]json.RawMessage{}
			if err := json.Unmarshal(line, &row); err != nil {
				return nil, 0, helper.NewError(fmt.Sprintf("parse %s line %d", name, i+1), err)
			}
			rows = append(rows, row)
		}
	} else {
		if err := json.Unmarshal(raw, &rows); err != nil {
			return nil, 0, helper.NewError(fmt.Sprintf("parse %s", name), err)
		}
	}

	if err := checkSchema(rows, name); err != nil {
		return nil, 0, err
	}

	records := make([]model.FactRecord, 0, len(rows))
	dropped := 0
	for _, row := range rows {
		text := strings.TrimSpace(stringify(row["text"]))
		if text == "" {
			dropped++
			continue
		}

		source := stringify(row["source"])
		records = append(records, model.FactRecord{
			ID:     model.NewFactID(source, text),
			Text:   text,
			Label:  NormalizeLabel(stringify(row["label"])),
			Source: source,
			Date:   stringify(row["date"]),
			Topic:  stringify(row["topic"]),
		})
	}

	return records, dropped, nil
}

// checkSchema fails when a required field is absent from every row
func checkSchema(rows []map[string]json.RawMessage, name string) error {
	if len(rows) == 0 {
		return nil
	}

	missing := []string{}
	for _, field := range RequiredFields {
		present := false
		for _, row := range rows {
			if _, ok := row[field]; ok {
				present = true
				break
			}
		}
		if !present {
			missing = append(missing, field)
		}
	}

	if len(missing) > 0 {
		sort.Strings(missing)
		return &model.SchemaError{Source: name, Missing: missing}
	}
	return nil
}

// stringify renders a JSON value as text. Null renders as empty string.
func stringify(value json.RawMessage) string {
	if len(value) == 0 {
		return ""
	}

	var v interface{}
	decoder := json.NewDecoder(bytes.NewReader(value))
	decoder.UseNumber()
	if err := decoder.Decode(&v); err != nil {
		return string(value)
	}

	switch typed := v.(type) {
	case nil:
		return ""
	case string:
		return typed
	case json.Number:
		return typed.String()
	case bool:
		return strconv.FormatBool(typed)
	default:
		return string(value)
	}
}

func reposition(facts []model.FactRecord) {
	for i := range facts {
		facts[i].Position = i
	}
}
