package model

import "github.com/google/uuid"

// Canonical label values after normalization.
const (
	LabelTrue  = "true"
	LabelFalse = "false"
)

// factNamespace scopes the deterministic fact IDs
var factNamespace = uuid.NewSHA1(uuid.NameSpaceURL, []byte("https://github.com/siherrmann/factual/facts"))

// FactRecord is one trusted statement of the corpus
type FactRecord struct {
	ID       uuid.UUID `json:"id"`
	Text     string    `json:"text"`
	Label    string    `json:"label"`
	Source   string    `json:"source"`
	Date     string    `json:"date"`
	Topic    string    `json:"topic"`
	Position int       `json:"position"`
}

// NewFactID derives a stable ID from the source and text of a fact,
// so rebuilding the same corpus yields the same IDs.
func NewFactID(source string, text string) uuid.UUID {
	return uuid.NewSHA1(factNamespace, []byte(source+"\x00"+text))
}
