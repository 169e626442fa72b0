package reporter

import (
	"encoding/json"

	"github.com/ethanolivertroy/depdetect/internal/bom"
)

// JSONEncoder outputs documents in the native JSON layout
type JSONEncoder struct{}

// Encode generates indented JSON for the document
func (e *JSONEncoder) Encode(doc *bom.Document) ([]byte, error) {
	out, err := json.MarshalIndent(doc, "", "  ")
	if err != nil {
		return nil, err
	}
	return append(out, '\n'), nil
}

// Extension implements Encoder.
func (e *JSONEncoder) Extension() string { return ".json" }
