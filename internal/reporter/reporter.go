// Package reporter encodes bill-of-materials documents, writes them to the
// output directory and renders the run summary.
package reporter

import (
	"errors"
	"fmt"

	"github.com/protobom/protobom/pkg/formats"

	"github.com/ethanolivertroy/depdetect/internal/bom"
)

// Output formats.
const (
	FormatJSON      = "json"
	FormatCycloneDX = "cyclonedx"
	FormatSPDX      = "spdx"
)

// Formats lists every supported output format.
var Formats = []string{FormatJSON, FormatCycloneDX, FormatSPDX}

// ErrUnknownFormat is returned for unsupported output formats.
var ErrUnknownFormat = errors.New("unknown output format")

// Encoder is the interface for document serializers
type Encoder interface {
	// Encode serializes a document
	Encode(doc *bom.Document) ([]byte, error)
	// Extension is appended to the names of encoded files
	Extension() string
}

// Get returns an encoder for the specified format
func Get(format string) (Encoder, error) {
	switch format {
	case "", FormatJSON:
		return &JSONEncoder{}, nil
	case FormatCycloneDX:
		return NewProtobomEncoder(formats.CDX15JSON, ".cdx.json"), nil
	case FormatSPDX:
		return NewProtobomEncoder(formats.SPDX23JSON, ".spdx.json"), nil
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownFormat, format)
	}
}
