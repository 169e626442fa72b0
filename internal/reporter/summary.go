package reporter

import (
	"encoding/json"
	"fmt"

	"github.com/ethanolivertroy/depdetect/internal/project"
)

// Output formats of the run summary.
const (
	SummaryTerminal = "terminal"
	SummaryJSON     = "json"
)

// Summary describes the outcome of a whole run.
type Summary struct {
	ProjectName      string             `json:"projectName"`
	ProjectVersion   string             `json:"projectVersion"`
	SourcePath       string             `json:"sourcePath"`
	Ecosystems       []EcosystemSummary `json:"ecosystems"`
	FailedEcosystems []string           `json:"failedEcosystems"`
	SearchErrors     []string           `json:"searchErrors,omitempty"`
	CodeLocations    []string           `json:"codeLocations"`
	Files            []string           `json:"files"`
	SignatureScan    string             `json:"signatureScan,omitempty"`
	ExitCode         int                `json:"exitCode"`
	Status           string             `json:"status"`
}

// EcosystemSummary is one row of the ecosystem table.
type EcosystemSummary struct {
	Type       string `json:"type"`
	Applicable int    `json:"applicable"`
	Extracted  int    `json:"extracted"`
	Succeeded  int    `json:"succeeded"`
	Failed     int    `json:"failed"`
}

// NewSummary collects the summary of a run. Files are the documents written
// and code is the final exit status.
func NewSummary(p *project.DetectProject, files []string, snippetMode bool, code project.ExitCode) *Summary {
	s := &Summary{
		ProjectName:      p.Name(),
		ProjectVersion:   p.Version(),
		SourcePath:       p.SourcePath(),
		Ecosystems:       []EcosystemSummary{},
		FailedEcosystems: []string{},
		CodeLocations:    []string{},
		Files:            append([]string{}, files...),
		ExitCode:         int(code),
		Status:           code.String(),
	}
	for _, o := range p.Outcomes() {
		s.Ecosystems = append(s.Ecosystems, EcosystemSummary{
			Type:       string(o.Type),
			Applicable: o.Applicable,
			Extracted:  o.Extracted,
			Succeeded:  o.Succeeded,
			Failed:     o.Failed,
		})
	}
	for _, t := range p.FailedEcosystems() {
		s.FailedEcosystems = append(s.FailedEcosystems, string(t))
	}
	for _, err := range p.SearchErrors() {
		s.SearchErrors = append(s.SearchErrors, err.Error())
	}
	for _, cl := range p.CodeLocations() {
		s.CodeLocations = append(s.CodeLocations, cl.Name)
	}
	if source, ok := p.NeedsSignatureScan(snippetMode); ok {
		s.SignatureScan = string(source)
	}
	return s
}

// SummaryReporter renders a run summary.
type SummaryReporter interface {
	Report(s *Summary) ([]byte, error)
}

// GetSummaryReporter returns the summary renderer for a format.
func GetSummaryReporter(format string) (SummaryReporter, error) {
	switch format {
	case "", SummaryTerminal:
		return &TerminalReporter{}, nil
	case SummaryJSON:
		return &JSONSummary{}, nil
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownFormat, format)
	}
}

// JSONSummary renders the summary as JSON.
type JSONSummary struct{}

// Report implements SummaryReporter.
func (r *JSONSummary) Report(s *Summary) ([]byte, error) {
	out, err := json.MarshalIndent(s, "", "  ")
	if err != nil {
		return nil, err
	}
	return append(out, '\n'), nil
}
