// Package project turns the evaluations of a scan into a DetectProject:
// named code locations, the resolved project name and version, failed
// ecosystems and the run's exit status.
package project

import (
	"context"
	"fmt"
	"path/filepath"
	"slices"
	"strings"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/ethanolivertroy/depdetect/internal/codelocation"
	"github.com/ethanolivertroy/depdetect/internal/finder"
	"github.com/ethanolivertroy/depdetect/internal/graph"
	"github.com/ethanolivertroy/depdetect/internal/models"
	"github.com/ethanolivertroy/depdetect/internal/scanner"
)

// VersionScheme selects how a missing project version is derived.
type VersionScheme string

const (
	VersionSchemeText      VersionScheme = "text"
	VersionSchemeTimestamp VersionScheme = "timestamp"
)

const (
	UnnamedProject       = "unnamed-project"
	DefaultVersionText   = "Default Detect Version"
	DefaultVersionLayout = "2006-01-02T15:04:05.000"
)

// ScanPathSource tells the signature scanner why a path was handed to it.
type ScanPathSource string

const (
	ScanPathSourceDetect  ScanPathSource = "DETECT_SOURCE"
	ScanPathSourceSnippet ScanPathSource = "SNIPPET_SOURCE"
)

// Settings are the project options of a run.
type Settings struct {
	ProjectName        string
	ProjectVersion     string
	CodeLocationPrefix string
	CodeLocationSuffix string
	VersionScheme      VersionScheme
	VersionText        string
	// VersionTimeFormat is a Go time layout.
	VersionTimeFormat string
	// FileExtension is appended to every output file name.
	FileExtension string
	// AggregateName, when set, names the single combined output document.
	AggregateName string
	// Now defaults to time.Now.
	Now func() time.Time
}

// NamedCodeLocation is a code location with its unique name within the
// project and the file its document is written to.
type NamedCodeLocation struct {
	*codelocation.CodeLocation
	Name     string
	FileName string
}

// DetectProject is the aggregated result of a run.
type DetectProject struct {
	mu sync.Mutex

	name       string
	version    string
	sourcePath string
	fileExt    string

	codeLocations []*NamedCodeLocation
	byName        map[string]*NamedCodeLocation
	fileNames     map[string]struct{}

	failed           map[models.Ecosystem]struct{}
	foundAnyBomTools bool
	searchErrors     []*finder.SearchError
	outcomes         []scanner.Outcome
}

// Aggregate builds the project from a scan report. Code locations are ordered
// before they are named, so names do not depend on extraction order.
func Aggregate(ctx context.Context, report *scanner.Report, s Settings) *DetectProject {
	logger := zerolog.Ctx(ctx)

	var locations []*codelocation.CodeLocation
	found := false
	for _, se := range report.Evaluations {
		if se == nil {
			continue
		}
		if se.ReachedExtraction() {
			found = true
		}
		if se.Succeeded() {
			locations = append(locations, se.Extraction.CodeLocations...)
		}
	}
	slices.SortStableFunc(locations, func(a, b *codelocation.CodeLocation) int {
		switch {
		case a.Less(b):
			return -1
		case b.Less(a):
			return 1
		}
		return 0
	})

	sourcePath := ""
	if len(report.Roots) > 0 {
		sourcePath = report.Roots[0]
	}
	p := &DetectProject{
		name:             projectName(s, locations, sourcePath),
		version:          projectVersion(s, locations),
		sourcePath:       sourcePath,
		fileExt:          s.FileExtension,
		byName:           make(map[string]*NamedCodeLocation),
		fileNames:        make(map[string]struct{}),
		failed:           make(map[models.Ecosystem]struct{}),
		foundAnyBomTools: found,
		searchErrors:     slices.Clone(report.SearchErrors),
		outcomes:         slices.Clone(report.Outcomes),
	}

	for _, cl := range locations {
		p.AddCodeLocation(s, cl)
	}
	for _, o := range report.Outcomes {
		if o.Failed > 0 && o.Succeeded == 0 {
			p.RecordFailedEcosystem(o.Type)
		}
	}

	logger.Info().
		Str("project", p.name).
		Str("version", p.version).
		Int("code_locations", len(p.codeLocations)).
		Msg("project aggregated")
	if !found {
		logger.Info().Str("source", sourcePath).Msg("no package managers were detected")
	}
	return p
}

func projectName(s Settings, locations []*codelocation.CodeLocation, sourcePath string) string {
	if name := strings.TrimSpace(s.ProjectName); name != "" {
		return name
	}
	for _, cl := range locations {
		if name := strings.TrimSpace(cl.ProjectName); name != "" {
			return name
		}
	}
	if sourcePath != "" {
		base := filepath.Base(sourcePath)
		if base != "." && base != string(filepath.Separator) {
			return base
		}
	}
	return UnnamedProject
}

func projectVersion(s Settings, locations []*codelocation.CodeLocation) string {
	if v := strings.TrimSpace(s.ProjectVersion); v != "" {
		return v
	}
	for _, cl := range locations {
		if v := strings.TrimSpace(cl.ProjectVersion); v != "" {
			return v
		}
	}
	if s.VersionScheme == VersionSchemeTimestamp {
		layout := s.VersionTimeFormat
		if layout == "" {
			layout = DefaultVersionLayout
		}
		now := time.Now
		if s.Now != nil {
			now = s.Now
		}
		return now().UTC().Format(layout)
	}
	if s.VersionText == "" {
		return DefaultVersionText
	}
	return s.VersionText
}

// AddCodeLocation names cl uniquely within the project and assigns its
// output file name.
func (p *DetectProject) AddCodeLocation(s Settings, cl *codelocation.CodeLocation) *NamedCodeLocation {
	p.mu.Lock()
	defer p.mu.Unlock()

	name := codeLocationName(s, p.name, p.version, cl)
	if p.taken(name) && cl.Name != "" {
		name = name + " " + cl.Name
	}
	if p.taken(name) {
		base := name
		for n := 2; p.taken(name); n++ {
			name = fmt.Sprintf("%s #%d", base, n)
		}
	}

	file := EscapeFileName(name)
	if p.fileTaken(file) {
		base := file + "_" + shortHash(name)
		file = base
		for n := 2; p.fileTaken(file); n++ {
			file = fmt.Sprintf("%s_%d", base, n)
		}
	}
	p.fileNames[file] = struct{}{}

	named := &NamedCodeLocation{CodeLocation: cl, Name: name, FileName: file + p.fileExt}
	p.byName[name] = named
	p.codeLocations = append(p.codeLocations, named)
	return named
}

func (p *DetectProject) fileTaken(file string) bool {
	_, ok := p.fileNames[file]
	return ok
}

func (p *DetectProject) taken(name string) bool {
	_, ok := p.byName[name]
	return ok
}

// RecordFailedEcosystem marks an ecosystem as failed.
func (p *DetectProject) RecordFailedEcosystem(t models.Ecosystem) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.failed[t] = struct{}{}
}

func (p *DetectProject) Name() string       { return p.name }
func (p *DetectProject) Version() string    { return p.version }
func (p *DetectProject) SourcePath() string { return p.sourcePath }

// ExternalID identifies the project itself in aggregate documents.
func (p *DetectProject) ExternalID() models.ExternalID {
	return models.NewNameVersion(models.ForgeProject, p.name, p.version)
}

// CodeLocations returns the named code locations in naming order.
func (p *DetectProject) CodeLocations() []*NamedCodeLocation {
	p.mu.Lock()
	defer p.mu.Unlock()
	return slices.Clone(p.codeLocations)
}

// CodeLocation looks up a code location by its unique name.
func (p *DetectProject) CodeLocation(name string) (*NamedCodeLocation, bool) {
	p.mu.Lock()
	defer p.mu.Unlock()
	cl, ok := p.byName[name]
	return cl, ok
}

// FailedEcosystems returns the failed ecosystems, sorted.
func (p *DetectProject) FailedEcosystems() []models.Ecosystem {
	p.mu.Lock()
	defer p.mu.Unlock()
	out := make([]models.Ecosystem, 0, len(p.failed))
	for t := range p.failed {
		out = append(out, t)
	}
	slices.Sort(out)
	return out
}

// FoundAnyBomTools reports whether any strategy reached extraction.
func (p *DetectProject) FoundAnyBomTools() bool { return p.foundAnyBomTools }

// SearchErrors returns the roots that could not be searched.
func (p *DetectProject) SearchErrors() []*finder.SearchError { return p.searchErrors }

// Outcomes returns the per-ecosystem outcome table of the scan.
func (p *DetectProject) Outcomes() []scanner.Outcome { return p.outcomes }

// NeedsSignatureScan reports whether the source path should be handed to the
// signature scanner, and why.
func (p *DetectProject) NeedsSignatureScan(snippetMode bool) (ScanPathSource, bool) {
	switch {
	case !p.foundAnyBomTools:
		return ScanPathSourceDetect, true
	case snippetMode:
		return ScanPathSourceSnippet, true
	default:
		return "", false
	}
}

// AggregateFileName is the output file of the combined document.
func (p *DetectProject) AggregateFileName(aggregateName string) string {
	return EscapeFileName(aggregateName) + p.fileExt
}

// AggregateGraph merges every code location graph into one. Code locations
// without a graph are skipped.
func (p *DetectProject) AggregateGraph(ctx context.Context) *graph.Graph {
	logger := zerolog.Ctx(ctx)
	var graphs []*graph.Graph
	for _, cl := range p.CodeLocations() {
		if cl.Graph == nil {
			logger.Warn().Str("source", cl.SourcePath).Msg("dependency graph is missing, skipping code location")
			continue
		}
		if len(cl.Graph.Roots()) == 0 {
			logger.Warn().Str("source", cl.SourcePath).Msg("could not find any dependencies for code location")
		}
		graphs = append(graphs, cl.Graph)
	}
	return graph.Aggregate(graphs...)
}

// ExitCode reduces failed ecosystems and search errors to the worst status.
func (p *DetectProject) ExitCode() ExitCode {
	p.mu.Lock()
	defer p.mu.Unlock()
	codes := make([]ExitCode, 0, len(p.failed)+len(p.searchErrors))
	for range p.failed {
		codes = append(codes, ExitBomToolFailure)
	}
	for _, err := range p.searchErrors {
		codes = append(codes, SearchExitCode(err))
	}
	return Worst(codes...)
}
