package codelocation

import (
	"github.com/ethanolivertroy/depdetect/internal/graph"
	"github.com/ethanolivertroy/depdetect/internal/models"
)

// CodeLocation is one extracted dependency graph plus the metadata describing
// where it came from. Extractors create it; nothing modifies it afterwards.
type CodeLocation struct {
	Type models.Ecosystem
	// SourcePath is the absolute directory the extractor ran in.
	SourcePath string
	// RelativePath is SourcePath relative to the search root, slash separated.
	RelativePath string
	// Name distinguishes several code locations produced from one directory
	// (for example a module or workspace member name). May be empty.
	Name              string
	ProjectExternalID models.ExternalID
	Graph             *graph.Graph

	// Declared project metadata, if the ecosystem reports any.
	ProjectName    string
	ProjectVersion string
}

// Less orders code locations independently of extraction order.
func (c *CodeLocation) Less(o *CodeLocation) bool {
	switch {
	case c.Type != o.Type:
		return c.Type < o.Type
	case c.RelativePath != o.RelativePath:
		return c.RelativePath < o.RelativePath
	case c.Name != o.Name:
		return c.Name < o.Name
	case c.ProjectExternalID != o.ProjectExternalID:
		return c.ProjectExternalID.Less(o.ProjectExternalID)
	default:
		return c.SourcePath < o.SourcePath
	}
}
