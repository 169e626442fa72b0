// Package bom builds bill-of-materials documents from dependency graphs.
package bom

import (
	"cmp"
	"slices"
	"strings"
	"time"

	"github.com/git-pkgs/vers"
	"github.com/google/uuid"

	"github.com/ethanolivertroy/depdetect/internal/graph"
	"github.com/ethanolivertroy/depdetect/internal/models"
)

// SpecVersion is the version of the native document layout.
const SpecVersion = "1.0.0"

// RelationshipDependsOn is the only relationship type emitted.
const RelationshipDependsOn = "DEPENDS_ON"

// documentNamespace scopes the deterministic document ids.
var documentNamespace = uuid.NewSHA1(uuid.NameSpaceURL, []byte("https://github.com/ethanolivertroy/depdetect/bom"))

// ExternalID is the serialized form of a models.ExternalID.
type ExternalID struct {
	Forge     string `json:"forge"`
	Namespace string `json:"namespace,omitempty"`
	Name      string `json:"name"`
	Version   string `json:"version,omitempty"`
	PURL      string `json:"purl,omitempty"`
}

func newExternalID(id models.ExternalID) ExternalID {
	if id.IsZero() {
		return ExternalID{}
	}
	return ExternalID{
		Forge:     id.Forge.Name,
		Namespace: id.Namespace,
		Name:      id.Name,
		Version:   id.Version,
		PURL:      id.PURL(),
	}
}

// Document is a deterministic description of one dependency graph.
type Document struct {
	SpecVersion   string         `json:"specVersion"`
	ID            string         `json:"id"`
	Name          string         `json:"name"`
	CreationInfo  CreationInfo   `json:"creationInfo"`
	Project       Project        `json:"project"`
	Components    []Component    `json:"components"`
	Relationships []Relationship `json:"relationships"`
}

// CreationInfo records when and by which tool a document was produced.
type CreationInfo struct {
	Created  time.Time `json:"created"`
	Creators []string  `json:"creators"`
	Tool     Tool      `json:"tool"`
}

// Tool identifies the program that produced a document.
type Tool struct {
	Name    string `json:"name"`
	Version string `json:"version"`
}

type Project struct {
	Name       string     `json:"name"`
	Version    string     `json:"version"`
	Ref        string     `json:"ref"`
	ExternalID ExternalID `json:"externalId"`
}

// Component is one dependency. Ref is the id's canonical string and is
// unique within a document.
type Component struct {
	Ref        string     `json:"ref"`
	Name       string     `json:"name"`
	Version    string     `json:"version,omitempty"`
	Root       bool       `json:"root,omitempty"`
	ExternalID ExternalID `json:"externalId"`

	id models.ExternalID
}

type Relationship struct {
	From string `json:"from"`
	To   string `json:"to"`
	Type string `json:"type"`
}

// Builder stamps documents with the tool identity.
type Builder struct {
	ToolName    string
	ToolVersion string
	// Now defaults to time.Now.
	Now func() time.Time
}

// NewBuilder returns a builder for the named tool.
func NewBuilder(toolName, toolVersion string) *Builder {
	return &Builder{ToolName: toolName, ToolVersion: toolVersion, Now: time.Now}
}

// Creator is the tool creator record stamped on every document.
func (b *Builder) Creator() string {
	return "Tool: " + b.ToolName + "-" + b.ToolVersion
}

// Build creates the document for a graph. Everything except the creation
// time depends only on the arguments. A nil graph yields a document without
// components.
func (b *Builder) Build(
	codeLocationName, projectName, projectVersion string, projectID models.ExternalID, g *graph.Graph,
) *Document {
	if g == nil {
		g = graph.Empty()
	}
	now := time.Now
	if b.Now != nil {
		now = b.Now
	}

	projectRef := projectID.String()
	if projectID.IsZero() {
		projectRef = models.NewNameVersion(models.ForgeProject, projectName, projectVersion).String()
	}
	seed := strings.Join([]string{codeLocationName, projectName, projectVersion, projectRef}, "\x00")

	doc := &Document{
		SpecVersion: SpecVersion,
		ID:          uuid.NewSHA1(documentNamespace, []byte(seed)).String(),
		Name:        codeLocationName,
		CreationInfo: CreationInfo{
			Created:  now().UTC(),
			Creators: []string{b.Creator()},
			Tool:     Tool{Name: b.ToolName, Version: b.ToolVersion},
		},
		Project: Project{
			Name:       projectName,
			Version:    projectVersion,
			Ref:        projectRef,
			ExternalID: newExternalID(projectID),
		},
		Components:    []Component{},
		Relationships: []Relationship{},
	}

	for _, n := range g.Nodes() {
		doc.Components = append(doc.Components, Component{
			Ref:        n.ID.String(),
			Name:       n.Name,
			Version:    n.Version,
			Root:       g.IsRoot(n.ID),
			ExternalID: newExternalID(n.ID),
			id:         n.ID,
		})
	}
	slices.SortFunc(doc.Components, func(a, b Component) int { return compareIDs(a.id, b.id) })

	order := make(map[string]int, len(doc.Components))
	for i, c := range doc.Components {
		order[c.Ref] = i
	}
	for _, c := range doc.Components {
		if c.Root {
			doc.Relationships = append(doc.Relationships, Relationship{From: projectRef, To: c.Ref, Type: RelationshipDependsOn})
		}
	}
	var edges []Relationship
	for _, e := range g.Edges() {
		edges = append(edges, Relationship{From: e.Parent.String(), To: e.Child.String(), Type: RelationshipDependsOn})
	}
	slices.SortFunc(edges, func(a, b Relationship) int {
		return cmp.Or(cmp.Compare(order[a.From], order[b.From]), cmp.Compare(order[a.To], order[b.To]))
	})
	doc.Relationships = append(doc.Relationships, edges...)
	return doc
}

// compareIDs orders ids like ExternalID.Compare, except that versions of the
// same package are compared as versions rather than as text.
func compareIDs(a, b models.ExternalID) int {
	if c := cmp.Or(
		cmp.Compare(a.Forge.Name, b.Forge.Name),
		cmp.Compare(a.Namespace, b.Namespace),
		cmp.Compare(a.Name, b.Name),
	); c != 0 {
		return c
	}
	if a.Version != b.Version {
		if c := vers.Compare(a.Version, b.Version); c != 0 {
			return c
		}
	}
	return a.Compare(b)
}
