package reporter

import (
	"bytes"
	"fmt"

	"github.com/protobom/protobom/pkg/formats"
	"github.com/protobom/protobom/pkg/sbom"
	"github.com/protobom/protobom/pkg/writer"
	"google.golang.org/protobuf/types/known/timestamppb"

	"github.com/ethanolivertroy/depdetect/internal/bom"
)

const projectNodeID = "SPDXRef-Project"

// ProtobomEncoder renders documents in a standard SBOM format through
// protobom.
type ProtobomEncoder struct {
	format formats.Format
	ext    string
}

// NewProtobomEncoder returns an encoder for a protobom format.
func NewProtobomEncoder(format formats.Format, ext string) *ProtobomEncoder {
	return &ProtobomEncoder{format: format, ext: ext}
}

// Extension implements Encoder.
func (e *ProtobomEncoder) Extension() string { return e.ext }

// Encode converts the document and serializes it.
func (e *ProtobomEncoder) Encode(doc *bom.Document) ([]byte, error) {
	var buf bytes.Buffer
	w := writer.New(writer.WithFormat(e.format))
	if err := w.WriteStream(toProtobom(doc), nopCloser{&buf}); err != nil {
		return nil, fmt.Errorf("encoding %s: %w", e.format, err)
	}
	return buf.Bytes(), nil
}

type nopCloser struct {
	*bytes.Buffer
}

func (nopCloser) Close() error { return nil }

// toProtobom maps a document onto a protobom document. The project is the
// single root element and depends on the graph roots.
func toProtobom(doc *bom.Document) *sbom.Document {
	out := sbom.NewDocument()
	name := doc.Name
	if name == "" {
		name = doc.Project.Name + "-" + doc.Project.Version
	}
	out.Metadata.Id = "urn:uuid:" + doc.ID
	out.Metadata.Name = name
	out.Metadata.Version = "1"
	out.Metadata.Date = timestamppb.New(doc.CreationInfo.Created)
	out.Metadata.Tools = append(out.Metadata.Tools, &sbom.Tool{
		Name:    doc.CreationInfo.Tool.Name,
		Version: doc.CreationInfo.Tool.Version,
	})

	ids := map[string]string{doc.Project.Ref: projectNodeID}
	project := &sbom.Node{
		Id:      projectNodeID,
		Type:    sbom.Node_PACKAGE,
		Name:    doc.Project.Name,
		Version: doc.Project.Version,
	}
	if purl := doc.Project.ExternalID.PURL; purl != "" {
		project.Identifiers = map[int32]string{int32(sbom.SoftwareIdentifierType_PURL): purl}
	}
	out.NodeList.AddNode(project)
	out.NodeList.RootElements = append(out.NodeList.RootElements, projectNodeID)

	for i, c := range doc.Components {
		id := fmt.Sprintf("SPDXRef-Package-%d", i+1)
		ids[c.Ref] = id
		node := &sbom.Node{
			Id:      id,
			Type:    sbom.Node_PACKAGE,
			Name:    c.Name,
			Version: c.Version,
			Properties: []*sbom.Property{
				{Name: "externalId", Data: c.Ref},
			},
		}
		if c.ExternalID.PURL != "" {
			node.Identifiers = map[int32]string{int32(sbom.SoftwareIdentifierType_PURL): c.ExternalID.PURL}
		}
		out.NodeList.AddNode(node)
	}

	// Relationships are sorted by source, so consecutive ones share an edge.
	var edge *sbom.Edge
	for _, r := range doc.Relationships {
		from, to := ids[r.From], ids[r.To]
		if from == "" || to == "" {
			continue
		}
		if edge == nil || edge.From != from {
			edge = &sbom.Edge{Type: sbom.Edge_dependsOn, From: from}
			out.NodeList.Edges = append(out.NodeList.Edges, edge)
		}
		edge.To = append(edge.To, to)
	}
	return out
}
