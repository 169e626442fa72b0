package bom

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/ethanolivertroy/depdetect/internal/graph"
	"github.com/ethanolivertroy/depdetect/internal/models"
)

func npm(name, version string) graph.Node {
	return graph.NewNode(models.NewNameVersion(models.ForgeNpmjs, name, version))
}

func sampleGraph() *graph.Graph {
	express := npm("express", "4.18.2")
	debug := npm("debug", "2.6.9")
	return graph.NewBuilder().
		AddRoot(express).
		AddRoot(npm("debug", "4.3.4")).
		AddChild(express, debug).
		AddChild(debug, npm("ms", "2.0.0")).
		Build()
}

func fixedBuilder(at time.Time) *Builder {
	b := NewBuilder("depdetect", "1.2.0")
	b.Now = func() time.Time { return at }
	return b
}

func TestBuildIsDeterministic(t *testing.T) {
	t.Parallel()

	project := models.NewNameVersion(models.ForgeNpmjs, "web", "1.0.0")
	first := fixedBuilder(time.Unix(100, 0)).Build("web/1.0.0/web NPM bom", "web", "1.0.0", project, sampleGraph())
	second := fixedBuilder(time.Unix(200, 0)).Build("web/1.0.0/web NPM bom", "web", "1.0.0", project, sampleGraph())

	require.NotEqual(t, first.CreationInfo.Created, second.CreationInfo.Created)
	second.CreationInfo.Created = first.CreationInfo.Created
	require.Equal(t, first, second)

	other := fixedBuilder(time.Unix(100, 0)).Build("other", "web", "1.0.0", project, sampleGraph())
	require.NotEqual(t, first.ID, other.ID)
}

func TestBuildContents(t *testing.T) {
	t.Parallel()

	project := models.NewNameVersion(models.ForgeNpmjs, "web", "1.0.0")
	doc := fixedBuilder(time.Unix(100, 0)).Build("loc", "web", "1.0.0", project, sampleGraph())

	require.Equal(t, SpecVersion, doc.SpecVersion)
	require.Equal(t, []string{"Tool: depdetect-1.2.0"}, doc.CreationInfo.Creators)
	require.Equal(t, "npmjs:web@1.0.0", doc.Project.Ref)
	require.Equal(t, "pkg:npm/web@1.0.0", doc.Project.ExternalID.PURL)

	var refs []string
	for _, c := range doc.Components {
		refs = append(refs, c.Ref)
	}
	require.Equal(t, []string{
		"npmjs:debug@2.6.9", "npmjs:debug@4.3.4", "npmjs:express@4.18.2", "npmjs:ms@2.0.0",
	}, refs)
	require.True(t, doc.Components[1].Root)
	require.False(t, doc.Components[0].Root)

	require.Equal(t, []Relationship{
		{From: "npmjs:web@1.0.0", To: "npmjs:debug@4.3.4", Type: RelationshipDependsOn},
		{From: "npmjs:web@1.0.0", To: "npmjs:express@4.18.2", Type: RelationshipDependsOn},
		{From: "npmjs:debug@2.6.9", To: "npmjs:ms@2.0.0", Type: RelationshipDependsOn},
		{From: "npmjs:express@4.18.2", To: "npmjs:debug@2.6.9", Type: RelationshipDependsOn},
	}, doc.Relationships)
}

func TestComponentsUseVersionOrder(t *testing.T) {
	t.Parallel()

	g := graph.NewBuilder().
		AddRoot(npm("lib", "1.10.0")).
		AddRoot(npm("lib", "1.9.0")).
		AddRoot(npm("lib", "1.2.3")).
		Build()
	doc := fixedBuilder(time.Unix(0, 0)).Build("", "p", "1", models.ExternalID{}, g)

	var versions []string
	for _, c := range doc.Components {
		versions = append(versions, c.Version)
	}
	require.Equal(t, []string{"1.2.3", "1.9.0", "1.10.0"}, versions)
}

func TestAggregateAndEmptyDocuments(t *testing.T) {
	t.Parallel()

	aggregate := models.NewNameVersion(models.ForgeProject, "proj", "2.0")
	doc := fixedBuilder(time.Unix(0, 0)).Build("", "proj", "2.0", aggregate, nil)

	require.Empty(t, doc.Name)
	require.Equal(t, "/:proj/2.0", doc.Project.Ref)
	require.NotNil(t, doc.Components)
	require.Empty(t, doc.Components)
	require.Empty(t, doc.Relationships)

	unnamed := fixedBuilder(time.Unix(0, 0)).Build("", "proj", "2.0", models.ExternalID{}, graph.Empty())
	require.Equal(t, doc.Project.Ref, unnamed.Project.Ref)
	require.Empty(t, unnamed.Project.ExternalID.Forge)
}
