package reporter

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/go-git/go-billy/v5/memfs"
	"github.com/go-git/go-billy/v5/util"
	"github.com/stretchr/testify/require"

	"github.com/ethanolivertroy/depdetect/internal/bom"
	"github.com/ethanolivertroy/depdetect/internal/codelocation"
	"github.com/ethanolivertroy/depdetect/internal/graph"
	"github.com/ethanolivertroy/depdetect/internal/models"
	"github.com/ethanolivertroy/depdetect/internal/project"
	"github.com/ethanolivertroy/depdetect/internal/scanner"
	"github.com/ethanolivertroy/depdetect/internal/strategy"
)

func sampleDocument(t *testing.T) *bom.Document {
	t.Helper()
	express := graph.NewNode(models.NewNameVersion(models.ForgeNpmjs, "express", "4.18.2"))
	debug := graph.NewNode(models.NewNameVersion(models.ForgeNpmjs, "debug", "2.6.9"))
	g := graph.NewBuilder().AddRoot(express).AddChild(express, debug).Build()

	b := bom.NewBuilder("depdetect", "test")
	b.Now = func() time.Time { return time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC) }
	return b.Build("web/1.0.0/web NPM bom", "web", "1.0.0",
		models.NewNameVersion(models.ForgeNpmjs, "web", "1.0.0"), g)
}

func TestGet(t *testing.T) {
	t.Parallel()

	tests := []struct {
		format string
		ext    string
	}{
		{format: "", ext: ".json"},
		{format: FormatJSON, ext: ".json"},
		{format: FormatCycloneDX, ext: ".cdx.json"},
		{format: FormatSPDX, ext: ".spdx.json"},
	}
	for _, tt := range tests {
		t.Run(tt.format, func(t *testing.T) {
			t.Parallel()
			enc, err := Get(tt.format)
			require.NoError(t, err)
			require.Equal(t, tt.ext, enc.Extension())
		})
	}

	_, err := Get("xml")
	require.ErrorIs(t, err, ErrUnknownFormat)
}

func TestJSONEncoderIsStable(t *testing.T) {
	t.Parallel()

	enc := &JSONEncoder{}
	first, err := enc.Encode(sampleDocument(t))
	require.NoError(t, err)
	second, err := enc.Encode(sampleDocument(t))
	require.NoError(t, err)
	require.Equal(t, first, second)

	var decoded bom.Document
	require.NoError(t, json.Unmarshal(first, &decoded))
	require.Equal(t, bom.SpecVersion, decoded.SpecVersion)
	require.Len(t, decoded.Components, 2)
	require.Equal(t, "npmjs:web@1.0.0", decoded.Project.Ref)
}

func TestProtobomEncoders(t *testing.T) {
	t.Parallel()

	for _, format := range []string{FormatCycloneDX, FormatSPDX} {
		t.Run(format, func(t *testing.T) {
			t.Parallel()
			enc, err := Get(format)
			require.NoError(t, err)
			out, err := enc.Encode(sampleDocument(t))
			require.NoError(t, err)
			require.Contains(t, string(out), "express")
			require.Contains(t, string(out), "pkg:npm/debug@2.6.9")
		})
	}
}

func TestToProtobomEdges(t *testing.T) {
	t.Parallel()

	doc := toProtobom(sampleDocument(t))
	require.Equal(t, []string{projectNodeID}, doc.NodeList.RootElements)
	require.Len(t, doc.NodeList.Nodes, 3)
	require.Len(t, doc.NodeList.Edges, 2)

	// debug sorts before express
	require.Equal(t, projectNodeID, doc.NodeList.Edges[0].From)
	require.Equal(t, []string{"SPDXRef-Package-2"}, doc.NodeList.Edges[0].To)
	require.Equal(t, "SPDXRef-Package-2", doc.NodeList.Edges[1].From)
	require.Equal(t, []string{"SPDXRef-Package-1"}, doc.NodeList.Edges[1].To)
}

func TestOutputWriterReplacesExistingFile(t *testing.T) {
	t.Parallel()

	fs := memfs.New()
	require.NoError(t, util.WriteFile(fs, "web.json", []byte("previous run, much longer content"), 0o644))

	w := NewOutputWriterFS(fs)
	path, err := w.Write(t.Context(), "web.json", []byte("new"))
	require.NoError(t, err)
	require.Contains(t, path, "web.json")

	got, err := util.ReadFile(fs, "web.json")
	require.NoError(t, err)
	require.Equal(t, "new", string(got))

	_, err = w.Write(t.Context(), "other.json", []byte("x"))
	require.NoError(t, err)
}

func TestOutputWriterCreatesDirectory(t *testing.T) {
	t.Parallel()

	dir := t.TempDir() + "/nested/out"
	w, err := NewOutputWriter(dir)
	require.NoError(t, err)
	path, err := w.Write(t.Context(), "a.json", []byte("{}"))
	require.NoError(t, err)
	require.Equal(t, dir+"/a.json", path)
}

func sampleProject(t *testing.T) *project.DetectProject {
	t.Helper()
	ex := strategy.Success(&codelocation.CodeLocation{
		Type:         models.EcosystemNpm,
		SourcePath:   "/src/web",
		RelativePath: "web",
		Graph:        graph.Empty(),
	})
	report := &scanner.Report{
		Roots: []string{"/src"},
		Evaluations: []*strategy.StrategyEvaluation{{
			Strategy:   &strategy.Strategy{Type: models.EcosystemNpm},
			State:      strategy.StateExtracted,
			Extraction: &ex,
		}},
		Outcomes: []scanner.Outcome{
			{Type: models.EcosystemCargo, Applicable: 1, Failed: 1},
			{Type: models.EcosystemNpm, Applicable: 1, Extracted: 1, Succeeded: 1},
		},
	}
	return project.Aggregate(t.Context(), report, project.Settings{
		ProjectName:    "web",
		ProjectVersion: "1.0.0",
		FileExtension:  ".json",
	})
}

func TestSummary(t *testing.T) {
	t.Parallel()

	p := sampleProject(t)
	s := NewSummary(p, []string{"/out/web_1.0.0_web_NPM_bom.json"}, true, p.ExitCode())

	require.Equal(t, []string{"CARGO"}, s.FailedEcosystems)
	require.Equal(t, []string{"web/1.0.0/web NPM bom"}, s.CodeLocations)
	require.Equal(t, string(project.ScanPathSourceSnippet), s.SignatureScan)
	require.Equal(t, 5, s.ExitCode)
	require.Equal(t, "FAILURE_BOM_TOOL", s.Status)

	terminal, err := GetSummaryReporter(SummaryTerminal)
	require.NoError(t, err)
	out, err := terminal.Report(s)
	require.NoError(t, err)
	require.Contains(t, string(out), "Failed package managers: CARGO")
	require.Contains(t, string(out), "Overall status: FAILURE_BOM_TOOL (5)")
	require.Contains(t, string(out), "/out/web_1.0.0_web_NPM_bom.json")

	js, err := GetSummaryReporter(SummaryJSON)
	require.NoError(t, err)
	out, err = js.Report(s)
	require.NoError(t, err)
	var decoded Summary
	require.NoError(t, json.Unmarshal(out, &decoded))
	require.Equal(t, *s, decoded)

	_, err = GetSummaryReporter("html")
	require.ErrorIs(t, err, ErrUnknownFormat)
}

func TestSummaryNothingFound(t *testing.T) {
	t.Parallel()

	p := project.Aggregate(t.Context(), &scanner.Report{Roots: []string{"/src/app"}}, project.Settings{})
	s := NewSummary(p, nil, false, p.ExitCode())

	require.Equal(t, string(project.ScanPathSourceDetect), s.SignatureScan)
	require.Equal(t, "SUCCESS", s.Status)
	out, err := (&TerminalReporter{}).Report(s)
	require.NoError(t, err)
	require.Contains(t, string(out), "No applicable package managers found.")
}
