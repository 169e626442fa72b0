package scanner

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/go-git/go-billy/v5"
	"github.com/go-git/go-billy/v5/memfs"
	"github.com/go-git/go-billy/v5/util"
	"github.com/stretchr/testify/require"
	"go.uber.org/mock/gomock"

	"github.com/ethanolivertroy/depdetect/internal/codelocation"
	"github.com/ethanolivertroy/depdetect/internal/executable"
	"github.com/ethanolivertroy/depdetect/internal/finder"
	"github.com/ethanolivertroy/depdetect/internal/graph"
	"github.com/ethanolivertroy/depdetect/internal/models"
	"github.com/ethanolivertroy/depdetect/internal/requirements"
	"github.com/ethanolivertroy/depdetect/internal/strategy"
	mock_strategy "github.com/ethanolivertroy/depdetect/internal/strategy/mock"
)

const (
	ecosystemAlpha models.Ecosystem = "ALPHA"
	ecosystemBeta  models.Ecosystem = "BETA"
)

func tree(t *testing.T, files ...string) billy.Filesystem {
	t.Helper()
	fs := memfs.New()
	for _, f := range files {
		require.NoError(t, util.WriteFile(fs, f, []byte("{}"), 0o644))
	}
	return fs
}

func fixedFS(fs billy.Filesystem) func(string) billy.Filesystem {
	return func(string) billy.Filesystem { return fs }
}

func markerStrategy(t models.Ecosystem, marker string, ex strategy.Extractor, demands ...strategy.Requirement) *strategy.Strategy {
	return &strategy.Strategy{
		Type:      t,
		Name:      string(t),
		Probe:     strategy.FileProbe(marker),
		Needs:     []strategy.Requirement{requirements.File(marker, marker)},
		Demands:   demands,
		Extractor: ex,
	}
}

func locate(t models.Ecosystem) strategy.Extractor {
	return strategy.ExtractorFunc(func(_ context.Context, ec *strategy.EvaluationContext) strategy.Extraction {
		b := graph.NewBuilder()
		b.AddRoot(graph.NewNode(models.NewNameVersion(models.ForgeGeneric, "lib", "1.0")))
		return strategy.Success(&codelocation.CodeLocation{
			Type: t, SourcePath: ec.AbsDir(), RelativePath: ec.Dir, Graph: b.Build(),
		})
	})
}

func TestScanDemandNotMet(t *testing.T) {
	t.Parallel()
	ctrl := gomock.NewController(t)

	resolver, err := executable.NewResolver(4)
	require.NoError(t, err)
	extractor := mock_strategy.NewMockExtractor(ctrl)
	extractor.EXPECT().Extract(gomock.Any(), gomock.Any()).Times(0)

	alpha := markerStrategy(ecosystemAlpha, "alpha.lock", extractor,
		requirements.Executable("alpha-helper", "alpha-helper-that-does-not-exist", "", resolver))

	s := New(Options{Roots: []string{"/proj"}, FS: fixedFS(tree(t, "alpha.lock"))},
		[]*strategy.Strategy{alpha}, strategy.NewEvaluator(0))
	report := s.Scan(t.Context())

	require.Empty(t, report.SearchErrors)
	require.Len(t, report.Evaluations, 1)
	require.Equal(t, strategy.StateDemandsNotMet, report.Evaluations[0].State)
	require.Equal(t, strategy.RequirementFailed, report.Evaluations[0].Demands[0].Result)

	o, ok := report.Outcome(ecosystemAlpha)
	require.True(t, ok)
	require.Equal(t, Outcome{Type: ecosystemAlpha, Applicable: 1, Failed: 1}, o)
}

func TestScanContainsExtractorPanics(t *testing.T) {
	t.Parallel()

	boom := strategy.ExtractorFunc(func(context.Context, *strategy.EvaluationContext) strategy.Extraction {
		panic("boom")
	})
	alpha := markerStrategy(ecosystemAlpha, "alpha.lock", boom)
	beta := markerStrategy(ecosystemBeta, "beta.lock", locate(ecosystemBeta))

	fs := tree(t, "a/alpha.lock", "b/beta.lock", "c/beta.lock", "d/alpha.lock")
	s := New(Options{
		Roots:       []string{"/proj"},
		Search:      finder.Options{MaxDepth: 1},
		Parallelism: 2,
		FS:          fixedFS(fs),
	}, []*strategy.Strategy{alpha, beta}, strategy.NewEvaluator(0))
	report := s.Scan(t.Context())

	var dirs []string
	for _, se := range report.Evaluations {
		dirs = append(dirs, se.Context.Dir)
		require.Equal(t, strategy.StateExtracted, se.State)
	}
	require.Equal(t, []string{"a", "b", "c", "d"}, dirs)

	require.Equal(t, []Outcome{
		{Type: ecosystemAlpha, Applicable: 2, Extracted: 2, Failed: 2},
		{Type: ecosystemBeta, Applicable: 2, Extracted: 2, Succeeded: 2},
	}, report.Outcomes)
	require.Equal(t, strategy.ExtractionException, report.Evaluations[0].Extraction.Result)
	require.Equal(t, "/proj/b", report.Evaluations[1].Extraction.CodeLocations[0].SourcePath)
}

func TestScanRecordsMissingRoot(t *testing.T) {
	t.Parallel()

	good := t.TempDir()
	missing := filepath.Join(t.TempDir(), "missing")

	beta := markerStrategy(ecosystemBeta, "beta.lock", locate(ecosystemBeta))
	fsFor := func(root string) billy.Filesystem {
		if root == good {
			return tree(t, "beta.lock")
		}
		return defaultFS(root)
	}
	s := New(Options{Roots: []string{missing, good}, FS: fsFor}, []*strategy.Strategy{beta}, strategy.NewEvaluator(0))
	report := s.Scan(t.Context())

	require.Equal(t, []string{missing, good}, report.Roots)
	require.Len(t, report.SearchErrors, 1)
	require.Equal(t, finder.NoSuchSourcePath, report.SearchErrors[0].Kind)
	require.ErrorIs(t, report.SearchErrors[0], finder.ErrNoSuchSourcePath)

	require.Len(t, report.Evaluations, 1)
	require.True(t, report.Evaluations[0].Succeeded())
}

func TestScanNothingFound(t *testing.T) {
	t.Parallel()

	beta := markerStrategy(ecosystemBeta, "beta.lock", locate(ecosystemBeta))
	s := New(Options{Roots: []string{"/proj"}, FS: fixedFS(tree(t, "README.md"))},
		[]*strategy.Strategy{beta}, strategy.NewEvaluator(0))
	report := s.Scan(t.Context())

	require.Empty(t, report.Evaluations)
	require.Empty(t, report.Outcomes)
	_, ok := report.Outcome(ecosystemBeta)
	require.False(t, ok)
}
