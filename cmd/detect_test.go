package cmd

import (
	"bytes"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/ethanolivertroy/depdetect/internal/bom"
	"github.com/ethanolivertroy/depdetect/internal/cache"
	"github.com/ethanolivertroy/depdetect/internal/config"
	"github.com/ethanolivertroy/depdetect/internal/project"
	"github.com/ethanolivertroy/depdetect/internal/reporter"
)

const testCargoLock = `version = 3

[[package]]
name = "svc"
version = "0.1.0"
dependencies = [
 "serde",
]

[[package]]
name = "serde"
version = "1.0.200"
source = "registry+https://github.com/rust-lang/crates.io-index"
`

func sourceTree(t *testing.T) string {
	t.Helper()
	root := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(root, "requirements.txt"), []byte("requests==2.31.0\n"), 0o644))
	require.NoError(t, os.MkdirAll(filepath.Join(root, "svc"), 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(root, "svc", "Cargo.lock"), []byte(testCargoLock), 0o644))
	return root
}

func testConfig(t *testing.T) *config.Config {
	t.Helper()
	cfg := config.Defaults()
	cfg.Detect.Search.Depth = 1
	cfg.Detect.Output.Directory = filepath.Join(t.TempDir(), "out")
	cfg.Detect.Output.Summary = reporter.SummaryJSON
	cfg.Detect.Project.Name = "shop"
	cfg.Detect.Project.Version = "1.0"
	cfg.Detect.Cache.Disabled = true
	return cfg
}

func runDetect(t *testing.T, cfg *config.Config, roots ...string) (project.ExitCode, *reporter.Summary) {
	t.Helper()
	var out bytes.Buffer
	code, err := Detect(t.Context(), cfg, roots, &out)
	require.NoError(t, err)

	var summary reporter.Summary
	require.NoError(t, json.Unmarshal(out.Bytes(), &summary))
	return code, &summary
}

func TestDetectWritesOneDocumentPerCodeLocation(t *testing.T) {
	t.Parallel()

	root := sourceTree(t)
	cfg := testConfig(t)
	cfg.Detect.Search.Continue = true
	code, summary := runDetect(t, cfg, root)

	require.Equal(t, project.ExitSuccess, code)
	require.Equal(t, "shop", summary.ProjectName)
	require.Len(t, summary.CodeLocations, 2)
	require.Equal(t, "shop/1.0/svc CARGO bom", summary.CodeLocations[0])
	require.Len(t, summary.Files, 2)
	require.Empty(t, summary.SignatureScan)

	data, err := os.ReadFile(summary.Files[0])
	require.NoError(t, err)
	var doc bom.Document
	require.NoError(t, json.Unmarshal(data, &doc))
	require.Equal(t, "shop/1.0/svc CARGO bom", doc.Name)
	require.Equal(t, "crates:svc:0.1.0", doc.Project.Ref)
	require.Len(t, doc.Components, 1)
	require.Equal(t, "crates:serde:1.0.200", doc.Components[0].Ref)

	// a second run replaces the files with identical content
	_, again := runDetect(t, cfg, root)
	require.Equal(t, summary.Files, again.Files)
	rerun, err := os.ReadFile(again.Files[0])
	require.NoError(t, err)
	var redoc bom.Document
	require.NoError(t, json.Unmarshal(rerun, &redoc))
	redoc.CreationInfo = doc.CreationInfo
	require.Equal(t, doc, redoc)
}

func TestDetectAggregate(t *testing.T) {
	t.Parallel()

	cfg := testConfig(t)
	cfg.Detect.Search.Continue = true
	cfg.Detect.Output.AggregateName = "shop all"
	code, summary := runDetect(t, cfg, sourceTree(t))

	require.Equal(t, project.ExitSuccess, code)
	require.Equal(t, []string{filepath.Join(cfg.Detect.Output.Directory, "shop_all.json")}, summary.Files)

	data, err := os.ReadFile(summary.Files[0])
	require.NoError(t, err)
	var doc bom.Document
	require.NoError(t, json.Unmarshal(data, &doc))
	require.Empty(t, doc.Name)
	require.Equal(t, "/:shop/1.0", doc.Project.Ref)

	var refs []string
	for _, c := range doc.Components {
		refs = append(refs, c.Ref)
	}
	require.Equal(t, []string{"crates:serde:1.0.200", "pypi:requests==2.31.0"}, refs)
}

func TestDetectStopsBelowMatchedDirectory(t *testing.T) {
	t.Parallel()

	code, summary := runDetect(t, testConfig(t), sourceTree(t))

	require.Equal(t, project.ExitSuccess, code)
	require.Len(t, summary.CodeLocations, 1)
	require.Contains(t, summary.CodeLocations[0], "PIP bom")
	require.Len(t, summary.Files, 1)
	for _, eco := range summary.Ecosystems {
		if eco.Type == "CARGO" {
			require.Zero(t, eco.Applicable)
		}
	}
}

func TestDetectMissingSourcePath(t *testing.T) {
	t.Parallel()

	cfg := testConfig(t)
	code, summary := runDetect(t, cfg, filepath.Join(t.TempDir(), "missing"))

	require.Equal(t, project.ExitNoSuchSourcePath, code)
	require.Equal(t, "FAILURE_SOURCE_PATH", summary.Status)
	require.Len(t, summary.SearchErrors, 1)
	require.Empty(t, summary.Files)
	require.Equal(t, string(project.ScanPathSourceDetect), summary.SignatureScan)
}

func TestDetectBrokenLockfile(t *testing.T) {
	t.Parallel()

	root := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(root, "Cargo.lock"), []byte("[[package]\nname ="), 0o644))

	code, summary := runDetect(t, testConfig(t), root)
	require.Equal(t, project.ExitBomToolFailure, code)
	require.Equal(t, []string{"CARGO"}, summary.FailedEcosystems)
}

func TestDetectRejectsUnknownFormat(t *testing.T) {
	t.Parallel()

	cfg := testConfig(t)
	cfg.Detect.Output.Format = "xml"
	code, err := Detect(t.Context(), cfg, nil, &bytes.Buffer{})
	require.ErrorIs(t, err, reporter.ErrUnknownFormat)
	require.Equal(t, project.ExitGeneralError, code)
}

func TestClearCache(t *testing.T) {
	t.Parallel()

	c, err := cache.NewInDir(t.TempDir(), time.Hour)
	require.NoError(t, err)
	require.NoError(t, c.Set("go mod graph", []byte("a b\n")))

	clearCache(t.Context(), c)
	_, ok := c.Get("go mod graph")
	require.False(t, ok)
}

func TestRootCommandValidatesConfig(t *testing.T) {
	t.Parallel()

	file := filepath.Join(t.TempDir(), "depdetect.yaml")
	require.NoError(t, os.WriteFile(file, []byte("detect:\n  output:\n    format: xml\n"), 0o644))

	code := project.ExitSuccess
	cmd := NewRootCmd(&code)
	cmd.SetArgs([]string{"--config", file})
	cmd.SetOut(&bytes.Buffer{})
	cmd.SetErr(&bytes.Buffer{})
	require.ErrorIs(t, cmd.Execute(), config.ErrInvalid)
	require.Equal(t, project.ExitGeneralError, code)

	missing := project.ExitSuccess
	cmd = NewRootCmd(&missing)
	cmd.SetArgs([]string{"--config", filepath.Join(t.TempDir(), "absent.yaml")})
	cmd.SetOut(&bytes.Buffer{})
	cmd.SetErr(&bytes.Buffer{})
	require.Error(t, cmd.Execute())
}
