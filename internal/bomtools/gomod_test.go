package bomtools

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/ethanolivertroy/depdetect/internal/executable"
	"github.com/ethanolivertroy/depdetect/internal/models"
	"github.com/ethanolivertroy/depdetect/internal/strategy"
)

type fakeRunner struct {
	outputs map[string]string
	err     error
	calls   []executable.Command
}

func (f *fakeRunner) RunCached(_ context.Context, _ string, cmd executable.Command) ([]byte, error) {
	f.calls = append(f.calls, cmd)
	if f.err != nil {
		return nil, f.err
	}
	return []byte(f.outputs[strings.Join(cmd.Args, " ")]), nil
}

const goModFile = `module example.com/app

go 1.22

require github.com/spf13/cobra v1.10.2

require (
	github.com/inconshreveable/mousetrap v1.1.0 // indirect
	github.com/spf13/pflag v1.0.10 // indirect
)
`

const goListOutput = `example.com/app
github.com/inconshreveable/mousetrap v1.1.0
github.com/spf13/cobra v1.10.2
github.com/spf13/pflag v1.0.10
`

const goModGraphOutput = `example.com/app github.com/spf13/cobra@v1.10.2
example.com/app github.com/spf13/pflag@v1.0.10
example.com/app go@1.22
github.com/spf13/cobra@v1.10.2 github.com/inconshreveable/mousetrap@v1.1.0
github.com/spf13/cobra@v1.10.2 github.com/spf13/pflag@v1.0.9
github.com/spf13/cobra@v1.10.2 go@1.15
github.com/spf13/cobra@v1.9.0 github.com/spf13/pflag@v1.0.5
`

func goID(path, version string) models.ExternalID {
	return models.NewNameVersion(models.ForgeGolang, path, version)
}

func TestGoModExtractor(t *testing.T) {
	t.Parallel()

	runner := &fakeRunner{outputs: map[string]string{
		"list -m all": goListOutput,
		"mod graph":   goModGraphOutput,
	}}
	ec := evalContext(t, "svc", map[string]string{"go.mod": goModFile})
	ec.Set(KeyGoExe, "/opt/go/bin/go")

	cl := single(t, (&GoModExtractor{Runner: runner}).Extract(t.Context(), ec))

	require.Equal(t, "example.com/app", cl.ProjectName)
	require.Equal(t, []string{"golang:github.com/spf13/cobra:v1.10.2"}, ids(cl.Graph.Roots()))
	require.Equal(t,
		[]string{"golang:github.com/inconshreveable/mousetrap:v1.1.0", "golang:github.com/spf13/pflag:v1.0.10"},
		ids(cl.Graph.Children(goID("github.com/spf13/cobra", "v1.10.2"))),
	)
	require.False(t, cl.Graph.Has(goID("github.com/spf13/cobra", "v1.9.0")))
	require.False(t, cl.Graph.Has(goID("github.com/spf13/pflag", "v1.0.5")))

	require.Len(t, runner.calls, 2)
	for _, c := range runner.calls {
		require.Equal(t, "/opt/go/bin/go", c.Path)
		require.Equal(t, "/src/svc", c.Dir)
	}
}

func TestGoModExtractorFallsBackToGraphRoots(t *testing.T) {
	t.Parallel()

	goMod := "module example.com/tool\n\ngo 1.22\n\nrequire github.com/spf13/pflag v1.0.10 // indirect\n"
	runner := &fakeRunner{outputs: map[string]string{
		"list -m all": "example.com/tool\ngithub.com/spf13/pflag v1.0.10\n",
		"mod graph":   "example.com/tool github.com/spf13/pflag@v1.0.10\n",
	}}
	ec := evalContext(t, ".", map[string]string{"go.mod": goMod})

	cl := single(t, (&GoModExtractor{Runner: runner}).Extract(t.Context(), ec))
	require.Equal(t, []string{"golang:github.com/spf13/pflag:v1.0.10"}, ids(cl.Graph.Roots()))
}

func TestGoModExtractorFailures(t *testing.T) {
	t.Parallel()

	broken := evalContext(t, ".", map[string]string{"go.mod": "this is not a go.mod"})
	ex := (&GoModExtractor{Runner: &fakeRunner{}}).Extract(t.Context(), broken)
	require.Equal(t, strategy.ExtractionFailure, ex.Result)

	ec := evalContext(t, ".", map[string]string{"go.mod": goModFile})
	ex = (&GoModExtractor{Runner: &fakeRunner{err: errors.New("go: command timed out")}}).Extract(t.Context(), ec)
	require.Equal(t, strategy.ExtractionException, ex.Result)
	require.ErrorContains(t, ex.Err, "go list")
}
