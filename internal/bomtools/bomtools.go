// Package bomtools implements the strategies for each supported ecosystem.
// Registry is the composition root that assembles them.
package bomtools

import (
	"context"
	"fmt"

	"github.com/go-git/go-billy/v5/util"

	"github.com/ethanolivertroy/depdetect/internal/codelocation"
	"github.com/ethanolivertroy/depdetect/internal/executable"
	"github.com/ethanolivertroy/depdetect/internal/graph"
	"github.com/ethanolivertroy/depdetect/internal/models"
	"github.com/ethanolivertroy/depdetect/internal/requirements"
	"github.com/ethanolivertroy/depdetect/internal/strategy"
)

// Requirement keys shared between requirements and extractors.
const (
	KeyGoMod         = "go.mod"
	KeyGoExe         = "go"
	KeyPackageLock   = "package-lock.json"
	KeyPnpmLock      = "pnpm-lock.yaml"
	KeyRequirements  = "requirements.txt"
	KeyPoetryLock    = "poetry.lock"
	KeyCargoLock     = "Cargo.lock"
	KeyScalibrMarker = "scalibr-root"
)

// Runner executes external tools, reusing cached output when possible.
type Runner interface {
	RunCached(ctx context.Context, key string, cmd executable.Command) ([]byte, error)
}

// Options configure the strategies.
type Options struct {
	// GoPath overrides the go executable found on the PATH.
	GoPath string
	// NpmIncludeDev includes npm dev dependencies.
	NpmIncludeDev bool
	// ScalibrEnabled registers the osv-scalibr inventory strategy.
	ScalibrEnabled bool
}

// Deps are the shared services the strategies use.
type Deps struct {
	Resolver *executable.Resolver
	Runner   Runner
}

// Registry returns every strategy in registration order. The result is not
// modified afterwards.
func Registry(opts Options, deps Deps) []*strategy.Strategy {
	strategies := []*strategy.Strategy{
		{
			Type:      models.EcosystemGoMod,
			Name:      "Go Modules",
			Probe:     strategy.FileProbe("go.mod"),
			Needs:     []strategy.Requirement{requirements.File(KeyGoMod, "go.mod")},
			Demands:   []strategy.Requirement{requirements.Executable(KeyGoExe, "go", opts.GoPath, deps.Resolver)},
			Extractor: &GoModExtractor{Runner: deps.Runner},
			Nestable:  true,
		},
		{
			Type:      models.EcosystemNpm,
			Name:      "npm package-lock",
			Probe:     strategy.FileProbe("package-lock.json"),
			Needs:     []strategy.Requirement{requirements.File(KeyPackageLock, "package-lock.json")},
			Extractor: &NpmLockExtractor{IncludeDev: opts.NpmIncludeDev},
		},
		{
			Type:      models.EcosystemPnpm,
			Name:      "pnpm lockfile",
			Probe:     strategy.FileProbe("pnpm-lock.yaml"),
			Needs:     []strategy.Requirement{requirements.File(KeyPnpmLock, "pnpm-lock.yaml")},
			Extractor: &PnpmLockExtractor{IncludeDev: opts.NpmIncludeDev},
		},
		{
			Type:      models.EcosystemPip,
			Name:      "pip requirements",
			Probe:     strategy.FileProbe("requirements.txt"),
			Needs:     []strategy.Requirement{requirements.File(KeyRequirements, "requirements.txt")},
			Extractor: &RequirementsExtractor{},
			Nestable:  true,
		},
		{
			Type:      models.EcosystemPoetry,
			Name:      "Poetry lockfile",
			Probe:     strategy.FileProbe("poetry.lock"),
			Needs:     []strategy.Requirement{requirements.File(KeyPoetryLock, "poetry.lock")},
			Extractor: &PoetryLockExtractor{},
		},
		{
			Type:      models.EcosystemCargo,
			Name:      "Cargo lockfile",
			Probe:     strategy.FileProbe("Cargo.lock"),
			Needs:     []strategy.Requirement{requirements.File(KeyCargoLock, "Cargo.lock")},
			Extractor: &CargoLockExtractor{},
		},
	}
	if opts.ScalibrEnabled {
		strategies = append(strategies, &strategy.Strategy{
			Type:      models.EcosystemScalibr,
			Name:      "osv-scalibr inventory",
			Probe:     rootProbe,
			Needs:     []strategy.Requirement{rootOnly{}},
			Extractor: &ScalibrExtractor{},
			Passive:   true,
		})
	}
	return strategies
}

// readFile reads a file of the evaluated directory.
func readFile(ec *strategy.EvaluationContext, name string) ([]byte, error) {
	data, err := util.ReadFile(ec.FS, ec.Path(name))
	if err != nil {
		return nil, fmt.Errorf("reading %s: %w", name, err)
	}
	return data, nil
}

func fileExists(ec *strategy.EvaluationContext, name string) bool {
	fi, err := ec.FS.Stat(ec.Path(name))
	return err == nil && !fi.IsDir()
}

// newCodeLocation fills the location fields every extractor shares.
func newCodeLocation(
	ec *strategy.EvaluationContext, t models.Ecosystem, projectID models.ExternalID, g *graph.Graph,
) *codelocation.CodeLocation {
	name := projectID.Name
	if projectID.Namespace != "" {
		name = projectID.Namespace + "/" + name
	}
	return &codelocation.CodeLocation{
		Type:              t,
		SourcePath:        ec.AbsDir(),
		RelativePath:      ec.Dir,
		ProjectExternalID: projectID,
		Graph:             g,
		ProjectName:       name,
		ProjectVersion:    projectID.Version,
	}
}
