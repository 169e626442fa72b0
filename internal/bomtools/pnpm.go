package bomtools

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/ethanolivertroy/depdetect/internal/graph"
	"github.com/ethanolivertroy/depdetect/internal/models"
	"github.com/ethanolivertroy/depdetect/internal/strategy"
)

// PnpmLockExtractor reads pnpm-lock.yaml. The root importer "." provides the
// direct dependencies; lockfile v9 keeps edges under "snapshots", earlier
// versions under "packages".
type PnpmLockExtractor struct {
	IncludeDev bool
}

// pnpmDependency is either a plain version (lockfile v5) or a
// specifier/version mapping (v6 and later).
type pnpmDependency struct {
	Specifier string `yaml:"specifier"`
	Version   string `yaml:"version"`
}

func (d *pnpmDependency) UnmarshalYAML(value *yaml.Node) error {
	if value.Kind == yaml.ScalarNode {
		d.Version = value.Value
		return nil
	}
	type plain pnpmDependency
	return value.Decode((*plain)(d))
}

type pnpmImporter struct {
	Dependencies         map[string]pnpmDependency `yaml:"dependencies"`
	DevDependencies      map[string]pnpmDependency `yaml:"devDependencies"`
	OptionalDependencies map[string]pnpmDependency `yaml:"optionalDependencies"`
}

type pnpmPackage struct {
	Name                 string            `yaml:"name"`
	Version              string            `yaml:"version"`
	Dev                  bool              `yaml:"dev"`
	Dependencies         map[string]string `yaml:"dependencies"`
	OptionalDependencies map[string]string `yaml:"optionalDependencies"`
}

type pnpmLock struct {
	LockfileVersion any                     `yaml:"lockfileVersion"`
	Importers       map[string]pnpmImporter `yaml:"importers"`
	Root            pnpmImporter            `yaml:",inline"`
	Packages        map[string]pnpmPackage  `yaml:"packages"`
	Snapshots       map[string]pnpmPackage  `yaml:"snapshots"`
}

// Extract parses the lockfile of the evaluated directory.
func (e *PnpmLockExtractor) Extract(_ context.Context, ec *strategy.EvaluationContext) strategy.Extraction {
	content, err := readFile(ec, "pnpm-lock.yaml")
	if err != nil {
		return strategy.ExtractionError(err)
	}
	var lock pnpmLock
	if err := yaml.Unmarshal(content, &lock); err != nil {
		return strategy.Failure(fmt.Sprintf("unable to parse pnpm-lock.yaml: %v", err))
	}
	if lock.LockfileVersion == nil {
		return strategy.Failure("pnpm-lock.yaml has no lockfileVersion")
	}

	importer := lock.Root
	if root, ok := lock.Importers["."]; ok {
		importer = root
	}

	g := e.buildGraph(lock, importer)

	var projectID models.ExternalID
	if data, err := readFile(ec, "package.json"); err == nil {
		var pkg packageJSON
		if json.Unmarshal(data, &pkg) == nil && pkg.Name != "" {
			projectID = npmID(pkg.Name, pkg.Version)
		}
	}
	return strategy.Success(newCodeLocation(ec, models.EcosystemPnpm, projectID, g))
}

// pnpmVersion strips peer dependency suffixes such as "1.0.0(react@18.2.0)"
// or "1.0.0_react@18.2.0".
func pnpmVersion(v string) string {
	if i := strings.IndexAny(v, "(_"); i > 0 {
		return v[:i]
	}
	return v
}

func (e *PnpmLockExtractor) buildGraph(lock pnpmLock, importer pnpmImporter) *graph.Graph {
	// entry finds the snapshot or package for a dependency across lockfile
	// layouts.
	entry := func(name, version string) (pnpmPackage, bool) {
		keys := []string{name + "@" + version, "/" + name + "@" + version, "/" + name + "/" + version}
		if strings.HasPrefix(version, "/") {
			keys = append(keys, version)
		}
		for _, k := range keys {
			if p, ok := lock.Snapshots[k]; ok {
				if meta, ok := lock.Packages[k]; ok {
					p.Dev = p.Dev || meta.Dev
				}
				return p, true
			}
			if p, ok := lock.Packages[k]; ok {
				return p, true
			}
		}
		return pnpmPackage{}, false
	}
	nodeFor := func(name, version string) graph.Node {
		v := pnpmVersion(version)
		return graph.Node{ID: npmID(name, v), Name: name, Version: v}
	}

	b := graph.NewBuilder()
	visited := make(map[string]bool)
	var walk func(name, version string) (graph.Node, bool)
	walk = func(name, version string) (graph.Node, bool) {
		if strings.HasPrefix(version, "link:") || strings.HasPrefix(version, "file:") {
			return graph.Node{}, false
		}
		pkg, ok := entry(name, version)
		if ok && pkg.Dev && !e.IncludeDev {
			return graph.Node{}, false
		}
		n := nodeFor(name, version)
		b.AddNode(n)
		key := name + "@" + version
		if visited[key] || !ok {
			return n, true
		}
		visited[key] = true
		deps := mergeDeps(pkg.Dependencies, pkg.OptionalDependencies)
		for _, dep := range sortedKeys(deps) {
			if child, ok := walk(dep, deps[dep]); ok {
				b.AddChild(n, child)
			}
		}
		return n, true
	}

	direct := []map[string]pnpmDependency{importer.Dependencies, importer.OptionalDependencies}
	if e.IncludeDev {
		direct = append(direct, importer.DevDependencies)
	}
	for _, deps := range direct {
		for _, name := range sortedKeys(deps) {
			if n, ok := walk(name, deps[name].Version); ok {
				b.AddRoot(n)
			}
		}
	}
	return b.Build()
}
