package bomtools

import (
	"context"
	"fmt"
	"strings"

	"github.com/BurntSushi/toml"

	"github.com/ethanolivertroy/depdetect/internal/graph"
	"github.com/ethanolivertroy/depdetect/internal/models"
	"github.com/ethanolivertroy/depdetect/internal/strategy"
)

type cargoLock struct {
	Package []cargoPackage `toml:"package"`
}

type cargoPackage struct {
	Name         string   `toml:"name"`
	Version      string   `toml:"version"`
	Source       string   `toml:"source"`
	Dependencies []string `toml:"dependencies"`
}

// CargoLockExtractor reads Cargo.lock. Packages without a source are local
// workspace members; their dependencies are the roots.
type CargoLockExtractor struct{}

// Extract parses the lockfile of the evaluated directory.
func (e *CargoLockExtractor) Extract(_ context.Context, ec *strategy.EvaluationContext) strategy.Extraction {
	content, err := readFile(ec, "Cargo.lock")
	if err != nil {
		return strategy.ExtractionError(err)
	}
	var lock cargoLock
	if err := toml.Unmarshal(content, &lock); err != nil {
		return strategy.Failure(fmt.Sprintf("unable to parse Cargo.lock: %v", err))
	}

	byName := make(map[string][]cargoPackage)
	for _, pkg := range lock.Package {
		byName[pkg.Name] = append(byName[pkg.Name], pkg)
	}
	// resolve handles the "name", "name version" and
	// "name version (source)" dependency forms.
	resolve := func(dep string) (cargoPackage, bool) {
		fields := strings.Fields(dep)
		if len(fields) == 0 {
			return cargoPackage{}, false
		}
		candidates := byName[fields[0]]
		if len(fields) == 1 {
			if len(candidates) == 1 {
				return candidates[0], true
			}
			return cargoPackage{}, false
		}
		for _, c := range candidates {
			if c.Version == fields[1] {
				return c, true
			}
		}
		return cargoPackage{}, false
	}
	node := func(pkg cargoPackage) graph.Node {
		return graph.NewNode(models.NewNameVersion(models.ForgeCrates, pkg.Name, pkg.Version))
	}

	b := graph.NewBuilder()
	var members []cargoPackage
	for _, pkg := range lock.Package {
		if pkg.Source == "" {
			members = append(members, pkg)
			continue
		}
		parent := node(pkg)
		b.AddNode(parent)
		for _, dep := range pkg.Dependencies {
			if child, ok := resolve(dep); ok && child.Source != "" {
				b.AddChild(parent, node(child))
			}
		}
	}
	for _, m := range members {
		for _, dep := range m.Dependencies {
			if child, ok := resolve(dep); ok && child.Source != "" {
				b.AddRoot(node(child))
			}
		}
	}

	var projectID models.ExternalID
	if len(members) == 1 {
		projectID = models.NewNameVersion(models.ForgeCrates, members[0].Name, members[0].Version)
	}
	return strategy.Success(newCodeLocation(ec, models.EcosystemCargo, projectID, b.Build()))
}
