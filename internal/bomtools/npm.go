package bomtools

import (
	"context"
	"encoding/json"
	"fmt"
	"path"
	"sort"
	"strings"

	"github.com/rs/zerolog"

	"github.com/ethanolivertroy/depdetect/internal/graph"
	"github.com/ethanolivertroy/depdetect/internal/models"
	"github.com/ethanolivertroy/depdetect/internal/strategy"
)

// NpmLockExtractor reads package-lock.json. Lockfile versions 2 and 3 are
// read from the flat "packages" map; version 1 from nested "dependencies".
type NpmLockExtractor struct {
	IncludeDev bool
}

type lockPackage struct {
	Name                 string            `json:"name"`
	Version              string            `json:"version"`
	Dev                  bool              `json:"dev"`
	Link                 bool              `json:"link"`
	Resolved             string            `json:"resolved"`
	Dependencies         map[string]string `json:"dependencies"`
	DevDependencies      map[string]string `json:"devDependencies"`
	OptionalDependencies map[string]string `json:"optionalDependencies"`
	PeerDependencies     map[string]string `json:"peerDependencies"`
}

type lockDependencyV1 struct {
	Version      string                      `json:"version"`
	Dev          bool                        `json:"dev"`
	Requires     map[string]string           `json:"requires"`
	Dependencies map[string]lockDependencyV1 `json:"dependencies"`
}

// packageLock represents the structure of package-lock.json
type packageLock struct {
	Name            string                      `json:"name"`
	Version         string                      `json:"version"`
	LockfileVersion int                         `json:"lockfileVersion"`
	Packages        map[string]lockPackage      `json:"packages"`
	Dependencies    map[string]lockDependencyV1 `json:"dependencies"`
}

// packageJSON represents the structure of package.json
type packageJSON struct {
	Name            string            `json:"name"`
	Version         string            `json:"version"`
	Dependencies    map[string]string `json:"dependencies"`
	DevDependencies map[string]string `json:"devDependencies"`
}

// Extract parses the lockfile of the evaluated directory.
func (e *NpmLockExtractor) Extract(ctx context.Context, ec *strategy.EvaluationContext) strategy.Extraction {
	content, err := readFile(ec, "package-lock.json")
	if err != nil {
		return strategy.ExtractionError(err)
	}
	var lock packageLock
	if err := json.Unmarshal(content, &lock); err != nil {
		return strategy.Failure(fmt.Sprintf("unable to parse package-lock.json: %v", err))
	}

	var g *graph.Graph
	if len(lock.Packages) > 0 {
		g = e.fromPackages(lock)
	} else {
		var manifest *packageJSON
		if data, err := readFile(ec, "package.json"); err == nil {
			var pkg packageJSON
			if err := json.Unmarshal(data, &pkg); err != nil {
				zerolog.Ctx(ctx).Warn().Err(err).Str("dir", ec.Dir).Msg("ignoring unparsable package.json")
			} else {
				manifest = &pkg
			}
		}
		g = e.fromDependencies(lock, manifest)
	}

	name, version := lock.Name, lock.Version
	if root, ok := lock.Packages[""]; ok {
		if root.Name != "" {
			name = root.Name
		}
		if root.Version != "" {
			version = root.Version
		}
	}
	var projectID models.ExternalID
	if name != "" {
		projectID = npmID(name, version)
	}
	return strategy.Success(newCodeLocation(ec, models.EcosystemNpm, projectID, g))
}

// npmID splits scoped package names into namespace and name.
func npmID(name, version string) models.ExternalID {
	if strings.HasPrefix(name, "@") {
		if scope, rest, ok := strings.Cut(name, "/"); ok {
			return models.NewModule(models.ForgeNpmjs, scope, rest, version)
		}
	}
	return models.NewNameVersion(models.ForgeNpmjs, name, version)
}

// packageName derives the package name from a "packages" key such as
// "node_modules/a/node_modules/@types/node".
func packageName(key string, pkg lockPackage) string {
	if pkg.Name != "" {
		return pkg.Name
	}
	if i := strings.LastIndex(key, "node_modules/"); i >= 0 {
		return key[i+len("node_modules/"):]
	}
	return path.Base(key)
}

func (e *NpmLockExtractor) fromPackages(lock packageLock) *graph.Graph {
	pkgs := lock.Packages
	included := func(key string) (lockPackage, bool) {
		pkg, ok := pkgs[key]
		if !ok {
			return pkg, false
		}
		if pkg.Link && pkg.Resolved != "" {
			target, ok := pkgs[pkg.Resolved]
			if !ok {
				return pkg, false
			}
			if target.Name == "" {
				target.Name = packageName(key, pkg)
			}
			pkg = target
		}
		if pkg.Dev && !e.IncludeDev {
			return pkg, false
		}
		return pkg, true
	}
	nodeFor := func(key string, pkg lockPackage) graph.Node {
		id := npmID(packageName(key, pkg), pkg.Version)
		return graph.Node{ID: id, Name: packageName(key, pkg), Version: pkg.Version}
	}
	// resolve walks up node_modules directories the way node does.
	resolve := func(from, dep string) (string, bool) {
		loc := from
		for {
			candidate := "node_modules/" + dep
			if loc != "" {
				candidate = loc + "/node_modules/" + dep
			}
			if _, ok := pkgs[candidate]; ok {
				return candidate, true
			}
			if loc == "" {
				return "", false
			}
			i := strings.LastIndex(loc, "node_modules/")
			if i <= 0 {
				loc = ""
			} else {
				loc = strings.TrimSuffix(loc[:i], "/")
			}
		}
	}

	b := graph.NewBuilder()
	root := pkgs[""]
	rootDeps := mergeDeps(root.Dependencies, root.OptionalDependencies)
	if e.IncludeDev {
		rootDeps = mergeDeps(rootDeps, root.DevDependencies)
	}
	for _, dep := range sortedKeys(rootDeps) {
		key, ok := resolve("", dep)
		if !ok {
			continue
		}
		if pkg, ok := included(key); ok {
			b.AddRoot(nodeFor(key, pkg))
		}
	}

	keys := sortedKeys(pkgs)
	for _, key := range keys {
		if key == "" || !strings.Contains(key, "node_modules/") {
			continue
		}
		pkg, ok := included(key)
		if !ok {
			continue
		}
		parent := nodeFor(key, pkg)
		b.AddNode(parent)
		from := key
		if pkgs[key].Link {
			from = pkgs[key].Resolved
		}
		for _, dep := range sortedKeys(mergeDeps(pkg.Dependencies, pkg.OptionalDependencies, pkg.PeerDependencies)) {
			childKey, ok := resolve(from, dep)
			if !ok {
				continue
			}
			if child, ok := included(childKey); ok {
				b.AddChild(parent, nodeFor(childKey, child))
			}
		}
	}
	return b.Build()
}

func (e *NpmLockExtractor) fromDependencies(lock packageLock, manifest *packageJSON) *graph.Graph {
	b := graph.NewBuilder()

	type scope struct {
		deps   map[string]lockDependencyV1
		parent *scope
	}
	var lookup func(s *scope, name string) (lockDependencyV1, *scope, bool)
	lookup = func(s *scope, name string) (lockDependencyV1, *scope, bool) {
		for ; s != nil; s = s.parent {
			if d, ok := s.deps[name]; ok {
				return d, s, true
			}
		}
		return lockDependencyV1{}, nil, false
	}

	visited := make(map[models.ExternalID]bool)
	var walk func(s *scope, name string, dep lockDependencyV1) graph.Node
	walk = func(s *scope, name string, dep lockDependencyV1) graph.Node {
		n := graph.Node{ID: npmID(name, dep.Version), Name: name, Version: dep.Version}
		b.AddNode(n)
		if visited[n.ID] {
			return n
		}
		visited[n.ID] = true
		inner := &scope{deps: dep.Dependencies, parent: s}
		for _, req := range sortedKeys(dep.Requires) {
			child, childScope, ok := lookup(inner, req)
			if !ok || (child.Dev && !e.IncludeDev) {
				continue
			}
			b.AddChild(n, walk(childScope, req, child))
		}
		return n
	}

	top := &scope{deps: lock.Dependencies}
	var roots []string
	if manifest != nil {
		direct := manifest.Dependencies
		if e.IncludeDev {
			direct = mergeDeps(direct, manifest.DevDependencies)
		}
		roots = sortedKeys(direct)
	} else {
		roots = sortedKeys(lock.Dependencies)
	}
	for _, name := range roots {
		dep, ok := lock.Dependencies[name]
		if !ok || (dep.Dev && !e.IncludeDev) {
			continue
		}
		b.AddRoot(walk(top, name, dep))
	}
	return b.Build()
}

func mergeDeps(maps ...map[string]string) map[string]string {
	out := make(map[string]string)
	for _, m := range maps {
		for k, v := range m {
			out[k] = v
		}
	}
	return out
}

func sortedKeys[V any](m map[string]V) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
