package bomtools

import (
	"bufio"
	"bytes"
	"context"
	"fmt"
	"regexp"
	"strings"

	"github.com/BurntSushi/toml"
	"github.com/rs/zerolog"

	"github.com/ethanolivertroy/depdetect/internal/graph"
	"github.com/ethanolivertroy/depdetect/internal/models"
	"github.com/ethanolivertroy/depdetect/internal/strategy"
)

// versionPattern matches package version specifiers like ==1.2.3, >=1.2.3, ~=1.2.3
var versionPattern = regexp.MustCompile(`^([a-zA-Z0-9._-]+)\s*([<>=!~]+)\s*([^\s;,]+)`)

// simplePattern matches just package names without versions
var simplePattern = regexp.MustCompile(`^([a-zA-Z0-9._-]+)\s*$`)

// normalizePyName applies PEP 503 normalization.
func normalizePyName(name string) string {
	name = strings.ToLower(name)
	name = strings.ReplaceAll(name, "_", "-")
	return strings.ReplaceAll(name, ".", "-")
}

func pypiNode(name, version string) graph.Node {
	return graph.Node{
		ID:      models.NewNameVersion(models.ForgePypi, normalizePyName(name), version),
		Name:    name,
		Version: version,
	}
}

// RequirementsExtractor reads pinned requirements from requirements.txt.
type RequirementsExtractor struct{}

// Extract parses requirements.txt. Only exact pins (== and ===) identify a
// version; other lines are skipped.
func (e *RequirementsExtractor) Extract(ctx context.Context, ec *strategy.EvaluationContext) strategy.Extraction {
	content, err := readFile(ec, "requirements.txt")
	if err != nil {
		return strategy.ExtractionError(err)
	}
	logger := zerolog.Ctx(ctx)

	b := graph.NewBuilder()
	sc := bufio.NewScanner(bytes.NewReader(content))
	lineNum := 0
	for sc.Scan() {
		lineNum++
		line := strings.TrimSpace(sc.Text())

		// Skip empty lines, comments, and options
		if line == "" || strings.HasPrefix(line, "#") || strings.HasPrefix(line, "-") {
			continue
		}

		// Remove inline comments
		if idx := strings.Index(line, "#"); idx > 0 {
			line = strings.TrimSpace(line[:idx])
		}

		name, op, version := parseVersionSpec(stripExtras(line))
		switch {
		case name == "":
			logger.Debug().Int("line", lineNum).Str("requirement", line).Msg("skipping unrecognized requirement")
		case op != "==" && op != "===":
			logger.Debug().Int("line", lineNum).Str("requirement", name).Msg("skipping unpinned requirement")
		default:
			b.AddRoot(pypiNode(name, version))
		}
	}
	if err := sc.Err(); err != nil {
		return strategy.Failure(fmt.Sprintf("unable to read requirements.txt: %v", err))
	}

	var projectID models.ExternalID
	if proj, ok := readPyProject(ctx, ec); ok {
		projectID = proj.id()
	}
	return strategy.Success(newCodeLocation(ec, models.EcosystemPip, projectID, b.Build()))
}

// stripExtras removes extras like [security]
func stripExtras(spec string) string {
	if idx := strings.Index(spec, "["); idx > 0 {
		bracketEnd := strings.Index(spec, "]")
		if bracketEnd > idx {
			spec = spec[:idx] + spec[bracketEnd+1:]
		}
	}
	return strings.TrimSpace(spec)
}

func parseVersionSpec(line string) (name, op, version string) {
	// Try exact/pinned version patterns
	if matches := versionPattern.FindStringSubmatch(line); matches != nil {
		return matches[1], matches[2], matches[3]
	}

	// Try simple package name (no version)
	if matches := simplePattern.FindStringSubmatch(line); matches != nil {
		return matches[1], "", ""
	}

	return "", "", ""
}

// parsePEP508 returns the distribution name of a PEP 508 dependency
// specification, e.g. "flask[async]>=2.0; python_version > '3.8'".
func parsePEP508(spec string) string {
	// Remove environment markers
	if idx := strings.Index(spec, ";"); idx > 0 {
		spec = spec[:idx]
	}
	name, _, _ := parseVersionSpec(stripExtras(spec))
	return name
}

// pyproject represents the structure of pyproject.toml
type pyproject struct {
	Project struct {
		Name                 string              `toml:"name"`
		Version              string              `toml:"version"`
		Dependencies         []string            `toml:"dependencies"`
		OptionalDependencies map[string][]string `toml:"optional-dependencies"`
	} `toml:"project"`
	Tool struct {
		Poetry struct {
			Name            string         `toml:"name"`
			Version         string         `toml:"version"`
			Dependencies    map[string]any `toml:"dependencies"`
			DevDependencies map[string]any `toml:"dev-dependencies"`
			Group           map[string]struct {
				Dependencies map[string]any `toml:"dependencies"`
			} `toml:"group"`
		} `toml:"poetry"`
	} `toml:"tool"`
}

func (p *pyproject) id() models.ExternalID {
	name, version := p.Tool.Poetry.Name, p.Tool.Poetry.Version
	if name == "" {
		name, version = p.Project.Name, p.Project.Version
	}
	if name == "" {
		return models.ExternalID{}
	}
	return models.NewNameVersion(models.ForgePypi, normalizePyName(name), version)
}

// directDependencies returns the normalized names of declared dependencies.
func (p *pyproject) directDependencies() []string {
	seen := make(map[string]struct{})
	add := func(name string) {
		if name == "" || strings.EqualFold(name, "python") {
			return
		}
		seen[normalizePyName(name)] = struct{}{}
	}
	for _, dep := range p.Project.Dependencies {
		add(parsePEP508(dep))
	}
	for _, deps := range p.Project.OptionalDependencies {
		for _, dep := range deps {
			add(parsePEP508(dep))
		}
	}
	for name := range p.Tool.Poetry.Dependencies {
		add(name)
	}
	for name := range p.Tool.Poetry.DevDependencies {
		add(name)
	}
	for _, g := range p.Tool.Poetry.Group {
		for name := range g.Dependencies {
			add(name)
		}
	}
	return sortedKeys(seen)
}

func readPyProject(ctx context.Context, ec *strategy.EvaluationContext) (*pyproject, bool) {
	if !fileExists(ec, "pyproject.toml") {
		return nil, false
	}
	content, err := readFile(ec, "pyproject.toml")
	if err != nil {
		zerolog.Ctx(ctx).Warn().Err(err).Str("dir", ec.Dir).Msg("unable to read pyproject.toml")
		return nil, false
	}
	var proj pyproject
	if err := toml.Unmarshal(content, &proj); err != nil {
		zerolog.Ctx(ctx).Warn().Err(err).Str("dir", ec.Dir).Msg("ignoring unparsable pyproject.toml")
		return nil, false
	}
	return &proj, true
}

type poetryLock struct {
	Package []struct {
		Name         string         `toml:"name"`
		Version      string         `toml:"version"`
		Dependencies map[string]any `toml:"dependencies"`
	} `toml:"package"`
}

// PoetryLockExtractor reads poetry.lock, taking direct dependencies from
// pyproject.toml when it is present.
type PoetryLockExtractor struct{}

// Extract parses the lockfile of the evaluated directory.
func (e *PoetryLockExtractor) Extract(ctx context.Context, ec *strategy.EvaluationContext) strategy.Extraction {
	content, err := readFile(ec, "poetry.lock")
	if err != nil {
		return strategy.ExtractionError(err)
	}
	var lock poetryLock
	if err := toml.Unmarshal(content, &lock); err != nil {
		return strategy.Failure(fmt.Sprintf("unable to parse poetry.lock: %v", err))
	}

	nodes := make(map[string]graph.Node, len(lock.Package))
	for _, pkg := range lock.Package {
		nodes[normalizePyName(pkg.Name)] = pypiNode(pkg.Name, pkg.Version)
	}

	b := graph.NewBuilder()
	dependedOn := make(map[string]bool)
	for _, pkg := range lock.Package {
		parent := nodes[normalizePyName(pkg.Name)]
		b.AddNode(parent)
		for _, dep := range sortedKeys(pkg.Dependencies) {
			child, ok := nodes[normalizePyName(dep)]
			if !ok {
				continue
			}
			dependedOn[normalizePyName(dep)] = true
			b.AddChild(parent, child)
		}
	}

	var projectID models.ExternalID
	var direct []string
	if proj, ok := readPyProject(ctx, ec); ok {
		projectID = proj.id()
		direct = proj.directDependencies()
	}
	roots := 0
	for _, name := range direct {
		if n, ok := nodes[name]; ok {
			b.AddRoot(n)
			roots++
		}
	}
	if roots == 0 {
		for _, name := range sortedKeys(nodes) {
			if !dependedOn[name] {
				b.AddRoot(nodes[name])
			}
		}
	}
	return strategy.Success(newCodeLocation(ec, models.EcosystemPoetry, projectID, b.Build()))
}
