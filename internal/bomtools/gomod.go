package bomtools

import (
	"bufio"
	"bytes"
	"context"
	"fmt"
	"strings"

	"github.com/rs/zerolog"
	"golang.org/x/mod/modfile"

	"github.com/ethanolivertroy/depdetect/internal/cache"
	"github.com/ethanolivertroy/depdetect/internal/executable"
	"github.com/ethanolivertroy/depdetect/internal/graph"
	"github.com/ethanolivertroy/depdetect/internal/models"
	"github.com/ethanolivertroy/depdetect/internal/strategy"
)

// GoModExtractor resolves a Go module's build list with the go tool. Only
// edges leaving selected module versions are kept, and every requirement
// points at the version that was selected for it.
type GoModExtractor struct {
	Runner Runner
}

// Extract runs `go list -m all` and `go mod graph` in the module directory.
func (e *GoModExtractor) Extract(ctx context.Context, ec *strategy.EvaluationContext) strategy.Extraction {
	content, err := readFile(ec, "go.mod")
	if err != nil {
		return strategy.ExtractionError(err)
	}
	mod, err := modfile.Parse(ec.Path("go.mod"), content, nil)
	if err != nil {
		return strategy.Failure(fmt.Sprintf("unable to parse go.mod: %v", err))
	}
	if mod.Module == nil {
		return strategy.Failure("go.mod has no module directive")
	}

	goExe := ec.String(KeyGoExe)
	if goExe == "" {
		goExe = "go"
	}
	// go.sum is optional; a missing one only weakens the cache key.
	sum, _ := readFile(ec, "go.sum")
	key := cache.Key([]byte(ec.AbsDir()), content, sum)
	env := []string{"GOWORK=off"}

	list, err := e.Runner.RunCached(ctx, key, executable.Command{
		Dir: ec.AbsDir(), Path: goExe, Args: []string{"list", "-m", "all"}, Env: env,
	})
	if err != nil {
		return strategy.ExtractionError(fmt.Errorf("go list: %w", err))
	}
	modGraph, err := e.Runner.RunCached(ctx, key, executable.Command{
		Dir: ec.AbsDir(), Path: goExe, Args: []string{"mod", "graph"}, Env: env,
	})
	if err != nil {
		return strategy.ExtractionError(fmt.Errorf("go mod graph: %w", err))
	}

	g := buildGoGraph(ctx, mod, list, modGraph)
	projectID := models.NewNameVersion(models.ForgeGolang, mod.Module.Mod.Path, "")
	cl := newCodeLocation(ec, models.EcosystemGoMod, projectID, g)
	return strategy.Success(cl)
}

// parseGoList maps module paths to selected versions. The main module has an
// empty version.
func parseGoList(out []byte) (main string, selected map[string]string) {
	selected = make(map[string]string)
	sc := bufio.NewScanner(bytes.NewReader(out))
	for sc.Scan() {
		line := strings.TrimSpace(sc.Text())
		if line == "" {
			continue
		}
		// "path version => replacement version" keeps the original path.
		if i := strings.Index(line, " => "); i >= 0 {
			line = line[:i]
		}
		fields := strings.Fields(line)
		switch len(fields) {
		case 1:
			if main == "" {
				main = fields[0]
			}
			selected[fields[0]] = ""
		default:
			selected[fields[0]] = fields[1]
		}
	}
	return main, selected
}

func splitModVersion(s string) (path, version string) {
	if i := strings.LastIndex(s, "@"); i > 0 {
		return s[:i], s[i+1:]
	}
	return s, ""
}

func buildGoGraph(ctx context.Context, mod *modfile.File, list, modGraph []byte) *graph.Graph {
	main, selected := parseGoList(list)
	if main == "" {
		main = mod.Module.Mod.Path
	}

	node := func(path string) graph.Node {
		return graph.NewNode(models.NewNameVersion(models.ForgeGolang, path, selected[path]))
	}
	isSelected := func(path, version string) bool {
		v, ok := selected[path]
		return ok && v == version
	}

	b := graph.NewBuilder()
	var mainChildren []string
	sc := bufio.NewScanner(bytes.NewReader(modGraph))
	for sc.Scan() {
		fields := strings.Fields(sc.Text())
		if len(fields) != 2 {
			continue
		}
		parentPath, parentVersion := splitModVersion(fields[0])
		childPath, _ := splitModVersion(fields[1])
		// Requirements on older versions resolve to the selected one; the go
		// and toolchain pseudo modules are never selected.
		if _, ok := selected[childPath]; !ok || childPath == main {
			continue
		}
		if parentPath == main && parentVersion == "" {
			mainChildren = append(mainChildren, childPath)
			continue
		}
		if !isSelected(parentPath, parentVersion) {
			continue
		}
		b.AddChild(node(parentPath), node(childPath))
	}

	roots := 0
	for _, req := range mod.Require {
		if req.Indirect {
			continue
		}
		if _, ok := selected[req.Mod.Path]; !ok || req.Mod.Path == main {
			continue
		}
		b.AddRoot(node(req.Mod.Path))
		roots++
	}
	if roots == 0 {
		for _, p := range mainChildren {
			b.AddRoot(node(p))
		}
		if len(mainChildren) > 0 {
			zerolog.Ctx(ctx).Debug().Str("module", main).Msg("no direct requirements, using module graph roots")
		}
	}
	return b.Build()
}
