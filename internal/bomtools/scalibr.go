package bomtools

import (
	"context"
	"errors"
	"fmt"
	"os"
	"slices"

	"github.com/go-git/go-billy/v5"
	scalibr "github.com/google/osv-scalibr"
	"github.com/google/osv-scalibr/extractor/filesystem/language/golang/gobinary"
	scalibr_fs "github.com/google/osv-scalibr/fs"
	scalibr_plugin "github.com/google/osv-scalibr/plugin"
	"github.com/google/osv-scalibr/plugin/list"
	"github.com/rs/zerolog"

	"github.com/ethanolivertroy/depdetect/internal/graph"
	"github.com/ethanolivertroy/depdetect/internal/models"
	"github.com/ethanolivertroy/depdetect/internal/strategy"
)

// rootProbe matches the search root only.
func rootProbe(_ billy.Filesystem, dir string) bool {
	return dir == "."
}

type rootOnly struct{}

func (rootOnly) Key() string { return KeyScalibrMarker }

func (rootOnly) Evaluate(_ context.Context, ec *strategy.EvaluationContext) strategy.RequirementEvaluation {
	if ec.Dir != "." {
		return strategy.Failed(KeyScalibrMarker, "inventory scans run at the search root only")
	}
	return strategy.Passed(KeyScalibrMarker, nil, "search root")
}

// ScalibrExtractor inventories the whole source tree with osv-scalibr's
// offline filesystem extractors.
type ScalibrExtractor struct{}

// Extract scans the evaluated directory.
func (*ScalibrExtractor) Extract(ctx context.Context, ec *strategy.EvaluationContext) strategy.Extraction {
	// have to down-cast here, because scalibr needs multiple io/fs types
	wrapped, ok := os.DirFS(ec.AbsDir()).(scalibr_fs.FS)
	if !ok {
		return strategy.ExtractionError(errors.New("error converting filesystem to ReadDirFS"))
	}

	desiredCaps := scalibr_plugin.Capabilities{
		OS:            scalibr_plugin.OSLinux,
		Network:       scalibr_plugin.NetworkOffline,
		DirectFS:      false,
		RunningSystem: false,
	}

	extractors := list.FromCapabilities(&desiredCaps)
	// The go binary extractor panics on some files.
	extractors = slices.DeleteFunc(extractors, func(e scalibr_plugin.Plugin) bool {
		_, ok := e.(*gobinary.Extractor)
		return ok
	})
	scanConfig := scalibr.ScanConfig{
		ScanRoots:    []*scalibr_fs.ScanRoot{{FS: wrapped}},
		Plugins:      extractors,
		Capabilities: &desiredCaps,
	}

	results := scalibr.New().Scan(ctx, &scanConfig)
	if results == nil || results.Status == nil {
		return strategy.ExtractionError(errors.New("error scanning files: no results"))
	}
	if results.Status.Status != scalibr_plugin.ScanStatusSucceeded {
		return strategy.ExtractionError(fmt.Errorf("error scanning files: %s", results.Status))
	}

	logger := zerolog.Ctx(ctx)
	b := graph.NewBuilder()
	for _, inv := range results.Inventory.Packages {
		id := models.NewNameVersion(models.ForgeGeneric, inv.Name, inv.Version)
		if p := inv.PURL(); p != nil {
			parsed, err := models.ParsePURL(p.String())
			if err != nil {
				logger.Debug().Err(err).Str("package", inv.Name).Msg("unparsable purl, using generic id")
			} else {
				id = parsed
			}
		}
		b.AddRoot(graph.Node{ID: id, Name: inv.Name, Version: inv.Version})
	}

	return strategy.Success(newCodeLocation(ec, models.EcosystemScalibr, models.ExternalID{}, b.Build()))
}
