package cmd

import (
	"context"
	"fmt"
	"io"

	"github.com/rs/zerolog"

	"github.com/ethanolivertroy/depdetect/internal/bom"
	"github.com/ethanolivertroy/depdetect/internal/bomtools"
	"github.com/ethanolivertroy/depdetect/internal/cache"
	"github.com/ethanolivertroy/depdetect/internal/config"
	"github.com/ethanolivertroy/depdetect/internal/executable"
	"github.com/ethanolivertroy/depdetect/internal/finder"
	"github.com/ethanolivertroy/depdetect/internal/project"
	"github.com/ethanolivertroy/depdetect/internal/reporter"
	"github.com/ethanolivertroy/depdetect/internal/scanner"
	"github.com/ethanolivertroy/depdetect/internal/strategy"
)

const (
	appName = "depdetect"
	// resolverSize bounds the memoized executable lookups.
	resolverSize = 64
)

// Version is stamped on every document. Overridden at build time with
// -ldflags "-X github.com/ethanolivertroy/depdetect/cmd.Version=...".
var Version = "dev"

// Detect runs the whole pipeline for cfg and prints the summary to out. The
// returned error is set only when the run could not start; everything after
// that is reflected in the exit code.
func Detect(ctx context.Context, cfg *config.Config, roots []string, out io.Writer) (project.ExitCode, error) {
	logger := zerolog.Ctx(ctx)
	d := cfg.Detect

	encoder, err := reporter.Get(d.Output.Format)
	if err != nil {
		return project.ExitGeneralError, err
	}
	summaryReporter, err := reporter.GetSummaryReporter(d.Output.Summary)
	if err != nil {
		return project.ExitGeneralError, err
	}

	resolver, err := executable.NewResolver(resolverSize)
	if err != nil {
		return project.ExitGeneralError, fmt.Errorf("failed to create executable resolver: %w", err)
	}
	var outputCache *cache.Cache
	if !d.Cache.Disabled {
		outputCache, err = cache.New(appName, d.Cache.TTL())
		if err != nil {
			logger.Warn().Err(err).Msg("tool output cache unavailable, continuing without it")
		} else if d.Cache.Clear {
			clearCache(ctx, outputCache)
		}
	}
	runner := executable.NewRunner(d.TimeoutDuration(), outputCache)

	strategies := bomtools.Registry(bomtools.Options{
		GoPath:         d.Tools.GoPath,
		NpmIncludeDev:  d.Npm.IncludeDev,
		ScalibrEnabled: d.Scalibr.Enabled,
	}, bomtools.Deps{Resolver: resolver, Runner: runner})

	if len(roots) == 0 {
		roots = []string{d.SourcePath}
	}
	s := scanner.New(scanner.Options{
		Roots: roots,
		Search: finder.Options{
			MaxDepth:    d.Search.Depth,
			Exclusions:  d.Search.Exclusions,
			ForceNested: d.Search.Continue,
		},
		Parallelism: d.Parallelism,
	}, strategies, strategy.NewEvaluator(d.ExtractionTimeoutDuration()))

	report := s.Scan(ctx)
	p := project.Aggregate(ctx, report, projectSettings(d, encoder.Extension()))

	builder := bom.NewBuilder(appName, Version)
	files, writeErr := writeDocuments(ctx, d.Output, p, builder, encoder)

	code := p.ExitCode()
	if writeErr != nil {
		logger.Error().Err(writeErr).Msg("failed to write bom documents")
		code = project.ExitGeneralError
	}
	if source, ok := p.NeedsSignatureScan(d.Signature.SnippetMode); ok {
		logger.Info().Str("source", p.SourcePath()).Str("reason", string(source)).Msg("signature scan required")
	}

	rendered, err := summaryReporter.Report(reporter.NewSummary(p, files, d.Signature.SnippetMode, code))
	if err != nil {
		logger.Error().Err(err).Msg("failed to render summary")
		return project.ExitGeneralError, nil
	}
	if _, err := out.Write(rendered); err != nil {
		logger.Error().Err(err).Msg("failed to print summary")
	}

	logger.Info().
		Dur("duration", report.Duration).
		Str("status", code.String()).
		Msg("detect finished")
	return code, nil
}

// clearCache empties c. A failure only costs cache hits, so the run goes on.
func clearCache(ctx context.Context, c *cache.Cache) {
	logger := zerolog.Ctx(ctx)
	if err := c.Clear(); err != nil {
		logger.Warn().Err(err).Msg("failed to clear tool output cache")
		return
	}
	logger.Debug().Msg("tool output cache cleared")
}

func projectSettings(d config.DetectConfig, ext string) project.Settings {
	return project.Settings{
		ProjectName:        d.Project.Name,
		ProjectVersion:     d.Project.Version,
		CodeLocationPrefix: d.Project.CodeLocationPrefix,
		CodeLocationSuffix: d.Project.CodeLocationSuffix,
		VersionScheme:      project.VersionScheme(d.Project.VersionScheme),
		VersionText:        d.Project.VersionText,
		VersionTimeFormat:  d.Project.VersionTimeFormat,
		FileExtension:      ext,
		AggregateName:      d.Output.AggregateName,
	}
}

// writeDocuments writes one document per code location, or a single
// document when an aggregate name is configured. The first failure stops
// the phase.
func writeDocuments(
	ctx context.Context, out config.OutputConfig, p *project.DetectProject, b *bom.Builder, enc reporter.Encoder,
) ([]string, error) {
	w, err := reporter.NewOutputWriter(out.Directory)
	if err != nil {
		return nil, err
	}

	if out.AggregateName != "" {
		doc := b.Build("", p.Name(), p.Version(), p.ExternalID(), p.AggregateGraph(ctx))
		file, err := encodeAndWrite(ctx, w, enc, doc, p.AggregateFileName(out.AggregateName))
		if err != nil {
			return nil, err
		}
		return []string{file}, nil
	}

	var files []string
	for _, cl := range p.CodeLocations() {
		doc := b.Build(cl.Name, p.Name(), p.Version(), cl.ProjectExternalID, cl.Graph)
		file, err := encodeAndWrite(ctx, w, enc, doc, cl.FileName)
		if err != nil {
			return files, err
		}
		files = append(files, file)
	}
	return files, nil
}

func encodeAndWrite(
	ctx context.Context, w *reporter.OutputWriter, enc reporter.Encoder, doc *bom.Document, fileName string,
) (string, error) {
	data, err := enc.Encode(doc)
	if err != nil {
		return "", fmt.Errorf("encoding %s: %w", fileName, err)
	}
	return w.Write(ctx, fileName, data)
}
