// Package scanner runs the detection pipeline over the configured source
// roots: search, requirement evaluation and extraction.
package scanner

import (
	"context"
	"errors"
	"path/filepath"
	"slices"
	"time"

	"github.com/go-git/go-billy/v5"
	"github.com/go-git/go-billy/v5/osfs"
	"github.com/puzpuzpuz/xsync/v3"
	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"

	"github.com/ethanolivertroy/depdetect/internal/finder"
	"github.com/ethanolivertroy/depdetect/internal/models"
	"github.com/ethanolivertroy/depdetect/internal/strategy"
)

// DefaultParallelism is the worker pool size used when none is configured.
const DefaultParallelism = 4

// Options configure a Scanner.
type Options struct {
	Roots       []string
	Search      finder.Options
	Parallelism int
	// FS opens the filesystem for a source root. Defaults to the host
	// filesystem chrooted at the root.
	FS func(root string) billy.Filesystem
}

// Scanner orchestrates the detection process
type Scanner struct {
	opts       Options
	strategies []*strategy.Strategy
	evaluator  *strategy.Evaluator
}

// New creates a new Scanner. The strategy slice is shared and never modified.
func New(opts Options, strategies []*strategy.Strategy, evaluator *strategy.Evaluator) *Scanner {
	if opts.Parallelism <= 0 {
		opts.Parallelism = DefaultParallelism
	}
	if opts.FS == nil {
		opts.FS = defaultFS
	}
	if len(opts.Roots) == 0 {
		opts.Roots = []string{"."}
	}
	return &Scanner{opts: opts, strategies: strategies, evaluator: evaluator}
}

func defaultFS(root string) billy.Filesystem {
	return osfs.New(root)
}

// Outcome counts how the pairs of one ecosystem ended.
type Outcome struct {
	Type models.Ecosystem
	// Applicable pairs met all of their needs.
	Applicable int
	Extracted  int
	Succeeded  int
	Failed     int
}

// Report is the result of a scan. Evaluations are in search order.
type Report struct {
	Roots        []string
	SearchErrors []*finder.SearchError
	Evaluations  []*strategy.StrategyEvaluation
	Outcomes     []Outcome
	Duration     time.Duration
}

// Outcome returns the outcome recorded for an ecosystem.
func (r *Report) Outcome(t models.Ecosystem) (Outcome, bool) {
	for _, o := range r.Outcomes {
		if o.Type == t {
			return o, true
		}
	}
	return Outcome{}, false
}

// Scan performs the full detection run. A root that cannot be searched is
// recorded and the remaining roots are still scanned.
func (s *Scanner) Scan(ctx context.Context) *Report {
	start := time.Now()
	logger := zerolog.Ctx(ctx)
	report := &Report{}

	// Step 1: Discover candidate directories in every root
	filesystems := make(map[string]billy.Filesystem, len(s.opts.Roots))
	var candidates []finder.Candidate
	for _, root := range s.opts.Roots {
		abs, err := filepath.Abs(root)
		if err != nil {
			abs = filepath.Clean(root)
		}
		report.Roots = append(report.Roots, abs)

		fs, ok := filesystems[abs]
		if !ok {
			fs = s.opts.FS(abs)
			filesystems[abs] = fs
		}
		found, err := finder.Search(ctx, fs, abs, s.strategies, s.opts.Search)
		if err != nil {
			var serr *finder.SearchError
			if !errors.As(err, &serr) {
				serr = &finder.SearchError{Kind: finder.SearchInfrastructure, Root: abs, Err: err}
			}
			logger.Error().Err(serr).Str("root", abs).Msg("search failed")
			report.SearchErrors = append(report.SearchErrors, serr)
		}
		candidates = append(candidates, found...)
	}
	logger.Info().Int("candidates", len(candidates)).Int("roots", len(report.Roots)).Msg("search complete")

	// Step 2: Evaluate and extract every pair on a bounded pool
	evaluations := make([]*strategy.StrategyEvaluation, len(candidates))
	outcomes := xsync.NewMapOf[models.Ecosystem, Outcome]()
	var g errgroup.Group
	g.SetLimit(s.opts.Parallelism)
	for i, c := range candidates {
		g.Go(func() error {
			ec := strategy.NewEvaluationContext(filesystems[c.Root], c.Root, c.Dir, c.Depth)
			se := s.evaluator.Run(ctx, c.Strategy, ec)
			evaluations[i] = se
			record(outcomes, se)
			return nil
		})
	}
	// Pair failures are data, never errors.
	_ = g.Wait()
	report.Evaluations = evaluations

	// Step 3: Snapshot the outcome table in a stable order
	outcomes.Range(func(_ models.Ecosystem, o Outcome) bool {
		report.Outcomes = append(report.Outcomes, o)
		return true
	})
	slices.SortFunc(report.Outcomes, func(a, b Outcome) int {
		switch {
		case a.Type < b.Type:
			return -1
		case a.Type > b.Type:
			return 1
		}
		return 0
	})

	report.Duration = time.Since(start)
	logger.Info().
		Int("evaluations", len(evaluations)).
		Dur("duration", report.Duration).
		Msg("extraction complete")
	return report
}

func record(outcomes *xsync.MapOf[models.Ecosystem, Outcome], se *strategy.StrategyEvaluation) {
	if se.State == strategy.StateInitial || se.State == strategy.StateNeedsNotMet {
		return
	}
	outcomes.Compute(se.Strategy.Type, func(o Outcome, _ bool) (Outcome, bool) {
		o.Type = se.Strategy.Type
		o.Applicable++
		if se.ReachedExtraction() {
			o.Extracted++
		}
		switch {
		case se.Succeeded():
			o.Succeeded++
		case se.Failed():
			o.Failed++
		}
		return o, false
	})
}
