// Package finder walks a source tree and reports which strategies might apply
// in which directories.
package finder

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path"
	"slices"
	"strings"

	"github.com/go-git/go-billy/v5"
	"github.com/rs/zerolog"

	"github.com/ethanolivertroy/depdetect/internal/strategy"
)

// Options bound the search.
type Options struct {
	// MaxDepth is the deepest directory level probed. 0 probes the root only.
	MaxDepth int
	// Exclusions are directory basenames that are never entered.
	Exclusions []string
	// ForceNested keeps descending below directories where a strategy
	// already matched.
	ForceNested bool
}

// Candidate is a directory where a strategy's probe matched.
type Candidate struct {
	Root     string
	Dir      string
	Depth    int
	Strategy *strategy.Strategy
}

// FailureKind distinguishes search failures.
type FailureKind int

const (
	// NoSuchSourcePath means the root is missing or not a directory.
	NoSuchSourcePath FailureKind = iota + 1
	// SearchInfrastructure means the walk itself could not run.
	SearchInfrastructure
)

func (k FailureKind) String() string {
	switch k {
	case NoSuchSourcePath:
		return "no such source path"
	case SearchInfrastructure:
		return "search infrastructure failure"
	default:
		return "unknown search failure"
	}
}

// ErrNoSuchSourcePath matches any SearchError of kind NoSuchSourcePath.
var ErrNoSuchSourcePath = errors.New("no such source path")

// SearchError is returned when the walk could not run.
type SearchError struct {
	Kind FailureKind
	Root string
	Err  error
}

func (e *SearchError) Error() string {
	if e.Err == nil {
		return fmt.Sprintf("%s: %s", e.Kind, e.Root)
	}
	return fmt.Sprintf("%s: %s: %v", e.Kind, e.Root, e.Err)
}

func (e *SearchError) Unwrap() error {
	return e.Err
}

// Is reports whether target is ErrNoSuchSourcePath for errors of that kind.
func (e *SearchError) Is(target error) bool {
	return target == ErrNoSuchSourcePath && e.Kind == NoSuchSourcePath
}

type visit struct {
	dir      string
	depth    int
	eligible []*strategy.Strategy
}

// Search walks fs breadth first, starting at its root, and probes every
// eligible strategy in every directory. root is the host path fs is rooted at
// and is recorded on each candidate. Candidates are returned in walk order,
// with strategies in the order given.
func Search(
	ctx context.Context, fs billy.Filesystem, root string, strategies []*strategy.Strategy, opts Options,
) ([]Candidate, error) {
	logger := zerolog.Ctx(ctx).With().Str("root", root).Logger()

	fi, err := fs.Stat(".")
	switch {
	case errors.Is(err, os.ErrNotExist):
		return nil, &SearchError{Kind: NoSuchSourcePath, Root: root, Err: err}
	case err != nil:
		return nil, &SearchError{Kind: SearchInfrastructure, Root: root, Err: err}
	case !fi.IsDir():
		return nil, &SearchError{Kind: NoSuchSourcePath, Root: root, Err: errors.New("not a directory")}
	}

	excluded := make(map[string]struct{}, len(opts.Exclusions))
	for _, name := range opts.Exclusions {
		excluded[name] = struct{}{}
	}

	var found []Candidate
	queue := []visit{{dir: ".", depth: 0, eligible: strategies}}
	for len(queue) > 0 {
		if err := ctx.Err(); err != nil {
			return found, &SearchError{Kind: SearchInfrastructure, Root: root, Err: err}
		}
		v := queue[0]
		queue = queue[1:]

		var matched []*strategy.Strategy
		stop := false
		for _, st := range v.eligible {
			if probe(logger, st, fs, v.dir) {
				found = append(found, Candidate{Root: root, Dir: v.dir, Depth: v.depth, Strategy: st})
				matched = append(matched, st)
				stop = stop || !st.Passive
			}
		}

		if v.depth >= opts.MaxDepth {
			continue
		}
		if stop && !opts.ForceNested {
			continue
		}
		next := v.eligible
		if len(matched) > 0 {
			next = slices.DeleteFunc(slices.Clone(v.eligible), func(st *strategy.Strategy) bool {
				return !st.Nestable && slices.Contains(matched, st)
			})
		}
		if len(next) == 0 {
			continue
		}

		entries, err := fs.ReadDir(v.dir)
		if err != nil {
			if v.dir == "." {
				return found, &SearchError{Kind: SearchInfrastructure, Root: root, Err: err}
			}
			logger.Warn().Err(err).Str("dir", v.dir).Msg("skipping unreadable directory")
			continue
		}
		slices.SortFunc(entries, func(a, b os.FileInfo) int {
			return strings.Compare(a.Name(), b.Name())
		})
		for _, e := range entries {
			name := e.Name()
			if name == "." || name == ".." || !e.IsDir() || e.Mode()&os.ModeSymlink != 0 {
				continue
			}
			if _, skip := excluded[name]; skip {
				continue
			}
			queue = append(queue, visit{dir: path.Join(v.dir, name), depth: v.depth + 1, eligible: next})
		}
	}

	logger.Debug().Int("candidates", len(found)).Msg("search complete")
	return found, nil
}

func probe(logger zerolog.Logger, st *strategy.Strategy, fs billy.Filesystem, dir string) (hit bool) {
	defer func() {
		if r := recover(); r != nil {
			logger.Warn().Str("strategy", st.Name).Str("dir", dir).Msgf("probe panicked: %v", r)
			hit = false
		}
	}()
	if st.Probe == nil {
		return false
	}
	return st.Probe(fs, dir)
}
