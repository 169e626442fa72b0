// Package strategy contains the detection strategy contract and the engine
// that evaluates a strategy against a directory: needs first, then demands,
// then a single extraction.
package strategy

//go:generate go run go.uber.org/mock/mockgen -package mock_$GOPACKAGE -destination=./mock/$GOFILE -source=./$GOFILE

import (
	"context"
	"path"

	"github.com/go-git/go-billy/v5"

	"github.com/ethanolivertroy/depdetect/internal/codelocation"
	"github.com/ethanolivertroy/depdetect/internal/models"
)

// Requirement is a single precondition of a strategy.
type Requirement interface {
	// Key names the requirement. Passed values are stored in the
	// EvaluationContext under this key.
	Key() string
	Evaluate(ctx context.Context, ec *EvaluationContext) RequirementEvaluation
}

// Extractor produces code locations for a directory whose requirements
// all passed.
type Extractor interface {
	Extract(ctx context.Context, ec *EvaluationContext) Extraction
}

// ExtractorFunc adapts a function to the Extractor interface.
type ExtractorFunc func(ctx context.Context, ec *EvaluationContext) Extraction

// Extract calls f.
func (f ExtractorFunc) Extract(ctx context.Context, ec *EvaluationContext) Extraction {
	return f(ctx, ec)
}

// ProbeFunc is the cheap check the finder runs at every directory. It may
// only touch the filesystem.
type ProbeFunc func(fs billy.Filesystem, dir string) bool

// Strategy describes how one ecosystem is detected and extracted. Strategies
// are built once at startup and never modified.
type Strategy struct {
	Type      models.Ecosystem
	Name      string
	Probe     ProbeFunc
	Needs     []Requirement
	Demands   []Requirement
	Extractor Extractor
	// Nestable strategies keep being probed below a directory where they
	// matched when nested search is forced.
	Nestable bool
	// Passive strategies do not stop the search from descending below the
	// directory where they matched.
	Passive bool
}

// FileProbe matches directories containing at least one of the named files.
func FileProbe(names ...string) ProbeFunc {
	return func(fs billy.Filesystem, dir string) bool {
		for _, name := range names {
			fi, err := fs.Stat(path.Join(dir, name))
			if err == nil && !fi.IsDir() {
				return true
			}
		}
		return false
	}
}

// RequirementResult is the outcome of a single requirement.
type RequirementResult int

const (
	RequirementPassed RequirementResult = iota
	RequirementFailed
	RequirementException
)

func (r RequirementResult) String() string {
	switch r {
	case RequirementPassed:
		return "passed"
	case RequirementFailed:
		return "failed"
	case RequirementException:
		return "exception"
	default:
		return "unknown"
	}
}

// RequirementEvaluation records what a requirement found.
type RequirementEvaluation struct {
	Key         string
	Result      RequirementResult
	Value       any
	Description string
	Err         error
}

// Passed returns a passing evaluation carrying value.
func Passed(key string, value any, description string) RequirementEvaluation {
	return RequirementEvaluation{Key: key, Result: RequirementPassed, Value: value, Description: description}
}

// Failed returns an evaluation for a precondition that does not hold.
func Failed(key, description string) RequirementEvaluation {
	return RequirementEvaluation{Key: key, Result: RequirementFailed, Description: description}
}

// Exception returns an evaluation for a check that could not run.
func Exception(key string, err error) RequirementEvaluation {
	ev := RequirementEvaluation{Key: key, Result: RequirementException, Err: err}
	if err != nil {
		ev.Description = err.Error()
	}
	return ev
}

// ExtractionResult is the outcome of an extraction.
type ExtractionResult int

const (
	ExtractionSuccess ExtractionResult = iota
	ExtractionFailure
	ExtractionException
)

func (r ExtractionResult) String() string {
	switch r {
	case ExtractionSuccess:
		return "success"
	case ExtractionFailure:
		return "failure"
	case ExtractionException:
		return "exception"
	default:
		return "unknown"
	}
}

// Extraction is what an extractor returns.
type Extraction struct {
	Result        ExtractionResult
	CodeLocations []*codelocation.CodeLocation
	Err           error
	Description   string
}

// Success returns a successful extraction.
func Success(locations ...*codelocation.CodeLocation) Extraction {
	return Extraction{Result: ExtractionSuccess, CodeLocations: locations}
}

// Failure returns an extraction that ran but produced nothing usable.
func Failure(description string) Extraction {
	return Extraction{Result: ExtractionFailure, Description: description}
}

// ExtractionError returns an extraction that failed unexpectedly.
func ExtractionError(err error) Extraction {
	ex := Extraction{Result: ExtractionException, Err: err}
	if err != nil {
		ex.Description = err.Error()
	}
	return ex
}

// IsEmpty reports whether a successful extraction found nothing.
func (e Extraction) IsEmpty() bool {
	return e.Result == ExtractionSuccess && len(e.CodeLocations) == 0
}
