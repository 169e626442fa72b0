package strategy

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/rs/zerolog"
)

// State is the progress of one (directory, strategy) pair.
type State int

const (
	StateInitial State = iota
	StateNeedsNotMet
	StateNeedsMet
	StateDemandsNotMet
	StateDemandsMet
	StateExtracted
)

func (s State) String() string {
	switch s {
	case StateInitial:
		return "initial"
	case StateNeedsNotMet:
		return "needs not met"
	case StateNeedsMet:
		return "needs met"
	case StateDemandsNotMet:
		return "demands not met"
	case StateDemandsMet:
		return "demands met"
	case StateExtracted:
		return "extracted"
	default:
		return "unknown"
	}
}

// ErrInvalidState is returned when a phase is run out of order.
var ErrInvalidState = errors.New("invalid evaluation state")

// StrategyEvaluation is the full record of one (directory, strategy) pair.
type StrategyEvaluation struct {
	Strategy   *Strategy
	Context    *EvaluationContext
	State      State
	Needs      []RequirementEvaluation
	Demands    []RequirementEvaluation
	Extraction *Extraction
	Duration   time.Duration
}

// NewStrategyEvaluation starts a pair in the initial state.
func NewStrategyEvaluation(st *Strategy, ec *EvaluationContext) *StrategyEvaluation {
	return &StrategyEvaluation{Strategy: st, Context: ec, State: StateInitial}
}

// ReachedExtraction reports whether the extractor was invoked.
func (se *StrategyEvaluation) ReachedExtraction() bool {
	return se.State == StateExtracted
}

// Succeeded reports whether extraction produced at least one code location.
func (se *StrategyEvaluation) Succeeded() bool {
	return se.Extraction != nil && se.Extraction.Result == ExtractionSuccess && len(se.Extraction.CodeLocations) > 0
}

// Failed reports whether the strategy applied but did not produce a result:
// demands not met, or an extraction that failed or came back empty. A pair
// whose needs were not met never applied and is not a failure.
func (se *StrategyEvaluation) Failed() bool {
	switch se.State {
	case StateDemandsNotMet:
		return true
	case StateExtracted:
		return !se.Succeeded()
	default:
		return false
	}
}

// Evaluator drives pairs through needs, demands and extraction.
type Evaluator struct {
	// ExtractionTimeout bounds each extractor call. Zero means no bound.
	ExtractionTimeout time.Duration
}

// NewEvaluator returns an evaluator with the given extraction timeout.
func NewEvaluator(timeout time.Duration) *Evaluator {
	return &Evaluator{ExtractionTimeout: timeout}
}

// Run evaluates needs, then demands, then extracts once if everything passed.
func (e *Evaluator) Run(ctx context.Context, st *Strategy, ec *EvaluationContext) *StrategyEvaluation {
	start := time.Now()
	se := NewStrategyEvaluation(st, ec)
	defer func() { se.Duration = time.Since(start) }()

	if err := e.EvaluateNeeds(ctx, se); err != nil || se.State != StateNeedsMet {
		return se
	}
	if err := e.EvaluateDemands(ctx, se); err != nil || se.State != StateDemandsMet {
		return se
	}
	_ = e.Extract(ctx, se)
	return se
}

// EvaluateNeeds runs every need of the strategy.
func (e *Evaluator) EvaluateNeeds(ctx context.Context, se *StrategyEvaluation) error {
	if se.State != StateInitial {
		return fmt.Errorf("%w: needs evaluated from %s", ErrInvalidState, se.State)
	}
	var ok bool
	se.Needs, ok = e.evaluateAll(ctx, "need", se.Strategy.Needs, se)
	if ok {
		se.State = StateNeedsMet
	} else {
		se.State = StateNeedsNotMet
	}
	return nil
}

// EvaluateDemands runs every demand of the strategy. Needs must have passed.
func (e *Evaluator) EvaluateDemands(ctx context.Context, se *StrategyEvaluation) error {
	if se.State != StateNeedsMet {
		return fmt.Errorf("%w: demands evaluated from %s", ErrInvalidState, se.State)
	}
	var ok bool
	se.Demands, ok = e.evaluateAll(ctx, "demand", se.Strategy.Demands, se)
	if ok {
		se.State = StateDemandsMet
	} else {
		se.State = StateDemandsNotMet
	}
	return nil
}

// Extract invokes the extractor. It only runs from StateDemandsMet, so an
// extractor is called at most once per pair.
func (e *Evaluator) Extract(ctx context.Context, se *StrategyEvaluation) error {
	if se.State != StateDemandsMet {
		return fmt.Errorf("%w: extraction from %s", ErrInvalidState, se.State)
	}
	se.State = StateExtracted

	logger := pairLogger(ctx, se)
	if e.ExtractionTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, e.ExtractionTimeout)
		defer cancel()
	}

	ex := dispatch(ctx, se)
	se.Extraction = &ex

	switch {
	case ex.IsEmpty():
		logger.Warn().Msg("extraction found no code locations")
	case ex.Result == ExtractionSuccess:
		logger.Info().Int("code_locations", len(ex.CodeLocations)).Msg("extraction succeeded")
	case ex.Result == ExtractionFailure:
		logger.Warn().Str("description", ex.Description).Msg("extraction failed")
	default:
		logger.Error().Err(ex.Err).Msg("extraction raised an exception")
	}
	return nil
}

func (e *Evaluator) evaluateAll(
	ctx context.Context, phase string, reqs []Requirement, se *StrategyEvaluation,
) ([]RequirementEvaluation, bool) {
	logger := pairLogger(ctx, se)
	out := make([]RequirementEvaluation, 0, len(reqs))
	ok := true
	for _, req := range reqs {
		ev := evaluateOne(ctx, req, se.Context)
		out = append(out, ev)
		switch ev.Result {
		case RequirementPassed:
			if ev.Value != nil {
				se.Context.Set(ev.Key, ev.Value)
			}
		case RequirementFailed:
			ok = false
			logger.Debug().Str(phase, ev.Key).Str("description", ev.Description).Msgf("%s not met", phase)
		default:
			ok = false
			logger.Warn().Str(phase, ev.Key).Err(ev.Err).Msgf("%s raised an exception", phase)
		}
	}
	return out, ok
}

func evaluateOne(ctx context.Context, req Requirement, ec *EvaluationContext) (ev RequirementEvaluation) {
	var key string
	defer func() {
		if r := recover(); r != nil {
			ev = Exception(key, fmt.Errorf("requirement panicked: %v", r))
		}
	}()
	key = req.Key()
	ev = req.Evaluate(ctx, ec)
	if ev.Key == "" {
		ev.Key = key
	}
	switch ev.Result {
	case RequirementPassed, RequirementFailed:
	case RequirementException:
		if ev.Err == nil {
			ev.Err = errors.New(ev.Description)
		}
	default:
		ev = Exception(key, fmt.Errorf("requirement returned unknown result %d", ev.Result))
	}
	return ev
}

func dispatch(ctx context.Context, se *StrategyEvaluation) (ex Extraction) {
	defer func() {
		if r := recover(); r != nil {
			ex = ExtractionError(fmt.Errorf("extractor panicked: %v", r))
		}
	}()
	if se.Strategy.Extractor == nil {
		return ExtractionError(fmt.Errorf("strategy %s has no extractor", se.Strategy.Name))
	}
	ex = se.Strategy.Extractor.Extract(ctx, se.Context)
	switch ex.Result {
	case ExtractionSuccess, ExtractionFailure:
	case ExtractionException:
		if ex.Err == nil {
			ex.Err = errors.New(ex.Description)
		}
	default:
		ex = ExtractionError(fmt.Errorf("extractor returned unknown result %d", ex.Result))
	}
	return ex
}

func pairLogger(ctx context.Context, se *StrategyEvaluation) zerolog.Logger {
	return zerolog.Ctx(ctx).With().
		Str("strategy", se.Strategy.Name).
		Str("dir", se.Context.Dir).
		Logger()
}
