package application

import (
	"context"
	"errors"
	"fmt"

	"golang.org/x/sync/errgroup"

	"github.com/joacominatel/connections/internal/domain"
	"github.com/joacominatel/connections/internal/infrastructure/logging"
)

// MaxBatchSize caps the number of items accepted by a batch evaluation.
const MaxBatchSize = 500

// ErrBatchTooLarge is returned when a batch exceeds MaxBatchSize.
var ErrBatchTooLarge = fmt.Errorf("batch must contain at most %d items", MaxBatchSize)

// EvaluationRecorder abstracts prometheus metrics for evaluations.
// keeps the use case decoupled from the metrics package.
type EvaluationRecorder interface {
	RecordEvaluation(kind string, badge string, report domain.NormalizationReport, confidenceUnavailable bool)
	RecordEvaluationRejected(kind string)
}

// TrendInput is the evaluate_trend contract as seen by callers.
type TrendInput struct {
	InfluenceScore   *float64
	XScore           *float64
	VelocityNorm     *float64
	AccelerationNorm *float64
}

// TrendOutput is the trend evaluation plus the normalization report.
type TrendOutput struct {
	AdjustedScore int
	Delta         int
	State         string
	Report        domain.NormalizationReport
}

// EarlySignalInput is the evaluate_early_signal contract as seen by callers.
type EarlySignalInput struct {
	InfluenceBase     *float64
	InfluenceAdjusted *float64
	VelocityNorm      *float64
	AccelerationNorm  *float64
	SignalNoise       *float64
	RiskLevel         string
	Profile           string
	Confidence        *float64
}

// EarlySignalOutput is the classification plus the normalization report.
type EarlySignalOutput struct {
	EarlySignalScore      int
	Badge                 string
	Confidence            *float64
	ConfidenceUnavailable bool
	Reasons               []string
	AdjustedScore         int
	State                 string
	Components            domain.EarlySignalComponents
	Report                domain.NormalizationReport
}

// BatchItemResult holds one batch evaluation, or the error that failed it.
type BatchItemResult struct {
	Index  int
	Output *EarlySignalOutput
	Err    error
}

// EvaluateUseCase exposes the engine to live requests.
// every call site (api, mock endpoints, cli) goes through here or the engine directly.
type EvaluateUseCase struct {
	engine      *domain.Engine
	recorder    EvaluationRecorder
	concurrency int
	logger      *logging.Logger
}

// NewEvaluateUseCase creates a new EvaluateUseCase.
func NewEvaluateUseCase(engine *domain.Engine, logger *logging.Logger) *EvaluateUseCase {
	return &EvaluateUseCase{
		engine:      engine,
		concurrency: 8,
		logger:      logger.WithComponent("evaluate"),
	}
}

// WithRecorder sets the metrics recorder.
func (uc *EvaluateUseCase) WithRecorder(r EvaluationRecorder) *EvaluateUseCase {
	uc.recorder = r
	return uc
}

// WithConcurrency sets how many batch items are evaluated in parallel.
func (uc *EvaluateUseCase) WithConcurrency(n int) *EvaluateUseCase {
	if n > 0 {
		uc.concurrency = n
	}
	return uc
}

// Engine returns the engine backing this use case.
func (uc *EvaluateUseCase) Engine() *domain.Engine {
	return uc.engine
}

// Trend runs evaluate_trend.
func (uc *EvaluateUseCase) Trend(ctx context.Context, input TrendInput) (*TrendOutput, error) {
	ev, err := uc.engine.EvaluateTrend(domain.TrendRequest{
		InfluenceScore:   input.InfluenceScore,
		XScore:           input.XScore,
		VelocityNorm:     input.VelocityNorm,
		AccelerationNorm: input.AccelerationNorm,
	})
	if err != nil {
		uc.rejected("trend", err)
		return nil, err
	}

	if uc.recorder != nil {
		uc.recorder.RecordEvaluation("trend", "", ev.Report, false)
	}
	if ev.Report.Clamped() {
		uc.logger.Debug("trend evaluated with clamped momentum",
			"clamped_fields", ev.Report.ClampedFields,
			"adjusted_score", ev.Result.AdjustedScore.Int(),
		)
	}

	return &TrendOutput{
		AdjustedScore: ev.Result.AdjustedScore.Int(),
		Delta:         ev.Result.Delta,
		State:         ev.Result.State.String(),
		Report:        ev.Report,
	}, nil
}

// EarlySignal runs evaluate_early_signal.
func (uc *EvaluateUseCase) EarlySignal(ctx context.Context, input EarlySignalInput) (*EarlySignalOutput, error) {
	ev, err := uc.engine.EvaluateEarlySignal(domain.EarlySignalRequest{
		InfluenceBase:     input.InfluenceBase,
		InfluenceAdjusted: input.InfluenceAdjusted,
		Trend: domain.RawTrendDynamics{
			VelocityNorm:     input.VelocityNorm,
			AccelerationNorm: input.AccelerationNorm,
		},
		SignalNoise: input.SignalNoise,
		RiskLevel:   input.RiskLevel,
		Profile:     input.Profile,
		Confidence:  input.Confidence,
	})
	if err != nil {
		uc.rejected("early_signal", err)
		return nil, err
	}

	if uc.recorder != nil {
		uc.recorder.RecordEvaluation("early_signal", ev.Result.Badge.String(), ev.Report, ev.Result.ConfidenceUnavailable)
	}

	return &EarlySignalOutput{
		EarlySignalScore:      ev.Result.EarlySignalScore.Int(),
		Badge:                 ev.Result.Badge.String(),
		Confidence:            ev.Result.Confidence,
		ConfidenceUnavailable: ev.Result.ConfidenceUnavailable,
		Reasons:               ev.Result.Reasons,
		AdjustedScore:         domain.NewScore(ev.AdjustedScore).Int(),
		State:                 ev.Trend.State.String(),
		Components:            ev.Result.Components,
		Report:                ev.Report,
	}, nil
}

// EarlySignalBatch evaluates many inputs in parallel.
// a failed item never blocks the others; results keep the input order.
func (uc *EvaluateUseCase) EarlySignalBatch(ctx context.Context, inputs []EarlySignalInput) ([]BatchItemResult, error) {
	if len(inputs) > MaxBatchSize {
		return nil, ErrBatchTooLarge
	}

	results := make([]BatchItemResult, len(inputs))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(uc.concurrency)

	for i, input := range inputs {
		i, input := i, input
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				results[i] = BatchItemResult{Index: i, Err: err}
				return nil
			}
			out, err := uc.EarlySignal(gctx, input)
			results[i] = BatchItemResult{Index: i, Output: out, Err: err}
			return nil
		})
	}
	_ = g.Wait()

	failed := 0
	for _, r := range results {
		if r.Err != nil {
			failed++
		}
	}

	uc.logger.Info("batch evaluation completed",
		"items", len(inputs),
		"failed", failed,
		"outcome", "completed",
	)

	return results, nil
}

func (uc *EvaluateUseCase) rejected(kind string, err error) {
	if uc.recorder != nil {
		uc.recorder.RecordEvaluationRejected(kind)
	}

	var mErr *domain.MalformedInputError
	if errors.As(err, &mErr) {
		uc.logger.EvaluationRejected(kind, mErr.Field, mErr.Reason)
		return
	}
	uc.logger.Warn("evaluation rejected",
		"kind", kind,
		"reason", err.Error(),
	)
}
