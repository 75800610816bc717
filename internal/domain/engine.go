package domain

// Engine is the one place trend adjustment and early-signal classification happen.
// live requests, batch rescoring, mock endpoints and the cli all call it.
// it holds only the immutable defaults table, so it is safe for concurrent use.
type Engine struct {
	normalizer MetricsNormalizer
}

// NewEngine creates an engine backed by the given defaults table.
func NewEngine(defaults MetricDefaults) (*Engine, error) {
	if err := defaults.Validate(); err != nil {
		return nil, err
	}
	return &Engine{normalizer: NewMetricsNormalizer(defaults)}, nil
}

// DefaultEngine returns an engine using DefaultMetricDefaults.
func DefaultEngine() *Engine {
	return &Engine{normalizer: NewMetricsNormalizer(DefaultMetricDefaults())}
}

// Normalizer returns the engine's metrics normalizer.
func (e *Engine) Normalizer() MetricsNormalizer {
	return e.normalizer
}

// TrendRequest is the evaluate_trend contract.
type TrendRequest struct {
	InfluenceScore   *float64
	XScore           *float64
	VelocityNorm     *float64
	AccelerationNorm *float64

	// FallbackInfluence replaces the table default when InfluenceScore is absent.
	FallbackInfluence *float64
}

// TrendEvaluation is the evaluate_trend result plus the normalized inputs.
type TrendEvaluation struct {
	Result  TrendAdjustedResult
	Metrics AccountMetrics
	Trend   TrendDynamics
	Report  NormalizationReport
}

// EvaluateTrend runs normalizer and trend adjuster.
func (e *Engine) EvaluateTrend(req TrendRequest) (TrendEvaluation, error) {
	metrics := RawAccountMetrics{
		InfluenceBase: req.InfluenceScore,
		XScore:        req.XScore,
	}
	trend := RawTrendDynamics{
		VelocityNorm:     req.VelocityNorm,
		AccelerationNorm: req.AccelerationNorm,
	}

	if err := e.normalizer.Validate(metrics, trend); err != nil {
		return TrendEvaluation{}, err
	}

	in := e.normalizer.Normalize(metrics, trend, req.FallbackInfluence)

	return TrendEvaluation{
		Result:  AdjustTrend(in.Metrics.InfluenceBase, in.Trend),
		Metrics: in.Metrics,
		Trend:   in.Trend,
		Report:  in.Report,
	}, nil
}

// EarlySignalRequest is the evaluate_early_signal contract.
type EarlySignalRequest struct {
	InfluenceBase *float64

	// InfluenceAdjusted is derived with AdjustTrend when absent.
	InfluenceAdjusted *float64

	Trend       RawTrendDynamics
	SignalNoise *float64
	RiskLevel   string
	Profile     string

	// Confidence is passed through untouched apart from bounding to [0, 1].
	Confidence *float64

	FallbackInfluence *float64
}

// EarlySignalEvaluation is the evaluate_early_signal result plus the inputs used.
type EarlySignalEvaluation struct {
	Result        EarlySignalResult
	AdjustedScore float64
	Metrics       AccountMetrics
	Trend         TrendDynamics
	Report        NormalizationReport
}

// EvaluateEarlySignal runs normalizer, trend adjuster (when needed) and classifier.
func (e *Engine) EvaluateEarlySignal(req EarlySignalRequest) (EarlySignalEvaluation, error) {
	metrics := RawAccountMetrics{
		InfluenceBase: req.InfluenceBase,
		SignalNoise:   req.SignalNoise,
		RiskLevel:     req.RiskLevel,
		Profile:       req.Profile,
	}

	if err := e.normalizer.Validate(metrics, req.Trend); err != nil {
		return EarlySignalEvaluation{}, err
	}
	if req.InfluenceAdjusted != nil && !isFinite(*req.InfluenceAdjusted) {
		return EarlySignalEvaluation{}, malformed("influence_adjusted", "is not a finite number")
	}
	if req.Confidence != nil && !isFinite(*req.Confidence) {
		return EarlySignalEvaluation{}, malformed("confidence", "is not a finite number")
	}

	in := e.normalizer.Normalize(metrics, req.Trend, req.FallbackInfluence)

	var adjusted float64
	if req.InfluenceAdjusted != nil {
		adjusted = clamp(*req.InfluenceAdjusted, float64(MinScore), float64(MaxScore))
		if adjusted != *req.InfluenceAdjusted {
			in.Report.ClampedFields = append(in.Report.ClampedFields, "influence_adjusted")
		}
	} else {
		adjusted = float64(AdjustTrend(in.Metrics.InfluenceBase, in.Trend).AdjustedScore)
		in.Report.DefaultedFields = append(in.Report.DefaultedFields, "influence_adjusted")
	}

	result := ClassifyEarlySignal(EarlySignalInput{
		InfluenceBase: in.Metrics.InfluenceBase,
		AdjustedScore: adjusted,
		Trend:         in.Trend,
		SignalNoise:   in.Metrics.SignalNoise,
		RiskLevel:     in.Metrics.RiskLevel,
		Profile:       in.Metrics.Profile,
		Confidence:    req.Confidence,
	})

	return EarlySignalEvaluation{
		Result:        result,
		AdjustedScore: adjusted,
		Metrics:       in.Metrics,
		Trend:         in.Trend,
		Report:        in.Report,
	}, nil
}

// Evaluation is the full pipeline output for one account.
type Evaluation struct {
	Metrics     AccountMetrics
	Trend       TrendDynamics
	Report      NormalizationReport
	TrendResult TrendAdjustedResult
	Signal      EarlySignalResult
}

// Evaluate runs normalizer, trend adjuster and classifier in sequence.
func (e *Engine) Evaluate(metrics RawAccountMetrics, trend RawTrendDynamics, confidence *float64) (Evaluation, error) {
	if err := e.normalizer.Validate(metrics, trend); err != nil {
		return Evaluation{}, err
	}
	if confidence != nil && !isFinite(*confidence) {
		return Evaluation{}, malformed("confidence", "is not a finite number")
	}

	in := e.normalizer.Normalize(metrics, trend, nil)
	adjusted := AdjustTrend(in.Metrics.InfluenceBase, in.Trend)

	signal := ClassifyEarlySignal(EarlySignalInput{
		InfluenceBase: in.Metrics.InfluenceBase,
		AdjustedScore: float64(adjusted.AdjustedScore),
		Trend:         in.Trend,
		SignalNoise:   in.Metrics.SignalNoise,
		RiskLevel:     in.Metrics.RiskLevel,
		Profile:       in.Metrics.Profile,
		Confidence:    confidence,
	})

	return Evaluation{
		Metrics:     in.Metrics,
		Trend:       in.Trend,
		Report:      in.Report,
		TrendResult: adjusted,
		Signal:      signal,
	}, nil
}
