package api

import (
	"encoding/json"
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/joacominatel/connections/internal/application"
	"github.com/joacominatel/connections/internal/domain"
)

// demo inputs served by the mock endpoints. they go through the same
// engine as live requests so the demo can never drift from the formulas.
var (
	mockScoreInput = application.EarlySignalInput{
		InfluenceBase:    domain.Float(640),
		VelocityNorm:     domain.Float(0.45),
		AccelerationNorm: domain.Float(0.25),
		SignalNoise:      domain.Float(6.5),
		RiskLevel:        string(domain.RiskMedium),
		Profile:          string(domain.ProfileInfluencer),
	}
	mockScoreXScore = 520.0

	mockEarlySignalInput = application.EarlySignalInput{
		InfluenceBase:    domain.Float(420),
		VelocityNorm:     domain.Float(0.9),
		AccelerationNorm: domain.Float(0.7),
		SignalNoise:      domain.Float(7),
		RiskLevel:        string(domain.RiskLow),
		Profile:          string(domain.ProfileRetail),
	}
	mockSampleCount = domain.TargetSamples
)

// ScoringHandler exposes the engine over HTTP.
type ScoringHandler struct {
	evaluate *application.EvaluateUseCase
}

// NewScoringHandler creates a new ScoringHandler.
func NewScoringHandler(evaluate *application.EvaluateUseCase) *ScoringHandler {
	return &ScoringHandler{evaluate: evaluate}
}

// RegisterRoutes registers the scoring routes on the given group.
func (h *ScoringHandler) RegisterRoutes(g *echo.Group) {
	g.POST("/trend", h.Trend)
	g.POST("/early-signal", h.EarlySignal)
	g.POST("/early-signal/batch", h.EarlySignalBatch)
	g.GET("/score/mock", h.MockScore)
	g.GET("/early-signal/mock", h.MockEarlySignal)
}

// --- Request/Response DTOs ---

// TrendRequest is the request body for evaluate_trend.
// absent fields are filled from the defaults table.
type TrendRequest struct {
	InfluenceScore   *float64 `json:"influence_score"`
	XScore           *float64 `json:"x_score"`
	VelocityNorm     *float64 `json:"velocity_norm"`
	AccelerationNorm *float64 `json:"acceleration_norm"`
}

// TrendResponse is the trend-adjusted score.
type TrendResponse struct {
	AdjustedScore int                        `json:"adjusted_score"`
	Delta         int                        `json:"delta"`
	State         string                     `json:"state"`
	Normalization domain.NormalizationReport `json:"normalization"`
}

// TrendDynamicsRequest groups the momentum indicators.
type TrendDynamicsRequest struct {
	VelocityNorm     *float64 `json:"velocity_norm"`
	AccelerationNorm *float64 `json:"acceleration_norm"`
}

// EarlySignalRequest is the request body for evaluate_early_signal.
type EarlySignalRequest struct {
	InfluenceBase     *float64             `json:"influence_base"`
	InfluenceAdjusted *float64             `json:"influence_adjusted"`
	Trend             TrendDynamicsRequest `json:"trend"`
	SignalNoise       *float64             `json:"signal_noise"`
	RiskLevel         string               `json:"risk_level"`
	Profile           string               `json:"profile"`

	// Confidence is the caller's sample-adequacy value, null when unknown.
	Confidence *float64 `json:"confidence"`
}

func (r EarlySignalRequest) input() application.EarlySignalInput {
	return application.EarlySignalInput{
		InfluenceBase:     r.InfluenceBase,
		InfluenceAdjusted: r.InfluenceAdjusted,
		VelocityNorm:      r.Trend.VelocityNorm,
		AccelerationNorm:  r.Trend.AccelerationNorm,
		SignalNoise:       r.SignalNoise,
		RiskLevel:         r.RiskLevel,
		Profile:           r.Profile,
		Confidence:        r.Confidence,
	}
}

// EarlySignalResponse is the classification with its rationale.
type EarlySignalResponse struct {
	EarlySignalScore      int                          `json:"early_signal_score"`
	Badge                 string                       `json:"badge"`
	Confidence            *float64                     `json:"confidence"`
	ConfidenceUnavailable bool                         `json:"confidence_unavailable"`
	Reasons               []string                     `json:"reasons"`
	AdjustedScore         int                          `json:"adjusted_score"`
	State                 string                       `json:"state"`
	Components            domain.EarlySignalComponents `json:"components"`
	Normalization         domain.NormalizationReport   `json:"normalization"`
}

func newEarlySignalResponse(out *application.EarlySignalOutput) EarlySignalResponse {
	reasons := out.Reasons
	if reasons == nil {
		reasons = []string{}
	}
	return EarlySignalResponse{
		EarlySignalScore:      out.EarlySignalScore,
		Badge:                 out.Badge,
		Confidence:            out.Confidence,
		ConfidenceUnavailable: out.ConfidenceUnavailable,
		Reasons:               reasons,
		AdjustedScore:         out.AdjustedScore,
		State:                 out.State,
		Components:            out.Components,
		Normalization:         out.Report,
	}
}

// BatchRequest is the request body for a batch evaluation.
// items are decoded one by one, see EarlySignalRequest for their shape.
type BatchRequest struct {
	Items []json.RawMessage `json:"items"`
}

// BatchItemResponse holds one result or the error that failed it.
type BatchItemResponse struct {
	Index  int                  `json:"index"`
	OK     bool                 `json:"ok"`
	Result *EarlySignalResponse `json:"result,omitempty"`
	Error  string               `json:"error,omitempty"`
}

// BatchResponse is the batch evaluation outcome, in input order.
type BatchResponse struct {
	Items     []BatchItemResponse `json:"items"`
	Total     int                 `json:"total"`
	Succeeded int                 `json:"succeeded"`
	Failed    int                 `json:"failed"`
}

// MockScoreResponse is the score demo payload.
type MockScoreResponse struct {
	Handle         string   `json:"handle"`
	InfluenceScore float64  `json:"influence_score"`
	XScore         float64  `json:"x_score"`
	SignalNoise    float64  `json:"signal_noise"`
	RiskLevel      string   `json:"risk_level"`
	Profile        string   `json:"profile"`
	VelocityNorm   float64  `json:"velocity_norm"`
	Acceleration   float64  `json:"acceleration_norm"`
	AdjustedScore  int      `json:"adjusted_score"`
	Delta          int      `json:"delta"`
	State          string   `json:"state"`
	Confidence     *float64 `json:"confidence"`
}

// MockEarlySignalResponse is the early-signal demo payload.
type MockEarlySignalResponse struct {
	Handle string `json:"handle"`
	EarlySignalResponse
}

// --- Handlers ---

// Trend handles POST /api/connections/trend
//
// @Summary Evaluate trend-adjusted score
// @Tags scoring
// @Accept json
// @Produce json
// @Param body body TrendRequest true "Metrics and momentum"
// @Success 200 {object} TrendResponse
// @Failure 400 {object} ErrorResponse
// @Router /api/connections/trend [post]
func (h *ScoringHandler) Trend(c echo.Context) error {
	var req TrendRequest
	if err := bindJSON(c, &req); err != nil {
		return err
	}

	out, err := h.evaluate.Trend(c.Request().Context(), application.TrendInput{
		InfluenceScore:   req.InfluenceScore,
		XScore:           req.XScore,
		VelocityNorm:     req.VelocityNorm,
		AccelerationNorm: req.AccelerationNorm,
	})
	if err != nil {
		return mapDomainError(err)
	}

	return respond(c, http.StatusOK, TrendResponse{
		AdjustedScore: out.AdjustedScore,
		Delta:         out.Delta,
		State:         out.State,
		Normalization: out.Report,
	})
}

// EarlySignal handles POST /api/connections/early-signal
//
// @Summary Classify early signal
// @Tags scoring
// @Accept json
// @Produce json
// @Param body body EarlySignalRequest true "Metrics, momentum and confidence"
// @Success 200 {object} EarlySignalResponse
// @Failure 400 {object} ErrorResponse
// @Router /api/connections/early-signal [post]
func (h *ScoringHandler) EarlySignal(c echo.Context) error {
	var req EarlySignalRequest
	if err := bindJSON(c, &req); err != nil {
		return err
	}

	out, err := h.evaluate.EarlySignal(c.Request().Context(), req.input())
	if err != nil {
		return mapDomainError(err)
	}

	return respond(c, http.StatusOK, newEarlySignalResponse(out))
}

// EarlySignalBatch handles POST /api/connections/early-signal/batch
// a malformed item fails alone; the rest of the batch is still evaluated.
//
// @Summary Classify many accounts
// @Tags scoring
// @Accept json
// @Produce json
// @Param body body BatchRequest true "Up to 500 items"
// @Success 200 {object} BatchResponse
// @Failure 400 {object} ErrorResponse
// @Router /api/connections/early-signal/batch [post]
func (h *ScoringHandler) EarlySignalBatch(c echo.Context) error {
	var req BatchRequest
	if err := bindJSON(c, &req); err != nil {
		return err
	}
	if len(req.Items) == 0 {
		return echo.NewHTTPError(http.StatusBadRequest, "items is required")
	}
	if len(req.Items) > application.MaxBatchSize {
		return mapDomainError(application.ErrBatchTooLarge)
	}

	// decode failures stay with their item; only decodable items are evaluated
	decodeErrs := make(map[int]error)
	inputs := make([]application.EarlySignalInput, 0, len(req.Items))
	positions := make([]int, 0, len(req.Items))
	for i, raw := range req.Items {
		var item EarlySignalRequest
		if err := decodeJSON(raw, &item); err != nil {
			decodeErrs[i] = err
			continue
		}
		inputs = append(inputs, item.input())
		positions = append(positions, i)
	}

	results, err := h.evaluate.EarlySignalBatch(c.Request().Context(), inputs)
	if err != nil {
		return mapDomainError(err)
	}

	merged := make([]application.BatchItemResult, len(req.Items))
	for i, err := range decodeErrs {
		merged[i] = application.BatchItemResult{Index: i, Err: err}
	}
	for j, r := range results {
		r.Index = positions[j]
		merged[r.Index] = r
	}

	resp := BatchResponse{
		Items: make([]BatchItemResponse, 0, len(merged)),
		Total: len(merged),
	}
	for _, r := range merged {
		item := BatchItemResponse{Index: r.Index}
		if r.Err != nil {
			item.Error = r.Err.Error()
			resp.Failed++
		} else {
			es := newEarlySignalResponse(r.Output)
			item.OK = true
			item.Result = &es
			resp.Succeeded++
		}
		resp.Items = append(resp.Items, item)
	}

	return respond(c, http.StatusOK, resp)
}

// MockScore handles GET /api/connections/score/mock
// returns a fixed demo account scored by the live engine.
func (h *ScoringHandler) MockScore(c echo.Context) error {
	in := mockScoreInput
	in.Confidence = domain.SampleConfidence(mockSampleCount, *in.SignalNoise)

	trend, err := h.evaluate.Trend(c.Request().Context(), application.TrendInput{
		InfluenceScore:   in.InfluenceBase,
		XScore:           &mockScoreXScore,
		VelocityNorm:     in.VelocityNorm,
		AccelerationNorm: in.AccelerationNorm,
	})
	if err != nil {
		return mapDomainError(err)
	}

	return respond(c, http.StatusOK, MockScoreResponse{
		Handle:         "demo_influencer",
		InfluenceScore: *in.InfluenceBase,
		XScore:         mockScoreXScore,
		SignalNoise:    *in.SignalNoise,
		RiskLevel:      in.RiskLevel,
		Profile:        in.Profile,
		VelocityNorm:   *in.VelocityNorm,
		Acceleration:   *in.AccelerationNorm,
		AdjustedScore:  trend.AdjustedScore,
		Delta:          trend.Delta,
		State:          trend.State,
		Confidence:     in.Confidence,
	})
}

// MockEarlySignal handles GET /api/connections/early-signal/mock
// returns a fixed breakout demo classified by the live engine.
func (h *ScoringHandler) MockEarlySignal(c echo.Context) error {
	in := mockEarlySignalInput
	in.Confidence = domain.SampleConfidence(mockSampleCount, *in.SignalNoise)

	out, err := h.evaluate.EarlySignal(c.Request().Context(), in)
	if err != nil {
		return mapDomainError(err)
	}

	return respond(c, http.StatusOK, MockEarlySignalResponse{
		Handle:              "demo_breakout",
		EarlySignalResponse: newEarlySignalResponse(out),
	})
}
