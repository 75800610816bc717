package api

import (
	"net/http"
	"strconv"
	"time"

	"github.com/labstack/echo/v4"

	"github.com/joacominatel/connections/internal/application"
)

// AccountHandler handles the read side of tracked accounts.
type AccountHandler struct {
	query *application.QueryAccountsUseCase
}

// NewAccountHandler creates a new AccountHandler.
func NewAccountHandler(query *application.QueryAccountsUseCase) *AccountHandler {
	return &AccountHandler{query: query}
}

// RegisterRoutes registers the account routes on the given group.
func (h *AccountHandler) RegisterRoutes(g *echo.Group) {
	g.GET("/accounts", h.List)
	g.GET("/accounts/:id", h.Get)
	g.POST("/compare", h.Compare)
}

// --- Request/Response DTOs ---

// ScoresResponse is the latest evaluation of an account.
type ScoresResponse struct {
	InfluenceScore   float64    `json:"influence_score"`
	XScore           float64    `json:"x_score"`
	SignalNoise      float64    `json:"signal_noise"`
	RiskLevel        string     `json:"risk_level"`
	Profile          string     `json:"profile"`
	AdjustedScore    int        `json:"adjusted_score"`
	Delta            int        `json:"delta"`
	TrendState       string     `json:"trend_state"`
	VelocityNorm     float64    `json:"velocity_norm"`
	AccelerationNorm float64    `json:"acceleration_norm"`
	EarlySignalScore int        `json:"early_signal_score"`
	Badge            string     `json:"badge"`
	Confidence       *float64   `json:"confidence"`
	Reasons          []string   `json:"reasons"`
	SampleCount      int        `json:"sample_count"`
	ScoredAt         *time.Time `json:"scored_at"`
}

// AccountResponse is the API representation of a tracked account.
type AccountResponse struct {
	AuthorID    string         `json:"author_id"`
	Handle      string         `json:"handle"`
	DisplayName string         `json:"display_name,omitempty"`
	IsActive    bool           `json:"is_active"`
	Scores      ScoresResponse `json:"scores"`
}

func newAccountResponse(v application.AccountView) AccountResponse {
	card := v.ScoreCard
	reasons := card.Reasons
	if reasons == nil {
		reasons = []string{}
	}

	scores := ScoresResponse{
		InfluenceScore:   v.Metrics.InfluenceBase,
		XScore:           v.Metrics.XScore,
		SignalNoise:      v.Metrics.SignalNoise,
		RiskLevel:        v.Metrics.RiskLevel.String(),
		Profile:          v.Metrics.Profile.String(),
		AdjustedScore:    card.AdjustedScore.Int(),
		Delta:            card.Delta,
		TrendState:       card.State.String(),
		VelocityNorm:     card.VelocityNorm,
		AccelerationNorm: card.AccelerationNorm,
		EarlySignalScore: card.EarlySignalScore.Int(),
		Badge:            card.Badge.String(),
		Confidence:       card.Confidence,
		Reasons:          reasons,
		SampleCount:      card.SampleCount,
	}
	// a live evaluation has no rescoring timestamp
	if v.Scored {
		scoredAt := card.ScoredAt
		scores.ScoredAt = &scoredAt
	}

	return AccountResponse{
		AuthorID:    v.AccountID,
		Handle:      v.Handle,
		DisplayName: v.DisplayName,
		IsActive:    v.IsActive,
		Scores:      scores,
	}
}

// ListAccountsResponse is one page of ranked accounts.
type ListAccountsResponse struct {
	Items  []AccountResponse `json:"items"`
	Sort   string            `json:"sort"`
	Limit  int               `json:"limit"`
	Offset int               `json:"offset"`
}

// CompareRequest names two accounts by id or handle.
type CompareRequest struct {
	Left  string `json:"left"`
	Right string `json:"right"`
}

// CompareDeltas are right minus left.
type CompareDeltas struct {
	InfluenceScore   int `json:"influence_score"`
	AdjustedScore    int `json:"adjusted_score"`
	EarlySignalScore int `json:"early_signal_score"`
}

// AudienceOverlapResponse compares the two follower sets.
// ratios are null while a side has no follower data.
type AudienceOverlapResponse struct {
	AToB              *float64 `json:"a_to_b"`
	BToA              *float64 `json:"b_to_a"`
	SharedUsers       int      `json:"shared_users"`
	JaccardSimilarity *float64 `json:"jaccard_similarity"`
}

// CompareResponse puts two accounts side by side.
type CompareResponse struct {
	Left            AccountResponse         `json:"left"`
	Right           AccountResponse         `json:"right"`
	Deltas          CompareDeltas           `json:"deltas"`
	AudienceOverlap AudienceOverlapResponse `json:"audience_overlap"`
}

// --- Handlers ---

// List handles GET /api/connections/accounts
//
// @Summary List ranked accounts
// @Tags accounts
// @Produce json
// @Param limit query int false "Page size (max 100)"
// @Param offset query int false "Page offset"
// @Param sort query string false "early_signal or influence"
// @Success 200 {object} ListAccountsResponse
// @Failure 400 {object} ErrorResponse
// @Router /api/connections/accounts [get]
func (h *AccountHandler) List(c echo.Context) error {
	limit, err := queryInt(c, "limit")
	if err != nil {
		return err
	}
	offset, err := queryInt(c, "offset")
	if err != nil {
		return err
	}

	out, err := h.query.List(c.Request().Context(), application.ListAccountsInput{
		Sort:   c.QueryParam("sort"),
		Limit:  limit,
		Offset: offset,
	})
	if err != nil {
		return mapDomainError(err)
	}

	resp := ListAccountsResponse{
		Items:  make([]AccountResponse, 0, len(out.Items)),
		Sort:   string(out.Sort),
		Limit:  out.Limit,
		Offset: out.Offset,
	}
	for _, v := range out.Items {
		resp.Items = append(resp.Items, newAccountResponse(v))
	}

	return respond(c, http.StatusOK, resp)
}

// Get handles GET /api/connections/accounts/:id
// the id may be an account id or a handle.
//
// @Summary Get one account
// @Tags accounts
// @Produce json
// @Param id path string true "Account id or handle"
// @Success 200 {object} AccountResponse
// @Failure 404 {object} ErrorResponse
// @Router /api/connections/accounts/{id} [get]
func (h *AccountHandler) Get(c echo.Context) error {
	view, err := h.query.Get(c.Request().Context(), c.Param("id"))
	if err != nil {
		return mapDomainError(err)
	}
	return respond(c, http.StatusOK, newAccountResponse(*view))
}

// Compare handles POST /api/connections/compare
//
// @Summary Compare two accounts
// @Tags accounts
// @Accept json
// @Produce json
// @Param body body CompareRequest true "Accounts to compare"
// @Success 200 {object} CompareResponse
// @Failure 400 {object} ErrorResponse
// @Failure 404 {object} ErrorResponse
// @Router /api/connections/compare [post]
func (h *AccountHandler) Compare(c echo.Context) error {
	var req CompareRequest
	if err := bindJSON(c, &req); err != nil {
		return err
	}

	out, err := h.query.Compare(c.Request().Context(), application.CompareInput{
		Left:  req.Left,
		Right: req.Right,
	})
	if err != nil {
		return mapDomainError(err)
	}

	return respond(c, http.StatusOK, CompareResponse{
		Left:  newAccountResponse(out.Left),
		Right: newAccountResponse(out.Right),
		Deltas: CompareDeltas{
			InfluenceScore:   out.InfluenceDelta,
			AdjustedScore:    out.AdjustedDelta,
			EarlySignalScore: out.EarlySignalDelta,
		},
		AudienceOverlap: AudienceOverlapResponse{
			AToB:              out.AudienceOverlap.AToB,
			BToA:              out.AudienceOverlap.BToA,
			SharedUsers:       out.AudienceOverlap.SharedUsers,
			JaccardSimilarity: out.AudienceOverlap.JaccardSimilarity,
		},
	})
}

// queryInt parses an optional integer query parameter, zero when absent.
func queryInt(c echo.Context, name string) (int, error) {
	raw := c.QueryParam(name)
	if raw == "" {
		return 0, nil
	}
	v, err := strconv.Atoi(raw)
	if err != nil {
		return 0, echo.NewHTTPError(http.StatusBadRequest, name+" must be an integer")
	}
	return v, nil
}
