package api

import (
	"net/http"
	"time"

	"github.com/labstack/echo/v4"

	"github.com/joacominatel/connections/internal/application"
	"github.com/joacominatel/connections/internal/infrastructure/auth"
)

// AdminHandler serves the admin control plane.
type AdminHandler struct {
	authenticator *auth.AdminAuthenticator
	jwt           *auth.JWTManager
	overview      *application.OverviewUseCase
	createAccount *application.CreateAccountUseCase
	ingest        *application.IngestSnapshotUseCase
	scoring       *application.ScoreAccountsUseCase
	enabled       bool
	queueSize     func() int
}

// AdminHandlerConfig holds the admin handler dependencies.
type AdminHandlerConfig struct {
	Authenticator *auth.AdminAuthenticator
	JWTManager    *auth.JWTManager
	Overview      *application.OverviewUseCase
	CreateAccount *application.CreateAccountUseCase
	Ingest        *application.IngestSnapshotUseCase
	Scoring       *application.ScoreAccountsUseCase
	Enabled       bool

	// QueueSize reports the snapshot ingestion backlog, optional.
	QueueSize func() int
}

// NewAdminHandler creates a new AdminHandler.
func NewAdminHandler(cfg AdminHandlerConfig) *AdminHandler {
	queueSize := cfg.QueueSize
	if queueSize == nil {
		queueSize = func() int { return 0 }
	}
	return &AdminHandler{
		authenticator: cfg.Authenticator,
		jwt:           cfg.JWTManager,
		overview:      cfg.Overview,
		createAccount: cfg.CreateAccount,
		ingest:        cfg.Ingest,
		scoring:       cfg.Scoring,
		enabled:       cfg.Enabled,
		queueSize:     queueSize,
	}
}

// RegisterAuthRoutes registers the public login route.
func (h *AdminHandler) RegisterAuthRoutes(g *echo.Group) {
	g.POST("/auth/login", h.Login)
}

// RegisterRoutes registers the protected admin routes on the given group.
func (h *AdminHandler) RegisterRoutes(g *echo.Group) {
	g.GET("/overview", h.Overview)
	g.POST("/accounts", h.CreateAccount)
	g.POST("/accounts/:id/snapshots", h.IngestSnapshot)
	g.POST("/accounts/:id/rescore", h.RescoreAccount)
	g.POST("/rescore", h.RescoreAll)
}

// --- Request/Response DTOs ---

// LoginRequest is the request body for admin login.
type LoginRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

// LoginResponse carries the issued token at the top level of the envelope.
type LoginResponse struct {
	OK        bool      `json:"ok"`
	Token     string    `json:"token"`
	ExpiresAt time.Time `json:"expires_at"`
}

// DependencyResponse is the health of one dependency.
type DependencyResponse struct {
	Name   string `json:"name"`
	Status string `json:"status"`
	Error  string `json:"error,omitempty"`
}

// OverviewHealth summarizes dependency and pipeline health.
type OverviewHealth struct {
	Status       string               `json:"status"`
	Dependencies []DependencyResponse `json:"dependencies"`
	QueueSize    int                  `json:"queue_size"`
}

// OverviewStats aggregates the tracked population.
type OverviewStats struct {
	Accounts       int64 `json:"accounts"`
	ActiveAccounts int64 `json:"active_accounts"`
	Scored         int64 `json:"scored"`
	Breakout       int64 `json:"breakout"`
	Rising         int64 `json:"rising"`
	Snapshots24h   int64 `json:"snapshots_24h"`
}

// OverviewResponse is the admin dashboard summary.
type OverviewResponse struct {
	Enabled     bool           `json:"enabled"`
	Health      OverviewHealth `json:"health"`
	Stats       OverviewStats  `json:"stats"`
	GeneratedAt time.Time      `json:"generated_at"`
}

// CreateAccountRequest registers a tracked account.
// absent metrics are filled from the defaults table.
type CreateAccountRequest struct {
	Handle        string   `json:"handle"`
	DisplayName   string   `json:"display_name"`
	InfluenceBase *float64 `json:"influence_base"`
	XScore        *float64 `json:"x_score"`
	SignalNoise   *float64 `json:"signal_noise"`
	RiskLevel     string   `json:"risk_level"`
	Profile       string   `json:"profile"`
}

// CreateAccountResponse is the created account.
type CreateAccountResponse struct {
	AuthorID      string  `json:"author_id"`
	Handle        string  `json:"handle"`
	InfluenceBase float64 `json:"influence_base"`
	XScore        float64 `json:"x_score"`
	SignalNoise   float64 `json:"signal_noise"`
	RiskLevel     string  `json:"risk_level"`
	Profile       string  `json:"profile"`
}

// IngestSnapshotRequest is one influence observation.
type IngestSnapshotRequest struct {
	Influence  *float64       `json:"influence"`
	XScore     *float64       `json:"x_score,omitempty"`
	Source     string         `json:"source,omitempty"`
	Metadata   map[string]any `json:"metadata,omitempty"`
	ObservedAt *time.Time     `json:"observed_at,omitempty"`
}

// IngestSnapshotResponse is the accepted observation.
type IngestSnapshotResponse struct {
	SnapshotID string    `json:"snapshot_id"`
	AuthorID   string    `json:"author_id"`
	Influence  float64   `json:"influence"`
	ObservedAt time.Time `json:"observed_at"`
	Queued     bool      `json:"queued"`
}

// RescoreAccountResponse is the outcome of rescoring one account.
type RescoreAccountResponse struct {
	AuthorID      string         `json:"author_id"`
	Handle        string         `json:"handle"`
	PreviousBadge string         `json:"previous_badge"`
	Breakout      bool           `json:"breakout"`
	Scores        ScoresResponse `json:"scores"`
}

// RescoreAllResponse summarizes a batch rescoring run.
type RescoreAllResponse struct {
	Processed  int   `json:"processed"`
	Succeeded  int   `json:"succeeded"`
	Failed     int   `json:"failed"`
	Breakouts  int   `json:"breakouts"`
	DurationMs int64 `json:"duration_ms"`
}

// --- Handlers ---

// Login handles POST /api/admin/auth/login
//
// @Summary Admin login
// @Tags admin
// @Accept json
// @Produce json
// @Param body body LoginRequest true "Credentials"
// @Success 200 {object} LoginResponse
// @Failure 401 {object} ErrorResponse
// @Router /api/admin/auth/login [post]
func (h *AdminHandler) Login(c echo.Context) error {
	var req LoginRequest
	if err := bindJSON(c, &req); err != nil {
		return err
	}
	if req.Username == "" || req.Password == "" {
		return echo.NewHTTPError(http.StatusBadRequest, "username and password are required")
	}

	if err := h.authenticator.Authenticate(req.Username, req.Password); err != nil {
		return mapDomainError(err)
	}

	token, expiresAt, err := h.jwt.Issue(req.Username)
	if err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, "failed to issue token").SetInternal(err)
	}

	return c.JSON(http.StatusOK, LoginResponse{
		OK:        true,
		Token:     token,
		ExpiresAt: expiresAt,
	})
}

// Overview handles GET /api/admin/connections/overview
//
// @Summary Admin overview
// @Tags admin
// @Produce json
// @Success 200 {object} OverviewResponse
// @Failure 401 {object} ErrorResponse
// @Router /api/admin/connections/overview [get]
// @Security BearerAuth
func (h *AdminHandler) Overview(c echo.Context) error {
	out, err := h.overview.Execute(c.Request().Context(), application.OverviewInput{
		Enabled:   h.enabled,
		QueueSize: h.queueSize(),
	})
	if err != nil {
		return mapDomainError(err)
	}

	deps := make([]DependencyResponse, 0, len(out.Dependencies))
	for _, d := range out.Dependencies {
		deps = append(deps, DependencyResponse{Name: d.Name, Status: d.Status, Error: d.Error})
	}

	return respond(c, http.StatusOK, OverviewResponse{
		Enabled: out.Enabled,
		Health: OverviewHealth{
			Status:       out.Status,
			Dependencies: deps,
			QueueSize:    out.QueueSize,
		},
		Stats: OverviewStats{
			Accounts:       out.Stats.Total,
			ActiveAccounts: out.Stats.Active,
			Scored:         out.Stats.Scored,
			Breakout:       out.Stats.Breakout,
			Rising:         out.Stats.Rising,
			Snapshots24h:   out.Snapshots24h,
		},
		GeneratedAt: out.GeneratedAt,
	})
}

// CreateAccount handles POST /api/admin/connections/accounts
//
// @Summary Register a tracked account
// @Tags admin
// @Accept json
// @Produce json
// @Param body body CreateAccountRequest true "Account"
// @Success 201 {object} CreateAccountResponse
// @Failure 400 {object} ErrorResponse
// @Failure 409 {object} ErrorResponse
// @Router /api/admin/connections/accounts [post]
// @Security BearerAuth
func (h *AdminHandler) CreateAccount(c echo.Context) error {
	var req CreateAccountRequest
	if err := bindJSON(c, &req); err != nil {
		return err
	}
	if req.Handle == "" {
		return echo.NewHTTPError(http.StatusBadRequest, "handle is required")
	}

	out, err := h.createAccount.Execute(c.Request().Context(), application.CreateAccountInput{
		Handle:        req.Handle,
		DisplayName:   req.DisplayName,
		InfluenceBase: req.InfluenceBase,
		XScore:        req.XScore,
		SignalNoise:   req.SignalNoise,
		RiskLevel:     req.RiskLevel,
		Profile:       req.Profile,
	})
	if err != nil {
		return mapDomainError(err)
	}

	return respond(c, http.StatusCreated, CreateAccountResponse{
		AuthorID:      out.AccountID,
		Handle:        out.Handle,
		InfluenceBase: out.Metrics.InfluenceBase,
		XScore:        out.Metrics.XScore,
		SignalNoise:   out.Metrics.SignalNoise,
		RiskLevel:     out.Metrics.RiskLevel.String(),
		Profile:       out.Metrics.Profile.String(),
	})
}

// IngestSnapshot handles POST /api/admin/connections/accounts/:id/snapshots
// returns 202 when the snapshot was queued for batch persistence.
//
// @Summary Ingest an influence snapshot
// @Tags admin
// @Accept json
// @Produce json
// @Param id path string true "Account id"
// @Param body body IngestSnapshotRequest true "Observation"
// @Success 201 {object} IngestSnapshotResponse
// @Success 202 {object} IngestSnapshotResponse
// @Failure 400 {object} ErrorResponse
// @Failure 404 {object} ErrorResponse
// @Failure 503 {object} ErrorResponse
// @Router /api/admin/connections/accounts/{id}/snapshots [post]
// @Security BearerAuth
func (h *AdminHandler) IngestSnapshot(c echo.Context) error {
	var req IngestSnapshotRequest
	if err := bindJSON(c, &req); err != nil {
		return err
	}
	if req.Influence == nil {
		return echo.NewHTTPError(http.StatusBadRequest, "influence is required")
	}

	out, err := h.ingest.Execute(c.Request().Context(), application.IngestSnapshotInput{
		AccountID:  c.Param("id"),
		Influence:  *req.Influence,
		XScore:     req.XScore,
		Source:     req.Source,
		Metadata:   req.Metadata,
		ObservedAt: req.ObservedAt,
	})
	if err != nil {
		return mapDomainError(err)
	}

	code := http.StatusCreated
	if out.Queued {
		code = http.StatusAccepted
	}
	return respond(c, code, IngestSnapshotResponse{
		SnapshotID: out.SnapshotID,
		AuthorID:   out.AccountID,
		Influence:  out.Influence,
		ObservedAt: out.ObservedAt,
		Queued:     out.Queued,
	})
}

// RescoreAccount handles POST /api/admin/connections/accounts/:id/rescore
//
// @Summary Rescore one account now
// @Tags admin
// @Produce json
// @Param id path string true "Account id"
// @Success 200 {object} RescoreAccountResponse
// @Failure 404 {object} ErrorResponse
// @Router /api/admin/connections/accounts/{id}/rescore [post]
// @Security BearerAuth
func (h *AdminHandler) RescoreAccount(c echo.Context) error {
	out, err := h.scoring.Execute(c.Request().Context(), application.ScoreAccountInput{
		AccountID: c.Param("id"),
	})
	if err != nil {
		return mapDomainError(err)
	}

	scores := newAccountResponse(application.AccountView{
		AccountID: out.AccountID,
		Handle:    out.Handle,
		Metrics:   out.Metrics,
		ScoreCard: out.ScoreCard,
		Scored:    true,
	}).Scores

	return respond(c, http.StatusOK, RescoreAccountResponse{
		AuthorID:      out.AccountID,
		Handle:        out.Handle,
		PreviousBadge: out.PreviousBadge.String(),
		Breakout:      out.Breakout,
		Scores:        scores,
	})
}

// RescoreAll handles POST /api/admin/connections/rescore
//
// @Summary Rescore every active account now
// @Tags admin
// @Produce json
// @Success 200 {object} RescoreAllResponse
// @Router /api/admin/connections/rescore [post]
// @Security BearerAuth
func (h *AdminHandler) RescoreAll(c echo.Context) error {
	out, err := h.scoring.ExecuteAll(c.Request().Context())
	if err != nil {
		return mapDomainError(err)
	}

	return respond(c, http.StatusOK, RescoreAllResponse{
		Processed:  out.Processed,
		Succeeded:  out.Succeeded,
		Failed:     out.Failed,
		Breakouts:  out.Breakouts,
		DurationMs: out.Duration.Milliseconds(),
	})
}
