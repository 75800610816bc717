package api

import (
	"math"
	"net/http"
	"time"

	"github.com/labstack/echo/v4"

	"github.com/joacominatel/connections/internal/application"
	"github.com/joacominatel/connections/internal/domain"
)

// node colors by badge, matching the dashboard palette
var badgeColors = map[domain.Badge]string{
	domain.BadgeBreakout: "#ef4444",
	domain.BadgeRising:   "#f59e0b",
	domain.BadgeNone:     "#94a3b8",
}

const (
	minNodeSize   = 8.0
	nodeSizeRange = 24.0
)

// AudienceHandler serves the follower graph and follower ingestion.
type AudienceHandler struct {
	audience *application.AudienceUseCase
}

// NewAudienceHandler creates a new AudienceHandler.
func NewAudienceHandler(audience *application.AudienceUseCase) *AudienceHandler {
	return &AudienceHandler{audience: audience}
}

// RegisterRoutes registers the public graph routes.
func (h *AudienceHandler) RegisterRoutes(g *echo.Group) {
	g.GET("/graph", h.Graph)
	g.POST("/graph", h.Graph)
}

// RegisterAdminRoutes registers follower ingestion on the admin group.
func (h *AudienceHandler) RegisterAdminRoutes(g *echo.Group) {
	g.POST("/accounts/:id/followers", h.IngestFollowers)
}

// --- Request/Response DTOs ---

// GraphRequest filters the graph. GET reads the same names from the query string.
type GraphRequest struct {
	LimitNodes int    `json:"limit_nodes"`
	Profile    string `json:"profile"`
	Badge      string `json:"badge"`
}

// GraphNodeResponse is one tracked account drawn in the graph.
type GraphNodeResponse struct {
	ID               string  `json:"id"`
	Label            string  `json:"label"`
	Profile          string  `json:"profile"`
	InfluenceScore   float64 `json:"influence_score"`
	EarlySignalScore int     `json:"early_signal_score"`
	Badge            string  `json:"badge"`
	Color            string  `json:"color"`
	Size             float64 `json:"size"`
}

// GraphEdgeResponse links two nodes.
type GraphEdgeResponse struct {
	ID        string  `json:"id"`
	Source    string  `json:"source"`
	Target    string  `json:"target"`
	Direction string  `json:"direction"`
	Weight    float64 `json:"weight"`
}

// GraphMeta describes how the graph was built.
type GraphMeta struct {
	TotalNodes  int       `json:"total_nodes"`
	TotalEdges  int       `json:"total_edges"`
	LimitNodes  int       `json:"limit_nodes"`
	GeneratedAt time.Time `json:"generated_at"`
}

// GraphResponse is the audience graph.
type GraphResponse struct {
	Nodes []GraphNodeResponse `json:"nodes"`
	Edges []GraphEdgeResponse `json:"edges"`
	Meta  GraphMeta           `json:"meta"`
}

// IngestFollowersRequest is one observation of an account's audience.
type IngestFollowersRequest struct {
	FollowerIDs []string `json:"follower_ids"`
	Replace     bool     `json:"replace"`
}

// IngestFollowersResponse reports the stored audience size.
type IngestFollowersResponse struct {
	AccountID string `json:"account_id"`
	Added     int    `json:"added"`
	Total     int    `json:"total"`
}

func newGraphNode(v application.AccountView) GraphNodeResponse {
	influence := v.Metrics.InfluenceBase
	return GraphNodeResponse{
		ID:               v.AccountID,
		Label:            "@" + v.Handle,
		Profile:          v.Metrics.Profile.String(),
		InfluenceScore:   influence,
		EarlySignalScore: v.ScoreCard.EarlySignalScore.Int(),
		Badge:            v.ScoreCard.Badge.String(),
		Color:            nodeColor(v.ScoreCard.Badge),
		Size:             nodeSize(influence),
	}
}

func nodeColor(b domain.Badge) string {
	if c, ok := badgeColors[b]; ok {
		return c
	}
	return badgeColors[domain.BadgeNone]
}

// nodeSize grows linearly with influence, from 8 at 0 to 32 at 1000.
func nodeSize(influence float64) float64 {
	maxScore := float64(domain.MaxScore)
	ratio := math.Max(0, math.Min(influence, maxScore)) / maxScore
	return math.Round((minNodeSize+ratio*nodeSizeRange)*10) / 10
}

// --- Handlers ---

// Graph handles GET and POST /api/connections/graph
//
// @Summary Audience graph among top accounts
// @Tags audience
// @Accept json
// @Produce json
// @Param limit_nodes query int false "Node cap (max 200)"
// @Param profile query string false "retail, influencer or whale"
// @Param badge query string false "breakout, rising or none"
// @Param body body GraphRequest false "Filters (POST)"
// @Success 200 {object} GraphResponse
// @Failure 400 {object} ErrorResponse
// @Router /api/connections/graph [get]
// @Router /api/connections/graph [post]
func (h *AudienceHandler) Graph(c echo.Context) error {
	var req GraphRequest
	if c.Request().Method == http.MethodPost {
		if err := bindJSON(c, &req); err != nil {
			return err
		}
	} else {
		limit, err := queryInt(c, "limit_nodes")
		if err != nil {
			return err
		}
		req = GraphRequest{
			LimitNodes: limit,
			Profile:    c.QueryParam("profile"),
			Badge:      c.QueryParam("badge"),
		}
	}

	out, err := h.audience.Graph(c.Request().Context(), application.GraphInput{
		LimitNodes: req.LimitNodes,
		Profile:    req.Profile,
		Badge:      req.Badge,
	})
	if err != nil {
		return mapDomainError(err)
	}

	resp := GraphResponse{
		Nodes: make([]GraphNodeResponse, 0, len(out.Nodes)),
		Edges: make([]GraphEdgeResponse, 0, len(out.Edges)),
		Meta: GraphMeta{
			TotalNodes:  len(out.Nodes),
			TotalEdges:  len(out.Edges),
			LimitNodes:  out.LimitNodes,
			GeneratedAt: out.GeneratedAt,
		},
	}
	for _, v := range out.Nodes {
		resp.Nodes = append(resp.Nodes, newGraphNode(v))
	}
	for _, e := range out.Edges {
		resp.Edges = append(resp.Edges, GraphEdgeResponse{
			ID:        e.ID,
			Source:    e.Source,
			Target:    e.Target,
			Direction: string(e.Direction),
			Weight:    e.Weight,
		})
	}

	return respond(c, http.StatusOK, resp)
}

// IngestFollowers handles POST /api/admin/connections/accounts/:id/followers
//
// @Summary Store follower ids for an account
// @Tags admin
// @Accept json
// @Produce json
// @Param id path string true "Account id"
// @Param body body IngestFollowersRequest true "Follower ids"
// @Success 200 {object} IngestFollowersResponse
// @Failure 400 {object} ErrorResponse
// @Failure 404 {object} ErrorResponse
// @Router /api/admin/connections/accounts/{id}/followers [post]
// @Security BearerAuth
func (h *AudienceHandler) IngestFollowers(c echo.Context) error {
	var req IngestFollowersRequest
	if err := bindJSON(c, &req); err != nil {
		return err
	}
	if req.FollowerIDs == nil {
		return echo.NewHTTPError(http.StatusBadRequest, "follower_ids is required")
	}

	out, err := h.audience.IngestFollowers(c.Request().Context(), application.IngestFollowersInput{
		AccountID:   c.Param("id"),
		FollowerIDs: req.FollowerIDs,
		Replace:     req.Replace,
	})
	if err != nil {
		return mapDomainError(err)
	}

	return respond(c, http.StatusOK, IngestFollowersResponse{
		AccountID: out.AccountID,
		Added:     out.Added,
		Total:     out.Total,
	})
}
