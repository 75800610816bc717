package api

import (
	"net/http"
	"time"

	"github.com/labstack/echo/v4"

	"github.com/joacominatel/connections/internal/application"
	"github.com/joacominatel/connections/internal/domain"
)

// SubscriptionHandler handles webhook subscription HTTP endpoints.
type SubscriptionHandler struct {
	subscriptions *application.ManageSubscriptionsUseCase
}

// NewSubscriptionHandler creates a new SubscriptionHandler.
func NewSubscriptionHandler(subscriptions *application.ManageSubscriptionsUseCase) *SubscriptionHandler {
	return &SubscriptionHandler{subscriptions: subscriptions}
}

// RegisterRoutes registers subscription routes on the given group.
// all routes require an admin token.
func (h *SubscriptionHandler) RegisterRoutes(g *echo.Group) {
	subs := g.Group("/subscriptions")
	subs.POST("", h.Create)
	subs.GET("", h.List)
	subs.PATCH("/:id", h.Update)
	subs.DELETE("/:id", h.Delete)
}

// --- Request/Response DTOs ---

// createSubscriptionRequest is the request body for creating a subscription.
// @Description Request body for creating a webhook subscription.
type createSubscriptionRequest struct {
	// AccountID limits alerts to one account; omit it to receive every breakout.
	AccountID string `json:"account_id"`
	// TargetURL is the webhook endpoint that will receive notifications.
	TargetURL string `json:"target_url"`
	// Secret is used for HMAC-SHA256 signature verification.
	Secret string `json:"secret"`
}

// updateSubscriptionRequest toggles a subscription.
type updateSubscriptionRequest struct {
	IsActive *bool `json:"is_active"`
}

// subscriptionResponse is the API representation of a webhook subscription.
// @Description Webhook subscription details.
type subscriptionResponse struct {
	ID        string    `json:"id"`
	AccountID *string   `json:"account_id"`
	TargetURL string    `json:"target_url"`
	IsActive  bool      `json:"is_active"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// listSubscriptionsResponse is the response for listing subscriptions.
// @Description List of webhook subscriptions.
type listSubscriptionsResponse struct {
	Subscriptions []subscriptionResponse `json:"subscriptions"`
	Count         int                    `json:"count"`
}

func newSubscriptionResponse(sub *domain.WebhookSubscription) subscriptionResponse {
	var accountID *string
	if id := sub.AccountID(); id != nil {
		s := id.String()
		accountID = &s
	}
	return subscriptionResponse{
		ID:        sub.ID().String(),
		AccountID: accountID,
		TargetURL: sub.TargetURL(),
		IsActive:  sub.IsActive(),
		CreatedAt: sub.CreatedAt(),
		UpdatedAt: sub.UpdatedAt(),
	}
}

// --- Handlers ---

// Create creates a new webhook subscription.
// @Summary Create a webhook subscription
// @Description Subscribe to breakout alerts for one account or for all of them.
// @Tags subscriptions
// @Accept json
// @Produce json
// @Param request body createSubscriptionRequest true "Subscription details"
// @Success 201 {object} subscriptionResponse
// @Failure 400 {object} ErrorResponse "Invalid request"
// @Failure 401 {object} ErrorResponse "Unauthorized"
// @Failure 404 {object} ErrorResponse "Account not found"
// @Router /api/admin/connections/subscriptions [post]
// @Security BearerAuth
func (h *SubscriptionHandler) Create(c echo.Context) error {
	var req createSubscriptionRequest
	if err := bindJSON(c, &req); err != nil {
		return err
	}

	if req.TargetURL == "" {
		return echo.NewHTTPError(http.StatusBadRequest, "target_url is required")
	}
	if req.Secret == "" {
		return echo.NewHTTPError(http.StatusBadRequest, "secret is required")
	}

	sub, err := h.subscriptions.Create(c.Request().Context(), application.CreateSubscriptionInput{
		AccountID: req.AccountID,
		TargetURL: req.TargetURL,
		Secret:    req.Secret,
	})
	if err != nil {
		return mapDomainError(err)
	}

	return respond(c, http.StatusCreated, newSubscriptionResponse(sub))
}

// List returns every subscription.
// @Summary List webhook subscriptions
// @Tags subscriptions
// @Produce json
// @Success 200 {object} listSubscriptionsResponse
// @Failure 401 {object} ErrorResponse "Unauthorized"
// @Router /api/admin/connections/subscriptions [get]
// @Security BearerAuth
func (h *SubscriptionHandler) List(c echo.Context) error {
	subs, err := h.subscriptions.List(c.Request().Context())
	if err != nil {
		return mapDomainError(err)
	}

	response := listSubscriptionsResponse{
		Subscriptions: make([]subscriptionResponse, 0, len(subs)),
		Count:         len(subs),
	}
	for _, sub := range subs {
		response.Subscriptions = append(response.Subscriptions, newSubscriptionResponse(sub))
	}

	return respond(c, http.StatusOK, response)
}

// Update activates or deactivates a subscription.
// @Summary Toggle a webhook subscription
// @Tags subscriptions
// @Accept json
// @Produce json
// @Param id path string true "Subscription ID"
// @Param request body updateSubscriptionRequest true "New state"
// @Success 200 {object} subscriptionResponse
// @Failure 404 {object} ErrorResponse "Subscription not found"
// @Router /api/admin/connections/subscriptions/{id} [patch]
// @Security BearerAuth
func (h *SubscriptionHandler) Update(c echo.Context) error {
	var req updateSubscriptionRequest
	if err := bindJSON(c, &req); err != nil {
		return err
	}
	if req.IsActive == nil {
		return echo.NewHTTPError(http.StatusBadRequest, "is_active is required")
	}

	sub, err := h.subscriptions.SetActive(c.Request().Context(), c.Param("id"), *req.IsActive)
	if err != nil {
		return mapDomainError(err)
	}

	return respond(c, http.StatusOK, newSubscriptionResponse(sub))
}

// Delete removes a subscription by ID.
// @Summary Delete a webhook subscription
// @Tags subscriptions
// @Param id path string true "Subscription ID"
// @Success 204 "No Content"
// @Failure 401 {object} ErrorResponse "Unauthorized"
// @Failure 404 {object} ErrorResponse "Subscription not found"
// @Router /api/admin/connections/subscriptions/{id} [delete]
// @Security BearerAuth
func (h *SubscriptionHandler) Delete(c echo.Context) error {
	if err := h.subscriptions.Delete(c.Request().Context(), c.Param("id")); err != nil {
		return mapDomainError(err)
	}
	return c.NoContent(http.StatusNoContent)
}
