package api

import (
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/joacominatel/connections/internal/infrastructure/sharecodec"
)

// ShareHandler encodes and decodes shareable view state.
type ShareHandler struct {
	codec *sharecodec.Codec
}

// NewShareHandler creates a new ShareHandler.
func NewShareHandler(codec *sharecodec.Codec) *ShareHandler {
	return &ShareHandler{codec: codec}
}

// RegisterRoutes registers the share routes on the given group.
func (h *ShareHandler) RegisterRoutes(g *echo.Group) {
	g.POST("/share", h.Encode)
	g.GET("/share/:token", h.Decode)
}

// ShareTokenResponse carries an encoded state token.
type ShareTokenResponse struct {
	Token   string `json:"token"`
	Version int    `json:"version"`
}

// Encode handles POST /api/connections/share
//
// @Summary Encode view state into a share token
// @Tags share
// @Accept json
// @Produce json
// @Param body body sharecodec.State true "View state"
// @Success 200 {object} ShareTokenResponse
// @Failure 400 {object} ErrorResponse
// @Router /api/connections/share [post]
func (h *ShareHandler) Encode(c echo.Context) error {
	var state sharecodec.State
	if err := bindJSON(c, &state); err != nil {
		return err
	}

	token, err := h.codec.Encode(state)
	if err != nil {
		return mapDomainError(err)
	}

	return respond(c, http.StatusOK, ShareTokenResponse{
		Token:   token,
		Version: sharecodec.CurrentVersion,
	})
}

// Decode handles GET /api/connections/share/:token
//
// @Summary Decode a share token
// @Tags share
// @Produce json
// @Param token path string true "Share token"
// @Success 200 {object} sharecodec.State
// @Failure 400 {object} ErrorResponse
// @Router /api/connections/share/{token} [get]
func (h *ShareHandler) Decode(c echo.Context) error {
	state, err := h.codec.Decode(c.Param("token"))
	if err != nil {
		return mapDomainError(err)
	}
	return respond(c, http.StatusOK, state)
}
