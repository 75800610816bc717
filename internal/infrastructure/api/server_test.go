package api

import (
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/labstack/echo/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/joacominatel/connections/internal/domain"
	"github.com/joacominatel/connections/internal/infrastructure/logging"
)

func serve(t *testing.T, e *echo.Echo, method, path, body string) (*httptest.ResponseRecorder, map[string]any) {
	t.Helper()
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, req)

	var decoded map[string]any
	if rec.Body.Len() > 0 {
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &decoded), rec.Body.String())
	}
	return rec, decoded
}

func TestServer_BodyLimit(t *testing.T) {
	cfg := DefaultServerConfig()
	cfg.BodyLimit = "1K"
	e := NewServer(cfg, logging.Discard()).Echo()
	e.POST("/echo", func(c echo.Context) error {
		var v map[string]any
		if err := bindJSON(c, &v); err != nil {
			return err
		}
		return respond(c, http.StatusOK, v)
	})

	rec, _ := serve(t, e, http.MethodPost, "/echo", `{"x":"small"}`)
	assert.Equal(t, http.StatusOK, rec.Code)

	rec, body := serve(t, e, http.MethodPost, "/echo", `{"x":"`+strings.Repeat("a", 2048)+`"}`)
	assert.Equal(t, http.StatusRequestEntityTooLarge, rec.Code)
	assert.Equal(t, false, body["ok"])
}

func TestErrorHandler(t *testing.T) {
	e := NewServer(DefaultServerConfig(), logging.Discard()).Echo()
	e.Match([]string{http.MethodGet, http.MethodHead}, "/malformed", func(echo.Context) error {
		return mapDomainError(&domain.MalformedInputError{Field: "x_score", Reason: "is not a finite number"})
	})
	e.GET("/invalid", func(echo.Context) error {
		return mapDomainError(domain.ErrInvalidInput)
	})
	e.GET("/crash", func(echo.Context) error {
		return errors.New("connection reset by peer")
	})

	rec, body := serve(t, e, http.MethodGet, "/malformed", "")
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "Bad Request", body["error"])
	assert.Equal(t, "x_score", body["field"])
	assert.Contains(t, body["message"], "x_score is not a finite number")

	rec, body = serve(t, e, http.MethodGet, "/invalid", "")
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.NotContains(t, body, "field")

	rec, body = serve(t, e, http.MethodGet, "/crash", "")
	assert.Equal(t, http.StatusInternalServerError, rec.Code)
	assert.Equal(t, "internal server error", body["message"], "internal errors are not echoed to clients")

	rec, _ = serve(t, e, http.MethodHead, "/malformed", "")
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Zero(t, rec.Body.Len())
}
