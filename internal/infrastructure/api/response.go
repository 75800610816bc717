package api

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"reflect"

	"github.com/labstack/echo/v4"

	"github.com/joacominatel/connections/internal/application"
	"github.com/joacominatel/connections/internal/domain"
	"github.com/joacominatel/connections/internal/infrastructure/auth"
	"github.com/joacominatel/connections/internal/infrastructure/sharecodec"
)

// Envelope wraps every successful JSON response.
type Envelope struct {
	OK   bool `json:"ok"`
	Data any  `json:"data"`
}

func respond(c echo.Context, code int, data any) error {
	return c.JSON(code, Envelope{OK: true, Data: data})
}

var errInvalidJSON = errors.New("invalid request body")

func invalidBody() error {
	return echo.NewHTTPError(http.StatusBadRequest, errInvalidJSON.Error())
}

// bindJSON decodes the request body into v. an empty body leaves v untouched.
// a value of the wrong JSON type is reported with the field it was found in.
func bindJSON(c echo.Context, v any) error {
	body, err := io.ReadAll(c.Request().Body)
	if err != nil {
		var he *echo.HTTPError
		if errors.As(err, &he) {
			return he
		}
		return invalidBody()
	}
	if len(bytes.TrimSpace(body)) == 0 {
		return nil
	}
	if err := decodeJSON(body, v); err != nil {
		if errors.Is(err, errInvalidJSON) {
			return invalidBody()
		}
		return mapDomainError(err)
	}
	return nil
}

// decodeJSON unmarshals data into v. type mismatches become a
// *domain.MalformedInputError; anything else is errInvalidJSON.
func decodeJSON(data []byte, v any) error {
	err := json.Unmarshal(data, v)
	if err == nil {
		return nil
	}

	var typeErr *json.UnmarshalTypeError
	if errors.As(err, &typeErr) {
		field := typeErr.Field
		if field == "" {
			field = "body"
		}
		return &domain.MalformedInputError{
			Field:  field,
			Reason: fmt.Sprintf("must be %s, got %s", jsonKind(typeErr.Type), typeErr.Value),
		}
	}
	return errInvalidJSON
}

func jsonKind(t reflect.Type) string {
	for t != nil && t.Kind() == reflect.Pointer {
		t = t.Elem()
	}
	if t == nil {
		return "a value"
	}
	switch t.Kind() {
	case reflect.Float32, reflect.Float64,
		reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64,
		reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64:
		return "a number"
	case reflect.String:
		return "a string"
	case reflect.Bool:
		return "a boolean"
	case reflect.Slice, reflect.Array:
		return "an array"
	default:
		return "an object"
	}
}

// mapDomainError maps domain/application errors to HTTP errors.
func mapDomainError(err error) error {
	var mErr *domain.MalformedInputError

	switch {
	case errors.As(err, &mErr):
		return echo.NewHTTPError(http.StatusBadRequest, mErr.Error()).SetInternal(err)
	case errors.Is(err, domain.ErrNotFound):
		return echo.NewHTTPError(http.StatusNotFound, err.Error())
	case errors.Is(err, application.ErrHandleAlreadyExists),
		errors.Is(err, domain.ErrAlreadyExists):
		return echo.NewHTTPError(http.StatusConflict, err.Error())
	case errors.Is(err, application.ErrAccountInactive):
		return echo.NewHTTPError(http.StatusConflict, err.Error())
	case errors.Is(err, application.ErrIngestionBufferFull):
		return echo.NewHTTPError(http.StatusServiceUnavailable, err.Error())
	case isValidationError(err):
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	case isAuthError(err):
		return echo.NewHTTPError(http.StatusUnauthorized, err.Error())
	default:
		return echo.NewHTTPError(http.StatusInternalServerError, "internal server error").SetInternal(err)
	}
}

// isValidationError checks if the error indicates a validation failure.
func isValidationError(err error) bool {
	for _, target := range []error{
		domain.ErrMalformedInput,
		domain.ErrInvalidInput,
		domain.ErrInvalidRiskLevel,
		domain.ErrInvalidProfile,
		domain.ErrInvalidBadge,
		application.ErrBatchTooLarge,
		sharecodec.ErrTokenEmpty,
		sharecodec.ErrTokenTooLong,
		sharecodec.ErrTokenEncoding,
		sharecodec.ErrTokenPayload,
	} {
		if errors.Is(err, target) {
			return true
		}
	}
	return false
}

func isAuthError(err error) bool {
	return errors.Is(err, auth.ErrInvalidCredentials) ||
		errors.Is(err, auth.ErrMissingToken) ||
		errors.Is(err, auth.ErrInvalidToken) ||
		errors.Is(err, auth.ErrTokenExpired) ||
		errors.Is(err, auth.ErrInvalidSignature) ||
		errors.Is(err, auth.ErrInvalidClaims)
}
