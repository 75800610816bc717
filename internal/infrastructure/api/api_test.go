package api

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"

	"github.com/joacominatel/connections/internal/application"
	"github.com/joacominatel/connections/internal/domain"
	"github.com/joacominatel/connections/internal/infrastructure/auth"
	"github.com/joacominatel/connections/internal/infrastructure/logging"
	"github.com/joacominatel/connections/internal/infrastructure/metrics"
	"github.com/joacominatel/connections/internal/infrastructure/sharecodec"
)

type testEnv struct {
	e         *echo.Echo
	accounts  *memAccountRepo
	snapshots *memSnapshotRepo
	subs      *memSubRepo
	followers *memFollowerRepo
	jwt       *auth.JWTManager
}

func newTestEnv(t *testing.T, enabled bool, accounts ...*domain.Account) *testEnv {
	t.Helper()

	logger := logging.Discard()
	engine := domain.DefaultEngine()
	accountRepo := newMemAccountRepo(accounts...)
	snapshotRepo := &memSnapshotRepo{}
	subRepo := newMemSubRepo()
	followerRepo := newMemFollowerRepo()

	hash, err := bcrypt.GenerateFromPassword([]byte("admin12345"), bcrypt.MinCost)
	require.NoError(t, err)
	authenticator, err := auth.NewAdminAuthenticator("admin", "", string(hash))
	require.NoError(t, err)
	jwtManager := auth.NewJWTManager(strings.Repeat("k", 32), time.Hour)

	server := NewServer(DefaultServerConfig(), logger)
	RegisterRoutes(server.Echo(), RouterConfig{
		EvaluateUseCase:      application.NewEvaluateUseCase(engine, logger),
		QueryAccountsUseCase: application.NewQueryAccountsUseCase(accountRepo, engine, logger).WithFollowers(followerRepo),
		AudienceUseCase:      application.NewAudienceUseCase(accountRepo, followerRepo, engine, logger),
		CreateAccountUseCase: application.NewCreateAccountUseCase(accountRepo, domain.DefaultMetricDefaults(), logger),
		IngestUseCase:        application.NewIngestSnapshotUseCase(snapshotRepo, accountRepo, logger),
		ScoreUseCase:         application.NewScoreAccountsUseCase(accountRepo, snapshotRepo, engine, application.DefaultScoringConfig(), logger),
		OverviewUseCase:      application.NewOverviewUseCase(accountRepo, snapshotRepo, logger),
		SubscriptionsUseCase: application.NewManageSubscriptionsUseCase(subRepo, accountRepo, logger),
		ShareCodec:           sharecodec.New(logger),
		JWTManager:           jwtManager,
		Authenticator:        authenticator,
		Enabled:              enabled,
		Logger:               logger,
		Metrics:              metrics.New(),
	})

	return &testEnv{
		e:         server.Echo(),
		accounts:  accountRepo,
		snapshots: snapshotRepo,
		subs:      subRepo,
		followers: followerRepo,
		jwt:       jwtManager,
	}
}

func (env *testEnv) do(t *testing.T, method, path string, body any, token string) (*httptest.ResponseRecorder, map[string]any) {
	t.Helper()

	var reader *bytes.Reader
	if body != nil {
		data, err := json.Marshal(body)
		require.NoError(t, err)
		reader = bytes.NewReader(data)
	} else {
		reader = bytes.NewReader(nil)
	}

	req := httptest.NewRequest(method, path, reader)
	req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	if token != "" {
		req.Header.Set(echo.HeaderAuthorization, "Bearer "+token)
	}
	rec := httptest.NewRecorder()
	env.e.ServeHTTP(rec, req)

	var decoded map[string]any
	if rec.Body.Len() > 0 {
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &decoded), rec.Body.String())
	}
	return rec, decoded
}

func (env *testEnv) adminToken(t *testing.T) string {
	t.Helper()
	token, _, err := env.jwt.Issue("admin")
	require.NoError(t, err)
	return token
}

func newTestAccount(t *testing.T, handle string, influence float64) *domain.Account {
	t.Helper()
	h, err := domain.NewHandle(handle)
	require.NoError(t, err)
	a, err := domain.NewAccount(h, "", domain.AccountMetrics{
		InfluenceBase: influence,
		SignalNoise:   5,
		RiskLevel:     domain.RiskLow,
		Profile:       domain.ProfileRetail,
	})
	require.NoError(t, err)
	return a
}

func data(t *testing.T, body map[string]any) map[string]any {
	t.Helper()
	assert.Equal(t, true, body["ok"])
	d, ok := body["data"].(map[string]any)
	require.True(t, ok, "missing data object in %v", body)
	return d
}

func TestHealthEndpoints(t *testing.T) {
	env := newTestEnv(t, true)

	rec, body := env.do(t, http.MethodGet, "/api/health", nil, "")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, true, body["ok"])
	assert.Equal(t, "connections", body["service"])

	rec, body = env.do(t, http.MethodGet, "/api/connections/health", nil, "")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, true, body["ok"])
	assert.Equal(t, "connections", body["module"])
	assert.Equal(t, true, body["enabled"])
}

type stubChecker struct {
	name string
	err  error
}

func (c stubChecker) Name() string                { return c.name }
func (c stubChecker) Check(context.Context) error { return c.err }

func TestReady(t *testing.T) {
	tests := []struct {
		name     string
		checkers []application.HealthChecker
		wantCode int
	}{
		{"no dependencies", nil, http.StatusOK},
		{"all healthy", []application.HealthChecker{stubChecker{name: "postgres"}}, http.StatusOK},
		{"one down", []application.HealthChecker{
			stubChecker{name: "postgres"},
			stubChecker{name: "redis", err: errors.New("connection refused")},
		}, http.StatusServiceUnavailable},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			e := echo.New()
			NewHealthHandler(true, tt.checkers...).RegisterHealthRoutes(e)

			req := httptest.NewRequest(http.MethodGet, "/ready", nil)
			rec := httptest.NewRecorder()
			e.ServeHTTP(rec, req)

			assert.Equal(t, tt.wantCode, rec.Code)
			var resp ReadyResponse
			require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
			assert.Equal(t, tt.wantCode == http.StatusOK, resp.OK)
			for _, c := range tt.checkers {
				assert.Contains(t, resp.Dependencies, c.Name())
			}
		})
	}
}

func TestTrend(t *testing.T) {
	env := newTestEnv(t, true)

	rec, body := env.do(t, http.MethodPost, "/api/connections/trend", map[string]any{
		"influence_score":   500,
		"velocity_norm":     0.5,
		"acceleration_norm": 0.3,
	}, "")
	require.Equal(t, http.StatusOK, rec.Code)

	d := data(t, body)
	assert.Equal(t, float64(610), d["adjusted_score"])
	assert.Equal(t, float64(110), d["delta"])
	assert.Equal(t, "growing", d["state"])
}

func TestTrend_ClampedMomentumIsReported(t *testing.T) {
	env := newTestEnv(t, true)

	rec, body := env.do(t, http.MethodPost, "/api/connections/trend", map[string]any{
		"influence_score": 900,
		"velocity_norm":   50,
	}, "")
	require.Equal(t, http.StatusOK, rec.Code)

	d := data(t, body)
	assert.Equal(t, float64(1000), d["adjusted_score"])
	norm := d["normalization"].(map[string]any)
	assert.Contains(t, norm["clamped_fields"], "velocity_norm")
}

func TestEarlySignal(t *testing.T) {
	env := newTestEnv(t, true)

	request := func(risk string) map[string]any {
		return map[string]any{
			"influence_base":     500,
			"influence_adjusted": 610,
			"trend":              map[string]any{"velocity_norm": 0.5, "acceleration_norm": 0.3},
			"risk_level":         risk,
			"profile":            "retail",
		}
	}

	tests := []struct {
		risk      string
		wantScore float64
		wantBadge string
	}{
		{"low", 600, "rising"},
		{"high", 100, "none"},
	}

	for _, tt := range tests {
		t.Run(tt.risk, func(t *testing.T) {
			rec, body := env.do(t, http.MethodPost, "/api/connections/early-signal", request(tt.risk), "")
			require.Equal(t, http.StatusOK, rec.Code)

			d := data(t, body)
			assert.Equal(t, tt.wantScore, d["early_signal_score"])
			assert.Equal(t, tt.wantBadge, d["badge"])
			assert.Contains(t, d, "confidence")
			assert.Nil(t, d["confidence"])
			assert.Equal(t, true, d["confidence_unavailable"])
			assert.NotNil(t, d["reasons"])
		})
	}
}

func TestEarlySignal_MalformedInput(t *testing.T) {
	env := newTestEnv(t, true)

	rec, body := env.do(t, http.MethodPost, "/api/connections/early-signal", map[string]any{
		"influence_base": 500,
		"risk_level":     "extreme",
	}, "")
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, false, body["ok"])
	assert.Equal(t, "Bad Request", body["error"])
	assert.Contains(t, body["message"], "risk_level")
}

func TestEarlySignalBatch(t *testing.T) {
	env := newTestEnv(t, true)

	rec, body := env.do(t, http.MethodPost, "/api/connections/early-signal/batch", map[string]any{
		"items": []map[string]any{
			{"influence_base": 500, "trend": map[string]any{"velocity_norm": 0.5}},
			{"influence_base": 500, "profile": "dolphin"},
			{"influence_base": 100},
		},
	}, "")
	require.Equal(t, http.StatusOK, rec.Code)

	d := data(t, body)
	assert.Equal(t, float64(3), d["total"])
	assert.Equal(t, float64(2), d["succeeded"])
	assert.Equal(t, float64(1), d["failed"])

	items := d["items"].([]any)
	require.Len(t, items, 3)
	failed := items[1].(map[string]any)
	assert.Equal(t, false, failed["ok"])
	assert.Contains(t, failed["error"], "profile")
	assert.Equal(t, true, items[2].(map[string]any)["ok"])
}

func TestEarlySignalBatch_Empty(t *testing.T) {
	env := newTestEnv(t, true)

	rec, _ := env.do(t, http.MethodPost, "/api/connections/early-signal/batch", map[string]any{"items": []any{}}, "")
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestEarlySignalBatch_MalformedItemFailsAlone(t *testing.T) {
	env := newTestEnv(t, true)

	rec, body := env.do(t, http.MethodPost, "/api/connections/early-signal/batch", map[string]any{
		"items": []map[string]any{
			{"influence_base": 500, "trend": map[string]any{"velocity_norm": 0.5, "acceleration_norm": 0.3}},
			{"influence_base": "not-a-number"},
		},
	}, "")
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	d := data(t, body)
	assert.Equal(t, float64(2), d["total"])
	assert.Equal(t, float64(1), d["succeeded"])
	assert.Equal(t, float64(1), d["failed"])

	items := d["items"].([]any)
	require.Len(t, items, 2)
	good := items[0].(map[string]any)
	assert.Equal(t, true, good["ok"])
	assert.Equal(t, float64(0), good["index"])
	assert.NotNil(t, good["result"])

	bad := items[1].(map[string]any)
	assert.Equal(t, false, bad["ok"])
	assert.Equal(t, float64(1), bad["index"])
	assert.Contains(t, bad["error"], "influence_base")
}

func TestEarlySignalBatch_AllItemsMalformed(t *testing.T) {
	env := newTestEnv(t, true)

	rec, body := env.do(t, http.MethodPost, "/api/connections/early-signal/batch", map[string]any{
		"items": []any{
			map[string]any{"confidence": "high"},
			"not an object",
		},
	}, "")
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	d := data(t, body)
	assert.Equal(t, float64(0), d["succeeded"])
	assert.Equal(t, float64(2), d["failed"])
	items := d["items"].([]any)
	require.Len(t, items, 2)
	assert.Contains(t, items[0].(map[string]any)["error"], "confidence")
	assert.Equal(t, float64(1), items[1].(map[string]any)["index"])
}

func TestEarlySignalBatch_TooLarge(t *testing.T) {
	env := newTestEnv(t, true)

	items := make([]map[string]any, application.MaxBatchSize+1)
	for i := range items {
		items[i] = map[string]any{"influence_base": 100}
	}
	rec, body := env.do(t, http.MethodPost, "/api/connections/early-signal/batch", map[string]any{"items": items}, "")
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Contains(t, body["message"], "at most")
}

func TestScoring_NonNumericFieldIsNamed(t *testing.T) {
	env := newTestEnv(t, true)

	tests := []struct {
		name  string
		path  string
		body  map[string]any
		field string
	}{
		{"trend", "/api/connections/trend", map[string]any{"influence_score": "high"}, "influence_score"},
		{"early signal", "/api/connections/early-signal", map[string]any{"influence_base": "not-a-number"}, "influence_base"},
		{"nested trend", "/api/connections/early-signal", map[string]any{"trend": map[string]any{"velocity_norm": "fast"}}, "velocity_norm"},
		{"compare", "/api/connections/compare", map[string]any{"left": 42}, "left"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec, body := env.do(t, http.MethodPost, tt.path, tt.body, "")
			assert.Equal(t, http.StatusBadRequest, rec.Code)
			assert.Equal(t, false, body["ok"])
			assert.Contains(t, body["message"], tt.field)
			assert.Contains(t, body["field"], tt.field)
		})
	}
}

func TestScoring_InvalidJSON(t *testing.T) {
	env := newTestEnv(t, true)

	req := httptest.NewRequest(http.MethodPost, "/api/connections/early-signal", strings.NewReader(`{"influence_base": 5`))
	req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	rec := httptest.NewRecorder()
	env.e.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusBadRequest, rec.Code)
	var body map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, "invalid request body", body["message"])
	assert.NotContains(t, body, "field")
}

func TestDecodeJSON(t *testing.T) {
	tests := []struct {
		name      string
		input     string
		wantField string
		wantErr   error
	}{
		{"valid", `{"influence_base": 500}`, "", nil},
		{"string for number", `{"influence_base": "x"}`, "influence_base", domain.ErrMalformedInput},
		{"number for string", `{"risk_level": 3}`, "risk_level", domain.ErrMalformedInput},
		{"object for number", `{"signal_noise": {}}`, "signal_noise", domain.ErrMalformedInput},
		{"not an object", `[1, 2]`, "body", domain.ErrMalformedInput},
		{"syntax", `{"influence_base":`, "", errInvalidJSON},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var req EarlySignalRequest
			err := decodeJSON([]byte(tt.input), &req)
			if tt.wantErr == nil {
				require.NoError(t, err)
				return
			}
			assert.ErrorIs(t, err, tt.wantErr)

			var mErr *domain.MalformedInputError
			if tt.wantField == "" {
				assert.False(t, errors.As(err, &mErr))
				return
			}
			require.ErrorAs(t, err, &mErr)
			assert.Equal(t, tt.wantField, mErr.Field)
		})
	}
}

func TestMockEndpoints(t *testing.T) {
	env := newTestEnv(t, true)

	rec, body := env.do(t, http.MethodGet, "/api/connections/score/mock", nil, "")
	require.Equal(t, http.StatusOK, rec.Code)
	score := data(t, body)
	assert.Equal(t, float64(640), score["influence_score"])
	assert.Equal(t, "medium", score["risk_level"])
	assert.Contains(t, score, "adjusted_score")

	rec, body = env.do(t, http.MethodGet, "/api/connections/early-signal/mock", nil, "")
	require.Equal(t, http.StatusOK, rec.Code)
	signal := data(t, body)
	assert.Equal(t, float64(1000), signal["early_signal_score"])
	assert.Equal(t, "breakout", signal["badge"])
	assert.InDelta(t, 0.85, signal["confidence"], 1e-9)

	// deterministic across calls
	_, again := env.do(t, http.MethodGet, "/api/connections/early-signal/mock", nil, "")
	assert.Equal(t, signal, data(t, again))
}

func TestListAccounts(t *testing.T) {
	small := newTestAccount(t, "small_one", 120)
	big := newTestAccount(t, "big_one", 880)
	env := newTestEnv(t, true, small, big)

	rec, body := env.do(t, http.MethodGet, "/api/connections/accounts?limit=100&sort=influence", nil, "")
	require.Equal(t, http.StatusOK, rec.Code)

	d := data(t, body)
	assert.Equal(t, float64(100), d["limit"])
	assert.Equal(t, float64(0), d["offset"])
	assert.Equal(t, "influence", d["sort"])

	items := d["items"].([]any)
	require.Len(t, items, 2)
	first := items[0].(map[string]any)
	assert.Equal(t, big.ID().String(), first["author_id"])
	assert.Equal(t, "big_one", first["handle"])
	scores := first["scores"].(map[string]any)
	assert.Equal(t, float64(880), scores["influence_score"])
	assert.Contains(t, scores, "early_signal_score")
	assert.Nil(t, scores["scored_at"])
}

func TestListAccounts_BadQuery(t *testing.T) {
	env := newTestEnv(t, true)

	for _, q := range []string{"limit=abc", "offset=x", "sort=followers"} {
		t.Run(q, func(t *testing.T) {
			rec, body := env.do(t, http.MethodGet, "/api/connections/accounts?"+q, nil, "")
			assert.Equal(t, http.StatusBadRequest, rec.Code)
			assert.Equal(t, false, body["ok"])
		})
	}
}

func TestGetAccount(t *testing.T) {
	a := newTestAccount(t, "someone", 300)
	env := newTestEnv(t, true, a)

	rec, body := env.do(t, http.MethodGet, "/api/connections/accounts/"+a.ID().String(), nil, "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "someone", data(t, body)["handle"])

	rec, _ = env.do(t, http.MethodGet, "/api/connections/accounts/someone", nil, "")
	assert.Equal(t, http.StatusOK, rec.Code)

	rec, body = env.do(t, http.MethodGet, "/api/connections/accounts/nobody", nil, "")
	assert.Equal(t, http.StatusNotFound, rec.Code)
	assert.Equal(t, false, body["ok"])
}

func TestCompare(t *testing.T) {
	left := newTestAccount(t, "test_user_1", 300)
	right := newTestAccount(t, "test_user_2", 450)
	env := newTestEnv(t, true, left, right)

	rec, body := env.do(t, http.MethodPost, "/api/connections/compare", CompareRequest{
		Left:  "test_user_1",
		Right: "test_user_2",
	}, "")
	require.Equal(t, http.StatusOK, rec.Code)

	d := data(t, body)
	assert.Equal(t, "test_user_1", d["left"].(map[string]any)["handle"])
	assert.Equal(t, "test_user_2", d["right"].(map[string]any)["handle"])
	assert.Equal(t, float64(150), d["deltas"].(map[string]any)["influence_score"])
	overlap, ok := d["audience_overlap"].(map[string]any)
	require.True(t, ok, "audience_overlap must be an object")
	assert.Equal(t, float64(0), overlap["shared_users"])
	assert.Contains(t, overlap, "a_to_b")
	assert.Nil(t, overlap["a_to_b"], "no follower data yet")
	assert.Nil(t, overlap["jaccard_similarity"])

	rec, _ = env.do(t, http.MethodPost, "/api/connections/compare", CompareRequest{Left: "test_user_1", Right: "ghost"}, "")
	assert.Equal(t, http.StatusNotFound, rec.Code)

	rec, _ = env.do(t, http.MethodPost, "/api/connections/compare", CompareRequest{Left: "test_user_1"}, "")
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestShareRoundTrip(t *testing.T) {
	env := newTestEnv(t, true)

	rec, body := env.do(t, http.MethodPost, "/api/connections/share", map[string]any{
		"tab":     "compare",
		"compare": map[string]any{"left": "alice", "right": "bob"},
	}, "")
	require.Equal(t, http.StatusOK, rec.Code)
	token := data(t, body)["token"].(string)
	require.NotEmpty(t, token)

	rec, body = env.do(t, http.MethodGet, "/api/connections/share/"+token, nil, "")
	require.Equal(t, http.StatusOK, rec.Code)
	state := data(t, body)
	assert.Equal(t, float64(sharecodec.CurrentVersion), state["v"])
	assert.Equal(t, "compare", state["tab"])
	assert.Equal(t, "alice", state["compare"].(map[string]any)["left"])

	rec, body = env.do(t, http.MethodGet, "/api/connections/share/not*base64", nil, "")
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, false, body["ok"])
}

func TestAdminLogin(t *testing.T) {
	env := newTestEnv(t, true)

	rec, body := env.do(t, http.MethodPost, "/api/admin/auth/login", LoginRequest{Username: "admin", Password: "admin12345"}, "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, true, body["ok"])
	token, _ := body["token"].(string)
	require.NotEmpty(t, token)

	claims, err := env.jwt.ValidateToken(token)
	require.NoError(t, err)
	assert.Equal(t, "admin", claims.Username())

	rec, body = env.do(t, http.MethodPost, "/api/admin/auth/login", LoginRequest{Username: "admin", Password: "wrong"}, "")
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
	assert.Equal(t, false, body["ok"])

	rec, _ = env.do(t, http.MethodPost, "/api/admin/auth/login", LoginRequest{Username: "admin"}, "")
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestAdminRoutesRequireToken(t *testing.T) {
	env := newTestEnv(t, true)

	tests := []struct {
		name  string
		token string
	}{
		{"missing", ""},
		{"garbage", "not-a-jwt"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec, body := env.do(t, http.MethodGet, "/api/admin/connections/overview", nil, tt.token)
			assert.Equal(t, http.StatusUnauthorized, rec.Code)
			assert.Equal(t, "Unauthorized", body["error"])
		})
	}
}

func TestAdminOverview(t *testing.T) {
	env := newTestEnv(t, true, newTestAccount(t, "tracked", 200))

	rec, body := env.do(t, http.MethodGet, "/api/admin/connections/overview", nil, env.adminToken(t))
	require.Equal(t, http.StatusOK, rec.Code)

	d := data(t, body)
	assert.Equal(t, true, d["enabled"])
	assert.Equal(t, "ok", d["health"].(map[string]any)["status"])
	stats := d["stats"].(map[string]any)
	assert.Equal(t, float64(1), stats["accounts"])
	assert.Equal(t, float64(1), stats["active_accounts"])
}

func TestAdminCreateAccount(t *testing.T) {
	env := newTestEnv(t, true)
	token := env.adminToken(t)

	rec, body := env.do(t, http.MethodPost, "/api/admin/connections/accounts", CreateAccountRequest{
		Handle:        "@fresh_face",
		InfluenceBase: domain.Float(250),
		Profile:       "influencer",
	}, token)
	require.Equal(t, http.StatusCreated, rec.Code)

	d := data(t, body)
	assert.Equal(t, "fresh_face", d["handle"])
	assert.Equal(t, float64(250), d["influence_base"])
	assert.Equal(t, "influencer", d["profile"])
	assert.Equal(t, "low", d["risk_level"])

	rec, _ = env.do(t, http.MethodPost, "/api/admin/connections/accounts", CreateAccountRequest{Handle: "fresh_face"}, token)
	assert.Equal(t, http.StatusConflict, rec.Code)

	rec, _ = env.do(t, http.MethodPost, "/api/admin/connections/accounts", CreateAccountRequest{Handle: "bad handle!"}, token)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec, _ = env.do(t, http.MethodPost, "/api/admin/connections/accounts", CreateAccountRequest{Handle: "other", RiskLevel: "severe"}, token)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestAdminIngestAndRescore(t *testing.T) {
	a := newTestAccount(t, "climber", 400)
	env := newTestEnv(t, true, a)
	token := env.adminToken(t)
	path := "/api/admin/connections/accounts/" + a.ID().String()

	rec, body := env.do(t, http.MethodPost, path+"/snapshots", map[string]any{"influence": 520}, token)
	require.Equal(t, http.StatusCreated, rec.Code)
	d := data(t, body)
	assert.Equal(t, false, d["queued"])
	assert.Equal(t, float64(520), d["influence"])
	assert.Len(t, env.snapshots.snapshots, 1)

	rec, _ = env.do(t, http.MethodPost, path+"/snapshots", map[string]any{}, token)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec, _ = env.do(t, http.MethodPost, "/api/admin/connections/accounts/"+domain.NewAccountID().String()+"/snapshots", map[string]any{"influence": 10}, token)
	assert.Equal(t, http.StatusNotFound, rec.Code)

	rec, body = env.do(t, http.MethodPost, path+"/rescore", nil, token)
	require.Equal(t, http.StatusOK, rec.Code)
	d = data(t, body)
	assert.Equal(t, "none", d["previous_badge"])
	scores := d["scores"].(map[string]any)
	assert.Equal(t, float64(520), scores["influence_score"])
	assert.NotNil(t, scores["scored_at"])
	assert.NotNil(t, a.ScoreCard())

	rec, body = env.do(t, http.MethodPost, "/api/admin/connections/rescore", nil, token)
	require.Equal(t, http.StatusOK, rec.Code)
	d = data(t, body)
	assert.Equal(t, float64(1), d["processed"])
	assert.Equal(t, float64(1), d["succeeded"])
}

func TestAdminSubscriptions(t *testing.T) {
	env := newTestEnv(t, true)
	token := env.adminToken(t)
	base := "/api/admin/connections/subscriptions"

	rec, body := env.do(t, http.MethodPost, base, map[string]any{
		"target_url": "https://hooks.example.com/breakout",
		"secret":     "s3cret",
	}, token)
	require.Equal(t, http.StatusCreated, rec.Code)
	created := data(t, body)
	id := created["id"].(string)
	assert.Nil(t, created["account_id"])
	assert.Equal(t, true, created["is_active"])
	assert.NotContains(t, created, "secret")

	rec, body = env.do(t, http.MethodGet, base, nil, token)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, float64(1), data(t, body)["count"])

	rec, body = env.do(t, http.MethodPatch, base+"/"+id, map[string]any{"is_active": false}, token)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, false, data(t, body)["is_active"])

	rec, _ = env.do(t, http.MethodDelete, base+"/"+id, nil, token)
	assert.Equal(t, http.StatusNoContent, rec.Code)

	rec, _ = env.do(t, http.MethodDelete, base+"/"+id, nil, token)
	assert.Equal(t, http.StatusNotFound, rec.Code)

	rec, _ = env.do(t, http.MethodPost, base, map[string]any{"target_url": "ftp://nope", "secret": "x"}, token)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec, _ = env.do(t, http.MethodPost, base, map[string]any{
		"account_id": domain.NewAccountID().String(),
		"target_url": "https://hooks.example.com/breakout",
		"secret":     "s3cret",
	}, token)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestDisabledModule(t *testing.T) {
	env := newTestEnv(t, false)

	rec, body := env.do(t, http.MethodPost, "/api/connections/trend", map[string]any{"influence_score": 100}, "")
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
	assert.Equal(t, false, body["ok"])

	rec, body = env.do(t, http.MethodGet, "/api/connections/health", nil, "")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, false, body["enabled"])

	rec, body = env.do(t, http.MethodGet, "/api/admin/connections/overview", nil, env.adminToken(t))
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, false, data(t, body)["enabled"])
}

func TestMetricsEndpoint(t *testing.T) {
	env := newTestEnv(t, true)

	env.do(t, http.MethodPost, "/api/connections/trend", map[string]any{"influence_score": 100}, "")

	req := httptest.NewRequest(http.MethodGet, "/metrics", nil)
	rec := httptest.NewRecorder()
	env.e.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "http_request_duration_seconds")
}

func TestMapDomainError(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want int
	}{
		{"not found", domain.ErrNotFound, http.StatusNotFound},
		{"wrapped not found", errors.Join(errors.New("account x"), domain.ErrNotFound), http.StatusNotFound},
		{"malformed", &domain.MalformedInputError{Field: "x_score", Reason: "is not a finite number"}, http.StatusBadRequest},
		{"invalid input", domain.ErrInvalidInput, http.StatusBadRequest},
		{"batch too large", application.ErrBatchTooLarge, http.StatusBadRequest},
		{"share token", sharecodec.ErrTokenEncoding, http.StatusBadRequest},
		{"duplicate handle", application.ErrHandleAlreadyExists, http.StatusConflict},
		{"inactive", application.ErrAccountInactive, http.StatusConflict},
		{"buffer full", application.ErrIngestionBufferFull, http.StatusServiceUnavailable},
		{"bad credentials", auth.ErrInvalidCredentials, http.StatusUnauthorized},
		{"unknown", errors.New("boom"), http.StatusInternalServerError},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var he *echo.HTTPError
			require.ErrorAs(t, mapDomainError(tt.err), &he)
			assert.Equal(t, tt.want, he.Code)
		})
	}
}
