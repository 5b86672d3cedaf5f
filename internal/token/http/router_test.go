package http

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/medisched/tokend/internal/token/directory"
	"github.com/medisched/tokend/internal/token/domain"
	"github.com/medisched/tokend/internal/token/service"
	"github.com/medisched/tokend/internal/token/store/drivers/memory"
	"github.com/medisched/tokend/pkg/jwtx"
	"github.com/stretchr/testify/require"
)

type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

type testEnv struct {
	router *Router
	tokens *service.TokenService
	dir    *directory.Static
	clock  *fakeClock
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()

	clock := &fakeClock{now: time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)}

	codec, err := jwtx.NewCodec(jwtx.Config{
		AccessSecret:  []byte("access-secret-for-tests"),
		RefreshSecret: []byte("refresh-secret-for-tests"),
		Issuer:        "tokend-test",
		AccessTTL:     15 * time.Minute,
		RefreshTTL:    7 * 24 * time.Hour,
		Now:           clock.Now,
	})
	require.NoError(t, err)

	st := memory.NewStore(5, clock.Now)
	tokens := &service.TokenService{Codec: codec, Store: st, Now: clock.Now}
	dir := directory.NewStatic(false)

	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	router := NewRouter("test", st, logger)
	router.TokenService = tokens
	router.TrustService = &service.TrustService{
		Tokens:        tokens,
		Directory:     dir,
		LookupTimeout: time.Second,
	}
	router.ApplyRoutes()

	return &testEnv{router: router, tokens: tokens, dir: dir, clock: clock}
}

func (env *testEnv) login(t *testing.T, subjectID string) domain.TokenPair {
	t.Helper()
	pair, err := env.tokens.IssuePair(context.Background(), jwtx.Payload{
		SubjectID:   subjectID,
		SubjectKind: jwtx.SubjectPatient,
		Role:        "patient",
		Email:       subjectID + "@example.test",
		ClinicID:    "clinic-1",
	}, "test-device")
	require.NoError(t, err)
	return pair
}

func (env *testEnv) do(t *testing.T, method, path, bearer, body string) *httptest.ResponseRecorder {
	t.Helper()
	var reader io.Reader
	if body != "" {
		reader = strings.NewReader(body)
	}
	req := httptest.NewRequest(method, path, reader)
	if bearer != "" {
		req.Header.Set("Authorization", "Bearer "+bearer)
	}
	rec := httptest.NewRecorder()
	env.router.ServeHTTP(rec, req)
	return rec
}

func decodeBody[T any](t *testing.T, rec *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&v))
	return v
}

type errorEnvelope struct {
	Success bool   `json:"success"`
	Code    string `json:"code"`
	Message string `json:"message"`
}

func TestRefreshEndpoint(t *testing.T) {
	t.Parallel()

	env := newTestEnv(t)
	pair := env.login(t, "patient-1")

	t.Run("missing body", func(t *testing.T) {
		rec := env.do(t, http.MethodPost, "/token/refresh", "", "")
		require.Equal(t, http.StatusBadRequest, rec.Code)
		require.Equal(t, CodeNoRefreshToken, decodeBody[errorEnvelope](t, rec).Code)
	})

	t.Run("empty refresh token", func(t *testing.T) {
		rec := env.do(t, http.MethodPost, "/token/refresh", "", `{"refreshToken":""}`)
		require.Equal(t, http.StatusBadRequest, rec.Code)
	})

	t.Run("rotation", func(t *testing.T) {
		rec := env.do(t, http.MethodPost, "/token/refresh", "", `{"refreshToken":"`+pair.RefreshToken+`"}`)
		require.Equal(t, http.StatusOK, rec.Code)

		next := decodeBody[domain.TokenPair](t, rec)
		require.NotEmpty(t, next.AccessToken)
		require.NotEqual(t, pair.RefreshToken, next.RefreshToken)
		require.Equal(t, int64(900), next.ExpiresIn)

		replay := env.do(t, http.MethodPost, "/token/refresh", "", `{"refreshToken":"`+pair.RefreshToken+`"}`)
		require.Equal(t, http.StatusUnauthorized, replay.Code)
		require.Equal(t, CodeRefreshFailed, decodeBody[errorEnvelope](t, replay).Code)
	})

	t.Run("garbage token", func(t *testing.T) {
		rec := env.do(t, http.MethodPost, "/token/refresh", "", `{"refreshToken":"garbage"}`)
		require.Equal(t, http.StatusUnauthorized, rec.Code)
		require.Equal(t, CodeRefreshFailed, decodeBody[errorEnvelope](t, rec).Code)
	})
}

func TestValidateEndpoint(t *testing.T) {
	t.Parallel()

	env := newTestEnv(t)
	pair := env.login(t, "patient-1")

	t.Run("no token", func(t *testing.T) {
		rec := env.do(t, http.MethodPost, "/token/validate", "", "")
		require.Equal(t, http.StatusUnauthorized, rec.Code)
		require.Equal(t, CodeNoToken, decodeBody[errorEnvelope](t, rec).Code)
	})

	t.Run("valid token", func(t *testing.T) {
		rec := env.do(t, http.MethodPost, "/token/validate", pair.AccessToken, "")
		require.Equal(t, http.StatusOK, rec.Code)

		resp := decodeBody[validateResponse](t, rec)
		require.True(t, resp.Valid)
		require.Equal(t, "patient-1", resp.User.SubjectID)
		require.Equal(t, "patient", resp.User.Role)
		require.Equal(t, "clinic-1", resp.User.ClinicID)
	})

	t.Run("expired token", func(t *testing.T) {
		env.clock.Advance(16 * time.Minute)
		rec := env.do(t, http.MethodPost, "/token/validate", pair.AccessToken, "")
		require.Equal(t, http.StatusUnauthorized, rec.Code)
		require.Equal(t, CodeTokenExpired, decodeBody[errorEnvelope](t, rec).Code)
	})
}

func TestTrustRejections(t *testing.T) {
	t.Parallel()

	env := newTestEnv(t)
	pair := env.login(t, "doctor-1")

	t.Run("suspended account", func(t *testing.T) {
		env.dir.Set("doctor-1", domain.DirectoryEntry{SuspendReason: "credentials under review"})

		rec := env.do(t, http.MethodPost, "/token/validate", pair.AccessToken, "")
		require.Equal(t, http.StatusForbidden, rec.Code)

		body := decodeBody[errorEnvelope](t, rec)
		require.Equal(t, CodeAccountSuspended, body.Code)
		require.Contains(t, body.Message, "credentials under review")
	})

	t.Run("force logout", func(t *testing.T) {
		cutoff := env.clock.Now().Add(time.Minute)
		env.dir.Set("doctor-1", domain.DirectoryEntry{IsActive: true, ForceLogoutAt: &cutoff})

		rec := env.do(t, http.MethodPost, "/token/validate", pair.AccessToken, "")
		require.Equal(t, http.StatusUnauthorized, rec.Code)
		require.Equal(t, CodeForceLogout, decodeBody[errorEnvelope](t, rec).Code)
	})
}

func TestLogoutEndpoint(t *testing.T) {
	t.Parallel()

	env := newTestEnv(t)
	pair := env.login(t, "patient-1")

	rec := env.do(t, http.MethodPost, "/token/logout", pair.AccessToken, `{"refreshToken":"`+pair.RefreshToken+`"}`)
	require.Equal(t, http.StatusOK, rec.Code)
	require.True(t, decodeBody[successResponse](t, rec).Success)

	// The blacklisted access token is dead immediately.
	rec = env.do(t, http.MethodPost, "/token/validate", pair.AccessToken, "")
	require.Equal(t, http.StatusUnauthorized, rec.Code)
	require.Equal(t, CodeInvalidToken, decodeBody[errorEnvelope](t, rec).Code)

	// So is the refresh token.
	rec = env.do(t, http.MethodPost, "/token/refresh", "", `{"refreshToken":"`+pair.RefreshToken+`"}`)
	require.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestLogoutAllEndpoint(t *testing.T) {
	t.Parallel()

	env := newTestEnv(t)
	first := env.login(t, "patient-1")
	second := env.login(t, "patient-1")
	other := env.login(t, "patient-2")

	rec := env.do(t, http.MethodPost, "/token/logout-all", second.AccessToken, "")
	require.Equal(t, http.StatusOK, rec.Code)

	for _, rt := range []string{first.RefreshToken, second.RefreshToken} {
		rec := env.do(t, http.MethodPost, "/token/refresh", "", `{"refreshToken":"`+rt+`"}`)
		require.Equal(t, http.StatusUnauthorized, rec.Code)
	}

	// Unrelated subjects keep their sessions.
	rec = env.do(t, http.MethodPost, "/token/refresh", "", `{"refreshToken":"`+other.RefreshToken+`"}`)
	require.Equal(t, http.StatusOK, rec.Code)
}

func TestSessionsEndpoint(t *testing.T) {
	t.Parallel()

	env := newTestEnv(t)
	pair := env.login(t, "patient-1")
	env.clock.Advance(time.Second)
	env.login(t, "patient-1")

	rec := env.do(t, http.MethodGet, "/token/sessions", pair.AccessToken, "")
	require.Equal(t, http.StatusOK, rec.Code)

	resp := decodeBody[sessionsResponse](t, rec)
	require.Len(t, resp.Sessions, 2)
	require.Equal(t, "test-device", resp.Sessions[0].DeviceLabel)
	require.True(t, resp.Sessions[0].CreatedAt.Before(resp.Sessions[1].CreatedAt))
}

func TestRefreshRateLimit(t *testing.T) {
	t.Parallel()

	env := newTestEnv(t)

	// Exhaust the burst with junk; the 11th request from the same IP gets
	// a 429 before the handler ever sees it.
	var last *httptest.ResponseRecorder
	for range 11 {
		last = env.do(t, http.MethodPost, "/token/refresh", "", `{"refreshToken":"junk"}`)
	}
	require.Equal(t, http.StatusTooManyRequests, last.Code)
	require.Equal(t, "RATE_LIMITED", decodeBody[errorEnvelope](t, last).Code)
	require.NotEmpty(t, last.Header().Get("Retry-After"))
}

func TestHealthEndpoints(t *testing.T) {
	t.Parallel()

	env := newTestEnv(t)

	rec := env.do(t, http.MethodGet, "/livez", "", "")
	require.Equal(t, http.StatusOK, rec.Code)
	require.Equal(t, "ok", decodeBody[healthResponse](t, rec).Status)

	rec = env.do(t, http.MethodGet, "/readyz", "", "")
	require.Equal(t, http.StatusOK, rec.Code)

	resp := decodeBody[healthResponse](t, rec)
	require.Equal(t, "ok", resp.Status)
	require.Equal(t, "ok", resp.Checks.Store)
}

func TestBearerToken(t *testing.T) {
	t.Parallel()

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	require.Empty(t, BearerToken(req))

	req.Header.Set("Authorization", "Basic abc123")
	require.Empty(t, BearerToken(req))

	req.Header.Set("Authorization", "Bearer some-token")
	require.Equal(t, "some-token", BearerToken(req))

	req.Header.Set("Authorization", "bearer lower-scheme")
	require.Equal(t, "lower-scheme", BearerToken(req))
}
