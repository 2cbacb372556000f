package http

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/harwood-dev/deskgate/internal/panel/service"
	"github.com/harwood-dev/deskgate/internal/panel/store/drivers/sqlite"
	"github.com/harwood-dev/deskgate/pkg/cryptox"
	"github.com/harwood-dev/deskgate/pkg/jwtx"
	"github.com/stretchr/testify/require"
)

type apiFixture struct {
	router  *Router
	store   *sqlite.Store
	account *service.AccountService
	nextIP  int
}

func newAPIFixture(t *testing.T) *apiFixture {
	t.Helper()

	s, err := sqlite.NewStore(":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { _ = s.Close() })
	require.NoError(t, s.ApplyMigrations())

	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	hasher := cryptox.NewHasher("pepper")
	issuer, err := jwtx.NewIssuer([]byte("0123456789abcdef0123456789abcdef"), "deskgate-test")
	require.NoError(t, err)

	audit := &service.AuditService{Store: s, Logger: logger}
	sessions := &service.SessionService{Store: s, Audit: audit}
	account := &service.AccountService{Store: s, Hasher: hasher, Audit: audit, Logger: logger}

	router := NewRouter(issuer, "test", s, logger)
	router.LoginService = &service.LoginService{
		Store:    s,
		Hasher:   hasher,
		Tokens:   issuer,
		TokenTTL: time.Hour,
		Policy:   service.DefaultLockoutPolicy(),
		Audit:    audit,
		Sessions: sessions,
	}
	router.AccountService = account
	router.SessionService = sessions
	router.SettingsService = &service.SettingsService{Store: s, Audit: audit}
	router.AuditService = audit
	router.ApplyRoutes()

	return &apiFixture{router: router, store: s, account: account}
}

// do sends one request with a fresh client IP so per-IP rate limits never
// interfere with the scenario under test.
func (f *apiFixture) do(t *testing.T, method, path, token string, body any) *httptest.ResponseRecorder {
	t.Helper()

	var reader io.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		require.NoError(t, err)
		reader = bytes.NewReader(raw)
	}

	req := httptest.NewRequest(method, path, reader)
	f.nextIP++
	req.Header.Set("X-Forwarded-For", fmt.Sprintf("198.51.100.%d", f.nextIP%250+1))
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}

	rec := httptest.NewRecorder()
	f.router.ServeHTTP(rec, req)
	return rec
}

func (f *apiFixture) register(t *testing.T, username, password, role string) {
	t.Helper()
	_, err := f.account.Register(context.Background(), service.RegisterInput{
		Username: username,
		Email:    username + "@example.com",
		Password: password,
		Role:     role,
	})
	require.NoError(t, err)
}

func decodeBody(t *testing.T, rec *httptest.ResponseRecorder) map[string]any {
	t.Helper()
	var body map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	return body
}

func TestLoginEndpoint(t *testing.T) {
	f := newAPIFixture(t)
	f.register(t, "alice", "super-secret-pw", "user")

	rec := f.do(t, http.MethodPost, "/v1/auth/login", "", map[string]string{
		"username": "alice",
		"password": "super-secret-pw",
	})
	require.Equal(t, http.StatusOK, rec.Code)

	body := decodeBody(t, rec)
	require.Equal(t, "bearer", body["token_type"])
	require.EqualValues(t, 3600, body["expires_in"])
	token, _ := body["access_token"].(string)
	require.NotEmpty(t, token)

	// The issued token authenticates /auth/me.
	rec = f.do(t, http.MethodGet, "/v1/auth/me", token, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	me := decodeBody(t, rec)
	require.Equal(t, "alice", me["username"])
	require.Equal(t, "user", me["role"])
}

func TestLoginEndpointRejections(t *testing.T) {
	f := newAPIFixture(t)
	f.register(t, "bob", "super-secret-pw", "user")

	t.Run("wrong password", func(t *testing.T) {
		rec := f.do(t, http.MethodPost, "/v1/auth/login", "", map[string]string{
			"username": "bob",
			"password": "nope",
		})
		require.Equal(t, http.StatusUnauthorized, rec.Code)
		require.Equal(t, ErrorCodeInvalidCredentials, decodeBody(t, rec)["error"])
	})

	t.Run("unknown user reads the same as wrong password", func(t *testing.T) {
		rec := f.do(t, http.MethodPost, "/v1/auth/login", "", map[string]string{
			"username": "nobody",
			"password": "nope",
		})
		require.Equal(t, http.StatusUnauthorized, rec.Code)
		require.Equal(t, ErrorCodeInvalidCredentials, decodeBody(t, rec)["error"])
	})

	t.Run("missing fields", func(t *testing.T) {
		rec := f.do(t, http.MethodPost, "/v1/auth/login", "", map[string]string{
			"username": "bob",
		})
		require.Equal(t, http.StatusBadRequest, rec.Code)
	})
}

func TestLoginEndpointLockout(t *testing.T) {
	f := newAPIFixture(t)
	f.register(t, "carol", "super-secret-pw", "user")

	for i := 0; i < 5; i++ {
		rec := f.do(t, http.MethodPost, "/v1/auth/login", "", map[string]string{
			"username": "carol",
			"password": "wrong",
		})
		require.Equal(t, http.StatusUnauthorized, rec.Code)
	}

	rec := f.do(t, http.MethodPost, "/v1/auth/login", "", map[string]string{
		"username": "carol",
		"password": "super-secret-pw",
	})
	require.Equal(t, http.StatusLocked, rec.Code)
	require.Equal(t, ErrorCodeAccountLocked, decodeBody(t, rec)["error"])
}

func TestAuthMeRequiresToken(t *testing.T) {
	f := newAPIFixture(t)

	rec := f.do(t, http.MethodGet, "/v1/auth/me", "", nil)
	require.Equal(t, http.StatusUnauthorized, rec.Code)

	rec = f.do(t, http.MethodGet, "/v1/auth/me", "not-a-token", nil)
	require.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestRegisterRequiresAdmin(t *testing.T) {
	f := newAPIFixture(t)
	f.register(t, "plain", "super-secret-pw", "user")
	f.register(t, "root", "super-secret-pw", "admin")

	login := func(username string) string {
		rec := f.do(t, http.MethodPost, "/v1/auth/login", "", map[string]string{
			"username": username,
			"password": "super-secret-pw",
		})
		require.Equal(t, http.StatusOK, rec.Code)
		return decodeBody(t, rec)["access_token"].(string)
	}

	newUser := map[string]string{
		"username": "newbie",
		"email":    "newbie@example.com",
		"password": "super-secret-pw",
	}

	rec := f.do(t, http.MethodPost, "/v1/auth/register", login("plain"), newUser)
	require.Equal(t, http.StatusForbidden, rec.Code)

	rec = f.do(t, http.MethodPost, "/v1/auth/register", login("root"), newUser)
	require.Equal(t, http.StatusCreated, rec.Code)

	// Duplicate usernames conflict.
	rec = f.do(t, http.MethodPost, "/v1/auth/register", login("root"), newUser)
	require.Equal(t, http.StatusConflict, rec.Code)
}

func TestLoginRateLimit(t *testing.T) {
	f := newAPIFixture(t)

	body := map[string]string{"username": "nobody", "password": "x"}
	var last int
	for i := 0; i < 6; i++ {
		req := httptest.NewRequest(http.MethodPost, "/v1/auth/login", bytes.NewReader(mustJSON(t, body)))
		req.Header.Set("X-Forwarded-For", "203.0.113.7")
		rec := httptest.NewRecorder()
		f.router.ServeHTTP(rec, req)
		last = rec.Code
	}
	require.Equal(t, http.StatusTooManyRequests, last)
}

func mustJSON(t *testing.T, v any) []byte {
	t.Helper()
	raw, err := json.Marshal(v)
	require.NoError(t, err)
	return raw
}
