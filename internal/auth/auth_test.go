package auth

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/metadata"
	"google.golang.org/grpc/status"

	"github.com/miradorstack/churn-triage/internal/utils"
)

func newTestAuthenticator(t *testing.T) *Authenticator {
	t.Helper()
	a, err := New(Config{Username: "admin", Password: "1234", Secret: "test-secret", TTL: time.Hour})
	require.NoError(t, err)
	return a
}

func TestNewRequiresSecret(t *testing.T) {
	_, err := New(Config{Username: "admin", Password: "1234"})
	assert.Error(t, err)

	a, err := New(Config{Disabled: true})
	require.NoError(t, err)
	assert.True(t, a.Disabled())
}

func TestLoginAndValidate(t *testing.T) {
	a := newTestAuthenticator(t)

	token, expires, err := a.Login("admin", "1234")
	require.NoError(t, err)
	assert.NotEmpty(t, token)
	assert.WithinDuration(t, time.Now().Add(time.Hour), expires, 5*time.Second)

	claims, err := a.Validate(token)
	require.NoError(t, err)
	assert.Equal(t, "admin", claims.Username)
	assert.Equal(t, "admin", claims.Subject)
}

func TestLoginRejectsBadCredentials(t *testing.T) {
	a := newTestAuthenticator(t)

	for _, tc := range []struct{ user, pass string }{
		{"admin", "wrong"},
		{"root", "1234"},
		{"", ""},
	} {
		_, _, err := a.Login(tc.user, tc.pass)
		assert.True(t, errors.Is(err, utils.ErrUnauthorized), "%s/%s", tc.user, tc.pass)
	}
}

func TestValidateRejectsExpiredAndForeignTokens(t *testing.T) {
	a := newTestAuthenticator(t)
	token, _, err := a.Login("admin", "1234")
	require.NoError(t, err)

	a.now = func() time.Time { return time.Now().Add(2 * time.Hour) }
	_, err = a.Validate(token)
	assert.ErrorIs(t, err, utils.ErrUnauthorized)

	other, err := New(Config{Username: "admin", Password: "1234", Secret: "another"})
	require.NoError(t, err)
	_, err = other.Validate(token)
	assert.ErrorIs(t, err, utils.ErrUnauthorized)
}

func TestMiddleware(t *testing.T) {
	a := newTestAuthenticator(t)
	token, _, err := a.Login("admin", "1234")
	require.NoError(t, err)

	var seen string
	next := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		claims, ok := ClaimsFromContext(r.Context())
		if ok {
			seen = claims.Username
		}
		w.WriteHeader(http.StatusNoContent)
	})
	onError := func(w http.ResponseWriter, _ *http.Request, err error) {
		assert.ErrorIs(t, err, utils.ErrUnauthorized)
		w.WriteHeader(http.StatusUnauthorized)
	}
	h := a.Middleware(onError)(next)

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/thresholds", nil))
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	req := httptest.NewRequest(http.MethodGet, "/api/thresholds", nil)
	req.Header.Set("Authorization", "Bearer "+token)
	rec = httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusNoContent, rec.Code)
	assert.Equal(t, "admin", seen)
}

func TestUnaryInterceptor(t *testing.T) {
	a := newTestAuthenticator(t)
	token, _, err := a.Login("admin", "1234")
	require.NoError(t, err)

	intercept := a.UnaryInterceptor("/grpc.health.v1.Health/Check")
	handler := func(ctx context.Context, req interface{}) (interface{}, error) { return "ok", nil }

	_, err = intercept(context.Background(), nil, &grpc.UnaryServerInfo{FullMethod: "/churntriage.v1.ChurnTriage/GetRun"}, handler)
	assert.Equal(t, codes.Unauthenticated, status.Code(err))

	out, err := intercept(context.Background(), nil, &grpc.UnaryServerInfo{FullMethod: "/grpc.health.v1.Health/Check"}, handler)
	require.NoError(t, err)
	assert.Equal(t, "ok", out)

	ctx := metadata.NewIncomingContext(context.Background(), metadata.Pairs("authorization", "Bearer "+token))
	out, err = intercept(ctx, nil, &grpc.UnaryServerInfo{FullMethod: "/churntriage.v1.ChurnTriage/GetRun"}, handler)
	require.NoError(t, err)
	assert.Equal(t, "ok", out)
}
