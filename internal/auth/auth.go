// Package auth guards the service behind a single operator credential.
// A successful login yields an HS256 token that every other route requires.
package auth

import (
	"context"
	"crypto/subtle"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/metadata"
	"google.golang.org/grpc/status"

	"github.com/miradorstack/churn-triage/internal/utils"
)

const issuer = "churn-triage"

// Claims identifies the logged-in operator.
type Claims struct {
	jwt.RegisteredClaims
	Username string `json:"username"`
}

// Config mirrors the auth section of the service config.
type Config struct {
	Username string
	Password string
	Secret   string
	TTL      time.Duration
	Disabled bool
}

// Authenticator checks credentials and issues or validates tokens.
type Authenticator struct {
	cfg Config
	now func() time.Time
}

// New builds an Authenticator. A secret is required unless auth is disabled.
func New(cfg Config) (*Authenticator, error) {
	if !cfg.Disabled && cfg.Secret == "" {
		return nil, fmt.Errorf("auth requires a signing secret")
	}
	if cfg.TTL <= 0 {
		cfg.TTL = 12 * time.Hour
	}
	return &Authenticator{cfg: cfg, now: time.Now}, nil
}

// Disabled reports whether requests pass without a token.
func (a *Authenticator) Disabled() bool { return a.cfg.Disabled }

// Login verifies the credential pair and returns a signed token with its expiry.
func (a *Authenticator) Login(username, password string) (string, time.Time, error) {
	userOK := subtle.ConstantTimeCompare([]byte(username), []byte(a.cfg.Username)) == 1
	passOK := subtle.ConstantTimeCompare([]byte(password), []byte(a.cfg.Password)) == 1
	if !userOK || !passOK {
		return "", time.Time{}, utils.NewAppError(utils.ErrUnauthorized, "auth.Login", "invalid username or password", nil)
	}

	now := a.now()
	expires := now.Add(a.cfg.TTL)
	claims := Claims{
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    issuer,
			Subject:   username,
			ExpiresAt: jwt.NewNumericDate(expires),
			IssuedAt:  jwt.NewNumericDate(now),
			NotBefore: jwt.NewNumericDate(now),
			ID:        uuid.NewString(),
		},
		Username: username,
	}
	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte(a.cfg.Secret))
	if err != nil {
		return "", time.Time{}, fmt.Errorf("sign token: %w", err)
	}
	return signed, expires, nil
}

// Validate parses a token and checks signature, expiry, and issuer.
func (a *Authenticator) Validate(token string) (*Claims, error) {
	claims := &Claims{}
	parsed, err := jwt.ParseWithClaims(token, claims, func(t *jwt.Token) (interface{}, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", t.Header["alg"])
		}
		return []byte(a.cfg.Secret), nil
	},
		jwt.WithIssuer(issuer),
		jwt.WithTimeFunc(a.now),
	)
	if err != nil {
		return nil, utils.NewAppError(utils.ErrUnauthorized, "auth.Validate", "invalid token", err)
	}
	if !parsed.Valid {
		return nil, utils.NewAppError(utils.ErrUnauthorized, "auth.Validate", "invalid token", nil)
	}
	return claims, nil
}

type contextKey string

const claimsContextKey contextKey = "claims"

// ContextWithClaims attaches claims to ctx.
func ContextWithClaims(ctx context.Context, claims *Claims) context.Context {
	return context.WithValue(ctx, claimsContextKey, claims)
}

// ClaimsFromContext returns the claims attached by the middleware.
func ClaimsFromContext(ctx context.Context) (*Claims, bool) {
	claims, ok := ctx.Value(claimsContextKey).(*Claims)
	return claims, ok
}

func bearer(header string) string {
	header = strings.TrimSpace(header)
	if len(header) > 7 && strings.EqualFold(header[:7], "Bearer ") {
		return strings.TrimSpace(header[7:])
	}
	return header
}

// Middleware rejects HTTP requests lacking a valid bearer token.
// onError writes the rejection so callers keep one error format.
func (a *Authenticator) Middleware(onError func(http.ResponseWriter, *http.Request, error)) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if a.cfg.Disabled {
				next.ServeHTTP(w, r)
				return
			}
			token := bearer(r.Header.Get("Authorization"))
			if token == "" {
				onError(w, r, utils.NewAppError(utils.ErrUnauthorized, "auth.Middleware", "missing bearer token", nil))
				return
			}
			claims, err := a.Validate(token)
			if err != nil {
				onError(w, r, err)
				return
			}
			next.ServeHTTP(w, r.WithContext(ContextWithClaims(r.Context(), claims)))
		})
	}
}

// UnaryInterceptor applies the same check to gRPC calls, skipping the listed methods.
func (a *Authenticator) UnaryInterceptor(skipMethods ...string) grpc.UnaryServerInterceptor {
	skip := make(map[string]struct{}, len(skipMethods))
	for _, m := range skipMethods {
		skip[m] = struct{}{}
	}
	return func(ctx context.Context, req interface{}, info *grpc.UnaryServerInfo, handler grpc.UnaryHandler) (interface{}, error) {
		if a.cfg.Disabled {
			return handler(ctx, req)
		}
		if _, ok := skip[info.FullMethod]; ok {
			return handler(ctx, req)
		}
		md, ok := metadata.FromIncomingContext(ctx)
		if !ok || len(md.Get("authorization")) == 0 {
			return nil, status.Error(codes.Unauthenticated, "missing authorization header")
		}
		claims, err := a.Validate(bearer(md.Get("authorization")[0]))
		if err != nil {
			return nil, status.Errorf(codes.Unauthenticated, "invalid token: %v", err)
		}
		return handler(ContextWithClaims(ctx, claims), req)
	}
}
