package middleware

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/go-redis/redismock/v8"
	"github.com/roryk/backend/internal/models"
	"github.com/roryk/backend/internal/services"
	"github.com/stretchr/testify/assert"
	"go.uber.org/zap"
)

type stubAuthenticator map[string]*services.Claims

func (s stubAuthenticator) Authenticate(ctx context.Context, token string) (*services.Claims, error) {
	claims, ok := s[token]
	if !ok {
		return nil, services.ErrInvalidToken
	}
	return claims, nil
}

func okHandler(w http.ResponseWriter, r *http.Request) {
	w.WriteHeader(http.StatusOK)
}

func TestAuth(t *testing.T) {
	authenticator := stubAuthenticator{
		"good": {UserID: "acc-1", Username: "alice", Role: models.RoleUser},
	}

	var seen *services.Claims
	handler := Auth(authenticator)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		seen, _ = ClaimsFromContext(r.Context())
		w.WriteHeader(http.StatusOK)
	}))

	tests := []struct {
		name   string
		header string
		want   int
	}{
		{"missing header", "", http.StatusUnauthorized},
		{"wrong scheme", "Basic good", http.StatusUnauthorized},
		{"unknown token", "Bearer bad", http.StatusUnauthorized},
		{"valid token", "Bearer good", http.StatusOK},
		{"lowercase scheme", "bearer good", http.StatusOK},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			seen = nil
			r := httptest.NewRequest(http.MethodGet, "/", nil)
			if tt.header != "" {
				r.Header.Set("Authorization", tt.header)
			}
			w := httptest.NewRecorder()

			handler.ServeHTTP(w, r)

			assert.Equal(t, tt.want, w.Code)
			if tt.want == http.StatusOK {
				if assert.NotNil(t, seen) {
					assert.Equal(t, "acc-1", seen.UserID)
				}
			} else {
				assert.Nil(t, seen)
				assert.Contains(t, w.Body.String(), `"error"`)
			}
		})
	}
}

func TestRequireRole(t *testing.T) {
	handler := RequireRole(models.RoleAdmin, models.RoleSuperadmin)(http.HandlerFunc(okHandler))

	tests := []struct {
		name   string
		claims *services.Claims
		want   int
	}{
		{"no claims", nil, http.StatusUnauthorized},
		{"user", &services.Claims{UserID: "u", Role: models.RoleUser}, http.StatusForbidden},
		{"admin", &services.Claims{UserID: "a", Role: models.RoleAdmin}, http.StatusOK},
		{"superadmin", &services.Claims{UserID: "s", Role: models.RoleSuperadmin}, http.StatusOK},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := httptest.NewRequest(http.MethodGet, "/", nil)
			if tt.claims != nil {
				r = r.WithContext(WithClaims(r.Context(), tt.claims))
			}
			w := httptest.NewRecorder()

			handler.ServeHTTP(w, r)
			assert.Equal(t, tt.want, w.Code)
		})
	}
}

func TestRateLimiter(t *testing.T) {
	redisClient, redisMock := redismock.NewClientMock()
	limiter := NewRateLimiter(redisClient, zap.NewNop())
	handler := limiter.Limit("forgot", 2, 15*time.Minute)(http.HandlerFunc(okHandler))
	key := rateLimitPrefix + "forgot:192.0.2.1"

	redisMock.ExpectIncr(key).SetVal(1)
	redisMock.ExpectExpire(key, 15*time.Minute).SetVal(true)
	redisMock.ExpectIncr(key).SetVal(2)
	redisMock.ExpectIncr(key).SetVal(3)

	codes := make([]int, 0, 3)
	for i := 0; i < 3; i++ {
		r := httptest.NewRequest(http.MethodPost, "/password/forgot", nil)
		r.RemoteAddr = "192.0.2.1:5555"
		w := httptest.NewRecorder()
		handler.ServeHTTP(w, r)
		codes = append(codes, w.Code)

		if i == 2 {
			assert.Equal(t, "0", w.Header().Get("X-RateLimit-Remaining"))
			assert.Equal(t, "900", w.Header().Get("Retry-After"))
		}
	}

	assert.Equal(t, []int{http.StatusOK, http.StatusOK, http.StatusTooManyRequests}, codes)
	assert.NoError(t, redisMock.ExpectationsWereMet())
}

func TestRateLimiter_FailsOpen(t *testing.T) {
	redisClient, redisMock := redismock.NewClientMock()
	limiter := NewRateLimiter(redisClient, zap.NewNop())
	handler := limiter.Limit("reset", 1, time.Minute)(http.HandlerFunc(okHandler))

	redisMock.ExpectIncr(rateLimitPrefix + "reset:192.0.2.1").SetErr(errors.New("connection refused"))

	r := httptest.NewRequest(http.MethodPost, "/", nil)
	r.RemoteAddr = "192.0.2.1:5555"
	w := httptest.NewRecorder()
	handler.ServeHTTP(w, r)
	assert.Equal(t, http.StatusOK, w.Code)

	nilLimiter := NewRateLimiter(nil, zap.NewNop()).Limit("reset", 1, time.Minute)(http.HandlerFunc(okHandler))
	for i := 0; i < 3; i++ {
		w := httptest.NewRecorder()
		nilLimiter.ServeHTTP(w, httptest.NewRequest(http.MethodPost, "/", nil))
		assert.Equal(t, http.StatusOK, w.Code)
	}
}

func TestSecurityHeaders(t *testing.T) {
	w := httptest.NewRecorder()
	SecurityHeaders(http.HandlerFunc(okHandler)).ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/", nil))

	assert.Equal(t, "nosniff", w.Header().Get("X-Content-Type-Options"))
	assert.Equal(t, "DENY", w.Header().Get("X-Frame-Options"))
}
