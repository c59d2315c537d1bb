package middleware

import (
	"context"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/leaguehub/roster-service/models"
)

var testSecret = []byte("test-secret")

func signToken(t *testing.T, claims jwt.MapClaims, method jwt.SigningMethod, key interface{}) string {
	t.Helper()
	s, err := jwt.NewWithClaims(method, claims).SignedString(key)
	require.NoError(t, err)
	return s
}

func validClaims(id interface{}, role string) jwt.MapClaims {
	return jwt.MapClaims{
		"user_id": id,
		"role":    role,
		"exp":     time.Now().Add(time.Hour).Unix(),
	}
}

func echoActor(w http.ResponseWriter, r *http.Request) {
	actor, err := ActorFromContext(r.Context())
	if err != nil {
		http.Error(w, err.Error(), http.StatusTeapot)
		return
	}
	_, _ = io.WriteString(w, string(actor.Role))
}

func TestAuthenticate(t *testing.T) {
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	handler := Authenticate(testSecret, logger)(http.HandlerFunc(echoActor))

	expired := validClaims(7, "player")
	expired["exp"] = time.Now().Add(-time.Hour).Unix()

	tests := []struct {
		name       string
		header     string
		wantStatus int
		wantBody   string
	}{
		{"valid player", "Bearer " + signToken(t, validClaims(7, "player"), jwt.SigningMethodHS256, testSecret), http.StatusOK, "player"},
		{"valid captain", "Bearer " + signToken(t, validClaims(3, "captain"), jwt.SigningMethodHS256, testSecret), http.StatusOK, "captain"},
		{"missing header", "", http.StatusUnauthorized, ""},
		{"wrong scheme", "Basic abc", http.StatusUnauthorized, ""},
		{"wrong secret", "Bearer " + signToken(t, validClaims(7, "player"), jwt.SigningMethodHS256, []byte("other")), http.StatusUnauthorized, ""},
		{"expired", "Bearer " + signToken(t, expired, jwt.SigningMethodHS256, testSecret), http.StatusUnauthorized, ""},
		{"unknown role", "Bearer " + signToken(t, validClaims(7, "organizer"), jwt.SigningMethodHS256, testSecret), http.StatusTeapot, ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, "/", nil)
			if tt.header != "" {
				req.Header.Set("Authorization", tt.header)
			}
			rec := httptest.NewRecorder()

			handler.ServeHTTP(rec, req)

			assert.Equal(t, tt.wantStatus, rec.Code)
			if tt.wantBody != "" {
				assert.Equal(t, tt.wantBody, rec.Body.String())
			}
		})
	}
}

func TestAuthenticate_WebsocketQueryToken(t *testing.T) {
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	handler := Authenticate(testSecret, logger)(http.HandlerFunc(echoActor))
	token := signToken(t, validClaims(7, "player"), jwt.SigningMethodHS256, testSecret)

	req := httptest.NewRequest(http.MethodGet, "/ws/players/7?token="+token, nil)
	req.Header.Set("Upgrade", "websocket")
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusOK, rec.Code)

	plain := httptest.NewRequest(http.MethodGet, "/api/v1/formations?token="+token, nil)
	rec = httptest.NewRecorder()
	handler.ServeHTTP(rec, plain)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestRequireAdmin(t *testing.T) {
	ok := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) { w.WriteHeader(http.StatusNoContent) })
	handler := RequireAdmin(ok)

	tests := []struct {
		name   string
		ctx    context.Context
		status int
	}{
		{"admin", WithClaims(context.Background(), validClaims(1.0, "admin")), http.StatusNoContent},
		{"captain", WithClaims(context.Background(), validClaims(1.0, "captain")), http.StatusForbidden},
		{"anonymous", context.Background(), http.StatusUnauthorized},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodPost, "/", nil).WithContext(tt.ctx)
			rec := httptest.NewRecorder()
			handler.ServeHTTP(rec, req)
			assert.Equal(t, tt.status, rec.Code)
		})
	}
}

func TestGetUserIDFromContext(t *testing.T) {
	tests := []struct {
		name    string
		claim   interface{}
		want    int
		wantErr bool
	}{
		{"float", 12.0, 12, false},
		{"string", "12", 12, false},
		{"fraction", 1.5, 0, true},
		{"zero", 0.0, 0, true},
		{"bool", true, 0, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ctx := WithClaims(context.Background(), jwt.MapClaims{"user_id": tt.claim, "role": "player"})
			got, err := GetUserIDFromContext(ctx)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestActorFromContext(t *testing.T) {
	ctx := WithClaims(context.Background(), jwt.MapClaims{"user_id": 4.0, "role": "captain"})

	actor, err := ActorFromContext(ctx)

	require.NoError(t, err)
	assert.Equal(t, models.Actor{ID: 4, Role: models.RoleCaptain}, actor)
}
