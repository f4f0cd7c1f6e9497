package middleware

import (
	"bytes"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	jwt "github.com/golang-jwt/jwt/v5"

	"metagate/observability/logging"
)

const testSecret = "relayer-secret"

func signToken(t *testing.T, claims jwt.MapClaims) string {
	t.Helper()
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := token.SignedString([]byte(testSecret))
	if err != nil {
		t.Fatalf("sign token: %v", err)
	}
	return signed
}

func TestAuthenticatorRequiresScope(t *testing.T) {
	auth := NewAuthenticator(AuthConfig{Enabled: true, HMACSecret: testSecret, Issuer: "metagate"}, nil)
	handler := auth.Middleware("metatx:submit")(okHandler())

	cases := []struct {
		name   string
		header string
		want   int
	}{
		{name: "missing", want: http.StatusUnauthorized},
		{name: "garbage", header: "Bearer nope", want: http.StatusUnauthorized},
		{name: "wrong issuer", header: "Bearer " + signToken(t, jwt.MapClaims{
			"iss": "other", "scope": "metatx:submit", "exp": time.Now().Add(time.Hour).Unix(),
		}), want: http.StatusUnauthorized},
		{name: "missing scope", header: "Bearer " + signToken(t, jwt.MapClaims{
			"iss": "metagate", "scope": "metatx:read", "exp": time.Now().Add(time.Hour).Unix(),
		}), want: http.StatusForbidden},
		{name: "ok", header: "Bearer " + signToken(t, jwt.MapClaims{
			"iss": "metagate", "scope": "metatx:read metatx:submit", "exp": time.Now().Add(time.Hour).Unix(),
		}), want: http.StatusOK},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodPost, "/rpc", nil)
			if tc.header != "" {
				req.Header.Set("Authorization", tc.header)
			}
			res := httptest.NewRecorder()
			handler.ServeHTTP(res, req)
			if res.Code != tc.want {
				t.Fatalf("expected %d, got %d", tc.want, res.Code)
			}
		})
	}
}

func TestAuthenticatorOptionalAttachesScopes(t *testing.T) {
	auth := NewAuthenticator(AuthConfig{Enabled: true, HMACSecret: testSecret}, nil)
	var sawScope bool
	handler := auth.Optional()(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		sawScope = HasScope(r.Context(), "metatx:submit")
		w.WriteHeader(http.StatusOK)
	}))

	res := httptest.NewRecorder()
	handler.ServeHTTP(res, httptest.NewRequest(http.MethodPost, "/rpc", nil))
	if res.Code != http.StatusOK || sawScope {
		t.Fatalf("anonymous request: code %d, scope %v", res.Code, sawScope)
	}

	req := httptest.NewRequest(http.MethodPost, "/rpc", nil)
	req.Header.Set("Authorization", "Bearer "+signToken(t, jwt.MapClaims{
		"scope": []interface{}{"metatx:submit"}, "exp": time.Now().Add(time.Hour).Unix(),
	}))
	res = httptest.NewRecorder()
	handler.ServeHTTP(res, req)
	if res.Code != http.StatusOK || !sawScope {
		t.Fatalf("authenticated request: code %d, scope %v", res.Code, sawScope)
	}

	req = httptest.NewRequest(http.MethodPost, "/rpc", nil)
	req.Header.Set("Authorization", "Bearer invalid")
	res = httptest.NewRecorder()
	handler.ServeHTTP(res, req)
	if res.Code != http.StatusUnauthorized {
		t.Fatalf("invalid token should be rejected, got %d", res.Code)
	}
}

func TestAuthenticatorDisabledPassesThrough(t *testing.T) {
	auth := NewAuthenticator(AuthConfig{}, nil)
	res := httptest.NewRecorder()
	auth.Middleware("metatx:submit")(okHandler()).ServeHTTP(res, httptest.NewRequest(http.MethodPost, "/rpc", nil))
	if res.Code != http.StatusOK {
		t.Fatalf("expected pass-through, got %d", res.Code)
	}
	if auth.Enabled() {
		t.Fatalf("expected disabled authenticator")
	}
}

func TestAuthenticatorMasksRejectedToken(t *testing.T) {
	var buf bytes.Buffer
	logger := slog.New(slog.NewJSONHandler(&buf, nil))
	auth := NewAuthenticator(AuthConfig{Enabled: true, HMACSecret: testSecret}, logger)

	req := httptest.NewRequest(http.MethodPost, "/rpc", nil)
	req.Header.Set("Authorization", "Bearer leaked-token-value")
	res := httptest.NewRecorder()
	auth.Optional()(okHandler()).ServeHTTP(res, req)
	if res.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401, got %d", res.Code)
	}
	out := buf.String()
	if strings.Contains(out, "leaked-token-value") {
		t.Fatalf("raw token reached the log: %s", out)
	}
	if !strings.Contains(out, logging.RedactedValue) {
		t.Fatalf("expected masked authorization in log: %s", out)
	}
}
