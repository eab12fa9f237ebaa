package auth

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/antibyte/retrocalc/pkg/configuration"

	"github.com/golang-jwt/jwt/v5"
)

// setupConfig initializes a fresh configuration with the given [Auth] values
func setupConfig(t *testing.T, values map[string]string) {
	t.Helper()
	configuration.Reset()
	if err := configuration.Initialize(filepath.Join(t.TempDir(), "settings.cfg")); err != nil {
		t.Fatalf("config init failed: %v", err)
	}
	for k, v := range values {
		configuration.SetString("Auth", k, v)
	}
	t.Cleanup(configuration.Reset)
}

func TestGenerateSessionID(t *testing.T) {
	id1 := generateSessionID()
	id2 := generateSessionID()
	if id1 == "" || id1 == id2 {
		t.Errorf("session IDs should be unique and non-empty: %q %q", id1, id2)
	}
	if len(id1) != 36 {
		t.Errorf("expected UUID format, got %q", id1)
	}
}

func TestTokenRoundTrip(t *testing.T) {
	t.Setenv(SecretEnvVar, "test-secret")

	token, err := GenerateToken("session-123", GuestSubject)
	if err != nil {
		t.Fatalf("Failed to generate token: %v", err)
	}
	claims, err := ValidateToken(token)
	if err != nil {
		t.Fatalf("Failed to validate token: %v", err)
	}
	if claims.SessionID != "session-123" {
		t.Errorf("Expected session ID session-123, got %s", claims.SessionID)
	}
	if !claims.IsGuest() {
		t.Error("expected guest claims")
	}

	// A different secret must reject the token
	t.Setenv(SecretEnvVar, "other-secret")
	if _, err := ValidateToken(token); err == nil {
		t.Error("token signed with another secret should be rejected")
	}
}

func signClaims(t *testing.T, method jwt.SigningMethod, key interface{}, claims Claims) string {
	t.Helper()
	s, err := jwt.NewWithClaims(method, claims).SignedString(key)
	if err != nil {
		t.Fatalf("sign failed: %v", err)
	}
	return s
}

func TestValidateTokenRejects(t *testing.T) {
	t.Setenv(SecretEnvVar, "test-secret")
	secret := []byte("test-secret")
	now := time.Now()

	valid := func() Claims {
		return Claims{
			SessionID: "s1",
			RegisteredClaims: jwt.RegisteredClaims{
				ExpiresAt: jwt.NewNumericDate(now.Add(time.Hour)),
				IssuedAt:  jwt.NewNumericDate(now),
				Issuer:    tokenIssuer,
				Subject:   GuestSubject,
			},
		}
	}

	expired := valid()
	expired.ExpiresAt = jwt.NewNumericDate(now.Add(-time.Hour))
	noExpiry := valid()
	noExpiry.ExpiresAt = nil
	wrongIssuer := valid()
	wrongIssuer.Issuer = "someone-else"
	noSession := valid()
	noSession.SessionID = ""

	tests := []struct {
		name  string
		token string
	}{
		{"empty", ""},
		{"garbage", "invalid.token.here"},
		{"expired", signClaims(t, jwt.SigningMethodHS256, secret, expired)},
		{"no expiry", signClaims(t, jwt.SigningMethodHS256, secret, noExpiry)},
		{"wrong issuer", signClaims(t, jwt.SigningMethodHS256, secret, wrongIssuer)},
		{"no session", signClaims(t, jwt.SigningMethodHS256, secret, noSession)},
		{"none algorithm", signClaims(t, jwt.SigningMethodNone, jwt.UnsafeAllowNoneSignatureType, valid())},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := ValidateToken(tt.token); err == nil {
				t.Errorf("token should be rejected")
			}
		})
	}

	if _, err := ValidateToken(signClaims(t, jwt.SigningMethodHS256, secret, valid())); err != nil {
		t.Errorf("valid token rejected: %v", err)
	}
}

func TestExtractTokenFromRequest(t *testing.T) {
	tests := []struct {
		name     string
		setup    func(r *http.Request)
		expected string
		wantErr  bool
	}{
		{"bearer header", func(r *http.Request) { r.Header.Set("Authorization", "Bearer abc") }, "abc", false},
		{"malformed header", func(r *http.Request) { r.Header.Set("Authorization", "Token abc") }, "", true},
		{"cookie", func(r *http.Request) { r.AddCookie(&http.Cookie{Name: TokenCookie, Value: "cookie-tok"}) }, "cookie-tok", false},
		{"query", func(r *http.Request) { r.URL.RawQuery = "token=query-tok" }, "query-tok", false},
		{"header wins over cookie", func(r *http.Request) {
			r.Header.Set("Authorization", "Bearer header-tok")
			r.AddCookie(&http.Cookie{Name: TokenCookie, Value: "cookie-tok"})
		}, "header-tok", false},
		{"nothing", func(r *http.Request) {}, "", true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, "/ws", nil)
			tt.setup(req)
			got, err := ExtractTokenFromRequest(req)
			if (err != nil) != tt.wantErr {
				t.Fatalf("unexpected error state: %v", err)
			}
			if got != tt.expected {
				t.Errorf("expected %q, got %q", tt.expected, got)
			}
		})
	}
}

func TestRequireToken(t *testing.T) {
	t.Setenv(SecretEnvVar, "test-secret")

	var seen string
	handler := RequireToken(func(w http.ResponseWriter, r *http.Request) {
		seen = SessionIDFromContext(r.Context())
		w.WriteHeader(http.StatusOK)
	})

	rr := httptest.NewRecorder()
	handler(rr, httptest.NewRequest(http.MethodGet, "/api/history", nil))
	if rr.Code != http.StatusUnauthorized {
		t.Errorf("missing token: expected 401, got %d", rr.Code)
	}

	rr = httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/api/history", nil)
	req.Header.Set("Authorization", "Bearer nonsense")
	handler(rr, req)
	if rr.Code != http.StatusUnauthorized {
		t.Errorf("bad token: expected 401, got %d", rr.Code)
	}

	token, _ := GenerateToken("sess-9", GuestSubject)
	rr = httptest.NewRecorder()
	req = httptest.NewRequest(http.MethodGet, "/api/history", nil)
	req.Header.Set("Authorization", "Bearer "+token)
	handler(rr, req)
	if rr.Code != http.StatusOK || seen != "sess-9" {
		t.Errorf("valid token: got %d, session %q", rr.Code, seen)
	}
}

func TestPasswordHashing(t *testing.T) {
	hash, err := HashPassword("s3cret")
	if err != nil {
		t.Fatal(err)
	}
	if !CheckPassword(hash, "s3cret") {
		t.Error("correct password rejected")
	}
	if CheckPassword(hash, "wrong") {
		t.Error("wrong password accepted")
	}
	if CheckPassword("", "") {
		t.Error("empty hash must never match")
	}
}

func decodeResponse(t *testing.T, rr *httptest.ResponseRecorder) TokenResponse {
	t.Helper()
	var resp TokenResponse
	if err := json.NewDecoder(rr.Body).Decode(&resp); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	return resp
}

func TestHandleLogin(t *testing.T) {
	t.Setenv(SecretEnvVar, "test-secret")
	hash, _ := HashPassword("pw")
	setupConfig(t, map[string]string{"username": "ada", "password_hash": hash})

	tests := []struct {
		name   string
		method string
		body   string
		status int
	}{
		{"success", http.MethodPost, `{"username":"ada","password":"pw"}`, http.StatusOK},
		{"wrong password", http.MethodPost, `{"username":"ada","password":"nope"}`, http.StatusUnauthorized},
		{"wrong user", http.MethodPost, `{"username":"bob","password":"pw"}`, http.StatusUnauthorized},
		{"bad json", http.MethodPost, `{`, http.StatusBadRequest},
		{"wrong method", http.MethodGet, ``, http.StatusMethodNotAllowed},
		{"preflight", http.MethodOptions, ``, http.StatusOK},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(tt.method, "/api/login", bytes.NewBufferString(tt.body))
			rr := httptest.NewRecorder()
			HandleLogin(rr, req)
			if rr.Code != tt.status {
				t.Fatalf("expected %d, got %d: %s", tt.status, rr.Code, rr.Body.String())
			}
			if tt.name != "success" {
				return
			}

			resp := decodeResponse(t, rr)
			claims, err := ValidateToken(resp.Token)
			if err != nil {
				t.Fatalf("issued token invalid: %v", err)
			}
			if claims.Subject != "ada" || claims.SessionID != resp.SessionID || claims.IsGuest() {
				t.Errorf("unexpected claims %+v", claims)
			}
			if !strings.Contains(rr.Header().Get("Set-Cookie"), TokenCookie+"=") {
				t.Error("login should set the token cookie")
			}
		})
	}
}

func TestHandleGuestSession(t *testing.T) {
	t.Setenv(SecretEnvVar, "test-secret")
	setupConfig(t, nil)

	rr := httptest.NewRecorder()
	HandleGuestSession(rr, httptest.NewRequest(http.MethodPost, "/api/session", nil))
	if rr.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rr.Code)
	}
	resp := decodeResponse(t, rr)
	if !resp.Success || resp.SessionID == "" {
		t.Errorf("unexpected response %+v", resp)
	}

	configuration.SetString("Auth", "enable_guest_access", "false")
	rr = httptest.NewRecorder()
	HandleGuestSession(rr, httptest.NewRequest(http.MethodPost, "/api/session", nil))
	if rr.Code != http.StatusForbidden {
		t.Errorf("guest access disabled: expected 403, got %d", rr.Code)
	}
}

func TestHandleTokenValidationAndLogout(t *testing.T) {
	t.Setenv(SecretEnvVar, "test-secret")
	token, _ := GenerateToken("sess-v", GuestSubject)

	req := httptest.NewRequest(http.MethodGet, "/api/validate?token="+token, nil)
	rr := httptest.NewRecorder()
	HandleTokenValidation(rr, req)
	if rr.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rr.Code)
	}
	if resp := decodeResponse(t, rr); resp.SessionID != "sess-v" {
		t.Errorf("expected sess-v, got %q", resp.SessionID)
	}

	rr = httptest.NewRecorder()
	HandleTokenValidation(rr, httptest.NewRequest(http.MethodGet, "/api/validate", nil))
	if rr.Code != http.StatusUnauthorized {
		t.Errorf("expected 401 without token, got %d", rr.Code)
	}

	rr = httptest.NewRecorder()
	HandleLogout(rr, httptest.NewRequest(http.MethodPost, "/api/logout", nil))
	if !strings.Contains(rr.Header().Get("Set-Cookie"), "Max-Age=0") {
		t.Errorf("logout should expire the cookie, got %q", rr.Header().Get("Set-Cookie"))
	}
}

func TestGetClientIP(t *testing.T) {
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set("X-Forwarded-For", "10.0.0.1, 10.0.0.2")
	if got := getClientIP(req); got != "10.0.0.1" {
		t.Errorf("expected first forwarded address, got %q", got)
	}
}
