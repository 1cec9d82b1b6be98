package v1

import (
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/adanyl0v/go-planner/internal/models"
	"github.com/adanyl0v/go-planner/internal/services"
)

const (
	registerPath = "/api/v1/auth/register"
	loginPath    = "/api/v1/auth/login"
	refreshPath  = "/api/v1/auth/refresh"
	logoutPath   = "/api/v1/auth/logout"
)

func responseCookie(rec *httptest.ResponseRecorder, name string) *http.Cookie {
	for _, c := range rec.Result().Cookies() {
		if c.Name == name {
			return c
		}
	}
	return nil
}

func assertTokenCookies(t *testing.T, rec *httptest.ResponseRecorder) {
	t.Helper()
	if c := responseCookie(rec, accessTokenCookie); c == nil || c.Value != "valid" {
		t.Errorf("expected the access token cookie, got %+v", c)
	}
	c := responseCookie(rec, refreshTokenCookie)
	if c == nil || c.Value != "rotated" || !c.HttpOnly {
		t.Errorf("expected an http-only refresh token cookie, got %+v", c)
	}
}

func TestRegister_WithWeeklyCapacity(t *testing.T) {
	srv := newTestServer(t, "", Services{})

	rec := srv.do(http.MethodPost, registerPath, gin.H{
		"email":                 "ada@example.com",
		"password":              "secret-pass",
		"weekly_capacity_hours": 24,
	})

	if rec.Code != http.StatusCreated {
		t.Fatalf("expected 201, got %d: %s", rec.Code, rec.Body.String())
	}
	if len(srv.auth.registered) != 1 {
		t.Fatalf("expected one register call, got %d", len(srv.auth.registered))
	}
	params := srv.auth.registered[0]
	if params.Email != "ada@example.com" || params.Fingerprint != testFingerprint(t) {
		t.Errorf("unexpected params: %+v", params)
	}
	if params.WeeklyCapacityHours == nil || *params.WeeklyCapacityHours != 24 {
		t.Errorf("expected capacity 24 to be forwarded, got %v", params.WeeklyCapacityHours)
	}

	body := decode[sessionResponse](t, rec)
	if body.UserID != testUserID || body.WeeklyCapacityHours != 24 {
		t.Errorf("unexpected session: %+v", body)
	}
	assertTokenCookies(t, rec)
}

func TestRegister_DefaultCapacity(t *testing.T) {
	srv := newTestServer(t, "", Services{})

	rec := srv.do(http.MethodPost, registerPath, gin.H{"email": "ada@example.com", "password": "secret-pass"})

	if rec.Code != http.StatusCreated {
		t.Fatalf("expected 201, got %d: %s", rec.Code, rec.Body.String())
	}
	if got := srv.auth.registered[0].WeeklyCapacityHours; got != nil {
		t.Errorf("expected no capacity to be forwarded, got %v", *got)
	}
	if got := decode[sessionResponse](t, rec).WeeklyCapacityHours; got != models.DefaultWeeklyCapacityHours {
		t.Errorf("expected the default capacity, got %v", got)
	}
}

func TestRegister_InvalidCapacity(t *testing.T) {
	for _, hours := range []float64{-1, 200} {
		t.Run(fmt.Sprint(hours), func(t *testing.T) {
			srv := newTestServer(t, "", Services{})

			rec := srv.do(http.MethodPost, registerPath, gin.H{
				"email":                 "ada@example.com",
				"password":              "secret-pass",
				"weekly_capacity_hours": hours,
			})

			assertError(t, rec, http.StatusBadRequest, reasonValidation)
			if len(srv.auth.registered) != 0 {
				t.Error("expected the auth service not to be called")
			}
		})
	}
}

func TestRegister_Duplicate(t *testing.T) {
	auth := &fakeAuth{registerErr: services.ErrUserAlreadyExists}
	srv := newTestServer(t, "", Services{Auth: auth})

	rec := srv.do(http.MethodPost, registerPath, gin.H{"email": "ada@example.com", "password": "secret-pass"})

	assertError(t, rec, http.StatusConflict, reasonConflict)
	if responseCookie(rec, accessTokenCookie) != nil {
		t.Error("expected no cookies on a failed register")
	}
}

func TestLogin_OK(t *testing.T) {
	srv := newTestServer(t, "", Services{})

	rec := srv.do(http.MethodPost, loginPath, gin.H{"email": "ada@example.com", "password": "secret-pass"})

	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rec.Code, rec.Body.String())
	}
	body := decode[sessionResponse](t, rec)
	if body.SessionID != "session-1" || !body.RefreshTokenExpiresAt.After(body.AccessTokenExpiresAt) {
		t.Errorf("unexpected session: %+v", body)
	}
	assertTokenCookies(t, rec)
}

func TestLogin_BadCredentials(t *testing.T) {
	for _, err := range []error{services.ErrUserNotFound, services.ErrUserPasswordMismatch} {
		t.Run(err.Error(), func(t *testing.T) {
			srv := newTestServer(t, "", Services{Auth: &fakeAuth{loginErr: err}})

			rec := srv.do(http.MethodPost, loginPath, gin.H{"email": "ada@example.com", "password": "secret-pass"})

			assertError(t, rec, http.StatusUnauthorized, reasonInvalidCredentials)
			if got := decode[errorResponse](t, rec).Error; got != "invalid email or password" {
				t.Errorf("expected one message for both failures, got %q", got)
			}
		})
	}
}

func refreshRequest(token string) *http.Request {
	req := httptest.NewRequest(http.MethodPost, refreshPath, nil)
	if token != "" {
		req.AddCookie(&http.Cookie{Name: refreshTokenCookie, Value: token})
	}
	return req
}

func TestRefresh_OK(t *testing.T) {
	srv := newTestServer(t, "", Services{})

	rec := httptest.NewRecorder()
	srv.router.ServeHTTP(rec, refreshRequest("r1"))

	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rec.Code, rec.Body.String())
	}
	if len(srv.auth.refreshed) != 1 || srv.auth.refreshed[0].RefreshToken != "r1" {
		t.Fatalf("unexpected refresh calls: %+v", srv.auth.refreshed)
	}
	assertTokenCookies(t, rec)
}

func TestRefresh_Failures(t *testing.T) {
	tests := []struct {
		name   string
		cookie string
		err    error
		reason string
	}{
		{name: "missing cookie", reason: reasonSessionNotFound},
		{name: "unknown token", cookie: "r1", err: services.ErrSessionNotFound, reason: reasonSessionNotFound},
		{name: "expired", cookie: "r1", err: services.ErrSessionExpired, reason: reasonSessionExpired},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			srv := newTestServer(t, "", Services{Auth: &fakeAuth{refreshErr: tt.err}})

			rec := httptest.NewRecorder()
			srv.router.ServeHTTP(rec, refreshRequest(tt.cookie))

			assertError(t, rec, http.StatusUnauthorized, tt.reason)
		})
	}
}

func TestAuthMiddleware_RotatesExpiredAccessToken(t *testing.T) {
	srv := newTestServer(t, models.RoleViewer, Services{Tasks: fakeTasks{}})

	path := fmt.Sprintf("/api/v1/workspaces/%s/planning/week?date=2025-03-06", testWorkspaceID)
	req := httptest.NewRequest(http.MethodGet, path, nil)
	req.Header.Set("Authorization", "Bearer expired")
	req.AddCookie(&http.Cookie{Name: refreshTokenCookie, Value: "r1"})
	rec := httptest.NewRecorder()
	srv.router.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rec.Code, rec.Body.String())
	}
	if len(srv.auth.refreshed) != 1 {
		t.Fatalf("expected one rotation, got %d", len(srv.auth.refreshed))
	}
	// The body must be the plan alone, with the rotated tokens in cookies.
	if body := decode[planResponse](t, rec); body.From != "2025-03-03" {
		t.Errorf("unexpected plan: %+v", body)
	}
	assertTokenCookies(t, rec)
}

func TestAuthMiddleware_ExpiredAccessTokenWithoutCookie(t *testing.T) {
	srv := newTestServer(t, models.RoleViewer, Services{})

	path := fmt.Sprintf("/api/v1/workspaces/%s/planning/week", testWorkspaceID)
	req := httptest.NewRequest(http.MethodGet, path, nil)
	req.Header.Set("Authorization", "Bearer expired")
	rec := httptest.NewRecorder()
	srv.router.ServeHTTP(rec, req)

	assertError(t, rec, http.StatusUnauthorized, reasonSessionExpired)
}

func TestAuthMiddleware_RejectsExpiredSession(t *testing.T) {
	sessions := fakeSessions{fingerprint: testFingerprint(t), expiresAt: time.Now().Add(-time.Minute)}
	srv := newTestServer(t, models.RoleViewer, Services{Sessions: sessions})

	rec := srv.do(http.MethodGet, fmt.Sprintf("/api/v1/workspaces/%s/planning/week", testWorkspaceID), nil)

	assertError(t, rec, http.StatusUnauthorized, reasonSessionExpired)
}

func TestLogout(t *testing.T) {
	srv := newTestServer(t, "", Services{})

	rec := srv.do(http.MethodPost, logoutPath, nil)

	if rec.Code != http.StatusNoContent {
		t.Fatalf("expected 204, got %d: %s", rec.Code, rec.Body.String())
	}
	if len(srv.auth.loggedOut) != 1 || srv.auth.loggedOut[0] != testUserID {
		t.Errorf("expected %s to be logged out, got %v", testUserID, srv.auth.loggedOut)
	}
	if c := responseCookie(rec, accessTokenCookie); c == nil || c.MaxAge >= 0 {
		t.Errorf("expected the access token cookie to be cleared, got %+v", c)
	}
}
