package v1

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt/v5"
	"github.com/rs/zerolog"

	"github.com/adanyl0v/go-planner/internal/graph"
	"github.com/adanyl0v/go-planner/internal/models"
	"github.com/adanyl0v/go-planner/internal/scheduler"
	"github.com/adanyl0v/go-planner/internal/services"
)

const (
	testUserID      = "01920000-0000-7000-8000-000000000001"
	testWorkspaceID = "01920000-0000-7000-8000-0000000000aa"
	testTaskA       = "01920000-0000-7000-8000-00000000000a"
	testTaskB       = "01920000-0000-7000-8000-00000000000b"
)

// Fakes embed the service interfaces as nil, so calling a method a fake
// does not override panics.
type fakeAuth struct {
	services.AuthService
	registered  []services.RegisterParams
	refreshed   []services.RefreshParams
	loggedOut   []string
	registerErr error
	loginErr    error
	refreshErr  error
}

// ParseJWTToken accepts "valid", reports "expired" as expired and
// rejects anything else.
func (f *fakeAuth) ParseJWTToken(token string) (*jwt.RegisteredClaims, error) {
	switch token {
	case "valid":
		return &jwt.RegisteredClaims{Subject: "session-1"}, nil
	case "expired":
		return nil, fmt.Errorf("token has invalid claims: %w", jwt.ErrTokenExpired)
	}
	return nil, jwt.ErrTokenMalformed
}

func testLoginResult(weeklyCapacity float64) *services.LoginResult {
	now := time.Now()
	return &services.LoginResult{
		UserID:                testUserID,
		SessionID:             "session-1",
		WeeklyCapacityHours:   weeklyCapacity,
		AccessToken:           "valid",
		AccessTokenExpiresAt:  now.Add(15 * time.Minute),
		RefreshToken:          "rotated",
		RefreshTokenExpiresAt: now.Add(720 * time.Hour),
	}
}

func (f *fakeAuth) Register(_ context.Context, params services.RegisterParams) (*services.LoginResult, error) {
	f.registered = append(f.registered, params)
	if f.registerErr != nil {
		return nil, f.registerErr
	}
	capacity := float64(models.DefaultWeeklyCapacityHours)
	if params.WeeklyCapacityHours != nil {
		capacity = *params.WeeklyCapacityHours
	}
	return testLoginResult(capacity), nil
}

func (f *fakeAuth) Login(context.Context, services.LoginParams) (*services.LoginResult, error) {
	if f.loginErr != nil {
		return nil, f.loginErr
	}
	return testLoginResult(models.DefaultWeeklyCapacityHours), nil
}

func (f *fakeAuth) Refresh(_ context.Context, params services.RefreshParams) (*services.LoginResult, error) {
	f.refreshed = append(f.refreshed, params)
	if f.refreshErr != nil {
		return nil, f.refreshErr
	}
	return testLoginResult(models.DefaultWeeklyCapacityHours), nil
}

func (f *fakeAuth) Logout(_ context.Context, userID string) error {
	f.loggedOut = append(f.loggedOut, userID)
	return nil
}

type fakeSessions struct {
	services.SessionService
	fingerprint string
	expiresAt   time.Time
}

func (f fakeSessions) GetSessionByID(_ context.Context, id string) (*models.Session, error) {
	expiresAt := f.expiresAt
	if expiresAt.IsZero() {
		expiresAt = time.Now().Add(time.Hour)
	}
	return &models.Session{ID: id, UserID: testUserID, Fingerprint: f.fingerprint, ExpiresAt: expiresAt}, nil
}

type fakeWorkspaces struct {
	services.WorkspaceService
	role models.Role
}

func (f fakeWorkspaces) RoleOf(context.Context, string, string) (models.Role, error) {
	if f.role == "" {
		return "", services.ErrNoAccess
	}
	return f.role, nil
}

type fakeTasks struct {
	services.TaskService
	tasks []*models.Task
}

func (f fakeTasks) ListTasksStartingBetween(_ context.Context, _ string, from, to time.Time, withUnscheduled bool) ([]*models.Task, error) {
	var out []*models.Task
	for _, t := range f.tasks {
		switch {
		case t.StartDate == nil && withUnscheduled:
			out = append(out, t)
		case t.StartDate != nil && !t.StartDate.Before(from) && !t.StartDate.After(to):
			out = append(out, t)
		}
	}
	return out, nil
}

type fakeDependencies struct {
	services.DependencyService
	err error
}

func (f fakeDependencies) AddDependency(_ context.Context, ws, taskID, dependsOn string) (*models.Dependency, error) {
	if f.err != nil {
		return nil, f.err
	}
	return &models.Dependency{ID: "edge-1", WorkspaceID: ws, TaskID: taskID, DependsOnTaskID: dependsOn, Type: models.DependencyFinishToStart}, nil
}

type fakeScheduler struct {
	calls []scheduler.Request
	res   *scheduler.Result
	err   error
}

func (f *fakeScheduler) AutoSchedule(_ context.Context, req scheduler.Request) (*scheduler.Result, error) {
	f.calls = append(f.calls, req)
	if f.err != nil {
		return nil, f.err
	}
	return f.res, nil
}

type testServer struct {
	router    *gin.Engine
	auth      *fakeAuth
	scheduler *fakeScheduler
}

func testFingerprint(t *testing.T) string {
	t.Helper()
	c, _ := gin.CreateTestContext(httptest.NewRecorder())
	c.Request = httptest.NewRequest(http.MethodGet, "/", nil)
	fp, err := generateFingerprint(c)
	if err != nil {
		t.Fatal(err)
	}
	return fp
}

func newTestServer(t *testing.T, role models.Role, s Services) *testServer {
	t.Helper()
	gin.SetMode(gin.TestMode)

	sched, _ := s.Scheduler.(*fakeScheduler)
	if sched == nil {
		sched = &fakeScheduler{}
		s.Scheduler = sched
	}
	auth, _ := s.Auth.(*fakeAuth)
	if auth == nil {
		auth = &fakeAuth{}
		s.Auth = auth
	}
	if s.Sessions == nil {
		s.Sessions = fakeSessions{fingerprint: testFingerprint(t)}
	}
	s.Workspaces = fakeWorkspaces{role: role}

	router := gin.New()
	RegisterRoutes(router, New(zerolog.Nop(), s))
	return &testServer{router: router, auth: auth, scheduler: sched}
}

func (s *testServer) do(method, path string, body any) *httptest.ResponseRecorder {
	var buf bytes.Buffer
	if body != nil {
		_ = json.NewEncoder(&buf).Encode(body)
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Authorization", "Bearer valid")
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	s.router.ServeHTTP(rec, req)
	return rec
}

func decode[T any](t *testing.T, rec *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	if err := json.Unmarshal(rec.Body.Bytes(), &v); err != nil {
		t.Fatalf("decode %q: %v", rec.Body.String(), err)
	}
	return v
}

func assertError(t *testing.T, rec *httptest.ResponseRecorder, status int, reason string) {
	t.Helper()
	if rec.Code != status {
		t.Fatalf("expected status %d, got %d: %s", status, rec.Code, rec.Body.String())
	}
	if got := decode[errorResponse](t, rec).Reason; got != reason {
		t.Errorf("expected reason %q, got %q", reason, got)
	}
}

var schedulePath = fmt.Sprintf("/api/v1/workspaces/%s/schedule/auto", testWorkspaceID)

func TestAutoSchedule_OK(t *testing.T) {
	mon := time.Date(2025, 3, 3, 0, 0, 0, 0, time.UTC)
	sched := &fakeScheduler{res: &scheduler.Result{
		WorkspaceID: testWorkspaceID,
		Strategy:    scheduler.Balanced,
		StartDate:   mon,
		EndDate:     mon.AddDate(0, 0, 4),
		DryRun:      true,
		Scheduled:   []scheduler.Placement{{TaskID: testTaskA, AssigneeID: testUserID, Date: mon, LastDay: mon, Hours: 8}},
		Skipped:     []scheduler.Skip{{TaskID: testTaskB, Reason: scheduler.SkipNoAssignee}},
	}}
	srv := newTestServer(t, models.RoleMember, Services{Scheduler: sched})

	rec := srv.do(http.MethodPost, schedulePath+"?dry_run=true", gin.H{
		"start_date": "2025-03-03",
		"end_date":   "2025-03-07",
		"strategy":   "balanced",
	})

	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rec.Code, rec.Body.String())
	}
	if len(sched.calls) != 1 {
		t.Fatalf("expected one scheduler call, got %d", len(sched.calls))
	}
	req := sched.calls[0]
	if req.WorkspaceID != testWorkspaceID || !req.DryRun || req.Strategy != scheduler.Balanced {
		t.Errorf("unexpected request: %+v", req)
	}
	if !req.StartDate.Equal(mon) {
		t.Errorf("expected start %s, got %s", mon, req.StartDate)
	}

	body := decode[autoScheduleResponse](t, rec)
	if len(body.Scheduled) != 1 || body.Scheduled[0].Date != "2025-03-03" {
		t.Errorf("unexpected placements: %+v", body.Scheduled)
	}
	if len(body.Skipped) != 1 || body.Skipped[0].Reason != scheduler.SkipNoAssignee {
		t.Errorf("unexpected skips: %+v", body.Skipped)
	}
}

func TestAutoSchedule_InvalidWindow(t *testing.T) {
	sched := &fakeScheduler{err: fmt.Errorf("%w: start is after end", scheduler.ErrInvalidWindow)}
	srv := newTestServer(t, models.RoleOwner, Services{Scheduler: sched})

	rec := srv.do(http.MethodPost, schedulePath, gin.H{"start_date": "2025-03-07", "end_date": "2025-03-03"})

	assertError(t, rec, http.StatusBadRequest, "INVALID_WINDOW")
}

func TestAutoSchedule_MalformedDate(t *testing.T) {
	srv := newTestServer(t, models.RoleOwner, Services{})

	rec := srv.do(http.MethodPost, schedulePath, gin.H{"start_date": "03/03/2025", "end_date": "2025-03-07"})

	assertError(t, rec, http.StatusBadRequest, "INVALID_WINDOW")
	if len(srv.scheduler.calls) != 0 {
		t.Error("expected the scheduler not to be called")
	}
}

func TestAutoSchedule_UnknownStrategy(t *testing.T) {
	srv := newTestServer(t, models.RoleOwner, Services{})

	rec := srv.do(http.MethodPost, schedulePath, gin.H{
		"start_date": "2025-03-03",
		"end_date":   "2025-03-07",
		"strategy":   "fastest",
	})

	assertError(t, rec, http.StatusBadRequest, "INVALID_STRATEGY")
}

func TestAutoSchedule_ViewerIsReadOnly(t *testing.T) {
	srv := newTestServer(t, models.RoleViewer, Services{})

	rec := srv.do(http.MethodPost, schedulePath, gin.H{"start_date": "2025-03-03", "end_date": "2025-03-07"})

	assertError(t, rec, http.StatusForbidden, reasonReadOnly)
	if len(srv.scheduler.calls) != 0 {
		t.Error("expected the scheduler not to be called")
	}
}

func TestWorkspace_NonMember(t *testing.T) {
	srv := newTestServer(t, "", Services{})

	rec := srv.do(http.MethodPost, schedulePath, gin.H{"start_date": "2025-03-03", "end_date": "2025-03-07"})

	assertError(t, rec, http.StatusForbidden, reasonNoAccess)
}

func TestAuthMiddleware_RejectsMissingAndInvalidTokens(t *testing.T) {
	srv := newTestServer(t, models.RoleOwner, Services{})

	req := httptest.NewRequest(http.MethodPost, schedulePath, nil)
	rec := httptest.NewRecorder()
	srv.router.ServeHTTP(rec, req)
	if rec.Code != http.StatusUnauthorized {
		t.Errorf("expected 401 without a header, got %d", rec.Code)
	}

	req = httptest.NewRequest(http.MethodPost, schedulePath, nil)
	req.Header.Set("Authorization", "Bearer forged")
	rec = httptest.NewRecorder()
	srv.router.ServeHTTP(rec, req)
	if rec.Code != http.StatusUnauthorized {
		t.Errorf("expected 401 with a bad token, got %d", rec.Code)
	}
}

func TestAddDependency_Cycle(t *testing.T) {
	cycle := &graph.GraphError{Kind: graph.ErrCircularDependency, Msg: "a -> b -> a"}
	srv := newTestServer(t, models.RoleMember, Services{Dependencies: fakeDependencies{err: cycle}})

	path := fmt.Sprintf("/api/v1/workspaces/%s/tasks/%s/dependencies", testWorkspaceID, testTaskA)
	rec := srv.do(http.MethodPost, path, gin.H{"depends_on_task_id": testTaskB})

	assertError(t, rec, http.StatusConflict, "CIRCULAR_DEPENDENCY")
	if got := decode[errorResponse](t, rec).Error; got != cycle.Error() {
		t.Errorf("expected the cycle path in the message, got %q", got)
	}
}

func TestAddDependency_Created(t *testing.T) {
	srv := newTestServer(t, models.RoleMember, Services{Dependencies: fakeDependencies{}})

	path := fmt.Sprintf("/api/v1/workspaces/%s/tasks/%s/dependencies", testWorkspaceID, testTaskA)
	rec := srv.do(http.MethodPost, path, gin.H{"depends_on_task_id": testTaskB})

	if rec.Code != http.StatusCreated {
		t.Fatalf("expected 201, got %d: %s", rec.Code, rec.Body.String())
	}
	body := decode[dependencyResponse](t, rec)
	if body.TaskID != testTaskA || body.DependsOnTaskID != testTaskB || body.Type != models.DependencyFinishToStart {
		t.Errorf("unexpected dependency: %+v", body)
	}
}

func TestWeekPlan(t *testing.T) {
	mon := time.Date(2025, 3, 3, 0, 0, 0, 0, time.UTC)
	wed := mon.AddDate(0, 0, 2)
	tasks := []*models.Task{
		{ID: testTaskA, Priority: models.PriorityHigh, Status: models.StatusPlanned, StartDate: &wed},
		{ID: testTaskB, Priority: models.PriorityLow, Status: models.StatusBacklog},
	}
	srv := newTestServer(t, models.RoleViewer, Services{Tasks: fakeTasks{tasks: tasks}})

	path := fmt.Sprintf("/api/v1/workspaces/%s/planning/week?date=2025-03-06&include_unscheduled=true", testWorkspaceID)
	rec := srv.do(http.MethodGet, path, nil)

	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rec.Code, rec.Body.String())
	}
	body := decode[planResponse](t, rec)
	if body.From != "2025-03-03" || body.To != "2025-03-09" || len(body.Days) != 7 {
		t.Fatalf("unexpected week: %s..%s with %d days", body.From, body.To, len(body.Days))
	}
	if len(body.Days[2].Tasks) != 1 || body.Days[2].Tasks[0].ID != testTaskA {
		t.Errorf("expected %s on wednesday, got %+v", testTaskA, body.Days[2].Tasks)
	}
	if len(body.Unscheduled) != 1 || body.Unscheduled[0].ID != testTaskB {
		t.Errorf("expected %s in the unscheduled lane, got %+v", testTaskB, body.Unscheduled)
	}
}
