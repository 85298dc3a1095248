package http_test

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gofiber/fiber/v2"

	handler "github.com/samirrijal/pintfinder/internal/adapters/http"
	"github.com/samirrijal/pintfinder/internal/core/domain"
	"github.com/samirrijal/pintfinder/internal/core/usecases"
	"github.com/samirrijal/pintfinder/internal/surface"
)

// ---- Mock gateways ----

type mockBackend struct {
	requestFn func(ctx context.Context, origin domain.Coordinate, prefs domain.Preferences) (*domain.RouteResponse, error)
}

func (m *mockBackend) RequestRoute(ctx context.Context, origin domain.Coordinate, prefs domain.Preferences) (*domain.RouteResponse, error) {
	if m.requestFn != nil {
		return m.requestFn(ctx, origin, prefs)
	}
	return &domain.RouteResponse{}, nil
}

type mockFeed struct {
	fetchFn func(ctx context.Context, at domain.Coordinate, month, category string) ([]domain.CrimeIncident, error)
}

func (m *mockFeed) FetchIncidents(ctx context.Context, at domain.Coordinate, month, category string) ([]domain.CrimeIncident, error) {
	if m.fetchFn != nil {
		return m.fetchFn(ctx, at, month, category)
	}
	return nil, nil
}

type mockResolver struct {
	resolveFn func(ctx context.Context, ref string) (string, error)
}

func (m *mockResolver) ResolvePhotoURL(ctx context.Context, ref string) (string, error) {
	if m.resolveFn != nil {
		return m.resolveFn(ctx, ref)
	}
	return "", errors.New("no photo")
}

// ---- Test helpers ----

const testView = "view-1"

type testEnv struct {
	app     *fiber.App
	hub     *surface.Hub
	deps    *handler.Dependencies
	backend *mockBackend
	feed    *mockFeed
	photos  *mockResolver
}

func newEnv(t *testing.T) *testEnv {
	t.Helper()
	env := &testEnv{
		hub:     surface.NewHub(),
		backend: &mockBackend{},
		feed:    &mockFeed{},
		photos:  &mockResolver{},
	}
	center := domain.Coordinate{Lng: -0.5658080564214817, Lat: 51.42583195427641}
	opts := domain.MapOptions{Style: "mapbox://styles/mapbox/streets-v11", Zoom: 15}

	photoSvc := usecases.NewPhotoService(env.photos, nil, 0)
	crimeSvc := usecases.NewCrimeService(env.feed, nil, usecases.CrimeDefaults{})
	routes := usecases.NewRouteRenderer(photoSvc, usecases.DefaultRouteStyle())
	sessions := usecases.NewSessionService(
		&surface.Factory{Views: env.hub, Publisher: env.hub, Options: opts},
		usecases.FormOptions{MaxRadiusKm: 8},
		center,
		routes,
		nil,
	)
	planner := usecases.NewPlanner(sessions, env.backend, crimeSvc, routes,
		usecases.NewCrimeOverlayRenderer(usecases.DefaultCrimeStyle()), usecases.PlannerOptions{})

	env.deps = &handler.Dependencies{
		Sessions: sessions,
		Planner:  planner,
		Crimes:   crimeSvc,
		Photos:   photoSvc,
		Views:    env.hub,
		Ops:      env.hub,
		Map: handler.MapConfig{
			Style:  opts.Style,
			Center: center,
			Zoom:   opts.Zoom,
		},
	}
	env.app = fiber.New(fiber.Config{DisableStartupMessage: true})
	handler.SetupRoutes(env.app, env.deps)
	t.Cleanup(func() { sessions.CloseAll(context.Background()) })
	return env
}

func (e *testEnv) do(t *testing.T, method, path, body string) (int, []byte) {
	t.Helper()
	var r io.Reader
	if body != "" {
		r = strings.NewReader(body)
	}
	req := httptest.NewRequest(method, path, r)
	if body != "" {
		req.Header.Set("Content-Type", "application/json")
	}
	resp, err := e.app.Test(req, -1)
	if err != nil {
		t.Fatal(err)
	}
	defer resp.Body.Close()
	return resp.StatusCode, readBody(t, resp.Body)
}

// openSession attaches the test view and opens a session on it.
func (e *testEnv) openSession(t *testing.T) string {
	t.Helper()
	t.Cleanup(e.hub.Attach(testView))
	status, body := e.do(t, "POST", "/v1/sessions", `{"view":"`+testView+`"}`)
	if status != 201 {
		t.Fatalf("expected 201, got %d: %s", status, body)
	}
	var sess usecases.SessionView
	if err := json.Unmarshal(body, &sess); err != nil {
		t.Fatalf("decode session: %v", err)
	}
	return sess.ID
}

func readBody(t *testing.T, body io.Reader) []byte {
	t.Helper()
	b, err := io.ReadAll(body)
	if err != nil {
		t.Fatalf("read body: %v", err)
	}
	return b
}

func decodeError(t *testing.T, body []byte) handler.APIError {
	t.Helper()
	var apiErr handler.APIError
	if err := json.Unmarshal(body, &apiErr); err != nil {
		t.Fatalf("decode error body: %v (%s)", err, body)
	}
	return apiErr
}

func scenarioRoute() *domain.RouteResponse {
	return &domain.RouteResponse{Segments: []domain.RouteSegment{{
		Start: domain.RouteStop{Name: "Rose & Crown", Location: domain.Coordinate{Lng: -0.5660, Lat: 51.4260}},
		End:   domain.RouteStop{Name: "White Hart", Location: domain.Coordinate{Lng: -0.5700, Lat: 51.4300}},
		Path:  []domain.Coordinate{{Lng: -0.5670, Lat: 51.4270}},
	}}}
}

// ---- Health ----

func TestHealth(t *testing.T) {
	env := newEnv(t)
	status, body := env.do(t, "GET", "/v1/health", "")
	if status != 200 {
		t.Fatalf("expected 200, got %d", status)
	}
	if !strings.Contains(string(body), `"healthy"`) {
		t.Errorf("unexpected body: %s", body)
	}
}

func TestReady_NothingConfigured(t *testing.T) {
	env := newEnv(t)
	status, body := env.do(t, "GET", "/v1/ready", "")
	if status != 200 {
		t.Fatalf("expected 200, got %d: %s", status, body)
	}
}

// ---- Sessions ----

func TestCreateSession_ViewNotAttached(t *testing.T) {
	env := newEnv(t)
	status, body := env.do(t, "POST", "/v1/sessions", `{"view":"nobody"}`)
	if status != 409 {
		t.Fatalf("expected 409, got %d: %s", status, body)
	}
	if e := decodeError(t, body); e.Code != "conflict" {
		t.Errorf("code = %q, want conflict", e.Code)
	}
}

func TestCreateSession_MissingView(t *testing.T) {
	env := newEnv(t)
	status, _ := env.do(t, "POST", "/v1/sessions", `{"center":{"lng":0,"lat":0}}`)
	if status != 400 {
		t.Fatalf("expected 400, got %d", status)
	}
}

func TestCreateSession_InvalidCenter(t *testing.T) {
	env := newEnv(t)
	t.Cleanup(env.hub.Attach(testView))
	status, _ := env.do(t, "POST", "/v1/sessions", `{"view":"view-1","center":{"lng":200,"lat":0}}`)
	if status != 400 {
		t.Fatalf("expected 400, got %d", status)
	}
}

func TestGetSession_NotFound(t *testing.T) {
	env := newEnv(t)
	status, body := env.do(t, "GET", "/v1/sessions/missing", "")
	if status != 404 {
		t.Fatalf("expected 404, got %d", status)
	}
	if e := decodeError(t, body); e.Code != "not_found" {
		t.Errorf("code = %q, want not_found", e.Code)
	}
}

func TestSessionFlow_ClickSubmitScene(t *testing.T) {
	env := newEnv(t)
	var gotOrigin domain.Coordinate
	env.backend.requestFn = func(_ context.Context, origin domain.Coordinate, _ domain.Preferences) (*domain.RouteResponse, error) {
		gotOrigin = origin
		return scenarioRoute(), nil
	}
	id := env.openSession(t)

	status, body := env.do(t, "POST", "/v1/sessions/"+id+"/click", `{"lng":-0.5658,"lat":51.4258}`)
	if status != 200 {
		t.Fatalf("click: expected 200, got %d: %s", status, body)
	}
	var form domain.FormSnapshot
	if err := json.Unmarshal(body, &form); err != nil {
		t.Fatal(err)
	}
	if form.State != domain.FormAwaitingInput || !form.Visible {
		t.Fatalf("form = %+v, want visible AWAITING_INPUT", form)
	}

	status, body = env.do(t, "PUT", "/v1/sessions/"+id+"/preferences",
		`{"search_radius_km":2,"pub_quality":"HIGH","walk_tolerance":"LOW","warrior_mode":true}`)
	if status != 200 {
		t.Fatalf("preferences: expected 200, got %d: %s", status, body)
	}

	status, body = env.do(t, "POST", "/v1/sessions/"+id+"/submit", "")
	if status != 200 {
		t.Fatalf("submit: expected 200, got %d: %s", status, body)
	}
	var plan domain.PlanResult
	if err := json.Unmarshal(body, &plan); err != nil {
		t.Fatal(err)
	}
	if gotOrigin != (domain.Coordinate{Lng: -0.5658, Lat: 51.4258}) {
		t.Errorf("backend origin = %v", gotOrigin)
	}
	if plan.Render.Generation != 1 {
		t.Errorf("generation = %d, want 1", plan.Render.Generation)
	}
	if len(plan.Render.LayerIDs) != 1 || plan.Render.LayerIDs[0] != "route-1-0" {
		t.Errorf("layers = %v, want [route-1-0]", plan.Render.LayerIDs)
	}

	status, body = env.do(t, "GET", "/v1/sessions/"+id+"/scene", "")
	if status != 200 {
		t.Fatalf("scene: expected 200, got %d", status)
	}
	var scene domain.Scene
	if err := json.Unmarshal(body, &scene); err != nil {
		t.Fatal(err)
	}
	names := map[string]bool{}
	for _, m := range scene.Markers {
		if m.Popup != nil {
			names[m.Popup.Title] = true
		}
	}
	if !names["Rose & Crown"] || !names["White Hart"] {
		t.Errorf("scene markers missing pubs: %+v", scene.Markers)
	}
	if scene.Bounds == nil {
		t.Error("expected camera bounds after render")
	}

	status, body = env.do(t, "GET", "/v1/sessions/"+id, "")
	if status != 200 || !strings.Contains(string(body), `"SUBMITTED"`) {
		t.Errorf("get session: %d %s", status, body)
	}

	status, _ = env.do(t, "DELETE", "/v1/sessions/"+id, "")
	if status != 204 {
		t.Fatalf("delete: expected 204, got %d", status)
	}
	status, _ = env.do(t, "GET", "/v1/sessions/"+id, "")
	if status != 404 {
		t.Errorf("after delete: expected 404, got %d", status)
	}
}

func TestClick_InvalidCoordinate(t *testing.T) {
	env := newEnv(t)
	id := env.openSession(t)
	status, _ := env.do(t, "POST", "/v1/sessions/"+id+"/click", `{"lng":-0.5,"lat":95}`)
	if status != 400 {
		t.Fatalf("expected 400, got %d", status)
	}
}

func TestPreferences_BeforeClick(t *testing.T) {
	env := newEnv(t)
	id := env.openSession(t)
	status, _ := env.do(t, "PUT", "/v1/sessions/"+id+"/preferences",
		`{"search_radius_km":2,"pub_quality":"HIGH","walk_tolerance":"LOW"}`)
	if status != 409 {
		t.Fatalf("expected 409, got %d", status)
	}
}

func TestPreferences_Invalid(t *testing.T) {
	env := newEnv(t)
	id := env.openSession(t)
	env.do(t, "POST", "/v1/sessions/"+id+"/click", `{"lng":-0.5658,"lat":51.4258}`)

	cases := []string{
		`{"search_radius_km":2,"pub_quality":"MEDIUM","walk_tolerance":"LOW"}`,
		`{"search_radius_km":50,"pub_quality":"HIGH","walk_tolerance":"LOW"}`,
		`{"search_radius_km":-1,"pub_quality":"HIGH","walk_tolerance":"LOW"}`,
	}
	for _, body := range cases {
		status, resp := env.do(t, "PUT", "/v1/sessions/"+id+"/preferences", body)
		if status != 400 {
			t.Errorf("%s: expected 400, got %d: %s", body, status, resp)
		}
	}
}

func TestSubmit_NoOrigin(t *testing.T) {
	env := newEnv(t)
	id := env.openSession(t)
	status, _ := env.do(t, "POST", "/v1/sessions/"+id+"/submit", "")
	if status != 409 {
		t.Fatalf("expected 409, got %d", status)
	}
}

func TestSubmit_RouteErrors(t *testing.T) {
	tests := []struct {
		name   string
		err    error
		status int
	}{
		{"timeout", &domain.RouteError{Kind: domain.RouteErrTimeout, Err: context.DeadlineExceeded}, 504},
		{"backend", &domain.RouteError{Kind: domain.RouteErrBackend, Status: 500, Err: errors.New("boom")}, 502},
		{"network", &domain.RouteError{Kind: domain.RouteErrNetwork, Err: errors.New("refused")}, 502},
		{"parse", &domain.RouteError{Kind: domain.RouteErrParse, Err: errors.New("bad json")}, 502},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			env := newEnv(t)
			env.backend.requestFn = func(context.Context, domain.Coordinate, domain.Preferences) (*domain.RouteResponse, error) {
				return nil, tt.err
			}
			id := env.openSession(t)
			env.do(t, "POST", "/v1/sessions/"+id+"/click", `{"lng":-0.5658,"lat":51.4258}`)

			status, body := env.do(t, "POST", "/v1/sessions/"+id+"/submit", "")
			if status != tt.status {
				t.Fatalf("expected %d, got %d: %s", tt.status, status, body)
			}

			_, body = env.do(t, "GET", "/v1/sessions/"+id, "")
			if !strings.Contains(string(body), `"FAILED"`) {
				t.Errorf("form not FAILED after route error: %s", body)
			}

			status, body = env.do(t, "POST", "/v1/sessions/"+id+"/retry", "")
			if status != 200 || !strings.Contains(string(body), `"AWAITING_INPUT"`) {
				t.Errorf("retry: %d %s", status, body)
			}
		})
	}
}

func TestRetry_NotFailed(t *testing.T) {
	env := newEnv(t)
	id := env.openSession(t)
	status, _ := env.do(t, "POST", "/v1/sessions/"+id+"/retry", "")
	if status != 409 {
		t.Fatalf("expected 409, got %d", status)
	}
}

// ---- Crimes ----

func TestCrimes_Paginated(t *testing.T) {
	env := newEnv(t)
	var gotMonth, gotCategory string
	env.feed.fetchFn = func(_ context.Context, _ domain.Coordinate, month, category string) ([]domain.CrimeIncident, error) {
		gotMonth, gotCategory = month, category
		return []domain.CrimeIncident{
			{ID: 1, Category: "burglary", Location: domain.Coordinate{Lng: -0.56, Lat: 51.42}},
			{ID: 2, Category: "robbery", Location: domain.Coordinate{Lng: -0.57, Lat: 51.43}},
			{ID: 3, Category: "drugs", Location: domain.Coordinate{Lng: -0.58, Lat: 51.44}},
		}, nil
	}

	req := httptest.NewRequest("GET", "/v1/crimes?lat=51.4258&lng=-0.5658&limit=2", nil)
	resp, err := env.app.Test(req, -1)
	if err != nil {
		t.Fatal(err)
	}
	if resp.StatusCode != 200 {
		t.Fatalf("expected 200, got %d", resp.StatusCode)
	}

	var result struct {
		Data       []domain.CrimeIncident `json:"data"`
		Pagination handler.Pagination     `json:"pagination"`
	}
	if err := json.Unmarshal(readBody(t, resp.Body), &result); err != nil {
		t.Fatal(err)
	}
	if len(result.Data) != 2 || result.Pagination.Total != 3 {
		t.Errorf("got %d incidents of %d, want 2 of 3", len(result.Data), result.Pagination.Total)
	}
	if gotMonth != "2024-01" || gotCategory != "all-crime" {
		t.Errorf("feed queried with %q/%q, want defaults", gotMonth, gotCategory)
	}

	link := resp.Header.Get("Link")
	if !strings.Contains(link, `rel="next"`) || !strings.Contains(link, "lat=51.4258") {
		t.Errorf("Link header = %q", link)
	}
}

func TestCrimes_FeedDown(t *testing.T) {
	env := newEnv(t)
	env.feed.fetchFn = func(context.Context, domain.Coordinate, string, string) ([]domain.CrimeIncident, error) {
		return nil, domain.ErrCrimeFeed
	}
	status, body := env.do(t, "GET", "/v1/crimes?lat=51.4258&lng=-0.5658", "")
	if status != 200 {
		t.Fatalf("expected 200, got %d", status)
	}
	if !strings.Contains(string(body), `"total":0`) {
		t.Errorf("expected empty result, got %s", body)
	}
}

func TestCrimes_MissingParams(t *testing.T) {
	env := newEnv(t)
	for _, path := range []string{"/v1/crimes", "/v1/crimes?lat=51.4", "/v1/crimes?lat=abc&lng=0", "/v1/crimes?lat=95&lng=0"} {
		status, _ := env.do(t, "GET", path, "")
		if status != 400 {
			t.Errorf("%s: expected 400, got %d", path, status)
		}
	}
}

// ---- Photos ----

func TestPhoto_Redirect(t *testing.T) {
	env := newEnv(t)
	env.photos.resolveFn = func(_ context.Context, ref string) (string, error) {
		return "https://lh3.example.com/" + ref + ".jpg", nil
	}
	req := httptest.NewRequest("GET", "/v1/photos/abc", nil)
	resp, err := env.app.Test(req, -1)
	if err != nil {
		t.Fatal(err)
	}
	if resp.StatusCode != 302 {
		t.Fatalf("expected 302, got %d", resp.StatusCode)
	}
	if loc := resp.Header.Get("Location"); loc != "https://lh3.example.com/abc.jpg" {
		t.Errorf("Location = %q", loc)
	}
}

func TestPhoto_Unavailable(t *testing.T) {
	env := newEnv(t)
	status, _ := env.do(t, "GET", "/v1/photos/abc", "")
	if status != 502 {
		t.Fatalf("expected 502, got %d", status)
	}
}

// ---- Config, GraphQL, WebSocket ----

func TestMapConfig(t *testing.T) {
	env := newEnv(t)
	env.deps.Map.AccessToken = "pk.test"
	status, body := env.do(t, "GET", "/v1/config/map", "")
	if status != 200 {
		t.Fatalf("expected 200, got %d", status)
	}
	var cfg handler.MapConfig
	if err := json.Unmarshal(body, &cfg); err != nil {
		t.Fatal(err)
	}
	if cfg.AccessToken != "pk.test" || cfg.Zoom != 15 {
		t.Errorf("map config = %+v", cfg)
	}
}

func TestGraphQL_Session(t *testing.T) {
	env := newEnv(t)
	id := env.openSession(t)
	env.do(t, "POST", "/v1/sessions/"+id+"/click", `{"lng":-0.5658,"lat":51.4258}`)

	query := `{"query":"{ session(id: \"` + id + `\") { id view form { state origin { lng lat } preferences { pub_quality walk_tolerance } } } }"}`
	status, body := env.do(t, "POST", "/graphql", query)
	if status != 200 {
		t.Fatalf("expected 200, got %d", status)
	}

	var result struct {
		Data struct {
			Session struct {
				ID   string `json:"id"`
				View string `json:"view"`
				Form struct {
					State       string             `json:"state"`
					Origin      *domain.Coordinate `json:"origin"`
					Preferences struct {
						PubQuality    string `json:"pub_quality"`
						WalkTolerance string `json:"walk_tolerance"`
					} `json:"preferences"`
				} `json:"form"`
			} `json:"session"`
		} `json:"data"`
		Errors []interface{} `json:"errors"`
	}
	if err := json.Unmarshal(body, &result); err != nil {
		t.Fatal(err)
	}
	if len(result.Errors) > 0 {
		t.Fatalf("graphql errors: %v", result.Errors)
	}
	s := result.Data.Session
	if s.ID != id || s.View != testView || s.Form.State != "AWAITING_INPUT" {
		t.Errorf("session = %+v", s)
	}
	if s.Form.Origin == nil || s.Form.Origin.Lat != 51.4258 {
		t.Errorf("origin = %v", s.Form.Origin)
	}
	if s.Form.Preferences.PubQuality != "HIGH" || s.Form.Preferences.WalkTolerance != "MEDIUM" {
		t.Errorf("preferences = %+v", s.Form.Preferences)
	}
}

func TestGraphQL_Crimes(t *testing.T) {
	env := newEnv(t)
	env.feed.fetchFn = func(context.Context, domain.Coordinate, string, string) ([]domain.CrimeIncident, error) {
		return []domain.CrimeIncident{{ID: 7, Category: "burglary", Location: domain.Coordinate{Lng: -0.56, Lat: 51.42}}}, nil
	}
	status, body := env.do(t, "POST", "/graphql", `{"query":"{ crimes(lat: 51.4258, lng: -0.5658) { id category location { lat } } }"}`)
	if status != 200 {
		t.Fatalf("expected 200, got %d", status)
	}
	if !strings.Contains(string(body), `"category":"burglary"`) {
		t.Errorf("unexpected body: %s", body)
	}
}

func TestWebSocket_RequiresUpgrade(t *testing.T) {
	env := newEnv(t)
	status, _ := env.do(t, "GET", "/ws/views/"+testView, "")
	if status != fiber.StatusUpgradeRequired {
		t.Fatalf("expected 426, got %d", status)
	}
}

func TestResponses_CarryRequestID(t *testing.T) {
	env := newEnv(t)
	req := httptest.NewRequest("GET", "/v1/sessions/missing", nil)
	resp, err := env.app.Test(req, -1)
	if err != nil {
		t.Fatal(err)
	}
	rid := resp.Header.Get(fiber.HeaderXRequestID)
	if rid == "" {
		t.Fatal("missing X-Request-ID header")
	}
	if e := decodeError(t, readBody(t, resp.Body)); e.RequestID != rid {
		t.Errorf("body request_id = %q, header = %q", e.RequestID, rid)
	}
}
