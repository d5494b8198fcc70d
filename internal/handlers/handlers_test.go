package handlers

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/koios/skylight-calendar/internal/calendar"
	"github.com/koios/skylight-calendar/internal/integration"
	"github.com/koios/skylight-calendar/internal/refresh"
	"github.com/koios/skylight-calendar/internal/setup"
	"github.com/koios/skylight-calendar/internal/skylight"
	"github.com/koios/skylight-calendar/internal/store"
	"go.uber.org/zap"
)

const eventsPayload = `{"data":[{"id":"ev1","attributes":{"starts_at":"2024-01-01T09:00:00Z","ends_at":"2024-01-01T10:00:00Z","summary":"Standup","location":"Room 1"}}]}`

// fakeSkylight serves a minimal account with two frames. Frame "2" has no
// events endpoint and answers 404.
func fakeSkylight(t *testing.T) *httptest.Server {
	t.Helper()

	mux := http.NewServeMux()
	mux.HandleFunc("/sessions", func(w http.ResponseWriter, r *http.Request) {
		_ = r.ParseForm()
		w.Header().Set("Content-Type", "application/json")
		if r.PostForm.Get("password") != "secret" {
			w.WriteHeader(http.StatusUnauthorized)
			_, _ = w.Write([]byte(`{"errors":[{"title":"invalid"}]}`))
			return
		}
		_, _ = w.Write([]byte(`{"data":{"id":"42","attributes":{"token":"abc"}}}`))
	})
	mux.HandleFunc("/frames", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"data":[{"id":"1","attributes":{"name":"Kitchen"}},{"id":"2","attributes":{"name":"Office"}}]}`))
	})
	mux.HandleFunc("/frames/1", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	})
	mux.HandleFunc("/frames/2", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	})
	mux.HandleFunc("/frames/1/calendar_events", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(eventsPayload))
	})

	server := httptest.NewServer(mux)
	t.Cleanup(server.Close)
	return server
}

type testAPI struct {
	router http.Handler
	hub    *integration.Hub
}

func setupTestAPI(t *testing.T) *testAPI {
	t.Helper()

	logger := zap.NewNop()
	server := fakeSkylight(t)
	client := skylight.NewClient(server.URL, 2*time.Second, logger)

	st, err := store.NewFileStore(filepath.Join(t.TempDir(), "entries.yaml"), logger)
	if err != nil {
		t.Fatalf("NewFileStore: %v", err)
	}

	now := time.Date(2024, 1, 1, 9, 30, 0, 0, time.UTC)
	hub := integration.NewHub(client, st, calendar.Options{Now: func() time.Time { return now }}, logger)
	flows := setup.NewFlowManager(client, hub, logger)

	pool := refresh.NewWorkerPool(2, 2*time.Second, logger)
	pool.Start()
	t.Cleanup(pool.Stop)
	scheduler, err := refresh.NewScheduler("", pool, hub, nil, logger)
	if err != nil {
		t.Fatalf("NewScheduler: %v", err)
	}

	calendars := NewCalendarHandler(hub, scheduler, nil, time.UTC, logger)
	calendars.now = func() time.Time { return now }

	return &testAPI{
		router: NewRouter(NewFlowHandler(flows, hub, logger), calendars, nil),
		hub:    hub,
	}
}

func (a *testAPI) do(t *testing.T, method, path string, body interface{}) *httptest.ResponseRecorder {
	t.Helper()

	var reader *bytes.Reader
	if body != nil {
		raw, _ := json.Marshal(body)
		reader = bytes.NewReader(raw)
	} else {
		reader = bytes.NewReader(nil)
	}
	req := httptest.NewRequest(method, path, reader)
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	a.router.ServeHTTP(w, req)
	return w
}

func decode(t *testing.T, w *httptest.ResponseRecorder, dst interface{}) {
	t.Helper()
	if err := json.NewDecoder(w.Body).Decode(dst); err != nil {
		t.Fatalf("Failed to decode response %q: %v", w.Body.String(), err)
	}
}

// pair runs the multi-frame flow and returns the created entry id
func (a *testAPI) pair(t *testing.T, frameIDs ...string) string {
	t.Helper()

	w := a.do(t, http.MethodPost, "/flows", nil)
	if w.Code != http.StatusCreated {
		t.Fatalf("POST /flows: status %d", w.Code)
	}
	var started flowResponse
	decode(t, w, &started)

	w = a.do(t, http.MethodPost, "/flows/"+started.FlowID+"/credentials",
		credentialsRequest{Email: "user@example.com", Password: "secret"})
	if w.Code != http.StatusOK {
		t.Fatalf("credentials: status %d body %s", w.Code, w.Body.String())
	}

	w = a.do(t, http.MethodPost, "/flows/"+started.FlowID+"/frames", frameSelectionRequest{FrameIDs: frameIDs})
	if w.Code != http.StatusCreated {
		t.Fatalf("frames: status %d body %s", w.Code, w.Body.String())
	}
	var created flowResponse
	decode(t, w, &created)
	if created.Entry == nil {
		t.Fatal("expected entry in response")
	}
	return created.Entry.EntryID
}

// --- Health endpoint ---

func TestHealth(t *testing.T) {
	api := setupTestAPI(t)

	w := api.do(t, http.MethodGet, "/health", nil)
	if w.Code != http.StatusOK {
		t.Errorf("Expected status 200, got %d", w.Code)
	}

	var resp map[string]interface{}
	decode(t, w, &resp)
	if resp["status"] != "healthy" {
		t.Errorf("Expected status 'healthy', got %v", resp["status"])
	}
	if resp["service"] != "skylight-calendar" {
		t.Errorf("Expected service 'skylight-calendar', got %v", resp["service"])
	}
}

type unhealthy struct{}

func (unhealthy) IsHealthy(context.Context) bool { return false }

func TestHealth_Degraded(t *testing.T) {
	api := setupTestAPI(t)
	h := NewCalendarHandler(api.hub, nil, unhealthy{}, time.UTC, zap.NewNop())

	w := httptest.NewRecorder()
	h.handleHealth(w, httptest.NewRequest(http.MethodGet, "/health", nil))
	if w.Code != http.StatusServiceUnavailable {
		t.Errorf("Expected status 503, got %d", w.Code)
	}

	var resp map[string]interface{}
	decode(t, w, &resp)
	if resp["status"] != "degraded" {
		t.Errorf("Expected status 'degraded', got %v", resp["status"])
	}
}

// --- Setup flow endpoints ---

func TestFlow_Credentials(t *testing.T) {
	api := setupTestAPI(t)

	tests := []struct {
		name       string
		body       interface{}
		wantStatus int
		wantError  string
		wantFrames int
	}{
		{"valid credentials", credentialsRequest{Email: "user@example.com", Password: "secret"}, http.StatusOK, "", 2},
		{"wrong password", credentialsRequest{Email: "user@example.com", Password: "nope"}, http.StatusUnprocessableEntity, setup.ErrorAuthenticationFailed, 0},
		{"invalid email", credentialsRequest{Email: "user", Password: "secret"}, http.StatusUnprocessableEntity, "", 0},
		{"unknown field", map[string]string{"username": "user"}, http.StatusBadRequest, "", 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var started flowResponse
			decode(t, api.do(t, http.MethodPost, "/flows", nil), &started)

			w := api.do(t, http.MethodPost, "/flows/"+started.FlowID+"/credentials", tt.body)
			if w.Code != tt.wantStatus {
				t.Fatalf("status = %d, want %d (body %s)", w.Code, tt.wantStatus, w.Body.String())
			}
			if tt.wantStatus == http.StatusBadRequest {
				return
			}

			var resp flowResponse
			decode(t, w, &resp)
			if resp.Errors["base"] != tt.wantError {
				t.Errorf("Errors[base] = %q, want %q", resp.Errors["base"], tt.wantError)
			}
			if len(resp.Frames) != tt.wantFrames {
				t.Errorf("Frames = %d, want %d", len(resp.Frames), tt.wantFrames)
			}
		})
	}
}

func TestFlow_UnknownFlow(t *testing.T) {
	api := setupTestAPI(t)

	w := api.do(t, http.MethodPost, "/flows/missing/credentials",
		credentialsRequest{Email: "user@example.com", Password: "secret"})
	if w.Code != http.StatusNotFound {
		t.Errorf("status = %d, want 404", w.Code)
	}

	var started flowResponse
	decode(t, api.do(t, http.MethodPost, "/flows", nil), &started)
	w = api.do(t, http.MethodPost, "/flows/"+started.FlowID+"/frames", frameSelectionRequest{FrameIDs: []string{"1"}})
	if w.Code != http.StatusConflict {
		t.Errorf("status = %d, want 409", w.Code)
	}

	if w := api.do(t, http.MethodDelete, "/flows/"+started.FlowID, nil); w.Code != http.StatusNoContent {
		t.Errorf("DELETE flow status = %d", w.Code)
	}
}

func TestFlow_CreatesEntryAndCalendars(t *testing.T) {
	api := setupTestAPI(t)
	entryID := api.pair(t, "2", "1")

	var entries []entryView
	decode(t, api.do(t, http.MethodGet, "/entries", nil), &entries)
	if len(entries) != 1 || entries[0].EntryID != entryID {
		t.Fatalf("entries = %+v", entries)
	}
	if len(entries[0].Frames) != 2 || entries[0].Frames[0].ID != "1" {
		t.Errorf("frames = %+v", entries[0].Frames)
	}

	w := api.do(t, http.MethodGet, "/entries", nil)
	if strings.Contains(w.Body.String(), "auth_code") || strings.Contains(w.Body.String(), "NDI6YWJj") {
		t.Error("entry listing leaks the credential")
	}

	var cals []calendarView
	decode(t, api.do(t, http.MethodGet, "/calendars", nil), &cals)
	if len(cals) != 2 || cals[0].UniqueID != "skylight_1_calendar" || cals[1].Name != "Office" {
		t.Errorf("calendars = %+v", cals)
	}

	var devices []map[string]string
	decode(t, api.do(t, http.MethodGet, "/devices", nil), &devices)
	if len(devices) != 2 || devices[0]["manufacturer"] != "Skylight" || devices[0]["model"] != "Frame" {
		t.Errorf("devices = %+v", devices)
	}
}

func TestFlow_SingleFrame(t *testing.T) {
	api := setupTestAPI(t)

	var started flowResponse
	decode(t, api.do(t, http.MethodPost, "/flows", nil), &started)

	w := api.do(t, http.MethodPost, "/flows/"+started.FlowID+"/frame",
		frameIDRequest{Email: "user@example.com", Password: "secret", FrameID: "1"})
	if w.Code != http.StatusCreated {
		t.Fatalf("status = %d body %s", w.Code, w.Body.String())
	}

	var resp flowResponse
	decode(t, w, &resp)
	if resp.Entry.Title != "Skylight Frame 1" || resp.Entry.Frames[0].Name != "Kitchen" {
		t.Errorf("entry = %+v", resp.Entry)
	}
}

// --- Entry options endpoints ---

func TestEntries_ReselectAddAndDelete(t *testing.T) {
	api := setupTestAPI(t)
	entryID := api.pair(t, "1")

	w := api.do(t, http.MethodPost, "/entries/"+entryID+"/frames", frameIDRequest{FrameID: "2"})
	if w.Code != http.StatusCreated {
		t.Fatalf("add frame status = %d body %s", w.Code, w.Body.String())
	}
	if got := len(api.hub.EntryCalendars(entryID)); got != 2 {
		t.Errorf("calendars after add = %d, want 2", got)
	}

	w = api.do(t, http.MethodPut, "/entries/"+entryID+"/frames", frameSelectionRequest{FrameIDs: []string{"2"}})
	if w.Code != http.StatusCreated {
		t.Fatalf("reselect status = %d body %s", w.Code, w.Body.String())
	}
	cals := api.hub.EntryCalendars(entryID)
	if len(cals) != 1 || cals[0].Frame().ID != "2" {
		t.Errorf("calendars after reselect = %d", len(cals))
	}

	if w := api.do(t, http.MethodPut, "/entries/missing/frames", frameSelectionRequest{FrameIDs: []string{"2"}}); w.Code != http.StatusNotFound {
		t.Errorf("reselect unknown entry status = %d", w.Code)
	}

	if w := api.do(t, http.MethodDelete, "/entries/"+entryID, nil); w.Code != http.StatusNoContent {
		t.Errorf("delete status = %d", w.Code)
	}
	if w := api.do(t, http.MethodDelete, "/entries/"+entryID, nil); w.Code != http.StatusNotFound {
		t.Errorf("second delete status = %d", w.Code)
	}
}

// --- Calendar endpoints ---

func TestCalendar_Events(t *testing.T) {
	api := setupTestAPI(t)
	api.pair(t, "1", "2")

	var resp eventsResponse
	w := api.do(t, http.MethodGet, "/calendars/skylight_1_calendar/events?start=2024-01-01&end=2024-01-02", nil)
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d", w.Code)
	}
	decode(t, w, &resp)
	if len(resp.Events) != 1 || resp.Events[0].Summary != "Standup" || resp.Error != "" {
		t.Errorf("events = %+v", resp)
	}

	// Frame 2 has no events endpoint: show nothing, report the error key
	resp = eventsResponse{}
	decode(t, api.do(t, http.MethodGet, "/calendars/skylight_2_calendar/events", nil), &resp)
	if len(resp.Events) != 0 || resp.Error != "not_found" {
		t.Errorf("events = %+v", resp)
	}

	if w := api.do(t, http.MethodGet, "/calendars/skylight_1_calendar/events?start=bogus", nil); w.Code != http.StatusBadRequest {
		t.Errorf("bad start status = %d", w.Code)
	}
	if w := api.do(t, http.MethodGet, "/calendars/skylight_9_calendar/events", nil); w.Code != http.StatusNotFound {
		t.Errorf("unknown calendar status = %d", w.Code)
	}
}

func TestCalendar_RefreshAndActive(t *testing.T) {
	api := setupTestAPI(t)
	api.pair(t, "1")

	var refreshed refreshResponse
	decode(t, api.do(t, http.MethodPost, "/calendars/skylight_1_calendar/refresh", nil), &refreshed)
	if !refreshed.Notice.Active || refreshed.Notice.Event == nil || refreshed.Notice.Event.Location != "Room 1" {
		t.Errorf("refresh = %+v", refreshed)
	}

	var active map[string]interface{}
	decode(t, api.do(t, http.MethodGet, "/calendars/skylight_1_calendar/active", nil), &active)
	if active["active"] != true || active["unique_id"] != "skylight_1_calendar" {
		t.Errorf("active = %+v", active)
	}

	if w := api.do(t, http.MethodPost, "/calendars/skylight_9_calendar/refresh", nil); w.Code != http.StatusNotFound {
		t.Errorf("unknown calendar refresh status = %d", w.Code)
	}
}

func TestCalendar_ICS(t *testing.T) {
	api := setupTestAPI(t)
	api.pair(t, "1")

	w := api.do(t, http.MethodGet, "/calendars/skylight_1_calendar/calendar.ics", nil)
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d", w.Code)
	}
	if ct := w.Header().Get("Content-Type"); !strings.HasPrefix(ct, "text/calendar") {
		t.Errorf("Content-Type = %q", ct)
	}
	body := w.Body.String()
	for _, want := range []string{"BEGIN:VCALENDAR", "SUMMARY:Standup", "X-WR-CALNAME:Kitchen"} {
		if !strings.Contains(body, want) {
			t.Errorf("ICS missing %q", want)
		}
	}
}

func TestCORSPreflight(t *testing.T) {
	api := setupTestAPI(t)

	req := httptest.NewRequest(http.MethodOptions, "/calendars", nil)
	req.Header.Set("Origin", "https://example.com")
	req.Header.Set("Access-Control-Request-Method", http.MethodGet)
	w := httptest.NewRecorder()
	api.router.ServeHTTP(w, req)

	if got := w.Header().Get("Access-Control-Allow-Origin"); got != "*" {
		t.Errorf("Access-Control-Allow-Origin = %q", got)
	}
}
