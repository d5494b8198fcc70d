package handlers

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/gorilla/mux"
	"github.com/koios/skylight-calendar/internal/calendar"
	"github.com/koios/skylight-calendar/internal/integration"
	"github.com/koios/skylight-calendar/pkg/models"
	"go.uber.org/zap"
)

const icsWindow = 30 * 24 * time.Hour

// Refresher re-fetches a single calendar on demand
type Refresher interface {
	RefreshCalendar(ctx context.Context, uniqueID string) (models.ActiveEventNotice, error)
}

// HealthChecker reports whether a backing service is reachable
type HealthChecker interface {
	IsHealthy(ctx context.Context) bool
}

// CalendarHandler serves calendars, devices and health
type CalendarHandler struct {
	hub       *integration.Hub
	refresher Refresher
	health    HealthChecker
	location  *time.Location
	now       func() time.Time
	logger    *zap.Logger
}

// NewCalendarHandler creates a calendar handler. health may be nil.
func NewCalendarHandler(hub *integration.Hub, refresher Refresher, health HealthChecker, location *time.Location, logger *zap.Logger) *CalendarHandler {
	if location == nil {
		location = time.UTC
	}
	return &CalendarHandler{
		hub:       hub,
		refresher: refresher,
		health:    health,
		location:  location,
		now:       time.Now,
		logger:    logger,
	}
}

type calendarView struct {
	UniqueID    string    `json:"unique_id"`
	Name        string    `json:"name"`
	EntryID     string    `json:"entry_id"`
	FrameID     string    `json:"frame_id"`
	Active      bool      `json:"active"`
	LastChecked time.Time `json:"last_checked,omitempty"`
}

type eventsResponse struct {
	Events []models.CalendarEvent `json:"events"`
	Error  string                 `json:"error,omitempty"`
}

type refreshResponse struct {
	Notice models.ActiveEventNotice `json:"notice"`
	Error  string                   `json:"error,omitempty"`
}

// RegisterRoutes registers the calendar, device and health routes
func (h *CalendarHandler) RegisterRoutes(r *mux.Router) {
	r.HandleFunc("/health", h.handleHealth).Methods(http.MethodGet)
	r.HandleFunc("/devices", h.handleDevices).Methods(http.MethodGet)
	r.HandleFunc("/calendars", h.handleCalendars).Methods(http.MethodGet)
	r.HandleFunc("/calendars/{uid}/events", h.handleEvents).Methods(http.MethodGet)
	r.HandleFunc("/calendars/{uid}/active", h.handleActive).Methods(http.MethodGet)
	r.HandleFunc("/calendars/{uid}/calendar.ics", h.handleICS).Methods(http.MethodGet)
	r.HandleFunc("/calendars/{uid}/refresh", h.handleRefresh).Methods(http.MethodPost)
}

// handleHealth handles GET /health - returns service health status
func (h *CalendarHandler) handleHealth(w http.ResponseWriter, r *http.Request) {
	status := http.StatusOK
	body := map[string]interface{}{
		"status":  "healthy",
		"service": "skylight-calendar",
		"version": "1.0.0",
		"entries": h.hub.EntryCount(),
	}

	if h.health != nil && !h.health.IsHealthy(r.Context()) {
		status = http.StatusServiceUnavailable
		body["status"] = "degraded"
		body["redis"] = "unreachable"
	}

	writeJSON(w, h.logger, status, body)
}

// handleDevices handles GET /devices
func (h *CalendarHandler) handleDevices(w http.ResponseWriter, r *http.Request) {
	devices := h.hub.Devices()
	if devices == nil {
		devices = []models.Device{}
	}
	writeJSON(w, h.logger, http.StatusOK, devices)
}

// handleCalendars handles GET /calendars
func (h *CalendarHandler) handleCalendars(w http.ResponseWriter, r *http.Request) {
	cals := h.hub.Calendars()
	views := make([]calendarView, 0, len(cals))
	for _, cal := range cals {
		_, active := cal.CurrentActiveEvent()
		views = append(views, calendarView{
			UniqueID:    cal.UniqueID(),
			Name:        cal.Name(),
			EntryID:     cal.EntryID(),
			FrameID:     cal.Frame().ID,
			Active:      active,
			LastChecked: cal.LastChecked(),
		})
	}

	writeJSON(w, h.logger, http.StatusOK, views)
	h.logger.Debug("Served calendar list", zap.Int("count", len(views)))
}

// handleEvents handles GET /calendars/{uid}/events?start=&end=.
// Provider failures produce an empty list with an error key, not an HTTP error.
func (h *CalendarHandler) handleEvents(w http.ResponseWriter, r *http.Request) {
	cal, ok := h.lookup(w, r)
	if !ok {
		return
	}

	start, end, err := h.parseWindow(r, 24*time.Hour)
	if err != nil {
		writeError(w, h.logger, http.StatusBadRequest, err.Error())
		return
	}

	events, err := cal.ListEvents(r.Context(), start, end)
	if events == nil {
		events = []models.CalendarEvent{}
	}
	writeJSON(w, h.logger, http.StatusOK, eventsResponse{Events: events, Error: errorKey(err)})
}

// handleActive handles GET /calendars/{uid}/active
func (h *CalendarHandler) handleActive(w http.ResponseWriter, r *http.Request) {
	cal, ok := h.lookup(w, r)
	if !ok {
		return
	}
	writeJSON(w, h.logger, http.StatusOK, cal.Notice())
}

// handleICS handles GET /calendars/{uid}/calendar.ics
func (h *CalendarHandler) handleICS(w http.ResponseWriter, r *http.Request) {
	cal, ok := h.lookup(w, r)
	if !ok {
		return
	}

	start, end, err := h.parseWindow(r, icsWindow)
	if err != nil {
		writeError(w, h.logger, http.StatusBadRequest, err.Error())
		return
	}

	events, err := cal.ListEvents(r.Context(), start, end)
	if err != nil {
		h.logger.Warn("Serving empty ICS export",
			zap.String("unique_id", cal.UniqueID()),
			zap.Error(err))
	}

	w.Header().Set("Content-Type", "text/calendar; charset=utf-8")
	w.Header().Set("Content-Disposition", fmt.Sprintf("inline; filename=%q", cal.UniqueID()+".ics"))
	w.WriteHeader(http.StatusOK)
	if _, err := w.Write([]byte(calendar.WriteICS(cal.Name(), events, h.now()))); err != nil {
		h.logger.Error("Failed to write ICS response", zap.Error(err))
	}
}

// handleRefresh handles POST /calendars/{uid}/refresh
func (h *CalendarHandler) handleRefresh(w http.ResponseWriter, r *http.Request) {
	uid := mux.Vars(r)["uid"]

	notice, err := h.refresher.RefreshCalendar(r.Context(), uid)
	if errors.Is(err, integration.ErrCalendarNotFound) {
		writeError(w, h.logger, http.StatusNotFound, "Calendar not found")
		return
	}
	writeJSON(w, h.logger, http.StatusOK, refreshResponse{Notice: notice, Error: errorKey(err)})
}

func (h *CalendarHandler) lookup(w http.ResponseWriter, r *http.Request) (*calendar.FrameCalendar, bool) {
	cal, err := h.hub.Calendar(mux.Vars(r)["uid"])
	if err != nil {
		writeError(w, h.logger, http.StatusNotFound, "Calendar not found")
		return nil, false
	}
	return cal, true
}

// parseWindow reads start and end query values. A missing start means the
// beginning of today; a missing end means start plus span.
func (h *CalendarHandler) parseWindow(r *http.Request, span time.Duration) (time.Time, time.Time, error) {
	query := r.URL.Query()

	now := h.now().In(h.location)
	start := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, h.location)
	if v := query.Get("start"); v != "" {
		parsed, err := h.parseBound(v)
		if err != nil {
			return time.Time{}, time.Time{}, fmt.Errorf("invalid start: %q", v)
		}
		start = parsed
	}

	end := start.Add(span)
	if v := query.Get("end"); v != "" {
		parsed, err := h.parseBound(v)
		if err != nil {
			return time.Time{}, time.Time{}, fmt.Errorf("invalid end: %q", v)
		}
		end = parsed
	}

	if end.Before(start) {
		return time.Time{}, time.Time{}, fmt.Errorf("end is before start")
	}
	return start, end, nil
}

func (h *CalendarHandler) parseBound(value string) (time.Time, error) {
	if t, err := time.Parse(time.RFC3339, value); err == nil {
		return t, nil
	}
	return time.ParseInLocation("2006-01-02", value, h.location)
}
