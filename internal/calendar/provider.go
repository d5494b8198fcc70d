package calendar

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/koios/skylight-calendar/pkg/models"
	"go.uber.org/zap"
)

// Provider is the calendar capability a host adapter consumes
type Provider interface {
	// ListEvents returns the events between start and end. On failure the
	// slice is empty and the error is one of the skylight sentinels.
	ListEvents(ctx context.Context, start, end time.Time) ([]models.CalendarEvent, error)

	// CurrentActiveEvent returns the active event found by the last
	// successful fetch
	CurrentActiveEvent() (models.CalendarEvent, bool)
}

// EventSource fetches raw events payloads; *skylight.Client satisfies it
type EventSource interface {
	ListEvents(ctx context.Context, credential, frameID string, rangeStart, rangeEnd time.Time, timezone string) (json.RawMessage, error)
}

// Options configures a FrameCalendar
type Options struct {
	Location *time.Location
	Timezone string // sent to the API; empty means UTC
	Now      func() time.Time
}

// FrameCalendar is the calendar entity of one frame
type FrameCalendar struct {
	source     EventSource
	normalizer *Normalizer
	logger     *zap.Logger

	entryID    string
	credential string
	frame      models.Frame
	location   *time.Location
	timezone   string
	now        func() time.Time

	mu        sync.RWMutex
	active    *models.CalendarEvent
	checkedAt time.Time
	// reported is the active event as of the last Refresh
	reported *models.CalendarEvent
}

// NewFrameCalendar creates the calendar entity for a frame of an entry
func NewFrameCalendar(source EventSource, entryID, credential string, frame models.Frame, opts Options, logger *zap.Logger) *FrameCalendar {
	loc := opts.Location
	if loc == nil {
		loc = time.UTC
	}
	now := opts.Now
	if now == nil {
		now = time.Now
	}

	return &FrameCalendar{
		source:     source,
		normalizer: NewNormalizer(loc, logger),
		logger:     logger.With(zap.String("frame_id", frame.ID)),
		entryID:    entryID,
		credential: credential,
		frame:      frame,
		location:   loc,
		timezone:   opts.Timezone,
		now:        now,
	}
}

// UniqueID identifies the calendar entity
func (c *FrameCalendar) UniqueID() string {
	return fmt.Sprintf("skylight_%s_calendar", c.frame.ID)
}

// Name returns the display name of the calendar
func (c *FrameCalendar) Name() string {
	if c.frame.Name != "" {
		return c.frame.Name
	}
	return fmt.Sprintf("Skylight Frame %s Calendar", c.frame.ID)
}

// Frame returns the frame backing this calendar
func (c *FrameCalendar) Frame() models.Frame {
	return c.frame
}

// EntryID returns the config entry that owns this calendar
func (c *FrameCalendar) EntryID() string {
	return c.entryID
}

// ListEvents fetches and normalizes events for the calendar dates covering
// [start, end]. The active event is recomputed from the fetched payload; a
// failed fetch leaves the previous one in place.
func (c *FrameCalendar) ListEvents(ctx context.Context, start, end time.Time) ([]models.CalendarEvent, error) {
	rangeStart := start.In(c.location)
	rangeEnd := end.In(c.location)

	payload, err := c.source.ListEvents(ctx, c.credential, c.frame.ID, rangeStart, rangeEnd, c.timezone)
	if err != nil {
		c.logger.Error("Failed to fetch events", zap.Error(err))
		return []models.CalendarEvent{}, err
	}

	now := c.now()
	result := c.normalizer.Normalize(payload, now)

	c.mu.Lock()
	c.active = result.Active
	c.checkedAt = now
	c.mu.Unlock()

	c.logger.Debug("Events normalized",
		zap.Int("count", len(result.Events)),
		zap.Bool("active", result.Active != nil))

	return result.Events, nil
}

// CurrentActiveEvent returns the active event from the last successful fetch
func (c *FrameCalendar) CurrentActiveEvent() (models.CalendarEvent, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	if c.active == nil {
		return models.CalendarEvent{}, false
	}
	return *c.active, true
}

// LastChecked returns when the active event was last recomputed
func (c *FrameCalendar) LastChecked() time.Time {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.checkedAt
}

// Refresh fetches today's and tomorrow's events. It reports whether the
// active event differs from the one the previous Refresh saw, together with
// the notice for the state it compared. Fetches made through ListEvents in
// between count towards the next comparison.
func (c *FrameCalendar) Refresh(ctx context.Context) (models.ActiveEventNotice, bool, error) {
	today := c.now().In(c.location)
	start := time.Date(today.Year(), today.Month(), today.Day(), 0, 0, 0, 0, c.location)
	if _, err := c.ListEvents(ctx, start, start.AddDate(0, 0, 1)); err != nil {
		return c.Notice(), false, err
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	changed := !sameActive(c.reported, c.active)
	c.reported = c.active
	return c.noticeLocked(), changed, nil
}

// Notice describes the current active-event state of the calendar
func (c *FrameCalendar) Notice() models.ActiveEventNotice {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.noticeLocked()
}

func (c *FrameCalendar) noticeLocked() models.ActiveEventNotice {
	notice := models.ActiveEventNotice{
		Type:      "active_event",
		UniqueID:  c.UniqueID(),
		FrameID:   c.frame.ID,
		Active:    c.active != nil,
		CheckedAt: c.checkedAt,
	}
	if c.active != nil {
		event := *c.active
		notice.Event = &event
	}
	return notice
}

func sameActive(a, b *models.CalendarEvent) bool {
	if a == nil || b == nil {
		return a == b
	}
	return sameEvent(*a, *b)
}

func sameEvent(a, b models.CalendarEvent) bool {
	return a.ID == b.ID &&
		a.Start.Equal(b.Start) &&
		a.End.Equal(b.End) &&
		a.Summary == b.Summary &&
		a.Description == b.Description &&
		a.Location == b.Location
}
