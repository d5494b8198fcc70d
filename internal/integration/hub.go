// Package integration wires config entries to calendar entities and device
// records. A Hub is owned by whichever host embeds the core; it is never a
// process-wide singleton.
package integration

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"

	"github.com/koios/skylight-calendar/internal/calendar"
	"github.com/koios/skylight-calendar/internal/store"
	"github.com/koios/skylight-calendar/pkg/models"
	"go.uber.org/zap"
)

// ErrInvalidEntry is returned when an entry lacks the data needed for setup
var ErrInvalidEntry = errors.New("config entry missing required data")

// ErrCalendarNotFound is returned for an unknown calendar unique id
var ErrCalendarNotFound = errors.New("calendar not found")

type runtime struct {
	entry     *models.ConfigEntry
	calendars []*calendar.FrameCalendar
	devices   []models.Device
}

// Hub keeps the loaded entries and the entities derived from them
type Hub struct {
	source calendar.EventSource
	store  store.Store
	opts   calendar.Options
	logger *zap.Logger

	mu       sync.RWMutex
	runtimes map[string]*runtime
}

// NewHub creates an empty hub
func NewHub(source calendar.EventSource, st store.Store, opts calendar.Options, logger *zap.Logger) *Hub {
	return &Hub{
		source:   source,
		store:    st,
		opts:     opts,
		logger:   logger,
		runtimes: make(map[string]*runtime),
	}
}

// LoadAll sets up every stored entry. Invalid entries are logged and skipped.
func (h *Hub) LoadAll(ctx context.Context) error {
	entries, err := h.store.List(ctx)
	if err != nil {
		return fmt.Errorf("failed to list config entries: %w", err)
	}

	for _, entry := range entries {
		if err := h.Setup(ctx, entry); err != nil {
			h.logger.Error("Skipping config entry", zap.String("entry_id", entry.EntryID), zap.Error(err))
		}
	}

	h.logger.Info("Config entries loaded", zap.Int("entries", h.EntryCount()))
	return nil
}

// Setup registers one device and one calendar per frame of the entry,
// replacing any runtime already loaded for it
func (h *Hub) Setup(_ context.Context, entry *models.ConfigEntry) error {
	if entry == nil {
		return ErrInvalidEntry
	}
	if err := entry.Validate(); err != nil {
		h.logger.Error("Skylight config entry missing required data",
			zap.String("entry_id", entry.EntryID),
			zap.Error(err))
		return fmt.Errorf("%w: %v", ErrInvalidEntry, err)
	}

	rt := &runtime{entry: entry}
	for _, frame := range entry.Data.FrameData {
		rt.calendars = append(rt.calendars,
			calendar.NewFrameCalendar(h.source, entry.EntryID, entry.Data.AuthCode, frame, h.opts, h.logger))
		rt.devices = append(rt.devices, models.Device{
			Identifier:   frame.ID,
			Name:         frame.DisplayName(),
			Manufacturer: "Skylight",
			Model:        "Frame",
			EntryID:      entry.EntryID,
		})
	}

	h.mu.Lock()
	h.runtimes[entry.EntryID] = rt
	h.mu.Unlock()

	h.logger.Info("Config entry set up",
		zap.String("entry_id", entry.EntryID),
		zap.Int("calendars", len(rt.calendars)))
	return nil
}

// Unload drops the entities of an entry and reports whether it was loaded
func (h *Hub) Unload(entryID string) bool {
	h.mu.Lock()
	_, ok := h.runtimes[entryID]
	delete(h.runtimes, entryID)
	h.mu.Unlock()

	if ok {
		h.logger.Info("Config entry unloaded", zap.String("entry_id", entryID))
	}
	return ok
}

// Remove unloads an entry and deletes it from the store
func (h *Hub) Remove(ctx context.Context, entryID string) error {
	h.Unload(entryID)
	return h.store.Delete(ctx, entryID)
}

// Persist saves the entry and (re)loads its entities
func (h *Hub) Persist(ctx context.Context, entry *models.ConfigEntry) error {
	if err := entry.Validate(); err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidEntry, err)
	}
	if err := h.store.Save(ctx, entry); err != nil {
		return fmt.Errorf("failed to save config entry: %w", err)
	}
	return h.Setup(ctx, entry)
}

// Entry returns a loaded entry
func (h *Hub) Entry(entryID string) (*models.ConfigEntry, bool) {
	h.mu.RLock()
	defer h.mu.RUnlock()

	rt, ok := h.runtimes[entryID]
	if !ok {
		return nil, false
	}
	return rt.entry, true
}

// Entries returns the loaded entries ordered by creation
func (h *Hub) Entries() []*models.ConfigEntry {
	h.mu.RLock()
	defer h.mu.RUnlock()

	out := make([]*models.ConfigEntry, 0, len(h.runtimes))
	for _, rt := range h.runtimes {
		out = append(out, rt.entry)
	}
	sort.Slice(out, func(i, j int) bool {
		if !out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].CreatedAt.Before(out[j].CreatedAt)
		}
		return out[i].EntryID < out[j].EntryID
	})
	return out
}

// EntryCount returns the number of loaded entries
func (h *Hub) EntryCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.runtimes)
}

// Calendars returns every loaded calendar ordered by entry then frame
func (h *Hub) Calendars() []*calendar.FrameCalendar {
	var out []*calendar.FrameCalendar
	for _, entry := range h.Entries() {
		out = append(out, h.EntryCalendars(entry.EntryID)...)
	}
	return out
}

// EntryCalendars returns the calendars of one entry
func (h *Hub) EntryCalendars(entryID string) []*calendar.FrameCalendar {
	h.mu.RLock()
	defer h.mu.RUnlock()

	rt, ok := h.runtimes[entryID]
	if !ok {
		return nil
	}
	return append([]*calendar.FrameCalendar(nil), rt.calendars...)
}

// Calendar looks up a calendar by unique id
func (h *Hub) Calendar(uniqueID string) (*calendar.FrameCalendar, error) {
	h.mu.RLock()
	defer h.mu.RUnlock()

	for _, rt := range h.runtimes {
		for _, cal := range rt.calendars {
			if cal.UniqueID() == uniqueID {
				return cal, nil
			}
		}
	}
	return nil, ErrCalendarNotFound
}

// Devices returns the device records of all loaded entries
func (h *Hub) Devices() []models.Device {
	var out []models.Device
	for _, entry := range h.Entries() {
		h.mu.RLock()
		if rt, ok := h.runtimes[entry.EntryID]; ok {
			out = append(out, rt.devices...)
		}
		h.mu.RUnlock()
	}
	return out
}
