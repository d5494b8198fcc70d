package models

import "time"

// CalendarEvent is a single normalized event of a frame calendar.
// It is rebuilt on every fetch and never persisted.
type CalendarEvent struct {
	ID          string    `json:"id,omitempty"`
	Start       time.Time `json:"start"`
	End         time.Time `json:"end"`
	Summary     string    `json:"summary"`
	Description string    `json:"description"`
	Location    string    `json:"location"`
}

// IsActiveAt reports whether t falls inside [Start, End], both ends inclusive
func (e CalendarEvent) IsActiveAt(t time.Time) bool {
	return !t.Before(e.Start) && !t.After(e.End)
}

// ActiveEventNotice is published when the active event of a calendar changes
type ActiveEventNotice struct {
	Type      string         `json:"type"`
	UniqueID  string         `json:"unique_id"`
	FrameID   string         `json:"frame_id"`
	Active    bool           `json:"active"`
	Event     *CalendarEvent `json:"event,omitempty"`
	CheckedAt time.Time      `json:"checked_at"`
}

// RefreshRequest asks for an on-demand refresh of one calendar or of every
// calendar of an entry
type RefreshRequest struct {
	UniqueID string `json:"unique_id,omitempty"`
	EntryID  string `json:"entry_id,omitempty"`
}
