package handlers

import (
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/koios/skylight-calendar/internal/skylight"
	"github.com/koios/skylight-calendar/pkg/models"
	"go.uber.org/zap"
)

// entryView is a config entry without its credential
type entryView struct {
	EntryID   string         `json:"entry_id"`
	Title     string         `json:"title"`
	Frames    []models.Frame `json:"frames"`
	CreatedAt time.Time      `json:"created_at"`
}

func newEntryView(entry *models.ConfigEntry) *entryView {
	if entry == nil {
		return nil
	}
	frames := entry.Data.FrameData
	if frames == nil {
		frames = []models.Frame{}
	}
	return &entryView{
		EntryID:   entry.EntryID,
		Title:     entry.Title,
		Frames:    frames,
		CreatedAt: entry.CreatedAt,
	}
}

func writeJSON(w http.ResponseWriter, logger *zap.Logger, status int, body interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(body); err != nil {
		logger.Error("Failed to encode response", zap.Error(err))
	}
}

func writeError(w http.ResponseWriter, logger *zap.Logger, status int, message string) {
	writeJSON(w, logger, status, map[string]string{"error": message})
}

func decodeBody(w http.ResponseWriter, r *http.Request, dst interface{}) error {
	defer r.Body.Close()
	decoder := json.NewDecoder(http.MaxBytesReader(w, r.Body, 1<<20))
	decoder.DisallowUnknownFields()
	return decoder.Decode(dst)
}

// errorKey maps a provider failure to the key reported to clients
func errorKey(err error) string {
	switch {
	case err == nil:
		return ""
	case errors.Is(err, skylight.ErrUnauthorized):
		return "unauthorized"
	case errors.Is(err, skylight.ErrNotFound):
		return "not_found"
	default:
		return "connection_error"
	}
}
