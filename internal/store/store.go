package store

import (
	"context"
	"errors"

	"github.com/koios/skylight-calendar/pkg/models"
)

// ErrEntryNotFound is returned when no entry has the requested id
var ErrEntryNotFound = errors.New("config entry not found")

// Store persists config entries
type Store interface {
	Save(ctx context.Context, entry *models.ConfigEntry) error
	Get(ctx context.Context, entryID string) (*models.ConfigEntry, error)
	List(ctx context.Context) ([]*models.ConfigEntry, error)
	Delete(ctx context.Context, entryID string) error
}
