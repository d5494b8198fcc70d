package refresh

import (
	"context"

	"github.com/koios/skylight-calendar/pkg/models"
)

// Notifier publishes active-event changes
type Notifier interface {
	PublishActiveEvent(ctx context.Context, notice models.ActiveEventNotice) error
}

// NopNotifier drops every notice
type NopNotifier struct{}

// PublishActiveEvent does nothing
func (NopNotifier) PublishActiveEvent(context.Context, models.ActiveEventNotice) error {
	return nil
}
