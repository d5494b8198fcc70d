package calendar

import (
	"crypto/sha256"
	"encoding/hex"
	"time"

	ical "github.com/arran4/golang-ical"

	"github.com/koios/skylight-calendar/pkg/models"
)

const _productID = "-//skylight-calendar//EN"

// WriteICS serializes events as an iCalendar document named name.
// Events without an API id get a UID derived from their content.
func WriteICS(name string, events []models.CalendarEvent, stamp time.Time) string {
	cal := ical.NewCalendar()
	cal.SetMethod(ical.MethodPublish)
	cal.SetProductId(_productID)
	cal.SetXWRCalName(name)

	for _, ev := range events {
		vevent := cal.AddEvent(eventUID(ev))
		vevent.SetDtStampTime(stamp.UTC())
		vevent.SetStartAt(ev.Start.UTC())
		vevent.SetEndAt(ev.End.UTC())
		vevent.SetSummary(ev.Summary)
		if ev.Description != "" {
			vevent.SetDescription(ev.Description)
		}
		if ev.Location != "" {
			vevent.SetLocation(ev.Location)
		}
	}

	return cal.Serialize()
}

func eventUID(ev models.CalendarEvent) string {
	if ev.ID != "" {
		return ev.ID + "@skylight"
	}
	sum := sha256.Sum256([]byte(ev.Start.UTC().Format(time.RFC3339) + "|" + ev.End.UTC().Format(time.RFC3339) + "|" + ev.Summary))
	return hex.EncodeToString(sum[:8]) + "@skylight"
}
