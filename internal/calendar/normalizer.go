package calendar

import (
	"encoding/json"
	"fmt"
	"strconv"
	"time"

	"github.com/araddon/dateparse"
	"github.com/koios/skylight-calendar/pkg/models"
	"go.uber.org/zap"
)

// DefaultSummary is used for events that come without one
const DefaultSummary = "Skylight Event"

// Result is the outcome of normalizing one events payload
type Result struct {
	Events []models.CalendarEvent
	Active *models.CalendarEvent
}

// Normalizer turns raw calendar_events payloads into CalendarEvents
type Normalizer struct {
	location *time.Location
	logger   *zap.Logger
}

// NewNormalizer creates a normalizer. Timestamps without an offset are read
// in loc; a nil loc means UTC.
func NewNormalizer(loc *time.Location, logger *zap.Logger) *Normalizer {
	if loc == nil {
		loc = time.UTC
	}
	return &Normalizer{location: loc, logger: logger}
}

// Normalize extracts events from payload in input order and picks the first
// one whose [start, end] contains now as the active event.
//
// Items with a missing, empty or unparsable start or end are skipped. A
// payload whose structure is malformed, or that carries a non-empty
// timestamp of a non-string type, yields an empty result with no active
// event, never a partial one.
func (n *Normalizer) Normalize(payload json.RawMessage, now time.Time) Result {
	empty := Result{Events: []models.CalendarEvent{}}

	if len(payload) == 0 {
		return empty
	}

	var root any
	if err := json.Unmarshal(payload, &root); err != nil {
		n.logger.Warn("Events payload is not JSON", zap.Error(err))
		return empty
	}

	doc, ok := root.(map[string]any)
	if !ok {
		return empty
	}
	data, ok := doc["data"]
	if !ok {
		return empty
	}

	result, err := n.normalizeItems(data, now)
	if err != nil {
		n.logger.Warn("Failed to normalize events payload", zap.Error(err))
		return empty
	}
	return result
}

func (n *Normalizer) normalizeItems(data any, now time.Time) (Result, error) {
	items, ok := data.([]any)
	if !ok {
		return Result{}, fmt.Errorf("data is %T, not a list", data)
	}

	result := Result{Events: make([]models.CalendarEvent, 0, len(items))}

	for i, raw := range items {
		item, ok := raw.(map[string]any)
		if !ok {
			return Result{}, fmt.Errorf("item %d is %T, not an object", i, raw)
		}

		attrs := map[string]any{}
		if v, present := item["attributes"]; present {
			if attrs, ok = v.(map[string]any); !ok {
				return Result{}, fmt.Errorf("item %d attributes is %T, not an object", i, v)
			}
		}

		start, ok, err := n.timestamp(attrs, "starts_at")
		if err != nil {
			return Result{}, fmt.Errorf("item %d: %w", i, err)
		}
		if !ok {
			continue
		}
		end, ok, err := n.timestamp(attrs, "ends_at")
		if err != nil {
			return Result{}, fmt.Errorf("item %d: %w", i, err)
		}
		if !ok {
			continue
		}

		summary := DefaultSummary
		if v, present := attrs["summary"]; present && v != nil {
			summary = textValue(v)
		}
		description := ""
		if v := attrs["description"]; !isFalsy(v) {
			description = textValue(v)
		}
		location := ""
		if v := attrs["location"]; !isFalsy(v) {
			location = textValue(v)
		}

		event := models.CalendarEvent{
			ID:          eventID(item["id"]),
			Start:       start,
			End:         end,
			Summary:     summary,
			Description: description,
			Location:    location,
		}
		result.Events = append(result.Events, event)

		if result.Active == nil && event.IsActiveAt(now) {
			active := event
			result.Active = &active
		}
	}

	return result, nil
}

// timestamp reads a date-time attribute. ok is false when the value is
// falsy or unparsable; err is set when it is a non-empty value of a type
// other than string.
func (n *Normalizer) timestamp(attrs map[string]any, key string) (time.Time, bool, error) {
	v := attrs[key]
	if isFalsy(v) {
		return time.Time{}, false, nil
	}

	s, isString := v.(string)
	if !isString {
		return time.Time{}, false, fmt.Errorf("%s is %T, not a string", key, v)
	}

	t, err := dateparse.ParseIn(s, n.location)
	if err != nil {
		n.logger.Debug("Skipping event with unparsable timestamp",
			zap.String("field", key),
			zap.String("value", s))
		return time.Time{}, false, nil
	}
	return t, true, nil
}

// isFalsy reports whether a decoded JSON value is null, false, zero or empty
func isFalsy(v any) bool {
	switch val := v.(type) {
	case nil:
		return true
	case bool:
		return !val
	case float64:
		return val == 0
	case string:
		return val == ""
	case []any:
		return len(val) == 0
	case map[string]any:
		return len(val) == 0
	default:
		return false
	}
}

// textValue renders a decoded JSON value as display text
func textValue(v any) string {
	switch val := v.(type) {
	case string:
		return val
	case float64:
		return strconv.FormatFloat(val, 'f', -1, 64)
	case bool:
		return strconv.FormatBool(val)
	default:
		b, err := json.Marshal(val)
		if err != nil {
			return ""
		}
		return string(b)
	}
}

func eventID(v any) string {
	id, _ := models.ResourceID(v)
	return id
}
