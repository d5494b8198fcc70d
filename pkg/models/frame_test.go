package models

import (
	"reflect"
	"testing"
	"time"
)

func TestMergeFrames(t *testing.T) {
	existing := []Frame{{ID: "1", Name: "Kitchen"}, {ID: "2", Name: "Hall"}}

	t.Run("appends unseen frames", func(t *testing.T) {
		got := MergeFrames(existing, []Frame{{ID: "3", Name: "Office"}, {ID: "1", Name: "Renamed"}})
		want := []Frame{{ID: "1", Name: "Kitchen"}, {ID: "2", Name: "Hall"}, {ID: "3", Name: "Office"}}
		if !reflect.DeepEqual(got, want) {
			t.Errorf("got %v, want %v", got, want)
		}
	})

	t.Run("merge with itself is idempotent", func(t *testing.T) {
		got := MergeFrames(existing, existing)
		if !reflect.DeepEqual(got, existing) {
			t.Errorf("got %v, want %v", got, existing)
		}
		again := MergeFrames(got, got)
		if !reflect.DeepEqual(again, got) {
			t.Errorf("second merge changed result: %v", again)
		}
	})

	t.Run("duplicates inside one list collapse", func(t *testing.T) {
		got := MergeFrames(nil, []Frame{{ID: "9", Name: "a"}, {ID: "9", Name: "b"}})
		if len(got) != 1 || got[0].Name != "a" {
			t.Errorf("got %v", got)
		}
	})

	t.Run("empty inputs", func(t *testing.T) {
		if got := MergeFrames(nil, nil); len(got) != 0 {
			t.Errorf("expected empty, got %v", got)
		}
	})
}

func TestSelectFrames(t *testing.T) {
	frames := []Frame{{ID: "1", Name: "a"}, {ID: "2", Name: "b"}, {ID: "3", Name: "c"}}

	got := SelectFrames(frames, []string{"3", "1", "missing"})
	want := []Frame{{ID: "1", Name: "a"}, {ID: "3", Name: "c"}}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("got %v, want %v", got, want)
	}
}

func TestFrameDisplayName(t *testing.T) {
	if got := (Frame{ID: "42", Name: "Den"}).DisplayName(); got != "Den" {
		t.Errorf("got %q", got)
	}
	if got := (Frame{ID: "42"}).DisplayName(); got != "Skylight Frame 42" {
		t.Errorf("got %q", got)
	}
}

func TestCalendarEventIsActiveAt(t *testing.T) {
	start := time.Date(2024, 1, 1, 9, 0, 0, 0, time.UTC)
	end := start.Add(time.Hour)
	ev := CalendarEvent{Start: start, End: end}

	tests := []struct {
		name string
		at   time.Time
		want bool
	}{
		{"before", start.Add(-time.Second), false},
		{"at start", start, true},
		{"inside", start.Add(30 * time.Minute), true},
		{"at end", end, true},
		{"after", end.Add(time.Second), false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := ev.IsActiveAt(tt.at); got != tt.want {
				t.Errorf("IsActiveAt(%v) = %v, want %v", tt.at, got, tt.want)
			}
		})
	}
}

func TestConfigEntryValidate(t *testing.T) {
	valid := ConfigEntry{EntryID: "e1", Data: EntryData{AuthCode: "abc", FrameData: []Frame{{ID: "1"}}}}
	if err := valid.Validate(); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	noAuth := valid
	noAuth.Data.AuthCode = ""
	if err := noAuth.Validate(); err == nil {
		t.Error("expected error for missing auth_code")
	}

	noID := valid
	noID.EntryID = ""
	if err := noID.Validate(); err == nil {
		t.Error("expected error for missing entry_id")
	}

	badFrame := valid
	badFrame.Data.FrameData = []Frame{{Name: "x"}}
	if err := badFrame.Validate(); err == nil {
		t.Error("expected error for frame without id")
	}
}

func TestResourceID(t *testing.T) {
	tests := []struct {
		name   string
		value  any
		want   string
		wantOK bool
	}{
		{"string", "abc", "abc", true},
		{"integer number", float64(123), "123", true},
		{"fractional number", 1.5, "1.5", true},
		{"large number", float64(9007199254740991), "9007199254740991", true},
		{"null", nil, "", false},
		{"bool", true, "", false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, ok := ResourceID(tt.value)
			if got != tt.want || ok != tt.wantOK {
				t.Errorf("ResourceID(%v) = %q, %v; want %q, %v", tt.value, got, ok, tt.want, tt.wantOK)
			}
		})
	}
}
