package setup

import (
	"testing"

	"github.com/koios/skylight-calendar/pkg/models"
)

func TestIsValidEmail(t *testing.T) {
	tests := []struct {
		input string
		want  bool
	}{
		{"user@example.com", true},
		{" user@example.com ", true},
		{"first.last+tag@sub.example.org", true},
		{"", false},
		{"user", false},
		{"user@", false},
		{"Name <user@example.com>", false},
	}
	for _, tt := range tests {
		if got := isValidEmail(tt.input); got != tt.want {
			t.Errorf("isValidEmail(%q) = %v, want %v", tt.input, got, tt.want)
		}
	}
}

func TestValidateCredentials(t *testing.T) {
	tests := []struct {
		name     string
		email    string
		password string
		codes    []string
	}{
		{"valid", "user@example.com", "secret", nil},
		{"missing both", "", "", []string{"required", "required"}},
		{"bad email", "nope", "secret", []string{"invalid_email"}},
		{"blank password", "user@example.com", "   ", []string{"required"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			errs := validateCredentials(tt.email, tt.password)
			if len(errs) != len(tt.codes) {
				t.Fatalf("got %d errors (%+v), want %d", len(errs), errs, len(tt.codes))
			}
			for i, code := range tt.codes {
				if errs[i].Code != code {
					t.Errorf("errs[%d].Code = %q, want %q", i, errs[i].Code, code)
				}
			}
		})
	}
}

func TestValidateFrameID(t *testing.T) {
	if errs := validateFrameID("4242"); len(errs) != 0 {
		t.Errorf("unexpected errors: %+v", errs)
	}
	if errs := validateFrameID(""); len(errs) != 1 || errs[0].Code != "required" {
		t.Errorf("expected required error, got %+v", errs)
	}
	if errs := validateFrameID("42/events"); len(errs) != 1 || errs[0].Code != "invalid_frame_id" {
		t.Errorf("expected invalid_frame_id error, got %+v", errs)
	}
}

func TestValidateSelection(t *testing.T) {
	options := []models.Frame{{ID: "1", Name: "Kitchen"}, {ID: "2", Name: "Office"}}

	if errs := validateSelection([]string{"2"}, options); len(errs) != 0 {
		t.Errorf("unexpected errors: %+v", errs)
	}
	if errs := validateSelection(nil, options); len(errs) != 1 || errs[0].Code != "required" {
		t.Errorf("expected required error, got %+v", errs)
	}
	errs := validateSelection([]string{"1", "9"}, options)
	if len(errs) != 1 || errs[0].Code != "invalid_option" {
		t.Errorf("expected one invalid_option error, got %+v", errs)
	}
}
