package setup

import (
	"fmt"
	"net/mail"
	"strings"

	"github.com/koios/skylight-calendar/pkg/models"
)

// ValidationError represents a validation error for a specific field
type ValidationError struct {
	Field   string `json:"field"`
	Message string `json:"message"`
	Code    string `json:"code"`
}

func requiredField(field, name, value string) []ValidationError {
	if strings.TrimSpace(value) != "" {
		return nil
	}
	return []ValidationError{{
		Field:   field,
		Message: fmt.Sprintf("Field '%s' is required", name),
		Code:    "required",
	}}
}

func validateCredentials(email, password string) []ValidationError {
	var errors []ValidationError

	if emailErrs := requiredField("email", "Email", email); emailErrs != nil {
		errors = append(errors, emailErrs...)
	} else if !isValidEmail(email) {
		errors = append(errors, ValidationError{
			Field:   "email",
			Message: "Field 'Email' must be a valid email address",
			Code:    "invalid_email",
		})
	}

	errors = append(errors, requiredField("password", "Password", password)...)
	return errors
}

func validateFrameID(frameID string) []ValidationError {
	var errors []ValidationError
	errors = append(errors, requiredField("frame_id", "Frame ID", frameID)...)
	if strings.ContainsAny(frameID, "/?#") {
		errors = append(errors, ValidationError{
			Field:   "frame_id",
			Message: "Field 'Frame ID' contains invalid characters",
			Code:    "invalid_frame_id",
		})
	}
	return errors
}

// validateSelection checks that ids is non-empty and only names offered frames
func validateSelection(ids []string, options []models.Frame) []ValidationError {
	if len(ids) == 0 {
		return []ValidationError{{
			Field:   "frames",
			Message: "Select at least one frame",
			Code:    "required",
		}}
	}

	known := make(map[string]struct{}, len(options))
	for _, frame := range options {
		known[frame.ID] = struct{}{}
	}

	var errors []ValidationError
	for _, id := range ids {
		if _, ok := known[id]; !ok {
			errors = append(errors, ValidationError{
				Field:   "frames",
				Message: fmt.Sprintf("Unknown frame '%s'", id),
				Code:    "invalid_option",
			})
		}
	}
	return errors
}

func isValidEmail(email string) bool {
	addr, err := mail.ParseAddress(strings.TrimSpace(email))
	if err != nil {
		return false
	}
	return addr.Name == "" && strings.Contains(addr.Address, "@")
}
