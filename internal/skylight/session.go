package skylight

import (
	"encoding/base64"

	"github.com/koios/skylight-calendar/pkg/models"
)

// SessionResult is the decoded body of POST /sessions.
// An empty result means the login request failed.
type SessionResult struct {
	Raw map[string]any
}

// Empty reports whether the login produced no usable body
func (s SessionResult) Empty() bool {
	return len(s.Raw) == 0
}

// UserID returns data.id
func (s SessionResult) UserID() (string, bool) {
	data, ok := s.Raw["data"].(map[string]any)
	if !ok {
		return "", false
	}

	id, ok := models.ResourceID(data["id"])
	return id, ok && id != ""
}

// Token returns data.attributes.token
func (s SessionResult) Token() (string, bool) {
	data, ok := s.Raw["data"].(map[string]any)
	if !ok {
		return "", false
	}
	attrs, ok := data["attributes"].(map[string]any)
	if !ok {
		return "", false
	}
	token, ok := attrs["token"].(string)
	return token, ok && token != ""
}

// Credential derives the Basic auth credential for this session
func (s SessionResult) Credential() (string, bool) {
	userID, ok := s.UserID()
	if !ok {
		return "", false
	}
	token, ok := s.Token()
	if !ok {
		return "", false
	}
	return DeriveCredential(userID, token), true
}

// DeriveCredential builds base64("userID:token")
func DeriveCredential(userID, token string) string {
	return base64.StdEncoding.EncodeToString([]byte(userID + ":" + token))
}
