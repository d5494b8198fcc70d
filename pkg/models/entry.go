package models

import (
	"errors"
	"time"
)

// EntryData is the persisted configuration of one Skylight account
type EntryData struct {
	AuthCode  string  `json:"auth_code" yaml:"auth_code"`
	FrameData []Frame `json:"frame_data" yaml:"frame_data"`
}

// ConfigEntry is a stored setup result owned by the host
type ConfigEntry struct {
	EntryID   string    `json:"entry_id" yaml:"entry_id"`
	Title     string    `json:"title" yaml:"title"`
	Data      EntryData `json:"data" yaml:"data"`
	CreatedAt time.Time `json:"created_at" yaml:"created_at"`
}

// Validate checks that the entry carries what a calendar setup needs
func (e *ConfigEntry) Validate() error {
	if e.EntryID == "" {
		return errors.New("entry_id is required")
	}
	if e.Data.AuthCode == "" {
		return errors.New("auth_code is required")
	}
	for _, frame := range e.Data.FrameData {
		if frame.ID == "" {
			return errors.New("frame_data contains a frame without id")
		}
	}
	return nil
}

// Device describes the registry record backing one frame calendar
type Device struct {
	Identifier   string `json:"identifier"`
	Name         string `json:"name"`
	Manufacturer string `json:"manufacturer"`
	Model        string `json:"model"`
	EntryID      string `json:"entry_id"`
}
