package tui

import (
	"time"

	"maestro/config/models"
)

// ConfigsLoadedMsg is sent when configs are loaded
type ConfigsLoadedMsg struct {
	Configs []models.ModelConfig
	// LastID is the id of the config the rotation handed out last, if any.
	LastID string
}

// ConfigsSavedMsg is sent after a whole-list save
type ConfigsSavedMsg struct {
	Message string
	Err     error
}

// ModelSelectedMsg is sent when the rotation advanced
type ModelSelectedMsg struct {
	Config models.ModelConfig
	OK     bool
}

// PingResultMsg is sent when ping test completes
type PingResultMsg struct {
	Label    string
	Duration time.Duration
	Err      error
}

// errMsg is an error message type
type errMsg string
