package config

import (
	"os"
	"time"
)

// FromEnv loads settings from environment variables, falling back to
// defaults for anything unset.
func FromEnv() Settings {
	s := Default()

	if v := os.Getenv("BT_DESTINATION"); v != "" {
		s.Destination = Destination(v)
	}
	if v := os.Getenv("BT_DNP_HEADING"); v != "" {
		s.DNPHeading = v
	}
	if v := os.Getenv("BT_ADVANCE_FROM"); v != "" {
		s.AdvanceFrom = AdvanceFrom(v)
	}
	if v := os.Getenv("BT_ATTRIBUTE_SURFACE"); v != "" {
		s.AttributeSurface = Surface(v)
	}
	if v := os.Getenv("BT_CONFIRM_BEFORE_SPAWN"); v == "1" || v == "true" {
		s.ConfirmBeforeSpawn = true
	}
	if d := getEnvDuration("BT_UNDO_WINDOW"); d > 0 {
		s.UndoWindow = d
	}
	if d := getEnvDuration("BT_PROCESSED_COOLDOWN"); d > 0 {
		s.ProcessedCooldown = d
	}
	if d := getEnvDuration("BT_SYNC_DEBOUNCE"); d > 0 {
		s.SyncDebounce = d
	}

	return s
}

func getEnvDuration(key string) time.Duration {
	v := os.Getenv(key)
	if v == "" {
		return 0
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return 0
	}
	return d
}
