package models

import (
	"database/sql/driver"
	"encoding/json"
	"fmt"
)

// SettingsVersion is the current settings schema version. Older persisted
// blobs are readable; unknown keys are dropped on the next write.
const SettingsVersion = 1

// Recognized values for ProjectSettings.DefaultView.
const (
	ViewList     = "list"
	ViewBoard    = "board"
	ViewCalendar = "calendar"
)

// Recognized values for DashboardSettings.Layout.
const (
	LayoutGrid    = "grid"
	LayoutColumns = "columns"
)

// ProjectSettings is per-project configuration with enumerated keys. It
// replaces a free-form key/value blob so the access layer never has to
// interpret unknown shapes.
type ProjectSettings struct {
	Version      int    `json:"version"`
	DefaultView  string `json:"default_view,omitempty"`
	TaskOrdering string `json:"task_ordering,omitempty"`
	NotifyOnJoin bool   `json:"notify_on_join,omitempty"`
}

// DashboardSettings is per-dashboard configuration with enumerated keys.
type DashboardSettings struct {
	Version        int    `json:"version"`
	Layout         string `json:"layout,omitempty"`
	RefreshSeconds int    `json:"refresh_seconds,omitempty"`
}

// Value implements driver.Valuer for JSONB serialization.
func (s ProjectSettings) Value() (driver.Value, error) {
	if s.Version == 0 {
		s.Version = SettingsVersion
	}
	return json.Marshal(s)
}

// Scan implements sql.Scanner for JSONB deserialization.
func (s *ProjectSettings) Scan(value interface{}) error {
	return scanSettings(value, s)
}

// Value implements driver.Valuer for JSONB serialization.
func (s DashboardSettings) Value() (driver.Value, error) {
	if s.Version == 0 {
		s.Version = SettingsVersion
	}
	return json.Marshal(s)
}

// Scan implements sql.Scanner for JSONB deserialization.
func (s *DashboardSettings) Scan(value interface{}) error {
	return scanSettings(value, s)
}

func scanSettings(value interface{}, dest interface{}) error {
	if value == nil {
		return nil
	}
	bytes, ok := value.([]byte)
	if !ok {
		return fmt.Errorf("cannot scan %T into settings", value)
	}
	return json.Unmarshal(bytes, dest)
}
