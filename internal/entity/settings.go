package entity

import "time"

// SettingsKey is the settings row holding Settings as JSON.
const SettingsKey = "kb_settings_v1"

type Settings struct {
	AutoSummaryEnabled          bool `json:"auto_summary_enabled"`
	BrowserRelayFallbackEnabled bool `json:"browser_relay_fallback_enabled"`
}

// SettingsPatch carries a partial update; nil fields are left alone.
type SettingsPatch struct {
	AutoSummaryEnabled          *bool `json:"auto_summary_enabled,omitempty"`
	BrowserRelayFallbackEnabled *bool `json:"browser_relay_fallback_enabled,omitempty"`
}

func (s Settings) Apply(p SettingsPatch) Settings {
	if p.AutoSummaryEnabled != nil {
		s.AutoSummaryEnabled = *p.AutoSummaryEnabled
	}
	if p.BrowserRelayFallbackEnabled != nil {
		s.BrowserRelayFallbackEnabled = *p.BrowserRelayFallbackEnabled
	}
	return s
}

type LogLevel string

const (
	LogLevelInfo  LogLevel = "info"
	LogLevelWarn  LogLevel = "warn"
	LogLevelError LogLevel = "error"
)

// IngestLog is one append-only row of the ingest event trail.
type IngestLog struct {
	ID        int64          `json:"id"`
	JobID     int64          `json:"job_id,omitempty"`
	SourceURL string         `json:"source_url,omitempty"`
	SourceID  int64          `json:"source_id,omitempty"`
	Level     LogLevel       `json:"level"`
	EventType string         `json:"event_type"`
	Event     map[string]any `json:"event,omitempty"`
	CreatedAt time.Time      `json:"created_at"`
}

// JobMetric is a numeric measurement recorded against a job.
type JobMetric struct {
	JobID     int64             `json:"job_id"`
	Name      string            `json:"name"`
	Value     float64           `json:"value"`
	Labels    map[string]string `json:"labels,omitempty"`
	CreatedAt time.Time         `json:"created_at"`
}

// HealthStatus summarizes store reachability and job outcomes.
type HealthStatus struct {
	DBOK              bool              `json:"db_ok"`
	Sources           int               `json:"sources"`
	Chunks            int               `json:"chunks"`
	Jobs              map[JobStatus]int `json:"jobs"`
	RecentFailures24h int               `json:"recent_failures_24h"`
	VectorIndex       string            `json:"vector_index"`
	QueueDepth        int64             `json:"queue_depth"`
}
