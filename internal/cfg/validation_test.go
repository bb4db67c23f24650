package cfg

import (
	"testing"
	"time"
)

// createValidSettings creates a valid Settings struct for testing
func createValidSettings() *Settings {
	return &Settings{
		ArtifactsDir: "models",
		DataPath:     "/tmp/migraine",
		ListenPort:   8080,
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 10 * time.Second,
		HistoryLimit: 20,
		LogLevel:     "info",
		LogFormat:    "json",
	}
}

func TestValidateSettings_ValidConfig(t *testing.T) {
	settings := createValidSettings()

	err := validateSettings(settings)
	if err != nil {
		t.Errorf("Expected valid config to pass, got error: %v", err)
	}
}

func TestValidateSettings_Invalid(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(s *Settings)
	}{
		{"empty artifacts dir", func(s *Settings) { s.ArtifactsDir = "" }},
		{"privileged port", func(s *Settings) { s.ListenPort = 80 }},
		{"port too high", func(s *Settings) { s.ListenPort = 70000 }},
		{"read timeout too short", func(s *Settings) { s.ReadTimeout = 100 * time.Millisecond }},
		{"write timeout too long", func(s *Settings) { s.WriteTimeout = time.Hour }},
		{"zero history limit", func(s *Settings) { s.HistoryLimit = 0 }},
		{"history limit too large", func(s *Settings) { s.HistoryLimit = 5000 }},
		{"unknown log level", func(s *Settings) { s.LogLevel = "verbose" }},
		{"unknown log format", func(s *Settings) { s.LogFormat = "xml" }},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			settings := createValidSettings()
			tt.mutate(settings)

			if err := validateSettings(settings); err == nil {
				t.Errorf("Expected validation error for %s", tt.name)
			}
		})
	}
}

func TestSettings_HistoryEnabled(t *testing.T) {
	settings := createValidSettings()
	if !settings.HistoryEnabled() {
		t.Error("Expected history to be enabled when DataPath is set")
	}

	settings.DataPath = ""
	if settings.HistoryEnabled() {
		t.Error("Expected history to be disabled when DataPath is empty")
	}
}
