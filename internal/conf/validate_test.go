package conf

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func validSettings() *Settings {
	s := &Settings{}
	s.WebServer.Port = "8000"
	s.Inference.URL = "http://localhost:8500"
	s.Inference.Timeout = 30
	s.Inference.ConfidenceThreshold = 0.5
	s.Inference.IoUThreshold = 0.45
	s.Inference.NDThreshold = 0.7
	s.Output.SQLite.Enabled = true
	s.Output.SQLite.Path = "radikal.db"
	return s
}

func TestValidateSettings(t *testing.T) {
	assert.NoError(t, ValidateSettings(validSettings()))
}

func TestValidateSettingsErrors(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Settings)
	}{
		{"empty port", func(s *Settings) { s.WebServer.Port = "" }},
		{"port not a number", func(s *Settings) { s.WebServer.Port = "http" }},
		{"port out of range", func(s *Settings) { s.WebServer.Port = "70000" }},
		{"empty sidecar url", func(s *Settings) { s.Inference.URL = "" }},
		{"threshold above one", func(s *Settings) { s.Inference.NDThreshold = 1.5 }},
		{"negative threshold", func(s *Settings) { s.Inference.ConfidenceThreshold = -0.1 }},
		{"zero timeout", func(s *Settings) { s.Inference.Timeout = 0 }},
		{"no datastore", func(s *Settings) { s.Output.SQLite.Enabled = false }},
		{"two datastores", func(s *Settings) { s.Output.MySQL.Enabled = true }},
		{"sqlite without path", func(s *Settings) { s.Output.SQLite.Path = "" }},
		{"mysql without database", func(s *Settings) {
			s.Output.SQLite.Enabled = false
			s.Output.MySQL.Enabled = true
			s.Output.MySQL.Database = ""
		}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := validSettings()
			tt.mutate(s)
			assert.Error(t, ValidateSettings(s))
		})
	}
}
