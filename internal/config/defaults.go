package config

import "time"

// ApplyDefaults sets default values for any zero values in cfg.
func ApplyDefaults(cfg *Config) {
	if cfg.Server.Host == "" {
		cfg.Server.Host = "localhost"
	}
	if cfg.Server.Port == 0 {
		cfg.Server.Port = 8080
	}
	if cfg.Server.RequestTimeout == 0 {
		cfg.Server.RequestTimeout = 180 * time.Second
	}
	if cfg.Server.MaxUploadBytes == 0 {
		cfg.Server.MaxUploadBytes = 50 << 20
	}
	if cfg.Backend.BaseURL == "" {
		cfg.Backend.BaseURL = "http://localhost:8000"
	}
	if cfg.Backend.Timeout == 0 {
		cfg.Backend.Timeout = 120 * time.Second
	}
	if cfg.Render.CacheSize == 0 {
		cfg.Render.CacheSize = 256
	}
	if cfg.Render.PreviewChars == 0 {
		cfg.Render.PreviewChars = 200
	}
	if cfg.Inbox.OutputDir == "" {
		cfg.Inbox.OutputDir = "/usr/local/var/plagiview/reports"
	}
	if cfg.Inbox.Extensions == nil {
		cfg.Inbox.Extensions = []string{".json"}
	}
	if cfg.Inbox.Workers == 0 {
		cfg.Inbox.Workers = 4
	}
	// Recursive defaults to true when unset (nil).
	if len(cfg.Inbox.Directories) > 0 && cfg.Inbox.Recursive == nil {
		t := true
		cfg.Inbox.Recursive = &t
	}
}
