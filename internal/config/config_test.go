package config

import (
	"os"
	"testing"
	"time"
)

func TestLoadAppliesDefaults(t *testing.T) {
	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load: %v", err)
	}

	if cfg.Server.Port != 8082 {
		t.Fatalf("Server.Port = %d, want 8082", cfg.Server.Port)
	}
	if cfg.Session.MaxChunkSize != 256<<10 {
		t.Fatalf("Session.MaxChunkSize = %d, want %d", cfg.Session.MaxChunkSize, 256<<10)
	}
	if cfg.Session.MaxLifetime != 30*time.Minute {
		t.Fatalf("Session.MaxLifetime = %v, want 30m", cfg.Session.MaxLifetime)
	}
	if cfg.Audit.NATSURL != "" {
		t.Fatalf("Audit.NATSURL = %q, want empty by default", cfg.Audit.NATSURL)
	}
	if !cfg.Metrics.Enabled {
		t.Fatalf("Metrics.Enabled = false, want true by default")
	}
}

func TestLoadHonorsEnvironmentOverride(t *testing.T) {
	os.Setenv("FILERELAY_SERVER_PORT", "9999")
	os.Setenv("FILERELAY_IDENTITY_SIGNATURE_KEY", "test-key")
	defer os.Unsetenv("FILERELAY_SERVER_PORT")
	defer os.Unsetenv("FILERELAY_IDENTITY_SIGNATURE_KEY")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Server.Port != 9999 {
		t.Fatalf("Server.Port = %d, want 9999 from env override", cfg.Server.Port)
	}
	if cfg.Identity.SignatureKey != "test-key" {
		t.Fatalf("Identity.SignatureKey = %q, want test-key from env override", cfg.Identity.SignatureKey)
	}
}
