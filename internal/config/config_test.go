package config

import "testing"

func TestFromEnvRequiresAdminCredential(t *testing.T) {
	t.Setenv("ADMIN_USERNAME", "")
	t.Setenv("ADMIN_PASSWORD", "")
	if _, err := FromEnv(); err == nil {
		t.Error("missing credential accepted")
	}
}

func TestFromEnvDefaults(t *testing.T) {
	t.Setenv("ADMIN_USERNAME", "admin")
	t.Setenv("ADMIN_PASSWORD", "pw")
	t.Setenv("PORT", "")
	t.Setenv("UPLOAD_FOLDER", "")

	cfg, err := FromEnv()
	if err != nil {
		t.Fatal(err)
	}
	if cfg.ListenAddr != ":8000" {
		t.Errorf("ListenAddr = %q", cfg.ListenAddr)
	}
	if cfg.UploadDir != DefaultUploadDir {
		t.Errorf("UploadDir = %q", cfg.UploadDir)
	}
	if cfg.UserTimeout != DefaultUserTimeout || cfg.JoinTTL != DefaultJoinTTL {
		t.Errorf("timeouts = %v, %v", cfg.UserTimeout, cfg.JoinTTL)
	}
}

func TestFromEnvRejectsBadPort(t *testing.T) {
	t.Setenv("ADMIN_USERNAME", "admin")
	t.Setenv("ADMIN_PASSWORD", "pw")
	t.Setenv("PORT", "not-a-number")
	if _, err := FromEnv(); err == nil {
		t.Error("bad PORT accepted")
	}
}
