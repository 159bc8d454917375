package config

import (
	"os"
	"strconv"
	"time"

	"github.com/pkg/errors"
)

// Defaults mirror the limits the web client is built around.
const (
	DefaultPort        = 8000
	DefaultUploadDir   = "shared_files"
	MaxDisplayNameLen  = 20
	DefaultUserTimeout = 30 * time.Second
	DefaultJoinTTL     = 5 * time.Minute
)

// Config holds everything the server needs at startup. Values come from
// the environment; the CLI may override them with flags.
type Config struct {
	ListenAddr string
	UploadDir  string

	AdminUsername string
	AdminPassword string

	// Hotspot details are only surfaced to clients (join page, banner);
	// the server does not manage the hotspot itself.
	HotspotSSID     string
	HotspotPassword string
	HotspotIP       string

	UserTimeout time.Duration
	JoinTTL     time.Duration
}

// FromEnv builds a Config from environment variables, applying defaults
// for everything except the admin credential.
func FromEnv() (*Config, error) {
	port := DefaultPort
	if v := os.Getenv("PORT"); v != "" {
		p, err := strconv.Atoi(v)
		if err != nil {
			return nil, errors.Wrapf(err, "invalid PORT %q", v)
		}
		port = p
	}

	cfg := &Config{
		ListenAddr:      ":" + strconv.Itoa(port),
		UploadDir:       envOr("UPLOAD_FOLDER", DefaultUploadDir),
		AdminUsername:   os.Getenv("ADMIN_USERNAME"),
		AdminPassword:   os.Getenv("ADMIN_PASSWORD"),
		HotspotSSID:     os.Getenv("HOTSPOT_SSID"),
		HotspotPassword: os.Getenv("HOTSPOT_PASSWORD"),
		HotspotIP:       os.Getenv("HOTSPOT_IP"),
		UserTimeout:     DefaultUserTimeout,
		JoinTTL:         DefaultJoinTTL,
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate rejects configurations the server cannot safely run with.
func (c *Config) Validate() error {
	if c.AdminUsername == "" || c.AdminPassword == "" {
		return errors.New("ADMIN_USERNAME and ADMIN_PASSWORD must be set")
	}
	if c.UploadDir == "" {
		return errors.New("upload directory must not be empty")
	}
	if c.UserTimeout <= 0 {
		c.UserTimeout = DefaultUserTimeout
	}
	if c.JoinTTL <= 0 {
		c.JoinTTL = DefaultJoinTTL
	}
	return nil
}

func envOr(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}
