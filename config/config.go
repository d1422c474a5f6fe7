// Package config loads server configuration from environment variables and
// an optional YAML file.
package config

import (
	"errors"
	"fmt"
	"log/slog"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/jredh-dev/foodshare/internal/donation"
)

// DevSigningKey signs development tokens when JWT_SIGNING_KEY is unset in
// the development environment. cmd/devtoken uses the same default.
const DevSigningKey = "foodshare-insecure-dev-signing-key"

// Config holds all application configuration.
type Config struct {
	Server   ServerConfig   `yaml:"server"`
	Store    StoreConfig    `yaml:"store"`
	Firebase FirebaseConfig `yaml:"firebase"`
	Auth     AuthConfig     `yaml:"auth"`
	Objects  ObjectsConfig  `yaml:"objects"`
	Approval ApprovalConfig `yaml:"approval"`
	Pickup   PickupConfig   `yaml:"pickup"`

	// problems collects unparsable environment values for Validate.
	problems []string
}

type ServerConfig struct {
	Port         string   `yaml:"port"`
	Env          string   `yaml:"env"`
	LogLevel     string   `yaml:"log_level"`
	CORSOrigins  []string `yaml:"cors_origins"`
	MaxBodyBytes int64    `yaml:"max_body_bytes"`
}

type StoreConfig struct {
	Backend    string `yaml:"backend"` // sqlite | firestore | memory
	SQLitePath string `yaml:"sqlite_path"`
}

type FirebaseConfig struct {
	ProjectID         string `yaml:"project_id"`
	CredentialsPath   string `yaml:"credentials_path"`
	FirestoreDatabase string `yaml:"firestore_database"`
	StorageBucket     string `yaml:"storage_bucket"`
	// Emulator support for integration testing
	UseEmulator           bool   `yaml:"use_emulator"`
	EmulatorAuthHost      string `yaml:"emulator_auth_host"`
	EmulatorFirestoreHost string `yaml:"emulator_firestore_host"`
}

type AuthConfig struct {
	Provider      string `yaml:"provider"` // jwt | firebase
	SigningKey    string `yaml:"jwt_signing_key"`
	Issuer        string `yaml:"jwt_issuer"`
	AuthorityRole string `yaml:"authority_role"`
}

type ObjectsConfig struct {
	Backend   string `yaml:"backend"` // disk | firebase | memory
	MediaRoot string `yaml:"media_root"`
	BaseURL   string `yaml:"media_base_url"`
}

type ApprovalConfig struct {
	Mode          string        `yaml:"mode"` // manual | auto
	Delay         time.Duration `yaml:"delay"`
	SweepInterval time.Duration `yaml:"sweep_interval"`
}

type PickupConfig struct {
	Timezone string `yaml:"timezone"`
}

// Defaults returns the configuration used when nothing is set.
func Defaults() *Config {
	return &Config{
		Server: ServerConfig{
			Port:         "8080",
			Env:          "development",
			LogLevel:     "info",
			CORSOrigins:  []string{"http://localhost:3000", "http://localhost:5173"},
			MaxBodyBytes: 8 << 20,
		},
		Store: StoreConfig{
			Backend:    "sqlite",
			SQLitePath: "foodshare.db",
		},
		Firebase: FirebaseConfig{
			FirestoreDatabase:     "(default)",
			EmulatorAuthHost:      "localhost:9099",
			EmulatorFirestoreHost: "localhost:8081",
		},
		Auth: AuthConfig{
			Provider:      "jwt",
			Issuer:        "foodshare",
			AuthorityRole: "admin",
		},
		Objects: ObjectsConfig{
			Backend:   "disk",
			MediaRoot: "media",
			BaseURL:   "http://localhost:8080/media",
		},
		Approval: ApprovalConfig{
			Mode:          "manual",
			Delay:         5 * time.Second,
			SweepInterval: time.Second,
		},
		Pickup: PickupConfig{
			Timezone: "UTC",
		},
	}
}

// Load builds the configuration: defaults, then the YAML file named by
// CONFIG_FILE (if any), then environment variables. The result is validated.
func Load() (*Config, error) {
	cfg := Defaults()
	if path := os.Getenv("CONFIG_FILE"); path != "" {
		if err := cfg.LoadFile(path); err != nil {
			return nil, err
		}
	}
	cfg.applyEnv()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// LoadFile overlays the YAML file at path. Keys absent from the file keep
// their current values.
func (c *Config) LoadFile(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("read config file: %w", err)
	}
	if err := yaml.Unmarshal(data, c); err != nil {
		return fmt.Errorf("parse config file %s: %w", path, err)
	}
	return nil
}

func (c *Config) applyEnv() {
	c.Server.Port = getEnv("PORT", c.Server.Port)
	c.Server.Env = getEnv("ENV", c.Server.Env)
	c.Server.LogLevel = getEnv("LOG_LEVEL", c.Server.LogLevel)
	c.Server.CORSOrigins = getEnvList("CORS_ORIGINS", c.Server.CORSOrigins)
	c.Server.MaxBodyBytes = c.getEnvInt64("MAX_BODY_BYTES", c.Server.MaxBodyBytes)

	c.Store.Backend = getEnv("STORE_BACKEND", c.Store.Backend)
	c.Store.SQLitePath = getEnv("SQLITE_PATH", c.Store.SQLitePath)

	c.Firebase.ProjectID = getEnv("FIREBASE_PROJECT_ID", c.Firebase.ProjectID)
	c.Firebase.CredentialsPath = getEnv("FIREBASE_CREDENTIALS_PATH", c.Firebase.CredentialsPath)
	c.Firebase.FirestoreDatabase = getEnv("FIRESTORE_DATABASE", c.Firebase.FirestoreDatabase)
	c.Firebase.StorageBucket = getEnv("FIREBASE_STORAGE_BUCKET", c.Firebase.StorageBucket)
	c.Firebase.UseEmulator = c.getEnvBool("USE_FIREBASE_EMULATOR", c.Firebase.UseEmulator)
	c.Firebase.EmulatorAuthHost = getEnv("FIREBASE_AUTH_EMULATOR_HOST", c.Firebase.EmulatorAuthHost)
	c.Firebase.EmulatorFirestoreHost = getEnv("FIRESTORE_EMULATOR_HOST", c.Firebase.EmulatorFirestoreHost)

	c.Auth.Provider = getEnv("AUTH_PROVIDER", c.Auth.Provider)
	c.Auth.SigningKey = getEnv("JWT_SIGNING_KEY", c.Auth.SigningKey)
	c.Auth.Issuer = getEnv("JWT_ISSUER", c.Auth.Issuer)
	c.Auth.AuthorityRole = getEnv("AUTHORITY_ROLE", c.Auth.AuthorityRole)

	c.Objects.Backend = getEnv("OBJECT_BACKEND", c.Objects.Backend)
	c.Objects.MediaRoot = getEnv("MEDIA_ROOT", c.Objects.MediaRoot)
	c.Objects.BaseURL = getEnv("MEDIA_BASE_URL", c.Objects.BaseURL)

	c.Approval.Mode = getEnv("APPROVAL_MODE", c.Approval.Mode)
	c.Approval.Delay = c.getEnvDuration("APPROVAL_DELAY", c.Approval.Delay)
	c.Approval.SweepInterval = c.getEnvDuration("APPROVAL_SWEEP_INTERVAL", c.Approval.SweepInterval)

	c.Pickup.Timezone = getEnv("PICKUP_TIMEZONE", c.Pickup.Timezone)
}

// IsDevelopment reports whether ENV is development.
func (c *Config) IsDevelopment() bool {
	return c.Server.Env == "development"
}

// Validate reports every configuration problem at once.
func (c *Config) Validate() error {
	problems := append([]string(nil), c.problems...)
	add := func(format string, args ...any) {
		problems = append(problems, fmt.Sprintf(format, args...))
	}

	if c.Server.Port == "" {
		add("PORT is required")
	}
	if _, err := c.SlogLevel(); err != nil {
		add("%v", err)
	}
	if minBody := minBodyBytes(); c.Server.MaxBodyBytes < minBody {
		add("MAX_BODY_BYTES must be at least %d to fit a %d byte image upload", minBody, donation.MaxImageBytes)
	}

	usesFirebase := false
	switch c.Store.Backend {
	case "sqlite":
		if c.Store.SQLitePath == "" {
			add("SQLITE_PATH is required for the sqlite store")
		}
	case "firestore":
		usesFirebase = true
	case "memory":
	default:
		add("unknown STORE_BACKEND %q (want sqlite, firestore or memory)", c.Store.Backend)
	}

	switch c.Auth.Provider {
	case "jwt":
		if c.Auth.SigningKey == "" && !c.IsDevelopment() {
			add("JWT_SIGNING_KEY is required outside development")
		}
	case "firebase":
		usesFirebase = true
	default:
		add("unknown AUTH_PROVIDER %q (want jwt or firebase)", c.Auth.Provider)
	}
	if c.Auth.AuthorityRole == "" {
		add("AUTHORITY_ROLE must not be empty")
	}

	switch c.Objects.Backend {
	case "disk":
		if c.Objects.MediaRoot == "" {
			add("MEDIA_ROOT is required for the disk object backend")
		}
		if c.Objects.BaseURL == "" {
			add("MEDIA_BASE_URL is required for the disk object backend")
		}
	case "firebase":
		usesFirebase = true
		if c.Firebase.StorageBucket == "" {
			add("FIREBASE_STORAGE_BUCKET is required for the firebase object backend")
		}
	case "memory":
	default:
		add("unknown OBJECT_BACKEND %q (want disk, firebase or memory)", c.Objects.Backend)
	}

	if usesFirebase && c.Firebase.ProjectID == "" {
		add("FIREBASE_PROJECT_ID is required when a Firebase backend is selected")
	}

	if _, err := donation.ParseApprovalMode(c.Approval.Mode); err != nil {
		add("APPROVAL_MODE: %v", err)
	}
	if c.Approval.Delay < 0 {
		add("APPROVAL_DELAY must not be negative")
	}
	if c.Approval.SweepInterval <= 0 {
		add("APPROVAL_SWEEP_INTERVAL must be positive")
	}

	if _, err := time.LoadLocation(c.Pickup.Timezone); err != nil {
		add("PICKUP_TIMEZONE: %v", err)
	}

	if len(problems) == 0 {
		return nil
	}
	return fmt.Errorf("invalid configuration: %w", errors.New(strings.Join(problems, "; ")))
}

// SlogLevel parses LOG_LEVEL.
func (c *Config) SlogLevel() (slog.Level, error) {
	var level slog.Level
	if err := level.UnmarshalText([]byte(c.Server.LogLevel)); err != nil {
		return slog.LevelInfo, fmt.Errorf("LOG_LEVEL: unknown level %q", c.Server.LogLevel)
	}
	return level, nil
}

// ApprovalPolicy returns the claim approval policy. Call after Validate.
func (c *Config) ApprovalPolicy() donation.ApprovalPolicy {
	mode, _ := donation.ParseApprovalMode(c.Approval.Mode)
	return donation.ApprovalPolicy{Mode: mode, Delay: c.Approval.Delay}
}

// PickupLocation returns the time zone for pickup times. Call after Validate.
func (c *Config) PickupLocation() *time.Location {
	loc, err := time.LoadLocation(c.Pickup.Timezone)
	if err != nil {
		return time.UTC
	}
	return loc
}

// JWTSigningKey returns the configured key, falling back to DevSigningKey
// in development.
func (c *Config) JWTSigningKey() string {
	if c.Auth.SigningKey == "" && c.IsDevelopment() {
		return DevSigningKey
	}
	return c.Auth.SigningKey
}

// uploadEnvelopeBytes covers the JSON fields and data: URL prefix that wrap
// the base64 image in an upload request.
const uploadEnvelopeBytes = 1 << 10

// minBodyBytes is the smallest body limit that admits a maximum-size image
// upload.
func minBodyBytes() int64 {
	return int64(base64Len(donation.MaxImageBytes)) + uploadEnvelopeBytes
}

func base64Len(n int) int {
	return (n + 2) / 3 * 4
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvList(key string, defaultValue []string) []string {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	var out []string
	for _, v := range strings.Split(value, ",") {
		if v = strings.TrimSpace(v); v != "" {
			out = append(out, v)
		}
	}
	return out
}

func (c *Config) getEnvInt64(key string, defaultValue int64) int64 {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	n, err := strconv.ParseInt(value, 10, 64)
	if err != nil {
		c.problems = append(c.problems, fmt.Sprintf("%s: %q is not an integer", key, value))
		return defaultValue
	}
	return n
}

func (c *Config) getEnvBool(key string, defaultValue bool) bool {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	b, err := strconv.ParseBool(value)
	if err != nil {
		c.problems = append(c.problems, fmt.Sprintf("%s: %q is not a boolean", key, value))
		return defaultValue
	}
	return b
}

func (c *Config) getEnvDuration(key string, defaultValue time.Duration) time.Duration {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	d, err := time.ParseDuration(value)
	if err != nil {
		c.problems = append(c.problems, fmt.Sprintf("%s: %q is not a duration", key, value))
		return defaultValue
	}
	return d
}
