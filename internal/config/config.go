// Package config provides configuration management for the Seia translator.
// Values start from built-in defaults, are overlaid by an optional TOML file
// and finally by environment variables.
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/pelletier/go-toml/v2"
)

const (
	// Default values
	DefaultPort     = 3001
	DefaultBind     = "127.0.0.1"
	DefaultLogLevel = "info"
	DefaultDataDir  = ".seia-translator"

	// Environment variable names
	EnvPort          = "SEIA_PORT"
	EnvPortLegacy    = "PORT"
	EnvLogLevel      = "SEIA_LOG_LEVEL"
	EnvLogFormat     = "SEIA_LOG_FORMAT"
	EnvDataDir       = "SEIA_DATA_DIR"
	EnvStoreBackend  = "SEIA_STORE_BACKEND"
	EnvHeadless      = "SEIA_HEADLESS"
	EnvAuthToken     = "SEIA_AUTH_TOKEN"
	EnvInboxDir      = "SEIA_INBOX_DIR"
	EnvOllamaBaseURL = "OLLAMA_BASE_URL"
	EnvOllamaModel   = "OLLAMA_MODEL"
	EnvWhisperModel  = "WHISPER_MODEL"
	EnvWhisperLang   = "WHISPER_LANGUAGE"
	EnvWhisperBinary = "WHISPER_BINARY"
	EnvFFmpegBinary  = "FFMPEG_BINARY"
	EnvOpenAIKey     = "OPENAI_API_KEY"
	EnvOpenAIBaseURL = "OPENAI_BASE_URL"

	// File names inside the data directory
	ConfigFilename = "config.toml"
	LedgerFilename = "projects.json"
	DBFilename     = "seia.db"
	LockFilename   = "seia.lock"

	// Store backends
	BackendJSON   = "json"
	BackendSQLite = "sqlite"

	DefaultMaxUploadBytes = 2 * 1024 * 1024 * 1024 // 2GB

	DefaultOllamaBaseURL = "http://localhost:11434"
	DefaultOllamaModel   = "llama3.1"
	DefaultWhisperModel  = "base"
	DefaultWhisperLang   = "en"
	DefaultOpenAIModel   = "whisper-1"
	DefaultForceStyle    = "FontSize=18,PrimaryColour=&Hffffff,OutlineColour=&H000000,Bold=1"
)

// Server holds the HTTP listener settings.
type Server struct {
	Bind      string `toml:"bind"`
	Port      int    `toml:"port"`
	AuthToken string `toml:"auth_token"`
	StaticDir string `toml:"static_dir"`
	Headless  bool   `toml:"headless"`
}

// Paths holds the on-disk layout.
type Paths struct {
	DataDir string `toml:"data_dir"`
}

// Store selects the project ledger backend.
type Store struct {
	Backend string `toml:"backend"`
}

// Project holds defaults applied to newly created projects.
type Project struct {
	SourceLanguage string `toml:"source_language"`
	TargetLanguage string `toml:"target_language"`
}

// Upload holds upload limits.
type Upload struct {
	MaxBytes int64 `toml:"max_bytes"`
}

// Whisper configures the local speech-to-text CLI.
type Whisper struct {
	Binary         string `toml:"binary"`
	Model          string `toml:"model"`
	Language       string `toml:"language"`
	TimeoutSeconds int    `toml:"timeout_seconds"`
}

// OpenAI configures the remote transcription fallback.
type OpenAI struct {
	APIKey         string `toml:"api_key"`
	BaseURL        string `toml:"base_url"`
	Model          string `toml:"model"`
	TimeoutSeconds int    `toml:"timeout_seconds"`
}

// FFmpeg configures the media tool.
type FFmpeg struct {
	Binary         string `toml:"binary"`
	ForceStyle     string `toml:"force_style"`
	TimeoutSeconds int    `toml:"timeout_seconds"`
}

// Ollama configures the translation model server.
type Ollama struct {
	BaseURL        string `toml:"base_url"`
	Model          string `toml:"model"`
	TimeoutSeconds int    `toml:"timeout_seconds"`
	RetryAttempts  int    `toml:"retry_attempts"`
}

// Logging configures log output.
type Logging struct {
	Level  string `toml:"level"`
	Format string `toml:"format"`
}

// Watch configures the optional inbox folder.
type Watch struct {
	InboxDir string `toml:"inbox_dir"`
}

// Housekeeping configures the startup sweep of scratch files.
type Housekeeping struct {
	PurgeOnStart       bool `toml:"purge_on_start"`
	UploadMaxAgeHours  int  `toml:"upload_max_age_hours"`
	OutputMaxAgeHours  int  `toml:"output_max_age_hours"`
	SubtitleMaxAgeDays int  `toml:"subtitle_max_age_days"`
}

// Config is the full application configuration.
type Config struct {
	Server       Server       `toml:"server"`
	Paths        Paths        `toml:"paths"`
	Store        Store        `toml:"store"`
	Project      Project      `toml:"project"`
	Upload       Upload       `toml:"upload"`
	Whisper      Whisper      `toml:"whisper"`
	OpenAI       OpenAI       `toml:"openai"`
	FFmpeg       FFmpeg       `toml:"ffmpeg"`
	Ollama       Ollama       `toml:"ollama"`
	Logging      Logging      `toml:"logging"`
	Watch        Watch        `toml:"watch"`
	Housekeeping Housekeeping `toml:"housekeeping"`
}

// Default returns the built-in configuration.
func Default() *Config {
	return &Config{
		Server: Server{Bind: DefaultBind, Port: DefaultPort},
		Paths:  Paths{DataDir: defaultDataDir()},
		Store:  Store{Backend: BackendJSON},
		Project: Project{
			SourceLanguage: "en",
			TargetLanguage: "fr",
		},
		Upload: Upload{MaxBytes: DefaultMaxUploadBytes},
		Whisper: Whisper{
			Binary:         "whisper",
			Model:          DefaultWhisperModel,
			Language:       DefaultWhisperLang,
			TimeoutSeconds: 1800,
		},
		OpenAI: OpenAI{
			Model:          DefaultOpenAIModel,
			TimeoutSeconds: 600,
		},
		FFmpeg: FFmpeg{
			Binary:         "ffmpeg",
			ForceStyle:     DefaultForceStyle,
			TimeoutSeconds: 3600,
		},
		Ollama: Ollama{
			BaseURL:        DefaultOllamaBaseURL,
			Model:          DefaultOllamaModel,
			TimeoutSeconds: 120,
			RetryAttempts:  2,
		},
		Logging: Logging{Level: DefaultLogLevel, Format: "json"},
		Housekeeping: Housekeeping{
			PurgeOnStart:       true,
			UploadMaxAgeHours:  1,
			OutputMaxAgeHours:  2,
			SubtitleMaxAgeDays: 0,
		},
	}
}

// Load builds a Config from defaults, the TOML file at path and the
// environment. An empty path means <data dir>/config.toml, which may be
// absent. An explicit path must exist.
func Load(path string) (*Config, error) {
	cfg := Default()

	explicit := path != ""
	if !explicit {
		dataDir := cfg.Paths.DataDir
		if dd := os.Getenv(EnvDataDir); dd != "" {
			dataDir = dd
		}
		path = filepath.Join(dataDir, ConfigFilename)
	}

	data, err := os.ReadFile(path)
	switch {
	case err == nil:
		if err := toml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("parse config %s: %w", path, err)
		}
	case errors.Is(err, fs.ErrNotExist) && !explicit:
	default:
		return nil, fmt.Errorf("read config %s: %w", path, err)
	}

	if err := cfg.applyEnv(); err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) applyEnv() error {
	for _, name := range []string{EnvPortLegacy, EnvPort} {
		p := os.Getenv(name)
		if p == "" {
			continue
		}
		port, err := strconv.Atoi(p)
		if err != nil {
			return fmt.Errorf("invalid %s: %w", name, err)
		}
		c.Server.Port = port
	}

	if h := os.Getenv(EnvHeadless); h != "" {
		headless, err := strconv.ParseBool(h)
		if err != nil {
			return fmt.Errorf("invalid %s: %w", EnvHeadless, err)
		}
		c.Server.Headless = headless
	}

	overrides := []struct {
		env string
		dst *string
	}{
		{EnvLogLevel, &c.Logging.Level},
		{EnvLogFormat, &c.Logging.Format},
		{EnvDataDir, &c.Paths.DataDir},
		{EnvStoreBackend, &c.Store.Backend},
		{EnvAuthToken, &c.Server.AuthToken},
		{EnvInboxDir, &c.Watch.InboxDir},
		{EnvOllamaBaseURL, &c.Ollama.BaseURL},
		{EnvOllamaModel, &c.Ollama.Model},
		{EnvWhisperModel, &c.Whisper.Model},
		{EnvWhisperLang, &c.Whisper.Language},
		{EnvWhisperBinary, &c.Whisper.Binary},
		{EnvFFmpegBinary, &c.FFmpeg.Binary},
		{EnvOpenAIKey, &c.OpenAI.APIKey},
		{EnvOpenAIBaseURL, &c.OpenAI.BaseURL},
	}
	for _, o := range overrides {
		if v := os.Getenv(o.env); v != "" {
			*o.dst = v
		}
	}
	return nil
}

// Validate checks ranges and fills zero values with defaults.
func (c *Config) Validate() error {
	if c.Server.Port < 1 || c.Server.Port > 65535 {
		return fmt.Errorf("invalid server.port %d: must be between 1 and 65535", c.Server.Port)
	}
	if c.Server.Bind == "" {
		c.Server.Bind = DefaultBind
	}
	if strings.TrimSpace(c.Paths.DataDir) == "" {
		return errors.New("paths.data_dir is required")
	}
	c.Paths.DataDir = expandHome(c.Paths.DataDir)
	if abs, err := filepath.Abs(c.Paths.DataDir); err == nil {
		c.Paths.DataDir = abs
	}
	c.Watch.InboxDir = expandHome(c.Watch.InboxDir)

	c.Store.Backend = strings.ToLower(strings.TrimSpace(c.Store.Backend))
	switch c.Store.Backend {
	case "":
		c.Store.Backend = BackendJSON
	case BackendJSON, BackendSQLite:
	default:
		return fmt.Errorf("invalid store.backend %q: want %q or %q", c.Store.Backend, BackendJSON, BackendSQLite)
	}

	if c.Upload.MaxBytes <= 0 {
		c.Upload.MaxBytes = DefaultMaxUploadBytes
	}
	if c.Ollama.BaseURL == "" {
		c.Ollama.BaseURL = DefaultOllamaBaseURL
	}
	c.Ollama.BaseURL = strings.TrimRight(c.Ollama.BaseURL, "/")
	if c.Ollama.Model == "" {
		c.Ollama.Model = DefaultOllamaModel
	}
	if c.Ollama.RetryAttempts <= 0 {
		c.Ollama.RetryAttempts = 1
	}
	if c.Whisper.Binary == "" {
		c.Whisper.Binary = "whisper"
	}
	if c.Whisper.Model == "" {
		c.Whisper.Model = DefaultWhisperModel
	}
	if c.FFmpeg.Binary == "" {
		c.FFmpeg.Binary = "ffmpeg"
	}
	if c.OpenAI.Model == "" {
		c.OpenAI.Model = DefaultOpenAIModel
	}
	if c.Project.SourceLanguage == "" {
		c.Project.SourceLanguage = "en"
	}
	if c.Project.TargetLanguage == "" {
		c.Project.TargetLanguage = "fr"
	}
	return nil
}

// Addr returns the listen address.
func (c *Config) Addr() string {
	return fmt.Sprintf("%s:%d", c.Server.Bind, c.Server.Port)
}

// DataDir returns the data directory path
func (c *Config) DataDir() string {
	return c.Paths.DataDir
}

// UploadsDir holds uploaded videos and scratch audio.
func (c *Config) UploadsDir() string {
	return filepath.Join(c.Paths.DataDir, "uploads")
}

// SubtitlesDir holds generated subtitle files.
func (c *Config) SubtitlesDir() string {
	return filepath.Join(c.Paths.DataDir, "subtitles")
}

// OutputDir holds subtitle-burned exports.
func (c *Config) OutputDir() string {
	return filepath.Join(c.Paths.DataDir, "output")
}

// LedgerPath returns the JSON project ledger path.
func (c *Config) LedgerPath() string {
	return filepath.Join(c.Paths.DataDir, LedgerFilename)
}

// DBPath returns the full path to the SQLite database file
func (c *Config) DBPath() string {
	return filepath.Join(c.Paths.DataDir, DBFilename)
}

// LockPath returns the single-instance lock file path.
func (c *Config) LockPath() string {
	return filepath.Join(c.Paths.DataDir, LockFilename)
}

func (c *Config) WhisperTimeout() time.Duration {
	return seconds(c.Whisper.TimeoutSeconds, 30*time.Minute)
}

func (c *Config) OpenAITimeout() time.Duration {
	return seconds(c.OpenAI.TimeoutSeconds, 10*time.Minute)
}

func (c *Config) FFmpegTimeout() time.Duration {
	return seconds(c.FFmpeg.TimeoutSeconds, time.Hour)
}

func (c *Config) OllamaTimeout() time.Duration {
	return seconds(c.Ollama.TimeoutSeconds, 2*time.Minute)
}

// OpenAIEnabled reports whether the transcription fallback is configured.
func (c *Config) OpenAIEnabled() bool {
	return strings.TrimSpace(c.OpenAI.APIKey) != ""
}

func seconds(v int, fallback time.Duration) time.Duration {
	if v <= 0 {
		return fallback
	}
	return time.Duration(v) * time.Second
}

// defaultDataDir returns the default data directory path
func defaultDataDir() string {
	home, err := os.UserHomeDir()
	if err != nil {
		// Fallback to current directory if home is not available
		return DefaultDataDir
	}
	return filepath.Join(home, DefaultDataDir)
}

func expandHome(path string) string {
	if path != "~" && !strings.HasPrefix(path, "~/") {
		return path
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return path
	}
	return filepath.Join(home, strings.TrimPrefix(path, "~"))
}

// Version information (set at build time via ldflags)
var (
	Version   = "0.1.0"
	BuildTime = "unknown"
	GitCommit = "unknown"
)
