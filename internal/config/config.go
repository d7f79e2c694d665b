// Package config loads and saves pipeline-server configuration.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"runtime"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/vidflow/pipeline/internal/crypto"
)

// encryptedPrefix marks a config value encrypted at rest with Encrypt;
// Load decrypts any field carrying it using pinEnvVar.
const encryptedPrefix = "enc:"

// pinEnvVar names the environment variable holding the passphrase used
// to decrypt encrypted credential fields. A config file with no "enc:"
// fields needs no passphrase set.
const pinEnvVar = "PIPELINE_CONFIG_PIN"

const (
	ConfigFileName = "config.yml"
	AppDirName     = "pipeline-server"
)

// ConfigDir returns the standard config directory for the service.
// Windows: %APPDATA%\pipeline-server\
// macOS/Linux: ~/.config/pipeline-server/
func ConfigDir() (string, error) {
	if runtime.GOOS == "windows" {
		if appData := os.Getenv("APPDATA"); appData != "" {
			return filepath.Join(appData, AppDirName), nil
		}
	}

	home, err := os.UserHomeDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(home, ".config", AppDirName), nil
}

// ConfigPath returns the path to the config file.
func ConfigPath() (string, error) {
	dir, err := ConfigDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(dir, ConfigFileName), nil
}

// Config is the root configuration for the pipeline control plane.
type Config struct {
	// StorageDir is the base directory under which workflows, jobs, and
	// artifacts are persisted (workflows/, jobs/, artifacts/ subdirs).
	StorageDir string `yaml:"storage_dir,omitempty"`

	Server ServerConfig `yaml:"server,omitempty"`
	Jobs   JobsConfig   `yaml:"jobs,omitempty"`

	Recognizer RecognizerConfig `yaml:"recognizer,omitempty"`
	Enhancer   EnhancerConfig   `yaml:"enhancer,omitempty"`
}

// ServerConfig holds HTTP server settings.
type ServerConfig struct {
	// Port is the HTTP listen port (default: 8080).
	Port int `yaml:"port,omitempty"`

	// APIKey, if set, is required via the X-API-Key header on every
	// route except /health.
	APIKey string `yaml:"api_key,omitempty"`
}

// JobsConfig controls the executor's worker pools and job lifecycle.
type JobsConfig struct {
	// Concurrency is the number of concurrent background jobs allowed per
	// operation kind (upload_video, extract_audio, transcribe_audio,
	// enhance_transcription). Missing entries fall back to
	// DefaultConcurrency.
	Concurrency map[string]int `yaml:"concurrency,omitempty"`

	// Timeout is the max wall-clock duration allowed per operation kind.
	// Missing entries fall back to DefaultTimeout.
	Timeout map[string]time.Duration `yaml:"timeout,omitempty"`

	// TTL is how long a terminal job record survives before the sweep
	// deletes it.
	TTL time.Duration `yaml:"ttl,omitempty"`

	// SweepInterval is how often the background sweep runs.
	SweepInterval time.Duration `yaml:"sweep_interval,omitempty"`

	// MaxArtifactBytes caps the size of a single downloaded/stored
	// artifact; a download exceeding it fails with SOURCE_TOO_LARGE.
	MaxArtifactBytes int64 `yaml:"max_artifact_bytes,omitempty"`
}

// RecognizerConfig configures the speech-to-text collaborators.
type RecognizerConfig struct {
	// ModelsDir is where local whisper-style models are expected to live.
	ModelsDir string `yaml:"models_dir,omitempty"`

	// LocalBinaryPath is the whisper.cpp-style CLI invoked by the local
	// recognizer. Defaults to "whisper-cli" resolved via PATH.
	LocalBinaryPath string `yaml:"local_binary_path,omitempty"`

	// OpenAIAPIKey is the cloud recognizer's API key, optionally
	// encrypted with Encrypt (see internal/crypto), in which case it is
	// prefixed "enc:" and decrypted with PIN at load time.
	OpenAIAPIKey string `yaml:"openai_api_key,omitempty"`

	// AzureBaseURL is the Azure OpenAI endpoint the cloud recognizer
	// uses when a transcribe request sets use_azure. Setting it alone
	// does not route requests away from api.openai.com.
	AzureBaseURL string `yaml:"azure_base_url,omitempty"`

	// FFmpegPath is the path to the ffmpeg binary used for audio
	// extraction (the demux collaborator). Defaults to "ffmpeg" on PATH.
	FFmpegPath string `yaml:"ffmpeg_path,omitempty"`
}

// EnhancerConfig configures the text-enhancement collaborator.
type EnhancerConfig struct {
	// Provider selects which enhancer implementation to use:
	// "anthropic" (default) or "openai_compatible".
	Provider string `yaml:"provider,omitempty"`

	AnthropicAPIKey string `yaml:"anthropic_api_key,omitempty"`
	AnthropicModel  string `yaml:"anthropic_model,omitempty"`

	OpenAICompatibleAPIKey  string `yaml:"openai_compatible_api_key,omitempty"`
	OpenAICompatibleBaseURL string `yaml:"openai_compatible_base_url,omitempty"`
	OpenAICompatibleModel   string `yaml:"openai_compatible_model,omitempty"`
}

const (
	DefaultConcurrency = 4
	DefaultTimeout     = 10 * time.Minute
	DefaultJobTTL      = 24 * time.Hour
	DefaultSweep       = 15 * time.Minute
	DefaultMaxArtifact = 2 << 30 // 2 GiB
)

// DefaultConfig returns a config with sensible defaults.
func DefaultConfig() *Config {
	return &Config{
		StorageDir: DefaultStorageDir(),
		Server: ServerConfig{
			Port: 8080,
		},
		Jobs: JobsConfig{
			Concurrency:      map[string]int{},
			Timeout:          map[string]time.Duration{},
			TTL:              DefaultJobTTL,
			SweepInterval:    DefaultSweep,
			MaxArtifactBytes: DefaultMaxArtifact,
		},
		Recognizer: RecognizerConfig{
			FFmpegPath:      "ffmpeg",
			LocalBinaryPath: "whisper-cli",
		},
		Enhancer: EnhancerConfig{
			Provider: "anthropic",
		},
	}
}

// ConcurrencyFor returns the configured concurrency for an operation,
// falling back to DefaultConcurrency.
func (c *Config) ConcurrencyFor(operation string) int {
	if n, ok := c.Jobs.Concurrency[operation]; ok && n > 0 {
		return n
	}
	return DefaultConcurrency
}

// TimeoutFor returns the configured timeout for an operation, falling
// back to DefaultTimeout.
func (c *Config) TimeoutFor(operation string) time.Duration {
	if d, ok := c.Jobs.Timeout[operation]; ok && d > 0 {
		return d
	}
	return DefaultTimeout
}

// DefaultStorageDir returns the default on-disk location for workflow,
// job, and artifact state.
func DefaultStorageDir() string {
	if IsRunningInDocker() {
		return "/var/lib/pipeline-server"
	}

	home, err := os.UserHomeDir()
	if err != nil {
		return "./pipeline-data"
	}
	return filepath.Join(home, ".local", "share", AppDirName)
}

// IsRunningInDocker detects if we're running inside a container.
func IsRunningInDocker() bool {
	if _, err := os.Stat("/.dockerenv"); err == nil {
		return true
	}
	if data, err := os.ReadFile("/proc/1/cgroup"); err == nil {
		content := string(data)
		if strings.Contains(content, "docker") || strings.Contains(content, "containerd") {
			return true
		}
	}
	if os.Getenv("KUBERNETES_SERVICE_HOST") != "" {
		return true
	}
	return false
}

// Exists checks if the config file exists.
func Exists() bool {
	path, err := ConfigPath()
	if err != nil {
		return false
	}
	_, err = os.Stat(path)
	return err == nil
}

// Load reads the config from the standard config path.
func Load() (*Config, error) {
	path, err := ConfigPath()
	if err != nil {
		return nil, err
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("config file not found: %w", err)
	}

	cfg := DefaultConfig()
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("failed to parse %s: %w", path, err)
	}

	cfg.StorageDir = expandPath(cfg.StorageDir)
	if err := decryptCredentials(cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}

// encryptedField names a Config field for crypto's additional
// authenticated data binding, pairing that name with a pointer to the
// in-place string so decryptCredentials/EncryptCredential never have to
// repeat the field list.
type encryptedField struct {
	name  string
	value *string
}

func encryptedFields(cfg *Config) []encryptedField {
	return []encryptedField{
		{"server.api_key", &cfg.Server.APIKey},
		{"recognizer.openai_api_key", &cfg.Recognizer.OpenAIAPIKey},
		{"enhancer.anthropic_api_key", &cfg.Enhancer.AnthropicAPIKey},
		{"enhancer.openai_compatible_api_key", &cfg.Enhancer.OpenAICompatibleAPIKey},
	}
}

// decryptCredentials decrypts every "enc:"-prefixed credential field in
// place using the passphrase from pinEnvVar, bound to its own field
// name. Fields without the prefix are left untouched, so plaintext
// credentials (e.g. injected via env/orchestrator secrets at deploy
// time) keep working without a passphrase configured.
func decryptCredentials(cfg *Config) error {
	var passphrase string
	for _, f := range encryptedFields(cfg) {
		if !strings.HasPrefix(*f.value, encryptedPrefix) {
			continue
		}
		if passphrase == "" {
			passphrase = os.Getenv(pinEnvVar)
			if passphrase == "" {
				return fmt.Errorf("config has encrypted credentials but %s is not set", pinEnvVar)
			}
		}
		plain, err := crypto.Decrypt(f.name, strings.TrimPrefix(*f.value, encryptedPrefix), passphrase)
		if err != nil {
			return fmt.Errorf("failed to decrypt %s: %w", f.name, err)
		}
		*f.value = plain
	}
	return nil
}

// EncryptCredential prepares a plaintext secret for storage under the
// named config field (one of encryptedFields' names, e.g.
// "enhancer.anthropic_api_key"), encrypting it with the given
// passphrase and adding the marker decryptCredentials looks for on
// load.
func EncryptCredential(field, plaintext, passphrase string) (string, error) {
	ciphertext, err := crypto.Encrypt(field, plaintext, passphrase)
	if err != nil {
		return "", err
	}
	return encryptedPrefix + ciphertext, nil
}

// expandPath expands a leading "~" to the user's home directory.
func expandPath(path string) string {
	if path == "" {
		return ""
	}
	if strings.HasPrefix(path, "~") {
		if len(path) == 1 || path[1] == '/' || path[1] == '\\' {
			home, err := os.UserHomeDir()
			if err == nil {
				sub := strings.TrimPrefix(path[1:], string(filepath.Separator))
				return filepath.Join(home, sub)
			}
		}
	}
	return path
}

// Save writes the config to the standard config path.
func Save(cfg *Config) error {
	data, err := yaml.Marshal(cfg)
	if err != nil {
		return fmt.Errorf("failed to serialize config: %w", err)
	}

	path, err := ConfigPath()
	if err != nil {
		return fmt.Errorf("failed to get config path: %w", err)
	}

	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}

	header := "# pipeline-server configuration file\n\n"
	return os.WriteFile(path, []byte(header+string(data)), 0o644)
}

// LoadOrDefault loads config if it exists, otherwise returns defaults.
func LoadOrDefault() *Config {
	cfg, err := Load()
	if err != nil {
		return DefaultConfig()
	}
	return cfg
}
