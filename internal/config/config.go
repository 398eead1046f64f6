// Package config handles LocalAgent configuration loading.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// DefaultSearchPaths returns the config file search order.
// An explicit path (from -config flag) is checked first.
// Then: ./config.yaml, ~/.config/localagent/config.yaml, /etc/localagent/config.yaml.
func DefaultSearchPaths() []string {
	paths := []string{"config.yaml"}

	if home, err := os.UserHomeDir(); err == nil {
		paths = append(paths, filepath.Join(home, ".config", "localagent", "config.yaml"))
	}

	paths = append(paths, "/etc/localagent/config.yaml")
	return paths
}

// FindConfig locates a config file. If explicit is non-empty, it must exist.
// Otherwise, searches DefaultSearchPaths and returns the first that exists.
// Returns the path found, or an error if nothing was found.
func FindConfig(explicit string) (string, error) {
	if explicit != "" {
		if _, err := os.Stat(explicit); err != nil {
			return "", fmt.Errorf("config file not found: %s", explicit)
		}
		return explicit, nil
	}

	for _, p := range DefaultSearchPaths() {
		if _, err := os.Stat(p); err == nil {
			return p, nil
		}
	}

	return "", fmt.Errorf("no config file found (searched: %v)", DefaultSearchPaths())
}

// Config holds all LocalAgent configuration.
type Config struct {
	Listen       ListenConfig    `yaml:"listen"`
	Models       ModelsConfig    `yaml:"models"`
	Context      ContextConfig   `yaml:"context"`
	Voice        VoiceConfig     `yaml:"voice"`
	Telephony    TelephonyConfig `yaml:"telephony"`
	MQTT         MQTTConfig      `yaml:"mqtt"`
	Secrets      SecretsConfig   `yaml:"secrets"`
	Contacts     ContactsConfig  `yaml:"contacts"`
	DataDir      string          `yaml:"data_dir"`
	IdentityFile string          `yaml:"identity_file"`
	LogLevel     string          `yaml:"log_level"`
	LogFormat    string          `yaml:"log_format"` // text (default) or json
}

// ListenConfig defines the API server settings.
type ListenConfig struct {
	Address     string   `yaml:"address"` // Bind address (default: "" = all interfaces)
	Port        int      `yaml:"port"`
	CORSOrigins []string `yaml:"cors_origins"`
}

// ModelsConfig points at the chat-completion runtime. Any server that
// speaks the OpenAI chat completions dialect works, including Ollama's
// /v1 compatibility layer.
type ModelsConfig struct {
	BaseURL    string `yaml:"base_url"`
	APIKey     string `yaml:"api_key"`
	Default    string `yaml:"default"`
	TimeoutSec int    `yaml:"timeout_sec"`
}

// Timeout returns the per-call completion timeout.
func (m ModelsConfig) Timeout() time.Duration {
	if m.TimeoutSec <= 0 {
		return 5 * time.Minute
	}
	return time.Duration(m.TimeoutSec) * time.Second
}

// ContextConfig controls how much state is pulled into each turn.
type ContextConfig struct {
	// MemoryWindow is how many recent memory facts are injected into
	// the system message.
	MemoryWindow int `yaml:"memory_window"`
	// MemoryListWindow caps the memory listing endpoint.
	MemoryListWindow int `yaml:"memory_list_window"`
	// CompressThreshold is the turn count above which the middle of the
	// history is replaced by a compression notice.
	CompressThreshold int `yaml:"compress_threshold"`
	KeepHead          int `yaml:"keep_head"`
	KeepTail          int `yaml:"keep_tail"`
	// HydrateLimit is how many persisted turns are loaded when a
	// session is first touched after startup.
	HydrateLimit int `yaml:"hydrate_limit"`
}

// VoiceConfig configures ElevenLabs text-to-speech.
type VoiceConfig struct {
	APIKey  string            `yaml:"api_key"`
	BaseURL string            `yaml:"base_url"`
	Voices  map[string]string `yaml:"voices"` // language code -> voice ID
}

// Configured reports whether speech synthesis can be used.
func (v VoiceConfig) Configured() bool {
	return v.APIKey != ""
}

// TelephonyConfig configures Twilio outbound calling.
type TelephonyConfig struct {
	AccountSID string `yaml:"account_sid"`
	AuthToken  string `yaml:"auth_token"`
	FromNumber string `yaml:"from_number"`
	WebhookURL string `yaml:"webhook_url"`
	BaseURL    string `yaml:"base_url"`
}

// Configured reports whether outbound calls can be placed.
func (t TelephonyConfig) Configured() bool {
	return t.AccountSID != "" && t.AuthToken != "" && t.FromNumber != ""
}

// MQTTConfig configures the optional MQTT activity sink.
type MQTTConfig struct {
	Broker      string `yaml:"broker"` // e.g. mqtt://localhost:1883
	Username    string `yaml:"username"`
	Password    string `yaml:"password"`
	TopicPrefix string `yaml:"topic_prefix"`
	ClientID    string `yaml:"client_id"`
}

// Configured reports whether an MQTT broker is set.
func (m MQTTConfig) Configured() bool {
	return m.Broker != ""
}

// SecretsConfig holds the key material for sealing stored secrets.
type SecretsConfig struct {
	// Key is a passphrase; it is stretched to a 32-byte secretbox key.
	Key string `yaml:"key"`
}

// ContactsConfig points at the address book used by lookup_contact.
type ContactsConfig struct {
	VCardFile string `yaml:"vcard_file"`
}

// Load reads configuration from a YAML file. Values not present in the
// file keep the defaults from [Default].
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	// Expand environment variables
	expanded := os.ExpandEnv(string(data))

	cfg := Default()
	if err := yaml.Unmarshal([]byte(expanded), cfg); err != nil {
		return nil, err
	}

	return cfg, nil
}

// Default returns a default configuration.
func Default() *Config {
	return &Config{
		Listen: ListenConfig{
			Port:        8000,
			CORSOrigins: []string{"http://localhost:3000", "http://localhost:3001", "http://localhost:3002"},
		},
		Models: ModelsConfig{
			BaseURL:    "http://localhost:11434/v1",
			APIKey:     "ollama",
			Default:    "llama3.2",
			TimeoutSec: 300,
		},
		Context: ContextConfig{
			MemoryWindow:      20,
			MemoryListWindow:  100,
			CompressThreshold: 30,
			KeepHead:          2,
			KeepTail:          24,
			HydrateLimit:      40,
		},
		Voice: VoiceConfig{
			BaseURL: "https://api.elevenlabs.io",
			Voices: map[string]string{
				"en": "21m00Tcm4TlvDq8ikWAM",
				"ar": "EXAVITQu4vr4xnSDxMaL",
			},
		},
		Telephony: TelephonyConfig{
			BaseURL: "https://api.twilio.com",
		},
		MQTT: MQTTConfig{
			TopicPrefix: "localagent",
			ClientID:    "localagent",
		},
		DataDir: "data",
	}
}

// Validate checks the configuration for values that would make the
// engine misbehave at runtime.
func (c *Config) Validate() error {
	if _, err := ParseLogLevel(c.LogLevel); err != nil {
		return err
	}
	switch strings.ToLower(c.LogFormat) {
	case "", "text", "json":
	default:
		return fmt.Errorf("unknown log_format %q (valid: text, json)", c.LogFormat)
	}
	if c.Listen.Port <= 0 || c.Listen.Port > 65535 {
		return fmt.Errorf("listen.port %d out of range", c.Listen.Port)
	}
	if c.DataDir == "" {
		return fmt.Errorf("data_dir is required")
	}
	if c.Models.BaseURL == "" {
		return fmt.Errorf("models.base_url is required")
	}

	cc := c.Context
	if cc.MemoryWindow <= 0 || cc.MemoryListWindow <= 0 || cc.HydrateLimit <= 0 {
		return fmt.Errorf("context windows must be positive")
	}
	if cc.KeepHead < 0 || cc.KeepTail < 0 {
		return fmt.Errorf("context.keep_head and context.keep_tail must not be negative")
	}
	if cc.KeepHead+cc.KeepTail >= cc.CompressThreshold {
		return fmt.Errorf("context.keep_head + context.keep_tail (%d) must be below compress_threshold (%d)",
			cc.KeepHead+cc.KeepTail, cc.CompressThreshold)
	}
	return nil
}
