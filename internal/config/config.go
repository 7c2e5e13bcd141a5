package config

import (
	"time"

	"github.com/google/uuid"
)

type Config struct {
	API     APIConfig
	Chat    ChatConfig
	Auth    AuthConfig
	Storage StorageConfig
	Log     LogConfig
}

type APIConfig struct {
	BaseURL string
	BotID   string
	// UserID identifies this installation to the service. Generated once on
	// first run and persisted.
	UserID string
}

type ChatConfig struct {
	// Stream selects live event-stream delivery; when false the client
	// submits synchronously and polls for completion.
	Stream          bool
	PollInterval    string
	PollMaxAttempts int
}

type AuthConfig struct {
	Mode         string // "token" (static) or "oauth" (refreshable)
	ClientID     string
	RedirectPort int
	// Token seeds the static-token mode. Secret: environment only.
	Token string
}

type StorageConfig struct {
	DataDir string
}

type LogConfig struct {
	Level string
}

func defaults() Config {
	return Config{
		API: APIConfig{
			BaseURL: "https://api.coze.cn",
		},
		Chat: ChatConfig{
			Stream:          true,
			PollInterval:    "2s",
			PollMaxAttempts: 150,
		},
		Auth: AuthConfig{
			Mode:         "token",
			RedirectPort: 8533,
		},
		Storage: StorageConfig{
			DataDir: defaultDataDir(),
		},
		Log: LogConfig{
			Level: "info",
		},
	}
}

// Interval returns the parsed polling interval, falling back to 2s on a bad
// duration string.
func (c ChatConfig) Interval() time.Duration {
	d, err := time.ParseDuration(c.PollInterval)
	if err != nil || d <= 0 {
		return 2 * time.Second
	}
	return d
}

// Load reads configuration from the JSON file backend
// ($XDG_CONFIG_HOME/chatbox/config.json) with CHATBOX_* environment
// variables overriding backend values.
func Load() (Config, error) {
	return loadWith(newFileBackend())
}

func loadWith(b Backend) (Config, error) {
	cfg := defaults()

	if err := applyBackend(&cfg, b); err != nil {
		return Config{}, err
	}
	applyEnvOverrides(&cfg)

	// First run: mint a stable user id and remember it.
	if cfg.API.UserID == "" {
		cfg.API.UserID = uuid.NewString()
		if err := b.SetString("api.user_id", cfg.API.UserID); err != nil {
			return Config{}, err
		}
	}

	return cfg, nil
}
