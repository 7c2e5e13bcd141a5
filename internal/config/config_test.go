package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

// memBackend is an in-memory Backend for tests.
type memBackend struct {
	data map[string]any
}

func newMemBackend() *memBackend {
	return &memBackend{data: make(map[string]any)}
}

func (b *memBackend) GetString(key string) (string, bool, error) {
	v, ok := b.data[key]
	if !ok {
		return "", false, nil
	}
	return v.(string), true, nil
}

func (b *memBackend) GetInt(key string) (int, bool, error) {
	v, ok := b.data[key]
	if !ok {
		return 0, false, nil
	}
	return v.(int), true, nil
}

func (b *memBackend) SetString(key, val string) error {
	b.data[key] = val
	return nil
}

func (b *memBackend) SetInt(key string, val int) error {
	b.data[key] = val
	return nil
}

func (b *memBackend) Delete(key string) error {
	delete(b.data, key)
	return nil
}

func clearEnv(t *testing.T) {
	t.Helper()
	for _, s := range specs {
		if s.env != "" {
			t.Setenv(s.env, "")
		}
	}
}

func TestLoadDefaults(t *testing.T) {
	clearEnv(t)
	b := newMemBackend()

	cfg, err := loadWith(b)
	if err != nil {
		t.Fatalf("loadWith() error = %v", err)
	}

	if cfg.API.BaseURL != "https://api.coze.cn" {
		t.Errorf("BaseURL = %q", cfg.API.BaseURL)
	}
	if !cfg.Chat.Stream {
		t.Error("Stream default = false, want true")
	}
	if cfg.Chat.PollMaxAttempts != 150 {
		t.Errorf("PollMaxAttempts = %d, want 150", cfg.Chat.PollMaxAttempts)
	}
	if cfg.Auth.Mode != "token" {
		t.Errorf("Auth.Mode = %q, want token", cfg.Auth.Mode)
	}
}

func TestLoadMintsUserIDOnce(t *testing.T) {
	clearEnv(t)
	b := newMemBackend()

	cfg, err := loadWith(b)
	if err != nil {
		t.Fatal(err)
	}
	if cfg.API.UserID == "" {
		t.Fatal("UserID not minted on first load")
	}

	persisted, ok := b.data["api.user_id"]
	if !ok || persisted != cfg.API.UserID {
		t.Errorf("persisted user id = %v, want %q", persisted, cfg.API.UserID)
	}

	again, err := loadWith(b)
	if err != nil {
		t.Fatal(err)
	}
	if again.API.UserID != cfg.API.UserID {
		t.Errorf("second load minted a new user id: %q vs %q", again.API.UserID, cfg.API.UserID)
	}
}

func TestLoadBackendValues(t *testing.T) {
	clearEnv(t)
	b := newMemBackend()
	b.data["api.bot_id"] = "bot-42"
	b.data["chat.stream"] = "false"
	b.data["chat.poll_max_attempts"] = 7
	b.data["auth.redirect_port"] = 9000

	cfg, err := loadWith(b)
	if err != nil {
		t.Fatal(err)
	}

	if cfg.API.BotID != "bot-42" {
		t.Errorf("BotID = %q", cfg.API.BotID)
	}
	if cfg.Chat.Stream {
		t.Error("Stream = true, want false from backend")
	}
	if cfg.Chat.PollMaxAttempts != 7 {
		t.Errorf("PollMaxAttempts = %d, want 7", cfg.Chat.PollMaxAttempts)
	}
	if cfg.Auth.RedirectPort != 9000 {
		t.Errorf("RedirectPort = %d, want 9000", cfg.Auth.RedirectPort)
	}
}

func TestLoadEnvOverridesBackend(t *testing.T) {
	clearEnv(t)
	b := newMemBackend()
	b.data["api.bot_id"] = "from-file"
	t.Setenv("CHATBOX_API_BOT_ID", "from-env")
	t.Setenv("CHATBOX_AUTH_TOKEN", "secret-pat")

	cfg, err := loadWith(b)
	if err != nil {
		t.Fatal(err)
	}

	if cfg.API.BotID != "from-env" {
		t.Errorf("BotID = %q, want env value", cfg.API.BotID)
	}
	if cfg.Auth.Token != "secret-pat" {
		t.Errorf("Token = %q, want env value", cfg.Auth.Token)
	}
}

func TestLoadBadBoolKeepsDefault(t *testing.T) {
	clearEnv(t)
	b := newMemBackend()
	b.data["chat.stream"] = "not-a-bool"

	cfg, err := loadWith(b)
	if err != nil {
		t.Fatal(err)
	}
	if !cfg.Chat.Stream {
		t.Error("Stream = false, want default true on unparsable value")
	}
}

func TestIntervalFallback(t *testing.T) {
	cases := []struct {
		in   string
		want time.Duration
	}{
		{"2s", 2 * time.Second},
		{"500ms", 500 * time.Millisecond},
		{"garbage", 2 * time.Second},
		{"", 2 * time.Second},
		{"-3s", 2 * time.Second},
	}
	for _, tc := range cases {
		if got := (ChatConfig{PollInterval: tc.in}).Interval(); got != tc.want {
			t.Errorf("Interval(%q) = %v, want %v", tc.in, got, tc.want)
		}
	}
}

func TestShowAllSkipsSecrets(t *testing.T) {
	cfg := defaults()
	cfg.Auth.Token = "super-secret"

	for _, k := range ShowAll(cfg) {
		if k.Key == "auth.token" || strings.Contains(k.Value, "super-secret") {
			t.Errorf("secret leaked through ShowAll: %+v", k)
		}
	}
}

func TestSetKey(t *testing.T) {
	t.Setenv("XDG_CONFIG_HOME", t.TempDir())

	if err := SetKey("api.bot_id", "bot-7"); err != nil {
		t.Fatalf("SetKey() error = %v", err)
	}
	if _, err := os.Stat(filepath.Join(os.Getenv("XDG_CONFIG_HOME"), "chatbox", "config.json")); err != nil {
		t.Errorf("config file not written: %v", err)
	}

	if err := SetKey("auth.token", "pat"); err == nil {
		t.Error("SetKey(auth.token) = nil, want secret rejection")
	}
	if err := SetKey("no.such.key", "x"); err == nil {
		t.Error("SetKey(no.such.key) = nil, want unknown-key error")
	}
	if err := SetKey("chat.poll_max_attempts", "abc"); err == nil {
		t.Error("SetKey with non-integer value = nil, want error")
	}
}
