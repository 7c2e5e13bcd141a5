package config

import (
	"fmt"
	"os"
	"strconv"
)

type keyType int

const (
	kString keyType = iota
	kInt
	kBool
)

type keySpec struct {
	key     string
	typ     keyType
	env     string
	secret  bool
	apply   func(cfg *Config, v any)
	extract func(cfg Config) any
}

var specs = []keySpec{
	{
		key: "api.base_url", typ: kString, env: "CHATBOX_API_BASE_URL",
		apply:   func(cfg *Config, v any) { cfg.API.BaseURL = v.(string) },
		extract: func(cfg Config) any { return cfg.API.BaseURL },
	},
	{
		key: "api.bot_id", typ: kString, env: "CHATBOX_API_BOT_ID",
		apply:   func(cfg *Config, v any) { cfg.API.BotID = v.(string) },
		extract: func(cfg Config) any { return cfg.API.BotID },
	},
	{
		key: "api.user_id", typ: kString, env: "CHATBOX_API_USER_ID",
		apply:   func(cfg *Config, v any) { cfg.API.UserID = v.(string) },
		extract: func(cfg Config) any { return cfg.API.UserID },
	},
	{
		key: "chat.stream", typ: kBool, env: "CHATBOX_CHAT_STREAM",
		apply:   func(cfg *Config, v any) { cfg.Chat.Stream = v.(bool) },
		extract: func(cfg Config) any { return cfg.Chat.Stream },
	},
	{
		key: "chat.poll_interval", typ: kString, env: "CHATBOX_CHAT_POLL_INTERVAL",
		apply:   func(cfg *Config, v any) { cfg.Chat.PollInterval = v.(string) },
		extract: func(cfg Config) any { return cfg.Chat.PollInterval },
	},
	{
		key: "chat.poll_max_attempts", typ: kInt, env: "CHATBOX_CHAT_POLL_MAX_ATTEMPTS",
		apply:   func(cfg *Config, v any) { cfg.Chat.PollMaxAttempts = v.(int) },
		extract: func(cfg Config) any { return cfg.Chat.PollMaxAttempts },
	},
	{
		key: "auth.mode", typ: kString, env: "CHATBOX_AUTH_MODE",
		apply:   func(cfg *Config, v any) { cfg.Auth.Mode = v.(string) },
		extract: func(cfg Config) any { return cfg.Auth.Mode },
	},
	{
		key: "auth.client_id", typ: kString, env: "CHATBOX_AUTH_CLIENT_ID",
		apply:   func(cfg *Config, v any) { cfg.Auth.ClientID = v.(string) },
		extract: func(cfg Config) any { return cfg.Auth.ClientID },
	},
	{
		key: "auth.redirect_port", typ: kInt, env: "CHATBOX_AUTH_REDIRECT_PORT",
		apply:   func(cfg *Config, v any) { cfg.Auth.RedirectPort = v.(int) },
		extract: func(cfg Config) any { return cfg.Auth.RedirectPort },
	},
	{
		key: "auth.token", typ: kString, env: "CHATBOX_AUTH_TOKEN",
		secret:  true,
		apply:   func(cfg *Config, v any) { cfg.Auth.Token = v.(string) },
		extract: func(cfg Config) any { return cfg.Auth.Token },
	},
	{
		key: "storage.data_dir", typ: kString, env: "CHATBOX_STORAGE_DATA_DIR",
		apply:   func(cfg *Config, v any) { cfg.Storage.DataDir = v.(string) },
		extract: func(cfg Config) any { return cfg.Storage.DataDir },
	},
	{
		key: "log.level", typ: kString, env: "CHATBOX_LOG_LEVEL",
		apply:   func(cfg *Config, v any) { cfg.Log.Level = v.(string) },
		extract: func(cfg Config) any { return cfg.Log.Level },
	},
}

func applyBackend(cfg *Config, b Backend) error {
	for _, s := range specs {
		if s.secret {
			continue
		}
		switch s.typ {
		case kString:
			v, ok, err := b.GetString(s.key)
			if err != nil {
				return fmt.Errorf("reading %s: %w", s.key, err)
			}
			if ok {
				s.apply(cfg, v)
			}
		case kInt:
			v, ok, err := b.GetInt(s.key)
			if err != nil {
				return fmt.Errorf("reading %s: %w", s.key, err)
			}
			if ok {
				s.apply(cfg, v)
			}
		case kBool:
			v, ok, err := b.GetString(s.key)
			if err != nil {
				return fmt.Errorf("reading %s: %w", s.key, err)
			}
			if ok && v != "" {
				if bv, err := strconv.ParseBool(v); err == nil {
					s.apply(cfg, bv)
				} else {
					fmt.Fprintf(os.Stderr, "[WARN] could not parse bool from config key %s=%q: %v. Using default value.\n", s.key, v, err)
				}
			}
		}
	}
	return nil
}

func applyEnvOverrides(cfg *Config) {
	for _, s := range specs {
		if s.env == "" {
			continue
		}
		raw := os.Getenv(s.env)
		if raw == "" {
			continue
		}
		switch s.typ {
		case kString:
			s.apply(cfg, raw)
		case kInt:
			if i, err := strconv.Atoi(raw); err == nil {
				s.apply(cfg, i)
			} else {
				fmt.Fprintf(os.Stderr, "[WARN] could not parse integer from env var %s=%q: %v. Using default value.\n", s.env, raw, err)
			}
		case kBool:
			if b, err := strconv.ParseBool(raw); err == nil {
				s.apply(cfg, b)
			} else {
				fmt.Fprintf(os.Stderr, "[WARN] could not parse bool from env var %s=%q: %v. Using default value.\n", s.env, raw, err)
			}
		}
	}
}
