package main

import (
	"fmt"

	"github.com/OctoberEnd/chatbox/internal/auth"
	"github.com/OctoberEnd/chatbox/internal/chat"
	"github.com/OctoberEnd/chatbox/internal/config"
	"github.com/OctoberEnd/chatbox/internal/coze"
	"github.com/OctoberEnd/chatbox/internal/storage"
	"github.com/OctoberEnd/chatbox/internal/upload"
)

// app bundles the wired components behind each command.
type app struct {
	cfg      config.Config
	store    *storage.Store
	creds    *auth.Manager
	client   *coze.Client
	orch     *chat.Orchestrator
	uploader *upload.Uploader
}

func buildApp() (*app, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, err
	}
	initLogging(cfg.Log.Level)

	store, err := storage.Open(cfg.Storage.DataDir)
	if err != nil {
		return nil, fmt.Errorf("opening storage: %w", err)
	}

	cred, err := resolveCredential(cfg, store)
	if err != nil {
		store.Close()
		return nil, err
	}

	creds := auth.NewManager(cred, cfg.Auth.ClientID, store, nil)
	client := coze.NewClient(cfg.API.BaseURL, creds.Token)
	creds.SetExchanger(client)

	orch := chat.New(client, creds, chat.Options{
		BotID:           cfg.API.BotID,
		UserID:          cfg.API.UserID,
		Stream:          cfg.Chat.Stream,
		PollInterval:    cfg.Chat.Interval(),
		PollMaxAttempts: cfg.Chat.PollMaxAttempts,
	})
	uploader := upload.New(client, creds, store)

	return &app{
		cfg:      cfg,
		store:    store,
		creds:    creds,
		client:   client,
		orch:     orch,
		uploader: uploader,
	}, nil
}

// resolveCredential picks the credential for this run. A static token from
// the environment or config wins; otherwise the stored pair from a previous
// login is used.
func resolveCredential(cfg config.Config, store *storage.Store) (auth.Credential, error) {
	if cfg.Auth.Mode != string(auth.ModeOAuth) {
		return auth.Credential{
			AccessToken: cfg.Auth.Token,
			Mode:        auth.ModeToken,
		}, nil
	}

	cred, ok, err := store.LoadCredential()
	if err != nil {
		return auth.Credential{}, fmt.Errorf("loading credential: %w", err)
	}
	if !ok {
		return auth.Credential{}, fmt.Errorf("no stored credential: run `chatbox login` first")
	}
	return cred, nil
}

func (a *app) Close() {
	if err := a.store.Close(); err != nil {
		printWarning("closing storage: %v", err)
	}
}
