package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/spf13/cobra"

	"github.com/OctoberEnd/chatbox/internal/auth"
	"github.com/OctoberEnd/chatbox/internal/config"
	"github.com/OctoberEnd/chatbox/internal/coze"
	"github.com/OctoberEnd/chatbox/internal/storage"
)

// loginTimeout bounds how long the loopback server waits for the browser
// to come back with an authorization code.
const loginTimeout = 5 * time.Minute

var loginCmd = &cobra.Command{
	Use:   "login",
	Short: "Authorize with the chat service (PKCE)",
	RunE: func(cmd *cobra.Command, args []string) error {
		return runLogin()
	},
}

type callbackResult struct {
	code  string
	state string
	err   string
}

func runLogin() error {
	cfg, err := config.Load()
	if err != nil {
		return err
	}
	initLogging(cfg.Log.Level)
	if cfg.Auth.ClientID == "" {
		return fmt.Errorf("no OAuth client configured: run `chatbox config set auth.client_id <id>`")
	}

	verifier, err := auth.NewVerifier()
	if err != nil {
		return err
	}
	state, err := auth.NewState()
	if err != nil {
		return err
	}
	redirectURI := fmt.Sprintf("http://127.0.0.1:%d/callback", cfg.Auth.RedirectPort)
	authURL := auth.AuthorizeURL(cfg.API.BaseURL, cfg.Auth.ClientID, redirectURI, state, auth.ChallengeS256(verifier))

	resultCh := make(chan callbackResult, 1)
	r := chi.NewRouter()
	r.Get("/callback", func(w http.ResponseWriter, req *http.Request) {
		q := req.URL.Query()
		res := callbackResult{
			code:  q.Get("code"),
			state: q.Get("state"),
			err:   q.Get("error"),
		}
		if res.err != "" || res.code == "" {
			http.Error(w, "authorization failed, return to the terminal", http.StatusBadRequest)
		} else {
			fmt.Fprintln(w, "Authorized. You can close this tab and return to the terminal.")
		}
		select {
		case resultCh <- res:
		default:
		}
	})

	srv := &http.Server{
		Addr:    fmt.Sprintf("127.0.0.1:%d", cfg.Auth.RedirectPort),
		Handler: r,
	}
	errCh := make(chan error, 1)
	go func() {
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errCh <- err
		}
	}()
	defer func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		srv.Shutdown(shutdownCtx)
	}()

	printStep("Open this URL in your browser to authorize:")
	fmt.Println(authURL)

	var res callbackResult
	select {
	case res = <-resultCh:
	case err := <-errCh:
		return fmt.Errorf("callback server: %w", err)
	case <-time.After(loginTimeout):
		return errors.New("timed out waiting for authorization")
	}

	if res.err != "" {
		return fmt.Errorf("authorization denied: %s", res.err)
	}
	if res.state != state {
		return errors.New("state mismatch in callback, aborting")
	}

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	client := coze.NewClient(cfg.API.BaseURL, nil)
	pair, err := client.ExchangeCode(ctx, cfg.Auth.ClientID, res.code, verifier, redirectURI)
	if err != nil {
		return fmt.Errorf("exchanging code: %w", err)
	}

	store, err := storage.Open(cfg.Storage.DataDir)
	if err != nil {
		return fmt.Errorf("opening storage: %w", err)
	}
	defer store.Close()

	if err := store.SaveCredential(auth.Credential{
		AccessToken:  pair.AccessToken,
		RefreshToken: pair.RefreshToken,
		Mode:         auth.ModeOAuth,
	}); err != nil {
		return fmt.Errorf("saving credential: %w", err)
	}
	if err := config.SetKey("auth.mode", string(auth.ModeOAuth)); err != nil {
		return err
	}

	printSuccess("Logged in")
	return nil
}
