package auth

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"

	"golang.org/x/sync/singleflight"

	"github.com/OctoberEnd/chatbox/internal/coze"
)

// ErrStaticToken reports an authorization failure under the static-token
// mode, which cannot be recovered by refreshing.
var ErrStaticToken = errors.New("access token rejected: set a valid token in the configuration (auth.token) or run `chatbox login`")

// Exchanger performs the refresh-token grant against the service.
// *coze.Client satisfies it.
type Exchanger interface {
	RefreshToken(ctx context.Context, clientID, refreshToken string) (*coze.TokenPair, error)
}

// Manager holds the live credential and coordinates refreshes. Concurrent
// callers that observe an auth failure share a single in-flight refresh
// instead of each racing the token endpoint.
type Manager struct {
	mu       sync.RWMutex
	cred     Credential
	clientID string
	store    Store
	exchange Exchanger
	sf       singleflight.Group
}

// NewManager creates a Manager seeded with cred. store may be nil for
// in-memory-only use (tests); exchange may be nil under ModeToken.
func NewManager(cred Credential, clientID string, store Store, exchange Exchanger) *Manager {
	return &Manager{
		cred:     cred,
		clientID: clientID,
		store:    store,
		exchange: exchange,
	}
}

// SetExchanger installs the refresh-token exchanger. The manager supplies
// the client's token source and the client performs the manager's refreshes,
// so one of the two has to be wired after construction.
func (m *Manager) SetExchanger(e Exchanger) {
	m.mu.Lock()
	m.exchange = e
	m.mu.Unlock()
}

// Token returns the current access token. Safe for use as a coze.TokenFunc.
func (m *Manager) Token() string {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.cred.AccessToken
}

// Credential returns a copy of the current credential.
func (m *Manager) Credential() Credential {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.cred
}

// SetCredential persists and installs a new credential, e.g. after login.
func (m *Manager) SetCredential(cred Credential) error {
	if m.store != nil {
		if err := m.store.SaveCredential(cred); err != nil {
			return fmt.Errorf("saving credential: %w", err)
		}
	}
	m.mu.Lock()
	m.cred = cred
	m.mu.Unlock()
	return nil
}

// Refresh renews the token pair after an authorization failure. Under
// ModeToken it fails immediately with ErrStaticToken. The new pair is
// persisted before Refresh returns so a replayed request never runs ahead
// of the stored credential.
func (m *Manager) Refresh(ctx context.Context) error {
	cred := m.Credential()
	if cred.Mode != ModeOAuth {
		return ErrStaticToken
	}
	m.mu.RLock()
	exchange := m.exchange
	m.mu.RUnlock()
	if exchange == nil {
		return errors.New("refresh not available: no token exchanger configured")
	}

	_, err, _ := m.sf.Do("refresh", func() (any, error) {
		pair, err := exchange.RefreshToken(ctx, m.clientID, cred.RefreshToken)
		if err != nil {
			return nil, err
		}
		next := Credential{
			AccessToken:  pair.AccessToken,
			RefreshToken: pair.RefreshToken,
			Mode:         ModeOAuth,
		}
		if err := m.SetCredential(next); err != nil {
			return nil, err
		}
		slog.Debug("access token refreshed")
		return nil, nil
	})
	return err
}
