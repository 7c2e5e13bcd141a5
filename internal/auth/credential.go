// Package auth owns the service credential: a static operator token or a
// refreshable OAuth access/refresh pair, persisted through a pluggable store.
package auth

// Mode selects how credentials are obtained and whether they can be renewed.
type Mode string

const (
	// ModeToken is a fixed personal access token supplied by the operator.
	// An authorization failure under this mode is terminal.
	ModeToken Mode = "token"
	// ModeOAuth is an access/refresh token pair obtained via the OAuth
	// authorization-code flow; an expired access token can be refreshed.
	ModeOAuth Mode = "oauth"
)

// Credential is the current token material.
type Credential struct {
	AccessToken  string
	RefreshToken string
	Mode         Mode
}

// Store persists credentials between runs. Implementations must write the
// access and refresh tokens together; a partially updated pair is unusable.
type Store interface {
	// LoadCredential returns the stored credential and whether one exists.
	LoadCredential() (Credential, bool, error)
	SaveCredential(Credential) error
}
