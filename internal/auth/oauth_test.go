package auth

import (
	"net/url"
	"strings"
	"testing"
)

func TestChallengeS256KnownVector(t *testing.T) {
	// Verifier/challenge pair from RFC 7636 appendix B.
	verifier := "dBjftJeZ4CVP-mB92K27uhbUJU1p1r_wW1gFWFOEjXk"
	want := "E9Melhoa2OwvFrEMTJguCHaoeK1t8URWbuGJSstw-cM"

	if got := ChallengeS256(verifier); got != want {
		t.Errorf("ChallengeS256() = %q, want %q", got, want)
	}
}

func TestNewVerifierUnique(t *testing.T) {
	a, err := NewVerifier()
	if err != nil {
		t.Fatalf("NewVerifier() error = %v", err)
	}
	b, err := NewVerifier()
	if err != nil {
		t.Fatalf("NewVerifier() error = %v", err)
	}
	if a == b {
		t.Error("two verifiers are identical")
	}
	if strings.ContainsAny(a, "+/=") {
		t.Errorf("verifier %q is not URL-safe", a)
	}
}

func TestAuthorizeURL(t *testing.T) {
	raw := AuthorizeURL("https://api.example.com/", "client-1", "http://127.0.0.1:8533/callback", "st8", "chal")

	u, err := url.Parse(raw)
	if err != nil {
		t.Fatalf("parsing authorize URL: %v", err)
	}
	if u.Path != "/api/permission/oauth2/authorize" {
		t.Errorf("path = %q", u.Path)
	}
	q := u.Query()
	for key, want := range map[string]string{
		"client_id":             "client-1",
		"response_type":         "code",
		"redirect_uri":          "http://127.0.0.1:8533/callback",
		"state":                 "st8",
		"code_challenge":        "chal",
		"code_challenge_method": "S256",
	} {
		if got := q.Get(key); got != want {
			t.Errorf("%s = %q, want %q", key, got, want)
		}
	}
}
