// Package session owns credential storage, the authentication state machine,
// and background token renewal for the taskboard client. It is the only
// package that writes credentials; everything else reads them through a
// Store just before use, never caching a token across a network call.
package session

import (
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// Profile is the signed-in user's public identity as returned by the API.
type Profile struct {
	ID          string `json:"id"`
	DisplayName string `json:"name"`
	Email       string `json:"email"`
	AvatarURL   string `json:"avatar,omitempty"`
}

// Session is the authenticated identity for the current process. The two
// tokens and the profile are set and cleared together — a Session with only
// some fields populated is invalid.
type Session struct {
	AccessToken  string  `json:"access_token"`
	RefreshToken string  `json:"refresh_token"`
	Profile      Profile `json:"profile"`
}

// Valid reports whether the session carries both tokens and a profile ID.
func (s *Session) Valid() bool {
	return s != nil && s.AccessToken != "" && s.RefreshToken != "" && s.Profile.ID != ""
}

// AccessExpiry returns the expiry time of the access token, extracted from
// its JWT exp claim. The signature is deliberately not verified — the client
// has no signing key and only needs the timestamp to schedule renewal.
// Returns ok=false if the token is not a parseable JWT or has no exp claim;
// callers fall back to a configured interval in that case.
func (s *Session) AccessExpiry() (time.Time, bool) {
	if s == nil || s.AccessToken == "" {
		return time.Time{}, false
	}

	var claims jwt.RegisteredClaims

	parser := jwt.NewParser()
	if _, _, err := parser.ParseUnverified(s.AccessToken, &claims); err != nil {
		return time.Time{}, false
	}

	if claims.ExpiresAt == nil {
		return time.Time{}, false
	}

	return claims.ExpiresAt.Time, true
}
