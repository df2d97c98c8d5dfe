// Package identity describes the decentralized sign-in provider consumed by the
// blog store, together with two implementations: Static, a fixed in-memory
// session for tests and the CLI, and JWTSession, which keeps the session as an
// HMAC-signed token.
package identity

import (
	"context"
	"errors"
)

var (
	// ErrNotSignedIn is returned when user data is requested without a session.
	ErrNotSignedIn = errors.New("identity: user is not signed in")
	// ErrNoPendingSignIn is returned by HandlePendingSignIn when nothing is pending.
	ErrNoPendingSignIn = errors.New("identity: no pending sign-in")
	// ErrInvalidToken is returned for tokens that fail verification.
	ErrInvalidToken = errors.New("identity: invalid token")
)

// Provider is the identity service the store delegates authentication to.
type Provider interface {
	IsUserSignedIn() bool
	IsSignInPending() bool
	// HandlePendingSignIn completes a sign-in started by RedirectToSignIn and
	// returns the signed-in user's data.
	HandlePendingSignIn(ctx context.Context) (*UserData, error)
	LoadUserData() (*UserData, error)
	// RedirectToSignIn returns the URL the user must visit to authenticate.
	RedirectToSignIn(redirectURI, manifestURI string, scopes []string) (string, error)
	SignUserOut(redirectURL string) error
}

// Image is one profile picture entry.
type Image struct {
	ContentURL string `json:"contentUrl"`
}

// Profile is the public profile attached to a user.
type Profile struct {
	Name        string  `json:"name,omitempty"`
	Description string  `json:"description,omitempty"`
	Image       []Image `json:"image,omitempty"`
}

// UserData is what the provider knows about a signed-in user.
type UserData struct {
	Username string  `json:"username"`
	Profile  Profile `json:"profile"`
}

// Person wraps a profile with accessors that tolerate missing fields.
type Person struct {
	profile Profile
}

// NewPerson builds a Person from a profile.
func NewPerson(p Profile) *Person {
	images := append([]Image(nil), p.Image...)
	p.Image = images
	return &Person{profile: p}
}

// Profile returns a copy of the wrapped profile.
func (p *Person) Profile() Profile {
	if p == nil {
		return Profile{}
	}
	out := p.profile
	out.Image = append([]Image(nil), p.profile.Image...)
	return out
}

// Name returns the profile name, or "" when unset.
func (p *Person) Name() string {
	if p == nil {
		return ""
	}
	return p.profile.Name
}

// Description returns the profile description, or "".
func (p *Person) Description() string {
	if p == nil {
		return ""
	}
	return p.profile.Description
}

// AvatarURL returns the first image URL, or "".
func (p *Person) AvatarURL() string {
	if p == nil || len(p.profile.Image) == 0 {
		return ""
	}
	return p.profile.Image[0].ContentURL
}
