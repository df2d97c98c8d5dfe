package identity

import (
	"context"
	"net/url"
	"strings"
	"sync"
)

var _ Provider = (*Static)(nil)

// Redirect records one RedirectToSignIn call made against a Static provider.
type Redirect struct {
	RedirectURI string
	ManifestURI string
	Scopes      []string
}

// Static is an in-memory Provider with a fixed user. It records redirects and
// sign-outs so callers can inspect them.
type Static struct {
	mu        sync.Mutex
	user      *UserData
	signedIn  bool
	pending   bool
	redirects []Redirect
	signOuts  []string
}

// NewStatic returns a provider that is signed in as user when user is non-nil.
func NewStatic(user *UserData) *Static {
	return &Static{user: user, signedIn: user != nil}
}

// NewPendingStatic returns a provider with a sign-in pending for user.
func NewPendingStatic(user *UserData) *Static {
	return &Static{user: user, pending: user != nil}
}

func (s *Static) IsUserSignedIn() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.signedIn
}

func (s *Static) IsSignInPending() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.pending
}

func (s *Static) HandlePendingSignIn(ctx context.Context) (*UserData, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.pending {
		return nil, ErrNoPendingSignIn
	}
	s.pending = false
	s.signedIn = true
	return copyUser(s.user), nil
}

func (s *Static) LoadUserData() (*UserData, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.signedIn {
		return nil, ErrNotSignedIn
	}
	return copyUser(s.user), nil
}

// RedirectToSignIn records the request and returns redirectURI with the
// requested scopes attached.
func (s *Static) RedirectToSignIn(redirectURI, manifestURI string, scopes []string) (string, error) {
	s.mu.Lock()
	s.redirects = append(s.redirects, Redirect{
		RedirectURI: redirectURI,
		ManifestURI: manifestURI,
		Scopes:      append([]string(nil), scopes...),
	})
	s.mu.Unlock()

	u, err := url.Parse(redirectURI)
	if err != nil {
		return "", err
	}
	q := u.Query()
	q.Set("manifest", manifestURI)
	q.Set("scope", strings.Join(scopes, " "))
	u.RawQuery = q.Encode()
	return u.String(), nil
}

func (s *Static) SignUserOut(redirectURL string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.signedIn = false
	s.pending = false
	s.signOuts = append(s.signOuts, redirectURL)
	return nil
}

// Redirects returns every recorded sign-in redirect.
func (s *Static) Redirects() []Redirect {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]Redirect(nil), s.redirects...)
}

// SignOuts returns the redirect URLs passed to SignUserOut.
func (s *Static) SignOuts() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]string(nil), s.signOuts...)
}

func copyUser(u *UserData) *UserData {
	if u == nil {
		return nil
	}
	out := *u
	out.Profile.Image = append([]Image(nil), u.Profile.Image...)
	return &out
}
