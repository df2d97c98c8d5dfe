package identity

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

const (
	// DefaultAuthenticatorURL receives sign-in requests when none is configured.
	DefaultAuthenticatorURL = "https://browser.blockstack.org/auth"
	// DefaultSessionTTL bounds tokens issued by IssueToken.
	DefaultSessionTTL = 24 * time.Hour

	issuer = "cosmo-sdk"

	typeSession      = "session"
	typeAuthResponse = "auth_response"
	typeAuthRequest  = "auth_request"
)

var _ Provider = (*JWTSession)(nil)

// JWTSession is a Provider that stores the session as an HS256-signed token.
// A pending sign-in is an auth-response token that HandlePendingSignIn
// verifies and promotes to the session token.
type JWTSession struct {
	mu               sync.Mutex
	secret           []byte
	token            string
	pending          string
	authenticatorURL string
	now              func() time.Time
}

// JWTOption configures a JWTSession.
type JWTOption func(*JWTSession)

// WithSessionToken restores an existing session token.
func WithSessionToken(token string) JWTOption {
	return func(s *JWTSession) {
		s.token = strings.TrimSpace(token)
	}
}

// WithPendingToken sets the auth-response token awaiting HandlePendingSignIn.
func WithPendingToken(token string) JWTOption {
	return func(s *JWTSession) {
		s.pending = strings.TrimSpace(token)
	}
}

// WithAuthenticatorURL overrides where sign-in requests are sent.
func WithAuthenticatorURL(raw string) JWTOption {
	return func(s *JWTSession) {
		if strings.TrimSpace(raw) != "" {
			s.authenticatorURL = raw
		}
	}
}

// WithTimeFunc overrides the clock used to issue and verify tokens.
func WithTimeFunc(fn func() time.Time) JWTOption {
	return func(s *JWTSession) {
		if fn != nil {
			s.now = fn
		}
	}
}

// NewJWTSession creates a session provider signing with secret.
func NewJWTSession(secret []byte, opts ...JWTOption) (*JWTSession, error) {
	if len(secret) == 0 {
		return nil, errors.New("identity: session secret is required")
	}
	s := &JWTSession{
		secret:           append([]byte(nil), secret...),
		authenticatorURL: DefaultAuthenticatorURL,
		now:              time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	if _, err := url.Parse(s.authenticatorURL); err != nil {
		return nil, fmt.Errorf("identity: invalid authenticator URL: %w", err)
	}
	return s, nil
}

// IssueToken signs a session token for user valid for ttl.
func (s *JWTSession) IssueToken(user UserData, ttl time.Duration) (string, error) {
	return s.issue(user, typeSession, ttl)
}

// IssueAuthResponse signs an auth-response token, the value a completed
// sign-in hands back to the application.
func (s *JWTSession) IssueAuthResponse(user UserData, ttl time.Duration) (string, error) {
	return s.issue(user, typeAuthResponse, ttl)
}

// Token returns the current session token, or "".
func (s *JWTSession) Token() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.token
}

func (s *JWTSession) IsUserSignedIn() bool {
	s.mu.Lock()
	token := s.token
	s.mu.Unlock()
	if token == "" {
		return false
	}
	_, err := s.parse(token, typeSession)
	return err == nil
}

func (s *JWTSession) IsSignInPending() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.pending != ""
}

func (s *JWTSession) HandlePendingSignIn(ctx context.Context) (*UserData, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.pending == "" {
		return nil, ErrNoPendingSignIn
	}
	claims, err := s.parse(s.pending, typeAuthResponse)
	s.pending = ""
	if err != nil {
		return nil, err
	}
	user := userFromClaims(claims)

	ttl := DefaultSessionTTL
	if exp, err := claims.GetExpirationTime(); err == nil && exp != nil {
		ttl = exp.Sub(s.now())
	}
	token, err := s.issue(*user, typeSession, ttl)
	if err != nil {
		return nil, err
	}
	s.token = token
	return user, nil
}

func (s *JWTSession) LoadUserData() (*UserData, error) {
	s.mu.Lock()
	token := s.token
	s.mu.Unlock()
	if token == "" {
		return nil, ErrNotSignedIn
	}
	claims, err := s.parse(token, typeSession)
	if err != nil {
		return nil, err
	}
	return userFromClaims(claims), nil
}

// RedirectToSignIn returns the authenticator URL carrying a signed auth
// request for the given redirect, manifest and scopes.
func (s *JWTSession) RedirectToSignIn(redirectURI, manifestURI string, scopes []string) (string, error) {
	now := s.now()
	req := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{
		"jti":          uuid.NewString(),
		"iss":          issuer,
		"typ":          typeAuthRequest,
		"redirect_uri": redirectURI,
		"manifest_uri": manifestURI,
		"scopes":       append([]string(nil), scopes...),
		"iat":          now.Unix(),
		"exp":          now.Add(time.Hour).Unix(),
	})
	signed, err := req.SignedString(s.secret)
	if err != nil {
		return "", fmt.Errorf("identity: sign auth request: %w", err)
	}
	u, err := url.Parse(s.authenticatorURL)
	if err != nil {
		return "", fmt.Errorf("identity: invalid authenticator URL: %w", err)
	}
	q := u.Query()
	q.Set("authRequest", signed)
	u.RawQuery = q.Encode()
	return u.String(), nil
}

// SignUserOut drops the session and any pending sign-in.
func (s *JWTSession) SignUserOut(string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.token = ""
	s.pending = ""
	return nil
}

// ParseAuthRequest verifies an auth request produced by RedirectToSignIn and
// returns its redirect URI, manifest URI and scopes.
func (s *JWTSession) ParseAuthRequest(token string) (redirectURI, manifestURI string, scopes []string, err error) {
	claims, err := s.parse(token, typeAuthRequest)
	if err != nil {
		return "", "", nil, err
	}
	redirectURI, _ = claims["redirect_uri"].(string)
	manifestURI, _ = claims["manifest_uri"].(string)
	if raw, ok := claims["scopes"].([]any); ok {
		for _, v := range raw {
			if scope, ok := v.(string); ok {
				scopes = append(scopes, scope)
			}
		}
	}
	return redirectURI, manifestURI, scopes, nil
}

func (s *JWTSession) issue(user UserData, typ string, ttl time.Duration) (string, error) {
	if strings.TrimSpace(user.Username) == "" {
		return "", errors.New("identity: username is required")
	}
	if ttl <= 0 {
		ttl = DefaultSessionTTL
	}
	now := s.now()
	claims := jwt.MapClaims{
		"sub":         user.Username,
		"iss":         issuer,
		"typ":         typ,
		"name":        user.Profile.Name,
		"description": user.Profile.Description,
		"iat":         now.Unix(),
		"exp":         now.Add(ttl).Unix(),
	}
	if len(user.Profile.Image) > 0 {
		claims["image"] = user.Profile.Image[0].ContentURL
	}
	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(s.secret)
	if err != nil {
		return "", fmt.Errorf("identity: sign token: %w", err)
	}
	return signed, nil
}

func (s *JWTSession) parse(token, typ string) (jwt.MapClaims, error) {
	parsed, err := jwt.Parse(token, func(t *jwt.Token) (interface{}, error) {
		return s.secret, nil
	},
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithIssuer(issuer),
		jwt.WithExpirationRequired(),
		jwt.WithTimeFunc(s.now),
	)
	if err != nil || !parsed.Valid {
		return nil, fmt.Errorf("%w: %v", ErrInvalidToken, err)
	}
	claims, ok := parsed.Claims.(jwt.MapClaims)
	if !ok {
		return nil, fmt.Errorf("%w: unexpected claims", ErrInvalidToken)
	}
	if got, _ := claims["typ"].(string); got != typ {
		return nil, fmt.Errorf("%w: expected %s token, got %q", ErrInvalidToken, typ, got)
	}
	return claims, nil
}

func userFromClaims(claims jwt.MapClaims) *UserData {
	user := &UserData{}
	user.Username, _ = claims.GetSubject()
	user.Profile.Name, _ = claims["name"].(string)
	user.Profile.Description, _ = claims["description"].(string)
	if image, _ := claims["image"].(string); image != "" {
		user.Profile.Image = []Image{{ContentURL: image}}
	}
	return user
}
