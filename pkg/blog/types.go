// Package blog holds the client-side state of a small blog backed by the
// Cosmo "posts" dataset: the auth session, a draft form and the post list.
// Reads go through getters, synchronous changes through mutations, and
// anything touching the network or the identity provider through actions.
package blog

import (
	"errors"
	"fmt"
	"strings"

	"github.com/go-playground/validator/v10"

	"github.com/Ratio1/cosmo_sdk_go/pkg/identity"
)

// PostsDataset is the Cosmo dataset holding posts.
const PostsDataset = "posts"

// TimeLayout formats createdAt and updatedAt.
const TimeLayout = "2006-01-02T15:04:05.000Z"

const (
	// DefaultName, DefaultImageURL and DefaultDescription fill in AuthUser
	// fields the profile leaves empty.
	DefaultName        = "noname"
	DefaultImageURL    = "https://gaia.blockstack.org/hub/1KLzSLktx8xV35pR4z5maCBWQiVjG3sUef//avatar-0?0.7366012623625917"
	DefaultDescription = "no description"
)

var (
	// ErrPostNotFound is returned when an action addresses a post missing locally.
	ErrPostNotFound = errors.New("blog: post not found")
	// ErrNoProvider is returned by auth actions on a store without identity provider.
	ErrNoProvider = errors.New("blog: identity provider not configured")
	// ErrUnknownField is returned by UpdatePostForm for attributes other than title and body.
	ErrUnknownField = errors.New("blog: unknown post form field")
)

// AuthStatus is the sign-in state.
type AuthStatus string

const (
	StatusNot     AuthStatus = "not"
	StatusPending AuthStatus = "pending"
	StatusSignIn  AuthStatus = "signin"
)

// Post is one blog entry as stored in Cosmo.
type Post struct {
	ID        string `json:"id,omitempty"`
	Title     string `json:"title" validate:"required"`
	Body      string `json:"body"`
	CreatedAt string `json:"createdAt"`
	UpdatedAt string `json:"updatedAt"`
}

// PostForm is the draft edited before CreatePost. Only the title is
// required; an empty body is a valid post.
type PostForm struct {
	Title string `json:"title" validate:"required"`
	Body  string `json:"body"`
}

// Auth is the session part of the state.
type Auth struct {
	Status AuthStatus
	Person *identity.Person
}

// State is the whole store content.
type State struct {
	PostForm PostForm
	Auth     Auth
	Posts    []Post
}

// AuthUser is the display view of the signed-in person.
type AuthUser struct {
	Name        string `json:"name"`
	ImageURL    string `json:"imageUrl"`
	Description string `json:"description"`
}

// WriteMode selects how remote write failures affect local state.
type WriteMode string

const (
	// Optimistic keeps local changes when the datastore call fails.
	Optimistic WriteMode = "optimistic"
	// Confirmed rolls local changes back when the datastore call fails.
	Confirmed WriteMode = "confirmed"
)

// ParseWriteMode maps a config value to a WriteMode. Empty means Optimistic.
func ParseWriteMode(s string) (WriteMode, error) {
	switch WriteMode(strings.ToLower(strings.TrimSpace(s))) {
	case "", Optimistic:
		return Optimistic, nil
	case Confirmed:
		return Confirmed, nil
	default:
		return "", fmt.Errorf("blog: unsupported write mode %q", s)
	}
}

var validate = validator.New()

func validateStatus(status AuthStatus) error {
	if err := validate.Var(string(status), "oneof=not pending signin"); err != nil {
		return fmt.Errorf("blog: invalid auth status %q: %w", status, err)
	}
	return nil
}
