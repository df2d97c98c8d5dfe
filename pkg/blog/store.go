package blog

import (
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/Ratio1/cosmo_sdk_go/internal/config"
	"github.com/Ratio1/cosmo_sdk_go/internal/logging"
	"github.com/Ratio1/cosmo_sdk_go/pkg/cosmo"
	"github.com/Ratio1/cosmo_sdk_go/pkg/identity"
)

// Store owns a State. All methods are safe for concurrent use; network calls
// run without holding the lock.
type Store struct {
	mu    sync.RWMutex
	state State

	posts    *cosmo.Collection
	provider identity.Provider
	origin   string
	mode     WriteMode
	now      func() time.Time
	log      *logrus.Entry
}

// Option configures a Store.
type Option func(*Store)

// WithWriteMode selects Optimistic or Confirmed writes.
func WithWriteMode(m WriteMode) Option {
	return func(s *Store) {
		if m != "" {
			s.mode = m
		}
	}
}

// WithOrigin sets the application origin used for sign-in redirects.
func WithOrigin(origin string) Option {
	return func(s *Store) {
		if strings.TrimSpace(origin) != "" {
			s.origin = strings.TrimRight(origin, "/")
		}
	}
}

// WithClock overrides the clock used for post timestamps.
func WithClock(fn func() time.Time) Option {
	return func(s *Store) {
		if fn != nil {
			s.now = fn
		}
	}
}

// WithLogger sets the store logger.
func WithLogger(l *logrus.Entry) Option {
	return func(s *Store) {
		if l != nil {
			s.log = l
		}
	}
}

// NewStore creates a store reading and writing posts through client. provider
// may be nil when the auth actions are not used.
func NewStore(client *cosmo.Client, provider identity.Provider, opts ...Option) *Store {
	s := &Store{
		state:    State{Auth: Auth{Status: StatusNot}, Posts: []Post{}},
		posts:    client.Collection(PostsDataset),
		provider: provider,
		origin:   config.DefaultOrigin,
		mode:     Optimistic,
		now:      time.Now,
		log:      logging.Component("blog"),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Mode returns the configured write mode.
func (s *Store) Mode() WriteMode {
	return s.mode
}

// Mutations.

func (s *Store) SetAuthPerson(p *identity.Person) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.state.Auth.Person = p
}

// SetAuthStatus rejects values other than not, pending and signin.
func (s *Store) SetAuthStatus(status AuthStatus) error {
	if err := validateStatus(status); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.state.Auth.Status = status
	return nil
}

// SetPosts replaces the post list. A nil slice becomes an empty list.
func (s *Store) SetPosts(posts []Post) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.state.Posts = append([]Post{}, posts...)
}

// UpdatePostForm sets the draft's title or body.
func (s *Store) UpdatePostForm(attr, val string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	switch attr {
	case "title":
		s.state.PostForm.Title = val
	case "body":
		s.state.PostForm.Body = val
	default:
		return ErrUnknownField
	}
	return nil
}

func (s *Store) AddPost(p Post) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.state.Posts = append(s.state.Posts, p)
}

// ReplacePost swaps in p for the post with p.ID. It reports false when no
// such post exists.
func (s *Store) ReplacePost(p Post) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	idx := s.indexLocked(p.ID)
	if idx < 0 {
		return false
	}
	s.state.Posts[idx] = p
	return true
}

// RemovePost drops the post with id. It reports false when no such post exists.
func (s *Store) RemovePost(id string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, ok := s.removeLocked(id)
	return ok
}

func (s *Store) resetPostForm() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.state.PostForm = PostForm{}
}

func (s *Store) resetAuth() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.state.Auth = Auth{Status: StatusNot}
}

func (s *Store) indexLocked(id string) int {
	for i := range s.state.Posts {
		if s.state.Posts[i].ID == id {
			return i
		}
	}
	return -1
}

// removeLocked deletes id and returns its former index.
func (s *Store) removeLocked(id string) (int, bool) {
	idx := s.indexLocked(id)
	if idx < 0 {
		return -1, false
	}
	s.state.Posts = append(s.state.Posts[:idx], s.state.Posts[idx+1:]...)
	return idx, true
}

// restoreLocked puts p back beside the neighbours it had when it was
// removed. idx is the fallback when both neighbours are gone.
func (s *Store) restoreLocked(p Post, prevID, nextID string, idx int) {
	if s.indexLocked(p.ID) >= 0 {
		return
	}
	if nextID != "" {
		if i := s.indexLocked(nextID); i >= 0 {
			s.insertLocked(i, p)
			return
		}
	}
	if prevID != "" {
		if i := s.indexLocked(prevID); i >= 0 {
			s.insertLocked(i+1, p)
			return
		}
	}
	s.insertLocked(idx, p)
}

func (s *Store) insertLocked(idx int, p Post) {
	if idx < 0 || idx > len(s.state.Posts) {
		idx = len(s.state.Posts)
	}
	s.state.Posts = append(s.state.Posts, Post{})
	copy(s.state.Posts[idx+1:], s.state.Posts[idx:])
	s.state.Posts[idx] = p
}

// Getters.

func (s *Store) IsAuthenticated() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.state.Auth.Status == StatusSignIn
}

// AuthUser returns the signed-in person's display fields, filling blanks
// with defaults.
func (s *Store) AuthUser() AuthUser {
	s.mu.RLock()
	person := s.state.Auth.Person
	s.mu.RUnlock()

	u := AuthUser{
		Name:        person.Name(),
		ImageURL:    person.AvatarURL(),
		Description: person.Description(),
	}
	if u.Name == "" {
		u.Name = DefaultName
	}
	if u.ImageURL == "" {
		u.ImageURL = DefaultImageURL
	}
	if u.Description == "" {
		u.Description = DefaultDescription
	}
	return u
}

// FindPost returns the first post with id.
func (s *Store) FindPost(id string) (Post, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if idx := s.indexLocked(id); idx >= 0 {
		return s.state.Posts[idx], true
	}
	return Post{}, false
}

// RecentPosts returns a copy of the posts ordered newest first by createdAt.
// Posts with equal timestamps keep their relative order.
func (s *Store) RecentPosts() []Post {
	s.mu.RLock()
	out := append([]Post{}, s.state.Posts...)
	s.mu.RUnlock()

	sort.SliceStable(out, func(i, j int) bool {
		return out[i].CreatedAt > out[j].CreatedAt
	})
	return out
}

// Posts returns a copy of the posts in stored order.
func (s *Store) Posts() []Post {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return append([]Post{}, s.state.Posts...)
}

func (s *Store) PostForm() PostForm {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.state.PostForm
}

// State returns a snapshot of the whole state.
func (s *Store) State() State {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := s.state
	out.Posts = append([]Post{}, s.state.Posts...)
	return out
}

func (s *Store) timestamp() string {
	return s.now().UTC().Format(TimeLayout)
}
