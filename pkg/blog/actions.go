package blog

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/sirupsen/logrus"

	"github.com/Ratio1/cosmo_sdk_go/pkg/cosmo"
	"github.com/Ratio1/cosmo_sdk_go/pkg/identity"
)

// ManifestPath is appended to the origin to form the app manifest URI.
const ManifestPath = "/static/manifest.json"

// SignInScopes are requested by SignIn.
var SignInScopes = []string{"store_write"}

// Init restores the session. A signed-in user gets the person set, status
// signin and a post load. A pending sign-in is completed first and then
// follows the same path. Otherwise the state is left untouched.
func (s *Store) Init(ctx context.Context) error {
	if s.provider == nil {
		return ErrNoProvider
	}
	if s.provider.IsUserSignedIn() {
		return s.enterSession(ctx)
	}
	if !s.provider.IsSignInPending() {
		return nil
	}

	if err := s.SetAuthStatus(StatusPending); err != nil {
		return err
	}
	if _, err := s.provider.HandlePendingSignIn(ctx); err != nil {
		s.resetAuth()
		s.log.WithError(err).Error("pending sign-in failed")
		return fmt.Errorf("blog: complete sign-in: %w", err)
	}
	return s.enterSession(ctx)
}

func (s *Store) enterSession(ctx context.Context) error {
	data, err := s.provider.LoadUserData()
	if err != nil {
		s.log.WithError(err).Error("load user data failed")
		return fmt.Errorf("blog: load user data: %w", err)
	}
	s.SetAuthPerson(identity.NewPerson(data.Profile))
	if err := s.SetAuthStatus(StatusSignIn); err != nil {
		return err
	}
	s.log.WithField("user", data.Username).Info("signed in")
	_, err = s.LoadPosts(ctx)
	return err
}

// SignIn asks the provider for the sign-in redirect and returns its URL.
func (s *Store) SignIn(ctx context.Context) (string, error) {
	if s.provider == nil {
		return "", ErrNoProvider
	}
	if err := ctx.Err(); err != nil {
		return "", err
	}
	target, err := s.provider.RedirectToSignIn(s.origin, s.origin+ManifestPath, SignInScopes)
	if err != nil {
		s.log.WithError(err).Error("sign-in redirect failed")
		return "", fmt.Errorf("blog: sign in: %w", err)
	}
	return target, nil
}

// SignOut ends the provider session and resets the auth state.
func (s *Store) SignOut(ctx context.Context) error {
	if s.provider == nil {
		return ErrNoProvider
	}
	if err := ctx.Err(); err != nil {
		return err
	}
	if err := s.provider.SignUserOut(s.origin); err != nil {
		s.log.WithError(err).Error("sign out failed")
		return fmt.Errorf("blog: sign out: %w", err)
	}
	s.resetAuth()
	return nil
}

// LoadPosts fetches every post and replaces the local list.
func (s *Store) LoadPosts(ctx context.Context) ([]Post, error) {
	posts, err := cosmo.List[Post](ctx, s.posts)
	if err != nil {
		return nil, fmt.Errorf("blog: load posts: %w", err)
	}
	s.SetPosts(posts)
	s.log.WithField("count", len(posts)).Debug("posts loaded")
	return s.Posts(), nil
}

// CreatePost submits the draft with fresh timestamps, appends the stored
// record and clears the draft.
func (s *Store) CreatePost(ctx context.Context) (*Post, error) {
	form := s.PostForm()
	if err := validate.Struct(form); err != nil {
		return nil, fmt.Errorf("blog: invalid post form: %w", err)
	}

	now := s.timestamp()
	params := Post{
		Title:     form.Title,
		Body:      form.Body,
		CreatedAt: now,
		UpdatedAt: now,
	}
	created, err := cosmo.Add(ctx, s.posts, params)
	if err != nil {
		return nil, fmt.Errorf("blog: create post: %w", err)
	}
	s.AddPost(*created)
	s.resetPostForm()
	s.log.WithField("id", created.ID).Info("post created")
	return created, nil
}

// DeletePost removes the post locally and deletes it remotely. The remote
// call is issued even when the post is not in the local list. In Confirmed
// mode a failed remote delete restores the post beside its former
// neighbours, so concurrent changes to the list do not misplace it.
func (s *Store) DeletePost(ctx context.Context, id string) error {
	s.mu.Lock()
	var (
		removed        Post
		prevID, nextID string
	)
	idx := s.indexLocked(id)
	existed := idx >= 0
	if existed {
		removed = s.state.Posts[idx]
		if idx > 0 {
			prevID = s.state.Posts[idx-1].ID
		}
		if idx+1 < len(s.state.Posts) {
			nextID = s.state.Posts[idx+1].ID
		}
		s.removeLocked(id)
	}
	s.mu.Unlock()

	if err := s.posts.Doc(id).Delete(ctx); err != nil {
		log := s.log.WithError(err).WithField("id", id)
		if s.mode == Confirmed && existed {
			s.mu.Lock()
			s.restoreLocked(removed, prevID, nextID, idx)
			s.mu.Unlock()
			log.Warn("delete failed, post restored")
		} else {
			log.Warn("delete failed, local state kept")
		}
		return fmt.Errorf("blog: delete post: %w", err)
	}
	return nil
}

// UpdatePost stamps updatedAt, replaces the local post and writes it
// remotely. A response echoing the record with the same id wins; any other
// 2xx body leaves the submitted post in place.
// In Confirmed mode a failed write restores the previous version.
func (s *Store) UpdatePost(ctx context.Context, p Post) (*Post, error) {
	if err := validate.Var(p.ID, "required"); err != nil {
		return nil, fmt.Errorf("blog: post id is required: %w", err)
	}
	if err := validate.Struct(p); err != nil {
		return nil, fmt.Errorf("blog: invalid post: %w", err)
	}
	p.UpdatedAt = s.timestamp()

	s.mu.Lock()
	idx := s.indexLocked(p.ID)
	if idx < 0 {
		s.mu.Unlock()
		return nil, fmt.Errorf("%w: %s", ErrPostNotFound, p.ID)
	}
	previous := s.state.Posts[idx]
	s.state.Posts[idx] = p
	s.mu.Unlock()

	raw, err := s.posts.Doc(p.ID).Set(ctx, p)
	if err != nil {
		log := s.log.WithError(err).WithFields(logrus.Fields{"id": p.ID})
		if s.mode == Confirmed {
			s.ReplacePost(previous)
			log.Warn("update failed, previous version restored")
		} else {
			log.Warn("update failed, local state kept")
		}
		return nil, fmt.Errorf("blog: update post: %w", err)
	}
	stored := storedPost(p, raw)
	s.ReplacePost(stored)
	return &stored, nil
}

// storedPost returns the record echoed by the datastore when it is a post
// with the submitted id, and the submitted post otherwise. Acknowledgement
// bodies such as {"ok":true} are not records.
func storedPost(submitted Post, raw json.RawMessage) Post {
	if len(raw) == 0 {
		return submitted
	}
	var echoed Post
	if err := json.Unmarshal(raw, &echoed); err != nil || echoed.ID != submitted.ID {
		return submitted
	}
	if echoed.Title == "" && echoed.Body == "" && echoed.CreatedAt == "" && echoed.UpdatedAt == "" {
		return submitted
	}
	return echoed
}
