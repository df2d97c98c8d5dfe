package blog_test

import (
	"context"
	"errors"
	"testing"

	"github.com/go-playground/assert/v2"

	"github.com/Ratio1/cosmo_sdk_go/pkg/blog"
	"github.com/Ratio1/cosmo_sdk_go/pkg/cosmo/mock"
	"github.com/Ratio1/cosmo_sdk_go/pkg/identity"
)

var bob = identity.UserData{
	Username: "bob.id",
	Profile:  identity.Profile{Name: "Bob", Description: "reader"},
}

func TestInitSignedIn(t *testing.T) {
	client, m := mock.NewClient()
	_, err := m.Create(context.Background(), blog.PostsDataset, []byte(`{"title":"hello","body":"world"}`))
	assert.Equal(t, err, nil)

	user := bob
	store := blog.NewStore(client, identity.NewStatic(&user))
	assert.Equal(t, store.Init(context.Background()), nil)

	assert.Equal(t, store.IsAuthenticated(), true)
	assert.Equal(t, store.AuthUser().Name, "Bob")
	assert.Equal(t, store.AuthUser().ImageURL, blog.DefaultImageURL)
	assert.Equal(t, len(store.Posts()), 1)
}

func TestInitPending(t *testing.T) {
	client, _ := mock.NewClient()
	user := bob
	provider := identity.NewPendingStatic(&user)
	store := blog.NewStore(client, provider)

	assert.Equal(t, store.Init(context.Background()), nil)
	assert.Equal(t, provider.IsSignInPending(), false)
	assert.Equal(t, store.State().Auth.Status, blog.StatusSignIn)
	assert.Equal(t, store.AuthUser().Description, "reader")
}

func TestInitPendingFailure(t *testing.T) {
	client, _ := mock.NewClient()
	user := bob
	store := blog.NewStore(client, identity.NewPendingStatic(&user))

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	err := store.Init(ctx)
	assert.Equal(t, errors.Is(err, context.Canceled), true)
	assert.Equal(t, store.State().Auth.Status, blog.StatusNot)
}

func TestInitAnonymous(t *testing.T) {
	client, m := mock.NewClient()
	m.SetFault(failOn(mock.OpList))
	store := blog.NewStore(client, identity.NewStatic(nil))

	assert.Equal(t, store.Init(context.Background()), nil)
	assert.Equal(t, store.IsAuthenticated(), false)
	assert.Equal(t, store.State().Auth.Status, blog.StatusNot)
}

func TestInitWithoutProvider(t *testing.T) {
	client, _ := mock.NewClient()
	store := blog.NewStore(client, nil)
	assert.Equal(t, errors.Is(store.Init(context.Background()), blog.ErrNoProvider), true)
}

func TestSignInAndOut(t *testing.T) {
	client, _ := mock.NewClient()
	user := bob
	provider := identity.NewStatic(&user)
	store := blog.NewStore(client, provider, blog.WithOrigin("https://blog.example.com/"))
	ctx := context.Background()

	target, err := store.SignIn(ctx)
	assert.Equal(t, err, nil)
	assert.NotEqual(t, target, "")

	redirects := provider.Redirects()
	assert.Equal(t, len(redirects), 1)
	assert.Equal(t, redirects[0].RedirectURI, "https://blog.example.com")
	assert.Equal(t, redirects[0].ManifestURI, "https://blog.example.com/static/manifest.json")
	assert.Equal(t, redirects[0].Scopes, []string{"store_write"})

	assert.Equal(t, store.Init(ctx), nil)
	assert.Equal(t, store.IsAuthenticated(), true)

	assert.Equal(t, store.SignOut(ctx), nil)
	assert.Equal(t, store.IsAuthenticated(), false)
	assert.Equal(t, store.AuthUser().Name, blog.DefaultName)
	assert.Equal(t, provider.SignOuts(), []string{"https://blog.example.com"})
}
