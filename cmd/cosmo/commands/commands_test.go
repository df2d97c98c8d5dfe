package commands

import (
	"bytes"
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/go-playground/assert/v2"

	"github.com/Ratio1/cosmo_sdk_go/pkg/blog"
	"github.com/Ratio1/cosmo_sdk_go/pkg/cosmo"
)

const seed = `{
  "posts": [
    {"id": "p1", "title": "first", "body": "one", "createdAt": "2024-01-01T00:00:00.000Z", "updatedAt": "2024-01-01T00:00:00.000Z"},
    {"id": "p2", "title": "second", "body": "two", "createdAt": "2024-02-01T00:00:00.000Z", "updatedAt": "2024-02-01T00:00:00.000Z"}
  ]
}`

func run(t *testing.T, args ...string) (string, error) {
	t.Helper()
	path := filepath.Join(t.TempDir(), "seed.json")
	if err := os.WriteFile(path, []byte(seed), 0o600); err != nil {
		t.Fatal(err)
	}

	cmd := NewRootCmd()
	var out bytes.Buffer
	cmd.SetOut(&out)
	cmd.SetErr(&out)
	cmd.SetArgs(append([]string{"--mode", "mock", "--seed", path, "--log-level", "error"}, args...))
	err := cmd.Execute()
	return out.String(), err
}

func decodePosts(t *testing.T, out string) []blog.Post {
	t.Helper()
	var posts []blog.Post
	if err := json.Unmarshal([]byte(out), &posts); err != nil {
		t.Fatalf("decode %q: %v", out, err)
	}
	return posts
}

func TestPostsList(t *testing.T) {
	out, err := run(t, "posts", "list")
	assert.Equal(t, err, nil)
	posts := decodePosts(t, out)
	assert.Equal(t, len(posts), 2)
	assert.Equal(t, posts[0].ID, "p1")
}

func TestPostsRecent(t *testing.T) {
	out, err := run(t, "posts", "recent", "--limit", "1")
	assert.Equal(t, err, nil)
	posts := decodePosts(t, out)
	assert.Equal(t, len(posts), 1)
	assert.Equal(t, posts[0].ID, "p2")
}

func TestPostsGet(t *testing.T) {
	out, err := run(t, "posts", "get", "p2")
	assert.Equal(t, err, nil)
	var post blog.Post
	assert.Equal(t, json.Unmarshal([]byte(out), &post), nil)
	assert.Equal(t, post.Title, "second")

	_, err = run(t, "posts", "get", "missing")
	assert.Equal(t, errors.Is(err, blog.ErrPostNotFound), true)
}

func TestPostsCreate(t *testing.T) {
	out, err := run(t, "posts", "create", "--title", "hello", "--body", "world")
	assert.Equal(t, err, nil)
	var post blog.Post
	assert.Equal(t, json.Unmarshal([]byte(out), &post), nil)
	assert.NotEqual(t, post.ID, "")
	assert.Equal(t, post.Title, "hello")
	assert.Equal(t, post.CreatedAt, post.UpdatedAt)

	_, err = run(t, "posts", "create", "--body", "no title")
	assert.NotEqual(t, err, nil)
}

func TestPostsUpdateKeepsUnchangedFields(t *testing.T) {
	out, err := run(t, "posts", "update", "p1", "--title", "renamed")
	assert.Equal(t, err, nil)
	var post blog.Post
	assert.Equal(t, json.Unmarshal([]byte(out), &post), nil)
	assert.Equal(t, post.Title, "renamed")
	assert.Equal(t, post.Body, "one")
	assert.Equal(t, post.CreatedAt, "2024-01-01T00:00:00.000Z")
	assert.NotEqual(t, post.UpdatedAt, "2024-01-01T00:00:00.000Z")
}

func TestPostsDelete(t *testing.T) {
	out, err := run(t, "posts", "delete", "p1")
	assert.Equal(t, err, nil)
	assert.Equal(t, strings.TrimSpace(out), "deleted p1")

	for _, id := range []string{".", ".."} {
		_, err = run(t, "posts", "delete", id)
		assert.Equal(t, errors.Is(err, cosmo.ErrInvalidArgument), true)
	}
}

func TestDatasetsGet(t *testing.T) {
	out, err := run(t, "datasets", "get", "posts", "p1")
	assert.Equal(t, err, nil)
	var rec map[string]any
	assert.Equal(t, json.Unmarshal([]byte(out), &rec), nil)
	assert.Equal(t, rec["title"], "first")

	out, err = run(t, "datasets", "get", "posts")
	assert.Equal(t, err, nil)
	assert.Equal(t, len(decodePosts(t, out)), 2)
}

func TestAuthStatusAnonymous(t *testing.T) {
	out, err := run(t, "auth", "status")
	assert.Equal(t, err, nil)
	var status struct {
		Status string `json:"status"`
		User   struct {
			Name string `json:"name"`
		} `json:"user"`
	}
	assert.Equal(t, json.Unmarshal([]byte(out), &status), nil)
	assert.Equal(t, status.Status, "not")
	assert.Equal(t, status.User.Name, blog.DefaultName)
}

func TestInvalidMode(t *testing.T) {
	cmd := NewRootCmd()
	cmd.SetOut(&bytes.Buffer{})
	cmd.SetArgs([]string{"--mode", "carrier-pigeon", "posts", "list"})
	assert.NotEqual(t, cmd.Execute(), nil)
}
