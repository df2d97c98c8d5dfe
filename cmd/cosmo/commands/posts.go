package commands

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/Ratio1/cosmo_sdk_go/pkg/blog"
)

func newPostsCommand(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "posts",
		Short: "List, create, update and delete blog posts",
	}
	cmd.AddCommand(
		newPostsListCommand(a),
		newPostsRecentCommand(a),
		newPostsGetCommand(a),
		newPostsCreateCommand(a),
		newPostsUpdateCommand(a),
		newPostsDeleteCommand(a),
	)
	return cmd
}

func newPostsListCommand(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List posts in stored order",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			posts, err := a.store.LoadPosts(cmd.Context())
			if err != nil {
				return err
			}
			return printJSON(cmd.OutOrStdout(), posts)
		},
	}
}

func newPostsRecentCommand(a *app) *cobra.Command {
	var limit int
	cmd := &cobra.Command{
		Use:   "recent",
		Short: "List posts newest first",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if _, err := a.store.LoadPosts(cmd.Context()); err != nil {
				return err
			}
			posts := a.store.RecentPosts()
			if limit > 0 && len(posts) > limit {
				posts = posts[:limit]
			}
			return printJSON(cmd.OutOrStdout(), posts)
		},
	}
	cmd.Flags().IntVar(&limit, "limit", 0, "show at most this many posts")
	return cmd
}

func newPostsGetCommand(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "get <id>",
		Short: "Show one post",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			post, err := a.findPost(cmd, args[0])
			if err != nil {
				return err
			}
			return printJSON(cmd.OutOrStdout(), post)
		},
	}
}

func newPostsCreateCommand(a *app) *cobra.Command {
	var title, body string
	cmd := &cobra.Command{
		Use:   "create",
		Short: "Create a post",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := a.store.UpdatePostForm("title", title); err != nil {
				return err
			}
			if err := a.store.UpdatePostForm("body", body); err != nil {
				return err
			}
			post, err := a.store.CreatePost(cmd.Context())
			if err != nil {
				return err
			}
			return printJSON(cmd.OutOrStdout(), post)
		},
	}
	cmd.Flags().StringVar(&title, "title", "", "post title")
	cmd.Flags().StringVar(&body, "body", "", "post body")
	return cmd
}

func newPostsUpdateCommand(a *app) *cobra.Command {
	var title, body string
	cmd := &cobra.Command{
		Use:   "update <id>",
		Short: "Update a post's title or body",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			post, err := a.findPost(cmd, args[0])
			if err != nil {
				return err
			}
			if cmd.Flags().Changed("title") {
				post.Title = title
			}
			if cmd.Flags().Changed("body") {
				post.Body = body
			}
			updated, err := a.store.UpdatePost(cmd.Context(), post)
			if err != nil {
				return err
			}
			return printJSON(cmd.OutOrStdout(), updated)
		},
	}
	cmd.Flags().StringVar(&title, "title", "", "new title")
	cmd.Flags().StringVar(&body, "body", "", "new body")
	return cmd
}

func newPostsDeleteCommand(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "delete <id>",
		Short: "Delete a post",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if _, err := a.store.LoadPosts(cmd.Context()); err != nil {
				return err
			}
			if err := a.store.DeletePost(cmd.Context(), args[0]); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "deleted %s\n", args[0])
			return nil
		},
	}
}

func (a *app) findPost(cmd *cobra.Command, id string) (blog.Post, error) {
	if _, err := a.store.LoadPosts(cmd.Context()); err != nil {
		return blog.Post{}, err
	}
	post, ok := a.store.FindPost(id)
	if !ok {
		return blog.Post{}, fmt.Errorf("%w: %s", blog.ErrPostNotFound, id)
	}
	return post, nil
}
