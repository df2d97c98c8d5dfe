package commands

import (
	"fmt"

	"github.com/spf13/cobra"
)

func newAuthCommand(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "auth",
		Short: "Inspect and manage the sign-in session",
	}
	cmd.AddCommand(
		&cobra.Command{
			Use:   "status",
			Short: "Restore the session and show the signed-in user",
			Args:  cobra.NoArgs,
			RunE: func(cmd *cobra.Command, args []string) error {
				if err := a.store.Init(cmd.Context()); err != nil {
					return err
				}
				state := a.store.State()
				return printJSON(cmd.OutOrStdout(), map[string]any{
					"status": state.Auth.Status,
					"user":   a.store.AuthUser(),
					"posts":  len(state.Posts),
				})
			},
		},
		&cobra.Command{
			Use:   "signin",
			Short: "Print the sign-in URL",
			Args:  cobra.NoArgs,
			RunE: func(cmd *cobra.Command, args []string) error {
				target, err := a.store.SignIn(cmd.Context())
				if err != nil {
					return err
				}
				fmt.Fprintln(cmd.OutOrStdout(), target)
				return nil
			},
		},
	)
	return cmd
}
