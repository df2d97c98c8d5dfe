package commands

import (
	"bytes"
	"encoding/json"
	"fmt"

	"github.com/spf13/cobra"
)

func newDatasetsCommand(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "datasets",
		Short: "Raw dataset access",
	}
	cmd.AddCommand(&cobra.Command{
		Use:   "get <dataset> [id]",
		Short: "Print a dataset listing, or one record when id is given",
		Args:  cobra.RangeArgs(1, 2),
		RunE: func(cmd *cobra.Command, args []string) error {
			col := a.client.Collection(args[0])
			var (
				data json.RawMessage
				err  error
			)
			if len(args) == 2 {
				data, err = col.Doc(args[1]).Get(cmd.Context())
			} else {
				data, err = col.Get(cmd.Context())
			}
			if err != nil {
				return err
			}
			if data == nil {
				fmt.Fprintln(cmd.OutOrStdout(), "null")
				return nil
			}
			var out bytes.Buffer
			if err := json.Indent(&out, data, "", "  "); err != nil {
				return fmt.Errorf("format response: %w", err)
			}
			out.WriteByte('\n')
			_, err = out.WriteTo(cmd.OutOrStdout())
			return err
		},
	})
	return cmd
}
