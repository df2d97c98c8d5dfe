// Package commands implements the cosmo command line.
package commands

import (
	"encoding/json"
	"fmt"
	"io"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/Ratio1/cosmo_sdk_go/internal/config"
	"github.com/Ratio1/cosmo_sdk_go/internal/logging"
	"github.com/Ratio1/cosmo_sdk_go/pkg/blog"
	"github.com/Ratio1/cosmo_sdk_go/pkg/cosmo"
	"github.com/Ratio1/cosmo_sdk_go/pkg/cosmo_sdk"
)

// app carries what PersistentPreRunE builds for the subcommands.
type app struct {
	v       *viper.Viper
	cfgPath string

	cfg      *config.Config
	client   *cosmo.Client
	store    *blog.Store
	closeLog func()
}

// NewRootCmd creates the root command.
func NewRootCmd() *cobra.Command {
	a := &app{v: config.New()}

	rootCmd := &cobra.Command{
		Use:           "cosmo",
		Short:         "Manage blog posts stored in a Cosmo datastore",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			return a.setup()
		},
		PersistentPostRun: func(cmd *cobra.Command, args []string) {
			if a.closeLog != nil {
				a.closeLog()
			}
		},
	}

	flags := rootCmd.PersistentFlags()
	flags.StringVar(&a.cfgPath, "config", "", "config file (default ./cosmo.yaml)")
	flags.String("host", config.DefaultHost, "Cosmo node host")
	flags.Int("port", config.DefaultPort, "Cosmo node port")
	flags.String("api-url", "", "Cosmo base URL, overrides host and port")
	flags.String("subject", config.DefaultSubject, "Ontology-Subject header value")
	flags.String("mode", "auto", "backend: http, mock or auto (http when --api-url is set)")
	flags.String("seed", "", "JSON seed for the mock backend")
	flags.String("write-mode", string(blog.Optimistic), "optimistic or confirmed")
	flags.String("log-level", "info", "log level")

	for key, flag := range map[string]string{
		"host":       "host",
		"port":       "port",
		"api_url":    "api-url",
		"subject":    "subject",
		"mode":       "mode",
		"seed":       "seed",
		"write_mode": "write-mode",
		"log.level":  "log-level",
	} {
		_ = a.v.BindPFlag(key, flags.Lookup(flag))
	}

	rootCmd.AddCommand(
		newPostsCommand(a),
		newDatasetsCommand(a),
		newAuthCommand(a),
	)
	return rootCmd
}

func (a *app) setup() error {
	cfg, err := config.LoadWith(a.v, a.cfgPath)
	if err != nil {
		return err
	}
	closeLog, err := logging.Init(cfg.Log)
	if err != nil {
		return err
	}
	a.closeLog = closeLog

	client, mode, err := cosmo_sdk.NewFromConfig(cfg, nil)
	if err != nil {
		return err
	}
	store, err := cosmo_sdk.NewStoreWithClient(cfg, client)
	if err != nil {
		return err
	}
	logging.Component("cli").WithField("mode", mode).Debug("client ready")

	a.cfg = cfg
	a.client = client
	a.store = store
	return nil
}

func printJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	enc.SetEscapeHTML(false)
	if err := enc.Encode(v); err != nil {
		return fmt.Errorf("encode output: %w", err)
	}
	return nil
}
