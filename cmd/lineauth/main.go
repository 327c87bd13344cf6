// Package main contains lineauth
package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"github.com/pomerium/lineauth/config"
	"github.com/pomerium/lineauth/internal/log"
	"github.com/pomerium/lineauth/internal/version"
	"github.com/pomerium/lineauth/pkg/cmd/lineauth"
)

func main() {
	var configFile string
	root := &cobra.Command{
		Use:          "lineauth",
		Short:        "Sign users in with LINE Login v2.1",
		Version:      version.FullVersion(),
		SilenceUsage: true,
	}
	root.PersistentFlags().StringVar(&configFile, "config", "", "Specify configuration file location")
	log.SetLevel(zerolog.InfoLevel)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	root.RunE = func(cmd *cobra.Command, _ []string) error {
		defer log.Info(ctx).Msg("cmd/lineauth: exiting")
		o, err := config.NewOptionsFromConfig(configFile)
		if err != nil {
			return err
		}
		return lineauth.Run(cmd.Context(), o)
	}

	if err := root.ExecuteContext(ctx); err != nil {
		log.Fatal().Err(err).Msg("cmd/lineauth")
	}
}
