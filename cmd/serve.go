package cmd

import (
	"os"
	"os/signal"
	"syscall"

	log "github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"maestro/internal/server"
	"maestro/internal/settings"
)

func newServeCmd(a *app) *cobra.Command {
	var addr string
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve the HTTP API",
		Long: `Serve the HTTP API used by web front ends.

Every /api route needs an "Authorization: Bearer <token>" header with one
of the tokens configured under server.tokens. Token changes in the config
file apply without a restart.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			users, err := settings.ParseTokens(a.settings.Server.Tokens)
			if err != nil {
				return err
			}
			if len(users) == 0 {
				printWarning(cmd.ErrOrStderr(), "no server.tokens configured: every /api request will be rejected")
			}
			if addr == "" {
				addr = a.settings.Server.Addr
			}

			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()
			srv := server.New(a.registry, a.workspace, a.generator, users)
			if a.settings.File != "" {
				err := settings.Watch(ctx, a.settings.File, func(s *settings.Settings) {
					users, err := settings.ParseTokens(s.Server.Tokens)
					if err != nil {
						log.WithError(err).Warn("keeping the previous server tokens")
						return
					}
					srv.SetUsers(users)
				})
				if err != nil {
					log.WithError(err).Warn("settings changes will need a restart")
				}
			}
			return srv.Run(ctx, addr)
		},
	}
	cmd.Flags().StringVar(&addr, "addr", "", "listen address (default: server.addr)")
	return cmd
}
