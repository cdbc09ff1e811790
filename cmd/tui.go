package cmd

import (
	"io"

	log "github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"maestro/internal/tui"
)

func newTUICmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "tui",
		Short: "Open the interactive model settings screen",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			// stderr logging would draw over the screen
			if a.settings.Log.File == "" {
				log.SetOutput(io.Discard)
			}
			return tui.Run(a.registry, a.dispatcher)
		},
	}
}
