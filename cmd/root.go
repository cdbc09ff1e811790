package cmd

import (
	"fmt"
	"io"
	"os"

	log "github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"maestro/config"
	"maestro/config/storage"
	"maestro/internal/llm"
	"maestro/internal/logging"
	"maestro/internal/maestro"
	"maestro/internal/settings"
)

// Version information
var (
	version = "dev"
	commit  string
	date    string
)

// SetVersionInfo sets the version information
func SetVersionInfo(v, c, d string) {
	if v != "" {
		version = v
	}
	commit = c
	date = d
}

// app holds what the commands share. It is filled in by the root command's
// PersistentPreRunE; fields that are already set are kept.
type app struct {
	configFile string
	backend    string
	logLevel   string

	settings   *settings.Settings
	store      storage.Store
	registry   *config.Registry
	workspace  *maestro.Workspace
	dispatcher *llm.Dispatcher
	generator  *maestro.Generator
}

// Execute executes the root command
func Execute() error {
	a := &app{}
	defer a.close()
	return newRootCmd(a).Execute()
}

// newRootCmd builds the command tree around a.
func newRootCmd(a *app) *cobra.Command {
	root := &cobra.Command{
		Use:   "maestro",
		Short: "MAESTRO threat modelling assistant",
		Long: `maestro builds MAESTRO threat models for AI agent systems.

Model calls rotate round-robin over every configured model that has the
fields its provider needs. Manage those models with "maestro models" or
"maestro tui".`,
		Version:           version,
		SilenceUsage:      true,
		SilenceErrors:     true,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error { return a.init() },
	}
	root.SetVersionTemplate(`maestro {{.Version}}
Commit: ` + commit + `
Date: ` + date + `
`)

	root.PersistentFlags().StringVar(&a.configFile, "config", "", "config file (default "+settings.DefaultConfigFile()+")")
	root.PersistentFlags().StringVar(&a.backend, "store", "", "store backend: file, memory or redis")
	root.PersistentFlags().StringVar(&a.logLevel, "log-level", "", "log level: debug, info, warn, error")

	root.AddCommand(
		newModelsCmd(a),
		newLayersCmd(),
		newThreatsCmd(a),
		newDiagramCmd(a),
		newTUICmd(a),
		newServeCmd(a),
	)
	return root
}

func (a *app) init() error {
	if wd, err := os.Getwd(); err == nil {
		settings.LoadDotEnv(wd)
	}

	if a.settings == nil {
		s, err := settings.Load(a.configFile)
		if err != nil {
			return err
		}
		a.settings = s
	}
	if a.backend != "" {
		a.settings.Store.Backend = a.backend
	}
	if a.logLevel != "" {
		a.settings.Log.Level = a.logLevel
	}
	if err := a.settings.Validate(); err != nil {
		return err
	}

	if err := logging.Setup(logging.Options{
		Level:     a.settings.Log.Level,
		File:      a.settings.Log.File,
		MaxSizeMB: a.settings.Log.MaxSizeMB,
	}); err != nil {
		return err
	}

	if a.store == nil {
		store, err := a.settings.OpenStore()
		if err != nil {
			return fmt.Errorf("failed to open %s store: %w", a.settings.Store.Backend, err)
		}
		a.store = store
	}
	if a.registry == nil {
		opts, err := a.settings.RegistryOptions()
		if err != nil {
			return err
		}
		a.registry = config.NewRegistry(a.store, opts...)
	}
	if a.workspace == nil {
		a.workspace = maestro.NewWorkspace(a.store, logging.Component("workspace"))
	}
	if a.dispatcher == nil {
		a.dispatcher = llm.NewDispatcher(llm.Options{
			Timeout:     a.settings.LLM.Timeout,
			Temperature: a.settings.LLM.Temperature,
			MaxRetries:  a.settings.LLM.MaxRetries,
		}, logging.Component("llm"))
	}
	if a.generator == nil {
		a.generator = maestro.NewGenerator(a.registry, a.dispatcher, logging.Component("maestro"))
	}
	return nil
}

func (a *app) close() {
	if c, ok := a.store.(io.Closer); ok {
		if err := c.Close(); err != nil {
			log.WithError(err).Warn("failed to close store")
		}
	}
}
