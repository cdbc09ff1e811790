package cmd

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"maestro/config"
	"maestro/config/models"
	"maestro/internal/llm"
	"maestro/internal/providers"
	"maestro/internal/tui"
	"maestro/internal/utils"
)

func newModelsCmd(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:     "models",
		Aliases: []string{"model"},
		Short:   "Manage the model configurations",
		Long: `Manage the model configurations used for generation.

A configuration is active when it has every field its provider needs:
an API key for google, openai and together, a base URL for ollama.
Generations rotate round-robin over the active configurations.`,
	}
	cmd.AddCommand(
		newModelsListCmd(a),
		newModelsAddCmd(a),
		newModelsEditCmd(a),
		newModelsRemoveCmd(a),
		newModelsActiveCmd(a),
		newModelsNextCmd(a),
		newModelsPingCmd(a),
		newModelsImportCmd(a),
		newModelsExportCmd(a),
		newModelsRestoreCmd(a),
	)
	return cmd
}

func newModelsListCmd(a *app) *cobra.Command {
	var asJSON bool
	cmd := &cobra.Command{
		Use:     "list",
		Aliases: []string{"ls"},
		Short:   "List all model configurations",
		Args:    cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			configs := a.registry.LoadConfigs()
			out := cmd.OutOrStdout()
			if asJSON {
				return writeJSON(out, models.MaskAll(configs))
			}
			if len(configs) == 0 {
				fmt.Fprintln(out, "No model configurations available")
				return nil
			}
			renderConfigs(cmd, configs, lastUsedID(a.registry, configs))
			return nil
		},
	}
	cmd.Flags().BoolVar(&asJSON, "json", false, "print the list as JSON with masked keys")
	return cmd
}

func newModelsActiveCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "active",
		Short: "List the configurations generations rotate over",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			all := a.registry.LoadConfigs()
			active := config.ActiveConfigs(all)
			if len(active) == 0 {
				printWarning(cmd.OutOrStdout(), "%v", config.ErrNoActiveModel)
				return nil
			}
			renderConfigs(cmd, active, lastUsedID(a.registry, all))
			return nil
		},
	}
}

func newModelsNextCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "next",
		Short: "Advance the rotation and print the selected configuration",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := a.registry.Next()
			if err != nil {
				return err
			}
			printSuccess(cmd.OutOrStdout(), "Next model: %s (%s/%s)", cfg.Label, cfg.Provider, cfg.ModelID)
			return nil
		},
	}
}

type modelFlags struct {
	provider string
	model    string
	key      string
	url      string
	label    string
}

func (f *modelFlags) register(cmd *cobra.Command) {
	cmd.Flags().StringVarP(&f.provider, "provider", "p", "", "provider: "+providerNames())
	cmd.Flags().StringVarP(&f.model, "model", "m", "", "provider model id (default: the provider's suggested model)")
	cmd.Flags().StringVarP(&f.key, "key", "k", "", "API key")
	cmd.Flags().StringVarP(&f.url, "url", "u", "", "base URL (default: the provider's URL)")
	cmd.Flags().StringVarP(&f.label, "label", "l", "", "display label")
}

func newModelsAddCmd(a *app) *cobra.Command {
	var f modelFlags
	cmd := &cobra.Command{
		Use:   "add",
		Short: "Add a model configuration",
		Long: `Add a model configuration.

  maestro models add --provider google --key AIza...
  maestro models add --provider ollama --model llama3 --url http://localhost:11434

A configuration without its required fields is saved but stays inactive.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if f.provider == "" {
				return errors.New("--provider is required")
			}
			p, err := providers.Get(providers.Name(strings.TrimSpace(f.provider)))
			if err != nil {
				return err
			}
			form := tui.FormData{Provider: string(p.Name()), ModelID: f.model, APIKey: f.key, BaseURL: f.url, Label: f.label}
			if form.ModelID == "" {
				form.ModelID = p.DefaultModel()
			}
			if form.Label == "" {
				form.Label = p.DisplayName() + " " + form.ModelID
			}
			if form.BaseURL == "" && p.Name() == providers.Ollama {
				form.BaseURL = p.DefaultBaseURL()
			}
			if err := form.Validate(); err != nil {
				return err
			}

			cfg := form.Apply(models.ModelConfig{ID: models.NewID()})
			err = a.registry.Edit(func(configs []models.ModelConfig) ([]models.ModelConfig, error) {
				return append(configs, cfg), nil
			})
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			printSuccess(out, "Added %s (%s)", cfg.Label, cfg.ID)
			warnInactive(cmd, cfg)
			return nil
		},
	}
	f.register(cmd)
	return cmd
}

func newModelsEditCmd(a *app) *cobra.Command {
	var f modelFlags
	cmd := &cobra.Command{
		Use:   "edit <id|label>",
		Short: "Change fields of a model configuration",
		Long: `Change fields of a model configuration. Only the flags given are changed.
Pass --key "" to clear the API key.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			var updated models.ModelConfig
			err := a.registry.Edit(func(configs []models.ModelConfig) ([]models.ModelConfig, error) {
				i, err := findConfig(configs, args[0])
				if err != nil {
					return nil, err
				}
				cur := configs[i]
				form := tui.FormDataFrom(cur)
				flags := cmd.Flags()
				if flags.Changed("provider") {
					form.Provider = f.provider
				}
				if flags.Changed("model") {
					form.ModelID = f.model
				}
				if flags.Changed("key") {
					form.APIKey = f.key
				}
				if flags.Changed("url") {
					form.BaseURL = f.url
				}
				if flags.Changed("label") {
					form.Label = f.label
				}
				if err := form.Validate(); err != nil {
					return nil, err
				}
				updated = form.Apply(cur)
				configs[i] = updated
				return configs, nil
			})
			if err != nil {
				return err
			}
			printSuccess(cmd.OutOrStdout(), "Updated %s (%s)", updated.Label, updated.ID)
			warnInactive(cmd, updated)
			return nil
		},
	}
	f.register(cmd)
	return cmd
}

func newModelsRemoveCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:     "remove <id|label>",
		Aliases: []string{"rm"},
		Short:   "Remove a model configuration",
		Args:    cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			var removed models.ModelConfig
			var remaining []models.ModelConfig
			err := a.registry.Edit(func(configs []models.ModelConfig) ([]models.ModelConfig, error) {
				i, err := findConfig(configs, args[0])
				if err != nil {
					return nil, err
				}
				removed = configs[i]
				remaining = append(configs[:i:i], configs[i+1:]...)
				return remaining, nil
			})
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			printSuccess(out, "Removed %s (%s)", removed.Label, removed.ID)
			if removed.IsActive() && len(config.ActiveConfigs(remaining)) == 0 {
				printWarning(out, "%v", config.ErrNoActiveModel)
			}
			return nil
		},
	}
}

func newModelsPingCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "ping [id|label]",
		Short: "Send a minimal request to check a configuration works",
		Long: `Send a minimal request to check a configuration works.

Without an argument every active configuration is checked.`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			all := a.registry.LoadConfigs()
			targets := config.ActiveConfigs(all)
			if len(args) == 1 {
				cfg, ok := a.registry.Find(args[0])
				if !ok {
					i, err := findConfig(all, args[0])
					if err != nil {
						return err
					}
					cfg = all[i]
				}
				targets = []models.ModelConfig{cfg}
			}
			if len(targets) == 0 {
				return config.ErrNoActiveModel
			}

			out := cmd.OutOrStdout()
			failed := 0
			for _, cfg := range targets {
				d, err := pingConfig(cmd.Context(), a.dispatcher, cfg)
				if err != nil {
					failed++
					printFailure(out, "%s: %s", cfg.Label, describeError(err))
					continue
				}
				printSuccess(out, "%s: responded in %s", cfg.Label, d)
			}
			if failed > 0 {
				return fmt.Errorf("%d of %d configurations failed", failed, len(targets))
			}
			return nil
		},
	}
}

func pingConfig(ctx context.Context, d *llm.Dispatcher, cfg models.ModelConfig) (time.Duration, error) {
	if ctx == nil {
		ctx = context.Background()
	}
	if missing, _ := providers.Missing(cfg.Provider, cfg.ModelID, cfg.APIKey, cfg.BaseURL); len(missing) > 0 {
		return 0, fmt.Errorf("inactive, missing %s", joinFields(missing))
	}
	elapsed, err := d.Ping(ctx, llm.RefFromConfig(cfg))
	if err != nil {
		return 0, err
	}
	return elapsed.Round(time.Millisecond), nil
}

// describeError prefers the user-facing text of invocation failures.
func describeError(err error) string {
	var ie *llm.InvocationError
	if errors.As(err, &ie) {
		return fmt.Sprintf("%s [%s]", ie.UserMessage(), ie.Category)
	}
	return err.Error()
}

// findConfig resolves an id, a unique id prefix or a label.
func findConfig(configs []models.ModelConfig, ref string) (int, error) {
	ref = strings.TrimSpace(ref)
	if ref == "" {
		return -1, errors.New("empty configuration reference")
	}
	for i, c := range configs {
		if c.ID == ref {
			return i, nil
		}
	}

	match := -1
	for i, c := range configs {
		if strings.HasPrefix(c.ID, ref) || strings.EqualFold(c.Label, ref) {
			if match >= 0 {
				return -1, fmt.Errorf("%q matches more than one configuration", ref)
			}
			match = i
		}
	}
	if match < 0 {
		return -1, fmt.Errorf("no configuration matches %q", ref)
	}
	return match, nil
}

// lastUsedID is the id of the active config the rotation cursor points at.
func lastUsedID(reg *config.Registry, all []models.ModelConfig) string {
	active := config.ActiveConfigs(all)
	cur := reg.Cursor()
	if cur < 0 || cur >= len(active) {
		return ""
	}
	return active[cur].ID
}

func renderConfigs(cmd *cobra.Command, configs []models.ModelConfig, lastID string) {
	rows := make([][]string, 0, len(configs))
	for _, c := range configs {
		status := "○ inactive"
		if c.IsActive() {
			status = "● active"
		}
		if c.ID == lastID {
			status += " ◀ last"
		}
		rows = append(rows, []string{
			shortID(c.ID),
			c.Label,
			string(c.Provider),
			c.ModelID,
			utils.MaskAPIKey(c.APIKey),
			c.BaseURL,
			status,
		})
	}
	renderTable(cmd.OutOrStdout(), []string{"ID", "Label", "Provider", "Model", "API Key", "Base URL", "Status"}, rows)
}

func warnInactive(cmd *cobra.Command, cfg models.ModelConfig) {
	missing, err := providers.Missing(cfg.Provider, cfg.ModelID, cfg.APIKey, cfg.BaseURL)
	if err != nil || len(missing) == 0 {
		return
	}
	printWarning(cmd.OutOrStdout(), "%s is inactive until %s is set", cfg.Label, joinFields(missing))
}

func joinFields(fields []providers.Field) string {
	names := make([]string, len(fields))
	for i, f := range fields {
		names[i] = string(f)
	}
	return strings.Join(names, ", ")
}

func shortID(id string) string {
	if len(id) > 8 {
		return id[:8]
	}
	return id
}

func providerNames() string {
	names := providers.List()
	out := make([]string, len(names))
	for i, n := range names {
		out[i] = string(n)
	}
	return strings.Join(out, ", ")
}
