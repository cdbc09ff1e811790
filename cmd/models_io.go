package cmd

import (
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"
	"github.com/tidwall/gjson"

	"maestro/config"
	"maestro/config/models"
	"maestro/config/storage"
)

func newModelsExportCmd(a *app) *cobra.Command {
	var reveal bool
	cmd := &cobra.Command{
		Use:   "export [file]",
		Short: "Write the configurations as JSON",
		Long: `Write the configurations as JSON, to stdout or a file.

Keys are masked unless --reveal is given. A masked export can be edited and
imported again: masked keys of known ids keep their stored value.`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			configs := a.registry.LoadConfigs()
			if !reveal {
				configs = models.MaskAll(configs)
			}
			if len(args) == 0 {
				return writeJSON(cmd.OutOrStdout(), configs)
			}

			f, err := os.OpenFile(args[0], os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0o600)
			if err != nil {
				return fmt.Errorf("failed to create %s: %w", args[0], err)
			}
			if err := writeJSON(f, configs); err != nil {
				f.Close()
				return err
			}
			if err := f.Close(); err != nil {
				return err
			}
			printSuccess(cmd.OutOrStdout(), "Exported %d configurations to %s", len(configs), args[0])
			return nil
		},
	}
	cmd.Flags().BoolVar(&reveal, "reveal", false, "write API keys in clear text")
	return cmd
}

func newModelsImportCmd(a *app) *cobra.Command {
	var merge bool
	cmd := &cobra.Command{
		Use:   "import <file|->",
		Short: "Replace the configurations with a JSON list",
		Long: `Replace the configurations with a JSON list read from a file or stdin.

The document is either a list of configurations or an object with a
"models" list. With --merge the entries are appended instead.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			incoming, err := readConfigs(cmd, args[0])
			if err != nil {
				return err
			}

			var saved []models.ModelConfig
			err = a.registry.Edit(func(current []models.ModelConfig) ([]models.ModelConfig, error) {
				restored, err := models.RestoreMaskedKeys(current, incoming)
				if err != nil {
					return nil, err
				}
				if merge {
					saved = append(append([]models.ModelConfig{}, current...), restored...)
				} else {
					saved = restored
				}
				return saved, nil
			})
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			printSuccess(out, "Imported %d configurations (%d total)", len(incoming), len(saved))
			if len(config.ActiveConfigs(saved)) == 0 {
				printWarning(out, "%v", config.ErrNoActiveModel)
			}
			return nil
		},
	}
	cmd.Flags().BoolVar(&merge, "merge", false, "append to the stored configurations")
	return cmd
}

func readConfigs(cmd *cobra.Command, path string) ([]models.ModelConfig, error) {
	var (
		data []byte
		err  error
	)
	if path == "-" {
		data, err = io.ReadAll(cmd.InOrStdin())
	} else {
		data, err = os.ReadFile(path)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read %s: %w", path, err)
	}

	if !gjson.ValidBytes(data) {
		return nil, fmt.Errorf("%s is not valid JSON", path)
	}
	doc := gjson.ParseBytes(data)
	if doc.IsObject() {
		doc = doc.Get("models")
	}
	if !doc.IsArray() {
		return nil, fmt.Errorf("%s must hold a list of configurations or an object with a \"models\" list", path)
	}

	var configs []models.ModelConfig
	if err := json.Unmarshal([]byte(doc.Raw), &configs); err != nil {
		return nil, fmt.Errorf("failed to decode %s: %w", path, err)
	}
	return configs, nil
}

func newModelsRestoreCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "restore",
		Short: "Undo the last configuration change from the state file backup",
		Long: `Replace the state file with its newest backup.

Backups are taken before every configuration write when store.backups is
set, and whenever a corrupt state file is replaced. Only the file store
keeps backups.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			fs, ok := a.store.(*storage.FileStore)
			if !ok {
				return fmt.Errorf("restore needs the file store, the %s store keeps no backups", a.settings.Store.Backend)
			}
			used, err := fs.RestoreLatestBackup()
			if err != nil {
				return err
			}
			configs := a.registry.LoadConfigs()
			printSuccess(cmd.OutOrStdout(), "Restored %s from %s (%d configurations)", fs.Path(), used, len(configs))
			return nil
		},
	}
}
