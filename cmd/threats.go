package cmd

import (
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"maestro/internal/maestro"
)

func newLayersCmd() *cobra.Command {
	var asJSON bool
	cmd := &cobra.Command{
		Use:   "layers",
		Short: "List the seven MAESTRO layers",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			layers := maestro.Layers()
			if asJSON {
				return writeJSON(cmd.OutOrStdout(), layers)
			}
			rows := make([][]string, len(layers))
			for i, l := range layers {
				rows[i] = []string{fmt.Sprint(i + 1), l.ID, l.Name, l.Description}
			}
			renderTable(cmd.OutOrStdout(), []string{"#", "ID", "Name", "Description"}, rows)
			return nil
		},
	}
	cmd.Flags().BoolVar(&asJSON, "json", false, "print the layers as JSON")
	return cmd
}

func newThreatsCmd(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:     "threats",
		Aliases: []string{"threat"},
		Short:   "Work with the stored threat model",
	}
	cmd.AddCommand(
		newThreatsListCmd(a),
		newThreatsDescribeCmd(a),
		newThreatsGenerateCmd(a),
		newThreatsRemoveCmd(a),
		newThreatsClearCmd(a),
		newThreatsMatrixCmd(a),
		newThreatsPromptCmd(a),
	)
	return cmd
}

func newThreatsListCmd(a *app) *cobra.Command {
	var (
		layer  string
		asJSON bool
	)
	cmd := &cobra.Command{
		Use:     "list",
		Aliases: []string{"ls"},
		Short:   "List the threats grouped by layer",
		Args:    cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			threats := a.workspace.Load().Threats
			if layer != "" {
				name := layerName(layer)
				filtered := threats[:0:0]
				for _, t := range threats {
					if t.Layer == name {
						filtered = append(filtered, t)
					}
				}
				threats = filtered
			}
			groups := maestro.GroupByLayer(threats)

			out := cmd.OutOrStdout()
			if asJSON {
				return writeJSON(out, groups)
			}
			if len(groups) == 0 {
				fmt.Fprintln(out, "No threats in the model")
				return nil
			}
			for _, g := range groups {
				fmt.Fprintf(out, "%s (%d)\n", g.Layer, len(g.Threats))
				rows := make([][]string, len(g.Threats))
				for i, t := range g.Threats {
					rows[i] = []string{t.ID, string(t.Risk), t.Name}
				}
				renderTable(out, []string{"ID", "Risk", "Name"}, rows)
			}
			return nil
		},
	}
	cmd.Flags().StringVar(&layer, "layer", "", "only show one layer (id or name)")
	cmd.Flags().BoolVar(&asJSON, "json", false, "print the groups as JSON")
	return cmd
}

func newThreatsDescribeCmd(a *app) *cobra.Command {
	var file string
	cmd := &cobra.Command{
		Use:   "describe [text]",
		Short: "Show or set the system description",
		Long: `Show or set the system description the generations analyse.

  maestro threats describe                      print the description
  maestro threats describe "An agent that..."   set it
  maestro threats describe --file system.md     set it from a file ("-" for stdin)`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			out := cmd.OutOrStdout()
			text, err := descriptionInput(cmd, args, file)
			if err != nil {
				return err
			}
			if text == "" {
				fmt.Fprintln(out, a.workspace.Load().SystemDescription)
				return nil
			}
			if _, err := a.workspace.SetDescription(text); err != nil {
				return err
			}
			printSuccess(out, "System description updated")
			return nil
		},
	}
	cmd.Flags().StringVarP(&file, "file", "f", "", "read the description from a file")
	return cmd
}

func newThreatsGenerateCmd(a *app) *cobra.Command {
	var (
		layer       string
		description string
		all         bool
		noPrompt    bool
	)
	cmd := &cobra.Command{
		Use:   "generate",
		Short: "Ask a model for threats in a layer and add them to the model",
		Long: `Ask the next model in the rotation for 2-3 threats in a MAESTRO layer
and add them to the stored threat model.

Without --layer the layer is asked for interactively. --all generates for
every layer in turn.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			desc := strings.TrimSpace(description)
			if desc == "" {
				desc = a.workspace.Load().SystemDescription
			}

			var targets []string
			switch {
			case all:
				for _, l := range maestro.Layers() {
					targets = append(targets, l.Name)
				}
			case layer != "":
				targets = []string{layer}
			default:
				selector := NewLayerSelector(cmd.InOrStdin(), cmd.ErrOrStderr())
				if !selector.ShouldPrompt(layer, noPrompt) {
					return errors.New("--layer is required when not running interactively")
				}
				chosen, err := selector.Prompt("")
				if err != nil {
					return err
				}
				targets = []string{chosen}
			}

			out := cmd.OutOrStdout()
			failed := 0
			for _, target := range targets {
				res, err := a.generator.GenerateThreats(cmd.Context(), desc, target)
				if err != nil {
					if !all {
						return err
					}
					failed++
					printFailure(out, "%s: %s", target, describeError(err))
					continue
				}
				if _, err := a.workspace.AddThreats(res.Value...); err != nil {
					return err
				}
				printSuccess(out, "%s: added %d threats (model: %s)", layerName(target), len(res.Value), res.Model)
				for _, t := range res.Value {
					fmt.Fprintf(out, "  [%s] %s\n", t.Risk, t.Name)
				}
			}
			if failed > 0 {
				return fmt.Errorf("%d of %d layers failed", failed, len(targets))
			}
			return nil
		},
	}
	cmd.Flags().StringVar(&layer, "layer", "", "layer id or name")
	cmd.Flags().StringVarP(&description, "description", "d", "", "system description (default: the stored one)")
	cmd.Flags().BoolVar(&all, "all", false, "generate for every layer")
	cmd.Flags().BoolVar(&noPrompt, "no-prompt", false, "never ask for the layer")
	cmd.MarkFlagsMutuallyExclusive("layer", "all")
	return cmd
}

func newThreatsRemoveCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:     "remove <id>",
		Aliases: []string{"rm"},
		Short:   "Remove a threat",
		Args:    cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			removed, err := a.workspace.RemoveThreat(args[0])
			if err != nil {
				return err
			}
			if !removed {
				return fmt.Errorf("no threat with id %q", args[0])
			}
			printSuccess(cmd.OutOrStdout(), "Removed threat %s", args[0])
			return nil
		},
	}
}

func newThreatsClearCmd(a *app) *cobra.Command {
	var reset bool
	cmd := &cobra.Command{
		Use:   "clear",
		Short: "Remove every threat",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if reset {
				if _, err := a.workspace.Reset(); err != nil {
					return err
				}
				printSuccess(cmd.OutOrStdout(), "Threat model reset to the example system")
				return nil
			}
			if _, err := a.workspace.Clear(); err != nil {
				return err
			}
			printSuccess(cmd.OutOrStdout(), "All threats removed")
			return nil
		},
	}
	cmd.Flags().BoolVar(&reset, "reset", false, "also restore the example description and threat")
	return cmd
}

func newThreatsMatrixCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "matrix",
		Short: "Show the likelihood by risk matrix",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			m := maestro.BuildRiskMatrix(a.workspace.Load().Threats)

			headers := []string{"Likelihood"}
			for _, r := range maestro.RiskLevels {
				headers = append(headers, string(r))
			}
			var rows [][]string
			// most likely first, as the matrix is usually drawn
			for i := len(maestro.Likelihoods) - 1; i >= 0; i-- {
				l := maestro.Likelihoods[i]
				row := []string{string(l)}
				for _, r := range maestro.RiskLevels {
					row = append(row, fmt.Sprint(m.Count(l, r)))
				}
				rows = append(rows, row)
			}
			out := cmd.OutOrStdout()
			renderTable(out, headers, rows)
			fmt.Fprintf(out, "%d threats placed\n", m.Total())
			return nil
		},
	}
}

func newThreatsPromptCmd(a *app) *cobra.Command {
	var (
		layer         string
		description   string
		templates     string
		templatesFile string
	)
	cmd := &cobra.Command{
		Use:   "prompt",
		Short: "Write a threat-analysis prompt for one layer",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if layer == "" {
				return errors.New("--layer is required")
			}
			desc := strings.TrimSpace(description)
			if desc == "" {
				desc = a.workspace.Load().SystemDescription
			}
			if templatesFile != "" {
				data, err := os.ReadFile(templatesFile)
				if err != nil {
					return fmt.Errorf("failed to read %s: %w", templatesFile, err)
				}
				templates = string(data)
			}

			res, err := a.generator.GenerateLayerPrompt(cmd.Context(), desc, layer, templates)
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			fmt.Fprintln(out, res.Value)
			fmt.Fprintf(cmd.ErrOrStderr(), "(model: %s)\n", res.Model)
			return nil
		},
	}
	cmd.Flags().StringVar(&layer, "layer", "", "layer id or name")
	cmd.Flags().StringVarP(&description, "description", "d", "", "system description (default: the stored one)")
	cmd.Flags().StringVar(&templates, "templates", "", "threat templates to include")
	cmd.Flags().StringVar(&templatesFile, "templates-file", "", "read the threat templates from a file")
	cmd.MarkFlagsMutuallyExclusive("templates", "templates-file")
	return cmd
}

func newDiagramCmd(a *app) *cobra.Command {
	var (
		description string
		asJSON      bool
	)
	cmd := &cobra.Command{
		Use:   "diagram",
		Short: "Ask a model for the architecture graph of the system",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			desc := strings.TrimSpace(description)
			if desc == "" {
				desc = a.workspace.Load().SystemDescription
			}
			res, err := a.generator.GenerateDiagram(cmd.Context(), desc)
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			if asJSON {
				return writeJSON(out, res.Value)
			}
			nodes := make([][]string, len(res.Value.Nodes))
			for i, n := range res.Value.Nodes {
				nodes[i] = []string{n.ID, n.Label, string(n.Type)}
			}
			renderTable(out, []string{"Node", "Label", "Type"}, nodes)
			links := make([][]string, len(res.Value.Links))
			for i, l := range res.Value.Links {
				links[i] = []string{l.Source, l.Target, l.Label}
			}
			renderTable(out, []string{"Source", "Target", "Label"}, links)
			fmt.Fprintf(out, "model: %s\n", res.Model)
			return nil
		},
	}
	cmd.Flags().StringVarP(&description, "description", "d", "", "system description (default: the stored one)")
	cmd.Flags().BoolVar(&asJSON, "json", false, "print the graph as JSON")
	return cmd
}

// layerName maps a layer id to its name and leaves other values as given.
func layerName(s string) string {
	if l, ok := maestro.FindLayer(s); ok {
		return l.Name
	}
	return strings.TrimSpace(s)
}

// descriptionInput returns the description given as an argument or a file.
func descriptionInput(cmd *cobra.Command, args []string, file string) (string, error) {
	if len(args) > 0 && file != "" {
		return "", errors.New("give the description as an argument or with --file, not both")
	}
	if len(args) > 0 {
		return strings.TrimSpace(args[0]), nil
	}
	if file == "" {
		return "", nil
	}

	var (
		data []byte
		err  error
	)
	if file == "-" {
		data, err = io.ReadAll(cmd.InOrStdin())
	} else {
		data, err = os.ReadFile(file)
	}
	if err != nil {
		return "", fmt.Errorf("failed to read %s: %w", file, err)
	}
	text := strings.TrimSpace(string(data))
	if text == "" {
		return "", errors.New("description file is empty")
	}
	return text, nil
}
