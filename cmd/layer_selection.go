package cmd

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"

	"maestro/internal/maestro"
)

// LayerSelector asks which MAESTRO layer a threat generation targets.
type LayerSelector struct {
	in  io.Reader
	out io.Writer
}

// NewLayerSelector creates a LayerSelector reading answers from in and
// writing the prompt to out.
func NewLayerSelector(in io.Reader, out io.Writer) *LayerSelector {
	return &LayerSelector{in: in, out: out}
}

// ShouldPrompt reports whether the user should be asked for a layer:
// no --layer flag, prompting allowed and an interactive terminal.
func (ls *LayerSelector) ShouldPrompt(layerFlag string, noPrompt bool) bool {
	if noPrompt || layerFlag != "" {
		return false
	}
	return isInteractiveTerminal()
}

// Prompt lists the layers and returns the chosen layer name. Enter alone
// keeps current.
func (ls *LayerSelector) Prompt(current string) (string, error) {
	layers := maestro.Layers()
	reader := bufio.NewReader(ls.in)

	fmt.Fprintln(ls.out, "📋 MAESTRO layers:")
	for i, l := range layers {
		line := fmt.Sprintf("  %2d. %s", i+1, l.Name)
		if l.Name == current {
			line = fmt.Sprintf("  ➤ %2d. %s (current)", i+1, l.Name)
		}
		fmt.Fprintln(ls.out, line)
	}

	if current != "" {
		fmt.Fprintf(ls.out, "\nSelect layer (1-%d) [Enter for '%s']: ", len(layers), current)
	} else {
		fmt.Fprintf(ls.out, "\nSelect layer (1-%d): ", len(layers))
	}

	input, err := reader.ReadString('\n')
	if err != nil && !(err == io.EOF && input != "") {
		return "", fmt.Errorf("failed to read user input: %w", err)
	}
	input = strings.TrimSpace(input)
	if input == "" {
		if current == "" {
			return "", errors.New("no layer selected")
		}
		return current, nil
	}

	n, err := strconv.Atoi(input)
	if err != nil || n < 1 || n > len(layers) {
		return "", fmt.Errorf("invalid selection, please enter a number between 1 and %d", len(layers))
	}
	return layers[n-1].Name, nil
}

// isInteractiveTerminal checks whether the process talks to a person.
func isInteractiveTerminal() bool {
	if isCIEnvironment() {
		return false
	}
	term := os.Getenv("TERM")
	if term == "" || term == "dumb" {
		return false
	}
	fi, err := os.Stdin.Stat()
	if err != nil {
		return false
	}
	return fi.Mode()&os.ModeCharDevice != 0
}

func isCIEnvironment() bool {
	ciVars := []string{
		"CI",
		"CONTINUOUS_INTEGRATION",
		"BUILD_NUMBER",
		"RUN_ID",
		"GITHUB_ACTIONS",
		"GITLAB_CI",
		"JENKINS_HOME",
		"TRAVIS",
		"CIRCLECI",
		"TEAMCITY_VERSION",
	}
	for _, v := range ciVars {
		if os.Getenv(v) != "" {
			return true
		}
	}
	return false
}
