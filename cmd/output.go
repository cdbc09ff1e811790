package cmd

import (
	"fmt"
	"io"

	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/lipgloss/table"
	jsoniter "github.com/json-iterator/go"
)

var json = jsoniter.ConfigCompatibleWithStandardLibrary

var (
	headerStyle = lipgloss.NewStyle().Bold(true).Padding(0, 1)
	cellStyle   = lipgloss.NewStyle().Padding(0, 1)
)

// renderTable writes rows as a bordered table.
func renderTable(w io.Writer, headers []string, rows [][]string) {
	t := table.New().
		Border(lipgloss.NormalBorder()).
		Headers(headers...).
		Rows(rows...).
		StyleFunc(func(row, _ int) lipgloss.Style {
			if row == table.HeaderRow {
				return headerStyle
			}
			return cellStyle
		})
	fmt.Fprintln(w, t.Render())
}

// writeJSON pretty prints v.
func writeJSON(w io.Writer, v any) error {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return err
	}
	_, err = fmt.Fprintln(w, string(data))
	return err
}

func printSuccess(w io.Writer, format string, args ...any) {
	fmt.Fprintf(w, "✅ "+format+"\n", args...)
}

func printWarning(w io.Writer, format string, args ...any) {
	fmt.Fprintf(w, "⚠️  "+format+"\n", args...)
}

func printFailure(w io.Writer, format string, args ...any) {
	fmt.Fprintf(w, "❌ "+format+"\n", args...)
}
