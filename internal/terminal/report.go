package terminal

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/charmbracelet/lipgloss"
	"github.com/mattn/go-runewidth"
	"golang.org/x/text/language"
	"golang.org/x/text/message"

	"github.com/YuminosukeSato/binclass/internal/app"
	"github.com/YuminosukeSato/binclass/internal/render"
	"github.com/YuminosukeSato/binclass/pkg/errors"
	"github.com/YuminosukeSato/binclass/plotting"
)

// MaxCellWidth bounds the display width of one raw table cell.
const MaxCellWidth = 16

var (
	titleStyle   = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("205"))
	headingStyle = lipgloss.NewStyle().Bold(true).Underline(true)
	errorStyle   = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("9"))
	dimStyle     = lipgloss.NewStyle().Faint(true)

	printer = message.NewPrinter(language.English)
)

// WriteReport prints the outcome of a classify action: the error message of a
// failed pass, or the heading and metric lines of a successful one.
func WriteReport(w io.Writer, page *app.Page) {
	fmt.Fprintln(w, titleStyle.Render(page.Title)) //nolint:errcheck
	if page.Error != "" {
		fmt.Fprintln(w, errorStyle.Render("Error: "+page.Error)) //nolint:errcheck
		return
	}
	if page.Result == nil {
		return
	}
	fmt.Fprintln(w, headingStyle.Render(page.Result.Heading)) //nolint:errcheck
	for _, line := range page.Result.Report.Lines() {
		fmt.Fprintln(w, line) //nolint:errcheck
	}
	if page.Result.RunID != "" {
		fmt.Fprintln(w, dimStyle.Render("run "+page.Result.RunID)) //nolint:errcheck
	}
}

// WriteTable prints the raw data view as an aligned table.
func WriteTable(w io.Writer, raw *app.RawView) {
	if raw == nil {
		return
	}
	fmt.Fprintln(w, headingStyle.Render(raw.Title)) //nolint:errcheck

	widths := make([]int, len(raw.Columns))
	for j, c := range raw.Columns {
		widths[j] = cellWidth(c)
	}
	for _, row := range raw.Rows {
		for j, cell := range row {
			if j < len(widths) {
				widths[j] = max(widths[j], cellWidth(cell))
			}
		}
	}

	fmt.Fprintln(w, tableRow(raw.Columns, widths)) //nolint:errcheck
	for _, row := range raw.Rows {
		fmt.Fprintln(w, tableRow(row, widths)) //nolint:errcheck
	}
	fmt.Fprintln(w, dimStyle.Render(printer.Sprintf("Showing %d of %d rows", len(raw.Rows), raw.TotalRows))) //nolint:errcheck
}

func cellWidth(s string) int {
	return min(runewidth.StringWidth(s), MaxCellWidth)
}

func tableRow(cells []string, widths []int) string {
	parts := make([]string, len(widths))
	for j := range widths {
		var cell string
		if j < len(cells) {
			cell = runewidth.Truncate(cells[j], MaxCellWidth, "…")
		}
		parts[j] = padRight(cell, widths[j])
	}
	return strings.TrimRight(strings.Join(parts, "  "), " ")
}

// padRight pads s with spaces so its terminal display width reaches width.
func padRight(s string, width int) string {
	sw := runewidth.StringWidth(s)
	if sw >= width {
		return s
	}
	return s + strings.Repeat(" ", width-sw)
}

// SaveFigures writes each figure as <kind>.png into dir and returns the paths.
func SaveFigures(dir string, figures []render.Figure) ([]string, error) {
	if len(figures) == 0 {
		return nil, nil
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, errors.Wrapf(err, "failed to create %s", dir)
	}
	paths := make([]string, 0, len(figures))
	for _, f := range figures {
		data, err := f.PNG(plotting.DefaultWidth, plotting.DefaultHeight)
		if err != nil {
			return paths, err
		}
		path := filepath.Join(dir, string(f.Kind)+".png")
		if err := os.WriteFile(path, data, 0o644); err != nil {
			return paths, errors.Wrapf(err, "failed to write %s", path)
		}
		paths = append(paths, path)
	}
	return paths, nil
}
