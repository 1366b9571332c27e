package logger

import (
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/fatih/color"
)

// Icons and symbols for different log types
const (
	IconSuccess = "✅"
	IconError   = "❌"
	IconWarning = "⚠️"
	IconPause   = "⏸️"
	IconResume  = "▶️"
	IconSkull   = "💀"
	IconSword   = "⚔️"
	IconRefresh = "🔄"
	IconDot     = "•"
)

var (
	colorSection    = color.New(color.FgCyan, color.Bold)
	colorSubSection = color.New(color.FgHiBlack)
	colorKey        = color.New(color.FgCyan)
)

// Output is where the section and table helpers write. Tests may swap it.
var Output io.Writer = os.Stdout

// Success logs a success message with a green checkmark
func Success(args ...interface{}) {
	defaultLogger.Info(IconSuccess + " " + fmt.Sprint(args...))
}

// Successf logs a formatted success message
func Successf(format string, args ...interface{}) {
	Success(fmt.Sprintf(format, args...))
}

// Progress logs a progress message with a refresh icon
func Progress(args ...interface{}) {
	defaultLogger.Info(IconRefresh + " " + fmt.Sprint(args...))
}

// Progressf logs a formatted progress message
func Progressf(format string, args ...interface{}) {
	Progress(fmt.Sprintf(format, args...))
}

// LogSection creates a visual section separator
func LogSection(title string) {
	FprintSection(Output, title)
}

// FprintSection writes a section separator to w
func FprintSection(w io.Writer, title string) {
	line := strings.Repeat("=", 50)
	_, _ = colorSection.Fprintln(w, line)
	_, _ = colorSection.Fprintln(w, title)
	_, _ = colorSection.Fprintln(w, line)
}

// LogSubSection creates a visual subsection separator
func LogSubSection(title string) {
	line := strings.Repeat("-", 40)
	_, _ = colorSubSection.Fprintln(Output, line)
	_, _ = colorSubSection.Fprintln(Output, title)
	_, _ = colorSubSection.Fprintln(Output, line)
}

// LogKeyValue logs a key-value pair with nice formatting
func LogKeyValue(key string, value interface{}) {
	FprintKeyValue(Output, key, value)
}

// FprintKeyValue writes a key-value pair to w
func FprintKeyValue(w io.Writer, key string, value interface{}) {
	_, _ = fmt.Fprintf(w, "%s %v\n", colorKey.Sprint(key+":"), value)
}

// Table represents a simple table for logging
type Table struct {
	headers []string
	rows    [][]string
	colors  []*color.Color
}

// NewTable creates a new table
func NewTable(headers ...string) *Table {
	return &Table{headers: headers}
}

// AddRow adds a row to the table
func (t *Table) AddRow(values ...string) {
	t.AddColoredRow(nil, values...)
}

// AddColoredRow adds a row printed in c. A nil color prints plain.
func (t *Table) AddColoredRow(c *color.Color, values ...string) {
	t.rows = append(t.rows, values)
	t.colors = append(t.colors, c)
}

// Len returns the number of rows
func (t *Table) Len() int {
	return len(t.rows)
}

// Print prints the table to Output
func (t *Table) Print() {
	t.Fprint(Output)
}

// Fprint prints the table to w
func (t *Table) Fprint(w io.Writer) {
	if len(t.headers) == 0 {
		return
	}

	widths := make([]int, len(t.headers))
	for i, h := range t.headers {
		widths[i] = len(h)
	}
	for _, row := range t.rows {
		for i, cell := range row {
			if i < len(widths) && len(cell) > widths[i] {
				widths[i] = len(cell)
			}
		}
	}

	var b strings.Builder
	for i, h := range t.headers {
		fmt.Fprintf(&b, "%-*s  ", widths[i], h)
	}
	_, _ = fmt.Fprintln(w, strings.TrimRight(b.String(), " "))

	b.Reset()
	for i := range t.headers {
		b.WriteString(strings.Repeat("-", widths[i]) + "  ")
	}
	_, _ = fmt.Fprintln(w, strings.TrimRight(b.String(), " "))

	for r, row := range t.rows {
		b.Reset()
		for i, cell := range row {
			if i < len(widths) {
				fmt.Fprintf(&b, "%-*s  ", widths[i], cell)
			}
		}
		line := strings.TrimRight(b.String(), " ")
		if c := t.colors[r]; c != nil {
			line = c.Sprint(line)
		}
		_, _ = fmt.Fprintln(w, line)
	}
}
