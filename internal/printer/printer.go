// Package printer renders profiling results as terminal tables.
package printer

import (
	"encoding/json"
	"fmt"
	"io"
	"strings"

	"github.com/charmbracelet/lipgloss"
	"github.com/dustin/go-humanize"
	"github.com/olekukonko/tablewriter"

	"github.com/joshuapare/heapkit/target"
)

// Options controls rendering.
type Options struct {
	Color bool // style headings, states and severities with ANSI colors
}

// Printer writes tables and headings to w.
type Printer struct {
	w    io.Writer
	opts Options
}

// New returns a printer writing to w.
func New(w io.Writer, opts Options) *Printer {
	return &Printer{w: w, opts: opts}
}

var (
	headingStyle = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("#7D56F4"))
	mutedStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("#666666"))
	okStyle      = lipgloss.NewStyle().Foreground(lipgloss.Color("#04B575"))
	warnStyle    = lipgloss.NewStyle().Foreground(lipgloss.Color("#FFA500"))
	errStyle     = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("#FF4B4B"))
)

func (p *Printer) style(s lipgloss.Style, text string) string {
	if !p.opts.Color {
		return text
	}
	return s.Render(text)
}

func (p *Printer) printf(format string, args ...any) {
	fmt.Fprintf(p.w, format, args...)
}

// Heading prints a section title followed by a rule.
func (p *Printer) Heading(title string) {
	p.printf("\n%s\n%s\n", p.style(headingStyle, title), p.style(mutedStyle, strings.Repeat("─", len(title))))
}

func (p *Printer) table(header ...string) *tablewriter.Table {
	t := tablewriter.NewWriter(p.w)
	t.SetHeader(header)
	t.SetAutoFormatHeaders(false)
	t.SetAutoWrapText(false)
	t.SetAlignment(tablewriter.ALIGN_LEFT)
	t.SetHeaderAlignment(tablewriter.ALIGN_LEFT)
	t.SetBorder(false)
	t.SetColumnSeparator(" ")
	t.SetCenterSeparator(" ")
	t.SetHeaderLine(true)
	t.SetRowSeparator("─")
	return t
}

// JSON writes v as indented JSON.
func JSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

// Bytes formats a byte count, or "-" for a negative count.
func Bytes(n int64) string {
	if n < 0 {
		return "-"
	}
	return humanize.IBytes(uint64(n))
}

// Count formats n with thousands separators.
func Count(n int) string { return humanize.Comma(int64(n)) }

// Addr formats a target address.
func Addr(a target.Address) string { return fmt.Sprintf("0x%08X", uint32(a)) }

// Percent formats part as a share of whole.
func Percent(part, whole int) string {
	if whole <= 0 {
		return "-"
	}
	return fmt.Sprintf("%.1f%%", float64(part)*100/float64(whole))
}
