// Package output renders user-facing terminal messages for anchors.
//
// [Printer] writes one line per event (a document being expanded or emitted,
// the final outcome of a run) using lipgloss styles. Styling is derived from
// the destination writer, so output captured in a buffer or piped to a file
// is plain text.
package output

import (
	"fmt"
	"io"
	"os"

	"github.com/charmbracelet/lipgloss"
	"github.com/muesli/termenv"
)

// Styles holds the lipgloss styles used by [Printer].
type Styles struct {
	Action  lipgloss.Style
	Name    lipgloss.Style
	Success lipgloss.Style
	Error   lipgloss.Style
	Muted   lipgloss.Style
}

func newStyles(r *lipgloss.Renderer) Styles {
	return Styles{
		Action:  r.NewStyle().Foreground(lipgloss.Color("12")),
		Name:    r.NewStyle().Bold(true),
		Success: r.NewStyle().Foreground(lipgloss.Color("10")).Bold(true),
		Error:   r.NewStyle().Foreground(lipgloss.Color("9")).Bold(true),
		Muted:   r.NewStyle().Foreground(lipgloss.Color("8")),
	}
}

// Printer writes progress and result messages.
type Printer struct {
	out      io.Writer
	errOut   io.Writer
	renderer *lipgloss.Renderer
	styles   Styles
}

// NewPrinter creates a [Printer] writing to stdout, with errors on stderr.
func NewPrinter() *Printer {
	p := NewPrinterWithWriter(os.Stdout)
	p.errOut = os.Stderr
	return p
}

// NewPrinterWithWriter creates a [Printer] writing everything to w.
// Useful for capturing output in tests.
func NewPrinterWithWriter(w io.Writer) *Printer {
	r := lipgloss.NewRenderer(w)
	return &Printer{
		out:      w,
		errOut:   w,
		renderer: r,
		styles:   newStyles(r),
	}
}

// SetColor enables or disables styling. Disabling always wins; enabling
// keeps the color profile detected for the writer.
func (p *Printer) SetColor(enabled bool) {
	if enabled {
		return
	}
	p.renderer.SetColorProfile(termenv.Ascii)
	p.styles = newStyles(p.renderer)
}

// Expanding announces that a workflow is about to be expanded.
func (p *Printer) Expanding(name string) {
	p.action("Expanding", name)
}

// Emitting announces that a workflow file is about to be written.
func (p *Printer) Emitting(name string) {
	p.action("Emitting", name)
}

func (p *Printer) action(verb, name string) {
	fmt.Fprintf(p.out, "%s %s\n", p.styles.Action.Render(verb), p.styles.Name.Render(name))
}

// UpToDate reports a successful check of dir.
func (p *Printer) UpToDate(dir string, count int) {
	fmt.Fprintf(p.out, "%s %s\n",
		p.styles.Success.Render("✓ "+dir+" is up to date"),
		p.styles.Muted.Render(fmt.Sprintf("(%d %s)", count, plural(count, "workflow"))))
}

// Emitted reports that count workflows were written to dir.
func (p *Printer) Emitted(dir string, count int) {
	fmt.Fprintf(p.out, "%s\n",
		p.styles.Success.Render(fmt.Sprintf("✓ wrote %d %s to %s", count, plural(count, "workflow"), dir)))
}

// Error reports the error that ended the run.
func (p *Printer) Error(err error) {
	fmt.Fprintf(p.errOut, "%s %v\n", p.styles.Error.Render("Error:"), err)
}

func plural(n int, word string) string {
	if n == 1 {
		return word
	}
	return word + "s"
}
