// Package ui renders headers, status lines and the run summary.
package ui

import (
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/mattn/go-isatty"
	"github.com/mgutz/ansi"

	"flakeload/internal/pipeline"
	"flakeload/pkg/errors"
)

// Printer writes human output. Colour is used only on a terminal.
type Printer struct {
	out   io.Writer
	color bool
}

// NewPrinter returns a Printer on out, colouring when out is a terminal
// and noColor is false.
func NewPrinter(out io.Writer, noColor bool) *Printer {
	return &Printer{out: out, color: !noColor && isTerminal(out)}
}

var isTerminal = func(w io.Writer) bool {
	f, ok := w.(*os.File)
	if !ok {
		return false
	}
	return isatty.IsTerminal(f.Fd()) || isatty.IsCygwinTerminal(f.Fd())
}

func (p *Printer) paint(text, style string) string {
	if p.color {
		return ansi.Color(text, style)
	}
	return text
}

func (p *Printer) success(s string) string { return p.paint(s, ansi.Green) }
func (p *Printer) failure(s string) string { return p.paint(s, ansi.Red) }
func (p *Printer) warning(s string) string { return p.paint(s, ansi.Yellow) }
func (p *Printer) info(s string) string    { return p.paint(s, ansi.Cyan) }
func (p *Printer) bold(s string) string    { return p.paint(s, "default+b") }
func (p *Printer) dim(s string) string     { return p.paint(s, "default+h") }

// ShowHeader displays a boxed title.
func (p *Printer) ShowHeader(title string) {
	width := max(50, len(title)+4)
	padding := (width - len(title) - 2) / 2

	fmt.Fprintln(p.out, "\n+"+strings.Repeat("-", width-2)+"+")
	fmt.Fprintf(p.out, "|%s%s%s|\n",
		strings.Repeat(" ", padding),
		p.bold(title),
		strings.Repeat(" ", width-2-padding-len(title)),
	)
	fmt.Fprintln(p.out, "+"+strings.Repeat("-", width-2)+"+")
}

// ShowError displays err with its error code and any suggestions.
func (p *Printer) ShowError(err error) {
	var appErr *errors.AppError
	if errors.As(err, &appErr) {
		fmt.Fprintf(p.out, "\n%s [%s] %s\n", p.failure("ERROR:"), appErr.Code, appErr.Message)
		if appErr.Cause != nil {
			fmt.Fprintf(p.out, "  %s\n", p.dim(appErr.Cause.Error()))
		}
		for _, k := range appErr.ContextKeys() {
			fmt.Fprintf(p.out, "  %s %v\n", p.dim(k+":"), appErr.Context[k])
		}
		for _, s := range appErr.Suggestions {
			fmt.Fprintf(p.out, "  %s %s\n", p.info("TIP:"), s)
		}
		return
	}

	lines := strings.Split(err.Error(), "\n")
	fmt.Fprintf(p.out, "\n%s %s\n", p.failure("ERROR:"), lines[0])
	for _, line := range lines[1:] {
		fmt.Fprintf(p.out, "  %s\n", p.dim(line))
	}
}

// ShowSuccess displays a success message.
func (p *Printer) ShowSuccess(message string) {
	fmt.Fprintf(p.out, "%s %s\n", p.success("SUCCESS:"), message)
}

// ShowWarning displays a warning message.
func (p *Printer) ShowWarning(message string) {
	fmt.Fprintf(p.out, "%s %s\n", p.warning("WARNING:"), message)
}

// ShowInfo displays an info message.
func (p *Printer) ShowInfo(message string) {
	fmt.Fprintf(p.out, "%s %s\n", p.info("INFO:"), message)
}

// StepFinished prints one status line per pipeline step.
func (p *Printer) StepFinished(s pipeline.Step) {
	mark := p.success("✓")
	if s.Status == pipeline.StatusFailed {
		mark = p.failure("✗")
	}
	fmt.Fprintf(p.out, "%s %-9s %-20s %s %s\n", mark, s.Name, s.Target, s.Detail, p.dim(formatDuration(s.Duration)))
}
