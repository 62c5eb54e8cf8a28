package helpers

import (
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/charmbracelet/lipgloss"
	"golang.org/x/term"

	"github.com/coral-mesh/apitrace/internal/errors"
)

// Report summarizes one generation run for the check command.
type Report struct {
	Registry    string
	Fingerprint string
	Commands    int
	Events      int
	Signatures  int
	Diagnostics errors.Diagnostics
}

type reportStyles struct {
	title   lipgloss.Style
	label   lipgloss.Style
	err     lipgloss.Style
	warning lipgloss.Style
	ok      lipgloss.Style
	detail  lipgloss.Style
}

func newReportStyles(r *lipgloss.Renderer, width int) reportStyles {
	s := reportStyles{
		title:   r.NewStyle().Bold(true).Foreground(lipgloss.Color("205")),
		label:   r.NewStyle().Foreground(lipgloss.Color("241")),
		err:     r.NewStyle().Foreground(lipgloss.Color("9")).Bold(true),
		warning: r.NewStyle().Foreground(lipgloss.Color("11")),
		ok:      r.NewStyle().Foreground(lipgloss.Color("10")).Bold(true),
		detail:  r.NewStyle().PaddingLeft(4),
	}
	if width > 8 {
		s.detail = s.detail.Width(width)
	}
	return s
}

// TerminalWidth returns the width of w when it is a terminal, or 0.
func TerminalWidth(w io.Writer) int {
	f, ok := w.(*os.File)
	if !ok || !term.IsTerminal(int(f.Fd())) {
		return 0
	}
	width, _, err := term.GetSize(int(f.Fd()))
	if err != nil {
		return 0
	}
	return width
}

// RenderReport writes a human-readable report. Colors are only emitted when
// w is a color-capable terminal.
func RenderReport(w io.Writer, rep Report) error {
	st := newReportStyles(lipgloss.NewRenderer(w), TerminalWidth(w))

	var b strings.Builder
	b.WriteString(st.title.Render("apitrace check"))
	b.WriteString("\n")
	for _, kv := range [][2]string{
		{"registry", rep.Registry},
		{"fingerprint", rep.Fingerprint},
		{"commands", fmt.Sprint(rep.Commands)},
		{"events", fmt.Sprint(rep.Events)},
		{"signatures", fmt.Sprint(rep.Signatures)},
	} {
		fmt.Fprintf(&b, "  %s %s\n", st.label.Render(fmt.Sprintf("%-12s", kv[0])), kv[1])
	}
	b.WriteString("\n")

	for _, d := range rep.Diagnostics {
		marker := st.warning.Render("! warning")
		if d.Severity == errors.SeverityError {
			marker = st.err.Render("✗ error  ")
		}
		subject := d.Function
		if d.Field != "" {
			if subject != "" {
				subject += "."
			}
			subject += d.Field
		}
		fmt.Fprintf(&b, "%s %s\n", marker, subject)
		b.WriteString(st.detail.Render(d.Message))
		b.WriteString("\n")
	}

	warnings := rep.Diagnostics.Count(errors.SeverityWarning)
	errs := rep.Diagnostics.Count(errors.SeverityError)
	switch {
	case errs > 0:
		b.WriteString(st.err.Render(fmt.Sprintf("%s, %s", plural(errs, "error"), plural(warnings, "warning"))))
	case warnings > 0:
		b.WriteString(st.warning.Render(plural(warnings, "warning")))
	default:
		b.WriteString(st.ok.Render("✓ no findings"))
	}
	b.WriteString("\n")

	_, err := io.WriteString(w, b.String())
	return err
}

func plural(n int, noun string) string {
	if n == 1 {
		return fmt.Sprintf("1 %s", noun)
	}
	return fmt.Sprintf("%d %ss", n, noun)
}
