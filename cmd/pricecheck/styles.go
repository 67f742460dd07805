package main

import (
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/charmbracelet/glamour"
	"github.com/charmbracelet/lipgloss"
	"github.com/mattn/go-isatty"
)

// Shelf-label palette.
var (
	colorPrimary      = lipgloss.Color("#E8772E")
	colorPrimaryLight = lipgloss.Color("#F39A5B")
	colorPrimaryDark  = lipgloss.Color("#B85A1E")

	colorText  = lipgloss.Color("#F2F3F3")
	colorMuted = lipgloss.Color("240")

	colorSuccess = lipgloss.Color("#22C55E")
	colorWarning = lipgloss.Color("#F59E0B")
	colorError   = lipgloss.Color("#EF4444")
)

var (
	mutedStyle = lipgloss.NewStyle().Foreground(colorMuted)
	fieldStyle = lipgloss.NewStyle().Foreground(colorPrimaryLight)
	priceStyle = lipgloss.NewStyle().Foreground(colorText).Bold(true)
)

// statusKind selects the icon and colour of a status line.
type statusKind int

const (
	statusSuccess statusKind = iota
	statusError
	statusWarning
	statusInfo
)

var statusMarks = [...]struct {
	icon  string
	style lipgloss.Style
}{
	statusSuccess: {"✓", lipgloss.NewStyle().Foreground(colorSuccess).Bold(true)},
	statusError:   {"✗", lipgloss.NewStyle().Foreground(colorError).Bold(true)},
	statusWarning: {"!", lipgloss.NewStyle().Foreground(colorWarning).Bold(true)},
	statusInfo:    {"€", lipgloss.NewStyle().Foreground(colorPrimary)},
}

// isTTY reports whether stdout is a terminal. Styling is applied only then,
// so piped output and --json stay plain.
func isTTY() bool {
	fd := os.Stdout.Fd()
	return isatty.IsTerminal(fd) || isatty.IsCygwinTerminal(fd)
}

// styled renders s with style in TTY mode only.
func styled(style lipgloss.Style, s string) string {
	if isTTY() {
		return style.Render(s)
	}
	return s
}

func printStatus(w io.Writer, kind statusKind, format string, args ...interface{}) {
	mark := statusMarks[kind]
	fmt.Fprintf(w, "%s %s\n", styled(mark.style, mark.icon), fmt.Sprintf(format, args...))
}

func printSuccess(w io.Writer, format string, args ...interface{}) {
	printStatus(w, statusSuccess, format, args...)
}

func printError(w io.Writer, format string, args ...interface{}) {
	printStatus(w, statusError, format, args...)
}

func printWarning(w io.Writer, format string, args ...interface{}) {
	printStatus(w, statusWarning, format, args...)
}

func printInfo(w io.Writer, format string, args ...interface{}) {
	printStatus(w, statusInfo, format, args...)
}

func printMuted(w io.Writer, format string, args ...interface{}) {
	fmt.Fprintln(w, styled(mutedStyle, fmt.Sprintf(format, args...)))
}

// printField prints an indented "label: value" row of a product card.
func printField(w io.Writer, label, value string) {
	fmt.Fprintf(w, "  %s %s\n", styled(fieldStyle, fmt.Sprintf("%-12s", label+":")), value)
}

// renderMarkdown renders markdown for the terminal, falling back to the
// raw text when not on a TTY or when glamour fails.
func renderMarkdown(content string) string {
	if !isTTY() {
		return content
	}

	renderer, err := glamour.NewTermRenderer(
		glamour.WithAutoStyle(),
		glamour.WithWordWrap(80),
	)
	if err != nil {
		return content
	}
	rendered, err := renderer.Render(content)
	if err != nil {
		return content
	}
	return strings.TrimSpace(rendered)
}
