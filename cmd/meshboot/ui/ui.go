// Package ui renders bootstrap progress for terminals and for the journal.
// Color degrades to plain ASCII when stderr is not a TTY, so the output
// stays greppable when phase2 runs from the continuation unit.
package ui

import (
	"fmt"
	"os"
	"strings"

	"github.com/charmbracelet/lipgloss"
	"github.com/muesli/termenv"
)

var (
	green  = lipgloss.Color("76")
	red    = lipgloss.Color("204")
	yellow = lipgloss.Color("214")
	dim    = lipgloss.Color("243")

	successStyle = lipgloss.NewStyle().Foreground(green)
	errorStyle   = lipgloss.NewStyle().Foreground(red)
	warnStyle    = lipgloss.NewStyle().Foreground(yellow)
	mutedStyle   = lipgloss.NewStyle().Foreground(dim)
)

// plain means no color and no non-ASCII marks: the output is headed for
// the journal or a CI log, not a terminal.
var plain bool

// Configure picks the color profile. Non-TTY stderr, CI, and TERM=dumb
// all get plain ASCII.
func Configure() {
	plain = !interactive()
	if plain {
		lipgloss.SetColorProfile(termenv.Ascii)
		return
	}
	lipgloss.SetColorProfile(termenv.ColorProfile())
}

func interactive() bool {
	if os.Getenv("CI") != "" {
		return false
	}
	if strings.EqualFold(strings.TrimSpace(os.Getenv("TERM")), "dumb") {
		return false
	}
	info, err := os.Stderr.Stat()
	if err != nil {
		return false
	}
	return (info.Mode() & os.ModeCharDevice) != 0
}

// Step prints one progress line: a status mark, the step name, detail.
func Step(status, step, detail string) {
	var mark string
	switch status {
	case "warn":
		mark = warnStyle.Render("!")
	case "fail":
		mark = errorStyle.Render(failMark())
	default:
		mark = successStyle.Render(okMark())
	}
	fmt.Fprintf(os.Stderr, "%s %s %s\n", mark, step, mutedStyle.Render(detail))
}

func okMark() string {
	if plain {
		return "ok"
	}
	return "✓"
}

func failMark() string {
	if plain {
		return "x"
	}
	return "✗"
}

// Label renders a dimmed key for status output.
func Label(s string) string { return mutedStyle.Render(s) }
