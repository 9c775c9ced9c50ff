// Package tui holds terminal presentation helpers for the CLI.
package tui

import (
	"fmt"
	"io"
	"os"

	"github.com/muesli/termenv"
	"golang.org/x/term"
)

var bannerLines = []struct {
	text  string
	color string
}{
	{`    _                    _                      `, "#818cf8"},
	{`   / \   __ _  ___ _ __ | |_ ___  _ __ __ _     `, "#a78bfa"},
	{`  / _ \ / _' |/ _ \ '_ \| __/ _ \| '__/ _' |    `, "#c084fc"},
	{` / ___ \ (_| |  __/ | | | || (_) | | | (_| |    `, "#e879f9"},
	{`/_/   \_\__, |\___|_| |_|\__\___/|_|  \__, |    `, "#f472b6"},
	{`        |___/                         |___/     `, "#fb7185"},
}

// PrintBanner writes the colored banner to w. Colors degrade to what the
// terminal supports.
func PrintBanner(w io.Writer) {
	p := termenv.NewOutput(w).ColorProfile()
	fmt.Fprintln(w)
	for _, l := range bannerLines {
		fmt.Fprintln(w, p.String(l.text).Foreground(p.Color(l.color)))
	}
	fmt.Fprintln(w)
}

// IsTerminal reports whether f is an interactive terminal.
func IsTerminal(f *os.File) bool {
	return term.IsTerminal(int(f.Fd()))
}

// Width returns the width of the terminal on f, or fallback.
func Width(f *os.File, fallback int) int {
	w, _, err := term.GetSize(int(f.Fd()))
	if err != nil || w <= 0 {
		return fallback
	}
	return w
}
