package cli

import (
	"bytes"
	"io"
	"os"

	"golang.org/x/term"
)

// Color modes accepted by --color.
const (
	ColorAuto   = "auto"
	ColorAlways = "always"
	ColorNever  = "never"
)

// ValidColorModes defines the allowed --color values.
var ValidColorModes = []string{ColorAuto, ColorAlways, ColorNever}

const ansiReset = "\x1b[0m"

// palette holds the ANSI styles of one display theme. The zero value
// writes plain text.
type palette struct {
	success string
	failure string
	warning string
	info    string
	header  string
	accent  string
}

var (
	// lightPalette uses the normal-intensity colors, readable on light backgrounds.
	lightPalette = palette{
		success: "\x1b[32m",
		failure: "\x1b[31m",
		warning: "\x1b[33m",
		info:    "\x1b[34m",
		header:  "\x1b[1;30m",
		accent:  "\x1b[35m",
	}
	// darkPalette uses the bright colors, readable on dark backgrounds.
	darkPalette = palette{
		success: "\x1b[92m",
		failure: "\x1b[91m",
		warning: "\x1b[93m",
		info:    "\x1b[96m",
		header:  "\x1b[1;97m",
		accent:  "\x1b[95m",
	}
)

func (p palette) paint(style, s string) string {
	if style == "" {
		return s
	}
	return style + s + ansiReset
}

// writeTable writes a rendered table, painting its first line as a header.
// The table is aligned before painting so escapes do not shift columns.
func (p palette) writeTable(w io.Writer, table []byte) error {
	head, rest, found := bytes.Cut(table, []byte("\n"))
	if _, err := io.WriteString(w, p.paint(p.header, string(head))); err != nil {
		return err
	}
	if !found {
		return nil
	}
	if _, err := io.WriteString(w, "\n"); err != nil {
		return err
	}
	_, err := w.Write(rest)
	return err
}

// colorEnabled resolves a --color mode for w. Auto colors terminals only
// and honors NO_COLOR.
func colorEnabled(mode string, w io.Writer, getenv func(string) string) bool {
	switch mode {
	case ColorAlways:
		return true
	case ColorNever:
		return false
	}
	if getenv("NO_COLOR") != "" {
		return false
	}
	f, ok := w.(*os.File)
	return ok && term.IsTerminal(int(f.Fd()))
}
