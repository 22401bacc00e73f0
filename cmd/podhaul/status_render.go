package main

import (
	"fmt"
	"io"
	"strings"

	"github.com/mattn/go-isatty"
)

const (
	colorReset  = "\x1b[0m"
	colorRed    = "\x1b[31m"
	colorGreen  = "\x1b[32m"
	colorYellow = "\x1b[33m"
	colorBlue   = "\x1b[34m"
)

const (
	statusLabelWidth = 18
	statusIndent     = "  "
)

type statusKind int

const (
	statusInfo statusKind = iota
	statusOK
	statusWarn
	statusError
)

var statusKindMeta = [...]struct {
	tag   string
	color string
}{
	statusInfo:  {"INFO", colorBlue},
	statusOK:    {"OK", colorGreen},
	statusWarn:  {"WARN", colorYellow},
	statusError: {"ERROR", colorRed},
}

func (k statusKind) meta() (string, string) {
	if k < 0 || int(k) >= len(statusKindMeta) {
		return "INFO", ""
	}
	m := statusKindMeta[k]
	return m.tag, m.color
}

func renderStatusLine(label string, kind statusKind, message string, colorize bool) string {
	tag, color := kind.meta()
	text := "[" + tag + "]"
	if message != "" {
		text += " " + message
	}
	line := fmt.Sprintf("%s%-*s %s", statusIndent, statusLabelWidth, label+":", text)
	if colorize && color != "" {
		return color + line + colorReset
	}
	return line
}

func printSectionHeader(out io.Writer, title string, colorize bool) {
	header := "== " + strings.TrimSpace(title) + " =="
	for _, s := range []string{header, strings.Repeat("-", len(header))} {
		if colorize {
			s = colorBlue + s + colorReset
		}
		fmt.Fprintln(out, s)
	}
}

func shouldColorize(w io.Writer) bool {
	type fdWriter interface{ Fd() uintptr }
	f, ok := w.(fdWriter)
	if !ok {
		return false
	}
	return isatty.IsTerminal(f.Fd()) || isatty.IsCygwinTerminal(f.Fd())
}
