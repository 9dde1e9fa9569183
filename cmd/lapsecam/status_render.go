package main

import (
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/mattn/go-isatty"
)

type statusKind int

const (
	statusInfo statusKind = iota
	statusOK
	statusWarn
	statusError
)

var statusKindNames = map[statusKind]string{
	statusInfo:  "INFO",
	statusOK:    "OK",
	statusWarn:  "WARN",
	statusError: "ERROR",
}

var statusKindColors = map[statusKind]string{
	statusInfo:  ansiBlue,
	statusOK:    ansiGreen,
	statusWarn:  ansiYellow,
	statusError: ansiRed,
}

const (
	ansiReset  = "\x1b[0m"
	ansiRed    = "\x1b[31m"
	ansiGreen  = "\x1b[32m"
	ansiYellow = "\x1b[33m"
	ansiBlue   = "\x1b[34m"
)

const statusIndent = "  "

type statusEntry struct {
	label   string
	kind    statusKind
	message string
}

type statusSection struct {
	title   string
	entries []statusEntry
}

// add records a line; format and args build the message.
func (s *statusSection) add(label string, kind statusKind, format string, args ...any) {
	message := format
	if len(args) > 0 {
		message = fmt.Sprintf(format, args...)
	}
	s.entries = append(s.entries, statusEntry{label: label, kind: kind, message: message})
}

// statusReport is the sectioned output of the status command. Labels are
// padded to the widest label in their section.
type statusReport struct {
	sections []*statusSection
}

func (r *statusReport) section(title string) *statusSection {
	s := &statusSection{title: strings.TrimSpace(title)}
	r.sections = append(r.sections, s)
	return s
}

func (r *statusReport) render(colorize bool) string {
	var b strings.Builder
	for i, s := range r.sections {
		if i > 0 {
			b.WriteString("\n")
		}
		heading := "== " + s.title + " =="
		b.WriteString(paint(heading, ansiBlue, colorize) + "\n")
		b.WriteString(paint(strings.Repeat("-", len(heading)), ansiBlue, colorize) + "\n")

		width := 0
		for _, e := range s.entries {
			width = max(width, len(e.label)+1)
		}
		for _, e := range s.entries {
			b.WriteString(renderStatusLine(e, width, colorize) + "\n")
		}
	}
	return strings.TrimSuffix(b.String(), "\n")
}

func renderStatusLine(e statusEntry, width int, colorize bool) string {
	tag := "[" + statusKindNames[e.kind] + "]"
	if e.message != "" {
		tag += " " + e.message
	}
	line := fmt.Sprintf("%s%-*s %s", statusIndent, width, e.label+":", tag)
	return paint(line, statusKindColors[e.kind], colorize)
}

func paint(s, color string, colorize bool) string {
	if !colorize || color == "" {
		return s
	}
	return color + s + ansiReset
}

func shouldColorize(writer io.Writer) bool {
	file, ok := writer.(*os.File)
	if !ok {
		return false
	}
	fd := file.Fd()
	return isatty.IsTerminal(fd) || isatty.IsCygwinTerminal(fd)
}
