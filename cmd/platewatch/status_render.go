package main

import (
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/mattn/go-isatty"

	"platewatch/internal/preflight"
	"platewatch/internal/store"
)

// tone is the severity a status, report or video line is shown with.
type tone int

const (
	toneInfo tone = iota
	toneOK
	toneWarn
	toneError
)

var tones = [...]struct{ label, color string }{
	toneInfo:  {"INFO", "\x1b[34m"},
	toneOK:    {"OK", "\x1b[32m"},
	toneWarn:  {"WARN", "\x1b[33m"},
	toneError: {"ERROR", "\x1b[31m"},
}

const ansiReset = "\x1b[0m"

// statusLabelWidth fits the longest check name.
const statusLabelWidth = 20

func paint(s string, t tone, colorize bool) string {
	if !colorize || s == "" {
		return s
	}
	return tones[t].color + s + ansiReset
}

// renderStatusLine renders "  Label:  [TONE] message", coloured whole.
func renderStatusLine(label string, t tone, message string, colorize bool) string {
	badge := "[" + tones[t].label + "]"
	if message != "" {
		badge += " " + message
	}
	return paint(fmt.Sprintf("  %-*s %s", statusLabelWidth, label+":", badge), t, colorize)
}

func renderSectionHeader(title string, colorize bool) []string {
	line := "== " + strings.TrimSpace(title) + " =="
	return []string{
		paint(line, toneInfo, colorize),
		paint(strings.Repeat("-", len(line)), toneInfo, colorize),
	}
}

// videoTone shows pending videos as warnings so a stalled queue stands out.
func videoTone(status store.Status) tone {
	switch status {
	case store.StatusCompleted:
		return toneOK
	case store.StatusProcessing:
		return toneInfo
	case store.StatusFailed:
		return toneError
	default:
		return toneWarn
	}
}

func colorizeStatus(status store.Status, colorize bool) string {
	return paint(string(status), videoTone(status), colorize)
}

// checkLines renders preflight results. A failed optional check (ffprobe, the
// vision endpoint) is a warning because processing can continue without it.
func checkLines(checks []preflight.Result, colorize bool) []string {
	lines := make([]string, 0, len(checks))
	for _, check := range checks {
		t := toneOK
		switch {
		case check.Passed:
		case check.Optional:
			t = toneWarn
		default:
			t = toneError
		}
		lines = append(lines, renderStatusLine(check.Name, t, check.Detail, colorize))
	}
	return lines
}

func shouldColorize(w io.Writer) bool {
	f, ok := w.(*os.File)
	if !ok {
		return false
	}
	return isatty.IsTerminal(f.Fd()) || isatty.IsCygwinTerminal(f.Fd())
}
