// Package logging wires a leveled, colored slog logger for the CLI.
// Verbosity is cumulative: each -v raises the threshold one severity,
// from critical-only up to debug.
package logging

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"
	"sync"

	"github.com/charmbracelet/lipgloss"
	"golang.org/x/term"
)

// LevelCritical sits above slog's built-in levels; it is the only
// severity printed at verbosity zero.
const LevelCritical = slog.LevelError + 4

// thresholds maps the -v count to the minimum printed level.
var thresholds = []slog.Level{
	LevelCritical,
	slog.LevelError,
	slog.LevelWarn,
	slog.LevelInfo,
	slog.LevelDebug,
}

// Threshold returns the slog level for a verbosity count, clamping
// out-of-range counts.
func Threshold(verbosity int) slog.Level {
	if verbosity < 0 {
		verbosity = 0
	}
	if verbosity >= len(thresholds) {
		verbosity = len(thresholds) - 1
	}
	return thresholds[verbosity]
}

// Init installs the process logger writing to stderr at the given
// verbosity and returns it. Colors are dropped when stderr is not a
// terminal.
func Init(verbosity int) *slog.Logger {
	h := &handler{
		mu:    &sync.Mutex{},
		out:   os.Stderr,
		level: Threshold(verbosity),
		color: term.IsTerminal(int(os.Stderr.Fd())),
	}
	logger := slog.New(h)
	slog.SetDefault(logger)
	return logger
}

var levelStyles = map[string]lipgloss.Style{
	"CRIT":  lipgloss.NewStyle().Foreground(lipgloss.Color("201")).Bold(true),
	"ERROR": lipgloss.NewStyle().Foreground(lipgloss.Color("196")),
	"WARN":  lipgloss.NewStyle().Foreground(lipgloss.Color("214")),
	"INFO":  lipgloss.NewStyle().Foreground(lipgloss.Color("39")),
	"DEBUG": lipgloss.NewStyle().Foreground(lipgloss.Color("245")),
}

func levelName(l slog.Level) string {
	switch {
	case l >= LevelCritical:
		return "CRIT"
	case l >= slog.LevelError:
		return "ERROR"
	case l >= slog.LevelWarn:
		return "WARN"
	case l >= slog.LevelInfo:
		return "INFO"
	default:
		return "DEBUG"
	}
}

// handler renders records as "LEVEL message key=value ...", coloring the
// level tag when the destination is a terminal.
type handler struct {
	mu    *sync.Mutex
	out   io.Writer
	level slog.Level
	color bool
	attrs []slog.Attr
	group string
}

func (h *handler) Enabled(_ context.Context, l slog.Level) bool {
	return l >= h.level
}

func (h *handler) Handle(_ context.Context, rec slog.Record) error {
	name := levelName(rec.Level)
	tag := fmt.Sprintf("%-5s", name)
	if h.color {
		tag = levelStyles[name].Render(tag)
	}

	var b strings.Builder
	b.WriteString(tag)
	b.WriteByte(' ')
	b.WriteString(rec.Message)

	for _, a := range h.attrs {
		fmt.Fprintf(&b, " %s=%v", a.Key, a.Value.Resolve())
	}
	rec.Attrs(func(a slog.Attr) bool {
		key := a.Key
		if h.group != "" {
			key = h.group + "." + key
		}
		fmt.Fprintf(&b, " %s=%v", key, a.Value.Resolve())
		return true
	})
	b.WriteByte('\n')

	h.mu.Lock()
	defer h.mu.Unlock()
	_, err := io.WriteString(h.out, b.String())
	return err
}

func (h *handler) WithAttrs(attrs []slog.Attr) slog.Handler {
	c := h.clone()
	for _, a := range attrs {
		if c.group != "" {
			a.Key = c.group + "." + a.Key
		}
		c.attrs = append(c.attrs, a)
	}
	return c
}

func (h *handler) WithGroup(name string) slog.Handler {
	c := h.clone()
	if c.group != "" {
		c.group += "." + name
	} else {
		c.group = name
	}
	return c
}

func (h *handler) clone() *handler {
	return &handler{
		mu:    h.mu,
		out:   h.out,
		level: h.level,
		color: h.color,
		attrs: append([]slog.Attr(nil), h.attrs...),
		group: h.group,
	}
}
