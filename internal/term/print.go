// Package term prints leveled status lines for humans, apart from the
// structured log.
package term

import (
	"fmt"
	"io"
	"os"
	"sync"

	"github.com/charmbracelet/lipgloss"

	"github.com/nhle/roundmail/internal/theme"
)

type Level int

const (
	LevelDebug Level = iota
	LevelInfo
	LevelWarn
	LevelError
)

// ParseLevel maps a level name onto a Level, defaulting to LevelInfo.
func ParseLevel(name string) Level {
	switch name {
	case "debug":
		return LevelDebug
	case "warn", "warning":
		return LevelWarn
	case "error":
		return LevelError
	default:
		return LevelInfo
	}
}

var (
	mu  sync.Mutex
	lvl = LevelInfo
	out io.Writer = os.Stderr

	debugStyle = lipgloss.NewStyle().Foreground(theme.ColorCyan)
	infoStyle  = lipgloss.NewStyle().Foreground(theme.ColorGreen)
	warnStyle  = lipgloss.NewStyle().Foreground(theme.ColorYellow)
	errorStyle = lipgloss.NewStyle().Foreground(theme.ColorRed)
)

func SetLevel(level Level) {
	mu.Lock()
	defer mu.Unlock()
	lvl = level
}

// SetOutput redirects every following line to w.
func SetOutput(w io.Writer) {
	mu.Lock()
	defer mu.Unlock()
	out = w
}

func emit(level Level, style lipgloss.Style, msg string) {
	mu.Lock()
	defer mu.Unlock()
	if level < lvl {
		return
	}
	fmt.Fprintln(out, style.Render(msg))
}

func Debug(a ...any) {
	emit(LevelDebug, debugStyle, fmt.Sprint(a...))
}

func Debugf(format string, a ...any) {
	emit(LevelDebug, debugStyle, fmt.Sprintf(format, a...))
}

func Info(a ...any) {
	emit(LevelInfo, infoStyle, fmt.Sprint(a...))
}

func Infof(format string, a ...any) {
	emit(LevelInfo, infoStyle, fmt.Sprintf(format, a...))
}

func Warn(a ...any) {
	emit(LevelWarn, warnStyle, fmt.Sprint(a...))
}

func Warnf(format string, a ...any) {
	emit(LevelWarn, warnStyle, fmt.Sprintf(format, a...))
}

// Error lines are printed at every level.
func Error(a ...any) {
	emit(LevelError, errorStyle, fmt.Sprint(a...))
}

func Errorf(format string, a ...any) {
	emit(LevelError, errorStyle, fmt.Sprintf(format, a...))
}
