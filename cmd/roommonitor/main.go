// Command roommonitor is a read-only operator TUI over the room store: it
// lists every live room and, for the selected one, its member roster and
// current GameState, refreshing on an interval. It never mutates a room —
// operators diagnose stuck hands and crowded rooms here, they don't act on
// them (that stays on the admin API).
package main

import (
	"fmt"
	"io"
	"os"
	"time"

	"github.com/alecthomas/kong"
	"github.com/charmbracelet/log"
	"github.com/rs/zerolog"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/tablestack/holdem/internal/store"
)

// CLI is roommonitor's flag surface.
type CLI struct {
	DBPath          string        `kong:"default='roomserver.db',help='sqlite database path (same file roomserver writes)'"`
	RefreshInterval time.Duration `kong:"default='2s',help='room list/detail refresh interval'"`
	LogFile         string        `kong:"default='roommonitor.log',help='debug logfile (the TUI screen itself only shows room state)'"`
	LogLevel        string        `kong:"enum='debug,info,warn,error',default='info',help='debug logfile level'"`
}

func main() {
	var cli CLI
	kctx := kong.Parse(&cli, kong.Name("roommonitor"), kong.Description("Read-only room/hand operator TUI"), kong.UsageOnError())

	logger, closer, err := createLogger(cli.LogFile, cli.LogLevel)
	kctx.FatalIfErrorf(err)
	defer closer()

	st, err := store.Open(cli.DBPath, store.DefaultTTL, zerolog.New(io.Discard))
	kctx.FatalIfErrorf(err)
	defer st.Close()

	model := newModel(st, logger, cli.RefreshInterval)
	program := tea.NewProgram(model, tea.WithAltScreen())
	if _, err := program.Run(); err != nil {
		logger.Fatal("roommonitor exited", "error", err)
	}
}

// createLogger sets up file-backed logging: the alt-screen TUI owns the
// terminal, so diagnostics go to a file, never stdout/stderr.
func createLogger(path, level string) (*log.Logger, func() error, error) {
	parsedLevel, err := log.ParseLevel(level)
	if err != nil {
		return nil, func() error { return nil }, fmt.Errorf("roommonitor: parsing log level %q: %w", level, err)
	}
	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0666)
	if err != nil {
		return nil, func() error { return nil }, fmt.Errorf("roommonitor: opening log file %s: %w", path, err)
	}
	logger := log.NewWithOptions(f, log.Options{
		ReportTimestamp: true,
		Prefix:          "roommonitor",
		TimeFormat:      "15:04:05",
		Level:           parsedLevel,
	})
	return logger, f.Close, nil
}
