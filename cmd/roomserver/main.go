// Command roomserver runs the poker room WebSocket server: it serves the
// /ws endpoint (roomId/userId/username query params), dispatches room
// commands over a small JSON admin API, and exposes /healthz for
// operators.
package main

import (
	"context"
	"encoding/json"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/alecthomas/kong"
	"github.com/coder/quartz"
	"github.com/gorilla/websocket"
	"github.com/pbnjay/memory"
	"github.com/rs/zerolog"

	"github.com/tablestack/holdem/internal/command"
	"github.com/tablestack/holdem/internal/config"
	"github.com/tablestack/holdem/internal/room"
	"github.com/tablestack/holdem/internal/store"
)

// CLI is roomserver's flag surface.
type CLI struct {
	Addr     string        `kong:"default=':8080',help='Listen address'"`
	DBPath   string        `kong:"default='roomserver.db',help='sqlite database path'"`
	RoomTTL  time.Duration `kong:"default='24h',help='Room key TTL'"`
	Debug    bool          `kong:"help='Enable debug logging'"`
	Presets  string        `kong:"help='Path to an HCL room presets file (defaults to the built-in catalog)'"`
}

func main() {
	var cli CLI
	kctx := kong.Parse(&cli,
		kong.Name("roomserver"),
		kong.Description("Poker room WebSocket server"),
		kong.UsageOnError(),
	)

	level := zerolog.InfoLevel
	if cli.Debug {
		level = zerolog.DebugLevel
	}
	logger := zerolog.New(zerolog.ConsoleWriter{Out: os.Stderr}).
		Level(level).
		With().
		Timestamp().
		Logger()

	st, err := store.Open(cli.DBPath, cli.RoomTTL, logger)
	kctx.FatalIfErrorf(err)
	defer st.Close()

	presets := config.DefaultPresets()
	if cli.Presets != "" {
		presets, err = config.LoadPresets(cli.Presets)
		kctx.FatalIfErrorf(err)
	}

	clock := quartz.NewReal()
	registry := room.NewRegistry(st, logger, clock)
	surface := command.New(st, registry, logger, clock)

	srv := newHTTPServer(cli.Addr, logger, st, registry, surface, presets)

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)

	serverErr := make(chan error, 1)
	go func() {
		logger.Info().Str("addr", cli.Addr).Msg("roomserver starting")
		serverErr <- srv.ListenAndServe()
	}()

	select {
	case err := <-serverErr:
		if err != nil && err != http.ErrServerClosed {
			logger.Fatal().Err(err).Msg("server exited")
		}
	case sig := <-sigChan:
		logger.Info().Str("signal", sig.String()).Msg("shutting down")
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := srv.Shutdown(ctx); err != nil {
			logger.Error().Err(err).Msg("graceful shutdown failed")
		}
	}
}

func newHTTPServer(addr string, logger zerolog.Logger, st *store.Store, registry *room.Registry, surface *command.Surface, presets config.PresetCatalog) *http.Server {
	upgrader := websocket.Upgrader{
		ReadBufferSize:  4096,
		WriteBufferSize: 4096,
		CheckOrigin:     func(r *http.Request) bool { return true },
	}

	mux := http.NewServeMux()
	mux.HandleFunc("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(map[string]any{
			"status":           "ok",
			"totalSystemBytes": memory.TotalMemory(),
		})
	})

	mux.HandleFunc("/ws", func(w http.ResponseWriter, r *http.Request) {
		roomID := r.URL.Query().Get("roomId")
		userID := r.URL.Query().Get("userId")
		username := r.URL.Query().Get("username")
		if roomID == "" || userID == "" || username == "" {
			ws, err := upgrader.Upgrade(w, r, nil)
			if err != nil {
				return
			}
			_ = ws.WriteControl(websocket.CloseMessage,
				websocket.FormatCloseMessage(websocket.ClosePolicyViolation, "roomId, userId, and username are required"),
				time.Now().Add(time.Second))
			_ = ws.Close()
			return
		}

		if _, err := st.GetRoomConfig(r.Context(), roomID); err != nil {
			http.Error(w, "room not found", http.StatusNotFound)
			return
		}

		ws, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			logger.Error().Err(err).Msg("websocket upgrade failed")
			return
		}
		if err := registry.Room(roomID).Connect(r.Context(), ws, userID, username); err != nil {
			logger.Error().Err(err).Str("roomId", roomID).Str("userId", userID).Msg("room connect failed")
		}
	})

	mux.HandleFunc("/presets", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(presets)
	})

	mux.HandleFunc("/commands/", commandHandler(surface, presets))

	return &http.Server{Addr: addr, Handler: mux}
}
