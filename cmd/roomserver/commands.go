package main

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"strings"

	"github.com/tablestack/holdem/internal/apperr"
	"github.com/tablestack/holdem/internal/command"
	"github.com/tablestack/holdem/internal/config"
	"github.com/tablestack/holdem/internal/identity"
)

// identityFromRequest trusts a front door (reverse proxy, API gateway) to
// have already authenticated the caller and forwarded the result as
// headers; roomserver itself performs no session validation.
func identityFromRequest(r *http.Request) (identity.Identity, bool) {
	userID := r.Header.Get("X-User-Id")
	username := r.Header.Get("X-Username")
	if userID == "" || username == "" {
		return identity.Identity{}, false
	}
	verified, _ := strconv.ParseBool(r.Header.Get("X-Email-Verified"))
	return identity.Identity{UserID: userID, Username: username, EmailVerified: verified}, true
}

// commandHandler wires the ten command operations onto /commands/{name},
// dispatched by path suffix and decoded from a JSON body.
func commandHandler(surface *command.Surface, presets config.PresetCatalog) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
			return
		}
		caller, ok := identityFromRequest(r)
		if !ok {
			writeErr(w, apperr.New(apperr.Unauthorized, "missing_identity", "caller identity headers are required"))
			return
		}

		name := strings.TrimPrefix(r.URL.Path, "/commands/")
		ctx := r.Context()

		switch name {
		case "createRoom":
			var body struct {
				Preset string `json:"preset"`
				command.CreateRoomInput
			}
			if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
				writeErr(w, apperr.New(apperr.InvalidInput, "bad_json", "malformed request body"))
				return
			}
			in := body.CreateRoomInput
			if body.Preset != "" {
				p, ok := presets[body.Preset]
				if !ok {
					writeErr(w, apperr.New(apperr.InvalidInput, "unknown_preset", "no such room preset"))
					return
				}
				in = command.CreateRoomInput{
					MaxPlayers:       p.MaxPlayers,
					StartingStack:    p.StartingStack,
					SmallBlind:       p.SmallBlind,
					BigBlind:         p.BigBlind,
					Ante:             p.Ante,
					HandDelaySeconds: p.HandDelaySeconds,
					FilterProfanity:  p.FilterProfanity,
					Public:           p.Public,
				}
			}
			cfg, err := surface.CreateRoom(ctx, caller, in)
			writeResult(w, cfg, err)

		case "joinRoom":
			var body struct {
				JoinCode string `json:"joinCode"`
			}
			if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
				writeErr(w, apperr.New(apperr.InvalidInput, "bad_json", "malformed request body"))
				return
			}
			cfg, err := surface.JoinRoom(ctx, caller, body.JoinCode)
			writeResult(w, cfg, err)

		case "leaveRoom":
			var body struct {
				RoomID string `json:"roomId"`
			}
			_ = json.NewDecoder(r.Body).Decode(&body)
			err := surface.LeaveRoom(ctx, caller, body.RoomID)
			writeResult(w, nil, err)

		case "closeRoom":
			var body struct {
				RoomID string `json:"roomId"`
			}
			_ = json.NewDecoder(r.Body).Decode(&body)
			err := surface.CloseRoom(ctx, caller, body.RoomID)
			writeResult(w, nil, err)

		case "startGame":
			var body struct {
				RoomID string `json:"roomId"`
			}
			_ = json.NewDecoder(r.Body).Decode(&body)
			err := surface.StartGame(ctx, caller, body.RoomID, nil)
			writeResult(w, nil, err)

		case "togglePlayStatus":
			var body struct {
				RoomID string `json:"roomId"`
				Want   bool   `json:"want"`
			}
			_ = json.NewDecoder(r.Body).Decode(&body)
			err := surface.TogglePlayStatus(ctx, caller, body.RoomID, body.Want)
			writeResult(w, nil, err)

		case "kickUser":
			var body struct {
				RoomID string `json:"roomId"`
				Target string `json:"targetUserId"`
			}
			_ = json.NewDecoder(r.Body).Decode(&body)
			err := surface.KickUser(ctx, caller, body.RoomID, body.Target)
			writeResult(w, nil, err)

		case "transferChips":
			var body struct {
				RoomID string `json:"roomId"`
				To     string `json:"toUserId"`
				Amount int    `json:"amount"`
			}
			_ = json.NewDecoder(r.Body).Decode(&body)
			err := surface.TransferChips(ctx, caller, body.RoomID, body.To, body.Amount)
			writeResult(w, nil, err)

		case "updateMaxPlayers":
			var body struct {
				RoomID     string `json:"roomId"`
				MaxPlayers int    `json:"maxPlayers"`
			}
			_ = json.NewDecoder(r.Body).Decode(&body)
			err := surface.UpdateMaxPlayers(ctx, caller, body.RoomID, body.MaxPlayers)
			writeResult(w, nil, err)

		case "updateRoomFilter":
			var body struct {
				RoomID  string `json:"roomId"`
				Enabled bool   `json:"enabled"`
			}
			_ = json.NewDecoder(r.Body).Decode(&body)
			err := surface.UpdateRoomFilter(ctx, caller, body.RoomID, body.Enabled)
			writeResult(w, nil, err)

		default:
			http.NotFound(w, r)
		}
	}
}

func writeResult(w http.ResponseWriter, v any, err error) {
	if err != nil {
		writeErr(w, err)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	if v == nil {
		_ = json.NewEncoder(w).Encode(map[string]bool{"ok": true})
		return
	}
	_ = json.NewEncoder(w).Encode(v)
}

func writeErr(w http.ResponseWriter, err error) {
	status := http.StatusInternalServerError
	switch apperr.KindOf(err) {
	case apperr.Unauthorized:
		status = http.StatusUnauthorized
	case apperr.ForbiddenPolicy:
		status = http.StatusForbidden
	case apperr.NotFound:
		status = http.StatusNotFound
	case apperr.InvalidInput, apperr.InvalidAction:
		status = http.StatusBadRequest
	case apperr.ConflictState:
		status = http.StatusConflict
	case apperr.StoreFailure, apperr.Internal:
		status = http.StatusInternalServerError
	}
	resp := map[string]string{"error": err.Error()}
	var appErr *apperr.Error
	if errors.As(err, &appErr) {
		resp = map[string]string{
			"error": appErr.Message,
			"code":  appErr.Code,
			"kind":  appErr.Kind.String(),
		}
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(resp)
}
