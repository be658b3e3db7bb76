package main

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/log"
	"github.com/charmbracelet/lipgloss"

	"github.com/tablestack/holdem/internal/deck"
	"github.com/tablestack/holdem/internal/game"
	"github.com/tablestack/holdem/internal/store"
)

// model is the bubbletea model for roommonitor: a room list on the left,
// the selected room's member roster and GameState on the right, refreshed
// every interval. It holds no mutation path into the store — everything
// here is Get*/List*, matching the tool's read-only contract.
type model struct {
	store    *store.Store
	logger   *log.Logger
	interval time.Duration

	rooms  []store.RoomConfig
	cursor int

	members   map[string]store.RoomMemberInfo
	gameState *game.GameState
	hasGame   bool
	loadErr   error

	detail viewport.Model
	ready  bool
	width  int
	height int
}

func newModel(st *store.Store, logger *log.Logger, interval time.Duration) *model {
	return &model{store: st, logger: logger, interval: interval}
}

func (m *model) Init() tea.Cmd {
	return tea.Batch(m.loadRooms(), tickEvery(m.interval))
}

// roomsMsg carries a fresh room listing.
type roomsMsg struct {
	rooms []store.RoomConfig
	err   error
}

// detailMsg carries the member roster and GameState for one room.
type detailMsg struct {
	roomID    string
	members   map[string]store.RoomMemberInfo
	gameState *game.GameState
	hasGame   bool
	err       error
}

type tickMsg time.Time

func tickEvery(d time.Duration) tea.Cmd {
	return tea.Tick(d, func(t time.Time) tea.Msg { return tickMsg(t) })
}

// storeTimeout bounds each store read so a hung database read surfaces
// as an error instead of freezing the TUI.
const storeTimeout = 3 * time.Second

func (m *model) loadRooms() tea.Cmd {
	return func() tea.Msg {
		ctx, cancel := context.WithTimeout(context.Background(), storeTimeout)
		defer cancel()
		rooms, err := m.store.ListRooms(ctx)
		sort.Slice(rooms, func(i, j int) bool { return rooms[i].RoomID < rooms[j].RoomID })
		return roomsMsg{rooms: rooms, err: err}
	}
}

func (m *model) loadDetail(roomID string) tea.Cmd {
	return func() tea.Msg {
		ctx, cancel := context.WithTimeout(context.Background(), storeTimeout)
		defer cancel()
		members, err := m.store.GetMembers(ctx, roomID)
		if err != nil {
			return detailMsg{roomID: roomID, err: err}
		}
		gs, err := m.store.GetGame(ctx, roomID)
		if err != nil && err != store.ErrNotFound {
			return detailMsg{roomID: roomID, members: members, err: err}
		}
		return detailMsg{roomID: roomID, members: members, gameState: gs, hasGame: err == nil}
	}
}

func (m *model) selectedRoomID() (string, bool) {
	if m.cursor < 0 || m.cursor >= len(m.rooms) {
		return "", false
	}
	return m.rooms[m.cursor].RoomID, true
}

func (m *model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width, m.height = msg.Width, msg.Height
		detailWidth := m.width - roomListWidth - 6
		if detailWidth < 20 {
			detailWidth = 20
		}
		if !m.ready {
			m.detail = viewport.New(detailWidth, m.height-4)
			m.ready = true
		} else {
			m.detail.Width = detailWidth
			m.detail.Height = m.height - 4
		}
		return m, nil

	case tea.KeyMsg:
		switch msg.String() {
		case "ctrl+c", "q", "esc":
			return m, tea.Quit
		case "up", "k":
			if m.cursor > 0 {
				m.cursor--
				if id, ok := m.selectedRoomID(); ok {
					return m, m.loadDetail(id)
				}
			}
			return m, nil
		case "down", "j":
			if m.cursor < len(m.rooms)-1 {
				m.cursor++
				if id, ok := m.selectedRoomID(); ok {
					return m, m.loadDetail(id)
				}
			}
			return m, nil
		case "pgup":
			m.detail.HalfPageUp()
			return m, nil
		case "pgdown":
			m.detail.HalfPageDown()
			return m, nil
		case "r":
			cmds := []tea.Cmd{m.loadRooms()}
			if id, ok := m.selectedRoomID(); ok {
				cmds = append(cmds, m.loadDetail(id))
			}
			return m, tea.Batch(cmds...)
		}

	case roomsMsg:
		if msg.err != nil {
			m.logger.Error("listing rooms", "error", msg.err)
			m.loadErr = msg.err
			return m, nil
		}
		m.rooms = msg.rooms
		m.loadErr = nil
		if m.cursor >= len(m.rooms) {
			m.cursor = len(m.rooms) - 1
		}
		if m.cursor < 0 {
			m.cursor = 0
		}
		if id, ok := m.selectedRoomID(); ok {
			return m, m.loadDetail(id)
		}
		return m, nil

	case detailMsg:
		id, ok := m.selectedRoomID()
		if !ok || id != msg.roomID {
			return m, nil // stale: selection moved on before this load returned
		}
		if msg.err != nil {
			m.logger.Error("loading room detail", "roomId", msg.roomID, "error", msg.err)
			m.loadErr = msg.err
			return m, nil
		}
		m.members = msg.members
		m.gameState = msg.gameState
		m.hasGame = msg.hasGame
		m.loadErr = nil
		if m.ready {
			m.detail.SetContent(m.renderDetail())
		}
		return m, nil

	case tickMsg:
		cmds := []tea.Cmd{tickEvery(m.interval), m.loadRooms()}
		return m, tea.Batch(cmds...)
	}

	var cmd tea.Cmd
	m.detail, cmd = m.detail.Update(msg)
	return m, cmd
}

const roomListWidth = 28

func (m *model) View() string {
	if !m.ready {
		return "loading..."
	}

	header := headerStyle.Render(fmt.Sprintf(" roommonitor — %d room(s) ", len(m.rooms)))

	list := m.renderRoomList()
	m.detail.SetContent(m.renderDetail())
	detail := detailStyle.Width(m.detail.Width).Height(m.detail.Height).Render(m.detail.View())

	body := lipgloss.JoinHorizontal(lipgloss.Top, roomListStyle.Width(roomListWidth).Height(m.detail.Height).Render(list), detail)

	footer := footerStyle.Render("↑/↓ select · pgup/pgdn scroll detail · r refresh · q quit")
	if m.loadErr != nil {
		footer = errorStyle.Render("error: "+m.loadErr.Error()) + "  " + footer
	}

	return lipgloss.JoinVertical(lipgloss.Left, header, body, footer)
}

func (m *model) renderRoomList() string {
	if len(m.rooms) == 0 {
		return dimStyle.Render("no active rooms")
	}
	var b strings.Builder
	for i, r := range m.rooms {
		line := fmt.Sprintf("%s  (%d max)", r.RoomID, r.MaxPlayers)
		if i == m.cursor {
			b.WriteString(selectedRoomStyle.Render("> " + line))
		} else {
			b.WriteString("  " + line)
		}
		b.WriteString("\n")
	}
	return b.String()
}

func (m *model) renderDetail() string {
	id, ok := m.selectedRoomID()
	if !ok {
		return dimStyle.Render("no room selected")
	}

	var b strings.Builder
	fmt.Fprintf(&b, "%s\n\n", sectionHeaderStyle.Render("room "+id))

	fmt.Fprintf(&b, "%s\n", sectionHeaderStyle.Render("members"))
	seats := make([]store.RoomMemberInfo, 0, len(m.members))
	for _, mem := range m.members {
		seats = append(seats, mem)
	}
	sort.Slice(seats, func(i, j int) bool { return seats[i].SeatNumber < seats[j].SeatNumber })
	for _, mem := range seats {
		status := dimStyle.Render("inactive")
		if mem.IsActive {
			status = activeStyle.Render("active")
		}
		fmt.Fprintf(&b, "  seat %d  %-16s stack=%-6d %s\n", mem.SeatNumber, mem.Username, mem.CurrentStack, status)
	}
	if len(seats) == 0 {
		b.WriteString(dimStyle.Render("  (no members)") + "\n")
	}

	b.WriteString("\n")
	fmt.Fprintf(&b, "%s\n", sectionHeaderStyle.Render("hand"))
	if !m.hasGame || m.gameState == nil {
		b.WriteString(dimStyle.Render("  no hand in progress") + "\n")
		return b.String()
	}
	gs := m.gameState
	fmt.Fprintf(&b, "  phase=%s pot=%d currentBet=%d minRaise=%d\n", gs.Phase, gs.Pot, gs.CurrentBet, gs.MinRaiseAmount)
	fmt.Fprintf(&b, "  dealer=%d sb=%d bb=%d\n", gs.DealerSeat, gs.SmallBlindSeat, gs.BigBlindSeat)
	if gs.CurrentPlayerSeat != nil {
		fmt.Fprintf(&b, "  to act: seat %d\n", *gs.CurrentPlayerSeat)
	}
	fmt.Fprintf(&b, "  board: %s\n", renderCards(gs.CommunityCards))

	b.WriteString("\n  players:\n")
	players := gs.SeatedByNumber()
	for _, p := range players {
		line := fmt.Sprintf("    seat %d  stack=%-6d bet=%-5d total=%-5d", p.SeatNumber, p.Stack, p.CurrentBet, p.TotalBet)
		switch {
		case p.IsFolded:
			line = foldedStyle.Render(line + " folded")
		case p.IsAllIn:
			line = allInStyle.Render(line + " all-in")
		case p.IsSittingOut:
			line = dimStyle.Render(line + " sitting out")
		}
		fmt.Fprintf(&b, "%s\n", line)
	}

	if len(gs.HandHistory) > 0 {
		b.WriteString("\n")
		fmt.Fprintf(&b, "%s\n", sectionHeaderStyle.Render("hand history"))
		for _, line := range gs.HandHistory {
			fmt.Fprintf(&b, "  %s\n", line)
		}
	}

	return b.String()
}

func renderCards(cards []deck.Card) string {
	if len(cards) == 0 {
		return dimStyle.Render("(none dealt)")
	}
	parts := make([]string, len(cards))
	for i, c := range cards {
		parts[i] = c.String()
	}
	return strings.Join(parts, " ")
}
