// Package session turns decoded client messages into room store and room
// actor calls, and reports failures back to the originating connection.
package session

import (
	"context"
	"errors"
	"strings"
	"time"

	"go.uber.org/zap"
	"golang.org/x/text/unicode/norm"

	"github.com/DoyleJ11/spell-duel-backend/internal/broadcast"
	"github.com/DoyleJ11/spell-duel-backend/internal/engine"
	"github.com/DoyleJ11/spell-duel-backend/internal/hub"
	"github.com/DoyleJ11/spell-duel-backend/internal/registry"
	"github.com/DoyleJ11/spell-duel-backend/internal/room"
	"github.com/DoyleJ11/spell-duel-backend/internal/types"
)

var ErrInvalidPlayerName = errors.New("player name must not be empty")
var ErrUnknownRuleset = errors.New("unknown ruleset")

const (
	maxNameRunes    = 32
	codeAttempts    = 5
	codeLength      = 6
	codeCharset     = "ABCDEFGHIJKLMNOPQRSTUVWXYZ0123456789"
	evictionTimeout = 5 * time.Second
)

type Manager struct {
	reg            *registry.Registry
	hub            *hub.Hub
	bc             *broadcast.Broadcaster
	log            *zap.Logger
	defaultRuleset string
}

// New wires the registry removal hook to room eviction.
func New(reg *registry.Registry, h *hub.Hub, bc *broadcast.Broadcaster, log *zap.Logger, defaultRuleset string) *Manager {
	m := &Manager{reg: reg, hub: h, bc: bc, log: log.Named("session"), defaultRuleset: defaultRuleset}
	reg.OnRemove(m.disconnected)
	return m
}

func (m *Manager) Connect(connID, displayName string, outbox chan<- types.Outbound) error {
	if err := m.reg.Register(connID, NormalizeName(displayName), outbox); err != nil {
		return err
	}
	m.log.Info("user connected", zap.String("conn", connID))
	return nil
}

// Disconnect removes the connection; eviction from its room happens in the
// registry hook. After it returns nothing is queued on the outbox.
func (m *Manager) Disconnect(connID string) {
	m.reg.Remove(connID)
}

func (m *Manager) disconnected(id, name, roomName string) {
	m.log.Info("user disconnected", zap.String("conn", id), zap.String("player", name))
	if roomName == "" {
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), evictionTimeout)
	defer cancel()
	if err := m.hub.Evict(ctx, roomName, id); err != nil && !errors.Is(err, hub.ErrHubClosed) {
		m.log.Warn("evict failed", zap.String("conn", id), zap.String("room", roomName), zap.Error(err))
	}
}

// Handle executes one inbound message on behalf of connID.
func (m *Manager) Handle(ctx context.Context, connID string, in types.Inbound) {
	switch msg := in.(type) {
	case types.CreateRoom:
		if err := m.createRoom(ctx, connID, msg); err != nil {
			m.reject(connID, roomErr, err)
		}
	case types.JoinRoom:
		if err := m.joinRoom(ctx, connID, msg); err != nil {
			m.reject(connID, roomErr, err)
		}
	case types.SubmitMove:
		if err := m.submit(ctx, connID, engine.Command{Type: engine.CmdSubmitMove, ConnID: connID, Move: msg.Move}); err != nil {
			m.reject(connID, gameErr, err)
		}
	case types.Rematch:
		if err := m.submit(ctx, connID, engine.Command{Type: engine.CmdRematch, ConnID: connID}); err != nil {
			m.reject(connID, gameErr, err)
		}
	case types.ListRooms:
		rooms, err := m.hub.ListJoinable(ctx)
		if err != nil {
			m.reject(connID, gameErr, err)
			return
		}
		m.bc.Send(connID, types.RoomList{Rooms: rooms})
	}
}

// Malformed reports a frame that could not be decoded.
func (m *Manager) Malformed(connID string, err error) {
	m.reject(connID, gameErr, err)
}

func (m *Manager) createRoom(ctx context.Context, connID string, msg types.CreateRoom) error {
	name, err := m.resolveName(connID, msg.PlayerName)
	if err != nil {
		return err
	}

	rulesetName := strings.ToLower(strings.TrimSpace(msg.Ruleset))
	if rulesetName == "" {
		rulesetName = m.defaultRuleset
	}
	rules, ok := engine.RulesetByName(rulesetName)
	if !ok {
		return ErrUnknownRuleset
	}

	// room names are keys and are used exactly as sent
	if strings.TrimSpace(msg.RoomName) != "" {
		if _, err := m.hub.CreateRoom(ctx, msg.RoomName, connID, name, rules); err != nil {
			return err
		}
		m.identify(connID, name)
		return nil
	}

	for attempt := 0; attempt < codeAttempts; attempt++ {
		code, err := generateCode(codeLength, codeCharset)
		if err != nil {
			return err
		}
		_, err = m.hub.CreateRoom(ctx, code, connID, name, rules)
		if err == nil {
			m.identify(connID, name)
			return nil
		}
		if !errors.Is(err, hub.ErrRoomAlreadyExists) {
			return err
		}
		m.log.Debug("collision on code, regenerating", zap.String("code", code))
	}
	return hub.ErrRoomAlreadyExists
}

func (m *Manager) joinRoom(ctx context.Context, connID string, msg types.JoinRoom) error {
	if strings.TrimSpace(msg.RoomName) == "" {
		return hub.ErrInvalidRoomName
	}
	name, err := m.resolveName(connID, msg.PlayerName)
	if err != nil {
		return err
	}
	if _, err := m.hub.JoinRoom(ctx, msg.RoomName, connID, name); err != nil {
		return err
	}
	m.identify(connID, name)
	return nil
}

// resolveName returns the display name a create or join would use without
// fixing it, and refuses connections that already sit in a room.
func (m *Manager) resolveName(connID, requested string) (string, error) {
	attached, current, err := m.reg.Lookup(connID)
	if err != nil {
		return "", err
	}
	if attached != "" {
		return "", engine.ErrAlreadyInRoom
	}
	if current != "" {
		return current, nil
	}
	if name := NormalizeName(requested); name != "" {
		return name, nil
	}
	return "", ErrInvalidPlayerName
}

// identify fixes the name once the store has seated the connection.
func (m *Manager) identify(connID, name string) {
	if _, err := m.reg.Identify(connID, name); err != nil {
		m.log.Debug("identify after seat", zap.String("conn", connID), zap.Error(err))
	}
}

func (m *Manager) submit(ctx context.Context, connID string, cmd engine.Command) error {
	roomName, _, err := m.reg.Lookup(connID)
	if err != nil {
		return err
	}
	if roomName == "" {
		return engine.ErrPlayerNotInRoom
	}
	rm, err := m.hub.GetRoom(ctx, roomName)
	if err != nil {
		return err
	}
	if rm == nil {
		return engine.ErrPlayerNotInRoom
	}
	if err := rm.Submit(ctx, cmd); err != nil {
		if errors.Is(err, room.ErrClosed) {
			return engine.ErrPlayerNotInRoom
		}
		return err
	}
	return nil
}

// NormalizeName trims, NFC-normalizes and caps a display name.
func NormalizeName(s string) string {
	s = norm.NFC.String(strings.TrimSpace(s))
	if r := []rune(s); len(r) > maxNameRunes {
		s = strings.TrimSpace(string(r[:maxNameRunes]))
	}
	return s
}
