package session

import (
	"errors"

	"go.uber.org/zap"

	"github.com/DoyleJ11/spell-duel-backend/internal/engine"
	"github.com/DoyleJ11/spell-duel-backend/internal/hub"
	"github.com/DoyleJ11/spell-duel-backend/internal/types"
	"github.com/DoyleJ11/spell-duel-backend/pkg/metrics"
)

type errKind int

const (
	roomErr errKind = iota
	gameErr
)

const CodeInternal = "Internal"

var codes = []struct {
	err  error
	code string
}{
	{hub.ErrRoomAlreadyExists, "RoomAlreadyExists"},
	{hub.ErrRoomNotFound, "RoomNotFound"},
	{hub.ErrInvalidRoomName, "InvalidRoomName"},
	{engine.ErrRoomFull, "RoomFull"},
	{engine.ErrAlreadyInRoom, "AlreadyInRoom"},
	{engine.ErrPlayerNotInRoom, "PlayerNotInRoom"},
	{engine.ErrRoomNotReady, "RoomNotReady"},
	{engine.ErrInvalidMove, "InvalidMove"},
	{engine.ErrAlreadyCommitted, "AlreadyCommitted"},
	{engine.ErrMatchNotFinished, "MatchNotFinished"},
	{ErrInvalidPlayerName, "InvalidPlayerName"},
	{ErrUnknownRuleset, "UnknownRuleset"},
	{types.ErrBadJSON, "BadRequest"},
	{types.ErrUnknownType, "UnknownType"},
}

// ErrorCode maps an error onto its stable wire code.
func ErrorCode(err error) string {
	for _, c := range codes {
		if errors.Is(err, c.err) {
			return c.code
		}
	}
	return CodeInternal
}

// reject tells the originating connection, and only it, why a request failed.
func (m *Manager) reject(connID string, kind errKind, err error) {
	code := ErrorCode(err)
	metrics.Rejections.WithLabelValues(code).Inc()

	msg := err.Error()
	if code == CodeInternal {
		m.log.Error("request failed", zap.String("conn", connID), zap.Error(err))
		msg = "internal error"
	} else {
		m.log.Debug("request rejected", zap.String("conn", connID), zap.String("code", code))
	}

	var out types.Outbound = types.GameError{Code: code, Message: msg}
	if kind == roomErr {
		out = types.RoomError{Code: code, Message: msg}
	}
	m.bc.Send(connID, out)
}
