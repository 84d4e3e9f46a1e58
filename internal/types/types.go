package types

import (
	"encoding/json"
	"errors"
	"fmt"

	"github.com/DoyleJ11/spell-duel-backend/internal/engine"
	wire "github.com/DoyleJ11/spell-duel-backend/pkg/types"
)

var ErrBadJSON = errors.New("bad json")
var ErrUnknownType = errors.New("unknown type")

// Inbound is the closed set of messages a client can send.
type Inbound interface{ isInbound() }

type CreateRoom struct {
	RoomName   string
	PlayerName string
	Ruleset    string
}

type JoinRoom struct {
	RoomName   string
	PlayerName string
}

type SubmitMove struct {
	Move engine.Move
}

type Rematch struct{}

type ListRooms struct{}

func (CreateRoom) isInbound() {}
func (JoinRoom) isInbound()   {}
func (SubmitMove) isInbound() {}
func (Rematch) isInbound()    {}
func (ListRooms) isInbound()  {}

func ParseInbound(data []byte) (Inbound, error) {
	var cm wire.ClientMessage
	if err := json.Unmarshal(data, &cm); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrBadJSON, err)
	}
	return ToInbound(cm)
}

func ToInbound(m wire.ClientMessage) (Inbound, error) {
	switch m.Type {
	case wire.InCreateRoom:
		return CreateRoom{RoomName: m.RoomName, PlayerName: m.PlayerName, Ruleset: m.Ruleset}, nil
	case wire.InJoinRoom:
		return JoinRoom{RoomName: m.RoomName, PlayerName: m.PlayerName}, nil
	case wire.InCastSpell, wire.InSubmitMove:
		move := m.Move
		if move == "" {
			move = m.Spell
		}
		return SubmitMove{Move: engine.Move(move)}, nil
	case wire.InPlayAgain, wire.InRematch:
		return Rematch{}, nil
	case wire.InGetRooms:
		return ListRooms{}, nil
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownType, m.Type)
	}
}
