package types

import (
	"encoding/json"

	"github.com/DoyleJ11/spell-duel-backend/internal/engine"
	wire "github.com/DoyleJ11/spell-duel-backend/pkg/types"
)

// Outbound is the closed set of messages the server sends.
type Outbound interface {
	Type() string
	isOutbound()
}

type RoomCreated struct {
	RoomName string            `json:"roomName"`
	Ruleset  string            `json:"ruleset"`
	Players  []wire.PlayerView `json:"players"`
}

type RoomError struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

type PlayerJoined struct {
	Players []wire.PlayerView `json:"players"`
	Message string            `json:"message"`
}

type GameReady struct {
	Message string `json:"message"`
}

type SpellCast struct {
	Spell engine.Move `json:"spell"`
}

type PlayerReady struct {
	PlayerID   string `json:"playerId"`
	PlayerName string `json:"playerName"`
}

type RoundResult struct {
	Result     wire.RoundSummary      `json:"result"`
	Spells     map[string]engine.Move `json:"spells"`
	Health     map[string]int         `json:"health,omitempty"`
	Round      int                    `json:"round"`
	GameOver   bool                   `json:"gameOver"`
	GameWinner *string                `json:"gameWinner"`
}

type NewGame struct {
	Message string `json:"message"`
}

type PlayerReadyForNewGame struct {
	PlayerID   string `json:"playerId"`
	PlayerName string `json:"playerName"`
	Message    string `json:"message"`
}

type PlayerLeft struct {
	Message string            `json:"message"`
	Players []wire.PlayerView `json:"players"`
}

type RoomList struct {
	Rooms []wire.RoomSummary `json:"rooms"`
}

type GameError struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

func (RoomCreated) Type() string           { return wire.OutRoomCreated }
func (RoomError) Type() string             { return wire.OutRoomError }
func (PlayerJoined) Type() string          { return wire.OutPlayerJoined }
func (GameReady) Type() string             { return wire.OutGameReady }
func (SpellCast) Type() string             { return wire.OutSpellCast }
func (PlayerReady) Type() string           { return wire.OutPlayerReady }
func (RoundResult) Type() string           { return wire.OutRoundResult }
func (NewGame) Type() string               { return wire.OutNewGame }
func (PlayerReadyForNewGame) Type() string { return wire.OutPlayerReadyForNewGame }
func (PlayerLeft) Type() string            { return wire.OutPlayerLeft }
func (RoomList) Type() string              { return wire.OutRoomList }
func (GameError) Type() string             { return wire.OutGameError }

func (RoomCreated) isOutbound()           {}
func (RoomError) isOutbound()             {}
func (PlayerJoined) isOutbound()          {}
func (GameReady) isOutbound()             {}
func (SpellCast) isOutbound()             {}
func (PlayerReady) isOutbound()           {}
func (RoundResult) isOutbound()           {}
func (NewGame) isOutbound()               {}
func (PlayerReadyForNewGame) isOutbound() {}
func (PlayerLeft) isOutbound()            {}
func (RoomList) isOutbound()              {}
func (GameError) isOutbound()             {}

func Encode(o Outbound) ([]byte, error) {
	return json.Marshal(wire.Envelope{Type: o.Type(), Data: o})
}

func PlayersView(s engine.State) []wire.PlayerView {
	out := make([]wire.PlayerView, 0, len(s.Slots))
	for _, sl := range s.Slots {
		pv := wire.PlayerView{ID: sl.ConnID, Name: sl.Name, Ready: sl.Committed}
		if s.Ruleset.TracksHealth() {
			h := sl.Health
			pv.Health = &h
		}
		out = append(out, pv)
	}
	return out
}

func NewRoundResult(o engine.Outcome) RoundResult {
	rr := RoundResult{
		Result: wire.RoundSummary{
			Message:         o.Message,
			Damage:          o.Damage,
			Target:          o.TargetID,
			GameOverMessage: o.TerminalMessage,
		},
		Spells:   o.Moves,
		Round:    o.Round,
		GameOver: o.Terminal,
	}
	if o.WinnerID != "" {
		w := o.WinnerID
		rr.Result.Winner = &w
	}
	if len(o.Health) > 0 {
		rr.Health = o.Health
	}
	if o.MatchWinnerID != "" {
		w := o.MatchWinnerID
		rr.GameWinner = &w
	}
	return rr
}

// FromEvent maps an engine event onto its wire message. s is the room state
// after the event was applied. RoomEmpty has no wire form.
func FromEvent(ev engine.Event, s engine.State) (Outbound, bool) {
	switch ev.Type {
	case engine.EvtPlayerJoined:
		return PlayerJoined{Players: PlayersView(s), Message: ev.Message}, true
	case engine.EvtRoomReady:
		return GameReady{Message: ev.Message}, true
	case engine.EvtMoveAccepted:
		return SpellCast{Spell: ev.Move}, true
	case engine.EvtOpponentCommitted:
		return PlayerReady{PlayerID: ev.ConnID, PlayerName: ev.Name}, true
	case engine.EvtRoundResolved:
		if ev.Outcome == nil {
			return nil, false
		}
		return NewRoundResult(*ev.Outcome), true
	case engine.EvtRematchRequested:
		return PlayerReadyForNewGame{PlayerID: ev.ConnID, PlayerName: ev.Name, Message: ev.Message}, true
	case engine.EvtNewMatch:
		return NewGame{Message: ev.Message}, true
	case engine.EvtPlayerLeft:
		return PlayerLeft{Message: ev.Message, Players: PlayersView(s)}, true
	default:
		return nil, false
	}
}
