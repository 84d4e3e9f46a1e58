package engine

import (
	"errors"
	"fmt"
)

var ErrRoomFull = errors.New("room is full")
var ErrAlreadyInRoom = errors.New("player already in a room")
var ErrPlayerNotInRoom = errors.New("player not in room")
var ErrRoomNotReady = errors.New("room is not ready for moves")
var ErrInvalidMove = errors.New("invalid move")
var ErrAlreadyCommitted = errors.New("move already committed this round")
var ErrMatchNotFinished = errors.New("match is not finished")
var ErrIncompleteRound = errors.New("round resolved with fewer than two committed moves")
var ErrUnsupportedCommand = errors.New("unsupported command")

const MaxSlots = 2

type Status string

const (
	StatusWaiting  Status = "waiting"
	StatusReady    Status = "ready"
	StatusFinished Status = "finished"
)

type Slot struct {
	ConnID       string
	Name         string
	Move         Move
	Committed    bool
	RematchReady bool
	Health       int
}

type State struct {
	Name    string
	Ruleset Ruleset
	Status  Status
	Round   int
	Slots   []Slot
}

type CommandType string

const (
	CmdJoin       CommandType = "Join"
	CmdLeave      CommandType = "Leave"
	CmdSubmitMove CommandType = "SubmitMove"
	CmdRematch    CommandType = "Rematch"
)

type Command struct {
	Type   CommandType
	ConnID string
	Name   string
	Move   Move
}

type EventType string

const (
	EvtPlayerJoined      EventType = "PlayerJoined"
	EvtRoomReady         EventType = "RoomReady"
	EvtMoveAccepted      EventType = "MoveAccepted"
	EvtOpponentCommitted EventType = "OpponentCommitted"
	EvtRoundResolved     EventType = "RoundResolved"
	EvtRematchRequested  EventType = "RematchRequested"
	EvtNewMatch          EventType = "NewMatch"
	EvtPlayerLeft        EventType = "PlayerLeft"
	EvtRoomEmpty         EventType = "RoomEmpty"
)

/*
	CmdJoin       -> EvtPlayerJoined -> EvtRoomReady (second slot only)
	CmdSubmitMove -> EvtMoveAccepted (to submitter) -> EvtOpponentCommitted (to the other slot)
	                 or, when both are in, EvtMoveAccepted -> EvtRoundResolved
	CmdRematch    -> EvtRematchRequested (to the other slot) or EvtNewMatch once both asked
	CmdLeave      -> EvtPlayerLeft, or EvtRoomEmpty when the last slot goes
*/

// Event is produced by Apply. An empty To means every attached connection
// receives it; otherwise only the connection To does.
type Event struct {
	Type    EventType
	ConnID  string
	Name    string
	To      string
	Move    Move
	Message string
	Outcome *Outcome
}

func Apply(s State, cmd Command) ([]Event, State, error) {
	switch cmd.Type {
	case CmdJoin:
		return applyJoin(s, cmd)
	case CmdLeave:
		return applyLeave(s, cmd)
	case CmdSubmitMove:
		return applySubmitMove(s, cmd)
	case CmdRematch:
		return applyRematch(s, cmd)
	default:
		return nil, s, ErrUnsupportedCommand
	}
}

func applyJoin(s State, cmd Command) ([]Event, State, error) {
	if SlotIndex(s, cmd.ConnID) >= 0 {
		return nil, s, ErrAlreadyInRoom
	}
	if len(s.Slots) >= MaxSlots {
		return nil, s, ErrRoomFull
	}

	newState := s.Clone()
	newState.Slots = append(newState.Slots, Slot{
		ConnID: cmd.ConnID,
		Name:   cmd.Name,
		Health: s.Ruleset.InitialHealth,
	})

	events := []Event{
		{Type: EvtPlayerJoined, ConnID: cmd.ConnID, Name: cmd.Name, Message: fmt.Sprintf("%s has joined the battle", cmd.Name)},
	}

	// A full room always starts a fresh match.
	if len(newState.Slots) == MaxSlots {
		newState = resetMatch(newState)
		events = append(events, Event{Type: EvtRoomReady, Message: "The battle is ready to begin!"})
	}
	return events, newState, nil
}

func applyLeave(s State, cmd Command) ([]Event, State, error) {
	idx := SlotIndex(s, cmd.ConnID)
	if idx < 0 {
		return nil, s, ErrPlayerNotInRoom
	}
	leaving := s.Slots[idx]

	newState := s.Clone()
	newState.Slots = append(newState.Slots[:idx], newState.Slots[idx+1:]...)
	newState.Status = StatusWaiting

	if len(newState.Slots) == 0 {
		return []Event{{Type: EvtRoomEmpty, ConnID: leaving.ConnID, Name: leaving.Name}}, newState, nil
	}

	for i := range newState.Slots {
		clearRound(&newState.Slots[i])
		newState.Slots[i].RematchReady = false
	}

	name := leaving.Name
	if name == "" {
		name = "A player"
	}
	events := []Event{
		{Type: EvtPlayerLeft, ConnID: leaving.ConnID, Name: leaving.Name, Message: fmt.Sprintf("%s has fled the battle!", name)},
	}
	return events, newState, nil
}

func applySubmitMove(s State, cmd Command) ([]Event, State, error) {
	idx := SlotIndex(s, cmd.ConnID)
	if idx < 0 {
		return nil, s, ErrPlayerNotInRoom
	}
	if s.Status != StatusReady {
		return nil, s, ErrRoomNotReady
	}
	if !s.Ruleset.Valid(cmd.Move) {
		return nil, s, ErrInvalidMove
	}
	if s.Slots[idx].Committed {
		return nil, s, ErrAlreadyCommitted
	}

	newState := s.Clone()
	slot := &newState.Slots[idx]
	slot.Move = cmd.Move
	slot.Committed = true

	events := []Event{
		{Type: EvtMoveAccepted, ConnID: slot.ConnID, Name: slot.Name, To: slot.ConnID, Move: cmd.Move},
	}

	if !allCommitted(newState) {
		if other := otherSlot(newState, idx); other != nil {
			events = append(events, Event{Type: EvtOpponentCommitted, ConnID: slot.ConnID, Name: slot.Name, To: other.ConnID})
		}
		return events, newState, nil
	}

	outcome, resolved, err := resolveRound(newState)
	if err != nil {
		return nil, s, err
	}
	events = append(events, Event{Type: EvtRoundResolved, Message: outcome.Message, Outcome: &outcome})
	return events, resolved, nil
}

func applyRematch(s State, cmd Command) ([]Event, State, error) {
	idx := SlotIndex(s, cmd.ConnID)
	if idx < 0 {
		return nil, s, ErrPlayerNotInRoom
	}
	if s.Status != StatusFinished {
		return nil, s, ErrMatchNotFinished
	}

	newState := s.Clone()
	slot := &newState.Slots[idx]
	slot.RematchReady = true

	if len(newState.Slots) == MaxSlots && allRematchReady(newState) {
		newState = resetMatch(newState)
		return []Event{{Type: EvtNewMatch, Message: "A new battle begins!"}}, newState, nil
	}

	var events []Event
	if other := otherSlot(newState, idx); other != nil {
		events = append(events, Event{
			Type:    EvtRematchRequested,
			ConnID:  slot.ConnID,
			Name:    slot.Name,
			To:      other.ConnID,
			Message: fmt.Sprintf("%s wants a rematch. Waiting for opponent", slot.Name),
		})
	}
	return events, newState, nil
}

// resolveRound applies the ruleset to both committed slots and either
// advances to the next round or finishes the match.
func resolveRound(s State) (Outcome, State, error) {
	if len(s.Slots) != MaxSlots {
		return Outcome{}, s, ErrIncompleteRound
	}

	out, err := s.Ruleset.Resolve(s.Round, s.Slots[0], s.Slots[1])
	if err != nil {
		return Outcome{}, s, err
	}

	newState := s.Clone()
	if newState.Ruleset.TracksHealth() {
		for i := range newState.Slots {
			newState.Slots[i].Health = out.Health[newState.Slots[i].ConnID]
		}
	}

	if out.Terminal {
		newState.Status = StatusFinished
		return out, newState, nil
	}

	for i := range newState.Slots {
		clearRound(&newState.Slots[i])
	}
	newState.Round++
	return out, newState, nil
}
