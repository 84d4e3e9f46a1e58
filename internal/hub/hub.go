package hub

import (
	"context"
	"errors"
	"slices"
	"strings"

	"go.uber.org/zap"

	"github.com/DoyleJ11/spell-duel-backend/internal/engine"
	"github.com/DoyleJ11/spell-duel-backend/internal/room"
	"github.com/DoyleJ11/spell-duel-backend/pkg/metrics"
	wire "github.com/DoyleJ11/spell-duel-backend/pkg/types"
)

var ErrRoomAlreadyExists = errors.New("room already exists")
var ErrRoomNotFound = errors.New("room does not exist")
var ErrInvalidRoomName = errors.New("room name must not be empty")
var ErrHubClosed = errors.New("hub closed")

type HubMsg interface{ isHubMsg() }

type CreateRoom struct {
	Name       string
	ConnID     string
	PlayerName string
	Ruleset    engine.Ruleset
	Reply      chan CreateResult
}

type CreateResult struct {
	Room *room.Room
	Err  error
}

type GetRoom struct {
	Name  string
	Reply chan *room.Room
}

// RemoveRoom only deletes the entry if it still points at Room, so a stale
// removal never takes out a newer room with the same name.
type RemoveRoom struct {
	Name string
	Room *room.Room
}

type ListRooms struct {
	Reply chan []wire.RoomSummary
}

type ShutdownHub struct{}

func (CreateRoom) isHubMsg()  {}
func (GetRoom) isHubMsg()     {}
func (RemoveRoom) isHubMsg()  {}
func (ListRooms) isHubMsg()   {}
func (ShutdownHub) isHubMsg() {}

type Hub struct {
	inbox  chan HubMsg
	rooms  map[string]*room.Room
	deps   room.Deps
	log    *zap.Logger
	ctx    context.Context
	cancel context.CancelFunc
}

func NewHub(parent context.Context, deps room.Deps) *Hub {
	ctx, cancel := context.WithCancel(parent)
	h := &Hub{
		inbox:  make(chan HubMsg, 64),
		rooms:  make(map[string]*room.Room),
		deps:   deps,
		log:    deps.Log.Named("hub"),
		ctx:    ctx,
		cancel: cancel,
	}
	go h.loop()
	return h
}

// Done is closed once the store has stopped and shut its rooms down.
func (h *Hub) Done() <-chan struct{} { return h.ctx.Done() }

func (h *Hub) loop() {
	for {
		select {
		case <-h.ctx.Done():
			h.shutdown()
			return

		case m := <-h.inbox:
			switch msg := m.(type) {
			case CreateRoom:
				msg.Reply <- h.create(msg)

			case GetRoom:
				rm := h.rooms[msg.Name]
				if rm != nil && rm.Closed() {
					rm = nil
				}
				msg.Reply <- rm // May be nil

			case RemoveRoom:
				if current, ok := h.rooms[msg.Name]; ok && current == msg.Room {
					delete(h.rooms, msg.Name)
					metrics.Rooms.Dec()
					h.log.Info("room removed", zap.String("room", msg.Name))
				}

			case ListRooms:
				msg.Reply <- h.joinable()

			case ShutdownHub:
				h.shutdown()
				h.cancel()
				return
			}
		}
	}
}

func (h *Hub) create(msg CreateRoom) CreateResult {
	if existing := h.rooms[msg.Name]; existing != nil {
		if !existing.Closed() {
			return CreateResult{Err: ErrRoomAlreadyExists}
		}
		// closed but its RemoveRoom has not arrived yet
		delete(h.rooms, msg.Name)
		metrics.Rooms.Dec()
	}

	rm, err := room.New(h.ctx, msg.Name, msg.Ruleset, msg.ConnID, msg.PlayerName, h.deps, h.roomEmptied)
	if err != nil {
		return CreateResult{Err: err}
	}
	h.rooms[msg.Name] = rm
	metrics.Rooms.Inc()
	h.log.Info("room created", zap.String("room", msg.Name), zap.String("by", msg.PlayerName), zap.String("ruleset", msg.Ruleset.Name))
	return CreateResult{Room: rm}
}

// roomEmptied runs on the emptied room's goroutine.
func (h *Hub) roomEmptied(rm *room.Room) {
	select {
	case h.inbox <- RemoveRoom{Name: rm.Name(), Room: rm}:
	case <-h.ctx.Done():
	}
}

func (h *Hub) joinable() []wire.RoomSummary {
	out := []wire.RoomSummary{}
	for name, rm := range h.rooms {
		s := rm.Summary()
		if !s.Joinable {
			continue
		}
		out = append(out, wire.RoomSummary{Name: name, Players: s.Occupancy})
	}
	slices.SortFunc(out, func(a, b wire.RoomSummary) int { return strings.Compare(a.Name, b.Name) })
	return out
}

func (h *Hub) shutdown() {
	for _, rm := range h.rooms {
		select {
		case rm.Inbox() <- room.Shutdown{}:
		default:
			// room inbox saturated; the parent context cancellation stops it
		}
	}
	metrics.Rooms.Sub(float64(len(h.rooms)))
	clear(h.rooms)
}
