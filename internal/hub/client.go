package hub

import (
	"context"
	"errors"

	"github.com/DoyleJ11/spell-duel-backend/internal/engine"
	"github.com/DoyleJ11/spell-duel-backend/internal/room"
	wire "github.com/DoyleJ11/spell-duel-backend/pkg/types"
)

// CreateRoom registers a new room with the creator already seated.
func (h *Hub) CreateRoom(ctx context.Context, name, connID, playerName string, rules engine.Ruleset) (*room.Room, error) {
	if name == "" {
		return nil, ErrInvalidRoomName
	}
	reply := make(chan CreateResult, 1)
	if err := h.send(ctx, CreateRoom{Name: name, ConnID: connID, PlayerName: playerName, Ruleset: rules, Reply: reply}); err != nil {
		return nil, err
	}
	res, err := await(ctx, h, reply)
	if err != nil {
		return nil, err
	}
	return res.Room, res.Err
}

// GetRoom returns nil when no live room has that name.
func (h *Hub) GetRoom(ctx context.Context, name string) (*room.Room, error) {
	reply := make(chan *room.Room, 1)
	if err := h.send(ctx, GetRoom{Name: name, Reply: reply}); err != nil {
		return nil, err
	}
	return await(ctx, h, reply)
}

// JoinRoom seats the connection in an existing room.
func (h *Hub) JoinRoom(ctx context.Context, name, connID, playerName string) (*room.Room, error) {
	if name == "" {
		return nil, ErrInvalidRoomName
	}
	rm, err := h.GetRoom(ctx, name)
	if err != nil {
		return nil, err
	}
	if rm == nil {
		return nil, ErrRoomNotFound
	}
	if err := rm.Join(ctx, connID, playerName); err != nil {
		// the last occupant left between lookup and join
		if errors.Is(err, room.ErrClosed) {
			return nil, ErrRoomNotFound
		}
		return nil, err
	}
	return rm, nil
}

// Evict removes a connection from its room. The room is dropped from the
// store before Evict returns if the connection was its last occupant.
func (h *Hub) Evict(ctx context.Context, roomName, connID string) error {
	rm, err := h.GetRoom(ctx, roomName)
	if err != nil || rm == nil {
		return err
	}
	res, err := rm.Leave(ctx, connID)
	if errors.Is(err, room.ErrClosed) {
		return nil
	}
	if err != nil {
		return err
	}
	return res.Err
}

func (h *Hub) ListJoinable(ctx context.Context) ([]wire.RoomSummary, error) {
	reply := make(chan []wire.RoomSummary, 1)
	if err := h.send(ctx, ListRooms{Reply: reply}); err != nil {
		return nil, err
	}
	return await(ctx, h, reply)
}

func (h *Hub) Shutdown() {
	select {
	case h.inbox <- ShutdownHub{}:
	case <-h.ctx.Done():
	}
}

func (h *Hub) send(ctx context.Context, m HubMsg) error {
	select {
	case h.inbox <- m:
		return nil
	case <-h.ctx.Done():
		return ErrHubClosed
	case <-ctx.Done():
		return ctx.Err()
	}
}

func await[T any](ctx context.Context, h *Hub, reply <-chan T) (T, error) {
	var zero T
	select {
	case v := <-reply:
		return v, nil
	case <-h.ctx.Done():
		select {
		case v := <-reply:
			return v, nil
		default:
			return zero, ErrHubClosed
		}
	case <-ctx.Done():
		return zero, ctx.Err()
	}
}
