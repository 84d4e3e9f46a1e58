package room

import (
	"context"

	"github.com/DoyleJ11/spell-duel-backend/internal/engine"
)

func (r *Room) Join(ctx context.Context, connID, name string) error {
	reply := make(chan error, 1)
	if err := r.send(ctx, Join{ConnID: connID, Name: name, Reply: reply}); err != nil {
		return err
	}
	err, waitErr := await(ctx, r, reply)
	if waitErr != nil {
		return waitErr
	}
	return err
}

func (r *Room) Leave(ctx context.Context, connID string) (LeaveResult, error) {
	reply := make(chan LeaveResult, 1)
	if err := r.send(ctx, Leave{ConnID: connID, Reply: reply}); err != nil {
		return LeaveResult{}, err
	}
	return await(ctx, r, reply)
}

func (r *Room) Submit(ctx context.Context, cmd engine.Command) error {
	reply := make(chan error, 1)
	if err := r.send(ctx, FromClient{Cmd: cmd, Reply: reply}); err != nil {
		return err
	}
	err, waitErr := await(ctx, r, reply)
	if waitErr != nil {
		return waitErr
	}
	return err
}

func (r *Room) View(ctx context.Context) (View, error) {
	reply := make(chan View, 1)
	if err := r.send(ctx, GetState{Reply: reply}); err != nil {
		return View{}, err
	}
	return await(ctx, r, reply)
}

func (r *Room) send(ctx context.Context, m Msg) error {
	select {
	case r.inbox <- m:
		return nil
	case <-r.done:
		return ErrClosed
	case <-ctx.Done():
		return ctx.Err()
	}
}

// await waits for the actor's reply. The actor always replies before it
// closes done, so a reply racing with done still wins.
func await[T any](ctx context.Context, r *Room, reply <-chan T) (T, error) {
	var zero T
	select {
	case v := <-reply:
		return v, nil
	case <-r.done:
		select {
		case v := <-reply:
			return v, nil
		default:
			return zero, ErrClosed
		}
	case <-ctx.Done():
		return zero, ctx.Err()
	}
}
