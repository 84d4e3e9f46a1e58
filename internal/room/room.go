package room

import (
	"context"
	"errors"
	"sync/atomic"
	"time"

	"go.uber.org/zap"

	"github.com/DoyleJ11/spell-duel-backend/internal/broadcast"
	"github.com/DoyleJ11/spell-duel-backend/internal/engine"
	"github.com/DoyleJ11/spell-duel-backend/internal/history"
	"github.com/DoyleJ11/spell-duel-backend/internal/registry"
	"github.com/DoyleJ11/spell-duel-backend/internal/types"
	"github.com/DoyleJ11/spell-duel-backend/pkg/metrics"
)

// ErrClosed is returned for requests that reach a room after its last
// occupant left or after shutdown.
var ErrClosed = errors.New("room closed")

type Msg interface{ isRoomMsg() }

type Join struct {
	ConnID string
	Name   string
	Reply  chan error
}

func (Join) isRoomMsg() {}

type Leave struct {
	ConnID string
	Reply  chan LeaveResult
}

func (Leave) isRoomMsg() {}

type LeaveResult struct {
	Empty bool
	Err   error
}

// FromClient carries a move or rematch command from a seated player.
type FromClient struct {
	Cmd   engine.Command
	Reply chan error
}

func (FromClient) isRoomMsg() {}

type GetState struct {
	Reply chan View
}

func (GetState) isRoomMsg() {}

type Shutdown struct{}

func (Shutdown) isRoomMsg() {}

type View struct {
	State  engine.State
	Closed bool
}

// Summary is published after every mutation so the store can list rooms
// without a round trip through the actor.
type Summary struct {
	Name      string
	Ruleset   string
	Status    engine.Status
	Occupancy int
	Joinable  bool
	Closed    bool
}

// ResultSink receives finished matches. Enqueue must not block.
type ResultSink interface {
	Enqueue(history.Result) bool
}

type Deps struct {
	Registry    *registry.Registry
	Broadcaster *broadcast.Broadcaster
	History     ResultSink
	Log         *zap.Logger
}

type Room struct {
	name    string
	inbox   chan Msg
	state   engine.State
	closed  bool
	summary atomic.Pointer[Summary]
	deps    Deps
	log     *zap.Logger
	onEmpty func(*Room)
	ctx     context.Context
	cancel  context.CancelFunc
	done    chan struct{}
}

// New seats the creator in a fresh room and starts its actor. onEmpty runs on
// the room goroutine right before the reply to the last Leave.
func New(parent context.Context, name string, rules engine.Ruleset, creatorID, creatorName string, deps Deps, onEmpty func(*Room)) (*Room, error) {
	_, initial, err := engine.Apply(engine.NewState(name, rules), engine.Command{Type: engine.CmdJoin, ConnID: creatorID, Name: creatorName})
	if err != nil {
		return nil, err
	}
	if err := deps.Registry.Attach(creatorID, name); err != nil {
		return nil, err
	}

	ctx, cancel := context.WithCancel(parent)
	r := &Room{
		name:    name,
		inbox:   make(chan Msg, 64), // Small buffer
		state:   initial,
		deps:    deps,
		log:     deps.Log.With(zap.String("room", name)),
		onEmpty: onEmpty,
		ctx:     ctx,
		cancel:  cancel,
		done:    make(chan struct{}),
	}
	r.publish()
	// sent before the actor starts so the creator sees it ahead of any join
	deps.Broadcaster.Send(creatorID, types.RoomCreated{RoomName: name, Ruleset: rules.Name, Players: types.PlayersView(initial)})

	go r.loop()
	return r, nil
}

func (r *Room) Name() string { return r.name }

// Expose the inbox so tests or the store can send messages.
func (r *Room) Inbox() chan<- Msg { return r.inbox }

func (r *Room) Done() <-chan struct{} { return r.done }

func (r *Room) Summary() Summary { return *r.summary.Load() }

func (r *Room) Closed() bool { return r.Summary().Closed }

func (r *Room) loop() {
	defer close(r.done)
	for {
		select {
		case <-r.ctx.Done():
			r.shutdown()
			return

		case m := <-r.inbox:
			switch msg := m.(type) {
			case Join:
				msg.Reply <- r.join(msg)

			case Leave:
				res := r.leave(msg)
				if res.Empty {
					r.shutdown()
					if r.onEmpty != nil {
						r.onEmpty(r)
					}
					msg.Reply <- res
					return
				}
				msg.Reply <- res

			case FromClient:
				msg.Reply <- r.fromClient(msg.Cmd)

			case GetState:
				// test-only: reflect internal state without data races
				msg.Reply <- View{State: r.state.Clone(), Closed: r.closed}

			case Shutdown:
				r.shutdown()
				return
			}
		}
	}
}

func (r *Room) join(msg Join) error {
	events, next, err := engine.Apply(r.state, engine.Command{Type: engine.CmdJoin, ConnID: msg.ConnID, Name: msg.Name})
	if err != nil {
		return err
	}
	// A connection that vanished mid-join must not leave a slot behind.
	if err := r.deps.Registry.Attach(msg.ConnID, r.name); err != nil {
		return err
	}
	r.commit(next, events)
	r.log.Info("player joined", zap.String("conn", msg.ConnID), zap.String("player", msg.Name))
	return nil
}

func (r *Room) leave(msg Leave) LeaveResult {
	events, next, err := engine.Apply(r.state, engine.Command{Type: engine.CmdLeave, ConnID: msg.ConnID})
	if err != nil {
		return LeaveResult{Err: err}
	}
	r.deps.Registry.Detach(msg.ConnID)
	r.commit(next, events)

	if engine.ContainsEvent(events, engine.EvtRoomEmpty) {
		r.log.Info("room deleted")
		return LeaveResult{Empty: true}
	}
	r.log.Info("player left", zap.String("conn", msg.ConnID))
	return LeaveResult{}
}

func (r *Room) fromClient(cmd engine.Command) error {
	events, next, err := engine.Apply(r.state, cmd)
	if err != nil {
		if errors.Is(err, engine.ErrIncompleteRound) {
			r.log.Error("round left unresolved", zap.Error(err), zap.Int("round", r.state.Round))
		}
		return err
	}
	r.commit(next, events)
	return nil
}

// commit adopts the new state, republishes the summary and delivers events.
func (r *Room) commit(next engine.State, events []engine.Event) {
	r.state = next
	r.publish()

	for _, ev := range events {
		if ev.Type == engine.EvtRoundResolved && ev.Outcome != nil {
			r.recordRound(*ev.Outcome)
		}
		out, ok := types.FromEvent(ev, r.state)
		if !ok {
			continue
		}
		if ev.To != "" {
			r.deps.Broadcaster.Send(ev.To, out)
			continue
		}
		r.deps.Broadcaster.Broadcast(r.name, out)
	}
}

func (r *Room) recordRound(o engine.Outcome) {
	ruleset := r.state.Ruleset.Name
	outcome := "win"
	if o.WinnerID == "" {
		outcome = "draw"
	}
	metrics.RoundsResolved.WithLabelValues(ruleset, outcome).Inc()
	r.log.Debug("round resolved", zap.Int("round", o.Round), zap.String("winner", o.WinnerID), zap.Bool("terminal", o.Terminal))

	if !o.Terminal {
		return
	}
	metrics.MatchesFinished.WithLabelValues(ruleset).Inc()

	res := matchResult(r.name, r.state, o, time.Now().UTC())
	r.log.Info("match finished", zap.String("winner", res.Winner), zap.Int("rounds", res.Rounds))
	if r.deps.History != nil && !r.deps.History.Enqueue(res) {
		r.log.Warn("match result dropped, history queue full")
	}
}

// matchResult names winner and loser from the final slots. A match that ends
// without a winner records neither.
func matchResult(room string, s engine.State, o engine.Outcome, at time.Time) history.Result {
	res := history.Result{
		Room:       room,
		Ruleset:    s.Ruleset.Name,
		Rounds:     o.Round,
		FinishedAt: at,
	}
	if o.MatchWinnerID == "" {
		return res
	}
	for _, sl := range s.Slots {
		if sl.ConnID == o.MatchWinnerID {
			res.Winner = sl.Name
		} else {
			res.Loser = sl.Name
		}
	}
	return res
}

func (r *Room) publish() {
	r.summary.Store(&Summary{
		Name:      r.name,
		Ruleset:   r.state.Ruleset.Name,
		Status:    r.state.Status,
		Occupancy: len(r.state.Slots),
		Joinable:  !r.closed && engine.Joinable(r.state),
		Closed:    r.closed,
	})
}

func (r *Room) shutdown() {
	r.closed = true
	r.publish()
	r.cancel()
}
