package session

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/DoyleJ11/spell-duel-backend/internal/broadcast"
	"github.com/DoyleJ11/spell-duel-backend/internal/engine"
	"github.com/DoyleJ11/spell-duel-backend/internal/hub"
	"github.com/DoyleJ11/spell-duel-backend/internal/registry"
	"github.com/DoyleJ11/spell-duel-backend/internal/room"
	"github.com/DoyleJ11/spell-duel-backend/internal/types"
)

type harness struct {
	m   *Manager
	hub *hub.Hub
	reg *registry.Registry
}

func newHarness(t *testing.T) *harness {
	t.Helper()
	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(cancel)

	reg := registry.New()
	bc := broadcast.New(reg, zap.NewNop())
	h := hub.NewHub(ctx, room.Deps{Registry: reg, Broadcaster: bc, Log: zap.NewNop()})
	return &harness{
		m:   New(reg, h, bc, zap.NewNop(), engine.RulesetElemental),
		hub: h,
		reg: reg,
	}
}

func (h *harness) connect(t *testing.T, id string) chan types.Outbound {
	t.Helper()
	ch := make(chan types.Outbound, 64)
	require.NoError(t, h.m.Connect(id, "", ch))
	return ch
}

func (h *harness) do(id string, in types.Inbound) {
	h.m.Handle(context.Background(), id, in)
}

// expect drains messages until one of the wanted type arrives.
func expect[T types.Outbound](t *testing.T, ch <-chan types.Outbound) T {
	t.Helper()
	deadline := time.After(2 * time.Second)
	for {
		select {
		case m := <-ch:
			if v, ok := m.(T); ok {
				return v
			}
		case <-deadline:
			var zero T
			t.Fatalf("timed out waiting for %T", zero)
			return zero
		}
	}
}

func (h *harness) duel(t *testing.T, rules string) (alice, bob chan types.Outbound) {
	t.Helper()
	return h.duelIn(t, "Arena", "alice", "bob", rules)
}

// duelIn seats connections a and b in a fresh room and waits for the match
// to start.
func (h *harness) duelIn(t *testing.T, roomName, a, b, rules string) (chA, chB chan types.Outbound) {
	t.Helper()
	chA = h.connect(t, a)
	chB = h.connect(t, b)
	h.do(a, types.CreateRoom{RoomName: roomName, PlayerName: "Alice", Ruleset: rules})
	expect[types.RoomCreated](t, chA)
	h.do(b, types.JoinRoom{RoomName: roomName, PlayerName: "Bob"})
	expect[types.GameReady](t, chA)
	expect[types.GameReady](t, chB)
	return chA, chB
}

func TestScenarioA_ElementalAliceWinsInFiveRounds(t *testing.T) {
	h := newHarness(t)
	alice, bob := h.duel(t, engine.RulesetElemental)

	var res types.RoundResult
	for round := 1; round <= 5; round++ {
		h.do("alice", types.SubmitMove{Move: engine.MoveFire})
		h.do("bob", types.SubmitMove{Move: engine.MoveIce})

		res = expect[types.RoundResult](t, alice)
		expect[types.RoundResult](t, bob)

		assert.Equal(t, round, res.Round)
		assert.Equal(t, 100, res.Health["alice"])
		assert.Equal(t, 100-20*round, res.Health["bob"])
		require.NotNil(t, res.Result.Winner)
		assert.Equal(t, "alice", *res.Result.Winner)
	}

	assert.True(t, res.GameOver)
	require.NotNil(t, res.GameWinner)
	assert.Equal(t, "alice", *res.GameWinner)
	assert.Equal(t, "Alice wins the battle! Bob has been defeated!", res.Result.GameOverMessage)

	// no moves once finished
	h.do("alice", types.SubmitMove{Move: engine.MoveFire})
	rej := expect[types.GameError](t, alice)
	assert.Equal(t, "RoomNotReady", rej.Code)
}

func TestScenarioB_ClassicDrawAdvancesRound(t *testing.T) {
	h := newHarness(t)
	alice, _ := h.duel(t, engine.RulesetClassic)

	h.do("alice", types.SubmitMove{Move: engine.MoveRock})
	h.do("bob", types.SubmitMove{Move: engine.MoveRock})

	res := expect[types.RoundResult](t, alice)
	assert.Nil(t, res.Result.Winner)
	assert.Equal(t, "Both hands match! It's a draw!", res.Result.Message)
	assert.Empty(t, res.Health)
	assert.False(t, res.GameOver)

	rm, err := h.hub.GetRoom(context.Background(), "Arena")
	require.NoError(t, err)
	view, err := rm.View(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 2, view.State.Round)
	for _, sl := range view.State.Slots {
		assert.False(t, sl.Committed)
		assert.Empty(t, sl.Move)
	}
}

func TestRematchFlow(t *testing.T) {
	h := newHarness(t)
	alice, bob := h.duel(t, engine.RulesetElemental)

	h.do("alice", types.Rematch{})
	assert.Equal(t, "MatchNotFinished", expect[types.GameError](t, alice).Code)

	for i := 0; i < 5; i++ {
		h.do("alice", types.SubmitMove{Move: engine.MoveWind})
		h.do("bob", types.SubmitMove{Move: engine.MoveIce})
	}
	final := expect[types.RoundResult](t, bob)
	for !final.GameOver {
		final = expect[types.RoundResult](t, bob)
	}
	require.NotNil(t, final.GameWinner)
	assert.Equal(t, "bob", *final.GameWinner)

	h.do("alice", types.Rematch{})
	waiting := expect[types.PlayerReadyForNewGame](t, bob)
	assert.Equal(t, "alice", waiting.PlayerID)

	h.do("bob", types.Rematch{})
	assert.Equal(t, "A new battle begins!", expect[types.NewGame](t, alice).Message)
	expect[types.NewGame](t, bob)

	h.do("alice", types.SubmitMove{Move: engine.MoveFire})
	assert.Equal(t, engine.MoveFire, expect[types.SpellCast](t, alice).Spell)
}

func TestCreateAndJoinRejections(t *testing.T) {
	h := newHarness(t)
	alice, _ := h.duel(t, engine.RulesetElemental)
	carol := h.connect(t, "carol")

	tests := []struct {
		name string
		id   string
		ch   chan types.Outbound
		in   types.Inbound
		code string
	}{
		{"duplicate room", "carol", carol, types.CreateRoom{RoomName: "Arena", PlayerName: "Carol"}, "RoomAlreadyExists"},
		{"missing room", "carol", carol, types.JoinRoom{RoomName: "Nope", PlayerName: "Carol"}, "RoomNotFound"},
		{"full room", "carol", carol, types.JoinRoom{RoomName: "Arena", PlayerName: "Carol"}, "RoomFull"},
		{"empty room name", "carol", carol, types.JoinRoom{RoomName: "  ", PlayerName: "Carol"}, "InvalidRoomName"},
		{"unknown ruleset", "carol", carol, types.CreateRoom{RoomName: "X", PlayerName: "Carol", Ruleset: "chess"}, "UnknownRuleset"},
		{"already seated", "alice", alice, types.CreateRoom{RoomName: "Other", PlayerName: "Alice"}, "AlreadyInRoom"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h.do(tt.id, tt.in)
			got := expect[types.RoomError](t, tt.ch)
			assert.Equal(t, tt.code, got.Code)
		})
	}
}

func TestCreateWithoutAnyNameIsRejected(t *testing.T) {
	h := newHarness(t)
	ch := h.connect(t, "anon")

	h.do("anon", types.CreateRoom{RoomName: "Arena", PlayerName: "   "})
	assert.Equal(t, "InvalidPlayerName", expect[types.RoomError](t, ch).Code)
}

func TestCreateWithoutRoomNameGeneratesCode(t *testing.T) {
	h := newHarness(t)
	ch := h.connect(t, "alice")

	h.do("alice", types.CreateRoom{PlayerName: "Alice", Ruleset: "classic"})
	created := expect[types.RoomCreated](t, ch)
	assert.Regexp(t, `^[A-Z0-9]{6}$`, created.RoomName)
	assert.Equal(t, engine.RulesetClassic, created.Ruleset)
}

func TestMoveOutsideRoom(t *testing.T) {
	h := newHarness(t)
	ch := h.connect(t, "alice")

	h.do("alice", types.SubmitMove{Move: engine.MoveFire})
	assert.Equal(t, "PlayerNotInRoom", expect[types.GameError](t, ch).Code)
}

func TestInvalidMoveForRuleset(t *testing.T) {
	h := newHarness(t)
	alice, _ := h.duel(t, engine.RulesetElemental)

	h.do("alice", types.SubmitMove{Move: engine.MoveRock})
	assert.Equal(t, "InvalidMove", expect[types.GameError](t, alice).Code)
}

func TestDisconnect(t *testing.T) {
	ctx := context.Background()

	t.Run("one of two leaves a waiting room", func(t *testing.T) {
		h := newHarness(t)
		alice, _ := h.duel(t, engine.RulesetElemental)
		h.do("alice", types.SubmitMove{Move: engine.MoveFire})

		h.m.Disconnect("bob")

		left := expect[types.PlayerLeft](t, alice)
		assert.Equal(t, "Bob has fled the battle!", left.Message)
		require.Len(t, left.Players, 1)
		assert.False(t, left.Players[0].Ready, "pending move discarded")

		rooms, err := h.hub.ListJoinable(ctx)
		require.NoError(t, err)
		require.Len(t, rooms, 1)
		assert.Equal(t, 1, rooms[0].Players)
	})

	t.Run("only occupant deletes the room", func(t *testing.T) {
		h := newHarness(t)
		ch := h.connect(t, "alice")
		h.do("alice", types.CreateRoom{RoomName: "Arena", PlayerName: "Alice"})
		expect[types.RoomCreated](t, ch)

		h.m.Disconnect("alice")

		rm, err := h.hub.GetRoom(ctx, "Arena")
		require.NoError(t, err)
		assert.Nil(t, rm)
		assert.Zero(t, h.reg.Len())
	})
}

func TestListRooms(t *testing.T) {
	h := newHarness(t)
	for i := 0; i < 3; i++ {
		id := fmt.Sprintf("p%d", i)
		ch := h.connect(t, id)
		h.do(id, types.CreateRoom{RoomName: fmt.Sprintf("Room%d", i), PlayerName: id})
		expect[types.RoomCreated](t, ch)
	}
	viewer := h.connect(t, "viewer")

	h.do("viewer", types.ListRooms{})
	list := expect[types.RoomList](t, viewer)
	require.Len(t, list.Rooms, 3)
	assert.Equal(t, "Room0", list.Rooms[0].Name)
}

func TestNameIsFixedOnceSet(t *testing.T) {
	h := newHarness(t)
	ch := h.connect(t, "alice")
	h.do("alice", types.CreateRoom{RoomName: "Arena", PlayerName: "Alice"})
	expect[types.RoomCreated](t, ch)

	_, name, err := h.reg.Lookup("alice")
	require.NoError(t, err)
	assert.Equal(t, "Alice", name)
}

func TestNormalizeName(t *testing.T) {
	assert.Equal(t, "Zoë", NormalizeName("  Zoë "))
	assert.Equal(t, "", NormalizeName("   "))
	assert.Len(t, []rune(NormalizeName(strings.Repeat("ä", 100))), maxNameRunes)
}

func TestErrorCode(t *testing.T) {
	assert.Equal(t, "RoomFull", ErrorCode(fmt.Errorf("join: %w", engine.ErrRoomFull)))
	assert.Equal(t, CodeInternal, ErrorCode(context.DeadlineExceeded))
}

func TestRoomNamesAreUsedExactlyAsSent(t *testing.T) {
	h := newHarness(t)
	alice := h.connect(t, "alice")
	bob := h.connect(t, "bob")
	carol := h.connect(t, "carol")

	h.do("alice", types.CreateRoom{RoomName: " Arena ", PlayerName: "Alice"})
	assert.Equal(t, " Arena ", expect[types.RoomCreated](t, alice).RoomName)

	h.do("bob", types.CreateRoom{RoomName: "Arena", PlayerName: "Bob"})
	assert.Equal(t, "Arena", expect[types.RoomCreated](t, bob).RoomName)

	h.do("carol", types.JoinRoom{RoomName: " Arena ", PlayerName: "Carol"})
	expect[types.GameReady](t, alice)
	expect[types.GameReady](t, carol)

	rooms, err := h.hub.ListJoinable(context.Background())
	require.NoError(t, err)
	require.Len(t, rooms, 1)
	assert.Equal(t, "Arena", rooms[0].Name)
}

func TestRejectedCreateLeavesNameUnset(t *testing.T) {
	h := newHarness(t)
	ch := h.connect(t, "carol")

	h.do("carol", types.CreateRoom{RoomName: "Arena", PlayerName: "Carol", Ruleset: "chess"})
	assert.Equal(t, "UnknownRuleset", expect[types.RoomError](t, ch).Code)

	_, name, err := h.reg.Lookup("carol")
	require.NoError(t, err)
	assert.Empty(t, name)

	h.do("carol", types.CreateRoom{RoomName: "Arena", PlayerName: "Caroline"})
	expect[types.RoomCreated](t, ch)

	_, name, err = h.reg.Lookup("carol")
	require.NoError(t, err)
	assert.Equal(t, "Caroline", name)
}

func TestGenerateCode(t *testing.T) {
	code, err := generateCode(codeLength, codeCharset)
	require.NoError(t, err)
	assert.Regexp(t, `^[A-Z0-9]{6}$`, code)

	code, err = generateCode(12, "xy")
	require.NoError(t, err)
	assert.Regexp(t, `^[xy]{12}$`, code)
}

func TestContendedCreateSeatsExactlyOne(t *testing.T) {
	h := newHarness(t)
	const n = 16
	chans := make([]chan types.Outbound, n)
	for i := 0; i < n; i++ {
		chans[i] = h.connect(t, fmt.Sprintf("p%02d", i))
	}

	var wg sync.WaitGroup
	for i := 0; i < n; i++ {
		i := i
		wg.Add(1)
		go func() {
			defer wg.Done()
			id := fmt.Sprintf("p%02d", i)
			h.do(id, types.CreateRoom{RoomName: "Contested", PlayerName: id})
		}()
	}
	wg.Wait()

	created, rejected := 0, 0
	for _, ch := range chans {
		select {
		case m := <-ch:
			switch v := m.(type) {
			case types.RoomCreated:
				created++
			case types.RoomError:
				assert.Equal(t, "RoomAlreadyExists", v.Code)
				rejected++
			}
		case <-time.After(time.Second):
			t.Fatal("every create gets exactly one reply")
		}
	}
	assert.Equal(t, 1, created)
	assert.Equal(t, n-1, rejected)
}

// noRoundResult fails if another round result shows up on ch.
func noRoundResult(t *testing.T, ch <-chan types.Outbound) {
	t.Helper()
	for {
		select {
		case m := <-ch:
			_, isResult := m.(types.RoundResult)
			require.False(t, isResult, "unexpected extra round result")
		case <-time.After(50 * time.Millisecond):
			return
		}
	}
}

func TestConcurrentDuels(t *testing.T) {
	ctx := context.Background()
	h := newHarness(t)
	const rooms, rounds = 24, 6

	t.Run("duels", func(t *testing.T) {
		for i := 0; i < rooms; i++ {
			i := i
			t.Run(fmt.Sprintf("room%02d", i), func(t *testing.T) {
				t.Parallel()
				a, b := fmt.Sprintf("a%02d", i), fmt.Sprintf("b%02d", i)
				roomName := fmt.Sprintf("Room%02d", i)
				chA, chB := h.duelIn(t, roomName, a, b, engine.RulesetClassic)

				for round := 1; round <= rounds; round++ {
					var wg sync.WaitGroup
					wg.Add(2)
					go func() { defer wg.Done(); h.do(a, types.SubmitMove{Move: engine.MoveRock}) }()
					go func() { defer wg.Done(); h.do(b, types.SubmitMove{Move: engine.MoveScissors}) }()
					wg.Wait()

					for _, ch := range []chan types.Outbound{chA, chB} {
						res := expect[types.RoundResult](t, ch)
						assert.Equal(t, round, res.Round)
						require.NotNil(t, res.Result.Winner)
						assert.Equal(t, a, *res.Result.Winner)
					}
				}
				noRoundResult(t, chB)

				// a disconnect racing a pending move
				done := make(chan struct{})
				go func() { defer close(done); h.do(a, types.SubmitMove{Move: engine.MovePaper}) }()
				h.m.Disconnect(b)
				<-done

				left := expect[types.PlayerLeft](t, chA)
				require.Len(t, left.Players, 1)
				assert.False(t, left.Players[0].Ready)
				noRoundResult(t, chA)

				rm, err := h.hub.GetRoom(ctx, roomName)
				require.NoError(t, err)
				require.NotNil(t, rm)
				view, err := rm.View(ctx)
				require.NoError(t, err)
				assert.Equal(t, rounds+1, view.State.Round)
				assert.Equal(t, engine.StatusWaiting, view.State.Status)
				require.Len(t, view.State.Slots, 1)
				assert.False(t, view.State.Slots[0].Committed)

				h.m.Disconnect(a)
			})
		}
	})

	joinable, err := h.hub.ListJoinable(ctx)
	require.NoError(t, err)
	assert.Empty(t, joinable)
	assert.Zero(t, h.reg.Len())
	for i := 0; i < rooms; i++ {
		rm, err := h.hub.GetRoom(ctx, fmt.Sprintf("Room%02d", i))
		require.NoError(t, err)
		assert.Nil(t, rm)
	}
}
