package engine

import "fmt"

type Move string

const (
	MoveRock     Move = "rock"
	MovePaper    Move = "paper"
	MoveScissors Move = "scissors"

	MoveFire Move = "fire"
	MoveIce  Move = "ice"
	MoveWind Move = "wind"
)

const (
	RulesetClassic   = "classic"
	RulesetElemental = "elemental"
)

// Ruleset is the beats-relation plus the damage/terminal policy of a game variant.
// A zero InitialHealth means the variant does not track health and never finishes.
type Ruleset struct {
	Name          string
	Moves         []Move
	Verb          string
	DrawMessage   string
	InitialHealth int
	Damage        int

	beats map[Move]Move // key beats value
}

var Classic = Ruleset{
	Name:        RulesetClassic,
	Moves:       []Move{MoveRock, MovePaper, MoveScissors},
	Verb:        "beats",
	DrawMessage: "Both hands match! It's a draw!",
	beats: map[Move]Move{
		MoveRock:     MoveScissors,
		MoveScissors: MovePaper,
		MovePaper:    MoveRock,
	},
}

var Elemental = Ruleset{
	Name:          RulesetElemental,
	Moves:         []Move{MoveFire, MoveIce, MoveWind},
	Verb:          "overpowers",
	DrawMessage:   "Spells collide! It's a draw!",
	InitialHealth: 100,
	Damage:        20,
	beats: map[Move]Move{
		MoveFire: MoveIce,
		MoveIce:  MoveWind,
		MoveWind: MoveFire,
	},
}

func RulesetByName(name string) (Ruleset, bool) {
	switch name {
	case RulesetClassic:
		return Classic, true
	case RulesetElemental:
		return Elemental, true
	default:
		return Ruleset{}, false
	}
}

func (r Ruleset) Valid(m Move) bool {
	_, ok := r.beats[m]
	return ok
}

func (r Ruleset) Beats(a, b Move) bool {
	victim, ok := r.beats[a]
	return ok && victim == b
}

func (r Ruleset) TracksHealth() bool { return r.InitialHealth > 0 }

// Outcome is the result of one resolved round. Empty WinnerID means a draw.
type Outcome struct {
	Round           int
	WinnerID        string
	Moves           map[string]Move
	Health          map[string]int
	Damage          int
	TargetID        string
	Message         string
	Terminal        bool
	MatchWinnerID   string
	TerminalMessage string
}

// Resolve computes the outcome of a round from the two committed slots without
// mutating them. Health values in the outcome are the post-damage values.
func (r Ruleset) Resolve(round int, a, b Slot) (Outcome, error) {
	if !a.Committed || !b.Committed {
		return Outcome{}, ErrIncompleteRound
	}

	out := Outcome{
		Round:  round,
		Moves:  map[string]Move{a.ConnID: a.Move, b.ConnID: b.Move},
		Health: map[string]int{},
	}
	if r.TracksHealth() {
		out.Health[a.ConnID] = a.Health
		out.Health[b.ConnID] = b.Health
	}

	var winner, loser Slot
	switch {
	case r.Beats(a.Move, b.Move):
		winner, loser = a, b
	case r.Beats(b.Move, a.Move):
		winner, loser = b, a
	default:
		out.Message = r.DrawMessage
		return out, nil
	}

	out.WinnerID = winner.ConnID
	out.Message = fmt.Sprintf("%s's %s %s %s's %s!", winner.Name, winner.Move, r.Verb, loser.Name, loser.Move)

	if !r.TracksHealth() {
		return out, nil
	}

	out.Damage = r.Damage
	out.TargetID = loser.ConnID
	out.Health[loser.ConnID] = max(0, loser.Health-r.Damage)

	ha, hb := out.Health[a.ConnID], out.Health[b.ConnID]
	switch {
	case ha <= 0 && hb <= 0:
		// Only one slot takes damage per round, so this needs a rule change to reach.
		out.Terminal = true
		out.TerminalMessage = "Both duelists have fallen! The battle ends in a draw!"
	case ha <= 0:
		out.Terminal = true
		out.MatchWinnerID = b.ConnID
		out.TerminalMessage = fmt.Sprintf("%s wins the battle! %s has been defeated!", b.Name, a.Name)
	case hb <= 0:
		out.Terminal = true
		out.MatchWinnerID = a.ConnID
		out.TerminalMessage = fmt.Sprintf("%s wins the battle! %s has been defeated!", a.Name, b.Name)
	}
	return out, nil
}
