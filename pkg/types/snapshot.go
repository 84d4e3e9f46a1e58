package types

// PlayerView is what the other side of a room may see about a slot.
// The committed move itself is never part of it.
type PlayerView struct {
	ID     string `json:"id"`
	Name   string `json:"name"`
	Ready  bool   `json:"ready"`
	Health *int   `json:"health,omitempty"`
}

type RoomSummary struct {
	Name    string `json:"name"`
	Players int    `json:"players"`
}

type RoundSummary struct {
	Winner          *string `json:"winner"`
	Message         string  `json:"message"`
	Damage          int     `json:"damage,omitempty"`
	Target          string  `json:"target,omitempty"`
	GameOverMessage string  `json:"gameOverMessage,omitempty"`
}
