package types

// Client -> Server
// createRoom:  roomName, playerName, ruleset ("elemental" | "classic", optional)
// joinRoom:    roomName, playerName
// castSpell:   spell  ("fire" | "ice" | "wind")
// submitMove:  move   (any move of the room's ruleset, e.g. "rock")
// playAgain:   {}     (alias: rematch)
// getRooms:    {}
//
// Server -> Client, always {"type": <name>, "data": {...}}
// roomCreated, roomError, playerJoined, gameReady, spellCast, playerReady,
// roundResult, newGame, playerReadyForNewGame, playerLeft, roomList, gameError

const (
	InCreateRoom = "createRoom"
	InJoinRoom   = "joinRoom"
	InCastSpell  = "castSpell"
	InSubmitMove = "submitMove"
	InPlayAgain  = "playAgain"
	InRematch    = "rematch"
	InGetRooms   = "getRooms"
)

const (
	OutRoomCreated           = "roomCreated"
	OutRoomError             = "roomError"
	OutPlayerJoined          = "playerJoined"
	OutGameReady             = "gameReady"
	OutSpellCast             = "spellCast"
	OutPlayerReady           = "playerReady"
	OutRoundResult           = "roundResult"
	OutNewGame               = "newGame"
	OutPlayerReadyForNewGame = "playerReadyForNewGame"
	OutPlayerLeft            = "playerLeft"
	OutRoomList              = "roomList"
	OutGameError             = "gameError"
)

type ClientMessage struct {
	Type       string `json:"type"`
	RoomName   string `json:"roomName,omitempty"`
	PlayerName string `json:"playerName,omitempty"`
	Ruleset    string `json:"ruleset,omitempty"`
	Spell      string `json:"spell,omitempty"`
	Move       string `json:"move,omitempty"`
}

type Envelope struct {
	Type string `json:"type"`
	Data any    `json:"data,omitempty"`
}
