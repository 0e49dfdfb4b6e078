package duel

import (
	"time"
)

// State is a game lifecycle state. Transitions only move forward:
// invited -> playing, invited -> terminated (declined),
// playing -> terminated (dual acknowledgment). terminated is absorbing.
type State string

const (
	StateInvited    State = "invited"
	StatePlaying    State = "playing"
	StateTerminated State = "terminated"
)

// NoWinner is the winner sentinel for drawn games.
const NoWinner = "no winner"

// Flags are derived solely from the move history, never set
// independently of it.
type Flags struct {
	InCheck               bool `json:"inCheck"`
	InCheckmate           bool `json:"inCheckmate"`
	InStalemate           bool `json:"inStalemate"`
	InDraw                bool `json:"inDraw"`
	InThreefoldRepetition bool `json:"inThreefoldRepetition"`
	InsufficientMaterial  bool `json:"insufficientMaterial"`
}

// Terminal reports whether any game-ending condition holds.
func (f Flags) Terminal() bool {
	return f.InCheckmate || f.InStalemate || f.InDraw || f.InThreefoldRepetition || f.InsufficientMaterial
}

// User is a registered participant. Created once at registration and
// never deleted here. The credential is stored hashed and stays opaque
// to the session controller.
type User struct {
	Nickname     string    `json:"nickname"`
	Email        string    `json:"email"`
	PasswordHash string    `json:"-"`
	CreatedAt    time.Time `json:"created_at"`
}

// Game is the persisted state of one match between two distinct users.
// MovesUCI is the canonical history; every other field derives from it
// or from the lifecycle protocol. The initiator plays white.
type Game struct {
	ID        string   `json:"id"`
	Initiator string   `json:"initiator"`
	Acceptor  string   `json:"acceptor"`
	MovesUCI  []string `json:"moves_uci"`
	MovesSAN  []string `json:"moves_san"`
	State     State    `json:"state"`
	ToPlay    string   `json:"toPlay"`
	Winner    string   `json:"winner"`
	Flags

	// Acknowledged holds the participants who confirmed the game ended.
	// Grows monotonically; both present flips State to terminated.
	Acknowledged []string `json:"hasAcknowledgedGameOver"`

	// Version is the optimistic concurrency stamp; SaveGame succeeds
	// only when the stored version still matches.
	Version   int64     `json:"version"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// IsParticipant reports whether nickname is one of the two players.
func (g *Game) IsParticipant(nickname string) bool {
	return nickname == g.Initiator || nickname == g.Acceptor
}

// Opponent returns the other participant, or "" for a non-participant.
func (g *Game) Opponent(nickname string) string {
	switch nickname {
	case g.Initiator:
		return g.Acceptor
	case g.Acceptor:
		return g.Initiator
	}
	return ""
}

// HasAcknowledged reports whether nickname already confirmed game over.
func (g *Game) HasAcknowledged(nickname string) bool {
	for _, n := range g.Acknowledged {
		if n == nickname {
			return true
		}
	}
	return false
}

// BoardSnapshot is a read-only view of a game's current position.
type BoardSnapshot struct {
	GameID string `json:"gameID"`
	FEN    string `json:"fen"`
	Plies  int    `json:"plies"`
	State  State  `json:"state"`
	ToPlay string `json:"toPlay"`
	Winner string `json:"winner"`
	Flags
}

// StatusMessage is the uniform success payload for lifecycle operations.
type StatusMessage struct {
	Message string `json:"message"`
}
