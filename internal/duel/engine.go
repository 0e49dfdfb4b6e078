package duel

import (
	"fmt"

	nchess "github.com/corentings/chess/v2"

	"github.com/park285/chess-duel/pkg/duelerr"
)

// Stateless move application. The position is reconstructed from the
// persisted UCI history on every call; no live engine objects are kept
// between requests, so concurrent games never share state.

type moveOutcome struct {
	UCI      string
	SAN      string
	FEN      string
	Flags    Flags
	Terminal bool
}

// replayGame rebuilds the position by applying the stored UCI moves to
// the start position. The history is the canonical source of truth; a
// history that fails to replay is corrupt storage, not a caller error.
func replayGame(history []string) (*nchess.Game, error) {
	game := nchess.NewGame()
	for i, mv := range history {
		if err := game.PushNotationMove(mv, nchess.UCINotation{}, nil); err != nil {
			return nil, fmt.Errorf("replay move %d (%q): %w", i+1, mv, err)
		}
	}
	return game, nil
}

// historyFEN returns the FEN of the position after the given history.
func historyFEN(history []string) (string, error) {
	game, err := replayGame(history)
	if err != nil {
		return "", err
	}
	return game.FEN(), nil
}

// applyMove applies one candidate move to the position reconstructed
// from history. Shape is assumed validated (ParseMove). Returns the
// move in both notations, the resulting FEN and the six status flags,
// or a domain rejection. Pure: history is never mutated.
func applyMove(history []string, mv Move) (*moveOutcome, error) {
	game, err := replayGame(history)
	if err != nil {
		return nil, duelerr.Internal(err)
	}
	if concluded(game) {
		return nil, duelerr.Domainf("game is over, cannot move")
	}

	pos := game.Position()
	notationUCI := nchess.UCINotation{}

	// Clients may send a promotion piece on non-promotion moves, so the
	// bare from+to form is tried as a fallback.
	candidates := []string{mv.UCI()}
	if mv.Promotion != "" {
		candidates = append(candidates, Move{From: mv.From, To: mv.To}.UCI())
	}

	var applied *nchess.Move
	var uci string
	for _, cand := range candidates {
		decoded, derr := notationUCI.Decode(pos, cand)
		if derr != nil {
			continue
		}
		if merr := game.Move(decoded, nil); merr != nil {
			continue
		}
		applied = decoded
		uci = cand
		break
	}
	if applied == nil {
		return nil, duelerr.Domainf("move is not allowed")
	}

	flags, terminal := deriveFlags(game, applied)
	return &moveOutcome{
		UCI:      uci,
		SAN:      nchess.AlgebraicNotation{}.Encode(pos, applied),
		FEN:      game.FEN(),
		Flags:    flags,
		Terminal: terminal,
	}, nil
}

// concluded reports game over: any decided outcome, plus the repetition
// and fifty-move draws, which end the game here rather than staying
// claimable.
func concluded(game *nchess.Game) bool {
	if game.Outcome() != nchess.NoOutcome {
		return true
	}
	return eligibleDraw(game, nchess.ThreefoldRepetition) || eligibleDraw(game, nchess.FiftyMoveRule)
}

func eligibleDraw(game *nchess.Game, method nchess.Method) bool {
	for _, m := range game.EligibleDraws() {
		if m == method {
			return true
		}
	}
	return false
}

// deriveFlags recomputes all six status flags from the position after
// the move. InCheck stays false on checkmate: mate is reported through
// its own flag.
func deriveFlags(game *nchess.Game, applied *nchess.Move) (Flags, bool) {
	var f Flags
	outcome := game.Outcome()
	method := game.Method()

	f.InCheckmate = method == nchess.Checkmate
	f.InStalemate = method == nchess.Stalemate
	f.InsufficientMaterial = method == nchess.InsufficientMaterial
	f.InThreefoldRepetition = eligibleDraw(game, nchess.ThreefoldRepetition)
	fiftyMove := eligibleDraw(game, nchess.FiftyMoveRule)
	f.InDraw = f.InStalemate || f.InsufficientMaterial || f.InThreefoldRepetition || fiftyMove ||
		outcome == nchess.Draw
	f.InCheck = applied.HasTag(nchess.Check) && !f.InCheckmate

	terminal := outcome != nchess.NoOutcome || f.InThreefoldRepetition || fiftyMove
	return f, terminal
}
