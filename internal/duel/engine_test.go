package duel

import (
	"strings"
	"testing"
)

func mustApply(t *testing.T, history []string, mv Move) *moveOutcome {
	t.Helper()
	out, err := applyMove(history, mv)
	if err != nil {
		t.Fatalf("applyMove(%v, %v): %v", history, mv, err)
	}
	return out
}

func TestApplyMoveFirstMove(t *testing.T) {
	out := mustApply(t, nil, Move{From: "e2", To: "e4"})
	if out.UCI != "e2e4" {
		t.Fatalf("uci = %q", out.UCI)
	}
	if out.SAN != "e4" {
		t.Fatalf("san = %q", out.SAN)
	}
	if out.Terminal || out.Flags != (Flags{}) {
		t.Fatalf("unexpected flags %+v terminal=%v", out.Flags, out.Terminal)
	}
	if !strings.Contains(out.FEN, " b ") {
		t.Fatalf("fen side to move: %q", out.FEN)
	}
}

func TestApplyMoveIllegal(t *testing.T) {
	_, err := applyMove(nil, Move{From: "e2", To: "e6"})
	if err == nil || err.Error() != "move is not allowed" {
		t.Fatalf("got %v", err)
	}
	// Moving the opponent's piece is just as illegal.
	_, err = applyMove(nil, Move{From: "e7", To: "e5"})
	if err == nil || err.Error() != "move is not allowed" {
		t.Fatalf("got %v", err)
	}
}

func TestApplyMoveToleratesSpuriousPromotion(t *testing.T) {
	out := mustApply(t, nil, Move{From: "e2", To: "e4", Promotion: "q"})
	if out.UCI != "e2e4" {
		t.Fatalf("uci = %q", out.UCI)
	}
}

func TestApplyMoveCheck(t *testing.T) {
	out := mustApply(t, []string{"e2e4", "d7d5"}, Move{From: "f1", To: "b5"})
	if !out.Flags.InCheck {
		t.Fatal("expected inCheck")
	}
	if out.Flags.InCheckmate || out.Terminal {
		t.Fatalf("unexpected terminal state: %+v", out.Flags)
	}
	if out.SAN != "Bb5+" {
		t.Fatalf("san = %q", out.SAN)
	}
}

func TestApplyMoveCheckmate(t *testing.T) {
	out := mustApply(t, []string{"f2f3", "e7e5", "g2g4"}, Move{From: "d8", To: "h4"})
	if !out.Flags.InCheckmate {
		t.Fatal("expected inCheckmate")
	}
	if out.Flags.InCheck {
		t.Fatal("inCheck must stay false on mate")
	}
	if out.Flags.InDraw || out.Flags.InStalemate {
		t.Fatalf("unexpected draw flags: %+v", out.Flags)
	}
	if !out.Terminal {
		t.Fatal("expected terminal")
	}
	if out.SAN != "Qh4#" {
		t.Fatalf("san = %q", out.SAN)
	}
}

func TestApplyMoveRejectsAfterGameOver(t *testing.T) {
	history := []string{"f2f3", "e7e5", "g2g4", "d8h4"}
	_, err := applyMove(history, Move{From: "a2", To: "a3"})
	if err == nil || err.Error() != "game is over, cannot move" {
		t.Fatalf("got %v", err)
	}
}

func TestApplyMoveStalemate(t *testing.T) {
	// Loyd's ten-move stalemate.
	history := []string{
		"e2e3", "a7a5",
		"d1h5", "a8a6",
		"h5a5", "h7h5",
		"a5c7", "a6h6",
		"h2h4", "f7f6",
		"c7d7", "e8f7",
		"d7b7", "d8d3",
		"b7b8", "d3h7",
		"b8c8", "f7g6",
	}
	out := mustApply(t, history, Move{From: "c8", To: "e6"})
	if !out.Flags.InStalemate {
		t.Fatal("expected inStalemate")
	}
	if !out.Flags.InDraw {
		t.Fatal("stalemate is a draw")
	}
	if out.Flags.InCheckmate || out.Flags.InCheck {
		t.Fatalf("unexpected check flags: %+v", out.Flags)
	}
	if !out.Terminal {
		t.Fatal("expected terminal")
	}
}

func TestApplyMoveThreefoldRepetition(t *testing.T) {
	// Knights shuttle out and back twice; the final retreat puts the
	// start position on the board for the third time.
	history := []string{
		"g1f3", "g8f6",
		"f3g1", "f6g8",
		"g1f3", "g8f6",
		"f3g1",
	}
	out := mustApply(t, history, Move{From: "f6", To: "g8"})
	if !out.Flags.InThreefoldRepetition {
		t.Fatal("expected inThreefoldRepetition")
	}
	if !out.Flags.InDraw {
		t.Fatal("repetition is a draw")
	}
	if !out.Terminal {
		t.Fatal("expected terminal")
	}
}

func TestApplyMovePromotion(t *testing.T) {
	// Shortest route to an underpromotion-capable position: white pawn
	// runs to g7 via a capture and promotes on h8.
	history := []string{
		"g2g4", "h7h5",
		"g4h5", "a7a6",
		"h5h6", "a6a5",
		"h6g7", "a5a4",
	}
	out := mustApply(t, history, Move{From: "g7", To: "h8", Promotion: "q"})
	if out.UCI != "g7h8q" {
		t.Fatalf("uci = %q", out.UCI)
	}
	if out.SAN != "gxh8=Q" {
		t.Fatalf("san = %q", out.SAN)
	}
}

func TestHistoryFENStartPosition(t *testing.T) {
	fen, err := historyFEN(nil)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if fen != "rnbqkbnr/pppppppp/8/8/8/8/PPPPPPPP/RNBQKBNR w KQkq - 0 1" {
		t.Fatalf("fen = %q", fen)
	}
}

func TestReplayGameCorruptHistory(t *testing.T) {
	if _, err := replayGame([]string{"e2e4", "zz99"}); err == nil {
		t.Fatal("expected error on corrupt history")
	}
}
