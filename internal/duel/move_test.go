package duel

import (
	"testing"
)

func TestParseMoveFromMap(t *testing.T) {
	mv, err := ParseMove(map[string]any{"from": "e2", "to": "e4"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if mv.From != "e2" || mv.To != "e4" || mv.Promotion != "" {
		t.Fatalf("got %+v", mv)
	}
}

func TestParseMoveWithPromotion(t *testing.T) {
	mv, err := ParseMove(map[string]any{"from": "e7", "to": "e8", "promotion": "q"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if mv.UCI() != "e7e8q" {
		t.Fatalf("uci = %q", mv.UCI())
	}
}

func TestParseMoveRejectsWrongShapes(t *testing.T) {
	cases := []struct {
		name  string
		value any
	}{
		{"nil", nil},
		{"string", "e2e4"},
		{"number", 12},
		{"missing to", map[string]any{"from": "e2"}},
		{"missing from", map[string]any{"to": "e4"}},
		{"empty from", map[string]any{"from": "", "to": "e4"}},
		{"extra key", map[string]any{"from": "e2", "to": "e4", "cheat": "yes"}},
		{"numeric square", map[string]any{"from": 2, "to": "e4"}},
		{"nil promotion", map[string]any{"from": "e2", "to": "e4", "promotion": nil}},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := ParseMove(tc.value)
			if err == nil {
				t.Fatal("expected error")
			}
			if err.Error() != "move is of wrong format" {
				t.Fatalf("message = %q", err.Error())
			}
		})
	}
}

func TestMoveUCILowercases(t *testing.T) {
	mv := Move{From: "E2", To: "E4"}
	if mv.UCI() != "e2e4" {
		t.Fatalf("uci = %q", mv.UCI())
	}
}
