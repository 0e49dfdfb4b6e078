package duel

import (
	"strings"

	"github.com/park285/chess-duel/pkg/duelerr"
)

// Move is the tagged move structure: exactly from and to, plus an
// optional promotion piece. Anything else is rejected before legality
// is ever consulted.
type Move struct {
	From      string `json:"from"`
	To        string `json:"to"`
	Promotion string `json:"promotion,omitempty"`
}

// UCI renders the move in UCI notation (e2e4, e7e8q).
func (m Move) UCI() string {
	return strings.ToLower(m.From + m.To + m.Promotion)
}

func errWrongFormat() error { return duelerr.Domainf("move is of wrong format") }

// ParseMove validates the structural shape of an untyped move payload.
// Accepted: a Move value, or a map with exactly the keys from/to and
// optionally promotion, all string-valued and from/to non-empty.
// Wrong keys, non-objects, numbers and nil all fail identically.
func ParseMove(v any) (Move, error) {
	switch t := v.(type) {
	case Move:
		return checkMove(t)
	case *Move:
		if t == nil {
			return Move{}, errWrongFormat()
		}
		return checkMove(*t)
	case map[string]any:
		var mv Move
		for key, val := range t {
			s, ok := val.(string)
			if !ok {
				return Move{}, errWrongFormat()
			}
			switch key {
			case "from":
				mv.From = s
			case "to":
				mv.To = s
			case "promotion":
				mv.Promotion = s
			default:
				return Move{}, errWrongFormat()
			}
		}
		return checkMove(mv)
	default:
		return Move{}, errWrongFormat()
	}
}

func checkMove(mv Move) (Move, error) {
	if mv.From == "" || mv.To == "" {
		return Move{}, errWrongFormat()
	}
	return mv, nil
}
