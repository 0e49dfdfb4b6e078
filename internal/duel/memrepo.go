package duel

import (
	"context"
	"sort"
	"strings"
	"sync"
)

// memrepo is an in-memory Repository used in tests and when no database
// is configured. Same contract as the postgres implementation,
// including the version-stamp save semantics.
type memrepo struct {
	mu sync.RWMutex

	usersByNickname map[string]*User
	emails          map[string]string // email -> nickname

	gamesByID map[string]*Game
	gameOrder []string // creation order
}

func NewMemoryRepository() Repository {
	return &memrepo{
		usersByNickname: make(map[string]*User),
		emails:          make(map[string]string),
		gamesByID:       make(map[string]*Game),
	}
}

func (m *memrepo) CreateUser(ctx context.Context, u *User) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, exists := m.emails[u.Email]; exists {
		return ErrEmailTaken
	}
	if _, exists := m.usersByNickname[u.Nickname]; exists {
		return ErrNicknameTaken
	}
	clone := *u
	m.usersByNickname[u.Nickname] = &clone
	m.emails[u.Email] = u.Nickname
	return nil
}

func (m *memrepo) UserByNickname(ctx context.Context, nickname string) (*User, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	u, ok := m.usersByNickname[nickname]
	if !ok {
		return nil, nil
	}
	clone := *u
	return &clone, nil
}

func (m *memrepo) SearchNicknames(ctx context.Context, substr string) ([]string, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	matches := make([]string, 0)
	for nickname := range m.usersByNickname {
		if strings.Contains(nickname, substr) {
			matches = append(matches, nickname)
		}
	}
	sort.Strings(matches)
	return matches, nil
}

func (m *memrepo) CreateGame(ctx context.Context, g *Game) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	for _, id := range m.gameOrder {
		existing := m.gamesByID[id]
		if existing.State == StateTerminated {
			continue
		}
		if samePair(existing, g.Initiator, g.Acceptor) {
			return ErrActiveGameExists
		}
	}
	m.gamesByID[g.ID] = cloneGame(g)
	m.gameOrder = append(m.gameOrder, g.ID)
	return nil
}

func (m *memrepo) GameByID(ctx context.Context, id string) (*Game, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	g, ok := m.gamesByID[id]
	if !ok {
		return nil, nil
	}
	return cloneGame(g), nil
}

func (m *memrepo) ActiveGameBetween(ctx context.Context, a, b string) (*Game, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	for _, id := range m.gameOrder {
		g := m.gamesByID[id]
		if g.State != StateTerminated && samePair(g, a, b) {
			return cloneGame(g), nil
		}
	}
	return nil, nil
}

func (m *memrepo) GamesForUser(ctx context.Context, nickname string) ([]*Game, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	games := make([]*Game, 0)
	for _, id := range m.gameOrder {
		g := m.gamesByID[id]
		if g.IsParticipant(nickname) {
			games = append(games, cloneGame(g))
		}
	}
	return games, nil
}

func (m *memrepo) SaveGame(ctx context.Context, g *Game) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	stored, ok := m.gamesByID[g.ID]
	if !ok || stored.Version != g.Version {
		return ErrStaleGame
	}
	g.Version++
	m.gamesByID[g.ID] = cloneGame(g)
	return nil
}

func samePair(g *Game, a, b string) bool {
	return (g.Initiator == a && g.Acceptor == b) || (g.Initiator == b && g.Acceptor == a)
}

func cloneGame(g *Game) *Game {
	clone := *g
	clone.MovesUCI = append([]string(nil), g.MovesUCI...)
	clone.MovesSAN = append([]string(nil), g.MovesSAN...)
	clone.Acknowledged = append([]string(nil), g.Acknowledged...)
	return &clone
}
