package duel

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/park285/chess-duel/internal/authn"
	"github.com/park285/chess-duel/internal/obslog"
	"github.com/park285/chess-duel/internal/poscache"
	"github.com/park285/chess-duel/internal/validate"
	"github.com/park285/chess-duel/pkg/duelerr"
)

// saveAttempts bounds the re-read/re-validate loop after a lost save
// race. Conflicts on a single game are two humans typing at once, so
// one retry nearly always settles it.
const saveAttempts = 3

// Manager is the session controller: the only writer of game records.
// All public operations validate their inputs before any side effect
// and either complete a mutation atomically or not at all.
//
// Caller-supplied fields arrive untyped: they come straight from
// decoded request payloads, and the contract requires numeric or
// missing values to fail the same way malformed strings do.
type Manager struct {
	repo     Repository
	auth     *authn.Manager
	verifier authn.Verifier
	cache    *poscache.Cache
}

type Option func(*Manager)

// WithVerifier replaces the local token verifier, e.g. with the remote
// identity service client.
func WithVerifier(v authn.Verifier) Option {
	return func(m *Manager) { m.verifier = v }
}

// WithCache attaches the optional position cache.
func WithCache(c *poscache.Cache) Option {
	return func(m *Manager) { m.cache = c }
}

// NewManager builds the controller. auth may be nil when tokens are
// issued elsewhere; a verifier option is then required.
func NewManager(repo Repository, auth *authn.Manager, opts ...Option) *Manager {
	m := &Manager{repo: repo, auth: auth}
	if auth != nil {
		m.verifier = auth
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// Register creates a user. The credential is hashed before it reaches
// storage.
func (m *Manager) Register(ctx context.Context, email, nickname, password any) (bool, error) {
	emailStr, err := validate.StringField("email", email)
	if err != nil {
		return false, err
	}
	nick, err := validate.StringField("nickname", nickname)
	if err != nil {
		return false, err
	}
	pass, err := validate.StringField("password", password)
	if err != nil {
		return false, err
	}

	hash, err := authn.HashPassword(pass)
	if err != nil {
		return false, duelerr.Internal(err)
	}
	u := &User{Nickname: nick, Email: emailStr, PasswordHash: hash, CreatedAt: time.Now()}
	switch err := m.repo.CreateUser(ctx, u); {
	case errors.Is(err, ErrEmailTaken):
		return false, duelerr.Domainf("user with %s email already exists", emailStr)
	case errors.Is(err, ErrNicknameTaken):
		return false, duelerr.Domainf("user with %s nickname already exists", nick)
	case err != nil:
		return false, duelerr.Internal(err)
	}
	obslog.L().Info("user_registered", zap.String("nickname", nick))
	return true, nil
}

// Authenticate checks the credential and issues a token whose subject
// is the nickname.
func (m *Manager) Authenticate(ctx context.Context, nickname, password any) (string, error) {
	nick, err := validate.StringField("nickname", nickname)
	if err != nil {
		return "", err
	}
	pass, err := validate.StringField("password", password)
	if err != nil {
		return "", err
	}

	u, err := m.repo.UserByNickname(ctx, nick)
	if err != nil {
		return "", duelerr.Internal(err)
	}
	if u == nil {
		return "", duelerr.NotFoundf("user with %s nickname does not exist", nick)
	}
	if !authn.CheckPassword(u.PasswordHash, pass) {
		return "", duelerr.Authorizationf("wrong credentials")
	}
	if m.auth == nil {
		return "", duelerr.Internal(errors.New("local token issuance not configured"))
	}
	token, err := m.auth.Issue(nick)
	if err != nil {
		return "", duelerr.Internal(err)
	}
	return token, nil
}

// RequestGame creates an invitation from requester to opponent. The
// requester plays white and moves first once the game starts.
func (m *Manager) RequestGame(ctx context.Context, requester, opponent any, token string) (*StatusMessage, error) {
	req, err := validate.StringField("nickname", requester)
	if err != nil {
		return nil, err
	}
	opp, err := validate.StringField("opponent", opponent)
	if err != nil {
		return nil, err
	}
	if err := m.requireSubject(ctx, token, req); err != nil {
		return nil, err
	}
	if req == opp {
		return nil, duelerr.Domainf("cannot request a game against yourself")
	}

	target, err := m.repo.UserByNickname(ctx, opp)
	if err != nil {
		return nil, duelerr.Internal(err)
	}
	if target == nil {
		return nil, duelerr.NotFoundf("user with %s nickname does not exist", opp)
	}
	existing, err := m.repo.ActiveGameBetween(ctx, req, opp)
	if err != nil {
		return nil, duelerr.Internal(err)
	}
	if existing != nil {
		return nil, duelerr.Domainf("game between %s and %s already exists", req, opp)
	}

	now := time.Now()
	g := &Game{
		ID:           uuid.NewString(),
		Initiator:    req,
		Acceptor:     opp,
		MovesUCI:     []string{},
		MovesSAN:     []string{},
		State:        StateInvited,
		ToPlay:       req,
		Acknowledged: []string{},
		CreatedAt:    now,
		UpdatedAt:    now,
	}
	switch err := m.repo.CreateGame(ctx, g); {
	case errors.Is(err, ErrActiveGameExists):
		// Lost the race against a simultaneous request for the pair.
		return nil, duelerr.Domainf("game between %s and %s already exists", req, opp)
	case err != nil:
		return nil, duelerr.Internal(err)
	}
	obslog.L().Info("game_requested",
		zap.String("game_id", g.ID),
		zap.String("initiator", req),
		zap.String("acceptor", opp),
	)
	return &StatusMessage{Message: "game requested"}, nil
}

// RespondToGameRequest lets the acceptor answer an invitation: accept
// starts the game, decline terminates it.
func (m *Manager) RespondToGameRequest(ctx context.Context, confirmer, destination, gameID, answer any, token string) (*StatusMessage, error) {
	conf, err := validate.StringField("confirmer", confirmer)
	if err != nil {
		return nil, err
	}
	dest, err := validate.StringField("destination", destination)
	if err != nil {
		return nil, err
	}
	id, err := validate.StringField("gameID", gameID)
	if err != nil {
		return nil, err
	}
	accept, err := validate.BoolField(answer)
	if err != nil {
		return nil, err
	}
	if err := m.requireSubject(ctx, token, conf); err != nil {
		return nil, err
	}

	g, err := m.mutateGame(ctx, id, func(g *Game) (bool, error) {
		if g.Acceptor != conf {
			return false, duelerr.Domainf("game with id %s does not belong to %s", id, conf)
		}
		if g.Initiator != dest {
			return false, duelerr.Domainf("game with id %s does not belong to %s", id, dest)
		}
		if g.State != StateInvited {
			return false, duelerr.Domainf("game with id %s is not awaiting a response", id)
		}
		if accept {
			g.State = StatePlaying
		} else {
			g.State = StateTerminated
			g.ToPlay = ""
		}
		g.UpdatedAt = time.Now()
		return true, nil
	})
	if err != nil {
		return nil, err
	}

	msg := "game declined"
	if accept {
		msg = "game accepted"
	}
	obslog.L().Info("game_request_answered",
		zap.String("game_id", g.ID),
		zap.String("confirmer", conf),
		zap.Bool("accepted", accept),
	)
	return &StatusMessage{Message: msg}, nil
}

// MakeAGameMove applies one move for the mover. The move engine is
// consulted only after the structural and authorization checks pass;
// on a lost save race the whole read-validate-apply sequence reruns.
func (m *Manager) MakeAGameMove(ctx context.Context, mover, opponent, move, gameID any, token string) (bool, error) {
	nick, err := validate.StringField("nickname", mover)
	if err != nil {
		return false, err
	}
	if _, err := validate.StringField("opponent", opponent); err != nil {
		return false, err
	}
	id, err := validate.StringField("gameID", gameID)
	if err != nil {
		return false, err
	}
	mv, err := ParseMove(move)
	if err != nil {
		return false, err
	}
	if err := m.requireSubject(ctx, token, nick); err != nil {
		return false, err
	}

	var lastFEN string
	g, err := m.mutateGame(ctx, id, func(g *Game) (bool, error) {
		if !g.IsParticipant(nick) {
			return false, duelerr.Domainf("game with id %s does not belong to user %s", id, nick)
		}
		switch g.State {
		case StateInvited:
			return false, duelerr.Domainf("game has not started")
		case StateTerminated:
			return false, duelerr.Domainf("game is over, cannot move")
		}
		// A concluded game awaiting acknowledgment has ToPlay cleared;
		// the game-over rejection must win over the turn guard.
		if g.Flags.Terminal() || g.Winner != "" {
			return false, duelerr.Domainf("game is over, cannot move")
		}
		if g.ToPlay != nick {
			return false, duelerr.Domainf("move is not allowed")
		}

		out, err := applyMove(g.MovesUCI, mv)
		if err != nil {
			return false, err
		}
		g.MovesUCI = append(g.MovesUCI, out.UCI)
		g.MovesSAN = append(g.MovesSAN, out.SAN)
		g.Flags = out.Flags
		switch {
		case out.Flags.InCheckmate:
			g.Winner = nick
			g.ToPlay = ""
		case out.Terminal:
			g.Winner = NoWinner
			g.ToPlay = ""
		default:
			g.ToPlay = g.Opponent(nick)
		}
		g.UpdatedAt = time.Now()
		lastFEN = out.FEN
		return true, nil
	})
	if err != nil {
		return false, err
	}

	m.cache.Put(ctx, g.ID, len(g.MovesUCI), lastFEN)
	obslog.L().Info("game_move",
		zap.String("game_id", g.ID),
		zap.String("mover", nick),
		zap.String("uci", g.MovesUCI[len(g.MovesUCI)-1]),
		zap.Int("plies", len(g.MovesUCI)),
		zap.String("to_play", g.ToPlay),
		zap.String("winner", g.Winner),
	)
	return true, nil
}

// AcknowledgeGameOver records that a participant saw the game end.
// Idempotent per nickname; once both participants have acknowledged,
// the game transitions to terminated.
func (m *Manager) AcknowledgeGameOver(ctx context.Context, nickname, gameID any, token string) (*StatusMessage, error) {
	nick, err := validate.StringField("nickname", nickname)
	if err != nil {
		return nil, err
	}
	id, err := validate.StringField("gameID", gameID)
	if err != nil {
		return nil, err
	}
	if err := m.requireSubject(ctx, token, nick); err != nil {
		return nil, err
	}

	g, err := m.mutateGame(ctx, id, func(g *Game) (bool, error) {
		if !g.IsParticipant(nick) {
			return false, duelerr.Domainf("game with id %s does not belong to user %s", id, nick)
		}
		if g.State == StateInvited {
			return false, duelerr.Domainf("game has not started")
		}
		changed := false
		if !g.HasAcknowledged(nick) {
			g.Acknowledged = append(g.Acknowledged, nick)
			changed = true
		}
		if g.State != StateTerminated &&
			g.HasAcknowledged(g.Initiator) && g.HasAcknowledged(g.Acceptor) {
			g.State = StateTerminated
			g.ToPlay = ""
			changed = true
		}
		if changed {
			g.UpdatedAt = time.Now()
		}
		return changed, nil
	})
	if err != nil {
		return nil, err
	}

	msg := "waiting on opponent"
	if g.State == StateTerminated {
		msg = "game terminated"
	}
	obslog.L().Info("game_over_acknowledged",
		zap.String("game_id", g.ID),
		zap.String("nickname", nick),
		zap.String("state", string(g.State)),
	)
	return &StatusMessage{Message: msg}, nil
}

// GamesForUser returns every game the user participates in, ordered by
// creation.
func (m *Manager) GamesForUser(ctx context.Context, nickname any, token string) ([]*Game, error) {
	nick, err := validate.StringField("nickname", nickname)
	if err != nil {
		return nil, err
	}
	if err := m.requireSubject(ctx, token, nick); err != nil {
		return nil, err
	}
	games, err := m.repo.GamesForUser(ctx, nick)
	if err != nil {
		return nil, duelerr.Internal(err)
	}
	return games, nil
}

// UsersForString returns nicknames containing str, case sensitive,
// excluding the caller. The empty string yields an empty result, not
// every user.
func (m *Manager) UsersForString(ctx context.Context, nickname, str any, token string) ([]string, error) {
	nick, err := validate.StringField("nickname", nickname)
	if err != nil {
		return nil, err
	}
	term, err := validate.StringType("str", str)
	if err != nil {
		return nil, err
	}
	if err := m.requireSubject(ctx, token, nick); err != nil {
		return nil, err
	}
	if term == "" {
		return []string{}, nil
	}

	matches, err := m.repo.SearchNicknames(ctx, term)
	if err != nil {
		return nil, duelerr.Internal(err)
	}
	result := make([]string, 0, len(matches))
	for _, n := range matches {
		if n != nick {
			result = append(result, n)
		}
	}
	return result, nil
}

// BoardState returns the current position of a game the caller plays
// in. The FEN comes from the read-through cache when warm; the history
// stays authoritative either way.
func (m *Manager) BoardState(ctx context.Context, nickname, gameID any, token string) (*BoardSnapshot, error) {
	nick, err := validate.StringField("nickname", nickname)
	if err != nil {
		return nil, err
	}
	id, err := validate.StringField("gameID", gameID)
	if err != nil {
		return nil, err
	}
	if err := m.requireSubject(ctx, token, nick); err != nil {
		return nil, err
	}

	g, err := m.repo.GameByID(ctx, id)
	if err != nil {
		return nil, duelerr.Internal(err)
	}
	if g == nil {
		return nil, duelerr.NotFoundf("game with id %s does not exist", id)
	}
	if !g.IsParticipant(nick) {
		return nil, duelerr.Domainf("game with id %s does not belong to user %s", id, nick)
	}

	plies := len(g.MovesUCI)
	fen, ok := m.cache.Get(ctx, g.ID, plies)
	if !ok {
		fen, err = historyFEN(g.MovesUCI)
		if err != nil {
			return nil, duelerr.Internal(err)
		}
		m.cache.Put(ctx, g.ID, plies, fen)
	}
	return &BoardSnapshot{
		GameID: g.ID,
		FEN:    fen,
		Plies:  plies,
		State:  g.State,
		ToPlay: g.ToPlay,
		Winner: g.Winner,
		Flags:  g.Flags,
	}, nil
}

// requireSubject verifies the token and requires its subject to equal
// the claimed actor. A structurally valid token for someone else fails
// the same way a garbage token does.
func (m *Manager) requireSubject(ctx context.Context, token, nickname string) error {
	subject, err := m.verifier.Verify(ctx, token)
	if err != nil {
		return err
	}
	if subject != nickname {
		return duelerr.Authorizationf("invalid token")
	}
	return nil
}

// mutateGame is the optimistic concurrency loop: re-read, re-validate
// through fn, save conditionally on the version stamp, and start over
// when a concurrent writer won. fn returns false to skip the save.
func (m *Manager) mutateGame(ctx context.Context, id string, fn func(g *Game) (bool, error)) (*Game, error) {
	for attempt := 1; attempt <= saveAttempts; attempt++ {
		g, err := m.repo.GameByID(ctx, id)
		if err != nil {
			return nil, duelerr.Internal(err)
		}
		if g == nil {
			return nil, duelerr.NotFoundf("game with id %s does not exist", id)
		}
		save, err := fn(g)
		if err != nil {
			return nil, err
		}
		if !save {
			return g, nil
		}
		switch err := m.repo.SaveGame(ctx, g); {
		case err == nil:
			return g, nil
		case errors.Is(err, ErrStaleGame):
			obslog.L().Warn("game_save_conflict",
				zap.String("game_id", id),
				zap.Int("attempt", attempt),
			)
		default:
			return nil, duelerr.Internal(err)
		}
	}
	return nil, duelerr.Internal(fmt.Errorf("game %s: gave up after %d conflicting saves", id, saveAttempts))
}
