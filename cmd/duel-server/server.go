package main

import (
	"encoding/json"
	"strings"

	"github.com/valyala/fasthttp"
	"go.uber.org/zap"

	"github.com/park285/chess-duel/internal/duel"
	"github.com/park285/chess-duel/internal/obslog"
	"github.com/park285/chess-duel/pkg/duelerr"
)

// server is a thin JSON shim over the session controller. Request
// bodies are decoded into untyped maps and the fields handed to the
// controller as-is; all validation, including of field types, happens
// there.
type server struct {
	mgr  *duel.Manager
	http *fasthttp.Server
}

func newServer(mgr *duel.Manager) *server {
	s := &server{mgr: mgr}
	s.http = &fasthttp.Server{
		Handler:            s.route,
		Name:               "chess-duel",
		MaxRequestBodySize: 1 << 20,
	}
	return s
}

func (s *server) ListenAndServe(addr string) error { return s.http.ListenAndServe(addr) }
func (s *server) Shutdown() error                  { return s.http.Shutdown() }

func (s *server) route(ctx *fasthttp.RequestCtx) {
	switch string(ctx.Path()) {
	case "/healthz":
		ctx.SetStatusCode(fasthttp.StatusOK)
		ctx.SetBodyString("ok")
	case "/api/register":
		s.post(ctx, s.register)
	case "/api/login":
		s.post(ctx, s.login)
	case "/api/games/request":
		s.post(ctx, s.requestGame)
	case "/api/games/respond":
		s.post(ctx, s.respond)
	case "/api/games/move":
		s.post(ctx, s.move)
	case "/api/games/ack":
		s.post(ctx, s.ack)
	case "/api/games/board":
		s.post(ctx, s.board)
	case "/api/games":
		s.post(ctx, s.games)
	case "/api/users/search":
		s.post(ctx, s.search)
	default:
		ctx.SetStatusCode(fasthttp.StatusNotFound)
	}
}

type handlerFunc func(ctx *fasthttp.RequestCtx, body map[string]any) (any, error)

func (s *server) post(ctx *fasthttp.RequestCtx, fn handlerFunc) {
	if !ctx.IsPost() {
		ctx.SetStatusCode(fasthttp.StatusMethodNotAllowed)
		return
	}
	body := map[string]any{}
	if raw := ctx.PostBody(); len(raw) > 0 {
		if err := json.Unmarshal(raw, &body); err != nil {
			writeError(ctx, duelerr.Validationf("invalid request body"))
			return
		}
	}
	out, err := fn(ctx, body)
	if err != nil {
		writeError(ctx, err)
		return
	}
	writeJSON(ctx, fasthttp.StatusOK, out)
}

func (s *server) register(ctx *fasthttp.RequestCtx, body map[string]any) (any, error) {
	ok, err := s.mgr.Register(ctx, body["email"], body["nickname"], body["password"])
	if err != nil {
		return nil, err
	}
	return map[string]bool{"registered": ok}, nil
}

func (s *server) login(ctx *fasthttp.RequestCtx, body map[string]any) (any, error) {
	token, err := s.mgr.Authenticate(ctx, body["nickname"], body["password"])
	if err != nil {
		return nil, err
	}
	return map[string]string{"token": token}, nil
}

func (s *server) requestGame(ctx *fasthttp.RequestCtx, body map[string]any) (any, error) {
	return s.mgr.RequestGame(ctx, body["nickname"], body["opponent"], bearerToken(ctx))
}

func (s *server) respond(ctx *fasthttp.RequestCtx, body map[string]any) (any, error) {
	return s.mgr.RespondToGameRequest(ctx,
		body["confirmer"], body["destination"], body["gameID"], body["answer"], bearerToken(ctx))
}

func (s *server) move(ctx *fasthttp.RequestCtx, body map[string]any) (any, error) {
	ok, err := s.mgr.MakeAGameMove(ctx,
		body["nickname"], body["opponent"], body["move"], body["gameID"], bearerToken(ctx))
	if err != nil {
		return nil, err
	}
	return map[string]bool{"moved": ok}, nil
}

func (s *server) ack(ctx *fasthttp.RequestCtx, body map[string]any) (any, error) {
	return s.mgr.AcknowledgeGameOver(ctx, body["nickname"], body["gameID"], bearerToken(ctx))
}

func (s *server) board(ctx *fasthttp.RequestCtx, body map[string]any) (any, error) {
	return s.mgr.BoardState(ctx, body["nickname"], body["gameID"], bearerToken(ctx))
}

func (s *server) games(ctx *fasthttp.RequestCtx, body map[string]any) (any, error) {
	games, err := s.mgr.GamesForUser(ctx, body["nickname"], bearerToken(ctx))
	if err != nil {
		return nil, err
	}
	return map[string]any{"games": games}, nil
}

func (s *server) search(ctx *fasthttp.RequestCtx, body map[string]any) (any, error) {
	users, err := s.mgr.UsersForString(ctx, body["nickname"], body["str"], bearerToken(ctx))
	if err != nil {
		return nil, err
	}
	return map[string]any{"users": users}, nil
}

func bearerToken(ctx *fasthttp.RequestCtx) string {
	h := string(ctx.Request.Header.Peek(fasthttp.HeaderAuthorization))
	if rest, ok := strings.CutPrefix(h, "Bearer "); ok {
		return strings.TrimSpace(rest)
	}
	return strings.TrimSpace(h)
}

func statusFor(err error) int {
	switch duelerr.KindOf(err) {
	case duelerr.KindValidation:
		return fasthttp.StatusBadRequest
	case duelerr.KindAuthorization:
		return fasthttp.StatusUnauthorized
	case duelerr.KindNotFound:
		return fasthttp.StatusNotFound
	case duelerr.KindDomain:
		return fasthttp.StatusConflict
	default:
		return fasthttp.StatusInternalServerError
	}
}

func writeError(ctx *fasthttp.RequestCtx, err error) {
	status := statusFor(err)
	msg := err.Error()
	if status == fasthttp.StatusInternalServerError {
		// Internal details stay in the logs, never in responses.
		obslog.L().Error("request_failed",
			zap.ByteString("path", ctx.Path()),
			zap.Error(err),
		)
		msg = "internal error"
	}
	writeJSON(ctx, status, map[string]string{"error": msg})
}

func writeJSON(ctx *fasthttp.RequestCtx, status int, payload any) {
	ctx.SetStatusCode(status)
	ctx.SetContentType("application/json; charset=utf-8")
	if err := json.NewEncoder(ctx).Encode(payload); err != nil {
		ctx.SetStatusCode(fasthttp.StatusInternalServerError)
	}
}
