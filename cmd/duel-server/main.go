package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"

	"github.com/park285/chess-duel/internal/authn"
	appcfg "github.com/park285/chess-duel/internal/config"
	"github.com/park285/chess-duel/internal/duel"
	"github.com/park285/chess-duel/internal/obslog"
	"github.com/park285/chess-duel/internal/poscache"
)

func main() {
	cfg, err := appcfg.Load()
	if err != nil {
		log.Fatalf("config error: %v", err)
	}
	if err := obslog.Init(obslog.Options{
		Level:   cfg.LogLevel,
		Format:  cfg.LogFormat,
		File:    cfg.LogFile,
		Console: cfg.LogConsole,
	}); err != nil {
		log.Fatalf("log init error: %v", err)
	}
	defer func() { _ = obslog.L().Sync() }()

	var repo duel.Repository
	var pg *duel.PostgresRepository
	if cfg.DatabaseURL != "" {
		pg, err = duel.NewPostgresRepository(cfg.DatabaseURL)
		if err != nil {
			log.Fatalf("database error: %v", err)
		}
		ctx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
		if err := pg.EnsureSchema(ctx); err != nil {
			cancel()
			log.Fatalf("schema error: %v", err)
		}
		cancel()
		repo = pg
	} else {
		obslog.L().Warn("no DATABASE_URL configured, using in-memory repository")
		repo = duel.NewMemoryRepository()
	}

	var cache *poscache.Cache
	if cfg.RedisURL != "" {
		cache, err = poscache.New(cfg.RedisURL)
		if err != nil {
			log.Fatalf("redis error: %v", err)
		}
	}

	var auth *authn.Manager
	if cfg.JWTSecret != "" {
		auth, err = authn.NewManager(cfg.JWTSecret, time.Duration(cfg.TokenTTLSec)*time.Second)
		if err != nil {
			log.Fatalf("auth init error: %v", err)
		}
	}
	opts := []duel.Option{duel.WithCache(cache)}
	if cfg.AuthVerifyURL != "" {
		opts = append(opts, duel.WithVerifier(authn.NewRemoteVerifier(cfg.AuthVerifyURL)))
	}
	mgr := duel.NewManager(repo, auth, opts...)

	srv := newServer(mgr)
	go func() {
		obslog.L().Info("listening", zap.String("addr", cfg.ListenAddr))
		if err := srv.ListenAndServe(cfg.ListenAddr); err != nil {
			log.Fatalf("server error: %v", err)
		}
	}()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	<-sigCh

	_ = srv.Shutdown()
	_ = cache.Close()
	if pg != nil {
		_ = pg.Close()
	}
}
