package main

import (
	"context"
	"errors"
	"log"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"wordgame"

	"github.com/gorilla/securecookie"
	"go.uber.org/zap"
)

func main() {
	cfg, err := wordgame.LoadConfig()
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}

	logger, err := wordgame.NewLogger(cfg.Env, cfg.Log.Level)
	if err != nil {
		log.Fatalf("Failed to create logger: %v", err)
	}
	defer logger.Sync()

	if cfg.Completion.APIKey == "" {
		logger.Warn("DEEPSEEK_API_KEY is not set, every word generation will fail")
	}

	generator := wordgame.NewWordSetGenerator(cfg.Completion.Generator(), logger.Named("generator"))

	var preparerOpts []wordgame.PreparerOption
	if cfg.Log.TranscriptDir != "" {
		preparerOpts = append(preparerOpts, wordgame.WithTranscripts(cfg.Log.TranscriptDir))
	}

	var archive wordSetArchive
	if cfg.Database.Path != "" {
		db, err := wordgame.OpenDB(cfg.Database.Path)
		if err != nil {
			logger.Fatal("failed to open database", zap.Error(err))
		}
		defer db.Close()

		if err := db.CreateTables(); err != nil {
			logger.Fatal("failed to create tables", zap.Error(err))
		}
		archive = db
		preparerOpts = append(preparerOpts, wordgame.WithArchive(db))
	}

	preparer := wordgame.NewPreparer(generator, logger.Named("preparer"), preparerOpts...)

	secret := []byte(cfg.Session.Secret)
	if len(secret) == 0 {
		logger.Warn("SESSION_SECRET is not set, using a random key; players lose their games on restart")
		secret = securecookie.GenerateRandomKey(32)
	}
	store := newCookieStore(secret, cfg.Session.IdleTTL)

	players := NewPlayerRegistry(cfg.Session.IdleTTL)

	server := &Server{
		completer:  generator,
		preparer:   preparer,
		archive:    archive,
		players:    players,
		store:      store,
		logger:     logger,
		genTimeout: cfg.Completion.Timeout,
		clock:      wordgame.RealClock{},
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	go players.Run(ctx, time.Minute, logger.Named("players"))

	srv := &http.Server{
		Addr:              ":" + cfg.Port,
		Handler:           server.Routes(),
		ReadHeaderTimeout: 5 * time.Second,
		IdleTimeout:       120 * time.Second,
	}

	go func() {
		logger.Info("starting server", zap.String("addr", srv.Addr), zap.String("env", cfg.Env))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Fatal("server failed", zap.Error(err))
		}
	}()

	<-ctx.Done()
	stop()
	logger.Info("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("forced shutdown", zap.Error(err))
	}
}
