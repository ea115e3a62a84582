package main

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/jihokoo/spotmission/internal/db"
	"github.com/jihokoo/spotmission/internal/handlers"
	"github.com/jihokoo/spotmission/internal/handlers/middleware"
	"github.com/jihokoo/spotmission/internal/logger"
	"github.com/jihokoo/spotmission/internal/repository/postgres"
	"github.com/jihokoo/spotmission/internal/service/auth"
	"github.com/jihokoo/spotmission/internal/token"
)

type ServerApp struct {
	ListenAddr string
	Handler    http.Handler
	Logger     logger.Logger

	reaper *auth.Reaper
}

func NewServerApp(ctx context.Context, c *Config) (*ServerApp, error) {
	if err := c.Validate(); err != nil {
		return nil, fmt.Errorf("config is not valid. Err: %w", err)
	}

	l, err := logger.New(c.Environment, c.LogLevel)
	if err != nil {
		return nil, fmt.Errorf("error while initializing logger: %w", err)
	}

	// Connect to the database and run migrations
	pool, err := db.ConnectAndMigrate(ctx, c.DatabaseDSN)
	if err != nil {
		return nil, fmt.Errorf("error while connecting to db. Err: %w", err)
	}

	storage := postgres.NewStorage(pool)

	codec, err := token.NewCodec(token.Config{SecretKey: c.SecretKey})
	if err != nil {
		return nil, fmt.Errorf("error while creating token codec. Err: %w", err)
	}

	authService, err := auth.NewService(
		auth.Config{
			AccessTokenTTL:  c.AccessTokenTTL,
			RefreshTokenTTL: c.RefreshTokenTTL,
		},
		codec, storage, l,
	)
	if err != nil {
		return nil, fmt.Errorf("error while creating auth service. Err: %w", err)
	}

	reaper := auth.NewReaper(c.ReaperInterval, storage.RefreshToken(), l)

	authHandler := handlers.NewAuth(authService, l)
	mux := handlers.NewRouter(
		authHandler,
		middleware.Gateway(codec, storage.Principal(), l),
		middleware.RequirePrincipal,
		middleware.LoggerMiddleware(l),
	)

	return &ServerApp{
		ListenAddr: c.ListenAddr,
		Handler:    mux,
		Logger:     l,
		reaper:     reaper,
	}, nil
}

// Run starts the reaper and the http server, closes both gracefully on
// context cancellation
func (s *ServerApp) Run(ctx context.Context) error {
	srvCtx, srvCtxCancel := context.WithCancel(ctx)
	defer srvCtxCancel()

	reaperStopped := s.reaper.Run(srvCtx)

	httpServer := &http.Server{
		Addr:    s.ListenAddr,
		Handler: s.Handler,
	}

	idleConnsClosed := make(chan struct{})
	go func() {
		<-srvCtx.Done()

		timeoutCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()

		if err := httpServer.Shutdown(timeoutCtx); err == context.DeadlineExceeded {
			s.Logger.Error("HTTP server shutdown timeout exceeded, forcing shutdown...")
		}
		s.Logger.Info("HTTP server stopped")
		close(idleConnsClosed)
	}()

	// Listen and serve until context is cancelled; then close gracefully
	s.Logger.Info("Starting server", "addr", s.ListenAddr)
	err := httpServer.ListenAndServe()
	srvCtxCancel()
	<-idleConnsClosed
	<-reaperStopped

	return err
}
