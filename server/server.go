// Package server assembles the HTTP server around the store and the
// coaching services.
package server

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"github.com/pkg/errors"

	"github.com/exort/exort/internal/profile"
	"github.com/exort/exort/plugin/ai"
	apiv1 "github.com/exort/exort/server/router/api/v1"
	"github.com/exort/exort/store"
)

type Server struct {
	Profile *profile.Profile
	Store   *store.Store

	echoServer *echo.Echo
}

func NewServer(ctx context.Context, profile *profile.Profile, store *store.Store) (*Server, error) {
	s := &Server{
		Profile: profile,
		Store:   store,
	}

	echoServer := echo.New()
	echoServer.Debug = true
	echoServer.HideBanner = true
	echoServer.HidePort = true
	echoServer.Use(middleware.Recover())
	echoServer.Use(middleware.CORS())
	echoServer.Use(middleware.Gzip())
	s.echoServer = echoServer

	echoServer.GET("/healthz", func(c echo.Context) error {
		return c.String(http.StatusOK, "Service ready.")
	})

	var gateway ai.Gateway
	if profile.IsAIEnabled() {
		var err error
		gateway, err = ai.NewGateway(&ai.Config{
			BaseURL:    profile.AIBaseURL,
			APIKey:     profile.AIAPIKey,
			ChatModel:  profile.AIChatModel,
			TitleModel: profile.AITitleModel,
			MaxRetries: profile.AIMaxRetries,
		})
		if err != nil {
			return nil, errors.Wrap(err, "failed to create AI gateway")
		}
		slog.Info("AI coaching enabled",
			slog.String("chat_model", profile.AIChatModel),
			slog.String("title_model", profile.AITitleModel))
	} else {
		slog.Warn("AI coaching disabled; coach endpoints will return 503")
	}

	apiV1Service := apiv1.NewAPIV1Service(profile.JWTSecret, profile, store, gateway)
	apiV1Service.Register(echoServer)

	return s, nil
}

func (s *Server) Start(ctx context.Context) error {
	address := fmt.Sprintf("%s:%d", s.Profile.Addr, s.Profile.Port)
	slog.Info("server started", slog.String("address", address))
	return s.echoServer.Start(address)
}

func (s *Server) Shutdown(ctx context.Context) {
	ctx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()

	if err := s.echoServer.Shutdown(ctx); err != nil {
		slog.Error("failed to shutdown server", slog.Any("error", err))
	}

	if err := s.Store.Close(); err != nil {
		slog.Error("failed to close store", slog.Any("error", err))
	}

	slog.Info("server shutdown")
}
