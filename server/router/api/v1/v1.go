// Package v1 exposes the coaching API over HTTP.
package v1

import (
	"github.com/labstack/echo/v4"

	"github.com/exort/exort/internal/profile"
	"github.com/exort/exort/plugin/ai"
	"github.com/exort/exort/server/service/coach"
	"github.com/exort/exort/store"
)

type APIV1Service struct {
	Secret  string
	Profile *profile.Profile
	Store   *store.Store

	CoachService coach.Service
}

func NewAPIV1Service(secret string, profile *profile.Profile, store *store.Store, gateway ai.Gateway) *APIV1Service {
	service := &APIV1Service{
		Secret:  secret,
		Profile: profile,
		Store:   store,
	}
	if gateway != nil {
		service.CoachService = coach.NewService(store, gateway, profile.AITitleModel)
	}
	return service
}

// Register mounts the v1 routes on the given Echo instance.
func (s *APIV1Service) Register(echoServer *echo.Echo) {
	group := echoServer.Group("/api/v1", s.jwtMiddleware)
	s.registerCoachRoutes(group)
}
