// Package handler implements the relay's HTTP and WebSocket endpoints.
package handler

import (
	"log/slog"

	"agentrelay/internal/auth"
	"agentrelay/internal/config"
	"agentrelay/internal/router"
	"agentrelay/internal/store"
)

// Deps bundles everything a handler constructor needs, mirroring the
// teacher's server.Deps wiring shape.
type Deps struct {
	Store       *store.Store
	Router      *router.Router
	Cfg         config.Config
	TokenConfig auth.TokenConfig
	Log         *slog.Logger
}
