package server

import (
	"net/http"
	"time"

	"agentrelay/internal/config"
)

// NewHTTPServer builds the http.Server the relay listens with, independent
// of the cobra command that owns its lifecycle.
func NewHTTPServer(cfg config.Config, handler http.Handler) *http.Server {
	return &http.Server{
		Addr:              ":" + cfg.HTTPPort,
		Handler:           handler,
		ReadHeaderTimeout: 5 * time.Second,
	}
}
