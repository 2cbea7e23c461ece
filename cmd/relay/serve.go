package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"agentrelay/internal/auth"
	"agentrelay/internal/config"
	"agentrelay/internal/logging"
	"agentrelay/internal/router"
	"agentrelay/internal/server"
	"agentrelay/internal/store"
)

var serveConfigFile string

func newServeCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Start the relay HTTP/WebSocket server",
		RunE:  runServe,
	}
	cmd.Flags().StringVarP(&serveConfigFile, "config", "c", "", "path to config file (default: ./config.yaml)")
	return cmd
}

func runServe(cmd *cobra.Command, args []string) error {
	loader := config.NewLoader()
	if serveConfigFile != "" {
		loader.SetConfigFile(serveConfigFile)
	}
	cfg, err := loader.Load()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	if cfg.JWTSecret == "" {
		return fmt.Errorf("jwt_secret is required")
	}

	log := logging.Init(cfg)

	db, err := store.Open(cfg.DBDriver, cfg.DBPath)
	if err != nil {
		return fmt.Errorf("open store: %w", err)
	}
	if err := store.Migrate(db); err != nil {
		return fmt.Errorf("migrate store: %w", err)
	}
	st := store.New(db)

	tokenCfg := auth.TokenConfig{Secret: []byte(cfg.JWTSecret), Issuer: cfg.JWTIssuer, TTL: cfg.AccessTTL()}

	rt := router.New(router.Config{
		OfflineQueueMax: cfg.OfflineQueueMax,
		OfflineTTL:      cfg.OfflineTTL(),
		IdleTimeout:     cfg.IdleTimeout(),
		PingInterval:    30 * time.Second,
		MsgMaxBytes:     cfg.MsgMaxBytes,
	}, st, log)

	ctx, cancelRouter := context.WithCancel(context.Background())
	rt.Start(ctx)
	defer cancelRouter()

	engine := server.NewRouter(server.Deps{Store: st, Router: rt, Cfg: cfg, TokenConfig: tokenCfg, Log: log})
	srv := server.NewHTTPServer(cfg, engine)

	go func() {
		log.Info("relay listening", "addr", srv.Addr)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Error("server failed", "error", err)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Info("shutting down")
	rt.Stop()

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error("forced shutdown", "error", err)
		return err
	}

	log.Info("exited cleanly")
	return nil
}
