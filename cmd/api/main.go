package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"
	"time"

	"panel-dash/internal/api"
	"panel-dash/internal/api/handler"
	"panel-dash/internal/audit"
	"panel-dash/internal/bot"
	"panel-dash/internal/config"
	"panel-dash/internal/logger"
	"panel-dash/internal/metrics"
	"panel-dash/internal/model"
	"panel-dash/internal/panel"
	"panel-dash/internal/pterodactyl"
	"panel-dash/internal/ratelimit"
	"panel-dash/internal/session"
	"panel-dash/internal/store"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

const (
	version           = "1.0.0"
	retentionInterval = time.Hour
	shutdownTimeout   = 10 * time.Second
)

func loadOrCreateSecret(path string, log *zap.Logger) (string, error) {
	secret, err := os.ReadFile(path)
	if err == nil {
		log.Info("loaded session secret", zap.String("path", path))
		return strings.TrimSpace(string(secret)), nil
	}
	if !errors.Is(err, os.ErrNotExist) {
		return "", fmt.Errorf("read session secret: %w", err)
	}

	log.Info("session secret file not found, generating a new one", zap.String("path", path))
	newSecret, err := session.RandomToken(32)
	if err != nil {
		return "", err
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o700); err != nil {
		return "", fmt.Errorf("create secret dir: %w", err)
	}
	if err := os.WriteFile(path, []byte(newSecret), 0o600); err != nil {
		return "", fmt.Errorf("write session secret: %w", err)
	}
	return newSecret, nil
}

func setupEnv(cfg config.Config, log *zap.Logger) (*handler.Env, api.Limiters, error) {
	secret := cfg.SessionSecret
	if secret == "" {
		var err error
		if secret, err = loadOrCreateSecret(cfg.SecretFile, log); err != nil {
			return nil, api.Limiters{}, err
		}
	}
	sessions, err := session.NewManager(secret, cfg.SecureCookies)
	if err != nil {
		return nil, api.Limiters{}, err
	}

	db, err := audit.Open(cfg.DatabasePath, log)
	if err != nil {
		return nil, api.Limiters{}, err
	}
	recorder := audit.NewRecorder(db, audit.NewHub(), log)

	files := store.NewFileStore()
	tiers := store.NewTierRegistry(files, filepath.Join(cfg.DataDir, "tier.json"), log)
	access := store.NewAccessRegistry(files, cfg.DataDir, config.ServerIDs)
	dir := store.NewDirectory(tiers, access, cfg.Owners)

	m := metrics.New()
	timeout := cfg.Provisioning.Timeout
	panels := panel.NewService(panel.Options{
		Servers: cfg.Servers(),
		Access:  access,
		Clients: func(srv model.Server) panel.Provisioner {
			return pterodactyl.NewClient(srv.BaseURL(), srv.APIKey, timeout)
		},
		Audit:       recorder,
		Metrics:     m,
		Log:         log,
		EmailDomain: cfg.Provisioning.EmailDomain,
	})

	env := &handler.Env{
		Config:    cfg,
		Directory: dir,
		Sessions:  sessions,
		Lockout:   ratelimit.NewLockout(cfg.Lockout.MaxAttempts, cfg.Lockout.Cooldown),
		Audit:     recorder,
		Panels:    panels,
		Metrics:   m,
		Log:       log,
	}
	limits := api.Limiters{
		Login: ratelimit.NewLimiter(cfg.RateLimit.LoginMax, cfg.RateLimit.LoginWindow),
		API:   ratelimit.NewLimiter(cfg.RateLimit.APIMax, cfg.RateLimit.APIWindow),
	}
	return env, limits, nil
}

func run(configPath string) error {
	cfg, err := config.Load(configPath)
	if err != nil {
		return err
	}
	log, err := logger.New(cfg.Env)
	if err != nil {
		return err
	}
	defer log.Sync()

	log.Info("panel-dash starting", zap.String("version", version), zap.String("env", cfg.Env))
	if cfg.Env != "dev" {
		gin.SetMode(gin.ReleaseMode)
	}

	env, limits, err := setupEnv(cfg, log)
	if err != nil {
		return err
	}
	router, err := api.NewRouter(env, limits)
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	audit.StartRetention(ctx, env.Audit, retentionInterval, cfg.Audit.Retention)

	if cfg.Bot.Token != "" {
		botHandler, err := bot.NewBotHandler(cfg.Bot.Token, cfg.Bot.WebAppURL, cfg.Bot.Name, env.Directory, cfg.Servers(), log)
		if err != nil {
			return fmt.Errorf("initialize Telegram bot: %w", err)
		}
		go botHandler.Start()
		log.Info("Telegram bot started")
	} else {
		log.Info("Telegram bot token not configured, skipping bot")
	}

	srv := &http.Server{
		Addr:              cfg.ListenAddr,
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
	}
	errc := make(chan error, 1)
	go func() {
		log.Info("server listening", zap.String("addr", cfg.ListenAddr))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errc <- err
		}
		close(errc)
	}()

	select {
	case err := <-errc:
		return err
	case <-ctx.Done():
	}

	log.Info("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	return srv.Shutdown(shutdownCtx)
}

func main() {
	configPath := flag.String("config", "config.yaml", "path to the YAML config file")
	flag.Parse()

	if err := run(*configPath); err != nil {
		fmt.Fprintf(os.Stderr, "panel-dash: %v\n", err)
		os.Exit(1)
	}
}
