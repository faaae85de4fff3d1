package main

import (
	"context"
	"errors"
	"flag"
	"log"
	"log/slog"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/darthVad3r/StacksOfChaos-sub000/internal/app"
	"github.com/darthVad3r/StacksOfChaos-sub000/internal/config"
	"github.com/darthVad3r/StacksOfChaos-sub000/internal/oauth"
	"github.com/darthVad3r/StacksOfChaos-sub000/internal/ratelimit"
	"github.com/darthVad3r/StacksOfChaos-sub000/internal/server"
	"github.com/darthVad3r/StacksOfChaos-sub000/internal/titles"
	"github.com/darthVad3r/StacksOfChaos-sub000/internal/util"
	"github.com/darthVad3r/StacksOfChaos-sub000/pkg/mail"
	"github.com/darthVad3r/StacksOfChaos-sub000/pkg/storage"
)

const shutdownTimeout = 10 * time.Second

func main() {
	configPath := flag.String("config", config.DefaultPath, "path to config file")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		log.Fatalf("failed to load config: %v", err)
	}
	logger := util.InitLogger(cfg.LogLevel)

	sessionTTL, err := config.ParseDuration("sessionTTL", cfg.SessionTTL)
	if err != nil {
		log.Fatalf("failed to parse config: %v", err)
	}
	refreshTTL, err := config.ParseDuration("refreshTTL", cfg.RefreshTTL)
	if err != nil {
		log.Fatalf("failed to parse config: %v", err)
	}
	confirmTTL, err := config.ParseDuration("confirmTTL", cfg.ConfirmTTL)
	if err != nil {
		log.Fatalf("failed to parse config: %v", err)
	}
	jwtLeeway, err := config.ParseDuration("jwtLeeway", cfg.JWTLeeway)
	if err != nil {
		log.Fatalf("failed to parse config: %v", err)
	}

	appCfg := app.Config{
		DatabaseURL:   cfg.DatabaseURL,
		RedisAddr:     cfg.RedisAddr,
		RedisPassword: cfg.RedisPassword,
		BaseURL:       cfg.BaseURL,
		JWTSecret:     cfg.JWTSecret,
		JWTIssuer:     cfg.JWTIssuer,
		JWTAudience:   cfg.JWTAudience,
		JWTLeeway:     jwtLeeway,
		SessionTTL:    sessionTTL,
		RefreshTTL:    refreshTTL,
		ConfirmTTL:    confirmTTL,
		Logger:        logger,
	}

	var sender mail.Sender
	if cfg.SMTPHost != "" {
		smtpSender, err := mail.NewSMTPSender(mail.SMTPConfig{
			Host:     cfg.SMTPHost,
			Port:     cfg.SMTPPort,
			Username: cfg.SMTPUsername,
			Password: cfg.SMTPPassword,
			From:     cfg.SMTPFrom,
			FromName: cfg.SMTPFromName,
			SSL:      cfg.SMTPSSL,
		}, logger)
		if err != nil {
			log.Fatalf("failed to init smtp sender: %v", err)
		}
		sender = smtpSender
		appCfg.Sender = smtpSender
	}

	var templates mail.TemplateProvider
	if cfg.TemplatesDir != "" {
		templates = mail.NewFileTemplateProvider(cfg.TemplatesDir)
		appCfg.Templates = templates
	}
	if cfg.AMQPURL != "" {
		appCfg.EmailQueue = mail.NewAMQPQueue(cfg.AMQPURL)
	}
	if cfg.MinioEndpoint != "" {
		covers, err := storage.NewMinioCoverStore(cfg.MinioEndpoint, cfg.MinioAccessKey,
			cfg.MinioSecretKey, cfg.MinioBucket, cfg.MinioUseSSL)
		if err != nil {
			log.Fatalf("failed to init cover store: %v", err)
		}
		appCfg.Covers = covers
	}

	appCore, err := app.New(appCfg)
	if err != nil {
		log.Fatalf("failed to init app: %v", err)
	}

	srvCfg := server.Config{
		App:    appCore,
		Titles: titles.NewClient(cfg.OpenLibraryURL),
	}
	if cfg.GoogleClientID != "" {
		srvCfg.Google = oauth.NewGoogleProvider(cfg.GoogleClientID, cfg.GoogleClientSecret, cfg.GoogleCallbackURL)
	}
	trustedProxies, err := util.ParseTrustedProxies(cfg.TrustedProxies)
	if err != nil {
		log.Fatalf("failed to parse trusted proxies: %v", err)
	}
	srvCfg.TrustedProxies = trustedProxies
	srvCfg.RegisterLimiter = newLimiter(cfg.RedisAddr, cfg.RedisPassword, "soc:ratelimit:register", cfg.RegisterRateLimitPerMinute)
	srvCfg.LoginLimiter = newLimiter(cfg.RedisAddr, cfg.RedisPassword, "soc:ratelimit:login", cfg.LoginRateLimitPerMinute)
	srvCfg.EmailLimiter = newLimiter(cfg.RedisAddr, cfg.RedisPassword, "soc:ratelimit:email", cfg.EmailRateLimitPerMinute)

	httpServer := server.New(srvCfg)

	addr := ":" + cfg.Port
	srv := &http.Server{
		Addr:         addr,
		Handler:      httpServer.Router(),
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 30 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	g, ctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		slog.Info("catalog server listening", "addr", addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	if cfg.AMQPURL != "" && sender != nil && templates != nil {
		worker := mail.NewWorker(cfg.AMQPURL, sender, templates, logger)
		g.Go(func() error {
			err := worker.Run(ctx)
			if errors.Is(err, context.Canceled) {
				return nil
			}
			return err
		})
	}
	g.Go(func() error {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	})

	if err := g.Wait(); err != nil {
		logger.Error("server error", "err", err)
	}
}

func newLimiter(addr, password, prefix string, perMinute int) *ratelimit.Limiter {
	if perMinute <= 0 {
		return nil
	}
	limiter, err := ratelimit.New(addr, password, prefix, perMinute, time.Minute)
	if err != nil {
		log.Fatalf("failed to init rate limiter: %v", err)
	}
	return limiter
}
