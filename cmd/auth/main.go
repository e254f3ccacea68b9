package main

import (
	"context"
	"errors"
	"log"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"

	"github.com/Skotchmaster/auth_service/internal/config"
	"github.com/Skotchmaster/auth_service/internal/db"
	"github.com/Skotchmaster/auth_service/internal/es"
	"github.com/Skotchmaster/auth_service/internal/events"
	"github.com/Skotchmaster/auth_service/internal/hash"
	"github.com/Skotchmaster/auth_service/internal/httpserver"
	"github.com/Skotchmaster/auth_service/internal/logging"
	"github.com/Skotchmaster/auth_service/internal/mailer"
	"github.com/Skotchmaster/auth_service/internal/metrics"
	"github.com/Skotchmaster/auth_service/internal/middleware"
	"github.com/Skotchmaster/auth_service/internal/mykafka"
	"github.com/Skotchmaster/auth_service/internal/repo"
	"github.com/Skotchmaster/auth_service/internal/service"
	"github.com/Skotchmaster/auth_service/internal/tokens"
	"github.com/Skotchmaster/auth_service/internal/worker/cleanup"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("config: %v", err)
	}

	logger := logging.New(cfg.LogLevel).With("service", cfg.ServiceName)
	slog.SetDefault(logger)

	if err := run(cfg, logger); err != nil {
		logger.Error("fatal", "error", err)
		os.Exit(1)
	}
}

func run(cfg *config.Config, logger *slog.Logger) error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	initCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
	gdb, err := db.Open(initCtx, cfg.DBDriver, cfg.DatabaseURL)
	if err == nil {
		err = db.Migrate(initCtx, gdb)
	}
	cancel()
	if err != nil {
		return err
	}
	defer func() {
		if err := db.Close(gdb); err != nil {
			logger.Error("db close", "error", err)
		}
	}()

	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	rec := metrics.NewCollector(reg)

	var (
		publishers events.Multi
		dispatch   mailer.Dispatcher = mailer.LogDispatcher{Logger: logger}
	)
	if len(cfg.KafkaBrokers) > 0 {
		prod, err := mykafka.NewProducer(cfg.KafkaBrokers)
		if err != nil {
			return err
		}
		defer func() {
			if err := prod.Close(); err != nil {
				logger.Error("kafka close", "error", err)
			}
		}()
		publishers = append(publishers, events.NewKafkaPublisher(prod, cfg.UserEventTopic))
		dispatch = mailer.NewKafkaDispatcher(prod, cfg.MailTopic)
	} else {
		logger.Warn("KAFKA_BROKERS empty, mail is only logged")
	}
	if cfg.ESURL != "" {
		client, err := es.NewClient(es.Config{URL: cfg.ESURL, User: cfg.ESUser, Password: cfg.ESPassword})
		if err != nil {
			return err
		}
		if err := es.Ping(ctx, client); err != nil {
			logger.Warn("elasticsearch unreachable at startup", "error", err)
		}
		publishers = append(publishers, es.NewAuditIndexer(client, cfg.ESIndex, logger))
	}

	mail := mailer.NewAsync(dispatch, cfg.MailQueueSize, cfg.MailWorkers, logger, rec)

	codec := tokens.NewCodec([]byte(cfg.JWTSecret),
		tokens.WithIssuer(cfg.JWTIssuer),
		tokens.WithTTL(cfg.AccessTTL, cfg.RefreshTTL),
	)
	users := repo.NewUsers(gdb)
	refresh := repo.NewRefreshLedger(gdb, cfg.RefreshTTL)
	refresh.RevokeChainOnReuse = cfg.ReuseRevokesChain
	otps := repo.NewOtpLedger(gdb, mail, cfg.AppName)
	otps.TTL = cfg.OtpTTL
	otps.Metrics = rec

	svc := &service.AuthService{
		Users:     users,
		Hasher:    hash.NewBcrypt(cfg.BcryptCost),
		Refreshes: refresh,
		Otps:      otps,
		Tokens:    codec,
		Policy:    service.PasswordPolicy{MinLength: cfg.PasswordMinLength},
		Events:    publishers,
		Metrics:   rec,
	}

	e := httpserver.New(&httpserver.Deps{
		AuthHandler: &httpserver.AuthHTTP{
			Svc:    svc,
			Tokens: codec,
			Cookies: httpserver.CookieTransport{
				Name:     cfg.CookieName,
				Path:     cfg.CookiePath,
				Domain:   cfg.CookieDomain,
				Secure:   cfg.CookieSecure,
				SameSite: cfg.SameSite(),
			},
		},
		Authenticator: middleware.NewAuthenticator(codec, users, cfg.BasePath),
		Logger:        logger,
		Metrics:       rec,
		Gatherer:      reg,
		Ready:         func(ctx context.Context) error { return db.Ping(ctx, gdb) },
		BasePath:      cfg.BasePath,
	})

	job := cleanup.NewJob(map[string]cleanup.Pruner{
		"refresh_tokens": refresh,
		"otps":           otps,
	}, logger, rec)
	job.Interval = cfg.PruneInterval
	job.Retention = cfg.PruneRetention
	go job.Start(ctx)

	errCh := make(chan error, 1)
	go func() {
		logger.Info("listening", "addr", cfg.HTTPAddr)
		if err := e.Start(cfg.HTTPAddr); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	select {
	case <-ctx.Done():
	case err := <-errCh:
		return err
	}

	logger.Info("shutting down")
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()

	if err := e.Shutdown(shutdownCtx); err != nil {
		logger.Error("echo shutdown", "error", err)
	}
	if err := mail.Close(shutdownCtx); err != nil {
		logger.Error("mail queue drain", "error", err)
	}

	logger.Info("shutdown complete")
	return nil
}
