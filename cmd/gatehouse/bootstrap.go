package main

import (
	"context"

	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/zap"

	"github.com/nfavre/gatehouse/internal/attempt"
	"github.com/nfavre/gatehouse/internal/config"
	"github.com/nfavre/gatehouse/internal/mail"
	"github.com/nfavre/gatehouse/internal/obs"
	"github.com/nfavre/gatehouse/internal/password"
	pg "github.com/nfavre/gatehouse/internal/repository/postgres"
	"github.com/nfavre/gatehouse/internal/refresh"
	"github.com/nfavre/gatehouse/internal/session"
	"github.com/nfavre/gatehouse/internal/token"
	"github.com/nfavre/gatehouse/internal/verify"
)

func initLogger(cfg *config.Config) (*zap.Logger, error) {
	return obs.NewLogger(*cfg.AsLoggerConfig())
}

func initOTel(ctx context.Context, cfg *config.Config) (func(context.Context) error, error) {
	closer, err := obs.SetupOTel(ctx, cfg.OTEL.AsOTELConfig())
	if err != nil {
		return nil, err
	}
	return closer.Shutdown, nil
}

func initDB(ctx context.Context, cfg *config.Config) (*pg.DB, error) {
	return pg.New(ctx, cfg.DB)
}

// buildSessions assembles the whole auth core over the database handle.
func buildSessions(cfg *config.Config, db *pg.DB, logger *zap.Logger) (*session.Orchestrator, *refresh.Store) {
	users := pg.NewUserRepo(db)
	tokens := pg.NewRefreshTokenRepo(db)

	codec := token.NewCodec(token.Config{
		Secret:      []byte(cfg.Auth.JWTSecret),
		AccessTTL:   cfg.Auth.AccessTTL,
		ExtendedTTL: cfg.Auth.AccessTTLExtended,
	})
	refreshStore := refresh.NewStore(tokens, refresh.Config{
		TTL:         cfg.Auth.RefreshTTL,
		ExtendedTTL: cfg.Auth.RefreshTTLExtended,
	})
	tracker := attempt.NewTracker(attempt.Config{
		MaxAttempts:     cfg.Auth.MaxLoginAttempts,
		LockoutDuration: cfg.Auth.LockoutDuration,
	})
	verifier := verify.NewIssuer(users, verify.Config{TTL: cfg.Auth.VerificationTTL})

	mailer := mail.NewMailer(cfg.Mail.SMTP, logger)
	sender := mail.NewAuthSender(mailer, cfg.Mail.VerifyBaseURL)

	orch := session.NewOrchestrator(session.Deps{
		Users:    users,
		Codec:    codec,
		Refresh:  refreshStore,
		Attempts: tracker,
		Verifier: verifier,
		Hasher:   password.NewBcryptHasher(0),
		Mail:     sender,
		Logger:   logger,
		Metrics:  obs.NewAuthMetrics(prometheus.DefaultRegisterer),
	}, session.Config{MinPasswordLen: cfg.Auth.MinPasswordLen})

	return orch, refreshStore
}
