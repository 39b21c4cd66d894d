package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/rs/zerolog"
	"go.mongodb.org/mongo-driver/v2/mongo"
	"go.mongodb.org/mongo-driver/v2/mongo/options"

	"github.com/jirayus/identity-api/internal/config"
	"github.com/jirayus/identity-api/internal/handler"
	"github.com/jirayus/identity-api/internal/mailer"
	"github.com/jirayus/identity-api/internal/pwned"
	"github.com/jirayus/identity-api/internal/repository"
	"github.com/jirayus/identity-api/internal/security"
	"github.com/jirayus/identity-api/internal/signing"
	"github.com/jirayus/identity-api/internal/token"
	"github.com/jirayus/identity-api/internal/usecase"
)

const mailQueueSize = 256

func main() {
	logger := zerolog.New(os.Stdout).With().Timestamp().Logger()

	cfg := config.Load(&logger)

	keys, err := signing.NewKeyProvider(cfg.Token.PrivateKeyPath, cfg.Token.PublicKeyPath, cfg.Token.Issuer)
	if err != nil {
		// The service cannot safely operate without its signing key.
		logger.Fatal().Err(err).Msg("failed to load signing key material")
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	client, err := mongo.Connect(options.Client().ApplyURI(cfg.Mongo.URI))
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to connect to MongoDB")
	}
	defer func() {
		if err := client.Disconnect(context.Background()); err != nil {
			logger.Error().Err(err).Msg("failed to disconnect from MongoDB")
		}
	}()

	if err := client.Ping(ctx, nil); err != nil {
		logger.Fatal().Err(err).Msg("failed to ping MongoDB")
	}

	db := client.Database(cfg.Mongo.Database)

	userRepo := repository.NewUserMongoRepository(ctx, &logger, db)
	sessionRepo := repository.NewSessionMongoRepository(db)
	refreshRepo := repository.NewRefreshTokenMongoRepository(ctx, &logger, db)
	oneTimeRepo := repository.NewOneTimeTokenMongoRepository(ctx, &logger, db)
	otpRepo := repository.NewEmailOTPMongoRepository(ctx, &logger, db)

	hasher := security.NewSecretHasher(cfg.Token.SecretPepper)
	codec := token.NewCodec(keys, cfg.Token.Issuer, cfg.Token.Audience, cfg.Token.AccessTokenTTL)

	dispatcher := mailer.NewDispatcher(mailer.NewMailer(&logger), &logger, mailQueueSize, 2)
	defer dispatcher.Close()

	sessionUsecase := usecase.NewSessionUsecase(
		sessionRepo, refreshRepo, userRepo, codec, hasher, cfg.Token.RefreshTokenTTL, &logger,
	)
	otpUsecase := usecase.NewOTPUsecase(otpRepo, hasher, cfg.OTP.TTL)
	oneTimeUsecase := usecase.NewOneTimeTokenUsecase(oneTimeRepo, userRepo, hasher)
	accountUsecase := usecase.NewAccountUsecase(
		userRepo, sessionUsecase, otpUsecase, oneTimeUsecase,
		dispatcher, pwned.NewChecker(&logger), cfg,
	)

	authHandler := handler.NewAuthHandler(accountUsecase, sessionUsecase, codec, &logger)

	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)
	r.Get("/.well-known/jwks.json", authHandler.JWKS)
	r.Mount("/api/v1/auth", authHandler.Routes())

	server := &http.Server{
		Addr:    cfg.Server.Addr,
		Handler: r,
	}

	shutdownCtx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	go func() {
		logger.Info().Str("addr", cfg.Server.Addr).Msg("starting HTTP server")
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Fatal().Err(err).Msg("HTTP server failed")
		}
	}()

	<-shutdownCtx.Done()
	logger.Info().Msg("shutting down")

	timeoutCtx, cancelShutdown := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer cancelShutdown()

	if err := server.Shutdown(timeoutCtx); err != nil {
		logger.Error().Err(err).Msg("failed to shut down HTTP server gracefully")
	}
}
