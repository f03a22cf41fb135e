package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	goredis "github.com/redis/go-redis/v9"
	"go.uber.org/zap"
	"google.golang.org/grpc"
	"google.golang.org/grpc/health/grpc_health_v1"

	"github.com/realmforge/token-service/internal/config"
	"github.com/realmforge/token-service/internal/domain/models"
	"github.com/realmforge/token-service/internal/domain/repository"
	pgrepo "github.com/realmforge/token-service/internal/domain/repository/postgres"
	redisrepo "github.com/realmforge/token-service/internal/domain/repository/redis"
	"github.com/realmforge/token-service/internal/events"
	eventskafka "github.com/realmforge/token-service/internal/events/kafka"
	grpcHandler "github.com/realmforge/token-service/internal/handler/grpc"
	"github.com/realmforge/token-service/internal/handler/grpc/interceptors"
	"github.com/realmforge/token-service/internal/service"
	"github.com/realmforge/token-service/internal/utils/logger"
)

const healthCheckMethod = "/grpc.health.v1.Health/Check"

func main() {
	if err := run(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func run() error {
	cfg, err := config.Load()
	if err != nil {
		return err
	}

	log, err := logger.New(cfg.Logging.Level, cfg.Logging.Environment)
	if err != nil {
		return fmt.Errorf("create logger: %w", err)
	}
	defer log.Sync() //nolint:errcheck

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	pool, err := pgxpool.New(ctx, cfg.Database.DSN())
	if err != nil {
		return fmt.Errorf("connect to database: %w", err)
	}
	defer pool.Close()
	if err := pool.Ping(ctx); err != nil {
		return fmt.Errorf("ping database: %w", err)
	}

	var blacklist repository.TokenBlacklist
	if cfg.Redis.Enabled {
		redisClient := goredis.NewClient(&goredis.Options{
			Addr:     cfg.Redis.Addr(),
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
		})
		defer redisClient.Close()
		if err := redisClient.Ping(ctx).Err(); err != nil {
			return fmt.Errorf("ping redis: %w", err)
		}
		blacklist = redisrepo.NewTokenBlacklist(redisClient, logger.WithComponent(log, "blacklist"))
	}

	var publisher events.Publisher = events.NopPublisher{}
	if len(cfg.Kafka.Brokers) > 0 {
		producer, err := eventskafka.NewProducer(cfg.Kafka.Brokers, cfg.Kafka.Topic, cfg.Kafka.Source, logger.WithComponent(log, "events"))
		if err != nil {
			return fmt.Errorf("create event producer: %w", err)
		}
		defer producer.Close()
		publisher = producer
	}

	secrets, err := cfg.Realm.SecretSet()
	if err != nil {
		return fmt.Errorf("build secret set: %w", err)
	}
	policy, err := cfg.Rotation.Policy()
	if err != nil {
		return fmt.Errorf("resolve rotation policy: %w", err)
	}

	realm := cfg.Realm.Realm()
	identity := pgrepo.NewIdentityStorePostgres(pool)
	tokens := pgrepo.NewTokenRepositoryPostgres(pool)
	codec := service.NewTokenCodec(realm, secrets)
	validator := service.NewClaimsValidator(realm)

	issuer, err := service.NewTokenIssuer(realm, codec, identity, logger.WithComponent(log, "issuer"))
	if err != nil {
		return err
	}
	persistence := map[models.TokenType]bool{
		models.TokenTypeAccess:  cfg.Realm.PersistAccess,
		models.TokenTypeRefresh: true,
	}
	verifier := service.NewTokenVerifier(codec, validator, identity, tokens, blacklist, persistence, logger.WithComponent(log, "verifier"))
	manager := service.NewTokenService(issuer, verifier, codec, tokens, blacklist, publisher, policy,
		service.TokenServiceConfig{
			AccessTokenTTL:      cfg.Realm.AccessTokenTTL,
			RefreshTokenTTL:     cfg.Realm.RefreshTokenTTL,
			PersistAccessTokens: cfg.Realm.PersistAccess,
		},
		logger.WithComponent(log, "token_service"),
	)

	grpcServer := grpc.NewServer(
		grpc.UnaryInterceptor(interceptors.Auth(manager, logger.WithComponent(log, "grpc_auth"), healthCheckMethod)),
	)
	healthServer := grpcHandler.NewHealthServer(log)
	grpc_health_v1.RegisterHealthServer(grpcServer, healthServer)

	startGRPCServer(cfg, grpcServer, log)
	metricsSrv := startMetricsServer(cfg, log)

	log.Info("token service started",
		zap.String("realm", realm.Owner),
		zap.Bool("rotation_enabled", policy.Enabled),
		zap.Duration("grace_period", policy.GracePeriod),
	)

	<-ctx.Done()
	log.Info("shutting down")

	grpcServer.GracefulStop()
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := metricsSrv.Shutdown(shutdownCtx); err != nil {
		log.Warn("metrics listener shutdown", zap.Error(err))
	}
	return nil
}
