package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/creditsea/creditsea/internal/config"
	"github.com/creditsea/creditsea/internal/handlers"
	"github.com/creditsea/creditsea/internal/middleware"
	"github.com/creditsea/creditsea/internal/repository"
	"github.com/creditsea/creditsea/internal/service"
	"github.com/creditsea/creditsea/internal/validation"
	"github.com/redis/go-redis/v9"
	"github.com/sirupsen/logrus"
)

func main() {
	logger := logrus.New()
	logger.SetFormatter(&logrus.JSONFormatter{})
	logger.SetLevel(logrus.InfoLevel)

	cfg, err := config.Load()
	if err != nil {
		logger.WithError(err).Fatal("Failed to load configuration")
	}

	if level, err := logrus.ParseLevel(cfg.Log.Level); err == nil {
		logger.SetLevel(level)
	} else {
		logger.WithField("level", cfg.Log.Level).Warn("Unknown log level, using info")
	}

	users, loans, err := initStores(cfg, logger)
	if err != nil {
		logger.WithError(err).Fatal("Failed to initialize stores")
	}

	limiter, closeRedis := initRateLimiter(cfg, logger)
	defer closeRedis()

	// Initialize services
	jwtService, err := service.NewJWTService(&cfg.JWT, logger)
	if err != nil {
		logger.WithError(err).Fatal("Failed to initialize JWT service")
	}

	v := validation.New()
	otpService := service.NewOTPService(users, limiter, &cfg.OTP, logger)
	profileService := service.NewProfileService(users, v, logger)
	applicationService := service.NewApplicationService(users, loans, logger)

	router := handlers.NewRouter(
		handlers.NewAuthHandlers(otpService, jwtService, profileService, v, logger),
		handlers.NewLoanHandlers(applicationService, v, logger),
		middleware.NewAuthMiddleware(jwtService, logger),
		cfg.Server.CORSAllowedOrigin,
		logger,
	)

	srv := &http.Server{
		Addr:         cfg.Server.Address(),
		Handler:      router,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
	}

	go func() {
		logger.WithField("port", cfg.Server.Port).Info("Starting server")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.WithError(err).Fatal("Server failed to start")
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info("Shutting down server...")
	ctx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer cancel()

	if err := srv.Shutdown(ctx); err != nil {
		logger.WithError(err).Error("Server forced to shutdown")
	}

	logger.Info("Server exited")
}

func initStores(cfg *config.Config, logger *logrus.Logger) (service.UserStore, service.LoanStore, error) {
	if cfg.Store.Backend == config.StoreMemory {
		logger.Warn("Using in-memory store, data is lost on restart")
		return repository.NewMemoryUserRepository(), repository.NewMemoryLoanRepository(), nil
	}

	client, err := initDynamoDB(cfg, logger)
	if err != nil {
		return nil, nil, err
	}
	users := repository.NewUserRepository(client, cfg.DynamoDB.TableName, cfg.DynamoDB.IndexName, logger)
	loans := repository.NewLoanRepository(client, cfg.DynamoDB.TableName, cfg.DynamoDB.IndexName, logger)
	return users, loans, nil
}

func initDynamoDB(cfg *config.Config, logger *logrus.Logger) (*dynamodb.Client, error) {
	var awsCfg aws.Config
	var err error

	if cfg.DynamoDB.Endpoint != "" {
		awsCfg, err = awsconfig.LoadDefaultConfig(context.TODO(),
			awsconfig.WithRegion(cfg.DynamoDB.Region),
			awsconfig.WithEndpointResolverWithOptions(aws.EndpointResolverWithOptionsFunc(
				func(service, region string, options ...interface{}) (aws.Endpoint, error) {
					return aws.Endpoint{
						URL:           cfg.DynamoDB.Endpoint,
						SigningRegion: cfg.DynamoDB.Region,
					}, nil
				})),
		)
	} else {
		awsCfg, err = awsconfig.LoadDefaultConfig(context.TODO(), awsconfig.WithRegion(cfg.DynamoDB.Region))
	}

	if err != nil {
		return nil, fmt.Errorf("failed to load AWS config: %w", err)
	}

	client := dynamodb.NewFromConfig(awsCfg)
	logger.WithFields(logrus.Fields{
		"table":  cfg.DynamoDB.TableName,
		"region": cfg.DynamoDB.Region,
	}).Info("DynamoDB client initialized")
	return client, nil
}

// initRateLimiter returns nil when no Redis endpoint is configured or the
// limit is disabled. An unreachable Redis is logged and the limiter stays
// wired; requests pass while it is down.
func initRateLimiter(cfg *config.Config, logger *logrus.Logger) (service.RateLimiter, func()) {
	if cfg.Redis.Endpoint == "" || cfg.OTP.RequestsPerMinute <= 0 {
		logger.Info("OTP request limiter disabled")
		return nil, func() {}
	}

	client := redis.NewClient(&redis.Options{
		Addr:     cfg.Redis.Endpoint,
		Password: cfg.Redis.Password,
		DB:       cfg.Redis.DB,
	})

	ctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
	defer cancel()
	if err := client.Ping(ctx).Err(); err != nil {
		logger.WithError(err).Warn("Redis ping failed, OTP limiter will allow requests until it recovers")
	} else {
		logger.WithField("endpoint", cfg.Redis.Endpoint).Info("Redis connected")
	}

	limiter := service.NewRedisRateLimiter(client, "otp:requests:", cfg.OTP.RequestsPerMinute, time.Minute)
	return limiter, func() { client.Close() }
}
