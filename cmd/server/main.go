// Command alebaz-server starts the chat API: the JSON HTTP listener and the
// ops gRPC health listener.
package main

import (
	"context"
	"errors"
	"flag"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/LyndaLilly/alebaz-chat-api/internal/config"
	"github.com/LyndaLilly/alebaz-chat-api/internal/crypto"
	"github.com/LyndaLilly/alebaz-chat-api/internal/events"
	"github.com/LyndaLilly/alebaz-chat-api/internal/mail"
	"github.com/LyndaLilly/alebaz-chat-api/internal/migrate"
	"github.com/LyndaLilly/alebaz-chat-api/internal/otp"
	"github.com/LyndaLilly/alebaz-chat-api/internal/repository/postgres"
	grpcserver "github.com/LyndaLilly/alebaz-chat-api/internal/server/grpc"
	httpserver "github.com/LyndaLilly/alebaz-chat-api/internal/server/http"
	"github.com/LyndaLilly/alebaz-chat-api/internal/service"
	"github.com/LyndaLilly/alebaz-chat-api/internal/storage"
	"github.com/LyndaLilly/alebaz-chat-api/internal/token"
)

var (
	version   = "dev"
	buildDate = "unknown"
)

const (
	shutdownTimeout = 5 * time.Second
	serviceName     = "alebaz-chat-api"
)

// main loads configuration, runs migrations and serves until SIGINT/SIGTERM.
func main() {
	envFile := flag.String("env-file", ".env", "optional dotenv file")
	flag.Parse()

	cfg, err := config.Load(*envFile)
	if err != nil {
		// logger is not configured yet
		_, _ = os.Stderr.WriteString("config: " + err.Error() + "\n")
		os.Exit(2)
	}

	logger := newLogger(cfg)
	defer func() { _ = logger.Sync() }()
	logger.Info("starting",
		zap.String("version", version),
		zap.String("buildDate", buildDate),
		zap.String("env", cfg.Env),
		zap.String("http", cfg.HTTPAddr),
		zap.String("grpc", cfg.GRPCAddr),
	)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if _, err := migrate.Up(ctx, cfg.DatabaseDSN, logger); err != nil {
		logger.Fatal("migrate up", zap.Error(err))
	}

	db, err := postgres.New(ctx, cfg.DatabaseDSN)
	if err != nil {
		logger.Fatal("postgres", zap.Error(err))
	}
	defer db.Close()

	clients := postgres.NewClientRepo(db)
	convs := postgres.NewConversationRepo(db)
	msgs := postgres.NewMessageRepo(db)

	deny, closeRedis := newDenylist(ctx, cfg, logger)
	defer closeRedis()

	pub, closeKafka := newPublisher(cfg, logger)
	defer closeKafka()

	sender, err := newMailer(cfg, logger)
	if err != nil {
		logger.Fatal("mail", zap.Error(err))
	}

	images, err := storage.NewDisk(cfg.UploadDir)
	if err != nil {
		logger.Fatal("storage", zap.Error(err))
	}

	issuer := token.NewIssuer([]byte(cfg.JWTKey), cfg.AccessTTL, nil)

	onboarding := service.NewOnboardingService(service.OnboardingDeps{
		Clients: clients,
		OTP: otp.New(otp.Policy{
			TTL:        cfg.OTPTTL,
			Cooldown:   cfg.OTPCooldown,
			MaxResends: cfg.OTPMaxResends,
		}),
		Mail:          sender,
		Images:        images,
		Pins:          crypto.NewHasher(0),
		Tokens:        issuer,
		Denylist:      deny,
		Events:        pub,
		Log:           logger,
		DeleteOrphans: cfg.OrphanPolicy == config.OrphanDelete,
	})

	metrics, err := httpserver.NewHTTPMetrics(httpserver.MetricsOptions{Registerer: prometheus.DefaultRegisterer})
	if err != nil {
		logger.Fatal("metrics", zap.Error(err))
	}

	if !cfg.Dev() {
		gin.SetMode(gin.ReleaseMode)
	}
	api, err := httpserver.New(httpserver.Deps{
		Onboarding:    onboarding,
		Search:        service.NewSearchService(clients),
		Conversations: service.NewConversationService(clients, convs, nil),
		Messages:      service.NewMessageService(clients, convs, msgs, pub, logger, nil),
		Tokens:        issuer,
		Denylist:      deny,
		DB:            db,
		Log:           logger,
		Metrics:       metrics,
		Gatherer:      prometheus.DefaultGatherer,
		UploadDir:     cfg.UploadDir,
		AllowOrigins:  cfg.AllowOrigins,
	})
	if err != nil {
		logger.Fatal("http server", zap.Error(err))
	}
	httpSrv := &http.Server{
		Addr:              cfg.HTTPAddr,
		Handler:           api.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	ops := grpcserver.New(grpcserver.Options{DB: db, Log: logger, Reflection: cfg.Dev()})
	lis, err := net.Listen("tcp", cfg.GRPCAddr)
	if err != nil {
		logger.Fatal("listen", zap.Error(err))
	}
	go ops.Watch(ctx)

	errCh := make(chan error, 2)
	go func() {
		logger.Info("http listening", zap.String("addr", cfg.HTTPAddr))
		if err := httpSrv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()
	go func() {
		logger.Info("grpc listening", zap.String("addr", cfg.GRPCAddr))
		errCh <- ops.Serve(lis)
	}()

	select {
	case <-ctx.Done():
	case err := <-errCh:
		logger.Error("server error", zap.Error(err))
		stop()
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := httpSrv.Shutdown(shutdownCtx); err != nil {
		logger.Warn("http shutdown", zap.Error(err))
		_ = httpSrv.Close()
	}
	ops.Shutdown(shutdownCtx)

	logger.Info("shutdown complete")
}

func newLogger(cfg *config.Config) *zap.Logger {
	var (
		logger *zap.Logger
		err    error
	)
	if cfg.Dev() {
		logger, err = zap.NewDevelopment()
	} else {
		logger, err = zap.NewProduction()
	}
	if err != nil {
		return zap.NewNop()
	}
	return logger.With(zap.String("service", serviceName))
}

// newDenylist uses Redis when configured. Without it logout cannot revoke
// tokens, which is only acceptable outside production.
func newDenylist(ctx context.Context, cfg *config.Config, log *zap.Logger) (token.Denylist, func()) {
	if cfg.RedisAddr == "" {
		log.Warn("REDIS_ADDR not set, token revocation disabled")
		return token.NopDenylist{}, func() {}
	}
	rdb := redis.NewClient(&redis.Options{
		Addr:     cfg.RedisAddr,
		Password: cfg.RedisPassword,
		DB:       cfg.RedisDB,
	})
	if err := rdb.Ping(ctx).Err(); err != nil {
		log.Fatal("redis", zap.Error(err))
	}
	return token.NewRedisDenylist(rdb, ""), func() { _ = rdb.Close() }
}

func newPublisher(cfg *config.Config, log *zap.Logger) (events.Publisher, func()) {
	if len(cfg.KafkaBrokers) == 0 {
		log.Info("KAFKA_BROKERS not set, domain events disabled")
		return events.Nop{}, func() {}
	}
	k, err := events.DialKafka(cfg.KafkaBrokers, cfg.KafkaTopic, serviceName, log)
	if err != nil {
		log.Fatal("kafka", zap.Error(err))
	}
	return k, func() {
		if err := k.Close(); err != nil {
			log.Warn("kafka close", zap.Error(err))
		}
	}
}

func newMailer(cfg *config.Config, log *zap.Logger) (mail.Sender, error) {
	if cfg.SMTP.Host == "" {
		log.Warn("SMTP_HOST not set, verification codes are logged instead of mailed")
		return &mail.LogSender{Log: log}, nil
	}
	return mail.NewSMTPSender(mail.SMTPConfig{
		Host:     cfg.SMTP.Host,
		Port:     cfg.SMTP.Port,
		Username: cfg.SMTP.Username,
		Password: cfg.SMTP.Password,
		From:     cfg.MailFrom,
		AppName:  cfg.AppName,
		Timeout:  cfg.MailTimeout,
	})
}
