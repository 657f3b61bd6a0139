// cmd/retry-sweeper/main.go
package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"go.opentelemetry.io/otel"

	"github.com/doarsal/readymarket-backend-sub003/internal/pkg/bootstrap"
	"github.com/doarsal/readymarket-backend-sub003/internal/pkg/httpclient"
	"github.com/doarsal/readymarket-backend-sub003/internal/pkg/logger"
	"github.com/doarsal/readymarket-backend-sub003/internal/pkg/mq"
	"github.com/doarsal/readymarket-backend-sub003/internal/pkg/redis"
	"github.com/doarsal/readymarket-backend-sub003/internal/pkg/tracing"
	"github.com/doarsal/readymarket-backend-sub003/internal/service/fulfillment/application"
	"github.com/doarsal/readymarket-backend-sub003/internal/service/fulfillment/domain/port"
	"github.com/doarsal/readymarket-backend-sub003/internal/service/fulfillment/infrastructure"
	"github.com/doarsal/readymarket-backend-sub003/internal/service/fulfillment/infrastructure/adapter"
	"github.com/doarsal/readymarket-backend-sub003/internal/zookeeper"
)

const serviceName = "fulfillment-retry-sweeper"

// 定时扫描最近失败的订单项并逐单重试。
// 扫描器没有自己的调度语义，只是一个围绕 RetryRecentFailures 的 ticker。
func main() {
	bootstrap.Init()
	logger.Init(serviceName)
	cfg := bootstrap.GetCurrentConfig()

	sweepInterval := getEnvDuration("SWEEP_INTERVAL", 15*time.Minute)
	windowHours := getEnvInt("SWEEP_WINDOW_HOURS", 24)

	tp, err := tracing.InitTracerProvider(serviceName, cfg.Infra.Jaeger.Endpoint)
	if err != nil {
		log.Fatalf("failed to initialize tracer provider: %v", err)
	}
	defer func() {
		if err := tp.Shutdown(context.Background()); err != nil {
			log.Printf("Error shutting down tracer provider: %v", err)
		}
	}()

	db, err := infrastructure.NewMysqlDB(cfg.Infra.Mysql.DSN)
	if err != nil {
		log.Fatalf("failed to connect to mysql: %v", err)
	}
	redisClient, err := redis.NewClient(cfg.Infra.Redis.Addr, cfg.Infra.Redis.Password, cfg.Infra.Redis.DB)
	if err != nil {
		log.Fatalf("failed to connect to redis: %v", err)
	}
	defer redisClient.Close()
	zkConn, err := zookeeper.Connect(cfg.Infra.Zookeeper.Servers, 10*time.Second)
	if err != nil {
		log.Fatalf("failed to connect to zookeeper: %v", err)
	}
	defer zkConn.Close()
	escalationWriter := mq.NewKafkaWriter(cfg.Infra.Kafka.Brokers, cfg.App.Escalation.MessagingTopic)
	defer escalationWriter.Close()

	tracer := otel.Tracer(serviceName)
	orderRepo := infrastructure.NewGormOrderRepository(db)
	provisioner := application.NewItemProvisioner(
		orderRepo,
		infrastructure.NewGormSubscriptionRepository(db),
		infrastructure.NewGormAvailabilityRepository(db),
		adapter.NewPartnerCenterAdapter(
			httpclient.NewClient(tracer),
			cfg.Infra.Marketplace.BaseURL,
			adapter.NewFileTokenSource(cfg.Infra.Marketplace.TokenFile),
		),
		adapter.NewAttemptRedisAdapter(redisClient),
		tracer,
		time.Duration(cfg.App.ProvisionTimeoutSeconds)*time.Second,
	)
	escalator := application.NewEscalator([]port.EscalationChannel{
		adapter.NewEmailEscalationAdapter(adapter.SMTPConfig{
			Host:       cfg.Infra.Smtp.Host,
			Port:       cfg.Infra.Smtp.Port,
			User:       cfg.Infra.Smtp.User,
			Pass:       cfg.Infra.Smtp.Pass,
			From:       cfg.Infra.Smtp.From,
			Recipients: cfg.App.Escalation.EmailRecipients,
		}),
		adapter.NewKafkaEscalationAdapter(escalationWriter),
	}, tracer)
	service := application.NewFulfillmentService(orderRepo, provisioner, escalator, adapter.NewZkOrderLocker(zkConn), tracer)
	retry := application.NewRetryCoordinator(orderRepo, service, tracer, cfg.App.RetrySweepConcurrency)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)

	ticker := time.NewTicker(sweepInterval)
	defer ticker.Stop()
	log.Printf("✅ Retry sweeper started, sweeping every %v over a %dh window", sweepInterval, windowHours)

	for {
		select {
		case <-ticker.C:
			result, err := retry.RetryRecentFailures(ctx, windowHours)
			if err != nil {
				log.Printf("ERROR: retry sweep failed: %v", err)
				continue
			}
			log.Printf("Retry sweep finished: %d orders retried", result.OrdersRetried)
		case <-quit:
			log.Println("🛑 Retry sweeper shutting down.")
			return
		}
	}
}

func getEnvDuration(key string, fallback time.Duration) time.Duration {
	if v := os.Getenv(key); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			return d
		}
	}
	return fallback
}

func getEnvInt(key string, fallback int) int {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			return n
		}
	}
	return fallback
}
