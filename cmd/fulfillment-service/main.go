// cmd/fulfillment-service/main.go
package main

import (
	"context"
	"log"
	"time"

	"go.opentelemetry.io/otel"

	"github.com/doarsal/readymarket-backend-sub003/internal/pkg/bootstrap"
	"github.com/doarsal/readymarket-backend-sub003/internal/pkg/httpclient"
	"github.com/doarsal/readymarket-backend-sub003/internal/pkg/logger"
	"github.com/doarsal/readymarket-backend-sub003/internal/pkg/mq"
	"github.com/doarsal/readymarket-backend-sub003/internal/pkg/redis"
	"github.com/doarsal/readymarket-backend-sub003/internal/service/fulfillment/application"
	"github.com/doarsal/readymarket-backend-sub003/internal/service/fulfillment/domain/port"
	"github.com/doarsal/readymarket-backend-sub003/internal/service/fulfillment/infrastructure"
	"github.com/doarsal/readymarket-backend-sub003/internal/service/fulfillment/infrastructure/adapter"
	"github.com/doarsal/readymarket-backend-sub003/internal/service/fulfillment/interfaces"
	"github.com/doarsal/readymarket-backend-sub003/internal/zookeeper"
)

const serviceName = "fulfillment-service"

// main 函数是应用的"组装根" (Composition Root)
// 它的核心职责是：创建并组装所有依赖项，然后启动应用。
func main() {
	bootstrap.Init()
	logger.Init(serviceName)
	cfg := bootstrap.GetCurrentConfig()

	// 1. 基础设施连接
	db, err := infrastructure.NewMysqlDB(cfg.Infra.Mysql.DSN)
	if err != nil {
		log.Fatalf("failed to connect to mysql: %v", err)
	}

	redisClient, err := redis.NewClient(cfg.Infra.Redis.Addr, cfg.Infra.Redis.Password, cfg.Infra.Redis.DB)
	if err != nil {
		log.Fatalf("failed to connect to redis: %v", err)
	}

	zkConn, err := zookeeper.Connect(cfg.Infra.Zookeeper.Servers, 10*time.Second)
	if err != nil {
		log.Fatalf("failed to connect to zookeeper: %v", err)
	}

	escalationWriter := mq.NewKafkaWriter(cfg.Infra.Kafka.Brokers, cfg.App.Escalation.MessagingTopic)
	paidOrderReader := mq.NewKafkaReader(cfg.Infra.Kafka.Brokers, cfg.Infra.Kafka.PaidOrdersTopic, cfg.Infra.Kafka.ConsumerGroup)

	// 2. 出站适配器
	tracer := otel.Tracer(serviceName)
	orderRepo := infrastructure.NewGormOrderRepository(db)
	subscriptionRepo := infrastructure.NewGormSubscriptionRepository(db)
	availabilityRepo := infrastructure.NewGormAvailabilityRepository(db)

	platform := adapter.NewPartnerCenterAdapter(
		httpclient.NewClient(tracer),
		cfg.Infra.Marketplace.BaseURL,
		adapter.NewFileTokenSource(cfg.Infra.Marketplace.TokenFile),
	)
	attempts := adapter.NewAttemptRedisAdapter(redisClient)
	locker := adapter.NewZkOrderLocker(zkConn)

	channels := []port.EscalationChannel{
		adapter.NewEmailEscalationAdapter(adapter.SMTPConfig{
			Host:       cfg.Infra.Smtp.Host,
			Port:       cfg.Infra.Smtp.Port,
			User:       cfg.Infra.Smtp.User,
			Pass:       cfg.Infra.Smtp.Pass,
			From:       cfg.Infra.Smtp.From,
			Recipients: cfg.App.Escalation.EmailRecipients,
		}),
		adapter.NewKafkaEscalationAdapter(escalationWriter),
	}

	// 3. 应用服务
	provisioner := application.NewItemProvisioner(
		orderRepo, subscriptionRepo, availabilityRepo, platform, attempts, tracer,
		time.Duration(cfg.App.ProvisionTimeoutSeconds)*time.Second,
	)
	escalator := application.NewEscalator(channels, tracer)
	service := application.NewFulfillmentService(orderRepo, provisioner, escalator, locker, tracer)
	retry := application.NewRetryCoordinator(orderRepo, service, tracer, cfg.App.RetrySweepConcurrency)

	// 4. 入站适配器
	consumer := infrastructure.NewPaidOrderConsumerAdapter(paidOrderReader, service)
	consumerCtx, cancelConsumer := context.WithCancel(context.Background())
	consumer.Start(consumerCtx)

	handler := interfaces.NewFulfillmentHandler(service, retry)

	bootstrap.StartService(bootstrap.AppInfo{
		ServiceName: serviceName,
		Port:        8086,
		RegisterHandlers: func(appCtx bootstrap.AppCtx) {
			handler.RegisterRoutes(appCtx.Mux)
		},
		OnShutdown: func(ctx context.Context) {
			cancelConsumer()
			consumer.Stop()
			if err := escalationWriter.Close(); err != nil {
				log.Printf("Error closing escalation writer: %v", err)
			}
			if err := redisClient.Close(); err != nil {
				log.Printf("Error closing redis client: %v", err)
			}
			zkConn.Close()
		},
	})
}
