// internal/service/fulfillment/infrastructure/adapter/notification_kafka_adapter.go
package adapter

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"

	"github.com/segmentio/kafka-go"

	"github.com/doarsal/readymarket-backend-sub003/internal/pkg/mq"
	"github.com/doarsal/readymarket-backend-sub003/internal/service/fulfillment/domain/port"
)

// KafkaEscalationAdapter 实现了 port.EscalationChannel 接口。
// 它把失败摘要发布到运维消息主题，由下游的消息桥（企业 IM 机器人）
// 消费后推送到值班频道。
type KafkaEscalationAdapter struct {
	writer *kafka.Writer
}

// NewKafkaEscalationAdapter 创建一个新的消息通道适配器。
// writer 已绑定好目标主题，主题名来自配置。
func NewKafkaEscalationAdapter(writer *kafka.Writer) *KafkaEscalationAdapter {
	return &KafkaEscalationAdapter{writer: writer}
}

func (a *KafkaEscalationAdapter) Name() string {
	return "messaging"
}

// Send 把整份结构化摘要序列化后投递。
// 消息 key 取订单 id，同一订单的升级保持分区内有序。
func (a *KafkaEscalationAdapter) Send(ctx context.Context, payload *port.EscalationPayload) error {
	value, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("failed to marshal escalation payload: %w", err)
	}
	key := []byte(strconv.FormatUint(uint64(payload.OrderID), 10))

	// mq.ProduceMessage 会自动把追踪上下文注入消息头
	return mq.ProduceMessage(ctx, a.writer, key, value)
}

// Close 关闭底层的Kafka writer。
func (a *KafkaEscalationAdapter) Close() error {
	return a.writer.Close()
}
