package mq

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/modelibr/modelibr/internal/models"
	"github.com/modelibr/modelibr/internal/pkg/logger"
	amqp "github.com/rabbitmq/amqp091-go"
	"go.uber.org/zap"
)

// 队列名称
const (
	DomainEventQueueName    = "modelibr_domain_events"
	ThumbnailNudgeQueueName = "modelibr_thumbnail_nudge"
)

// RabbitMQClient 封装了 RabbitMQ 的连接和通道
type RabbitMQClient struct {
	conn    *amqp.Connection
	channel *amqp.Channel
}

// NewRabbitMQClient 创建一个新的 RabbitMQ 客户端实例
func NewRabbitMQClient(amqpURL string) (*RabbitMQClient, error) {
	conn, err := amqp.Dial(amqpURL)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to RabbitMQ: %w", err)
	}

	ch, err := conn.Channel()
	if err != nil {
		conn.Close()
		return nil, fmt.Errorf("failed to open a channel: %w", err)
	}

	return &RabbitMQClient{
		conn:    conn,
		channel: ch,
	}, nil
}

// DeclareQueue 声明一个持久化队列
func (c *RabbitMQClient) DeclareQueue(queueName string) (amqp.Queue, error) {
	return c.channel.QueueDeclare(
		queueName, // name
		true,      // durable
		false,     // delete when unused
		false,     // exclusive
		false,     // no-wait
		nil,       // arguments
	)
}

// Publish 向指定队列发布一条持久化消息
func (c *RabbitMQClient) Publish(ctx context.Context, queueName string, body []byte) error {
	return c.channel.PublishWithContext(ctx,
		"",        // exchange (default)
		queueName, // routing key (queue name)
		false,     // mandatory
		false,     // immediate
		amqp.Publishing{
			ContentType:  "application/json",
			Body:         body,
			DeliveryMode: amqp.Persistent,
		},
	)
}

// PublishEvent 序列化并发布一个领域事件
// 发布失败只记录日志：事件通道与持久化事务解耦，不能因此使写路径失败
func (c *RabbitMQClient) PublishEvent(ctx context.Context, event *models.DomainEvent) {
	if event.OccurredAt.IsZero() {
		event.OccurredAt = time.Now()
	}
	body, err := json.Marshal(event)
	if err != nil {
		logger.Error("Failed to marshal domain event", zap.String("type", event.Type), zap.Error(err))
		return
	}
	if err := c.Publish(ctx, DomainEventQueueName, body); err != nil {
		logger.Error("Failed to publish domain event", zap.String("type", event.Type), zap.Error(err))
	}
}

// Nudge 向唤醒队列发一条空消息，提示缩略图 worker 立即轮询
// 纯粹是优化：丢失也无妨，worker 的定时轮询兜底
func (c *RabbitMQClient) Nudge(ctx context.Context) {
	if err := c.Publish(ctx, ThumbnailNudgeQueueName, []byte("{}")); err != nil {
		logger.Warn("Failed to publish worker nudge", zap.Error(err))
	}
}

// Consume 消费指定队列的消息
func (c *RabbitMQClient) Consume(queueName string, handler func(msg amqp.Delivery)) error {
	msgs, err := c.channel.Consume(
		queueName,
		"",    // consumer
		false, // auto-ack (we will manually ack)
		false, // exclusive
		false, // no-local
		false, // no-wait
		nil,   // args
	)
	if err != nil {
		return fmt.Errorf("failed to register a consumer: %w", err)
	}

	go func() {
		for msg := range msgs {
			handler(msg)
		}
	}()

	logger.Info("Waiting for messages", zap.String("queue", queueName))
	return nil
}

// Close 关闭通道和连接
func (c *RabbitMQClient) Close() {
	if c.channel != nil {
		c.channel.Close()
	}
	if c.conn != nil {
		c.conn.Close()
	}
}
