package eventbus

import (
	"context"
	"encoding/json"
	"log"

	"go-commerce/pkg/config"

	amqp "github.com/rabbitmq/amqp091-go"
)

// ProductMutation 商品变更消息，投递给后台索引 worker
type ProductMutation struct {
	ProductId int64  `json:"product_id"`
	Kind      string `json:"kind"` // created / updated
}

type Bus struct {
	conn  *amqp.Connection
	ch    *amqp.Channel
	queue string
}

// Connect 连接 RabbitMQ 并声明队列
func Connect(cfg config.RabbitmqConfig) (*Bus, error) {
	conn, err := amqp.Dial(cfg.Url)
	if err != nil {
		return nil, err
	}

	ch, err := conn.Channel()
	if err != nil {
		conn.Close()
		return nil, err
	}

	// durable 队列，服务重启不丢消息
	if _, err := ch.QueueDeclare(cfg.Queue, true, false, false, false, nil); err != nil {
		ch.Close()
		conn.Close()
		return nil, err
	}

	log.Printf("RabbitMQ connected successfully, queue: %s", cfg.Queue)
	return &Bus{conn: conn, ch: ch, queue: cfg.Queue}, nil
}

// Publish 发布商品变更消息
func (b *Bus) Publish(ctx context.Context, m ProductMutation) error {
	body, err := json.Marshal(m)
	if err != nil {
		return err
	}

	return b.ch.PublishWithContext(ctx, "", b.queue, false, false, amqp.Publishing{
		ContentType:  "application/json",
		DeliveryMode: amqp.Persistent,
		Body:         body,
	})
}

// Consume 循环消费变更消息，handler 返回 error 时 Nack 重新入队
func (b *Bus) Consume(ctx context.Context, handler func(context.Context, ProductMutation) error) error {
	deliveries, err := b.ch.Consume(b.queue, "", false, false, false, false, nil)
	if err != nil {
		return err
	}

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case d, ok := <-deliveries:
			if !ok {
				return amqp.ErrClosed
			}

			var m ProductMutation
			if err := json.Unmarshal(d.Body, &m); err != nil {
				log.Printf("Dropping malformed reindex message: %v", err)
				d.Nack(false, false)
				continue
			}

			if err := handler(ctx, m); err != nil {
				log.Printf("Reindex job failed for product %d: %v", m.ProductId, err)
				d.Nack(false, true)
				continue
			}

			d.Ack(false)
		}
	}
}

func (b *Bus) Close() {
	b.ch.Close()
	b.conn.Close()
}
