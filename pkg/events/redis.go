package events

import (
	"context"

	"leasehub/pkg/queue"
)

// RedisPublisher 通过 Redis 发布：文档频道用于实时推送，列表用于外部消费
type RedisPublisher struct {
	queue *queue.RedisQueue
}

// NewRedisPublisher 创建 Redis 事件发布器
func NewRedisPublisher(q *queue.RedisQueue) *RedisPublisher {
	return &RedisPublisher{queue: q}
}

func (p *RedisPublisher) Publish(ctx context.Context, event LeaseEvent) error {
	if event.Reference != "" {
		if err := p.queue.PublishMessage(ctx, DocumentChannel(event.Reference), event); err != nil {
			return err
		}
	}
	return p.queue.Push(ctx, LifecycleList, event)
}

// Close 连接由 database 包统一关闭
func (p *RedisPublisher) Close() error { return nil }
