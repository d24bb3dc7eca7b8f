package queue

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/go-redis/redis/v8"
)

// RedisQueue Redis 频道与事件列表
type RedisQueue struct {
	client  *redis.Client
	prefix  string
	maxList int64
}

// Config Redis配置
type Config struct {
	Host     string
	Port     int
	Password string
	DB       int
	Prefix   string
	// MaxListLength 事件列表保留的最大条数，0 使用默认值
	MaxListLength int64
}

// NewRedisQueue 创建Redis队列实例
func NewRedisQueue(config *Config) *RedisQueue {
	client := redis.NewClient(&redis.Options{
		Addr:     fmt.Sprintf("%s:%d", config.Host, config.Port),
		Password: config.Password,
		DB:       config.DB,
	})
	return NewRedisQueueWithClient(client, config.Prefix, config.MaxListLength)
}

// NewRedisQueueWithClient 使用已有客户端创建
func NewRedisQueueWithClient(client *redis.Client, prefix string, maxList int64) *RedisQueue {
	if prefix == "" {
		prefix = "leasehub:events"
	}
	if maxList <= 0 {
		maxList = 10000
	}
	return &RedisQueue{
		client:  client,
		prefix:  prefix,
		maxList: maxList,
	}
}

// Close 关闭Redis连接
func (q *RedisQueue) Close() error {
	return q.client.Close()
}

// Ping 测试Redis连接
func (q *RedisQueue) Ping(ctx context.Context) error {
	return q.client.Ping(ctx).Err()
}

// GetClient 获取Redis客户端（用于高级操作）
func (q *RedisQueue) GetClient() *redis.Client {
	return q.client
}

// Push 追加到持久事件列表（左侧入队），供签署服务等外部消费者拉取
func (q *RedisQueue) Push(ctx context.Context, list string, message interface{}) error {
	data, err := json.Marshal(message)
	if err != nil {
		return fmt.Errorf("序列化消息失败: %v", err)
	}

	key := q.ListKey(list)
	pipe := q.client.TxPipeline()
	pipe.LPush(ctx, key, data)
	pipe.LTrim(ctx, key, 0, q.maxList-1)
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("事件入队失败: %v", err)
	}
	return nil
}

// Pop 从列表右侧阻塞取出一条消息
func (q *RedisQueue) Pop(ctx context.Context, list string, dest interface{}) (bool, error) {
	result, err := q.client.BRPop(ctx, 0, q.ListKey(list)).Result()
	if err == redis.Nil {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	if len(result) < 2 {
		return false, nil
	}
	if err := json.Unmarshal([]byte(result[1]), dest); err != nil {
		return false, fmt.Errorf("解析消息失败: %v", err)
	}
	return true, nil
}

// PublishMessage 发布消息到指定频道
func (q *RedisQueue) PublishMessage(ctx context.Context, channel string, message interface{}) error {
	data, err := json.Marshal(message)
	if err != nil {
		return fmt.Errorf("序列化消息失败: %v", err)
	}

	if err := q.client.Publish(ctx, q.ChannelKey(channel), data).Err(); err != nil {
		return fmt.Errorf("发布消息失败: %v", err)
	}
	return nil
}

// SubscribeChannel 订阅指定频道
func (q *RedisQueue) SubscribeChannel(ctx context.Context, channel string) *redis.PubSub {
	return q.client.Subscribe(ctx, q.ChannelKey(channel))
}

// ChannelKey 频道完整键名
func (q *RedisQueue) ChannelKey(channel string) string {
	return fmt.Sprintf("%s:channel:%s", q.prefix, channel)
}

// ListKey 列表完整键名
func (q *RedisQueue) ListKey(list string) string {
	return fmt.Sprintf("%s:list:%s", q.prefix, list)
}
