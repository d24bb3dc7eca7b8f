package events

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"

	"cloud.google.com/go/pubsub"
	"google.golang.org/api/option"
)

// PubSubPublisher 发布到 GCP Pub/Sub 主题
type PubSubPublisher struct {
	client *pubsub.Client
	topic  *pubsub.Topic
}

// NewPubSubPublisher 创建发布器，主题不存在时自动创建
func NewPubSubPublisher(ctx context.Context, projectID, topicName string, opts ...option.ClientOption) (*PubSubPublisher, error) {
	if projectID == "" {
		return nil, errors.New("PUBSUB_PROJECT_ID/GOOGLE_CLOUD_PROJECT not set")
	}
	if topicName == "" {
		return nil, errors.New("PUBSUB_TOPIC is required")
	}

	client, err := pubsub.NewClient(ctx, projectID, opts...)
	if err != nil {
		return nil, fmt.Errorf("create pubsub client: %w", err)
	}

	topic := client.Topic(topicName)
	ok, err := topic.Exists(ctx)
	if err != nil {
		_ = client.Close()
		return nil, err
	}
	if !ok {
		topic, err = client.CreateTopic(ctx, topicName)
		if err != nil {
			_ = client.Close()
			return nil, fmt.Errorf("create topic %q: %w", topicName, err)
		}
	}
	// 同一文档的事件按顺序投递
	topic.EnableMessageOrdering = true

	return &PubSubPublisher{client: client, topic: topic}, nil
}

func (p *PubSubPublisher) Publish(ctx context.Context, event LeaseEvent) error {
	data, err := json.Marshal(event)
	if err != nil {
		return err
	}
	result := p.topic.Publish(ctx, &pubsub.Message{
		Data:        data,
		OrderingKey: event.Reference,
		Attributes: map[string]string{
			"type":   string(event.Type),
			"org_id": strconv.FormatUint(uint64(event.OrgID), 10),
		},
	})
	if _, err = result.Get(ctx); err != nil {
		// 开启顺序投递后失败会暂停该 key，恢复后后续事件才能继续发布
		p.topic.ResumePublish(event.Reference)
		return err
	}
	return nil
}

func (p *PubSubPublisher) Close() error {
	p.topic.Stop()
	return p.client.Close()
}
