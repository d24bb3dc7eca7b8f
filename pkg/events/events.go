package events

import (
	"context"
	"time"
)

// EventType 租约生命周期事件类型
type EventType string

const (
	EventLeaseGenerated     EventType = "lease.generated"
	EventSignatureRecorded  EventType = "lease.signature_recorded"
	EventLeaseActivated     EventType = "lease.activated"
	EventLeaseDeclined      EventType = "lease.declined"
	EventLeaseTerminated    EventType = "lease.terminated"
	EventLeaseRegenerated   EventType = "lease.regenerated"
	EventDefaultTemplateSet EventType = "lease_template.default_set"
)

// LeaseEvent 对外发布的生命周期事件
type LeaseEvent struct {
	Type       EventType `json:"type"`
	OrgID      uint      `json:"org_id"`
	PropertyID uint      `json:"property_id"`
	DocumentID uint      `json:"document_id,omitempty"`
	Reference  string    `json:"reference,omitempty"`
	TemplateID uint      `json:"template_id,omitempty"`
	Status     string    `json:"status,omitempty"`
	Role       string    `json:"role,omitempty"`
	Reason     string    `json:"reason,omitempty"`
	OccurredAt time.Time `json:"occurred_at"`
}

// Publisher 事件发布器；事务提交后调用，失败只记录日志
type Publisher interface {
	Publish(ctx context.Context, event LeaseEvent) error
	Close() error
}

// NopPublisher 不发布任何事件
type NopPublisher struct{}

func (NopPublisher) Publish(context.Context, LeaseEvent) error { return nil }

func (NopPublisher) Close() error { return nil }

// DocumentChannel 单个租约文档的事件频道
func DocumentChannel(reference string) string {
	return "lease:" + reference
}

// LifecycleList 外部签署服务消费的持久事件列表
const LifecycleList = "lifecycle"
