// Package notify 负责对外发布治理变更事件：每次别名或路由注册都会产生一条
// 携带变更键与新值的通知。
package notify

import (
	"context"
	"sync"
)

// 事件类型常量。
const (
	KindAliasRegistered = "alias_registered"
	KindRouteRegistered = "route_registered"
	KindNamingReplaced  = "naming_replaced"
)

// Event 描述一次治理变更。
type Event struct {
	Kind  string `json:"kind"`
	Key   string `json:"key"`
	Value string `json:"value"`
	At    int64  `json:"at"`
}

// Notifier 定义事件发布的通用接口。
type Notifier interface {
	Publish(ctx context.Context, event Event) error
	Close() error
}

// Nop 丢弃所有事件，用于未配置消息队列的部署。
type Nop struct{}

// Publish 实现 Notifier。
func (Nop) Publish(context.Context, Event) error { return nil }

// Close 实现 Notifier。
func (Nop) Close() error { return nil }

// Memory 在内存中记录事件，供测试断言使用。
type Memory struct {
	mu     sync.Mutex
	events []Event
}

// NewMemory 创建内存通知器。
func NewMemory() *Memory {
	return &Memory{}
}

// Publish 记录事件。
func (m *Memory) Publish(_ context.Context, event Event) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.events = append(m.events, event)
	return nil
}

// Events 返回已记录事件的副本。
func (m *Memory) Events() []Event {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]Event(nil), m.events...)
}

// Close 实现 Notifier。
func (m *Memory) Close() error { return nil }
