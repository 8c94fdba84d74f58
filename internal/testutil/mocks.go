package testutil

import (
	"encoding/json"
	"fmt"
	"sync"

	"github.com/google/uuid"
)

// MockTransport: in-memory транспорт для unit тестов реестра.
// Хранит все отправленные сообщения; FailSend заставляет Send возвращать ошибку.
type MockTransport struct {
	id string

	mu       sync.Mutex
	messages [][]byte
	closed   bool
	failSend bool
	notify   chan struct{}
}

// NewMockTransport создаёт новый MockTransport с уникальным ID.
func NewMockTransport() *MockTransport {
	return &MockTransport{
		id:     uuid.NewString(),
		notify: make(chan struct{}, 1),
	}
}

// ID returns the transport id.
func (m *MockTransport) ID() string {
	return m.id
}

// Send записывает сообщение (или возвращает ошибку, если FailSend/closed).
func (m *MockTransport) Send(msg []byte) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.closed {
		return fmt.Errorf("transport %s closed", m.id)
	}
	if m.failSend {
		return ErrSimulated
	}
	m.messages = append(m.messages, msg)

	select {
	case m.notify <- struct{}{}:
	default:
	}
	return nil
}

// Close помечает транспорт закрытым.
func (m *MockTransport) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.closed = true
	return nil
}

// Closed reports whether Close was called.
func (m *MockTransport) Closed() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.closed
}

// FailSend makes every following Send fail.
func (m *MockTransport) FailSend() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.failSend = true
}

// Messages returns a copy of everything sent so far.
func (m *MockTransport) Messages() [][]byte {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([][]byte, len(m.messages))
	copy(out, m.messages)
	return out
}

// EventTypes returns the "type" field of every sent message, in order.
func (m *MockTransport) EventTypes() []string {
	msgs := m.Messages()
	types := make([]string, 0, len(msgs))
	for _, raw := range msgs {
		var head struct {
			Type string `json:"type"`
		}
		_ = json.Unmarshal(raw, &head)
		types = append(types, head.Type)
	}
	return types
}

// Notify fires (coalesced) after each successful Send.
func (m *MockTransport) Notify() <-chan struct{} {
	return m.notify
}
