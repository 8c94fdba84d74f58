package testutil

import (
	"encoding/json"
	"testing"
	"time"
)

// DecodeEvent разбирает JSON-событие в map; тест падает при ошибке.
func DecodeEvent(t testing.TB, raw []byte) map[string]any {
	t.Helper()

	var m map[string]any
	if err := json.Unmarshal(raw, &m); err != nil {
		t.Fatalf("decoding event %q: %v", raw, err)
	}
	return m
}

// AssertEventType проверяет поле "type" события.
func AssertEventType(t testing.TB, expected string, raw []byte) map[string]any {
	t.Helper()

	m := DecodeEvent(t, raw)
	if got, _ := m["type"].(string); got != expected {
		t.Fatalf("event type mismatch: expected %q, got %q (%s)", expected, got, raw)
	}
	return m
}

// WaitFor polls cond every 5ms until it holds or timeout elapses.
func WaitFor(t testing.TB, timeout time.Duration, cond func() bool, msg string) {
	t.Helper()

	deadline := time.Now().Add(timeout)
	for !cond() {
		if time.Now().After(deadline) {
			t.Fatalf("timed out after %v: %s", timeout, msg)
		}
		time.Sleep(5 * time.Millisecond)
	}
}
