package logx

import (
	"testing"
	"time"
)

func TestLoggerComponent(t *testing.T) {
	logger := NewLogger("engine")
	if logger.GetComponent() != "engine" {
		t.Errorf("expected component 'engine', got %s", logger.GetComponent())
	}
}

func TestLogBufferCapturesEntries(t *testing.T) {
	logger := NewLogger("buffer-test")
	logger.Info("hello %s", "world")

	entries := GetRecentLogEntries("buffer-test", time.Time{})
	if len(entries) == 0 {
		t.Fatal("expected at least one buffered entry")
	}

	last := entries[len(entries)-1]
	if last.Message != "hello world" {
		t.Errorf("expected message 'hello world', got %q", last.Message)
	}
	if last.Level != string(LevelInfo) {
		t.Errorf("expected level INFO, got %s", last.Level)
	}
}

func TestLogBufferComponentFilter(t *testing.T) {
	a := NewLogger("component-a")
	b := NewLogger("component-b")
	a.Info("from a")
	b.Info("from b")

	entries := GetRecentLogEntries("component-a", time.Time{})
	for _, entry := range entries {
		if entry.Component != "component-a" {
			t.Errorf("filter leaked entry from %s", entry.Component)
		}
	}
}

func TestLogBufferMaxSize(t *testing.T) {
	buffer := &InMemoryLogBuffer{maxSize: 5}
	for i := 0; i < 10; i++ {
		buffer.AddLogEntry(&LogEntry{Component: "trim", Message: "m"})
	}
	if len(buffer.entries) != 5 {
		t.Errorf("expected 5 entries after trim, got %d", len(buffer.entries))
	}
}

func TestWrapNil(t *testing.T) {
	if err := Wrap(nil, "context"); err != nil {
		t.Errorf("Wrap(nil) should return nil, got %v", err)
	}
}

func TestErrorfReturnsError(t *testing.T) {
	err := Errorf("boom: %d", 42)
	if err == nil || err.Error() != "boom: 42" {
		t.Errorf("unexpected error: %v", err)
	}
}
