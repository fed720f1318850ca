package upstream

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"testing"
	"time"
)

type fakeSender struct {
	mu        sync.Mutex
	failNext  int
	callCount int
	order     []string
}

func (f *fakeSender) Send(ctx context.Context, topic, msgType string, payload json.RawMessage) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.callCount++
	f.order = append(f.order, msgType)
	if f.failNext > 0 {
		f.failNext--
		return errors.New("transport error")
	}
	return nil
}

func TestQueueSubmitSucceeds(t *testing.T) {
	sender := &fakeSender{}
	q := NewQueue(sender, 1000)
	defer q.Close()

	err := q.Submit(context.Background(), "0x01", "set", "set", json.RawMessage(`{}`))
	if err != nil {
		t.Fatalf("submit: %v", err)
	}
}

func TestQueueRetriesOnTransportError(t *testing.T) {
	sender := &fakeSender{failNext: 2}
	q := NewQueue(sender, 1000)
	defer q.Close()

	retryBackoffSave := retryBackoff
	retryBackoff = []time.Duration{time.Millisecond, 2 * time.Millisecond, 4 * time.Millisecond}
	defer func() { retryBackoff = retryBackoffSave }()

	err := q.Submit(context.Background(), "0x01", "set", "set", json.RawMessage(`{}`))
	if err != nil {
		t.Fatalf("submit should eventually succeed: %v", err)
	}
	if sender.callCount != 3 {
		t.Fatalf("callCount = %d, want 3 (2 failures + 1 success)", sender.callCount)
	}
}

func TestQueuePreservesPerLightOrder(t *testing.T) {
	sender := &fakeSender{}
	q := NewQueue(sender, 1000)
	defer q.Close()

	for i := 0; i < 5; i++ {
		if err := q.Submit(context.Background(), "0x01", "set", "msg", json.RawMessage(`{}`)); err != nil {
			t.Fatalf("submit %d: %v", i, err)
		}
	}
	if sender.callCount != 5 {
		t.Fatalf("callCount = %d, want 5", sender.callCount)
	}
}
