package queue

import (
	"context"
	"path/filepath"
	"testing"
)

func TestFileQueueEnqueuePopOrder(t *testing.T) {
	dir := t.TempDir()
	q := NewFileQueue(filepath.Join(dir, "queue.json"))
	ctx := context.Background()

	if err := q.Enqueue(ctx, Request{JobID: "a", Requirements: []string{"requests"}}); err != nil {
		t.Fatalf("enqueue a: %v", err)
	}
	if err := q.Enqueue(ctx, Request{JobID: "b", Requirements: []string{"flask"}}); err != nil {
		t.Fatalf("enqueue b: %v", err)
	}

	stats, err := q.Stats(ctx)
	if err != nil {
		t.Fatalf("stats: %v", err)
	}
	if stats.Length != 2 {
		t.Fatalf("stats.Length = %d, want 2", stats.Length)
	}

	items, err := q.Pop(ctx, 1)
	if err != nil {
		t.Fatalf("pop: %v", err)
	}
	if len(items) != 1 || items[0].JobID != "a" {
		t.Fatalf("unexpected first pop: %+v", items)
	}

	remaining, err := q.List(ctx)
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(remaining) != 1 || remaining[0].JobID != "b" {
		t.Fatalf("unexpected remaining items: %+v", remaining)
	}

	if err := q.Clear(ctx); err != nil {
		t.Fatalf("clear: %v", err)
	}
	if remaining, err = q.List(ctx); err != nil || len(remaining) != 0 {
		t.Fatalf("expected empty queue after clear, got %+v (err=%v)", remaining, err)
	}
}
