package queue

import (
	"context"
	"testing"

	miniredis "github.com/alicebob/miniredis/v2"
)

func TestRedisQueueEnqueuePopStats(t *testing.T) {
	mr, err := miniredis.Run()
	if err != nil {
		t.Fatalf("start miniredis: %v", err)
	}
	defer mr.Close()

	q := NewRedisQueue("redis://"+mr.Addr(), "test:jobs")
	ctx := context.Background()

	if err := q.Enqueue(ctx, Request{JobID: "a", Requirements: []string{"requests>=2.0"}}); err != nil {
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
		t.Fatalf("unexpected pop order: %+v", items)
	}

	remaining, err := q.List(ctx)
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(remaining) != 1 || remaining[0].JobID != "b" {
		t.Fatalf("unexpected remaining items: %+v", remaining)
	}
}
