package net

import (
	"context"
	"testing"
)

func TestRotator_EmptyPool(t *testing.T) {
	r := NewRotator(nil, func(_ context.Context, _ string) error { return nil })

	if got := r.Acquire("worker-1"); got != "" {
		t.Errorf("Acquire() = %q, want empty", got)
	}
	// 空池轮换应直接放行，不做探测
	got, err := r.Rotate(context.Background(), "worker-1")
	if err != nil {
		t.Fatalf("Rotate() error = %v", err)
	}
	if got != "" {
		t.Errorf("Rotate() = %q, want empty", got)
	}
}

func TestRotator_AcquireStable(t *testing.T) {
	r := NewRotator([]string{"http://p1:8080", "http://p2:8080"}, func(_ context.Context, _ string) error { return nil })

	first := r.Acquire("worker-1")
	if second := r.Acquire("worker-1"); second != first {
		t.Errorf("未轮换时 Acquire 应返回同一端点: %s vs %s", first, second)
	}
}

func TestRotator_RotateCyclesEndpoints(t *testing.T) {
	var probed []string
	r := NewRotator([]string{"http://p1:8080", "http://p2:8080"}, func(_ context.Context, endpoint string) error {
		probed = append(probed, endpoint)
		return nil
	})

	if got := r.Acquire("worker-1"); got != "http://p1:8080" {
		t.Fatalf("Acquire() = %s, want http://p1:8080", got)
	}

	got, err := r.Rotate(context.Background(), "worker-1")
	if err != nil {
		t.Fatalf("Rotate() error = %v", err)
	}
	if got != "http://p2:8080" {
		t.Errorf("Rotate() = %s, want http://p2:8080", got)
	}
	if r.Acquire("worker-1") != "http://p2:8080" {
		t.Error("轮换后 Acquire 应返回新端点")
	}

	// 再轮换一次应回到第一个端点
	got, err = r.Rotate(context.Background(), "worker-1")
	if err != nil {
		t.Fatalf("Rotate() error = %v", err)
	}
	if got != "http://p1:8080" {
		t.Errorf("Rotate() = %s, want http://p1:8080", got)
	}

	if len(probed) != 2 {
		t.Errorf("probe calls = %d, want 2", len(probed))
	}
}

func TestRotator_KeysIndependent(t *testing.T) {
	r := NewRotator([]string{"http://p1:8080", "http://p2:8080"}, func(_ context.Context, _ string) error { return nil })

	if _, err := r.Rotate(context.Background(), "worker-1"); err != nil {
		t.Fatalf("Rotate() error = %v", err)
	}

	// worker-2 不受 worker-1 轮换影响
	if got := r.Acquire("worker-2"); got != "http://p1:8080" {
		t.Errorf("Acquire(worker-2) = %s, want http://p1:8080", got)
	}
}
