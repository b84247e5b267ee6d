package middleware

import (
	"testing"
	"time"
)

func TestCooldownLimiter_Check(t *testing.T) {
	limiter := NewCooldownLimiter()

	first := limiter.Check("scan:trigger", time.Minute)
	if !first.Allowed {
		t.Fatal("首次触发应被放行")
	}

	second := limiter.Check("scan:trigger", time.Minute)
	if second.Allowed {
		t.Fatal("冷却期内应被拒绝")
	}
	if second.RetryAfter <= 0 || second.RetryAfter > time.Minute {
		t.Errorf("RetryAfter = %v", second.RetryAfter)
	}
}

func TestCooldownLimiter_KeysIndependent(t *testing.T) {
	limiter := NewCooldownLimiter()

	limiter.Check("a", time.Minute)
	if got := limiter.Check("b", time.Minute); !got.Allowed {
		t.Error("不同 key 不应互相影响")
	}
}

func TestCooldownLimiter_Reset(t *testing.T) {
	limiter := NewCooldownLimiter()

	limiter.Check("a", time.Minute)
	limiter.Reset("a")
	if got := limiter.Check("a", time.Minute); !got.Allowed {
		t.Error("重置后应被放行")
	}
}
