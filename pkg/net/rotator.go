package net

import (
	"context"
	"fmt"
	"log"
	"net/http"
	"net/url"
	"sync"
	"time"
)

// 就绪探测节奏：换代理后每 3 秒探一次，最多 10 次
const (
	readyPollInterval = 3 * time.Second
	readyPollMax      = 10
)

// Rotator 出口代理轮换器 (通用组件)
// 每个 worker key 绑定一个代理端点，故障时轮换到下一个并等待就绪
type Rotator interface {
	// Acquire 获取当前绑定的代理地址，代理池为空时返回空串 (直连)
	Acquire(key string) string

	// Rotate 上报当前代理失效，切换到下一个端点并等待其就绪
	// 返回新端点；代理池为空时直接返回空串
	Rotate(ctx context.Context, key string) (string, error)
}

// ReadyProbe 就绪探测函数，返回 nil 表示端点可用
type ReadyProbe func(ctx context.Context, endpoint string) error

// proxyRotator 是 Rotator 接口的具体实现
// 注意：它是私有的，外部只能通过 NewRotator 获取接口
type proxyRotator struct {
	mu        sync.Mutex
	endpoints []string
	cursor    map[string]int
	probe     ReadyProbe
}

var _ Rotator = (*proxyRotator)(nil)

// NewRotator 创建轮换器
// probe 传 nil 时使用默认的 HTTP HEAD 探测
func NewRotator(endpoints []string, probe ReadyProbe) Rotator {
	if probe == nil {
		probe = defaultProbe
	}
	return &proxyRotator{
		endpoints: endpoints,
		cursor:    make(map[string]int),
		probe:     probe,
	}
}

func (r *proxyRotator) Acquire(key string) string {
	r.mu.Lock()
	defer r.mu.Unlock()

	if len(r.endpoints) == 0 {
		return ""
	}
	return r.endpoints[r.cursor[key]%len(r.endpoints)]
}

func (r *proxyRotator) Rotate(ctx context.Context, key string) (string, error) {
	r.mu.Lock()
	if len(r.endpoints) == 0 {
		r.mu.Unlock()
		return "", nil
	}
	r.cursor[key]++
	endpoint := r.endpoints[r.cursor[key]%len(r.endpoints)]
	r.mu.Unlock()

	log.Printf("[Rotator] Key %s rotated to %s, waiting for readiness...", key, endpoint)

	// 轮换后的端点需要探测通过才能投入使用
	var lastErr error
	for i := 0; i < readyPollMax; i++ {
		if err := r.probe(ctx, endpoint); err == nil {
			return endpoint, nil
		} else {
			lastErr = err
		}

		select {
		case <-ctx.Done():
			return "", ctx.Err()
		case <-time.After(readyPollInterval):
		}
	}
	return "", fmt.Errorf("proxy %s not ready after %d attempts: %v", endpoint, readyPollMax, lastErr)
}

// defaultProbe 通过目标代理发一个 HEAD 请求验证连通性
func defaultProbe(ctx context.Context, endpoint string) error {
	proxyURL, err := url.Parse(endpoint)
	if err != nil {
		return err
	}

	client := &http.Client{
		Transport: &http.Transport{Proxy: http.ProxyURL(proxyURL)},
		Timeout:   10 * time.Second,
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodHead, "https://jp.mercari.com/", nil)
	if err != nil {
		return err
	}
	resp, err := client.Do(req)
	if err != nil {
		return err
	}
	resp.Body.Close()
	return nil
}
