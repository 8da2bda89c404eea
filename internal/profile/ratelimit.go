package profile

import (
	"sync"
	"time"
)

// RateLimiter 对单个设备令牌施加固定冷却窗口，抑制连续写入。
// 状态只存在于进程内存：重启即清零，多实例部署时各实例独立计数。
// 它是滥用缓解手段而非正确性保证，这种弱一致是可接受的。
type RateLimiter struct {
	mu     sync.Mutex
	window time.Duration
	last   map[string]time.Time
	now    func() time.Time
}

// NewRateLimiter 构造限流器。window 为同一令牌两次放行之间的最小间隔。
func NewRateLimiter(window time.Duration) *RateLimiter {
	return &RateLimiter{
		window: window,
		last:   make(map[string]time.Time),
		now:    time.Now,
	}
}

// Allow 判定该令牌此刻是否可以写入。
// 空令牌直接放行：匿名写入不经过这套机制。
// 只有放行时才记录时间；被拒绝的请求不会顺延冷却窗口。
func (l *RateLimiter) Allow(token string) bool {
	if token == "" {
		return true
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	now := l.now()
	if last, ok := l.last[token]; ok && now.Sub(last) < l.window {
		return false
	}
	l.last[token] = now
	return true
}
