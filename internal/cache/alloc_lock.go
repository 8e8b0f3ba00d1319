package cache

import (
	"context"
	"fmt"
	"sync"
	"time"
)

// AllocLock 按品类互斥的配货锁。
//
// Redis 可用时使用 SETNX 租约（多实例部署下同品类的配货与入库串行），
// 否则退化为进程内集合。获取失败立即返回 false，不排队不等待。
type AllocLock struct {
	mu   sync.Mutex
	held map[uint]bool
	ttl  time.Duration
}

// NewAllocLock 创建配货锁
func NewAllocLock(ttl time.Duration) *AllocLock {
	if ttl <= 0 {
		ttl = 30 * time.Second
	}
	return &AllocLock{
		held: make(map[uint]bool),
		ttl:  ttl,
	}
}

// TryAcquire 尝试获取品类锁，失败立即返回 false
func (l *AllocLock) TryAcquire(ctx context.Context, fruitTypeID uint) (bool, error) {
	if l == nil || fruitTypeID == 0 {
		return false, nil
	}
	if Enabled() {
		ok, err := redisClient.SetNX(ctx, l.key(fruitTypeID), 1, l.ttl).Result()
		if err != nil {
			return false, err
		}
		return ok, nil
	}

	l.mu.Lock()
	defer l.mu.Unlock()
	if l.held[fruitTypeID] {
		return false, nil
	}
	l.held[fruitTypeID] = true
	return true, nil
}

// Release 释放品类锁（任何路径都必须调用）
func (l *AllocLock) Release(ctx context.Context, fruitTypeID uint) {
	if l == nil || fruitTypeID == 0 {
		return
	}
	if Enabled() {
		_ = redisClient.Del(ctx, l.key(fruitTypeID)).Err()
		return
	}
	l.mu.Lock()
	delete(l.held, fruitTypeID)
	l.mu.Unlock()
}

func (l *AllocLock) key(fruitTypeID uint) string {
	return buildKey(fmt.Sprintf("alloc_lock:%d", fruitTypeID))
}
