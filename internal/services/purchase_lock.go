// internal/services/purchase_lock.go
package services

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"
)

// PurchaseLocker guards against double-submission: only one purchase
// per (asset, buyer) pair may be in flight at a time.
type PurchaseLocker interface {
	Acquire(ctx context.Context, assetID, buyerAddress string) (bool, error)
	Release(ctx context.Context, assetID, buyerAddress string) error
}

const purchaseLockTTL = 10 * time.Minute

// RedisPurchaseLock stores in-flight markers in Redis so the guard
// holds across server instances.
type RedisPurchaseLock struct {
	client *redis.Client
}

func NewRedisPurchaseLock(client *redis.Client) *RedisPurchaseLock {
	return &RedisPurchaseLock{client: client}
}

func purchaseLockKey(assetID, buyerAddress string) string {
	return fmt.Sprintf("purchase:inflight:%s:%s", assetID, buyerAddress)
}

func (l *RedisPurchaseLock) Acquire(ctx context.Context, assetID, buyerAddress string) (bool, error) {
	ok, err := l.client.SetNX(ctx, purchaseLockKey(assetID, buyerAddress), time.Now().Unix(), purchaseLockTTL).Result()
	if err != nil {
		return false, fmt.Errorf("failed to acquire purchase lock: %w", err)
	}
	return ok, nil
}

func (l *RedisPurchaseLock) Release(ctx context.Context, assetID, buyerAddress string) error {
	if err := l.client.Del(ctx, purchaseLockKey(assetID, buyerAddress)).Err(); err != nil {
		return fmt.Errorf("failed to release purchase lock: %w", err)
	}
	return nil
}

// MemoryPurchaseLock is the single-instance fallback used when Redis is
// not configured, and in tests.
type MemoryPurchaseLock struct {
	mtx      sync.Mutex
	inFlight map[string]time.Time
}

func NewMemoryPurchaseLock() *MemoryPurchaseLock {
	return &MemoryPurchaseLock{inFlight: make(map[string]time.Time)}
}

func (l *MemoryPurchaseLock) Acquire(_ context.Context, assetID, buyerAddress string) (bool, error) {
	l.mtx.Lock()
	defer l.mtx.Unlock()

	key := purchaseLockKey(assetID, buyerAddress)
	if acquired, ok := l.inFlight[key]; ok && time.Since(acquired) < purchaseLockTTL {
		return false, nil
	}
	l.inFlight[key] = time.Now()
	return true, nil
}

func (l *MemoryPurchaseLock) Release(_ context.Context, assetID, buyerAddress string) error {
	l.mtx.Lock()
	defer l.mtx.Unlock()
	delete(l.inFlight, purchaseLockKey(assetID, buyerAddress))
	return nil
}
