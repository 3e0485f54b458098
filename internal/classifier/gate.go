package classifier

import (
	"context"
	"errors"
	"sync"
	"time"

	"golang.org/x/time/rate"
)

// ErrQuotaExceeded is attached to outcomes refused by the quota.
var ErrQuotaExceeded = errors.New("classifier call quota exhausted")

// Quota is a per-video external call budget shared by every chunk worker of
// that video. It is safe for concurrent use.
type Quota struct {
	mu    sync.Mutex
	limit int
	used  int
}

// NewQuota returns a budget of limit calls. A limit of zero refuses every call.
func NewQuota(limit int) *Quota {
	if limit < 0 {
		limit = 0
	}
	return &Quota{limit: limit}
}

// TryAcquire consumes one call if any remain.
func (q *Quota) TryAcquire() bool {
	q.mu.Lock()
	defer q.mu.Unlock()
	if q.used >= q.limit {
		return false
	}
	q.used++
	return true
}

// Used returns the number of calls consumed.
func (q *Quota) Used() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.used
}

// Remaining returns the number of calls left.
func (q *Quota) Remaining() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.limit - q.used
}

// Gate wraps a provider with a minimum interval between calls and a call
// quota. Once the quota is spent every batch is answered with
// quota_exceeded without calling out.
type Gate struct {
	provider BatchClassifier
	limiter  *rate.Limiter
	quota    *Quota
}

// NewGate builds a gate. A nil provider makes every batch disabled; a
// non-positive interval disables rate limiting.
func NewGate(provider BatchClassifier, minInterval time.Duration, quota *Quota) *Gate {
	limit := rate.Inf
	if minInterval > 0 {
		limit = rate.Every(minInterval)
	}
	if quota == nil {
		quota = NewQuota(0)
	}
	return &Gate{
		provider: provider,
		limiter:  rate.NewLimiter(limit, 1),
		quota:    quota,
	}
}

// Quota returns the gate's shared budget.
func (g *Gate) Quota() *Quota {
	return g.quota
}

// ClassifyBatch implements BatchClassifier.
func (g *Gate) ClassifyBatch(ctx context.Context, jpeg []byte) Outcome {
	if g.provider == nil {
		return Outcome{Status: StatusDisabled}
	}
	if g.quota.Remaining() <= 0 {
		return Outcome{Status: StatusQuotaExceeded, Err: ErrQuotaExceeded}
	}
	// The slot is taken only after the wait so a cancelled wait costs nothing.
	if err := g.limiter.Wait(ctx); err != nil {
		return Outcome{Status: StatusCancelled, Err: err}
	}
	if !g.quota.TryAcquire() {
		return Outcome{Status: StatusQuotaExceeded, Err: ErrQuotaExceeded}
	}
	return g.provider.ClassifyBatch(ctx, jpeg)
}
