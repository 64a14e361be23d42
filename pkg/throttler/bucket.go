package throttler

import (
	"context"
	"time"

	"github.com/aldor007/easel/pkg/monitoring"
)

// BucketThrottler is implementation of token-bucket algorithm for limiting concurrent renders.
// At most limit renders run, next backlog requests wait up to backlogTimeout for free slot
type BucketThrottler struct {
	tokens         chan struct{}
	backlogTokens  chan struct{}
	backlogTimeout time.Duration
}

// NewBucketThrottler create a new instance of BucketThrottler without backlog
func NewBucketThrottler(limit int) *BucketThrottler {
	return NewBucketThrottlerBacklog(limit, 0, defaultBacklogTimeout)
}

// NewBucketThrottlerBacklog crete a new instance of Throttler which more configuration options
func NewBucketThrottlerBacklog(limit int, backlog int, timeout time.Duration) *BucketThrottler {
	max := limit + backlog
	t := &BucketThrottler{
		tokens:         make(chan struct{}, limit),
		backlogTokens:  make(chan struct{}, max),
		backlogTimeout: timeout,
	}

	for i := 0; i < max; i++ {
		if i < limit {
			t.tokens <- struct{}{}
		}
		t.backlogTokens <- struct{}{}
	}
	return t
}

// Take retrieve a token from bucket
func (t *BucketThrottler) Take(ctx context.Context) bool {
	select {
	case <-ctx.Done():
		return t.throttled()
	case btok := <-t.backlogTokens:
		defer func() {
			t.backlogTokens <- btok
		}()

		timer := time.NewTimer(t.backlogTimeout)
		defer timer.Stop()

		select {
		case <-t.tokens:
			return true
		case <-ctx.Done():
			return t.throttled()
		case <-timer.C:
			return t.throttled()
		}
	default:
		return t.throttled()
	}
}

func (t *BucketThrottler) throttled() bool {
	monitoring.Report().Inc("throttled_count")
	return false
}

// Release return toke to bucket
func (t *BucketThrottler) Release() {
	t.tokens <- struct{}{}
}
