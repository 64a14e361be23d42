// Package throttler limits number of renders running at once
package throttler

import (
	"context"
	"time"
)

// defaultBacklogTimeout set to 60s
var defaultBacklogTimeout = time.Second * 60

// Throttler is rate limiter
type Throttler interface {
	Take(ctx context.Context) (taken bool) // Take tries acquire token, false means request has been throttled
	Release()                              // Release returns token to pool
}

// NopThrottler is always return that you can perform given operation
type NopThrottler struct {
}

// NewNopThrottler create instance of NopThrottler
func NewNopThrottler() *NopThrottler {
	return &NopThrottler{}
}

func (*NopThrottler) Take(_ context.Context) bool {
	return true
}

func (*NopThrottler) Release() {

}
