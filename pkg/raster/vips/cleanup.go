package vips

import (
	"sync"
	"sync/atomic"
	"time"

	"github.com/aldor007/easel/pkg/monitoring"
	"github.com/h2non/bimg"
	"go.uber.org/zap"
)

// IdleCleanup drops libvips operation cache when no render happened for idle timeout
type IdleCleanup struct {
	enabled       bool
	idleTimeout   time.Duration
	checkInterval time.Duration
	safetyBuffer  time.Duration
	lastActivity  atomic.Int64 // unix nano
	active        atomic.Int32
	cleanups      atomic.Int64
	stop          chan struct{}
	stopOnce      sync.Once
	mu            sync.Mutex
	dropCache     func()
}

// NewIdleCleanup creates cleanup manager, disabled manager does nothing
func NewIdleCleanup(enabled bool, timeoutMinutes int) *IdleCleanup {
	return newIdleCleanup(enabled, time.Duration(timeoutMinutes)*time.Minute, 30*time.Second, bimg.VipsCacheDropAll)
}

func newIdleCleanup(enabled bool, timeout, safetyBuffer time.Duration, drop func()) *IdleCleanup {
	if !enabled {
		return &IdleCleanup{}
	}

	interval := timeout / 3
	if interval <= 0 {
		interval = time.Minute
	}

	c := &IdleCleanup{
		enabled:       true,
		idleTimeout:   timeout,
		checkInterval: interval,
		safetyBuffer:  safetyBuffer,
		stop:          make(chan struct{}),
		dropCache:     drop,
	}
	c.lastActivity.Store(time.Now().UnixNano())
	return c
}

// Start runs background loop
func (c *IdleCleanup) Start() {
	if !c.enabled {
		return
	}

	go c.loop()
	monitoring.Log().Info("IdleCleanup started", zap.Duration("idleTimeout", c.idleTimeout), zap.Duration("checkInterval", c.checkInterval))
}

// Stop ends background loop, it is safe to call it many times
func (c *IdleCleanup) Stop() {
	if !c.enabled {
		return
	}

	c.stopOnce.Do(func() {
		close(c.stop)
		monitoring.Log().Info("IdleCleanup stopped")
	})
}

// BeginProcessing marks render start, cache isn't dropped while any render is active
func (c *IdleCleanup) BeginProcessing() {
	if !c.enabled {
		return
	}

	c.active.Add(1)
	c.lastActivity.Store(time.Now().UnixNano())
}

// EndProcessing marks render end
func (c *IdleCleanup) EndProcessing() {
	if !c.enabled {
		return
	}

	c.active.Add(-1)
	c.lastActivity.Store(time.Now().UnixNano())
}

// Cleanups returns number of performed cache drops
func (c *IdleCleanup) Cleanups() int64 {
	return c.cleanups.Load()
}

func (c *IdleCleanup) idleFor() time.Duration {
	return time.Since(time.Unix(0, c.lastActivity.Load()))
}

func (c *IdleCleanup) loop() {
	ticker := time.NewTicker(c.checkInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			c.check()
		case <-c.stop:
			return
		}
	}
}

func (c *IdleCleanup) check() {
	if c.idleFor() < c.idleTimeout {
		return
	}

	// wait a bit longer so request arriving right now can start
	select {
	case <-time.After(c.safetyBuffer):
	case <-c.stop:
		return
	}

	if c.idleFor() < c.idleTimeout {
		monitoring.Log().Debug("IdleCleanup activity during safety buffer, skipping")
		return
	}

	c.cleanup()
}

func (c *IdleCleanup) cleanup() {
	c.mu.Lock()
	defer c.mu.Unlock()

	if active := c.active.Load(); active > 0 {
		monitoring.Log().Debug("IdleCleanup skipping, renders in progress", zap.Int32("active", active))
		return
	}

	c.dropCache()
	c.cleanups.Add(1)
	monitoring.Report().Inc("vips_cleanup_count")
	monitoring.Log().Info("IdleCleanup dropped libvips cache", zap.Int64("total", c.cleanups.Load()))
}
