package events

import (
	"context"
	"fmt"
	"math"
	"sync"
	"time"

	"github.com/trigg3rX/pumpkit-operator/pkg/logging"
	"github.com/trigg3rX/pumpkit-operator/pkg/retry"
)

// ReconnectConfig holds resubscription backoff settings. MaxRetries 0 means
// retry forever.
type ReconnectConfig struct {
	MaxRetries    int
	BaseDelay     time.Duration
	MaxDelay      time.Duration
	BackoffFactor float64
	Jitter        bool
}

func DefaultReconnectConfig() ReconnectConfig {
	return ReconnectConfig{
		MaxRetries:    0,
		BaseDelay:     time.Second,
		MaxDelay:      time.Minute,
		BackoffFactor: 2.0,
		Jitter:        true,
	}
}

// ReconnectManager paces resubscription attempts for one topic
type ReconnectManager struct {
	name           string
	logger         logging.Logger
	config         ReconnectConfig
	mu             sync.RWMutex
	reconnectCount int
}

func NewReconnectManager(name string, config ReconnectConfig, logger logging.Logger) *ReconnectManager {
	def := DefaultReconnectConfig()
	if config.BaseDelay <= 0 {
		config.BaseDelay = def.BaseDelay
	}
	if config.MaxDelay < config.BaseDelay {
		config.MaxDelay = max(def.MaxDelay, config.BaseDelay)
	}
	if config.BackoffFactor < 1 {
		config.BackoffFactor = def.BackoffFactor
	}
	return &ReconnectManager{name: name, logger: logger, config: config}
}

// Wait sleeps for the next backoff delay. It fails once MaxRetries
// consecutive attempts have been used or ctx ends.
func (rm *ReconnectManager) Wait(ctx context.Context, cause error) error {
	attempt := rm.GetReconnectCount() + 1
	if rm.config.MaxRetries > 0 && attempt > rm.config.MaxRetries {
		return fmt.Errorf("max reconnection attempts (%d) reached for %s: %w", rm.config.MaxRetries, rm.name, cause)
	}

	delay := rm.calculateDelay()
	rm.logger.Warnf("Resubscribing to %s in %v (attempt %d): %v", rm.name, delay, attempt, cause)

	timer := time.NewTimer(delay)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
	}

	rm.mu.Lock()
	rm.reconnectCount++
	rm.mu.Unlock()
	return nil
}

func (rm *ReconnectManager) calculateDelay() time.Duration {
	attempts := rm.GetReconnectCount()

	delay := time.Duration(float64(rm.config.BaseDelay) * math.Pow(rm.config.BackoffFactor, float64(attempts)))
	if delay > rm.config.MaxDelay || delay <= 0 {
		delay = rm.config.MaxDelay
	}
	if rm.config.Jitter {
		delay = retry.CalculateDelayWithJitter(delay, 0.25)
	}
	return delay
}

func (rm *ReconnectManager) GetReconnectCount() int {
	rm.mu.RLock()
	defer rm.mu.RUnlock()
	return rm.reconnectCount
}

// Reset is called once a subscription is established again
func (rm *ReconnectManager) Reset() {
	rm.mu.Lock()
	defer rm.mu.Unlock()
	if rm.reconnectCount > 0 {
		rm.logger.Infof("Resubscribed to %s after %d attempts", rm.name, rm.reconnectCount)
	}
	rm.reconnectCount = 0
}
