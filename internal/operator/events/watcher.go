// Package events turns the service manager's task logs into a stream of
// TaskEvents, resubscribing and backfilling when the subscription drops.
package events

import (
	"context"
	"errors"
	"fmt"
	"math/big"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/rpc"

	"github.com/trigg3rX/pumpkit-operator/internal/operator/contracts"
	"github.com/trigg3rX/pumpkit-operator/pkg/logging"
)

// LogSource is the chain access the watcher needs. Both ethclient.Client and
// the eigensdk instrumented client satisfy it.
type LogSource interface {
	BlockNumber(ctx context.Context) (uint64, error)
	FilterLogs(ctx context.Context, q ethereum.FilterQuery) ([]types.Log, error)
	SubscribeFilterLogs(ctx context.Context, q ethereum.FilterQuery, ch chan<- types.Log) (ethereum.Subscription, error)
}

type Config struct {
	ServiceManager common.Address
	// StartBlock is where the first backfill starts, 0 means the current head
	StartBlock    uint64
	PollInterval  time.Duration
	MaxBlockRange uint64
	BufferSize    int
	Reconnect     ReconnectConfig
}

func DefaultConfig() Config {
	return Config{
		PollInterval:  5 * time.Second,
		MaxBlockRange: 1000,
		BufferSize:    64,
		Reconnect:     DefaultReconnectConfig(),
	}
}

var errSubscriptionClosed = errors.New("subscription closed")

type Watcher struct {
	src    LogSource
	cfg    Config
	logger logging.Logger
	live   atomic.Int32
}

func NewWatcher(src LogSource, cfg Config, logger logging.Logger) (*Watcher, error) {
	if src == nil {
		return nil, errors.New("log source is required")
	}
	if cfg.ServiceManager == (common.Address{}) {
		return nil, errors.New("service manager address is required")
	}
	def := DefaultConfig()
	if cfg.PollInterval <= 0 {
		cfg.PollInterval = def.PollInterval
	}
	if cfg.MaxBlockRange == 0 {
		cfg.MaxBlockRange = def.MaxBlockRange
	}
	if cfg.BufferSize <= 0 {
		cfg.BufferSize = def.BufferSize
	}
	return &Watcher{src: src, cfg: cfg, logger: logger}, nil
}

// Live reports whether every topic currently has a working subscription or poller
func (w *Watcher) Live() bool {
	return w.live.Load() == int32(len(watchedKinds))
}

var watchedKinds = []struct {
	kind  Kind
	event string
}{
	{TokenDataCreated, contracts.EventNewTokenDataCreated},
	{TokenDetailRequested, contracts.EventNewTokenDetailRequested},
}

// Watch starts one goroutine per event topic and multiplexes their events
// into the returned channel, which is closed after ctx is cancelled.
// Events are ordered within a topic only, and may be redelivered after a
// resubscription.
func (w *Watcher) Watch(ctx context.Context) <-chan TaskEvent {
	out := make(chan TaskEvent, w.cfg.BufferSize)

	var wg sync.WaitGroup
	for _, k := range watchedKinds {
		topic, err := contracts.EventID(k.event)
		if err != nil {
			w.logger.Error("Unknown event topic", "event", k.event, "error", err)
			continue
		}
		t := &topicWatch{
			Watcher:   w,
			kind:      k.kind,
			topic:     topic,
			logger:    w.logger.With("event", k.event),
			reconnect: NewReconnectManager(k.event, w.cfg.Reconnect, w.logger),
		}
		wg.Add(1)
		go func() {
			defer wg.Done()
			t.run(ctx, out)
		}()
	}

	go func() {
		wg.Wait()
		close(out)
	}()

	return out
}

type topicWatch struct {
	*Watcher
	kind      Kind
	topic     common.Hash
	logger    logging.Logger
	reconnect *ReconnectManager

	// cursor is the first block the next backfill scans
	cursor uint64
	live   bool
}

func (t *topicWatch) run(ctx context.Context, out chan<- TaskEvent) {
	defer t.setLive(false)

	if err := t.initCursor(ctx); err != nil {
		return
	}

	for ctx.Err() == nil {
		err := t.subscribe(ctx, out)
		if ctx.Err() != nil {
			return
		}
		if isNotificationsUnsupported(err) {
			t.logger.Info("Endpoint does not support subscriptions, polling for logs", "interval", t.cfg.PollInterval)
			t.poll(ctx, out)
			return
		}

		t.setLive(false)
		if waitErr := t.reconnect.Wait(ctx, err); waitErr != nil {
			if ctx.Err() == nil {
				t.logger.Error("Giving up on event subscription", "error", waitErr)
			}
			return
		}
	}
}

func (t *topicWatch) setLive(live bool) {
	if t.live == live {
		return
	}
	t.live = live
	if live {
		t.Watcher.live.Add(1)
	} else {
		t.Watcher.live.Add(-1)
	}
}

// initCursor picks the first block to scan, waiting out RPC failures
func (t *topicWatch) initCursor(ctx context.Context) error {
	if t.cfg.StartBlock > 0 {
		t.cursor = t.cfg.StartBlock
		return nil
	}
	for {
		head, err := t.src.BlockNumber(ctx)
		if err == nil {
			// nothing up to the current head is replayed
			t.cursor = head + 1
			return nil
		}
		if waitErr := t.reconnect.Wait(ctx, err); waitErr != nil {
			return waitErr
		}
	}
}

func (t *topicWatch) query() ethereum.FilterQuery {
	return ethereum.FilterQuery{
		Addresses: []common.Address{t.cfg.ServiceManager},
		Topics:    [][]common.Hash{{t.topic}},
	}
}

// subscribe runs one live subscription until it fails. The subscription is
// opened before the backfill so no block falls between the two.
func (t *topicWatch) subscribe(ctx context.Context, out chan<- TaskEvent) error {
	logs := make(chan types.Log, t.cfg.BufferSize)
	sub, err := t.src.SubscribeFilterLogs(ctx, t.query(), logs)
	if err != nil {
		return err
	}
	defer sub.Unsubscribe()

	head, err := t.src.BlockNumber(ctx)
	if err != nil {
		return fmt.Errorf("failed to read head: %w", err)
	}
	if err := t.backfill(ctx, head, out); err != nil {
		return err
	}

	t.reconnect.Reset()
	t.setLive(true)
	t.logger.Info("Subscribed to task events", "from_block", t.cursor)

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case err := <-sub.Err():
			if err == nil {
				err = errSubscriptionClosed
			}
			return err
		case log := <-logs:
			if log.Removed {
				continue
			}
			t.emit(ctx, log, out)
			if log.BlockNumber > t.cursor {
				t.cursor = log.BlockNumber
			}
		}
	}
}

// backfill scans [cursor, head] in MaxBlockRange chunks and leaves the
// cursor on head, so the last block is scanned again by the next backfill.
func (t *topicWatch) backfill(ctx context.Context, head uint64, out chan<- TaskEvent) error {
	from := t.cursor
	for from <= head {
		to := min(from+t.cfg.MaxBlockRange-1, head)

		q := t.query()
		q.FromBlock = new(big.Int).SetUint64(from)
		q.ToBlock = new(big.Int).SetUint64(to)

		logs, err := t.src.FilterLogs(ctx, q)
		if err != nil {
			return fmt.Errorf("failed to filter logs %d-%d: %w", from, to, err)
		}
		for _, log := range logs {
			if log.Removed {
				continue
			}
			t.emit(ctx, log, out)
		}

		t.cursor = to
		from = to + 1
	}
	return nil
}

// pollFailureLimit consecutive failed polls mark the topic as not live
const pollFailureLimit = 3

// poll replaces the subscription on endpoints without notifications
func (t *topicWatch) poll(ctx context.Context, out chan<- TaskEvent) {
	ticker := time.NewTicker(t.cfg.PollInterval)
	defer ticker.Stop()

	next := t.cursor
	failures := 0

	for {
		scanned, err := t.pollOnce(ctx, next, out)
		switch {
		case err == nil:
			failures = 0
			t.setLive(true)
			next = scanned
		case ctx.Err() != nil:
			return
		default:
			failures++
			t.logger.Warn("Failed to poll logs", "error", err, "consecutive_failures", failures)
			if failures >= pollFailureLimit {
				t.setLive(false)
			}
		}

		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}
	}
}

// pollOnce backfills [next, head] and returns the block the next poll
// starts from
func (t *topicWatch) pollOnce(ctx context.Context, next uint64, out chan<- TaskEvent) (uint64, error) {
	head, err := t.src.BlockNumber(ctx)
	if err != nil {
		return next, fmt.Errorf("failed to read head: %w", err)
	}
	if head < next {
		return next, nil
	}
	t.cursor = next
	if err := t.backfill(ctx, head, out); err != nil {
		return next, err
	}
	return head + 1, nil
}

func (t *topicWatch) emit(ctx context.Context, log types.Log, out chan<- TaskEvent) {
	event, err := decodeTaskEvent(t.kind, log)
	if err != nil {
		t.logger.Warn("Skipping undecodable log", "tx", log.TxHash.Hex(), "log_index", log.Index, "error", err)
		return
	}

	select {
	case out <- event:
	case <-ctx.Done():
	}
}

func decodeTaskEvent(kind Kind, log types.Log) (TaskEvent, error) {
	event := TaskEvent{
		Kind:           kind,
		CreatedAtBlock: log.BlockNumber,
		TxHash:         log.TxHash,
		LogIndex:       log.Index,
	}

	switch kind {
	case TokenDataCreated:
		parsed, err := contracts.ParseNewTokenDataCreated(log)
		if err != nil {
			return event, err
		}
		event.TaskIndex = parsed.TokenDataIndex
		event.SubjectName = parsed.TokenName
		event.SubjectAddress = parsed.ContractAddress

	case TokenDetailRequested:
		parsed, err := contracts.ParseNewTokenDetailRequested(log)
		if err != nil {
			return event, err
		}
		event.SubjectName = parsed.TokenName
		event.SubjectAddress = parsed.ContractAddress

	default:
		return event, fmt.Errorf("unsupported kind %s", kind)
	}

	return event, nil
}

func isNotificationsUnsupported(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, rpc.ErrNotificationsUnsupported) {
		return true
	}
	return strings.Contains(strings.ToLower(err.Error()), "notifications not supported")
}
