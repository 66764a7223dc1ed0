package sync

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	stdsync "sync"
	"sync/atomic"
	"time"

	"github.com/marcus/fueltrack/internal/db"
	"github.com/marcus/fueltrack/internal/models"
	"github.com/marcus/fueltrack/internal/transport"
)

// Options tunes an Engine. Zero values take the defaults.
type Options struct {
	Interval   time.Duration
	MaxRetries int
	Now        func() time.Time
}

// Engine drains the outbox. It is IDLE or DRAINING; a trigger that arrives
// while DRAINING is dropped, not queued.
type Engine struct {
	store      Store
	dialer     transport.Dialer
	conn       Connectivity
	interval   time.Duration
	maxRetries int
	now        func() time.Time

	syncing atomic.Bool
	wake    chan Trigger

	mu      stdsync.Mutex
	cancel  context.CancelFunc
	wg      stdsync.WaitGroup
	running bool
}

// New creates an engine. Call Start to run the background loop; SyncNow
// works without it.
func New(store Store, dialer transport.Dialer, conn Connectivity, opts Options) *Engine {
	if opts.Interval <= 0 {
		opts.Interval = DefaultInterval
	}
	if opts.MaxRetries <= 0 {
		opts.MaxRetries = DefaultMaxRetries
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}
	return &Engine{
		store:      store,
		dialer:     dialer,
		conn:       conn,
		interval:   opts.Interval,
		maxRetries: opts.MaxRetries,
		now:        opts.Now,
		wake:       make(chan Trigger),
	}
}

// Start launches the background loop. It is a no-op if already running.
func (e *Engine) Start(ctx context.Context) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.running {
		return
	}
	ctx, cancel := context.WithCancel(ctx)
	e.cancel = cancel
	e.running = true

	e.wg.Add(1)
	go e.loop(ctx)
}

// Stop ends the background loop and waits for an in-flight pass to finish.
func (e *Engine) Stop() {
	e.mu.Lock()
	if !e.running {
		e.mu.Unlock()
		return
	}
	e.cancel()
	e.running = false
	e.mu.Unlock()

	e.wg.Wait()
}

// Syncing reports whether a pass is running.
func (e *Engine) Syncing() bool {
	return e.syncing.Load()
}

// Notify wakes the loop after an enqueue. It never blocks.
func (e *Engine) Notify() {
	e.trigger(TriggerEnqueue)
}

// Reconnected wakes the loop after connectivity is restored.
func (e *Engine) Reconnected() {
	e.trigger(TriggerReconnect)
}

func (e *Engine) trigger(t Trigger) {
	select {
	case e.wake <- t:
	default:
		slog.Debug("sync trigger dropped", "trigger", t, "syncing", e.syncing.Load())
	}
}

// SyncNow runs one pass in the caller's goroutine and reports its outcome.
// It returns ErrDrainInProgress if a pass is already running.
func (e *Engine) SyncNow(ctx context.Context) (DrainResult, error) {
	return e.drain(ctx, TriggerManual)
}

func (e *Engine) loop(ctx context.Context) {
	defer e.wg.Done()

	ticker := time.NewTicker(e.interval)
	defer ticker.Stop()

	// An in-flight pass is allowed to finish after Stop so that a push is
	// not abandoned halfway and charged a retry.
	passCtx := context.WithoutCancel(ctx)

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			e.background(passCtx, TriggerTimer)
		case t := <-e.wake:
			e.background(passCtx, t)
		}
	}
}

// background runs a pass whose errors are logged, never returned.
func (e *Engine) background(ctx context.Context, t Trigger) {
	res, err := e.drain(ctx, t)
	switch {
	case errors.Is(err, ErrDrainInProgress):
		slog.Debug("sync pass skipped", "trigger", t, "reason", "in progress")
	case err != nil:
		slog.Error("sync pass failed", "trigger", t, "err", err, "failed", res.Failed, "escalated", res.Escalated)
	case res.Skipped:
		slog.Debug("sync pass skipped", "trigger", t, "reason", res.SkipReason)
	default:
		slog.Info("sync pass", "trigger", t, "pushed", res.Pushed, "dropped", res.Dropped, "escalated", res.Escalated)
	}
}

// drain executes one pass. The syncing flag is always cleared and a panic
// is converted into an error. Passes that found work are recorded in the
// sync history.
func (e *Engine) drain(ctx context.Context, t Trigger) (res DrainResult, err error) {
	if !e.syncing.CompareAndSwap(false, true) {
		return res, ErrDrainInProgress
	}
	defer e.syncing.Store(false)

	var started time.Time
	defer func() {
		if r := recover(); r != nil {
			slog.Error("sync pass panic", "trigger", t, "panic", r)
			err = fmt.Errorf("sync pass panic: %v", r)
		}
		if !started.IsZero() {
			e.recordPass(t, started, res, err)
		}
	}()

	if e.conn != nil && !e.conn.Online() {
		return DrainResult{Skipped: true, SkipReason: "offline"}, nil
	}

	cfg, err := transport.Resolve(e.store)
	if err != nil {
		return res, err
	}
	if cfg.Kind == transport.KindUnconfigured {
		return DrainResult{Skipped: true, SkipReason: "unconfigured"}, nil
	}

	entries, err := e.store.ListPendingOutbox()
	if err != nil {
		return res, fmt.Errorf("list outbox: %w", err)
	}
	if len(entries) == 0 {
		return DrainResult{Skipped: true, SkipReason: "empty"}, nil
	}

	started = e.now()
	return e.process(ctx, cfg, entries)
}

// process handles one snapshot of pending entries.
func (e *Engine) process(ctx context.Context, cfg transport.Config, entries []models.OutboxEntry) (DrainResult, error) {
	var res DrainResult

	drop, fuel, malformed := partition(entries)

	if len(drop) > 0 {
		if err := e.store.DequeueOutbox(drop...); err != nil {
			return res, fmt.Errorf("dequeue dropped entries: %w", err)
		}
		res.Dropped = len(drop)
	}

	batch, records, bad, err := e.buildBatch(fuel)
	if err != nil {
		return res, err
	}
	malformed = append(malformed, bad...)

	if len(malformed) > 0 {
		if err := e.store.EscalateOutbox(malformed); err != nil {
			return res, fmt.Errorf("escalate malformed entries: %w", err)
		}
		res.Escalated += len(malformed)
		slog.Warn("outbox entries escalated", "count", len(malformed), "reason", "undeliverable payload")
	}

	if len(batch) == 0 {
		return res, nil
	}

	pushRes, pushErr := e.push(ctx, cfg, records)
	if pushRes.CollectionID != "" {
		res.CollectionID = pushRes.CollectionID
		if err := e.store.SetSetting(db.SettingSpreadsheetID, pushRes.CollectionID); err != nil {
			slog.Error("persist spreadsheet id", "id", pushRes.CollectionID, "err", err)
		}
	}

	// A push cut short by the caller's deadline or cancellation says nothing
	// about the remote, so the batch stays pending without a retry charge.
	if pushErr != nil && ctx.Err() != nil {
		return res, fmt.Errorf("push %d records interrupted: %w", len(records), pushErr)
	}
	if pushErr != nil {
		escalated, err := e.store.FailFuelBatch(batch, e.maxRetries)
		if err != nil {
			return res, fmt.Errorf("record failed attempt: %w (push: %v)", err, pushErr)
		}
		res.Failed = len(batch)
		res.Escalated += escalated
		return res, fmt.Errorf("push %d records: %w", len(records), pushErr)
	}

	if err := e.store.CompleteFuelBatch(batch); err != nil {
		return res, fmt.Errorf("complete batch: %w", err)
	}
	res.Pushed = len(batch)
	return res, nil
}

func (e *Engine) push(ctx context.Context, cfg transport.Config, records []transport.Record) (transport.PushResult, error) {
	tr, err := e.dialer.Dial(ctx, cfg)
	if err != nil {
		return transport.PushResult{}, err
	}
	return tr.Push(ctx, records)
}

// partition splits a snapshot into entries to dequeue without a call,
// FUELEVENT entries to push, and entries that can never be delivered.
func partition(entries []models.OutboxEntry) (drop []int64, fuel, malformed []models.OutboxEntry) {
	for _, entry := range entries {
		switch {
		case entry.Action == models.ActionDelete:
			drop = append(drop, entry.ID)
		case entry.EntityType == models.EntityEquipment:
			drop = append(drop, entry.ID)
		case entry.EntityType == models.EntityFuelEvent &&
			(entry.Action == models.ActionCreate || entry.Action == models.ActionUpdate):
			fuel = append(fuel, entry)
		default:
			malformed = append(malformed, entry)
		}
	}
	return drop, fuel, malformed
}

// buildBatch decodes payloads and resolves display names. Lookups are
// cached for the pass; a missing site or equipment yields placeholders.
func (e *Engine) buildBatch(entries []models.OutboxEntry) (batch []models.OutboxEntry, records []transport.Record, malformed []models.OutboxEntry, err error) {
	sites := make(map[string]*models.Site)
	equipment := make(map[string]*models.Equipment)
	syncedAt := e.now()

	for _, entry := range entries {
		var ev models.FuelEvent
		if jerr := json.Unmarshal([]byte(entry.Payload), &ev); jerr != nil || ev.ID == "" {
			slog.Warn("undecodable outbox payload", "outbox_id", entry.ID, "entity_id", entry.EntityID, "err", jerr)
			malformed = append(malformed, entry)
			continue
		}

		site, ok := sites[ev.SiteID]
		if !ok {
			site, err = lookup(e.store.GetSite, ev.SiteID)
			if err != nil {
				return nil, nil, nil, err
			}
			sites[ev.SiteID] = site
		}
		eq, ok := equipment[ev.EquipmentID]
		if !ok {
			eq, err = lookup(e.store.GetEquipment, ev.EquipmentID)
			if err != nil {
				return nil, nil, nil, err
			}
			equipment[ev.EquipmentID] = eq
		}

		batch = append(batch, entry)
		records = append(records, transport.NewRecord(&ev, site, eq, syncedAt))
	}
	return batch, records, malformed, nil
}

// lookup treats a missing record as nil.
func lookup[T any](get func(string) (*T, error), id string) (*T, error) {
	v, err := get(id)
	if errors.Is(err, db.ErrNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("resolve %s: %w", id, err)
	}
	return v, nil
}

func (e *Engine) recordPass(t Trigger, started time.Time, res DrainResult, err error) {
	pass := &models.DrainPass{
		Trigger:   string(t),
		Pushed:    res.Pushed,
		Dropped:   res.Dropped,
		Failed:    res.Failed,
		Escalated: res.Escalated,
		StartedAt: started,
		Duration:  e.now().Sub(started),
	}
	if err != nil {
		pass.Error = err.Error()
	}
	if rerr := e.store.RecordDrain(pass); rerr != nil {
		slog.Warn("record sync history", "err", rerr)
	}
}
