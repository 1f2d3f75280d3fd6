// Package counter owns the live daily fat counters and the reset scheduler.
// All mutation goes through the exported setters; timer callbacks and sync
// receipts funnel into the same guarded paths, so there is one mutator at a
// time and observers see each settled change exactly once.
package counter

import (
	"fmt"
	"sync"
	"time"

	"fatrack/internal/constants"
	"fatrack/internal/logging"
	"fatrack/internal/schedule"
	"fatrack/internal/settings"
)

// Delegate receives the archival of a completed reset period. It is set once
// at Start and held for the life of the process.
type Delegate interface {
	NewRecordArchived(periodStart int64, usedGrams, goalGrams float64)
}

// Snapshot is an immutable view of the counter fields.
type Snapshot struct {
	UsedGrams   float64
	GoalGrams   float64
	ResetHour   int
	ResetMinute int
	NextReset   int64 // unix seconds, 0 = never computed
}

// Progress is used/goal. A zero goal means "no goal set", not a crash.
func (s Snapshot) Progress() float64 {
	if s.GoalGrams <= 0 {
		return 0
	}
	return s.UsedGrams / s.GoalGrams
}

// Counter is the process-wide counter state. Construct once per process and
// call Start exactly once before relying on the scheduler; Start may be
// called again to re-arm (the previous timer is invalidated first).
type Counter struct {
	mu          sync.Mutex
	started     bool
	usedGrams   float64
	goalGrams   float64
	resetHour   int
	resetMinute int
	nextReset   int64

	timer    *time.Timer
	delegate Delegate

	store  *settings.Store
	logger logging.Logger
	now    func() time.Time
	loc    *time.Location

	observers []func(Snapshot)
}

type Option func(*Counter)

// WithClock injects the time source. Tests use a fixed clock.
func WithClock(now func() time.Time) Option {
	return func(c *Counter) { c.now = now }
}

// WithLocation overrides the local calendar used for reset arithmetic.
func WithLocation(loc *time.Location) Option {
	return func(c *Counter) { c.loc = loc }
}

// New creates a counter backed by the shared settings store. store may be nil
// (in-memory only, used by the widget placeholder path and by tests).
func New(store *settings.Store, logger logging.Logger, opts ...Option) *Counter {
	if logger == nil {
		logger = logging.NewDefaultLogger()
	}
	c := &Counter{
		goalGrams:   constants.DefaultGoalGrams,
		resetHour:   constants.DefaultResetHour,
		resetMinute: constants.DefaultResetMinute,
		store:       store,
		logger:      logger,
		now:         time.Now,
		loc:         time.Local,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Subscribe registers an observer called after every settled change.
func (c *Counter) Subscribe(fn func(Snapshot)) {
	c.mu.Lock()
	c.observers = append(c.observers, fn)
	c.mu.Unlock()
}

// Snapshot returns the current field values.
func (c *Counter) Snapshot() Snapshot {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.snapshotLocked()
}

func (c *Counter) snapshotLocked() Snapshot {
	return Snapshot{
		UsedGrams:   c.usedGrams,
		GoalGrams:   c.goalGrams,
		ResetHour:   c.resetHour,
		ResetMinute: c.resetMinute,
		NextReset:   c.nextReset,
	}
}

// Start loads persisted state, records the archival delegate and evaluates
// whether a reset is already due before arming the timer.
func (c *Counter) Start(delegate Delegate) {
	c.mu.Lock()
	c.loadPersistedLocked()
	c.started = true
	c.delegate = delegate
	c.mu.Unlock()

	c.logger.Info("counter started", "next_reset", c.Snapshot().NextReset)
	c.CheckReset(c.now())
}

func (c *Counter) loadPersistedLocked() {
	if c.store == nil {
		return
	}
	var err error
	if c.usedGrams, err = c.store.Float(constants.KeyUsedFat, c.usedGrams); err != nil {
		c.logger.Warn("failed to load used grams", "error", err)
	}
	if c.goalGrams, err = c.store.Float(constants.KeyTotalFat, c.goalGrams); err != nil {
		c.logger.Warn("failed to load goal grams", "error", err)
	}
	if c.resetHour, err = c.store.Int(constants.KeyResetHour, c.resetHour); err != nil {
		c.logger.Warn("failed to load reset hour", "error", err)
	}
	if c.resetMinute, err = c.store.Int(constants.KeyResetMinute, c.resetMinute); err != nil {
		c.logger.Warn("failed to load reset minute", "error", err)
	}
	if c.nextReset, err = c.store.Int64(constants.KeyNextReset, c.nextReset); err != nil {
		c.logger.Warn("failed to load next reset", "error", err)
	}
}

// CheckReset evaluates the rollover at the given instant. Called by Start, by
// the armed timer, and whenever the hosting process comes back to the
// foreground after a suspension. If the scheduled time has passed, exactly
// one record is archived even when several boundaries were missed.
func (c *Counter) CheckReset(now time.Time) {
	c.mu.Lock()
	if !c.started {
		c.mu.Unlock()
		c.logger.Warn("counter not started, ignoring reset check")
		return
	}

	if c.nextReset > 0 && now.Unix() >= c.nextReset {
		c.fireResetLocked(now)
		return // fireResetLocked unlocks
	}

	changed := c.rescheduleLocked(now)
	c.armTimerLocked(now)
	if !changed {
		c.mu.Unlock()
		return
	}
	c.persistLocked()
	snap := c.snapshotLocked()
	observers := c.observers
	c.mu.Unlock()
	notify(observers, snap)
}

// fireResetLocked archives the period just ended, zeroes the live counter and
// schedules the next rollover. Callers hold c.mu; it is released here so the
// delegate and observers run outside the lock.
func (c *Counter) fireResetLocked(now time.Time) {
	boundary := time.Unix(c.nextReset, 0)
	periodStart := schedule.PrevOccurrence(boundary, c.resetHour, c.resetMinute, c.loc)

	usedBefore := c.usedGrams
	goal := c.goalGrams
	c.usedGrams = 0
	c.nextReset = schedule.NextOccurrence(now, c.resetHour, c.resetMinute, c.loc).Unix()
	c.persistLocked()
	c.armTimerLocked(now)

	delegate := c.delegate
	snap := c.snapshotLocked()
	observers := c.observers
	c.mu.Unlock()

	c.logger.Info("daily reset fired",
		"period_start", periodStart.Unix(), "used", usedBefore, "next_reset", snap.NextReset)
	if delegate != nil {
		delegate.NewRecordArchived(periodStart.Unix(), usedBefore, goal)
	} else {
		c.logger.Warn("no archival delegate, reset period dropped")
	}
	notify(observers, snap)
}

// rescheduleLocked recomputes nextReset from now. Reports whether it moved.
func (c *Counter) rescheduleLocked(now time.Time) bool {
	next := schedule.NextOccurrence(now, c.resetHour, c.resetMinute, c.loc).Unix()
	if next == c.nextReset {
		return false
	}
	c.nextReset = next
	return true
}

// armTimerLocked replaces any existing timer with one firing at nextReset.
func (c *Counter) armTimerLocked(now time.Time) {
	if c.timer != nil {
		c.timer.Stop()
	}
	wait := time.Unix(c.nextReset, 0).Sub(now)
	if wait < 0 {
		wait = 0
	}
	c.timer = time.AfterFunc(wait, func() {
		c.CheckReset(c.now())
	})
}

// SetUsedGrams replaces the accumulated consumption. Never touches the
// scheduler.
func (c *Counter) SetUsedGrams(grams float64) {
	if grams < 0 {
		grams = 0
	}
	c.mu.Lock()
	if c.usedGrams == grams {
		c.mu.Unlock()
		return
	}
	c.usedGrams = grams
	c.persistLocked()
	snap := c.snapshotLocked()
	observers := c.observers
	c.mu.Unlock()
	notify(observers, snap)
}

// AddUsedGrams accumulates a consumption entry.
func (c *Counter) AddUsedGrams(delta float64) {
	c.mu.Lock()
	grams := c.usedGrams + delta
	if grams < 0 {
		grams = 0
	}
	c.usedGrams = grams
	c.persistLocked()
	snap := c.snapshotLocked()
	observers := c.observers
	c.mu.Unlock()
	notify(observers, snap)
}

// SetGoalGrams replaces the daily target. Never touches the scheduler.
func (c *Counter) SetGoalGrams(grams float64) {
	if grams < 0 {
		grams = 0
	}
	c.mu.Lock()
	if c.goalGrams == grams {
		c.mu.Unlock()
		return
	}
	c.goalGrams = grams
	c.persistLocked()
	snap := c.snapshotLocked()
	observers := c.observers
	c.mu.Unlock()
	notify(observers, snap)
}

// SetResetTime moves the daily rollover to the given local time of day. The
// next reset is recomputed forward from now and the timer re-armed; changing
// the time never archives the current period.
func (c *Counter) SetResetTime(hour, minute int) error {
	if hour < 0 || hour > 23 || minute < 0 || minute > 59 {
		return fmt.Errorf("invalid reset time %02d:%02d", hour, minute)
	}
	c.mu.Lock()
	c.resetHour = hour
	c.resetMinute = minute
	now := c.now()
	c.rescheduleLocked(now)
	if c.started {
		c.armTimerLocked(now)
	}
	c.persistLocked()
	snap := c.snapshotLocked()
	observers := c.observers
	c.mu.Unlock()
	notify(observers, snap)
	return nil
}

// SetNextReset applies a companion-provided next reset instant and re-arms,
// mirroring what the local recompute path does. Used by the sync channel.
func (c *Counter) SetNextReset(unix int64) {
	c.mu.Lock()
	if unix <= 0 || unix == c.nextReset {
		c.mu.Unlock()
		return
	}
	c.nextReset = unix
	if c.started {
		c.armTimerLocked(c.now())
	}
	c.persistLocked()
	snap := c.snapshotLocked()
	observers := c.observers
	c.mu.Unlock()
	notify(observers, snap)
}

func (c *Counter) persistLocked() {
	if c.store == nil {
		return
	}
	pairs := []struct {
		key string
		set func() error
	}{
		{constants.KeyUsedFat, func() error { return c.store.SetFloat(constants.KeyUsedFat, c.usedGrams) }},
		{constants.KeyTotalFat, func() error { return c.store.SetFloat(constants.KeyTotalFat, c.goalGrams) }},
		{constants.KeyResetHour, func() error { return c.store.SetInt(constants.KeyResetHour, c.resetHour) }},
		{constants.KeyResetMinute, func() error { return c.store.SetInt(constants.KeyResetMinute, c.resetMinute) }},
		{constants.KeyNextReset, func() error { return c.store.SetInt64(constants.KeyNextReset, c.nextReset) }},
	}
	for _, p := range pairs {
		if err := p.set(); err != nil {
			c.logger.Error("failed to persist counter field", "key", p.key, "error", err)
		}
	}
}

func notify(observers []func(Snapshot), snap Snapshot) {
	for _, fn := range observers {
		fn(snap)
	}
}
