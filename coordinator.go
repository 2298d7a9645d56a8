package elmo

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/cenkalti/backoff/v4"
)

const MinScanInterval = time.Second

// Executor runs fn against the inventory, serialized with every other
// panel operation and retried on transient failures.
type Executor = func(fn func(inv *Inventory) error) error

// Coordinator polls the inventory on a fixed interval and fans the
// snapshots out to its listeners.
type Coordinator struct {
	inv      *Inventory
	interval time.Duration

	// NewBackOff creates the retry policy for each operation.
	NewBackOff func() backoff.BackOff
	// OnRequest is called after every attempt, with its error.
	OnRequest func(err error)

	lock sync.Mutex

	mu        sync.RWMutex
	data      Snapshot
	hasData   bool
	lastErr   error
	listeners []func(Snapshot)
	watchers  []func(available bool)

	refresh chan struct{}
}

func NewCoordinator(inv *Inventory, interval time.Duration) *Coordinator {
	return &Coordinator{
		inv:        inv,
		interval:   max(interval, MinScanInterval),
		NewBackOff: defaultBackOff,
		refresh:    make(chan struct{}, 1),
	}
}

func defaultBackOff() backoff.BackOff {
	bo := backoff.NewExponentialBackOff()
	bo.MaxInterval = time.Second * 5
	bo.MaxElapsedTime = time.Minute
	return bo
}

func (c *Coordinator) Inventory() *Inventory {
	return c.inv
}

func (c *Coordinator) Interval() time.Duration {
	return c.interval
}

// Execute runs fn with exclusive access to the panel, retrying with
// backoff unless the error is permanent.
func (c *Coordinator) Execute(fn func(inv *Inventory) error) error {
	t := time.Now()
	c.lock.Lock()
	defer c.lock.Unlock()
	log.Debugf("got panel lock after %s", time.Since(t))

	return backoff.RetryNotify(func() error {
		err := fn(c.inv)
		if c.OnRequest != nil {
			c.OnRequest(err)
		}
		if err != nil && IsPermanent(err) {
			return backoff.Permanent(err)
		}
		return err
	}, c.NewBackOff(), func(err error, next time.Duration) {
		log.Error("command to panel failed", "err", err, "retry_in", next)
	})
}

// Refresh polls the panel once, updating the shared snapshot and notifying
// listeners on success. On failure the previous snapshot is kept and the
// coordinator becomes unavailable.
func (c *Coordinator) Refresh() error {
	var snap Snapshot
	err := c.Execute(func(inv *Inventory) (err error) {
		snap, err = inv.Refresh()
		return
	})

	c.mu.Lock()
	was := c.hasData && c.lastErr == nil
	c.lastErr = err
	if err == nil {
		c.data = snap
		c.hasData = true
	}
	now := c.hasData && c.lastErr == nil
	listeners := append([]func(Snapshot){}, c.listeners...)
	watchers := append([]func(bool){}, c.watchers...)
	c.mu.Unlock()

	if was != now {
		log.Info("panel availability changed", "available", now)
		for _, fn := range watchers {
			fn(now)
		}
	}
	if err != nil {
		return err
	}
	for _, fn := range listeners {
		fn(snap)
	}
	return nil
}

// Subscribe registers fn to be called after every successful refresh.
func (c *Coordinator) Subscribe(fn func(Snapshot)) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.listeners = append(c.listeners, fn)
}

// WatchAvailability registers fn to be called whenever the panel becomes
// available or unavailable.
func (c *Coordinator) WatchAvailability(fn func(available bool)) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.watchers = append(c.watchers, fn)
}

// Data returns the last snapshot; ok is false before the first successful
// refresh.
func (c *Coordinator) Data() (Snapshot, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	if !c.hasData {
		return Snapshot{}, false
	}
	return c.data.clone(), true
}

// Available reports whether the last refresh succeeded.
func (c *Coordinator) Available() bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.hasData && c.lastErr == nil
}

func (c *Coordinator) LastError() error {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.lastErr
}

// RequestRefresh asks the running loop to refresh as soon as possible.
func (c *Coordinator) RequestRefresh() {
	select {
	case c.refresh <- struct{}{}:
	default:
	}
}

// Run refreshes on every tick until ctx is done.
func (c *Coordinator) Run(ctx context.Context) {
	tick := time.NewTicker(c.interval)
	defer tick.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-tick.C:
		case <-c.refresh:
		}
		if err := c.Refresh(); err != nil && !errors.Is(err, context.Canceled) {
			log.Error("could not refresh panel state", "err", err)
		}
	}
}

// Close closes the connection to the panel.
func (c *Coordinator) Close() error {
	c.lock.Lock()
	defer c.lock.Unlock()
	return c.inv.Close()
}
