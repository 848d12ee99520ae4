package core

import (
	"context"
	"errors"
	"sync"
	"time"

	"DriveBridge/internal/link"
	"DriveBridge/internal/model"
	"DriveBridge/internal/motor"
	"DriveBridge/internal/store"
	"DriveBridge/internal/util"
)

// Poller periodically queries the board for status, extracts the
// synchronization drift and fans a snapshot out to every session. Poll
// failures are non-fatal; link loss ends the loop so no stale data is
// broadcast.
type Poller struct {
	motors   *motor.Service
	hub      *Hub
	driftLog *store.DriftLog // nil disables drift persistence
	interval time.Duration

	mu        sync.Mutex
	lastDrift int
}

// NewPoller creates a poller with the given cycle interval.
func NewPoller(motors *motor.Service, hub *Hub, driftLog *store.DriftLog, interval time.Duration) *Poller {
	return &Poller{
		motors:   motors,
		hub:      hub,
		driftLog: driftLog,
		interval: interval,
	}
}

// Snapshot builds an immutable status snapshot from the last commanded
// motor state and the most recently polled drift.
func (p *Poller) Snapshot() model.StatusSnapshot {
	speed, direction := p.motors.Snapshot()
	p.mu.Lock()
	drift := p.lastDrift
	p.mu.Unlock()
	return model.StatusSnapshot{
		Type:      model.TypeStatus,
		Speed:     speed,
		Direction: direction,
		SyncDrift: drift,
		Timestamp: time.Now(),
	}
}

// Run polls until ctx is cancelled or the link is lost. It observes the stop
// signal within one poll interval.
func (p *Poller) Run(ctx context.Context) {
	ticker := time.NewTicker(p.interval)
	defer ticker.Stop()

	for {
		if !p.poll() {
			util.Error("poller: link lost, stopping status updates")
			return
		}
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}
	}
}

// poll runs one cycle. It reports false only on link loss; any other
// failure logs and leaves the next cycle to run on schedule.
func (p *Poller) poll() bool {
	resp, err := p.motors.Status()
	if err != nil {
		if errors.Is(err, link.ErrClosed) {
			return false
		}
		util.Error("poller: status: %v", err)
		// broadcast the previous snapshot anyway so clients keep ticking
		p.hub.Broadcast(p.Snapshot())
		return true
	}

	// an empty response is a read timeout: keep the previous drift
	st := motor.ParseStatus(resp)
	if st.HasDrift {
		p.mu.Lock()
		p.lastDrift = st.Drift
		p.mu.Unlock()
		p.record(st.Drift)
	}

	p.hub.Broadcast(p.Snapshot())
	return true
}

// record persists one drift sample when the drift log is enabled.
func (p *Poller) record(drift int) {
	if p.driftLog == nil {
		return
	}
	err := p.driftLog.Append(model.DriftSample{Drift: drift, Timestamp: time.Now()})
	if err != nil {
		util.Error("poller: record drift: %v", err)
	}
}
