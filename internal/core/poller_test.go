package core

import (
	"context"
	"fmt"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"DriveBridge/internal/link"
	"DriveBridge/internal/model"
	"DriveBridge/internal/motor"
	"DriveBridge/internal/store"
)

func statusDump(drift int) []string {
	return []string{
		"======== DUAL MOTOR STATUS ========",
		"--- Motor 1 (Left/Port) ---",
		"  Position: 1200",
		"--- Motor 2 (Right/Starboard) ---",
		"  Position: 1158",
		fmt.Sprintf("--- Sync Drift: %d steps ---", drift),
		"===================================",
	}
}

// switchableResponder lets a test change the scripted STATUS reply at runtime.
type switchableResponder struct {
	mu sync.Mutex
	fn func(string) []string
}

func (r *switchableResponder) respond(command string) []string {
	r.mu.Lock()
	fn := r.fn
	r.mu.Unlock()
	if fn == nil {
		return nil
	}
	return fn(command)
}

func (r *switchableResponder) set(fn func(string) []string) {
	r.mu.Lock()
	r.fn = fn
	r.mu.Unlock()
}

func newPollerFixture(t *testing.T, driftLog *store.DriftLog) (*Poller, *switchableResponder, *link.TestablePort, *Hub) {
	t.Helper()
	responder := &switchableResponder{}
	port := link.NewTestablePort()
	port.SetResponder(responder.respond)
	l := link.New(port, 100*time.Millisecond, 10*time.Millisecond)
	t.Cleanup(func() { l.Close() })

	hub := NewHub(time.Minute)
	t.Cleanup(hub.Close)

	poller := NewPoller(motor.NewService(l), hub, driftLog, 50*time.Millisecond)
	return poller, responder, port, hub
}

func TestPollerBroadcastsParsedDrift(t *testing.T) {
	poller, responder, _, hub := newPollerFixture(t, nil)
	responder.set(func(command string) []string {
		if command == "STATUS" {
			return statusDump(42)
		}
		return []string{"OK"}
	})

	conn, _ := wsClient(t, hub)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		defer close(done)
		poller.Run(ctx)
	}()

	for {
		msg := readEnvelope(t, conn)
		if msg["type"] == "status" {
			require.Equal(t, float64(42), msg["syncDrift"])
			require.Equal(t, "STOPPED", msg["direction"])
			break
		}
	}

	cancel()
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("poller did not stop within one interval")
	}
}

func TestPollerKeepsPreviousDriftAcrossTimeout(t *testing.T) {
	poller, responder, _, hub := newPollerFixture(t, nil)
	responder.set(func(command string) []string {
		if command == "STATUS" {
			return statusDump(42)
		}
		return []string{"OK"}
	})

	conn, _ := wsClient(t, hub)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	done := make(chan struct{})
	go func() {
		defer close(done)
		poller.Run(ctx)
	}()

	// wait for the first drift-bearing snapshot, then silence the device
	for {
		msg := readEnvelope(t, conn)
		if msg["type"] == "status" && msg["syncDrift"] == float64(42) {
			break
		}
	}
	responder.set(nil)

	// a timed-out STATUS still yields a broadcast carrying the last drift
	msg := readEnvelope(t, conn)
	require.Equal(t, "status", msg["type"])
	require.Equal(t, float64(42), msg["syncDrift"])

	cancel()
	<-done
}

func TestPollerStopsOnLinkLoss(t *testing.T) {
	poller, responder, port, _ := newPollerFixture(t, nil)
	responder.set(func(command string) []string { return statusDump(1) })

	done := make(chan struct{})
	go func() {
		defer close(done)
		poller.Run(context.Background())
	}()

	require.NoError(t, port.Close())
	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("poller kept running after link loss")
	}
}

func TestPollerRecordsDriftSamples(t *testing.T) {
	driftLog, err := store.OpenDriftLog(filepath.Join(t.TempDir(), "drift.db"))
	require.NoError(t, err)
	t.Cleanup(func() { driftLog.Close() })

	poller, responder, _, _ := newPollerFixture(t, driftLog)
	responder.set(func(command string) []string { return statusDump(17) })

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		defer close(done)
		poller.Run(ctx)
	}()

	require.Eventually(t, func() bool {
		samples, err := driftLog.Recent(1)
		return err == nil && len(samples) == 1 && samples[0].Drift == 17
	}, 3*time.Second, 50*time.Millisecond)

	cancel()
	<-done
}

func TestPollerSnapshotReflectsMotorState(t *testing.T) {
	poller, responder, _, _ := newPollerFixture(t, nil)
	responder.set(func(command string) []string { return []string{"OK"} })

	require.NoError(t, poller.motors.MoveForward(3000))

	snap := poller.Snapshot()
	require.Equal(t, model.TypeStatus, snap.Type)
	require.Equal(t, 3000, snap.Speed)
	require.Equal(t, motor.DirForward, snap.Direction)
	require.False(t, snap.Timestamp.IsZero())
}
