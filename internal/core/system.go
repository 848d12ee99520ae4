package core

import (
	"context"
	"fmt"
	"io"
	"sync"

	"DriveBridge/internal/device"
	"DriveBridge/internal/link"
	"DriveBridge/internal/model"
	"DriveBridge/internal/motor"
	"DriveBridge/internal/store"
	"DriveBridge/internal/util"
)

// System wires the bridge components together and manages their lifecycle.
// Exactly one Link and one motor Service exist per System: the hardware
// channel is a singleton resource.
type System struct {
	cfg *model.Config

	Link     *link.Link
	Motors   *motor.Service
	Hub      *Hub
	Poller   *Poller
	Server   *Server
	DriftLog *store.DriftLog

	cancelPoller context.CancelFunc
	pollerDone   chan struct{}

	started   bool
	startLock sync.Mutex
}

// NewSystem opens the configured serial device and constructs the system.
func NewSystem(cfg *model.Config) (*System, error) {
	port, err := device.Open(cfg.Serial.Device, cfg.Serial.Baud)
	if err != nil {
		return nil, fmt.Errorf("open serial device %s: %w", cfg.Serial.Device, err)
	}
	return NewSystemWithPort(cfg, port)
}

// NewSystemWithPort constructs the system over an already-open byte stream.
// Used by tests and the simulator wiring.
func NewSystemWithPort(cfg *model.Config, port io.ReadWriteCloser) (*System, error) {
	sys := &System{cfg: cfg}
	sys.Link = link.New(port, cfg.Serial.ReadTimeout(), cfg.Serial.Grace())
	sys.Motors = motor.NewService(sys.Link)
	sys.Hub = NewHub(cfg.Server.PingInterval())

	if cfg.Store.Path != "" {
		driftLog, err := store.OpenDriftLog(cfg.Store.Path)
		if err != nil {
			_ = sys.Link.Close()
			return nil, err
		}
		sys.DriftLog = driftLog
	}

	sys.Poller = NewPoller(sys.Motors, sys.Hub, sys.DriftLog, cfg.Poller.Interval())
	gateway := NewGateway(sys.Hub, sys.Motors, sys.Poller.Snapshot)
	sys.Server = NewServer(cfg.Server.Addr, sys.Hub, gateway, sys.Poller, sys.DriftLog)
	return sys, nil
}

// StartAll starts the status poller and the websocket server.
func (s *System) StartAll() error {
	s.startLock.Lock()
	defer s.startLock.Unlock()
	if s.started {
		return nil
	}

	ctx, cancel := context.WithCancel(context.Background())
	s.cancelPoller = cancel
	s.pollerDone = make(chan struct{})
	go func() {
		defer close(s.pollerDone)
		s.Poller.Run(ctx)
	}()

	go s.Server.Start()
	s.started = true
	return nil
}

// StopAll shuts everything down: poller first, then sessions and server,
// then an emergency stop before the link is closed so the drivetrain never
// outlives the process.
func (s *System) StopAll() {
	s.startLock.Lock()
	defer s.startLock.Unlock()
	if !s.started {
		return
	}

	s.cancelPoller()
	<-s.pollerDone

	s.Hub.Close()
	s.Server.Stop()

	if err := s.Motors.EmergencyStop(); err != nil {
		util.Error("system: emergency stop on shutdown: %v", err)
	}
	if err := s.Link.Close(); err != nil {
		util.Error("system: close link: %v", err)
	}
	if s.DriftLog != nil {
		if err := s.DriftLog.Close(); err != nil {
			util.Error("system: close drift log: %v", err)
		}
	}
	s.started = false
}
