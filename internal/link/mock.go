package link

import (
	"bytes"
	"errors"
	"strings"
	"sync"
	"time"
)

// TestablePort implements io.ReadWriteCloser with configurable behaviour for
// testing the link and everything above it without a serial device. Reads
// block until data is added or the port closes, like a real port.
type TestablePort struct {
	mu       sync.Mutex
	readCond *sync.Cond

	readBuf  bytes.Buffer
	writeBuf bytes.Buffer

	// Responder, when set, generates reply lines for every command line
	// written to the port (wire a *device.Firmware's Process here for an
	// end-to-end simulated board).
	responder func(string) []string

	// WriteDelay adds latency to each Write call.
	WriteDelay time.Duration

	writeErr error
	closed   bool
}

// NewTestablePort creates an open TestablePort with no scripted replies.
func NewTestablePort() *TestablePort {
	p := &TestablePort{}
	p.readCond = sync.NewCond(&p.mu)
	return p
}

// SetResponder installs a function producing reply lines per written command.
func (p *TestablePort) SetResponder(fn func(command string) []string) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.responder = fn
}

// FailWrites makes every subsequent Write return err.
func (p *TestablePort) FailWrites(err error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.writeErr = err
}

// Read blocks until reply data is available or the port is closed.
func (p *TestablePort) Read(b []byte) (int, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	for !p.closed && p.readBuf.Len() == 0 {
		p.readCond.Wait()
	}
	if p.readBuf.Len() == 0 && p.closed {
		return 0, errors.New("port closed")
	}
	return p.readBuf.Read(b)
}

// Write captures outbound data and, when a responder is installed, queues
// the generated reply lines for subsequent reads.
func (p *TestablePort) Write(b []byte) (int, error) {
	if p.WriteDelay > 0 {
		time.Sleep(p.WriteDelay)
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.closed {
		return 0, errors.New("port closed")
	}
	if p.writeErr != nil {
		return 0, p.writeErr
	}
	p.writeBuf.Write(b)
	if p.responder != nil {
		for _, line := range splitLines(string(b)) {
			for _, reply := range p.responder(line) {
				p.readBuf.WriteString(reply + "\n")
			}
		}
		p.readCond.Broadcast()
	}
	return len(b), nil
}

// AddReadData queues raw bytes to be returned by subsequent reads.
func (p *TestablePort) AddReadData(data string) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.readBuf.WriteString(data)
	p.readCond.Broadcast()
}

// Close marks the port closed and wakes blocked readers.
func (p *TestablePort) Close() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.closed = true
	p.readCond.Broadcast()
	return nil
}

// Commands returns every complete command line written to the port, in order.
func (p *TestablePort) Commands() []string {
	p.mu.Lock()
	defer p.mu.Unlock()
	return splitLines(p.writeBuf.String())
}

// Written returns the raw captured wire bytes.
func (p *TestablePort) Written() string {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.writeBuf.String()
}

func splitLines(s string) []string {
	var lines []string
	for _, l := range strings.Split(s, "\n") {
		l = strings.TrimSpace(l)
		if l != "" {
			lines = append(lines, l)
		}
	}
	return lines
}
