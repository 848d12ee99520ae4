// Package link provides the exclusive request/response channel to the motor
// controller board. A single Link owns the serial byte stream; every command
// and its reply lines travel through one mutex so concurrent callers can
// never interleave traffic on the wire.
package link

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"strings"
	"sync"
	"time"
)

var (
	// ErrClosed is returned once the underlying stream has failed or been
	// closed. The link is not reopened automatically.
	ErrClosed = errors.New("serial link closed")

	// ErrBadCommand is returned when a command contains a line terminator.
	ErrBadCommand = errors.New("command contains line terminator")
)

// Response is the ordered sequence of reply lines collected for one command.
// An empty Response is not an error: fire-and-forget commands reply with
// nothing inside the read window.
type Response []string

// Text joins the reply lines for display.
func (r Response) Text() string {
	return strings.Join(r, "\n")
}

// Link is the exclusive serial channel to the board. At most one command is
// in flight at any time; SendCommands extends that exclusion over a whole
// compound operation.
type Link struct {
	port        io.ReadWriteCloser
	readTimeout time.Duration
	grace       time.Duration

	cmdMu sync.Mutex

	lines chan string
	done  chan struct{}

	closeOnce sync.Once

	failMu  sync.Mutex
	failErr error
	closing bool
}

// New wraps an open serial stream. readTimeout bounds how long a command
// waits for its first reply line; grace is the idle gap that ends reply
// collection once lines have started arriving.
func New(port io.ReadWriteCloser, readTimeout, grace time.Duration) *Link {
	l := &Link{
		port:        port,
		readTimeout: readTimeout,
		grace:       grace,
		// buffered so unsolicited board output (sync alerts) cannot stall
		// the read loop between commands
		lines:       make(chan string, 64),
		done:        make(chan struct{}),
	}
	go l.readLoop()
	return l
}

// readLoop continuously scans reply lines off the wire into the line channel
// so a blocking serial read never stalls command dispatch.
func (l *Link) readLoop() {
	defer close(l.lines)
	scan := bufio.NewScanner(l.port)
	for scan.Scan() {
		line := strings.TrimSpace(scan.Text())
		if line == "" {
			continue
		}
		select {
		case l.lines <- line:
		case <-l.done:
			return
		}
	}
	err := scan.Err()
	if err == nil {
		err = io.EOF
	}
	l.fail(err)
}

// fail records the first fatal I/O error. Errors during an intentional close
// are not recorded.
func (l *Link) fail(err error) {
	l.failMu.Lock()
	defer l.failMu.Unlock()
	if l.failErr == nil && !l.closing {
		l.failErr = err
	}
}

// Err returns the fatal link error, or nil while the link is healthy.
func (l *Link) Err() error {
	l.failMu.Lock()
	defer l.failMu.Unlock()
	if l.failErr != nil {
		return fmt.Errorf("%w: %v", ErrClosed, l.failErr)
	}
	if l.closing {
		return ErrClosed
	}
	return nil
}

// SendCommand writes one command line and collects its reply.
func (l *Link) SendCommand(command string) (Response, error) {
	responses, err := l.SendCommands(command)
	if err != nil {
		return nil, err
	}
	return responses[0], nil
}

// SendCommands writes several command lines as a single critical section:
// no other caller's traffic can appear between them on the wire. Each
// command still gets its own reply window.
func (l *Link) SendCommands(commands ...string) ([]Response, error) {
	for _, c := range commands {
		if strings.ContainsAny(c, "\r\n") {
			return nil, fmt.Errorf("%w: %q", ErrBadCommand, c)
		}
	}

	l.cmdMu.Lock()
	defer l.cmdMu.Unlock()

	responses := make([]Response, 0, len(commands))
	for _, c := range commands {
		if err := l.Err(); err != nil {
			return nil, err
		}
		if _, err := l.port.Write([]byte(c + "\n")); err != nil {
			l.fail(err)
			return nil, l.Err()
		}
		resp, err := l.collect()
		if err != nil {
			return nil, err
		}
		responses = append(responses, resp)
	}
	return responses, nil
}

// collect gathers reply lines for one command. It waits up to readTimeout
// for the first line, then stops after an idle grace gap — unless inside a
// ====-framed block (STATUS dumps), which is read through to its closing
// delimiter before the grace drain.
func (l *Link) collect() (Response, error) {
	deadline := time.NewTimer(l.readTimeout)
	defer deadline.Stop()

	var resp Response
	inBlock := false
	for {
		var idle <-chan time.Time
		var graceTimer *time.Timer
		if len(resp) > 0 && !inBlock {
			graceTimer = time.NewTimer(l.grace)
			idle = graceTimer.C
		}

		select {
		case line, ok := <-l.lines:
			if graceTimer != nil {
				graceTimer.Stop()
			}
			if !ok {
				return nil, l.Err()
			}
			resp = append(resp, line)
			if isFrameDelimiter(line) {
				inBlock = !inBlock
			}
		case <-idle:
			return resp, nil
		case <-deadline.C:
			if graceTimer != nil {
				graceTimer.Stop()
			}
			return resp, nil
		}
	}
}

// isFrameDelimiter reports whether a line opens or closes a framed
// multi-line block ("======== DUAL MOTOR STATUS ========" ... "=====...").
func isFrameDelimiter(line string) bool {
	return strings.HasPrefix(line, "====")
}

// Close shuts the link down and closes the serial stream. Idempotent.
func (l *Link) Close() error {
	var err error
	l.closeOnce.Do(func() {
		l.failMu.Lock()
		l.closing = true
		l.failMu.Unlock()
		close(l.done)
		err = l.port.Close()
	})
	return err
}
