package util

import (
	"fmt"
	"log"
	"os"
	"os/exec"
	"sync"
)

// VirtualSerial manages a socat-created PTY pair so the firmware simulator and
// the bridge can talk over two linked device paths without real hardware.
type VirtualSerial struct {
	mu     sync.Mutex
	cmd    *exec.Cmd
	left   string
	right  string
	closed bool
}

// NewVirtualSerial starts a socat process linking two PTYs (bidirectional).
// left and right are the symlink paths to create (e.g. /tmp/ttyBRIDGE, /tmp/ttySIM).
func NewVirtualSerial(left, right string) (*VirtualSerial, error) {
	cmd := exec.Command(
		"socat", "-d", "-d",
		fmt.Sprintf("pty,raw,echo=0,link=%s", left),
		fmt.Sprintf("pty,raw,echo=0,link=%s", right),
	)
	cmd.Stdout = log.Writer()
	cmd.Stderr = log.Writer()

	if err := cmd.Start(); err != nil {
		return nil, fmt.Errorf("failed to start socat: %w", err)
	}

	log.Printf("[virt-serial] started socat (pid=%d): %s <-> %s", cmd.Process.Pid, left, right)
	return &VirtualSerial{cmd: cmd, left: left, right: right}, nil
}

// Cleanup stops the socat process and removes the created links.
func (v *VirtualSerial) Cleanup() {
	v.mu.Lock()
	defer v.mu.Unlock()
	if v.closed {
		return
	}
	v.closed = true

	if v.cmd.Process != nil {
		log.Printf("[virt-serial] killing socat pid=%d", v.cmd.Process.Pid)
		_ = v.cmd.Process.Kill()
		_, _ = v.cmd.Process.Wait()
	}
	for _, path := range []string{v.left, v.right} {
		if _, err := os.Lstat(path); err == nil {
			_ = os.Remove(path)
			log.Printf("[virt-serial] removed link: %s", path)
		}
	}
}
