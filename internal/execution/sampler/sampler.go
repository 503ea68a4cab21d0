// Package sampler polls the resident memory of a running process and keeps the peak.
package sampler

import (
	"context"
	"errors"
	"os"
	"sync"
	"time"

	"github.com/prometheus/procfs"
	"golang.org/x/sys/unix"
)

// DefaultInterval is the polling period used when none is configured.
const DefaultInterval = 50 * time.Millisecond

// MemoryReader reads the resident memory of a process in bytes.
type MemoryReader interface {
	ResidentMemory(pid int) (uint64, error)
}

// ProcReader reads resident memory from /proc.
type ProcReader struct {
	fs procfs.FS
}

// NewProcReader opens the default proc mount.
func NewProcReader() (*ProcReader, error) {
	fs, err := procfs.NewDefaultFS()
	if err != nil {
		return nil, err
	}
	return &ProcReader{fs: fs}, nil
}

func (r *ProcReader) ResidentMemory(pid int) (uint64, error) {
	proc, err := r.fs.Proc(pid)
	if err != nil {
		return 0, err
	}
	stat, err := proc.Stat()
	if err != nil {
		return 0, err
	}
	rss := stat.ResidentMemory()
	if rss < 0 {
		return 0, nil
	}
	return uint64(rss), nil
}

// ProcessGone reports whether err means the sampled process no longer exists.
func ProcessGone(pid int, err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, os.ErrNotExist) || errors.Is(err, unix.ESRCH) {
		return true
	}
	return pid > 0 && errors.Is(unix.Kill(pid, 0), unix.ESRCH)
}

// Sampler tracks the peak resident memory of one process.
type Sampler struct {
	pid    int
	cancel context.CancelFunc
	done   chan struct{}
	once   sync.Once

	mu      sync.Mutex
	peak    uint64
	stopped bool
	lastErr error
}

// Start begins polling pid every interval. The first reading happens one
// interval after Start, so processes that exit sooner report a peak of 0.
func Start(ctx context.Context, pid int, interval time.Duration, reader MemoryReader) *Sampler {
	if interval <= 0 {
		interval = DefaultInterval
	}
	ctx, cancel := context.WithCancel(ctx)
	s := &Sampler{
		pid:    pid,
		cancel: cancel,
		done:   make(chan struct{}),
	}
	go s.loop(ctx, interval, reader)
	return s
}

func (s *Sampler) loop(ctx context.Context, interval time.Duration, reader MemoryReader) {
	defer close(s.done)
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}
		rss, err := reader.ResidentMemory(s.pid)
		if err != nil {
			s.mu.Lock()
			s.lastErr = err
			s.mu.Unlock()
			return
		}
		if !s.record(rss) {
			return
		}
	}
}

// record folds one reading into the peak. It returns false once stopped.
func (s *Sampler) record(rss uint64) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.stopped {
		return false
	}
	if rss > s.peak {
		s.peak = rss
	}
	return true
}

// Stop halts sampling and waits for the polling goroutine to exit.
// It is safe to call more than once and from any goroutine.
func (s *Sampler) Stop() {
	s.once.Do(func() {
		s.mu.Lock()
		s.stopped = true
		s.mu.Unlock()
		s.cancel()
	})
	<-s.done
}

// Peak returns the largest successful reading so far, in bytes.
func (s *Sampler) Peak() uint64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.peak
}

// Err returns the error that ended sampling early, if any.
func (s *Sampler) Err() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.lastErr
}

// PID returns the sampled process id.
func (s *Sampler) PID() int {
	return s.pid
}
