package pipeline

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"os"
	"sync"
	"sync/atomic"

	"voxelcraft.ai/signdump/internal/faults"
)

var ErrSinkClosed = errors.New("sink closed")

type SinkStats struct {
	Batches uint64
	Lines   uint64
	Bytes   uint64
}

// Sink is the shared output file. Workers hand it line batches; a single
// writer goroutine owns the file, so batches never interleave.
type Sink struct {
	path string
	out  io.WriteCloser
	w    *bufio.Writer

	mu     sync.RWMutex
	closed bool
	ch     chan batch
	wg     sync.WaitGroup
	once   sync.Once

	errMu sync.Mutex
	err   error

	batches atomic.Uint64
	lines   atomic.Uint64
	bytes   atomic.Uint64
}

type batch struct {
	data  []byte
	lines int
}

// CreateSink creates path for writing and fails if it already exists.
func CreateSink(path string) (*Sink, error) {
	f, err := os.OpenFile(path, os.O_CREATE|os.O_EXCL|os.O_WRONLY, 0o644)
	if err != nil {
		if errors.Is(err, os.ErrExist) {
			return nil, faults.New(faults.ErrConfig, "output %s already exists", path)
		}
		return nil, faults.Wrap(faults.ErrConfig, fmt.Errorf("create output: %w", err))
	}
	s := NewSink(f)
	s.path = path
	return s, nil
}

// NewSink wraps out. Close closes out.
func NewSink(out io.WriteCloser) *Sink {
	s := &Sink{
		out: out,
		w:   bufio.NewWriterSize(out, 256*1024),
		ch:  make(chan batch, 256),
	}
	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		s.loop()
	}()
	return s
}

func (s *Sink) Path() string { return s.path }

// Write queues a batch of newline-terminated lines. It blocks while the
// writer is behind and returns the first write error seen so far. The sink
// keeps data; callers must not reuse it.
func (s *Sink) Write(data []byte, lines int) error {
	if len(data) == 0 {
		return s.firstErr()
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.closed {
		return ErrSinkClosed
	}
	if err := s.firstErr(); err != nil {
		return err
	}
	s.ch <- batch{data: data, lines: lines}
	return nil
}

func (s *Sink) loop() {
	for b := range s.ch {
		if s.firstErr() != nil {
			continue
		}
		if _, err := s.w.Write(b.data); err != nil {
			s.setErr(faults.Wrap(faults.ErrIO, fmt.Errorf("write output: %w", err)))
			continue
		}
		s.batches.Add(1)
		s.lines.Add(uint64(b.lines))
		s.bytes.Add(uint64(len(b.data)))
	}
	if err := s.w.Flush(); err != nil {
		s.setErr(faults.Wrap(faults.ErrIO, fmt.Errorf("flush output: %w", err)))
	}
}

func (s *Sink) firstErr() error {
	s.errMu.Lock()
	defer s.errMu.Unlock()
	return s.err
}

func (s *Sink) setErr(err error) {
	s.errMu.Lock()
	defer s.errMu.Unlock()
	if s.err == nil {
		s.err = err
	}
}

// Close drains queued batches, flushes and closes the file.
func (s *Sink) Close() error {
	s.once.Do(func() {
		s.mu.Lock()
		s.closed = true
		close(s.ch)
		s.mu.Unlock()

		s.wg.Wait()
		if err := s.out.Close(); err != nil {
			s.setErr(faults.Wrap(faults.ErrIO, fmt.Errorf("close output: %w", err)))
		}
	})
	return s.firstErr()
}

func (s *Sink) Stats() SinkStats {
	return SinkStats{
		Batches: s.batches.Load(),
		Lines:   s.lines.Load(),
		Bytes:   s.bytes.Load(),
	}
}
