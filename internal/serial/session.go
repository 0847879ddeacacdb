package serial

import (
	"context"
	"errors"
	"fmt"
	"io"
	"sync"
	"sync/atomic"
	"time"

	"github.com/charmbracelet/log"
	"github.com/google/uuid"

	"github.com/serialmux/serialmux/internal/auditlog"
)

// mailboxCapacity is the bounded write mailbox's depth (spec.md §3).
const mailboxCapacity = 100

// readBufferSize is the fixed buffer the reader task reads into (spec.md
// §4.1: "a fixed 1 KiB buffer").
const readBufferSize = 1024

// Statistics is an atomic snapshot of a session's counters. It is returned
// by value so callers can read it without holding any lock.
type Statistics struct {
	BytesReceived uint64
	BytesSent     uint64
	IsConnected   bool
	StartTime     time.Time
}

// statistics is the live, concurrently-mutated form behind Session.Stats.
// Only the reader and writer tasks mutate it; any goroutine may read it.
type statistics struct {
	bytesReceived atomic.Uint64
	bytesSent     atomic.Uint64
	isConnected   atomic.Bool
	startTime     time.Time
}

func (s *statistics) snapshot() Statistics {
	return Statistics{
		BytesReceived: s.bytesReceived.Load(),
		BytesSent:     s.bytesSent.Load(),
		IsConnected:   s.isConnected.Load(),
		StartTime:     s.startTime,
	}
}

// Session owns one open device: the reader and writer tasks, the write
// mailbox, the broadcast channel, and the statistics record. Construct one
// with Open; every other method is safe to call concurrently.
type Session struct {
	ID     string
	Config PortConfig

	port Porter
	log  *auditlog.Writer
	bc   *broadcast

	mailbox chan []byte

	shutdown     chan struct{}
	shutdownOnce sync.Once
	closeOnce    sync.Once
	shuttingDown atomic.Bool
	writerDone   chan struct{}
	readerDone   chan struct{}

	stats  statistics
	logger *log.Logger
}

// Open opens the device via opener, starts its audit log if configured, and
// spawns the reader and writer tasks. No session state persists if any step
// fails.
func Open(cfg PortConfig, opener Opener, logger *log.Logger) (*Session, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	port, err := opener(cfg)
	if err != nil {
		return nil, err
	}

	var logw *auditlog.Writer
	if cfg.LoggingEnabled {
		logw, err = auditlog.New(cfg.LoggingPath, cfg.Name)
		if err != nil {
			port.Close()
			return nil, fmt.Errorf("%w: %w", ErrLogOpen, err)
		}
	}

	s := &Session{
		ID:         uuid.NewString(),
		Config:     cfg,
		port:       port,
		log:        logw,
		bc:         newBroadcast(),
		mailbox:    make(chan []byte, mailboxCapacity),
		shutdown:   make(chan struct{}),
		writerDone: make(chan struct{}),
		readerDone: make(chan struct{}),
		logger:     logger.With("port", cfg.Name),
	}
	s.stats.startTime = time.Now()
	s.stats.isConnected.Store(true)

	go s.readLoop()
	go s.writeLoop()
	// A pending device Read cannot be interrupted by a select; closing the
	// port forces it to return, which the reader loop treats as the
	// shutdown path (spec.md §9, "split device halves"). The port is closed
	// only after the writer has drained the mailbox, so blocks queued before
	// shutdown still reach the device.
	go func() {
		<-s.shutdown
		s.shuttingDown.Store(true)
		<-s.writerDone
		s.closePort()
	}()

	return s, nil
}

// Send enqueues one block on the write mailbox. ctx governs how long Send
// waits for room: context.Background() waits indefinitely, matching
// spec.md's "callers without a deadline wait"; a context with a deadline
// returns ErrMailboxFull once it expires. ErrMailboxClosed is returned
// immediately if the writer task has already exited.
func (s *Session) Send(ctx context.Context, data []byte) error {
	select {
	case <-s.writerDone:
		return ErrMailboxClosed
	default:
	}
	select {
	case s.mailbox <- data:
		return nil
	case <-s.writerDone:
		return ErrMailboxClosed
	case <-ctx.Done():
		return ErrMailboxFull
	}
}

// Subscribe returns a receiver observing blocks read after this call;
// history is never replayed.
func (s *Session) Subscribe() *Subscription {
	return s.bc.Subscribe()
}

// Stats returns a consistent snapshot of the session's counters.
func (s *Session) Stats() Statistics {
	return s.stats.snapshot()
}

// Stop triggers the shutdown signal and returns immediately; it is
// idempotent. Callers observe termination via Stats().IsConnected or by
// waiting on Done.
func (s *Session) Stop() {
	s.shutdownOnce.Do(func() {
		close(s.shutdown)
	})
}

// Done returns a channel closed once both the reader and writer tasks have
// exited and the device/log have been released.
func (s *Session) Done() <-chan struct{} {
	done := make(chan struct{})
	go func() {
		<-s.readerDone
		<-s.writerDone
		close(done)
	}()
	return done
}

func (s *Session) readLoop() {
	defer close(s.readerDone)
	defer s.stats.isConnected.Store(false)
	defer s.bc.Close()

	buf := make([]byte, readBufferSize)
	for {
		n, err := s.port.Read(buf)
		if err != nil {
			if !s.shuttingDown.Load() && !errors.Is(err, io.EOF) {
				s.logger.Error("device read failed", "err", err)
			}
			return
		}
		if n == 0 {
			// Zero-byte read is treated as remote close (spec.md §4.1, §8).
			return
		}

		block := make([]byte, n)
		copy(block, buf[:n])

		s.stats.bytesReceived.Add(uint64(n))

		if s.log != nil {
			if err := s.log.Record(auditlog.RX, block); err != nil {
				s.logger.Error("audit log write failed", "direction", "RX", "err", err)
			}
		}

		s.bc.Publish(block)
	}
}

func (s *Session) writeLoop() {
	defer close(s.writerDone)
	for {
		select {
		case block, ok := <-s.mailbox:
			if !ok {
				s.release()
				return
			}
			if _, err := s.port.Write(block); err != nil {
				s.logger.Error("device write failed", "err", err)
				continue
			}
			s.stats.bytesSent.Add(uint64(len(block)))
			if s.log != nil {
				if err := s.log.Record(auditlog.TX, block); err != nil {
					s.logger.Error("audit log write failed", "direction", "TX", "err", err)
				}
			}
		case <-s.shutdown:
			s.drainAndClose()
			return
		}
	}
}

// drainAndClose writes out any blocks already queued in the mailbox before
// exiting, then releases the device and log (spec.md §5: "the write task
// drains queued writes then exits").
func (s *Session) drainAndClose() {
	for {
		select {
		case block, ok := <-s.mailbox:
			if !ok {
				s.release()
				return
			}
			if _, err := s.port.Write(block); err != nil {
				s.logger.Error("device write failed", "err", err)
				continue
			}
			s.stats.bytesSent.Add(uint64(len(block)))
			if s.log != nil {
				if err := s.log.Record(auditlog.TX, block); err != nil {
					s.logger.Error("audit log write failed", "direction", "TX", "err", err)
				}
			}
		default:
			s.release()
			return
		}
	}
}

func (s *Session) closePort() {
	s.closeOnce.Do(func() {
		if err := s.port.Close(); err != nil {
			s.logger.Error("device close failed", "err", err)
		}
	})
}

func (s *Session) release() {
	s.closePort()
	if s.log != nil {
		if err := s.log.Close(); err != nil {
			s.logger.Error("audit log close failed", "err", err)
		}
	}
}
