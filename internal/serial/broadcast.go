package serial

import (
	"context"
	"sync"
)

// broadcastCapacity is the ring buffer depth (spec.md §3: "ring buffer
// capacity 1000 byte-blocks").
const broadcastCapacity = 1000

// Lagged is returned by Subscription.Recv when the caller fell behind far
// enough that the ring buffer overwrote blocks it had not yet read. N is how
// many blocks were skipped.
type Lagged struct {
	N uint64
}

func (l *Lagged) Error() string {
	return "serial: subscriber lagged, blocks dropped"
}

// broadcastEntry is one retained byte block, tagged with its absolute
// sequence number so a lagging subscriber can tell how far it fell behind.
type broadcastEntry struct {
	seq  uint64
	data []byte
}

// broadcast is a lossy multi-consumer fan-out of byte blocks. Unlike a
// buffered Go channel per subscriber (the teacher's reader.go/manager.go
// pattern), a single ring buffer is shared by all subscribers so a slow
// reader loses only the blocks it actually missed and can be told how many —
// the per-subscriber-channel approach can only drop silently. Publish never
// blocks the producer; Recv blocks the caller until data arrives, the
// context is cancelled, or the broadcast is closed.
type broadcast struct {
	mu     sync.Mutex
	buf    []broadcastEntry
	oldest uint64 // sequence number of buf[0], or next if buf is empty
	next   uint64 // sequence number that will be assigned to the next Publish
	closed bool
	notify chan struct{} // closed and replaced on every Publish/Close
}

func newBroadcast() *broadcast {
	return &broadcast{
		buf:    make([]broadcastEntry, 0, broadcastCapacity),
		notify: make(chan struct{}),
	}
}

// Publish appends a block, evicting the oldest retained entry once the ring
// is full. It is safe to call from exactly one goroutine (the reader task)
// concurrently with any number of Recv callers.
func (b *broadcast) Publish(data []byte) {
	b.mu.Lock()
	if b.closed {
		b.mu.Unlock()
		return
	}
	b.buf = append(b.buf, broadcastEntry{seq: b.next, data: data})
	b.next++
	if len(b.buf) > broadcastCapacity {
		b.buf = b.buf[1:]
	}
	if len(b.buf) > 0 {
		b.oldest = b.buf[0].seq
	} else {
		b.oldest = b.next
	}
	ch := b.notify
	b.notify = make(chan struct{})
	b.mu.Unlock()
	close(ch)
}

// Close marks the broadcast closed; subsequent Recv calls return io.EOF-like
// completion (ok=false) once the caller has drained everything retained.
func (b *broadcast) Close() {
	b.mu.Lock()
	if b.closed {
		b.mu.Unlock()
		return
	}
	b.closed = true
	ch := b.notify
	b.notify = make(chan struct{})
	b.mu.Unlock()
	close(ch)
}

// Subscription is a single subscriber's read cursor into a broadcast. It
// begins positioned after every block published so far (spec.md §4.1:
// "begins observing blocks read after subscription").
type Subscription struct {
	b      *broadcast
	cursor uint64
}

// Subscribe returns a Subscription with no view of history.
func (b *broadcast) Subscribe() *Subscription {
	b.mu.Lock()
	cursor := b.next
	b.mu.Unlock()
	return &Subscription{b: b, cursor: cursor}
}

// Recv returns the next block, a *Lagged if this subscriber fell behind, or
// ok=false if the broadcast closed and nothing further remains. It blocks
// until one of those becomes true or ctx is cancelled.
func (s *Subscription) Recv(ctx context.Context) (data []byte, lag *Lagged, ok bool) {
	for {
		s.b.mu.Lock()
		if s.cursor < s.b.oldest {
			skipped := s.b.oldest - s.cursor
			s.cursor = s.b.oldest
			s.b.mu.Unlock()
			return nil, &Lagged{N: skipped}, true
		}
		if s.cursor < s.b.next {
			idx := s.cursor - s.b.oldest
			entry := s.b.buf[idx]
			s.cursor++
			s.b.mu.Unlock()
			return entry.data, nil, true
		}
		if s.b.closed {
			s.b.mu.Unlock()
			return nil, nil, false
		}
		wait := s.b.notify
		s.b.mu.Unlock()

		select {
		case <-wait:
		case <-ctx.Done():
			return nil, nil, false
		}
	}
}
