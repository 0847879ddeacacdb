package serial

import (
	"sync"

	"github.com/charmbracelet/log"
)

// Registry is the thread-safe name→Session mapping (spec.md §4.4). The map
// lock is held only for the lookup/insert/delete itself; every Session
// method call happens after the lock is released so a slow session never
// blocks an unrelated registry operation.
type Registry struct {
	opener Opener
	logger *log.Logger

	mu       sync.RWMutex
	sessions map[string]*Session
}

// NewRegistry returns an empty Registry. opener is used by Add to open new
// devices; production code passes OpenRealPort, tests pass a func returning
// *MockPort.
func NewRegistry(opener Opener, logger *log.Logger) *Registry {
	return &Registry{
		opener:   opener,
		logger:   logger,
		sessions: make(map[string]*Session),
	}
}

// Add opens and inserts a new session for cfg. If cfg.Enabled is false it
// returns success without creating any state. If a session for cfg.Name
// already exists, it returns ErrDuplicateName without touching the existing
// entry or leaking anything new.
func (r *Registry) Add(cfg PortConfig) error {
	if !cfg.Enabled {
		return nil
	}

	r.mu.Lock()
	if _, exists := r.sessions[cfg.Name]; exists {
		r.mu.Unlock()
		return ErrDuplicateName
	}
	// Reserve the name before releasing the lock and opening the device, so
	// a concurrent Add for the same name fails fast instead of racing to
	// open the same device twice.
	r.sessions[cfg.Name] = nil
	r.mu.Unlock()

	session, err := Open(cfg, r.opener, r.logger)
	if err != nil {
		r.mu.Lock()
		delete(r.sessions, cfg.Name)
		r.mu.Unlock()
		return err
	}

	r.mu.Lock()
	r.sessions[cfg.Name] = session
	r.mu.Unlock()
	return nil
}

// Remove stops and deletes the named session. It returns ErrNotFound if no
// session by that name exists.
func (r *Registry) Remove(name string) error {
	r.mu.Lock()
	session, ok := r.sessions[name]
	if !ok {
		r.mu.Unlock()
		return ErrNotFound
	}
	delete(r.sessions, name)
	r.mu.Unlock()

	if session != nil {
		session.Stop()
		<-session.Done()
	}
	return nil
}

// Get returns the named session, or nil if absent. The returned Session is
// safe to use after Get returns even if it is concurrently removed.
func (r *Registry) Get(name string) *Session {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.sessions[name]
}

// List returns a snapshot of the currently registered names, in unspecified
// order.
func (r *Registry) List() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	names := make([]string, 0, len(r.sessions))
	for name := range r.sessions {
		names = append(names, name)
	}
	return names
}

// Shutdown stops every session and waits for its tasks to terminate. It is
// safe to call more than once; later calls are no-ops.
func (r *Registry) Shutdown() {
	r.mu.Lock()
	sessions := make([]*Session, 0, len(r.sessions))
	for name, s := range r.sessions {
		if s != nil {
			sessions = append(sessions, s)
		}
		delete(r.sessions, name)
	}
	r.mu.Unlock()

	var wg sync.WaitGroup
	for _, s := range sessions {
		s.Stop()
		wg.Add(1)
		go func(s *Session) {
			defer wg.Done()
			<-s.Done()
		}(s)
	}
	wg.Wait()
}
