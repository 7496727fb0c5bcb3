package session

import (
	"sync"
	"time"
)

// Manager keeps one session per chat. Sessions idle for longer than the
// timeout are forgotten, and a chat without a session holds no memory.
type Manager struct {
	timeout time.Duration
	now     func() time.Time

	mu        sync.Mutex
	chats     map[int64]*slot
	lastSweep time.Time
}

type slot struct {
	mu      sync.Mutex
	session *Session
	touched time.Time
	// removed is set under mu once the slot left chats; holders retry on a fresh one.
	removed bool
}

func NewManager(timeout time.Duration) *Manager {
	return &Manager{timeout: timeout, now: time.Now, chats: map[int64]*slot{}}
}

// Do runs fn with the chat's current session (nil if none) and keeps what fn
// returns; returning nil ends the session. Calls for the same chat run one at
// a time.
func (m *Manager) Do(chatID int64, fn func(cur *Session) *Session) {
	m.sweep()
	for {
		m.mu.Lock()
		sl, ok := m.chats[chatID]
		if !ok {
			sl = &slot{}
			m.chats[chatID] = sl
		}
		m.mu.Unlock()

		sl.mu.Lock()
		if sl.removed {
			sl.mu.Unlock()
			continue
		}

		now := m.now()
		cur := sl.session
		if cur != nil && m.expired(sl, now) {
			cur = nil
		}
		sl.session = fn(cur)
		sl.touched = now
		if sl.session == nil {
			m.remove(chatID, sl)
		}
		sl.mu.Unlock()
		return
	}
}

// Active reports whether the chat is in the middle of a flow.
func (m *Manager) Active(chatID int64) bool {
	m.mu.Lock()
	sl, ok := m.chats[chatID]
	m.mu.Unlock()
	if !ok {
		return false
	}
	sl.mu.Lock()
	defer sl.mu.Unlock()
	return sl.session != nil && !m.expired(sl, m.now())
}

func (m *Manager) expired(sl *slot, now time.Time) bool {
	return m.timeout > 0 && now.Sub(sl.touched) > m.timeout
}

// remove drops sl from chats. The caller holds sl.mu.
func (m *Manager) remove(chatID int64, sl *slot) {
	m.mu.Lock()
	if m.chats[chatID] == sl {
		delete(m.chats, chatID)
	}
	m.mu.Unlock()
	sl.removed = true
}

// sweep drops idle slots, at most once per timeout. Slots busy in Do are skipped.
func (m *Manager) sweep() {
	if m.timeout <= 0 {
		return
	}
	now := m.now()
	m.mu.Lock()
	defer m.mu.Unlock()
	if now.Sub(m.lastSweep) < m.timeout {
		return
	}
	m.lastSweep = now
	for id, sl := range m.chats {
		if !sl.mu.TryLock() {
			continue
		}
		if sl.session == nil || m.expired(sl, now) {
			delete(m.chats, id)
			sl.removed = true
		}
		sl.mu.Unlock()
	}
}

func (m *Manager) len() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.chats)
}
