package session

import (
	"context"
	"sync"

	"github.com/hashicorp/go-hclog"
)

// Manager owns the arena of live sessions, keyed by task id. Tool calls ask
// it for a handle instead of holding connection state themselves, so two
// calls against different tasks never share mutable transport state.
type Manager struct {
	wsURL  string
	tokens TokenSource
	log    hclog.Logger

	mu       sync.Mutex
	sessions map[string]*Session
	connects map[string]*connectAttempt
}

// connectAttempt tracks one in-flight dial so concurrent Attach calls for
// the same task share its outcome instead of racing to replace each other's
// session.
type connectAttempt struct {
	done chan struct{}
	sess *Session
	err  error
}

// NewManager creates a session manager dialing channels under wsURL.
func NewManager(wsURL string, tokens TokenSource, log hclog.Logger) *Manager {
	if log == nil {
		log = hclog.NewNullLogger()
	}
	return &Manager{
		wsURL:    wsURL,
		tokens:   tokens,
		log:      log,
		sessions: make(map[string]*Session),
		connects: make(map[string]*connectAttempt),
	}
}

// Attach returns the live session for taskID, connecting a fresh one if
// none is open. A caller arriving while another Attach for the same task is
// still dialing waits for that dial and shares its session, so a task never
// holds two connections. previouslyConnected suppresses the automated
// introduction when resuming a task the agent already greeted.
func (m *Manager) Attach(ctx context.Context, taskID string, previouslyConnected bool) (*Session, error) {
	m.mu.Lock()
	if existing, ok := m.sessions[taskID]; ok && existing.Connected() {
		m.mu.Unlock()
		return existing, nil
	}
	if inflight, ok := m.connects[taskID]; ok {
		m.mu.Unlock()
		select {
		case <-inflight.done:
			return inflight.sess, inflight.err
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
	attempt := &connectAttempt{done: make(chan struct{})}
	m.connects[taskID] = attempt
	m.mu.Unlock()

	sess := newSession(taskID, m.wsURL, m.tokens, previouslyConnected, m.log)
	err := sess.connect(ctx)

	m.mu.Lock()
	delete(m.connects, taskID)
	if err == nil {
		m.sessions[taskID] = sess
	}
	m.mu.Unlock()

	if err != nil {
		attempt.err = err
		close(attempt.done)
		return nil, err
	}
	attempt.sess = sess
	close(attempt.done)
	return sess, nil
}

// Get returns the session for taskID if one exists, nil otherwise.
func (m *Manager) Get(taskID string) *Session {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.sessions[taskID]
}

// Remove drops the session handle for taskID. It does not disconnect; call
// Disconnect on the session first when the channel is still open.
func (m *Manager) Remove(taskID string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.sessions, taskID)
}

// Shutdown disconnects every live session with a best-effort end
// notification. Bounded by the per-session disconnect grace, so process
// exit is never held up indefinitely.
func (m *Manager) Shutdown(reason string) {
	m.mu.Lock()
	sessions := make([]*Session, 0, len(m.sessions))
	for _, s := range m.sessions {
		sessions = append(sessions, s)
	}
	m.sessions = make(map[string]*Session)
	m.mu.Unlock()

	var wg sync.WaitGroup
	for _, s := range sessions {
		wg.Add(1)
		go func(s *Session) {
			defer wg.Done()
			s.Disconnect(reason)
		}(s)
	}
	wg.Wait()
}
