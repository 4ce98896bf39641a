// Package session owns the duplex channel between the client and the
// engineer working a task. One Session is bound to one task while its
// connection is open; the Manager keeps the arena of live sessions keyed
// by task id so callers hold an explicit handle instead of sharing a
// single mutable connection.
package session

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/hashicorp/go-hclog"

	"lifeline/protocol"
	"lifeline/reply"
)

const (
	writeWait        = 10 * time.Second
	pongWait         = 60 * time.Second
	pingPeriod       = (pongWait * 9) / 10
	handshakeTimeout = 15 * time.Second

	// disconnectGrace bounds how long a best-effort end notification may
	// delay teardown.
	disconnectGrace = 500 * time.Millisecond
)

const greeting = "An AI coding agent has joined this task on behalf of the customer. " +
	"It will relay questions and apply your suggestions in the customer's workspace."

// ConnectionError reports a channel that failed to open or dropped while a
// wait was outstanding.
type ConnectionError struct {
	TaskID string
	Reason string
}

func (e *ConnectionError) Error() string {
	return fmt.Sprintf("session channel for task %s: %s", e.TaskID, e.Reason)
}

type connState int

const (
	stateDisconnected connState = iota
	stateConnecting
	stateConnected
	stateClosing
)

// Message is one buffered entry awaiting consumption by a wait operation.
type Message struct {
	Sender  string
	Content string
	Kind    protocol.Kind
	At      time.Time
}

type waitOutcome struct {
	reply reply.Reply
	err   error
}

// pendingWait is the single outstanding AwaitReply, if any. The channel is
// buffered so the dispatcher never blocks on resolution.
type pendingWait struct {
	ch chan waitOutcome
}

// TokenSource mirrors directory.TokenSource for the channel handshake.
type TokenSource interface {
	GetValidToken(ctx context.Context) (string, error)
}

// Session is the client side of one task channel.
type Session struct {
	taskID string
	wsURL  string
	tokens TokenSource
	log    hclog.Logger

	send      chan []byte
	handshake chan struct{}
	done      chan struct{}

	mu                  sync.Mutex
	state               connState
	ws                  *websocket.Conn
	hasGreeted          bool
	previouslyConnected bool
	buffer              []Message
	pending             *pendingWait
	creditsUsed         int
	handshakeOnce       sync.Once
	teardownOnce        sync.Once
}

func newSession(taskID, wsURL string, tokens TokenSource, previouslyConnected bool, log hclog.Logger) *Session {
	return &Session{
		taskID:              taskID,
		wsURL:               wsURL,
		tokens:              tokens,
		log:                 log.Named("session").With("taskId", taskID),
		send:                make(chan []byte, 256),
		handshake:           make(chan struct{}),
		done:                make(chan struct{}),
		previouslyConnected: previouslyConnected,
	}
}

// TaskID returns the task this session is bound to.
func (s *Session) TaskID() string {
	return s.taskID
}

// Connected reports whether the channel is currently open.
func (s *Session) Connected() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state == stateConnected
}

// connect dials the channel and blocks until the server's connected frame
// arrives. Socket-open alone is not enough: the logical handshake frame is
// what proves the task channel is live.
func (s *Session) connect(ctx context.Context) error {
	token, err := s.tokens.GetValidToken(ctx)
	if err != nil {
		return &ConnectionError{TaskID: s.taskID, Reason: fmt.Sprintf("auth: %v", err)}
	}

	s.mu.Lock()
	if s.state != stateDisconnected {
		s.mu.Unlock()
		return fmt.Errorf("session for task %s already %s", s.taskID, s.stateName())
	}
	s.state = stateConnecting
	s.mu.Unlock()

	header := http.Header{}
	header.Set("Authorization", "Bearer "+token)
	header.Set("X-Participant", "ai_assistant")

	url := fmt.Sprintf("%s/tasks/%s/channel", s.wsURL, s.taskID)
	ws, _, err := websocket.DefaultDialer.DialContext(ctx, url, header)
	if err != nil {
		s.mu.Lock()
		s.state = stateDisconnected
		s.mu.Unlock()
		return &ConnectionError{TaskID: s.taskID, Reason: fmt.Sprintf("dial: %v", err)}
	}

	s.mu.Lock()
	s.ws = ws
	s.mu.Unlock()

	go s.readPump()
	go s.writePump()

	select {
	case <-s.handshake:
		return nil
	case <-s.done:
		return &ConnectionError{TaskID: s.taskID, Reason: "channel closed during handshake"}
	case <-time.After(handshakeTimeout):
		s.teardown("handshake timed out")
		return &ConnectionError{TaskID: s.taskID, Reason: "handshake timed out"}
	case <-ctx.Done():
		s.teardown("cancelled")
		return ctx.Err()
	}
}

func (s *Session) readPump() {
	defer func() {
		s.teardown("connection closed")
	}()

	s.ws.SetReadDeadline(time.Now().Add(pongWait))
	s.ws.SetPongHandler(func(string) error {
		s.ws.SetReadDeadline(time.Now().Add(pongWait))
		return nil
	})

	for {
		_, message, err := s.ws.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				s.log.Warn("channel read error", "error", err)
			}
			return
		}

		var frame protocol.Frame
		if err := json.Unmarshal(message, &frame); err != nil {
			s.log.Warn("invalid frame from exchange", "error", err)
			continue
		}

		s.dispatch(&frame)
	}
}

func (s *Session) writePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		s.ws.Close()
	}()

	for {
		select {
		case message, ok := <-s.send:
			s.ws.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				s.ws.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if err := s.ws.WriteMessage(websocket.TextMessage, message); err != nil {
				return
			}
		case <-ticker.C:
			s.ws.SetWriteDeadline(time.Now().Add(writeWait))
			if err := s.ws.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		case <-s.done:
			return
		}
	}
}

// dispatch routes one inbound frame. It never blocks: message frames append
// to the buffer and possibly resolve the pending wait; control frames mutate
// session state. The switch covers the full closed set of frame kinds.
func (s *Session) dispatch(frame *protocol.Frame) {
	switch frame.Kind {
	case protocol.KindConnected:
		s.handleConnected(frame)

	case protocol.KindCustomerMessage, protocol.KindAssistantMessage:
		sender, _ := frame.Kind.Sender()
		s.bufferMessage(sender, s.messageContent(frame), frame.Kind, false)

	case protocol.KindEngineerMessage:
		// Resolve-then-ack order matters: the ack must never precede the
		// reply being recorded in the buffer.
		acked := s.bufferMessage("engineer", s.messageContent(frame), frame.Kind, true)
		if acked {
			s.SendAssistantMessage("Received, relaying to the agent now.",
				map[string]string{"auto": "ack"})
		}

	case protocol.KindCustomerConnected, protocol.KindEngineerConnected:
		s.log.Debug("participant joined", "kind", frame.Kind)

	case protocol.KindBillingUpdate:
		var billing protocol.BillingUpdatePayload
		if err := protocol.DecodePayload(frame, &billing); err != nil {
			s.log.Warn("bad billing update", "error", err)
			return
		}
		s.mu.Lock()
		s.creditsUsed = billing.UnitsUsed
		s.mu.Unlock()

	case protocol.KindClosureRequest:
		var closure protocol.ClosureRequestPayload
		_ = protocol.DecodePayload(frame, &closure)
		content := "The engineer asked to wrap up this session."
		if closure.Reason != "" {
			content = fmt.Sprintf("The engineer asked to wrap up this session: %s", closure.Reason)
		}
		s.bufferMessage("system", content, frame.Kind, false)
		s.resolvePending(nil)

	case protocol.KindSessionEnd:
		var end protocol.SessionEndPayload
		_ = protocol.DecodePayload(frame, &end)
		content := fmt.Sprintf("Session ended by %s.", end.EndedBy)
		if end.Summary != "" {
			content += " Summary: " + end.Summary
		}
		s.bufferMessage("system", content, frame.Kind, false)
		s.resolvePending(nil)
		s.mu.Lock()
		s.state = stateClosing
		s.mu.Unlock()

	case protocol.KindRequestCommand:
		var req protocol.RequestCommandPayload
		if err := protocol.DecodePayload(frame, &req); err != nil {
			s.log.Warn("bad command request", "error", err)
			return
		}
		content := fmt.Sprintf("The engineer requests running `%s`", req.Command)
		if req.Reason != "" {
			content += " (" + req.Reason + ")"
		}
		s.bufferMessage("system", content, frame.Kind, false)

	case protocol.KindCommandOutput:
		var out protocol.CommandOutputPayload
		if err := protocol.DecodePayload(frame, &out); err != nil {
			s.log.Warn("bad command output", "error", err)
			return
		}
		content := fmt.Sprintf("Command exited %d.\nstdout:\n%s\nstderr:\n%s", out.ExitCode, out.Stdout, out.Stderr)
		s.bufferMessage("system", content, frame.Kind, false)

	case protocol.KindEndSession:
		// Outbound-only kind; an inbound copy is a server bug worth noting.
		s.log.Warn("unexpected inbound end_session frame")

	default:
		s.log.Warn("unhandled frame kind", "kind", frame.Kind)
	}
}

func (s *Session) handleConnected(frame *protocol.Frame) {
	var connected protocol.ConnectedPayload
	if err := protocol.DecodePayload(frame, &connected); err == nil && connected.EngineerDisplayName != "" {
		s.log.Info("channel connected", "engineer", connected.EngineerDisplayName)
	} else {
		s.log.Info("channel connected")
	}

	s.mu.Lock()
	s.state = stateConnected
	greet := !s.hasGreeted && !s.previouslyConnected
	if greet {
		s.hasGreeted = true
	}
	s.mu.Unlock()

	s.handshakeOnce.Do(func() { close(s.handshake) })

	if greet {
		s.SendAssistantMessage(greeting, map[string]string{"auto": "introduction"})
	}
}

func (s *Session) messageContent(frame *protocol.Frame) string {
	var msg protocol.MessagePayload
	if err := protocol.DecodePayload(frame, &msg); err != nil {
		s.log.Warn("bad message payload", "kind", frame.Kind, "error", err)
		return ""
	}
	return msg.Content
}

// bufferMessage appends in arrival order. When resolveWait is set and a wait
// is pending, the wait resolves with the full buffer; the return value
// reports whether that happened.
func (s *Session) bufferMessage(sender, content string, kind protocol.Kind, resolveWait bool) bool {
	if content == "" {
		return false
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	s.buffer = append(s.buffer, Message{
		Sender:  sender,
		Content: content,
		Kind:    kind,
		At:      time.Now(),
	})

	if resolveWait && s.pending != nil {
		s.resolvePendingLocked(nil)
		return true
	}
	return false
}

// resolvePending resolves (never rejects) the pending wait with whatever has
// been buffered so far. No-op without a pending wait.
func (s *Session) resolvePending(err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.resolvePendingLocked(err)
}

func (s *Session) resolvePendingLocked(err error) {
	if s.pending == nil {
		return
	}
	w := s.pending
	s.pending = nil
	if err != nil {
		w.ch <- waitOutcome{err: err}
		return
	}
	w.ch <- waitOutcome{reply: s.drainLocked()}
}

// drainLocked consumes the buffer into a Reply, joining messages in arrival
// order with a sender prefix on each.
func (s *Session) drainLocked() reply.Reply {
	parts := make([]string, len(s.buffer))
	for i, m := range s.buffer {
		parts[i] = fmt.Sprintf("[%s]: %s", m.Sender, m.Content)
	}
	s.buffer = nil
	text := ""
	for i, p := range parts {
		if i > 0 {
			text += "\n"
		}
		text += p
	}
	return reply.Reply{Text: text, CreditsUsed: s.creditsUsed}
}

// AwaitReply implements reply.Waiter in push mode. A second call while one
// is outstanding is rejected rather than silently replacing the first.
func (s *Session) AwaitReply(ctx context.Context, timeout time.Duration) (reply.Reply, error) {
	s.mu.Lock()
	if s.state != stateConnected && s.state != stateClosing {
		s.mu.Unlock()
		return reply.Reply{}, &ConnectionError{TaskID: s.taskID, Reason: "not connected"}
	}
	if s.pending != nil {
		s.mu.Unlock()
		return reply.Reply{}, fmt.Errorf("a reply wait is already in flight for task %s", s.taskID)
	}

	// An engineer reply that arrived before the wait began resolves it
	// immediately.
	for _, m := range s.buffer {
		if m.Kind == protocol.KindEngineerMessage || m.Kind == protocol.KindSessionEnd || m.Kind == protocol.KindClosureRequest {
			r := s.drainLocked()
			s.mu.Unlock()
			return r, nil
		}
	}

	w := &pendingWait{ch: make(chan waitOutcome, 1)}
	s.pending = w
	s.mu.Unlock()

	timer := time.NewTimer(timeout)
	defer timer.Stop()

	select {
	case out := <-w.ch:
		return out.reply, out.err
	case <-timer.C:
		if s.clearPending(w) {
			return reply.Reply{}, &reply.TimeoutError{After: timeout}
		}
		// The dispatcher resolved concurrently with the timer firing; the
		// outcome is already in the channel.
		out := <-w.ch
		return out.reply, out.err
	case <-ctx.Done():
		if s.clearPending(w) {
			return reply.Reply{}, ctx.Err()
		}
		out := <-w.ch
		return out.reply, out.err
	}
}

// clearPending removes w if it is still the registered wait, reporting
// whether it was. A false return means a resolution already won the race.
func (s *Session) clearPending(w *pendingWait) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.pending == w {
		s.pending = nil
		return true
	}
	return false
}

// SendCustomerMessage relays the customer's own words over the channel.
// Best-effort: returns false with a logged failure when the channel is not
// open, it never panics or throws.
func (s *Session) SendCustomerMessage(content string) bool {
	return s.sendFrame(protocol.KindCustomerMessage, protocol.MessagePayload{Content: content})
}

// SendAssistantMessage sends a message authored by the agent itself.
func (s *Session) SendAssistantMessage(content string, metadata map[string]string) bool {
	return s.sendFrame(protocol.KindAssistantMessage, protocol.MessagePayload{Content: content, Metadata: metadata})
}

func (s *Session) sendFrame(kind protocol.Kind, payload any) bool {
	s.mu.Lock()
	open := s.state == stateConnected || s.state == stateClosing
	s.mu.Unlock()
	if !open {
		s.log.Warn("dropping outbound frame, channel not open", "kind", kind)
		return false
	}

	frame, err := protocol.New(kind, payload)
	if err != nil {
		s.log.Error("build frame", "kind", kind, "error", err)
		return false
	}
	data, err := json.Marshal(frame)
	if err != nil {
		s.log.Error("marshal frame", "kind", kind, "error", err)
		return false
	}

	select {
	case s.send <- data:
		return true
	default:
		s.log.Warn("outbound queue full, dropping frame", "kind", kind)
		return false
	}
}

// Disconnect notifies the exchange, waits briefly for the notification to
// flush, and tears the session down. Teardown is idempotent and total: the
// buffer, pending wait, and greeting state are cleared regardless of whether
// the notification made it out.
func (s *Session) Disconnect(reason string) {
	s.mu.Lock()
	wasOpen := s.state == stateConnected
	if wasOpen {
		s.state = stateClosing
	}
	s.mu.Unlock()

	if wasOpen {
		if s.sendFrame(protocol.KindEndSession, protocol.SessionEndPayload{EndedBy: "ai_assistant", Reason: reason}) {
			time.Sleep(disconnectGrace)
		}
	}

	s.teardown("disconnected")
}

func (s *Session) teardown(reason string) {
	s.teardownOnce.Do(func() {
		close(s.done)
	})

	s.mu.Lock()
	defer s.mu.Unlock()

	if s.pending != nil {
		s.resolvePendingLocked(&ConnectionError{TaskID: s.taskID, Reason: reason})
	}
	s.buffer = nil
	s.hasGreeted = false
	s.state = stateDisconnected
	if s.ws != nil {
		s.ws.Close()
	}
}

func (s *Session) stateName() string {
	switch s.state {
	case stateConnecting:
		return "connecting"
	case stateConnected:
		return "connected"
	case stateClosing:
		return "closing"
	default:
		return "disconnected"
	}
}
