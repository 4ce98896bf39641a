// Package protocol defines the frame format exchanged over an exchange
// session channel. Every frame is a JSON envelope tagged by Kind; payload
// structs live in payloads.go.
package protocol

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
)

// Kind identifies a frame type on the session channel. The set is closed:
// dispatch switches over Kind exhaustively and treats anything else as a
// protocol error rather than a silent no-op.
type Kind string

// Inbound frame kinds.
const (
	KindConnected         Kind = "connected"
	KindCustomerMessage   Kind = "customer_message"
	KindEngineerMessage   Kind = "engineer_message"
	KindAssistantMessage  Kind = "ai_assistant_message"
	KindCustomerConnected Kind = "customer_connected"
	KindEngineerConnected Kind = "engineer_connected"
	KindBillingUpdate     Kind = "billing_update"
	KindClosureRequest    Kind = "closure_request"
	KindSessionEnd        Kind = "session_end"
	KindRequestCommand    Kind = "request_command"
	KindCommandOutput     Kind = "command_output"
)

// Outbound frame kinds. Customer and assistant messages travel in both
// directions; end_session is client-initiated only.
const (
	KindEndSession Kind = "end_session"
)

// Frame is the wire envelope for one message on the session channel.
type Frame struct {
	ID      string          `json:"id"`
	Kind    Kind            `json:"kind"`
	Payload json.RawMessage `json:"payload,omitempty"`
	SentAt  time.Time       `json:"sentAt"`
}

// New builds a frame with a fresh id and the payload marshalled in place.
func New(kind Kind, payload any) (*Frame, error) {
	f := &Frame{
		ID:     uuid.NewString(),
		Kind:   kind,
		SentAt: time.Now().UTC(),
	}
	if payload != nil {
		data, err := json.Marshal(payload)
		if err != nil {
			return nil, fmt.Errorf("marshal %s payload: %w", kind, err)
		}
		f.Payload = data
	}
	return f, nil
}

// DecodePayload unmarshals the frame payload into dst.
func DecodePayload(f *Frame, dst any) error {
	if len(f.Payload) == 0 {
		return fmt.Errorf("frame %s has no payload", f.Kind)
	}
	if err := json.Unmarshal(f.Payload, dst); err != nil {
		return fmt.Errorf("decode %s payload: %w", f.Kind, err)
	}
	return nil
}

// Sender returns the logical sender role for a message-bearing frame kind,
// and false for control frames.
func (k Kind) Sender() (string, bool) {
	switch k {
	case KindCustomerMessage:
		return "customer", true
	case KindEngineerMessage:
		return "engineer", true
	case KindAssistantMessage:
		return "assistant", true
	default:
		return "", false
	}
}

// IsControl reports whether the kind is a session-control frame rather than
// a conversational message.
func (k Kind) IsControl() bool {
	switch k {
	case KindConnected, KindCustomerConnected, KindEngineerConnected,
		KindBillingUpdate, KindClosureRequest, KindSessionEnd:
		return true
	default:
		return false
	}
}
