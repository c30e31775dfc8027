// Package protocol defines the chat wire protocol shared by the server hub
// and the client transport. Every frame is a JSON object
//
//	{"type": "...", "conversation_id": N, "data": {...}}
//
// where type is one of the five recognized event kinds. Decoded frames are
// represented as a closed set of Event implementations so dispatch sites can
// type-switch exhaustively.
package protocol

import (
	"encoding/json"
	"fmt"

	"github.com/shakirjon803-cell/obmen/internal/models"
)

// Event kinds carried in the frame "type" field.
const (
	KindMessage = "message"
	KindTyping  = "typing"
	KindRead    = "read"
	KindOnline  = "online"
	KindError   = "error"
)

// Frame is the raw wire shape before the kind-specific payload is decoded.
type Frame struct {
	Type           string          `json:"type"`
	ConversationID int64           `json:"conversation_id,omitempty"`
	Data           json.RawMessage `json:"data,omitempty"`
}

// Event is the decoded form of one wire frame. The interface is sealed: only
// the five event types in this package implement it.
type Event interface {
	Kind() string
}

// MessageEvent carries a newly created message for a conversation.
type MessageEvent struct {
	ConversationID int64
	Message        models.Message
}

// TypingEvent signals that a user is typing in a conversation.
type TypingEvent struct {
	ConversationID int64
	UserID         int64
}

// ReadEvent signals that the counterpart read all messages in a conversation.
type ReadEvent struct {
	ConversationID int64
}

// OnlineEvent carries a presence change for a user.
type OnlineEvent struct {
	UserID   int64
	IsOnline bool
}

// ErrorEvent carries a server-side diagnostic. Not required for correctness.
type ErrorEvent struct {
	Detail string
}

func (MessageEvent) Kind() string { return KindMessage }
func (TypingEvent) Kind() string  { return KindTyping }
func (ReadEvent) Kind() string    { return KindRead }
func (OnlineEvent) Kind() string  { return KindOnline }
func (ErrorEvent) Kind() string   { return KindError }

type typingPayload struct {
	UserID int64 `json:"user_id"`
}

type onlinePayload struct {
	UserID   int64 `json:"user_id"`
	IsOnline bool  `json:"is_online"`
}

type errorPayload struct {
	Detail string `json:"detail,omitempty"`
}

// Decode parses one wire frame into an Event. A parse failure or an
// unrecognized type is returned as an error; callers on the receive path log
// and discard, they never propagate.
func Decode(data []byte) (Event, error) {
	var frame Frame
	if err := json.Unmarshal(data, &frame); err != nil {
		return nil, fmt.Errorf("malformed frame: %w", err)
	}

	switch frame.Type {
	case KindMessage:
		var msg models.Message
		if err := json.Unmarshal(frame.Data, &msg); err != nil {
			return nil, fmt.Errorf("malformed message payload: %w", err)
		}
		return MessageEvent{ConversationID: frame.ConversationID, Message: msg}, nil

	case KindTyping:
		var p typingPayload
		if err := json.Unmarshal(frame.Data, &p); err != nil {
			return nil, fmt.Errorf("malformed typing payload: %w", err)
		}
		return TypingEvent{ConversationID: frame.ConversationID, UserID: p.UserID}, nil

	case KindRead:
		// Data is ignored; type plus conversation_id is sufficient.
		return ReadEvent{ConversationID: frame.ConversationID}, nil

	case KindOnline:
		var p onlinePayload
		if err := json.Unmarshal(frame.Data, &p); err != nil {
			return nil, fmt.Errorf("malformed online payload: %w", err)
		}
		return OnlineEvent{UserID: p.UserID, IsOnline: p.IsOnline}, nil

	case KindError:
		var p errorPayload
		if len(frame.Data) > 0 {
			if err := json.Unmarshal(frame.Data, &p); err != nil {
				return nil, fmt.Errorf("malformed error payload: %w", err)
			}
		}
		return ErrorEvent{Detail: p.Detail}, nil

	default:
		return nil, fmt.Errorf("unknown frame type %q", frame.Type)
	}
}

// Encode serializes an Event into its wire frame.
func Encode(ev Event) ([]byte, error) {
	frame := Frame{Type: ev.Kind()}

	var payload any
	switch e := ev.(type) {
	case MessageEvent:
		frame.ConversationID = e.ConversationID
		payload = e.Message
	case TypingEvent:
		frame.ConversationID = e.ConversationID
		payload = typingPayload{UserID: e.UserID}
	case ReadEvent:
		frame.ConversationID = e.ConversationID
	case OnlineEvent:
		payload = onlinePayload{UserID: e.UserID, IsOnline: e.IsOnline}
	case ErrorEvent:
		payload = errorPayload{Detail: e.Detail}
	default:
		return nil, fmt.Errorf("unknown event type %T", ev)
	}

	if payload != nil {
		data, err := json.Marshal(payload)
		if err != nil {
			return nil, fmt.Errorf("encode %s payload: %w", ev.Kind(), err)
		}
		frame.Data = data
	}

	return json.Marshal(frame)
}
