package realtime

import (
	"encoding/json"
	"errors"
	"time"
)

// Inbound event types. Frames are UTF-8 JSON with a required "type" field.
const (
	EventAuth           = "auth"
	EventPresenceUpdate = "presence:update"
	EventPromptLock     = "prompt:lock"
	EventPromptUnlock   = "prompt:unlock"
	EventPromptUpdate   = "prompt:update"
	EventCommentNew     = "comment:new"
	EventCursorMove     = "cursor:move"
)

// Outbound event types.
const (
	EventAuthOK         = "auth:ok"
	EventPresenceLeave  = "presence:leave"
	EventPromptLocked   = "prompt:locked"
	EventPromptUnlocked = "prompt:unlocked"
	EventPromptUpdated  = "prompt:updated"
	EventCommentAdded   = "comment:added"
	EventCursorMoved    = "cursor:moved"
	EventError          = "error"
)

var (
	ErrMalformed   = errors.New("malformed message")
	ErrUnknownType = errors.New("unknown message type")
)

type AuthPayload struct {
	PromptID uint64 `json:"prompt_id,omitempty"`
}

type PresenceUpdatePayload struct {
	PromptID uint64 `json:"prompt_id,omitempty"`
	Cursor   *int   `json:"cursor,omitempty"`
}

type LockPayload struct {
	PromptID uint64 `json:"prompt_id"`
}

type UpdatePayload struct {
	PromptID uint64 `json:"prompt_id"`
	Content  string `json:"content"`
}

type CommentPayload struct {
	PromptID uint64 `json:"prompt_id"`
	Content  string `json:"content"`
}

type CursorPayload struct {
	Position int `json:"position"`
}

// InboundMessage is the decoded union over the inbound event kinds. Exactly
// one payload pointer is set, matching Type.
type InboundMessage struct {
	Type           string
	Auth           *AuthPayload
	PresenceUpdate *PresenceUpdatePayload
	Lock           *LockPayload
	Unlock         *LockPayload
	Update         *UpdatePayload
	Comment        *CommentPayload
	Cursor         *CursorPayload
}

// DecodeMessage parses a raw frame once at the dispatcher boundary.
// Unparseable JSON or a missing type yields ErrMalformed; a type outside the
// table yields ErrUnknownType. Both are dropped by the caller.
func DecodeMessage(raw []byte) (*InboundMessage, error) {
	var envelope struct {
		Type string `json:"type"`
	}
	if err := json.Unmarshal(raw, &envelope); err != nil {
		return nil, ErrMalformed
	}
	if envelope.Type == "" {
		return nil, ErrMalformed
	}

	msg := &InboundMessage{Type: envelope.Type}
	var err error

	switch envelope.Type {
	case EventAuth:
		msg.Auth = &AuthPayload{}
		err = json.Unmarshal(raw, msg.Auth)
	case EventPresenceUpdate:
		msg.PresenceUpdate = &PresenceUpdatePayload{}
		err = json.Unmarshal(raw, msg.PresenceUpdate)
	case EventPromptLock:
		msg.Lock = &LockPayload{}
		err = json.Unmarshal(raw, msg.Lock)
	case EventPromptUnlock:
		msg.Unlock = &LockPayload{}
		err = json.Unmarshal(raw, msg.Unlock)
	case EventPromptUpdate:
		msg.Update = &UpdatePayload{}
		err = json.Unmarshal(raw, msg.Update)
	case EventCommentNew:
		msg.Comment = &CommentPayload{}
		err = json.Unmarshal(raw, msg.Comment)
	case EventCursorMove:
		msg.Cursor = &CursorPayload{}
		err = json.Unmarshal(raw, msg.Cursor)
	default:
		return nil, ErrUnknownType
	}

	if err != nil {
		return nil, ErrMalformed
	}
	return msg, nil
}

// Outbound events. Each carries its own "type" so clients can switch on it.

type AckEvent struct {
	Type   string `json:"type"`
	UserID uint64 `json:"user_id"`
}

type PresenceEvent struct {
	Type     string `json:"type"`
	UserID   uint64 `json:"user_id"`
	UserName string `json:"user_name,omitempty"`
	PromptID uint64 `json:"prompt_id,omitempty"`
	Cursor   *int   `json:"cursor,omitempty"`
}

type LockEvent struct {
	Type         string     `json:"type"`
	PromptID     uint64     `json:"prompt_id"`
	LockedBy     uint64     `json:"locked_by"`
	LockedByName string     `json:"locked_by_name,omitempty"`
	LockedAt     *time.Time `json:"locked_at,omitempty"`
}

type UnlockEvent struct {
	Type       string `json:"type"`
	PromptID   uint64 `json:"prompt_id"`
	UnlockedBy uint64 `json:"unlocked_by"`
}

type PromptUpdatedEvent struct {
	Type      string `json:"type"`
	PromptID  uint64 `json:"prompt_id"`
	Content   string `json:"content"`
	UpdatedBy uint64 `json:"updated_by"`
}

type CommentAddedEvent struct {
	Type      string    `json:"type"`
	CommentID uint64    `json:"comment_id"`
	PromptID  uint64    `json:"prompt_id"`
	UserID    uint64    `json:"user_id"`
	UserName  string    `json:"user_name,omitempty"`
	Content   string    `json:"content"`
	CreatedAt time.Time `json:"created_at"`
}

type CursorMovedEvent struct {
	Type     string `json:"type"`
	PromptID uint64 `json:"prompt_id"`
	UserID   uint64 `json:"user_id"`
	Position int    `json:"position"`
}

type ErrorEvent struct {
	Type         string `json:"type"`
	Message      string `json:"message"`
	PromptID     uint64 `json:"prompt_id,omitempty"`
	LockedBy     uint64 `json:"locked_by,omitempty"`
	LockedByName string `json:"locked_by_name,omitempty"`
}
