package realtime

import (
	"context"
	"errors"
	"log"
	"time"

	apiError "prompt-mastare/internal/errors"
	"prompt-mastare/internal/metrics"
	"prompt-mastare/internal/presence"
	"prompt-mastare/internal/prompt"
	"prompt-mastare/internal/worker"
)

// Identity is the authenticated user behind a connection, handed off from
// the HTTP session before the transport upgrade.
type Identity struct {
	UserID   uint64
	UserName string
	TeamID   uint64
}

// Dispatcher decodes inbound frames and routes each event to the lock
// coordinator, presence store and broadcast router. A connection must send
// "auth" before anything else is accepted; out-of-order messages are dropped
// rather than failing the connection.
type Dispatcher struct {
	registry *Registry
	router   *Router
	prompts  prompt.Service
	presence presence.Store
	pool     *worker.WorkerPool
}

func NewDispatcher(
	registry *Registry,
	router *Router,
	prompts prompt.Service,
	presenceStore presence.Store,
	pool *worker.WorkerPool,
) *Dispatcher {
	return &Dispatcher{
		registry: registry,
		router:   router,
		prompts:  prompts,
		presence: presenceStore,
		pool:     pool,
	}
}

// HandleMessage processes one inbound frame to completion. Errors are either
// reported point-to-point to the sender or swallowed with a log line; they
// never take down the connection or affect other clients.
func (d *Dispatcher) HandleMessage(ctx context.Context, conn Conn, ident Identity, raw []byte) {
	msg, err := DecodeMessage(raw)
	if err != nil {
		metrics.MessagesDropped.Inc()
		log.Printf("[WARN] dropping frame from connection %s: %v", conn.ID(), err)
		return
	}

	if msg.Type == EventAuth {
		d.handleAuth(ctx, conn, ident, msg.Auth)
		return
	}

	client := d.registry.Get(conn)
	if client == nil {
		// raced auth or never authenticated: degrade gracefully
		metrics.MessagesDropped.Inc()
		log.Printf("[DEBUG] dropping %s from unregistered connection %s", msg.Type, conn.ID())
		return
	}

	switch msg.Type {
	case EventPresenceUpdate:
		d.handlePresenceUpdate(ctx, conn, client, msg.PresenceUpdate)
	case EventPromptLock:
		d.handleLock(ctx, conn, client, msg.Lock)
	case EventPromptUnlock:
		d.handleUnlock(ctx, conn, client, msg.Unlock)
	case EventPromptUpdate:
		d.handleUpdate(ctx, conn, client, msg.Update)
	case EventCommentNew:
		d.handleComment(ctx, conn, client, msg.Comment)
	case EventCursorMove:
		d.handleCursor(ctx, conn, client, msg.Cursor)
	}
}

// HandleClose deregisters the connection and tells the team it left. Safe to
// call for connections that never authenticated.
func (d *Dispatcher) HandleClose(ctx context.Context, conn Conn) {
	client := d.registry.Get(conn)
	if client == nil {
		return
	}
	d.registry.Unregister(conn)

	d.broadcastTeam(client.TeamID, EventPresenceLeave, PresenceEvent{
		Type:     EventPresenceLeave,
		UserID:   client.UserID,
		UserName: client.UserName,
		PromptID: client.PromptID,
	}, conn)
}

func (d *Dispatcher) handleAuth(ctx context.Context, conn Conn, ident Identity, payload *AuthPayload) {
	d.registry.Register(conn, ident.UserID, ident.UserName, ident.TeamID, payload.PromptID)
	d.touch(ctx, ident, payload.PromptID, nil)

	d.router.SendTo(conn, AckEvent{
		Type:   EventAuthOK,
		UserID: ident.UserID,
	})
}

func (d *Dispatcher) handlePresenceUpdate(ctx context.Context, conn Conn, client *Client, payload *PresenceUpdatePayload) {
	d.registry.Update(conn, payload.PromptID)
	d.touch(ctx, Identity{UserID: client.UserID, UserName: client.UserName, TeamID: client.TeamID}, payload.PromptID, payload.Cursor)

	d.broadcastTeam(client.TeamID, EventPresenceUpdate, PresenceEvent{
		Type:     EventPresenceUpdate,
		UserID:   client.UserID,
		UserName: client.UserName,
		PromptID: payload.PromptID,
		Cursor:   payload.Cursor,
	}, conn)
}

func (d *Dispatcher) handleLock(ctx context.Context, conn Conn, client *Client, payload *LockPayload) {
	resp, err := d.prompts.AcquireLock(ctx, payload.PromptID, client.UserID)
	if err != nil {
		d.reportError(conn, payload.PromptID, err, "Failed to lock prompt")
		return
	}

	var lockedBy uint64
	if resp.LockedBy != nil {
		lockedBy = *resp.LockedBy
	}
	// the holder's own UI updates from the same broadcast, so no exclusion
	d.broadcastPrompt(payload.PromptID, EventPromptLocked, LockEvent{
		Type:         EventPromptLocked,
		PromptID:     payload.PromptID,
		LockedBy:     lockedBy,
		LockedByName: resp.LockedByName,
		LockedAt:     resp.LockedAt,
	}, nil)
}

func (d *Dispatcher) handleUnlock(ctx context.Context, conn Conn, client *Client, payload *LockPayload) {
	if err := d.prompts.ReleaseLock(ctx, payload.PromptID, &client.UserID); err != nil {
		d.reportError(conn, payload.PromptID, err, "Failed to unlock prompt")
		return
	}

	d.broadcastPrompt(payload.PromptID, EventPromptUnlocked, UnlockEvent{
		Type:       EventPromptUnlocked,
		PromptID:   payload.PromptID,
		UnlockedBy: client.UserID,
	}, nil)
}

func (d *Dispatcher) handleUpdate(ctx context.Context, conn Conn, client *Client, payload *UpdatePayload) {
	if err := d.prompts.UpdateContent(ctx, payload.PromptID, client.UserID, payload.Content); err != nil {
		d.reportError(conn, payload.PromptID, err, "Failed to save prompt")
		return
	}

	d.broadcastPrompt(payload.PromptID, EventPromptUpdated, PromptUpdatedEvent{
		Type:      EventPromptUpdated,
		PromptID:  payload.PromptID,
		Content:   payload.Content,
		UpdatedBy: client.UserID,
	}, conn)
}

func (d *Dispatcher) handleComment(ctx context.Context, conn Conn, client *Client, payload *CommentPayload) {
	comment, err := d.prompts.AddComment(ctx, payload.PromptID, client.UserID, payload.Content)
	if err != nil {
		d.reportError(conn, payload.PromptID, err, "Failed to save comment")
		return
	}

	// the author receives the broadcast too, carrying the generated id
	d.broadcastPrompt(payload.PromptID, EventCommentAdded, CommentAddedEvent{
		Type:      EventCommentAdded,
		CommentID: comment.ID,
		PromptID:  payload.PromptID,
		UserID:    client.UserID,
		UserName:  client.UserName,
		Content:   comment.Content,
		CreatedAt: comment.CreatedAt,
	}, nil)
}

func (d *Dispatcher) handleCursor(ctx context.Context, conn Conn, client *Client, payload *CursorPayload) {
	if client.PromptID == 0 {
		metrics.MessagesDropped.Inc()
		log.Printf("[DEBUG] cursor:move from connection %s without prompt scope", conn.ID())
		return
	}

	position := payload.Position
	promptID := client.PromptID
	ident := Identity{UserID: client.UserID, UserName: client.UserName, TeamID: client.TeamID}
	// cursor traffic is bursty; persist off the hot path
	d.pool.Submit(func(ctx context.Context) error {
		return d.presence.Touch(ctx, presence.Record{
			UserID:   ident.UserID,
			UserName: ident.UserName,
			TeamID:   ident.TeamID,
			PromptID: promptID,
			Cursor:   &position,
			LastSeen: time.Now().UnixMilli(),
		})
	})

	d.broadcastPrompt(promptID, EventCursorMoved, CursorMovedEvent{
		Type:     EventCursorMoved,
		PromptID: promptID,
		UserID:   client.UserID,
		Position: position,
	}, conn)
}

// touch refreshes the sender's presence record. Best-effort: a failed write
// is logged, never surfaced.
func (d *Dispatcher) touch(ctx context.Context, ident Identity, promptID uint64, cursor *int) {
	err := d.presence.Touch(ctx, presence.Record{
		UserID:   ident.UserID,
		UserName: ident.UserName,
		TeamID:   ident.TeamID,
		PromptID: promptID,
		Cursor:   cursor,
		LastSeen: time.Now().UnixMilli(),
	})
	if err != nil {
		log.Printf("presence touch failed for user %d: %v", ident.UserID, err)
	}
}

// reportError turns a handler error into a point-to-point error event. Lock
// conflicts carry the current holder so the UI can show who is editing.
func (d *Dispatcher) reportError(conn Conn, promptID uint64, err error, fallback string) {
	var conflict *apiError.LockConflictError
	if errors.As(err, &conflict) {
		d.router.SendTo(conn, ErrorEvent{
			Type:         EventError,
			Message:      conflict.Error(),
			PromptID:     promptID,
			LockedBy:     conflict.HolderID,
			LockedByName: conflict.HolderName,
		})
		return
	}

	log.Printf("handler error on connection %s: %v", conn.ID(), err)
	d.router.SendTo(conn, ErrorEvent{
		Type:     EventError,
		Message:  fallback,
		PromptID: promptID,
	})
}

func (d *Dispatcher) broadcastTeam(teamID uint64, eventType string, event any, exclude Conn) {
	metrics.BroadcastEvents.WithLabelValues(eventType).Inc()
	d.router.ToTeam(teamID, event, exclude)
}

func (d *Dispatcher) broadcastPrompt(promptID uint64, eventType string, event any, exclude Conn) {
	metrics.BroadcastEvents.WithLabelValues(eventType).Inc()
	d.router.ToPrompt(promptID, event, exclude)
}
