package realtime

import (
	"context"
	"encoding/json"
	"sync"
	"testing"
	"time"

	apiError "prompt-mastare/internal/errors"
	"prompt-mastare/internal/presence"
	"prompt-mastare/internal/prompt"
	"prompt-mastare/internal/worker"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
)

// mock implementation of the prompt Service interface
type MockPromptService struct {
	mock.Mock
}

func (m *MockPromptService) CreatePrompt(ctx context.Context, userID uint64, teamID uint64, p *prompt.SharedPrompt) error {
	args := m.Called(ctx, userID, teamID, p)
	return args.Error(0)
}

func (m *MockPromptService) GetPrompt(ctx context.Context, promptID uint64) (*prompt.PromptResponse, error) {
	args := m.Called(ctx, promptID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*prompt.PromptResponse), args.Error(1)
}

func (m *MockPromptService) ListTeamPrompts(ctx context.Context, teamID uint64, page, pageSize int) (*prompt.PaginatedPrompts, error) {
	args := m.Called(ctx, teamID, page, pageSize)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*prompt.PaginatedPrompts), args.Error(1)
}

func (m *MockPromptService) UpdateContent(ctx context.Context, promptID uint64, userID uint64, content string) error {
	args := m.Called(ctx, promptID, userID, content)
	return args.Error(0)
}

func (m *MockPromptService) SetStatus(ctx context.Context, promptID uint64, status string) error {
	args := m.Called(ctx, promptID, status)
	return args.Error(0)
}

func (m *MockPromptService) AcquireLock(ctx context.Context, promptID uint64, userID uint64) (*prompt.PromptResponse, error) {
	args := m.Called(ctx, promptID, userID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*prompt.PromptResponse), args.Error(1)
}

func (m *MockPromptService) ReleaseLock(ctx context.Context, promptID uint64, userID *uint64) error {
	args := m.Called(ctx, promptID, userID)
	return args.Error(0)
}

func (m *MockPromptService) AddComment(ctx context.Context, promptID uint64, userID uint64, content string) (*prompt.PromptComment, error) {
	args := m.Called(ctx, promptID, userID, content)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*prompt.PromptComment), args.Error(1)
}

func (m *MockPromptService) ListComments(ctx context.Context, promptID uint64) ([]prompt.PromptComment, error) {
	args := m.Called(ctx, promptID)
	if args.Get(0) == nil {
		return []prompt.PromptComment{}, args.Error(1)
	}
	return args.Get(0).([]prompt.PromptComment), args.Error(1)
}

func (m *MockPromptService) OptimizePrompt(ctx context.Context, promptID uint64, userID uint64) (*prompt.PromptResponse, error) {
	args := m.Called(ctx, promptID, userID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*prompt.PromptResponse), args.Error(1)
}

// in-memory presence store recording every touch
type fakePresenceStore struct {
	mu      sync.Mutex
	touches []presence.Record
}

func (s *fakePresenceStore) Touch(ctx context.Context, rec presence.Record) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.touches = append(s.touches, rec)
	return nil
}

func (s *fakePresenceStore) ListActiveByTeam(ctx context.Context, teamID uint64, maxAge time.Duration) ([]presence.Record, error) {
	return nil, nil
}

func (s *fakePresenceStore) ListActiveByPrompt(ctx context.Context, promptID uint64, maxAge time.Duration) ([]presence.Record, error) {
	return nil, nil
}

func (s *fakePresenceStore) Sweep(ctx context.Context, maxAge time.Duration) (int, error) {
	return 0, nil
}

func (s *fakePresenceStore) touchCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.touches)
}

type dispatcherFixture struct {
	dispatcher *Dispatcher
	registry   *Registry
	prompts    *MockPromptService
	store      *fakePresenceStore
	pool       *worker.WorkerPool
}

func newDispatcherFixture(t *testing.T) *dispatcherFixture {
	t.Helper()
	registry := NewRegistry()
	router := NewRouter(registry)
	prompts := new(MockPromptService)
	store := &fakePresenceStore{}
	pool := worker.NewWorkerPool(1)
	t.Cleanup(pool.Shutdown)

	return &dispatcherFixture{
		dispatcher: NewDispatcher(registry, router, prompts, store, pool),
		registry:   registry,
		prompts:    prompts,
		store:      store,
		pool:       pool,
	}
}

func frame(t *testing.T, payload map[string]any) []byte {
	t.Helper()
	b, err := json.Marshal(payload)
	if err != nil {
		t.Fatal(err)
	}
	return b
}

func authConn(t *testing.T, f *dispatcherFixture, conn Conn, ident Identity, promptID uint64) {
	t.Helper()
	f.dispatcher.HandleMessage(context.Background(), conn, ident,
		frame(t, map[string]any{"type": "auth", "prompt_id": promptID}))
}

func TestDispatcher_AuthRegistersAndAcks(t *testing.T) {
	f := newDispatcherFixture(t)
	conn := newFakeConn("a")

	authConn(t, f, conn, Identity{UserID: 1, UserName: "Anna", TeamID: 10}, 100)

	client := f.registry.Get(conn)
	assert.NotNil(t, client)
	assert.Equal(t, uint64(1), client.UserID)
	assert.Equal(t, uint64(100), client.PromptID)
	assert.Equal(t, []string{"auth:ok"}, conn.sentTypes(t))
	assert.Equal(t, 1, f.store.touchCount(), "auth must record initial presence")
}

// A freshly opened connection sending cursor:move before auth is dropped
// silently; the connection stays usable and a later auth succeeds.
func TestDispatcher_UnauthenticatedMessageDropped(t *testing.T) {
	f := newDispatcherFixture(t)
	conn := newFakeConn("a")
	peer := newFakeConn("peer")
	authConn(t, f, peer, Identity{UserID: 2, UserName: "Björn", TeamID: 10}, 100)
	peer.mu.Lock()
	peer.frames = nil
	peer.mu.Unlock()

	f.dispatcher.HandleMessage(context.Background(), conn, Identity{UserID: 1, TeamID: 10},
		frame(t, map[string]any{"type": "cursor:move", "position": 5}))

	assert.Empty(t, peer.sentFrames(), "no broadcast from unregistered connection")
	assert.Nil(t, f.registry.Get(conn))

	// subsequent auth + cursor:move works normally
	authConn(t, f, conn, Identity{UserID: 1, UserName: "Anna", TeamID: 10}, 100)
	f.dispatcher.HandleMessage(context.Background(), conn, Identity{UserID: 1, TeamID: 10},
		frame(t, map[string]any{"type": "cursor:move", "position": 5}))

	assert.Contains(t, peer.sentTypes(t), "cursor:moved")
}

func TestDispatcher_MalformedFramesDropped(t *testing.T) {
	f := newDispatcherFixture(t)
	conn := newFakeConn("a")
	authConn(t, f, conn, Identity{UserID: 1, UserName: "Anna", TeamID: 10}, 100)

	f.dispatcher.HandleMessage(context.Background(), conn, Identity{}, []byte("{not json"))
	f.dispatcher.HandleMessage(context.Background(), conn, Identity{}, []byte(`{"no_type":true}`))
	f.dispatcher.HandleMessage(context.Background(), conn, Identity{}, frame(t, map[string]any{"type": "bogus:event"}))

	// still registered and only the auth ack was ever sent
	assert.NotNil(t, f.registry.Get(conn))
	assert.Equal(t, []string{"auth:ok"}, conn.sentTypes(t))
}

func TestDispatcher_PresenceUpdateBroadcastsToTeamExcludingSender(t *testing.T) {
	f := newDispatcherFixture(t)
	sender := newFakeConn("sender")
	teammate := newFakeConn("teammate")
	outsider := newFakeConn("outsider")
	authConn(t, f, sender, Identity{UserID: 1, UserName: "Anna", TeamID: 10}, 0)
	authConn(t, f, teammate, Identity{UserID: 2, UserName: "Björn", TeamID: 10}, 0)
	authConn(t, f, outsider, Identity{UserID: 3, UserName: "Cecilia", TeamID: 20}, 0)

	f.dispatcher.HandleMessage(context.Background(), sender, Identity{},
		frame(t, map[string]any{"type": "presence:update", "prompt_id": 100}))

	assert.Equal(t, uint64(100), f.registry.Get(sender).PromptID)
	assert.Equal(t, []string{"auth:ok"}, sender.sentTypes(t), "sender gets no echo")
	assert.Equal(t, []string{"auth:ok", "presence:update"}, teammate.sentTypes(t))
	assert.Equal(t, []string{"auth:ok"}, outsider.sentTypes(t))
}

func TestDispatcher_LockSuccessBroadcastsIncludingSender(t *testing.T) {
	f := newDispatcherFixture(t)
	sender := newFakeConn("sender")
	viewer := newFakeConn("viewer")
	authConn(t, f, sender, Identity{UserID: 1, UserName: "Anna", TeamID: 10}, 100)
	authConn(t, f, viewer, Identity{UserID: 2, UserName: "Björn", TeamID: 10}, 100)

	lockedBy := uint64(1)
	now := time.Now().UTC()
	f.prompts.On("AcquireLock", mock.Anything, uint64(100), uint64(1)).
		Return(&prompt.PromptResponse{ID: 100, IsLocked: true, LockedBy: &lockedBy, LockedByName: "Anna", LockedAt: &now}, nil)

	f.dispatcher.HandleMessage(context.Background(), sender, Identity{},
		frame(t, map[string]any{"type": "prompt:lock", "prompt_id": 100}))

	// both the holder and the viewer see prompt:locked
	assert.Equal(t, []string{"auth:ok", "prompt:locked"}, sender.sentTypes(t))
	assert.Equal(t, []string{"auth:ok", "prompt:locked"}, viewer.sentTypes(t))
	f.prompts.AssertExpectations(t)
}

func TestDispatcher_LockConflictReportedToSenderOnly(t *testing.T) {
	f := newDispatcherFixture(t)
	sender := newFakeConn("sender")
	viewer := newFakeConn("viewer")
	authConn(t, f, sender, Identity{UserID: 2, UserName: "Björn", TeamID: 10}, 100)
	authConn(t, f, viewer, Identity{UserID: 3, UserName: "Cecilia", TeamID: 10}, 100)

	f.prompts.On("AcquireLock", mock.Anything, uint64(100), uint64(2)).
		Return(nil, apiError.LockConflict(100, 1, "Anna"))

	f.dispatcher.HandleMessage(context.Background(), sender, Identity{},
		frame(t, map[string]any{"type": "prompt:lock", "prompt_id": 100}))

	assert.Equal(t, []string{"auth:ok", "error"}, sender.sentTypes(t))
	assert.Equal(t, []string{"auth:ok"}, viewer.sentTypes(t), "conflicts are never broadcast")

	var errEvent ErrorEvent
	frames := sender.sentFrames()
	assert.NoError(t, json.Unmarshal(frames[len(frames)-1], &errEvent))
	assert.Equal(t, uint64(1), errEvent.LockedBy)
	assert.Equal(t, "Anna", errEvent.LockedByName)
}

func TestDispatcher_UnlockBroadcasts(t *testing.T) {
	f := newDispatcherFixture(t)
	sender := newFakeConn("sender")
	viewer := newFakeConn("viewer")
	authConn(t, f, sender, Identity{UserID: 1, UserName: "Anna", TeamID: 10}, 100)
	authConn(t, f, viewer, Identity{UserID: 2, UserName: "Björn", TeamID: 10}, 100)

	f.prompts.On("ReleaseLock", mock.Anything, uint64(100), mock.MatchedBy(func(u *uint64) bool {
		return u != nil && *u == 1
	})).Return(nil)

	f.dispatcher.HandleMessage(context.Background(), sender, Identity{},
		frame(t, map[string]any{"type": "prompt:unlock", "prompt_id": 100}))

	assert.Equal(t, []string{"auth:ok", "prompt:unlocked"}, sender.sentTypes(t))
	assert.Equal(t, []string{"auth:ok", "prompt:unlocked"}, viewer.sentTypes(t))
}

func TestDispatcher_UpdateBroadcastsExcludingSender(t *testing.T) {
	f := newDispatcherFixture(t)
	sender := newFakeConn("sender")
	viewer := newFakeConn("viewer")
	authConn(t, f, sender, Identity{UserID: 1, UserName: "Anna", TeamID: 10}, 100)
	authConn(t, f, viewer, Identity{UserID: 2, UserName: "Björn", TeamID: 10}, 100)

	f.prompts.On("UpdateContent", mock.Anything, uint64(100), uint64(1), "Ljus trea med balkong").Return(nil)

	f.dispatcher.HandleMessage(context.Background(), sender, Identity{},
		frame(t, map[string]any{"type": "prompt:update", "prompt_id": 100, "content": "Ljus trea med balkong"}))

	assert.Equal(t, []string{"auth:ok"}, sender.sentTypes(t), "sender never receives prompt:updated")
	assert.Equal(t, []string{"auth:ok", "prompt:updated"}, viewer.sentTypes(t))
}

func TestDispatcher_UpdatePersistenceFailureReportedToSenderOnly(t *testing.T) {
	f := newDispatcherFixture(t)
	sender := newFakeConn("sender")
	viewer := newFakeConn("viewer")
	authConn(t, f, sender, Identity{UserID: 1, UserName: "Anna", TeamID: 10}, 100)
	authConn(t, f, viewer, Identity{UserID: 2, UserName: "Björn", TeamID: 10}, 100)

	f.prompts.On("UpdateContent", mock.Anything, uint64(100), uint64(1), "text").
		Return(assert.AnError)

	f.dispatcher.HandleMessage(context.Background(), sender, Identity{},
		frame(t, map[string]any{"type": "prompt:update", "prompt_id": 100, "content": "text"}))

	assert.Equal(t, []string{"auth:ok", "error"}, sender.sentTypes(t))
	assert.Equal(t, []string{"auth:ok"}, viewer.sentTypes(t))
	assert.NotNil(t, f.registry.Get(sender), "registry state unchanged on persistence failure")
}

// Comment fan-out reaches every connection on the prompt, author included,
// carrying the generated identifier.
func TestDispatcher_CommentFanOutIncludesAuthor(t *testing.T) {
	f := newDispatcherFixture(t)
	author := newFakeConn("author")
	second := newFakeConn("second")
	third := newFakeConn("third")
	authConn(t, f, author, Identity{UserID: 1, UserName: "Anna", TeamID: 10}, 200)
	authConn(t, f, second, Identity{UserID: 2, UserName: "Björn", TeamID: 10}, 200)
	authConn(t, f, third, Identity{UserID: 3, UserName: "Cecilia", TeamID: 10}, 200)

	created := time.Now().UTC()
	f.prompts.On("AddComment", mock.Anything, uint64(200), uint64(1), "looks good").
		Return(&prompt.PromptComment{ID: 42, PromptID: 200, UserID: 1, Content: "looks good", CreatedAt: created}, nil)

	f.dispatcher.HandleMessage(context.Background(), author, Identity{},
		frame(t, map[string]any{"type": "comment:new", "prompt_id": 200, "content": "looks good"}))

	for _, conn := range []*fakeConn{author, second, third} {
		types := conn.sentTypes(t)
		assert.Contains(t, types, "comment:added")

		frames := conn.sentFrames()
		var event CommentAddedEvent
		assert.NoError(t, json.Unmarshal(frames[len(frames)-1], &event))
		assert.Equal(t, uint64(42), event.CommentID)
		assert.Equal(t, "looks good", event.Content)
	}
}

func TestDispatcher_CursorMoveRequiresPromptScope(t *testing.T) {
	f := newDispatcherFixture(t)
	conn := newFakeConn("a")
	peer := newFakeConn("peer")
	authConn(t, f, conn, Identity{UserID: 1, UserName: "Anna", TeamID: 10}, 0) // no prompt scope
	authConn(t, f, peer, Identity{UserID: 2, UserName: "Björn", TeamID: 10}, 100)

	f.dispatcher.HandleMessage(context.Background(), conn, Identity{},
		frame(t, map[string]any{"type": "cursor:move", "position": 7}))

	assert.Equal(t, []string{"auth:ok"}, peer.sentTypes(t), "no broadcast without prompt scope")
}

func TestDispatcher_CursorMoveBroadcastsAndTouchesPresence(t *testing.T) {
	f := newDispatcherFixture(t)
	sender := newFakeConn("sender")
	peer := newFakeConn("peer")
	authConn(t, f, sender, Identity{UserID: 1, UserName: "Anna", TeamID: 10}, 100)
	authConn(t, f, peer, Identity{UserID: 2, UserName: "Björn", TeamID: 10}, 100)
	baseline := f.store.touchCount()

	f.dispatcher.HandleMessage(context.Background(), sender, Identity{},
		frame(t, map[string]any{"type": "cursor:move", "position": 7}))

	assert.Equal(t, []string{"auth:ok"}, sender.sentTypes(t))
	assert.Equal(t, []string{"auth:ok", "cursor:moved"}, peer.sentTypes(t))

	// the presence write is queued on the worker pool
	assert.Eventually(t, func() bool {
		return f.store.touchCount() > baseline
	}, time.Second, 10*time.Millisecond)
}

func TestDispatcher_CloseBroadcastsLeave(t *testing.T) {
	f := newDispatcherFixture(t)
	leaving := newFakeConn("leaving")
	teammate := newFakeConn("teammate")
	authConn(t, f, leaving, Identity{UserID: 1, UserName: "Anna", TeamID: 10}, 100)
	authConn(t, f, teammate, Identity{UserID: 2, UserName: "Björn", TeamID: 10}, 100)

	f.dispatcher.HandleClose(context.Background(), leaving)

	assert.Nil(t, f.registry.Get(leaving))
	assert.Equal(t, []string{"auth:ok", "presence:leave"}, teammate.sentTypes(t))
}

func TestDispatcher_CloseUnauthenticatedIsNoop(t *testing.T) {
	f := newDispatcherFixture(t)
	conn := newFakeConn("a")

	// must not panic or broadcast anything
	f.dispatcher.HandleClose(context.Background(), conn)
	f.dispatcher.HandleClose(context.Background(), conn)
}
