package service

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/Gopher0727/LiveChat/config"
	"github.com/Gopher0727/LiveChat/internal/broadcast"
	"github.com/Gopher0727/LiveChat/internal/model"
	"github.com/Gopher0727/LiveChat/internal/protocol"
)

// memoryRepo mimics the store: ids from a sequence, created_at from a clock
// that may repeat, history ordered by (created_at, id).
type memoryRepo struct {
	mu       sync.Mutex
	messages []model.Message
	now      time.Time
	step     time.Duration
	err      error
}

func newMemoryRepo() *memoryRepo {
	return &memoryRepo{now: time.Date(2026, 1, 1, 10, 0, 0, 0, time.UTC), step: time.Millisecond}
}

func (r *memoryRepo) Create(ctx context.Context, message *model.Message) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.err != nil {
		return r.err
	}
	r.now = r.now.Add(r.step)
	message.ID = uint64(len(r.messages) + 1)
	message.CreatedAt = r.now
	r.messages = append(r.messages, *message)
	return nil
}

func (r *memoryRepo) List(ctx context.Context) ([]model.Message, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.err != nil {
		return nil, r.err
	}
	return append([]model.Message{}, r.messages...), nil
}

type recordingBroadcaster struct {
	mu     sync.Mutex
	events []broadcast.Event
	full   bool
}

func (b *recordingBroadcaster) Dispatch(evt broadcast.Event) bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.full {
		return false
	}
	b.events = append(b.events, evt)
	return true
}

func (b *recordingBroadcaster) Events() []broadcast.Event {
	b.mu.Lock()
	defer b.mu.Unlock()
	return append([]broadcast.Event(nil), b.events...)
}

func newTestService(repo *memoryRepo, b *recordingBroadcaster) IMessageService {
	return NewMessageService(repo, b, &config.BroadcastConfig{
		Channel: "chat-room",
		Event:   "message.sent",
	}, zap.NewNop())
}

func TestMessageService_Create(t *testing.T) {
	ctx := context.Background()

	t.Run("stores trimmed message and broadcasts it", func(t *testing.T) {
		repo, b := newMemoryRepo(), &recordingBroadcaster{}
		svc := newTestService(repo, b)

		msg, err := svc.Create(ctx, CreateMessageRequest{Username: "  alice ", Content: "\thello\n"}, "sock-1")
		require.NoError(t, err)
		assert.Equal(t, uint64(1), msg.ID)
		assert.Equal(t, "alice", msg.Username)
		assert.Equal(t, "hello", msg.Content)

		events := b.Events()
		require.Len(t, events, 1)
		assert.Equal(t, "message.sent", events[0].Name)
		assert.Equal(t, "chat-room", events[0].Channel)
		assert.Equal(t, "sock-1", events[0].SocketID)

		var sent protocol.MessageSent
		require.NoError(t, events[0].Frame().Decode(&sent))
		assert.Equal(t, *msg, sent.Message)
	})

	t.Run("rejects blank fields before touching the store", func(t *testing.T) {
		repo, b := newMemoryRepo(), &recordingBroadcaster{}
		svc := newTestService(repo, b)

		_, err := svc.Create(ctx, CreateMessageRequest{Username: "   ", Content: ""}, "")
		var verr *ValidationError
		require.ErrorAs(t, err, &verr)
		assert.Equal(t, []string{"The username field is required."}, verr.Fields["username"])
		assert.Equal(t, []string{"The content field is required."}, verr.Fields["content"])
		assert.Equal(t, "The username field is required. (and 1 more error)", verr.Message())

		assert.Empty(t, repo.messages)
		assert.Empty(t, b.Events())
	})

	t.Run("enforces length limits in characters", func(t *testing.T) {
		svc := newTestService(newMemoryRepo(), &recordingBroadcaster{})

		_, err := svc.Create(ctx, CreateMessageRequest{Username: strings.Repeat("é", 255), Content: strings.Repeat("x", 5000)}, "")
		require.NoError(t, err)

		_, err = svc.Create(ctx, CreateMessageRequest{Username: strings.Repeat("a", 256), Content: strings.Repeat("x", 5001)}, "")
		var verr *ValidationError
		require.ErrorAs(t, err, &verr)
		assert.Equal(t, []string{"The username field must not be greater than 255 characters."}, verr.Fields["username"])
		assert.Equal(t, []string{"The content field must not be greater than 5000 characters."}, verr.Fields["content"])
	})

	t.Run("store failure is unavailable and not broadcast", func(t *testing.T) {
		repo, b := newMemoryRepo(), &recordingBroadcaster{}
		repo.err = errors.New("connection refused")
		svc := newTestService(repo, b)

		msg, err := svc.Create(ctx, CreateMessageRequest{Username: "alice", Content: "hi"}, "")
		assert.Nil(t, msg)
		assert.ErrorIs(t, err, ErrStoreUnavailable)
		assert.ErrorContains(t, err, "connection refused")
		assert.Empty(t, b.Events())
	})

	t.Run("dropped broadcast still succeeds", func(t *testing.T) {
		repo, b := newMemoryRepo(), &recordingBroadcaster{full: true}
		svc := newTestService(repo, b)

		msg, err := svc.Create(ctx, CreateMessageRequest{Username: "alice", Content: "hi"}, "")
		require.NoError(t, err)
		assert.Equal(t, uint64(1), msg.ID)
		assert.Len(t, repo.messages, 1)
	})
}

func TestMessageService_List(t *testing.T) {
	ctx := context.Background()

	t.Run("empty store yields empty slice", func(t *testing.T) {
		messages, err := newTestService(newMemoryRepo(), &recordingBroadcaster{}).List(ctx)
		require.NoError(t, err)
		assert.NotNil(t, messages)
		assert.Empty(t, messages)
	})

	t.Run("store failure is unavailable", func(t *testing.T) {
		repo := newMemoryRepo()
		repo.err = errors.New("timeout")
		_, err := newTestService(repo, &recordingBroadcaster{}).List(ctx)
		assert.ErrorIs(t, err, ErrStoreUnavailable)
	})
}
