package service

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"go.uber.org/zap"

	"github.com/Gopher0727/LiveChat/config"
	"github.com/Gopher0727/LiveChat/internal/broadcast"
	"github.com/Gopher0727/LiveChat/internal/model"
	"github.com/Gopher0727/LiveChat/internal/repository"
)

// ErrStoreUnavailable marks failures of the message store. Callers see the
// underlying driver error wrapped alongside it.
var ErrStoreUnavailable = errors.New("message store unavailable")

// CreateMessageRequest is the body of POST /messages.
type CreateMessageRequest struct {
	Username string `json:"username" validate:"required,max=255"`
	Content  string `json:"content" validate:"required,max=5000"`
}

// IMessageService defines the chat history operations.
type IMessageService interface {
	List(ctx context.Context) ([]model.Message, error)
	Create(ctx context.Context, req CreateMessageRequest, socketID string) (*model.Message, error)
}

type MessageService struct {
	repo        repository.IMessageRepository
	broadcaster broadcast.IBroadcaster
	channel     string
	event       string
	log         *zap.Logger
}

func NewMessageService(
	repo repository.IMessageRepository,
	broadcaster broadcast.IBroadcaster,
	cfg *config.BroadcastConfig,
	log *zap.Logger,
) IMessageService {
	return &MessageService{
		repo:        repo,
		broadcaster: broadcaster,
		channel:     cfg.Channel,
		event:       cfg.Event,
		log:         log,
	}
}

// List returns every stored message, oldest first. It never returns nil on success.
func (s *MessageService) List(ctx context.Context) ([]model.Message, error) {
	messages, err := s.repo.List(ctx)
	if err != nil {
		return nil, fmt.Errorf("%w: failed to list messages: %w", ErrStoreUnavailable, err)
	}
	if messages == nil {
		messages = []model.Message{}
	}
	return messages, nil
}

// Create validates and stores a message, then queues its broadcast. The
// broadcast is best effort: a message that could not be published is still
// returned as created. socketID, if any, is excluded from the broadcast.
func (s *MessageService) Create(ctx context.Context, req CreateMessageRequest, socketID string) (*model.Message, error) {
	req.Username = strings.TrimSpace(req.Username)
	req.Content = strings.TrimSpace(req.Content)
	if err := validateRequest(req); err != nil {
		return nil, err
	}

	message := &model.Message{Username: req.Username, Content: req.Content}
	if err := s.repo.Create(ctx, message); err != nil {
		return nil, fmt.Errorf("%w: failed to save message: %w", ErrStoreUnavailable, err)
	}

	evt, err := broadcast.NewMessageSent(s.channel, s.event, message, socketID)
	if err != nil {
		s.log.Warn("failed to build broadcast event", zap.Uint64("message_id", message.ID), zap.Error(err))
		return message, nil
	}
	s.broadcaster.Dispatch(evt)

	return message, nil
}
