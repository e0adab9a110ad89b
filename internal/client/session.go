// Package client implements the chat client: a session that identifies a
// user, follows the live feed and sends messages through the HTTP API.
package client

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"sync"
	"time"

	"go.uber.org/zap"
)

var (
	ErrEmptyName           = errors.New("name must not be empty")
	ErrEmptyContent        = errors.New("message must not be empty")
	ErrNotIdentified       = errors.New("session has no name yet")
	ErrAlreadyIdentified   = errors.New("session is already identified")
	ErrChannelDisconnected = errors.New("live feed disconnected")
	ErrUnconfirmed         = errors.New("message was not confirmed by the server")
)

type State int

const (
	Unidentified State = iota
	Listening
)

func (s State) String() string {
	if s == Listening {
		return "listening"
	}
	return "unidentified"
}

// Session is one user's chat window. It starts Unidentified; Identify moves
// it to Listening, where it follows the live feed and may send.
type Session struct {
	api        API
	subscriber Subscriber
	channel    string
	log        *zap.Logger
	now        func() time.Time

	mu           sync.Mutex
	state        State
	name         string
	timeline     *Timeline
	sub          Subscription
	lost         bool
	disconnected chan struct{}
	updates      chan struct{}
}

func NewSession(api API, subscriber Subscriber, channel string, log *zap.Logger) *Session {
	return &Session{
		api:          api,
		subscriber:   subscriber,
		channel:      channel,
		log:          log,
		now:          time.Now,
		timeline:     NewTimeline(),
		disconnected: make(chan struct{}),
		updates:      make(chan struct{}, 1),
	}
}

func (s *Session) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

func (s *Session) Name() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.name
}

// Identify names the session and starts listening. The feed is opened before
// the history is fetched, so no message can fall between the two.
func (s *Session) Identify(ctx context.Context, name string) error {
	name = strings.TrimSpace(name)
	if name == "" {
		return ErrEmptyName
	}
	if s.State() == Listening {
		return ErrAlreadyIdentified
	}

	sub, err := s.subscriber.Subscribe(ctx, s.channel)
	if err != nil {
		return fmt.Errorf("failed to open live feed: %w", err)
	}
	history, err := s.api.List(ctx)
	if err != nil {
		_ = sub.Close()
		return fmt.Errorf("failed to load history: %w", err)
	}

	s.mu.Lock()
	if s.state == Listening {
		s.mu.Unlock()
		_ = sub.Close()
		return ErrAlreadyIdentified
	}
	s.name = name
	s.state = Listening
	s.timeline.ResetConfirmed(history)
	s.attachLocked(sub)
	s.mu.Unlock()

	s.notify()
	return nil
}

// Send posts content under the session's name. On success the stored message
// joins the timeline. A rejection by the server (4xx) is returned as an
// *APIError and leaves no trace. Any other failure leaves a Pending entry and
// returns an error wrapping ErrUnconfirmed.
func (s *Session) Send(ctx context.Context, content string) (Entry, error) {
	content = strings.TrimSpace(content)

	s.mu.Lock()
	if s.state != Listening {
		s.mu.Unlock()
		return Entry{}, ErrNotIdentified
	}
	name := s.name
	socketID := ""
	if s.sub != nil {
		socketID = s.sub.SocketID()
	}
	s.mu.Unlock()

	if content == "" {
		return Entry{}, ErrEmptyContent
	}

	msg, err := s.api.Create(ctx, name, content, socketID)
	if err != nil {
		var apiErr *APIError
		if errors.As(err, &apiErr) && apiErr.StatusCode < http.StatusInternalServerError {
			return Entry{}, err
		}

		s.mu.Lock()
		entry := s.timeline.AddPending(name, content, s.now())
		s.mu.Unlock()
		s.notify()
		s.log.Warn("message not confirmed", zap.String("local_id", entry.LocalID), zap.Error(err))
		return entry, fmt.Errorf("%w: %w", ErrUnconfirmed, err)
	}

	s.mu.Lock()
	s.timeline.Add(*msg)
	s.mu.Unlock()
	s.notify()
	return Entry{Status: Confirmed, Message: *msg}, nil
}

// Messages returns a snapshot of the timeline.
func (s *Session) Messages() []Entry {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.timeline.Entries()
}

// Resync reloads the history, keeping pending entries. It is the way back to
// a complete timeline after the feed was lost.
func (s *Session) Resync(ctx context.Context) error {
	if s.State() != Listening {
		return ErrNotIdentified
	}
	history, err := s.api.List(ctx)
	if err != nil {
		return fmt.Errorf("failed to reload history: %w", err)
	}

	s.mu.Lock()
	s.timeline.ResetConfirmed(history)
	s.mu.Unlock()
	s.notify()
	return nil
}

// Reconnect replaces the live feed and resyncs. Nothing calls it automatically.
func (s *Session) Reconnect(ctx context.Context) error {
	if s.State() != Listening {
		return ErrNotIdentified
	}
	sub, err := s.subscriber.Subscribe(ctx, s.channel)
	if err != nil {
		return fmt.Errorf("%w: %w", ErrChannelDisconnected, err)
	}

	s.mu.Lock()
	old := s.sub
	s.attachLocked(sub)
	s.mu.Unlock()
	if old != nil {
		_ = old.Close()
	}

	return s.Resync(ctx)
}

// Disconnected is closed when the live feed is lost. After Reconnect it
// returns a fresh channel.
func (s *Session) Disconnected() <-chan struct{} {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.disconnected
}

// Err returns ErrChannelDisconnected while the live feed is lost.
func (s *Session) Err() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.lost {
		return ErrChannelDisconnected
	}
	return nil
}

// Updates signals that Messages may have changed. Signals coalesce.
func (s *Session) Updates() <-chan struct{} {
	return s.updates
}

// Close stops following the live feed. The session keeps its name and may
// still send.
func (s *Session) Close() error {
	s.mu.Lock()
	sub := s.sub
	s.sub = nil
	s.mu.Unlock()

	if sub == nil {
		return nil
	}
	return sub.Close()
}

func (s *Session) attachLocked(sub Subscription) {
	if s.lost {
		s.disconnected = make(chan struct{})
	}
	s.lost = false
	s.sub = sub
	go s.pump(sub)
}

func (s *Session) pump(sub Subscription) {
	for msg := range sub.Messages() {
		s.mu.Lock()
		added := s.timeline.Add(msg)
		s.mu.Unlock()
		if added {
			s.notify()
		}
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	// Only an unexpected end of the current feed counts as a disconnect.
	if s.sub != sub || s.lost {
		return
	}
	s.lost = true
	s.sub = nil
	close(s.disconnected)
	s.log.Warn("live feed disconnected", zap.String("channel", s.channel))
	s.notify()
}

func (s *Session) notify() {
	select {
	case s.updates <- struct{}{}:
	default:
	}
}
