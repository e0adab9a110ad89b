package client

import (
	"slices"
	"time"

	"github.com/google/uuid"
	"github.com/samber/lo"

	"github.com/Gopher0727/LiveChat/internal/model"
)

type EntryStatus int

const (
	// Confirmed entries were stored by the server.
	Confirmed EntryStatus = iota
	// Pending entries were sent but never acknowledged; the server may or may
	// not have stored them.
	Pending
)

func (s EntryStatus) String() string {
	if s == Pending {
		return "pending"
	}
	return "confirmed"
}

// Entry is one line of the local timeline. LocalID is set only on Pending
// entries; Message.ID and Message.CreatedAt are only meaningful when Confirmed.
type Entry struct {
	Status  EntryStatus
	LocalID string
	Message model.Message
}

// Timeline is the client's view of the chat: confirmed messages unique by id
// and in history order, followed by pending ones in the order they were sent.
// It is not safe for concurrent use.
type Timeline struct {
	confirmed []model.Message
	ids       map[uint64]struct{}
	pending   []Entry
}

func NewTimeline() *Timeline {
	return &Timeline{ids: make(map[uint64]struct{})}
}

// Add inserts msg as confirmed. It reports false when msg was already present.
func (t *Timeline) Add(msg model.Message) bool {
	if _, ok := t.ids[msg.ID]; ok {
		return false
	}
	t.ids[msg.ID] = struct{}{}

	i, _ := slices.BinarySearchFunc(t.confirmed, msg, compareMessages)
	t.confirmed = slices.Insert(t.confirmed, i, msg)
	return true
}

// AddPending records a message the server never acknowledged.
func (t *Timeline) AddPending(username, content string, at time.Time) Entry {
	entry := Entry{
		Status:  Pending,
		LocalID: uuid.NewString(),
		Message: model.Message{Username: username, Content: content, CreatedAt: at},
	}
	t.pending = append(t.pending, entry)
	return entry
}

// ResetConfirmed replaces the confirmed messages with history. Pending
// entries are kept.
func (t *Timeline) ResetConfirmed(history []model.Message) {
	t.confirmed = nil
	t.ids = make(map[uint64]struct{}, len(history))
	for _, msg := range history {
		t.Add(msg)
	}
}

func (t *Timeline) Entries() []Entry {
	confirmed := lo.Map(t.confirmed, func(msg model.Message, _ int) Entry {
		return Entry{Status: Confirmed, Message: msg}
	})
	return append(confirmed, t.pending...)
}

func (t *Timeline) Len() int {
	return len(t.confirmed) + len(t.pending)
}

func compareMessages(a, b model.Message) int {
	switch {
	case a.Before(b):
		return -1
	case b.Before(a):
		return 1
	default:
		return 0
	}
}
