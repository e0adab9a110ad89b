package main

import (
	"bytes"
	"strings"
	"testing"
	"time"

	"github.com/gookit/color"
	"github.com/stretchr/testify/assert"

	"github.com/Gopher0727/LiveChat/internal/client"
	"github.com/Gopher0727/LiveChat/internal/model"
)

func TestPrinter_Render(t *testing.T) {
	var buf bytes.Buffer
	p := newPrinter(&buf)
	at := time.Date(2026, 1, 1, 10, 0, 0, 0, time.Local)

	entries := []client.Entry{
		{Status: client.Confirmed, Message: model.Message{ID: 1, Username: "alice", Content: "hi", CreatedAt: at}},
	}
	p.render(entries)

	entries = append(entries, client.Entry{
		Status:  client.Pending,
		LocalID: "local-1",
		Message: model.Message{Username: "bob", Content: "lost", CreatedAt: at},
	})
	p.render(entries)
	p.render(entries)

	lines := strings.Split(strings.TrimSpace(color.ClearCode(buf.String())), "\n")
	assert.Equal(t, []string{
		"10:00:00 alice: hi",
		"10:00:00 bob: lost (pending)",
	}, lines)
}
