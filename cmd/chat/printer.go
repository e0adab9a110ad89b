package main

import (
	"fmt"
	"io"

	"github.com/gookit/color"

	"github.com/Gopher0727/LiveChat/internal/client"
)

// printer appends timeline entries to the terminal as they first appear.
type printer struct {
	out     io.Writer
	seen    map[uint64]struct{}
	pending map[string]struct{}
}

func newPrinter(out io.Writer) *printer {
	return &printer{
		out:     out,
		seen:    make(map[uint64]struct{}),
		pending: make(map[string]struct{}),
	}
}

func (p *printer) render(entries []client.Entry) {
	for _, e := range entries {
		switch e.Status {
		case client.Confirmed:
			if _, ok := p.seen[e.Message.ID]; ok {
				continue
			}
			p.seen[e.Message.ID] = struct{}{}
			fmt.Fprintf(p.out, "%s %s %s\n",
				color.Gray.Render(e.Message.CreatedAt.Local().Format("15:04:05")),
				color.Cyan.Render(e.Message.Username+":"),
				e.Message.Content,
			)
		case client.Pending:
			if _, ok := p.pending[e.LocalID]; ok {
				continue
			}
			p.pending[e.LocalID] = struct{}{}
			fmt.Fprintf(p.out, "%s %s %s\n",
				color.Gray.Render(e.Message.CreatedAt.Local().Format("15:04:05")),
				color.Yellow.Render(e.Message.Username+":"),
				color.Gray.Render(e.Message.Content+" (pending)"),
			)
		}
	}
}

func (p *printer) notice(msg string) {
	fmt.Fprintln(p.out, color.Green.Render(msg))
}

func (p *printer) warn(msg string) {
	fmt.Fprintln(p.out, color.Red.Render(msg))
}

func (p *printer) prompt(msg string) {
	fmt.Fprint(p.out, color.Bold.Render(msg))
}
