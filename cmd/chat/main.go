package main

import (
	"bufio"
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/gookit/color"

	"github.com/Gopher0727/LiveChat/config"
	"github.com/Gopher0727/LiveChat/internal/client"
	logger "github.com/Gopher0727/LiveChat/middleware/log"
)

func main() {
	configPath := flag.String("config", "config.toml", "path to the TOML config file")
	name := flag.String("name", "", "display name; prompted for when empty")
	flag.Parse()

	if err := run(*configPath, *name, os.Stdin, os.Stdout); err != nil {
		fmt.Fprintln(os.Stderr, color.Red.Render("livechat: "+err.Error()))
		os.Exit(1)
	}
}

func run(configPath, name string, in io.Reader, out io.Writer) error {
	cfg, err := config.LoadConfig(configPath)
	if err != nil {
		return err
	}

	// The terminal is the UI, so logs only go somewhere when a file is configured.
	log := logger.NewNop()
	if cfg.Logging.Output == "file" {
		if log, err = logger.NewLogger(&cfg.Logging); err != nil {
			return err
		}
	}
	defer log.Close()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	timeout := time.Duration(cfg.Client.RequestTimeout) * time.Second
	session := client.NewSession(
		client.NewHTTPClient(cfg.Client.APIURL, timeout),
		client.NewDialer(cfg.Gateway.URL(), cfg.Broadcast.Event, log.Logger),
		cfg.Broadcast.Channel,
		log.Logger,
	)
	defer session.Close()

	lines := make(chan string)
	go func() {
		defer close(lines)
		scanner := bufio.NewScanner(in)
		for scanner.Scan() {
			lines <- scanner.Text()
		}
	}()

	p := newPrinter(out)
	if err := identify(ctx, session, p, name, lines); err != nil {
		return err
	}
	p.notice(fmt.Sprintf("Joined %s as %s. Type a message and press Enter; /resync, /reconnect and /quit are commands.",
		cfg.Broadcast.Channel, session.Name()))
	p.render(session.Messages())

	disconnected := session.Disconnected()
	for {
		select {
		case <-ctx.Done():
			return nil
		case <-session.Updates():
			p.render(session.Messages())
		case <-disconnected:
			disconnected = nil
			p.warn("Live feed lost. Type /reconnect to follow the chat again.")
		case line, ok := <-lines:
			if !ok {
				return nil
			}
			quit := handleLine(ctx, session, p, line)
			if quit {
				return nil
			}
			disconnected = session.Disconnected()
			if session.Err() != nil {
				disconnected = nil
			}
			p.render(session.Messages())
		}
	}
}

func identify(ctx context.Context, session *client.Session, p *printer, name string, lines <-chan string) error {
	for {
		if name == "" {
			p.prompt("Your name: ")
			select {
			case <-ctx.Done():
				return ctx.Err()
			case line, ok := <-lines:
				if !ok {
					return errors.New("no name given")
				}
				name = line
			}
		}

		err := session.Identify(ctx, name)
		switch {
		case err == nil:
			return nil
		case errors.Is(err, client.ErrEmptyName):
			p.warn("Please enter a name.")
			name = ""
		default:
			return err
		}
	}
}

// handleLine runs one line of input and reports whether the user asked to quit.
func handleLine(ctx context.Context, session *client.Session, p *printer, line string) bool {
	switch strings.TrimSpace(line) {
	case "/quit":
		return true
	case "/resync":
		if err := session.Resync(ctx); err != nil {
			p.warn(err.Error())
		}
		return false
	case "/reconnect":
		if err := session.Reconnect(ctx); err != nil {
			p.warn(err.Error())
		} else {
			p.notice("Reconnected.")
		}
		return false
	}

	_, err := session.Send(ctx, line)
	var apiErr *client.APIError
	switch {
	case err == nil:
	case errors.Is(err, client.ErrEmptyContent):
	case errors.Is(err, client.ErrUnconfirmed):
		p.warn("Not delivered, kept as pending: " + err.Error())
	case errors.As(err, &apiErr):
		p.warn(apiErr.Message)
	default:
		p.warn(err.Error())
	}
	return false
}
