package service

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"linkdrop/internal/exchange"
	"linkdrop/internal/logger"
	"linkdrop/internal/model"
	"linkdrop/internal/notify"
)

var (
	ErrAlreadyReceiving = errors.New("already receiving")
	ErrNotReceiving     = errors.New("not receiving")
)

type ExchangeOptions struct {
	Server     exchange.ServerOptions
	CodeScheme string
	// Client is used for sends; nil means a client with the default timeout.
	Client *exchange.Client
	// OnReceived runs after every accepted payload has been imported.
	OnReceived func(Outcome, error)
}

// Exchange runs at most one receive session at a time and sends profiles and
// groups to peers.
type Exchange struct {
	lib    *Library
	sink   notify.Sink
	opts   ExchangeOptions
	client *exchange.Client

	mu     sync.Mutex
	server *exchange.Server
}

func NewExchange(lib *Library, opts ExchangeOptions) *Exchange {
	client := opts.Client
	if client == nil {
		client = exchange.NewClient(exchange.DefaultClientTimeout)
	}
	return &Exchange{lib: lib, sink: lib.sink, opts: opts, client: client}
}

// StartReceiving opens a session and returns the code the sender has to scan.
func (e *Exchange) StartReceiving() (exchange.Code, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	if e.server != nil {
		return exchange.Code{}, ErrAlreadyReceiving
	}
	srv, err := exchange.NewServer(e.opts.Server, e.handle)
	if err != nil {
		return exchange.Code{}, err
	}
	srv.Start()
	e.server = srv

	code := srv.Code()
	code.Scheme = e.opts.CodeScheme
	return code, nil
}

func (e *Exchange) Receiving() bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.server != nil
}

// StopReceiving ends the session; a new one gets a new token.
func (e *Exchange) StopReceiving(ctx context.Context) error {
	e.mu.Lock()
	srv := e.server
	e.server = nil
	e.mu.Unlock()

	if srv == nil {
		return ErrNotReceiving
	}
	return srv.Stop(ctx)
}

func (e *Exchange) handle(p exchange.Payload) {
	ctx := context.Background()
	out, err := e.lib.Import(ctx, p)
	if err != nil {
		logger.Log.Errorf("Failed to import %s %q from %q: %v", p.Type, p.Name, p.DeviceName, err)
		e.sink.Notify(ctx, notify.Notification{
			Level:     notify.Error,
			Title:     "Receive failed",
			Message:   err.Error(),
			Retryable: true,
		})
	} else {
		e.sink.Notify(ctx, notify.Notification{
			Level:   notify.Success,
			Title:   "Received from " + p.DeviceName,
			Message: fmt.Sprintf("%s %q (%s)", out.Kind, out.Name, out.Action),
		})
	}
	if e.opts.OnReceived != nil {
		e.opts.OnReceived(out, err)
	}
}

// SendProfile delivers a stored profile to the peer that shows codeText.
func (e *Exchange) SendProfile(ctx context.Context, codeText string, profileID uint) error {
	p, err := e.lib.profiles.Get(ctx, profileID)
	if err != nil {
		return err
	}
	return e.send(ctx, codeText, e.profilePayload(ctx, p))
}

// SendGroup delivers a group: its subscription URL when it has one, otherwise
// the links of its members.
func (e *Exchange) SendGroup(ctx context.Context, codeText string, groupID uint) error {
	g, err := e.lib.groups.Get(ctx, groupID)
	if err != nil {
		return err
	}
	return e.send(ctx, codeText, e.groupPayload(ctx, g))
}

func (e *Exchange) profilePayload(ctx context.Context, p *model.Profile) exchange.Payload {
	return exchange.Payload{
		DeviceName:         e.lib.DeviceName(ctx),
		Type:               exchange.KindProfile,
		Name:               p.Name,
		Content:            p.Content,
		URL:                p.URL,
		AutoUpdate:         p.AutoUpdate,
		AutoUpdateInterval: p.AutoUpdateInterval,
	}
}

func (e *Exchange) groupPayload(ctx context.Context, g *model.Group) exchange.Payload {
	payload := exchange.Payload{
		DeviceName:         e.lib.DeviceName(ctx),
		Type:               exchange.KindGroup,
		Name:               g.Name,
		URL:                g.URL,
		AutoUpdate:         g.AutoUpdate,
		AutoUpdateInterval: g.AutoUpdateInterval,
	}
	if g.URL == "" {
		for _, m := range g.Profiles {
			payload.Links = append(payload.Links, m.Content)
		}
	}
	return payload
}

func (e *Exchange) send(ctx context.Context, codeText string, payload exchange.Payload) error {
	code, err := exchange.ParseCode(codeText)
	if err != nil {
		return err
	}
	payload.Token = code.Token

	if err := e.client.Send(ctx, code.URL, code.Token, payload); err != nil {
		e.sink.Notify(ctx, notify.Notification{
			Level:     notify.Error,
			Title:     "Send failed",
			Message:   err.Error(),
			Retryable: true,
		})
		return err
	}
	e.sink.Notify(ctx, notify.Notification{
		Level:   notify.Success,
		Title:   "Sent",
		Message: fmt.Sprintf("%s %q", payload.Type, payload.Name),
	})
	return nil
}
