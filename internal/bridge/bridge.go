// Package bridge ties the transport, the dispatcher and the host-side scene
// collaborators together for one editor link.
package bridge

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"strings"
	"sync"

	"github.com/1ureka/aselink/internal/config"
	"github.com/1ureka/aselink/internal/dispatch"
	"github.com/1ureka/aselink/internal/metrics"
	"github.com/1ureka/aselink/internal/protocol"
	"github.com/1ureka/aselink/internal/scene"
	"github.com/1ureka/aselink/internal/transport"
	"github.com/1ureka/aselink/internal/util"
)

// Deps are the collaborators a Bridge writes into.
type Deps struct {
	Store          scene.Store
	Notifier       scene.Notifier
	Metrics        *metrics.Metrics // may be nil
	MetricsHandler http.Handler     // served on /metrics when set
}

// Bridge is the host side of the link: it owns the transport, the
// dispatcher and the current Session, and applies inbound messages to the
// scene collaborators.
type Bridge struct {
	cfg        config.Config
	id         string
	transport  *transport.Transport
	dispatcher *dispatch.Dispatcher
	store      scene.Store
	notifier   scene.Notifier
	metrics    *metrics.Metrics

	mu      sync.Mutex
	session *Session // nil while no editor is attached
	peer    uint64   // transport peer the session belongs to
}

// New wires a bridge. The session identifier is cfg.Identifier, or a random
// token kept for the lifetime of the process.
func New(cfg config.Config, deps Deps) *Bridge {
	id := cfg.Identifier
	if id == "" {
		id = util.NewSessionID()
	}
	notifier := deps.Notifier
	if notifier == nil {
		notifier = scene.ConsoleNotifier{}
	}

	b := &Bridge{
		cfg: cfg,
		id:  id,
		transport: transport.New(transport.Options{
			SendBuffer:     cfg.SendBuffer,
			MaxMessageSize: cfg.MaxMessageSize,
			Metrics:        deps.Metrics,
			MetricsHandler: deps.MetricsHandler,
		}),
		dispatcher: dispatch.New(dispatch.WithMetrics(deps.Metrics)),
		store:      deps.Store,
		notifier:   notifier,
		metrics:    deps.Metrics,
	}

	b.dispatcher.Register(protocol.TagImage, dispatch.On(b.handleImage))
	b.dispatcher.Register(protocol.TagSpritesheet, dispatch.On(b.handleSpritesheet))
	b.dispatcher.Register(protocol.TagFrame, dispatch.On(b.handleFrame))
	b.dispatcher.Register(protocol.TagImageLayers, dispatch.On(b.handleImageLayers))
	b.dispatcher.Register(protocol.TagChangeName, dispatch.On(b.handleChangeName))
	b.dispatcher.Register(protocol.TagNewTexture, dispatch.On(b.handleNewTexture))
	b.dispatcher.Register(protocol.TagActiveSprite, dispatch.On(b.handleActiveSprite))
	return b
}

// ID returns the identifier announced in every texture list.
func (b *Bridge) ID() string { return b.id }

// Addr returns the bound address, or nil before Start.
func (b *Bridge) Addr() net.Addr { return b.transport.Addr() }

// Connected reports whether an editor is attached.
func (b *Bridge) Connected() bool { return b.transport.Connected() }

// Session returns a copy of the current session, and false when no editor
// is attached.
func (b *Bridge) Session() (Session, bool) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.session == nil {
		return Session{}, false
	}
	return b.session.snapshot(), true
}

// Start binds the websocket endpoint.
func (b *Bridge) Start(ctx context.Context) error {
	return b.transport.Start(ctx, b.cfg.Addr())
}

// Stop closes the editor connection and the endpoint.
func (b *Bridge) Stop() error {
	return b.transport.Stop()
}

// Run starts the endpoint and serves until ctx is done:
//  1. Bind the websocket endpoint
//  2. Wait for the editor, greet it with the texture list
//  3. Apply every inbound message in arrival order
//  4. On disconnect, drop the session and wait for the next editor
func (b *Bridge) Run(ctx context.Context) error {
	if err := b.Start(ctx); err != nil {
		return err
	}
	defer b.Stop()
	b.Serve(ctx)
	return nil
}

// Serve consumes transport events on the calling goroutine until ctx is
// done. Handlers never run concurrently with each other.
func (b *Bridge) Serve(ctx context.Context) {
	events := b.transport.Events()
	for {
		select {
		case <-ctx.Done():
			return
		case ev := <-events:
			b.handleEvent(ctx, ev)
		}
	}
}

func (b *Bridge) handleEvent(ctx context.Context, ev transport.Event) {
	switch ev.Kind {
	case transport.EventConnected:
		b.mu.Lock()
		b.session = newSession(b.id)
		b.peer = ev.Peer
		b.mu.Unlock()
		b.report(scene.SeverityInfo, "Editor connected from %s", ev.Remote)
		if err := b.SendTextureList(ctx); err != nil {
			b.reportError(err)
		}

	case transport.EventMessage:
		if err := b.dispatcher.Process(ctx, ev.Data); err != nil {
			util.Stats.AddError()
			b.reportError(err)
		}

	case transport.EventDisconnected:
		b.mu.Lock()
		stale := ev.Peer != b.peer
		b.mu.Unlock()
		if stale {
			util.LogDebug("disconnect of replaced editor %s ignored", ev.Remote)
			return
		}
		switch {
		case ev.Err == nil, errors.Is(ev.Err, transport.ErrPeerClosed), errors.Is(ev.Err, transport.ErrStopped):
			b.report(scene.SeverityInfo, "Editor disconnected")
		default:
			b.report(scene.SeverityWarning, "Editor connection lost: %v", ev.Err)
		}
		b.mu.Lock()
		if b.peer == ev.Peer {
			b.session = nil
		}
		b.mu.Unlock()
	}
}

func (b *Bridge) report(severity scene.Severity, format string, args ...any) {
	b.notifier.Report(severity, fmt.Sprintf(format, args...))
}

// reportError surfaces every line of err separately; joined batch errors
// carry one failure per line.
func (b *Bridge) reportError(err error) {
	for _, line := range strings.Split(err.Error(), "\n") {
		if line = strings.TrimSpace(line); line != "" {
			b.notifier.Report(scene.SeverityError, line)
		}
	}
}

// withSession runs fn on the current session, if any.
func (b *Bridge) withSession(fn func(s *Session)) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.session != nil {
		fn(b.session)
	}
}
