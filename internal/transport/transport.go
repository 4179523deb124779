// Package transport carries protocol messages over a websocket: a
// single-peer server for the host side and a Dial client for the editor side.
//
// Every binary websocket message is exactly one protocol message; messages
// delimit themselves, so no extra framing is added.
package transport

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"sync"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/gorilla/websocket"

	"github.com/1ureka/aselink/internal/metrics"
	"github.com/1ureka/aselink/internal/protocol"
	"github.com/1ureka/aselink/internal/util"
)

// Tuning constants.
const (
	StartTimeout      = 5 * time.Second  // bound on binding the listener
	writeTimeout      = 10 * time.Second // per message write deadline
	eventBufferSize   = 64               // inbound event channel capacity
	defaultSendBuffer = 64               // outgoing message channel capacity
)

var (
	ErrConnectionRefused = errors.New("transport: connection refused")
	ErrConnectionTimeout = errors.New("transport: connection timeout")
	ErrPeerClosed        = errors.New("transport: peer closed the connection")
	ErrNotConnected      = errors.New("transport: not connected")
	ErrAlreadyStarted    = errors.New("transport: already started")
	ErrStopped           = errors.New("transport: stopped")
)

// State is the lifecycle stage of a Transport.
type State int32

const (
	StateIdle      State = iota // no listener
	StateListening              // waiting for an editor
	StateConnected              // exactly one editor attached
)

func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateListening:
		return "listening"
	case StateConnected:
		return "connected"
	default:
		return fmt.Sprintf("state(%d)", int32(s))
	}
}

// EventKind discriminates transport events.
type EventKind int

const (
	EventConnected EventKind = iota
	EventMessage
	EventDisconnected
)

func (k EventKind) String() string {
	switch k {
	case EventConnected:
		return "connected"
	case EventMessage:
		return "message"
	case EventDisconnected:
		return "disconnected"
	default:
		return fmt.Sprintf("event(%d)", int(k))
	}
}

// Event is delivered on Transport.Events in arrival order.
type Event struct {
	Kind   EventKind
	Data   []byte // EventMessage: one complete protocol message
	Err    error  // EventDisconnected: ErrPeerClosed, ErrStopped or the read error
	Remote string // remote address of the peer
	Peer   uint64 // connection number, shared by all events of one editor
}

// Options tunes a Transport. Zero values select the defaults.
type Options struct {
	SendBuffer     int
	MaxMessageSize int64
	Metrics        *metrics.Metrics
	MetricsHandler http.Handler // served on /metrics when set
}

var upgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool { return true },
}

// Transport is the host-side websocket endpoint. It accepts at most one
// editor at a time; a second connection is refused with a policy-violation
// close frame.
type Transport struct {
	opts   Options
	events chan Event

	mu       sync.Mutex
	state    State
	ctx      context.Context
	cancel   context.CancelFunc
	listener net.Listener
	server   *http.Server
	peer     *peer
	peers    uint64 // editors accepted so far
}

// New creates an idle transport.
func New(opts Options) *Transport {
	if opts.SendBuffer < 1 {
		opts.SendBuffer = defaultSendBuffer
	}
	return &Transport{
		opts:   opts,
		events: make(chan Event, eventBufferSize),
	}
}

// ---------------------------------------------------------------------------
// Lifecycle
// ---------------------------------------------------------------------------

// Start binds addr and begins serving. Binding is bounded by StartTimeout;
// on failure the transport stays idle and the error wraps
// ErrConnectionTimeout or ErrConnectionRefused.
func (t *Transport) Start(ctx context.Context, addr string) error {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.state != StateIdle {
		return ErrAlreadyStarted
	}

	bindCtx, cancel := context.WithTimeout(ctx, StartTimeout)
	defer cancel()

	var lc net.ListenConfig
	listener, err := lc.Listen(bindCtx, "tcp", addr)
	if err != nil {
		if errors.Is(bindCtx.Err(), context.DeadlineExceeded) {
			return fmt.Errorf("%w: could not start server at %s: %v", ErrConnectionTimeout, addr, err)
		}
		return fmt.Errorf("%w: could not start server at %s: %v", ErrConnectionRefused, addr, err)
	}

	r := chi.NewRouter()
	if t.opts.MetricsHandler != nil {
		r.Handle("/metrics", t.opts.MetricsHandler)
	}
	r.HandleFunc("/*", t.handleWS)

	t.ctx, t.cancel = context.WithCancel(context.Background())
	t.listener = listener
	t.server = &http.Server{
		Handler:           r,
		ReadHeaderTimeout: StartTimeout,
	}
	t.state = StateListening

	go func(srv *http.Server, ln net.Listener) {
		if err := srv.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			util.LogError("websocket server stopped: %v", err)
		}
	}(t.server, listener)

	util.LogInfo("Listening for the editor on ws://%s", listener.Addr())
	return nil
}

// Stop closes the peer with a close frame, then the server and listener.
// It is a no-op on an idle transport.
func (t *Transport) Stop() error {
	t.mu.Lock()
	if t.state == StateIdle {
		t.mu.Unlock()
		return nil
	}
	p, srv := t.peer, t.server
	t.cancel()
	t.peer, t.server, t.listener = nil, nil, nil
	t.state = StateIdle
	t.mu.Unlock()

	if p != nil {
		p.close(websocket.CloseGoingAway, "server stopping")
	}
	return srv.Close()
}

// State returns the current lifecycle stage.
func (t *Transport) State() State {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.state
}

// Connected reports whether an editor is attached.
func (t *Transport) Connected() bool {
	return t.State() == StateConnected
}

// Addr returns the bound address, or nil when idle.
func (t *Transport) Addr() net.Addr {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.listener == nil {
		return nil
	}
	return t.listener.Addr()
}

// Events returns the inbound event stream. It is never closed; consumers
// select on their own context.
func (t *Transport) Events() <-chan Event {
	return t.events
}

func (t *Transport) emit(ctx context.Context, ev Event) {
	select {
	case t.events <- ev:
	case <-ctx.Done():
	}
}

// ---------------------------------------------------------------------------
// Data
// ---------------------------------------------------------------------------

// Send encodes msg and enqueues it for the editor. Without an editor it does
// nothing and returns nil; only encoding errors are reported.
func (t *Transport) Send(msg protocol.Message) error {
	data, err := protocol.Encode(msg)
	if err != nil {
		return err
	}
	t.SendRaw(data)
	return nil
}

// SendRaw enqueues an already encoded message. It blocks while the outgoing
// queue is full and is a silent no-op without an editor.
func (t *Transport) SendRaw(data []byte) {
	t.mu.Lock()
	p := t.peer
	t.mu.Unlock()
	if p == nil {
		return
	}
	p.send(data)
}

// ---------------------------------------------------------------------------
// Connection handling
// ---------------------------------------------------------------------------

func (t *Transport) handleWS(w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		util.LogDebug("websocket upgrade from %s failed: %v", r.RemoteAddr, err)
		return
	}

	t.mu.Lock()
	if t.state != StateListening {
		t.mu.Unlock()
		t.opts.Metrics.PeerRejected()
		util.LogWarning("Refused a second editor from %s", r.RemoteAddr)
		conn.WriteControl(websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.ClosePolicyViolation, "already connected"),
			time.Now().Add(writeTimeout))
		conn.Close()
		return
	}
	ctx := t.ctx
	p := newPeer(ctx, conn, t.opts.SendBuffer, t.opts.Metrics)
	t.peer = p
	t.state = StateConnected
	t.peers++
	id := t.peers
	t.mu.Unlock()

	if t.opts.MaxMessageSize > 0 {
		conn.SetReadLimit(t.opts.MaxMessageSize)
	}
	t.opts.Metrics.SessionOpened()
	util.Stats.AddSession()
	t.emit(ctx, Event{Kind: EventConnected, Remote: r.RemoteAddr, Peer: id})

	readErr := t.readLoop(ctx, p, r.RemoteAddr, id)

	p.close(websocket.CloseNormalClosure, "")
	t.mu.Lock()
	if t.peer == p {
		t.peer = nil
		t.state = StateListening
	}
	t.mu.Unlock()
	t.opts.Metrics.SessionClosed()

	// A replacement editor may already be attached and its Connected event
	// queued ahead of this one; Peer tells them apart.
	t.emit(ctx, Event{Kind: EventDisconnected, Err: readErr, Remote: r.RemoteAddr, Peer: id})
}

// readLoop forwards binary messages until the connection ends and returns
// why it ended.
func (t *Transport) readLoop(ctx context.Context, p *peer, remote string, id uint64) error {
	for {
		mt, data, err := p.conn.ReadMessage()
		if err != nil {
			return classifyReadError(ctx, p, err)
		}
		if mt != websocket.BinaryMessage {
			util.LogDebug("ignoring %d-byte text message from %s", len(data), remote)
			continue
		}
		util.Stats.AddRecv(len(data))
		t.opts.Metrics.AddBytes(metrics.DirectionIn, len(data))
		t.emit(ctx, Event{Kind: EventMessage, Data: data, Remote: remote, Peer: id})
	}
}

func classifyReadError(ctx context.Context, p *peer, err error) error {
	var ce *websocket.CloseError
	switch {
	case ctx.Err() != nil:
		return ErrStopped
	case p.closedLocally():
		return ErrStopped
	case errors.As(err, &ce):
		if ce.Code == websocket.CloseNormalClosure || ce.Code == websocket.CloseGoingAway || ce.Code == websocket.CloseNoStatusReceived {
			return ErrPeerClosed
		}
		return fmt.Errorf("%w: %v", ErrPeerClosed, err)
	default:
		return fmt.Errorf("connection closed with exception: %w", err)
	}
}
