package transport

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"github.com/gorilla/websocket"

	"github.com/1ureka/aselink/internal/metrics"
	"github.com/1ureka/aselink/internal/util"
)

// peer is one attached editor. All data writes go through a single sender
// goroutine; close frames use WriteControl, which gorilla allows
// concurrently with it.
type peer struct {
	conn    *websocket.Conn
	inbox   chan []byte
	done    chan struct{}
	metrics *metrics.Metrics

	closeOnce sync.Once
	local     atomic.Bool
}

// newPeer wraps conn and starts the sender loop. The loop exits when ctx is
// cancelled or the peer is closed.
func newPeer(ctx context.Context, conn *websocket.Conn, bufferSize int, m *metrics.Metrics) *peer {
	p := &peer{
		conn:    conn,
		inbox:   make(chan []byte, bufferSize),
		done:    make(chan struct{}),
		metrics: m,
	}
	go p.loop(ctx)
	return p
}

// loop is the single-writer goroutine.
func (p *peer) loop(ctx context.Context) {
	for {
		select {
		case data := <-p.inbox:
			p.conn.SetWriteDeadline(time.Now().Add(writeTimeout))
			if err := p.conn.WriteMessage(websocket.BinaryMessage, data); err != nil {
				util.LogError("failed to send %d-byte message: %v", len(data), err)
				p.conn.Close()
				return
			}
			util.Stats.AddSent(len(data))
			p.metrics.AddBytes(metrics.DirectionOut, len(data))

		case <-p.done:
			return
		case <-ctx.Done():
			return
		}
	}
}

// send enqueues data. It blocks while the queue is full and returns
// silently once the peer is closed.
func (p *peer) send(data []byte) {
	select {
	case p.inbox <- data:
	case <-p.done:
	}
}

// close sends a close frame and tears the connection down. Only the first
// call has an effect.
func (p *peer) close(code int, reason string) {
	p.closeOnce.Do(func() {
		p.local.Store(true)
		close(p.done)
		p.conn.WriteControl(websocket.CloseMessage,
			websocket.FormatCloseMessage(code, reason),
			time.Now().Add(time.Second))
		p.conn.Close()
	})
}

func (p *peer) closedLocally() bool {
	return p.local.Load()
}
