package transport

import (
	"context"
	"errors"
	"fmt"
	"net"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/1ureka/aselink/internal/protocol"
)

// URL returns the websocket URL of a host listening on addr.
func URL(addr string) string {
	return "ws://" + addr + "/"
}

// Client is the editor side of the link.
type Client struct {
	conn    *websocket.Conn
	writeMu sync.Mutex
}

// Dial connects to a host. Connection establishment is bounded by
// StartTimeout as well as ctx.
func Dial(ctx context.Context, url string) (*Client, error) {
	dialCtx, cancel := context.WithTimeout(ctx, StartTimeout)
	defer cancel()

	dialer := websocket.Dialer{HandshakeTimeout: StartTimeout}
	conn, _, err := dialer.DialContext(dialCtx, url, nil)
	if err != nil {
		var ne net.Error
		if errors.Is(dialCtx.Err(), context.DeadlineExceeded) || (errors.As(err, &ne) && ne.Timeout()) {
			return nil, fmt.Errorf("%w: %s: %v", ErrConnectionTimeout, url, err)
		}
		return nil, fmt.Errorf("%w: %s: %v", ErrConnectionRefused, url, err)
	}
	return &Client{conn: conn}, nil
}

// Send encodes and writes one message.
func (c *Client) Send(msg protocol.Message) error {
	data, err := protocol.Encode(msg)
	if err != nil {
		return err
	}
	return c.SendRaw(data)
}

// SendRaw writes one already encoded message.
func (c *Client) SendRaw(data []byte) error {
	c.writeMu.Lock()
	defer c.writeMu.Unlock()
	c.conn.SetWriteDeadline(time.Now().Add(writeTimeout))
	if err := c.conn.WriteMessage(websocket.BinaryMessage, data); err != nil {
		return fmt.Errorf("failed to send message: %w", err)
	}
	return nil
}

// ReceiveRaw waits for the next binary message. A cancelled ctx interrupts
// the read and leaves the connection unusable, as with any websocket read
// deadline.
func (c *Client) ReceiveRaw(ctx context.Context) ([]byte, error) {
	deadline, _ := ctx.Deadline()
	c.conn.SetReadDeadline(deadline)
	stop := context.AfterFunc(ctx, func() {
		c.conn.SetReadDeadline(time.Now())
	})
	defer stop()

	for {
		mt, data, err := c.conn.ReadMessage()
		if err != nil {
			if ctx.Err() != nil {
				return nil, ctx.Err()
			}
			var ce *websocket.CloseError
			if errors.As(err, &ce) {
				return nil, fmt.Errorf("%w: %d %s", ErrPeerClosed, ce.Code, ce.Text)
			}
			return nil, err
		}
		if mt == websocket.BinaryMessage {
			return data, nil
		}
	}
}

// Receive waits for the next message and decodes it.
func (c *Client) Receive(ctx context.Context) (protocol.Message, error) {
	data, err := c.ReceiveRaw(ctx)
	if err != nil {
		return nil, err
	}
	return protocol.Decode(data)
}

// Close sends a normal close frame and closes the connection.
func (c *Client) Close() error {
	c.conn.WriteControl(websocket.CloseMessage,
		websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""),
		time.Now().Add(time.Second))
	return c.conn.Close()
}
