package dispatch

import (
	"context"
	"fmt"

	"github.com/1ureka/aselink/internal/protocol"
)

// Handler parses the body of one message kind and acts on it.
// Parse receives a cursor positioned just after the tag byte.
type Handler interface {
	Parse(c *protocol.Cursor) (protocol.Message, error)
	Execute(ctx context.Context, msg protocol.Message) error
}

// typedHandler decodes with the protocol codec and hands the concrete
// message type to exec.
type typedHandler[T protocol.Message] struct {
	tag  protocol.Tag
	exec func(context.Context, T) error
}

// On builds a Handler for message type T. The tag comes from T itself, so
// registering a kind is a single call:
//
//	d.Register(protocol.TagImage, dispatch.On(b.handleImage))
func On[T protocol.Message](exec func(context.Context, T) error) Handler {
	var zero T
	return &typedHandler[T]{tag: zero.Tag(), exec: exec}
}

func (h *typedHandler[T]) Parse(c *protocol.Cursor) (protocol.Message, error) {
	return protocol.DecodeBody(h.tag, c)
}

func (h *typedHandler[T]) Execute(ctx context.Context, msg protocol.Message) error {
	m, ok := msg.(T)
	if !ok {
		return fmt.Errorf("%w: handler for %s got %T", protocol.ErrInvalidMessage, h.tag, msg)
	}
	return h.exec(ctx, m)
}

// HandlerFunc adapts a pair of functions to the Handler interface, for
// message kinds that need custom parsing.
type HandlerFunc struct {
	ParseFunc   func(c *protocol.Cursor) (protocol.Message, error)
	ExecuteFunc func(ctx context.Context, msg protocol.Message) error
}

func (h HandlerFunc) Parse(c *protocol.Cursor) (protocol.Message, error) {
	return h.ParseFunc(c)
}

func (h HandlerFunc) Execute(ctx context.Context, msg protocol.Message) error {
	return h.ExecuteFunc(ctx, msg)
}
