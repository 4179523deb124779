// Package dispatch routes decoded protocol messages to registered handlers.
package dispatch

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/1ureka/aselink/internal/metrics"
	"github.com/1ureka/aselink/internal/protocol"
	"github.com/1ureka/aselink/internal/util"
)

// MaxBatchDepth is how deeply batches may nest. A top-level batch may carry
// another batch, but that inner batch may not carry a third.
const MaxBatchDepth = 2

const tracerName = "github.com/1ureka/aselink/internal/dispatch"

// Dispatcher maintains the tag → handler table and runs the
// parse/execute pipeline for every inbound message.
//
// Batches are handled by the dispatcher itself: each sub-message goes
// through the same pipeline, so handlers never see a batch.
type Dispatcher struct {
	mu       sync.RWMutex
	handlers map[protocol.Tag]Handler

	metrics *metrics.Metrics
	tracer  trace.Tracer
}

// Option configures a Dispatcher.
type Option func(*Dispatcher)

// WithMetrics records every processed message in m.
func WithMetrics(m *metrics.Metrics) Option {
	return func(d *Dispatcher) {
		d.metrics = m
	}
}

// WithTracer overrides the tracer resolved from the global provider.
func WithTracer(t trace.Tracer) Option {
	return func(d *Dispatcher) {
		d.tracer = t
	}
}

// New creates a dispatcher with no handlers besides the built-in batch.
func New(opts ...Option) *Dispatcher {
	d := &Dispatcher{
		handlers: make(map[protocol.Tag]Handler),
	}
	for _, opt := range opts {
		opt(d)
	}
	if d.tracer == nil {
		d.tracer = otel.Tracer(tracerName)
	}
	return d
}

// Register installs h for tag, replacing any previous handler.
// Batches cannot be overridden; registering TagBatch panics.
func (d *Dispatcher) Register(tag protocol.Tag, h Handler) {
	if tag == protocol.TagBatch {
		panic("dispatch: batch handling is built in")
	}
	d.mu.Lock()
	defer d.mu.Unlock()
	d.handlers[tag] = h
}

// Unregister removes the handler for tag.
func (d *Dispatcher) Unregister(tag protocol.Tag) {
	d.mu.Lock()
	defer d.mu.Unlock()
	delete(d.handlers, tag)
}

// Tags returns the registered tags in ascending order, batch included.
func (d *Dispatcher) Tags() []protocol.Tag {
	d.mu.RLock()
	defer d.mu.RUnlock()
	tags := make([]protocol.Tag, 0, len(d.handlers)+1)
	tags = append(tags, protocol.TagBatch)
	for t := range d.handlers {
		tags = append(tags, t)
	}
	sort.Slice(tags, func(i, j int) bool { return tags[i] < tags[j] })
	return tags
}

func (d *Dispatcher) lookup(tag protocol.Tag) (Handler, bool) {
	d.mu.RLock()
	defer d.mu.RUnlock()
	h, ok := d.handlers[tag]
	return h, ok
}

// Process handles one complete raw message: tag lookup, parse, execute.
//
// An unregistered tag yields an error wrapping protocol.ErrUnknownMessageType.
// Parse errors are returned as is; Execute errors are wrapped with the tag
// name. For a batch, every sub-message is attempted and the failures are
// joined into the returned error.
func (d *Dispatcher) Process(ctx context.Context, raw []byte) error {
	return d.process(ctx, raw, 0)
}

func (d *Dispatcher) process(ctx context.Context, raw []byte, depth int) error {
	c := protocol.NewCursor(raw)
	b, err := c.TakeUint8()
	if err != nil {
		return err
	}
	tag := protocol.Tag(b)

	ctx, span := d.tracer.Start(ctx, "dispatch.process",
		trace.WithAttributes(
			attribute.String("aselink.tag", tag.String()),
			attribute.Int("aselink.depth", depth),
			attribute.Int("aselink.size", len(raw)),
		),
	)
	defer span.End()

	start := time.Now()
	err = d.run(ctx, tag, c, depth)

	status := metrics.StatusOK
	switch {
	case err == nil:
		span.SetStatus(codes.Ok, "")
	case errors.Is(err, protocol.ErrUnknownMessageType) && !tag.Known():
		status = metrics.StatusUnknown
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
	default:
		status = metrics.StatusError
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
	}
	elapsed := time.Since(start)
	d.metrics.ObserveMessage(tag.String(), status, elapsed)
	util.LogFields("dispatched",
		"tag", tag.String(),
		"depth", depth,
		"bytes", len(raw),
		"status", status,
		"elapsed", elapsed,
	)

	return err
}

func (d *Dispatcher) run(ctx context.Context, tag protocol.Tag, c *protocol.Cursor, depth int) error {
	if tag == protocol.TagBatch {
		return d.processBatch(ctx, c, depth)
	}

	h, ok := d.lookup(tag)
	if !ok {
		return protocol.UnknownTagError(tag)
	}

	msg, err := h.Parse(c)
	if err != nil {
		return err
	}
	if err := h.Execute(ctx, msg); err != nil {
		return fmt.Errorf("%s: %w", tag, err)
	}
	return nil
}

// processBatch runs each sub-message in order. A failing sub-message is
// abandoned and the rest still run.
func (d *Dispatcher) processBatch(ctx context.Context, c *protocol.Cursor, depth int) error {
	if depth >= MaxBatchDepth {
		return fmt.Errorf("%w: depth %d", protocol.ErrBatchTooDeep, depth+1)
	}

	msg, err := protocol.DecodeBody(protocol.TagBatch, c)
	if err != nil {
		return err
	}
	batch := msg.(*protocol.Batch)

	var errs []error
	for i, sub := range batch.Messages {
		if err := ctx.Err(); err != nil {
			errs = append(errs, err)
			break
		}
		if err := d.process(ctx, sub, depth+1); err != nil {
			errs = append(errs, fmt.Errorf("batch item %d: %w", i, err))
		}
	}
	return errors.Join(errs...)
}
