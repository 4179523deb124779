package transport_test

import (
	"context"
	"errors"
	"io"
	"net/http"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/1ureka/aselink/internal/metrics"
	"github.com/1ureka/aselink/internal/protocol"
	"github.com/1ureka/aselink/internal/transport"
)

func startTransport(t *testing.T, opts transport.Options) *transport.Transport {
	t.Helper()
	tr := transport.New(opts)
	if err := tr.Start(context.Background(), "127.0.0.1:0"); err != nil {
		t.Fatalf("Start failed: %v", err)
	}
	t.Cleanup(func() { tr.Stop() })
	return tr
}

func waitEvent(t *testing.T, tr *transport.Transport, kind transport.EventKind) transport.Event {
	t.Helper()
	timeout := time.After(5 * time.Second)
	for {
		select {
		case ev := <-tr.Events():
			if ev.Kind == kind {
				return ev
			}
		case <-timeout:
			t.Fatalf("timed out waiting for %s event", kind)
		}
	}
}

func dial(t *testing.T, tr *transport.Transport) *transport.Client {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	c, err := transport.Dial(ctx, transport.URL(tr.Addr().String()))
	if err != nil {
		t.Fatalf("Dial failed: %v", err)
	}
	return c
}

func TestLoopback(t *testing.T) {
	tr := startTransport(t, transport.Options{})
	if tr.State() != transport.StateListening {
		t.Fatalf("state: got %s", tr.State())
	}

	client := dial(t, tr)
	defer client.Close()
	waitEvent(t, tr, transport.EventConnected)
	if !tr.Connected() {
		t.Fatal("transport should report connected")
	}

	// editor -> host
	if err := client.Send(&protocol.ActiveSprite{Name: "hero"}); err != nil {
		t.Fatalf("client Send failed: %v", err)
	}
	ev := waitEvent(t, tr, transport.EventMessage)
	msg, err := protocol.Decode(ev.Data)
	if err != nil {
		t.Fatalf("Decode failed: %v", err)
	}
	if got := msg.(*protocol.ActiveSprite).Name; got != "hero" {
		t.Errorf("got %q", got)
	}

	// host -> editor
	if err := tr.Send(&protocol.SpriteFocus{Name: "hero"}); err != nil {
		t.Fatalf("transport Send failed: %v", err)
	}
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	reply, err := client.Receive(ctx)
	if err != nil {
		t.Fatalf("Receive failed: %v", err)
	}
	if focus, ok := reply.(*protocol.SpriteFocus); !ok || focus.Name != "hero" {
		t.Errorf("unexpected reply %#v", reply)
	}
}

func TestMessagesArriveInOrder(t *testing.T) {
	tr := startTransport(t, transport.Options{})
	client := dial(t, tr)
	defer client.Close()
	waitEvent(t, tr, transport.EventConnected)

	const n = 50
	for i := 0; i < n; i++ {
		if err := client.Send(&protocol.Image{Frame: uint16(i), Name: "seq"}); err != nil {
			t.Fatalf("Send %d failed: %v", i, err)
		}
	}
	for i := 0; i < n; i++ {
		ev := waitEvent(t, tr, transport.EventMessage)
		msg, err := protocol.Decode(ev.Data)
		if err != nil {
			t.Fatalf("Decode failed: %v", err)
		}
		if got := msg.(*protocol.Image).Frame; got != uint16(i) {
			t.Fatalf("message %d arrived as %d", i, got)
		}
	}
}

func TestSecondPeerRejected(t *testing.T) {
	reg := prometheus.NewRegistry()
	tr := startTransport(t, transport.Options{Metrics: metrics.New(reg)})

	first := dial(t, tr)
	defer first.Close()
	waitEvent(t, tr, transport.EventConnected)

	second := dial(t, tr)
	defer second.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	_, err := second.ReceiveRaw(ctx)
	if !errors.Is(err, transport.ErrPeerClosed) {
		t.Fatalf("expected ErrPeerClosed, got %v", err)
	}
	if !strings.Contains(err.Error(), "1008") || !strings.Contains(err.Error(), "already connected") {
		t.Errorf("expected policy violation close, got %v", err)
	}

	// The first editor is unaffected.
	if err := first.Send(&protocol.ActiveSprite{Name: "still here"}); err != nil {
		t.Fatalf("Send failed: %v", err)
	}
	waitEvent(t, tr, transport.EventMessage)
}

func TestDisconnectReturnsToListening(t *testing.T) {
	tr := startTransport(t, transport.Options{})

	client := dial(t, tr)
	first := waitEvent(t, tr, transport.EventConnected)
	client.Close()

	ev := waitEvent(t, tr, transport.EventDisconnected)
	if !errors.Is(ev.Err, transport.ErrPeerClosed) {
		t.Errorf("expected ErrPeerClosed, got %v", ev.Err)
	}
	if ev.Peer != first.Peer {
		t.Errorf("disconnect peer: got %d, want %d", ev.Peer, first.Peer)
	}
	if tr.State() != transport.StateListening {
		t.Errorf("state: got %s, want listening", tr.State())
	}

	// Sending without a peer is a silent no-op.
	if err := tr.Send(&protocol.SpriteFocus{Name: "nobody"}); err != nil {
		t.Errorf("Send without peer: %v", err)
	}

	// A new editor may attach.
	again := dial(t, tr)
	defer again.Close()
	if second := waitEvent(t, tr, transport.EventConnected); second.Peer == first.Peer {
		t.Errorf("new editor reuses peer number %d", second.Peer)
	}
}

func TestStartErrors(t *testing.T) {
	tr := startTransport(t, transport.Options{})

	if err := tr.Start(context.Background(), "127.0.0.1:0"); !errors.Is(err, transport.ErrAlreadyStarted) {
		t.Errorf("expected ErrAlreadyStarted, got %v", err)
	}

	busy := transport.New(transport.Options{})
	err := busy.Start(context.Background(), tr.Addr().String())
	if !errors.Is(err, transport.ErrConnectionRefused) {
		t.Errorf("expected ErrConnectionRefused, got %v", err)
	}
	if busy.State() != transport.StateIdle {
		t.Errorf("failed start should stay idle, got %s", busy.State())
	}
}

func TestStopClosesPeer(t *testing.T) {
	tr := transport.New(transport.Options{})
	if err := tr.Start(context.Background(), "127.0.0.1:0"); err != nil {
		t.Fatalf("Start failed: %v", err)
	}
	client := dial(t, tr)
	defer client.Close()
	waitEvent(t, tr, transport.EventConnected)

	if err := tr.Stop(); err != nil {
		t.Fatalf("Stop failed: %v", err)
	}
	if tr.State() != transport.StateIdle {
		t.Errorf("state: got %s", tr.State())
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if _, err := client.ReceiveRaw(ctx); !errors.Is(err, transport.ErrPeerClosed) {
		t.Errorf("expected ErrPeerClosed after Stop, got %v", err)
	}
	if err := tr.Stop(); err != nil {
		t.Errorf("second Stop: %v", err)
	}
}

func TestDialRefused(t *testing.T) {
	tr := transport.New(transport.Options{})
	if err := tr.Start(context.Background(), "127.0.0.1:0"); err != nil {
		t.Fatalf("Start failed: %v", err)
	}
	addr := tr.Addr().String()
	tr.Stop()

	_, err := transport.Dial(context.Background(), transport.URL(addr))
	if !errors.Is(err, transport.ErrConnectionRefused) {
		t.Errorf("expected ErrConnectionRefused, got %v", err)
	}
}

func TestMetricsEndpoint(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := metrics.New(reg)
	tr := startTransport(t, transport.Options{Metrics: m, MetricsHandler: metrics.Handler(reg)})

	client := dial(t, tr)
	defer client.Close()
	waitEvent(t, tr, transport.EventConnected)

	resp, err := http.Get("http://" + tr.Addr().String() + "/metrics")
	if err != nil {
		t.Fatalf("GET /metrics failed: %v", err)
	}
	defer resp.Body.Close()
	body, _ := io.ReadAll(resp.Body)
	if !strings.Contains(string(body), "aselink_editor_connected 1") {
		t.Errorf("metrics body missing connected gauge:\n%s", body)
	}
}
