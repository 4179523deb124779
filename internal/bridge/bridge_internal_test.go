package bridge

import (
	"context"
	"testing"

	"github.com/1ureka/aselink/internal/config"
	"github.com/1ureka/aselink/internal/scene"
	"github.com/1ureka/aselink/internal/transport"
)

// TestReplacedEditorDisconnectIsIgnored covers a new editor attaching before
// the previous one's disconnect has been handled.
func TestReplacedEditorDisconnectIsIgnored(t *testing.T) {
	rec := &scene.Recorder{}
	b := New(config.Default(), Deps{Store: scene.NewMemory(), Notifier: rec})
	ctx := context.Background()

	b.handleEvent(ctx, transport.Event{Kind: transport.EventConnected, Peer: 1})
	b.handleEvent(ctx, transport.Event{Kind: transport.EventConnected, Peer: 2})
	b.handleEvent(ctx, transport.Event{Kind: transport.EventDisconnected, Peer: 1, Err: transport.ErrPeerClosed})

	if _, ok := b.Session(); !ok {
		t.Fatal("stale disconnect cleared the new editor's session")
	}

	b.handleEvent(ctx, transport.Event{Kind: transport.EventDisconnected, Peer: 2, Err: transport.ErrPeerClosed})
	if _, ok := b.Session(); ok {
		t.Error("session should end with its own editor")
	}

	disconnects := 0
	for _, r := range rec.Reports() {
		if r.Message == "Editor disconnected" {
			disconnects++
		}
	}
	if disconnects != 1 {
		t.Errorf("expected one disconnect report, got %d", disconnects)
	}
}
