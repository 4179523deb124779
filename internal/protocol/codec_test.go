package protocol_test

import (
	"bytes"
	"errors"
	"reflect"
	"testing"

	"github.com/1ureka/aselink/internal/protocol"
)

func sampleMessages() []struct {
	name string
	msg  protocol.Message
} {
	return []struct {
		name string
		msg  protocol.Message
	}{
		{
			name: "Image with pixels and flags",
			msg: &protocol.Image{
				Width: 2, Height: 1, Frame: 3,
				Flags:  protocol.NewSyncFlags(protocol.FlagSheet, protocol.FlagShowUV),
				Name:   "grass",
				Pixels: []byte{1, 2, 3, 4, 5, 6, 7, 8},
			},
		},
		{
			name: "Image with empty name, flags and pixels",
			msg:  &protocol.Image{},
		},
		{
			name: "Spritesheet with tags",
			msg: &protocol.Spritesheet{
				Width: 1, Height: 1, Name: "hero", Start: -2, CurrentFrame: 1,
				Frames: []protocol.FrameDuration{
					{Value: 0, DurationMs: 100},
					{Value: 1, DurationMs: 150},
				},
				CurrentTag: "walk",
				Tags: []protocol.AnimTag{
					{Name: "walk", Start: 0, End: 1, Direction: protocol.PingPong},
				},
				Images: [][]byte{{1, 1, 1, 1}, {2, 2, 2, 2}},
			},
		},
		{
			name: "Spritesheet with no frames",
			msg:  &protocol.Spritesheet{Name: "empty"},
		},
		{
			name: "Frame flip",
			msg: &protocol.FrameFlip{
				Frame: 7, Name: "hero", Start: 1,
				Frames: []protocol.FrameDuration{{Value: 2, DurationMs: 0xFFFFFFFF}},
			},
		},
		{
			name: "ChangeName",
			msg:  &protocol.ChangeName{OldName: "Sprite-0001", NewName: "hero.aseprite"},
		},
		{
			name: "NewTexture",
			msg:  &protocol.NewTexture{Name: "wall", Path: "/tmp/wall.png"},
		},
		{
			name: "ActiveSprite cleared",
			msg:  &protocol.ActiveSprite{Name: ""},
		},
		{
			name: "ImageLayers",
			msg: &protocol.ImageLayers{
				Width: 4, Height: 4, Name: "stack",
				Flags:  protocol.NewSyncFlags(protocol.FlagLayers),
				Groups: []protocol.LayerGroup{{Name: "root"}, {Name: "fx"}},
				Layers: []protocol.Layer{
					{Index: 0, Blend: protocol.BlendMultiply, Opacity: 255, Group: 1,
						X: -3, Y: 2, Width: 1, Height: 1, Name: "ink", Pixels: []byte{9, 9, 9, 9}},
				},
			},
		},
		{
			name: "TextureList",
			msg: &protocol.TextureList{
				SessionID: "a1b2c3d4",
				Textures: []protocol.Texture{
					{Name: "grass"},
					{Name: "hero *Sheet*", Flags: protocol.NewSyncFlags(protocol.FlagSheet)},
				},
			},
		},
		{
			name: "SpriteOpen",
			msg:  &protocol.SpriteOpen{Path: "/art/hero.aseprite", Flags: protocol.NewSyncFlags(protocol.FlagSheet)},
		},
		{
			name: "SpriteNew",
			msg:  &protocol.SpriteNew{Name: "rock", Width: 32, Height: 16, Mode: protocol.ColorIndexed},
		},
		{
			name: "UVMap",
			msg:  &protocol.UVMap{Width: 1, Height: 1, Layer: "UV Map", Opacity: 128, Pixels: []byte{0, 0, 0, 255}},
		},
		{
			name: "SpriteFocus",
			msg:  &protocol.SpriteFocus{Name: "hero"},
		},
		{
			name: "Peek",
			msg:  &protocol.Peek{Textures: []protocol.Texture{{Name: "a"}, {Name: "b"}}},
		},
	}
}

// TestEncodeDecodeRoundTrip verifies that decoding an encoded message yields a
// message with the same tag that re-encodes to identical bytes.
func TestEncodeDecodeRoundTrip(t *testing.T) {
	for _, tc := range sampleMessages() {
		t.Run(tc.name, func(t *testing.T) {
			encoded, err := protocol.Encode(tc.msg)
			if err != nil {
				t.Fatalf("Encode failed: %v", err)
			}
			if protocol.Tag(encoded[0]) != tc.msg.Tag() {
				t.Fatalf("tag byte: got %q, want %q", encoded[0], byte(tc.msg.Tag()))
			}

			decoded, err := protocol.Decode(encoded)
			if err != nil {
				t.Fatalf("Decode failed: %v", err)
			}
			if reflect.TypeOf(decoded) != reflect.TypeOf(tc.msg) {
				t.Fatalf("type mismatch: got %T, want %T", decoded, tc.msg)
			}

			again, err := protocol.Encode(decoded)
			if err != nil {
				t.Fatalf("re-Encode failed: %v", err)
			}
			if !bytes.Equal(again, encoded) {
				t.Errorf("re-encoded bytes differ:\n got  %x\n want %x", again, encoded)
			}
		})
	}
}

func TestDecodeFieldValues(t *testing.T) {
	src := &protocol.Spritesheet{
		Width: 8, Height: 8, Name: "walker", Start: 1, CurrentFrame: 2,
		Frames: []protocol.FrameDuration{
			{Value: 0, DurationMs: 100}, {Value: 1, DurationMs: 100}, {Value: 2, DurationMs: 120},
		},
		CurrentTag: "walk",
		Tags:       []protocol.AnimTag{{Name: "walk", Start: 0, End: 2, Direction: protocol.Reverse}},
		Images:     [][]byte{make([]byte, 256), make([]byte, 256), make([]byte, 256)},
	}
	encoded, err := protocol.Encode(src)
	if err != nil {
		t.Fatalf("Encode failed: %v", err)
	}
	msg, err := protocol.Decode(encoded)
	if err != nil {
		t.Fatalf("Decode failed: %v", err)
	}
	got := msg.(*protocol.Spritesheet)

	if got.Width != 8 || got.Height != 8 || got.Name != "walker" || got.Start != 1 || got.CurrentFrame != 2 {
		t.Errorf("header mismatch: %+v", got)
	}
	if !reflect.DeepEqual(got.Frames, src.Frames) {
		t.Errorf("frames: got %v, want %v", got.Frames, src.Frames)
	}
	if !reflect.DeepEqual(got.Tags, src.Tags) {
		t.Errorf("tags: got %v, want %v", got.Tags, src.Tags)
	}
	if len(got.Images) != 3 || len(got.Images[2]) != 256 {
		t.Errorf("images: got %d blobs", len(got.Images))
	}
}

func TestSyncFlagsOrderInsignificant(t *testing.T) {
	a := &protocol.Image{Name: "x", Flags: protocol.NewSyncFlags(protocol.FlagShowUV, protocol.FlagSheet)}
	b := &protocol.Image{Name: "x", Flags: protocol.NewSyncFlags(protocol.FlagSheet, protocol.FlagShowUV, protocol.FlagSheet)}

	ea, err := protocol.Encode(a)
	if err != nil {
		t.Fatal(err)
	}
	eb, err := protocol.Encode(b)
	if err != nil {
		t.Fatal(err)
	}
	if !bytes.Equal(ea, eb) {
		t.Errorf("flag order changed encoding:\n %x\n %x", ea, eb)
	}

	decoded, err := protocol.Decode(eb)
	if err != nil {
		t.Fatal(err)
	}
	flags := decoded.(*protocol.Image).Flags
	if len(flags) != 2 || !flags.Has(protocol.FlagSheet) || !flags.Has(protocol.FlagShowUV) {
		t.Errorf("duplicates should collapse, got %v", flags.Sorted())
	}
}

func TestImageWireLayout(t *testing.T) {
	msg := &protocol.Image{Width: 1, Height: 1, Frame: 0, Name: "a", Pixels: []byte{0xAA, 0xBB, 0xCC, 0xDD}}
	got, err := protocol.Encode(msg)
	if err != nil {
		t.Fatal(err)
	}
	want := []byte{
		'I',
		0x01, 0x00, // width
		0x01, 0x00, // height
		0x00, 0x00, // frame
		0x00,             // no flags
		0x01, 0x00, 'a', // name
		0x04, 0x00, 0x00, 0x00, 0xAA, 0xBB, 0xCC, 0xDD, // pixels
	}
	if !bytes.Equal(got, want) {
		t.Errorf("layout mismatch:\n got  %x\n want %x", got, want)
	}
}

// TestDecodeTruncated cuts every sample at every length and checks that the
// decoder reports truncation instead of panicking.
func TestDecodeTruncated(t *testing.T) {
	for _, tc := range sampleMessages() {
		t.Run(tc.name, func(t *testing.T) {
			encoded, err := protocol.Encode(tc.msg)
			if err != nil {
				t.Fatalf("Encode failed: %v", err)
			}
			for n := 0; n < len(encoded); n++ {
				_, err := protocol.Decode(encoded[:n])
				if !errors.Is(err, protocol.ErrTruncatedMessage) {
					t.Fatalf("prefix of %d/%d bytes: expected ErrTruncatedMessage, got %v", n, len(encoded), err)
				}
			}
		})
	}
}

func TestDecodeForgedCount(t *testing.T) {
	// A batch claiming 65535 sub-messages with no payload behind it.
	data := []byte{'[', 0xFF, 0xFF}
	if _, err := protocol.Decode(data); !errors.Is(err, protocol.ErrTruncatedMessage) {
		t.Errorf("expected ErrTruncatedMessage, got %v", err)
	}

	// Blob length far beyond the buffer.
	c := protocol.NewCursor([]byte{0xFF, 0xFF, 0xFF, 0x7F, 1, 2})
	if _, err := c.TakeData(); !errors.Is(err, protocol.ErrTruncatedMessage) {
		t.Errorf("expected ErrTruncatedMessage, got %v", err)
	}
	if c.Position() != 0 {
		t.Errorf("failed TakeData moved position to %d", c.Position())
	}
}

func TestDecodeUnknownTag(t *testing.T) {
	_, err := protocol.Decode([]byte{'Z', 1, 2, 3})
	if !errors.Is(err, protocol.ErrUnknownMessageType) {
		t.Fatalf("expected ErrUnknownMessageType, got %v", err)
	}
	if want := "0x5a 'Z'"; !bytes.Contains([]byte(err.Error()), []byte(want)) {
		t.Errorf("error %q should mention %s", err, want)
	}
}

func TestDecodeIgnoresTrailingBytes(t *testing.T) {
	encoded, err := protocol.Encode(&protocol.SpriteFocus{Name: "hero"})
	if err != nil {
		t.Fatal(err)
	}
	msg, err := protocol.Decode(append(encoded, 0xDE, 0xAD))
	if err != nil {
		t.Fatalf("Decode failed: %v", err)
	}
	if msg.(*protocol.SpriteFocus).Name != "hero" {
		t.Errorf("unexpected name %q", msg.(*protocol.SpriteFocus).Name)
	}
}

func TestEncodeBatch(t *testing.T) {
	raw, err := protocol.EncodeBatch(
		&protocol.ActiveSprite{Name: "a"},
		&protocol.ChangeName{OldName: "a", NewName: "b"},
	)
	if err != nil {
		t.Fatal(err)
	}
	tag, err := protocol.PeekTag(raw)
	if err != nil || tag != protocol.TagBatch {
		t.Fatalf("PeekTag: got %v %v", tag, err)
	}
	msg, err := protocol.Decode(raw)
	if err != nil {
		t.Fatal(err)
	}
	batch := msg.(*protocol.Batch)
	if len(batch.Messages) != 2 {
		t.Fatalf("expected 2 sub-messages, got %d", len(batch.Messages))
	}
	for i, want := range []protocol.Tag{protocol.TagActiveSprite, protocol.TagChangeName} {
		if protocol.Tag(batch.Messages[i][0]) != want {
			t.Errorf("sub-message %d: got %s, want %s", i, protocol.Tag(batch.Messages[i][0]), want)
		}
	}
}

func TestEncodeErrors(t *testing.T) {
	testCases := []struct {
		name string
		msg  protocol.Message
		want error
	}{
		{
			name: "string longer than 65535 bytes",
			msg:  &protocol.SpriteFocus{Name: string(make([]byte, 70000))},
			want: protocol.ErrFieldTooLong,
		},
		{
			name: "more than 255 sync flags",
			msg:  &protocol.SpriteOpen{Flags: manyFlags(256)},
			want: protocol.ErrFieldTooLong,
		},
		{
			name: "spritesheet frames and images disagree",
			msg: &protocol.Spritesheet{
				Frames: []protocol.FrameDuration{{}, {}},
				Images: [][]byte{{}},
			},
			want: protocol.ErrInvalidMessage,
		},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			if _, err := protocol.Encode(tc.msg); !errors.Is(err, tc.want) {
				t.Errorf("expected %v, got %v", tc.want, err)
			}
		})
	}
}

func manyFlags(n int) protocol.SyncFlags {
	f := protocol.NewSyncFlags()
	for i := 0; i < n; i++ {
		f.Add(string(rune('a'+i%26)) + string(rune('a'+i/26)))
	}
	return f
}

func TestCursorTakeUintSint(t *testing.T) {
	testCases := []struct {
		name     string
		input    []byte
		width    int
		wantUint uint64
		wantSint int64
		wantErr  error
	}{
		{"n=1 all ones", []byte{0xFF}, 1, 0xFF, -1, nil},
		{"n=1 positive", []byte{0x7F}, 1, 0x7F, 127, nil},
		{"n=2 min", []byte{0x00, 0x80}, 2, 0x8000, -32768, nil},
		{"n=2 little endian", []byte{0x34, 0x12}, 2, 0x1234, 0x1234, nil},
		{"n=4 minus two", []byte{0xFE, 0xFF, 0xFF, 0xFF}, 4, 0xFFFFFFFE, -2, nil},
		{"n=8 max", []byte{0xFF, 0xFF, 0xFF, 0xFF, 0xFF, 0xFF, 0xFF, 0x7F}, 8, 1<<63 - 1, 1<<63 - 1, nil},
		{"n=8 all ones", bytes.Repeat([]byte{0xFF}, 8), 8, 1<<64 - 1, -1, nil},
		{"n=0 rejected", []byte{0x01}, 0, 0, 0, protocol.ErrInvalidMessage},
		{"n=9 rejected", bytes.Repeat([]byte{0x01}, 9), 9, 0, 0, protocol.ErrInvalidMessage},
		{"short buffer", []byte{0x01, 0x02}, 4, 0, 0, protocol.ErrTruncatedMessage},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			u, err := protocol.NewCursor(tc.input).TakeUint(tc.width)
			if !errors.Is(err, tc.wantErr) {
				t.Fatalf("TakeUint error: got %v, want %v", err, tc.wantErr)
			}
			s, err := protocol.NewCursor(tc.input).TakeSint(tc.width)
			if !errors.Is(err, tc.wantErr) {
				t.Fatalf("TakeSint error: got %v, want %v", err, tc.wantErr)
			}
			if tc.wantErr != nil {
				return
			}
			if u != tc.wantUint {
				t.Errorf("TakeUint: got %#x, want %#x", u, tc.wantUint)
			}
			if s != tc.wantSint {
				t.Errorf("TakeSint: got %d, want %d", s, tc.wantSint)
			}
		})
	}
}

func TestCursorTakeUintAdvances(t *testing.T) {
	c := protocol.NewCursor([]byte{0x01, 0x02, 0x03, 0xFF})
	if v, err := c.TakeUint(3); err != nil || v != 0x030201 {
		t.Fatalf("TakeUint(3): got %#x, %v", v, err)
	}
	if c.Remaining() != 1 {
		t.Fatalf("Remaining: got %d, want 1", c.Remaining())
	}
	if v, err := c.TakeSint(1); err != nil || v != -1 {
		t.Errorf("TakeSint(1): got %d, %v", v, err)
	}
	if _, err := c.TakeUint(1); !errors.Is(err, protocol.ErrTruncatedMessage) {
		t.Errorf("expected ErrTruncatedMessage, got %v", err)
	}
}

func TestCheckPixels(t *testing.T) {
	testCases := []struct {
		name    string
		msg     interface{ CheckPixels() error }
		wantErr bool
	}{
		{"image exact", &protocol.Image{Width: 2, Height: 1, Pixels: make([]byte, 8)}, false},
		{"image short", &protocol.Image{Width: 2, Height: 2, Pixels: []byte{1, 2, 3}}, true},
		{"image long", &protocol.Image{Width: 1, Height: 1, Pixels: make([]byte, 5)}, true},
		{"empty image", &protocol.Image{}, false},
		{"layers exact", &protocol.ImageLayers{Layers: []protocol.Layer{{Width: 1, Height: 1, Pixels: make([]byte, 4)}}}, false},
		{"one bad layer", &protocol.ImageLayers{Layers: []protocol.Layer{
			{Width: 1, Height: 1, Pixels: make([]byte, 4)},
			{Width: 2, Height: 1, Name: "ink", Pixels: make([]byte, 4)},
		}}, true},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			err := tc.msg.CheckPixels()
			if tc.wantErr != (err != nil) {
				t.Fatalf("got %v, wantErr %v", err, tc.wantErr)
			}
			if err != nil && !errors.Is(err, protocol.ErrInvalidMessage) {
				t.Errorf("expected ErrInvalidMessage, got %v", err)
			}
		})
	}
}
