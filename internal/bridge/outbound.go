package bridge

import (
	"context"

	"github.com/1ureka/aselink/internal/protocol"
	"github.com/1ureka/aselink/internal/transport"
)

// Host -> editor helpers. Each returns transport.ErrNotConnected when no
// editor is attached.

func (b *Bridge) send(msg protocol.Message) error {
	if !b.transport.Connected() {
		return transport.ErrNotConnected
	}
	return b.transport.Send(msg)
}

// SendTextureList announces every synced texture. Atlas images are not
// listed; the editor only knows the sprites they belong to.
func (b *Bridge) SendTextureList(ctx context.Context) error {
	images, err := b.store.ListImages(ctx)
	if err != nil {
		return err
	}
	msg := &protocol.TextureList{SessionID: b.id}
	for _, img := range images {
		if img.Sheet {
			continue
		}
		msg.Textures = append(msg.Textures, protocol.Texture{Name: img.Name, Flags: img.Flags})
	}
	return b.send(msg)
}

// OpenSprite asks the editor to open the file at path.
func (b *Bridge) OpenSprite(path string, flags protocol.SyncFlags) error {
	return b.send(&protocol.SpriteOpen{Path: path, Flags: flags})
}

// NewSprite asks the editor to create a blank sprite.
func (b *Bridge) NewSprite(name string, width, height int, mode protocol.ColorMode, flags protocol.SyncFlags) error {
	return b.send(&protocol.SpriteNew{
		Name:   name,
		Width:  uint16(width),
		Height: uint16(height),
		Mode:   mode,
		Flags:  flags,
	})
}

// PushImage sends the stored pixels of image name to the editor.
func (b *Bridge) PushImage(ctx context.Context, name string) error {
	img, err := b.store.FindImage(ctx, name)
	if err != nil {
		return err
	}
	return b.send(&protocol.Image{
		Width:  uint16(img.Width),
		Height: uint16(img.Height),
		Frame:  uint16(img.Frame),
		Flags:  img.Flags,
		Name:   img.Name,
		Pixels: img.Pixels,
	})
}

// PushUVMap sends a rendered UV wireframe to show as layer on top of the
// sprite. Pixels are RGBA8.
func (b *Bridge) PushUVMap(width, height int, layer string, opacity uint8, pixels []byte) error {
	return b.send(&protocol.UVMap{
		Width:   uint16(width),
		Height:  uint16(height),
		Layer:   layer,
		Opacity: opacity,
		Pixels:  pixels,
	})
}

// FocusSprite brings a sprite to front in the editor.
func (b *Bridge) FocusSprite(name string) error {
	return b.send(&protocol.SpriteFocus{Name: name})
}

// Peek asks the editor to reload the named images.
func (b *Bridge) Peek(ctx context.Context, names ...string) error {
	msg := &protocol.Peek{}
	for _, name := range names {
		img, err := b.store.FindImage(ctx, name)
		if err != nil {
			return err
		}
		msg.Textures = append(msg.Textures, protocol.Texture{Name: img.Name, Flags: img.Flags})
	}
	return b.send(msg)
}

// SendBatch sends msgs as one batch message, applied by the editor in order.
func (b *Bridge) SendBatch(msgs ...protocol.Message) error {
	if !b.transport.Connected() {
		return transport.ErrNotConnected
	}
	data, err := protocol.EncodeBatch(msgs...)
	if err != nil {
		return err
	}
	b.transport.SendRaw(data)
	return nil
}
