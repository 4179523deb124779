package bridge

import (
	"context"
	"errors"
	"fmt"

	"github.com/1ureka/aselink/internal/protocol"
	"github.com/1ureka/aselink/internal/scene"
	"github.com/1ureka/aselink/internal/spritesheet"
	"github.com/1ureka/aselink/internal/util"
)

// findSprite returns the image named name. Unknown names yield nil without
// an error: the host only updates images it already has, so a deleted
// image is never revived by a late message from the editor.
func (b *Bridge) findSprite(ctx context.Context, kind, name string) (*scene.Image, error) {
	img, err := b.store.FindImage(ctx, name)
	if errors.Is(err, scene.ErrNotFound) {
		util.LogDebug("%s for unknown sprite %q skipped", kind, name)
		return nil, nil
	}
	return img, err
}

// ensureImage returns the image named by p, creating a placeholder first
// when it does not exist yet.
func (b *Bridge) ensureImage(ctx context.Context, p scene.Placeholder) (*scene.Image, error) {
	img, err := b.store.FindImage(ctx, p.Name)
	if err == nil {
		return img, nil
	}
	if !errors.Is(err, scene.ErrNotFound) {
		return nil, err
	}
	img, err = b.store.CreatePlaceholder(ctx, p)
	switch {
	case errors.Is(err, scene.ErrExists) && img == nil:
		return b.store.FindImage(ctx, p.Name)
	case err != nil && !errors.Is(err, scene.ErrExists):
		return nil, err
	}
	return img, nil
}

func (b *Bridge) handleImage(ctx context.Context, m *protocol.Image) error {
	if err := m.CheckPixels(); err != nil {
		return err
	}
	img, err := b.findSprite(ctx, "image", m.Name)
	if img == nil {
		return err
	}
	return b.store.ReplacePixels(ctx, m.Name, scene.PixelUpdate{
		Width:  int(m.Width),
		Height: int(m.Height),
		Frame:  int(m.Frame),
		Flags:  m.Flags,
		Pixels: m.Pixels,
	})
}

// handleSpritesheet packs the frames, updates the timeline, stores the atlas
// as the sheet image and shows the current frame in the view image.
//
// Everything is computed before the first write. The writes run timeline,
// sheet, view; a store failure part way leaves the earlier writes in place.
func (b *Bridge) handleSpritesheet(ctx context.Context, m *protocol.Spritesheet) error {
	atlas, err := spritesheet.Pack(int(m.Width), int(m.Height), m.Images)
	if err != nil {
		return err
	}
	current := int(m.CurrentFrame)
	view, err := atlas.Frame(current)
	if err != nil {
		return fmt.Errorf("current frame: %w", err)
	}

	img, err := b.findSprite(ctx, "spritesheet", m.Name)
	if img == nil {
		return err
	}

	tl := scene.NewTimeline(m.Name, m.Start, m.Frames, m.Tags, current, m.CurrentTag)
	tl.Columns, tl.Rows = atlas.Layout.Columns, atlas.Layout.Rows
	flags := img.Flags.Clone()
	if flags == nil {
		flags = protocol.NewSyncFlags()
	}
	flags.Add(protocol.FlagSheet)

	if err := b.store.UpdateTimeline(ctx, tl); err != nil {
		return err
	}

	sheet := scene.SheetName(m.Name)
	if _, err := b.ensureImage(ctx, scene.Placeholder{
		Name:   sheet,
		Source: m.Name,
		Width:  atlas.Width(),
		Height: atlas.Height(),
		Sheet:  true,
	}); err != nil {
		return err
	}
	if err := b.store.ReplacePixels(ctx, sheet, scene.PixelUpdate{
		Width:  atlas.Width(),
		Height: atlas.Height(),
		Flags:  protocol.NewSyncFlags(),
		Pixels: atlas.Pixels,
	}); err != nil {
		return err
	}

	if err := b.store.ReplacePixels(ctx, m.Name, scene.PixelUpdate{
		Width:  int(m.Width),
		Height: int(m.Height),
		Frame:  current,
		Flags:  flags,
		Pixels: view,
	}); err != nil {
		return err
	}

	b.withSession(func(s *Session) { s.cacheAtlas(m.Name, atlas) })
	b.metrics.AtlasPacked()
	util.LogDebug("packed %q into %s", m.Name, atlas.Layout)
	return nil
}

// handleFrame moves the view to another frame. Sprites the host has no
// timeline for are ignored so deleted images are not revived.
func (b *Bridge) handleFrame(ctx context.Context, m *protocol.FrameFlip) error {
	frame := int(m.Frame)
	err := b.store.SetFrame(ctx, m.Name, frame, int(m.Start), m.Frames)
	if errors.Is(err, scene.ErrNotFound) {
		util.LogDebug("frame flip for unknown sprite %q skipped", m.Name)
		return nil
	}
	if err != nil {
		return err
	}

	var atlas *spritesheet.Atlas
	b.withSession(func(s *Session) { atlas, _ = s.atlas(m.Name) })
	if atlas == nil {
		return nil
	}
	view, err := atlas.Frame(frame)
	if err != nil {
		return err
	}
	return b.store.ReplacePixels(ctx, m.Name, scene.PixelUpdate{
		Width:  atlas.Layout.FrameWidth,
		Height: atlas.Layout.FrameHeight,
		Frame:  frame,
		Pixels: view,
	})
}

func (b *Bridge) handleImageLayers(ctx context.Context, m *protocol.ImageLayers) error {
	if err := m.CheckPixels(); err != nil {
		return err
	}
	return b.store.UpdateLayers(ctx, m)
}

func (b *Bridge) handleChangeName(ctx context.Context, m *protocol.ChangeName) error {
	n, err := b.store.Rename(ctx, m.OldName, m.NewName)
	if err != nil {
		return err
	}
	b.withSession(func(s *Session) { s.renameSprite(m.OldName, m.NewName) })
	if n > 0 {
		util.LogInfo("Renamed %d image(s) from %q to %q", n, m.OldName, m.NewName)
	}
	return b.SendTextureList(ctx)
}

// handleNewTexture creates a placeholder keyed by the sprite path when one
// is given, since that is the name the editor syncs it under.
func (b *Bridge) handleNewTexture(ctx context.Context, m *protocol.NewTexture) error {
	name := m.Name
	if m.Path != "" {
		name = m.Path
	}
	_, err := b.store.CreatePlaceholder(ctx, scene.Placeholder{Name: name, Source: m.Path})
	if errors.Is(err, scene.ErrExists) {
		b.report(scene.SeverityWarning, "Texture %q already exists", name)
	} else if err != nil {
		return err
	}
	return b.SendTextureList(ctx)
}

func (b *Bridge) handleActiveSprite(_ context.Context, m *protocol.ActiveSprite) error {
	b.withSession(func(s *Session) { s.setActive(m.Name) })
	return nil
}
