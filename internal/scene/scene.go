// Package scene defines the host-side collaborators the link writes into:
// images, animation timelines, layer stacks and the user notifier.
//
// The real host (a 3D tool) implements these interfaces against its own data
// model. Memory and SQLiteStore are self-contained implementations used by
// the standalone server and by tests.
package scene

import (
	"context"
	"errors"
	"fmt"

	"github.com/1ureka/aselink/internal/protocol"
)

var (
	ErrNotFound = errors.New("scene: not found")
	ErrExists   = errors.New("scene: already exists")
)

// SheetSuffix is appended to a sprite name to name its atlas image.
const SheetSuffix = " *Sheet*"

// SheetName returns the atlas image name for sprite.
func SheetName(sprite string) string {
	return sprite + SheetSuffix
}

// renamePairs lists the image names a rename moves, as old/new pairs.
func renamePairs(oldName, newName string) [][2]string {
	return [][2]string{
		{oldName, newName},
		{SheetName(oldName), SheetName(newName)},
	}
}

// Image is one texture known to the host.
type Image struct {
	Name   string // name the editor syncs against
	Source string // sprite file path in the editor, may be empty
	Width  int
	Height int
	Frame  int
	Flags  protocol.SyncFlags
	Sheet  bool   // atlas of another image
	Pixels []byte // RGBA8, may be nil for placeholders
}

// PixelUpdate replaces an image's content.
type PixelUpdate struct {
	Width  int
	Height int
	Frame  int
	Flags  protocol.SyncFlags
	Pixels []byte
}

// Placeholder describes an image to create before any pixels arrive.
type Placeholder struct {
	Name   string
	Source string
	Width  int
	Height int
	Flags  protocol.SyncFlags
	Sheet  bool
}

// ImageStore holds textures.
type ImageStore interface {
	// ListImages returns every image sorted by name.
	ListImages(ctx context.Context) ([]Image, error)
	// FindImage returns ErrNotFound when no image has that name.
	FindImage(ctx context.Context, name string) (*Image, error)
	// ReplacePixels returns ErrNotFound when no image has that name.
	ReplacePixels(ctx context.Context, name string, u PixelUpdate) error
	// CreatePlaceholder returns ErrExists, and the existing image, when the
	// name is taken.
	CreatePlaceholder(ctx context.Context, p Placeholder) (*Image, error)
	// Rename moves every image named or sourced from oldName to newName,
	// including its atlas image, and reports how many images changed.
	// It returns ErrExists, changing nothing, when a renamed image or
	// timeline would replace an existing one.
	Rename(ctx context.Context, oldName, newName string) (int, error)
}

// ActionStore holds animation timelines.
type ActionStore interface {
	UpdateTimeline(ctx context.Context, tl Timeline) error
	// SetFrame returns ErrNotFound when sprite has no timeline.
	SetFrame(ctx context.Context, sprite string, frame int, start int, frames []protocol.FrameDuration) error
}

// LayerStore receives layered images.
type LayerStore interface {
	UpdateLayers(ctx context.Context, stack *protocol.ImageLayers) error
}

// Store bundles every data collaborator.
type Store interface {
	ImageStore
	ActionStore
	LayerStore
}

// Severity classifies notifier reports.
type Severity int

const (
	SeverityDebug Severity = iota
	SeverityInfo
	SeverityWarning
	SeverityError
)

func (s Severity) String() string {
	switch s {
	case SeverityDebug:
		return "debug"
	case SeverityInfo:
		return "info"
	case SeverityWarning:
		return "warning"
	case SeverityError:
		return "error"
	default:
		return fmt.Sprintf("severity(%d)", int(s))
	}
}

// Notifier surfaces single-line messages to the user.
type Notifier interface {
	Report(severity Severity, message string)
}
