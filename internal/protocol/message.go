// Package protocol defines the tagged binary messages exchanged with the
// pixel editor, together with the cursor and writer used to (de)serialize them.
//
// Every message starts with a one-byte Tag followed by a tag-specific body.
// All integers are little-endian. There is no outer framing: one websocket
// binary message carries exactly one protocol message.
package protocol

import "fmt"

// Tag discriminates message kinds on the wire.
type Tag byte

// Editor -> host.
const (
	TagBatch        Tag = '[' // sequence of nested messages
	TagImage        Tag = 'I' // single image, also used host -> editor
	TagImageLayers  Tag = 'L' // image split into layers
	TagSpritesheet  Tag = 'G' // animation frames to be packed into an atlas
	TagFrame        Tag = 'F' // frame flip without pixel data
	TagChangeName   Tag = 'C' // sprite saved under a new name
	TagNewTexture   Tag = 'O' // editor asks the host to create a texture
	TagActiveSprite Tag = 'A' // editor focus changed
)

// Host -> editor.
const (
	TagTextureList Tag = 'T'
	TagSpriteOpen  Tag = 'E'
	TagSpriteNew   Tag = 'N'
	TagUVMap       Tag = 'M'
	TagSpriteFocus Tag = 'S'
	TagPeek        Tag = 'K'
)

var tagNames = map[Tag]string{
	TagBatch:        "Batch",
	TagImage:        "Image",
	TagImageLayers:  "ImageLayers",
	TagSpritesheet:  "Spritesheet",
	TagFrame:        "Frame",
	TagChangeName:   "ChangeName",
	TagNewTexture:   "NewTexture",
	TagActiveSprite: "ActiveSprite",
	TagTextureList:  "TextureList",
	TagSpriteOpen:   "SpriteOpen",
	TagSpriteNew:    "SpriteNew",
	TagUVMap:        "UVMap",
	TagSpriteFocus:  "SpriteFocus",
	TagPeek:         "Peek",
}

// String returns the message kind name, or the hex value for unknown tags.
func (t Tag) String() string {
	if name, ok := tagNames[t]; ok {
		return name
	}
	return fmt.Sprintf("0x%02x", byte(t))
}

// Known reports whether t is one of the defined message kinds.
func (t Tag) Known() bool {
	_, ok := tagNames[t]
	return ok
}

// Message is implemented by every concrete message type in this package.
type Message interface {
	Tag() Tag
	encode(w *Writer)
}

// ---------------------------------------------------------------------------
// Shared value types
// ---------------------------------------------------------------------------

// FrameDuration is one timeline entry: the frame shown and for how long.
type FrameDuration struct {
	Value      uint16 // frame index (or atlas offset) shown at this step
	DurationMs uint32
}

// Direction is the playback direction of an animation tag.
type Direction uint8

const (
	Forward  Direction = 0
	Reverse  Direction = 1
	PingPong Direction = 2
)

func (d Direction) String() string {
	switch d {
	case Forward:
		return "forward"
	case Reverse:
		return "reverse"
	case PingPong:
		return "pingpong"
	default:
		return fmt.Sprintf("direction(%d)", uint8(d))
	}
}

// AnimTag is a named sub-range of an animation timeline.
type AnimTag struct {
	Name      string
	Start     uint16
	End       uint16
	Direction Direction
}

// Texture is a (name, flags) pair as listed to the editor.
type Texture struct {
	Name  string
	Flags SyncFlags
}

// ColorMode is the pixel format of a sprite created in the editor.
type ColorMode uint8

const (
	ColorRGBA      ColorMode = 0
	ColorGrayscale ColorMode = 1
	ColorIndexed   ColorMode = 2
)

// BlendMode is a layer blend mode, numbered the way the editor numbers them.
type BlendMode uint16

const (
	BlendNormal BlendMode = iota
	BlendMultiply
	BlendScreen
	BlendOverlay
	BlendDarken
	BlendLighten
	BlendColorDodge
	BlendColorBurn
	BlendHardLight
	BlendSoftLight
	BlendDifference
	BlendExclusion
	BlendHue
	BlendSaturation
	BlendColor
	BlendLuminosity
	BlendAddition
	BlendSubtract
	BlendDivide
)

// LayerGroup is a named folder of layers.
type LayerGroup struct {
	Name string
}

// Layer is one raster layer of an ImageLayers message. Pixels are RGBA8 and
// cover only the layer's own bounding box (X, Y, Width, Height).
type Layer struct {
	Index   uint16
	Blend   BlendMode
	Opacity uint16
	Group   uint16
	X, Y    int16
	Width   uint16
	Height  uint16
	Name    string
	Pixels  []byte
}

// ---------------------------------------------------------------------------
// Editor -> host messages
// ---------------------------------------------------------------------------

// Batch carries complete encoded sub-messages, dispatched in order.
type Batch struct {
	Messages [][]byte
}

// Image replaces the pixels of one texture. Pixels are RGBA8, row-major,
// top row first.
type Image struct {
	Width  uint16
	Height uint16
	Frame  uint16
	Flags  SyncFlags
	Name   string
	Pixels []byte
}

// Spritesheet carries every frame of an animation plus its timing and tags.
// Frames and Images always have the same length on the wire.
type Spritesheet struct {
	Width        uint16
	Height       uint16
	Name         string
	Start        int32
	CurrentFrame uint32
	Frames       []FrameDuration
	CurrentTag   string
	Tags         []AnimTag
	Images       [][]byte
}

// FrameFlip changes the displayed frame without resending pixels.
type FrameFlip struct {
	Frame  uint32
	Name   string
	Start  uint16
	Frames []FrameDuration
}

// ChangeName reports that a sprite was saved under a new name.
type ChangeName struct {
	OldName string
	NewName string
}

// NewTexture asks the host to create a texture bound to a sprite.
type NewTexture struct {
	Name string
	Path string
}

// ActiveSprite reports the editor's focused sprite. An empty Name means none.
type ActiveSprite struct {
	Name string
}

// ImageLayers replaces a layered texture.
type ImageLayers struct {
	Width  uint16
	Height uint16
	Name   string
	Flags  SyncFlags
	Groups []LayerGroup
	Layers []Layer
}

// ---------------------------------------------------------------------------
// Host -> editor messages
// ---------------------------------------------------------------------------

// TextureList announces every synced texture of the host session.
type TextureList struct {
	SessionID string
	Textures  []Texture
}

// SpriteOpen asks the editor to open a file.
type SpriteOpen struct {
	Path  string
	Flags SyncFlags
}

// SpriteNew asks the editor to create a blank sprite.
type SpriteNew struct {
	Name   string
	Width  uint16
	Height uint16
	Mode   ColorMode
	Flags  SyncFlags
}

// UVMap pushes a rendered UV wireframe to be shown as a layer.
type UVMap struct {
	Width   uint16
	Height  uint16
	Layer   string
	Opacity uint8
	Pixels  []byte
}

// SpriteFocus asks the editor to bring a sprite to front.
type SpriteFocus struct {
	Name string
}

// Peek asks the editor to reload the listed sprites.
type Peek struct {
	Textures []Texture
}

func (*Batch) Tag() Tag        { return TagBatch }
func (*Image) Tag() Tag        { return TagImage }
func (*Spritesheet) Tag() Tag  { return TagSpritesheet }
func (*FrameFlip) Tag() Tag    { return TagFrame }
func (*ChangeName) Tag() Tag   { return TagChangeName }
func (*NewTexture) Tag() Tag   { return TagNewTexture }
func (*ActiveSprite) Tag() Tag { return TagActiveSprite }
func (*ImageLayers) Tag() Tag  { return TagImageLayers }
func (*TextureList) Tag() Tag  { return TagTextureList }
func (*SpriteOpen) Tag() Tag   { return TagSpriteOpen }
func (*SpriteNew) Tag() Tag    { return TagSpriteNew }
func (*UVMap) Tag() Tag        { return TagUVMap }
func (*SpriteFocus) Tag() Tag  { return TagSpriteFocus }
func (*Peek) Tag() Tag         { return TagPeek }

// CheckPixels reports whether pixels holds exactly width*height RGBA8
// pixels.
func CheckPixels(width, height int, pixels []byte) error {
	if want := width * height * 4; len(pixels) != want {
		return fmt.Errorf("%w: %dx%d image carries %d bytes, want %d",
			ErrInvalidMessage, width, height, len(pixels), want)
	}
	return nil
}

// CheckPixels validates the pixel buffer against the image size.
func (m *Image) CheckPixels() error {
	return CheckPixels(int(m.Width), int(m.Height), m.Pixels)
}

// CheckPixels validates the pixel buffer of every layer.
func (m *ImageLayers) CheckPixels() error {
	for _, l := range m.Layers {
		if err := CheckPixels(int(l.Width), int(l.Height), l.Pixels); err != nil {
			return fmt.Errorf("layer %q: %w", l.Name, err)
		}
	}
	return nil
}
