package protocol

import "fmt"

// Minimum encoded size of repeated elements, used to bound collection counts.
const (
	minFrameSize   = 6  // uint16 + uint32
	minTagSize     = 7  // str + uint16 + uint16 + uint8
	minDataSize    = 4  // uint32 length prefix
	minTextureSize = 3  // str + uint8 flag count
	minGroupSize   = 2  // str
	minLayerSize   = 22 // 8 x uint16 + str + data
)

// Encode serializes a message: its tag byte followed by the body fields in
// wire order.
func Encode(m Message) ([]byte, error) {
	w := NewWriterSize(encodedSizeHint(m))
	w.PutUint8(byte(m.Tag()))
	m.encode(w)
	if err := w.Err(); err != nil {
		return nil, fmt.Errorf("encode %s: %w", m.Tag(), err)
	}
	return w.Bytes(), nil
}

// EncodeBatch encodes every message and wraps the results in a Batch.
func EncodeBatch(msgs ...Message) ([]byte, error) {
	b := &Batch{Messages: make([][]byte, 0, len(msgs))}
	for _, m := range msgs {
		data, err := Encode(m)
		if err != nil {
			return nil, err
		}
		b.Messages = append(b.Messages, data)
	}
	return Encode(b)
}

// PeekTag returns the tag of an encoded message without consuming it.
func PeekTag(data []byte) (Tag, error) {
	if len(data) == 0 {
		return 0, fmt.Errorf("%w: empty message", ErrTruncatedMessage)
	}
	return Tag(data[0]), nil
}

// Decode parses a complete message. Bytes after the body are ignored.
func Decode(data []byte) (Message, error) {
	c := NewCursor(data)
	t, err := c.TakeUint8()
	if err != nil {
		return nil, err
	}
	return DecodeBody(Tag(t), c)
}

// DecodeBody parses the body of a message whose tag was already consumed.
func DecodeBody(t Tag, c *Cursor) (Message, error) {
	var (
		m   Message
		err error
	)
	switch t {
	case TagBatch:
		m, err = decodeBatch(c)
	case TagImage:
		m, err = decodeImage(c)
	case TagSpritesheet:
		m, err = decodeSpritesheet(c)
	case TagFrame:
		m, err = decodeFrameFlip(c)
	case TagChangeName:
		m, err = decodeChangeName(c)
	case TagNewTexture:
		m, err = decodeNewTexture(c)
	case TagActiveSprite:
		m, err = decodeActiveSprite(c)
	case TagImageLayers:
		m, err = decodeImageLayers(c)
	case TagTextureList:
		m, err = decodeTextureList(c)
	case TagSpriteOpen:
		m, err = decodeSpriteOpen(c)
	case TagSpriteNew:
		m, err = decodeSpriteNew(c)
	case TagUVMap:
		m, err = decodeUVMap(c)
	case TagSpriteFocus:
		m, err = decodeSpriteFocus(c)
	case TagPeek:
		m, err = decodePeek(c)
	default:
		return nil, UnknownTagError(t)
	}
	if err != nil {
		return nil, fmt.Errorf("decode %s: %w", t, err)
	}
	return m, nil
}

func encodedSizeHint(m Message) int {
	switch msg := m.(type) {
	case *Image:
		return 64 + len(msg.Pixels)
	case *UVMap:
		return 64 + len(msg.Pixels)
	case *Spritesheet:
		n := 128 + 6*len(msg.Frames)
		for _, img := range msg.Images {
			n += 4 + len(img)
		}
		return n
	case *Batch:
		n := 3
		for _, sub := range msg.Messages {
			n += 4 + len(sub)
		}
		return n
	default:
		return 64
	}
}

// ---------------------------------------------------------------------------
// Encoding
// ---------------------------------------------------------------------------

func (m *Batch) encode(w *Writer) {
	w.putCount(len(m.Messages), 2)
	for _, sub := range m.Messages {
		w.PutData(sub)
	}
}

func (m *Image) encode(w *Writer) {
	w.PutUint16(m.Width)
	w.PutUint16(m.Height)
	w.PutUint16(m.Frame)
	w.PutSyncFlags(m.Flags)
	w.PutStr(m.Name)
	w.PutData(m.Pixels)
}

func (m *Spritesheet) encode(w *Writer) {
	if len(m.Frames) != len(m.Images) {
		if w.err == nil {
			w.err = fmt.Errorf("%w: %d frames but %d images", ErrInvalidMessage, len(m.Frames), len(m.Images))
		}
		return
	}
	w.PutUint16(m.Width)
	w.PutUint16(m.Height)
	w.PutStr(m.Name)
	w.PutInt32(m.Start)
	w.putCount(len(m.Frames), 4)
	w.PutUint32(m.CurrentFrame)
	for _, f := range m.Frames {
		w.PutFrame(f)
	}
	w.putCount(len(m.Tags), 4)
	w.PutStr(m.CurrentTag)
	for _, t := range m.Tags {
		w.PutTag(t)
	}
	for _, img := range m.Images {
		w.PutData(img)
	}
}

func (m *FrameFlip) encode(w *Writer) {
	w.PutUint32(m.Frame)
	w.PutStr(m.Name)
	w.PutUint16(m.Start)
	w.putCount(len(m.Frames), 4)
	for _, f := range m.Frames {
		w.PutFrame(f)
	}
}

func (m *ChangeName) encode(w *Writer) {
	w.PutStr(m.OldName)
	w.PutStr(m.NewName)
}

func (m *NewTexture) encode(w *Writer) {
	w.PutStr(m.Name)
	w.PutStr(m.Path)
}

func (m *ActiveSprite) encode(w *Writer) {
	w.PutStr(m.Name)
}

func (m *ImageLayers) encode(w *Writer) {
	w.PutUint16(m.Width)
	w.PutUint16(m.Height)
	w.PutStr(m.Name)
	w.PutSyncFlags(m.Flags)
	w.putCount(len(m.Groups), 4)
	w.putCount(len(m.Layers), 4)
	for _, g := range m.Groups {
		w.PutStr(g.Name)
	}
	for _, l := range m.Layers {
		w.PutUint16(l.Index)
		w.PutUint16(uint16(l.Blend))
		w.PutUint16(l.Opacity)
		w.PutUint16(l.Group)
		w.PutInt16(l.X)
		w.PutInt16(l.Y)
		w.PutUint16(l.Width)
		w.PutUint16(l.Height)
		w.PutStr(l.Name)
		w.PutData(l.Pixels)
	}
}

func (m *TextureList) encode(w *Writer) {
	w.PutStr(m.SessionID)
	putTextures(w, m.Textures)
}

func (m *SpriteOpen) encode(w *Writer) {
	w.PutStr(m.Path)
	w.PutSyncFlags(m.Flags)
}

func (m *SpriteNew) encode(w *Writer) {
	w.PutStr(m.Name)
	w.PutUint16(m.Width)
	w.PutUint16(m.Height)
	w.PutUint8(uint8(m.Mode))
	w.PutSyncFlags(m.Flags)
}

func (m *UVMap) encode(w *Writer) {
	w.PutUint16(m.Width)
	w.PutUint16(m.Height)
	w.PutStr(m.Layer)
	w.PutUint8(m.Opacity)
	w.PutData(m.Pixels)
}

func (m *SpriteFocus) encode(w *Writer) {
	w.PutStr(m.Name)
}

func (m *Peek) encode(w *Writer) {
	putTextures(w, m.Textures)
}

func putTextures(w *Writer, textures []Texture) {
	w.putCount(len(textures), 2)
	for _, t := range textures {
		w.PutStr(t.Name)
		w.PutSyncFlags(t.Flags)
	}
}

// ---------------------------------------------------------------------------
// Decoding
// ---------------------------------------------------------------------------

func decodeBatch(c *Cursor) (*Batch, error) {
	count, err := c.TakeUint16()
	if err != nil {
		return nil, err
	}
	n, err := c.checkCount(uint64(count), minDataSize)
	if err != nil {
		return nil, err
	}
	m := &Batch{Messages: make([][]byte, 0, n)}
	for i := 0; i < n; i++ {
		sub, err := c.TakeData()
		if err != nil {
			return nil, err
		}
		m.Messages = append(m.Messages, sub)
	}
	return m, nil
}

func decodeImage(c *Cursor) (*Image, error) {
	m := &Image{}
	var err error
	if m.Width, err = c.TakeUint16(); err != nil {
		return nil, err
	}
	if m.Height, err = c.TakeUint16(); err != nil {
		return nil, err
	}
	if m.Frame, err = c.TakeUint16(); err != nil {
		return nil, err
	}
	if m.Flags, err = c.TakeSyncFlags(); err != nil {
		return nil, err
	}
	if m.Name, err = c.TakeStr(); err != nil {
		return nil, err
	}
	if m.Pixels, err = c.TakeData(); err != nil {
		return nil, err
	}
	return m, nil
}

func decodeSpritesheet(c *Cursor) (*Spritesheet, error) {
	m := &Spritesheet{}
	var err error
	if m.Width, err = c.TakeUint16(); err != nil {
		return nil, err
	}
	if m.Height, err = c.TakeUint16(); err != nil {
		return nil, err
	}
	if m.Name, err = c.TakeStr(); err != nil {
		return nil, err
	}
	if m.Start, err = c.TakeInt32(); err != nil {
		return nil, err
	}
	length, err := c.TakeUint32()
	if err != nil {
		return nil, err
	}
	if m.CurrentFrame, err = c.TakeUint32(); err != nil {
		return nil, err
	}
	// Each frame contributes a timeline entry and a pixel blob.
	n, err := c.checkCount(uint64(length), minFrameSize+minDataSize)
	if err != nil {
		return nil, err
	}
	m.Frames = make([]FrameDuration, n)
	for i := range m.Frames {
		if m.Frames[i], err = c.TakeFrame(); err != nil {
			return nil, err
		}
	}
	tagCount, err := c.TakeUint32()
	if err != nil {
		return nil, err
	}
	if m.CurrentTag, err = c.TakeStr(); err != nil {
		return nil, err
	}
	nt, err := c.checkCount(uint64(tagCount), minTagSize)
	if err != nil {
		return nil, err
	}
	m.Tags = make([]AnimTag, nt)
	for i := range m.Tags {
		if m.Tags[i], err = c.TakeTag(); err != nil {
			return nil, err
		}
	}
	m.Images = make([][]byte, n)
	for i := range m.Images {
		if m.Images[i], err = c.TakeData(); err != nil {
			return nil, err
		}
	}
	return m, nil
}

func decodeFrameFlip(c *Cursor) (*FrameFlip, error) {
	m := &FrameFlip{}
	var err error
	if m.Frame, err = c.TakeUint32(); err != nil {
		return nil, err
	}
	if m.Name, err = c.TakeStr(); err != nil {
		return nil, err
	}
	if m.Start, err = c.TakeUint16(); err != nil {
		return nil, err
	}
	count, err := c.TakeUint32()
	if err != nil {
		return nil, err
	}
	n, err := c.checkCount(uint64(count), minFrameSize)
	if err != nil {
		return nil, err
	}
	m.Frames = make([]FrameDuration, n)
	for i := range m.Frames {
		if m.Frames[i], err = c.TakeFrame(); err != nil {
			return nil, err
		}
	}
	return m, nil
}

func decodeChangeName(c *Cursor) (*ChangeName, error) {
	oldName, err := c.TakeStr()
	if err != nil {
		return nil, err
	}
	newName, err := c.TakeStr()
	if err != nil {
		return nil, err
	}
	return &ChangeName{OldName: oldName, NewName: newName}, nil
}

func decodeNewTexture(c *Cursor) (*NewTexture, error) {
	name, err := c.TakeStr()
	if err != nil {
		return nil, err
	}
	path, err := c.TakeStr()
	if err != nil {
		return nil, err
	}
	return &NewTexture{Name: name, Path: path}, nil
}

func decodeActiveSprite(c *Cursor) (*ActiveSprite, error) {
	name, err := c.TakeStr()
	if err != nil {
		return nil, err
	}
	return &ActiveSprite{Name: name}, nil
}

func decodeImageLayers(c *Cursor) (*ImageLayers, error) {
	m := &ImageLayers{}
	var err error
	if m.Width, err = c.TakeUint16(); err != nil {
		return nil, err
	}
	if m.Height, err = c.TakeUint16(); err != nil {
		return nil, err
	}
	if m.Name, err = c.TakeStr(); err != nil {
		return nil, err
	}
	if m.Flags, err = c.TakeSyncFlags(); err != nil {
		return nil, err
	}
	groupCount, err := c.TakeUint32()
	if err != nil {
		return nil, err
	}
	layerCount, err := c.TakeUint32()
	if err != nil {
		return nil, err
	}
	ng, err := c.checkCount(uint64(groupCount), minGroupSize)
	if err != nil {
		return nil, err
	}
	m.Groups = make([]LayerGroup, ng)
	for i := range m.Groups {
		if m.Groups[i].Name, err = c.TakeStr(); err != nil {
			return nil, err
		}
	}
	nl, err := c.checkCount(uint64(layerCount), minLayerSize)
	if err != nil {
		return nil, err
	}
	m.Layers = make([]Layer, nl)
	for i := range m.Layers {
		if m.Layers[i], err = takeLayer(c); err != nil {
			return nil, err
		}
	}
	return m, nil
}

func takeLayer(c *Cursor) (Layer, error) {
	var l Layer
	var err error
	if l.Index, err = c.TakeUint16(); err != nil {
		return l, err
	}
	blend, err := c.TakeUint16()
	if err != nil {
		return l, err
	}
	l.Blend = BlendMode(blend)
	if l.Opacity, err = c.TakeUint16(); err != nil {
		return l, err
	}
	if l.Group, err = c.TakeUint16(); err != nil {
		return l, err
	}
	if l.X, err = c.TakeInt16(); err != nil {
		return l, err
	}
	if l.Y, err = c.TakeInt16(); err != nil {
		return l, err
	}
	if l.Width, err = c.TakeUint16(); err != nil {
		return l, err
	}
	if l.Height, err = c.TakeUint16(); err != nil {
		return l, err
	}
	if l.Name, err = c.TakeStr(); err != nil {
		return l, err
	}
	if l.Pixels, err = c.TakeData(); err != nil {
		return l, err
	}
	return l, nil
}

func decodeTextureList(c *Cursor) (*TextureList, error) {
	id, err := c.TakeStr()
	if err != nil {
		return nil, err
	}
	textures, err := takeTextures(c)
	if err != nil {
		return nil, err
	}
	return &TextureList{SessionID: id, Textures: textures}, nil
}

func decodeSpriteOpen(c *Cursor) (*SpriteOpen, error) {
	path, err := c.TakeStr()
	if err != nil {
		return nil, err
	}
	flags, err := c.TakeSyncFlags()
	if err != nil {
		return nil, err
	}
	return &SpriteOpen{Path: path, Flags: flags}, nil
}

func decodeSpriteNew(c *Cursor) (*SpriteNew, error) {
	m := &SpriteNew{}
	var err error
	if m.Name, err = c.TakeStr(); err != nil {
		return nil, err
	}
	if m.Width, err = c.TakeUint16(); err != nil {
		return nil, err
	}
	if m.Height, err = c.TakeUint16(); err != nil {
		return nil, err
	}
	mode, err := c.TakeUint8()
	if err != nil {
		return nil, err
	}
	m.Mode = ColorMode(mode)
	if m.Flags, err = c.TakeSyncFlags(); err != nil {
		return nil, err
	}
	return m, nil
}

func decodeUVMap(c *Cursor) (*UVMap, error) {
	m := &UVMap{}
	var err error
	if m.Width, err = c.TakeUint16(); err != nil {
		return nil, err
	}
	if m.Height, err = c.TakeUint16(); err != nil {
		return nil, err
	}
	if m.Layer, err = c.TakeStr(); err != nil {
		return nil, err
	}
	if m.Opacity, err = c.TakeUint8(); err != nil {
		return nil, err
	}
	if m.Pixels, err = c.TakeData(); err != nil {
		return nil, err
	}
	return m, nil
}

func decodeSpriteFocus(c *Cursor) (*SpriteFocus, error) {
	name, err := c.TakeStr()
	if err != nil {
		return nil, err
	}
	return &SpriteFocus{Name: name}, nil
}

func decodePeek(c *Cursor) (*Peek, error) {
	textures, err := takeTextures(c)
	if err != nil {
		return nil, err
	}
	return &Peek{Textures: textures}, nil
}

func takeTextures(c *Cursor) ([]Texture, error) {
	count, err := c.TakeUint16()
	if err != nil {
		return nil, err
	}
	n, err := c.checkCount(uint64(count), minTextureSize)
	if err != nil {
		return nil, err
	}
	textures := make([]Texture, n)
	for i := range textures {
		if textures[i].Name, err = c.TakeStr(); err != nil {
			return nil, err
		}
		if textures[i].Flags, err = c.TakeSyncFlags(); err != nil {
			return nil, err
		}
	}
	return textures, nil
}
