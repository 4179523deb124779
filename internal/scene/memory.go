package scene

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"sync"

	"github.com/1ureka/aselink/internal/protocol"
)

// Memory is an in-process Store. Returned images are copies.
type Memory struct {
	mu        sync.Mutex
	images    map[string]*Image
	timelines map[string]*Timeline
	layers    map[string]*protocol.ImageLayers
}

// NewMemory creates an empty store.
func NewMemory() *Memory {
	return &Memory{
		images:    make(map[string]*Image),
		timelines: make(map[string]*Timeline),
		layers:    make(map[string]*protocol.ImageLayers),
	}
}

func cloneImage(img *Image) *Image {
	c := *img
	c.Flags = img.Flags.Clone()
	if img.Pixels != nil {
		c.Pixels = append([]byte(nil), img.Pixels...)
	}
	return &c
}

func (m *Memory) ListImages(_ context.Context) ([]Image, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]Image, 0, len(m.images))
	for _, img := range m.images {
		out = append(out, *cloneImage(img))
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out, nil
}

func (m *Memory) FindImage(_ context.Context, name string) (*Image, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	img, ok := m.images[name]
	if !ok {
		return nil, fmt.Errorf("%w: image %q", ErrNotFound, name)
	}
	return cloneImage(img), nil
}

func (m *Memory) ReplacePixels(_ context.Context, name string, u PixelUpdate) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	img, ok := m.images[name]
	if !ok {
		return fmt.Errorf("%w: image %q", ErrNotFound, name)
	}
	img.Width, img.Height, img.Frame = u.Width, u.Height, u.Frame
	if u.Flags != nil {
		img.Flags = u.Flags.Clone()
	}
	img.Pixels = append(img.Pixels[:0:0], u.Pixels...)
	return nil
}

func (m *Memory) CreatePlaceholder(_ context.Context, p Placeholder) (*Image, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if img, ok := m.images[p.Name]; ok {
		return cloneImage(img), fmt.Errorf("%w: image %q", ErrExists, p.Name)
	}
	img := &Image{
		Name:   p.Name,
		Source: p.Source,
		Width:  p.Width,
		Height: p.Height,
		Flags:  p.Flags.Clone(),
		Sheet:  p.Sheet,
	}
	m.images[p.Name] = img
	return cloneImage(img), nil
}

func (m *Memory) Rename(_ context.Context, oldName, newName string) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if oldName == newName {
		return 0, nil
	}
	for _, pair := range renamePairs(oldName, newName) {
		_, hasOld := m.images[pair[0]]
		_, hasNew := m.images[pair[1]]
		if hasOld && hasNew {
			return 0, fmt.Errorf("%w: image %q", ErrExists, pair[1])
		}
	}
	if _, ok := m.timelines[oldName]; ok {
		if _, ok := m.timelines[newName]; ok {
			return 0, fmt.Errorf("%w: timeline %q", ErrExists, newName)
		}
	}

	changed := 0
	moved := make(map[string]*Image)
	for key, img := range m.images {
		renamed := false
		if img.Source == oldName {
			img.Source = newName
			renamed = true
		}
		switch {
		case img.Name == oldName:
			img.Name = newName
		case img.Name == SheetName(oldName):
			img.Name = SheetName(newName)
		case !renamed:
			continue
		}
		changed++
		if key != img.Name {
			delete(m.images, key)
			moved[img.Name] = img
		}
	}
	for name, img := range moved {
		m.images[name] = img
	}
	if tl, ok := m.timelines[oldName]; ok {
		delete(m.timelines, oldName)
		tl.Sprite = newName
		m.timelines[newName] = tl
	}
	return changed, nil
}

func (m *Memory) UpdateTimeline(_ context.Context, tl Timeline) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	c := tl
	c.Frames = append([]protocol.FrameDuration(nil), tl.Frames...)
	c.Tags = append([]protocol.AnimTag(nil), tl.Tags...)
	m.timelines[tl.Sprite] = &c
	return nil
}

func (m *Memory) SetFrame(_ context.Context, sprite string, frame int, start int, frames []protocol.FrameDuration) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	tl, ok := m.timelines[sprite]
	if !ok {
		return fmt.Errorf("%w: timeline %q", ErrNotFound, sprite)
	}
	tl.CurrentFrame = frame
	tl.Start = int32(start)
	if len(frames) > 0 {
		tl.Frames = append(tl.Frames[:0:0], frames...)
	}
	for i := range tl.Tags {
		if tl.Tags[i].Name == ViewTag {
			tl.Tags[i].Start, tl.Tags[i].End = uint16(frame), uint16(frame)
		}
	}
	return nil
}

// Timeline returns a copy of sprite's timeline.
func (m *Memory) Timeline(sprite string) (Timeline, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	tl, ok := m.timelines[sprite]
	if !ok {
		return Timeline{}, false
	}
	c := *tl
	c.Frames = append([]protocol.FrameDuration(nil), tl.Frames...)
	c.Tags = append([]protocol.AnimTag(nil), tl.Tags...)
	return c, true
}

func (m *Memory) UpdateLayers(_ context.Context, stack *protocol.ImageLayers) error {
	if stack == nil || strings.TrimSpace(stack.Name) == "" {
		return fmt.Errorf("%w: layer stack without a name", protocol.ErrInvalidMessage)
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.layers[stack.Name] = stack
	return nil
}

// Layers returns the last layer stack stored for name.
func (m *Memory) Layers(name string) (*protocol.ImageLayers, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	s, ok := m.layers[name]
	return s, ok
}
