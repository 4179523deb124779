package bridge

import "github.com/1ureka/aselink/internal/spritesheet"

// Session is the state of one editor connection. A fresh Session is created
// on every connect and dropped on disconnect.
type Session struct {
	ID           string
	Connected    bool
	ActiveSprite *string // nil when the editor has no sprite focused

	atlases map[string]*spritesheet.Atlas // last packed atlas per sprite
}

func newSession(id string) *Session {
	return &Session{
		ID:        id,
		Connected: true,
		atlases:   make(map[string]*spritesheet.Atlas),
	}
}

// snapshot copies the exported fields.
func (s *Session) snapshot() Session {
	c := Session{ID: s.ID, Connected: s.Connected}
	if s.ActiveSprite != nil {
		name := *s.ActiveSprite
		c.ActiveSprite = &name
	}
	return c
}

func (s *Session) setActive(name string) {
	if name == "" {
		s.ActiveSprite = nil
		return
	}
	s.ActiveSprite = &name
}

func (s *Session) atlas(sprite string) (*spritesheet.Atlas, bool) {
	a, ok := s.atlases[sprite]
	return a, ok
}

func (s *Session) cacheAtlas(sprite string, a *spritesheet.Atlas) {
	s.atlases[sprite] = a
}

func (s *Session) renameSprite(oldName, newName string) {
	if a, ok := s.atlases[oldName]; ok {
		delete(s.atlases, oldName)
		s.atlases[newName] = a
	}
	if s.ActiveSprite != nil && *s.ActiveSprite == oldName {
		s.setActive(newName)
	}
}
