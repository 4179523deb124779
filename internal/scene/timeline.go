package scene

import "github.com/1ureka/aselink/internal/protocol"

// Reserved tag names added to every timeline.
const (
	LoopTag = "__loop__" // the part of the timeline the editor is playing
	ViewTag = "__view__" // just the current frame
)

// Timeline is one sprite's animation as sent by the editor.
type Timeline struct {
	Sprite       string
	Start        int32 // first frame number in the host's timeline
	CurrentFrame int
	Frames       []protocol.FrameDuration
	Tags         []protocol.AnimTag // editor tags followed by LoopTag and ViewTag
	Columns      int                // atlas grid
	Rows         int
}

// NewTimeline builds a timeline and appends the loop and view tags. The loop
// tag copies currentTag when it names one of tags and covers the whole
// timeline otherwise.
func NewTimeline(sprite string, start int32, frames []protocol.FrameDuration, tags []protocol.AnimTag, currentFrame int, currentTag string) Timeline {
	last := 0
	if len(frames) > 0 {
		last = len(frames) - 1
	}
	loop := protocol.AnimTag{Name: LoopTag, Start: 0, End: uint16(last), Direction: protocol.Forward}
	if currentTag != "" {
		for _, t := range tags {
			if t.Name == currentTag {
				loop = t
				loop.Name = LoopTag
				break
			}
		}
	}
	view := protocol.AnimTag{Name: ViewTag, Start: uint16(currentFrame), End: uint16(currentFrame)}

	all := make([]protocol.AnimTag, 0, len(tags)+2)
	all = append(all, tags...)
	all = append(all, loop, view)

	return Timeline{
		Sprite:       sprite,
		Start:        start,
		CurrentFrame: currentFrame,
		Frames:       frames,
		Tags:         all,
	}
}

// Tag returns the tag with the given name.
func (tl Timeline) Tag(name string) (protocol.AnimTag, bool) {
	for _, t := range tl.Tags {
		if t.Name == name {
			return t, true
		}
	}
	return protocol.AnimTag{}, false
}

// Keys expands tag into the keyframe sequence to play, honoring its
// direction. The last entry is repeated so its duration stays inside the
// action. Out of range bounds are clamped.
func (tl Timeline) Keys(tag protocol.AnimTag) []protocol.FrameDuration {
	return ExpandTag(tl.Frames, tag)
}

// ExpandTag is Timeline.Keys over an arbitrary frame list.
func ExpandTag(frames []protocol.FrameDuration, tag protocol.AnimTag) []protocol.FrameDuration {
	if len(frames) == 0 {
		return nil
	}
	first, last := int(tag.Start), int(tag.End)
	if last >= len(frames) {
		last = len(frames) - 1
	}
	if first > last {
		return nil
	}

	span := frames[first : last+1]
	keys := make([]protocol.FrameDuration, 0, 2*len(span)+1)
	switch tag.Direction {
	case protocol.Reverse:
		for i := len(span) - 1; i >= 0; i-- {
			keys = append(keys, span[i])
		}
	case protocol.PingPong:
		keys = append(keys, span...)
		for i := len(span) - 2; i > 0; i-- {
			keys = append(keys, span[i])
		}
	default:
		keys = append(keys, span...)
	}
	return append(keys, keys[len(keys)-1])
}
