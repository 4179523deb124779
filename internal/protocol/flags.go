package protocol

import "sort"

// Well-known sync flags.
const (
	FlagSheet  = "SHEET"   // texture is an animated spritesheet
	FlagShowUV = "SHOW_UV" // editor wants the UV map overlay
	FlagLayers = "LAYERS"  // texture is composed from layers
)

// SyncFlags is a set of short flag names. Order is insignificant and
// duplicates collapse. The nil set is a valid empty set for reads.
type SyncFlags map[string]struct{}

// NewSyncFlags builds a set from names.
func NewSyncFlags(names ...string) SyncFlags {
	f := make(SyncFlags, len(names))
	for _, n := range names {
		f[n] = struct{}{}
	}
	return f
}

// Has reports whether name is in the set.
func (f SyncFlags) Has(name string) bool {
	_, ok := f[name]
	return ok
}

// Add inserts name. f must be non-nil.
func (f SyncFlags) Add(name string) {
	f[name] = struct{}{}
}

// Sorted returns the names in lexical order.
func (f SyncFlags) Sorted() []string {
	names := make([]string, 0, len(f))
	for n := range f {
		names = append(names, n)
	}
	sort.Strings(names)
	return names
}

// Clone returns an independent copy (never nil).
func (f SyncFlags) Clone() SyncFlags {
	c := make(SyncFlags, len(f))
	for n := range f {
		c[n] = struct{}{}
	}
	return c
}

// Equal reports whether both sets hold the same names.
func (f SyncFlags) Equal(o SyncFlags) bool {
	if len(f) != len(o) {
		return false
	}
	for n := range f {
		if !o.Has(n) {
			return false
		}
	}
	return true
}
