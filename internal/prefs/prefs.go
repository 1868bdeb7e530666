package prefs

import "sync"

// Preference keys used by the bridge. Embedder stores may persist them
// under any scheme as long as reads round-trip.
const (
	KeyBounds      = "inspector.bounds"
	KeyZoom        = "inspector.zoom"
	KeyPreferences = "inspector.preferences"
)

// Rect is a screen rectangle in device-independent pixels.
type Rect struct {
	X      int `json:"x"`
	Y      int `json:"y"`
	Width  int `json:"width"`
	Height int `json:"height"`
}

// DefaultBounds is the rectangle used when the store holds none.
func DefaultBounds() Rect {
	return Rect{X: 0, Y: 0, Width: 800, Height: 600}
}

// Store is the embedder-provided preference store: inspector window
// bounds, zoom level, and an arbitrary string preference dictionary.
// The bridge holds nothing beyond in-memory session state itself.
type Store interface {
	Bounds() Rect
	SetBounds(bounds Rect)

	ZoomLevel() float64
	SetZoomLevel(level float64)

	Preferences() map[string]string
	SetPreference(name, value string)
	RemovePreference(name string)
	ClearPreferences()
}

// MemStore is an in-memory Store for embedders without persistence and
// for tests.
type MemStore struct {
	mu     sync.RWMutex
	bounds Rect
	zoom   float64
	prefs  map[string]string
}

// NewMemStore creates a MemStore with default bounds and zero zoom.
func NewMemStore() *MemStore {
	return &MemStore{
		bounds: DefaultBounds(),
		prefs:  make(map[string]string),
	}
}

// Bounds returns the stored bounds rectangle.
func (s *MemStore) Bounds() Rect {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.bounds
}

// SetBounds stores the bounds rectangle.
func (s *MemStore) SetBounds(bounds Rect) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.bounds = bounds
}

// ZoomLevel returns the stored zoom level.
func (s *MemStore) ZoomLevel() float64 {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.zoom
}

// SetZoomLevel stores the zoom level.
func (s *MemStore) SetZoomLevel(level float64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.zoom = level
}

// Preferences returns a copy of the preference dictionary.
func (s *MemStore) Preferences() map[string]string {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make(map[string]string, len(s.prefs))
	for k, v := range s.prefs {
		out[k] = v
	}
	return out
}

// SetPreference stores one preference.
func (s *MemStore) SetPreference(name, value string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.prefs[name] = value
}

// RemovePreference removes one preference.
func (s *MemStore) RemovePreference(name string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.prefs, name)
}

// ClearPreferences removes every preference.
func (s *MemStore) ClearPreferences() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.prefs = make(map[string]string)
}
