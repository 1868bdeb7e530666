package prefs

import "testing"

func TestMemStoreDefaults(t *testing.T) {
	s := NewMemStore()

	if got := s.Bounds(); got != DefaultBounds() {
		t.Errorf("Bounds() = %+v, want defaults", got)
	}
	if got := s.ZoomLevel(); got != 0 {
		t.Errorf("ZoomLevel() = %v, want 0", got)
	}
	if got := s.Preferences(); len(got) != 0 {
		t.Errorf("Preferences() = %v, want empty", got)
	}
}

func TestMemStorePreferences(t *testing.T) {
	s := NewMemStore()

	s.SetPreference("currentDockState", `"bottom"`)
	s.SetPreference("theme", `"dark"`)

	if got := s.Preferences()["currentDockState"]; got != `"bottom"` {
		t.Errorf("got %q", got)
	}

	s.RemovePreference("theme")
	if _, ok := s.Preferences()["theme"]; ok {
		t.Error("theme should be removed")
	}

	s.ClearPreferences()
	if len(s.Preferences()) != 0 {
		t.Error("preferences should be cleared")
	}
}

func TestMemStorePreferencesCopy(t *testing.T) {
	s := NewMemStore()
	s.SetPreference("a", "1")

	snapshot := s.Preferences()
	snapshot["a"] = "mutated"

	if got := s.Preferences()["a"]; got != "1" {
		t.Errorf("store mutated through snapshot: %q", got)
	}
}

func TestMemStoreBoundsAndZoom(t *testing.T) {
	s := NewMemStore()

	s.SetBounds(Rect{X: 10, Y: 20, Width: 1024, Height: 768})
	if got := s.Bounds(); got.Width != 1024 || got.X != 10 {
		t.Errorf("Bounds() = %+v", got)
	}

	s.SetZoomLevel(1.5)
	if got := s.ZoomLevel(); got != 1.5 {
		t.Errorf("ZoomLevel() = %v", got)
	}
}
