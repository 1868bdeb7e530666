package bridge

import (
	"github.com/inspectkit/bridge/internal/prefs"
	"github.com/inspectkit/bridge/internal/shared/id"
)

// minimum usable inspector surface; restored bounds below this are
// replaced with the defaults.
const minSessionEdge = 100

// Session is the live association between one frontend surface and one
// agent-host target. Created on Show, destroyed on Close, re-created on
// re-attach. All fields are guarded by the owning bridge.
type Session struct {
	ID                  string
	FrontendLoaded      bool
	CanDock             bool
	Docked              bool
	DockState           string
	ZoomLevel           float64
	Bounds              prefs.Rect
	InspectedPageBounds prefs.Rect
	Title               string

	// extensions maps an origin (with trailing slash) to an injectable
	// script body. Append-only for the session's lifetime.
	extensions map[string]string
}

func newSession(store prefs.Store) *Session {
	bounds := store.Bounds()
	if bounds.Width < minSessionEdge || bounds.Height < minSessionEdge {
		bounds.Width = prefs.DefaultBounds().Width
		bounds.Height = prefs.DefaultBounds().Height
	}

	return &Session{
		ID:         id.NewSessionID().String(),
		CanDock:    true,
		ZoomLevel:  store.ZoomLevel(),
		Bounds:     bounds,
		extensions: make(map[string]string),
	}
}

// SessionInfo is a point-in-time copy of session state for callers
// outside the bridge's lock.
type SessionInfo struct {
	ID                  string
	FrontendLoaded      bool
	CanDock             bool
	Docked              bool
	DockState           string
	ZoomLevel           float64
	Bounds              prefs.Rect
	InspectedPageBounds prefs.Rect
	Title               string
}

func (s *Session) info() SessionInfo {
	return SessionInfo{
		ID:                  s.ID,
		FrontendLoaded:      s.FrontendLoaded,
		CanDock:             s.CanDock,
		Docked:              s.Docked,
		DockState:           s.DockState,
		ZoomLevel:           s.ZoomLevel,
		Bounds:              s.Bounds,
		InspectedPageBounds: s.InspectedPageBounds,
		Title:               s.Title,
	}
}
