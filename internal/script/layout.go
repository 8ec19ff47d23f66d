package script

import (
	"math"
	"sync"
)

// Layout holds the word-index → vertical-offset mapping reported by the
// rendering collaborator, plus the current viewport height. It is rebuilt
// wholesale whenever the client reports a relayout (text, font size, line
// spacing, or wrap width change).
//
// All methods are safe for concurrent use — the display client updates the
// layout from its own connection goroutine while the scroll loop reads it
// every tick.
type Layout struct {
	mu        sync.RWMutex
	positions []float64
	viewportH float64
}

// NewLayout returns an empty Layout. PositionOf reports no position for any
// index until SetPositions is called.
func NewLayout() *Layout {
	return &Layout{}
}

// SetPositions replaces the full position map. positions[i] is the vertical
// offset of word i in the rendered script. The slice is copied.
func (l *Layout) SetPositions(positions []float64) {
	cp := make([]float64, len(positions))
	copy(cp, positions)
	l.mu.Lock()
	l.positions = cp
	l.mu.Unlock()
}

// SetViewportHeight records the visible height of the display client.
func (l *Layout) SetViewportHeight(h float64) {
	l.mu.Lock()
	l.viewportH = h
	l.mu.Unlock()
}

// ViewportHeight returns the last reported viewport height, or 0 when the
// client has not reported one yet.
func (l *Layout) ViewportHeight() float64 {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return l.viewportH
}

// PositionOf returns the vertical offset of word i. ok is false when the
// index is not (yet) covered by the position map — callers skip the update
// rather than treating this as an error.
func (l *Layout) PositionOf(i int) (pos float64, ok bool) {
	l.mu.RLock()
	defer l.mu.RUnlock()
	if i < 0 || i >= len(l.positions) {
		return 0, false
	}
	return l.positions[i], true
}

// NearestIndex returns the word index whose position is closest to offset.
// ok is false when no positions have been reported. Positions are
// non-decreasing in practice but NearestIndex does not rely on that; it
// scans the map, which is cheap at script sizes (thousands of words).
func (l *Layout) NearestIndex(offset float64) (idx int, ok bool) {
	l.mu.RLock()
	defer l.mu.RUnlock()
	if len(l.positions) == 0 {
		return 0, false
	}
	best := 0
	bestDist := math.Abs(l.positions[0] - offset)
	for i := 1; i < len(l.positions); i++ {
		d := math.Abs(l.positions[i] - offset)
		if d < bestDist {
			best, bestDist = i, d
		}
	}
	return best, true
}
