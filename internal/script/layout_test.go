package script_test

import (
	"sync"
	"testing"

	"github.com/cueline/cueline/internal/script"
)

func TestLayout_PositionOf(t *testing.T) {
	t.Parallel()

	l := script.NewLayout()

	if _, ok := l.PositionOf(0); ok {
		t.Error("PositionOf(0) reported a position before SetPositions")
	}

	l.SetPositions([]float64{0, 24, 48, 72})

	pos, ok := l.PositionOf(2)
	if !ok || pos != 48 {
		t.Errorf("PositionOf(2) = %v, %v; want 48, true", pos, ok)
	}
	if _, ok := l.PositionOf(4); ok {
		t.Error("PositionOf(4) reported a position beyond the map")
	}
	if _, ok := l.PositionOf(-1); ok {
		t.Error("PositionOf(-1) reported a position")
	}
}

func TestLayout_SetPositionsCopies(t *testing.T) {
	t.Parallel()

	src := []float64{0, 10, 20}
	l := script.NewLayout()
	l.SetPositions(src)
	src[1] = 999

	pos, ok := l.PositionOf(1)
	if !ok || pos != 10 {
		t.Errorf("PositionOf(1) = %v, %v after mutating source; want 10, true", pos, ok)
	}
}

func TestLayout_NearestIndex(t *testing.T) {
	t.Parallel()

	l := script.NewLayout()

	if _, ok := l.NearestIndex(50); ok {
		t.Error("NearestIndex reported an index for an empty layout")
	}

	l.SetPositions([]float64{0, 24, 48, 72, 96})

	cases := []struct {
		offset float64
		want   int
	}{
		{0, 0},
		{11, 0},
		{13, 1},
		{60, 2}, // equidistant between 48 and 72: first wins
		{95, 4},
		{500, 4},
		{-10, 0},
	}
	for _, tc := range cases {
		got, ok := l.NearestIndex(tc.offset)
		if !ok || got != tc.want {
			t.Errorf("NearestIndex(%v) = %d, %v; want %d, true", tc.offset, got, ok, tc.want)
		}
	}
}

func TestLayout_ConcurrentAccess(t *testing.T) {
	t.Parallel()

	l := script.NewLayout()
	l.SetPositions([]float64{0, 24, 48})
	l.SetViewportHeight(400)

	var wg sync.WaitGroup
	for range 4 {
		wg.Add(2)
		go func() {
			defer wg.Done()
			for i := range 100 {
				l.SetPositions([]float64{0, float64(i), float64(2 * i)})
				l.SetViewportHeight(float64(i))
			}
		}()
		go func() {
			defer wg.Done()
			for range 100 {
				l.PositionOf(1)
				l.NearestIndex(30)
				l.ViewportHeight()
			}
		}()
	}
	wg.Wait()
}
