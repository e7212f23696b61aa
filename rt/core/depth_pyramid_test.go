package core

import (
	"math/rand"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMipLevelCount(t *testing.T) {
	tests := []struct {
		w, h     int
		expected int
	}{
		{256, 256, 8},
		{1920, 1080, 10},
		{2, 2, 1},
		{4, 2, 2},
		{1, 1, 1},
		{512, 2, 9},
	}
	for _, tc := range tests {
		if got := MipLevelCount(tc.w, tc.h); got != tc.expected {
			t.Errorf("MipLevelCount(%d, %d) = %d, want %d", tc.w, tc.h, got, tc.expected)
		}
	}
}

func TestReduceUniformIdempotent(t *testing.T) {
	for _, mode := range []ReduceMode{ReduceMin, ReduceMax} {
		base := NewDepthImage(64, 64)
		base.Fill(0.25)

		p := NewDepthPyramid(base.Width, base.Height, mode)
		p.Build(base)

		for li, level := range p.Levels {
			for _, v := range level.Pix {
				if v != 0.25 {
					t.Fatalf("mode %v level %d: got %f, want 0.25", mode, li, v)
				}
			}
		}
	}
}

func TestReduceFootprintExact(t *testing.T) {
	src := NewDepthImage(4, 4)
	for i := range src.Pix {
		src.Pix[i] = float32(i)
	}

	dstMin := NewDepthImage(2, 2)
	Reduce(src, dstMin, ReduceMin)
	dstMax := NewDepthImage(2, 2)
	Reduce(src, dstMax, ReduceMax)

	// Footprint of dst (x, y) is src rows 2y..2y+1, cols 2x..2x+1.
	assert.Equal(t, float32(0), dstMin.At(0, 0))
	assert.Equal(t, float32(5), dstMax.At(0, 0))
	assert.Equal(t, float32(2), dstMin.At(1, 0))
	assert.Equal(t, float32(7), dstMax.At(1, 0))
	assert.Equal(t, float32(8), dstMin.At(0, 1))
	assert.Equal(t, float32(13), dstMax.At(0, 1))
	assert.Equal(t, float32(10), dstMin.At(1, 1))
	assert.Equal(t, float32(15), dstMax.At(1, 1))
}

func TestReduceBoundsAgainstTrueExtrema(t *testing.T) {
	rng := rand.New(rand.NewSource(7))
	src := NewDepthImage(32, 32)
	for i := range src.Pix {
		src.Pix[i] = rng.Float32()
	}

	dst := NewDepthImage(16, 16)
	Reduce(src, dst, ReduceMin)
	for y := 0; y < 16; y++ {
		for x := 0; x < 16; x++ {
			m := src.At(2*x, 2*y)
			for _, v := range []float32{src.At(2*x+1, 2*y), src.At(2*x, 2*y+1), src.At(2*x+1, 2*y+1)} {
				if v < m {
					m = v
				}
			}
			require.Equal(t, m, dst.At(x, y), "min at (%d,%d)", x, y)
		}
	}
}

func TestPyramidGlobalMax(t *testing.T) {
	rng := rand.New(rand.NewSource(42))
	base := NewDepthImage(256, 256)
	globalMax := float32(-1)
	for i := range base.Pix {
		base.Pix[i] = rng.Float32()
		if base.Pix[i] > globalMax {
			globalMax = base.Pix[i]
		}
	}

	p := NewDepthPyramid(base.Width, base.Height, ReduceMax)
	require.Len(t, p.Levels, 8)
	p.Build(base)

	last := p.Levels[len(p.Levels)-1]
	require.Equal(t, 1, last.Width)
	require.Equal(t, 1, last.Height)
	assert.Equal(t, globalMax, p.Top())
}

func TestPyramidGlobalMin(t *testing.T) {
	base := NewDepthImage(128, 64)
	base.Fill(1.0)
	base.Set(77, 13, 0.125)

	p := NewDepthPyramid(base.Width, base.Height, ReduceMin)
	p.Build(base)
	assert.Equal(t, float32(0.125), p.Top())
}

func TestReduceNonSquareChain(t *testing.T) {
	// 512x2 collapses height to 1 early; the footprint clamps instead of
	// reading out of bounds.
	base := NewDepthImage(512, 2)
	base.Fill(0.5)
	base.Set(511, 1, 0.9)

	p := NewDepthPyramid(base.Width, base.Height, ReduceMax)
	p.Build(base)
	assert.Equal(t, float32(0.9), p.Top())
}
