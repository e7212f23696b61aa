package core

// CPU reference implementation of the depth pyramid reduction kernel in
// rt/shaders/depth_pyramid.wgsl. One logical invocation per destination
// texel; no invocation reads another's output.

// ReduceMode selects the fold applied over each 2x2 source footprint.
type ReduceMode int

const (
	// ReduceMin builds a nearest-surface pyramid (occluder queries).
	ReduceMin ReduceMode = iota
	// ReduceMax builds a farthest-surface pyramid (conservative far bound).
	ReduceMax
)

func (m ReduceMode) String() string {
	if m == ReduceMax {
		return "max"
	}
	return "min"
}

// DepthImage is a 2D grid of single-channel float samples, row-major.
type DepthImage struct {
	Width  int
	Height int
	Pix    []float32
}

func NewDepthImage(width, height int) *DepthImage {
	if width < 1 {
		width = 1
	}
	if height < 1 {
		height = 1
	}
	return &DepthImage{
		Width:  width,
		Height: height,
		Pix:    make([]float32, width*height),
	}
}

func (img *DepthImage) At(x, y int) float32 {
	return img.Pix[y*img.Width+x]
}

func (img *DepthImage) Set(x, y int, v float32) {
	img.Pix[y*img.Width+x] = v
}

func (img *DepthImage) Fill(v float32) {
	for i := range img.Pix {
		img.Pix[i] = v
	}
}

// Reduce downsamples src into dst, folding each dst texel's 2x2 source
// footprint with min or max. The footprint origin is the dst coordinate
// scaled by the integer resolution ratio; callers guarantee src dimensions
// are an integer multiple of dst's (mismatches read garbage, they are not
// detected here).
func Reduce(src, dst *DepthImage, mode ReduceMode) {
	rx := src.Width / dst.Width
	ry := src.Height / dst.Height

	Dispatch2D(dst.Width, dst.Height, func(x, y int) {
		sx := x * rx
		sy := y * ry
		sx1 := sx + 1
		sy1 := sy + 1
		// Odd source edge: the halved footprint collapses to the last texel.
		if sx1 >= src.Width {
			sx1 = src.Width - 1
		}
		if sy1 >= src.Height {
			sy1 = src.Height - 1
		}

		v0 := src.At(sx, sy)
		v1 := src.At(sx1, sy)
		v2 := src.At(sx, sy1)
		v3 := src.At(sx1, sy1)

		var v float32
		if mode == ReduceMax {
			v = v0
			if v1 > v {
				v = v1
			}
			if v2 > v {
				v = v2
			}
			if v3 > v {
				v = v3
			}
		} else {
			v = v0
			if v1 < v {
				v = v1
			}
			if v2 < v {
				v = v2
			}
			if v3 < v {
				v = v3
			}
		}
		dst.Set(x, y, v)
	})
}

// DepthPyramid owns a full mip chain below a base image. Level 0 is half
// the base resolution, each further level halves again down to 1x1.
type DepthPyramid struct {
	Mode   ReduceMode
	Levels []*DepthImage
}

// MipLevelCount returns the number of levels needed to reduce w×h to 1×1,
// counting the half-resolution level 0.
func MipLevelCount(w, h int) int {
	w /= 2
	h /= 2
	if w < 1 {
		w = 1
	}
	if h < 1 {
		h = 1
	}
	dim := w
	if h > dim {
		dim = h
	}
	mips := 0
	for dim > 0 {
		mips++
		dim >>= 1
	}
	return mips
}

// NewDepthPyramid allocates the chain for a base image of the given size.
func NewDepthPyramid(baseWidth, baseHeight int, mode ReduceMode) *DepthPyramid {
	mips := MipLevelCount(baseWidth, baseHeight)
	p := &DepthPyramid{Mode: mode, Levels: make([]*DepthImage, mips)}
	w := baseWidth / 2
	h := baseHeight / 2
	for i := 0; i < mips; i++ {
		p.Levels[i] = NewDepthImage(w, h)
		w /= 2
		h /= 2
		if w < 1 {
			w = 1
		}
		if h < 1 {
			h = 1
		}
	}
	return p
}

// Build runs the reduction once per level, each pass feeding on the
// previous level's completed output. Passes are sequential; only the
// texels within one pass run in parallel.
func (p *DepthPyramid) Build(base *DepthImage) {
	src := base
	for _, dst := range p.Levels {
		Reduce(src, dst, p.Mode)
		src = dst
	}
}

// Top returns the 1x1 tail of the chain's reduction, i.e. the global
// min or max of the base image.
func (p *DepthPyramid) Top() float32 {
	last := p.Levels[len(p.Levels)-1]
	return last.Pix[0]
}
