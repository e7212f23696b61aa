package main

import (
	"flag"
	"fmt"
	"image"
	"image/color"
	"image/png"
	"os"
	"path/filepath"
	"strings"

	helio "github.com/helio3d/helio"
	"github.com/helio3d/helio/rt/core"

	"golang.org/x/image/draw"
)

// hizdump builds a depth pyramid from a grayscale PNG on the CPU and
// writes every mip level back out as PNG, for eyeballing the reduction
// offline without a GPU.
func main() {
	input := flag.String("in", "", "input grayscale PNG (required)")
	outDir := flag.String("out", "hiz", "output directory for per-level PNGs")
	modeName := flag.String("mode", "min", "reduction mode: min or max")
	upscale := flag.Bool("upscale", false, "upscale each level to base resolution for side-by-side viewing")
	flag.Parse()

	log := helio.NewDefaultLogger("hizdump", false)

	if *input == "" {
		flag.Usage()
		os.Exit(2)
	}
	mode := core.ReduceMin
	if strings.EqualFold(*modeName, "max") {
		mode = core.ReduceMax
	}

	base, err := loadDepthPNG(*input)
	if err != nil {
		log.Errorf("load %s: %v", *input, err)
		os.Exit(1)
	}

	pyramid := core.NewDepthPyramid(base.Width, base.Height, mode)
	pyramid.Build(base)

	if err := os.MkdirAll(*outDir, 0o755); err != nil {
		log.Errorf("mkdir %s: %v", *outDir, err)
		os.Exit(1)
	}

	for i, level := range pyramid.Levels {
		name := filepath.Join(*outDir, fmt.Sprintf("level_%02d_%dx%d.png", i, level.Width, level.Height))
		img := depthToGray(level)
		var out image.Image = img
		if *upscale && (level.Width < base.Width || level.Height < base.Height) {
			dst := image.NewGray(image.Rect(0, 0, base.Width, base.Height))
			draw.NearestNeighbor.Scale(dst, dst.Bounds(), img, img.Bounds(), draw.Src, nil)
			out = dst
		}
		if err := writePNG(name, out); err != nil {
			log.Errorf("write %s: %v", name, err)
			os.Exit(1)
		}
		log.Infof("wrote %s (%s of 2x2 footprints)", name, mode)
	}
	log.Infof("%d levels, top texel %.4f", len(pyramid.Levels), pyramid.Top())
}

// loadDepthPNG maps 8-bit luminance onto [0,1] depth.
func loadDepthPNG(path string) (*core.DepthImage, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	src, err := png.Decode(f)
	if err != nil {
		return nil, err
	}
	b := src.Bounds()
	img := core.NewDepthImage(b.Dx(), b.Dy())
	for y := 0; y < b.Dy(); y++ {
		for x := 0; x < b.Dx(); x++ {
			g := color.GrayModel.Convert(src.At(b.Min.X+x, b.Min.Y+y)).(color.Gray)
			img.Set(x, y, float32(g.Y)/255.0)
		}
	}
	return img, nil
}

func depthToGray(img *core.DepthImage) *image.Gray {
	out := image.NewGray(image.Rect(0, 0, img.Width, img.Height))
	for y := 0; y < img.Height; y++ {
		for x := 0; x < img.Width; x++ {
			v := img.At(x, y)
			if v < 0 {
				v = 0
			} else if v > 1 {
				v = 1
			}
			out.SetGray(x, y, color.Gray{Y: uint8(v*255 + 0.5)})
		}
	}
	return out
}

func writePNG(path string, img image.Image) error {
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	defer f.Close()
	return png.Encode(f, img)
}
