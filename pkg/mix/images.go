package mix

import (
	"fmt"
	"image"
	"math"
	"math/rand/v2"
	"os"
	"path/filepath"
	"strings"

	"github.com/anthonynsimon/bild/imgio"
	"golang.org/x/image/draw"

	// Decoders for background photographs.
	_ "image/jpeg"
	_ "image/png"

	_ "golang.org/x/image/bmp"
	_ "golang.org/x/image/tiff"
	_ "golang.org/x/image/webp"
)

var imageExts = map[string]bool{
	".png": true, ".jpg": true, ".jpeg": true,
	".bmp": true, ".webp": true, ".tif": true, ".tiff": true,
}

// ImageBackground draws a random photograph from a directory, scaled and
// center-cropped to cover the frame.
type ImageBackground struct {
	dir   string
	paths []string
}

// NewImageBackground lists the image files directly inside dir.
func NewImageBackground(dir string) (*ImageBackground, error) {
	if dir == "" {
		return nil, fmt.Errorf("%w: no directory configured", ErrNoImages)
	}
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, fmt.Errorf("mix: read background dir: %w", err)
	}
	b := &ImageBackground{dir: dir}
	for _, e := range entries {
		if e.IsDir() || !imageExts[strings.ToLower(filepath.Ext(e.Name()))] {
			continue
		}
		b.paths = append(b.paths, filepath.Join(dir, e.Name()))
	}
	if len(b.paths) == 0 {
		return nil, fmt.Errorf("%w in %s", ErrNoImages, dir)
	}
	return b, nil
}

// Len returns the number of candidate images.
func (b *ImageBackground) Len() int { return len(b.paths) }

func (b *ImageBackground) Generate(rng *rand.Rand, w, h int) (image.Image, error) {
	path := b.paths[rng.IntN(len(b.paths))]
	img, err := imgio.Open(path)
	if err != nil {
		return nil, fmt.Errorf("decode %s: %w", path, err)
	}
	return Cover(img, w, h), nil
}

// Cover scales src to fill a w x h frame, cropping the excess evenly
// from both sides of the longer axis.
func Cover(src image.Image, w, h int) *image.RGBA {
	sb := src.Bounds()
	sw, sh := sb.Dx(), sb.Dy()
	crop := sb
	target := float64(w) / float64(h)
	if float64(sw)/float64(sh) > target {
		cw := int(math.Round(float64(sh) * target))
		x0 := sb.Min.X + (sw-cw)/2
		crop = image.Rect(x0, sb.Min.Y, x0+cw, sb.Max.Y)
	} else {
		ch := int(math.Round(float64(sw) / target))
		y0 := sb.Min.Y + (sh-ch)/2
		crop = image.Rect(sb.Min.X, y0, sb.Max.X, y0+ch)
	}
	dst := image.NewRGBA(image.Rect(0, 0, w, h))
	draw.CatmullRom.Scale(dst, dst.Bounds(), src, crop, draw.Src, nil)
	return dst
}
