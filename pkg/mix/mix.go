// Package mix composites rendered frames over generated or photographic
// backgrounds. The renderer leaves background pixels transparent, so any
// background shows through exactly where the mask is empty.
package mix

import (
	"errors"
	"fmt"
	"image"
	"math/rand/v2"
	"strings"

	"github.com/anthonynsimon/bild/adjust"
	"github.com/anthonynsimon/bild/blend"
	"github.com/anthonynsimon/bild/clone"
	"github.com/chazu/datagen/pkg/logging"
)

// Method selects a background strategy.
type Method int

const (
	None Method = iota
	Solid
	Noise
	Images
	RandomMix
)

var methodNames = map[Method]string{
	None:      "none",
	Solid:     "solid",
	Noise:     "noise",
	Images:    "images",
	RandomMix: "random_mix",
}

func (m Method) String() string {
	if s, ok := methodNames[m]; ok {
		return s
	}
	return fmt.Sprintf("Method(%d)", int(m))
}

// ParseMethod maps a configuration name to a Method. The empty string
// selects None.
func ParseMethod(s string) (Method, error) {
	s = strings.ToLower(strings.TrimSpace(s))
	if s == "" {
		return None, nil
	}
	for m, name := range methodNames {
		if name == s {
			return m, nil
		}
	}
	return None, fmt.Errorf("mix: unknown background method %q", s)
}

// ErrNoImages is returned when an image directory holds no decodable files.
var ErrNoImages = errors.New("mix: no background images")

// Background produces an opaque w x h image.
type Background interface {
	Generate(rng *rand.Rand, w, h int) (image.Image, error)
}

// Options configures New.
type Options struct {
	Method     Method
	ImagesDir  string  // required for Images, optional for RandomMix
	Monochrome bool    // grayscale noise
	Grain      int     // noise cell size in pixels; <= 1 is per-pixel
	Jitter     float64 // brightness jitter for RandomMix, in [0,1]
}

// Mixer applies one background strategy to every frame.
type Mixer struct {
	method Method
	bg     Background
	rng    *rand.Rand
}

// New builds a Mixer. rng must not be nil unless the method is None.
func New(opts Options, rng *rand.Rand) (*Mixer, error) {
	if opts.Method != None && rng == nil {
		return nil, errors.New("mix: nil random source")
	}
	if opts.Jitter < 0 || opts.Jitter > 1 {
		return nil, fmt.Errorf("mix: brightness jitter %g out of [0,1]", opts.Jitter)
	}
	noise := &NoiseBackground{Monochrome: opts.Monochrome, Grain: opts.Grain}

	m := &Mixer{method: opts.Method, rng: rng}
	switch opts.Method {
	case None:
	case Solid:
		m.bg = SolidBackground{}
	case Noise:
		m.bg = noise
	case Images:
		imgs, err := NewImageBackground(opts.ImagesDir)
		if err != nil {
			return nil, err
		}
		m.bg = imgs
	case RandomMix:
		choices := []Background{SolidBackground{}, noise}
		if opts.ImagesDir != "" {
			imgs, err := NewImageBackground(opts.ImagesDir)
			if err != nil {
				return nil, err
			}
			choices = append(choices, imgs)
		}
		m.bg = &MixBackground{Choices: choices, Jitter: opts.Jitter}
	default:
		return nil, fmt.Errorf("mix: unknown method %s", opts.Method)
	}
	return m, nil
}

// Method reports the configured strategy.
func (m *Mixer) Method() Method { return m.method }

// Mix returns a new image with fg composited over a fresh background.
// With None it returns a copy of fg, transparent background included.
func (m *Mixer) Mix(fg *image.RGBA) (*image.RGBA, error) {
	if m.bg == nil {
		return clone.AsRGBA(fg), nil
	}
	b := fg.Bounds()
	bg, err := m.bg.Generate(m.rng, b.Dx(), b.Dy())
	if err != nil {
		return nil, fmt.Errorf("mix: %s background: %w", m.method, err)
	}
	return Composite(bg, fg), nil
}

// Composite alpha-blends fg over bg. The result has fg's size when bg is
// at least as large.
func Composite(bg image.Image, fg *image.RGBA) *image.RGBA {
	return blend.Normal(bg, fg)
}

// SolidBackground fills the frame with one random opaque color.
type SolidBackground struct{}

func (SolidBackground) Generate(rng *rand.Rand, w, h int) (image.Image, error) {
	img := image.NewRGBA(image.Rect(0, 0, w, h))
	r, g, b := uint8(rng.IntN(256)), uint8(rng.IntN(256)), uint8(rng.IntN(256))
	for i := 0; i < len(img.Pix); i += 4 {
		img.Pix[i+0] = r
		img.Pix[i+1] = g
		img.Pix[i+2] = b
		img.Pix[i+3] = 0xFF
	}
	return img, nil
}

// MixBackground picks one of Choices per frame and jitters its brightness.
type MixBackground struct {
	Choices []Background
	Jitter  float64
}

func (m *MixBackground) Generate(rng *rand.Rand, w, h int) (image.Image, error) {
	if len(m.Choices) == 0 {
		return nil, errors.New("no background choices")
	}
	pick := rng.IntN(len(m.Choices))
	bg, err := m.Choices[pick].Generate(rng, w, h)
	if err != nil {
		return nil, err
	}
	change := 0.0
	if m.Jitter > 0 {
		change = (rng.Float64()*2 - 1) * m.Jitter
	}
	logging.Logger().Debug("mix: random background", "choice", fmt.Sprintf("%T", m.Choices[pick]), "brightness", change)
	if change == 0 {
		return bg, nil
	}
	return adjust.Brightness(bg, change), nil
}
