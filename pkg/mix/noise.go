package mix

import (
	"image"
	"math/rand/v2"
	"sync"

	"github.com/anthonynsimon/bild/noise"
	"github.com/anthonynsimon/bild/transform"
)

// NoiseBackground fills the frame with uniform noise. With Grain > 1 the
// noise is drawn at reduced resolution and scaled up, giving blotches of
// roughly Grain pixels.
type NoiseBackground struct {
	Monochrome bool
	Grain      int
}

// lockedSource serializes draws; bild fills rows from several goroutines.
type lockedSource struct {
	mu sync.Mutex
	r  *rand.Rand
}

func (s *lockedSource) next() uint8 {
	s.mu.Lock()
	v := uint8(s.r.IntN(256))
	s.mu.Unlock()
	return v
}

func (n *NoiseBackground) Generate(rng *rand.Rand, w, h int) (image.Image, error) {
	gw, gh := w, h
	if n.Grain > 1 {
		gw = max(1, (w+n.Grain-1)/n.Grain)
		gh = max(1, (h+n.Grain-1)/n.Grain)
	}
	src := &lockedSource{r: rand.New(rand.NewPCG(rng.Uint64(), rng.Uint64()))}
	img := noise.Generate(gw, gh, &noise.Options{NoiseFn: src.next, Monochrome: n.Monochrome})
	if gw == w && gh == h {
		return img, nil
	}
	return transform.Resize(img, w, h, transform.Linear), nil
}
