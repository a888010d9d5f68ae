package render

import (
	"image"
	"image/color"
	"math"

	"github.com/chazu/datagen/pkg/scene"
)

// DepthMap holds per-pixel eye-space distance. Background pixels are 0.
type DepthMap struct {
	Pix    []float32
	Width  int
	Height int
}

// NewDepthMap allocates a zeroed depth map.
func NewDepthMap(w, h int) *DepthMap {
	return &DepthMap{Pix: make([]float32, w*h), Width: w, Height: h}
}

// At returns the depth at column x, row y.
func (d *DepthMap) At(x, y int) float32 {
	return d.Pix[y*d.Width+x]
}

// Set stores the depth at column x, row y.
func (d *DepthMap) Set(x, y int, v float32) {
	d.Pix[y*d.Width+x] = v
}

// Max returns the largest stored depth.
func (d *DepthMap) Max() float32 {
	var m float32
	for _, v := range d.Pix {
		if v > m {
			m = v
		}
	}
	return m
}

// ToImage quantizes the map to 16 bits, scaling [0, far] to [0, 65535].
// A non-positive far scales by the largest stored depth.
func (d *DepthMap) ToImage(far float32) *image.Gray16 {
	if far <= 0 {
		far = d.Max()
	}
	img := image.NewGray16(image.Rect(0, 0, d.Width, d.Height))
	if far <= 0 {
		return img
	}
	for y := 0; y < d.Height; y++ {
		for x := 0; x < d.Width; x++ {
			v := math.Min(float64(d.At(x, y)/far), 1)
			img.SetGray16(x, y, color.Gray16{Y: uint16(math.Round(v * 65535))})
		}
	}
	return img
}

// InstanceMap holds the scene node visible at each pixel; scene.NoNode
// marks background.
type InstanceMap struct {
	Pix    []scene.NodeID
	Width  int
	Height int
}

// NewInstanceMap allocates a background-only instance map.
func NewInstanceMap(w, h int) *InstanceMap {
	return &InstanceMap{Pix: make([]scene.NodeID, w*h), Width: w, Height: h}
}

// At returns the node visible at column x, row y.
func (m *InstanceMap) At(x, y int) scene.NodeID {
	return m.Pix[y*m.Width+x]
}

// Set stores the node visible at column x, row y.
func (m *InstanceMap) Set(x, y int, id scene.NodeID) {
	m.Pix[y*m.Width+x] = id
}

// Buffers is the output of one render. All three planes share dimensions.
type Buffers struct {
	Color     *image.RGBA // alpha 0 on background
	Depth     *DepthMap
	Instances *InstanceMap
	Tracked   scene.NodeID // the model node labels are derived for
}

// Bounds returns the image rectangle shared by all planes.
func (b *Buffers) Bounds() image.Rectangle {
	return b.Color.Bounds()
}

// Clone returns a deep copy.
func (b *Buffers) Clone() *Buffers {
	c := &Buffers{Tracked: b.Tracked}
	if b.Color != nil {
		c.Color = &image.RGBA{
			Pix:    append([]uint8(nil), b.Color.Pix...),
			Stride: b.Color.Stride,
			Rect:   b.Color.Rect,
		}
	}
	if b.Depth != nil {
		c.Depth = &DepthMap{Pix: append([]float32(nil), b.Depth.Pix...), Width: b.Depth.Width, Height: b.Depth.Height}
	}
	if b.Instances != nil {
		c.Instances = &InstanceMap{Pix: append([]scene.NodeID(nil), b.Instances.Pix...), Width: b.Instances.Width, Height: b.Instances.Height}
	}
	return c
}
