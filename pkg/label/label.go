// Package label derives training labels (segmentation mask and bounding
// box) from the buffers of a render.
package label

import (
	"errors"
	"fmt"
	"image"
	"image/color"
	"math"
	"strconv"
	"strings"

	"github.com/chazu/datagen/pkg/render"
	"github.com/chazu/datagen/pkg/scene"
)

// ErrEmptyForeground is returned when a mask has no foreground pixels.
var ErrEmptyForeground = errors.New("label: empty foreground")

// Foreground is the mask value of tracked-object pixels.
const Foreground = 255

// DeriveMask marks every pixel whose instance is the tracked node.
// No smoothing or dilation is applied. Buffers without a tracked node
// yield an empty mask.
func DeriveMask(b *render.Buffers) *image.Gray {
	inst := b.Instances
	mask := image.NewGray(image.Rect(0, 0, inst.Width, inst.Height))
	if b.Tracked == scene.NoNode {
		return mask
	}
	for y := 0; y < inst.Height; y++ {
		for x := 0; x < inst.Width; x++ {
			if inst.At(x, y) == b.Tracked {
				mask.SetGray(x, y, color.Gray{Y: Foreground})
			}
		}
	}
	return mask
}

// Rect is an inclusive pixel extent.
type Rect struct {
	RowMin int `json:"row_min"`
	RowMax int `json:"row_max"`
	ColMin int `json:"col_min"`
	ColMax int `json:"col_max"`
}

// Extent returns the tight extent of the non-zero pixels of mask, measured
// from the top-left corner of its bounds.
func Extent(mask *image.Gray) (Rect, error) {
	b := mask.Bounds()
	r := Rect{RowMin: b.Dy(), RowMax: -1, ColMin: b.Dx(), ColMax: -1}
	for y := b.Min.Y; y < b.Max.Y; y++ {
		for x := b.Min.X; x < b.Max.X; x++ {
			if mask.GrayAt(x, y).Y == 0 {
				continue
			}
			row, col := y-b.Min.Y, x-b.Min.X
			r.RowMin = min(r.RowMin, row)
			r.RowMax = max(r.RowMax, row)
			r.ColMin = min(r.ColMin, col)
			r.ColMax = max(r.ColMax, col)
		}
	}
	if r.RowMax < 0 {
		return Rect{}, ErrEmptyForeground
	}
	return r, nil
}

// Format selects how box values are expressed.
type Format int

const (
	// Absolute is (col_min, row_min, col_max, row_max) in pixels.
	Absolute Format = iota
	// NormalizedCenter is (x_center, y_center, width, height) divided by
	// the image size. Also known as the YOLO format.
	NormalizedCenter
)

func (f Format) String() string {
	switch f {
	case Absolute:
		return "absolute"
	case NormalizedCenter:
		return "yolo"
	default:
		return fmt.Sprintf("Format(%d)", int(f))
	}
}

// ParseFormat maps a configuration name to a Format.
func ParseFormat(s string) (Format, error) {
	switch strings.ToLower(s) {
	case "absolute", "abs", "pixels":
		return Absolute, nil
	case "yolo", "normalized", "normalized_center", "":
		return NormalizedCenter, nil
	default:
		return 0, fmt.Errorf("label: unknown box format %q", s)
	}
}

// MarshalText implements encoding.TextMarshaler.
func (f Format) MarshalText() ([]byte, error) {
	return []byte(f.String()), nil
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (f *Format) UnmarshalText(b []byte) error {
	v, err := ParseFormat(string(b))
	if err != nil {
		return err
	}
	*f = v
	return nil
}

// BoxLabel is a bounding box for one class in one image.
type BoxLabel struct {
	Class  string     `json:"class"`
	Format Format     `json:"format"`
	Values [4]float64 `json:"values"`
	Width  int        `json:"image_width"`
	Height int        `json:"image_height"`
}

// DeriveBox computes the box around the foreground of mask.
func DeriveBox(mask *image.Gray, class string, f Format) (BoxLabel, error) {
	r, err := Extent(mask)
	if err != nil {
		return BoxLabel{}, err
	}
	w, h := mask.Bounds().Dx(), mask.Bounds().Dy()
	lbl := BoxLabel{Class: class, Format: f, Width: w, Height: h}
	switch f {
	case Absolute:
		lbl.Values = [4]float64{float64(r.ColMin), float64(r.RowMin), float64(r.ColMax), float64(r.RowMax)}
	case NormalizedCenter:
		W, H := float64(w), float64(h)
		lbl.Values = [4]float64{
			float64(r.ColMin+r.ColMax) / (2 * W),
			float64(r.RowMin+r.RowMax) / (2 * H),
			float64(r.ColMax-r.ColMin) / W,
			float64(r.RowMax-r.RowMin) / H,
		}
	default:
		return BoxLabel{}, fmt.Errorf("label: unknown box format %v", f)
	}
	return lbl, nil
}

// Denormalize recovers the pixel extent the label was derived from.
func (l BoxLabel) Denormalize() Rect {
	v := l.Values
	if l.Format == Absolute {
		return Rect{ColMin: int(v[0]), RowMin: int(v[1]), ColMax: int(v[2]), RowMax: int(v[3])}
	}
	W, H := float64(l.Width), float64(l.Height)
	cx, cy := v[0]*2*W, v[1]*2*H // cmin+cmax, rmin+rmax
	dw, dh := v[2]*W, v[3]*H     // cmax-cmin, rmax-rmin
	return Rect{
		ColMin: roundInt((cx - dw) / 2),
		ColMax: roundInt((cx + dw) / 2),
		RowMin: roundInt((cy - dh) / 2),
		RowMax: roundInt((cy + dh) / 2),
	}
}

func roundInt(v float64) int {
	return int(math.Round(v))
}

// Line renders the label as one space-separated line: the class followed
// by the four values.
func (l BoxLabel) Line() string {
	var sb strings.Builder
	sb.WriteString(l.Class)
	for _, v := range l.Values {
		sb.WriteByte(' ')
		sb.WriteString(strconv.FormatFloat(v, 'f', -1, 64))
	}
	return sb.String()
}
