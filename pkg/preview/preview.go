// Package preview draws box labels over rendered samples so a run can be
// spot-checked without a viewer.
package preview

import (
	"fmt"
	"image"
	"image/color"

	"github.com/chazu/datagen/pkg/label"
	"github.com/gogpu/gg"
)

// Style controls how the box outline is drawn.
type Style struct {
	Color     color.RGBA
	LineWidth float64
}

// DefaultStyle is a 2px green outline.
var DefaultStyle = Style{Color: color.RGBA{G: 255, A: 255}, LineWidth: 2}

// Overlay returns a copy of img with r outlined. img is not modified.
func Overlay(img image.Image, r label.Rect, st Style) (image.Image, error) {
	if st.LineWidth <= 0 {
		st.LineWidth = DefaultStyle.LineWidth
	}
	dc := gg.NewContextForImage(img)
	defer dc.Close()

	dc.SetColor(st.Color)
	dc.SetLineWidth(st.LineWidth)
	dc.DrawRectangle(
		float64(r.ColMin), float64(r.RowMin),
		float64(r.ColMax-r.ColMin+1), float64(r.RowMax-r.RowMin+1))
	if err := dc.Stroke(); err != nil {
		return nil, fmt.Errorf("preview: stroke box: %w", err)
	}
	return dc.Image(), nil
}

// Label outlines a derived box label. The label's image size must match img.
func Label(img image.Image, lbl label.BoxLabel, st Style) (image.Image, error) {
	b := img.Bounds()
	if b.Dx() != lbl.Width || b.Dy() != lbl.Height {
		return nil, fmt.Errorf("preview: label is for %dx%d, image is %dx%d",
			lbl.Width, lbl.Height, b.Dx(), b.Dy())
	}
	return Overlay(img, lbl.Denormalize(), st)
}
