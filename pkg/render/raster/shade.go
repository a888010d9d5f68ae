package raster

import (
	"image/color"
	"math"

	"github.com/chazu/datagen/pkg/scene"
	"github.com/go-gl/mathgl/mgl64"
)

// light is a scene light resolved to world space.
type light struct {
	kind      scene.LightKind
	radiance  mgl64.Vec3 // color * intensity
	direction mgl64.Vec3 // directional: unit vector the light travels along
	position  mgl64.Vec3 // point: world position
}

func resolveLights(items []scene.DrawItem) []light {
	out := make([]light, 0, len(items))
	for _, it := range items {
		d, ok := it.Data.(scene.LightData)
		if !ok {
			continue
		}
		l := light{kind: d.Kind, radiance: d.Color.Mul(d.Intensity)}
		switch d.Kind {
		case scene.Directional:
			l.direction = it.World.Mul4x1(mgl64.Vec4{0, 0, -1, 0}).Vec3().Normalize()
		case scene.Point:
			l.position = it.World.Col(3).Vec3()
		}
		out = append(out, l)
	}
	return out
}

// shade returns the flat Lambert color of a face with unit normal n.
func (c *rasterContext) shade(base, n, p mgl64.Vec3, lights []light) color.RGBA {
	sum := mgl64.Vec3{}
	for _, l := range lights {
		var toLight mgl64.Vec3
		falloff := 1.0
		switch l.kind {
		case scene.Directional:
			toLight = l.direction.Mul(-1)
		case scene.Point:
			toLight = l.position.Sub(p)
			d := math.Max(toLight.Len(), c.opts.MinPointDistance)
			falloff = 1 / (d * d)
			toLight = toLight.Normalize()
		}
		ndotl := n.Dot(toLight)
		if ndotl <= 0 || math.IsNaN(ndotl) {
			continue
		}
		sum = sum.Add(l.radiance.Mul(ndotl * falloff / math.Pi))
	}

	out := color.RGBA{A: 255}
	ch := [3]*uint8{&out.R, &out.G, &out.B}
	for i := 0; i < 3; i++ {
		v := base[i] * (sum[i] + c.opts.Ambient)
		*ch[i] = uint8(math.Round(math.Min(math.Max(v, 0), 1) * 255))
	}
	return out
}
