// Package raster is a deterministic CPU z-buffer backend for render
// sessions. It draws the flattened scene with flat Lambert shading and
// fills the color, depth and instance planes in one pass.
package raster

import (
	"errors"
	"fmt"
	"image"
	"image/color"
	"math"
	"sync/atomic"

	"github.com/chazu/datagen/pkg/render"
	"github.com/chazu/datagen/pkg/scene"
	"github.com/go-gl/mathgl/mgl64"
)

// DefaultAmbient is the ambient term added to every lit face.
const DefaultAmbient = 0.1

// Options configure a Backend.
type Options struct {
	// Ambient scales the model's base color independently of lights.
	Ambient float64
	// MinPointDistance clamps the point-light falloff near the source.
	MinPointDistance float64
}

// Backend creates raster contexts and counts the live ones.
type Backend struct {
	opts Options
	live atomic.Int64
}

// Compile-time interface check.
var _ render.Backend = (*Backend)(nil)

// New returns a Backend. A zero MinPointDistance selects 0.01.
func New(opts Options) *Backend {
	if opts.MinPointDistance <= 0 {
		opts.MinPointDistance = 0.01
	}
	return &Backend{opts: opts}
}

// Live reports the number of contexts created and not yet destroyed.
func (b *Backend) Live() int {
	return int(b.live.Load())
}

// ErrDestroyed is returned when a destroyed context is used.
var ErrDestroyed = errors.New("raster: context destroyed")

// NewContext allocates the three planes for a width x height viewport.
func (b *Backend) NewContext(width, height int) (render.Context, error) {
	if width <= 0 || height <= 0 {
		return nil, fmt.Errorf("raster: invalid viewport %dx%d", width, height)
	}
	b.live.Add(1)
	return &rasterContext{
		b:     b,
		w:     width,
		h:     height,
		zbuf:  make([]float64, width*height),
		frame: image.NewRGBA(image.Rect(0, 0, width, height)),
		depth: render.NewDepthMap(width, height),
		inst:  render.NewInstanceMap(width, height),
		opts:  b.opts,
	}, nil
}

type rasterContext struct {
	b      *Backend
	opts   Options
	w, h   int
	zbuf   []float64 // NDC depth for the visibility test
	frame  *image.RGBA
	depth  *render.DepthMap
	inst   *render.InstanceMap
	closed bool
}

func (c *rasterContext) Destroy() error {
	if c.closed {
		return ErrDestroyed
	}
	c.closed = true
	c.b.live.Add(-1)
	return nil
}

func (c *rasterContext) reset() {
	for i := range c.zbuf {
		c.zbuf[i] = math.Inf(1)
	}
	clear(c.frame.Pix)
	clear(c.depth.Pix)
	clear(c.inst.Pix)
}

// Render draws every model in the scene from the scene's camera.
func (c *rasterContext) Render(s *scene.Scene) (*render.Buffers, error) {
	if c.closed {
		return nil, ErrDestroyed
	}
	dl, err := scene.Flatten(s)
	if err != nil {
		return nil, err
	}
	cam, ok := dl.Camera.Data.(scene.CameraData)
	if !ok {
		return nil, fmt.Errorf("raster: camera node %d has unexpected data type %T", dl.Camera.ID, dl.Camera.Data)
	}

	c.reset()
	view := dl.Camera.World.Inv()
	viewProj := cam.Projection(float64(c.w) / float64(c.h)).Mul4(view)
	eye := dl.Camera.World.Col(3).Vec3()
	lights := resolveLights(dl.Lights)

	for _, item := range dl.Models {
		md, ok := item.Data.(scene.ModelData)
		if !ok || md.Model == nil || md.Model.Mesh == nil {
			return nil, fmt.Errorf("raster: model node %d has no mesh", item.ID)
		}
		c.drawMesh(item, md, viewProj, eye, lights)
	}

	return (&render.Buffers{Color: c.frame, Depth: c.depth, Instances: c.inst}).Clone(), nil
}

func (c *rasterContext) drawMesh(item scene.DrawItem, md scene.ModelData, viewProj mgl64.Mat4, eye mgl64.Vec3, lights []light) {
	mesh := md.Model.Mesh
	base := md.Model.Material.BaseColor
	mvp := viewProj.Mul4(item.World)

	for t := 0; t < mesh.TriangleCount(); t++ {
		i0, i1, i2 := mesh.Triangle(t)
		var local, world [3]mgl64.Vec3
		for k, idx := range [3]int{i0, i1, i2} {
			v := mesh.Vertex(idx)
			local[k] = mgl64.Vec3{v[0], v[1], v[2]}
			world[k] = item.World.Mul4x1(local[k].Vec4(1)).Vec3()
		}

		n := world[1].Sub(world[0]).Cross(world[2].Sub(world[0]))
		if n.Len() < 1e-18 {
			continue
		}
		n = n.Normalize()
		centroid := world[0].Add(world[1]).Add(world[2]).Mul(1.0 / 3)
		if n.Dot(eye.Sub(centroid)) < 0 {
			n = n.Mul(-1)
		}
		rgba := c.shade(base, n, centroid, lights)

		poly := []mgl64.Vec4{
			mvp.Mul4x1(local[0].Vec4(1)),
			mvp.Mul4x1(local[1].Vec4(1)),
			mvp.Mul4x1(local[2].Vec4(1)),
		}
		poly = clipPolygon(poly, func(v mgl64.Vec4) float64 { return v.Z() + v.W() }) // near
		poly = clipPolygon(poly, func(v mgl64.Vec4) float64 { return v.W() - v.Z() }) // far
		for k := 1; k+1 < len(poly); k++ {
			c.rasterize(poly[0], poly[k], poly[k+1], item.ID, rgba)
		}
	}
}

// clipPolygon keeps the part of a convex polygon where dist >= 0
// (Sutherland-Hodgman against one plane).
func clipPolygon(in []mgl64.Vec4, dist func(mgl64.Vec4) float64) []mgl64.Vec4 {
	if len(in) == 0 {
		return nil
	}
	out := make([]mgl64.Vec4, 0, len(in)+1)
	for i, cur := range in {
		next := in[(i+1)%len(in)]
		dc, dn := dist(cur), dist(next)
		if dc >= 0 {
			out = append(out, cur)
		}
		if (dc >= 0) != (dn >= 0) {
			t := dc / (dc - dn)
			out = append(out, cur.Add(next.Sub(cur).Mul(t)))
		}
	}
	return out
}

type screenVert struct {
	x, y float64 // pixel coordinates, row 0 at the top
	z    float64 // NDC depth
	invW float64
}

func (c *rasterContext) toScreen(v mgl64.Vec4) screenVert {
	iw := 1 / v.W()
	return screenVert{
		x:    (v.X()*iw + 1) / 2 * float64(c.w),
		y:    (1 - v.Y()*iw) / 2 * float64(c.h),
		z:    v.Z() * iw,
		invW: iw,
	}
}

func edge(a, b screenVert, px, py float64) float64 {
	return (px-a.x)*(b.y-a.y) - (py-a.y)*(b.x-a.x)
}

// rasterize fills the pixels whose centers fall inside the triangle,
// for either winding.
func (c *rasterContext) rasterize(a, b, d mgl64.Vec4, id scene.NodeID, rgba color.RGBA) {
	s0, s1, s2 := c.toScreen(a), c.toScreen(b), c.toScreen(d)
	area := edge(s0, s1, s2.x, s2.y)
	if math.Abs(area) < 1e-12 {
		return
	}

	minX := max(0, int(math.Floor(math.Min(s0.x, math.Min(s1.x, s2.x)))))
	maxX := min(c.w-1, int(math.Ceil(math.Max(s0.x, math.Max(s1.x, s2.x)))))
	minY := max(0, int(math.Floor(math.Min(s0.y, math.Min(s1.y, s2.y)))))
	maxY := min(c.h-1, int(math.Ceil(math.Max(s0.y, math.Max(s1.y, s2.y)))))

	for py := minY; py <= maxY; py++ {
		cy := float64(py) + 0.5
		for px := minX; px <= maxX; px++ {
			cx := float64(px) + 0.5
			w0 := edge(s1, s2, cx, cy) / area
			w1 := edge(s2, s0, cx, cy) / area
			w2 := edge(s0, s1, cx, cy) / area
			if w0 < 0 || w1 < 0 || w2 < 0 {
				continue
			}
			z := w0*s0.z + w1*s1.z + w2*s2.z
			i := py*c.w + px
			if z < -1 || z > 1 || z >= c.zbuf[i] {
				continue
			}
			c.zbuf[i] = z
			iw := w0*s0.invW + w1*s1.invW + w2*s2.invW
			c.depth.Set(px, py, float32(1/iw))
			c.inst.Set(px, py, id)
			c.frame.SetRGBA(px, py, rgba)
		}
	}
}
