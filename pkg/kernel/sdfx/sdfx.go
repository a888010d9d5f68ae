// Package sdfx is the default recipe kernel, built on the
// github.com/deadsy/sdfx signed-distance library. Solids are exact SDFs
// until ToMesh samples them with marching cubes.
package sdfx

import (
	"errors"
	"fmt"
	"math"

	"github.com/chazu/datagen/pkg/kernel"
	"github.com/deadsy/sdfx/render"
	"github.com/deadsy/sdfx/sdf"
	v3 "github.com/deadsy/sdfx/vec/v3"
)

var _ kernel.Kernel = (*Kernel)(nil)

// DefaultMeshCells is the marching-cubes resolution along the longest
// bounding-box axis.
const DefaultMeshCells = 120

// ErrEmptySolid is returned by ToMesh when the solid has no surface.
var ErrEmptySolid = errors.New("sdfx: tessellation produced no triangles")

type solid struct {
	sdf sdf.SDF3
}

func (s *solid) BoundingBox() (min, max [3]float64) {
	bb := s.sdf.BoundingBox()
	return [3]float64{bb.Min.X, bb.Min.Y, bb.Min.Z}, [3]float64{bb.Max.X, bb.Max.Y, bb.Max.Z}
}

func unwrap(s kernel.Solid) sdf.SDF3 { return s.(*solid).sdf }

// must wraps a primitive constructor. The recipe builtins reject
// non-positive sizes before calling in, so an error here is a bug.
func must(s sdf.SDF3, err error) kernel.Solid {
	if err != nil {
		panic(fmt.Sprintf("sdfx: %v", err))
	}
	return &solid{sdf: s}
}

// Kernel implements kernel.Kernel with sdfx.
type Kernel struct {
	cells int
}

// New returns a Kernel meshing with the given number of marching-cubes
// cells. Non-positive values select DefaultMeshCells.
func New(cells int) *Kernel {
	if cells <= 0 {
		cells = DefaultMeshCells
	}
	return &Kernel{cells: cells}
}

// Cells returns the meshing resolution.
func (k *Kernel) Cells() int { return k.cells }

func (k *Kernel) Box(x, y, z float64) kernel.Solid {
	return must(sdf.Box3D(v3.Vec{X: x, Y: y, Z: z}, 0))
}

// Cylinder is centered on the origin along Z.
func (k *Kernel) Cylinder(height, radius float64) kernel.Solid {
	return must(sdf.Cylinder3D(height, radius, 0))
}

func (k *Kernel) Sphere(radius float64) kernel.Solid {
	return must(sdf.Sphere3D(radius))
}

func (k *Kernel) Union(a, b kernel.Solid) kernel.Solid {
	return &solid{sdf: sdf.Union3D(unwrap(a), unwrap(b))}
}

func (k *Kernel) Difference(a, b kernel.Solid) kernel.Solid {
	return &solid{sdf: sdf.Difference3D(unwrap(a), unwrap(b))}
}

func (k *Kernel) Intersection(a, b kernel.Solid) kernel.Solid {
	return &solid{sdf: sdf.Intersect3D(unwrap(a), unwrap(b))}
}

func (k *Kernel) Translate(s kernel.Solid, x, y, z float64) kernel.Solid {
	return &solid{sdf: sdf.Transform3D(unwrap(s), sdf.Translate3d(v3.Vec{X: x, Y: y, Z: z}))}
}

// Rotate applies Euler angles in degrees, X then Y then Z.
func (k *Kernel) Rotate(s kernel.Solid, x, y, z float64) kernel.Solid {
	rad := func(d float64) float64 { return d * math.Pi / 180 }
	m := sdf.RotateZ(rad(z)).Mul(sdf.RotateY(rad(y))).Mul(sdf.RotateX(rad(x)))
	return &solid{sdf: sdf.Transform3D(unwrap(s), m)}
}

// ToMesh samples the solid with marching cubes and welds coincident
// vertices, so the mesh is indexed and carries no normals. Triangles that
// collapse under welding are dropped.
func (k *Kernel) ToMesh(s kernel.Solid) (*kernel.Mesh, error) {
	src := unwrap(s)
	tris := render.ToTriangles(src, render.NewMarchingCubesUniform(k.cells))
	if len(tris) == 0 {
		return nil, ErrEmptySolid
	}

	// Weld on a grid far finer than a marching-cubes cell.
	bb := src.BoundingBox()
	longest := math.Max(bb.Max.X-bb.Min.X, math.Max(bb.Max.Y-bb.Min.Y, bb.Max.Z-bb.Min.Z))
	quantum := longest / float64(k.cells) * 1e-4

	type key [3]int64
	index := make(map[key]uint32, len(tris))
	m := &kernel.Mesh{Indices: make([]uint32, 0, len(tris)*3)}
	vertex := func(v v3.Vec) uint32 {
		kv := key{
			int64(math.Round(v.X / quantum)),
			int64(math.Round(v.Y / quantum)),
			int64(math.Round(v.Z / quantum)),
		}
		if i, ok := index[kv]; ok {
			return i
		}
		i := uint32(len(m.Vertices) / 3)
		m.Vertices = append(m.Vertices, float32(v.X), float32(v.Y), float32(v.Z))
		index[kv] = i
		return i
	}

	for _, t := range tris {
		a, b, c := vertex(t[0]), vertex(t[1]), vertex(t[2])
		if a == b || b == c || a == c {
			continue
		}
		m.Indices = append(m.Indices, a, b, c)
	}
	if len(m.Indices) == 0 {
		return nil, ErrEmptySolid
	}
	return m, nil
}
