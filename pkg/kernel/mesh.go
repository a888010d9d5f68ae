package kernel

import (
	"errors"
	"fmt"
	"math"
)

// Mesh is an indexed triangle mesh.
// All arrays are flat: vertices has 3 floats per vertex (x,y,z),
// normals (optional) has 3 floats per vertex, indices has 3 uint32s per
// triangle. A Mesh handed to a scene is treated as immutable; the
// transforming helpers below return copies.
type Mesh struct {
	Vertices []float32 `json:"vertices"` // [x0,y0,z0, x1,y1,z1, ...]
	Normals  []float32 `json:"normals"`  // [nx0,ny0,nz0, ...] or empty
	Indices  []uint32  `json:"indices"`  // [i0,i1,i2, ...] triangles
	Name     string    `json:"name"`     // source object name
}

// VertexCount returns the number of vertices.
func (m *Mesh) VertexCount() int {
	return len(m.Vertices) / 3
}

// TriangleCount returns the number of triangles.
func (m *Mesh) TriangleCount() int {
	return len(m.Indices) / 3
}

// IsEmpty returns true if the mesh has no geometry.
func (m *Mesh) IsEmpty() bool {
	return len(m.Vertices) == 0 || len(m.Indices) == 0
}

// Vertex returns vertex i as float64 coordinates.
func (m *Mesh) Vertex(i int) [3]float64 {
	return [3]float64{
		float64(m.Vertices[3*i]),
		float64(m.Vertices[3*i+1]),
		float64(m.Vertices[3*i+2]),
	}
}

// Triangle returns the three vertex indices of triangle t.
func (m *Mesh) Triangle(t int) (a, b, c int) {
	return int(m.Indices[3*t]), int(m.Indices[3*t+1]), int(m.Indices[3*t+2])
}

// ErrEmptyMesh is returned by Validate for meshes without triangles.
var ErrEmptyMesh = errors.New("kernel: mesh has no triangles")

// Validate checks array shapes and index bounds.
func (m *Mesh) Validate() error {
	if m.IsEmpty() {
		return ErrEmptyMesh
	}
	if len(m.Vertices)%3 != 0 {
		return fmt.Errorf("kernel: vertex array length %d is not a multiple of 3", len(m.Vertices))
	}
	if len(m.Indices)%3 != 0 {
		return fmt.Errorf("kernel: index array length %d is not a multiple of 3", len(m.Indices))
	}
	if len(m.Normals) != 0 && len(m.Normals) != len(m.Vertices) {
		return fmt.Errorf("kernel: %d normals for %d vertex floats", len(m.Normals), len(m.Vertices))
	}
	n := uint32(m.VertexCount())
	for i, idx := range m.Indices {
		if idx >= n {
			return fmt.Errorf("kernel: index %d at position %d out of range (%d vertices)", idx, i, n)
		}
	}
	return nil
}

// Bounds returns the axis-aligned bounding box of the vertices.
// An empty mesh returns zero vectors.
func (m *Mesh) Bounds() (min, max [3]float64) {
	if m.VertexCount() == 0 {
		return min, max
	}
	min = [3]float64{math.Inf(1), math.Inf(1), math.Inf(1)}
	max = [3]float64{math.Inf(-1), math.Inf(-1), math.Inf(-1)}
	for i := 0; i < m.VertexCount(); i++ {
		v := m.Vertex(i)
		for k := 0; k < 3; k++ {
			min[k] = math.Min(min[k], v[k])
			max[k] = math.Max(max[k], v[k])
		}
	}
	return min, max
}

// Center returns the center of the bounding box.
func (m *Mesh) Center() [3]float64 {
	lo, hi := m.Bounds()
	return [3]float64{(lo[0] + hi[0]) / 2, (lo[1] + hi[1]) / 2, (lo[2] + hi[2]) / 2}
}

// Radius returns the largest distance from the bounding-box center to a vertex.
func (m *Mesh) Radius() float64 {
	c := m.Center()
	var r float64
	for i := 0; i < m.VertexCount(); i++ {
		v := m.Vertex(i)
		dx, dy, dz := v[0]-c[0], v[1]-c[1], v[2]-c[2]
		r = math.Max(r, math.Sqrt(dx*dx+dy*dy+dz*dz))
	}
	return r
}

// Recentered returns a copy translated so the bounding-box center is the origin.
func (m *Mesh) Recentered() *Mesh {
	c := m.Center()
	out := m.clone()
	for i := 0; i < out.VertexCount(); i++ {
		out.Vertices[3*i] -= float32(c[0])
		out.Vertices[3*i+1] -= float32(c[1])
		out.Vertices[3*i+2] -= float32(c[2])
	}
	return out
}

// Scaled returns a copy with every coordinate multiplied by f.
func (m *Mesh) Scaled(f float64) *Mesh {
	out := m.clone()
	for i := range out.Vertices {
		out.Vertices[i] *= float32(f)
	}
	return out
}

func (m *Mesh) clone() *Mesh {
	out := &Mesh{
		Vertices: append([]float32(nil), m.Vertices...),
		Indices:  append([]uint32(nil), m.Indices...),
		Name:     m.Name,
	}
	if len(m.Normals) > 0 {
		out.Normals = append([]float32(nil), m.Normals...)
	}
	return out
}
