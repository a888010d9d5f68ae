//go:build manifold

package manifold

import (
	"errors"
	"math"
	"testing"
)

func mustNew(t *testing.T) *Kernel {
	t.Helper()
	k, err := New(32)
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	return k
}

func near(a, b float64) bool { return math.Abs(a-b) < 1e-6 }

func TestBoxIsCentered(t *testing.T) {
	k := mustNew(t)
	min, max := k.Box(0.1, 0.05, 0.02).BoundingBox()
	want := [3]float64{0.05, 0.025, 0.01}
	for i := range want {
		if !near(min[i], -want[i]) || !near(max[i], want[i]) {
			t.Errorf("axis %d: bounds [%g, %g], want ±%g", i, min[i], max[i], want[i])
		}
	}
}

func TestCylinderAlongZ(t *testing.T) {
	k := mustNew(t)
	min, max := k.Cylinder(0.2, 0.05).BoundingBox()
	if !near(min[2], -0.1) || !near(max[2], 0.1) {
		t.Errorf("z bounds [%g, %g], want ±0.1", min[2], max[2])
	}
	for i := 0; i < 2; i++ {
		if min[i] > -0.045 || max[i] < 0.045 {
			t.Errorf("axis %d: bounds [%g, %g] narrower than the radius", i, min[i], max[i])
		}
	}
}

func TestSphere(t *testing.T) {
	k := mustNew(t)
	min, max := k.Sphere(0.5).BoundingBox()
	for i := 0; i < 3; i++ {
		if min[i] < -0.5-1e-6 || max[i] > 0.5+1e-6 || max[i] < 0.45 {
			t.Errorf("axis %d: bounds [%g, %g]", i, min[i], max[i])
		}
	}
}

func TestDifferenceKeepsOuterBounds(t *testing.T) {
	k := mustNew(t)
	s := k.Difference(k.Box(1, 1, 1), k.Cylinder(2, 0.3))
	min, max := s.BoundingBox()
	for i := 0; i < 3; i++ {
		if !near(min[i], -0.5) || !near(max[i], 0.5) {
			t.Errorf("axis %d: bounds [%g, %g], want ±0.5", i, min[i], max[i])
		}
	}
}

func TestTranslateAndRotate(t *testing.T) {
	k := mustNew(t)
	min, max := k.Translate(k.Box(1, 1, 1), 1, 2, 3).BoundingBox()
	if !near(min[0], 0.5) || !near(max[2], 3.5) {
		t.Errorf("translated bounds %v..%v", min, max)
	}

	min, max = k.Rotate(k.Box(1, 2, 4), 90, 0, 0).BoundingBox()
	if !near(max[1], 2) || !near(max[2], 1) {
		t.Errorf("rotated bounds %v..%v, want y ±2 and z ±1", min, max)
	}
}

func TestToMesh(t *testing.T) {
	k := mustNew(t)
	m, err := k.ToMesh(k.Box(1, 1, 1))
	if err != nil {
		t.Fatalf("ToMesh() error = %v", err)
	}
	if m.TriangleCount() < 12 || m.VertexCount() < 8 {
		t.Errorf("box mesh has %d vertices, %d triangles", m.VertexCount(), m.TriangleCount())
	}
	if len(m.Normals) != 0 && len(m.Normals) != len(m.Vertices) {
		t.Errorf("%d normals for %d vertex floats", len(m.Normals), len(m.Vertices))
	}
}

func TestToMeshEmpty(t *testing.T) {
	k := mustNew(t)
	_, err := k.ToMesh(k.Difference(k.Box(1, 1, 1), k.Box(2, 2, 2)))
	if !errors.Is(err, ErrEmptySolid) {
		t.Fatalf("ToMesh() error = %v, want ErrEmptySolid", err)
	}
}
