package kernel

import (
	"errors"
	"testing"
)

// --- Mesh helper method tests ---

func TestMeshVertexCount(t *testing.T) {
	tests := []struct {
		name     string
		vertices []float32
		want     int
	}{
		{"empty", nil, 0},
		{"one vertex", []float32{1, 2, 3}, 1},
		{"four vertices", []float32{0, 0, 0, 1, 0, 0, 1, 1, 0, 0, 1, 0}, 4},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			m := &Mesh{Vertices: tt.vertices}
			if got := m.VertexCount(); got != tt.want {
				t.Errorf("VertexCount() = %d, want %d", got, tt.want)
			}
		})
	}
}

func TestMeshTriangleCount(t *testing.T) {
	tests := []struct {
		name    string
		indices []uint32
		want    int
	}{
		{"empty", nil, 0},
		{"one triangle", []uint32{0, 1, 2}, 1},
		{"two triangles", []uint32{0, 1, 2, 2, 3, 0}, 2},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			m := &Mesh{Indices: tt.indices}
			if got := m.TriangleCount(); got != tt.want {
				t.Errorf("TriangleCount() = %d, want %d", got, tt.want)
			}
		})
	}
}

// quad is a unit square in the z=1 plane offset from the origin.
func quad() *Mesh {
	return &Mesh{
		Vertices: []float32{1, 1, 1, 3, 1, 1, 3, 5, 1, 1, 5, 1},
		Indices:  []uint32{0, 1, 2, 2, 3, 0},
		Name:     "quad",
	}
}

func TestMeshValidate(t *testing.T) {
	tests := []struct {
		name    string
		mesh    *Mesh
		wantErr bool
	}{
		{"valid", quad(), false},
		{"empty", &Mesh{}, true},
		{"ragged vertices", &Mesh{Vertices: []float32{0, 0, 0, 1}, Indices: []uint32{0, 0, 0}}, true},
		{"ragged indices", &Mesh{Vertices: []float32{0, 0, 0}, Indices: []uint32{0, 0}}, true},
		{"index out of range", &Mesh{Vertices: []float32{0, 0, 0, 1, 1, 1, 2, 2, 2}, Indices: []uint32{0, 1, 3}}, true},
		{"normal count mismatch", &Mesh{Vertices: []float32{0, 0, 0, 1, 1, 1, 2, 2, 2}, Normals: []float32{0, 0, 1}, Indices: []uint32{0, 1, 2}}, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.mesh.Validate()
			if (err != nil) != tt.wantErr {
				t.Errorf("Validate() error = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
	if err := (&Mesh{}).Validate(); !errors.Is(err, ErrEmptyMesh) {
		t.Errorf("empty mesh error = %v, want ErrEmptyMesh", err)
	}
}

func TestMeshBoundsAndCenter(t *testing.T) {
	m := quad()
	min, max := m.Bounds()
	if min != [3]float64{1, 1, 1} || max != [3]float64{3, 5, 1} {
		t.Fatalf("Bounds() = %v %v", min, max)
	}
	if c := m.Center(); c != [3]float64{2, 3, 1} {
		t.Errorf("Center() = %v, want [2 3 1]", c)
	}
}

func TestMeshRecentered(t *testing.T) {
	m := quad()
	r := m.Recentered()
	if c := r.Center(); c != [3]float64{0, 0, 0} {
		t.Errorf("recentered Center() = %v, want origin", c)
	}
	// The source mesh is untouched.
	if c := m.Center(); c != [3]float64{2, 3, 1} {
		t.Errorf("source mesh mutated, Center() = %v", c)
	}
	if r.Name != "quad" || r.TriangleCount() != 2 {
		t.Errorf("recentered mesh lost data: %+v", r)
	}
}

func TestMeshScaledAndRadius(t *testing.T) {
	m := quad().Recentered()
	s := m.Scaled(2)
	_, max := s.Bounds()
	if max != [3]float64{2, 4, 0} {
		t.Errorf("scaled max = %v, want [2 4 0]", max)
	}
	if r := m.Radius(); r < 2.236 || r > 2.237 {
		t.Errorf("Radius() = %f, want sqrt(5)", r)
	}
}

// --- Compile-time interface check with a stub kernel ---

// stubSolid is a minimal Solid implementation for testing.
type stubSolid struct {
	minBB, maxBB [3]float64
}

func (s *stubSolid) BoundingBox() (min, max [3]float64) {
	return s.minBB, s.maxBB
}

// stubKernel is a minimal Kernel implementation that proves the interface
// is satisfiable.
type stubKernel struct{}

func (k *stubKernel) Box(x, y, z float64) Solid {
	return &stubSolid{
		minBB: [3]float64{-x / 2, -y / 2, -z / 2},
		maxBB: [3]float64{x / 2, y / 2, z / 2},
	}
}

func (k *stubKernel) Cylinder(height, radius float64) Solid {
	return &stubSolid{
		minBB: [3]float64{-radius, -radius, -height / 2},
		maxBB: [3]float64{radius, radius, height / 2},
	}
}

func (k *stubKernel) Sphere(radius float64) Solid {
	return &stubSolid{
		minBB: [3]float64{-radius, -radius, -radius},
		maxBB: [3]float64{radius, radius, radius},
	}
}

func (k *stubKernel) Union(a, _ Solid) Solid        { return a }
func (k *stubKernel) Difference(a, _ Solid) Solid   { return a }
func (k *stubKernel) Intersection(a, _ Solid) Solid { return a }

func (k *stubKernel) Translate(s Solid, _, _, _ float64) Solid { return s }
func (k *stubKernel) Rotate(s Solid, _, _, _ float64) Solid    { return s }

func (k *stubKernel) ToMesh(_ Solid) (*Mesh, error) {
	return &Mesh{}, nil
}

var _ Solid = (*stubSolid)(nil)
var _ Kernel = (*stubKernel)(nil)

func TestStubKernelBoxIsCentered(t *testing.T) {
	var k Kernel = &stubKernel{}
	min, max := k.Box(10, 20, 30).BoundingBox()
	if min != [3]float64{-5, -10, -15} {
		t.Errorf("Box min = %v, want [-5 -10 -15]", min)
	}
	if max != [3]float64{5, 10, 15} {
		t.Errorf("Box max = %v, want [5 10 15]", max)
	}
}
