//go:build manifold

// Package manifold is a recipe kernel backed by the Manifold C library
// (https://github.com/elalish/manifold). Booleans are exact on meshes, so
// recipes keep sharp edges that marching cubes would round off.
//
// Requires manifoldc. Build with: go build -tags=manifold
package manifold

/*
#cgo CFLAGS: -I/usr/local/include
#cgo LDFLAGS: -L/usr/local/lib -lmanifoldc

#include <stdlib.h>
#include <manifold/manifoldc.h>
*/
import "C"

import (
	"errors"
	"fmt"
	"runtime"
	"unsafe"

	"github.com/chazu/datagen/pkg/kernel"
)

// Available reports whether this build links manifoldc.
const Available = true

// ErrUnavailable is returned by New in builds without the manifold tag.
var ErrUnavailable = errors.New("manifold kernel not available: build with -tags=manifold")

// DefaultSegments is the circular resolution of cylinders and spheres.
const DefaultSegments = 64

var _ kernel.Kernel = (*Kernel)(nil)
var _ kernel.Solid = (*solid)(nil)

type solid struct {
	ptr *C.ManifoldManifold
}

func (s *solid) BoundingBox() (min, max [3]float64) {
	bbox := C.manifold_bounding_box(C.manifold_alloc_box(), s.ptr)
	defer C.manifold_delete_box(bbox)

	min = [3]float64{
		float64(C.manifold_box_min_x(bbox)),
		float64(C.manifold_box_min_y(bbox)),
		float64(C.manifold_box_min_z(bbox)),
	}
	max = [3]float64{
		float64(C.manifold_box_max_x(bbox)),
		float64(C.manifold_box_max_y(bbox)),
		float64(C.manifold_box_max_z(bbox)),
	}
	return min, max
}

// newSolid takes ownership of ptr; the finalizer frees it.
func newSolid(ptr *C.ManifoldManifold) *solid {
	s := &solid{ptr: ptr}
	runtime.SetFinalizer(s, func(s *solid) {
		if s.ptr != nil {
			C.manifold_delete_manifold(s.ptr)
			s.ptr = nil
		}
	})
	return s
}

func unwrap(s kernel.Solid) *C.ManifoldManifold {
	return s.(*solid).ptr
}

// Kernel implements kernel.Kernel with Manifold.
type Kernel struct {
	segments int
}

// New returns a Kernel using segments for curved primitives.
// Non-positive values select DefaultSegments.
func New(segments int) (*Kernel, error) {
	if segments <= 0 {
		segments = DefaultSegments
	}
	return &Kernel{segments: segments}, nil
}

func (k *Kernel) Box(x, y, z float64) kernel.Solid {
	return newSolid(C.manifold_cube(C.manifold_alloc_manifold(),
		C.double(x), C.double(y), C.double(z), C.int(1)))
}

// Cylinder is centered on the origin along Z.
func (k *Kernel) Cylinder(height, radius float64) kernel.Solid {
	return newSolid(C.manifold_cylinder(C.manifold_alloc_manifold(),
		C.double(height), C.double(radius), C.double(radius),
		C.int(k.segments), C.int(1)))
}

func (k *Kernel) Sphere(radius float64) kernel.Solid {
	return newSolid(C.manifold_sphere(C.manifold_alloc_manifold(),
		C.double(radius), C.int(k.segments)))
}

func (k *Kernel) Union(a, b kernel.Solid) kernel.Solid {
	return newSolid(C.manifold_union(C.manifold_alloc_manifold(), unwrap(a), unwrap(b)))
}

func (k *Kernel) Difference(a, b kernel.Solid) kernel.Solid {
	return newSolid(C.manifold_difference(C.manifold_alloc_manifold(), unwrap(a), unwrap(b)))
}

func (k *Kernel) Intersection(a, b kernel.Solid) kernel.Solid {
	return newSolid(C.manifold_intersection(C.manifold_alloc_manifold(), unwrap(a), unwrap(b)))
}

func (k *Kernel) Translate(s kernel.Solid, x, y, z float64) kernel.Solid {
	return newSolid(C.manifold_translate(C.manifold_alloc_manifold(), unwrap(s),
		C.double(x), C.double(y), C.double(z)))
}

// Rotate applies Euler angles in degrees, X then Y then Z.
func (k *Kernel) Rotate(s kernel.Solid, x, y, z float64) kernel.Solid {
	return newSolid(C.manifold_rotate(C.manifold_alloc_manifold(), unwrap(s),
		C.double(x), C.double(y), C.double(z)))
}

// ErrEmptySolid is returned when a recipe reduces to nothing, for
// example a difference that removes the whole body.
var ErrEmptySolid = errors.New("manifold: empty solid")

// ToMesh copies the solid's MeshGL. Positions are the first three vertex
// properties; normals are kept when MeshGL carries them.
func (k *Kernel) ToMesh(s kernel.Solid) (*kernel.Mesh, error) {
	meshGL := C.manifold_get_meshgl(C.manifold_alloc_meshgl(), unwrap(s))
	defer C.manifold_delete_meshgl(meshGL)

	numVert := int(C.manifold_meshgl_num_vert(meshGL))
	numTri := int(C.manifold_meshgl_num_tri(meshGL))
	if numVert == 0 || numTri == 0 {
		return nil, ErrEmptySolid
	}
	numProp := int(C.manifold_meshgl_num_prop(meshGL))
	if numProp < 3 {
		return nil, fmt.Errorf("manifold: %d vertex properties, need at least 3", numProp)
	}

	props := make([]float32, numVert*numProp)
	C.manifold_meshgl_vert_properties((*C.float)(unsafe.Pointer(&props[0])), meshGL)
	indices := make([]uint32, numTri*3)
	C.manifold_meshgl_tri_verts((*C.uint32_t)(unsafe.Pointer(&indices[0])), meshGL)

	m := &kernel.Mesh{Vertices: make([]float32, numVert*3), Indices: indices}
	if numProp >= 6 {
		m.Normals = make([]float32, numVert*3)
	}
	for i := 0; i < numVert; i++ {
		p := props[i*numProp:]
		copy(m.Vertices[i*3:i*3+3], p[:3])
		if m.Normals != nil {
			copy(m.Normals[i*3:i*3+3], p[3:6])
		}
	}
	return m, m.Validate()
}
