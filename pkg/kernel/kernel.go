// Package kernel defines the abstract geometry kernel used to build
// procedural models, and the Mesh type every model is stored as.
// Implementations (sdfx) provide solid modeling behind the Kernel
// interface so model recipes never depend on a particular backend.
package kernel

// Solid is an opaque handle to a geometry kernel solid.
// Implementations wrap their internal representation.
type Solid interface {
	// BoundingBox returns the axis-aligned bounding box.
	BoundingBox() (min, max [3]float64)
}

// Kernel is the abstract geometry kernel interface.
// Primitives are centered on the origin so that a model built from a
// single primitive already satisfies the scene's centered-model invariant.
type Kernel interface {
	// Primitives
	Box(x, y, z float64) Solid
	Cylinder(height, radius float64) Solid
	Sphere(radius float64) Solid

	// Boolean operations
	Union(a, b Solid) Solid
	Difference(a, b Solid) Solid
	Intersection(a, b Solid) Solid

	// Transforms
	Translate(s Solid, x, y, z float64) Solid
	Rotate(s Solid, x, y, z float64) Solid // Euler angles in degrees, applied X then Y then Z

	// Mesh output
	ToMesh(s Solid) (*Mesh, error)
}
