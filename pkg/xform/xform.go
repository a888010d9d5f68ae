// Package xform holds the homogeneous transform helpers used to pose scene
// nodes. Angles are radians. Poses compose by left multiplication: applying
// delta to a node stores delta·pose, so every delta acts in the node's
// parent frame.
package xform

import (
	"fmt"
	"math"

	"github.com/go-gl/mathgl/mgl64"
)

// Axis selects one of the three coordinate axes.
type Axis int

const (
	AxisX Axis = iota
	AxisY
	AxisZ
)

func (a Axis) String() string {
	switch a {
	case AxisX:
		return "x"
	case AxisY:
		return "y"
	case AxisZ:
		return "z"
	default:
		return "unknown"
	}
}

// ParseAxis converts "x", "y" or "z" to an Axis.
func ParseAxis(s string) (Axis, error) {
	switch s {
	case "x", "X":
		return AxisX, nil
	case "y", "Y":
		return AxisY, nil
	case "z", "Z":
		return AxisZ, nil
	}
	return 0, fmt.Errorf("xform: invalid axis %q, expected x, y, or z", s)
}

// Rotation returns the right-handed rotation by angle about axis.
// An unknown axis yields the identity.
func Rotation(axis Axis, angle float64) mgl64.Mat4 {
	switch axis {
	case AxisX:
		return mgl64.HomogRotate3DX(angle)
	case AxisY:
		return mgl64.HomogRotate3DY(angle)
	case AxisZ:
		return mgl64.HomogRotate3DZ(angle)
	}
	return mgl64.Ident4()
}

// Translation returns the translation by (dx, dy, dz).
func Translation(dx, dy, dz float64) mgl64.Mat4 {
	return mgl64.Translate3D(dx, dy, dz)
}

// Poser is anything holding a pose that may be replaced.
type Poser interface {
	Pose() mgl64.Mat4
	SetPose(mgl64.Mat4)
}

// Apply composes delta onto the current pose of n (delta·pose) and stores
// the result.
func Apply(n Poser, delta mgl64.Mat4) {
	n.SetPose(delta.Mul4(n.Pose()))
}

// Compose multiplies deltas in application order: Compose(a, b) is the
// transform that applies a first, then b, i.e. b·a.
func Compose(deltas ...mgl64.Mat4) mgl64.Mat4 {
	m := mgl64.Ident4()
	for _, d := range deltas {
		m = d.Mul4(m)
	}
	return m
}

// IsOrthonormal reports whether the upper 3x3 block of m satisfies
// RᵗR = I within an absolute tolerance eps.
func IsOrthonormal(m mgl64.Mat4, eps float64) bool {
	r := m.Mat3()
	p := r.Transpose().Mul3(r)
	id := mgl64.Ident3()
	for i := range p {
		if math.Abs(p[i]-id[i]) > eps {
			return false
		}
	}
	return true
}

// ApproxEqual compares two matrices element-wise with an absolute
// tolerance. mgl64's own comparison is relative and rejects tiny residues
// next to exact zeros.
func ApproxEqual(a, b mgl64.Mat4, eps float64) bool {
	for i := range a {
		if math.Abs(a[i]-b[i]) > eps {
			return false
		}
	}
	return true
}

// Position returns the translation column of a pose.
func Position(m mgl64.Mat4) mgl64.Vec3 {
	return m.Col(3).Vec3()
}
