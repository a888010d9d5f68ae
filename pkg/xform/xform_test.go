package xform_test

import (
	"math"
	"testing"

	"github.com/go-gl/mathgl/mgl64"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/chazu/datagen/pkg/xform"
)

type pose struct{ m mgl64.Mat4 }

func (p *pose) Pose() mgl64.Mat4     { return p.m }
func (p *pose) SetPose(m mgl64.Mat4) { p.m = m }

var _ xform.Poser = (*pose)(nil)

func vecNear(a, b mgl64.Vec3, eps float64) bool {
	for i := range a {
		if math.Abs(a[i]-b[i]) > eps {
			return false
		}
	}
	return true
}

func TestRotationIsOrthonormal(t *testing.T) {
	for _, axis := range []xform.Axis{xform.AxisX, xform.AxisY, xform.AxisZ} {
		for _, a := range []float64{-math.Pi, -1.3, -0.5, 0, 0.25, 1, math.Pi / 2, 2 * math.Pi, 7.9} {
			r := xform.Rotation(axis, a)
			assert.True(t, xform.IsOrthonormal(r, 1e-12), "axis %v angle %v", axis, a)
			assert.InDelta(t, 1.0, r.Det(), 1e-12, "axis %v angle %v", axis, a)
			assert.Equal(t, mgl64.Vec4{0, 0, 0, 1}, r.Row(3))
		}
	}
}

func TestRotationZeroIsIdentity(t *testing.T) {
	for _, axis := range []xform.Axis{xform.AxisX, xform.AxisY, xform.AxisZ} {
		assert.Equal(t, mgl64.Ident4(), xform.Rotation(axis, 0), axis.String())
	}
}

func TestRotationRightHanded(t *testing.T) {
	// A quarter turn about z takes +x to +y, about x takes +y to +z,
	// about y takes +z to +x.
	cases := []struct {
		axis     xform.Axis
		in, want mgl64.Vec3
	}{
		{xform.AxisZ, mgl64.Vec3{1, 0, 0}, mgl64.Vec3{0, 1, 0}},
		{xform.AxisX, mgl64.Vec3{0, 1, 0}, mgl64.Vec3{0, 0, 1}},
		{xform.AxisY, mgl64.Vec3{0, 0, 1}, mgl64.Vec3{1, 0, 0}},
	}
	for _, c := range cases {
		t.Run(c.axis.String(), func(t *testing.T) {
			got := mgl64.TransformCoordinate(c.in, xform.Rotation(c.axis, math.Pi/2))
			assert.True(t, vecNear(got, c.want, 1e-12), "got %v want %v", got, c.want)
		})
	}
}

func TestTranslation(t *testing.T) {
	m := xform.Translation(1, -2, 3)
	assert.Equal(t, mgl64.Vec3{1, -2, 3}, xform.Position(m))
	got := mgl64.TransformCoordinate(mgl64.Vec3{1, 1, 1}, m)
	assert.Equal(t, mgl64.Vec3{2, -1, 4}, got)
}

func TestApplyLeftMultiplies(t *testing.T) {
	p := &pose{m: xform.Translation(0, 0, 2)}
	r := xform.Rotation(xform.AxisY, math.Pi/2)
	xform.Apply(p, r)
	// Rotating a node already moved along +z swings it onto +x: the delta
	// acts in the parent frame.
	assert.True(t, vecNear(xform.Position(p.m), mgl64.Vec3{2, 0, 0}, 1e-12), "got %v", xform.Position(p.m))
}

func TestApplyOrderIsNotCommutative(t *testing.T) {
	rot := xform.Rotation(xform.AxisX, 0.7)
	tr := xform.Translation(0.3, 0.5, 1.2)

	a := &pose{m: mgl64.Ident4()}
	xform.Apply(a, rot)
	xform.Apply(a, tr)

	b := &pose{m: mgl64.Ident4()}
	xform.Apply(b, tr)
	xform.Apply(b, rot)

	assert.False(t, xform.ApproxEqual(a.m, b.m, 1e-9), "rotate-then-translate must differ from translate-then-rotate")
	assert.True(t, xform.ApproxEqual(a.m, tr.Mul4(rot), 1e-12))
	assert.True(t, xform.ApproxEqual(b.m, rot.Mul4(tr), 1e-12))
}

func TestCompose(t *testing.T) {
	rot := xform.Rotation(xform.AxisZ, 0.4)
	tr := xform.Translation(1, 2, 3)

	p := &pose{m: mgl64.Ident4()}
	xform.Apply(p, rot)
	xform.Apply(p, tr)

	assert.True(t, xform.ApproxEqual(xform.Compose(rot, tr), p.m, 1e-12))
	assert.Equal(t, mgl64.Ident4(), xform.Compose())
}

func TestParseAxis(t *testing.T) {
	for _, s := range []string{"x", "y", "z"} {
		a, err := xform.ParseAxis(s)
		require.NoError(t, err)
		assert.Equal(t, s, a.String())
	}
	_, err := xform.ParseAxis("w")
	assert.Error(t, err)
	assert.Equal(t, "unknown", xform.Axis(9).String())
	assert.Equal(t, mgl64.Ident4(), xform.Rotation(xform.Axis(9), 1))
}
