package assemble

import (
	"fmt"
	"math"
	"math/rand/v2"

	"github.com/chazu/datagen/pkg/scene"
	"github.com/go-gl/mathgl/mgl64"
)

// LightPlacement decides the pose delta applied to each new light.
type LightPlacement interface {
	Place(rng *rand.Rand, kind scene.LightKind) mgl64.Mat4
}

// IdentityPlacement leaves every light at the origin, so directional
// lights shine along -Z.
type IdentityPlacement struct{}

// Place returns the identity.
func (IdentityPlacement) Place(*rand.Rand, scene.LightKind) mgl64.Mat4 {
	return mgl64.Ident4()
}

// OrbitPlacement puts each light at a uniformly random point on a sphere
// of the given radius, oriented so its -Z axis faces the origin.
type OrbitPlacement struct {
	Radius float64
}

// Place draws a direction on the sphere and returns the light's pose.
func (o OrbitPlacement) Place(rng *rand.Rand, _ scene.LightKind) mgl64.Mat4 {
	z := 2*rng.Float64() - 1
	phi := 2 * math.Pi * rng.Float64()
	s := math.Sqrt(1 - z*z)
	eye := mgl64.Vec3{s * math.Cos(phi), s * math.Sin(phi), z}.Mul(o.Radius)

	up := mgl64.Vec3{0, 1, 0}
	if math.Abs(eye.Normalize().Dot(up)) > 0.99 {
		up = mgl64.Vec3{1, 0, 0}
	}
	// LookAtV builds world-to-eye; the node pose is its inverse.
	return mgl64.LookAtV(eye, mgl64.Vec3{}, up).Inv()
}

// ParsePlacement maps a configuration name to a strategy.
func ParsePlacement(name string, radius float64) (LightPlacement, error) {
	switch name {
	case "", "identity":
		return IdentityPlacement{}, nil
	case "orbit":
		if radius <= 0 {
			return nil, fmt.Errorf("%w: orbit placement needs a positive radius, got %g", ErrInvalidConfig, radius)
		}
		return OrbitPlacement{Radius: radius}, nil
	default:
		return nil, fmt.Errorf("%w: unknown light placement %q", ErrInvalidConfig, name)
	}
}
