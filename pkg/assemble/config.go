package assemble

import (
	"errors"
	"fmt"
	"math"
	"math/rand/v2"

	"github.com/chazu/datagen/pkg/scene"
	"github.com/go-gl/mathgl/mgl64"
)

// IntRange is a half-open integer range [Min, Max).
type IntRange struct {
	Min int `json:"min"`
	Max int `json:"max"`
}

// Draw returns a uniform integer in [Min, Max).
func (r IntRange) Draw(rng *rand.Rand) int {
	return r.Min + rng.IntN(r.Max-r.Min)
}

// FloatRange is a closed-open range [Min, Max).
type FloatRange struct {
	Min float64 `json:"min"`
	Max float64 `json:"max"`
}

// Draw returns a uniform value in [Min, Max). An empty range returns Min.
func (r FloatRange) Draw(rng *rand.Rand) float64 {
	return r.Min + rng.Float64()*(r.Max-r.Min)
}

// Config controls how random scenes are drawn.
type Config struct {
	DirectionalLights IntRange
	PointLights       IntRange
	LightColor        mgl64.Vec3
	LightIntensity    float64
	Placement         LightPlacement

	YFov  float64 // radians
	ZNear float64
	ZFar  float64
	// Tilt bounds the camera's Y and X rotations to [-Tilt, Tilt].
	Tilt     float64
	Distance FloatRange
}

// DefaultConfig returns the stock scene distribution: one to three lights
// of each kind, a 60 degree camera tilted by at most half a radian and
// placed between half a unit and one and a half units from the model.
func DefaultConfig() Config {
	return Config{
		DirectionalLights: IntRange{Min: 1, Max: 4},
		PointLights:       IntRange{Min: 1, Max: 4},
		LightColor:        scene.White,
		LightIntensity:    scene.DefaultIntensity,
		Placement:         IdentityPlacement{},
		YFov:              math.Pi / 3,
		ZNear:             scene.DefaultZNear,
		ZFar:              scene.DefaultZFar,
		Tilt:              0.5,
		Distance:          FloatRange{Min: 0.5, Max: 1.5},
	}
}

// ErrInvalidConfig is wrapped by every Validate failure.
var ErrInvalidConfig = errors.New("assemble: invalid config")

// Validate checks ranges and camera parameters.
func (c Config) Validate() error {
	for name, r := range map[string]IntRange{"directional": c.DirectionalLights, "point": c.PointLights} {
		if r.Min < 0 || r.Max <= r.Min {
			return fmt.Errorf("%w: %s light range [%d,%d) is empty", ErrInvalidConfig, name, r.Min, r.Max)
		}
	}
	if c.LightIntensity < 0 {
		return fmt.Errorf("%w: negative light intensity %g", ErrInvalidConfig, c.LightIntensity)
	}
	if c.YFov <= 0 || c.YFov >= math.Pi {
		return fmt.Errorf("%w: yfov %g outside (0, pi)", ErrInvalidConfig, c.YFov)
	}
	if c.ZNear <= 0 || c.ZFar <= c.ZNear {
		return fmt.Errorf("%w: clip planes near=%g far=%g", ErrInvalidConfig, c.ZNear, c.ZFar)
	}
	if c.Tilt < 0 {
		return fmt.Errorf("%w: negative tilt %g", ErrInvalidConfig, c.Tilt)
	}
	if c.Distance.Max < c.Distance.Min || c.Distance.Min <= c.ZNear {
		return fmt.Errorf("%w: distance range [%g,%g) must lie beyond znear %g",
			ErrInvalidConfig, c.Distance.Min, c.Distance.Max, c.ZNear)
	}
	return nil
}

// MinLights is the fewest lights a scene drawn from c can hold.
func (c Config) MinLights() int {
	return c.DirectionalLights.Min + c.PointLights.Min
}
