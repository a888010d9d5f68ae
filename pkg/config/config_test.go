package config

import (
	"bytes"
	"math"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/chazu/datagen/pkg/assemble"
	"github.com/chazu/datagen/pkg/label"
	"github.com/chazu/datagen/pkg/mix"
	"github.com/chazu/datagen/pkg/persist"
	"github.com/go-gl/mathgl/mgl64"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func valid() Config {
	c := Default()
	c.Model.Path = "model.obj"
	return c
}

func TestDefaultMatchesAssembler(t *testing.T) {
	c := valid()
	require.NoError(t, c.Validate())

	a, err := c.AssemblerConfig()
	require.NoError(t, err)
	want := assemble.DefaultConfig()
	assert.Equal(t, want.DirectionalLights, a.DirectionalLights)
	assert.Equal(t, want.PointLights, a.PointLights)
	assert.Equal(t, want.LightColor, a.LightColor)
	assert.Equal(t, want.LightIntensity, a.LightIntensity)
	assert.Equal(t, want.Distance, a.Distance)
	assert.InDelta(t, math.Pi/3, a.YFov, 1e-12)
	assert.IsType(t, assemble.IdentityPlacement{}, a.Placement)
}

func TestDecodeOverridesDefaults(t *testing.T) {
	src := `
[run]
images = 12000
seed = 42

[model]
path = "assets/rect.recipe"
class = "rect"
color = [0.5, 0.25, 1.0]

[camera]
tilt = 0.25
distance = [0.3, 0.6]

[lights]
point = [0, 2]
placement = "orbit"
orbit_radius = 3.0

[background]
method = "noise"
`
	c, err := Decode(strings.NewReader(src))
	require.NoError(t, err)
	require.NoError(t, c.Validate())

	assert.Equal(t, 12000, c.Run.Images)
	assert.Equal(t, uint64(42), c.Run.Seed)
	assert.Equal(t, 5, c.Run.MaxRetries, "unset keys keep defaults")
	assert.Equal(t, "rect", c.Model.Class)
	assert.Equal(t, 640, c.Render.Width)

	a, err := c.AssemblerConfig()
	require.NoError(t, err)
	assert.Equal(t, 0.25, a.Tilt)
	assert.Equal(t, assemble.FloatRange{Min: 0.3, Max: 0.6}, a.Distance)
	assert.Equal(t, assemble.IntRange{Min: 0, Max: 2}, a.PointLights)
	assert.Equal(t, assemble.OrbitPlacement{Radius: 3}, a.Placement)

	lo := c.LoadOptions()
	require.NotNil(t, lo.Color)
	assert.Equal(t, mgl64.Vec3{0.5, 0.25, 1}, *lo.Color)
	assert.True(t, lo.Recenter)

	m, err := c.MixOptions()
	require.NoError(t, err)
	assert.Equal(t, mix.Noise, m.Method)
}

func TestDecodeRejectsUnknownKeys(t *testing.T) {
	_, err := Decode(strings.NewReader("[run]\nimagez = 3\n"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "imagez")
}

func TestDecodeRejectsMalformed(t *testing.T) {
	_, err := Decode(strings.NewReader("[run\nimages = 3"))
	assert.Error(t, err)
}

func TestLoad(t *testing.T) {
	path := filepath.Join(t.TempDir(), "datagen.toml")
	require.NoError(t, os.WriteFile(path, []byte("[model]\npath = \"a.obj\"\n"), 0o644))
	c, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, "a.obj", c.Model.Path)

	_, err = Load(filepath.Join(t.TempDir(), "missing.toml"))
	assert.Error(t, err)
}

func TestEncodeRoundTrip(t *testing.T) {
	c := valid()
	c.Model.Color = []float64{0.1, 0.2, 0.3}
	var buf bytes.Buffer
	require.NoError(t, c.Encode(&buf))

	back, err := Decode(&buf)
	require.NoError(t, err)
	assert.Equal(t, c, back)
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Config)
	}{
		{"no images", func(c *Config) { c.Run.Images = 0 }},
		{"negative retries", func(c *Config) { c.Run.MaxRetries = -1 }},
		{"val fraction one", func(c *Config) { c.Run.ValFraction = 1 }},
		{"negative progress", func(c *Config) { c.Run.ProgressEvery = -1 }},
		{"no model", func(c *Config) { c.Model.Path = "" }},
		{"class with space", func(c *Config) { c.Model.Class = "two words" }},
		{"zero scale", func(c *Config) { c.Model.Scale = 0 }},
		{"negative cells", func(c *Config) { c.Model.MeshCells = -3 }},
		{"unknown kernel", func(c *Config) { c.Model.Kernel = "cgal" }},
		{"short color", func(c *Config) { c.Model.Color = []float64{1, 1} }},
		{"color out of range", func(c *Config) { c.Model.Color = []float64{1, 2, 1} }},
		{"no root", func(c *Config) { c.Output.Root = "" }},
		{"bad size", func(c *Config) { c.Render.Height = 0 }},
		{"bad ambient", func(c *Config) { c.Render.Ambient = 1.5 }},
		{"bad box format", func(c *Config) { c.Labels.BoxFormat = "coco" }},
		{"bad image format", func(c *Config) { c.Output.ImageFormat = "gif" }},
		{"bad background", func(c *Config) { c.Background.Method = "plasma" }},
		{"images without dir", func(c *Config) { c.Background.Method = "images" }},
		{"bad jitter", func(c *Config) { c.Background.Jitter = -0.1 }},
		{"empty light range", func(c *Config) { c.Lights.Directional = [2]int{2, 2} }},
		{"negative light color", func(c *Config) { c.Lights.Color = [3]float64{-1, 0, 0} }},
		{"bad placement", func(c *Config) { c.Lights.Placement = "spiral" }},
		{"orbit without radius", func(c *Config) { c.Lights.Placement = "orbit" }},
		{"fov too wide", func(c *Config) { c.Camera.YFov = 4 }},
		{"distance inside near plane", func(c *Config) { c.Camera.Distance = [2]float64{0.01, 1} }},
		{"negative preview", func(c *Config) { c.Preview.Count = -1 }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := valid()
			tt.mutate(&c)
			assert.ErrorIs(t, c.Validate(), ErrInvalid)
		})
	}
}

func TestFormatConverters(t *testing.T) {
	c := valid()
	c.Labels.BoxFormat = "absolute"
	c.Output.ImageFormat = "png"

	f, err := c.LabelFormat()
	require.NoError(t, err)
	assert.Equal(t, label.Absolute, f)

	img, err := c.ImageFormat()
	require.NoError(t, err)
	assert.Equal(t, persist.PNG, img)

	assert.Equal(t, c.Render.Ambient, c.RasterOptions().Ambient)
	assert.Nil(t, c.LoadOptions().Color)
}
