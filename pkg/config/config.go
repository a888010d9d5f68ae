// Package config loads datagen run configuration from TOML.
//
// A file only needs the keys it changes; everything else keeps the value
// from Default. Unknown keys are rejected so typos fail loudly.
package config

import (
	"errors"
	"fmt"
	"io"
	"math"
	"os"
	"strings"

	"github.com/chazu/datagen/pkg/assemble"
	"github.com/chazu/datagen/pkg/asset"
	"github.com/chazu/datagen/pkg/kernel/sdfx"
	"github.com/chazu/datagen/pkg/label"
	"github.com/chazu/datagen/pkg/mix"
	"github.com/chazu/datagen/pkg/persist"
	"github.com/chazu/datagen/pkg/render/raster"
	"github.com/go-gl/mathgl/mgl64"
	"github.com/pelletier/go-toml/v2"
)

// Config is the full run configuration.
type Config struct {
	Run        Run        `toml:"run" json:"run"`
	Model      Model      `toml:"model" json:"model"`
	Output     Output     `toml:"output" json:"output"`
	Labels     Labels     `toml:"labels" json:"labels"`
	Render     Render     `toml:"render" json:"render"`
	Camera     Camera     `toml:"camera" json:"camera"`
	Lights     Lights     `toml:"lights" json:"lights"`
	Background Background `toml:"background" json:"background"`
	Preview    Preview    `toml:"preview" json:"preview"`
}

type Run struct {
	Images int `toml:"images" json:"images"`
	// Seed 0 draws a seed from the clock; the seed used is recorded.
	Seed          uint64  `toml:"seed" json:"seed"`
	MaxRetries    int     `toml:"max_retries" json:"max_retries"`
	ValFraction   float64 `toml:"val_fraction" json:"val_fraction"`
	ProgressEvery int     `toml:"progress_every" json:"progress_every"`
}

type Model struct {
	Path      string    `toml:"path" json:"path"`
	Class     string    `toml:"class" json:"class"`
	Scale     float64   `toml:"scale" json:"scale"`
	Recenter  bool      `toml:"recenter" json:"recenter"`
	Kernel    string    `toml:"kernel" json:"kernel"` // recipe kernel: sdfx or manifold
	MeshCells int       `toml:"mesh_cells" json:"mesh_cells"`
	Color     []float64 `toml:"color" json:"color,omitempty"` // overrides the file's material
}

type Output struct {
	Root        string `toml:"root" json:"root"`
	ImageDir    string `toml:"image_dir" json:"image_dir"`
	DepthDir    string `toml:"depth_dir" json:"depth_dir"`
	BoxDir      string `toml:"box_dir" json:"box_dir"`
	MaskDir     string `toml:"mask_dir" json:"mask_dir"`
	PreviewDir  string `toml:"preview_dir" json:"preview_dir"`
	ImageFormat string `toml:"image_format" json:"image_format"`
	CreateDirs  bool   `toml:"create_dirs" json:"create_dirs"`
}

type Labels struct {
	Depth     bool   `toml:"depth" json:"depth"`
	Box       bool   `toml:"box" json:"box"`
	BoxFormat string `toml:"box_format" json:"box_format"`
	Mask      bool   `toml:"mask" json:"mask"`
}

type Render struct {
	Width   int     `toml:"width" json:"width"`
	Height  int     `toml:"height" json:"height"`
	Ambient float64 `toml:"ambient" json:"ambient"`
}

// Camera angles are radians; distances are model units.
type Camera struct {
	YFov     float64    `toml:"yfov" json:"yfov"`
	Tilt     float64    `toml:"tilt" json:"tilt"`
	Distance [2]float64 `toml:"distance" json:"distance"`
	ZNear    float64    `toml:"znear" json:"znear"`
	ZFar     float64    `toml:"zfar" json:"zfar"`
}

// Lights counts are half-open ranges [min, max).
type Lights struct {
	Directional [2]int     `toml:"directional" json:"directional"`
	Point       [2]int     `toml:"point" json:"point"`
	Intensity   float64    `toml:"intensity" json:"intensity"`
	Color       [3]float64 `toml:"color" json:"color"`
	Placement   string     `toml:"placement" json:"placement"`
	OrbitRadius float64    `toml:"orbit_radius" json:"orbit_radius"`
}

type Background struct {
	Method     string  `toml:"method" json:"method"`
	ImagesDir  string  `toml:"images_dir" json:"images_dir"`
	Monochrome bool    `toml:"monochrome" json:"monochrome"`
	Grain      int     `toml:"grain" json:"grain"`
	Jitter     float64 `toml:"jitter" json:"jitter"`
}

type Preview struct {
	Count int `toml:"count" json:"count"`
}

// Default returns the stock configuration: 100 YOLO-labeled 640x480 JPEGs
// with randomly mixed backgrounds, 10% held out for validation.
func Default() Config {
	a := assemble.DefaultConfig()
	return Config{
		Run: Run{Images: 100, MaxRetries: 5, ValFraction: 0.1, ProgressEvery: 10},
		Model: Model{
			Class: "0", Scale: 1, Recenter: true, Kernel: asset.KernelSDFX, MeshCells: sdfx.DefaultMeshCells,
		},
		Output: Output{
			Root: "out", ImageDir: "images", DepthDir: "depth", BoxDir: "labels",
			MaskDir: "masks", PreviewDir: "preview", ImageFormat: "jpg", CreateDirs: true,
		},
		Labels: Labels{Box: true, BoxFormat: "yolo"},
		Render: Render{Width: 640, Height: 480, Ambient: raster.DefaultAmbient},
		Camera: Camera{
			YFov: a.YFov, Tilt: a.Tilt,
			Distance: [2]float64{a.Distance.Min, a.Distance.Max},
			ZNear:    a.ZNear, ZFar: a.ZFar,
		},
		Lights: Lights{
			Directional: [2]int{a.DirectionalLights.Min, a.DirectionalLights.Max},
			Point:       [2]int{a.PointLights.Min, a.PointLights.Max},
			Intensity:   a.LightIntensity,
			Color:       [3]float64(a.LightColor),
			Placement:   "identity",
		},
		Background: Background{Method: "random_mix", Grain: 4, Jitter: 0.2},
		Preview:    Preview{Count: 3},
	}
}

// Load reads path over Default.
func Load(path string) (Config, error) {
	f, err := os.Open(path)
	if err != nil {
		return Config{}, fmt.Errorf("config: %w", err)
	}
	defer f.Close()
	cfg, err := Decode(f)
	if err != nil {
		return Config{}, fmt.Errorf("config: %s: %w", path, err)
	}
	return cfg, nil
}

// Decode reads TOML from r over Default.
func Decode(r io.Reader) (Config, error) {
	cfg := Default()
	if err := toml.NewDecoder(r).DisallowUnknownFields().Decode(&cfg); err != nil {
		var strict *toml.StrictMissingError
		if errors.As(err, &strict) {
			return Config{}, fmt.Errorf("unknown keys:\n%s", strict.String())
		}
		return Config{}, err
	}
	return cfg, nil
}

// Encode writes cfg as TOML.
func (c Config) Encode(w io.Writer) error {
	return toml.NewEncoder(w).Encode(c)
}

// ErrInvalid is wrapped by every Validate failure.
var ErrInvalid = errors.New("config: invalid")

func invalid(format string, args ...any) error {
	return fmt.Errorf("%w: "+format, append([]any{ErrInvalid}, args...)...)
}

// Validate checks every section, including the values only the
// converters interpret.
func (c Config) Validate() error {
	switch {
	case c.Run.Images <= 0:
		return invalid("run.images must be positive, got %d", c.Run.Images)
	case c.Run.MaxRetries < 0:
		return invalid("run.max_retries must not be negative")
	case c.Run.ValFraction < 0 || c.Run.ValFraction >= 1:
		return invalid("run.val_fraction %g outside [0,1)", c.Run.ValFraction)
	case c.Run.ProgressEvery < 0:
		return invalid("run.progress_every must not be negative")
	case c.Model.Path == "":
		return invalid("model.path is required")
	case c.Model.Class == "" || strings.ContainsAny(c.Model.Class, " \t\n"):
		return invalid("model.class %q must be a non-empty word", c.Model.Class)
	case c.Model.Scale <= 0:
		return invalid("model.scale must be positive, got %g", c.Model.Scale)
	case c.Model.MeshCells < 0:
		return invalid("model.mesh_cells must not be negative")
	case len(c.Model.Color) != 0 && len(c.Model.Color) != 3:
		return invalid("model.color needs 3 components, got %d", len(c.Model.Color))
	case c.Output.Root == "":
		return invalid("output.root is required")
	case c.Render.Width <= 0 || c.Render.Height <= 0:
		return invalid("render size %dx%d", c.Render.Width, c.Render.Height)
	case c.Render.Ambient < 0 || c.Render.Ambient > 1:
		return invalid("render.ambient %g outside [0,1]", c.Render.Ambient)
	case c.Preview.Count < 0:
		return invalid("preview.count must not be negative")
	}
	for _, v := range c.Model.Color {
		if v < 0 || v > 1 {
			return invalid("model.color component %g outside [0,1]", v)
		}
	}
	for _, v := range c.Lights.Color {
		if v < 0 || math.IsNaN(v) {
			return invalid("lights.color component %g is negative", v)
		}
	}
	if err := asset.CheckKernel(c.Model.Kernel); err != nil {
		return invalid("model.kernel: %v", err)
	}
	if _, err := c.LabelFormat(); err != nil {
		return invalid("%v", err)
	}
	if _, err := c.ImageFormat(); err != nil {
		return invalid("%v", err)
	}
	if _, err := c.MixOptions(); err != nil {
		return invalid("%v", err)
	}
	if _, err := c.AssemblerConfig(); err != nil {
		return invalid("%v", err)
	}
	return nil
}

// AssemblerConfig converts the camera and lights sections.
func (c Config) AssemblerConfig() (assemble.Config, error) {
	placement, err := assemble.ParsePlacement(c.Lights.Placement, c.Lights.OrbitRadius)
	if err != nil {
		return assemble.Config{}, err
	}
	a := assemble.Config{
		DirectionalLights: assemble.IntRange{Min: c.Lights.Directional[0], Max: c.Lights.Directional[1]},
		PointLights:       assemble.IntRange{Min: c.Lights.Point[0], Max: c.Lights.Point[1]},
		LightColor:        mgl64.Vec3(c.Lights.Color),
		LightIntensity:    c.Lights.Intensity,
		Placement:         placement,
		YFov:              c.Camera.YFov,
		ZNear:             c.Camera.ZNear,
		ZFar:              c.Camera.ZFar,
		Tilt:              c.Camera.Tilt,
		Distance:          assemble.FloatRange{Min: c.Camera.Distance[0], Max: c.Camera.Distance[1]},
	}
	if err := a.Validate(); err != nil {
		return assemble.Config{}, err
	}
	return a, nil
}

// RasterOptions converts the render section.
func (c Config) RasterOptions() raster.Options {
	return raster.Options{Ambient: c.Render.Ambient}
}

// LoadOptions converts the model section.
func (c Config) LoadOptions() asset.LoadOptions {
	opts := asset.LoadOptions{
		Scale:     c.Model.Scale,
		Recenter:  c.Model.Recenter,
		Kernel:    c.Model.Kernel,
		MeshCells: c.Model.MeshCells,
	}
	if len(c.Model.Color) == 3 {
		col := mgl64.Vec3{c.Model.Color[0], c.Model.Color[1], c.Model.Color[2]}
		opts.Color = &col
	}
	return opts
}

// LabelFormat parses labels.box_format.
func (c Config) LabelFormat() (label.Format, error) {
	return label.ParseFormat(c.Labels.BoxFormat)
}

// ImageFormat parses output.image_format.
func (c Config) ImageFormat() (persist.ImageFormat, error) {
	return persist.ParseImageFormat(c.Output.ImageFormat)
}

// MixOptions converts the background section.
func (c Config) MixOptions() (mix.Options, error) {
	m, err := mix.ParseMethod(c.Background.Method)
	if err != nil {
		return mix.Options{}, err
	}
	if m == mix.Images && c.Background.ImagesDir == "" {
		return mix.Options{}, fmt.Errorf("background.images_dir is required for method %s", m)
	}
	if c.Background.Jitter < 0 || c.Background.Jitter > 1 {
		return mix.Options{}, fmt.Errorf("background.jitter %g outside [0,1]", c.Background.Jitter)
	}
	return mix.Options{
		Method:     m,
		ImagesDir:  c.Background.ImagesDir,
		Monochrome: c.Background.Monochrome,
		Grain:      c.Background.Grain,
		Jitter:     c.Background.Jitter,
	}, nil
}
