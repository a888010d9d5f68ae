package asset

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/chazu/datagen/pkg/kernel"
	"github.com/chazu/datagen/pkg/kernel/manifold"
	"github.com/chazu/datagen/pkg/kernel/sdfx"
	"github.com/chazu/datagen/pkg/logging"
	"github.com/chazu/datagen/pkg/recipe"
	"github.com/go-gl/mathgl/mgl64"
)

// LoadOptions controls how a model file becomes a Model.
type LoadOptions struct {
	// Scale multiplies every coordinate. Zero means 1.
	Scale float64
	// Recenter moves the bounding-box center to the origin.
	Recenter bool
	// Kernel evaluates .recipe models: KernelSDFX (default) or
	// KernelManifold.
	Kernel string
	// MeshCells is the marching-cubes resolution of the sdfx kernel.
	MeshCells int
	// Color overrides the material base color when non-nil.
	Color *mgl64.Vec3
}

// DefaultLoadOptions recenters at unit scale.
func DefaultLoadOptions() LoadOptions {
	return LoadOptions{Scale: 1, Recenter: true, Kernel: KernelSDFX, MeshCells: sdfx.DefaultMeshCells}
}

// Recipe kernels.
const (
	KernelSDFX     = "sdfx"
	KernelManifold = "manifold"
)

// CheckKernel reports whether name selects a known recipe kernel. It does
// not check that the kernel is linked into this build.
func CheckKernel(name string) error {
	switch name {
	case "", KernelSDFX, KernelManifold:
		return nil
	}
	return fmt.Errorf("unknown recipe kernel %q (want %s or %s)", name, KernelSDFX, KernelManifold)
}

func newKernel(name string, cells int) (kernel.Kernel, error) {
	if err := CheckKernel(name); err != nil {
		return nil, err
	}
	if name == KernelManifold {
		k, err := manifold.New(0)
		if err != nil {
			return nil, err
		}
		return k, nil
	}
	return sdfx.New(cells), nil
}

// Extensions lists the model formats Load understands.
var Extensions = []string{".obj", ".3mf", ".recipe"}

// Load reads the model at path. The format is chosen by extension.
// Every failure is a *LoadError matching ErrAssetLoad.
func Load(path string, opts LoadOptions) (*Model, error) {
	fail := func(err error) (*Model, error) {
		return nil, &LoadError{Path: path, Err: err}
	}
	if opts.Scale < 0 {
		return fail(fmt.Errorf("scale must not be negative, got %g", opts.Scale))
	}

	var (
		mesh *kernel.Mesh
		mat  = Material{BaseColor: DefaultColor}
		err  error
	)
	switch ext := strings.ToLower(filepath.Ext(path)); ext {
	case ".obj":
		mesh, mat, err = loadOBJ(path)
	case ".3mf":
		mesh, err = load3MF(path)
	case ".recipe":
		mesh, mat, err = loadRecipe(path, opts.Kernel, opts.MeshCells)
	default:
		err = fmt.Errorf("unsupported model format %q (want one of %s)", ext, strings.Join(Extensions, ", "))
	}
	if err != nil {
		return fail(err)
	}
	if err := mesh.Validate(); err != nil {
		return fail(err)
	}

	if opts.Scale != 0 && opts.Scale != 1 {
		mesh = mesh.Scaled(opts.Scale)
	}
	if opts.Recenter {
		mesh = mesh.Recentered()
	}
	if opts.Color != nil {
		mat.BaseColor = *opts.Color
	}

	name := mesh.Name
	if name == "" {
		name = strings.TrimSuffix(filepath.Base(path), filepath.Ext(path))
	}
	lo, hi := mesh.Bounds()
	logging.Logger().Debug("asset: model loaded",
		"path", path,
		"vertices", mesh.VertexCount(),
		"triangles", mesh.TriangleCount(),
		"min", lo, "max", hi)

	return &Model{Name: name, Mesh: mesh, Material: mat, Source: path}, nil
}

// errRecipe carries recipe evaluation errors.
var errRecipe = errors.New("recipe failed")

// loadRecipe evaluates a procedural recipe and tessellates the result.
func loadRecipe(path, kernelName string, cells int) (*kernel.Mesh, Material, error) {
	src, err := os.ReadFile(path)
	if err != nil {
		return nil, Material{}, err
	}

	k, err := newKernel(kernelName, cells)
	if err != nil {
		return nil, Material{}, err
	}
	res, evalErrs, err := recipe.New(k).Evaluate(string(src))
	if err != nil {
		return nil, Material{}, err
	}
	if len(evalErrs) > 0 {
		return nil, Material{}, fmt.Errorf("%w: %s", errRecipe, recipe.JoinErrors(evalErrs))
	}

	mesh, err := k.ToMesh(res.Solid)
	if err != nil {
		return nil, Material{}, fmt.Errorf("tessellate %q: %w", res.Name, err)
	}
	mesh.Name = res.Name

	mat := Material{BaseColor: DefaultColor}
	if res.Color != nil {
		mat.BaseColor = *res.Color
	}
	return mesh, mat, nil
}
