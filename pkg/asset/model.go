// Package asset loads the 3D models that datagen places in scenes.
// A Model is loaded once and shared by pointer across every scene built
// from it; nothing downstream mutates it.
package asset

import (
	"errors"
	"fmt"

	"github.com/chazu/datagen/pkg/kernel"
	"github.com/go-gl/mathgl/mgl64"
)

// DefaultColor is the base color used when a source carries no material.
var DefaultColor = mgl64.Vec3{0.8, 0.8, 0.8}

// Material holds the surface properties the rasterizer shades with.
type Material struct {
	BaseColor mgl64.Vec3 `json:"base_color"` // linear RGB in [0,1]
}

// Model is an immutable triangle mesh with a material.
type Model struct {
	Name     string       `json:"name"`
	Mesh     *kernel.Mesh `json:"mesh"`
	Material Material     `json:"material"`
	Source   string       `json:"source,omitempty"`
}

// ErrAssetLoad is the sentinel every loader failure wraps.
var ErrAssetLoad = errors.New("asset: load failed")

// LoadError reports why a model could not be loaded.
type LoadError struct {
	Path string
	Err  error
}

func (e *LoadError) Error() string {
	return fmt.Sprintf("asset: load %s: %v", e.Path, e.Err)
}

// Unwrap exposes the underlying cause.
func (e *LoadError) Unwrap() error { return e.Err }

// Is reports true for ErrAssetLoad so callers can classify any loader error.
func (e *LoadError) Is(target error) bool { return target == ErrAssetLoad }
