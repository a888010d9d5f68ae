//go:build !manifold

// Package manifold is a recipe kernel backed by the Manifold C library.
// This build does not link it; New always fails.
//
// Build with: go build -tags=manifold
package manifold

import (
	"errors"

	"github.com/chazu/datagen/pkg/kernel"
)

// Available reports whether this build links manifoldc.
const Available = false

// DefaultSegments is the circular resolution of cylinders and spheres.
const DefaultSegments = 64

// ErrUnavailable is returned by New in builds without the manifold tag.
var ErrUnavailable = errors.New("manifold kernel not available: build with -tags=manifold")

// Kernel is never constructed in this build.
type Kernel struct{ kernel.Kernel }

// New reports ErrUnavailable.
func New(int) (*Kernel, error) {
	return nil, ErrUnavailable
}
