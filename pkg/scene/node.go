package scene

import (
	"fmt"

	"github.com/chazu/datagen/pkg/asset"
	"github.com/go-gl/mathgl/mgl64"
)

// NodeID is an opaque handle into a Scene's node arena.
// The zero value NoNode never names a node.
type NodeID uint32

// NoNode is the empty handle. Instance buffers use it for background pixels.
const NoNode NodeID = 0

// NodeKind enumerates the types of nodes in a scene.
type NodeKind int

const (
	NodeRoot   NodeKind = iota // the single scene root
	NodeModel                  // the tracked mesh
	NodeLight                  // directional or point light
	NodeCamera                 // perspective camera
)

func (k NodeKind) String() string {
	switch k {
	case NodeRoot:
		return "root"
	case NodeModel:
		return "model"
	case NodeLight:
		return "light"
	case NodeCamera:
		return "camera"
	default:
		return "unknown"
	}
}

// Node is the fundamental element of a scene.
type Node struct {
	ID       NodeID   `json:"id"`
	Kind     NodeKind `json:"kind"`
	Name     string   `json:"name,omitempty"`
	Parent   NodeID   `json:"parent"`
	Children []NodeID `json:"children,omitempty"`
	Data     NodeData `json:"data"`

	pose mgl64.Mat4
}

// Pose returns the node's local pose relative to its parent.
func (n *Node) Pose() mgl64.Mat4 {
	return n.pose
}

// NodeData is the interface for kind-specific node payloads.
type NodeData interface {
	nodeData() // marker method restricting implementations to this package
}

// RootData is the payload of the root node.
type RootData struct{}

func (RootData) nodeData() {}

// ModelData references the shared, immutable model.
type ModelData struct {
	Model *asset.Model `json:"-"`
}

func (ModelData) nodeData() {}

// LightKind distinguishes the two light categories.
type LightKind int

const (
	Directional LightKind = iota // parallel rays along the node's -Z
	Point                        // omnidirectional, inverse-square falloff
)

func (k LightKind) String() string {
	switch k {
	case Directional:
		return "directional"
	case Point:
		return "point"
	default:
		return fmt.Sprintf("LightKind(%d)", int(k))
	}
}

// LightKinds lists every light category in assembly order.
var LightKinds = []LightKind{Directional, Point}

// White is the default light color.
var White = mgl64.Vec3{1, 1, 1}

// DefaultIntensity is the default light intensity.
const DefaultIntensity = 2.0

// LightData describes a light source.
type LightData struct {
	Kind      LightKind  `json:"kind"`
	Color     mgl64.Vec3 `json:"color"`
	Intensity float64    `json:"intensity"`
}

func (LightData) nodeData() {}

// Camera defaults.
const (
	DefaultZNear = 0.05
	DefaultZFar  = 100.0
)

// CameraData describes a perspective camera looking down its local -Z.
// An Aspect of 0 means "use the viewport aspect".
type CameraData struct {
	YFov   float64 `json:"yfov"` // radians
	ZNear  float64 `json:"znear"`
	ZFar   float64 `json:"zfar"`
	Aspect float64 `json:"aspect,omitempty"`
}

func (CameraData) nodeData() {}

// Projection returns the perspective matrix for the given viewport aspect.
func (c CameraData) Projection(viewportAspect float64) mgl64.Mat4 {
	aspect := c.Aspect
	if aspect <= 0 {
		aspect = viewportAspect
	}
	near, far := c.ZNear, c.ZFar
	if near <= 0 {
		near = DefaultZNear
	}
	if far <= near {
		far = DefaultZFar
	}
	return mgl64.Perspective(c.YFov, aspect, near, far)
}
