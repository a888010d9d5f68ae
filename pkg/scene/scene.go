// Package scene defines the scene graph a render session draws: one
// root, one model, one camera and any number of lights. Nodes live in
// an arena and refer to each other by NodeID, never by pointer.
package scene

import (
	"errors"
	"fmt"

	"github.com/chazu/datagen/pkg/asset"
	"github.com/chazu/datagen/pkg/xform"
	"github.com/go-gl/mathgl/mgl64"
)

var (
	// ErrDuplicate is returned when a second model or camera is added.
	ErrDuplicate = errors.New("scene: duplicate node")
	// ErrFrozen is returned when nodes are added to a frozen scene.
	ErrFrozen = errors.New("scene: scene is frozen")
	// ErrNoModel is returned for a nil model.
	ErrNoModel = errors.New("scene: nil model")
)

// Scene is an arena of nodes. Node i lives at nodes[i-1].
type Scene struct {
	nodes  []*Node
	root   NodeID
	model  NodeID
	camera NodeID
	frozen bool
}

// New creates a scene holding only its root node.
func New() *Scene {
	s := &Scene{}
	s.root = s.add(NodeRoot, "root", RootData{}, NoNode)
	return s
}

func (s *Scene) add(kind NodeKind, name string, data NodeData, parent NodeID) NodeID {
	id := NodeID(len(s.nodes) + 1)
	s.nodes = append(s.nodes, &Node{
		ID:     id,
		Kind:   kind,
		Name:   name,
		Parent: parent,
		Data:   data,
		pose:   mgl64.Ident4(),
	})
	if p := s.Get(parent); p != nil {
		p.Children = append(p.Children, id)
	}
	return id
}

// Root returns the root handle.
func (s *Scene) Root() NodeID {
	return s.root
}

// AddModel adds the model node under the root at identity pose.
func (s *Scene) AddModel(m *asset.Model) (NodeID, error) {
	if s.frozen {
		return NoNode, ErrFrozen
	}
	if m == nil {
		return NoNode, ErrNoModel
	}
	if s.model != NoNode {
		return NoNode, fmt.Errorf("%w: model already present as node %d", ErrDuplicate, s.model)
	}
	s.model = s.add(NodeModel, m.Name, ModelData{Model: m}, s.root)
	return s.model, nil
}

// AddLight adds a light node under the root at identity pose.
func (s *Scene) AddLight(name string, d LightData) (NodeID, error) {
	if s.frozen {
		return NoNode, ErrFrozen
	}
	return s.add(NodeLight, name, d, s.root), nil
}

// AddCamera adds the camera node under the root at identity pose.
func (s *Scene) AddCamera(d CameraData) (NodeID, error) {
	if s.frozen {
		return NoNode, ErrFrozen
	}
	if s.camera != NoNode {
		return NoNode, fmt.Errorf("%w: camera already present as node %d", ErrDuplicate, s.camera)
	}
	s.camera = s.add(NodeCamera, "camera", d, s.root)
	return s.camera, nil
}

// Get returns the node with the given ID, or nil.
func (s *Scene) Get(id NodeID) *Node {
	if id == NoNode || int(id) > len(s.nodes) {
		return nil
	}
	return s.nodes[id-1]
}

// Children returns the child nodes of the given node.
func (s *Scene) Children(id NodeID) []*Node {
	n := s.Get(id)
	if n == nil {
		return nil
	}
	children := make([]*Node, 0, len(n.Children))
	for _, cid := range n.Children {
		if c := s.Get(cid); c != nil {
			children = append(children, c)
		}
	}
	return children
}

// Lights returns the handles of all lights of the given kind.
func (s *Scene) Lights(kind LightKind) []NodeID {
	var ids []NodeID
	for _, n := range s.nodes {
		if d, ok := n.Data.(LightData); ok && d.Kind == kind {
			ids = append(ids, n.ID)
		}
	}
	return ids
}

// Model returns the model handle, or NoNode.
func (s *Scene) Model() NodeID {
	return s.model
}

// Camera returns the camera handle, or NoNode.
func (s *Scene) Camera() NodeID {
	return s.camera
}

// NodeCount returns the total number of nodes, root included.
func (s *Scene) NodeCount() int {
	return len(s.nodes)
}

// CountKind returns the number of nodes of the given kind.
func (s *Scene) CountKind(kind NodeKind) int {
	var c int
	for _, n := range s.nodes {
		if n.Kind == kind {
			c++
		}
	}
	return c
}

// WorldPose returns the node's pose composed with every ancestor's.
func (s *Scene) WorldPose(id NodeID) mgl64.Mat4 {
	m := mgl64.Ident4()
	for n := s.Get(id); n != nil; n = s.Get(n.Parent) {
		m = n.pose.Mul4(m)
	}
	return m
}

// Freeze makes the scene read-only. Render sessions freeze the scene
// they bind.
func (s *Scene) Freeze() {
	s.frozen = true
}

// Frozen reports whether the scene is read-only.
func (s *Scene) Frozen() bool {
	return s.frozen
}

// Ref returns a pose handle for the node so xform.Apply can update it.
// It panics if the node does not exist.
func (s *Scene) Ref(id NodeID) xform.Poser {
	if s.Get(id) == nil {
		panic(fmt.Sprintf("scene: no node %d", id))
	}
	return poseRef{s: s, id: id}
}

type poseRef struct {
	s  *Scene
	id NodeID
}

func (r poseRef) Pose() mgl64.Mat4 {
	return r.s.Get(r.id).pose
}

// SetPose panics on a frozen scene: bound scenes are immutable.
func (r poseRef) SetPose(m mgl64.Mat4) {
	if r.s.frozen {
		panic(fmt.Sprintf("scene: pose write to node %d of a frozen scene", r.id))
	}
	r.s.Get(r.id).pose = m
}
