package scene

import (
	"errors"
	"fmt"

	"github.com/go-gl/mathgl/mgl64"
)

// ErrNotRenderable is returned by Flatten for scenes without a model or camera.
var ErrNotRenderable = errors.New("scene: not renderable")

// DrawItem is a node resolved to its world transform.
type DrawItem struct {
	ID    NodeID
	Kind  NodeKind
	Name  string
	World mgl64.Mat4
	Data  NodeData
}

// DrawList is the flattened, render-ready form of a scene.
type DrawList struct {
	Models []DrawItem
	Lights []DrawItem
	Camera DrawItem
}

// matrixStack accumulates parent poses during the walk.
type matrixStack struct {
	mats []mgl64.Mat4
}

func newMatrixStack() *matrixStack {
	return &matrixStack{mats: []mgl64.Mat4{mgl64.Ident4()}}
}

func (ms *matrixStack) push(local mgl64.Mat4) {
	ms.mats = append(ms.mats, ms.top().Mul4(local))
}

func (ms *matrixStack) pop() {
	if len(ms.mats) > 1 {
		ms.mats = ms.mats[:len(ms.mats)-1]
	}
}

func (ms *matrixStack) top() mgl64.Mat4 {
	return ms.mats[len(ms.mats)-1]
}

// Flatten walks the scene from the root and resolves every node to its
// world transform. Flatten is read-only and never mutates the scene.
func Flatten(s *Scene) (*DrawList, error) {
	if s == nil {
		return nil, fmt.Errorf("%w: nil scene", ErrNotRenderable)
	}
	dl := &DrawList{}
	ms := newMatrixStack()
	if err := walkNode(s, s.Get(s.root), ms, dl); err != nil {
		return nil, err
	}
	if len(dl.Models) == 0 {
		return nil, fmt.Errorf("%w: no model", ErrNotRenderable)
	}
	if dl.Camera.ID == NoNode {
		return nil, fmt.Errorf("%w: no camera", ErrNotRenderable)
	}
	return dl, nil
}

func walkNode(s *Scene, n *Node, ms *matrixStack, dl *DrawList) error {
	ms.push(n.pose)
	defer ms.pop()

	item := DrawItem{ID: n.ID, Kind: n.Kind, Name: n.Name, World: ms.top(), Data: n.Data}
	switch n.Kind {
	case NodeRoot:
	case NodeModel:
		dl.Models = append(dl.Models, item)
	case NodeLight:
		dl.Lights = append(dl.Lights, item)
	case NodeCamera:
		dl.Camera = item
	default:
		return fmt.Errorf("scene: unknown node kind: %v", n.Kind)
	}

	for _, child := range s.Children(n.ID) {
		if err := walkNode(s, child, ms, dl); err != nil {
			return err
		}
	}
	return nil
}
