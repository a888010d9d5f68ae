package scene

import "fmt"

// ValidationError describes a single structural problem in a scene.
type ValidationError struct {
	NodeID  NodeID // which node has the problem (NoNode if scene-level)
	Message string
}

func (e ValidationError) Error() string {
	if e.NodeID == NoNode {
		return "scene: " + e.Message
	}
	return fmt.Sprintf("scene: node %d: %s", e.NodeID, e.Message)
}

// Validate checks the structural invariants a renderable scene must hold:
// exactly one model, exactly one camera, at least minLights lights, and
// parent links that agree with child lists. An empty slice means valid.
func Validate(s *Scene, minLights int) []ValidationError {
	var errs []ValidationError

	if c := s.CountKind(NodeModel); c != 1 {
		errs = append(errs, ValidationError{Message: fmt.Sprintf("want 1 model, have %d", c)})
	}
	if c := s.CountKind(NodeCamera); c != 1 {
		errs = append(errs, ValidationError{Message: fmt.Sprintf("want 1 camera, have %d", c)})
	}
	if c := s.CountKind(NodeLight); c < minLights {
		errs = append(errs, ValidationError{Message: fmt.Sprintf("want at least %d lights, have %d", minLights, c)})
	}

	for _, n := range s.nodes {
		if n.ID == s.root {
			if n.Parent != NoNode {
				errs = append(errs, ValidationError{NodeID: n.ID, Message: "root has a parent"})
			}
			continue
		}
		p := s.Get(n.Parent)
		if p == nil {
			errs = append(errs, ValidationError{NodeID: n.ID, Message: fmt.Sprintf("dangling parent %d", n.Parent)})
			continue
		}
		found := false
		for _, cid := range p.Children {
			if cid == n.ID {
				found = true
				break
			}
		}
		if !found {
			errs = append(errs, ValidationError{NodeID: n.ID, Message: fmt.Sprintf("missing from children of parent %d", n.Parent)})
		}
		if md, ok := n.Data.(ModelData); ok && md.Model == nil {
			errs = append(errs, ValidationError{NodeID: n.ID, Message: "model node without a model"})
		}
	}
	return errs
}
