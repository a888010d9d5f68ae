package asset

import (
	"errors"
	"fmt"

	"github.com/chazu/datagen/pkg/kernel"
	"github.com/hpinc/go3mf"
)

var errNoMeshObjects = errors.New("3mf: no mesh objects")

// load3MF merges every mesh object of a 3MF package into one mesh.
// Build item transforms and component objects are not applied; recipes
// and exporters in practice place a single object at the origin.
func load3MF(path string) (*kernel.Mesh, error) {
	r, err := go3mf.OpenReader(path)
	if err != nil {
		return nil, err
	}
	defer r.Close()

	var model go3mf.Model
	if err := r.Decode(&model); err != nil {
		return nil, fmt.Errorf("3mf: decode: %w", err)
	}

	out := &kernel.Mesh{}
	for _, obj := range model.Resources.Objects {
		if obj.Mesh == nil || len(obj.Mesh.Triangles.Triangle) == 0 {
			continue
		}
		if out.Name == "" {
			out.Name = obj.Name
		}
		base := uint32(out.VertexCount())
		n := uint32(len(obj.Mesh.Vertices.Vertex))
		for _, v := range obj.Mesh.Vertices.Vertex {
			out.Vertices = append(out.Vertices, v[0], v[1], v[2])
		}
		for i, t := range obj.Mesh.Triangles.Triangle {
			if t.V1 >= n || t.V2 >= n || t.V3 >= n {
				return nil, fmt.Errorf("3mf: object %d triangle %d references a missing vertex", obj.ID, i)
			}
			out.Indices = append(out.Indices, base+t.V1, base+t.V2, base+t.V3)
		}
	}
	if out.IsEmpty() {
		return nil, errNoMeshObjects
	}
	return out, nil
}
