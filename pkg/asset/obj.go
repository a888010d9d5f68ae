package asset

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/chazu/datagen/pkg/kernel"
	"github.com/chazu/datagen/pkg/logging"
	"github.com/go-gl/mathgl/mgl64"
)

// objDecoder parses the geometry subset of Wavefront OBJ: v and f lines,
// plus the diffuse color of the first material a face uses. Texture
// coordinates, normals and smoothing groups are ignored since the
// rasterizer shades flat.
type objDecoder struct {
	dir       string
	vertices  []float32
	indices   []uint32
	name      string
	matlib    string
	material  string // first material referenced by a face
	current   string
	line      int
	warnings  []string
	diffuse   map[string]mgl64.Vec3
	mtlActive string
}

func newOBJDecoder(path string) *objDecoder {
	return &objDecoder{
		dir:     filepath.Dir(path),
		name:    strings.TrimSuffix(filepath.Base(path), filepath.Ext(path)),
		diffuse: make(map[string]mgl64.Vec3),
	}
}

func (dec *objDecoder) formatError(msg string) error {
	return fmt.Errorf("obj: line %d: %s", dec.line, msg)
}

// parse reads r line by line and dispatches each line to parseLine.
func (dec *objDecoder) parse(r io.Reader, parseLine func(fields []string) error) error {
	sc := bufio.NewScanner(r)
	sc.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	dec.line = 0
	for sc.Scan() {
		dec.line++
		fields := strings.Fields(sc.Text())
		if len(fields) == 0 || strings.HasPrefix(fields[0], "#") {
			continue
		}
		if err := parseLine(fields); err != nil {
			return err
		}
	}
	return sc.Err()
}

func (dec *objDecoder) parseObjLine(fields []string) error {
	switch fields[0] {
	case "v":
		return dec.parseVertex(fields[1:])
	case "f":
		return dec.parseFace(fields[1:])
	case "o":
		if len(fields) > 1 {
			dec.name = fields[1]
		}
	case "mtllib":
		if len(fields) < 2 {
			return dec.formatError("mtllib with no file")
		}
		dec.matlib = fields[1]
	case "usemtl":
		if len(fields) < 2 {
			return dec.formatError("usemtl with no name")
		}
		dec.current = fields[1]
	case "vn", "vt", "g", "s", "l", "p":
	default:
		dec.warnings = append(dec.warnings, "unsupported: "+fields[0])
	}
	return nil
}

// parseVertex parses v <x> <y> <z> [w]
func (dec *objDecoder) parseVertex(fields []string) error {
	if len(fields) < 3 {
		return dec.formatError("fewer than 3 coordinates in 'v' line")
	}
	for _, f := range fields[:3] {
		val, err := strconv.ParseFloat(f, 32)
		if err != nil {
			return dec.formatError(err.Error())
		}
		dec.vertices = append(dec.vertices, float32(val))
	}
	return nil
}

// parseFace parses f v1[/vt1][/vn1] v2... and fans polygons into triangles.
func (dec *objDecoder) parseFace(fields []string) error {
	if len(fields) < 3 {
		return dec.formatError("face with fewer than 3 vertices")
	}
	count := len(dec.vertices) / 3
	idx := make([]uint32, len(fields))
	for pos, f := range fields {
		ref, _, _ := strings.Cut(f, "/")
		val, err := strconv.ParseInt(ref, 10, 32)
		if err != nil {
			return dec.formatError(err.Error())
		}
		var i int
		switch {
		case val > 0:
			i = int(val - 1)
		case val < 0:
			// relative to the last vertex read so far
			i = count + int(val)
		default:
			return dec.formatError("face vertex index 0")
		}
		if i < 0 || i >= count {
			return dec.formatError(fmt.Sprintf("face vertex %d out of range (%d vertices)", val, count))
		}
		idx[pos] = uint32(i)
	}
	for k := 2; k < len(idx); k++ {
		dec.indices = append(dec.indices, idx[0], idx[k-1], idx[k])
	}
	if dec.material == "" {
		dec.material = dec.current
	}
	return nil
}

func (dec *objDecoder) parseMtlLine(fields []string) error {
	switch fields[0] {
	case "newmtl":
		if len(fields) < 2 {
			return dec.formatError("newmtl with no name")
		}
		dec.mtlActive = fields[1]
	case "Kd":
		if len(fields) < 4 {
			return dec.formatError("Kd with fewer than 3 components")
		}
		var c mgl64.Vec3
		for i := range c {
			v, err := strconv.ParseFloat(fields[i+1], 64)
			if err != nil {
				return dec.formatError(err.Error())
			}
			c[i] = v
		}
		dec.diffuse[dec.mtlActive] = c
	}
	return nil
}

// color returns the diffuse color of the first used material, if the
// material library defines it.
func (dec *objDecoder) color() (mgl64.Vec3, bool) {
	if dec.matlib == "" || dec.material == "" {
		return mgl64.Vec3{}, false
	}
	f, err := os.Open(filepath.Join(dec.dir, dec.matlib))
	if err != nil {
		dec.warnings = append(dec.warnings, "material library: "+err.Error())
		return mgl64.Vec3{}, false
	}
	defer f.Close()
	if err := dec.parse(f, dec.parseMtlLine); err != nil {
		dec.warnings = append(dec.warnings, "material library: "+err.Error())
		return mgl64.Vec3{}, false
	}
	c, ok := dec.diffuse[dec.material]
	return c, ok
}

var errNoFaces = errors.New("obj: no faces")

// loadOBJ decodes the OBJ file at path.
func loadOBJ(path string) (*kernel.Mesh, Material, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, Material{}, err
	}
	defer f.Close()

	dec := newOBJDecoder(path)
	if err := dec.parse(f, dec.parseObjLine); err != nil {
		return nil, Material{}, err
	}
	if len(dec.indices) == 0 {
		return nil, Material{}, errNoFaces
	}

	mat := Material{BaseColor: DefaultColor}
	if c, ok := dec.color(); ok {
		mat.BaseColor = c
	}
	for _, w := range dec.warnings {
		logging.Logger().Debug("asset: obj decode warning", "path", path, "warning", w)
	}
	return &kernel.Mesh{Vertices: dec.vertices, Indices: dec.indices, Name: dec.name}, mat, nil
}
