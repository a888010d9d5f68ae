package recipe

import (
	"fmt"
	"strings"

	"github.com/chazu/datagen/pkg/kernel"
	"github.com/chazu/datagen/pkg/xform"
	zygo "github.com/glycerine/zygomys/zygo"
	"github.com/go-gl/mathgl/mgl64"
)

// ---------------------------------------------------------------------------
// Source preprocessing
// ---------------------------------------------------------------------------

// preprocessSource rewrites recipe source before zygomys sees it:
//
//  1. :keyword becomes the string literal "__kw_keyword", so keywords need
//     no global symbol registration.
//  2. ; line comments become // comments, the only form zygomys accepts.
//  3. kebab-case identifiers become snake_case, since zygomys reads a
//     hyphen as subtraction.
//
// String literals are copied untouched.
func preprocessSource(source string) string {
	result := make([]byte, 0, len(source)+len(source)/4)
	b := []byte(source)
	i := 0
	for i < len(b) {
		switch {
		case b[i] == '"' || b[i] == '`':
			quote := b[i]
			result = append(result, b[i])
			i++
			for i < len(b) && b[i] != quote {
				if quote == '"' && b[i] == '\\' && i+1 < len(b) {
					result = append(result, b[i], b[i+1])
					i += 2
					continue
				}
				result = append(result, b[i])
				i++
			}
			if i < len(b) {
				result = append(result, b[i])
				i++
			}

		case b[i] == ';':
			result = append(result, '/', '/')
			for i < len(b) && b[i] == ';' {
				i++
			}
			for i < len(b) && b[i] != '\n' {
				result = append(result, b[i])
				i++
			}

		case b[i] == ':' && i+1 < len(b) && b[i+1] == '=':
			result = append(result, b[i], b[i+1])
			i += 2

		case b[i] == ':' && i+1 < len(b) && isLetter(b[i+1]):
			j := i + 1
			for j < len(b) && isKWChar(b[j]) {
				j++
			}
			result = append(result, '"')
			result = append(result, kwPrefix...)
			result = append(result, b[i+1:j]...)
			result = append(result, '"')
			i = j

		case b[i] == '-' && i > 0 && i+1 < len(b) && isIdentChar(b[i-1]) && isLetter(b[i+1]):
			result = append(result, '_')
			i++

		default:
			result = append(result, b[i])
			i++
		}
	}
	return string(result)
}

func isLetter(c byte) bool {
	return (c >= 'a' && c <= 'z') || (c >= 'A' && c <= 'Z')
}

func isKWChar(c byte) bool {
	return isLetter(c) || (c >= '0' && c <= '9') || c == '-' || c == '_'
}

func isIdentChar(c byte) bool {
	return isLetter(c) || (c >= '0' && c <= '9') || c == '_'
}

// ---------------------------------------------------------------------------
// Custom Sexp types for passing Go values through the zygomys environment
// ---------------------------------------------------------------------------

// sexpSolid wraps a kernel.Solid so builtins can pass it along.
type sexpSolid struct {
	solid kernel.Solid
	desc  string
}

func (s *sexpSolid) SexpString(ps *zygo.PrintState) string { return "(" + s.desc + ")" }
func (s *sexpSolid) Type() *zygo.RegisteredType            { return nil }

// sexpVec3 wraps a 3-vector (offsets, Euler angles, colors).
type sexpVec3 struct {
	vec mgl64.Vec3
}

func (v *sexpVec3) SexpString(ps *zygo.PrintState) string {
	return fmt.Sprintf("(vec3 %g %g %g)", v.vec[0], v.vec[1], v.vec[2])
}
func (v *sexpVec3) Type() *zygo.RegisteredType { return nil }

// ---------------------------------------------------------------------------
// Keyword argument parsing
// ---------------------------------------------------------------------------

// kwPrefix is the marker prepended to keyword names by preprocessSource.
const kwPrefix = "__kw_"

// isKW reports whether s is a preprocessed keyword and returns its name.
func isKW(s zygo.Sexp) (string, bool) {
	str, ok := s.(*zygo.SexpStr)
	if !ok {
		return "", false
	}
	if strings.HasPrefix(str.S, kwPrefix) {
		return str.S[len(kwPrefix):], true
	}
	return "", false
}

// kwArgs holds the result of parsing a mixed positional+keyword argument list.
type kwArgs struct {
	kw         map[string]zygo.Sexp
	positional []zygo.Sexp
}

// parseArgs separates args into keyword and positional arguments.
func parseArgs(args []zygo.Sexp) kwArgs {
	result := kwArgs{kw: make(map[string]zygo.Sexp)}
	i := 0
	for i < len(args) {
		if name, ok := isKW(args[i]); ok {
			if i+1 < len(args) {
				result.kw[name] = args[i+1]
				i += 2
			} else {
				result.kw[name] = zygo.SexpNull
				i++
			}
			continue
		}
		result.positional = append(result.positional, args[i])
		i++
	}
	return result
}

// number returns the keyword argument kw, or else positional argument pos.
func (a kwArgs) number(kw string, pos int) (float64, bool, error) {
	if v, ok := a.kw[kw]; ok {
		f, err := toFloat64(v)
		return f, true, err
	}
	if pos >= 0 && pos < len(a.positional) {
		f, err := toFloat64(a.positional[pos])
		return f, true, err
	}
	return 0, false, nil
}

// positive fetches a required, strictly positive dimension.
func (a kwArgs) positive(fn, kw string, pos int) (float64, error) {
	f, ok, err := a.number(kw, pos)
	if err != nil {
		return 0, fmt.Errorf("%s: %s: %w", fn, kw, err)
	}
	if !ok {
		return 0, fmt.Errorf("%s: missing %s", fn, kw)
	}
	if f <= 0 {
		return 0, fmt.Errorf("%s: %s must be positive, got %g", fn, kw, f)
	}
	return f, nil
}

// ---------------------------------------------------------------------------
// Value extraction helpers
// ---------------------------------------------------------------------------

// toFloat64 extracts a float64 from a Sexp (SexpInt or SexpFloat).
func toFloat64(s zygo.Sexp) (float64, error) {
	switch v := s.(type) {
	case *zygo.SexpInt:
		return float64(v.Val), nil
	case *zygo.SexpFloat:
		return v.Val, nil
	}
	return 0, fmt.Errorf("expected number, got %T (%s)", s, s.SexpString(nil))
}

// toString extracts a string from a Sexp.
func toString(s zygo.Sexp) (string, error) {
	if str, ok := s.(*zygo.SexpStr); ok {
		return str.S, nil
	}
	return "", fmt.Errorf("expected string, got %T (%s)", s, s.SexpString(nil))
}

// toAxis converts a keyword or string to an xform.Axis.
func toAxis(s zygo.Sexp) (xform.Axis, error) {
	name, err := toString(s)
	if err != nil {
		return 0, fmt.Errorf("expected axis keyword (:x, :y, :z): %w", err)
	}
	return xform.ParseAxis(strings.TrimPrefix(name, kwPrefix))
}

// toSolid extracts the solid from a sexpSolid.
func toSolid(s zygo.Sexp) (*sexpSolid, error) {
	if v, ok := s.(*sexpSolid); ok {
		return v, nil
	}
	return nil, fmt.Errorf("expected solid, got %T (%s)", s, s.SexpString(nil))
}

// toVec3 extracts a vector from a sexpVec3.
func toVec3(s zygo.Sexp) (mgl64.Vec3, error) {
	if v, ok := s.(*sexpVec3); ok {
		return v.vec, nil
	}
	return mgl64.Vec3{}, fmt.Errorf("expected vec3, got %T (%s)", s, s.SexpString(nil))
}

// ---------------------------------------------------------------------------
// Builtin registration
// ---------------------------------------------------------------------------

// state collects what a recipe declares during one evaluation.
type state struct {
	kernel kernel.Kernel
	result *Result
}

type builtin = func(env *zygo.Zlisp, name string, args []zygo.Sexp) (zygo.Sexp, error)

// registerBuiltins installs the recipe builtins into a zygomys environment.
// Source must be preprocessed with preprocessSource first so that :keyword
// tokens are recognizable.
func registerBuiltins(env *zygo.Zlisp, st *state) {
	k := st.kernel

	// (vec3 1 2 3)
	env.AddFunction("vec3", func(env *zygo.Zlisp, name string, args []zygo.Sexp) (zygo.Sexp, error) {
		if len(args) != 3 {
			return zygo.SexpNull, fmt.Errorf("vec3 requires exactly 3 arguments, got %d", len(args))
		}
		var v mgl64.Vec3
		for i, a := range args {
			f, err := toFloat64(a)
			if err != nil {
				return zygo.SexpNull, fmt.Errorf("vec3: component %d: %w", i, err)
			}
			v[i] = f
		}
		return &sexpVec3{vec: v}, nil
	})

	// (box :x 0.1 :y 0.05 :z 0.02) or (box 0.1 0.05 0.02)
	env.AddFunction("box", func(env *zygo.Zlisp, name string, args []zygo.Sexp) (zygo.Sexp, error) {
		pa := parseArgs(args)
		var dims [3]float64
		for i, axis := range []string{"x", "y", "z"} {
			f, err := pa.positive("box", axis, i)
			if err != nil {
				return zygo.SexpNull, err
			}
			dims[i] = f
		}
		return &sexpSolid{
			solid: k.Box(dims[0], dims[1], dims[2]),
			desc:  fmt.Sprintf("box %g %g %g", dims[0], dims[1], dims[2]),
		}, nil
	})

	// (cylinder :height 0.1 :radius 0.02)
	env.AddFunction("cylinder", func(env *zygo.Zlisp, name string, args []zygo.Sexp) (zygo.Sexp, error) {
		pa := parseArgs(args)
		h, err := pa.positive("cylinder", "height", 0)
		if err != nil {
			return zygo.SexpNull, err
		}
		r, err := pa.positive("cylinder", "radius", 1)
		if err != nil {
			return zygo.SexpNull, err
		}
		return &sexpSolid{solid: k.Cylinder(h, r), desc: fmt.Sprintf("cylinder %g %g", h, r)}, nil
	})

	// (sphere :radius 0.05)
	env.AddFunction("sphere", func(env *zygo.Zlisp, name string, args []zygo.Sexp) (zygo.Sexp, error) {
		r, err := parseArgs(args).positive("sphere", "radius", 0)
		if err != nil {
			return zygo.SexpNull, err
		}
		return &sexpSolid{solid: k.Sphere(r), desc: fmt.Sprintf("sphere %g", r)}, nil
	})

	// (union a b ...), (difference a b ...), (intersection a b ...)
	boolean := func(op string, combine func(a, b kernel.Solid) kernel.Solid) builtin {
		return func(env *zygo.Zlisp, name string, args []zygo.Sexp) (zygo.Sexp, error) {
			if len(args) < 2 {
				return zygo.SexpNull, fmt.Errorf("%s requires at least 2 solids, got %d", op, len(args))
			}
			acc, err := toSolid(args[0])
			if err != nil {
				return zygo.SexpNull, fmt.Errorf("%s: operand 0: %w", op, err)
			}
			solid := acc.solid
			for i := 1; i < len(args); i++ {
				next, err := toSolid(args[i])
				if err != nil {
					return zygo.SexpNull, fmt.Errorf("%s: operand %d: %w", op, i, err)
				}
				solid = combine(solid, next.solid)
			}
			return &sexpSolid{solid: solid, desc: fmt.Sprintf("%s of %d", op, len(args))}, nil
		}
	}
	env.AddFunction("union", boolean("union", k.Union))
	env.AddFunction("difference", boolean("difference", k.Difference))
	env.AddFunction("intersection", boolean("intersection", k.Intersection))

	// (translate solid (vec3 0 0 0.1))
	env.AddFunction("translate", func(env *zygo.Zlisp, name string, args []zygo.Sexp) (zygo.Sexp, error) {
		pa := parseArgs(args)
		if len(pa.positional) < 1 {
			return zygo.SexpNull, fmt.Errorf("translate requires a solid as first argument")
		}
		s, err := toSolid(pa.positional[0])
		if err != nil {
			return zygo.SexpNull, fmt.Errorf("translate: %w", err)
		}
		by, ok := pa.kw["by"]
		if !ok && len(pa.positional) > 1 {
			by, ok = pa.positional[1], true
		}
		if !ok {
			return zygo.SexpNull, fmt.Errorf("translate: missing offset")
		}
		v, err := toVec3(by)
		if err != nil {
			return zygo.SexpNull, fmt.Errorf("translate: offset: %w", err)
		}
		return &sexpSolid{solid: k.Translate(s.solid, v[0], v[1], v[2]), desc: "translate " + s.desc}, nil
	})

	// (rotate solid (vec3 0 0 90)) or (rotate solid :axis :z :angle 90), degrees
	env.AddFunction("rotate", func(env *zygo.Zlisp, name string, args []zygo.Sexp) (zygo.Sexp, error) {
		pa := parseArgs(args)
		if len(pa.positional) < 1 {
			return zygo.SexpNull, fmt.Errorf("rotate requires a solid as first argument")
		}
		s, err := toSolid(pa.positional[0])
		if err != nil {
			return zygo.SexpNull, fmt.Errorf("rotate: %w", err)
		}

		var angles mgl64.Vec3
		if ax, ok := pa.kw["axis"]; ok {
			axis, err := toAxis(ax)
			if err != nil {
				return zygo.SexpNull, fmt.Errorf("rotate: axis: %w", err)
			}
			deg, ok, err := pa.number("angle", -1)
			if err != nil || !ok {
				return zygo.SexpNull, fmt.Errorf("rotate: angle required with :axis")
			}
			angles[int(axis)] = deg
		} else {
			if len(pa.positional) < 2 {
				return zygo.SexpNull, fmt.Errorf("rotate: missing angles")
			}
			angles, err = toVec3(pa.positional[1])
			if err != nil {
				return zygo.SexpNull, fmt.Errorf("rotate: angles: %w", err)
			}
		}
		return &sexpSolid{solid: k.Rotate(s.solid, angles[0], angles[1], angles[2]), desc: "rotate " + s.desc}, nil
	})

	// (model "name" solid :color (vec3 0.8 0.2 0.2))
	env.AddFunction("model", func(env *zygo.Zlisp, name string, args []zygo.Sexp) (zygo.Sexp, error) {
		pa := parseArgs(args)
		if len(pa.positional) < 2 {
			return zygo.SexpNull, fmt.Errorf("model requires a name and a solid")
		}
		if st.result != nil {
			return zygo.SexpNull, fmt.Errorf("model: recipe already declared model %q", st.result.Name)
		}
		modelName, err := toString(pa.positional[0])
		if err != nil {
			return zygo.SexpNull, fmt.Errorf("model: name: %w", err)
		}
		s, err := toSolid(pa.positional[1])
		if err != nil {
			return zygo.SexpNull, fmt.Errorf("model: body: %w", err)
		}
		res := &Result{Name: modelName, Solid: s.solid}
		if v, ok := pa.kw["color"]; ok {
			c, err := toVec3(v)
			if err != nil {
				return zygo.SexpNull, fmt.Errorf("model: color: %w", err)
			}
			for i := range c {
				if c[i] < 0 || c[i] > 1 {
					return zygo.SexpNull, fmt.Errorf("model: color component %d out of [0,1]: %g", i, c[i])
				}
			}
			res.Color = &c
		}
		st.result = res
		return s, nil
	})
}
