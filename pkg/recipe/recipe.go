// Package recipe evaluates procedural model recipes: small Lisp programs
// that build a solid from kernel primitives and name it with (model ...).
//
//	(model "rect" (box :x 0.1 :y 0.05 :z 0.02) :color (vec3 0.8 0.2 0.2))
//
// Every evaluation runs in a fresh zygomys sandbox, so recipes cannot
// reach the filesystem and repeated evaluations are deterministic.
package recipe

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/chazu/datagen/pkg/kernel"
	zygo "github.com/glycerine/zygomys/zygo"
	"github.com/go-gl/mathgl/mgl64"
)

// EvalError represents a non-fatal error encountered during evaluation,
// such as a parse error or a runtime error in recipe code.
type EvalError struct {
	Line    int
	Col     int
	Message string
}

func (e EvalError) Error() string {
	if e.Line > 0 {
		return fmt.Sprintf("line %d: %s", e.Line, e.Message)
	}
	return e.Message
}

// Result is the model a recipe declared.
type Result struct {
	Name  string
	Solid kernel.Solid
	Color *mgl64.Vec3 // nil when the recipe set no color
}

// Evaluator wraps the zygomys interpreter for recipe evaluation.
// It is safe for concurrent use; each call to Evaluate creates a fresh
// sandboxed environment.
type Evaluator struct {
	kernel  kernel.Kernel
	timeout time.Duration

	mu         sync.Mutex
	generation uint64
}

// New returns an Evaluator building solids with k.
func New(k kernel.Kernel) *Evaluator {
	return &Evaluator{kernel: k, timeout: EvalTimeout}
}

// SetTimeout changes the evaluation limit. Non-positive values restore
// EvalTimeout.
func (e *Evaluator) SetTimeout(d time.Duration) {
	if d <= 0 {
		d = EvalTimeout
	}
	e.timeout = d
}

// Evaluate runs source and returns the declared model.
//
// Return semantics:
//   - On success: returns result + nil errors + nil error
//   - On parse/eval failure, or no (model ...) form: nil result + eval errors + nil error
//   - On fatal failure (timeout, panic): returns nil + nil + error
func (e *Evaluator) Evaluate(source string) (*Result, []EvalError, error) {
	e.mu.Lock()
	e.generation++
	gen := e.generation
	e.mu.Unlock()

	ch := make(chan evalResult, 1)

	go func() {
		defer func() {
			if r := recover(); r != nil {
				ch <- evalResult{err: fmt.Errorf("recipe: panic during evaluation: %v", r)}
			}
		}()

		res, evalErrs, err := e.evaluate(source)
		ch <- evalResult{result: res, errors: evalErrs, err: err}
	}()

	return waitWithTimeout(ch, gen, &e.mu, &e.generation, e.timeout)
}

func (e *Evaluator) evaluate(source string) (*Result, []EvalError, error) {
	if strings.TrimSpace(source) == "" {
		return nil, []EvalError{{Message: "recipe is empty"}}, nil
	}

	env := zygo.NewZlispSandbox()
	defer env.Stop()

	st := &state{kernel: e.kernel}
	registerBuiltins(env, st)

	if err := env.LoadString(preprocessSource(source)); err != nil {
		return nil, parseZygomysError(err), nil
	}
	if _, err := env.Run(); err != nil {
		return nil, parseZygomysError(err), nil
	}

	if st.result == nil {
		return nil, []EvalError{{Message: "recipe declares no (model ...)"}}, nil
	}
	return st.result, nil, nil
}

// linePattern matches zygomys error messages that include "Error on line N: ..."
var linePattern = regexp.MustCompile(`(?i)(?:error )?on line (\d+):\s*(.*)`)

// linePatternShort matches simpler "line N: ..." patterns.
var linePatternShort = regexp.MustCompile(`(?i)^line (\d+):\s*(.*)`)

// parseZygomysError converts a zygomys error into EvalError values,
// extracting a line number when the message carries one.
func parseZygomysError(err error) []EvalError {
	msg := err.Error()

	for _, re := range []*regexp.Regexp{linePattern, linePatternShort} {
		if m := re.FindStringSubmatch(msg); m != nil {
			line, _ := strconv.Atoi(m[1])
			return []EvalError{{Line: line, Message: strings.TrimSpace(m[2])}}
		}
	}

	return []EvalError{{Message: strings.TrimSpace(msg)}}
}

// JoinErrors flattens eval errors into one message.
func JoinErrors(errs []EvalError) string {
	parts := make([]string, len(errs))
	for i, e := range errs {
		parts[i] = e.Error()
	}
	return strings.Join(parts, "; ")
}
