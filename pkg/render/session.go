// Package render owns the lifecycle of one rendering of one scene.
//
// A Session moves through Unbound, Bound, Active and Released. Only one
// session in the process may be Active at a time: the backend context is
// a process-wide resource, and the slot is claimed with a compare-and-swap
// rather than waited for.
package render

import (
	"errors"
	"fmt"
	"image"
	"sync/atomic"
	"time"

	"github.com/chazu/datagen/pkg/logging"
	"github.com/chazu/datagen/pkg/scene"
)

// Backend creates rendering contexts.
type Backend interface {
	NewContext(width, height int) (Context, error)
}

// Context renders scenes into buffers. Destroy frees its resources.
type Context interface {
	Render(s *scene.Scene) (*Buffers, error)
	Destroy() error
}

// State is a session lifecycle state.
type State int

const (
	Unbound State = iota
	Bound
	Active
	Released
)

func (s State) String() string {
	switch s {
	case Unbound:
		return "unbound"
	case Bound:
		return "bound"
	case Active:
		return "active"
	case Released:
		return "released"
	default:
		return fmt.Sprintf("State(%d)", int(s))
	}
}

var (
	// ErrBackendUnavailable is returned by Activate while another session
	// holds the backend.
	ErrBackendUnavailable = errors.New("render: backend unavailable")
	// ErrInvalidState is wrapped by every StateError.
	ErrInvalidState = errors.New("render: invalid session state")
)

// StateError reports an operation attempted in the wrong state.
type StateError struct {
	Op    string
	State State
}

func (e *StateError) Error() string {
	return fmt.Sprintf("render: %s in state %s", e.Op, e.State)
}

// Unwrap lets errors.Is match ErrInvalidState.
func (e *StateError) Unwrap() error { return ErrInvalidState }

// active is the process-wide render slot.
var active atomic.Pointer[Session]

// Session renders one scene once. It is not safe for concurrent use.
type Session struct {
	backend Backend
	width   int
	height  int

	state   State
	scene   *scene.Scene
	ctx     Context
	buffers *Buffers
	renders int
}

// NewSession returns an Unbound session producing width x height buffers.
func NewSession(b Backend, width, height int) *Session {
	return &Session{backend: b, width: width, height: height}
}

// State returns the current lifecycle state.
func (s *Session) State() State {
	return s.state
}

// Renders returns how many times the backend rendered for this session.
func (s *Session) Renders() int {
	return s.renders
}

// Size returns the buffer dimensions.
func (s *Session) Size() (width, height int) {
	return s.width, s.height
}

func (s *Session) transition(to State) {
	logging.Logger().Debug("render: session transition", "from", s.state, "to", to)
	s.state = to
}

// Bind attaches the scene and freezes it.
func (s *Session) Bind(sc *scene.Scene) error {
	if s.state != Unbound {
		return &StateError{Op: "bind", State: s.state}
	}
	if sc == nil {
		return errors.New("render: bind nil scene")
	}
	sc.Freeze()
	s.scene = sc
	s.transition(Bound)
	return nil
}

// Activate claims the process-wide slot and creates the backend context.
// A context creation failure frees the slot and leaves the session Bound.
func (s *Session) Activate() error {
	if s.state != Bound {
		return &StateError{Op: "activate", State: s.state}
	}
	if !active.CompareAndSwap(nil, s) {
		return fmt.Errorf("%w: another session is active", ErrBackendUnavailable)
	}
	ctx, err := s.backend.NewContext(s.width, s.height)
	if err != nil {
		active.CompareAndSwap(s, nil)
		return fmt.Errorf("render: create context: %w", err)
	}
	s.ctx = ctx
	s.transition(Active)
	return nil
}

// Buffers renders on first call and returns the cached buffers after.
func (s *Session) Buffers() (*Buffers, error) {
	if s.state != Active {
		return nil, &StateError{Op: "read buffers", State: s.state}
	}
	if s.buffers != nil {
		return s.buffers, nil
	}
	start := time.Now()
	b, err := s.ctx.Render(s.scene)
	if err != nil {
		return nil, fmt.Errorf("render: %w", err)
	}
	s.renders++
	b.Tracked = s.scene.Model()
	s.buffers = b
	logging.Logger().Debug("render: frame", "width", s.width, "height", s.height, "elapsed", time.Since(start))
	return b, nil
}

// Color returns the color plane.
func (s *Session) Color() (*image.RGBA, error) {
	b, err := s.Buffers()
	if err != nil {
		return nil, err
	}
	return b.Color, nil
}

// Depth returns the depth plane.
func (s *Session) Depth() (*DepthMap, error) {
	b, err := s.Buffers()
	if err != nil {
		return nil, err
	}
	return b.Depth, nil
}

// Mask returns the per-pixel instance plane labels are derived from.
func (s *Session) Mask() (*InstanceMap, error) {
	b, err := s.Buffers()
	if err != nil {
		return nil, err
	}
	return b.Instances, nil
}

// Release destroys the context, frees the slot and moves to Released.
// It is idempotent and never fails; a destroy error is logged.
func (s *Session) Release() {
	if s.state == Released {
		return
	}
	if s.state == Active {
		if err := s.ctx.Destroy(); err != nil {
			logging.Logger().Warn("render: destroy context", "err", err)
		}
		s.ctx = nil
		active.CompareAndSwap(s, nil)
	}
	s.scene = nil
	s.transition(Released)
}
