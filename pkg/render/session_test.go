package render

import (
	"errors"
	"image"
	"testing"

	"github.com/chazu/datagen/pkg/asset"
	"github.com/chazu/datagen/pkg/kernel"
	"github.com/chazu/datagen/pkg/scene"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeBackend records context lifecycles and paints a fixed pattern.
type fakeBackend struct {
	created    int
	destroyed  int
	failCreate error
	failDest   error
}

type fakeContext struct {
	b    *fakeBackend
	w, h int
}

func (f *fakeBackend) NewContext(w, h int) (Context, error) {
	if f.failCreate != nil {
		return nil, f.failCreate
	}
	f.created++
	return &fakeContext{b: f, w: w, h: h}, nil
}

func (c *fakeContext) Render(s *scene.Scene) (*Buffers, error) {
	b := &Buffers{
		Color:     image.NewRGBA(image.Rect(0, 0, c.w, c.h)),
		Depth:     NewDepthMap(c.w, c.h),
		Instances: NewInstanceMap(c.w, c.h),
	}
	b.Instances.Set(1, 1, s.Model())
	b.Depth.Set(1, 1, 1.5)
	b.Color.Pix[(1*c.w+1)*4+3] = 255
	return b, nil
}

func (c *fakeContext) Destroy() error {
	c.b.destroyed++
	return c.b.failDest
}

func testScene(t *testing.T) *scene.Scene {
	t.Helper()
	s := scene.New()
	_, err := s.AddModel(&asset.Model{Name: "m", Mesh: &kernel.Mesh{}})
	require.NoError(t, err)
	_, err = s.AddCamera(scene.CameraData{YFov: 1})
	require.NoError(t, err)
	return s
}

func activeSession(t *testing.T, b Backend) *Session {
	t.Helper()
	s := NewSession(b, 4, 4)
	require.NoError(t, s.Bind(testScene(t)))
	require.NoError(t, s.Activate())
	t.Cleanup(s.Release)
	return s
}

func TestLifecycle(t *testing.T) {
	fb := &fakeBackend{}
	s := NewSession(fb, 4, 4)
	assert.Equal(t, Unbound, s.State())

	sc := testScene(t)
	require.NoError(t, s.Bind(sc))
	assert.Equal(t, Bound, s.State())
	assert.True(t, sc.Frozen())

	require.NoError(t, s.Activate())
	assert.Equal(t, Active, s.State())
	assert.Equal(t, 1, fb.created)

	b, err := s.Buffers()
	require.NoError(t, err)
	assert.Equal(t, sc.Model(), b.Tracked)

	s.Release()
	assert.Equal(t, Released, s.State())
	assert.Equal(t, 1, fb.destroyed)
}

func TestWrongStateOperations(t *testing.T) {
	s := NewSession(&fakeBackend{}, 4, 4)

	_, err := s.Color()
	assert.ErrorIs(t, err, ErrInvalidState)
	assert.ErrorIs(t, s.Activate(), ErrInvalidState)

	require.NoError(t, s.Bind(testScene(t)))
	var se *StateError
	require.ErrorAs(t, s.Bind(testScene(t)), &se)
	assert.Equal(t, "bind", se.Op)
	assert.Equal(t, Bound, se.State)

	_, err = s.Depth()
	assert.ErrorIs(t, err, ErrInvalidState)

	s.Release()
	assert.ErrorIs(t, s.Activate(), ErrInvalidState)
	_, err = s.Mask()
	assert.ErrorIs(t, err, ErrInvalidState)
}

func TestBindNilScene(t *testing.T) {
	s := NewSession(&fakeBackend{}, 4, 4)
	assert.Error(t, s.Bind(nil))
	assert.Equal(t, Unbound, s.State())
}

func TestSecondActivateFails(t *testing.T) {
	fb := &fakeBackend{}
	first := activeSession(t, fb)

	second := NewSession(fb, 4, 4)
	require.NoError(t, second.Bind(testScene(t)))
	assert.ErrorIs(t, second.Activate(), ErrBackendUnavailable)
	assert.Equal(t, Bound, second.State())
	assert.Equal(t, 1, fb.created)

	first.Release()
	require.NoError(t, second.Activate())
	second.Release()
}

func TestDoubleReleaseIsNoop(t *testing.T) {
	fb := &fakeBackend{}
	s := activeSession(t, fb)
	s.Release()
	s.Release()
	assert.Equal(t, 1, fb.destroyed)
	assert.Equal(t, Released, s.State())

	// Releasing an unbound session is also fine.
	u := NewSession(fb, 4, 4)
	u.Release()
	assert.Equal(t, Released, u.State())
	assert.Equal(t, 1, fb.destroyed)
}

func TestReleaseSwallowsDestroyError(t *testing.T) {
	fb := &fakeBackend{failDest: errors.New("gpu lost")}
	s := activeSession(t, fb)
	s.Release()
	assert.Equal(t, Released, s.State())

	// The slot is free again.
	next := activeSession(t, &fakeBackend{})
	assert.Equal(t, Active, next.State())
}

func TestContextCreationFailureFreesSlot(t *testing.T) {
	boom := errors.New("no device")
	s := NewSession(&fakeBackend{failCreate: boom}, 4, 4)
	require.NoError(t, s.Bind(testScene(t)))
	assert.ErrorIs(t, s.Activate(), boom)
	assert.Equal(t, Bound, s.State())
	s.Release()

	next := activeSession(t, &fakeBackend{})
	assert.Equal(t, Active, next.State())
}

func TestRepeatedReadsAreCached(t *testing.T) {
	s := activeSession(t, &fakeBackend{})

	c1, err := s.Color()
	require.NoError(t, err)
	c2, err := s.Color()
	require.NoError(t, err)
	assert.Equal(t, c1.Pix, c2.Pix)

	d, err := s.Depth()
	require.NoError(t, err)
	assert.Equal(t, float32(1.5), d.At(1, 1))

	m, err := s.Mask()
	require.NoError(t, err)
	assert.NotEqual(t, scene.NoNode, m.At(1, 1))
	assert.Equal(t, 1, s.Renders())
}

func TestStateStrings(t *testing.T) {
	assert.Equal(t, "unbound", Unbound.String())
	assert.Equal(t, "bound", Bound.String())
	assert.Equal(t, "active", Active.String())
	assert.Equal(t, "released", Released.String())
	assert.Equal(t, "State(9)", State(9).String())
}

func TestDepthToImage(t *testing.T) {
	d := NewDepthMap(2, 1)
	d.Set(0, 0, 1)
	d.Set(1, 0, 2)
	img := d.ToImage(0)
	assert.Equal(t, uint16(32768), img.Gray16At(0, 0).Y)
	assert.Equal(t, uint16(65535), img.Gray16At(1, 0).Y)

	empty := NewDepthMap(2, 2).ToImage(0)
	assert.Equal(t, uint16(0), empty.Gray16At(1, 1).Y)
}

func TestBuffersClone(t *testing.T) {
	s := activeSession(t, &fakeBackend{})
	b, err := s.Buffers()
	require.NoError(t, err)
	c := b.Clone()
	c.Depth.Set(1, 1, 9)
	assert.Equal(t, float32(1.5), b.Depth.At(1, 1))
	assert.Equal(t, b.Tracked, c.Tracked)
	assert.Equal(t, b.Bounds(), c.Bounds())
}
