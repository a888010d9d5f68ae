package dataset

import (
	"context"
	"encoding/json"
	"errors"
	"image"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"testing"
	"time"

	"github.com/chazu/datagen/pkg/assemble"
	"github.com/chazu/datagen/pkg/asset"
	"github.com/chazu/datagen/pkg/kernel"
	"github.com/chazu/datagen/pkg/label"
	"github.com/chazu/datagen/pkg/mix"
	"github.com/chazu/datagen/pkg/persist"
	"github.com/chazu/datagen/pkg/render"
	"github.com/chazu/datagen/pkg/render/raster"
	"github.com/chazu/datagen/pkg/scene"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// cube returns a model of a 0.2 unit cube centered on the origin.
func cube() *asset.Model {
	const h = 0.1
	v := []float32{
		-h, -h, -h, h, -h, -h, h, h, -h, -h, h, -h,
		-h, -h, h, h, -h, h, h, h, h, -h, h, h,
	}
	idx := []uint32{
		0, 1, 2, 2, 3, 0,
		4, 5, 6, 6, 7, 4,
		0, 1, 5, 5, 4, 0,
		3, 2, 6, 6, 7, 3,
		0, 3, 7, 7, 4, 0,
		1, 2, 6, 6, 5, 1,
	}
	return &asset.Model{
		Name:     "cube",
		Mesh:     &kernel.Mesh{Vertices: v, Indices: idx, Name: "cube"},
		Material: asset.Material{BaseColor: asset.DefaultColor},
	}
}

func assembler(t *testing.T, seed uint64) *assemble.Assembler {
	t.Helper()
	cfg := assemble.DefaultConfig()
	cfg.Tilt = 0.25
	a, err := assemble.New(cfg, assemble.NewRand(seed))
	require.NoError(t, err)
	return a
}

func options() Options {
	return Options{
		Seed:        7,
		MaxRetries:  2,
		Class:       "rect",
		BoxFormat:   label.NormalizedCenter,
		ImageFormat: persist.PNG,
		Width:       64,
		Height:      48,
		Box:         true,
		Dirs:        Dirs{Image: "images", Depth: "depth", Box: "labels", Mask: "masks", Preview: "preview"},
	}
}

// memStore keeps every saved artifact in memory.
type memStore struct {
	images map[string]image.Image
	labels map[string]string
	json   map[string]any
	fail   error
}

func newMemStore() *memStore {
	return &memStore{images: map[string]image.Image{}, labels: map[string]string{}, json: map[string]any{}}
}

func (m *memStore) SaveImage(rel string, img image.Image, _ persist.ImageFormat) (int64, error) {
	if m.fail != nil {
		return 0, m.fail
	}
	m.images[rel] = img
	return int64(img.Bounds().Dx() * img.Bounds().Dy()), nil
}

func (m *memStore) SaveLabel(rel, text string) (int64, error) {
	m.labels[rel] = text
	return int64(len(text)), nil
}

func (m *memStore) SaveJSON(rel string, v any) (int64, error) {
	m.json[rel] = v
	return 1, nil
}

// emptyBackend renders nothing, so every sample has an empty foreground.
type emptyBackend struct{}

type emptyContext struct{ w, h int }

func (emptyBackend) NewContext(w, h int) (render.Context, error) { return &emptyContext{w, h}, nil }

func (c *emptyContext) Render(*scene.Scene) (*render.Buffers, error) {
	return &render.Buffers{
		Color:     image.NewRGBA(image.Rect(0, 0, c.w, c.h)),
		Depth:     render.NewDepthMap(c.w, c.h),
		Instances: render.NewInstanceMap(c.w, c.h),
	}, nil
}

func (c *emptyContext) Destroy() error { return nil }

var errNoGPU = errors.New("no device")

type brokenBackend struct{}

func (brokenBackend) NewContext(int, int) (render.Context, error) { return nil, errNoGPU }

func TestRunWritesDataset(t *testing.T) {
	opts := options()
	opts.ValFraction = 0.5
	opts.Depth = true
	opts.Mask = true
	opts.Previews = 2
	opts.ProgressEvery = 2
	opts.Config = map[string]string{"note": "echo"}

	root := t.TempDir()
	store, err := persist.NewDirStore(root, opts.OutputDirs(), true)
	require.NoError(t, err)
	mixer, err := mix.New(mix.Options{Method: mix.Solid}, assemble.NewRand(3))
	require.NoError(t, err)
	backend := raster.New(raster.Options{Ambient: raster.DefaultAmbient})

	g, err := New(opts, cube(), assembler(t, opts.Seed), backend, mixer, store)
	require.NoError(t, err)
	rep, err := g.Run(context.Background(), 6)
	require.NoError(t, err)

	assert.Equal(t, 6, rep.Written)
	assert.Equal(t, 0, rep.Skipped)
	assert.Equal(t, 3, rep.Train)
	assert.Equal(t, 3, rep.Val)
	assert.Equal(t, 0, backend.Live(), "every context destroyed")
	assert.Greater(t, rep.Bytes, int64(0))
	assert.Contains(t, rep.String(), "6/6 images")

	for _, s := range rep.Samples {
		sp := string(s.Split)
		assert.FileExists(t, filepath.Join(root, sp, "images", "image"+strconv.Itoa(s.Index)+".png"))
		assert.FileExists(t, filepath.Join(root, sp, "depth", "depth"+strconv.Itoa(s.Index)+".tiff"))
		assert.FileExists(t, filepath.Join(root, sp, "masks", "mask"+strconv.Itoa(s.Index)+".png"))

		data, err := os.ReadFile(filepath.Join(root, filepath.FromSlash(s.LabelFile)))
		require.NoError(t, err)
		fields := strings.Fields(string(data))
		require.Len(t, fields, 5)
		assert.Equal(t, "rect", fields[0])
	}
	assert.FileExists(t, filepath.Join(root, "preview", "preview0.png"))
	assert.FileExists(t, filepath.Join(root, "preview", "preview1.png"))
	assert.NoFileExists(t, filepath.Join(root, "preview", "preview2.png"))

	data, err := os.ReadFile(filepath.Join(root, ManifestFile))
	require.NoError(t, err)
	var man Manifest
	require.NoError(t, json.Unmarshal(data, &man))
	assert.Equal(t, rep.RunID, man.RunID)
	_, err = uuid.Parse(man.RunID)
	assert.NoError(t, err)
	assert.Equal(t, uint64(7), man.Seed)
	assert.Equal(t, "yolo", man.BoxFormat)
	assert.Equal(t, 6, man.Written)
	assert.Len(t, man.Samples, 6)
	assert.Equal(t, map[string]any{"note": "echo"}, man.Config)
}

func TestRunIsDeterministicForSeed(t *testing.T) {
	run := func() []label.BoxLabel {
		store := newMemStore()
		g, err := New(options(), cube(), assembler(t, 99), raster.New(raster.Options{}), nil, store)
		require.NoError(t, err)
		rep, err := g.Run(context.Background(), 4)
		require.NoError(t, err)
		var out []label.BoxLabel
		for _, s := range rep.Samples {
			out = append(out, s.Label)
		}
		return out
	}
	first := run()
	require.Len(t, first, 4)
	assert.Equal(t, first, run())
}

func TestAbsoluteLabelsAreJSON(t *testing.T) {
	opts := options()
	opts.BoxFormat = label.Absolute
	store := newMemStore()
	g, err := New(opts, cube(), assembler(t, 1), raster.New(raster.Options{}), nil, store)
	require.NoError(t, err)
	_, err = g.Run(context.Background(), 1)
	require.NoError(t, err)

	v, ok := store.json["labels/box0.txt"]
	require.True(t, ok)
	lbl, ok := v.(label.BoxLabel)
	require.True(t, ok)
	assert.Equal(t, label.Absolute, lbl.Format)
	assert.Empty(t, store.labels)
}

func TestEmptyForegroundRetriesThenSkips(t *testing.T) {
	store := newMemStore()
	g, err := New(options(), cube(), assembler(t, 1), emptyBackend{}, nil, store)
	require.NoError(t, err)

	rep, err := g.Run(context.Background(), 3)
	require.NoError(t, err)
	assert.Equal(t, 0, rep.Written)
	assert.Equal(t, 3, rep.Skipped)
	assert.Equal(t, 3*2, rep.Retries)
	assert.Empty(t, store.images)
	assert.Contains(t, store.json, ManifestFile)
}

func TestBackendFailureAborts(t *testing.T) {
	g, err := New(options(), cube(), assembler(t, 1), brokenBackend{}, nil, newMemStore())
	require.NoError(t, err)
	rep, err := g.Run(context.Background(), 3)
	assert.ErrorIs(t, err, errNoGPU)
	assert.Equal(t, 0, rep.Written)
}

func TestStoreFailureAborts(t *testing.T) {
	store := newMemStore()
	store.fail = errors.New("disk full")
	g, err := New(options(), cube(), assembler(t, 1), raster.New(raster.Options{}), nil, store)
	require.NoError(t, err)
	_, err = g.Run(context.Background(), 2)
	assert.ErrorContains(t, err, "disk full")
}

func TestCancelledRunWritesManifest(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	store := newMemStore()
	g, err := New(options(), cube(), assembler(t, 1), raster.New(raster.Options{}), nil, store)
	require.NoError(t, err)

	rep, err := g.Run(ctx, 5)
	assert.ErrorIs(t, err, context.Canceled)
	assert.Equal(t, 0, rep.Written)
	assert.Contains(t, store.json, ManifestFile)
}

func TestNewRejectsBadInput(t *testing.T) {
	a := assembler(t, 1)
	b := raster.New(raster.Options{})
	s := newMemStore()

	_, err := New(options(), nil, a, b, nil, s)
	assert.Error(t, err)
	_, err = New(options(), cube(), nil, b, nil, s)
	assert.Error(t, err)

	bad := options()
	bad.Width = 0
	_, err = New(bad, cube(), a, b, nil, s)
	assert.Error(t, err)

	bad = options()
	bad.ValFraction = 1
	_, err = New(bad, cube(), a, b, nil, s)
	assert.Error(t, err)

	g, err := New(options(), cube(), a, b, nil, s)
	require.NoError(t, err)
	_, err = g.Run(context.Background(), 0)
	assert.Error(t, err)
}

func TestAssignSplits(t *testing.T) {
	splits := assignSplits(100, 0.1, 42)
	val := 0
	for _, s := range splits {
		if s == Val {
			val++
		} else {
			assert.Equal(t, Train, s)
		}
	}
	assert.Equal(t, 10, val)
	assert.Equal(t, splits, assignSplits(100, 0.1, 42))

	for _, s := range assignSplits(5, 0, 42) {
		assert.Equal(t, All, s)
	}
}

func TestOutputDirs(t *testing.T) {
	o := options()
	assert.Equal(t, []string{"images", "labels"}, o.OutputDirs())

	o.ValFraction = 0.2
	o.Mask = true
	o.Previews = 1
	assert.Equal(t, []string{
		"train/images", "train/labels", "train/masks",
		"val/images", "val/labels", "val/masks",
		"preview",
	}, o.OutputDirs())
}

func TestProgressLine(t *testing.T) {
	p := newProgress(4)
	p.step(4 * time.Millisecond)
	p.step(6 * time.Millisecond) // a skipped index still costs time
	line := p.line(2048)
	assert.True(t, strings.HasPrefix(line, "["+strings.Repeat("#", 25)+strings.Repeat("-", 25)+"]"), line)
	assert.Contains(t, line, "step 2/4")
	assert.Contains(t, line, "avg 5ms")
	assert.Contains(t, line, "remaining 10ms")
	assert.Contains(t, line, "2.0 kB")
}
