// Package dataset drives sample generation: for every index it draws a
// scene, renders it in its own session, derives labels, composites a
// background and writes the results through a persist.Store.
package dataset

import (
	"context"
	"errors"
	"fmt"
	"image"
	"math"
	"math/rand/v2"
	"path"
	"time"

	"github.com/chazu/datagen/pkg/assemble"
	"github.com/chazu/datagen/pkg/asset"
	"github.com/chazu/datagen/pkg/label"
	"github.com/chazu/datagen/pkg/logging"
	"github.com/chazu/datagen/pkg/mix"
	"github.com/chazu/datagen/pkg/persist"
	"github.com/chazu/datagen/pkg/preview"
	"github.com/chazu/datagen/pkg/render"
	"github.com/chazu/datagen/pkg/scene"
	"github.com/google/uuid"
)

// Split names the subset a sample belongs to.
type Split string

const (
	Train Split = "train"
	Val   Split = "val"
	// All is used when no validation fraction is configured; files go
	// directly below the output root.
	All Split = ""
)

// Dirs names the per-artifact output directories.
type Dirs struct {
	Image   string
	Depth   string
	Box     string
	Mask    string
	Preview string
}

// Options controls a Generator.
type Options struct {
	Seed          uint64 // recorded in the manifest and used for the split
	MaxRetries    int    // fresh scenes tried after an empty foreground
	ValFraction   float64
	ProgressEvery int

	Class       string
	BoxFormat   label.Format
	ImageFormat persist.ImageFormat
	Width       int
	Height      int

	Depth bool
	Box   bool
	Mask  bool
	// DepthFar maps to white in depth images; zero scales each image by
	// its own largest depth.
	DepthFar float32
	Previews int

	Dirs Dirs
	// Config is echoed into the manifest.
	Config any
}

// Splits returns the subsets a run with these options writes to.
func (o Options) Splits() []Split {
	if o.ValFraction > 0 {
		return []Split{Train, Val}
	}
	return []Split{All}
}

// OutputDirs lists every directory the run writes into, relative to the
// store root.
func (o Options) OutputDirs() []string {
	var dirs []string
	for _, sp := range o.Splits() {
		dirs = append(dirs, path.Join(string(sp), o.Dirs.Image))
		if o.Depth {
			dirs = append(dirs, path.Join(string(sp), o.Dirs.Depth))
		}
		if o.Box {
			dirs = append(dirs, path.Join(string(sp), o.Dirs.Box))
		}
		if o.Mask {
			dirs = append(dirs, path.Join(string(sp), o.Dirs.Mask))
		}
	}
	if o.Previews > 0 {
		dirs = append(dirs, o.Dirs.Preview)
	}
	return dirs
}

// Generator produces a dataset. It is not safe for concurrent use.
type Generator struct {
	opts    Options
	model   *asset.Model
	asm     *assemble.Assembler
	backend render.Backend
	mixer   *mix.Mixer
	store   persist.Store
}

// New returns a Generator. The mixer may be nil, leaving backgrounds
// transparent.
func New(opts Options, m *asset.Model, asm *assemble.Assembler, b render.Backend, mixer *mix.Mixer, store persist.Store) (*Generator, error) {
	switch {
	case m == nil:
		return nil, errors.New("dataset: nil model")
	case asm == nil || b == nil || store == nil:
		return nil, errors.New("dataset: missing assembler, backend or store")
	case opts.Width <= 0 || opts.Height <= 0:
		return nil, fmt.Errorf("dataset: invalid size %dx%d", opts.Width, opts.Height)
	case opts.MaxRetries < 0:
		return nil, errors.New("dataset: negative retry limit")
	case opts.ValFraction < 0 || opts.ValFraction >= 1:
		return nil, fmt.Errorf("dataset: val fraction %g outside [0,1)", opts.ValFraction)
	}
	return &Generator{opts: opts, model: m, asm: asm, backend: b, mixer: mixer, store: store}, nil
}

// splitSalt separates the split draw from the scene sequence.
const splitSalt uint64 = 0x5eed5a17

// assignSplits marks round(n*frac) indices, chosen by a seeded
// permutation, as validation samples.
func assignSplits(n int, frac float64, seed uint64) []Split {
	out := make([]Split, n)
	if frac <= 0 {
		return out
	}
	for i := range out {
		out[i] = Train
	}
	rng := rand.New(rand.NewPCG(seed, splitSalt))
	nVal := int(math.Round(float64(n) * frac))
	for _, i := range rng.Perm(n)[:nVal] {
		out[i] = Val
	}
	return out
}

// Run generates n samples and writes the manifest. Cancelling ctx stops
// the run between samples; the manifest then covers the samples written
// so far and Run returns ctx's error with the partial report.
func (g *Generator) Run(ctx context.Context, n int) (*Report, error) {
	if n <= 0 {
		return nil, fmt.Errorf("dataset: sample count must be positive, got %d", n)
	}
	rep := &Report{
		RunID:     uuid.NewString(),
		Seed:      g.opts.Seed,
		Class:     g.opts.Class,
		Requested: n,
	}
	splits := assignSplits(n, g.opts.ValFraction, g.opts.Seed)
	progress := newProgress(n)
	start := time.Now()

	logging.Logger().Info("dataset: run started",
		"run_id", rep.RunID, "images", n, "seed", g.opts.Seed, "model", g.model.Name)

	var runErr error
	for i := 0; i < n; i++ {
		if err := ctx.Err(); err != nil {
			runErr = err
			break
		}
		began := time.Now()
		sample, err := g.sample(i, splits[i], rep)
		if err != nil {
			runErr = err
			break
		}
		if sample != nil {
			rep.add(*sample)
		}
		progress.step(time.Since(began))
		if every := g.opts.ProgressEvery; every > 0 && ((i+1)%every == 0 || i+1 == n) {
			logging.Logger().Info("dataset: " + progress.line(rep.Bytes))
		}
	}
	rep.Elapsed = time.Since(start)

	mb, err := g.store.SaveJSON(ManifestFile, rep.manifest(g.opts))
	if err != nil && runErr == nil {
		runErr = err
	}
	rep.Bytes += mb

	logging.Logger().Info("dataset: run finished",
		"written", rep.Written, "skipped", rep.Skipped, "retries", rep.Retries,
		"elapsed", rep.Elapsed, "size", rep.Size())
	return rep, runErr
}

// sample produces index i, retrying with fresh scenes while the model is
// out of view. A nil sample means the index was skipped.
func (g *Generator) sample(i int, split Split, rep *Report) (*Sample, error) {
	start := time.Now()
	for attempt := 0; attempt <= g.opts.MaxRetries; attempt++ {
		buf, err := g.render()
		if err != nil {
			return nil, fmt.Errorf("dataset: sample %d: %w", i, err)
		}
		lbl, err := label.DeriveBox(label.DeriveMask(buf), g.opts.Class, g.opts.BoxFormat)
		if errors.Is(err, label.ErrEmptyForeground) {
			if attempt < g.opts.MaxRetries {
				rep.Retries++
			}
			logging.Logger().Debug("dataset: empty foreground", "index", i, "attempt", attempt)
			continue
		}
		if err != nil {
			return nil, fmt.Errorf("dataset: sample %d: %w", i, err)
		}
		s, err := g.write(i, split, buf, lbl)
		if err != nil {
			return nil, fmt.Errorf("dataset: sample %d: %w", i, err)
		}
		s.Attempts = attempt + 1
		s.Elapsed = time.Since(start)
		return s, nil
	}
	rep.Skipped++
	logging.Logger().Warn("dataset: sample skipped, model never in view",
		"index", i, "attempts", g.opts.MaxRetries+1)
	return nil, nil
}

// render builds one scene and renders it in its own session.
func (g *Generator) render() (*render.Buffers, error) {
	s, _, _ := g.asm.BuildRandomScene(g.model)
	if errs := scene.Validate(s, g.asm.Config().MinLights()); len(errs) > 0 {
		return nil, errs[0]
	}

	sess := render.NewSession(g.backend, g.opts.Width, g.opts.Height)
	defer sess.Release()
	if err := sess.Bind(s); err != nil {
		return nil, err
	}
	if err := sess.Activate(); err != nil {
		return nil, err
	}
	return sess.Buffers()
}

// write persists every artifact of one sample.
func (g *Generator) write(i int, split Split, buf *render.Buffers, lbl label.BoxLabel) (*Sample, error) {
	s := &Sample{Index: i, Split: split, Label: lbl}
	dir := func(d string) string { return path.Join(string(split), d) }
	save := func(n int64, err error) error {
		s.Bytes += n
		return err
	}

	var img image.Image = buf.Color
	if g.mixer != nil {
		mixed, err := g.mixer.Mix(buf.Color)
		if err != nil {
			return nil, err
		}
		img = mixed
	}

	s.Image = path.Join(dir(g.opts.Dirs.Image), fmt.Sprintf("image%d%s", i, g.opts.ImageFormat.Ext()))
	if err := save(g.store.SaveImage(s.Image, img, g.opts.ImageFormat)); err != nil {
		return nil, err
	}

	if g.opts.Depth {
		rel := path.Join(dir(g.opts.Dirs.Depth), fmt.Sprintf("depth%d.tiff", i))
		if err := save(g.store.SaveImage(rel, buf.Depth.ToImage(g.opts.DepthFar), persist.TIFF)); err != nil {
			return nil, err
		}
	}

	if g.opts.Box {
		s.LabelFile = path.Join(dir(g.opts.Dirs.Box), fmt.Sprintf("box%d.txt", i))
		var err error
		if lbl.Format == label.NormalizedCenter {
			err = save(g.store.SaveLabel(s.LabelFile, lbl.Line()))
		} else {
			err = save(g.store.SaveJSON(s.LabelFile, lbl))
		}
		if err != nil {
			return nil, err
		}
	}

	if g.opts.Mask {
		rel := path.Join(dir(g.opts.Dirs.Mask), fmt.Sprintf("mask%d.png", i))
		if err := save(g.store.SaveImage(rel, label.DeriveMask(buf), persist.PNG)); err != nil {
			return nil, err
		}
	}

	if i < g.opts.Previews {
		pv, err := preview.Label(img, lbl, preview.DefaultStyle)
		if err != nil {
			return nil, err
		}
		rel := path.Join(g.opts.Dirs.Preview, fmt.Sprintf("preview%d.png", i))
		if err := save(g.store.SaveImage(rel, pv, persist.PNG)); err != nil {
			return nil, err
		}
	}
	return s, nil
}
