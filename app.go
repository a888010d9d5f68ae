package main

import (
	"context"
	"fmt"
	"math/rand/v2"
	"time"

	"github.com/chazu/datagen/pkg/assemble"
	"github.com/chazu/datagen/pkg/asset"
	"github.com/chazu/datagen/pkg/config"
	"github.com/chazu/datagen/pkg/dataset"
	"github.com/chazu/datagen/pkg/logging"
	"github.com/chazu/datagen/pkg/mix"
	"github.com/chazu/datagen/pkg/persist"
	"github.com/chazu/datagen/pkg/render/raster"
)

// mixSalt keeps background draws independent of the scene sequence.
const mixSalt uint64 = 0xba5eba11

// App wires a configuration into a dataset generator.
type App struct {
	cfg config.Config
	now func() time.Time
}

// NewApp returns an App for cfg. The config is validated by Generate.
func NewApp(cfg config.Config) *App {
	return &App{cfg: cfg, now: time.Now}
}

// Config returns the configuration the App runs with.
func (a *App) Config() config.Config {
	return a.cfg
}

// seed returns the configured seed, or one drawn from the clock when the
// configuration leaves it at zero.
func (a *App) seed() uint64 {
	if a.cfg.Run.Seed != 0 {
		return a.cfg.Run.Seed
	}
	s := uint64(a.now().UnixNano())
	logging.Logger().Info("no seed configured, using clock", "seed", s)
	return s
}

// Generate loads the model and writes the configured dataset.
func (a *App) Generate(ctx context.Context) (*dataset.Report, error) {
	cfg := a.cfg
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	cfg.Run.Seed = a.seed()

	// Step 1: load the model once; every scene shares it.
	model, err := asset.Load(cfg.Model.Path, cfg.LoadOptions())
	if err != nil {
		return nil, err
	}
	logging.Logger().Info("model loaded",
		"name", model.Name,
		"vertices", model.Mesh.VertexCount(),
		"triangles", model.Mesh.TriangleCount(),
		"radius", model.Mesh.Radius())

	// Step 2: scene drawing and rendering.
	acfg, err := cfg.AssemblerConfig()
	if err != nil {
		return nil, err
	}
	asm, err := assemble.New(acfg, assemble.NewRand(cfg.Run.Seed))
	if err != nil {
		return nil, err
	}
	backend := raster.New(cfg.RasterOptions())

	// Step 3: backgrounds and output.
	mopts, err := cfg.MixOptions()
	if err != nil {
		return nil, err
	}
	mixer, err := mix.New(mopts, rand.New(rand.NewPCG(cfg.Run.Seed, mixSalt)))
	if err != nil {
		return nil, err
	}
	boxFormat, err := cfg.LabelFormat()
	if err != nil {
		return nil, err
	}
	imageFormat, err := cfg.ImageFormat()
	if err != nil {
		return nil, err
	}

	opts := dataset.Options{
		Seed:          cfg.Run.Seed,
		MaxRetries:    cfg.Run.MaxRetries,
		ValFraction:   cfg.Run.ValFraction,
		ProgressEvery: cfg.Run.ProgressEvery,
		Class:         cfg.Model.Class,
		BoxFormat:     boxFormat,
		ImageFormat:   imageFormat,
		Width:         cfg.Render.Width,
		Height:        cfg.Render.Height,
		Depth:         cfg.Labels.Depth,
		Box:           cfg.Labels.Box,
		Mask:          cfg.Labels.Mask,
		DepthFar:      float32(acfg.Distance.Max + model.Mesh.Radius()),
		Previews:      cfg.Preview.Count,
		Dirs: dataset.Dirs{
			Image:   cfg.Output.ImageDir,
			Depth:   cfg.Output.DepthDir,
			Box:     cfg.Output.BoxDir,
			Mask:    cfg.Output.MaskDir,
			Preview: cfg.Output.PreviewDir,
		},
		Config: cfg,
	}
	store, err := persist.NewDirStore(cfg.Output.Root, opts.OutputDirs(), cfg.Output.CreateDirs)
	if err != nil {
		return nil, err
	}

	// Step 4: run.
	gen, err := dataset.New(opts, model, asm, backend, mixer, store)
	if err != nil {
		return nil, err
	}
	rep, err := gen.Run(ctx, cfg.Run.Images)
	if live := backend.Live(); live != 0 {
		logging.Logger().Warn("render contexts leaked", "live", live)
	}
	return rep, err
}

// MeshStats summarizes a loaded model.
type MeshStats struct {
	Name      string
	Vertices  int
	Triangles int
	Min, Max  [3]float64
	Radius    float64
}

func (s MeshStats) String() string {
	return fmt.Sprintf("%s: %d vertices, %d triangles, bounds [%.4g %.4g %.4g]..[%.4g %.4g %.4g], radius %.4g",
		s.Name, s.Vertices, s.Triangles,
		s.Min[0], s.Min[1], s.Min[2], s.Max[0], s.Max[1], s.Max[2], s.Radius)
}

// Inspect loads path with the App's model options and reports its size.
func (a *App) Inspect(path string) (MeshStats, error) {
	model, err := asset.Load(path, a.cfg.LoadOptions())
	if err != nil {
		return MeshStats{}, err
	}
	lo, hi := model.Mesh.Bounds()
	return MeshStats{
		Name:      model.Name,
		Vertices:  model.Mesh.VertexCount(),
		Triangles: model.Mesh.TriangleCount(),
		Min:       lo,
		Max:       hi,
		Radius:    model.Mesh.Radius(),
	}, nil
}
