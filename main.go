// Command datagen renders labeled synthetic images of a 3D model for
// training object detectors.
package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"

	"github.com/chazu/datagen/pkg/config"
	"github.com/chazu/datagen/pkg/logging"
	"github.com/gogpu/gg"
	"github.com/spf13/cobra"
)

// flags holds the command-line overrides applied on top of the config file.
type flags struct {
	configPath string
	model      string
	out        string
	images     int
	seed       uint64
	verbose    bool
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()
	if err := newRootCmd(os.Stdout, os.Stderr).ExecuteContext(ctx); err != nil {
		os.Exit(1)
	}
}

func newRootCmd(stdout, stderr io.Writer) *cobra.Command {
	f := &flags{}
	root := &cobra.Command{
		Use:          "datagen",
		Short:        "Generate labeled synthetic images of a 3D model",
		SilenceUsage: true,
		PersistentPreRun: func(*cobra.Command, []string) {
			l := logging.New(stderr, f.verbose)
			logging.SetLogger(l)
			gg.SetLogger(l)
		},
	}
	root.SetOut(stdout)
	root.SetErr(stderr)
	root.PersistentFlags().StringVarP(&f.configPath, "config", "c", "", "TOML configuration file")
	root.PersistentFlags().BoolVarP(&f.verbose, "verbose", "v", false, "log debug output")

	root.AddCommand(newGenerateCmd(f), newMeshCmd(f), newConfigCmd(f))
	return root
}

// loadConfig reads the config file, if any, and applies flag overrides.
func (f *flags) loadConfig(cmd *cobra.Command) (config.Config, error) {
	cfg := config.Default()
	if f.configPath != "" {
		var err error
		if cfg, err = config.Load(f.configPath); err != nil {
			return config.Config{}, err
		}
	}
	fl := cmd.Flags()
	if fl.Changed("model") {
		cfg.Model.Path = f.model
	}
	if fl.Changed("out") {
		cfg.Output.Root = f.out
	}
	if fl.Changed("n") {
		cfg.Run.Images = f.images
	}
	if fl.Changed("seed") {
		cfg.Run.Seed = f.seed
	}
	return cfg, nil
}

func newGenerateCmd(f *flags) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "generate",
		Short: "Render a dataset",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := f.loadConfig(cmd)
			if err != nil {
				return err
			}
			rep, err := NewApp(cfg).Generate(cmd.Context())
			if rep != nil {
				fmt.Fprintf(cmd.OutOrStdout(), "run %s: %s\n", rep.RunID, rep)
			}
			return err
		},
	}
	cmd.Flags().StringVarP(&f.model, "model", "m", "", "model file (.obj, .3mf or .recipe)")
	cmd.Flags().StringVarP(&f.out, "out", "o", "", "output root directory")
	cmd.Flags().IntVarP(&f.images, "n", "n", 0, "number of images")
	cmd.Flags().Uint64Var(&f.seed, "seed", 0, "random seed (0 draws one from the clock)")
	return cmd
}

func newMeshCmd(f *flags) *cobra.Command {
	return &cobra.Command{
		Use:   "mesh PATH",
		Short: "Load a model and print its size",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := f.loadConfig(cmd)
			if err != nil {
				return err
			}
			stats, err := NewApp(cfg).Inspect(args[0])
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), stats)
			return nil
		},
	}
}

func newConfigCmd(f *flags) *cobra.Command {
	return &cobra.Command{
		Use:   "config",
		Short: "Print the effective configuration as TOML",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := f.loadConfig(cmd)
			if err != nil {
				return err
			}
			return cfg.Encode(cmd.OutOrStdout())
		},
	}
}
