package main

import (
	"fmt"
	"log/slog"

	"github.com/Carmen-Shannon/oxy-anim/engine/animation"
	"github.com/Carmen-Shannon/oxy-anim/engine/loader"
	"github.com/Carmen-Shannon/oxy-anim/engine/skeleton"
	"github.com/Carmen-Shannon/oxy-anim/internal/config"
	"github.com/Carmen-Shannon/oxy-anim/internal/logging"
	"github.com/spf13/cobra"
)

// app carries what every subcommand needs once the root command has loaded the configuration.
type app struct {
	cfg    config.Config
	logger *slog.Logger
}

// newRootCmd builds the command tree.
func newRootCmd() *cobra.Command {
	a := &app{logger: logging.NewNop()}

	root := &cobra.Command{
		Use:           "oxyanim",
		Short:         "Inspect, sample and benchmark skeletal animation rigs",
		Long:          `oxyanim loads glTF/GLB or YAML rigs and evaluates their clips on the CPU.`,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			path, _ := cmd.Flags().GetString("config")
			cfg, err := config.Load(path)
			if err != nil {
				return err
			}
			if level, _ := cmd.Flags().GetString("log-level"); level != "" {
				cfg.Log.Level = level
			}

			lvl, err := cfg.LogLevel()
			if err != nil {
				return err
			}
			a.cfg = cfg
			a.logger = logging.NewWriter(cmd.ErrOrStderr(), lvl)
			return nil
		},
	}

	// Persistent flags (available to all commands)
	root.PersistentFlags().String("config", "", "Config file (default oxyanim.yaml in . or ~/.config/oxyanim)")
	root.PersistentFlags().String("log-level", "", "Log level override: debug, info, warn, error")

	root.AddCommand(newInspectCmd(a), newSampleCmd(a), newBenchCmd(a))
	return root
}

// loadAnimation loads the rig at path and registers its clips in a store configured from the app config.
func (a *app) loadAnimation(path string) (*loader.Rig, animation.Animation, error) {
	rig, err := loader.NewLoader(loader.BackendTypeGLTF, loader.WithLogger(a.logger)).Load(path)
	if err != nil {
		return nil, nil, err
	}

	skel, err := rig.Skeleton(skeleton.WithLogger(a.logger))
	if err != nil {
		return nil, nil, err
	}

	opts, err := a.cfg.AnimationOptions()
	if err != nil {
		return nil, nil, err
	}
	anim := animation.NewAnimation(skel, append(opts, animation.WithLogger(a.logger))...)
	if err := rig.Register(anim); err != nil {
		return nil, nil, err
	}
	return rig, anim, nil
}

// findClip resolves a clip name, listing the available clips when it is missing.
func findClip(anim animation.Animation, name string) (int, error) {
	if i := anim.FindClip(name); i != animation.ClipNotFound {
		return i, nil
	}
	names := make([]string, 0, anim.ClipCount())
	for i := range anim.ClipCount() {
		info, _ := anim.Clip(i)
		names = append(names, info.Name)
	}
	return animation.ClipNotFound, fmt.Errorf("%w: %q (available: %v)", animation.ErrClipNotFound, name, names)
}
