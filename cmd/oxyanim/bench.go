package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/Carmen-Shannon/oxy-anim/engine/animator"
	"github.com/Carmen-Shannon/oxy-anim/engine/profiler"
	"github.com/spf13/cobra"
)

func newBenchCmd(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "bench <rig>",
		Short: "Drive many looping instances of a clip and report throughput",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			clipName, _ := cmd.Flags().GetString("clip")
			instances, _ := cmd.Flags().GetInt("instances")
			frames, _ := cmd.Flags().GetInt("frames")
			dt, _ := cmd.Flags().GetFloat32("dt")
			metricsAddr, _ := cmd.Flags().GetString("metrics-addr")
			if !cmd.Flags().Changed("metrics-addr") {
				metricsAddr = a.cfg.Metrics.Addr
			}
			if instances <= 0 || frames <= 0 {
				return fmt.Errorf("--instances and --frames must be positive")
			}

			_, anim, err := a.loadAnimation(args[0])
			if err != nil {
				return err
			}
			clip, err := findClip(anim, clipName)
			if err != nil {
				return err
			}
			info, _ := anim.Clip(clip)

			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			prof := profiler.NewProfiler(profiler.WithLogger(a.logger))
			serveErr := make(chan error, 1)
			if metricsAddr != "" {
				go func() { serveErr <- prof.Serve(ctx, metricsAddr) }()
			}

			anm := animator.NewAnimator(anim,
				animator.WithWorkers(a.cfg.Animator.Workers),
				animator.WithQueueSize(a.cfg.Animator.QueueSize),
				animator.WithBatchSize(a.cfg.Animator.BatchSize),
				animator.WithMaxInstances(instances),
				animator.WithLogger(a.logger),
			)
			defer anm.Close()

			// Stagger start times so instances do not sample identical poses.
			duration := info.End - info.Start
			for i := range instances {
				idx := anm.AddInstance()
				if err := anm.PlayAnimation(idx, clip, true); err != nil {
					return err
				}
				anm.SetAnimationTime(idx, info.Start+duration*float32(i)/float32(instances))
			}

			start := time.Now()
			var uploaded uint64
			done := 0
			for ; done < frames; done++ {
				anm.PrepareFrame(dt)
				if err := anm.Update(ctx); err != nil {
					if errors.Is(err, context.Canceled) {
						break
					}
					return err
				}
				for _, w := range anm.Flush() {
					uploaded += uint64(len(w.Data))
				}
				prof.AddPoses(instances)
				prof.Tick()
			}
			elapsed := time.Since(start)

			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "clip %s: %d instances x %d frames in %s\n", info.Name, instances, done, elapsed.Round(time.Microsecond))
			if secs := elapsed.Seconds(); secs > 0 {
				fmt.Fprintf(out, "%.0f frames/s, %.0f poses/s, %d bytes flushed\n",
					float64(done)/secs, float64(done*instances)/secs, uploaded)
			}

			stop()
			if metricsAddr != "" {
				if err := <-serveErr; err != nil {
					return fmt.Errorf("metrics server: %w", err)
				}
			}
			return nil
		},
	}

	cmd.Flags().String("clip", "", "Clip name")
	cmd.Flags().Int("instances", 100, "Number of animated instances")
	cmd.Flags().Int("frames", 600, "Number of frames to simulate")
	cmd.Flags().Float32("dt", 1.0/60.0, "Frame delta time in seconds")
	cmd.Flags().String("metrics-addr", "", "Serve Prometheus metrics on this address while running (default metrics.addr)")
	_ = cmd.MarkFlagRequired("clip")
	return cmd
}
