package main

import (
	"fmt"

	"github.com/go-gl/mathgl/mgl32"
	"github.com/spf13/cobra"
)

func newSampleCmd(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "sample <rig>",
		Short: "Print the absolute bone transforms of a clip at one time",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			clipName, _ := cmd.Flags().GetString("clip")
			t, _ := cmd.Flags().GetFloat32("time")
			loop, _ := cmd.Flags().GetBool("loop")
			count, _ := cmd.Flags().GetInt("count")

			_, anim, err := a.loadAnimation(args[0])
			if err != nil {
				return err
			}
			clip, err := findClip(anim, clipName)
			if err != nil {
				return err
			}

			skel := anim.Skeleton()
			if count <= 0 {
				count = skel.BoneCount()
			}
			dest := make([]mgl32.Mat4, count)
			if err := anim.Evaluate(clip, t, loop, dest, count); err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			for i, m := range dest {
				bone, _ := skel.Bone(i)
				fmt.Fprintf(out, "%d %s\n", i, bone.Name)
				for row := range 4 {
					fmt.Fprintf(out, "  % .6f % .6f % .6f % .6f\n", m.At(row, 0), m.At(row, 1), m.At(row, 2), m.At(row, 3))
				}
			}
			return nil
		},
	}

	cmd.Flags().String("clip", "", "Clip name")
	cmd.Flags().Float32("time", 0, "Sample time")
	cmd.Flags().Bool("loop", false, "Wrap time over the clip duration instead of clamping")
	cmd.Flags().Int("count", 0, "Number of leading bones to print (default all)")
	_ = cmd.MarkFlagRequired("clip")
	return cmd
}
