package main

import (
	"fmt"
	"text/tabwriter"

	"github.com/spf13/cobra"
)

func newInspectCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "inspect <rig>",
		Short: "List a rig's bones and clips",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			rig, anim, err := a.loadAnimation(args[0])
			if err != nil {
				return err
			}
			skel := anim.Skeleton()

			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "rig %s: %d bones, %d clips\n\n", rig.Name, skel.BoneCount(), anim.ClipCount())

			w := tabwriter.NewWriter(out, 0, 4, 2, ' ', 0)
			fmt.Fprintln(w, "BONE\tPARENT\tNAME")
			for i := range skel.BoneCount() {
				bone, _ := skel.Bone(i)
				fmt.Fprintf(w, "%d\t%d\t%s\n", i, bone.Parent, bone.Name)
			}
			if err := w.Flush(); err != nil {
				return err
			}

			fmt.Fprintln(out)
			w = tabwriter.NewWriter(out, 0, 4, 2, ' ', 0)
			fmt.Fprintln(w, "CLIP\tNAME\tKIND\tSTART\tEND\tTRACKS\tKEYS")
			for i := range anim.ClipCount() {
				info, _ := anim.Clip(i)
				fmt.Fprintf(w, "%d\t%s\t%s\t%g\t%g\t%d\t%d\n", i, info.Name, info.Kind, info.Start, info.End, info.TrackCount, info.KeyCount)
			}
			return w.Flush()
		},
	}
}
