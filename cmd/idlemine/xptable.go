package main

import (
	"fmt"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/udisondev/idlemine/internal/data"
)

func newXPTableCmd() *cobra.Command {
	var all bool
	cmd := &cobra.Command{
		Use:   "xptable",
		Short: "Print the XP required for each level",
		RunE: func(cmd *cobra.Command, args []string) error {
			levels := []int{1, 2, 5, 10, 15, 20, 30, 40, 50, 60, 70, 80, 90, 99, 100}
			if all {
				levels = levels[:0]
				for lvl := 1; lvl <= data.MaxLevel; lvl++ {
					levels = append(levels, lvl)
				}
			}

			w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', tabwriter.AlignRight)
			fmt.Fprintln(w, "level\txp\tdelta\t")
			for _, lvl := range levels {
				delta := int64(0)
				if lvl > 1 {
					delta = data.RequiredXP(lvl) - data.RequiredXP(lvl-1)
				}
				fmt.Fprintf(w, "%d\t%d\t%d\t\n", lvl, data.RequiredXP(lvl), delta)
			}
			return w.Flush()
		},
	}
	cmd.Flags().BoolVar(&all, "all", false, "print every level from 1 to 100")
	return cmd
}
