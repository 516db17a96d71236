package main

import (
	"fmt"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/datallboy/gonntp/internal/indexer"
	"github.com/datallboy/gonntp/internal/nntp"
	"github.com/datallboy/gonntp/internal/provider"
)

var overviewLast int64

var overviewCmd = &cobra.Command{
	Use:   "overview <group>",
	Short: "Print overview lines for the newest articles of a group",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return appCtx.NNTP.WithSession(cmd.Context(), func(s *provider.Session) error {
			g, err := s.SelectGroup(args[0])
			if err != nil {
				return err
			}
			if g.Number == 0 {
				fmt.Fprintf(cmd.OutOrStdout(), "%s is empty\n", g.Name)
				return nil
			}

			r := nntp.Range{Low: g.Low, High: g.High}
			if overviewLast > 0 {
				r.Low = max(g.Low, g.High-overviewLast+1)
			}
			overviews, err := s.Over(r)
			if err != nil {
				return err
			}

			w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
			fmt.Fprintln(w, "NUMBER\tBYTES\tFROM\tSUBJECT")
			for _, ov := range overviews {
				fmt.Fprintf(w, "%d\t%d\t%s\t%s\n", ov.Number, ov.Bytes, ov.From, ov.Subject)
			}
			return w.Flush()
		})
	},
}

var syncLast int64

var syncCmd = &cobra.Command{
	Use:   "sync <group>...",
	Short: "Archive new overview data for groups into the store",
	Args:  cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		if err := openStore(cmd.Context()); err != nil {
			return err
		}
		results, err := indexer.New(appCtx).SyncAll(cmd.Context(), args, syncLast)
		for _, r := range results {
			fmt.Fprintf(cmd.OutOrStdout(), "%s: %d new overviews\n", r.Group, r.Fetched)
		}
		return err
	},
}

func init() {
	overviewCmd.Flags().Int64VarP(&overviewLast, "last", "n", 20, "number of articles to list, 0 for all")
	syncCmd.Flags().Int64VarP(&syncLast, "last", "n", 0, "limit the first sync to the newest N articles")
}
