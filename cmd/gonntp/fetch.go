package main

import (
	"errors"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/datallboy/gonntp/internal/engine"
	"github.com/datallboy/gonntp/internal/nzb"
)

var (
	fetchOutDir string
	fetchName   string
	fetchNZB    string
)

var fetchCmd = &cobra.Command{
	Use:   "fetch [message-id...]",
	Short: "Download and yEnc decode a binary posted as one or more parts",
	Long: "Download and yEnc decode a binary. Either list the part message-ids\n" +
		"in order or pass --nzb to fetch every file of an NZB index.",
	RunE: func(cmd *cobra.Command, args []string) error {
		if err := os.MkdirAll(fetchOutDir, 0755); err != nil {
			return fmt.Errorf("failed to create output directory: %w", err)
		}
		fetcher := engine.NewFetcher(appCtx)

		if fetchNZB == "" {
			if len(args) == 0 {
				return errors.New("give message-ids or --nzb")
			}
			res, err := fetcher.Fetch(cmd.Context(), args, fetchOutDir, fetchName)
			report(cmd, res, len(args))
			return err
		}

		f, err := os.Open(fetchNZB)
		if err != nil {
			return err
		}
		defer f.Close()

		model, err := nzb.NewParser().Parse(f)
		if err != nil {
			return fmt.Errorf("failed to parse NZB: %w", err)
		}

		var errs []error
		for _, file := range model.Files {
			appCtx.Logger.Info("Fetching %s (%d segments, %d KB)", file.Subject, len(file.Segments), file.Size()/1024)
			res, err := fetcher.Fetch(cmd.Context(), file.MessageIDs(), fetchOutDir, file.FileName())
			report(cmd, res, len(file.Segments))
			if err != nil {
				errs = append(errs, fmt.Errorf("%s: %w", file.Subject, err))
			}
		}
		return errors.Join(errs...)
	},
}

func report(cmd *cobra.Command, res *engine.FileResult, parts int) {
	if res == nil {
		return
	}
	fmt.Fprintf(cmd.OutOrStdout(), "%s: %d/%d parts, %d bytes\n", res.Name, res.Parts, parts, res.BytesWritten)
	for _, id := range res.Failed {
		fmt.Fprintf(cmd.OutOrStdout(), "  missing %s\n", id)
	}
}

func init() {
	fetchCmd.Flags().StringVarP(&fetchOutDir, "output", "o", ".", "output directory")
	fetchCmd.Flags().StringVar(&fetchName, "name", "", "file name, defaults to the name in the yEnc header")
	fetchCmd.Flags().StringVar(&fetchNZB, "nzb", "", "NZB file listing the segments to fetch")
}
