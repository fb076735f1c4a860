package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

var sweepCmd = &cobra.Command{
	Use:   "sweep",
	Short: "Evict every expired row from the short-term working set",
	RunE: func(cmd *cobra.Command, args []string) error {
		r, err := openRecaller()
		if err != nil {
			return err
		}
		defer r.Close()

		relations, nodes, err := r.SweepNow(cmd.Context())
		if err != nil {
			return fmt.Errorf("sweep: %w", err)
		}
		fmt.Printf("evicted %d relations and %d nodes\n", relations, nodes)
		return nil
	},
}

var commitCmd = &cobra.Command{
	Use:   "commit",
	Short: "Copy commit-eligible working-set documents into the long-term store",
	RunE: func(cmd *cobra.Command, args []string) error {
		r, err := openRecaller()
		if err != nil {
			return err
		}
		defer r.Close()

		committed, err := r.CommitNow(cmd.Context())
		if err != nil {
			return fmt.Errorf("commit: %w", err)
		}
		fmt.Printf("committed %d documents\n", committed)
		return nil
	},
}

var wipeLongTerm bool

var wipeCmd = &cobra.Command{
	Use:   "wipe",
	Short: "Drop every row from the short-term working set",
	RunE: func(cmd *cobra.Command, args []string) error {
		r, err := openRecaller()
		if err != nil {
			return err
		}
		defer r.Close()

		ctx := cmd.Context()
		if err := r.FlushShortTerm(ctx); err != nil {
			return fmt.Errorf("wipe short-term store: %w", err)
		}
		fmt.Fprintln(os.Stderr, "wiped short-term store")

		if wipeLongTerm {
			if err := r.LongTerm.Maintenance.WipeStore(ctx); err != nil {
				return fmt.Errorf("wipe long-term store: %w", err)
			}
			fmt.Fprintln(os.Stderr, "wiped long-term store")
		}
		return nil
	},
}

func init() {
	wipeCmd.Flags().BoolVar(&wipeLongTerm, "long-term", false, "Also wipe the authoritative long-term store")
}
