package main

import (
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/odvcencio/weave/internal/config"
	"github.com/odvcencio/weave/pkg/merge"
	"github.com/spf13/cobra"
)

func newMergeCmd() *cobra.Command {
	var basePath, oursPath, theirsPath, configPath string
	var validate bool

	cmd := &cobra.Command{
		Use:   "merge --base BASE --ours OURS --theirs THEIRS PATH",
		Short: "Three-way merge a single file and print the result to stdout",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			path := args[0]

			base, err := os.ReadFile(basePath)
			if err != nil {
				return fmt.Errorf("read base: %w", err)
			}
			ours, err := os.ReadFile(oursPath)
			if err != nil {
				return fmt.Errorf("read ours: %w", err)
			}
			theirs, err := os.ReadFile(theirsPath)
			if err != nil {
				return fmt.Errorf("read theirs: %w", err)
			}

			if configPath == "" {
				configPath = "weave.toml"
			}
			cfg, err := config.Load(configPath)
			if err != nil {
				return err
			}

			result, err := merge.Merge(path, base, ours, theirs, nil, merge.Options{
				MaxFileSize:          cfg.MaxFileSizeBytes,
				Validate:             validate || cfg.SemanticValidation,
				MaxInnerMergeDepth:   cfg.MaxInnerMergeDepth,
				ExcludeDecoratorTags: cfg.ExcludeDecoratorTags,
			})
			if err != nil {
				return fmt.Errorf("merge %s: %w", filepath.Base(path), err)
			}

			out := cmd.OutOrStdout()
			if _, err := out.Write(result.Merged); err != nil {
				return err
			}
			printMergeReport(cmd.ErrOrStderr(), result)

			if result.HasConflicts {
				os.Exit(1)
			}
			return nil
		},
	}

	cmd.Flags().StringVar(&basePath, "base", "", "path to the common ancestor revision (required)")
	cmd.Flags().StringVar(&oursPath, "ours", "", "path to our revision (required)")
	cmd.Flags().StringVar(&theirsPath, "theirs", "", "path to their revision (required)")
	cmd.Flags().StringVar(&configPath, "config", "", "path to weave.toml (default: ./weave.toml)")
	cmd.Flags().BoolVar(&validate, "validate", false, "run semantic cross-reference validation after merging")
	cmd.MarkFlagRequired("base")
	cmd.MarkFlagRequired("ours")
	cmd.MarkFlagRequired("theirs")

	return cmd
}

func printMergeReport(out io.Writer, result *merge.MergeResult) {
	s := result.Stats
	fmt.Fprintf(out, "weavemerge: entities=%d unchanged=%d ours=%d theirs=%d both=%d added=%d deleted=%d conflicts=%d confidence=%s\n",
		s.TotalEntities, s.Unchanged, s.OursModified, s.TheirsModified, s.BothModified, s.Added, s.Deleted, s.Conflicts, s.Confidence())
	for _, w := range result.Warnings {
		fmt.Fprintf(out, "weavemerge: warning: %s\n", w.Message)
	}
	if result.HasConflicts {
		fmt.Fprintf(out, "weavemerge: %d conflict", result.ConflictCount)
		if result.ConflictCount != 1 {
			fmt.Fprint(out, "s")
		}
		fmt.Fprintln(out, "; resolve markers before committing")
	}
}
