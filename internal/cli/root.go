// Copyright 2025
// SPDX-License-Identifier: Apache-2.0

package cli

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/spf13/cobra"

	"coyopipe/internal/dataset"
	"coyopipe/pkg/coyopipe"
)

// RootOpts holds global CLI options.
type RootOpts struct {
	Token   string
	JSONOut bool
	Quiet   bool
	Config  string
}

// Execute runs the CLI with the given version string.
func Execute(version string) error {
	ro := &RootOpts{}
	ctx, cancel := signalContext(context.Background())
	defer cancel()

	root := &cobra.Command{
		Use:           "coyopipe",
		Short:         "Sample, download, filter and assemble COYO image datasets",
		SilenceUsage:  true,
		SilenceErrors: true,
		Version:       version,
	}

	// Global flags
	root.PersistentFlags().StringVarP(&ro.Token, "token", "t", "", "Hugging Face access token (also reads HF_TOKEN env)")
	root.PersistentFlags().BoolVar(&ro.JSONOut, "json", false, "Emit machine-readable JSON events")
	root.PersistentFlags().BoolVarP(&ro.Quiet, "quiet", "q", false, "Quiet mode (summary only)")
	root.PersistentFlags().StringVar(&ro.Config, "config", "", "Path to config file (JSON or YAML)")

	root.AddCommand(newSampleCmd(ctx, ro))
	root.AddCommand(newFetchCmd(ctx, ro))
	root.AddCommand(newFilterCmd(ro))
	root.AddCommand(newAssembleCmd(ctx, ro))
	root.AddCommand(newRunCmd(ctx, ro))
	root.AddCommand(newVersionCmd(version))
	root.AddCommand(newConfigCmd())
	root.SetHelpCommand(&cobra.Command{Use: "help", Hidden: true})

	if err := root.ExecuteContext(ctx); err != nil {
		fmt.Fprintln(os.Stderr, "error:", err)
		return err
	}
	return nil
}

func newSampleCmd(ctx context.Context, ro *RootOpts) *cobra.Command {
	cfg := coyopipe.DefaultSettings()
	var out string

	cmd := &cobra.Command{
		Use:   "sample",
		Short: "Sample a random fraction of a remote dataset into a records file",
		PreRunE: func(cmd *cobra.Command, args []string) error {
			return applySettingsDefaults(cmd, ro, &cfg)
		},
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg.Token = resolveToken(ro)

			progress, finish := newProgress(ro, 0)
			records, err := coyopipe.Sample(ctx, cfg, progress)
			finish()
			if err != nil {
				return err
			}
			if err := coyopipe.SaveRecords(out, records); err != nil {
				return fmt.Errorf("save records: %w", err)
			}
			if !ro.JSONOut {
				fmt.Printf("sampled %d records -> %s\n", len(records), out)
			}
			return nil
		},
	}

	cmd.Flags().StringVarP(&cfg.Dataset, "dataset", "d", cfg.Dataset, "Dataset ID on the Hugging Face Hub (owner/name)")
	cmd.Flags().StringVar(&cfg.Config, "dataset-config", cfg.Config, "Dataset configuration name")
	cmd.Flags().StringVar(&cfg.Split, "split", cfg.Split, "Dataset split")
	cmd.Flags().Float64VarP(&cfg.Fraction, "fraction", "f", cfg.Fraction, "Fraction of rows to sample, in (0,1]")
	cmd.Flags().Int64Var(&cfg.Seed, "seed", cfg.Seed, "Shuffle seed for reproducible sampling")
	cmd.Flags().StringVar(&cfg.Endpoint, "endpoint", "", "datasets-server base URL (for mirrors)")
	cmd.Flags().IntVar(&cfg.PageWorkers, "page-workers", cfg.PageWorkers, "Concurrent row-page requests")
	cmd.Flags().StringVarP(&out, "out", "o", "subset.jsonl", "Output records file (JSON lines)")

	return cmd
}

func newFetchCmd(ctx context.Context, ro *RootOpts) *cobra.Command {
	cfg := coyopipe.DefaultSettings()
	var recordsPath string

	cmd := &cobra.Command{
		Use:   "fetch",
		Short: "Download every record's image into the image directory",
		PreRunE: func(cmd *cobra.Command, args []string) error {
			return applySettingsDefaults(cmd, ro, &cfg)
		},
		RunE: func(cmd *cobra.Command, args []string) error {
			records, err := coyopipe.LoadRecords(recordsPath)
			if err != nil {
				return fmt.Errorf("load records: %w", err)
			}

			progress, finish := newProgress(ro, len(records))
			report, err := coyopipe.Fetch(ctx, records, cfg, progress)
			finish()
			if err != nil {
				return err
			}
			printFetchSummary(ro, report)
			return nil
		},
	}

	addFetchFlags(cmd, &cfg, &recordsPath)
	return cmd
}

func newFilterCmd(ro *RootOpts) *cobra.Command {
	var recordsPath, imageDir, out string

	cmd := &cobra.Command{
		Use:   "filter",
		Short: "Keep only records whose image file is present and valid",
		RunE: func(cmd *cobra.Command, args []string) error {
			records, err := coyopipe.LoadRecords(recordsPath)
			if err != nil {
				return fmt.Errorf("load records: %w", err)
			}

			progress, finish := newProgress(ro, 0)
			kept, report, err := coyopipe.Filter(records, imageDir, progress)
			finish()
			if err != nil {
				return err
			}
			if err := coyopipe.SaveRecords(out, kept); err != nil {
				return fmt.Errorf("save records: %w", err)
			}
			if !ro.JSONOut {
				fmt.Printf("kept %d of %d records -> %s\n", report.Kept, report.Input, out)
			}
			return nil
		},
	}

	cmd.Flags().StringVarP(&recordsPath, "records", "r", "subset.jsonl", "Input records file")
	cmd.Flags().StringVarP(&imageDir, "images", "i", "images", "Image directory populated by fetch")
	cmd.Flags().StringVarP(&out, "out", "o", "filtered.jsonl", "Output records file")
	return cmd
}

func newAssembleCmd(ctx context.Context, ro *RootOpts) *cobra.Command {
	var recordsPath, imageDir, dbPath string

	cmd := &cobra.Command{
		Use:   "assemble",
		Short: "Insert validated records plus image metadata into a SQLite dataset",
		RunE: func(cmd *cobra.Command, args []string) error {
			records, err := coyopipe.LoadRecords(recordsPath)
			if err != nil {
				return fmt.Errorf("load records: %w", err)
			}

			n, err := dataset.Assemble(ctx, records, imageDir, dbPath)
			if err != nil {
				return err
			}
			if !ro.JSONOut {
				fmt.Printf("assembled %d samples -> %s\n", n, dbPath)
			}
			return nil
		},
	}

	cmd.Flags().StringVarP(&recordsPath, "records", "r", "filtered.jsonl", "Filtered records file")
	cmd.Flags().StringVarP(&imageDir, "images", "i", "images", "Image directory")
	cmd.Flags().StringVar(&dbPath, "db", "dataset.db", "Dataset SQLite database path")
	return cmd
}

func newRunCmd(ctx context.Context, ro *RootOpts) *cobra.Command {
	cfg := coyopipe.DefaultSettings()
	var recordsPath, out, dbPath string

	cmd := &cobra.Command{
		Use:   "run",
		Short: "Fetch, filter and assemble in one invocation",
		PreRunE: func(cmd *cobra.Command, args []string) error {
			return applySettingsDefaults(cmd, ro, &cfg)
		},
		RunE: func(cmd *cobra.Command, args []string) error {
			records, err := coyopipe.LoadRecords(recordsPath)
			if err != nil {
				return fmt.Errorf("load records: %w", err)
			}

			progress, finish := newProgress(ro, len(records))
			report, err := coyopipe.Fetch(ctx, records, cfg, progress)
			finish()
			if err != nil {
				return err
			}
			printFetchSummary(ro, report)

			kept, freport, err := coyopipe.Filter(records, cfg.ImageDir, nil)
			if err != nil {
				return err
			}
			if err := coyopipe.SaveRecords(out, kept); err != nil {
				return fmt.Errorf("save records: %w", err)
			}

			n, err := dataset.Assemble(ctx, kept, cfg.ImageDir, dbPath)
			if err != nil {
				return err
			}
			if !ro.JSONOut {
				fmt.Printf("kept %d of %d records -> %s\n", freport.Kept, freport.Input, out)
				fmt.Printf("assembled %d samples -> %s\n", n, dbPath)
			}
			return nil
		},
	}

	addFetchFlags(cmd, &cfg, &recordsPath)
	cmd.Flags().StringVarP(&out, "out", "o", "filtered.jsonl", "Filtered records output file")
	cmd.Flags().StringVar(&dbPath, "db", "dataset.db", "Dataset SQLite database path")
	return cmd
}

// addFetchFlags registers the flags shared by fetch and run.
func addFetchFlags(cmd *cobra.Command, cfg *coyopipe.Settings, recordsPath *string) {
	cmd.Flags().StringVarP(recordsPath, "records", "r", "subset.jsonl", "Input records file (JSON lines)")
	cmd.Flags().StringVarP(&cfg.ImageDir, "images", "i", cfg.ImageDir, "Target directory for downloaded images")
	cmd.Flags().DurationVar(&cfg.Timeout, "timeout", cfg.Timeout, "Per-request timeout")
	cmd.Flags().IntVarP(&cfg.MaxActive, "max-active", "c", cfg.MaxActive, "Maximum images downloading at once")
}

func resolveToken(ro *RootOpts) string {
	tok := strings.TrimSpace(ro.Token)
	if tok == "" {
		tok = strings.TrimSpace(os.Getenv("HF_TOKEN"))
	}
	return tok
}

func printFetchSummary(ro *RootOpts, report *coyopipe.FetchReport) {
	if ro.JSONOut {
		return
	}
	fmt.Printf("fetched %d of %d (failed %d: %d network, %d http, %d content)\n",
		report.Succeeded, report.Attempted, report.Failed,
		report.NetworkErrors, report.HTTPErrors, report.ContentErrors)
}

func signalContext(parent context.Context) (context.Context, context.CancelFunc) {
	ctx, cancel := context.WithCancel(parent)
	ch := make(chan os.Signal, 1)
	signal.Notify(ch, os.Interrupt, syscall.SIGTERM)
	go func() {
		select {
		case <-ch:
			cancel()
		case <-ctx.Done():
		}
	}()
	return ctx, cancel
}
